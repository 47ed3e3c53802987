// Package archive persists structured records as one JSON file per save
// under a kind-specific directory, and keeps an SQLite index of everything
// written for listing and lookup.
package archive

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"muse/internal/logging"
)

// Record kinds. Each kind gets its own subdirectory under the archive root.
const (
	KindNarrative  = "narratives"
	KindHypothesis = "hypotheses"
	KindTopic      = "topics"
)

// Entry is one indexed archive record.
type Entry struct {
	ID        int64     `json:"id"`
	Kind      string    `json:"kind"`
	Title     string    `json:"title"`
	Path      string    `json:"path"`
	CreatedAt time.Time `json:"created_at"`
}

// Archive writes records to disk and indexes them.
type Archive struct {
	mu   sync.Mutex
	root string
	db   *sql.DB

	// now is a clock seam so tests control filename timestamps.
	now func() time.Time
}

// New opens an archive rooted at root with an SQLite index at indexPath.
// Directories are created on demand.
func New(root, indexPath string) (*Archive, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("failed to create archive root: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(indexPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create index directory: %w", err)
	}

	db, err := sql.Open("sqlite", indexPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open index database: %w", err)
	}

	a := &Archive{root: root, db: db, now: time.Now}
	if err := a.initialize(); err != nil {
		db.Close()
		return nil, err
	}

	return a, nil
}

// initialize creates the required tables.
func (a *Archive) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS records (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		kind TEXT NOT NULL,
		title TEXT NOT NULL,
		path TEXT NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_records_kind ON records(kind);
	CREATE INDEX IF NOT EXISTS idx_records_title ON records(title);
	`
	if _, err := a.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to initialize index schema: %w", err)
	}
	return nil
}

// Close closes the index database.
func (a *Archive) Close() error {
	return a.db.Close()
}

// Save serializes record to <root>/<kind>/<slug>_<timestamp>.json and indexes
// it. One file per save call; a second save with the same title in the same
// second would overwrite, which is accepted and not guarded against.
func (a *Archive) Save(kind, title string, record interface{}) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	dir := filepath.Join(a.root, kind)
	if err := os.MkdirAll(dir, 0755); err != nil {
		logging.ArchiveError("Save: failed to create %s: %v", dir, err)
		return "", fmt.Errorf("failed to create archive directory: %w", err)
	}

	filename := fmt.Sprintf("%s_%d.json", Slug(title), a.now().Unix())
	path := filepath.Join(dir, filename)

	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal record: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		logging.ArchiveError("Save: write failed for %s: %v", path, err)
		return "", fmt.Errorf("failed to write record: %w", err)
	}

	if _, err := a.db.Exec(
		`INSERT INTO records (kind, title, path, created_at) VALUES (?, ?, ?, ?)`,
		kind, title, path, a.now().UTC(),
	); err != nil {
		logging.ArchiveError("Save: index insert failed for %s: %v", path, err)
		return "", fmt.Errorf("failed to index record: %w", err)
	}

	logging.Archive("Save: kind=%s title=%q path=%s bytes=%d", kind, title, path, len(data))
	return path, nil
}

// List returns indexed entries of one kind, newest first.
func (a *Archive) List(kind string) ([]Entry, error) {
	rows, err := a.db.Query(
		`SELECT id, kind, title, path, created_at FROM records WHERE kind = ? ORDER BY id DESC`,
		kind,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query index: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.Kind, &e.Title, &e.Path, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan index row: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Lookup returns the most recent entry with the given kind and title.
func (a *Archive) Lookup(kind, title string) (*Entry, error) {
	row := a.db.QueryRow(
		`SELECT id, kind, title, path, created_at FROM records WHERE kind = ? AND title = ? ORDER BY id DESC LIMIT 1`,
		kind, title,
	)
	var e Entry
	if err := row.Scan(&e.ID, &e.Kind, &e.Title, &e.Path, &e.CreatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to look up record: %w", err)
	}
	return &e, nil
}

// Read loads the JSON body at path into out.
func (a *Archive) Read(path string, out interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read record: %w", err)
	}
	return json.Unmarshal(data, out)
}

// Slug lowercases a title and strips every non-alphanumeric character.
func Slug(title string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(title) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}
