// Package usage records token consumption per model and operation, pricing
// each call through the rate table at record time. The ledger persists to
// .muse/usage.json with debounced auto-save.
package usage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"muse/internal/logging"
	"muse/internal/pricing"
)

// Tracker manages token usage recording and persistence. It satisfies the
// gateway's usage sink.
type Tracker struct {
	mu        sync.Mutex
	data      Ledger
	table     pricing.Table
	filePath  string
	dirty     bool
	saveDelay time.Duration
}

// NewTracker creates a usage tracker persisting under the workspace.
func NewTracker(workspacePath string, table pricing.Table) (*Tracker, error) {
	museDir := filepath.Join(workspacePath, ".muse")
	if err := os.MkdirAll(museDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create .muse dir: %w", err)
	}

	if table == nil {
		table = pricing.DefaultTable()
	}

	t := &Tracker{
		filePath:  filepath.Join(museDir, "usage.json"),
		table:     table,
		saveDelay: 5 * time.Second,
		data: Ledger{
			Version: "1.0",
			Aggregate: AggregatedStats{
				ByModel:     make(map[string]TokenCounts),
				ByOperation: make(map[string]TokenCounts),
			},
		},
	}

	if err := t.Load(); err != nil {
		logging.Get(logging.CategoryUsage).Warn("Tracker: could not load ledger, starting fresh: %v", err)
	}

	return t, nil
}

// Load reads the ledger from disk. Missing file is not an error.
func (t *Tracker) Load() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	data, err := os.ReadFile(t.filePath)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}

	if err := json.Unmarshal(data, &t.data); err != nil {
		return err
	}

	// Ensure maps are initialized if file was empty/partial
	if t.data.Aggregate.ByModel == nil {
		t.data.Aggregate.ByModel = make(map[string]TokenCounts)
	}
	if t.data.Aggregate.ByOperation == nil {
		t.data.Aggregate.ByOperation = make(map[string]TokenCounts)
	}

	return nil
}

// Save writes the ledger to disk.
func (t *Tracker) Save() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.saveLocked()
}

func (t *Tracker) saveLocked() error {
	data, err := json.MarshalIndent(t.data, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(t.filePath, data, 0644)
}

// Record adds one call's token counts, pricing it against the rate table.
// This is the gateway's usage sink hook.
func (t *Tracker) Record(model, operation string, inputTokens, outputTokens, cachedTokens int) {
	cost := t.table.Estimate(model, pricing.Tokens(inputTokens), pricing.Tokens(outputTokens))

	t.mu.Lock()
	defer t.mu.Unlock()

	t.data.Aggregate.Total.add(inputTokens, outputTokens, cachedTokens, cost)
	addToMap(t.data.Aggregate.ByModel, model, inputTokens, outputTokens, cachedTokens, cost)
	addToMap(t.data.Aggregate.ByOperation, operation, inputTokens, outputTokens, cachedTokens, cost)

	logging.Usage("Record: model=%s op=%s input=%d output=%d cached=%d cost_usd=%.6f",
		model, operation, inputTokens, outputTokens, cachedTokens, cost)

	// Debounced auto-save. The dirty flag is cleared before the write, so a
	// Record arriving during the save schedules the next one instead of
	// sitting unpersisted.
	if !t.dirty {
		t.dirty = true
		time.AfterFunc(t.saveDelay, func() {
			t.mu.Lock()
			t.dirty = false
			t.mu.Unlock()
			if err := t.Save(); err != nil {
				logging.Get(logging.CategoryUsage).Error("Tracker: auto-save failed: %v", err)
			}
		})
	}
}

// Stats returns a copy of the aggregated stats.
func (t *Tracker) Stats() AggregatedStats {
	t.mu.Lock()
	defer t.mu.Unlock()
	stats := t.data.Aggregate
	stats.ByModel = copyCounts(stats.ByModel)
	stats.ByOperation = copyCounts(stats.ByOperation)
	return stats
}

func copyCounts(src map[string]TokenCounts) map[string]TokenCounts {
	if src == nil {
		return nil
	}
	dst := make(map[string]TokenCounts, len(src))
	for key, counts := range src {
		dst[key] = counts
	}
	return dst
}

func addToMap(m map[string]TokenCounts, key string, input, output, cached int, cost float64) {
	entry := m[key]
	entry.add(input, output, cached, cost)
	m[key] = entry
}
