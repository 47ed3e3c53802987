package config

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"muse/internal/logging"
)

// Watcher watches the workspace config file for changes and pushes reloaded
// configs to subscribers. It watches the .muse directory rather than the file
// itself so editor save-via-rename still produces events.
type Watcher struct {
	mu          sync.RWMutex
	watcher     *fsnotify.Watcher
	configPath  string
	subscribers []func(*Config)
	debounceAt  time.Time
	debounceDur time.Duration
	stopCh      chan struct{}
	doneCh      chan struct{}
	running     bool
}

// NewWatcher creates a watcher for the given workspace's config file.
func NewWatcher(workspace string) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &Watcher{
		watcher:     fw,
		configPath:  Path(workspace),
		debounceDur: 500 * time.Millisecond, // Debounce rapid saves
		stopCh:      make(chan struct{}),
		doneCh:      make(chan struct{}),
	}, nil
}

// Subscribe registers a callback invoked with each successfully reloaded
// config. Must be called before Start.
func (w *Watcher) Subscribe(fn func(*Config)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.subscribers = append(w.subscribers, fn)
}

// Start begins watching. Non-blocking; the event loop runs in a goroutine.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil // Already running
	}
	w.running = true
	w.mu.Unlock()

	dir := filepath.Dir(w.configPath)
	if err := w.watcher.Add(dir); err != nil {
		// Directory may not exist yet - that's OK, nothing to reload either
		logging.ConfigWarn("Watcher: initial watch failed (dir may not exist): %v", err)
	} else {
		logging.Config("Watcher: watching %s", dir)
	}

	go w.run(ctx)
	return nil
}

// Stop stops the watcher and waits for cleanup.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	w.mu.Unlock()

	close(w.stopCh)
	<-w.doneCh

	if err := w.watcher.Close(); err != nil {
		logging.Get(logging.CategoryConfig).Error("Watcher: error closing: %v", err)
	}
	logging.Config("Watcher: stopped")
}

// IsWatching returns true if the watcher is currently running.
func (w *Watcher) IsWatching() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.running
}

func (w *Watcher) run(ctx context.Context) {
	defer close(w.doneCh)

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case <-w.stopCh:
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			logging.Get(logging.CategoryConfig).Error("Watcher error: %v", err)

		case <-ticker.C:
			w.reloadIfSettled()
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if event.Name != w.configPath {
		return
	}
	if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
		return // Ignore chmod, remove
	}

	logging.Get(logging.CategoryConfig).Debug("Watcher: change event for %s", event.Name)

	w.mu.Lock()
	w.debounceAt = time.Now()
	w.mu.Unlock()
}

func (w *Watcher) reloadIfSettled() {
	w.mu.Lock()
	pending := !w.debounceAt.IsZero() && time.Since(w.debounceAt) >= w.debounceDur
	if pending {
		w.debounceAt = time.Time{}
	}
	w.mu.Unlock()

	if !pending {
		return
	}

	cfg, err := Load(w.configPath)
	if err != nil {
		logging.ConfigWarn("Watcher: reload failed: %v", err)
		return
	}

	logging.Config("Watcher: config reloaded from %s", w.configPath)

	w.mu.RLock()
	subs := make([]func(*Config), len(w.subscribers))
	copy(subs, w.subscribers)
	w.mu.RUnlock()

	for _, fn := range subs {
		fn(cfg)
	}
}
