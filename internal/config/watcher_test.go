package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/goleak"
)

func TestWatcherLifecycle(t *testing.T) {
	defer goleak.VerifyNone(t)

	ws := t.TempDir()
	if err := os.MkdirAll(filepath.Join(ws, ".muse"), 0755); err != nil {
		t.Fatal(err)
	}

	w, err := NewWatcher(ws)
	if err != nil {
		t.Fatalf("failed to create watcher: %v", err)
	}

	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if !w.IsWatching() {
		t.Fatal("expected watcher to be running")
	}

	w.Stop()
	if w.IsWatching() {
		t.Fatal("expected watcher to be stopped")
	}

	// Stop again is a no-op.
	w.Stop()
}

func TestWatcherNotifiesSubscribers(t *testing.T) {
	ws := t.TempDir()
	cfg := Default(ws)
	cfg.Name = "before"
	if err := cfg.Save(Path(ws)); err != nil {
		t.Fatal(err)
	}

	w, err := NewWatcher(ws)
	if err != nil {
		t.Fatalf("failed to create watcher: %v", err)
	}
	w.debounceDur = 50 * time.Millisecond

	got := make(chan *Config, 1)
	w.Subscribe(func(c *Config) {
		select {
		case got <- c:
		default:
		}
	})

	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	defer w.Stop()

	cfg.Name = "after"
	if err := cfg.Save(Path(ws)); err != nil {
		t.Fatal(err)
	}

	select {
	case reloaded := <-got:
		if reloaded.Name != "after" {
			t.Fatalf("expected reloaded config, got name %q", reloaded.Name)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for reload notification")
	}
}
