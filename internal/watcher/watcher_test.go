package watcher

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/assessly/assessly-gateway/internal/config"
)

func writeConfig(t *testing.T, path, body string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func TestWatcherReloadsOnChange(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeConfig(t, path, "rate-limit:\n  requests: 60\n")

	reloaded := make(chan *config.Config, 4)
	w, err := NewWatcher(path, func(cfg *config.Config) { reloaded <- cfg })
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	initial, err := config.LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	w.SetConfig(initial)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err = w.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() { _ = w.Stop() })

	writeConfig(t, path, "rate-limit:\n  requests: 5\n")

	select {
	case cfg := <-reloaded:
		if cfg.RateLimit.Requests != 5 {
			t.Fatalf("requests = %d", cfg.RateLimit.Requests)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("config was not reloaded")
	}
}

func TestReloadIfChangedSkipsSameContent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeConfig(t, path, "port: 4000\n")

	calls := 0
	w, err := NewWatcher(path, func(*config.Config) { calls++ })
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	defer func() { _ = w.Stop() }()
	w.SetConfig(&config.Config{Port: 4000})

	w.reloadIfChanged()
	if calls != 0 {
		t.Fatalf("reloaded unchanged file %d times", calls)
	}

	writeConfig(t, path, "port: 4001\n")
	w.reloadIfChanged()
	w.reloadIfChanged()
	if calls != 1 {
		t.Fatalf("calls = %d, want 1", calls)
	}
}

func TestReloadIfChangedIgnoresInvalidAndEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeConfig(t, path, "")

	calls := 0
	w, err := NewWatcher(path, func(*config.Config) { calls++ })
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	defer func() { _ = w.Stop() }()

	w.reloadIfChanged()
	writeConfig(t, path, "port: [oops\n")
	w.reloadIfChanged()
	if calls != 0 {
		t.Fatalf("calls = %d", calls)
	}
}

func TestChangedSections(t *testing.T) {
	oldCfg := &config.Config{Port: 3000}
	newCfg := &config.Config{Port: 3000, Debug: true}
	newCfg.RateLimit.Requests = 10

	got := changedSections(oldCfg, newCfg)
	want := []string{"debug", "rate-limit"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}
