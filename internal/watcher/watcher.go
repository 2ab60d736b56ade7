// Package watcher watches the gateway config file and hot-reloads it.
package watcher

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"sync"
	"time"

	"github.com/assessly/assessly-gateway/internal/config"
	"github.com/fsnotify/fsnotify"
	log "github.com/sirupsen/logrus"
)

const configReloadDebounce = 150 * time.Millisecond

// Watcher reloads the config file when its content changes and hands the new
// config to the reload callback. Editors that save by rename are handled by
// watching the parent directory.
type Watcher struct {
	configPath     string
	reloadCallback func(*config.Config)
	watcher        *fsnotify.Watcher

	mu             sync.Mutex
	config         *config.Config
	lastConfigHash string
	reloadTimer    *time.Timer
	started        bool
	done           chan struct{}
}

// NewWatcher creates a watcher for configPath.
func NewWatcher(configPath string, reloadCallback func(*config.Config)) (*Watcher, error) {
	abs, err := filepath.Abs(configPath)
	if err != nil {
		return nil, fmt.Errorf("watcher: resolve config path: %w", err)
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &Watcher{
		configPath:     filepath.Clean(abs),
		reloadCallback: reloadCallback,
		watcher:        fsw,
		done:           make(chan struct{}),
	}, nil
}

// SetConfig records the config currently in effect and the hash of the file it came from.
func (w *Watcher) SetConfig(cfg *config.Config) {
	hash, _ := fileHash(w.configPath)
	w.mu.Lock()
	w.config = cfg
	w.lastConfigHash = hash
	w.mu.Unlock()
}

// Start begins watching. Events are processed until ctx ends or Stop is called.
func (w *Watcher) Start(ctx context.Context) error {
	dir := filepath.Dir(w.configPath)
	if err := w.watcher.Add(dir); err != nil {
		log.Errorf("failed to watch config directory %s: %v", dir, err)
		return err
	}
	log.Debugf("watching config file: %s", w.configPath)
	w.mu.Lock()
	w.started = true
	w.mu.Unlock()
	go w.processEvents(ctx)
	return nil
}

// Stop stops watching and cancels a pending reload.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	if w.reloadTimer != nil {
		w.reloadTimer.Stop()
		w.reloadTimer = nil
	}
	started := w.started
	w.mu.Unlock()
	err := w.watcher.Close()
	if started {
		<-w.done
	}
	return err
}

func (w *Watcher) processEvents(ctx context.Context) {
	defer close(w.done)
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case errWatch, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.Errorf("file watcher error: %v", errWatch)
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if filepath.Clean(event.Name) != w.configPath {
		return
	}
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
		return
	}
	log.Debugf("config file event: %s", event.Op)
	w.scheduleReload()
}

func (w *Watcher) scheduleReload() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.reloadTimer != nil {
		w.reloadTimer.Stop()
	}
	w.reloadTimer = time.AfterFunc(configReloadDebounce, func() {
		w.mu.Lock()
		w.reloadTimer = nil
		w.mu.Unlock()
		w.reloadIfChanged()
	})
}

func (w *Watcher) reloadIfChanged() {
	newHash, err := fileHash(w.configPath)
	if err != nil {
		log.Errorf("failed to read config file for hash check: %v", err)
		return
	}
	if newHash == "" {
		log.Debug("ignoring empty config file write event")
		return
	}

	w.mu.Lock()
	unchanged := w.lastConfigHash == newHash
	oldConfig := w.config
	w.mu.Unlock()
	if unchanged {
		log.Debug("config file content unchanged (hash match), skipping reload")
		return
	}

	newConfig, err := config.LoadConfig(w.configPath)
	if err != nil {
		log.Errorf("failed to reload config: %v", err)
		return
	}

	w.mu.Lock()
	w.config = newConfig
	w.lastConfigHash = newHash
	w.mu.Unlock()

	if oldConfig != nil {
		if changed := changedSections(oldConfig, newConfig); len(changed) > 0 {
			log.Debugf("config sections changed: %v", changed)
		} else {
			log.Debug("no material config field changes detected")
		}
	}
	log.Infof("config successfully reloaded: %s", w.configPath)
	if w.reloadCallback != nil {
		w.reloadCallback(newConfig)
	}
}

// changedSections names the top-level config sections that differ.
func changedSections(oldCfg, newCfg *config.Config) []string {
	var changed []string
	oldVal := reflect.ValueOf(*oldCfg)
	newVal := reflect.ValueOf(*newCfg)
	t := oldVal.Type()
	for i := 0; i < t.NumField(); i++ {
		if reflect.DeepEqual(oldVal.Field(i).Interface(), newVal.Field(i).Interface()) {
			continue
		}
		name := t.Field(i).Tag.Get("yaml")
		if name == "" || name == ",inline" {
			name = t.Field(i).Name
		}
		changed = append(changed, name)
	}
	return changed
}

// fileHash returns "" for an empty file.
func fileHash(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	if len(data) == 0 {
		return "", nil
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}
