package config

import (
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/ormsift/ormsift/internal/logging"
)

// Watcher tracks edits to the config file during a run so stage tuning
// (concurrency, retries) can change between stages without a restart. The
// orchestrator calls Current at stage boundaries; a reload never interrupts
// a stage mid-flight.
type Watcher struct {
	path   string
	logger *logging.Logger

	mu      sync.RWMutex
	current *Config

	watcher  *fsnotify.Watcher
	stop     chan struct{}
	debounce *time.Timer
}

// NewWatcher creates a watcher seeded with the loaded config. An empty path
// disables watching; Current then always returns the seed.
func NewWatcher(path string, seed *Config, logger *logging.Logger) *Watcher {
	if logger == nil {
		logger = logging.NewNop()
	}
	w := &Watcher{
		path:    path,
		logger:  logger,
		current: seed,
		stop:    make(chan struct{}),
	}
	if path != "" {
		w.start()
	}
	return w
}

func (w *Watcher) start() {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		w.logger.Warn("config watching disabled", "error", err)
		return
	}
	// Watch the directory: editors replace files on save, which breaks a
	// direct file watch.
	if err := fw.Add(filepath.Dir(w.path)); err != nil {
		w.logger.Warn("config watching disabled", "error", err)
		fw.Close()
		return
	}
	w.watcher = fw
	go w.loop()
}

func (w *Watcher) loop() {
	for {
		select {
		case <-w.stop:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != filepath.Clean(w.path) {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			w.scheduleReload()
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("config watcher error", "error", err)
		}
	}
}

// scheduleReload debounces rapid successive writes.
func (w *Watcher) scheduleReload() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.debounce != nil {
		w.debounce.Stop()
	}
	w.debounce = time.AfterFunc(200*time.Millisecond, w.reload)
}

func (w *Watcher) reload() {
	cfg, err := NewLoader().WithConfigFile(w.path).Load()
	if err != nil {
		w.logger.Warn("config reload failed, keeping previous", "error", err)
		return
	}
	if err := Validate(cfg); err != nil {
		w.logger.Warn("config reload invalid, keeping previous", "error", err)
		return
	}

	w.mu.Lock()
	w.current = cfg
	w.mu.Unlock()
	w.logger.Info("config reloaded", "path", w.path)
}

// Current returns the most recent valid config.
func (w *Watcher) Current() *Config {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.current
}

// Close stops watching.
func (w *Watcher) Close() {
	close(w.stop)
	if w.watcher != nil {
		w.watcher.Close()
	}
}
