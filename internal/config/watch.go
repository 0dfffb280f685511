package config

import (
	"log/slog"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// SafeReload is the subset of Settings that is safe to hot-swap while the
// service is running: anything touching in-flight connections (host,
// credentials, scheduling) requires a restart instead.
type SafeReload struct {
	LogLevel                string
	MinEntriesForSufficient int
	DeliveryFileRetention   int
}

func (s *Settings) safeReload() SafeReload {
	return SafeReload{
		LogLevel:                s.LogLevel,
		MinEntriesForSufficient: s.Lookback.MinEntriesForSufficient,
		DeliveryFileRetention:   s.Delivery.File.RetentionDays,
	}
}

// Watcher reloads the settings file on write and publishes only the
// SafeReload subset to subscribers; a parse failure on reload is logged and
// the previous settings are kept in effect.
type Watcher struct {
	path   string
	logger *slog.Logger

	mu       sync.RWMutex
	current  *Settings
	onChange func(SafeReload)

	fsw *fsnotify.Watcher
	done chan struct{}
}

// NewWatcher starts watching path for writes, applying SafeReload updates
// to onChange as they land. Call Close to stop.
func NewWatcher(path string, initial *Settings, onChange func(SafeReload), logger *slog.Logger) (*Watcher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fsw.Add(path); err != nil {
		fsw.Close()
		return nil, err
	}

	w := &Watcher{
		path:     path,
		logger:   logger,
		current:  initial,
		onChange: onChange,
		fsw:      fsw,
		done:     make(chan struct{}),
	}
	go w.run()
	return w, nil
}

func (w *Watcher) run() {
	var debounce *time.Timer
	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(200*time.Millisecond, w.reload)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("config watcher error", "error", err)
		}
	}
}

func (w *Watcher) reload() {
	next, err := Load(w.path)
	if err != nil {
		w.logger.Warn("config reload failed, keeping previous settings", "path", w.path, "error", err)
		return
	}
	result := next.Validate()
	if !result.OK() {
		w.logger.Warn("reloaded config failed validation, keeping previous settings", "path", w.path, "errors", result.Fatal)
		return
	}

	w.mu.Lock()
	w.current = next
	w.mu.Unlock()

	if w.onChange != nil {
		w.onChange(next.safeReload())
	}
	w.logger.Info("config reloaded", "path", w.path)
}

// Current returns the most recently successfully loaded Settings.
func (w *Watcher) Current() *Settings {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.current
}

func (w *Watcher) Close() error {
	close(w.done)
	return w.fsw.Close()
}
