package config

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// reloadDelay debounces bursts of filesystem events into one reload.
const reloadDelay = 500 * time.Millisecond

// Watcher reloads the configuration file when it changes on disk.
type Watcher struct {
	path    string
	logger  zerolog.Logger
	watcher *fsnotify.Watcher

	mu      sync.Mutex
	current *Config
}

// NewWatcher creates a watcher for the given configuration file. The
// file must load cleanly before watching starts.
func NewWatcher(path string, logger zerolog.Logger) (*Watcher, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	return &Watcher{
		path:    path,
		logger:  logger.With().Str("component", "config-watcher").Logger(),
		current: cfg,
	}, nil
}

// Current returns the most recently loaded configuration.
func (w *Watcher) Current() *Config {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.current
}

// Watch starts watching the file and invokes onReload with each valid
// new configuration. A file that fails to parse or validate keeps the
// previous configuration in place.
func (w *Watcher) Watch(ctx context.Context, onReload func(*Config)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := watcher.Add(w.path); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("failed to watch %s: %w", w.path, err)
	}
	w.watcher = watcher

	go w.processEvents(ctx, onReload)

	w.logger.Info().Str("path", w.path).Msg("watching configuration file")
	return nil
}

func (w *Watcher) processEvents(ctx context.Context, onReload func(*Config)) {
	var reloadTimer *time.Timer

	for {
		select {
		case <-ctx.Done():
			_ = w.watcher.Close()
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			w.logger.Debug().
				Str("file", event.Name).
				Str("op", event.Op.String()).
				Msg("configuration file changed")

			if reloadTimer != nil {
				reloadTimer.Stop()
			}
			reloadTimer = time.AfterFunc(reloadDelay, func() {
				w.reload(onReload)
			})

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error().Err(err).Msg("watcher error")
		}
	}
}

func (w *Watcher) reload(onReload func(*Config)) {
	cfg, err := Load(w.path)
	if err != nil {
		w.logger.Error().Err(err).Msg("reload failed, keeping previous configuration")
		return
	}

	w.mu.Lock()
	w.current = cfg
	w.mu.Unlock()

	w.logger.Info().Msg("configuration reloaded")
	if onReload != nil {
		onReload(cfg)
	}
}

// Stop stops watching.
func (w *Watcher) Stop() error {
	if w.watcher != nil {
		return w.watcher.Close()
	}
	return nil
}
