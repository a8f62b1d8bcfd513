package config

import (
	"context"
	"fmt"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/smsgate/pulse-core/pkg/logger"
)

// SLAWatcher hot-reloads SLA thresholds when the config file changes so
// operators can tune alerting sensitivity without a restart. Only the SLA
// block is propagated; structural settings still require a restart.
type SLAWatcher struct {
	configPath string
	logger     logger.Logger
	mu         sync.RWMutex
	listeners  []func(SLAConfig)
	stopCh     chan struct{}
	stopOnce   sync.Once
}

func NewSLAWatcher(configPath string, log logger.Logger) *SLAWatcher {
	return &SLAWatcher{
		configPath: configPath,
		logger:     log,
		listeners:  make([]func(SLAConfig), 0),
		stopCh:     make(chan struct{}),
	}
}

// OnChange registers a callback invoked with the new thresholds after a
// successful reload.
func (w *SLAWatcher) OnChange(fn func(SLAConfig)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.listeners = append(w.listeners, fn)
}

// Start begins watching for configuration file changes. It blocks until the
// context is cancelled or Stop is called.
func (w *SLAWatcher) Start(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(w.configPath); err != nil {
		return fmt.Errorf("failed to watch config file: %w", err)
	}

	w.logger.Info("SLA threshold watcher started", "configPath", w.configPath)

	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&fsnotify.Write == fsnotify.Write {
				w.logger.Info("Config file changed, reloading SLA thresholds", "file", event.Name)
				cfg, err := Load()
				if err != nil {
					w.logger.Error("Failed to reload config, keeping previous thresholds", "error", err)
					continue
				}
				w.notify(cfg.SLA)
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("SLA threshold watcher error", "error", err)

		case <-ctx.Done():
			w.logger.Info("SLA threshold watcher stopping")
			return nil

		case <-w.stopCh:
			w.logger.Info("SLA threshold watcher stopped")
			return nil
		}
	}
}

// Stop terminates the watcher.
func (w *SLAWatcher) Stop() {
	w.stopOnce.Do(func() { close(w.stopCh) })
}

func (w *SLAWatcher) notify(sla SLAConfig) {
	w.mu.RLock()
	listeners := make([]func(SLAConfig), len(w.listeners))
	copy(listeners, w.listeners)
	w.mu.RUnlock()

	for _, fn := range listeners {
		fn(sla)
	}
}
