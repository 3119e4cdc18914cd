package daemon

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"git.home.luguber.info/inful/tagshipper/internal/config"
	"git.home.luguber.info/inful/tagshipper/internal/logfields"
)

// Reloader applies a freshly loaded configuration.
type Reloader interface {
	Reload(next *config.Config) error
}

// ConfigWatcher monitors the configuration file and reloads it on change.
type ConfigWatcher struct {
	configPath   string
	target       Reloader
	watcher      *fsnotify.Watcher
	debounceTime time.Duration
	reloadChan   chan struct{}

	mu      sync.Mutex
	reloads int
}

// NewConfigWatcher creates a watcher for configPath applying reloads to target.
func NewConfigWatcher(configPath string, target Reloader) (*ConfigWatcher, error) {
	absPath, err := filepath.Abs(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve config path: %w", err)
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	return &ConfigWatcher{
		configPath:   absPath,
		target:       target,
		watcher:      watcher,
		debounceTime: 2 * time.Second,
		reloadChan:   make(chan struct{}, 1),
	}, nil
}

// WithDebounce sets how long writes must settle before a reload.
func (cw *ConfigWatcher) WithDebounce(d time.Duration) *ConfigWatcher {
	cw.debounceTime = d
	return cw
}

// Reloads returns how many reloads were applied successfully.
func (cw *ConfigWatcher) Reloads() int {
	cw.mu.Lock()
	defer cw.mu.Unlock()
	return cw.reloads
}

// Run watches until ctx is canceled. The directory is watched rather than the
// file so editors that replace the file are still seen.
func (cw *ConfigWatcher) Run(ctx context.Context) error {
	defer func() {
		if err := cw.watcher.Close(); err != nil {
			slog.Error("Error closing file watcher", logfields.Error(err))
		}
	}()

	configDir := filepath.Dir(cw.configPath)
	if err := cw.watcher.Add(configDir); err != nil {
		return fmt.Errorf("failed to watch config directory %s: %w", configDir, err)
	}
	slog.Info("Watching configuration", logfields.Path(cw.configPath))

	go cw.reloadLoop(ctx)
	cw.watchLoop(ctx)
	return nil
}

func (cw *ConfigWatcher) watchLoop(ctx context.Context) {
	configFile := filepath.Base(cw.configPath)
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-cw.watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != configFile {
				continue
			}
			switch {
			case event.Op.Has(fsnotify.Write), event.Op.Has(fsnotify.Create), event.Op.Has(fsnotify.Rename):
				slog.Debug("Config file change detected", logfields.File(event.Name), slog.String("op", event.Op.String()))
				cw.triggerReload()
			case event.Op.Has(fsnotify.Remove):
				slog.Warn("Config file removed", logfields.File(event.Name))
			}
		case err, ok := <-cw.watcher.Errors:
			if !ok {
				return
			}
			slog.Error("Config watcher error", logfields.Error(err))
		}
	}
}

func (cw *ConfigWatcher) reloadLoop(ctx context.Context) {
	var timer *time.Timer
	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return
		case <-cw.reloadChan:
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(cw.debounceTime, func() {
				if err := cw.performReload(); err != nil {
					slog.Error("Failed to reload configuration; keeping previous settings", logfields.Error(err))
				}
			})
		}
	}
}

func (cw *ConfigWatcher) triggerReload() {
	select {
	case cw.reloadChan <- struct{}{}:
	default:
	}
}

// performReload loads, validates and applies the configuration file.
func (cw *ConfigWatcher) performReload() error {
	slog.Info("Reloading configuration", logfields.Path(cw.configPath))
	next, err := config.Load(cw.configPath)
	if err != nil {
		return err
	}
	if err := cw.target.Reload(next); err != nil {
		return err
	}
	cw.mu.Lock()
	cw.reloads++
	cw.mu.Unlock()
	return nil
}
