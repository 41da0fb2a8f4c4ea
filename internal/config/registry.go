package config

import (
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"
	"zback/internal/logger"
	"zback/internal/model"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Registry owns the active Config. Readers get the whole graph through
// Current; Reload swaps a fully built replacement in one step, so no reader
// ever observes a half-applied configuration.
//
// Reload is driven by the orchestration worker at cycle boundaries. The
// fsnotify watcher and the control server only mark a reload pending.
type Registry struct {
	mu      sync.RWMutex
	path    string
	current *Config

	pending atomic.Bool
	watcher *fsnotify.Watcher
	doneCh  chan struct{}
}

// NewRegistry loads the initial configuration from path. A broken initial
// config is fatal; later reload failures keep the last good one.
func NewRegistry(path string) (*Registry, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}

	return &Registry{
		path:    path,
		current: cfg,
		doneCh:  make(chan struct{}),
	}, nil
}

// Current returns the active configuration graph.
func (r *Registry) Current() *Config {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.current
}

// Path returns the config file path the registry watches.
func (r *Registry) Path() string {
	return r.path
}

// MarkPending schedules a reload for the next cycle boundary.
func (r *Registry) MarkPending() {
	r.pending.Store(true)
}

// ConsumePending reports whether a reload was requested, clearing the flag.
func (r *Registry) ConsumePending() bool {
	return r.pending.Swap(false)
}

// Reload parses the config file into a fresh graph, migrates runtime state
// from the active one and swaps it in. On any parse or validation error the
// active configuration stays untouched.
func (r *Registry) Reload() error {
	next, err := Load(r.path)
	if err != nil {
		return fmt.Errorf("reload aborted, keeping previous configuration: %w", err)
	}

	r.mu.Lock()
	migrateRuntimeState(r.current, next)
	r.current = next
	r.mu.Unlock()

	logger.Log.Info("configuration reloaded",
		zap.String("path", r.path),
		zap.Int("datasets", len(next.Datasets)))

	return nil
}

// migrateRuntimeState copies the runtime-only destination fields from the
// active graph into the replacement, matching datasets by local name and
// destinations by remote host plus effective remote dataset name. State of
// destinations that disappeared is dropped silently.
func migrateRuntimeState(old, next *Config) {
	if old == nil {
		return
	}

	byName := make(map[string]*model.Dataset, len(old.Datasets))
	for _, ds := range old.Datasets {
		byName[ds.Name] = ds
	}

	for _, nds := range next.Datasets {
		ods, ok := byName[nds.Name]
		if !ok {
			continue
		}

		for _, ndest := range nds.Destinations {
			if odest := ods.FindDestination(ndest); odest != nil {
				ndest.LastSyncTime = odest.LastSyncTime
				ndest.CurrentTaskID = odest.CurrentTaskID
			}
		}
	}
}

// Watch marks a reload pending whenever the config file changes on disk. The
// parent directory is watched because editors and config management tools
// replace the file instead of writing it in place.
func (r *Registry) Watch() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create config watcher: %w", err)
	}

	dir := filepath.Dir(r.path)
	if err := watcher.Add(dir); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	r.watcher = watcher
	go r.run()

	logger.Log.Info("config watcher started",
		zap.String("path", r.path))
	return nil
}

func (r *Registry) run() {
	target := filepath.Clean(r.path)

	for {
		select {
		case <-r.doneCh:
			return

		case event, ok := <-r.watcher.Events:
			if !ok {
				return
			}

			if filepath.Clean(event.Name) != target {
				continue
			}

			if event.Op.Has(fsnotify.Write) || event.Op.Has(fsnotify.Create) || event.Op.Has(fsnotify.Rename) {
				logger.Log.Debug("config file changed, reload scheduled",
					zap.String("op", event.Op.String()))
				r.pending.Store(true)
			}

		case err, ok := <-r.watcher.Errors:
			if !ok {
				return
			}

			logger.Log.Error("config watcher error",
				zap.Error(err))
		}
	}
}

// Close stops the config watcher.
func (r *Registry) Close() {
	close(r.doneCh)
	if r.watcher != nil {
		_ = r.watcher.Close()
	}
}
