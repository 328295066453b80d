// document_watcher.go: Reloads the store when operators edit the document
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package agentconfig

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/agilira/argus"
)

// WatcherOptions configures a DocumentWatcher.
type WatcherOptions struct {
	// PollInterval for file watching (argus handles the optimization)
	PollInterval time.Duration `json:"poll_interval"`

	// CacheTTL for argus stat caching, should be <= PollInterval
	CacheTTL time.Duration `json:"cache_ttl"`
}

// DefaultWatcherOptions returns defaults suited to a rarely edited config file.
func DefaultWatcherOptions() WatcherOptions {
	return WatcherOptions{
		PollInterval: 2 * time.Second,
		CacheTTL:     1 * time.Second,
	}
}

// DocumentWatcher watches the store's document with argus and reloads the
// store when the file is edited outside of it. Reloads go through the
// store's write path, so edits are migrated, backfilled and reconciled like
// a startup load. Writes made by the store itself are ignored.
//
// A watcher is single-use: once stopped it cannot be restarted.
//
//	watcher, err := agentconfig.NewDocumentWatcher(store, agentconfig.DefaultWatcherOptions(), logger)
//	if err != nil {
//	    return err
//	}
//	if err := watcher.Start(); err != nil {
//	    return err
//	}
//	defer watcher.Stop()
type DocumentWatcher struct {
	store   *Store
	watcher *argus.Watcher
	path    string
	logger  Logger
	options WatcherOptions

	mu      sync.Mutex // start/stop only
	running atomic.Bool

	stopOnce sync.Once
	stopped  atomic.Bool

	reloads atomic.Int64
	errors  atomic.Int64
}

// NewDocumentWatcher creates a watcher for store's document.
func NewDocumentWatcher(store *Store, options WatcherOptions, logger any) (*DocumentWatcher, error) {
	if store == nil {
		return nil, NewConfigWatcherError("store is required", nil)
	}
	internalLogger := NewLogger(logger)
	defaults := DefaultWatcherOptions()
	if options.PollInterval <= 0 {
		options.PollInterval = defaults.PollInterval
	}
	if options.CacheTTL <= 0 || options.CacheTTL > options.PollInterval {
		options.CacheTTL = options.PollInterval / 2
	}

	dw := &DocumentWatcher{
		store:   store,
		path:    store.DocumentPath(),
		logger:  internalLogger,
		options: options,
	}
	dw.watcher = argus.New(argus.Config{
		PollInterval:         options.PollInterval,
		CacheTTL:             options.CacheTTL,
		MaxWatchedFiles:      1,
		OptimizationStrategy: argus.OptimizationSingleEvent,
		ErrorHandler: func(err error, filepath string) {
			dw.errors.Add(1)
			internalLogger.Error("Argus file watching error", "error", err, "file", filepath)
		},
	})
	return dw, nil
}

// Start begins watching the document.
func (dw *DocumentWatcher) Start() error {
	if dw.stopped.Load() {
		return NewConfigWatcherError("watcher has been stopped and cannot be restarted", nil)
	}

	dw.mu.Lock()
	defer dw.mu.Unlock()

	if dw.running.Load() {
		return NewConfigWatcherError("watcher is already running", nil)
	}
	if err := dw.watcher.Watch(dw.path, dw.handleChange); err != nil {
		return NewConfigWatcherError("failed to watch config document", err)
	}
	if err := dw.watcher.Start(); err != nil {
		return NewConfigWatcherError("failed to start argus watcher", err)
	}
	dw.running.Store(true)

	dw.logger.Info("Configuration document watcher started",
		"path", dw.path,
		"poll_interval", dw.options.PollInterval)
	return nil
}

// Stop stops watching. It is safe to call concurrently; only the first call
// stops the underlying argus watcher.
func (dw *DocumentWatcher) Stop() error {
	if dw.stopped.Load() {
		return NewConfigWatcherError("watcher is already stopped", nil)
	}

	var stopErr error
	dw.stopOnce.Do(func() {
		dw.mu.Lock()
		defer dw.mu.Unlock()

		dw.stopped.Store(true)
		if !dw.running.Swap(false) {
			return
		}
		if err := dw.watcher.Stop(); err != nil {
			stopErr = NewConfigWatcherError("failed to stop argus watcher", err)
			return
		}
		dw.logger.Info("Configuration document watcher stopped")
	})
	return stopErr
}

// IsRunning reports whether the watcher is active.
func (dw *DocumentWatcher) IsRunning() bool {
	return dw.running.Load()
}

// Reloads returns how many edits were applied to the store.
func (dw *DocumentWatcher) Reloads() int64 {
	return dw.reloads.Load()
}

// Errors returns how many watch or reload errors occurred.
func (dw *DocumentWatcher) Errors() int64 {
	return dw.errors.Load()
}

func (dw *DocumentWatcher) handleChange(event argus.ChangeEvent) {
	defer withStackRecover(dw.logger, "document_watcher")()

	dw.logger.Debug("Configuration document change detected",
		"path", event.Path,
		"mod_time", event.ModTime,
		"size", event.Size,
		"is_create", event.IsCreate,
		"is_delete", event.IsDelete,
		"is_modify", event.IsModify)

	if event.IsDelete {
		dw.logger.Warn("Configuration document was deleted, keeping current configuration", "path", event.Path)
		return
	}

	changed, err := dw.store.Reload()
	if err != nil {
		dw.errors.Add(1)
		return
	}
	if changed {
		dw.reloads.Add(1)
	}
}
