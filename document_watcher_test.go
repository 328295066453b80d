// document_watcher_test.go: Tests for reloading the store after external edits
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package agentconfig

import (
	"os"
	"testing"
	"time"

	"github.com/agilira/argus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestWatcher(t *testing.T, store *Store, logger Logger) *DocumentWatcher {
	t.Helper()
	watcher, err := NewDocumentWatcher(store, WatcherOptions{
		PollInterval: 50 * time.Millisecond,
		CacheTTL:     25 * time.Millisecond,
	}, logger)
	require.NoError(t, err)
	return watcher
}

func modifyEvent(path string) argus.ChangeEvent {
	return argus.ChangeEvent{Path: path, ModTime: time.Now(), IsModify: true}
}

func TestNewDocumentWatcher_RequiresStore(t *testing.T) {
	_, err := NewDocumentWatcher(nil, DefaultWatcherOptions(), nil)
	require.Error(t, err)
	assert.True(t, HasErrorCode(err, ErrCodeConfigWatcherError))
}

func TestNewDocumentWatcher_NormalizesOptions(t *testing.T) {
	store, _, _ := newTestStore(t)

	watcher, err := NewDocumentWatcher(store, WatcherOptions{PollInterval: time.Second, CacheTTL: 5 * time.Second}, nil)
	require.NoError(t, err)
	assert.Equal(t, 500*time.Millisecond, watcher.options.CacheTTL)

	watcher, err = NewDocumentWatcher(store, WatcherOptions{}, nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultWatcherOptions().PollInterval, watcher.options.PollInterval)
}

func TestDocumentWatcher_ExternalEditReloadsStore(t *testing.T) {
	store, logger, env := newTestStore(t)
	watcher := newTestWatcher(t, store, logger)

	global := &countingListener{}
	plugin := &countingListener{}
	store.AddConfigListener(global)
	store.AddPluginConfigListener("servlet", plugin)

	env.CreateTempFile(DefaultDocumentFileName, `{
  "general": {"enabled": true, "traceStoreThresholdMillis": 750, "profilingIntervalMillis": 1000},
  "plugins": [{"id": "servlet", "enabled": false}]
}`)
	watcher.handleChange(modifyEvent(store.DocumentPath()))

	assert.Equal(t, 750, store.GeneralConfig().TraceStoreThresholdMillis)
	servlet, err := store.PluginConfig("servlet")
	require.NoError(t, err)
	assert.False(t, servlet.Enabled)

	assert.Equal(t, int64(1), watcher.Reloads())
	assert.Equal(t, int64(1), store.Stats().Reloads)
	assert.Equal(t, int64(1), global.Calls())
	assert.Equal(t, int64(1), plugin.Calls())

	// The normalized document was written back with backfilled sections.
	content := env.ReadFile(DefaultDocumentFileName)
	assert.Contains(t, content, `"gauges"`)
	assert.Contains(t, content, `"sessionUserAttribute"`)
}

func TestDocumentWatcher_IgnoresOwnWrites(t *testing.T) {
	store, logger, _ := newTestStore(t)
	watcher := newTestWatcher(t, store, logger)

	general := store.GeneralConfig()
	general.TraceStoreThresholdMillis = 42
	_, err := store.UpdateGeneralConfig(general, store.GeneralConfig().Version())
	require.NoError(t, err)
	generation := store.Stats().Generation

	watcher.handleChange(modifyEvent(store.DocumentPath()))

	assert.Equal(t, int64(0), watcher.Reloads())
	assert.Equal(t, generation, store.Stats().Generation)
}

func TestDocumentWatcher_BadEditKeepsConfiguration(t *testing.T) {
	store, logger, env := newTestStore(t)
	watcher := newTestWatcher(t, store, logger)
	before := store.Snapshot()

	env.CreateTempFile(DefaultDocumentFileName, `{"general": {"enabled": `)
	watcher.handleChange(modifyEvent(store.DocumentPath()))

	assert.Same(t, before, store.Snapshot())
	assert.Equal(t, int64(1), watcher.Errors())
	assert.Equal(t, `{"general": {"enabled": `, env.ReadFile(DefaultDocumentFileName), "the operator's file is left as is")
	assert.True(t, logger.HasMessageContaining("ERROR", "keeping current configuration"))
}

func TestDocumentWatcher_EquivalentEditIsNotAChange(t *testing.T) {
	store, logger, env := newTestStore(t)
	watcher := newTestWatcher(t, store, logger)
	listener := &countingListener{}
	store.AddConfigListener(listener)

	// Reformatted but equivalent: only the defaults, compact.
	env.CreateTempFile(DefaultDocumentFileName, `{}`)
	watcher.handleChange(modifyEvent(store.DocumentPath()))

	assert.Equal(t, int64(0), watcher.Reloads())
	assert.Equal(t, int64(0), listener.Calls())
}

func TestDocumentWatcher_DeleteIsIgnored(t *testing.T) {
	store, logger, _ := newTestStore(t)
	watcher := newTestWatcher(t, store, logger)
	before := store.Snapshot()

	require.NoError(t, os.Remove(store.DocumentPath()))
	watcher.handleChange(argus.ChangeEvent{Path: store.DocumentPath(), IsDelete: true})

	assert.Same(t, before, store.Snapshot())
	assert.Equal(t, int64(0), watcher.Errors())
	assert.True(t, logger.HasMessageContaining("WARN", "deleted"))
}

func TestDocumentWatcher_StartStop(t *testing.T) {
	store, logger, env := newTestStore(t)
	watcher := newTestWatcher(t, store, logger)

	require.NoError(t, watcher.Start())
	assert.True(t, watcher.IsRunning())
	assert.Error(t, watcher.Start(), "already running")

	env.CreateTempFile(DefaultDocumentFileName, `{"general": {"enabled": false, "traceStoreThresholdMillis": 3000}}`)
	assert.Eventually(t, func() bool {
		return store.GeneralConfig().TraceStoreThresholdMillis == 3000
	}, 5*time.Second, 20*time.Millisecond)
	assert.False(t, store.GeneralConfig().Enabled)

	require.NoError(t, watcher.Stop())
	assert.False(t, watcher.IsRunning())
	assert.Error(t, watcher.Stop(), "already stopped")
	assert.Error(t, watcher.Start(), "a stopped watcher cannot be restarted")
}
