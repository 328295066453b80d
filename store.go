// store.go: Versioned configuration store with optimistic concurrency
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package agentconfig

import (
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/agilira/argus"
	"github.com/agilira/go-timecache"
)

// DefaultDocumentFileName is the document name used when StoreOptions does not set one.
const DefaultDocumentFileName = "config.json"

// StoreOptions configures a Store.
//
// Example usage:
//
//	options := agentconfig.DefaultStoreOptions()
//	options.FileName = "agent.yaml"
//	options.Audit.Enabled = true
//	store, err := agentconfig.NewStore("/var/lib/agent", catalog, options, logger)
type StoreOptions struct {
	// FileName of the document inside the data directory. A .yaml or .yml
	// extension selects the YAML codec, anything else JSON.
	FileName string `json:"file_name"`

	// Audit configures the argus audit trail of committed changes.
	Audit argus.AuditConfig `json:"audit_config"`

	// Metrics receives store counters and timings.
	Metrics MetricsCollector `json:"-"`
}

// DefaultStoreOptions returns options with auditing disabled and an
// in-memory metrics collector.
func DefaultStoreOptions() StoreOptions {
	return StoreOptions{
		FileName: DefaultDocumentFileName,
		Audit: argus.AuditConfig{
			Enabled:       false,
			OutputFile:    "agentconfig-audit.jsonl",
			MinLevel:      argus.AuditInfo,
			BufferSize:    1000,
			FlushInterval: 5 * time.Second,
		},
		Metrics: NewDefaultMetricsCollector(),
	}
}

// StoreStats is a point-in-time view of the store's activity.
type StoreStats struct {
	Generation       uint64    `json:"generation"`
	LastCommit       time.Time `json:"last_commit"`
	Commits          int64     `json:"commits"`
	Conflicts        int64     `json:"conflicts"`
	Rejected         int64     `json:"rejected"`
	WriteFailures    int64     `json:"write_failures"`
	ListenerFailures int64     `json:"listener_failures"`
	Reloads          int64     `json:"reloads"`
}

// Store is the in-memory authority over the agent configuration.
//
// Readers get the current snapshot without locking. Writers go through a
// single write lock that covers validate, persist and swap: a commit becomes
// visible only after the document was written, and every later read observes
// it or a newer generation. Listeners are notified after the lock is released.
type Store struct {
	document  *ConfigDocument
	catalog   PluginCatalog
	logger    Logger
	options   StoreOptions
	versioner *ContentVersioner

	current atomic.Pointer[Config]
	writeMu sync.Mutex

	listeners   *ListenerRegistry
	metrics     MetricsCollector
	auditLogger *argus.AuditLogger

	generation    atomic.Uint64
	lastCommit    atomic.Int64
	commits       atomic.Int64
	conflicts     atomic.Int64
	rejected      atomic.Int64
	writeFailures atomic.Int64
	reloads       atomic.Int64

	closed    atomic.Bool
	closeOnce sync.Once
}

// NewStore loads (or creates) the document in dataDir and returns a store
// holding its configuration. Corrupt or unreadable documents never fail
// construction; they are recovered to defaults. Errors are returned only for
// an invalid catalog, an unusable path or a failing audit setup.
func NewStore(dataDir string, catalog PluginCatalog, options StoreOptions, logger any) (*Store, error) {
	internalLogger := NewLogger(logger)

	if err := catalog.Validate(); err != nil {
		return nil, err
	}
	if options.FileName == "" {
		options.FileName = DefaultDocumentFileName
	}
	if options.Metrics == nil {
		options.Metrics = NewDefaultMetricsCollector()
	}

	document, err := NewConfigDocument(filepath.Join(dataDir, options.FileName), internalLogger)
	if err != nil {
		return nil, err
	}

	s := &Store{
		document:  document,
		catalog:   catalog.clone(),
		logger:    internalLogger,
		options:   options,
		versioner: NewContentVersioner(internalLogger),
		listeners: NewListenerRegistry(internalLogger, options.Metrics),
		metrics:   options.Metrics,
	}

	if options.Audit.Enabled {
		if err := s.setupAuditLogging(); err != nil {
			return nil, err
		}
	}

	cfg := document.Load(s.catalog)
	s.publish(cfg)
	s.metrics.SetGauge(MetricRegisteredPlugins, nil, float64(len(cfg.Plugins)))

	internalLogger.Info("Configuration store ready",
		"path", document.Path(),
		"plugins", len(cfg.Plugins),
		"gauges", len(cfg.Gauges))
	return s, nil
}

func (s *Store) setupAuditLogging() error {
	auditConfig := s.options.Audit
	if auditConfig.OutputFile != "" && !filepath.IsAbs(auditConfig.OutputFile) {
		auditConfig.OutputFile = filepath.Join(filepath.Dir(s.document.Path()), auditConfig.OutputFile)
	}
	if auditConfig.OutputFile != "" {
		if err := os.MkdirAll(filepath.Dir(auditConfig.OutputFile), 0750); err != nil {
			return NewAuditError("failed to create audit directory", err)
		}
	}

	auditor, err := argus.NewAuditLogger(auditConfig)
	if err != nil {
		return NewAuditError("failed to create audit logger", err)
	}
	s.auditLogger = auditor
	s.logger.Info("Configuration audit logging configured", "file", auditConfig.OutputFile)
	return nil
}

// publish swaps in a new snapshot. Callers hold writeMu, except during construction.
func (s *Store) publish(cfg *Config) uint64 {
	s.current.Store(cfg)
	s.lastCommit.Store(timecache.CachedTimeNano())
	generation := s.generation.Add(1)
	s.metrics.SetGauge(MetricGeneration, nil, float64(generation))
	return generation
}

// Snapshot returns the live configuration. The value is shared with other
// readers and must not be modified; use Clone for a private copy.
func (s *Store) Snapshot() *Config {
	return s.current.Load()
}

// GeneralConfig returns the current general section.
func (s *Store) GeneralConfig() GeneralConfig {
	return s.current.Load().General
}

// StorageConfig returns the current storage section.
func (s *Store) StorageConfig() StorageConfig {
	return s.current.Load().Storage.clone()
}

// UserInterfaceConfig returns the current UI section.
func (s *Store) UserInterfaceConfig() UserInterfaceConfig {
	return s.current.Load().UserInterface.clone()
}

// UserRecordingConfig returns the current user recording section.
func (s *Store) UserRecordingConfig() UserRecordingConfig {
	return s.current.Load().UserRecording
}

// AdvancedConfig returns the current advanced section.
func (s *Store) AdvancedConfig() AdvancedConfig {
	return s.current.Load().Advanced
}

// PluginDescriptors returns a copy of the catalog the store was built with.
func (s *Store) PluginDescriptors() PluginCatalog {
	return s.catalog.clone()
}

// DocumentPath returns the absolute path of the persisted document.
func (s *Store) DocumentPath() string {
	return s.document.Path()
}

// Metrics returns the collector the store reports to.
func (s *Store) Metrics() MetricsCollector {
	return s.metrics
}

// AddConfigListener registers a listener for every committed change.
// The returned function unregisters it.
func (s *Store) AddConfigListener(listener ConfigListener) (remove func()) {
	return s.listeners.AddGlobal(listener)
}

// AddPluginConfigListener registers a listener for changes to one plugin's
// config and to the general enabled toggle.
func (s *Store) AddPluginConfigListener(pluginID string, listener ConfigListener) (remove func()) {
	return s.listeners.AddPlugin(pluginID, listener)
}

// Stats returns the store's counters.
func (s *Store) Stats() StoreStats {
	return StoreStats{
		Generation:       s.generation.Load(),
		LastCommit:       time.Unix(0, s.lastCommit.Load()),
		Commits:          s.commits.Load(),
		Conflicts:        s.conflicts.Load(),
		Rejected:         s.rejected.Load(),
		WriteFailures:    s.writeFailures.Load(),
		ListenerFailures: s.listeners.Failures(),
		Reloads:          s.reloads.Load(),
	}
}

// commitResult is produced by a mutation under the write lock.
type commitResult struct {
	next         *Config
	priorVersion string
	version      string
	notify       notification
	noop         bool
}

// mutation computes the next snapshot from the current one. It must not
// modify current.
type mutation func(current *Config) (commitResult, error)

// commit runs the single write path: lock, mutate a copy, persist, swap,
// unlock, notify.
func (s *Store) commit(entity string, mutate mutation) (string, error) {
	start := timecache.CachedTimeNano()

	s.writeMu.Lock()
	if s.closed.Load() {
		s.writeMu.Unlock()
		return "", NewStoreClosedError()
	}

	result, err := mutate(s.current.Load())
	if err != nil {
		s.writeMu.Unlock()
		s.recordRejection(entity, err)
		return "", err
	}
	if result.noop {
		s.writeMu.Unlock()
		s.logger.Debug("Mutation left content unchanged", "entity", entity, "version", result.version)
		return result.version, nil
	}

	if err := s.document.Write(result.next); err != nil {
		s.writeMu.Unlock()
		s.writeFailures.Add(1)
		s.metrics.IncrementCounter(MetricWriteFailures, map[string]string{"entity": entity}, 1)
		s.logger.Error("Failed to persist configuration, commit discarded",
			"entity", entity, "error", err)
		return "", err
	}
	generation := s.publish(result.next)
	s.audit("config_committed", map[string]interface{}{
		"entity":        entity,
		"prior_version": result.priorVersion,
		"new_version":   result.version,
		"generation":    generation,
	})
	s.writeMu.Unlock()

	s.commits.Add(1)
	s.metrics.IncrementCounter(MetricCommits, map[string]string{"entity": entity}, 1)
	s.metrics.RecordHistogram(MetricCommitDuration, nil, float64(timecache.CachedTimeNano()-start)/1e6)
	s.logger.Debug("Configuration committed",
		"entity", entity,
		"version", result.version,
		"generation", generation)

	s.listeners.notify(result.notify)
	return result.version, nil
}

func (s *Store) recordRejection(entity string, err error) {
	if IsOptimisticLockError(err) {
		s.conflicts.Add(1)
		s.metrics.IncrementCounter(MetricConflicts, map[string]string{"entity": entity}, 1)
		s.logger.Warn("Optimistic lock conflict", "entity", entity, "error", err)
		return
	}
	s.rejected.Add(1)
	s.metrics.IncrementCounter(MetricRejected, map[string]string{"entity": entity}, 1)
	s.logger.Warn("Configuration change rejected", "entity", entity, "error", err)
}

// audit records an event in the audit trail. Callers hold writeMu.
func (s *Store) audit(eventType string, context map[string]interface{}) {
	if s.auditLogger == nil {
		return
	}
	context["component"] = "agentconfig"
	context["path"] = s.document.Path()
	s.auditLogger.LogSecurityEvent(eventType, "Configuration store event", context)
}

// ResetAll replaces the persisted document with defaults. Intended for
// tests and operators; every global and plugin listener is notified. If the
// defaults cannot be written, the document and the snapshot are left as they
// were.
func (s *Store) ResetAll() error {
	s.writeMu.Lock()
	if s.closed.Load() {
		s.writeMu.Unlock()
		return NewStoreClosedError()
	}
	cfg := DefaultConfig(s.catalog)
	if err := s.document.Replace(cfg); err != nil {
		s.writeMu.Unlock()
		s.writeFailures.Add(1)
		s.metrics.IncrementCounter(MetricWriteFailures, map[string]string{"entity": "reset"}, 1)
		s.logger.Error("Failed to persist default configuration, reset discarded", "error", err)
		return err
	}
	generation := s.publish(cfg)
	s.audit("config_reset", map[string]interface{}{"generation": generation})
	s.writeMu.Unlock()

	s.commits.Add(1)
	s.logger.Info("Configuration reset to defaults", "generation", generation)

	s.listeners.notify(notification{global: true, allPlugins: true})
	return nil
}

// Reload re-reads the document after an external edit and reports whether
// the effective configuration changed. Content the store wrote itself is
// recognised and ignored. A document that fails to parse leaves the store
// and the file untouched.
func (s *Store) Reload() (bool, error) {
	s.writeMu.Lock()
	if s.closed.Load() {
		s.writeMu.Unlock()
		return false, NewStoreClosedError()
	}

	cfg, err := s.document.LoadIfChanged(s.catalog)
	if err != nil {
		s.writeMu.Unlock()
		s.logger.Error("Failed to reload edited configuration document, keeping current configuration",
			"path", s.document.Path(), "error", err)
		return false, err
	}
	if cfg == nil || s.sameContent(s.current.Load(), cfg) {
		s.writeMu.Unlock()
		return false, nil
	}

	if err := s.document.Write(cfg); err != nil {
		s.logger.Warn("Failed to write back normalized configuration document", "error", err)
	}
	generation := s.publish(cfg)
	s.audit("config_reloaded", map[string]interface{}{"generation": generation})
	s.writeMu.Unlock()

	s.reloads.Add(1)
	s.metrics.IncrementCounter(MetricReloads, nil, 1)
	s.logger.Info("Configuration reloaded from edited document", "generation", generation)

	s.listeners.notify(notification{global: true, allPlugins: true})
	return true, nil
}

func (s *Store) sameContent(a, b *Config) bool {
	aBytes, aErr := s.document.Marshal(a)
	bBytes, bErr := s.document.Marshal(b)
	return aErr == nil && bErr == nil && string(aBytes) == string(bBytes)
}

// Close stops accepting mutations and flushes the audit trail. Reads keep
// working on the last snapshot.
func (s *Store) Close() error {
	var closeErr error
	s.closeOnce.Do(func() {
		s.writeMu.Lock()
		defer s.writeMu.Unlock()

		s.closed.Store(true)
		if s.auditLogger != nil {
			if err := s.auditLogger.Close(); err != nil {
				s.logger.Warn("Failed to close audit logger", "error", err)
				closeErr = NewAuditError("failed to close audit logger", err)
			}
			s.auditLogger = nil
		}
		s.logger.Info("Configuration store closed")
	})
	return closeErr
}
