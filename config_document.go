// config_document.go: On-disk representation of the configuration
//
// ConfigDocument owns the bytes of the persisted document. It loads the
// document with legacy renames, structural backfills and plugin property
// reconciliation applied, recovers from corrupt documents, and skips writes
// that would not change the file.
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package agentconfig

import (
	"bytes"
	"encoding/json"
	stderrors "errors"
	"io/fs"
	"sync"

	"github.com/agilira/argus"
	"github.com/tidwall/pretty"
	"gopkg.in/yaml.v3"
)

// invalidBackupSuffix is appended to the document path when a corrupt
// document is preserved before falling back to defaults.
const invalidBackupSuffix = ".invalid-orig"

var documentJSONOptions = &pretty.Options{Width: 80, Indent: "  "}

// errOriginalNotBackedUp blocks writes over a corrupt document whose bytes
// could not be copied aside.
var errOriginalNotBackedUp = stderrors.New("corrupt document could not be backed up, refusing to overwrite it")

// configDocument is the wire shape. Field order is output order. Version
// tokens are derived and never stored.
type configDocument struct {
	General         GeneralConfig           `json:"general" yaml:"general"`
	Storage         StorageConfig           `json:"storage" yaml:"storage"`
	UserInterface   UserInterfaceConfig     `json:"ui" yaml:"ui"`
	UserRecording   UserRecordingConfig     `json:"userRecording" yaml:"userRecording"`
	Advanced        AdvancedConfig          `json:"advanced" yaml:"advanced"`
	Plugins         []pluginDocument        `json:"plugins" yaml:"plugins"`
	Instrumentation []InstrumentationConfig `json:"instrumentation" yaml:"instrumentation"`
	Gauges          *[]GaugeConfig          `json:"gauges" yaml:"gauges"`
	Alerts          []AlertConfig           `json:"alerts" yaml:"alerts"`
}

// pluginDocument keeps Enabled as a pointer so an entry without the key can
// be told apart from one that disables the plugin.
type pluginDocument struct {
	ID         string           `json:"id" yaml:"id"`
	Enabled    *bool            `json:"enabled,omitempty" yaml:"enabled,omitempty"`
	Properties PluginProperties `json:"properties,omitempty" yaml:"properties,omitempty"`
}

// newDocumentWithDefaults pre-populates the singleton sections so that keys
// missing from the document keep their default values after decoding.
func newDocumentWithDefaults() *configDocument {
	return &configDocument{
		General:       DefaultGeneralConfig(),
		Storage:       DefaultStorageConfig(),
		UserInterface: DefaultUserInterfaceConfig(),
		UserRecording: DefaultUserRecordingConfig(),
		Advanced:      DefaultAdvancedConfig(),
	}
}

func documentFromConfig(cfg *Config) *configDocument {
	plugins := make([]pluginDocument, len(cfg.Plugins))
	for i, p := range cfg.Plugins {
		enabled := p.Enabled
		plugins[i] = pluginDocument{ID: p.ID, Enabled: &enabled, Properties: p.Properties}
	}
	gauges := nonNil(cfg.Gauges)
	return &configDocument{
		General:         cfg.General,
		Storage:         cfg.Storage,
		UserInterface:   cfg.UserInterface,
		UserRecording:   cfg.UserRecording,
		Advanced:        cfg.Advanced,
		Plugins:         plugins,
		Instrumentation: nonNil(cfg.Instrumentation),
		Gauges:          &gauges,
		Alerts:          nonNil(cfg.Alerts),
	}
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}

// ConfigDocument reads and writes the persisted configuration document.
// The format (JSON or YAML) follows the file extension.
type ConfigDocument struct {
	path   string
	format argus.ConfigFormat
	logger Logger

	mu          sync.Mutex
	lastContent []byte // last content read from or written to path
	unbacked    []byte // corrupt content still on disk without a backup
}

// NewConfigDocument creates a document bound to path. The file does not need
// to exist.
func NewConfigDocument(path string, logger any) (*ConfigDocument, error) {
	cleanPath, err := cleanDocumentPath(path)
	if err != nil {
		return nil, NewConfigPathError(path, err.Error())
	}
	return &ConfigDocument{
		path:   cleanPath,
		format: documentFormat(cleanPath),
		logger: NewLogger(logger),
	}, nil
}

// Path returns the absolute document path.
func (d *ConfigDocument) Path() string {
	return d.path
}

// Load returns the effective configuration and never fails:
//   - missing document: defaults, persisted
//   - unreadable document: defaults, not persisted
//   - corrupt document: original bytes copied to <path>.invalid-orig, then
//     defaults, persisted only when the copy succeeded. Otherwise every
//     later Write retries the copy first and fails while it keeps failing.
//   - valid document: migrated, backfilled and reconciled; written back only
//     when that changed the serialized content
func (d *ConfigDocument) Load(catalog PluginCatalog) *Config {
	content, err := readFileSecurely(d.path)
	if err != nil {
		if stderrors.Is(err, fs.ErrNotExist) {
			d.logger.Info("Configuration document not found, creating defaults", "path", d.path)
			cfg := DefaultConfig(catalog)
			d.writeBestEffort(cfg)
			return cfg
		}
		d.logger.Error("Failed to read configuration document, running with defaults",
			"path", d.path, "error", err)
		return DefaultConfig(catalog)
	}

	cfg, err := d.Parse(content, catalog)
	if err != nil {
		d.logger.Error("Configuration document is invalid, falling back to defaults",
			"path", d.path, "error", err)
		cfg = DefaultConfig(catalog)
		if d.backupInvalid(content) {
			d.writeBestEffort(cfg)
		} else {
			d.mu.Lock()
			d.unbacked = content
			d.mu.Unlock()
		}
		return cfg
	}

	d.remember(content)
	d.writeBestEffort(cfg)
	return cfg
}

// LoadIfChanged re-reads the document after an external edit. It returns
// (nil, nil) when the file holds exactly what this document last read or
// wrote. Unlike Load it reports read and parse failures and leaves the file
// untouched, so a bad manual edit never replaces a good running config.
func (d *ConfigDocument) LoadIfChanged(catalog PluginCatalog) (*Config, error) {
	content, err := readFileSecurely(d.path)
	if err != nil {
		return nil, NewConfigFileError(d.path, "read", err)
	}
	if d.isLastContent(content) {
		return nil, nil
	}
	cfg, err := d.Parse(content, catalog)
	if err != nil {
		return nil, err
	}
	d.remember(content)
	return cfg, nil
}

// Parse decodes document content: legacy renames are applied to the raw
// bytes, then the document is decoded, backfilled and reconciled against
// catalog.
func (d *ConfigDocument) Parse(content []byte, catalog PluginCatalog) (*Config, error) {
	migrated, renamed := applyLegacyRenames(content, d.format)
	if len(renamed) > 0 {
		d.logger.Info("Applied legacy field renames", "path", d.path, "fields", renamed)
	}

	if err := checkDocumentRoot(migrated, d.format); err != nil {
		return nil, NewConfigParseError(d.path, err)
	}
	doc := newDocumentWithDefaults()
	if err := decodeDocument(migrated, d.format, doc); err != nil {
		return nil, NewConfigParseError(d.path, err)
	}
	return d.backfill(doc, catalog), nil
}

func (d *ConfigDocument) backfill(doc *configDocument, catalog PluginCatalog) *Config {
	cfg := &Config{
		General:       doc.General,
		UserRecording: doc.UserRecording,
		Advanced:      doc.Advanced,
	}

	var changed bool
	if cfg.Storage, changed = backfillStorage(doc.Storage); changed {
		d.logger.Info("Backfilled storage rollup settings", "levels", RollupLevels)
	}

	cfg.Instrumentation = dedupeBy(nonNil(doc.Instrumentation), InstrumentationConfig.Version, d.logDuplicate("capture point"))
	cfg.Alerts = dedupeBy(nonNil(doc.Alerts), AlertConfig.Version, d.logDuplicate("alert"))

	if cfg.UserInterface, changed = backfillDefaultTransactionType(doc.UserInterface.normalized(), catalog, cfg.Instrumentation); changed {
		d.logger.Info("Derived default displayed transaction type",
			"transaction_type", cfg.UserInterface.DefaultDisplayedTransactionType)
	}

	if doc.Gauges == nil {
		d.logger.Info("Gauges section absent, installing default gauges")
		cfg.Gauges = DefaultGauges()
	} else {
		cfg.Gauges = dedupeBy(nonNil(*doc.Gauges),
			func(g GaugeConfig) string { return g.MBeanObjectName },
			d.logDuplicate("gauge"))
	}

	stored := make([]PluginConfig, 0, len(doc.Plugins))
	for _, p := range doc.Plugins {
		enabled := true
		if p.Enabled != nil {
			enabled = *p.Enabled
		}
		stored = append(stored, PluginConfig{ID: p.ID, Enabled: enabled, Properties: p.Properties})
	}
	var dropped []string
	cfg.Plugins, dropped = reconcileAll(catalog, stored)
	if len(dropped) > 0 {
		d.logger.Warn("Dropped configuration of unknown plugins", "plugin_ids", dropped)
	}
	return cfg
}

func (d *ConfigDocument) logDuplicate(entity string) func(string) {
	return func(key string) {
		d.logger.Warn("Dropped duplicate "+entity+" from document", "key", key)
	}
}

// dedupeBy keeps the first item for each key.
func dedupeBy[T any](items []T, key func(T) string, onDuplicate func(string)) []T {
	seen := make(map[string]struct{}, len(items))
	out := make([]T, 0, len(items))
	for _, item := range items {
		k := key(item)
		if _, dup := seen[k]; dup {
			onDuplicate(k)
			continue
		}
		seen[k] = struct{}{}
		out = append(out, item)
	}
	return out
}

// Marshal serializes cfg in the document's format. The output is
// deterministic: equal configs always produce equal bytes.
func (d *ConfigDocument) Marshal(cfg *Config) ([]byte, error) {
	doc := documentFromConfig(cfg)

	var buf bytes.Buffer
	if d.format == argus.FormatYAML {
		encoder := yaml.NewEncoder(&buf)
		encoder.SetIndent(2)
		if err := encoder.Encode(doc); err != nil {
			return nil, NewSerializationError("config document", err)
		}
		if err := encoder.Close(); err != nil {
			return nil, NewSerializationError("config document", err)
		}
		return buf.Bytes(), nil
	}

	encoder := json.NewEncoder(&buf)
	encoder.SetEscapeHTML(false)
	if err := encoder.Encode(doc); err != nil {
		return nil, NewSerializationError("config document", err)
	}
	return pretty.PrettyOptions(buf.Bytes(), documentJSONOptions), nil
}

// Write persists cfg, skipping the write when the serialized content is
// byte-identical to what was last read or written. It fails without touching
// the file while a corrupt original remains unbacked.
func (d *ConfigDocument) Write(cfg *Config) error {
	return d.write(cfg, false)
}

// Replace persists cfg unconditionally, discarding whatever the file holds,
// including a corrupt original that was never backed up.
func (d *ConfigDocument) Replace(cfg *Config) error {
	return d.write(cfg, true)
}

func (d *ConfigDocument) write(cfg *Config, replace bool) error {
	content, err := d.Marshal(cfg)
	if err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if !replace {
		if d.unbacked != nil {
			if !d.backupInvalid(d.unbacked) {
				return NewConfigFileError(d.path, "write", errOriginalNotBackedUp)
			}
			d.unbacked = nil
		}
		if d.lastContent != nil && bytes.Equal(content, d.lastContent) {
			d.logger.Debug("Configuration document unchanged, skipping write", "path", d.path)
			return nil
		}
	}
	if err := writeFileSecurely(d.path, content); err != nil {
		return NewConfigFileError(d.path, "write", err)
	}
	d.lastContent = content
	d.unbacked = nil
	return nil
}

func (d *ConfigDocument) writeBestEffort(cfg *Config) {
	if err := d.Write(cfg); err != nil {
		d.logger.Error("Failed to persist configuration document", "path", d.path, "error", err)
	}
}

// backupInvalid copies the original bytes of a corrupt document next to it.
func (d *ConfigDocument) backupInvalid(content []byte) bool {
	backupPath := d.path + invalidBackupSuffix
	if err := writeFileSecurely(backupPath, content); err != nil {
		d.logger.Warn("Failed to back up invalid configuration document",
			"path", d.path, "backup_path", backupPath, "error", err)
		return false
	}
	d.logger.Warn("Invalid configuration document backed up", "backup_path", backupPath)
	return true
}

// remember records valid content read from path; it replaced any corrupt
// original.
func (d *ConfigDocument) remember(content []byte) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.lastContent = content
	d.unbacked = nil
}

func (d *ConfigDocument) isLastContent(content []byte) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.lastContent != nil && bytes.Equal(content, d.lastContent)
}
