// config.go: Configuration aggregate and versioned sections
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package agentconfig

import (
	"math"
	"slices"
	"strings"
)

// GeneralConfig holds the agent-wide switches.
//
// Enabled is the master capture toggle. Plugins gate their behavior on it, so
// a commit that flips it notifies every plugin listener in addition to the
// global listeners.
type GeneralConfig struct {
	Enabled                   bool `json:"enabled" yaml:"enabled"`
	TraceStoreThresholdMillis int  `json:"traceStoreThresholdMillis" yaml:"traceStoreThresholdMillis"`
	ProfilingIntervalMillis   int  `json:"profilingIntervalMillis" yaml:"profilingIntervalMillis"`
}

// Version returns the content version of the section.
func (c GeneralConfig) Version() string {
	return defaultVersioner().Hash(c)
}

// Validate checks the section for values the agent cannot run with.
func (c GeneralConfig) Validate() error {
	if c.TraceStoreThresholdMillis < 0 {
		return NewInvalidEntityError("general config", "trace store threshold must not be negative")
	}
	if c.ProfilingIntervalMillis < 0 {
		return NewInvalidEntityError("general config", "profiling interval must not be negative")
	}
	return nil
}

// StorageConfig holds the retention policy. The list-valued fields have one
// entry per rollup level; their cardinality is fixed by the defaults and
// repaired on load.
type StorageConfig struct {
	RollupExpirationHours       []int `json:"rollupExpirationHours" yaml:"rollupExpirationHours"`
	TraceExpirationHours        int   `json:"traceExpirationHours" yaml:"traceExpirationHours"`
	RollupCappedDatabaseSizesMb []int `json:"rollupCappedDatabaseSizesMb" yaml:"rollupCappedDatabaseSizesMb"`
	TraceCappedDatabaseSizeMb   int   `json:"traceCappedDatabaseSizeMb" yaml:"traceCappedDatabaseSizeMb"`
}

// Version returns the content version of the section.
func (c StorageConfig) Version() string {
	return defaultVersioner().Hash(c)
}

// Validate checks rollup cardinality and that every limit is positive.
func (c StorageConfig) Validate() error {
	if len(c.RollupExpirationHours) != RollupLevels {
		return NewInvalidEntityError("storage config", "rollup expiration hours must have one entry per rollup level")
	}
	if len(c.RollupCappedDatabaseSizesMb) != RollupLevels {
		return NewInvalidEntityError("storage config", "rollup capped database sizes must have one entry per rollup level")
	}
	for _, hours := range c.RollupExpirationHours {
		if hours <= 0 {
			return NewInvalidEntityError("storage config", "rollup expiration hours must be positive")
		}
	}
	for _, size := range c.RollupCappedDatabaseSizesMb {
		if size <= 0 {
			return NewInvalidEntityError("storage config", "rollup capped database sizes must be positive")
		}
	}
	if c.TraceExpirationHours <= 0 || c.TraceCappedDatabaseSizeMb <= 0 {
		return NewInvalidEntityError("storage config", "trace expiration and capped size must be positive")
	}
	return nil
}

func (c StorageConfig) clone() StorageConfig {
	out := c
	out.RollupExpirationHours = slices.Clone(c.RollupExpirationHours)
	out.RollupCappedDatabaseSizesMb = slices.Clone(c.RollupCappedDatabaseSizesMb)
	return out
}

// UserInterfaceConfig holds the settings of the embedded UI.
type UserInterfaceConfig struct {
	DefaultDisplayedTransactionType string    `json:"defaultDisplayedTransactionType,omitempty" yaml:"defaultDisplayedTransactionType,omitempty"`
	DefaultDisplayedPercentiles     []float64 `json:"defaultDisplayedPercentiles" yaml:"defaultDisplayedPercentiles"`
	Port                            int       `json:"port" yaml:"port"`
	SessionTimeoutMinutes           int       `json:"sessionTimeoutMinutes" yaml:"sessionTimeoutMinutes"`
}

// Version returns the content version of the section.
func (c UserInterfaceConfig) Version() string {
	return defaultVersioner().Hash(c)
}

// Validate checks the port range and that percentiles lie strictly inside (0, 100).
func (c UserInterfaceConfig) Validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return NewInvalidEntityError("ui config", "port out of range")
	}
	if c.SessionTimeoutMinutes < 0 {
		return NewInvalidEntityError("ui config", "session timeout must not be negative")
	}
	for _, p := range c.DefaultDisplayedPercentiles {
		if !(p > 0 && p < 100) {
			return NewInvalidEntityError("ui config", "percentiles must be between 0 and 100")
		}
	}
	return nil
}

func (c UserInterfaceConfig) clone() UserInterfaceConfig {
	out := c
	out.DefaultDisplayedPercentiles = slices.Clone(c.DefaultDisplayedPercentiles)
	return out
}

// normalized stores an unset percentile list as an empty one. Both codecs
// read an empty list back as empty, so the version survives a restart.
func (c UserInterfaceConfig) normalized() UserInterfaceConfig {
	if c.DefaultDisplayedPercentiles == nil {
		c.DefaultDisplayedPercentiles = []float64{}
	}
	return c
}

// UserRecordingConfig enables per-user profiling.
type UserRecordingConfig struct {
	Enabled               bool   `json:"enabled" yaml:"enabled"`
	User                  string `json:"user,omitempty" yaml:"user,omitempty"`
	ProfileIntervalMillis int    `json:"profileIntervalMillis" yaml:"profileIntervalMillis"`
}

// Version returns the content version of the section.
func (c UserRecordingConfig) Version() string {
	return defaultVersioner().Hash(c)
}

// Validate requires a user when recording is enabled.
func (c UserRecordingConfig) Validate() error {
	if c.Enabled && strings.TrimSpace(c.User) == "" {
		return NewInvalidEntityError("user recording config", "user is required when recording is enabled")
	}
	if c.ProfileIntervalMillis < 0 {
		return NewInvalidEntityError("user recording config", "profile interval must not be negative")
	}
	return nil
}

// AdvancedConfig holds tuning knobs that rarely need changing.
type AdvancedConfig struct {
	TimerWrapperMethods                   bool `json:"timerWrapperMethods" yaml:"timerWrapperMethods"`
	WeavingTimer                          bool `json:"weavingTimer" yaml:"weavingTimer"`
	ImmediatePartialStoreThresholdSeconds int  `json:"immediatePartialStoreThresholdSeconds" yaml:"immediatePartialStoreThresholdSeconds"`
	MaxAggregateTransactionsPerType       int  `json:"maxAggregateTransactionsPerType" yaml:"maxAggregateTransactionsPerType"`
	MaxAggregateQueriesPerType            int  `json:"maxAggregateQueriesPerType" yaml:"maxAggregateQueriesPerType"`
	MaxTraceEntriesPerTransaction         int  `json:"maxTraceEntriesPerTransaction" yaml:"maxTraceEntriesPerTransaction"`
	MaxStackTraceSamplesPerTransaction    int  `json:"maxStackTraceSamplesPerTransaction" yaml:"maxStackTraceSamplesPerTransaction"`
	CaptureThreadInfo                     bool `json:"captureThreadInfo" yaml:"captureThreadInfo"`
	CaptureGcActivity                     bool `json:"captureGcActivity" yaml:"captureGcActivity"`
	MBeanGaugeNotFoundDelaySeconds        int  `json:"mbeanGaugeNotFoundDelaySeconds" yaml:"mbeanGaugeNotFoundDelaySeconds"`
}

// Version returns the content version of the section.
func (c AdvancedConfig) Version() string {
	return defaultVersioner().Hash(c)
}

// Validate rejects negative limits.
func (c AdvancedConfig) Validate() error {
	limits := []int{
		c.ImmediatePartialStoreThresholdSeconds,
		c.MaxAggregateTransactionsPerType,
		c.MaxAggregateQueriesPerType,
		c.MaxTraceEntriesPerTransaction,
		c.MaxStackTraceSamplesPerTransaction,
		c.MBeanGaugeNotFoundDelaySeconds,
	}
	for _, limit := range limits {
		if limit < 0 {
			return NewInvalidEntityError("advanced config", "limits must not be negative")
		}
	}
	return nil
}

// PluginConfig is the runtime configuration of one plugin. After load its
// property key set is exactly the plugin's declared schema.
type PluginConfig struct {
	ID         string           `json:"id" yaml:"id"`
	Enabled    bool             `json:"enabled" yaml:"enabled"`
	Properties PluginProperties `json:"properties,omitempty" yaml:"properties,omitempty"`
}

// Version returns the content version of the plugin config.
func (c PluginConfig) Version() string {
	return defaultVersioner().Hash(c)
}

// Property returns the value of the named property.
func (c PluginConfig) Property(name string) (PropertyValue, bool) {
	return c.Properties.Get(name)
}

// BoolProperty returns the named boolean property, false when unset or of another type.
func (c PluginConfig) BoolProperty(name string) bool {
	value, _ := c.Properties.Get(name)
	b, _ := value.Bool()
	return b
}

// StringProperty returns the named string property, "" when unset or of another type.
func (c PluginConfig) StringProperty(name string) string {
	value, _ := c.Properties.Get(name)
	s, _ := value.Str()
	return s
}

// NumberProperty returns the named numeric property and whether it is set.
func (c PluginConfig) NumberProperty(name string) (float64, bool) {
	value, _ := c.Properties.Get(name)
	return value.Number()
}

func (c PluginConfig) clone() PluginConfig {
	out := c
	out.Properties = c.Properties.clone()
	return out
}

// GaugeConfig samples attributes of one mbean. The mbean object name is the
// natural key and is unique across the gauge list.
type GaugeConfig struct {
	MBeanObjectName     string   `json:"mbeanObjectName" yaml:"mbeanObjectName"`
	MBeanAttributeNames []string `json:"mbeanAttributeNames,omitempty" yaml:"mbeanAttributeNames,omitempty"`
}

// Version returns the content version of the gauge.
func (c GaugeConfig) Version() string {
	return defaultVersioner().Hash(c)
}

// Validate requires an object name of the form domain:key=value.
func (c GaugeConfig) Validate() error {
	domain, properties, ok := strings.Cut(c.MBeanObjectName, ":")
	if !ok || strings.TrimSpace(domain) == "" || !strings.Contains(properties, "=") {
		return NewInvalidEntityError("gauge", "mbean object name must have the form domain:key=value")
	}
	return nil
}

func (c GaugeConfig) clone() GaugeConfig {
	out := c
	out.MBeanAttributeNames = slices.Clone(c.MBeanAttributeNames)
	return out
}

// AlertConfig fires when a transaction type's percentile response time over a
// time period exceeds a threshold.
type AlertConfig struct {
	TransactionType     string   `json:"transactionType" yaml:"transactionType"`
	Percentile          float64  `json:"percentile" yaml:"percentile"`
	TimePeriodMinutes   int      `json:"timePeriodMinutes" yaml:"timePeriodMinutes"`
	ThresholdMillis     int      `json:"thresholdMillis" yaml:"thresholdMillis"`
	MinTransactionCount int      `json:"minTransactionCount" yaml:"minTransactionCount"`
	EmailAddresses      []string `json:"emailAddresses,omitempty" yaml:"emailAddresses,omitempty"`
}

// Version returns the content version of the alert.
func (c AlertConfig) Version() string {
	return defaultVersioner().Hash(c)
}

// Validate checks the alert thresholds and recipients.
func (c AlertConfig) Validate() error {
	if strings.TrimSpace(c.TransactionType) == "" {
		return NewInvalidEntityError("alert", "transaction type is required")
	}
	if math.IsNaN(c.Percentile) || c.Percentile <= 0 || c.Percentile >= 100 {
		return NewInvalidEntityError("alert", "percentile must be between 0 and 100")
	}
	if c.TimePeriodMinutes <= 0 {
		return NewInvalidEntityError("alert", "time period must be positive")
	}
	if c.ThresholdMillis < 0 || c.MinTransactionCount < 0 {
		return NewInvalidEntityError("alert", "threshold and minimum transaction count must not be negative")
	}
	for _, address := range c.EmailAddresses {
		if !strings.Contains(address, "@") {
			return NewInvalidEntityError("alert", "invalid email address "+address)
		}
	}
	return nil
}

func (c AlertConfig) clone() AlertConfig {
	out := c
	out.EmailAddresses = slices.Clone(c.EmailAddresses)
	return out
}

// Config is the complete agent configuration. A *Config held by the store is
// never modified: commits build a new value that shares the unchanged
// sections and lists with its predecessor.
type Config struct {
	General         GeneralConfig
	Storage         StorageConfig
	UserInterface   UserInterfaceConfig
	UserRecording   UserRecordingConfig
	Advanced        AdvancedConfig
	Plugins         []PluginConfig
	Instrumentation []InstrumentationConfig
	Gauges          []GaugeConfig
	Alerts          []AlertConfig
}

// Clone returns a deep copy that callers may modify freely.
func (c *Config) Clone() *Config {
	out := *c
	out.Storage = c.Storage.clone()
	out.UserInterface = c.UserInterface.clone()
	out.Plugins = cloneEach(c.Plugins, PluginConfig.clone)
	out.Instrumentation = cloneEach(c.Instrumentation, InstrumentationConfig.clone)
	out.Gauges = cloneEach(c.Gauges, GaugeConfig.clone)
	out.Alerts = cloneEach(c.Alerts, AlertConfig.clone)
	return &out
}

// shallow copies the aggregate only. Sections and list backing arrays are
// shared, which is safe because nothing mutates them in place.
func (c *Config) shallow() *Config {
	out := *c
	return &out
}

// Plugin returns the plugin config with the given id.
func (c *Config) Plugin(id string) (PluginConfig, bool) {
	if i := c.pluginIndex(id); i >= 0 {
		return c.Plugins[i], true
	}
	return PluginConfig{}, false
}

func (c *Config) pluginIndex(id string) int {
	return slices.IndexFunc(c.Plugins, func(p PluginConfig) bool { return p.ID == id })
}

func (c *Config) gaugeIndexByName(mbeanObjectName string) int {
	return slices.IndexFunc(c.Gauges, func(g GaugeConfig) bool { return g.MBeanObjectName == mbeanObjectName })
}

func indexByVersion[T any](versioner *ContentVersioner, items []T, version string) int {
	return slices.IndexFunc(items, func(item T) bool { return versioner.Hash(item) == version })
}

func cloneEach[T any](items []T, clone func(T) T) []T {
	if items == nil {
		return nil
	}
	out := make([]T, len(items))
	for i, item := range items {
		out[i] = clone(item)
	}
	return out
}

// Copy-on-write list edits. The input slice is never modified.

func withAppended[T any](items []T, item T) []T {
	out := make([]T, 0, len(items)+1)
	out = append(out, items...)
	return append(out, item)
}

func withReplaced[T any](items []T, i int, item T) []T {
	out := slices.Clone(items)
	out[i] = item
	return out
}

func withRemoved[T any](items []T, i int) []T {
	out := make([]T, 0, len(items)-1)
	out = append(out, items[:i]...)
	return append(out, items[i+1:]...)
}
