// instrumentation.go: Capture point definitions
//
// A capture point describes where and how the agent records a timing or
// trace event. The store keeps them opaque: it validates their shape and
// versions them, the weaving engine consumes them.
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package agentconfig

import (
	"maps"
	"slices"
	"strings"
)

// CaptureKind selects what a capture point records. The kinds form a strict
// containment order: TRANSACTION records a trace entry, TRACE_ENTRY records
// a metric. OTHER records nothing by itself and only gates properties.
type CaptureKind string

const (
	CaptureKindMetric      CaptureKind = "metric"
	CaptureKindTraceEntry  CaptureKind = "trace-entry"
	CaptureKindTransaction CaptureKind = "transaction"
	CaptureKindOther       CaptureKind = "other"
)

// Valid reports whether k is one of the known kinds.
func (k CaptureKind) Valid() bool {
	switch k {
	case CaptureKindMetric, CaptureKindTraceEntry, CaptureKindTransaction, CaptureKindOther:
		return true
	default:
		return false
	}
}

// IncludesMetric reports whether the capture point records a timer metric.
func (k CaptureKind) IncludesMetric() bool {
	return k == CaptureKindMetric || k.IncludesTraceEntry()
}

// IncludesTraceEntry reports whether the capture point records a trace entry.
func (k CaptureKind) IncludesTraceEntry() bool {
	return k == CaptureKindTraceEntry || k.IsTransaction()
}

// IsTransaction reports whether the capture point starts a transaction.
func (k CaptureKind) IsTransaction() bool {
	return k == CaptureKindTransaction
}

// MethodModifier restricts method matching.
type MethodModifier string

const (
	ModifierPublic         MethodModifier = "public"
	ModifierPrivate        MethodModifier = "private"
	ModifierProtected      MethodModifier = "protected"
	ModifierPackagePrivate MethodModifier = "package-private"
	ModifierStatic         MethodModifier = "static"
	ModifierNotStatic      MethodModifier = "not-static"
	ModifierAbstract       MethodModifier = "abstract"
)

func (m MethodModifier) valid() bool {
	switch m {
	case ModifierPublic, ModifierPrivate, ModifierProtected, ModifierPackagePrivate,
		ModifierStatic, ModifierNotStatic, ModifierAbstract:
		return true
	default:
		return false
	}
}

// InstrumentationConfig is a capture point. It has no natural key; its
// identity is its content version.
type InstrumentationConfig struct {
	// Empty MethodParameterTypes match no-arg methods only.
	ClassName            string           `json:"className" yaml:"className"`
	MethodName           string           `json:"methodName" yaml:"methodName"`
	MethodParameterTypes []string         `json:"methodParameterTypes,omitempty" yaml:"methodParameterTypes,omitempty"`
	MethodReturnType     string           `json:"methodReturnType,omitempty" yaml:"methodReturnType,omitempty"`
	MethodModifiers      []MethodModifier `json:"methodModifiers,omitempty" yaml:"methodModifiers,omitempty"`
	CaptureKind          CaptureKind      `json:"captureKind" yaml:"captureKind"`

	TimerName                      string `json:"timerName,omitempty" yaml:"timerName,omitempty"`
	TraceEntryTemplate             string `json:"traceEntryTemplate,omitempty" yaml:"traceEntryTemplate,omitempty"`
	TraceEntryStackThresholdMillis *int   `json:"traceEntryStackThresholdMillis,omitempty" yaml:"traceEntryStackThresholdMillis,omitempty"`
	TraceEntryCaptureSelfNested    bool   `json:"traceEntryCaptureSelfNested,omitempty" yaml:"traceEntryCaptureSelfNested,omitempty"`

	TransactionType                     string            `json:"transactionType,omitempty" yaml:"transactionType,omitempty"`
	TransactionNameTemplate             string            `json:"transactionNameTemplate,omitempty" yaml:"transactionNameTemplate,omitempty"`
	TransactionUserTemplate             string            `json:"transactionUserTemplate,omitempty" yaml:"transactionUserTemplate,omitempty"`
	TransactionCustomAttributeTemplates map[string]string `json:"transactionCustomAttributeTemplates,omitempty" yaml:"transactionCustomAttributeTemplates,omitempty"`
	TransactionSlowThresholdMillis      *int              `json:"transactionSlowThresholdMillis,omitempty" yaml:"transactionSlowThresholdMillis,omitempty"`

	// Names of plugin properties that gate the capture point (plugin-authored only).
	EnabledProperty           string `json:"enabledProperty,omitempty" yaml:"enabledProperty,omitempty"`
	TraceEntryEnabledProperty string `json:"traceEntryEnabledProperty,omitempty" yaml:"traceEntryEnabledProperty,omitempty"`
}

// Version returns the content version of the capture point.
func (c InstrumentationConfig) Version() string {
	return defaultVersioner().Hash(c)
}

// Validate checks the shape of the capture point.
func (c InstrumentationConfig) Validate() error {
	if strings.TrimSpace(c.ClassName) == "" {
		return NewInvalidEntityError("capture point", "class name is required")
	}
	if strings.TrimSpace(c.MethodName) == "" {
		return NewInvalidEntityError("capture point", "method name is required")
	}
	if !c.CaptureKind.Valid() {
		return NewInvalidEntityError("capture point", "unknown capture kind "+string(c.CaptureKind))
	}
	for _, modifier := range c.MethodModifiers {
		if !modifier.valid() {
			return NewInvalidEntityError("capture point", "unknown method modifier "+string(modifier))
		}
	}
	if c.CaptureKind.IncludesMetric() && strings.TrimSpace(c.TimerName) == "" {
		return NewInvalidEntityError("capture point", "timer name is required for "+string(c.CaptureKind))
	}
	if c.CaptureKind.IsTransaction() && strings.TrimSpace(c.TransactionType) == "" {
		return NewInvalidEntityError("capture point", "transaction type is required for transaction capture points")
	}
	if c.TraceEntryStackThresholdMillis != nil && *c.TraceEntryStackThresholdMillis < 0 {
		return NewInvalidEntityError("capture point", "trace entry stack threshold must not be negative")
	}
	if c.TransactionSlowThresholdMillis != nil && *c.TransactionSlowThresholdMillis < 0 {
		return NewInvalidEntityError("capture point", "transaction slow threshold must not be negative")
	}
	return nil
}

func (c InstrumentationConfig) clone() InstrumentationConfig {
	out := c
	out.MethodParameterTypes = slices.Clone(c.MethodParameterTypes)
	out.MethodModifiers = slices.Clone(c.MethodModifiers)
	out.TransactionCustomAttributeTemplates = maps.Clone(c.TransactionCustomAttributeTemplates)
	if c.TraceEntryStackThresholdMillis != nil {
		v := *c.TraceEntryStackThresholdMillis
		out.TraceEntryStackThresholdMillis = &v
	}
	if c.TransactionSlowThresholdMillis != nil {
		v := *c.TransactionSlowThresholdMillis
		out.TransactionSlowThresholdMillis = &v
	}
	return out
}
