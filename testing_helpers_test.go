// testing_helpers_test.go: Shared fixtures for store and document tests
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package agentconfig

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestEnvironment owns a temporary data directory for one test.
type TestEnvironment struct {
	t   *testing.T
	dir string
}

// NewTestEnvironment creates a test environment; the directory is removed
// when the test completes.
func NewTestEnvironment(t *testing.T) *TestEnvironment {
	t.Helper()
	return &TestEnvironment{t: t, dir: t.TempDir()}
}

// TempDir returns the environment's data directory.
func (te *TestEnvironment) TempDir() string {
	return te.dir
}

// Path returns the absolute path of name inside the data directory.
func (te *TestEnvironment) Path(name string) string {
	return filepath.Join(te.dir, name)
}

// CreateTempFile writes content to name inside the data directory.
func (te *TestEnvironment) CreateTempFile(name, content string) string {
	te.t.Helper()
	path := te.Path(name)
	require.NoError(te.t, os.WriteFile(path, []byte(content), 0600))
	return path
}

// ReadFile returns the content of name inside the data directory.
func (te *TestEnvironment) ReadFile(name string) string {
	te.t.Helper()
	content, err := os.ReadFile(te.Path(name))
	require.NoError(te.t, err)
	return string(content)
}

// TestDataFactory builds valid entities for tests.
type TestDataFactory struct{}

// Catalog returns two plugins: jdbc (boolean, numeric and hidden string
// properties, transaction type Background) and servlet (one string
// property, transaction type Web).
func (TestDataFactory) Catalog() PluginCatalog {
	return PluginCatalog{
		{
			ID:   "jdbc",
			Name: "JDBC Plugin",
			Properties: []PropertyDescriptor{
				{Name: "captureBindParameters", Type: PropertyTypeBoolean, Default: BoolValue(true)},
				{Name: "stackTraceThresholdMillis", Type: PropertyTypeDouble, Default: NumberValue(1000)},
				{Name: "internalToken", Type: PropertyTypeString, Default: StringValue("builtin"), Hidden: true},
			},
			TransactionTypes: []string{"Background"},
			Aspects:          []string{"org.example.jdbc.StatementAspect"},
		},
		{
			ID:   "servlet",
			Name: "Servlet Plugin",
			Properties: []PropertyDescriptor{
				{Name: "sessionUserAttribute", Type: PropertyTypeString, Default: StringValue("")},
			},
			TransactionTypes: []string{"Web"},
		},
	}
}

func (TestDataFactory) CapturePoint(methodName string) InstrumentationConfig {
	return InstrumentationConfig{
		ClassName:          "com.example.OrderDao",
		MethodName:         methodName,
		CaptureKind:        CaptureKindTraceEntry,
		TimerName:          "dao " + methodName,
		TraceEntryTemplate: "dao " + methodName + " {{0}}",
	}
}

func (TestDataFactory) Gauge(name string) GaugeConfig {
	return GaugeConfig{
		MBeanObjectName:     name,
		MBeanAttributeNames: []string{"ActiveCount"},
	}
}

func (TestDataFactory) Alert(thresholdMillis int) AlertConfig {
	return AlertConfig{
		TransactionType:     "Web",
		Percentile:          95,
		TimePeriodMinutes:   5,
		ThresholdMillis:     thresholdMillis,
		MinTransactionCount: 10,
		EmailAddresses:      []string{"ops@example.com"},
	}
}

// newTestStore creates a store in a fresh data directory.
func newTestStore(t *testing.T) (*Store, *TestLogger, *TestEnvironment) {
	t.Helper()
	env := NewTestEnvironment(t)
	logger := NewTestLogger()
	store, err := NewStore(env.TempDir(), TestDataFactory{}.Catalog(), DefaultStoreOptions(), logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store, logger, env
}
