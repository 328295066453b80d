// catalog_test.go: Tests for plugin descriptors and catalog loading
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package agentconfig

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPluginCatalog_Validate(t *testing.T) {
	tests := []struct {
		name    string
		catalog PluginCatalog
		code    string
	}{
		{
			name:    "missing id",
			catalog: PluginCatalog{{Name: "anonymous"}},
			code:    ErrCodeInvalidCatalog,
		},
		{
			name:    "duplicate plugin id",
			catalog: PluginCatalog{{ID: "jdbc"}, {ID: "jdbc"}},
			code:    ErrCodeDuplicatePlugin,
		},
		{
			name: "duplicate property name",
			catalog: PluginCatalog{{ID: "p", Properties: []PropertyDescriptor{
				{Name: "a", Type: PropertyTypeString, Default: StringValue("")},
				{Name: "a", Type: PropertyTypeBoolean, Default: BoolValue(false)},
			}}},
			code: ErrCodeInvalidProperty,
		},
		{
			name: "unknown property type",
			catalog: PluginCatalog{{ID: "p", Properties: []PropertyDescriptor{
				{Name: "a", Type: PropertyType("list")},
			}}},
			code: ErrCodeInvalidProperty,
		},
		{
			name: "default does not match type",
			catalog: PluginCatalog{{ID: "p", Properties: []PropertyDescriptor{
				{Name: "a", Type: PropertyTypeBoolean, Default: StringValue("yes")},
			}}},
			code: ErrCodeInvalidProperty,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.catalog.Validate()
			require.Error(t, err)
			assert.True(t, HasErrorCode(err, tt.code), "got %v", err)
		})
	}

	assert.NoError(t, TestDataFactory{}.Catalog().Validate())
}

func TestPluginCatalog_NullDefaultIsAllowed(t *testing.T) {
	catalog := PluginCatalog{{ID: "p", Properties: []PropertyDescriptor{
		{Name: "label", Type: PropertyTypeString},
	}}}
	require.NoError(t, catalog.Validate())

	reconciled := ReconcilePluginConfig(catalog[0], nil)
	assert.Equal(t, "", reconciled.StringProperty("label"))
}

func TestPluginCatalog_FirstTransactionType(t *testing.T) {
	assert.Equal(t, "Background", TestDataFactory{}.Catalog().FirstTransactionType())
	assert.Equal(t, "", PluginCatalog{{ID: "empty"}}.FirstTransactionType())
	assert.Equal(t, "", PluginCatalog(nil).FirstTransactionType())
}

func TestPluginCatalog_Descriptor(t *testing.T) {
	catalog := TestDataFactory{}.Catalog()

	servlet, ok := catalog.Descriptor("servlet")
	require.True(t, ok)
	assert.Equal(t, "Servlet Plugin", servlet.Name)

	_, ok = catalog.Descriptor("missing")
	assert.False(t, ok)

	hidden, ok := catalog[0].Property("internalToken")
	require.True(t, ok)
	assert.True(t, hidden.Hidden)
}

func TestLoadPluginCatalog_JSONAndYAML(t *testing.T) {
	env := NewTestEnvironment(t)

	jdbc := env.CreateTempFile("jdbc.json", `{
  "id": "jdbc",
  "name": "JDBC Plugin",
  "properties": [
    {"name": "captureBindParameters", "type": "boolean", "default": true},
    {"name": "stackTraceThresholdMillis", "type": "double", "default": 1000}
  ],
  "transactionTypes": ["Background"],
  "instrumentation": [
    {"className": "java.sql.Statement", "methodName": "execute", "captureKind": "metric", "timerName": "jdbc execute"}
  ]
}`)

	web := env.CreateTempFile("web.yaml", `# web plugins
- id: servlet
  name: Servlet Plugin
  properties:
    - name: sessionUserAttribute
      type: string
      default: ""
  transactionTypes: [Web]
- id: jaxrs
  name: JAX-RS Plugin
  properties:
    - name: captureHeaders
      type: string
      default: "true"
`)

	catalog, err := LoadPluginCatalog(jdbc, web)
	require.NoError(t, err)
	require.Len(t, catalog, 3)

	assert.Equal(t, "jdbc", catalog[0].ID)
	assert.Equal(t, "servlet", catalog[1].ID)
	assert.Equal(t, "jaxrs", catalog[2].ID)
	assert.Equal(t, "Background", catalog.FirstTransactionType())

	capture, ok := catalog[0].Property("captureBindParameters")
	require.True(t, ok)
	assert.True(t, capture.Default.Equal(BoolValue(true)))

	require.Len(t, catalog[0].Instrumentation, 1)
	assert.Equal(t, CaptureKindMetric, catalog[0].Instrumentation[0].CaptureKind)

	headers, ok := catalog[2].Property("captureHeaders")
	require.True(t, ok)
	assert.True(t, headers.Default.Equal(StringValue("true")), "quoted default stays a string")
}

func TestLoadPluginCatalog_Errors(t *testing.T) {
	env := NewTestEnvironment(t)

	_, err := LoadPluginCatalog(env.Path("missing.json"))
	assert.True(t, HasErrorCode(err, ErrCodeCatalogReadError))

	broken := env.CreateTempFile("broken.json", `{"id": "broken",`)
	_, err = LoadPluginCatalog(broken)
	assert.True(t, HasErrorCode(err, ErrCodeCatalogReadError))

	first := env.CreateTempFile("a.json", `{"id": "dup"}`)
	second := env.CreateTempFile("b.json", `{"id": "dup"}`)
	_, err = LoadPluginCatalog(first, second)
	assert.True(t, HasErrorCode(err, ErrCodeDuplicatePlugin))
}
