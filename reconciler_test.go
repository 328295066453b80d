// reconciler_test.go: Tests for plugin property reconciliation
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

func TestReconcilePluginConfig_SchemaDrivesKeySet(t *testing.T) {
	descriptor := PluginDescriptor{
		ID: "p",
		Properties: []PropertyDescriptor{
			{Name: "a", Type: PropertyTypeString, Default: StringValue("x")},
			{Name: "b", Type: PropertyTypeBoolean, Default: BoolValue(false)},
		},
	}
	stored := &PluginConfig{
		ID:      "p",
		Enabled: false,
		Properties: PluginProperties{
			{Name: "a", Value: StringValue("y")},
			{Name: "c", Value: NumberValue(1)},
		},
	}

	reconciled := ReconcilePluginConfig(descriptor, stored)

	assert.Equal(t, "p", reconciled.ID)
	assert.False(t, reconciled.Enabled)
	assert.Equal(t, []string{"a", "b"}, reconciled.Properties.Names())

	a, _ := reconciled.Properties.Get("a")
	assert.True(t, a.Equal(StringValue("y")))
	b, _ := reconciled.Properties.Get("b")
	assert.True(t, b.Equal(BoolValue(false)))
}

func TestReconcilePluginConfig_NewPluginUsesDefaults(t *testing.T) {
	descriptor := TestDataFactory{}.Catalog()[0]

	reconciled := ReconcilePluginConfig(descriptor, nil)

	assert.True(t, reconciled.Enabled, "newly discovered plugins start enabled")
	assert.Equal(t, []string{"captureBindParameters", "stackTraceThresholdMillis", "internalToken"}, reconciled.Properties.Names())

	assert.True(t, reconciled.BoolProperty("captureBindParameters"))
	threshold, ok := reconciled.NumberProperty("stackTraceThresholdMillis")
	require.True(t, ok)
	assert.Equal(t, 1000.0, threshold)
}

func TestReconcilePluginConfig_HiddenValuesResetToDefault(t *testing.T) {
	descriptor := TestDataFactory{}.Catalog()[0]
	stored := &PluginConfig{
		ID:      "jdbc",
		Enabled: true,
		Properties: PluginProperties{
			{Name: "internalToken", Value: StringValue("tampered")},
		},
	}

	reconciled := ReconcilePluginConfig(descriptor, stored)

	token, ok := reconciled.Properties.Get("internalToken")
	require.True(t, ok)
	assert.True(t, token.Equal(StringValue("builtin")))
}

func TestReconcilePluginConfig_MistypedValuesResetToDefault(t *testing.T) {
	descriptor := TestDataFactory{}.Catalog()[0]
	stored := &PluginConfig{
		ID:      "jdbc",
		Enabled: true,
		Properties: PluginProperties{
			{Name: "captureBindParameters", Value: StringValue("false")},
			{Name: "stackTraceThresholdMillis", Value: NullValue()},
		},
	}

	reconciled := ReconcilePluginConfig(descriptor, stored)

	capture, _ := reconciled.Properties.Get("captureBindParameters")
	assert.True(t, capture.Equal(BoolValue(true)), "a string is not accepted for a boolean property")

	threshold, _ := reconciled.Properties.Get("stackTraceThresholdMillis")
	assert.True(t, threshold.IsNull(), "numeric properties may be unset")
}

func TestReconcilePluginConfig_Idempotent(t *testing.T) {
	descriptor := TestDataFactory{}.Catalog()[0]
	stored := &PluginConfig{
		ID: "jdbc",
		Properties: PluginProperties{
			{Name: "stackTraceThresholdMillis", Value: NumberValue(250)},
		},
	}

	once := ReconcilePluginConfig(descriptor, stored)
	twice := ReconcilePluginConfig(descriptor, &once)

	assert.Equal(t, once.Version(), twice.Version())
	assert.Equal(t, once.Properties.Names(), twice.Properties.Names())
}

func TestReconcileAll(t *testing.T) {
	catalog := TestDataFactory{}.Catalog()
	stored := []PluginConfig{
		{ID: "servlet", Enabled: false},
		{ID: "retired", Enabled: true},
	}

	plugins, dropped := reconcileAll(catalog, stored)

	require.Len(t, plugins, 2)
	assert.Equal(t, "jdbc", plugins[0].ID, "catalog order")
	assert.True(t, plugins[0].Enabled)
	assert.Equal(t, "servlet", plugins[1].ID)
	assert.False(t, plugins[1].Enabled)
	assert.Equal(t, []string{"retired"}, dropped)
}
