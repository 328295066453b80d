// config_test.go: Tests for configuration sections and list items
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package agentconfig

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig_IsValid(t *testing.T) {
	cfg := DefaultConfig(TestDataFactory{}.Catalog())

	require.NoError(t, cfg.General.Validate())
	require.NoError(t, cfg.Storage.Validate())
	require.NoError(t, cfg.UserInterface.Validate())
	require.NoError(t, cfg.UserRecording.Validate())
	require.NoError(t, cfg.Advanced.Validate())
	for _, gauge := range cfg.Gauges {
		require.NoError(t, gauge.Validate(), gauge.MBeanObjectName)
	}

	assert.Equal(t, []int{72, 336, 2160}, cfg.Storage.RollupExpirationHours)
	assert.Equal(t, []float64{50, 95, 99}, cfg.UserInterface.DefaultDisplayedPercentiles)
	assert.NotNil(t, cfg.Instrumentation)
	assert.NotNil(t, cfg.Alerts)
}

func TestSectionValidation(t *testing.T) {
	storage := DefaultStorageConfig()
	storage.TraceExpirationHours = 0
	assert.Error(t, storage.Validate())

	storage = DefaultStorageConfig()
	storage.RollupCappedDatabaseSizesMb = []int{1, 2}
	assert.Error(t, storage.Validate())

	ui := DefaultUserInterfaceConfig()
	ui.Port = 70000
	assert.Error(t, ui.Validate())

	ui = DefaultUserInterfaceConfig()
	ui.DefaultDisplayedPercentiles = []float64{0}
	assert.Error(t, ui.Validate())

	general := DefaultGeneralConfig()
	general.TraceStoreThresholdMillis = -1
	assert.Error(t, general.Validate())
}

func TestGaugeConfig_Validate(t *testing.T) {
	tests := []struct {
		name  string
		valid bool
	}{
		{"java.lang:type=Memory", true},
		{"com.example:type=Pool,name=main", true},
		{"no-domain", false},
		{":type=Memory", false},
		{"java.lang:Memory", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := GaugeConfig{MBeanObjectName: tt.name}.Validate()
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.True(t, HasErrorCode(err, ErrCodeInvalidEntity))
			}
		})
	}
}

func TestAlertConfig_Validate(t *testing.T) {
	factory := TestDataFactory{}
	require.NoError(t, factory.Alert(1000).Validate())

	mutations := map[string]func(*AlertConfig){
		"missing transaction type": func(a *AlertConfig) { a.TransactionType = " " },
		"percentile zero":          func(a *AlertConfig) { a.Percentile = 0 },
		"percentile hundred":       func(a *AlertConfig) { a.Percentile = 100 },
		"percentile NaN":           func(a *AlertConfig) { a.Percentile = math.NaN() },
		"zero time period":         func(a *AlertConfig) { a.TimePeriodMinutes = 0 },
		"negative threshold":       func(a *AlertConfig) { a.ThresholdMillis = -1 },
		"negative min count":       func(a *AlertConfig) { a.MinTransactionCount = -1 },
		"bad email":                func(a *AlertConfig) { a.EmailAddresses = []string{"ops"} },
	}

	for name, mutate := range mutations {
		t.Run(name, func(t *testing.T) {
			alert := factory.Alert(1000)
			mutate(&alert)
			assert.True(t, HasErrorCode(alert.Validate(), ErrCodeInvalidEntity))
		})
	}
}

func TestConfig_CloneIsDeep(t *testing.T) {
	cfg := DefaultConfig(TestDataFactory{}.Catalog())
	cfg.Alerts = []AlertConfig{TestDataFactory{}.Alert(1000)}

	clone := cfg.Clone()
	clone.Storage.RollupExpirationHours[0] = 1
	clone.Gauges[0].MBeanAttributeNames[0] = "changed"
	clone.Alerts[0].EmailAddresses[0] = "changed@example.com"
	clone.Plugins[0].Properties[0].Value = BoolValue(false)

	assert.Equal(t, 72, cfg.Storage.RollupExpirationHours[0])
	assert.NotEqual(t, "changed", cfg.Gauges[0].MBeanAttributeNames[0])
	assert.Equal(t, "ops@example.com", cfg.Alerts[0].EmailAddresses[0])
	assert.True(t, cfg.Plugins[0].BoolProperty("captureBindParameters"))
}

func TestCopyOnWriteHelpers(t *testing.T) {
	items := []int{1, 2, 3}

	assert.Equal(t, []int{1, 2, 3, 4}, withAppended(items, 4))
	assert.Equal(t, []int{1, 9, 3}, withReplaced(items, 1, 9))
	assert.Equal(t, []int{1, 3}, withRemoved(items, 1))
	assert.Equal(t, []int{1, 2, 3}, items, "input is never modified")

	assert.Nil(t, cloneEach[int](nil, func(i int) int { return i }))
}

func TestIndexByVersion(t *testing.T) {
	factory := TestDataFactory{}
	alerts := []AlertConfig{factory.Alert(1), factory.Alert(2)}
	versioner := NewContentVersioner(nil)

	assert.Equal(t, 1, indexByVersion(versioner, alerts, alerts[1].Version()))
	assert.Equal(t, -1, indexByVersion(versioner, alerts, SentinelVersion))
}
