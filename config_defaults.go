// config_defaults.go: Built-in default configuration
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package agentconfig

// RollupLevels is the number of aggregate rollup levels kept by the agent.
const RollupLevels = 3

// DefaultGeneralConfig returns the general section of a fresh install.
func DefaultGeneralConfig() GeneralConfig {
	return GeneralConfig{
		Enabled:                   true,
		TraceStoreThresholdMillis: 2000,
		ProfilingIntervalMillis:   1000,
	}
}

// DefaultStorageConfig returns the retention policy of a fresh install:
// 3 days, 2 weeks and 3 months of rollups.
func DefaultStorageConfig() StorageConfig {
	return StorageConfig{
		RollupExpirationHours:       []int{24 * 3, 24 * 14, 24 * 90},
		TraceExpirationHours:        24 * 14,
		RollupCappedDatabaseSizesMb: []int{500, 500, 500},
		TraceCappedDatabaseSizeMb:   500,
	}
}

func DefaultUserInterfaceConfig() UserInterfaceConfig {
	return UserInterfaceConfig{
		DefaultDisplayedPercentiles: []float64{50, 95, 99},
		Port:                        4000,
		SessionTimeoutMinutes:       30,
	}
}

func DefaultUserRecordingConfig() UserRecordingConfig {
	return UserRecordingConfig{
		ProfileIntervalMillis: 10,
	}
}

func DefaultAdvancedConfig() AdvancedConfig {
	return AdvancedConfig{
		TimerWrapperMethods:                   false,
		WeavingTimer:                          false,
		ImmediatePartialStoreThresholdSeconds: 60,
		MaxAggregateTransactionsPerType:       500,
		MaxAggregateQueriesPerType:            500,
		MaxTraceEntriesPerTransaction:         2000,
		MaxStackTraceSamplesPerTransaction:    10000,
		CaptureThreadInfo:                     true,
		CaptureGcActivity:                     true,
		MBeanGaugeNotFoundDelaySeconds:        60,
	}
}

// DefaultGauges returns the gauges installed when a document has no gauges
// section at all: heap, garbage collection, memory pools and CPU.
func DefaultGauges() []GaugeConfig {
	return []GaugeConfig{
		{
			MBeanObjectName:     "java.lang:type=Memory",
			MBeanAttributeNames: []string{"HeapMemoryUsage/used", "NonHeapMemoryUsage/used"},
		},
		{
			MBeanObjectName:     "java.lang:type=GarbageCollector,name=*",
			MBeanAttributeNames: []string{"CollectionCount", "CollectionTime"},
		},
		{
			MBeanObjectName:     "java.lang:type=MemoryPool,name=*",
			MBeanAttributeNames: []string{"Usage/used"},
		},
		{
			MBeanObjectName:     "java.lang:type=OperatingSystem",
			MBeanAttributeNames: []string{"FreePhysicalMemorySize", "ProcessCpuLoad", "SystemCpuLoad"},
		},
	}
}

// DefaultConfig builds the configuration of a fresh install: default
// sections, one default plugin config per catalog entry and the default gauges.
func DefaultConfig(catalog PluginCatalog) *Config {
	plugins, _ := reconcileAll(catalog, nil)
	userInterface := DefaultUserInterfaceConfig()
	userInterface.DefaultDisplayedTransactionType = catalog.FirstTransactionType()
	return &Config{
		General:         DefaultGeneralConfig(),
		Storage:         DefaultStorageConfig(),
		UserInterface:   userInterface,
		UserRecording:   DefaultUserRecordingConfig(),
		Advanced:        DefaultAdvancedConfig(),
		Plugins:         plugins,
		Instrumentation: []InstrumentationConfig{},
		Gauges:          DefaultGauges(),
		Alerts:          []AlertConfig{},
	}
}
