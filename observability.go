// observability.go: Metrics collection for the configuration store
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package agentconfig

import (
	"fmt"
	"sort"
	"sync"
)

// Metric names reported by the store.
const (
	MetricCommits           = "agentconfig_commits_total"
	MetricConflicts         = "agentconfig_optimistic_lock_conflicts_total"
	MetricRejected          = "agentconfig_rejected_mutations_total"
	MetricWriteFailures     = "agentconfig_write_failures_total"
	MetricListenerFailures  = "agentconfig_listener_failures_total"
	MetricReloads           = "agentconfig_external_reloads_total"
	MetricGeneration        = "agentconfig_generation"
	MetricCommitDuration    = "agentconfig_commit_duration_ms"
	MetricNotifyDuration    = "agentconfig_notify_duration_ms"
	MetricRegisteredPlugins = "agentconfig_plugins"
)

// MetricsCollector defines the interface for collecting store metrics.
//
// Adapters for Prometheus, OpenTelemetry or StatsD implement it; the store
// ships with an in-memory DefaultMetricsCollector.
type MetricsCollector interface {
	// Counter metrics
	IncrementCounter(name string, labels map[string]string, value int64)

	// Gauge metrics
	SetGauge(name string, labels map[string]string, value float64)

	// Histogram metrics
	RecordHistogram(name string, labels map[string]string, value float64)

	// Custom metrics
	RecordCustomMetric(name string, labels map[string]string, value interface{})

	// Get current metrics snapshot
	GetMetrics() map[string]interface{}
}

// DefaultMetricsCollector is a thread-safe in-memory MetricsCollector.
type DefaultMetricsCollector struct {
	mu         sync.RWMutex
	counters   map[string]int64
	gauges     map[string]float64
	histograms map[string][]float64
}

// histogramWindow caps the samples kept per histogram key.
const histogramWindow = 1000

// NewDefaultMetricsCollector creates a new default metrics collector
func NewDefaultMetricsCollector() *DefaultMetricsCollector {
	return &DefaultMetricsCollector{
		counters:   make(map[string]int64),
		gauges:     make(map[string]float64),
		histograms: make(map[string][]float64),
	}
}

// IncrementCounter implements MetricsCollector
func (dmc *DefaultMetricsCollector) IncrementCounter(name string, labels map[string]string, value int64) {
	dmc.mu.Lock()
	defer dmc.mu.Unlock()
	dmc.counters[buildMetricKey(name, labels)] += value
}

// SetGauge implements MetricsCollector
func (dmc *DefaultMetricsCollector) SetGauge(name string, labels map[string]string, value float64) {
	dmc.mu.Lock()
	defer dmc.mu.Unlock()
	dmc.gauges[buildMetricKey(name, labels)] = value
}

// RecordHistogram implements MetricsCollector
func (dmc *DefaultMetricsCollector) RecordHistogram(name string, labels map[string]string, value float64) {
	dmc.mu.Lock()
	defer dmc.mu.Unlock()

	key := buildMetricKey(name, labels)
	samples := append(dmc.histograms[key], value)
	if len(samples) > histogramWindow {
		samples = samples[len(samples)-histogramWindow:]
	}
	dmc.histograms[key] = samples
}

// RecordCustomMetric implements MetricsCollector. int64 values are counted,
// float64 values are set as gauges, anything else is ignored.
func (dmc *DefaultMetricsCollector) RecordCustomMetric(name string, labels map[string]string, value interface{}) {
	switch v := value.(type) {
	case int64:
		dmc.IncrementCounter(name, labels, v)
	case float64:
		dmc.SetGauge(name, labels, v)
	}
}

// GetMetrics implements MetricsCollector. Histograms are summarized as
// _count, _sum, _min, _max and _avg keys.
func (dmc *DefaultMetricsCollector) GetMetrics() map[string]interface{} {
	dmc.mu.RLock()
	defer dmc.mu.RUnlock()

	metrics := make(map[string]interface{}, len(dmc.counters)+len(dmc.gauges))
	for k, v := range dmc.counters {
		metrics[k] = v
	}
	for k, v := range dmc.gauges {
		metrics[k] = v
	}
	for k, samples := range dmc.histograms {
		if len(samples) == 0 {
			continue
		}
		sum, minVal, maxVal := 0.0, samples[0], samples[0]
		for _, s := range samples {
			sum += s
			minVal = min(minVal, s)
			maxVal = max(maxVal, s)
		}
		metrics[k+"_count"] = len(samples)
		metrics[k+"_sum"] = sum
		metrics[k+"_min"] = minVal
		metrics[k+"_max"] = maxVal
		metrics[k+"_avg"] = sum / float64(len(samples))
	}
	return metrics
}

// buildMetricKey appends labels to name in key order.
func buildMetricKey(name string, labels map[string]string) string {
	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	key := name
	for _, k := range keys {
		key += fmt.Sprintf("_%s_%s", k, labels[k])
	}
	return key
}
