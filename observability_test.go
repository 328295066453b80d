// observability_test.go: Tests for the in-memory metrics collector
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package agentconfig

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultMetricsCollector_Implementation(t *testing.T) {
	var _ MetricsCollector = NewDefaultMetricsCollector()

	collector := NewDefaultMetricsCollector()
	collector.IncrementCounter(MetricCommits, map[string]string{"entity": "gauge"}, 2)
	collector.IncrementCounter(MetricCommits, map[string]string{"entity": "gauge"}, 3)
	collector.SetGauge(MetricGeneration, nil, 7)
	collector.RecordHistogram(MetricCommitDuration, nil, 1)
	collector.RecordHistogram(MetricCommitDuration, nil, 3)
	collector.RecordCustomMetric("custom_counter", nil, int64(4))
	collector.RecordCustomMetric("custom_gauge", nil, 1.5)
	collector.RecordCustomMetric("ignored", nil, "text")

	metrics := collector.GetMetrics()

	assert.Equal(t, int64(5), metrics[MetricCommits+"_entity_gauge"])
	assert.Equal(t, 7.0, metrics[MetricGeneration])
	assert.Equal(t, 2, metrics[MetricCommitDuration+"_count"])
	assert.Equal(t, 4.0, metrics[MetricCommitDuration+"_sum"])
	assert.Equal(t, 1.0, metrics[MetricCommitDuration+"_min"])
	assert.Equal(t, 3.0, metrics[MetricCommitDuration+"_max"])
	assert.Equal(t, 2.0, metrics[MetricCommitDuration+"_avg"])
	assert.Equal(t, int64(4), metrics["custom_counter"])
	assert.Equal(t, 1.5, metrics["custom_gauge"])
	assert.NotContains(t, metrics, "ignored")
}

func TestBuildMetricKey_SortsLabels(t *testing.T) {
	a := buildMetricKey("m", map[string]string{"b": "2", "a": "1"})
	b := buildMetricKey("m", map[string]string{"a": "1", "b": "2"})

	assert.Equal(t, "m_a_1_b_2", a)
	assert.Equal(t, a, b)
	assert.Equal(t, "m", buildMetricKey("m", nil))
}

func TestDefaultMetricsCollector_HistogramWindow(t *testing.T) {
	collector := NewDefaultMetricsCollector()
	for i := 0; i < histogramWindow+500; i++ {
		collector.RecordHistogram(MetricNotifyDuration, nil, float64(i))
	}

	metrics := collector.GetMetrics()
	assert.Equal(t, histogramWindow, metrics[MetricNotifyDuration+"_count"])
	assert.Equal(t, 500.0, metrics[MetricNotifyDuration+"_min"], "oldest samples are evicted")
}

func TestDefaultMetricsCollector_ConcurrentAccess(t *testing.T) {
	collector := NewDefaultMetricsCollector()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				collector.IncrementCounter(MetricConflicts, nil, 1)
				collector.RecordHistogram(MetricCommitDuration, nil, 1)
				_ = collector.GetMetrics()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(800), collector.GetMetrics()[MetricConflicts])
}
