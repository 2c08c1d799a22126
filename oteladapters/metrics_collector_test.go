package oteladapters

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/lzap/qctask/runner"
)

var _ runner.MetricsCollector = (*MetricsCollector)(nil)

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Metrics {
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	result := make(map[string]metricdata.Metrics)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			result[m.Name] = m
		}
	}
	return result
}

func TestMetricsCollector(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	defer func() { _ = provider.Shutdown(context.Background()) }()

	collector := NewMetricsCollector(provider.Meter("qctask-test"))
	ctx := context.Background()
	labels := map[string]string{"task": "BER"}

	collector.IncrementCounter(ctx, runner.MetricMessagesProcessed, labels)
	collector.AddCounter(ctx, runner.MetricMessagesProcessed, 4, labels)
	collector.RecordDuration(ctx, runner.MetricCycleDuration, 1500*time.Millisecond, labels)

	metrics := collect(t, reader)

	sum, ok := metrics[runner.MetricMessagesProcessed].Data.(metricdata.Sum[int64])
	require.True(t, ok)
	require.Len(t, sum.DataPoints, 1)
	assert.Equal(t, int64(5), sum.DataPoints[0].Value)
	v, ok := sum.DataPoints[0].Attributes.Value("task")
	require.True(t, ok)
	assert.Equal(t, "BER", v.AsString())

	hist, ok := metrics[runner.MetricCycleDuration].Data.(metricdata.Histogram[float64])
	require.True(t, ok)
	require.Len(t, hist.DataPoints, 1)
	assert.Equal(t, uint64(1), hist.DataPoints[0].Count)
	assert.InDelta(t, 1.5, hist.DataPoints[0].Sum, 1e-9)
}

func TestMetricsCollector_ReusesInstruments(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	collector := NewMetricsCollector(provider.Meter("qctask-test"))

	collector.IncrementCounter(context.Background(), "a_total", nil)
	collector.IncrementCounter(context.Background(), "a_total", nil)

	assert.Len(t, collector.counters, 1)
	assert.Empty(t, collector.histograms)
}
