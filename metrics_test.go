package main

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"rotateio-server/internal/sim"
)

func newNopMetrics(t *testing.T) *Metrics {
	t.Helper()
	m, err := NewMetrics(noop.NewMeterProvider())
	require.NoError(t, err)
	return m
}

// collectSums totals every int64 sum by instrument name
func collectSums(t *testing.T, reader sdkmetric.Reader) map[string]int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	sums := map[string]int64{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			data, ok := m.Data.(metricdata.Sum[int64])
			if !ok {
				continue
			}
			for _, dp := range data.DataPoints {
				sums[m.Name] += dp.Value
			}
		}
	}
	return sums
}

func TestMetricsRecordThroughSDK(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	m, err := NewMetrics(mp)
	require.NoError(t, err)

	m.RecordStep("main", sim.StepResult{Tick: 1})
	m.RecordStep("main", sim.StepResult{
		Tick:     2,
		Kills:    []sim.KillEvent{{}, {}},
		Rotation: &sim.RotationEvent{},
	})
	m.RecordStep("duel", sim.StepResult{Tick: 1})
	m.FrameDropped("main")
	m.ClientsChanged(2)
	m.ClientsChanged(-1)

	sums := collectSums(t, reader)
	assert.Equal(t, int64(3), sums["match.ticks"])
	assert.Equal(t, int64(2), sums["match.kills"])
	assert.Equal(t, int64(1), sums["match.rotations"])
	assert.Equal(t, int64(1), sums["net.frames.dropped"])
	assert.Equal(t, int64(1), sums["net.clients"])
}

func TestMeterProviderExporters(t *testing.T) {
	var buf bytes.Buffer
	mp, err := NewMeterProvider(MetricsConfig{Exporter: "stdout", Interval: time.Hour}, &buf)
	require.NoError(t, err)

	m, err := NewMetrics(mp)
	require.NoError(t, err)
	m.RecordStep("main", sim.StepResult{Tick: 1})

	// shutdown runs a final export
	require.NoError(t, mp.Shutdown(context.Background()))
	assert.Contains(t, buf.String(), "match.ticks")
	assert.Contains(t, buf.String(), instrumentationName)

	none, err := NewMeterProvider(MetricsConfig{Exporter: "none"}, &buf)
	require.NoError(t, err)
	assert.NoError(t, none.Shutdown(context.Background()))

	_, err = NewMeterProvider(MetricsConfig{Exporter: "carrier-pigeon"}, &buf)
	assert.ErrorContains(t, err, "unknown metrics exporter")
}
