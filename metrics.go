package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"

	"rotateio-server/internal/sim"
)

const instrumentationName = "rotateio-server"

// MetricsConfig selects the exporter behind the meter provider
type MetricsConfig struct {
	Exporter string        // none or stdout
	Interval time.Duration // export period, SDK default when zero
}

// NewMeterProvider builds the SDK meter provider. The stdout exporter writes
// JSON to w every Interval; none keeps aggregating with no reader attached.
func NewMeterProvider(cfg MetricsConfig, w io.Writer) (*sdkmetric.MeterProvider, error) {
	res, err := resource.New(context.Background(),
		resource.WithAttributes(semconv.ServiceName(instrumentationName)),
	)
	if err != nil {
		return nil, fmt.Errorf("creating metrics resource: %w", err)
	}
	opts := []sdkmetric.Option{sdkmetric.WithResource(res)}

	switch cfg.Exporter {
	case "", "none":
	case "stdout":
		exp, err := stdoutmetric.New(stdoutmetric.WithWriter(w))
		if err != nil {
			return nil, fmt.Errorf("creating stdout metric exporter: %w", err)
		}
		opts = append(opts, sdkmetric.WithReader(
			sdkmetric.NewPeriodicReader(exp, sdkmetric.WithInterval(cfg.Interval)),
		))
	default:
		return nil, fmt.Errorf("unknown metrics exporter %q", cfg.Exporter)
	}
	return sdkmetric.NewMeterProvider(opts...), nil
}

// Metrics holds the server instruments
type Metrics struct {
	ticks     metric.Int64Counter
	kills     metric.Int64Counter
	rotations metric.Int64Counter
	dropped   metric.Int64Counter
	clients   metric.Int64UpDownCounter
}

// NewMetrics creates the instruments on mp
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(instrumentationName)
	var (
		ms  Metrics
		err error
	)
	ms.ticks, err = m.Int64Counter("match.ticks",
		metric.WithDescription("Simulation steps completed"))
	if err != nil {
		return nil, fmt.Errorf("creating ticks counter: %w", err)
	}
	ms.kills, err = m.Int64Counter("match.kills",
		metric.WithDescription("Players killed"))
	if err != nil {
		return nil, fmt.Errorf("creating kills counter: %w", err)
	}
	ms.rotations, err = m.Int64Counter("match.rotations",
		metric.WithDescription("Global ability rotations"))
	if err != nil {
		return nil, fmt.Errorf("creating rotations counter: %w", err)
	}
	ms.dropped, err = m.Int64Counter("net.frames.dropped",
		metric.WithDescription("Frames dropped for slow clients"))
	if err != nil {
		return nil, fmt.Errorf("creating dropped counter: %w", err)
	}
	ms.clients, err = m.Int64UpDownCounter("net.clients",
		metric.WithDescription("Connected websocket clients"))
	if err != nil {
		return nil, fmt.Errorf("creating clients gauge: %w", err)
	}
	return &ms, nil
}

// RecordStep counts one tick of a match
func (m *Metrics) RecordStep(matchID string, res sim.StepResult) {
	ctx := context.Background()
	attrs := metric.WithAttributes(attribute.String("match", matchID))
	m.ticks.Add(ctx, 1, attrs)
	if n := len(res.Kills); n > 0 {
		m.kills.Add(ctx, int64(n), attrs)
	}
	if res.Rotation != nil {
		m.rotations.Add(ctx, 1, attrs)
	}
}

// FrameDropped counts one frame a client could not take
func (m *Metrics) FrameDropped(matchID string) {
	m.dropped.Add(context.Background(), 1, metric.WithAttributes(attribute.String("match", matchID)))
}

// ClientsChanged moves the connected-client gauge
func (m *Metrics) ClientsChanged(delta int64) {
	m.clients.Add(context.Background(), delta)
}
