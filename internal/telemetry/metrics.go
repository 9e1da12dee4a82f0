package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

const meterName = "continuous-auth/session"

// Metrics records session lifecycle and analysis counters. The zero value is not usable; a nil
// *Metrics is, and records nothing.
type Metrics struct {
	sessionsStarted metric.Int64Counter
	sessionsExpired metric.Int64Counter
	analysisCycles  metric.Int64Counter
	classifyLatency metric.Float64Histogram
}

// NewMetrics creates the instruments on provider's meter. A nil provider uses the no-op provider.
func NewMetrics(provider metric.MeterProvider) (*Metrics, error) {
	if provider == nil {
		provider = noop.NewMeterProvider()
	}
	meter := provider.Meter(meterName)

	started, err := meter.Int64Counter("continuousauth.sessions.started",
		metric.WithDescription("Sessions created from an enrolled baseline"))
	if err != nil {
		return nil, err
	}
	expired, err := meter.Int64Counter("continuousauth.sessions.expired",
		metric.WithDescription("Sessions expired, by cause"))
	if err != nil {
		return nil, err
	}
	cycles, err := meter.Int64Counter("continuousauth.analysis.cycles",
		metric.WithDescription("Analysis ticks, by outcome"))
	if err != nil {
		return nil, err
	}
	latency, err := meter.Float64Histogram("continuousauth.classify.duration",
		metric.WithDescription("Classifier latency"),
		metric.WithUnit("ms"))
	if err != nil {
		return nil, err
	}
	return &Metrics{
		sessionsStarted: started,
		sessionsExpired: expired,
		analysisCycles:  cycles,
		classifyLatency: latency,
	}, nil
}

// SessionStarted counts one created session.
func (m *Metrics) SessionStarted(ctx context.Context) {
	if m == nil {
		return
	}
	m.sessionsStarted.Add(ctx, 1)
}

// SessionExpired counts one expiry with the given cause.
func (m *Metrics) SessionExpired(ctx context.Context, cause string) {
	if m == nil {
		return
	}
	m.sessionsExpired.Add(ctx, 1, metric.WithAttributes(attribute.String("cause", cause)))
}

// AnalysisCycle counts one analysis tick. outcome is normal, anomaly, skipped or error.
func (m *Metrics) AnalysisCycle(ctx context.Context, outcome string, took time.Duration) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("outcome", outcome))
	m.analysisCycles.Add(ctx, 1, attrs)
	if outcome != "skipped" {
		m.classifyLatency.Record(ctx, float64(took.Microseconds())/1000, attrs)
	}
}
