// Package observe holds the OpenTelemetry metric instruments for GymWhisper
// and the Prometheus bridge that serves them on /metrics.
//
// Tests should build a [Metrics] with [NewMetrics] over their own
// [metric.MeterProvider] so instruments do not leak between tests.
package observe

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope for all GymWhisper metrics.
const meterName = "github.com/claude/gymwhisper"

// Metrics holds the metric instruments. All fields are safe for concurrent use.
type Metrics struct {
	// ExtractionDuration tracks extraction and summary call latency. Use with
	// attributes provider and kind.
	ExtractionDuration metric.Float64Histogram

	// ExtractionRequests counts extraction service calls by provider, kind
	// and status.
	ExtractionRequests metric.Int64Counter

	// RecordsAppended counts records added to ledgers by captures.
	RecordsAppended metric.Int64Counter

	// StaleCaptures counts results that arrived after a newer capture started.
	// Use with attribute policy.
	StaleCaptures metric.Int64Counter

	// SessionsFinalized counts sessions written to history.
	SessionsFinalized metric.Int64Counter

	// ActiveLedgers tracks ledgers currently held by the registry.
	ActiveLedgers metric.Int64UpDownCounter

	// HTTPRequestDuration tracks request latency by method and route.
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets are histogram boundaries in seconds, sized for LLM calls.
var latencyBuckets = []float64{
	0.05, 0.1, 0.25, 0.5, 1, 2, 4, 8, 15, 30,
}

// NewMetrics creates the instruments on mp.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.ExtractionDuration, err = m.Float64Histogram("gymwhisper.extraction.duration",
		metric.WithDescription("Latency of extraction service calls."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.ExtractionRequests, err = m.Int64Counter("gymwhisper.extraction.requests",
		metric.WithDescription("Extraction service calls by provider, kind, and status."),
	); err != nil {
		return nil, err
	}
	if met.RecordsAppended, err = m.Int64Counter("gymwhisper.ledger.records_appended",
		metric.WithDescription("Records appended to ledgers from captures."),
	); err != nil {
		return nil, err
	}
	if met.StaleCaptures, err = m.Int64Counter("gymwhisper.capture.stale",
		metric.WithDescription("Capture results that arrived after a newer capture began."),
	); err != nil {
		return nil, err
	}
	if met.SessionsFinalized, err = m.Int64Counter("gymwhisper.history.sessions_finalized",
		metric.WithDescription("Sessions appended to the durable history."),
	); err != nil {
		return nil, err
	}
	if met.ActiveLedgers, err = m.Int64UpDownCounter("gymwhisper.ledger.active",
		metric.WithDescription("Ledgers currently held in memory."),
	); err != nil {
		return nil, err
	}
	if met.HTTPRequestDuration, err = m.Float64Histogram("gymwhisper.http.request.duration",
		metric.WithDescription("HTTP request latency by method and route."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	return met, nil
}

var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns a package-level Metrics built on the global meter
// provider. It panics if instrument creation fails.
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// RecordExtraction records one extraction service call.
func (m *Metrics) RecordExtraction(ctx context.Context, provider, kind, status string, d time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String("provider", provider),
		attribute.String("kind", kind),
	)
	m.ExtractionDuration.Record(ctx, d.Seconds(), attrs)
	m.ExtractionRequests.Add(ctx, 1, metric.WithAttributes(
		attribute.String("provider", provider),
		attribute.String("kind", kind),
		attribute.String("status", status),
	))
}

// RecordStaleCapture counts a late capture result under policy.
func (m *Metrics) RecordStaleCapture(ctx context.Context, policy string) {
	m.StaleCaptures.Add(ctx, 1, metric.WithAttributes(attribute.String("policy", policy)))
}
