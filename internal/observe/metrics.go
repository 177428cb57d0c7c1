// Package observe provides application-wide observability primitives for
// petspeak: OpenTelemetry metrics, distributed tracing, structured logging,
// and HTTP middleware that ties them together.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can still be
// scraped via the standard /metrics endpoint. A package-level default
// [Metrics] instance ([DefaultMetrics]) is provided for convenience; tests
// should use [NewMetrics] with a custom [metric.MeterProvider] to avoid
// cross-test pollution.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all petspeak metrics.
const meterName = "github.com/petspeakapp/petspeak"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Latency histograms ---

	// AnalysisDuration tracks the end-to-end latency of an analysis request,
	// transcription and interpretation included.
	AnalysisDuration metric.Float64Histogram

	// --- Counters ---

	// ProviderRequests counts analysis provider API calls. Use with attributes:
	//   attribute.String("provider", ...), attribute.String("status", ...)
	ProviderRequests metric.Int64Counter

	// ProviderErrors counts analysis provider errors. Use with attribute:
	//   attribute.String("provider", ...)
	ProviderErrors metric.Int64Counter

	// CreditReservations counts credit reservation attempts. Use with attribute:
	//   attribute.String("outcome", "reserved"|"denied"|"error")
	CreditReservations metric.Int64Counter

	// RecordingsSaved counts history entries appended. Use with attribute:
	//   attribute.String("animal", ...)
	RecordingsSaved metric.Int64Counter

	// --- Gauges ---

	// ActiveAnalyses tracks the number of analysis requests in flight.
	ActiveAnalyses metric.Int64UpDownCounter

	// --- HTTP middleware ---

	// HTTPRequestDuration tracks HTTP request processing time. Use with attributes:
	//   attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds). Analysis
// calls span a remote transcription plus an LLM completion, so the upper
// buckets run longer than typical HTTP latencies.
var latencyBuckets = []float64{
	0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 30,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.AnalysisDuration, err = m.Float64Histogram("petspeak.analysis.duration",
		metric.WithDescription("End-to-end latency of a pet-sound analysis."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	if met.ProviderRequests, err = m.Int64Counter("petspeak.provider.requests",
		metric.WithDescription("Total analysis provider requests by provider and status."),
	); err != nil {
		return nil, err
	}
	if met.ProviderErrors, err = m.Int64Counter("petspeak.provider.errors",
		metric.WithDescription("Total analysis provider errors by provider."),
	); err != nil {
		return nil, err
	}
	if met.CreditReservations, err = m.Int64Counter("petspeak.credit.reservations",
		metric.WithDescription("Total credit reservation attempts by outcome."),
	); err != nil {
		return nil, err
	}
	if met.RecordingsSaved, err = m.Int64Counter("petspeak.recordings.saved",
		metric.WithDescription("Total history entries saved by animal type."),
	); err != nil {
		return nil, err
	}

	if met.ActiveAnalyses, err = m.Int64UpDownCounter("petspeak.active_analyses",
		metric.WithDescription("Number of analysis requests currently in flight."),
	); err != nil {
		return nil, err
	}

	if met.HTTPRequestDuration, err = m.Float64Histogram("petspeak.http.request.duration",
		metric.WithDescription("HTTP request latency by method and path."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// defaultMetrics is the lazily-initialised package-level Metrics instance.
var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it on
// first call using [otel.GetMeterProvider]. Subsequent calls return the same
// pointer. Panics if instrument creation fails (should not happen with the
// global provider).
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

// Attr is a convenience alias for [attribute.String] to reduce verbosity at
// call sites.
func Attr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// RecordProviderRequest records a provider request counter increment with the
// standard attribute set.
func (m *Metrics) RecordProviderRequest(ctx context.Context, provider, status string) {
	m.ProviderRequests.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("status", status),
		),
	)
}

// RecordProviderError records a provider error counter increment.
func (m *Metrics) RecordProviderError(ctx context.Context, provider string) {
	m.ProviderErrors.Add(ctx, 1,
		metric.WithAttributes(attribute.String("provider", provider)),
	)
}

// RecordCreditReservation records a credit reservation attempt by outcome.
func (m *Metrics) RecordCreditReservation(ctx context.Context, outcome string) {
	m.CreditReservations.Add(ctx, 1,
		metric.WithAttributes(attribute.String("outcome", outcome)),
	)
}

// RecordRecordingSaved records a saved history entry by animal type.
func (m *Metrics) RecordRecordingSaved(ctx context.Context, animal string) {
	m.RecordingsSaved.Add(ctx, 1,
		metric.WithAttributes(attribute.String("animal", animal)),
	)
}
