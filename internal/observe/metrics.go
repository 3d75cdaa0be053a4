// Package observe provides application-wide observability primitives for
// Starline: OpenTelemetry metrics, distributed tracing, structured logging,
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

// meterName is the instrumentation scope name used for all Starline metrics.
const meterName = "github.com/starlinehq/starline"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Latency histograms ---

	// ConnectDuration tracks the time from dial until the live session
	// reports ready, including any tier queue delay.
	ConnectDuration metric.Float64Histogram

	// CallDuration tracks the length of finished calls.
	CallDuration metric.Float64Histogram

	// --- Counters ---

	// CallsStarted counts calls that reached the connected state. Use with
	// attributes:
	//   attribute.String("category", ...), attribute.String("tier", ...)
	CallsStarted metric.Int64Counter

	// FramesSent counts outward microphone frames handed to the transport.
	FramesSent metric.Int64Counter

	// FramesReceived counts inward synthesised audio frames.
	FramesReceived metric.Int64Counter

	// Interruptions counts barge-in events where caller speech cut off
	// model playback.
	Interruptions metric.Int64Counter

	// --- Error counters ---

	// TransportErrors counts live transport failures. Use with attribute:
	//   attribute.String("class", ...) ("overloaded", "transport", ...)
	TransportErrors metric.Int64Counter

	// --- Gauges ---

	// ActiveCalls tracks the number of live calls.
	ActiveCalls metric.Int64UpDownCounter

	// --- HTTP middleware ---

	// HTTPRequestDuration tracks HTTP request processing time. Use with attributes:
	//   attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// connectBuckets defines histogram bucket boundaries (in seconds) for the
// dial-to-ready path, which includes tier queue delays of up to 2.5 s.
var connectBuckets = []float64{
	0.1, 0.25, 0.5, 1, 1.5, 2, 2.5, 3, 5, 10,
}

// callBuckets defines histogram bucket boundaries (in seconds) for whole
// call durations.
var callBuckets = []float64{
	15, 30, 60, 120, 300, 600, 900, 1800, 3600,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Histograms.
	if met.ConnectDuration, err = m.Float64Histogram("starline.call.connect.duration",
		metric.WithDescription("Time from dial until the live session is ready."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(connectBuckets...),
	); err != nil {
		return nil, err
	}
	if met.CallDuration, err = m.Float64Histogram("starline.call.duration",
		metric.WithDescription("Length of finished calls."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(callBuckets...),
	); err != nil {
		return nil, err
	}

	// Counters.
	if met.CallsStarted, err = m.Int64Counter("starline.calls.started",
		metric.WithDescription("Total calls that reached the connected state, by category and tier."),
	); err != nil {
		return nil, err
	}
	if met.FramesSent, err = m.Int64Counter("starline.audio.frames.sent",
		metric.WithDescription("Total outward microphone frames handed to the transport."),
	); err != nil {
		return nil, err
	}
	if met.FramesReceived, err = m.Int64Counter("starline.audio.frames.received",
		metric.WithDescription("Total inward synthesised audio frames."),
	); err != nil {
		return nil, err
	}
	if met.Interruptions, err = m.Int64Counter("starline.call.interruptions",
		metric.WithDescription("Total barge-in events that cut off model playback."),
	); err != nil {
		return nil, err
	}

	// Error counters.
	if met.TransportErrors, err = m.Int64Counter("starline.transport.errors",
		metric.WithDescription("Total live transport failures by error class."),
	); err != nil {
		return nil, err
	}

	// Gauges (UpDownCounters).
	if met.ActiveCalls, err = m.Int64UpDownCounter("starline.active_calls",
		metric.WithDescription("Number of live calls."),
	); err != nil {
		return nil, err
	}

	// HTTP middleware histogram.
	if met.HTTPRequestDuration, err = m.Float64Histogram("starline.http.request.duration",
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

// RecordCallStarted records a call reaching the connected state with the
// standard attribute set.
func (m *Metrics) RecordCallStarted(ctx context.Context, category, tier string) {
	m.CallsStarted.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("category", category),
			attribute.String("tier", tier),
		),
	)
}

// RecordTransportError records a live transport failure with its error
// class.
func (m *Metrics) RecordTransportError(ctx context.Context, class string) {
	m.TransportErrors.Add(ctx, 1,
		metric.WithAttributes(attribute.String("class", class)),
	)
}

// RecordInterruption records one barge-in event.
func (m *Metrics) RecordInterruption(ctx context.Context) {
	m.Interruptions.Add(ctx, 1)
}
