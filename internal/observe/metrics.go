// Package observe provides the observability primitives shared by every
// tartil component: OpenTelemetry metrics, tracing helpers, trace-aware
// structured logging and the HTTP middleware that ties them together.
//
// Metrics are recorded through the OpenTelemetry Metrics API and exported in
// Prometheus format via [InitProvider]. Tests should build their own
// [Metrics] with [NewMetrics] and a [sdkmetric.ManualReader] instead of
// relying on [DefaultMetrics].
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all tartil metrics.
const meterName = "github.com/MrWong99/tartil"

// Metrics holds all OpenTelemetry instruments for the service. The
// underlying OTel types handle their own synchronisation.
type Metrics struct {
	// AnalysisDuration tracks the time spent in the analysis engine for one
	// ayah, transcription excluded.
	AnalysisDuration metric.Float64Histogram

	// STTDuration tracks transcription latency. Attribute: provider.
	STTDuration metric.Float64Histogram

	// HTTPRequestDuration tracks HTTP request processing time. Attributes:
	// method, path, status.
	HTTPRequestDuration metric.Float64Histogram

	// Accuracy is the distribution of per-ayah accuracy percentages.
	Accuracy metric.Int64Histogram

	// TajweedScore is the distribution of per-ayah tajweed scores.
	TajweedScore metric.Int64Histogram

	// UploadBytes is the size distribution of accepted audio uploads.
	UploadBytes metric.Int64Histogram

	// ProviderRequests counts provider calls. Attributes: provider, kind,
	// status.
	ProviderRequests metric.Int64Counter

	// ProviderErrors counts provider failures. Attributes: provider, kind.
	ProviderErrors metric.Int64Counter

	// TranscriptionFallbacks counts analyses that used the synthetic
	// transcript. Attribute: reason (error, timeout, unconfigured).
	TranscriptionFallbacks metric.Int64Counter

	// BreakerTransitions counts circuit breaker state changes. Attributes:
	// provider, state.
	BreakerTransitions metric.Int64Counter

	// Mistakes counts compiled mistakes. Attributes: type, severity.
	Mistakes metric.Int64Counter

	// ActiveAnalyses is the number of analyse requests in flight.
	ActiveAnalyses metric.Int64UpDownCounter
}

// latencyBuckets are histogram boundaries in seconds. Remote transcription
// dominates so the upper range is generous.
var latencyBuckets = []float64{
	0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30,
}

var percentBuckets = []float64{10, 20, 30, 40, 50, 60, 70, 80, 90, 100}

var uploadBuckets = []float64{
	16 << 10, 64 << 10, 256 << 10, 1 << 20, 4 << 20, 16 << 20, 32 << 20,
}

// NewMetrics creates every instrument on the given [metric.MeterProvider].
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Histograms.
	if met.AnalysisDuration, err = m.Float64Histogram("tartil.analysis.duration",
		metric.WithDescription("Latency of the recitation analysis engine."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.STTDuration, err = m.Float64Histogram("tartil.stt.duration",
		metric.WithDescription("Latency of speech-to-text transcription."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.HTTPRequestDuration, err = m.Float64Histogram("tartil.http.request.duration",
		metric.WithDescription("HTTP request latency by method, path and status."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.Accuracy, err = m.Int64Histogram("tartil.analysis.accuracy",
		metric.WithDescription("Per-ayah recitation accuracy."),
		metric.WithUnit("%"),
		metric.WithExplicitBucketBoundaries(percentBuckets...),
	); err != nil {
		return nil, err
	}
	if met.TajweedScore, err = m.Int64Histogram("tartil.analysis.tajweed_score",
		metric.WithDescription("Per-ayah tajweed score."),
		metric.WithUnit("%"),
		metric.WithExplicitBucketBoundaries(percentBuckets...),
	); err != nil {
		return nil, err
	}
	if met.UploadBytes, err = m.Int64Histogram("tartil.upload.size",
		metric.WithDescription("Size of accepted audio uploads."),
		metric.WithUnit("By"),
		metric.WithExplicitBucketBoundaries(uploadBuckets...),
	); err != nil {
		return nil, err
	}

	// Counters.
	if met.ProviderRequests, err = m.Int64Counter("tartil.provider.requests",
		metric.WithDescription("Total provider requests by provider, kind, and status."),
	); err != nil {
		return nil, err
	}
	if met.ProviderErrors, err = m.Int64Counter("tartil.provider.errors",
		metric.WithDescription("Total provider errors by provider and kind."),
	); err != nil {
		return nil, err
	}
	if met.TranscriptionFallbacks, err = m.Int64Counter("tartil.transcription.fallbacks",
		metric.WithDescription("Analyses that used the synthetic transcript, by reason."),
	); err != nil {
		return nil, err
	}
	if met.BreakerTransitions, err = m.Int64Counter("tartil.circuit_breaker.transitions",
		metric.WithDescription("Circuit breaker state changes by provider and new state."),
	); err != nil {
		return nil, err
	}
	if met.Mistakes, err = m.Int64Counter("tartil.analysis.mistakes",
		metric.WithDescription("Compiled mistakes by type and severity."),
	); err != nil {
		return nil, err
	}

	if met.ActiveAnalyses, err = m.Int64UpDownCounter("tartil.active_analyses",
		metric.WithDescription("Number of analyse requests in flight."),
	); err != nil {
		return nil, err
	}

	return met, nil
}

var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it on
// first call from [otel.GetMeterProvider]. Call it after [InitProvider] so
// the instruments bind to the exporting provider.
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

// RecordProviderRequest increments ProviderRequests with the standard
// attribute set.
func (m *Metrics) RecordProviderRequest(ctx context.Context, provider, kind, status string) {
	m.ProviderRequests.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("kind", kind),
			attribute.String("status", status),
		),
	)
}

// RecordProviderError increments ProviderErrors.
func (m *Metrics) RecordProviderError(ctx context.Context, provider, kind string) {
	m.ProviderErrors.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("kind", kind),
		),
	)
}

// RecordFallback increments TranscriptionFallbacks for reason.
func (m *Metrics) RecordFallback(ctx context.Context, reason string) {
	m.TranscriptionFallbacks.Add(ctx, 1,
		metric.WithAttributes(attribute.String("reason", reason)),
	)
}

// RecordBreakerTransition increments BreakerTransitions.
func (m *Metrics) RecordBreakerTransition(ctx context.Context, provider, state string) {
	m.BreakerTransitions.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("state", state),
		),
	)
}

// RecordScores records one analysed ayah's accuracy and tajweed score.
func (m *Metrics) RecordScores(ctx context.Context, accuracy, tajweedScore int) {
	m.Accuracy.Record(ctx, int64(accuracy))
	m.TajweedScore.Record(ctx, int64(tajweedScore))
}

// RecordMistake increments Mistakes.
func (m *Metrics) RecordMistake(ctx context.Context, typ, severity string) {
	m.Mistakes.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("type", typ),
			attribute.String("severity", severity),
		),
	)
}
