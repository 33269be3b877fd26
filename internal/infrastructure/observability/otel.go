package observability

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/runtime"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
)

const (
	instrumentationName  = "github.com/zatekoja/knowledgeanalytics"
	metricExportInterval = 30 * time.Second
)

// Metrics holds all application metrics. A nil *Metrics records nothing.
type Metrics struct {
	AttemptsRecorded    metric.Int64Counter
	DuplicateAttempts   metric.Int64Counter
	QuestionsClassified metric.Int64Counter
	LowConfidenceTags   metric.Int64Counter
	CacheHitCount       metric.Int64Counter
	CacheMissCount      metric.Int64Counter
	DBQueryDuration     metric.Float64Histogram
}

// Setup initializes OpenTelemetry tracing and metrics with OTLP gRPC
// exporters. The returned function flushes and stops both providers.
func Setup(ctx context.Context, serviceName, serviceVersion, endpoint string) (func(context.Context) error, error) {
	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(serviceName),
			semconv.ServiceVersion(serviceVersion),
		),
	)
	if err != nil {
		return nil, err
	}

	traceExporter, err := otlptracegrpc.New(ctx,
		otlptracegrpc.WithEndpoint(endpoint),
		otlptracegrpc.WithInsecure(),
	)
	if err != nil {
		return nil, err
	}

	metricExporter, err := otlpmetricgrpc.New(ctx,
		otlpmetricgrpc.WithEndpoint(endpoint),
		otlpmetricgrpc.WithInsecure(),
	)
	if err != nil {
		_ = traceExporter.Shutdown(ctx)
		return nil, err
	}

	tracerProvider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(traceExporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tracerProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	meterProvider := installMeterProvider(res, sdkmetric.NewPeriodicReader(metricExporter,
		sdkmetric.WithInterval(metricExportInterval),
	))
	if err := runtime.Start(runtime.WithMeterProvider(meterProvider)); err != nil {
		_ = meterProvider.Shutdown(ctx)
		_ = tracerProvider.Shutdown(ctx)
		return nil, err
	}

	return func(ctx context.Context) error {
		return errors.Join(
			meterProvider.Shutdown(ctx),
			tracerProvider.Shutdown(ctx),
		)
	}, nil
}

// installMeterProvider makes reader the global metric pipeline. Instruments
// created by InitMetrics afterwards report through it.
func installMeterProvider(res *resource.Resource, reader sdkmetric.Reader) *sdkmetric.MeterProvider {
	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(reader),
		sdkmetric.WithResource(res),
	)
	otel.SetMeterProvider(provider)
	return provider
}

// InitMetrics initializes application metrics on the global meter provider.
// Call it after Setup so the instruments export.
func InitMetrics() (*Metrics, error) {
	return NewMetrics(otel.Meter(instrumentationName))
}

// NewMetrics creates the application instruments on meter
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{}

	counters := []struct {
		dst  *metric.Int64Counter
		name string
		desc string
	}{
		{&m.AttemptsRecorded, "analytics.attempts.recorded", "Quiz attempts folded into user statistics"},
		{&m.DuplicateAttempts, "analytics.attempts.duplicate", "Quiz attempts skipped because they were already processed"},
		{&m.QuestionsClassified, "categorizer.questions.classified", "Questions classified into a knowledge category"},
		{&m.LowConfidenceTags, "categorizer.questions.low_confidence", "Classifications flagged for manual review"},
		{&m.CacheHitCount, "cache.hit.count", "Number of cache hits"},
		{&m.CacheMissCount, "cache.miss.count", "Number of cache misses"},
	}
	for _, c := range counters {
		counter, err := meter.Int64Counter(c.name, metric.WithDescription(c.desc))
		if err != nil {
			return nil, err
		}
		*c.dst = counter
	}

	dbQueryDuration, err := meter.Float64Histogram(
		"db.query.duration",
		metric.WithDescription("Database query duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}
	m.DBQueryDuration = dbQueryDuration

	return m, nil
}

// StartSpan starts a new trace span
func StartSpan(ctx context.Context, spanName string) (context.Context, trace.Span) {
	return otel.Tracer(instrumentationName).Start(ctx, spanName)
}

// RecordError records an error in the span
func RecordError(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
	}
}

// RecordAttempt counts a processed attempt as applied or duplicate
func (m *Metrics) RecordAttempt(ctx context.Context, restaurantID string, applied bool) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("restaurant.id", restaurantID))
	if applied {
		m.AttemptsRecorded.Add(ctx, 1, attrs)
		return
	}
	m.DuplicateAttempts.Add(ctx, 1, attrs)
}

// RecordClassification counts one classification by category
func (m *Metrics) RecordClassification(ctx context.Context, category string, needsReview bool) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("knowledge.category", category))
	m.QuestionsClassified.Add(ctx, 1, attrs)
	if needsReview {
		m.LowConfidenceTags.Add(ctx, 1, attrs)
	}
}

// RecordCacheResult records a cache hit or miss for a view kind
func (m *Metrics) RecordCacheResult(ctx context.Context, kind string, hit bool) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("cache.kind", kind))
	if hit {
		m.CacheHitCount.Add(ctx, 1, attrs)
		return
	}
	m.CacheMissCount.Add(ctx, 1, attrs)
}

// RecordDBQuery records a database operation duration
func (m *Metrics) RecordDBQuery(ctx context.Context, operation string, duration time.Duration) {
	if m == nil {
		return
	}
	m.DBQueryDuration.Record(ctx, float64(duration)/float64(time.Millisecond),
		metric.WithAttributes(attribute.String("db.operation", operation)))
}
