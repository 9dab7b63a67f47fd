package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/ventaflow/scheduling"

// Metrics holds all application metrics
type Metrics struct {
	RequestCount       metric.Int64Counter
	RequestDuration    metric.Float64Histogram
	BookingAttempts    metric.Int64Counter
	BookingConflicts   metric.Int64Counter
	SyncCycleDuration  metric.Float64Histogram
	SyncFailureCount   metric.Int64Counter
	PropagationRetries metric.Int64Counter
}

// Setup initializes OpenTelemetry
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

	tracerProvider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(traceExporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tracerProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	shutdown := func(ctx context.Context) error {
		return tracerProvider.Shutdown(ctx)
	}

	return shutdown, nil
}

// InitMetrics initializes application metrics
func InitMetrics() (*Metrics, error) {
	meter := otel.Meter(instrumentationName)

	requestCount, err := meter.Int64Counter(
		"http.server.request.count",
		metric.WithDescription("Number of HTTP requests"),
	)
	if err != nil {
		return nil, err
	}

	requestDuration, err := meter.Float64Histogram(
		"http.server.request.duration",
		metric.WithDescription("HTTP request duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	bookingAttempts, err := meter.Int64Counter(
		"booking.attempt.count",
		metric.WithDescription("Number of booking create/reschedule attempts"),
	)
	if err != nil {
		return nil, err
	}

	bookingConflicts, err := meter.Int64Counter(
		"booking.conflict.count",
		metric.WithDescription("Number of booking attempts rejected with a conflict"),
	)
	if err != nil {
		return nil, err
	}

	syncCycleDuration, err := meter.Float64Histogram(
		"sync.cycle.duration",
		metric.WithDescription("Reconciliation cycle duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	syncFailureCount, err := meter.Int64Counter(
		"sync.failure.count",
		metric.WithDescription("Number of failed reconciliation cycles"),
	)
	if err != nil {
		return nil, err
	}

	propagationRetries, err := meter.Int64Counter(
		"propagation.retry.count",
		metric.WithDescription("Number of retried external propagation calls"),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{
		RequestCount:       requestCount,
		RequestDuration:    requestDuration,
		BookingAttempts:    bookingAttempts,
		BookingConflicts:   bookingConflicts,
		SyncCycleDuration:  syncCycleDuration,
		SyncFailureCount:   syncFailureCount,
		PropagationRetries: propagationRetries,
	}, nil
}

// StartSpan starts a new trace span
func StartSpan(ctx context.Context, spanName string) (context.Context, trace.Span) {
	tracer := otel.Tracer(instrumentationName)
	return tracer.Start(ctx, spanName)
}

// RecordError records an error in the current span
func RecordError(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
	}
}

// SetSpanAttributes sets attributes on a span
func SetSpanAttributes(span trace.Span, attrs ...attribute.KeyValue) {
	span.SetAttributes(attrs...)
}

// RecordRequestMetric records a request metric with attributes
func RecordRequestMetric(ctx context.Context, metrics *Metrics, method, path string, statusCode int, duration time.Duration) {
	if metrics == nil {
		return
	}
	attrs := []attribute.KeyValue{
		attribute.String("http.method", method),
		attribute.String("http.route", path),
		attribute.Int("http.status_code", statusCode),
	}

	metrics.RequestCount.Add(ctx, 1, metric.WithAttributes(attrs...))
	metrics.RequestDuration.Record(ctx, float64(duration.Milliseconds()), metric.WithAttributes(attrs...))
}

// RecordBookingAttempt records a booking attempt and its outcome
func RecordBookingAttempt(ctx context.Context, metrics *Metrics, operation string, conflict bool) {
	if metrics == nil {
		return
	}
	attrs := []attribute.KeyValue{
		attribute.String("booking.operation", operation),
	}
	metrics.BookingAttempts.Add(ctx, 1, metric.WithAttributes(attrs...))
	if conflict {
		metrics.BookingConflicts.Add(ctx, 1, metric.WithAttributes(attrs...))
	}
}

// RecordSyncCycle records the outcome of one reconciliation cycle
func RecordSyncCycle(ctx context.Context, metrics *Metrics, resourceID string, duration time.Duration, failed bool) {
	if metrics == nil {
		return
	}
	attrs := []attribute.KeyValue{
		attribute.String("resource.id", resourceID),
	}
	metrics.SyncCycleDuration.Record(ctx, float64(duration.Milliseconds()), metric.WithAttributes(attrs...))
	if failed {
		metrics.SyncFailureCount.Add(ctx, 1, metric.WithAttributes(attrs...))
	}
}

// RecordPropagationRetry counts a retried push to the external provider
func RecordPropagationRetry(ctx context.Context, metrics *Metrics, provider string) {
	if metrics == nil {
		return
	}
	metrics.PropagationRetries.Add(ctx, 1, metric.WithAttributes(
		attribute.String("calendar.provider", provider),
	))
}
