// Package tracking records OpenTelemetry spans and metrics for dispatched
// requests.
package tracking

import (
	"context"
	"fmt"
	"os"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	semconv "go.opentelemetry.io/otel/semconv/v1.32.0"
	"go.opentelemetry.io/otel/trace"
)

const (
	instrumentationName = "caccl-send-request/dispatch"

	metricAttempts = "dispatch.attempts" // Counter
	metricDuration = "dispatch.duration" // Histogram in seconds

	attrOutcome  = "outcome"
	attrAttempts = "dispatch.attempts"
)

// Attempt outcomes
const (
	OutcomeCompleted        = "completed"
	OutcomeTransportFailure = "transport_failure"
)

// Recorder creates one client span per dispatch and counts attempts.
// A zero Recorder is not usable; construct with NewRecorder.
type Recorder struct {
	tracer   trace.Tracer
	attempts metric.Int64Counter
	duration metric.Float64Histogram
}

// NewRecorder builds a Recorder. Nil providers fall back to the global
// OpenTelemetry providers.
func NewRecorder(tp trace.TracerProvider, mp metric.MeterProvider) *Recorder {
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	if mp == nil {
		mp = otel.GetMeterProvider()
	}

	meter := mp.Meter(instrumentationName)
	r := &Recorder{tracer: tp.Tracer(instrumentationName)}

	var err error
	r.attempts, err = meter.Int64Counter(
		metricAttempts,
		metric.WithDescription("Number of transport attempts made by the dispatcher"),
		metric.WithUnit("{attempt}"),
	)
	logMetricError(metricAttempts, err)

	r.duration, err = meter.Float64Histogram(
		metricDuration,
		metric.WithDescription("Duration of dispatched requests including retries"),
		metric.WithUnit("s"),
	)
	logMetricError(metricDuration, err)

	return r
}

func logMetricError(name string, err error) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "WARNING: Failed to initialize dispatch metric %s: %v\n", name, err)
	}
}

// Start opens the span covering every attempt of one dispatch.
func (r *Recorder) Start(ctx context.Context, method, fullURL, host string) (context.Context, trace.Span) {
	attrs := []attribute.KeyValue{
		semconv.HTTPRequestMethodKey.String(method),
		semconv.URLFull(fullURL),
	}
	if host != "" {
		attrs = append(attrs, semconv.ServerAddress(host))
	}
	return r.tracer.Start(ctx, "HTTP "+method,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attrs...),
	)
}

// RecordAttempt counts a single transport attempt.
func (r *Recorder) RecordAttempt(ctx context.Context, method, outcome string) {
	if r.attempts == nil {
		return
	}
	r.attempts.Add(ctx, 1, metric.WithAttributes(
		semconv.HTTPRequestMethodKey.String(method),
		attribute.String(attrOutcome, outcome),
	))
}

// Finish closes span and records the overall duration. errorType is the
// dispatch error code for failed calls and empty otherwise.
func (r *Recorder) Finish(ctx context.Context, span trace.Span, method string, start time.Time, status, attempts int, errorType string, err error) {
	attrs := []attribute.KeyValue{
		semconv.HTTPRequestMethodKey.String(method),
	}
	span.SetAttributes(attribute.Int(attrAttempts, attempts))

	if status > 0 {
		span.SetAttributes(semconv.HTTPResponseStatusCode(status))
		attrs = append(attrs, semconv.HTTPResponseStatusCode(status))
	}
	if errorType != "" {
		span.SetAttributes(semconv.ErrorTypeKey.String(errorType))
		attrs = append(attrs, semconv.ErrorTypeKey.String(errorType))
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()

	if r.duration != nil {
		r.duration.Record(ctx, time.Since(start).Seconds(), metric.WithAttributes(attrs...))
	}
}
