package observability

import (
	"context"

	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

// disabledProvider is what NewProvider returns when observability.enabled is
// false. Dispatch spans and attempt counters still run through it and are
// dropped.
type disabledProvider struct{}

var _ Provider = disabledProvider{}

func (disabledProvider) TracerProvider() trace.TracerProvider { return tracenoop.NewTracerProvider() }

func (disabledProvider) MeterProvider() metric.MeterProvider { return metricnoop.NewMeterProvider() }

func (disabledProvider) Shutdown(context.Context) error { return nil }

func (disabledProvider) ForceFlush(context.Context) error { return nil }
