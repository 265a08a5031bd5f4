// Package testing provides in-memory OpenTelemetry providers and assertion
// helpers for tests that exercise dispatch spans and metrics.
//
// Usage:
//
//	tp := NewTestTraceProvider()
//	mp := NewTestMeterProvider()
//	d := dispatch.NewBuilder(log).
//		WithTracerProvider(tp).
//		WithMeterProvider(mp).
//		Build()
//
//	_, _ = d.Dispatch(ctx, opts)
//
//	span := NewSpanCollector(t, tp.Exporter).WithName("HTTP GET").First()
//	AssertSpanAttribute(t, &span, "dispatch.attempts", 1)
//	assert.Equal(t, int64(1), SumInt64(t, mp.Collect(t), "dispatch.attempts"))
package testing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

const (
	attrValueMismatchErrMsg = "attribute %s value mismatch"
	metricNotFoundErrMsg    = "metric %s not found"
)

// TestTraceProvider wraps the SDK TracerProvider and in-memory exporter for testing.
type TestTraceProvider struct {
	*sdktrace.TracerProvider
	Exporter *tracetest.InMemoryExporter
}

// NewTestTraceProvider creates a TracerProvider that exports synchronously
// to memory.
func NewTestTraceProvider() *TestTraceProvider {
	exporter := tracetest.NewInMemoryExporter()
	provider := sdktrace.NewTracerProvider(
		sdktrace.WithSyncer(exporter),
	)

	return &TestTraceProvider{
		TracerProvider: provider,
		Exporter:       exporter,
	}
}

// TestMeterProvider wraps the SDK MeterProvider and manual reader for testing.
type TestMeterProvider struct {
	*sdkmetric.MeterProvider
	Reader *sdkmetric.ManualReader
}

// NewTestMeterProvider creates a MeterProvider with a manual reader.
func NewTestMeterProvider() *TestMeterProvider {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(reader),
	)

	return &TestMeterProvider{
		MeterProvider: provider,
		Reader:        reader,
	}
}

// Collect reads all metrics from the provider.
func (tmp *TestMeterProvider) Collect(t *testing.T) metricdata.ResourceMetrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	err := tmp.Reader.Collect(context.Background(), &rm)
	require.NoError(t, err, "failed to collect metrics")
	return rm
}

// SpanCollector provides a fluent API for filtering and asserting on captured spans.
type SpanCollector struct {
	t     *testing.T
	spans tracetest.SpanStubs
}

// NewSpanCollector creates a span collector from an in-memory exporter.
func NewSpanCollector(t *testing.T, exporter *tracetest.InMemoryExporter) *SpanCollector {
	t.Helper()
	return &SpanCollector{
		t:     t,
		spans: exporter.GetSpans(),
	}
}

// Len returns the number of collected spans.
func (sc *SpanCollector) Len() int {
	return len(sc.spans)
}

// WithName filters spans by name and returns a new collector.
func (sc *SpanCollector) WithName(name string) *SpanCollector {
	sc.t.Helper()
	filtered := make(tracetest.SpanStubs, 0)
	for i := range sc.spans {
		if sc.spans[i].Name == name {
			filtered = append(filtered, sc.spans[i])
		}
	}
	return &SpanCollector{t: sc.t, spans: filtered}
}

// First returns the first span in the collection.
// Fails the test if the collection is empty.
func (sc *SpanCollector) First() tracetest.SpanStub {
	sc.t.Helper()
	require.NotEmpty(sc.t, sc.spans, "no spans in collection")
	return sc.spans[0]
}

// AssertCount asserts the number of collected spans.
func (sc *SpanCollector) AssertCount(expected int) *SpanCollector {
	sc.t.Helper()
	assert.Len(sc.t, sc.spans, expected, "unexpected number of spans")
	return sc
}

// AssertSpanAttribute asserts that a span has a specific attribute with the expected value.
func AssertSpanAttribute(t *testing.T, span *tracetest.SpanStub, key string, expected any) {
	t.Helper()
	for _, attr := range span.Attributes {
		if string(attr.Key) != key {
			continue
		}
		switch v := expected.(type) {
		case string:
			assert.Equal(t, v, attr.Value.AsString(), attrValueMismatchErrMsg, key)
		case int:
			assert.Equal(t, int64(v), attr.Value.AsInt64(), attrValueMismatchErrMsg, key)
		case int64:
			assert.Equal(t, v, attr.Value.AsInt64(), attrValueMismatchErrMsg, key)
		case bool:
			assert.Equal(t, v, attr.Value.AsBool(), attrValueMismatchErrMsg, key)
		default:
			t.Fatalf("unsupported attribute value type: %T", expected)
		}
		return
	}
	t.Errorf("attribute %s not found in span", key)
}

// HasSpanAttribute reports whether span carries key.
func HasSpanAttribute(span *tracetest.SpanStub, key string) bool {
	for _, attr := range span.Attributes {
		if attr.Key == attribute.Key(key) {
			return true
		}
	}
	return false
}

// AssertSpanError asserts that a span has an error status with the expected description.
func AssertSpanError(t *testing.T, span *tracetest.SpanStub, expectedDesc string) {
	t.Helper()
	assert.Equal(t, codes.Error, span.Status.Code, "expected error status")
	if expectedDesc != "" {
		assert.Equal(t, expectedDesc, span.Status.Description, "span error description mismatch")
	}
}

// FindMetric finds a metric by name in the ResourceMetrics.
// Returns nil if not found.
func FindMetric(rm metricdata.ResourceMetrics, metricName string) *metricdata.Metrics {
	for _, sm := range rm.ScopeMetrics {
		for i := range sm.Metrics {
			if sm.Metrics[i].Name == metricName {
				return &sm.Metrics[i]
			}
		}
	}
	return nil
}

// SumInt64 totals every data point of an int64 Sum metric.
func SumInt64(t *testing.T, rm metricdata.ResourceMetrics, metricName string) int64 {
	t.Helper()
	m := FindMetric(rm, metricName)
	require.NotNil(t, m, metricNotFoundErrMsg, metricName)
	data, ok := m.Data.(metricdata.Sum[int64])
	require.True(t, ok, "metric %s is not a Sum[int64]", metricName)

	var total int64
	for _, dp := range data.DataPoints {
		total += dp.Value
	}
	return total
}

// SumInt64Where totals the data points of an int64 Sum metric carrying attr.
func SumInt64Where(t *testing.T, rm metricdata.ResourceMetrics, metricName string, attr attribute.KeyValue) int64 {
	t.Helper()
	m := FindMetric(rm, metricName)
	require.NotNil(t, m, metricNotFoundErrMsg, metricName)
	data, ok := m.Data.(metricdata.Sum[int64])
	require.True(t, ok, "metric %s is not a Sum[int64]", metricName)

	var total int64
	for _, dp := range data.DataPoints {
		if v, found := dp.Attributes.Value(attr.Key); found && v.Emit() == attr.Value.Emit() {
			total += dp.Value
		}
	}
	return total
}

// HistogramCount totals the observation count of a float64 Histogram metric.
func HistogramCount(t *testing.T, rm metricdata.ResourceMetrics, metricName string) uint64 {
	t.Helper()
	m := FindMetric(rm, metricName)
	require.NotNil(t, m, metricNotFoundErrMsg, metricName)
	data, ok := m.Data.(metricdata.Histogram[float64])
	require.True(t, ok, "metric %s is not a Histogram[float64]", metricName)

	var total uint64
	for _, dp := range data.DataPoints {
		total += dp.Count
	}
	return total
}
