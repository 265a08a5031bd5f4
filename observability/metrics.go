package observability

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"google.golang.org/grpc/credentials/insecure"
)

// initMeterProvider initializes the OpenTelemetry meter provider.
func (p *provider) initMeterProvider() error {
	res, err := p.createResource()
	if err != nil {
		return fmt.Errorf("failed to create resource: %w", err)
	}

	exporter, err := p.createMetricExporter()
	if err != nil {
		return fmt.Errorf("failed to create metric exporter: %w", err)
	}

	reader := sdkmetric.NewPeriodicReader(
		exporter,
		sdkmetric.WithInterval(p.config.Metrics.Interval),
		sdkmetric.WithTimeout(p.config.Trace.ExportTimeout),
	)

	p.meterProvider = sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(reader),
	)
	return nil
}

// createMetricExporter creates a metric exporter based on the configured endpoint.
// Metrics use the same protocol configuration as traces.
func (p *provider) createMetricExporter() (sdkmetric.Exporter, error) {
	if p.config.Metrics.Endpoint == EndpointStdout {
		return stdoutmetric.New(stdoutmetric.WithPrettyPrint())
	}

	switch p.config.Trace.Protocol {
	case ProtocolHTTP:
		return p.createOTLPHTTPMetricExporter()
	case ProtocolGRPC:
		return p.createOTLPGRPCMetricExporter()
	default:
		return nil, fmt.Errorf("metrics protocol '%s': %w", p.config.Trace.Protocol, ErrInvalidProtocol)
	}
}

// createOTLPHTTPMetricExporter creates an OTLP HTTP metric exporter.
func (p *provider) createOTLPHTTPMetricExporter() (sdkmetric.Exporter, error) {
	endpoint := p.config.Metrics.Endpoint
	var opts []otlpmetrichttp.Option
	if hasScheme(endpoint) {
		opts = append(opts, otlpmetrichttp.WithEndpointURL(endpoint))
	} else {
		opts = append(opts, otlpmetrichttp.WithEndpoint(endpoint))
	}
	if p.config.Trace.Insecure {
		opts = append(opts, otlpmetrichttp.WithInsecure())
	}
	if len(p.config.Trace.Headers) > 0 {
		opts = append(opts, otlpmetrichttp.WithHeaders(p.config.Trace.Headers))
	}
	return otlpmetrichttp.New(context.Background(), opts...)
}

// createOTLPGRPCMetricExporter creates an OTLP gRPC metric exporter.
func (p *provider) createOTLPGRPCMetricExporter() (sdkmetric.Exporter, error) {
	opts := []otlpmetricgrpc.Option{
		otlpmetricgrpc.WithEndpoint(p.config.Metrics.Endpoint),
	}
	if p.config.Trace.Insecure {
		opts = append(opts, otlpmetricgrpc.WithTLSCredentials(insecure.NewCredentials()))
	}
	if len(p.config.Trace.Headers) > 0 {
		opts = append(opts, otlpmetricgrpc.WithHeaders(p.config.Trace.Headers))
	}
	return otlpmetricgrpc.New(context.Background(), opts...)
}
