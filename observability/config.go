package observability

import (
	"fmt"
	"strings"
	"time"

	"github.com/harvard-edtech/caccl-send-request/config"
)

const (
	// EndpointStdout is a special endpoint value that outputs to stdout (for local development).
	EndpointStdout = "stdout"

	// ProtocolHTTP specifies OTLP over HTTP/protobuf.
	ProtocolHTTP = "http"

	// ProtocolGRPC specifies OTLP over gRPC.
	ProtocolGRPC = "grpc"

	// EnvironmentDevelopment is the default environment name.
	EnvironmentDevelopment = "development"

	defaultSampleRate     = 1.0
	defaultBatchTimeout   = 5 * time.Second
	defaultExportTimeout  = 30 * time.Second
	defaultMetricInterval = 60 * time.Second
)

// BoolPtr returns a pointer to the provided bool value.
func BoolPtr(v bool) *bool {
	return &v
}

// Float64Ptr returns a pointer to the provided float64 value.
func Float64Ptr(v float64) *float64 {
	return &v
}

// Config defines the configuration for observability features.
// It is read from the "observability" section of the application config.
type Config struct {
	// Enabled controls whether observability is active.
	// When false, NewProvider returns no-op providers.
	Enabled bool `koanf:"enabled"`

	Service ServiceConfig `koanf:"service"`

	// Environment is reported as deployment.environment.name.
	Environment string `koanf:"environment"`

	Trace   TraceConfig   `koanf:"trace"`
	Metrics MetricsConfig `koanf:"metrics"`
}

// ServiceConfig identifies the service in exported telemetry.
type ServiceConfig struct {
	Name    string `koanf:"name"`
	Version string `koanf:"version"`
}

// TraceConfig configures span export.
type TraceConfig struct {
	// Enabled defaults to true when observability is enabled.
	Enabled *bool `koanf:"enabled"`

	// Endpoint is "stdout" or an OTLP collector address.
	Endpoint string `koanf:"endpoint"`

	// Protocol is "http" or "grpc".
	Protocol string `koanf:"protocol"`

	Insecure bool              `koanf:"insecure"`
	Headers  map[string]string `koanf:"headers"`

	// SampleRate is the ratio of traces recorded, between 0.0 and 1.0.
	SampleRate *float64 `koanf:"samplerate"`

	BatchTimeout  time.Duration `koanf:"batchtimeout"`
	ExportTimeout time.Duration `koanf:"exporttimeout"`
}

// MetricsConfig configures metric export. Protocol, TLS and headers are
// shared with TraceConfig.
type MetricsConfig struct {
	Enabled  *bool         `koanf:"enabled"`
	Endpoint string        `koanf:"endpoint"`
	Interval time.Duration `koanf:"interval"`
}

// LoadConfig reads the observability section from cfg.
func LoadConfig(cfg *config.Config) (*Config, error) {
	var oc Config
	if !cfg.Exists("observability") {
		return &oc, nil
	}
	if err := cfg.Unmarshal("observability", &oc); err != nil {
		return nil, fmt.Errorf("failed to unmarshal observability config: %w", err)
	}
	if oc.Service.Name == "" {
		oc.Service.Name = cfg.App.Name
	}
	if oc.Environment == "" {
		oc.Environment = cfg.App.Env
	}
	return &oc, nil
}

// ApplyDefaults fills unset fields with safe defaults.
func (c *Config) ApplyDefaults() {
	if c.Environment == "" {
		c.Environment = EnvironmentDevelopment
	}

	if c.Trace.Enabled == nil {
		c.Trace.Enabled = BoolPtr(true)
	}
	if c.Trace.Endpoint == "" {
		c.Trace.Endpoint = EndpointStdout
	}
	if c.Trace.Protocol == "" {
		c.Trace.Protocol = ProtocolHTTP
	}
	if c.Trace.SampleRate == nil {
		c.Trace.SampleRate = Float64Ptr(defaultSampleRate)
	}
	if c.Trace.BatchTimeout <= 0 {
		c.Trace.BatchTimeout = defaultBatchTimeout
	}
	if c.Trace.ExportTimeout <= 0 {
		c.Trace.ExportTimeout = defaultExportTimeout
	}

	if c.Metrics.Enabled == nil {
		c.Metrics.Enabled = BoolPtr(true)
	}
	if c.Metrics.Endpoint == "" {
		c.Metrics.Endpoint = c.Trace.Endpoint
	}
	if c.Metrics.Interval <= 0 {
		c.Metrics.Interval = defaultMetricInterval
	}
}

// Validate checks the configuration. A disabled configuration is always valid.
func (c *Config) Validate() error {
	if c == nil {
		return ErrNilConfig
	}
	if !c.Enabled {
		return nil
	}
	if c.Service.Name == "" {
		return ErrMissingServiceName
	}
	if c.Trace.SampleRate != nil {
		if rate := *c.Trace.SampleRate; rate < 0 || rate > 1 {
			return ErrInvalidSampleRate
		}
	}
	if c.Trace.Protocol != ProtocolHTTP && c.Trace.Protocol != ProtocolGRPC {
		return fmt.Errorf("protocol '%s': %w", c.Trace.Protocol, ErrInvalidProtocol)
	}
	if c.Trace.Protocol == ProtocolGRPC {
		for _, endpoint := range []string{c.Trace.Endpoint, c.Metrics.Endpoint} {
			if strings.Contains(endpoint, "://") {
				return fmt.Errorf("grpc endpoint %q must be host:port: %w", endpoint, ErrInvalidEndpointFormat)
			}
		}
	}
	return nil
}
