package observability

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harvard-edtech/caccl-send-request/config"
)

func TestApplyDefaults(t *testing.T) {
	cfg := &Config{Enabled: true, Service: ServiceConfig{Name: "svc"}}
	cfg.ApplyDefaults()

	assert.Equal(t, EnvironmentDevelopment, cfg.Environment)
	require.NotNil(t, cfg.Trace.Enabled)
	assert.True(t, *cfg.Trace.Enabled)
	assert.Equal(t, EndpointStdout, cfg.Trace.Endpoint)
	assert.Equal(t, ProtocolHTTP, cfg.Trace.Protocol)
	require.NotNil(t, cfg.Trace.SampleRate)
	assert.InDelta(t, 1.0, *cfg.Trace.SampleRate, 0.0001)
	assert.Equal(t, 5*time.Second, cfg.Trace.BatchTimeout)
	assert.Equal(t, 30*time.Second, cfg.Trace.ExportTimeout)
	require.NotNil(t, cfg.Metrics.Enabled)
	assert.True(t, *cfg.Metrics.Enabled)
	assert.Equal(t, EndpointStdout, cfg.Metrics.Endpoint)
	assert.Equal(t, 60*time.Second, cfg.Metrics.Interval)
}

func TestApplyDefaultsKeepsExplicitValues(t *testing.T) {
	cfg := &Config{
		Trace: TraceConfig{
			Enabled:    BoolPtr(false),
			Endpoint:   "collector:4317",
			Protocol:   ProtocolGRPC,
			SampleRate: Float64Ptr(0),
		},
		Metrics: MetricsConfig{Interval: time.Second},
	}
	cfg.ApplyDefaults()

	assert.False(t, *cfg.Trace.Enabled)
	assert.Equal(t, ProtocolGRPC, cfg.Trace.Protocol)
	assert.Zero(t, *cfg.Trace.SampleRate)
	assert.Equal(t, "collector:4317", cfg.Metrics.Endpoint)
	assert.Equal(t, time.Second, cfg.Metrics.Interval)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		c := &Config{Enabled: true, Service: ServiceConfig{Name: "svc"}}
		c.ApplyDefaults()
		return c
	}

	tests := []struct {
		name   string
		mutate func(*Config)
		want   error
	}{
		{"valid", func(*Config) {}, nil},
		{"disabled skips checks", func(c *Config) { c.Enabled = false; c.Service.Name = "" }, nil},
		{"missing service name", func(c *Config) { c.Service.Name = "" }, ErrMissingServiceName},
		{"sample rate above one", func(c *Config) { c.Trace.SampleRate = Float64Ptr(1.5) }, ErrInvalidSampleRate},
		{"negative sample rate", func(c *Config) { c.Trace.SampleRate = Float64Ptr(-0.1) }, ErrInvalidSampleRate},
		{"unknown protocol", func(c *Config) { c.Trace.Protocol = "thrift" }, ErrInvalidProtocol},
		{"grpc endpoint with scheme", func(c *Config) {
			c.Trace.Protocol = ProtocolGRPC
			c.Trace.Endpoint = "http://collector:4317"
		}, ErrInvalidEndpointFormat},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(c)
			err := c.Validate()
			if tt.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
		})
	}

	var nilCfg *Config
	assert.ErrorIs(t, nilCfg.Validate(), ErrNilConfig)
}

func TestLoadConfig(t *testing.T) {
	t.Run("absent section", func(t *testing.T) {
		cfg, err := config.LoadBytes([]byte("app:\n  name: svc\n"))
		require.NoError(t, err)

		oc, err := LoadConfig(cfg)
		require.NoError(t, err)
		assert.False(t, oc.Enabled)
	})

	t.Run("section with app fallbacks", func(t *testing.T) {
		yaml := `
app:
  name: svc
  env: staging
observability:
  enabled: true
  trace:
    endpoint: collector:4318
    protocol: http
    insecure: true
    samplerate: 0.25
  metrics:
    interval: 15s
`
		cfg, err := config.LoadBytes([]byte(yaml))
		require.NoError(t, err)

		oc, err := LoadConfig(cfg)
		require.NoError(t, err)
		assert.True(t, oc.Enabled)
		assert.Equal(t, "svc", oc.Service.Name)
		assert.Equal(t, "staging", oc.Environment)
		assert.Equal(t, "collector:4318", oc.Trace.Endpoint)
		assert.True(t, oc.Trace.Insecure)
		require.NotNil(t, oc.Trace.SampleRate)
		assert.InDelta(t, 0.25, *oc.Trace.SampleRate, 0.0001)
		assert.Equal(t, 15*time.Second, oc.Metrics.Interval)
		assert.Nil(t, oc.Metrics.Enabled)
	})
}
