package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const minimalYAML = "app:\n  name: test-service\n"

func TestLoadBytesDefaults(t *testing.T) {
	cfg, err := LoadBytes([]byte(minimalYAML))
	require.NoError(t, err)

	assert.Equal(t, "test-service", cfg.App.Name)
	assert.Equal(t, EnvDevelopment, cfg.App.Env)

	d := cfg.Dispatch
	assert.False(t, d.DevMode)
	assert.Equal(t, 0, d.NumRetries)
	assert.Equal(t, 30*time.Second, d.Timeout)
	assert.Empty(t, d.BaseURL)
	assert.Equal(t, []string{"localhost:8088"}, d.InsecureHosts)
	assert.Equal(t, []string{"localhost:8080"}, d.CredentialHosts)
	assert.Equal(t, "X-Request-ID", d.RequestIDHeader)
	assert.False(t, d.W3CTrace)
	assert.False(t, d.LogPayloads)
	assert.Equal(t, 1024, d.MaxPayloadLogBytes)
	assert.Zero(t, d.Rate.Limit)

	assert.Equal(t, "info", cfg.Log.Level)
	assert.False(t, cfg.Log.Pretty)
}

func TestLoadBytesOverrides(t *testing.T) {
	yaml := `
app:
  name: canvas-proxy
  env: production
dispatch:
  devmode: true
  numretries: 2
  timeout: 5s
  baseurl: https://canvas.example.edu
  insecurehosts:
    - localhost:9000
  credentialhosts: []
  w3ctrace: true
  logpayloads: true
  maxpayloadlogbytes: 64
  rate:
    limit: 2.5
    burst: 4
log:
  level: debug
  pretty: true
`
	cfg, err := LoadBytes([]byte(yaml))
	require.NoError(t, err)

	assert.Equal(t, EnvProduction, cfg.App.Env)
	d := cfg.Dispatch
	assert.True(t, d.DevMode)
	assert.Equal(t, 2, d.NumRetries)
	assert.Equal(t, 5*time.Second, d.Timeout)
	assert.Equal(t, "https://canvas.example.edu", d.BaseURL)
	assert.Equal(t, []string{"localhost:9000"}, d.InsecureHosts)
	assert.Empty(t, d.CredentialHosts)
	assert.True(t, d.W3CTrace)
	assert.True(t, d.LogPayloads)
	assert.Equal(t, 64, d.MaxPayloadLogBytes)
	assert.InDelta(t, 2.5, d.Rate.Limit, 0.0001)
	assert.Equal(t, 4, d.Rate.Burst)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.True(t, cfg.Log.Pretty)
}

func TestEnvironmentOverridesYAML(t *testing.T) {
	t.Setenv("DISPATCH_NUMRETRIES", "3")
	t.Setenv("DISPATCH_DEVMODE", "true")
	t.Setenv("DISPATCH_INSECUREHOSTS", "dev.example.edu:8443, localhost:8088")
	t.Setenv("DISPATCH_RATE_LIMIT", "10")
	t.Setenv("LOG_LEVEL", "warn")

	cfg, err := LoadBytes([]byte(minimalYAML + "dispatch:\n  numretries: 1\n"))
	require.NoError(t, err)

	assert.Equal(t, 3, cfg.Dispatch.NumRetries)
	assert.True(t, cfg.Dispatch.DevMode)
	assert.Equal(t, []string{"dev.example.edu:8443", "localhost:8088"}, cfg.Dispatch.InsecureHosts)
	assert.InDelta(t, 10.0, cfg.Dispatch.Rate.Limit, 0.0001)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadFile(t *testing.T) {
	t.Run("reads yaml file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "dispatch.yaml")
		require.NoError(t, os.WriteFile(path, []byte(minimalYAML+"dispatch:\n  timeout: 2s\n"), 0o600))

		cfg, err := LoadFile(path)
		require.NoError(t, err)
		assert.Equal(t, 2*time.Second, cfg.Dispatch.Timeout)
	})

	t.Run("missing file fails", func(t *testing.T) {
		_, err := LoadFile(filepath.Join(t.TempDir(), "absent.yaml"))
		assert.Error(t, err)
	})
}

func TestLoadWithoutFiles(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "caccl-send-request", cfg.App.Name)
}

func TestLoadReadsEnvironmentSpecificFile(t *testing.T) {
	t.Chdir(t.TempDir())
	require.NoError(t, os.WriteFile(DefaultFile, []byte("app:\n  name: base\n  env: staging\n"), 0o600))
	require.NoError(t, os.WriteFile("config.staging.yaml", []byte("dispatch:\n  numretries: 4\n"), 0o600))

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "base", cfg.App.Name)
	assert.Equal(t, 4, cfg.Dispatch.NumRetries)
}

func TestValidation(t *testing.T) {
	tests := []struct {
		name     string
		yaml     string
		category string
		field    string
	}{
		{
			name:     "negative retries",
			yaml:     minimalYAML + "dispatch:\n  numretries: -1\n",
			category: "invalid",
			field:    "dispatch.numretries",
		},
		{
			name:     "unknown log level",
			yaml:     minimalYAML + "log:\n  level: loud\n",
			category: "invalid",
			field:    "log.level",
		},
		{
			name:     "unknown environment",
			yaml:     "app:\n  name: x\n  env: qa\n",
			category: "invalid",
			field:    "app.env",
		},
		{
			name:     "empty app name",
			yaml:     "app:\n  name: \"\"\n",
			category: "missing",
			field:    "app.name",
		},
		{
			name:     "relative base url",
			yaml:     minimalYAML + "dispatch:\n  baseurl: /api\n",
			category: "invalid",
			field:    "dispatch.baseurl",
		},
		{
			name:     "zero timeout",
			yaml:     minimalYAML + "dispatch:\n  timeout: 0s\n",
			category: "invalid",
			field:    "dispatch.timeout",
		},
		{
			name:     "malformed insecure host",
			yaml:     minimalYAML + "dispatch:\n  insecurehosts:\n    - \"not a host\"\n",
			category: "invalid",
			field:    "dispatch.insecurehosts[0]",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadBytes([]byte(tt.yaml))
			require.Error(t, err)

			var cfgErr *ConfigError
			require.True(t, errors.As(err, &cfgErr), "expected ConfigError, got %T", err)
			assert.Equal(t, tt.category, cfgErr.Category)
			assert.Equal(t, tt.field, cfgErr.Field)
		})
	}
}

func TestValidationOneOfAction(t *testing.T) {
	_, err := LoadBytes([]byte(minimalYAML + "log:\n  level: loud\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config_invalid:")
	assert.Contains(t, err.Error(), "must be one of: trace, debug, info")
}

func TestValidateNil(t *testing.T) {
	err := Validate(nil)
	var cfgErr *ConfigError
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, "config", cfgErr.Field)
}

func TestTransformEnv(t *testing.T) {
	tests := []struct {
		key     string
		value   string
		wantKey string
		wantVal any
	}{
		{"DISPATCH_NUMRETRIES", "2", "dispatch.numretries", "2"},
		{"LOG_PRETTY", "true", "log.pretty", "true"},
		{"OBSERVABILITY_TRACE_ENDPOINT", "stdout", "observability.trace.endpoint", "stdout"},
		{"DISPATCH_CREDENTIALHOSTS", "a:1,,b:2", "dispatch.credentialhosts", []string{"a:1", "b:2"}},
		{"HOME", "/root", "", nil},
		{"LOG", "x", "", nil},
		{"PATH", "/bin", "", nil},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			key, val := transformEnv(tt.key, tt.value)
			assert.Equal(t, tt.wantKey, key)
			if tt.wantKey != "" {
				assert.Equal(t, tt.wantVal, val)
			}
		})
	}
}
