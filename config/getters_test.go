package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExists(t *testing.T) {
	cfg, err := LoadBytes([]byte(minimalYAML + "observability:\n  enabled: true\n"))
	require.NoError(t, err)

	assert.True(t, cfg.Exists("dispatch.numretries"))
	assert.True(t, cfg.Exists("observability"))
	assert.False(t, cfg.Exists("missing"))
}

func TestUnmarshalSection(t *testing.T) {
	cfg, err := LoadBytes([]byte(minimalYAML + "observability:\n  enabled: true\n  service:\n    name: svc\n"))
	require.NoError(t, err)

	var section struct {
		Enabled bool `koanf:"enabled"`
		Service struct {
			Name string `koanf:"name"`
		} `koanf:"service"`
	}
	require.NoError(t, cfg.Unmarshal("observability", &section))
	assert.True(t, section.Enabled)
	assert.Equal(t, "svc", section.Service.Name)
}

func TestNilConfigAccessors(t *testing.T) {
	var cfg *Config
	assert.False(t, cfg.Exists("app.name"))
	assert.Error(t, cfg.Unmarshal("app", &struct{}{}))
}

func TestConfigErrorFormatting(t *testing.T) {
	err := NewMissingFieldError("app.name", "APP_NAME", "app.name")
	assert.Equal(t, "config_missing: app.name required set APP_NAME env var or add app.name to config.yaml", err.Error())

	err = NewInvalidFieldError("log.level", "invalid value \"loud\"", []string{"info", "debug"})
	assert.Equal(t, "config_invalid: log.level invalid value \"loud\" must be one of: info, debug", err.Error())
	assert.Nil(t, err.Unwrap())
}
