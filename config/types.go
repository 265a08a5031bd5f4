package config

import (
	"time"

	"github.com/knadh/koanf/v2"
)

// Environment names accepted by app.env
const (
	EnvDevelopment = "development"
	EnvStaging     = "staging"
	EnvProduction  = "production"
)

// Config represents the overall application configuration structure.
// The embedded koanf.Koanf instance allows for flexible access to sections
// not defined in the struct, such as observability.
type Config struct {
	App      AppConfig      `koanf:"app" json:"app" yaml:"app"`
	Dispatch DispatchConfig `koanf:"dispatch" json:"dispatch" yaml:"dispatch"`
	Log      LogConfig      `koanf:"log" json:"log" yaml:"log"`

	k *koanf.Koanf `json:"-" yaml:"-"`
}

// AppConfig holds general application settings.
type AppConfig struct {
	Name string `koanf:"name" json:"name" yaml:"name" validate:"required"`
	// Env is informational. It never switches dispatch.devmode.
	Env string `koanf:"env" json:"env" yaml:"env" validate:"oneof=development staging production"`
}

// DispatchConfig holds the request dispatcher settings.
type DispatchConfig struct {
	// DevMode attaches credentials to every request.
	DevMode    bool          `koanf:"devmode" json:"devmode" yaml:"devmode"`
	NumRetries int           `koanf:"numretries" json:"numretries" yaml:"numretries" validate:"gte=0"`
	Timeout    time.Duration `koanf:"timeout" json:"timeout" yaml:"timeout" validate:"gt=0"`
	// BaseURL resolves requests sent without a host.
	BaseURL            string     `koanf:"baseurl" json:"baseurl" yaml:"baseurl" validate:"omitempty,url"`
	InsecureHosts      []string   `koanf:"insecurehosts" json:"insecurehosts" yaml:"insecurehosts" validate:"dive,hostname_port|hostname_rfc1123"`
	CredentialHosts    []string   `koanf:"credentialhosts" json:"credentialhosts" yaml:"credentialhosts" validate:"dive,hostname_port|hostname_rfc1123"`
	RequestIDHeader    string     `koanf:"requestidheader" json:"requestidheader" yaml:"requestidheader"`
	W3CTrace           bool       `koanf:"w3ctrace" json:"w3ctrace" yaml:"w3ctrace"`
	LogPayloads        bool       `koanf:"logpayloads" json:"logpayloads" yaml:"logpayloads"`
	MaxPayloadLogBytes int        `koanf:"maxpayloadlogbytes" json:"maxpayloadlogbytes" yaml:"maxpayloadlogbytes" validate:"gte=0"`
	Rate               RateConfig `koanf:"rate" json:"rate" yaml:"rate"`
}

// RateConfig holds attempt rate limiting settings. A zero limit disables it.
type RateConfig struct {
	Limit float64 `koanf:"limit" json:"limit" yaml:"limit" validate:"gte=0"` // attempts per second
	Burst int     `koanf:"burst" json:"burst" yaml:"burst" validate:"gte=0"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `koanf:"level" json:"level" yaml:"level" validate:"oneof=trace debug info warn error fatal panic disabled"`
	Pretty bool   `koanf:"pretty" json:"pretty" yaml:"pretty"`
}
