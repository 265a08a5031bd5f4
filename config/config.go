// Package config loads application configuration from defaults, YAML and
// environment variables using koanf, then validates it.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

// DefaultFile is the YAML file read by Load when present.
const DefaultFile = "config.yaml"

// envSections lists the top-level keys environment variables may set.
var envSections = []string{"app", "dispatch", "log", "observability"}

// Load loads configuration from multiple sources with priority:
// 1. Environment variables (highest priority)
// 2. config.yaml and config.{app.env}.yaml, when present
// 3. Default values (lowest priority)
func Load() (*Config, error) {
	k := koanf.New(".")
	if err := loadDefaults(k); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if err := loadOptionalFile(k, DefaultFile); err != nil {
		return nil, err
	}
	if appEnv := k.String("app.env"); appEnv != "" {
		if err := loadOptionalFile(k, fmt.Sprintf("config.%s.yaml", appEnv)); err != nil {
			return nil, err
		}
	}

	return finish(k)
}

// LoadFile loads defaults, then the YAML file at path, then environment
// variables. The file must exist.
func LoadFile(path string) (*Config, error) {
	k := koanf.New(".")
	if err := loadDefaults(k); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", path, err)
	}
	return finish(k)
}

// LoadBytes is LoadFile for an in-memory YAML document.
func LoadBytes(data []byte) (*Config, error) {
	k := koanf.New(".")
	if err := loadDefaults(k); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}
	if err := k.Load(rawbytes.Provider(data), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("failed to parse YAML config: %w", err)
	}
	return finish(k)
}

func loadOptionalFile(k *koanf.Koanf, path string) error {
	if _, err := os.Stat(path); err != nil {
		return nil
	}
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// finish applies environment variables, unmarshals and validates.
func finish(k *koanf.Koanf) (*Config, error) {
	if err := k.Load(env.Provider(".", env.Opt{TransformFunc: transformEnv}), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.k = k

	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// transformEnv converts UPPER_CASE to lower.case for koanf and skips
// variables outside the known sections. Host lists are comma separated.
func transformEnv(key, value string) (string, any) {
	key = strings.ReplaceAll(strings.ToLower(key), "_", ".")
	section, _, _ := strings.Cut(key, ".")
	known := false
	for _, s := range envSections {
		if section == s {
			known = true
			break
		}
	}
	if !known || section == key {
		return "", nil
	}

	if strings.HasSuffix(key, "hosts") {
		return key, splitList(value)
	}
	return key, value
}

func splitList(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func loadDefaults(k *koanf.Koanf) error {
	defaults := map[string]any{
		"app.name": "caccl-send-request",
		"app.env":  EnvDevelopment,

		"dispatch.devmode":            false,
		"dispatch.numretries":         0,
		"dispatch.timeout":            "30s",
		"dispatch.baseurl":            "",
		"dispatch.insecurehosts":      []string{"localhost:8088"},
		"dispatch.credentialhosts":    []string{"localhost:8080"},
		"dispatch.requestidheader":    "X-Request-ID",
		"dispatch.w3ctrace":           false,
		"dispatch.logpayloads":        false,
		"dispatch.maxpayloadlogbytes": 1024,
		"dispatch.rate.limit":         0,
		"dispatch.rate.burst":         0,

		"log.level":  "info",
		"log.pretty": false,
	}

	return k.Load(confmap.Provider(defaults, "."), nil)
}
