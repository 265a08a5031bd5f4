package config

import "errors"

const errMsgConfigNotInitialized = "configuration not initialized"

// Unmarshal decodes the section under key into out. Packages that own a
// config section (observability, for one) read it through here.
func (c *Config) Unmarshal(key string, out any) error {
	if c == nil || c.k == nil {
		return errors.New(errMsgConfigNotInitialized)
	}
	return c.k.Unmarshal(key, out)
}

// Exists reports whether key is present in the loaded configuration.
func (c *Config) Exists(key string) bool {
	if c == nil || c.k == nil {
		return false
	}
	return c.k.Exists(key)
}
