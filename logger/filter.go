package logger

import (
	"net/http"
	"net/url"
	"strings"
)

// DefaultMaskValue replaces sensitive values in log output.
const DefaultMaskValue = "***"

// FilterConfig defines which field names are masked in log output.
type FilterConfig struct {
	// SensitiveFields are matched case-insensitively against field and header names
	SensitiveFields []string
	MaskValue       string
}

// DefaultFilterConfig masks credentials commonly found in request headers and params.
func DefaultFilterConfig() *FilterConfig {
	return &FilterConfig{
		SensitiveFields: []string{
			"password", "passwd", "secret",
			"api_key", "apikey", "x-api-key",
			"token", "access_token", "refresh_token",
			"authorization", "proxy-authorization",
			"cookie", "set-cookie",
			"credential", "credentials",
		},
		MaskValue: DefaultMaskValue,
	}
}

// SensitiveDataFilter masks values whose key names a secret.
type SensitiveDataFilter struct {
	config    *FilterConfig
	sensitive map[string]struct{}
}

// NewSensitiveDataFilter creates a filter; a nil config uses DefaultFilterConfig.
func NewSensitiveDataFilter(config *FilterConfig) *SensitiveDataFilter {
	if config == nil {
		config = DefaultFilterConfig()
	}
	if config.MaskValue == "" {
		config.MaskValue = DefaultMaskValue
	}
	sensitive := make(map[string]struct{}, len(config.SensitiveFields))
	for _, f := range config.SensitiveFields {
		sensitive[strings.ToLower(f)] = struct{}{}
	}
	return &SensitiveDataFilter{config: config, sensitive: sensitive}
}

// IsSensitive reports whether key names a secret.
func (f *SensitiveDataFilter) IsSensitive(key string) bool {
	_, ok := f.sensitive[strings.ToLower(key)]
	return ok
}

// FilterString masks value when key is sensitive.
func (f *SensitiveDataFilter) FilterString(key, value string) string {
	if f.IsSensitive(key) {
		return f.config.MaskValue
	}
	return value
}

// FilterValue masks value when key is sensitive and otherwise masks the
// sensitive entries of header-like maps.
func (f *SensitiveDataFilter) FilterValue(key string, value any) any {
	if f.IsSensitive(key) {
		return f.config.MaskValue
	}
	switch v := value.(type) {
	case map[string]string:
		return f.FilterStringMap(v)
	case http.Header:
		return f.filterHeader(v)
	case map[string]any:
		return f.FilterFields(v)
	default:
		return value
	}
}

// FilterStringMap returns a copy of m with sensitive entries masked.
func (f *SensitiveDataFilter) FilterStringMap(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = f.FilterString(k, v)
	}
	return out
}

// FilterFields returns a copy of fields with sensitive entries masked.
func (f *SensitiveDataFilter) FilterFields(fields map[string]any) map[string]any {
	if fields == nil {
		return nil
	}
	out := make(map[string]any, len(fields))
	for k, v := range fields {
		out[k] = f.FilterValue(k, v)
	}
	return out
}

// FilterURL masks the values of sensitive query parameters in raw. Keys in
// bracket notation (access_token[]) are matched by their base name. The rest
// of the URL is returned untouched.
func (f *SensitiveDataFilter) FilterURL(raw string) string {
	base, query, ok := strings.Cut(raw, "?")
	if !ok || query == "" {
		return raw
	}
	query, fragment, hasFragment := strings.Cut(query, "#")

	pairs := strings.Split(query, "&")
	for i, pair := range pairs {
		key, _, hasValue := strings.Cut(pair, "=")
		if !hasValue {
			continue
		}
		if f.IsSensitive(queryBaseName(key)) {
			pairs[i] = key + "=" + f.config.MaskValue
		}
	}

	out := base + "?" + strings.Join(pairs, "&")
	if hasFragment {
		out += "#" + fragment
	}
	return out
}

func queryBaseName(key string) string {
	if unescaped, err := url.QueryUnescape(key); err == nil {
		key = unescaped
	}
	if i := strings.IndexByte(key, '['); i > 0 {
		key = key[:i]
	}
	return key
}

func (f *SensitiveDataFilter) filterHeader(h http.Header) map[string][]string {
	out := make(map[string][]string, len(h))
	for k, vals := range h {
		if f.IsSensitive(k) {
			out[k] = []string{f.config.MaskValue}
			continue
		}
		out[k] = vals
	}
	return out
}
