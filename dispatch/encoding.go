package dispatch

import (
	"context"
	"encoding/json"
	"reflect"
	"strings"

	"go.opentelemetry.io/otel/propagation"

	"github.com/harvard-edtech/caccl-send-request/trace"
)

const (
	headerContentType  = "Content-Type"
	headerCredentials  = "credentials"
	contentTypeForm    = "application/x-www-form-urlencoded"
	credentialsInclude = "include"
)

// bodyStrategy is the serialization used for non-GET bodies
type bodyStrategy int

const (
	// bodyForm sends the codec output as a form-encoded body
	bodyForm bodyStrategy = iota
	// bodyJSON sends the caller's params as JSON
	bodyJSON
)

func (s bodyStrategy) String() string {
	if s == bodyJSON {
		return "json"
	}
	return "form"
}

// call is the per-dispatch derivation of Options. It is built once and every
// attempt's request is rebuilt from it.
type call struct {
	method             Method
	host               string
	url                string
	body               []byte
	headers            map[string]string
	includeCredentials bool
	insecure           bool
	responseType       ResponseType
	retries            int
}

// request builds a fresh TransportRequest for one attempt.
func (c *call) request() *TransportRequest {
	headers := make(map[string]string, len(c.headers))
	for k, v := range c.headers {
		headers[k] = v
	}
	var body []byte
	if c.body != nil {
		body = append([]byte(nil), c.body...)
	}
	return &TransportRequest{
		Method:             string(c.method),
		URL:                c.url,
		Body:               body,
		Headers:            headers,
		IncludeCredentials: c.includeCredentials,
		InsecureSkipVerify: c.insecure,
	}
}

// prepare derives the call from opts. opts must already be validated.
func (d *Dispatcher) prepare(opts *Options) (*call, error) {
	c := &call{
		method:       opts.Method,
		host:         opts.Host,
		responseType: opts.ResponseType,
		retries:      d.config.NumRetries,
	}
	if c.method == "" {
		c.method = MethodGet
	}
	if c.responseType == "" {
		c.responseType = ResponseJSON
	}
	if opts.NumRetries != nil {
		c.retries = *opts.NumRetries
	}

	params, err := prepareParams(opts.Params)
	if err != nil {
		return nil, err
	}
	encoded := d.codec.Encode(params)

	headers, wantsCredentials := copyHeaders(opts.Headers)
	strategy := selectBodyStrategy(headers)
	if strategy == bodyForm {
		headers[headerContentType] = contentTypeForm
	}

	if c.method == MethodGet {
		c.url = buildURL(opts.Host, opts.Path, encoded)
	} else {
		c.url = buildURL(opts.Host, opts.Path, "")
		c.body, err = encodeBody(strategy, encoded, opts.Params)
		if err != nil {
			return nil, err
		}
	}

	c.headers = headers
	c.includeCredentials = d.includeCredentials(opts, wantsCredentials)
	c.insecure = d.skipTLSVerification(opts)
	return c, nil
}

// prepareParams returns a copy of params in which nested non-array objects
// are replaced by their JSON text. Scalars and arrays pass through.
func prepareParams(params map[string]any) (map[string]any, error) {
	if len(params) == 0 {
		return params, nil
	}
	out := make(map[string]any, len(params))
	for k, v := range params {
		if !isObject(v) {
			out[k] = v
			continue
		}
		b, err := json.Marshal(v)
		if err != nil {
			return nil, NewInvalidOptionsError("param "+k+" cannot be serialized as JSON: "+err.Error(), "Params")
		}
		out[k] = string(b)
	}
	return out, nil
}

func isObject(v any) bool {
	if v == nil {
		return false
	}
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer || rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return false
		}
		rv = rv.Elem()
	}
	switch rv.Kind() {
	case reflect.Map, reflect.Struct:
		return true
	default:
		return false
	}
}

// copyHeaders clones the caller's headers, dropping a "credentials: include"
// entry and reporting whether it was present.
func copyHeaders(src map[string]string) (map[string]string, bool) {
	headers := make(map[string]string, len(src)+2)
	wantsCredentials := false
	for k, v := range src {
		if strings.EqualFold(k, headerCredentials) {
			if strings.EqualFold(strings.TrimSpace(v), credentialsInclude) {
				wantsCredentials = true
			}
			continue
		}
		headers[k] = v
	}
	return headers, wantsCredentials
}

// selectBodyStrategy picks JSON when the caller supplied any Content-Type.
func selectBodyStrategy(headers map[string]string) bodyStrategy {
	if _, ok := lookupHeader(headers, headerContentType); ok {
		return bodyJSON
	}
	return bodyForm
}

func lookupHeader(headers map[string]string, name string) (string, bool) {
	for k, v := range headers {
		if strings.EqualFold(k, name) {
			return v, true
		}
	}
	return "", false
}

func encodeBody(strategy bodyStrategy, encoded string, params map[string]any) ([]byte, error) {
	switch strategy {
	case bodyJSON:
		if params == nil {
			return nil, nil
		}
		b, err := json.Marshal(params)
		if err != nil {
			return nil, NewInvalidOptionsError("params cannot be serialized as JSON: "+err.Error(), "Params")
		}
		return b, nil
	default:
		if encoded == "" {
			return nil, nil
		}
		return []byte(encoded), nil
	}
}

// buildURL joins host, path and query. Host-addressed requests always use
// https. An empty query adds nothing.
func buildURL(host, path, query string) string {
	target := path
	if host != "" {
		target = "https://" + host + path
	}
	if query == "" {
		return target
	}
	if strings.Contains(path, "?") {
		return target + "&" + query
	}
	return target + "?" + query
}

// injectTraceHeaders adds the request ID and, when enabled, the W3C
// traceparent unless the caller already set them.
func (d *Dispatcher) injectTraceHeaders(ctx context.Context, headers map[string]string) {
	if name := d.config.RequestIDHeader; name != "" {
		if _, ok := lookupHeader(headers, name); !ok {
			if id, ok := trace.RequestIDFromContext(ctx); ok {
				headers[name] = id
			}
		}
	}

	if !d.config.W3CTrace {
		return
	}
	if _, ok := lookupHeader(headers, trace.HeaderTraceParent); ok {
		return
	}
	carrier := propagation.MapCarrier{}
	propagation.TraceContext{}.Inject(ctx, carrier)
	if tp := carrier.Get(trace.HeaderTraceParent); tp != "" {
		headers[trace.HeaderTraceParent] = tp
		return
	}
	headers[trace.HeaderTraceParent] = trace.EnsureTraceParent(ctx)
}

// includeCredentials decides the credential policy once per call.
func (d *Dispatcher) includeCredentials(opts *Options, wantsCredentials bool) bool {
	if opts.SendCrossDomainCredentials || d.config.DevelopmentMode || wantsCredentials {
		return true
	}
	return opts.Host != "" && containsHost(d.config.CredentialHosts, opts.Host)
}

// skipTLSVerification applies only to host-addressed requests.
func (d *Dispatcher) skipTLSVerification(opts *Options) bool {
	if opts.Host == "" {
		return false
	}
	if opts.IgnoreSSLIssues != nil {
		return *opts.IgnoreSSLIssues
	}
	return containsHost(d.config.InsecureHosts, opts.Host)
}

func containsHost(hosts []string, host string) bool {
	for _, h := range hosts {
		if strings.EqualFold(h, host) {
			return true
		}
	}
	return false
}
