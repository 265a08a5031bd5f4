package dispatch

import (
	"context"
	"fmt"
	nethttp "net/http"
	"time"
)

// Method is the HTTP method of a dispatched request
type Method string

const (
	MethodGet    Method = nethttp.MethodGet
	MethodPost   Method = nethttp.MethodPost
	MethodPut    Method = nethttp.MethodPut
	MethodDelete Method = nethttp.MethodDelete
)

// ResponseType selects how a response body is decoded
type ResponseType string

const (
	ResponseJSON ResponseType = "JSON"
	ResponseText ResponseType = "Text"
)

// Options describes one logical request. The dispatcher never mutates the
// maps it is given.
type Options struct {
	// Path is the request path, or the full relative URL when Host is empty.
	Path string `validate:"required"`
	// Host addresses the request to https://{Host}{Path}. Empty means the
	// path is resolved against the transport's base URL.
	Host   string
	Method Method `validate:"omitempty,oneof=GET POST PUT DELETE"`
	Params map[string]any
	// Headers are copied per call. A "credentials: include" header requests
	// credentials and is not forwarded.
	Headers map[string]string
	// NumRetries is the number of extra attempts allowed after transport
	// failures. Nil falls back to the dispatcher's configured default.
	NumRetries   *int         `validate:"omitempty,gte=0"`
	ResponseType ResponseType `validate:"omitempty,oneof=Text JSON"`
	// SendCrossDomainCredentials forces credentials for this call.
	SendCrossDomainCredentials bool
	// IgnoreSSLIssues overrides the insecure host list when non-nil.
	IgnoreSSLIssues *bool
}

// IntPtr returns a pointer to v, for Options.NumRetries.
func IntPtr(v int) *int {
	return &v
}

// Result is the outcome of a completed exchange, including 4xx and 5xx
// responses.
type Result struct {
	// Body is a string for ResponseText and the decoded JSON value for
	// ResponseJSON.
	Body    any
	Status  int
	Headers map[string]string
	Stats   Stats
}

// Stats contains dispatch execution statistics
type Stats struct {
	ElapsedTime time.Duration
	Attempts    int
}

// Transport sends a single prepared request. It returns an error only when
// no exchange completed.
type Transport interface {
	Send(ctx context.Context, req *TransportRequest) (*TransportResponse, error)
}

// TransportRequest is a fully built request handed to a Transport
type TransportRequest struct {
	Method             string
	URL                string
	Body               []byte
	Headers            map[string]string
	IncludeCredentials bool
	InsecureSkipVerify bool
}

// TransportResponse is the raw outcome of a completed exchange
type TransportResponse struct {
	StatusCode int
	Body       []byte
	Headers    nethttp.Header
}

// ResponseError lets transports that treat error statuses as failures report
// the completed exchange anyway. The dispatcher converts it into a Result.
type ResponseError struct {
	Response *TransportResponse
}

func (e *ResponseError) Error() string {
	if e.Response == nil {
		return "response error"
	}
	return fmt.Sprintf("response error (status: %d)", e.Response.StatusCode)
}

// ParamCodec serializes params into a URL-encoded string
type ParamCodec interface {
	Encode(params map[string]any) string
}

// Config holds the dispatcher configuration
type Config struct {
	DevelopmentMode    bool
	NumRetries         int
	Timeout            time.Duration
	BaseURL            string
	InsecureHosts      []string
	CredentialHosts    []string
	RequestIDHeader    string
	W3CTrace           bool
	LogPayloads        bool
	MaxPayloadLogBytes int
}
