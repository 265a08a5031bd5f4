// Package trace carries request correlation identifiers through a context so
// every attempt of a dispatched request can be tagged with the same values.
package trace

import (
	"context"
	crand "crypto/rand"
	"encoding/hex"

	"github.com/google/uuid"
)

// contextKey is the type for context keys to avoid collisions
type contextKey string

const (
	requestIDKey   contextKey = "request_id"
	traceParentKey contextKey = "traceparent"

	// HeaderXRequestID is the default header used to propagate the request ID
	HeaderXRequestID = "X-Request-ID"
	// HeaderTraceParent is the W3C trace context header name
	HeaderTraceParent = "traceparent"
)

// WithRequestID returns a copy of ctx carrying requestID.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

// RequestIDFromContext returns the request ID stored in ctx, if any.
func RequestIDFromContext(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	if id, ok := ctx.Value(requestIDKey).(string); ok && id != "" {
		return id, true
	}
	return "", false
}

// EnsureRequestID returns the request ID from ctx or a freshly generated UUID.
func EnsureRequestID(ctx context.Context) string {
	if id, ok := RequestIDFromContext(ctx); ok {
		return id
	}
	return uuid.NewString()
}

// WithTraceParent returns a copy of ctx carrying a W3C traceparent value.
func WithTraceParent(ctx context.Context, traceParent string) context.Context {
	return context.WithValue(ctx, traceParentKey, traceParent)
}

// TraceParentFromContext returns the traceparent stored in ctx, if any.
func TraceParentFromContext(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	if tp, ok := ctx.Value(traceParentKey).(string); ok && tp != "" {
		return tp, true
	}
	return "", false
}

// EnsureTraceParent returns the traceparent from ctx or generates a new one.
func EnsureTraceParent(ctx context.Context) string {
	if tp, ok := TraceParentFromContext(ctx); ok {
		return tp
	}
	return GenerateTraceParent()
}

// GenerateTraceParent creates a sampled W3C traceparent value:
// version(2)-trace-id(32)-span-id(16)-flags(2).
func GenerateTraceParent() string {
	traceID := randomID(16)
	spanID := randomID(8)
	return "00-" + hex.EncodeToString(traceID) + "-" + hex.EncodeToString(spanID) + "-01"
}

// randomID returns n random bytes, never all zero (an invalid W3C id).
func randomID(n int) []byte {
	b := make([]byte, n)
	if _, err := crand.Read(b); err != nil {
		clear(b)
	}
	for _, v := range b {
		if v != 0 {
			return b
		}
	}
	b[n-1] = 0x01
	return b
}
