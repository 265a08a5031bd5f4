package dispatch

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/harvard-edtech/caccl-send-request/logger"
	"github.com/harvard-edtech/caccl-send-request/trace"
)

const testFormContentType = "application/x-www-form-urlencoded"

func newTestDispatcher(configure func(*Builder)) *Dispatcher {
	b := NewBuilder(logger.Nop()).WithTransport(&fakeTransport{})
	if configure != nil {
		configure(b)
	}
	return b.Build()
}

func TestPrepareParams(t *testing.T) {
	type course struct {
		ID   int    `json:"id"`
		Name string `json:"name"`
	}
	in := map[string]any{
		"a":      1,
		"b":      []int{2, 3},
		"nested": map[string]any{"x": 1},
		"course": course{ID: 5, Name: "CS50"},
		"ptr":    &course{ID: 6},
		"nilptr": (*course)(nil),
		"s":      "text",
		"none":   nil,
	}

	got, err := prepareParams(in)
	require.NoError(t, err)

	assert.Equal(t, 1, got["a"])
	assert.Equal(t, []int{2, 3}, got["b"])
	assert.Equal(t, `{"x":1}`, got["nested"])
	assert.Equal(t, `{"id":5,"name":"CS50"}`, got["course"])
	assert.Equal(t, `{"id":6,"name":""}`, got["ptr"])
	assert.Nil(t, got["nilptr"])
	assert.Equal(t, "text", got["s"])
	assert.Nil(t, got["none"])

	assert.Equal(t, map[string]any{"x": 1}, in["nested"], "input must not be mutated")
}

func TestPrepareParamsUnserializable(t *testing.T) {
	_, err := prepareParams(map[string]any{"bad": map[string]any{"ch": make(chan int)}})
	require.Error(t, err)
	assert.True(t, IsErrorCode(err, InvalidOptions))
}

func TestBuildURL(t *testing.T) {
	tests := []struct {
		name  string
		host  string
		path  string
		query string
		want  string
	}{
		{"relative", "", "/api/v1/courses", "", "/api/v1/courses"},
		{"relative with query", "", "/api", "a=1", "/api?a=1"},
		{"host", "canvas.example.edu", "/api", "", "https://canvas.example.edu/api"},
		{"host with query", "canvas.example.edu", "/api", "a=1&b[]=2", "https://canvas.example.edu/api?a=1&b[]=2"},
		{"path already has query", "", "/api?x=1", "a=1", "/api?x=1&a=1"},
		{"host with port", "localhost:8088", "/x", "", "https://localhost:8088/x"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, buildURL(tt.host, tt.path, tt.query))
		})
	}
}

func TestSelectBodyStrategy(t *testing.T) {
	assert.Equal(t, bodyForm, selectBodyStrategy(map[string]string{}))
	assert.Equal(t, bodyForm, selectBodyStrategy(map[string]string{"Accept": "application/json"}))
	assert.Equal(t, bodyJSON, selectBodyStrategy(map[string]string{"Content-Type": "application/json"}))
	assert.Equal(t, bodyJSON, selectBodyStrategy(map[string]string{"content-type": "application/json"}))
	assert.Equal(t, "form", bodyForm.String())
	assert.Equal(t, "json", bodyJSON.String())
}

func TestCopyHeaders(t *testing.T) {
	src := map[string]string{"Authorization": "Bearer t", "Credentials": "Include"}
	headers, wants := copyHeaders(src)

	assert.True(t, wants)
	assert.Equal(t, map[string]string{"Authorization": "Bearer t"}, headers)
	assert.Len(t, src, 2, "caller headers must not be mutated")

	headers, wants = copyHeaders(map[string]string{"credentials": "omit"})
	assert.False(t, wants)
	assert.Empty(t, headers)

	headers, wants = copyHeaders(nil)
	assert.False(t, wants)
	assert.NotNil(t, headers)
}

func TestPrepareGet(t *testing.T) {
	d := newTestDispatcher(nil)
	opts := &Options{
		Path:   "/api/v1/users",
		Host:   "canvas.example.edu",
		Params: map[string]any{"a": 1, "b": []int{2, 3}},
	}

	c, err := d.prepare(opts)
	require.NoError(t, err)

	assert.Equal(t, MethodGet, c.method)
	assert.Equal(t, ResponseJSON, c.responseType)
	assert.Equal(t, "https://canvas.example.edu/api/v1/users?a=1&b[]=2&b[]=3", c.url)
	assert.Nil(t, c.body)
	assert.Equal(t, testFormContentType, c.headers["Content-Type"])
}

func TestPrepareFormBody(t *testing.T) {
	d := newTestDispatcher(nil)
	opts := &Options{
		Path:   "/api/v1/courses",
		Method: MethodPost,
		Params: map[string]any{"name": "Intro CS", "tags": []string{"a", "b"}, "meta": map[string]any{"k": "v"}},
	}

	c, err := d.prepare(opts)
	require.NoError(t, err)

	assert.Equal(t, "/api/v1/courses", c.url)
	assert.Equal(t, "meta=%7B%22k%22%3A%22v%22%7D&name=Intro%20CS&tags[]=a&tags[]=b", string(c.body))
	assert.Equal(t, testFormContentType, c.headers["Content-Type"])
	assert.NotContains(t, opts.Headers, "Content-Type")
}

func TestPrepareJSONBody(t *testing.T) {
	d := newTestDispatcher(nil)
	headers := map[string]string{"content-type": "application/json"}
	opts := &Options{
		Path:    "/api",
		Method:  MethodPut,
		Headers: headers,
		Params:  map[string]any{"meta": map[string]any{"k": "v"}, "n": 2},
	}

	c, err := d.prepare(opts)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(c.body, &decoded))
	assert.Equal(t, map[string]any{"meta": map[string]any{"k": "v"}, "n": float64(2)}, decoded, "JSON bodies carry the raw params")
	assert.Equal(t, "application/json", c.headers["content-type"])
	_, hasCanonical := c.headers["Content-Type"]
	assert.False(t, hasCanonical)
	assert.Len(t, headers, 1)
}

func TestPrepareJSONBodyWithoutParams(t *testing.T) {
	d := newTestDispatcher(nil)
	c, err := d.prepare(&Options{
		Path:    "/api",
		Method:  MethodDelete,
		Headers: map[string]string{"Content-Type": "application/json"},
	})
	require.NoError(t, err)
	assert.Nil(t, c.body)
}

func TestPrepareEmptyFormBody(t *testing.T) {
	d := newTestDispatcher(nil)
	c, err := d.prepare(&Options{Path: "/api", Method: MethodPost})
	require.NoError(t, err)
	assert.Nil(t, c.body)
	assert.Equal(t, "/api", c.url)
}

func TestPrepareRetries(t *testing.T) {
	d := newTestDispatcher(func(b *Builder) { b.WithNumRetries(4) })

	c, err := d.prepare(&Options{Path: "/x"})
	require.NoError(t, err)
	assert.Equal(t, 4, c.retries, "unset falls back to the configured default")

	c, err = d.prepare(&Options{Path: "/x", NumRetries: IntPtr(2)})
	require.NoError(t, err)
	assert.Equal(t, 2, c.retries)

	c, err = d.prepare(&Options{Path: "/x", NumRetries: IntPtr(0)})
	require.NoError(t, err)
	assert.Equal(t, 0, c.retries, "explicit zero overrides the configured default")
}

func TestCredentialPolicy(t *testing.T) {
	tests := []struct {
		name    string
		devMode bool
		opts    Options
		want    bool
	}{
		{"default relative", false, Options{Path: "/x"}, false},
		{"default remote host", false, Options{Path: "/x", Host: "canvas.example.edu"}, false},
		{"per call override", false, Options{Path: "/x", SendCrossDomainCredentials: true}, true},
		{"development mode", true, Options{Path: "/x"}, true},
		{"credentials header", false, Options{Path: "/x", Headers: map[string]string{"credentials": "include"}}, true},
		{"credential host", false, Options{Path: "/x", Host: "localhost:8080"}, true},
		{"credential host case", false, Options{Path: "/x", Host: "LOCALHOST:8080"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := newTestDispatcher(func(b *Builder) { b.WithDevelopmentMode(tt.devMode) })
			c, err := d.prepare(&tt.opts)
			require.NoError(t, err)
			assert.Equal(t, tt.want, c.includeCredentials)
			_, forwarded := c.headers["credentials"]
			assert.False(t, forwarded)
		})
	}
}

func TestTLSPolicy(t *testing.T) {
	yes, no := true, false
	tests := []struct {
		name string
		opts Options
		want bool
	}{
		{"relative never skips", Options{Path: "/x", IgnoreSSLIssues: &yes}, false},
		{"remote host verifies", Options{Path: "/x", Host: "canvas.example.edu"}, false},
		{"explicit override", Options{Path: "/x", Host: "canvas.example.edu", IgnoreSSLIssues: &yes}, true},
		{"local dev host", Options{Path: "/x", Host: "localhost:8088"}, true},
		{"explicit false wins over dev host", Options{Path: "/x", Host: "localhost:8088", IgnoreSSLIssues: &no}, false},
	}

	d := newTestDispatcher(nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := d.prepare(&tt.opts)
			require.NoError(t, err)
			assert.Equal(t, tt.want, c.insecure)
		})
	}
}

func TestConfiguredHostLists(t *testing.T) {
	d := newTestDispatcher(func(b *Builder) {
		b.WithInsecureHosts("dev.example.edu:8443").WithCredentialHosts()
	})

	c, err := d.prepare(&Options{Path: "/x", Host: "dev.example.edu:8443"})
	require.NoError(t, err)
	assert.True(t, c.insecure)

	c, err = d.prepare(&Options{Path: "/x", Host: "localhost:8088"})
	require.NoError(t, err)
	assert.False(t, c.insecure)

	c, err = d.prepare(&Options{Path: "/x", Host: "localhost:8080"})
	require.NoError(t, err)
	assert.False(t, c.includeCredentials)
}

func TestInjectTraceHeaders(t *testing.T) {
	ctx := trace.WithRequestID(context.Background(), "req-123")

	t.Run("request id only by default", func(t *testing.T) {
		d := newTestDispatcher(nil)
		headers := map[string]string{}
		d.injectTraceHeaders(ctx, headers)
		assert.Equal(t, map[string]string{"X-Request-ID": "req-123"}, headers)
	})

	t.Run("caller request id wins", func(t *testing.T) {
		d := newTestDispatcher(nil)
		headers := map[string]string{"x-request-id": "mine"}
		d.injectTraceHeaders(ctx, headers)
		assert.Equal(t, map[string]string{"x-request-id": "mine"}, headers)
	})

	t.Run("custom header name", func(t *testing.T) {
		d := newTestDispatcher(func(b *Builder) { b.WithRequestIDHeader("X-Correlation-ID") })
		headers := map[string]string{}
		d.injectTraceHeaders(ctx, headers)
		assert.Equal(t, "req-123", headers["X-Correlation-ID"])
	})

	t.Run("disabled header", func(t *testing.T) {
		d := newTestDispatcher(func(b *Builder) { b.WithRequestIDHeader("") })
		headers := map[string]string{}
		d.injectTraceHeaders(ctx, headers)
		assert.Empty(t, headers)
	})

	t.Run("traceparent from context value", func(t *testing.T) {
		d := newTestDispatcher(func(b *Builder) { b.WithW3CTrace(true) })
		tp := "00-0af7651916cd43dd8448eb211c80319c-b7ad6b7169203331-01"
		headers := map[string]string{}
		d.injectTraceHeaders(trace.WithTraceParent(ctx, tp), headers)
		assert.Equal(t, tp, headers["traceparent"])
	})

	t.Run("traceparent from active span", func(t *testing.T) {
		d := newTestDispatcher(func(b *Builder) { b.WithW3CTrace(true) })
		tp := sdktrace.NewTracerProvider()
		spanCtx, span := tp.Tracer("test").Start(ctx, "parent")
		defer span.End()

		headers := map[string]string{}
		d.injectTraceHeaders(spanCtx, headers)
		sc := span.SpanContext()
		assert.Equal(t, "00-"+sc.TraceID().String()+"-"+sc.SpanID().String()+"-01", headers["traceparent"])
	})

	t.Run("generated traceparent", func(t *testing.T) {
		d := newTestDispatcher(func(b *Builder) { b.WithW3CTrace(true) })
		headers := map[string]string{}
		d.injectTraceHeaders(ctx, headers)
		assert.Regexp(t, `^00-[0-9a-f]{32}-[0-9a-f]{16}-01$`, headers["traceparent"])
	})

	t.Run("caller traceparent wins", func(t *testing.T) {
		d := newTestDispatcher(func(b *Builder) { b.WithW3CTrace(true) })
		headers := map[string]string{"Traceparent": "given"}
		d.injectTraceHeaders(ctx, headers)
		assert.Equal(t, "given", headers["Traceparent"])
		_, added := headers["traceparent"]
		assert.False(t, added)
	})
}
