package dispatch

import (
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	"go.opentelemetry.io/otel/metric"
	oteltrace "go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/harvard-edtech/caccl-send-request/config"
	"github.com/harvard-edtech/caccl-send-request/internal/tracking"
	"github.com/harvard-edtech/caccl-send-request/logger"
	"github.com/harvard-edtech/caccl-send-request/qs"
	"github.com/harvard-edtech/caccl-send-request/trace"
)

const (
	// DefaultTimeout is the default per-attempt timeout of the HTTP transport
	DefaultTimeout = 30 * time.Second

	// DefaultNumRetries is the default retry budget when a call sets none
	DefaultNumRetries = 0

	// DefaultMaxPayloadLogBytes caps logged body previews
	DefaultMaxPayloadLogBytes = 1024
)

var (
	// DefaultInsecureHosts skip TLS verification unless a call overrides it
	DefaultInsecureHosts = []string{"localhost:8088"}

	// DefaultCredentialHosts always receive credentials
	DefaultCredentialHosts = []string{"localhost:8080"}
)

// Dispatcher sends requests with bounded retry on transport failure.
// It holds no per-call state and is safe for concurrent use.
type Dispatcher struct {
	transport Transport
	codec     ParamCodec
	logger    logger.Logger
	config    *Config
	limiter   *rate.Limiter
	recorder  *tracking.Recorder
	validator *optionsValidator
}

func defaultConfig() *Config {
	return &Config{
		NumRetries:         DefaultNumRetries,
		Timeout:            DefaultTimeout,
		InsecureHosts:      slices.Clone(DefaultInsecureHosts),
		CredentialHosts:    slices.Clone(DefaultCredentialHosts),
		RequestIDHeader:    trace.HeaderXRequestID,
		MaxPayloadLogBytes: DefaultMaxPayloadLogBytes,
	}
}

// NewDispatcher creates a dispatcher with default configuration
func NewDispatcher(log logger.Logger) *Dispatcher {
	return NewBuilder(log).Build()
}

// Builder provides a fluent interface for configuring a Dispatcher
type Builder struct {
	config         *Config
	logger         logger.Logger
	transport      Transport
	codec          ParamCodec
	limiter        *rate.Limiter
	tracerProvider oteltrace.TracerProvider
	meterProvider  metric.MeterProvider
}

// NewBuilder creates a new dispatcher builder
func NewBuilder(log logger.Logger) *Builder {
	return &Builder{
		config: defaultConfig(),
		logger: log,
	}
}

// WithTransport replaces the default net/http transport
func (b *Builder) WithTransport(t Transport) *Builder {
	b.transport = t
	return b
}

// WithParamCodec replaces the default bracket-notation codec
func (b *Builder) WithParamCodec(codec ParamCodec) *Builder {
	b.codec = codec
	return b
}

// WithDevelopmentMode makes every call carry credentials
func (b *Builder) WithDevelopmentMode(enabled bool) *Builder {
	b.config.DevelopmentMode = enabled
	return b
}

// WithNumRetries sets the retry budget used by calls that set none
func (b *Builder) WithNumRetries(n int) *Builder {
	b.config.NumRetries = n
	return b
}

// WithInsecureHosts replaces the hosts whose certificates are not verified
func (b *Builder) WithInsecureHosts(hosts ...string) *Builder {
	b.config.InsecureHosts = slices.Clone(hosts)
	return b
}

// WithCredentialHosts replaces the hosts that always receive credentials
func (b *Builder) WithCredentialHosts(hosts ...string) *Builder {
	b.config.CredentialHosts = slices.Clone(hosts)
	return b
}

// WithBaseURL sets the origin used to resolve calls without a host
func (b *Builder) WithBaseURL(baseURL string) *Builder {
	b.config.BaseURL = baseURL
	return b
}

// WithTimeout sets the per-attempt timeout of the default transport
func (b *Builder) WithTimeout(timeout time.Duration) *Builder {
	b.config.Timeout = timeout
	return b
}

// WithRateLimiter throttles attempts. A zero limit disables throttling.
func (b *Builder) WithRateLimiter(limit rate.Limit, burst int) *Builder {
	if limit <= 0 {
		b.limiter = nil
		return b
	}
	if burst <= 0 {
		burst = 1
	}
	b.limiter = rate.NewLimiter(limit, burst)
	return b
}

// WithRequestIDHeader sets the header carrying the request ID. Empty disables it.
func (b *Builder) WithRequestIDHeader(name string) *Builder {
	b.config.RequestIDHeader = name
	return b
}

// WithW3CTrace enables the traceparent header
func (b *Builder) WithW3CTrace(enabled bool) *Builder {
	b.config.W3CTrace = enabled
	return b
}

// WithLogPayloads enables debug logging of headers and body previews
func (b *Builder) WithLogPayloads(enabled bool, maxBytes int) *Builder {
	b.config.LogPayloads = enabled
	b.config.MaxPayloadLogBytes = maxBytes
	return b
}

// WithTracerProvider sets the tracer provider for dispatch spans
func (b *Builder) WithTracerProvider(tp oteltrace.TracerProvider) *Builder {
	b.tracerProvider = tp
	return b
}

// WithMeterProvider sets the meter provider for dispatch metrics
func (b *Builder) WithMeterProvider(mp metric.MeterProvider) *Builder {
	b.meterProvider = mp
	return b
}

// Build creates the Dispatcher with the configured options
func (b *Builder) Build() *Dispatcher {
	cfg := *b.config
	cfg.InsecureHosts = slices.Clone(b.config.InsecureHosts)
	cfg.CredentialHosts = slices.Clone(b.config.CredentialHosts)

	log := b.logger
	if log == nil {
		log = logger.Nop()
	}
	transport := b.transport
	if transport == nil {
		transport = NewHTTPTransport(cfg.Timeout, cfg.BaseURL)
	}
	var codec ParamCodec = qs.Codec{}
	if b.codec != nil {
		codec = b.codec
	}

	return &Dispatcher{
		transport: transport,
		codec:     codec,
		logger:    log,
		config:    &cfg,
		limiter:   b.limiter,
		recorder:  tracking.NewRecorder(b.tracerProvider, b.meterProvider),
		validator: newOptionsValidator(),
	}
}

// FromConfig builds a dispatcher from loaded configuration
func FromConfig(cfg *config.Config, log logger.Logger) (*Dispatcher, error) {
	b, err := NewBuilderFromConfig(cfg, log)
	if err != nil {
		return nil, err
	}
	return b.Build(), nil
}

// NewBuilderFromConfig returns a builder preloaded from the dispatch section
// so callers can add providers or a transport before building.
func NewBuilderFromConfig(cfg *config.Config, log logger.Logger) (*Builder, error) {
	if cfg == nil {
		return nil, errors.New("dispatch: configuration is nil")
	}
	dc := cfg.Dispatch
	b := NewBuilder(log).
		WithDevelopmentMode(dc.DevMode).
		WithNumRetries(dc.NumRetries).
		WithInsecureHosts(dc.InsecureHosts...).
		WithCredentialHosts(dc.CredentialHosts...).
		WithBaseURL(dc.BaseURL).
		WithRequestIDHeader(dc.RequestIDHeader).
		WithW3CTrace(dc.W3CTrace).
		WithLogPayloads(dc.LogPayloads, dc.MaxPayloadLogBytes).
		WithRateLimiter(rate.Limit(dc.Rate.Limit), dc.Rate.Burst)
	if dc.Timeout > 0 {
		b = b.WithTimeout(dc.Timeout)
	}
	return b, nil
}

// Dispatch sends one logical request. Completed exchanges, whatever their
// status, produce a Result. Transport failures are retried immediately until
// the budget runs out; decode failures are never retried.
func (d *Dispatcher) Dispatch(ctx context.Context, opts Options) (*Result, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	start := time.Now()

	if err := d.validator.Check(&opts); err != nil {
		d.logger.WithContext(ctx).Warn().Err(err).Msg("Dispatch options rejected")
		return nil, err
	}

	requestID := trace.EnsureRequestID(ctx)
	ctx = trace.WithRequestID(ctx, requestID)
	log := d.logger.WithContext(ctx)

	c, err := d.prepare(&opts)
	if err != nil {
		log.Warn().Err(err).Msg("Dispatch options rejected")
		return nil, err
	}

	method := string(c.method)
	ctx, span := d.recorder.Start(ctx, method, sensitiveFilter.FilterURL(c.url), c.host)
	d.injectTraceHeaders(ctx, c.headers)

	remaining := c.retries
	for attempt := 1; ; attempt++ {
		if d.limiter != nil {
			if err := d.limiter.Wait(ctx); err != nil {
				return nil, d.fail(ctx, span, log, method, start, attempt-1, NewNotConnectedError(err))
			}
		}

		req := c.request()
		d.logRequest(log, req, attempt, requestID)

		resp, err := d.transport.Send(ctx, req)
		if err != nil {
			var respErr *ResponseError
			if errors.As(err, &respErr) && respErr.Response != nil {
				resp, err = respErr.Response, nil
			}
		}

		if err != nil {
			d.recorder.RecordAttempt(ctx, method, tracking.OutcomeTransportFailure)
			if remaining > 0 && ctx.Err() == nil {
				remaining--
				d.logRetry(log, err, attempt, remaining)
				continue
			}
			return nil, d.fail(ctx, span, log, method, start, attempt, terminalError(err))
		}

		d.recorder.RecordAttempt(ctx, method, tracking.OutcomeCompleted)
		elapsed := time.Since(start)
		d.logResponse(log, resp, elapsed, attempt, requestID)

		body, decodeErr := decodeBody(resp.StatusCode, resp.Body, c.responseType)
		if decodeErr != nil {
			d.logFailure(log, decodeErr, attempt, elapsed)
			d.recorder.Finish(ctx, span, method, start, resp.StatusCode, attempt, string(decodeErr.Code()), decodeErr)
			return nil, decodeErr
		}

		d.recorder.Finish(ctx, span, method, start, resp.StatusCode, attempt, "", nil)
		return &Result{
			Body:    body,
			Status:  resp.StatusCode,
			Headers: flattenHeaders(resp.Headers),
			Stats: Stats{
				ElapsedTime: elapsed,
				Attempts:    attempt,
			},
		}, nil
	}
}

func (d *Dispatcher) fail(ctx context.Context, span oteltrace.Span, log logger.Logger, method string, start time.Time, attempts int, err DispatchError) DispatchError {
	d.logFailure(log, err, attempts, time.Since(start))
	d.recorder.Finish(ctx, span, method, start, 0, attempts, string(err.Code()), err)
	return err
}

var defaultDispatcher = sync.OnceValue(func() *Dispatcher {
	return NewDispatcher(logger.Nop())
})

// Send dispatches opts on a shared dispatcher with default configuration
// and no logging.
func Send(ctx context.Context, opts Options) (*Result, error) {
	return defaultDispatcher().Dispatch(ctx, opts)
}
