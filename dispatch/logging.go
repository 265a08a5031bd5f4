package dispatch

import (
	"strconv"
	"time"

	"github.com/harvard-edtech/caccl-send-request/logger"
)

const (
	msgDispatchRequest  = "Dispatch request"
	msgDispatchResponse = "Dispatch response"
	msgDispatchRetry    = "Dispatch transport failure, retrying"
	msgDispatchFailed   = "Dispatch failed"
)

var sensitiveFilter = logger.NewSensitiveDataFilter(logger.DefaultFilterConfig())

// logRequest logs one outgoing attempt
func (d *Dispatcher) logRequest(log logger.Logger, req *TransportRequest, attempt int, requestID string) {
	event := log.Info().
		Str("direction", "outbound").
		Str("method", req.Method).
		Str("url", sensitiveFilter.FilterURL(req.URL)).
		Int("attempt", attempt)

	if requestID != "" {
		event = event.Str("request_id", requestID)
	}
	if len(req.Headers) > 0 {
		event = event.Int("header_count", len(req.Headers))
	}
	if len(req.Body) > 0 {
		event = event.Int("body_size", len(req.Body))
	}
	event.Msg(msgDispatchRequest)

	if !d.config.LogPayloads {
		return
	}
	debug := log.Debug().
		Str("direction", "outbound").
		Str("method", req.Method).
		Str("request_id", requestID).
		Interface("headers", sensitiveFilter.FilterStringMap(req.Headers))
	d.withBodyPreview(debug, req.Body).Msg(msgDispatchRequest)
}

// logResponse logs a completed exchange
func (d *Dispatcher) logResponse(log logger.Logger, resp *TransportResponse, elapsed time.Duration, attempts int, requestID string) {
	event := log.Info().
		Str("direction", "inbound").
		Int("status", resp.StatusCode).
		Dur("elapsed", elapsed).
		Int("attempts", attempts)

	if requestID != "" {
		event = event.Str("request_id", requestID)
	}
	if len(resp.Body) > 0 {
		event = event.Int("body_size", len(resp.Body))
	}
	event.Msg(msgDispatchResponse)

	if !d.config.LogPayloads {
		return
	}
	debug := log.Debug().
		Str("direction", "inbound").
		Int("status", resp.StatusCode).
		Str("request_id", requestID).
		Interface("headers", sensitiveFilter.FilterValue("headers", resp.Headers))
	d.withBodyPreview(debug, resp.Body).Msg(msgDispatchResponse)
}

// logRetry logs a transport failure that still has budget left
func (d *Dispatcher) logRetry(log logger.Logger, err error, attempt, remaining int) {
	log.Warn().
		Err(err).
		Int("attempt", attempt).
		Int("retries_remaining", remaining).
		Msg(msgDispatchRetry)
}

// logFailure logs a terminal dispatch error
func (d *Dispatcher) logFailure(log logger.Logger, err DispatchError, attempts int, elapsed time.Duration) {
	log.Error().
		Err(err).
		Str("code", string(err.Code())).
		Int("attempts", attempts).
		Dur("elapsed", elapsed).
		Msg(msgDispatchFailed)
}

func (d *Dispatcher) withBodyPreview(event logger.LogEvent, body []byte) logger.LogEvent {
	if len(body) == 0 {
		return event
	}
	limit := d.config.MaxPayloadLogBytes
	if limit <= 0 {
		limit = DefaultMaxPayloadLogBytes
	}
	preview := body
	truncated := false
	if len(body) > limit {
		preview = body[:limit]
		truncated = true
	}
	return event.
		Int("body_size", len(body)).
		Str("body_truncated", strconv.FormatBool(truncated)).
		Bytes("body_preview", preview)
}
