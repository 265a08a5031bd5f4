// Package fixtures provides response builders and pre-configured transports
// for dispatcher tests.
package fixtures

import (
	"context"
	"crypto/x509"
	"errors"
	nethttp "net/http"
	"sync"

	"github.com/harvard-edtech/caccl-send-request/dispatch"
	"github.com/harvard-edtech/caccl-send-request/testing/mocks"
)

// Content type constants
const (
	ApplicationJSONContentType = "application/json"
	TextHTMLContentType        = "text/html"
)

// ErrConnectionRefused is a transport failure that classifies as not connected.
var ErrConnectionRefused = errors.New("dial tcp: connect: connection refused")

// ErrUnknownAuthority is a transport failure that classifies as a
// self-signed certificate.
var ErrUnknownAuthority error = x509.UnknownAuthorityError{}

// JSONResponse builds a completed exchange with a JSON body.
func JSONResponse(status int, body string) *dispatch.TransportResponse {
	return &dispatch.TransportResponse{
		StatusCode: status,
		Body:       []byte(body),
		Headers:    nethttp.Header{"Content-Type": {ApplicationJSONContentType}},
	}
}

// TextResponse builds a completed exchange with an HTML body.
func TextResponse(status int, body string) *dispatch.TransportResponse {
	return &dispatch.TransportResponse{
		StatusCode: status,
		Body:       []byte(body),
		Headers:    nethttp.Header{"Content-Type": {TextHTMLContentType}},
	}
}

// NoContentResponse builds a 204 exchange.
func NoContentResponse() *dispatch.TransportResponse {
	return &dispatch.TransportResponse{StatusCode: nethttp.StatusNoContent, Headers: nethttp.Header{}}
}

// NewWorkingTransport creates a mock transport that always answers resp.
func NewWorkingTransport(resp *dispatch.TransportResponse) *mocks.MockTransport {
	mt := mocks.NewMockTransport()
	mt.ExpectSend(resp, nil)
	return mt
}

// NewUnreachableTransport creates a mock transport whose every attempt fails with err.
func NewUnreachableTransport(err error) *mocks.MockTransport {
	if err == nil {
		err = ErrConnectionRefused
	}
	mt := mocks.NewMockTransport()
	mt.ExpectSend(nil, err)
	return mt
}

// FlakyTransport fails the first Failures attempts with a connection error
// and answers Response afterwards. It is safe for concurrent use.
type FlakyTransport struct {
	Failures int
	Response *dispatch.TransportResponse

	mu       sync.Mutex
	attempts int
}

// NewFlakyTransport creates a transport failing failures times before answering resp.
func NewFlakyTransport(failures int, resp *dispatch.TransportResponse) *FlakyTransport {
	return &FlakyTransport{Failures: failures, Response: resp}
}

// Send implements dispatch.Transport
func (f *FlakyTransport) Send(_ context.Context, _ *dispatch.TransportRequest) (*dispatch.TransportResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.attempts++
	if f.attempts <= f.Failures {
		return nil, ErrConnectionRefused
	}
	return f.Response, nil
}

// Attempts returns how many times Send was called.
func (f *FlakyTransport) Attempts() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.attempts
}
