// Package mocks provides testify-based mocks of the dispatcher's interfaces.
package mocks

import (
	"context"
	"sync"

	"github.com/stretchr/testify/mock"

	"github.com/harvard-edtech/caccl-send-request/dispatch"
)

// MockTransport provides a testify-based mock implementation of dispatch.Transport.
// Every request it receives is also recorded so tests can inspect what the
// dispatcher built for each attempt.
//
// Example usage:
//
//	mt := mocks.NewMockTransport()
//	mt.On("Send", mock.Anything, mock.MatchedBy(func(r *dispatch.TransportRequest) bool {
//		return r.Method == "POST"
//	})).Return(&dispatch.TransportResponse{StatusCode: 201}, nil)
type MockTransport struct {
	mock.Mock

	mu       sync.Mutex
	requests []*dispatch.TransportRequest
}

// NewMockTransport creates a new mock transport
func NewMockTransport() *MockTransport {
	return &MockTransport{}
}

var _ dispatch.Transport = (*MockTransport)(nil)

// Send implements dispatch.Transport
func (m *MockTransport) Send(ctx context.Context, req *dispatch.TransportRequest) (*dispatch.TransportResponse, error) {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	m.mu.Unlock()

	arguments := m.Called(ctx, req)
	var resp *dispatch.TransportResponse
	if r := arguments.Get(0); r != nil {
		resp = r.(*dispatch.TransportResponse)
	}
	return resp, arguments.Error(1)
}

// Requests returns the requests received so far, in order.
func (m *MockTransport) Requests() []*dispatch.TransportRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*dispatch.TransportRequest, len(m.requests))
	copy(out, m.requests)
	return out
}

// ExpectSend sets up a Send expectation for any request.
func (m *MockTransport) ExpectSend(resp *dispatch.TransportResponse, err error) *mock.Call {
	return m.On("Send", mock.Anything, mock.Anything).Return(resp, err)
}

// ExpectSendTimes sets up a Send expectation that matches exactly n times.
func (m *MockTransport) ExpectSendTimes(n int, resp *dispatch.TransportResponse, err error) *mock.Call {
	return m.ExpectSend(resp, err).Times(n)
}

// ExpectSendTo sets up a Send expectation for requests with method and url.
func (m *MockTransport) ExpectSendTo(method, url string, resp *dispatch.TransportResponse, err error) *mock.Call {
	return m.On("Send", mock.Anything, mock.MatchedBy(func(r *dispatch.TransportRequest) bool {
		return r.Method == method && r.URL == url
	})).Return(resp, err)
}
