// Package testing provides utilities for testing code that dispatches
// requests.
//
// # Mocks
//
// The mocks subpackage provides a testify-based implementation of
// dispatch.Transport so callers can script exchanges and transport failures
// and assert on the requests the dispatcher built.
//
// # Fixtures
//
// The fixtures subpackage provides response builders and pre-configured
// transports for common scenarios: healthy endpoints, endpoints that fail a
// fixed number of times before answering, and endpoints that never connect.
//
// # Usage
//
//	import (
//		"github.com/harvard-edtech/caccl-send-request/testing/fixtures"
//		"github.com/harvard-edtech/caccl-send-request/testing/mocks"
//	)
//
//	transport := fixtures.NewFlakyTransport(2, fixtures.JSONResponse(200, `{"id":1}`))
//	d := dispatch.NewBuilder(logger.Nop()).WithTransport(transport).Build()
//
// Span and metric assertions live in observability/testing.
package testing
