package dispatch

import (
	"bytes"
	"crypto/x509"
	"errors"
	"fmt"
	"strings"
)

// DispatchError is returned when a call cannot produce a result: the
// transport never completed an exchange, the body could not be decoded, or
// the options were rejected before sending.
type DispatchError interface {
	error
	Code() ErrorCode
	Message() string
}

// ErrorCode tags a DispatchError. The values are stable across releases.
type ErrorCode string

const (
	NotConnected       ErrorCode = "CSR1"
	SelfSigned         ErrorCode = "CSR2"
	ResponseParseError ErrorCode = "CSR3"
	InvalidOptions     ErrorCode = "CSR4"
)

const (
	msgNotConnected = "We encountered an error when trying to send a network request. If this issue persists, contact an admin."
	msgSelfSigned   = "We refused to send a request because the receiver has self-signed certificates."
)

// notConnectedError represents a transport failure after the retry budget ran out
type notConnectedError struct {
	wrapped error
}

func (e *notConnectedError) Error() string {
	if e.wrapped != nil {
		return fmt.Sprintf("%s (%s): %v", msgNotConnected, NotConnected, e.wrapped)
	}
	return fmt.Sprintf("%s (%s)", msgNotConnected, NotConnected)
}

func (e *notConnectedError) Code() ErrorCode {
	return NotConnected
}

func (e *notConnectedError) Message() string {
	return msgNotConnected
}

func (e *notConnectedError) Unwrap() error {
	return e.wrapped
}

// selfSignedError represents a TLS failure caused by an untrusted certificate
type selfSignedError struct {
	wrapped error
}

func (e *selfSignedError) Error() string {
	if e.wrapped != nil {
		return fmt.Sprintf("%s (%s): %v", msgSelfSigned, SelfSigned, e.wrapped)
	}
	return fmt.Sprintf("%s (%s)", msgSelfSigned, SelfSigned)
}

func (e *selfSignedError) Code() ErrorCode {
	return SelfSigned
}

func (e *selfSignedError) Message() string {
	return msgSelfSigned
}

func (e *selfSignedError) Unwrap() error {
	return e.wrapped
}

// responseParseError represents a JSON body that failed to decode
type responseParseError struct {
	wrapped error
}

func (e *responseParseError) Error() string {
	return fmt.Sprintf("%s (%s)", e.Message(), ResponseParseError)
}

func (e *responseParseError) Code() ErrorCode {
	return ResponseParseError
}

func (e *responseParseError) Message() string {
	if e.wrapped == nil {
		return "We could not parse the response body as JSON."
	}
	return fmt.Sprintf("We could not parse the response body as JSON: %v", e.wrapped)
}

func (e *responseParseError) Unwrap() error {
	return e.wrapped
}

// invalidOptionsError represents options rejected before any attempt
type invalidOptionsError struct {
	message string
	field   string
}

func (e *invalidOptionsError) Error() string {
	if e.field != "" {
		return fmt.Sprintf("invalid request options: %s (field: %s) (%s)", e.message, e.field, InvalidOptions)
	}
	return fmt.Sprintf("invalid request options: %s (%s)", e.message, InvalidOptions)
}

func (e *invalidOptionsError) Code() ErrorCode {
	return InvalidOptions
}

func (e *invalidOptionsError) Message() string {
	return e.message
}

// Field returns the name of the offending option, if known.
func (e *invalidOptionsError) Field() string {
	return e.field
}

// NewNotConnectedError creates a new not-connected error
func NewNotConnectedError(wrapped error) DispatchError {
	return &notConnectedError{wrapped: wrapped}
}

// NewSelfSignedError creates a new self-signed certificate error
func NewSelfSignedError(wrapped error) DispatchError {
	return &selfSignedError{wrapped: wrapped}
}

// NewResponseParseError creates a new response parse error
func NewResponseParseError(wrapped error) DispatchError {
	return &responseParseError{wrapped: wrapped}
}

// NewInvalidOptionsError creates a new invalid options error
func NewInvalidOptionsError(message, field string) DispatchError {
	return &invalidOptionsError{message: message, field: field}
}

// IsErrorCode checks if an error is a DispatchError with the given code
func IsErrorCode(err error, code ErrorCode) bool {
	if err == nil {
		return false
	}
	var dispatchErr DispatchError
	if errors.As(err, &dispatchErr) {
		return dispatchErr.Code() == code
	}
	return false
}

// classifyTransportFailure picks the terminal error code for a transport
// failure once no retries remain. An unknown-authority failure counts as
// self-signed only when the rejected certificate names itself as issuer, or
// when the error carries no certificate to inspect.
func classifyTransportFailure(err error) ErrorCode {
	if err == nil {
		return NotConnected
	}
	var unknownAuthority x509.UnknownAuthorityError
	if errors.As(err, &unknownAuthority) {
		return classifyUnknownAuthority(unknownAuthority.Cert)
	}
	var unknownAuthorityPtr *x509.UnknownAuthorityError
	if errors.As(err, &unknownAuthorityPtr) && unknownAuthorityPtr != nil {
		return classifyUnknownAuthority(unknownAuthorityPtr.Cert)
	}
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "self signed certificate") || strings.Contains(msg, "self-signed certificate") {
		return SelfSigned
	}
	return NotConnected
}

func classifyUnknownAuthority(cert *x509.Certificate) ErrorCode {
	if cert == nil || bytes.Equal(cert.RawIssuer, cert.RawSubject) {
		return SelfSigned
	}
	return NotConnected
}

// terminalError builds the DispatchError for an exhausted transport failure.
func terminalError(err error) DispatchError {
	if classifyTransportFailure(err) == SelfSigned {
		return NewSelfSignedError(err)
	}
	return NewNotConnectedError(err)
}
