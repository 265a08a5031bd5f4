// Package dispatch sends a single logical HTTP request, normalizes the
// outcome into a Result and retries transport failures up to a bounded
// budget.
//
// # Outcomes
//   - A completed exchange is always a Result, including 4xx and 5xx.
//   - A transport failure (no exchange) consumes one retry. With no budget
//     left it becomes a SelfSigned or NotConnected DispatchError.
//   - A JSON body that fails to decode is a ResponseParseError and is
//     never retried. A 204 decodes to an empty object. Any other empty or
//     whitespace-only body decodes to the empty string, not an error.
//   - A TLS failure against an unknown authority is SelfSigned only when the
//     rejected certificate is self-issued (issuer equals subject) or the
//     error carries no certificate. An untrusted private CA is NotConnected.
//
// # Encoding
//   - Params are serialized with bracket array notation (a[]=1&a[]=2).
//     Nested non-array objects are sent as JSON text.
//   - GET requests carry params in the query string and never have a body.
//   - Without a Content-Type header other methods send a form-encoded body.
//     With one, the params are sent as JSON.
//
// # Policies
//   - Credentials are attached when the call asks for them, the dispatcher
//     runs in development mode, the headers contain "credentials: include",
//     or the host is a configured credential host.
//   - TLS verification is skipped for host-addressed calls when the call
//     says so or the host is a configured insecure host.
//
// Retries are immediate. A configured rate limiter delays every attempt.
package dispatch
