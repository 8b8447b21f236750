package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
)

// ErrorClass is the provider-agnostic classification hint a Caller
// attaches to a failed invocation.
type ErrorClass string

const (
	// ClassTransport covers timeouts, connection resets and other
	// network-level failures.
	ClassTransport ErrorClass = "transport"
	// ClassRateLimited marks responses where the provider's own rate
	// limit was hit.
	ClassRateLimited ErrorClass = "rate_limited"
	// ClassServer covers server-side error responses.
	ClassServer ErrorClass = "server"
	// ClassClient covers malformed requests, auth failures and other
	// errors retrying cannot fix.
	ClassClient ErrorClass = "client"
)

// CallError wraps a failed invocation with its classification hint.
type CallError struct {
	Class ErrorClass
	Err   error
}

// Error implements the error interface.
func (e *CallError) Error() string {
	return fmt.Sprintf("%s: %v", e.Class, e.Err)
}

// Unwrap exposes the underlying error.
func (e *CallError) Unwrap() error {
	return e.Err
}

// CostUnknown marks a CallResult whose actual cost was not reported.
const CostUnknown int64 = -1

// CallResult is a successful invocation outcome. ActualCost carries the
// provider-reported usage, or CostUnknown when the response does not
// expose it.
type CallResult struct {
	Body       json.RawMessage
	ActualCost int64
}

// Caller performs the actual network call for one record's payload.
// Implementations classify their own failures via CallError so the
// dispatcher stays provider-agnostic.
type Caller interface {
	Invoke(ctx context.Context, payload json.RawMessage) (CallResult, error)
}
