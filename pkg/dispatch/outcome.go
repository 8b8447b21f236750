package dispatch

import (
	"context"
	"encoding/json"
	"errors"
)

// OutcomeKind labels a completed call.
type OutcomeKind int

const (
	// OutcomeSuccess records a well-formed response.
	OutcomeSuccess OutcomeKind = iota
	// OutcomeRetryable records a transient failure worth another attempt.
	OutcomeRetryable
	// OutcomePermanent records a failure retrying cannot fix.
	OutcomePermanent
)

// Outcome is the classified result of one call attempt.
type Outcome struct {
	Kind        OutcomeKind
	Body        json.RawMessage
	ActualCost  int64
	Reason      string
	RateLimited bool
	Class       ErrorClass
}

// Classify maps a raw call result or error to an Outcome. Transport
// errors, provider rate limits, server errors and timeouts are
// retryable; other client errors are permanent.
func Classify(res CallResult, err error) Outcome {
	if err == nil {
		return Outcome{Kind: OutcomeSuccess, Body: res.Body, ActualCost: res.ActualCost}
	}
	var callErr *CallError
	if errors.As(err, &callErr) {
		switch callErr.Class {
		case ClassClient:
			return Outcome{Kind: OutcomePermanent, Reason: callErr.Error(), Class: callErr.Class}
		case ClassRateLimited:
			return Outcome{Kind: OutcomeRetryable, Reason: callErr.Error(), RateLimited: true, Class: callErr.Class}
		default:
			return Outcome{Kind: OutcomeRetryable, Reason: callErr.Error(), Class: callErr.Class}
		}
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return Outcome{Kind: OutcomeRetryable, Reason: err.Error(), Class: ClassTransport}
	}
	// Unclassified errors are treated as transient so a flaky collaborator
	// cannot silently drop work.
	return Outcome{Kind: OutcomeRetryable, Reason: err.Error(), Class: ClassTransport}
}
