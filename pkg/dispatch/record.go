package dispatch

import (
	"encoding/json"
	"time"
)

// Record describes one unit of work: an opaque request payload plus the
// retry state the dispatcher maintains across attempts.
type Record struct {
	// ID is assigned once at ingestion and is the sole correlation key
	// between dispatch and result.
	ID uint64

	// Payload is the request body; the dispatcher never inspects it.
	Payload json.RawMessage

	// Metadata is echoed into the result record untouched.
	Metadata json.RawMessage

	// EstimatedCost is reserved against the cost budget before the call
	// completes. The true cost is only known afterward.
	EstimatedCost uint64

	// Attempt counts calls already made. It never exceeds MaxAttempts.
	Attempt int

	// MaxAttempts is fixed at ingestion.
	MaxAttempts int

	// NotBefore delays dispatch eligibility, used for retry back-off.
	NotBefore time.Time

	// Errors accumulates one reason per failed attempt.
	Errors []string
}
