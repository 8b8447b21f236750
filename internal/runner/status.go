package runner

import (
	"sync"
	"time"

	"parareq/pkg/dispatch"
)

// StatusTracker counts run progress. One instance exists per run; it
// observes dispatch events and is read by the summary and the UI.
type StatusTracker struct {
	mu sync.Mutex

	Started    int
	InProgress int
	Succeeded  int
	Failed     int
	Retried    int
}

// NewStatusTracker returns an empty tracker.
func NewStatusTracker() *StatusTracker {
	return &StatusTracker{}
}

// OnAdmit records a launched attempt.
func (t *StatusTracker) OnAdmit(rec *dispatch.Record) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if rec.Attempt == 1 {
		t.Started++
	}
	t.InProgress++
}

// OnSuccess records a completed request.
func (t *StatusTracker) OnSuccess(rec *dispatch.Record, actualCost int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.InProgress--
	t.Succeeded++
}

// OnRetry records a re-queued attempt.
func (t *StatusTracker) OnRetry(rec *dispatch.Record, reason string, notBefore time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.InProgress--
	t.Retried++
}

// OnFailure records a terminal failure.
func (t *StatusTracker) OnFailure(rec *dispatch.Record, reason string, exhausted bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.InProgress--
	t.Failed++
}

// Status is a point-in-time copy of the counters.
type Status struct {
	Started    int
	InProgress int
	Succeeded  int
	Failed     int
	Retried    int
}

// Snapshot returns a copy of the counters.
func (t *StatusTracker) Snapshot() Status {
	t.mu.Lock()
	defer t.mu.Unlock()
	return Status{
		Started:    t.Started,
		InProgress: t.InProgress,
		Succeeded:  t.Succeeded,
		Failed:     t.Failed,
		Retried:    t.Retried,
	}
}
