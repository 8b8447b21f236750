package runner

import (
	"io"
	"time"

	"parareq/pkg/dispatch"
)

// verboseObserver prints one line per dispatch event.
type verboseObserver struct {
	writer  io.Writer
	noColor bool
}

// newVerboseObserver wires verbose logging into the dispatch loop.
func newVerboseObserver(writer io.Writer, noColor bool) *verboseObserver {
	return &verboseObserver{writer: writer, noColor: noColor}
}

// OnAdmit logs a launched attempt.
func (o *verboseObserver) OnAdmit(rec *dispatch.Record) {
	logVerbose(o.writer, o.noColor, styleAdmit,
		"Starting request #%d attempt %d/%d cost=%d", rec.ID, rec.Attempt, rec.MaxAttempts, rec.EstimatedCost)
}

// OnSuccess logs a completed request.
func (o *verboseObserver) OnSuccess(rec *dispatch.Record, actualCost int64) {
	if actualCost >= 0 {
		logVerbose(o.writer, o.noColor, styleSuccess,
			"Request #%d succeeded after %d attempt(s), actual cost %d", rec.ID, rec.Attempt, actualCost)
		return
	}
	logVerbose(o.writer, o.noColor, styleSuccess,
		"Request #%d succeeded after %d attempt(s)", rec.ID, rec.Attempt)
}

// OnRetry logs a re-queued attempt.
func (o *verboseObserver) OnRetry(rec *dispatch.Record, reason string, notBefore time.Time) {
	logVerbose(o.writer, o.noColor, styleRetry,
		"Request #%d attempt %d failed, retrying at %s: %s", rec.ID, rec.Attempt, notBefore.Format(time.TimeOnly), reason)
}

// OnFailure logs a terminal failure.
func (o *verboseObserver) OnFailure(rec *dispatch.Record, reason string, exhausted bool) {
	if exhausted {
		logVerbose(o.writer, o.noColor, styleError,
			"Request #%d failed after all %d attempts: %s", rec.ID, rec.Attempt, reason)
		return
	}
	logVerbose(o.writer, o.noColor, styleError,
		"Request #%d failed permanently: %s", rec.ID, reason)
}
