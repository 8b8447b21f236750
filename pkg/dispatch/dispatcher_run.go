package dispatch

import (
	"context"
	"time"
)

// Run ingests the batch and drives the loop until every record has a
// terminal result, or until ctx is cancelled, in which case admission
// stops, in-flight calls drain under their own timeouts and unfinished
// records are left without results. The returned error is non-nil on
// cancellation or when the sink fails, which aborts the run.
func (d *Dispatcher) Run(ctx context.Context, records []*Record) (Stats, error) {
	now := d.now()
	for _, rec := range records {
		d.backlog.Push(rec, now)
	}

	timer := time.NewTimer(d.idleInterval)
	defer timer.Stop()
	done := ctx.Done()

	for {
		if d.inFlight == 0 && (d.stopping || d.backlog.Empty()) {
			if d.stopping {
				return d.stats, ctx.Err()
			}
			return d.stats, nil
		}

		wait := d.idleInterval
		if !d.stopping {
			admitted, admitWait := d.admitNext()
			if admitted {
				// Opportunistically drain one completion so a fast caller
				// cannot back up the channel while admission is hot.
				select {
				case c := <-d.completions:
					if err := d.handleCompletion(c); err != nil {
						return d.stats, err
					}
				default:
				}
				continue
			}
			if admitWait > 0 {
				wait = admitWait
			}
		}

		resetTimer(timer, wait)
		select {
		case c := <-d.completions:
			if err := d.handleCompletion(c); err != nil {
				return d.stats, err
			}
		case <-timer.C:
		case <-done:
			d.stopping = true
			done = nil
		}
	}
}

// admitNext attempts to admit the head record. It returns whether a
// record was launched and, if not, how long to wait before re-checking.
func (d *Dispatcher) admitNext() (bool, time.Duration) {
	now := d.now()
	if remaining := d.cooldownRemaining(now); remaining > 0 {
		return false, remaining
	}
	if d.inFlight >= d.maxInFlight {
		// A completion will wake the loop; the interval is a backstop.
		return false, d.idleInterval
	}
	rec, ok := d.backlog.Peek(now)
	if !ok {
		if next, has := d.backlog.NextWake(); has {
			return false, next.Sub(now)
		}
		return false, d.idleInterval
	}
	if !d.budget.TryReserve(now, 1, float64(rec.EstimatedCost)) {
		// Denied: retry the same head record after a jittered pause, so
		// heads-of-line blocking on an oversized record is expected.
		return false, d.admitWait + d.admitJitter(d.admitWait)
	}
	d.backlog.PopHead()
	rec.Attempt++
	if rec.Attempt == 1 {
		d.stats.Started++
	}
	d.inFlight++
	d.observer.OnAdmit(rec)
	go d.invoke(rec)
	return true, 0
}

// invoke runs the call as its own task under its own timeout and feeds
// the completion back into the loop.
func (d *Dispatcher) invoke(rec *Record) {
	ctx, cancel := context.WithTimeout(context.Background(), d.callTimeout)
	defer cancel()
	res, err := d.caller.Invoke(ctx, rec.Payload)
	d.completions <- completion{record: rec, result: res, err: err}
}

// handleCompletion classifies a finished call and routes it per the
// retry policy. A sink write error is returned as fatal.
func (d *Dispatcher) handleCompletion(c completion) error {
	d.inFlight--
	rec := c.record
	out := Classify(c.result, c.err)

	switch out.Kind {
	case OutcomeSuccess:
		d.refundDelta(rec, out.ActualCost)
		d.stats.Succeeded++
		d.observer.OnSuccess(rec, out.ActualCost)
		return d.sink.Write(ResultRecord{
			ID:       rec.ID,
			Status:   StatusSucceeded,
			Request:  rec.Payload,
			Response: out.Body,
			Metadata: rec.Metadata,
			Attempts: rec.Attempt,
		})

	case OutcomeRetryable:
		d.noteFailureClass(out)
		rec.Errors = append(rec.Errors, out.Reason)
		now := d.now()
		if out.RateLimited {
			d.lastRateLimit = now
		}
		if rec.Attempt >= rec.MaxAttempts {
			d.stats.Failed++
			d.observer.OnFailure(rec, out.Reason, true)
			return d.sink.Write(failedResult(rec))
		}
		delay := d.backoff.Delay(rec.Attempt)
		rec.NotBefore = now.Add(delay)
		d.backlog.Push(rec, now)
		d.stats.Retried++
		d.observer.OnRetry(rec, out.Reason, rec.NotBefore)
		return nil

	default:
		d.noteFailureClass(out)
		rec.Errors = append(rec.Errors, out.Reason)
		d.stats.Failed++
		d.observer.OnFailure(rec, out.Reason, false)
		return d.sink.Write(failedResult(rec))
	}
}

// refundDelta returns over-reserved cost units once the true cost is
// known. Responses that do not report usage skip the refund.
func (d *Dispatcher) refundDelta(rec *Record, actualCost int64) {
	if actualCost < 0 {
		return
	}
	if uint64(actualCost) < rec.EstimatedCost {
		d.budget.Refund(float64(rec.EstimatedCost - uint64(actualCost)))
	}
}

// cooldownRemaining reports how long admission stays paused after the
// last provider rate-limit hit.
func (d *Dispatcher) cooldownRemaining(now time.Time) time.Duration {
	if d.rateLimitCooldown <= 0 || d.lastRateLimit.IsZero() {
		return 0
	}
	resume := d.lastRateLimit.Add(d.rateLimitCooldown)
	if resume.After(now) {
		return resume.Sub(now)
	}
	return 0
}

// noteFailureClass bumps the matching error counter.
func (d *Dispatcher) noteFailureClass(out Outcome) {
	switch {
	case out.RateLimited:
		d.stats.RateLimitErrors++
	case out.Class == ClassServer || out.Class == ClassClient:
		d.stats.APIErrors++
	default:
		d.stats.OtherErrors++
	}
}

// failedResult builds the terminal failure record.
func failedResult(rec *Record) ResultRecord {
	return ResultRecord{
		ID:       rec.ID,
		Status:   StatusFailed,
		Request:  rec.Payload,
		Errors:   rec.Errors,
		Metadata: rec.Metadata,
		Attempts: rec.Attempt,
	}
}

// resetTimer drains and re-arms a timer for the next wait.
func resetTimer(timer *time.Timer, d time.Duration) {
	if !timer.Stop() {
		select {
		case <-timer.C:
		default:
		}
	}
	if d <= 0 {
		d = time.Nanosecond
	}
	timer.Reset(d)
}
