package dispatch

import "time"

// Observer receives dispatch lifecycle events. Implementations must be
// fast and must not block: calls happen on the dispatcher loop.
type Observer interface {
	// OnAdmit fires when a record is granted budget and launched.
	OnAdmit(rec *Record)
	// OnSuccess fires when a record completes with a response.
	OnSuccess(rec *Record, actualCost int64)
	// OnRetry fires when a transient failure re-queues a record.
	OnRetry(rec *Record, reason string, notBefore time.Time)
	// OnFailure fires when a terminal failure is recorded. exhausted is
	// true when retries ran out rather than the failure being permanent.
	OnFailure(rec *Record, reason string, exhausted bool)
}

// MultiObserver fans events out to several observers.
type MultiObserver []Observer

// OnAdmit forwards the event to every observer.
func (m MultiObserver) OnAdmit(rec *Record) {
	for _, o := range m {
		o.OnAdmit(rec)
	}
}

// OnSuccess forwards the event to every observer.
func (m MultiObserver) OnSuccess(rec *Record, actualCost int64) {
	for _, o := range m {
		o.OnSuccess(rec, actualCost)
	}
}

// OnRetry forwards the event to every observer.
func (m MultiObserver) OnRetry(rec *Record, reason string, notBefore time.Time) {
	for _, o := range m {
		o.OnRetry(rec, reason, notBefore)
	}
}

// OnFailure forwards the event to every observer.
func (m MultiObserver) OnFailure(rec *Record, reason string, exhausted bool) {
	for _, o := range m {
		o.OnFailure(rec, reason, exhausted)
	}
}

// noopObserver discards all events.
type noopObserver struct{}

func (noopObserver) OnAdmit(*Record)                    {}
func (noopObserver) OnSuccess(*Record, int64)           {}
func (noopObserver) OnRetry(*Record, string, time.Time) {}
func (noopObserver) OnFailure(*Record, string, bool)    {}
