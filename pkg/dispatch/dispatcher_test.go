package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"parareq/internal/testutil"
)

// memorySink records writes in memory, safe for concurrent use.
type memorySink struct {
	mu      sync.Mutex
	records []ResultRecord
}

func (s *memorySink) Write(rec ResultRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, rec)
	return nil
}

func (s *memorySink) byID(t *testing.T) map[uint64]ResultRecord {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[uint64]ResultRecord, len(s.records))
	for _, rec := range s.records {
		if _, dup := out[rec.ID]; dup {
			t.Fatalf("result for record %d written more than once", rec.ID)
		}
		out[rec.ID] = rec
	}
	return out
}

// failingSink rejects every write.
type failingSink struct{}

func (failingSink) Write(ResultRecord) error { return errors.New("disk full") }

// callerFunc adapts a function to the Caller interface.
type callerFunc func(ctx context.Context, payload json.RawMessage) (CallResult, error)

func (f callerFunc) Invoke(ctx context.Context, payload json.RawMessage) (CallResult, error) {
	return f(ctx, payload)
}

// countingObserver tracks admissions atomically for cross-goroutine
// assertions while a run is live.
type countingObserver struct {
	admitted atomic.Int64
}

func (o *countingObserver) OnAdmit(*Record)                    { o.admitted.Add(1) }
func (o *countingObserver) OnSuccess(*Record, int64)           {}
func (o *countingObserver) OnRetry(*Record, string, time.Time) {}
func (o *countingObserver) OnFailure(*Record, string, bool)    {}

func fastOptions() Options {
	return Options{
		MaxInFlight:       8,
		CallTimeout:       time.Second,
		RateLimitCooldown: -1,
		AdmitWait:         time.Millisecond,
		Backoff:           BackoffPolicy{Base: time.Millisecond, Growth: 2, Max: 5 * time.Millisecond, Jitter: noJitter},
		AdmitJitter:       noJitter,
	}
}

func makeRecords(n int, cost uint64, maxAttempts int) []*Record {
	records := make([]*Record, 0, n)
	for i := 1; i <= n; i++ {
		records = append(records, &Record{
			ID:            uint64(i),
			Payload:       json.RawMessage(fmt.Sprintf(`{"id":%d}`, i)),
			EstimatedCost: cost,
			MaxAttempts:   maxAttempts,
		})
	}
	return records
}

func TestRunWritesEveryResultExactlyOnce(t *testing.T) {
	sink := &memorySink{}
	caller := callerFunc(func(ctx context.Context, payload json.RawMessage) (CallResult, error) {
		return CallResult{Body: json.RawMessage(`{"ok":true}`), ActualCost: 5}, nil
	})
	budget := NewBudget(100000, 1000000, time.Now())
	d := New(budget, caller, sink, fastOptions())

	stats, err := d.Run(testutil.Context(t, 0), makeRecords(25, 10, 3))
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}

	results := sink.byID(t)
	if len(results) != 25 {
		t.Fatalf("expected 25 results, got %d", len(results))
	}
	for id, rec := range results {
		if rec.Status != StatusSucceeded {
			t.Fatalf("record %d: expected success, got %s", id, rec.Status)
		}
		if rec.Attempts != 1 {
			t.Fatalf("record %d: expected a single attempt, got %d", id, rec.Attempts)
		}
	}
	if stats.Started != 25 || stats.Succeeded != 25 || stats.Failed != 0 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}

func TestPermanentFailureGetsSingleAttempt(t *testing.T) {
	sink := &memorySink{}
	caller := callerFunc(func(ctx context.Context, payload json.RawMessage) (CallResult, error) {
		return CallResult{}, &CallError{Class: ClassClient, Err: errors.New("invalid model")}
	})
	budget := NewBudget(100000, 1000000, time.Now())
	d := New(budget, caller, sink, fastOptions())

	stats, err := d.Run(testutil.Context(t, 0), makeRecords(1, 10, 5))
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}

	results := sink.byID(t)
	rec, ok := results[1]
	if !ok || rec.Status != StatusFailed {
		t.Fatalf("expected a failed result, got %+v", rec)
	}
	if rec.Attempts != 1 || len(rec.Errors) != 1 {
		t.Fatalf("permanent failure should not retry: attempts=%d errors=%v", rec.Attempts, rec.Errors)
	}
	if stats.Retried != 0 || stats.Failed != 1 || stats.APIErrors != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}

func TestRetryableFailureExhaustsAttempts(t *testing.T) {
	sink := &memorySink{}
	caller := callerFunc(func(ctx context.Context, payload json.RawMessage) (CallResult, error) {
		return CallResult{}, &CallError{Class: ClassServer, Err: errors.New("upstream exploded")}
	})
	budget := NewBudget(100000, 1000000, time.Now())
	d := New(budget, caller, sink, fastOptions())

	stats, err := d.Run(testutil.Context(t, 0), makeRecords(1, 10, 3))
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}

	rec := sink.byID(t)[1]
	if rec.Status != StatusFailed {
		t.Fatalf("expected terminal failure, got %s", rec.Status)
	}
	if rec.Attempts != 3 || len(rec.Errors) != 3 {
		t.Fatalf("expected 3 attempts with 3 reasons, got attempts=%d errors=%v", rec.Attempts, rec.Errors)
	}
	if stats.Retried != 2 || stats.Failed != 1 || stats.APIErrors != 3 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}

func TestRetryAfterRateLimitSucceeds(t *testing.T) {
	sink := &memorySink{}
	var calls atomic.Int64
	caller := callerFunc(func(ctx context.Context, payload json.RawMessage) (CallResult, error) {
		if calls.Add(1) == 1 {
			return CallResult{}, &CallError{Class: ClassRateLimited, Err: errors.New("429 too many requests")}
		}
		return CallResult{Body: json.RawMessage(`{}`), ActualCost: CostUnknown}, nil
	})
	budget := NewBudget(100000, 1000000, time.Now())
	d := New(budget, caller, sink, fastOptions())

	stats, err := d.Run(testutil.Context(t, 0), makeRecords(1, 10, 5))
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}

	rec := sink.byID(t)[1]
	if rec.Status != StatusSucceeded || rec.Attempts != 2 {
		t.Fatalf("expected success on second attempt, got %+v", rec)
	}
	if stats.RateLimitErrors != 1 || stats.Retried != 1 || stats.Succeeded != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}

func TestRequestBudgetGatesAdmission(t *testing.T) {
	clock := testutil.NewFakeClock(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
	sink := &memorySink{}
	caller := callerFunc(func(ctx context.Context, payload json.RawMessage) (CallResult, error) {
		return CallResult{Body: json.RawMessage(`{}`), ActualCost: CostUnknown}, nil
	})
	budget := NewBudget(2, 1000000, clock.Now())
	observer := &countingObserver{}

	opts := fastOptions()
	opts.Now = clock.Now
	opts.Observer = observer
	d := New(budget, caller, sink, opts)

	done := make(chan struct{})
	var stats Stats
	var runErr error
	go func() {
		defer close(done)
		stats, runErr = d.Run(testutil.Context(t, 0), makeRecords(4, 1, 1))
	}()

	testutil.Eventually(t, time.Second, time.Millisecond, func() bool {
		return observer.admitted.Load() == 2
	}, "first two records were not admitted")

	// The frozen clock refills nothing, so admission must stall here.
	time.Sleep(20 * time.Millisecond)
	if got := observer.admitted.Load(); got != 2 {
		t.Fatalf("expected admission to stall at 2, got %d", got)
	}

	clock.Advance(time.Minute)
	<-done
	if runErr != nil {
		t.Fatalf("run failed: %v", runErr)
	}
	if stats.Succeeded != 4 || observer.admitted.Load() != 4 {
		t.Fatalf("expected all 4 to finish after refill, got stats=%+v admitted=%d", stats, observer.admitted.Load())
	}
}

func TestSuccessRefundsUnusedCost(t *testing.T) {
	clock := testutil.NewFakeClock(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
	sink := &memorySink{}
	caller := callerFunc(func(ctx context.Context, payload json.RawMessage) (CallResult, error) {
		return CallResult{Body: json.RawMessage(`{}`), ActualCost: 10}, nil
	})
	budget := NewBudget(100, 100, clock.Now())

	opts := fastOptions()
	opts.Now = clock.Now
	d := New(budget, caller, sink, opts)

	if _, err := d.Run(testutil.Context(t, 0), makeRecords(1, 100, 1)); err != nil {
		t.Fatalf("run failed: %v", err)
	}

	_, cost := budget.Snapshot(clock.Now())
	if cost != 90 {
		t.Fatalf("expected 90 cost units back after refund, got %v", cost)
	}
}

func TestCancellationStopsAdmissionAndDrains(t *testing.T) {
	sink := &memorySink{}
	release := make(chan struct{})
	var calls atomic.Int64
	caller := callerFunc(func(ctx context.Context, payload json.RawMessage) (CallResult, error) {
		calls.Add(1)
		<-release
		return CallResult{Body: json.RawMessage(`{}`), ActualCost: CostUnknown}, nil
	})
	budget := NewBudget(100000, 1000000, time.Now())

	opts := fastOptions()
	opts.MaxInFlight = 2
	opts.CallTimeout = time.Minute
	d := New(budget, caller, sink, opts)

	ctx, cancel := context.WithCancel(testutil.Context(t, 0))
	done := make(chan struct{})
	var stats Stats
	var runErr error
	go func() {
		defer close(done)
		stats, runErr = d.Run(ctx, makeRecords(5, 10, 1))
	}()

	testutil.Eventually(t, time.Second, time.Millisecond, func() bool {
		return calls.Load() == 2
	}, "two calls should be in flight")

	cancel()
	close(release)
	<-done

	if !errors.Is(runErr, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", runErr)
	}
	results := sink.byID(t)
	if len(results) != 2 {
		t.Fatalf("expected exactly the in-flight calls to finish, got %d results", len(results))
	}
	if stats.Started != 2 || stats.Succeeded != 2 {
		t.Fatalf("unexpected stats after cancellation: %+v", stats)
	}
}

func TestSinkErrorAbortsRun(t *testing.T) {
	caller := callerFunc(func(ctx context.Context, payload json.RawMessage) (CallResult, error) {
		return CallResult{Body: json.RawMessage(`{}`), ActualCost: CostUnknown}, nil
	})
	budget := NewBudget(100000, 1000000, time.Now())
	d := New(budget, caller, failingSink{}, fastOptions())

	if _, err := d.Run(testutil.Context(t, 0), makeRecords(1, 10, 1)); err == nil {
		t.Fatalf("expected a sink failure to abort the run")
	}
}
