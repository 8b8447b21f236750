package dispatch

import (
	"math/rand"
	"time"
)

const (
	defaultMaxInFlight       = 64
	defaultCallTimeout       = 2 * time.Minute
	defaultAdmitWait         = 50 * time.Millisecond
	defaultIdleInterval      = 100 * time.Millisecond
	defaultRateLimitCooldown = 15 * time.Second
)

// Options configures a Dispatcher.
type Options struct {
	// MaxInFlight caps simultaneously running calls regardless of budget.
	MaxInFlight int
	// CallTimeout bounds each individual call.
	CallTimeout time.Duration
	// RateLimitCooldown pauses admission after a provider rate-limit hit.
	RateLimitCooldown time.Duration
	// AdmitWait is the bounded sleep between reservation re-checks when
	// the budget denies admission. Jitter is added on top.
	AdmitWait time.Duration
	// Backoff computes retry delays. Zero value uses DefaultBackoff.
	Backoff BackoffPolicy
	// Observer receives lifecycle events; nil discards them.
	Observer Observer

	// Now and AdmitJitter are test hooks.
	Now         func() time.Time
	AdmitJitter func(time.Duration) time.Duration
}

// Stats counts run progress, mirrored into the final summary.
type Stats struct {
	Started         int
	Succeeded       int
	Failed          int
	Retried         int
	RateLimitErrors int
	APIErrors       int
	OtherErrors     int
}

// completion carries a finished call back into the loop.
type completion struct {
	record *Record
	result CallResult
	err    error
}

// Dispatcher runs the control loop: it feeds eligible backlog records
// through the budget, launches granted calls concurrently and reacts to
// their completions. The loop itself never blocks on a network call.
type Dispatcher struct {
	budget   *Budget
	caller   Caller
	sink     Sink
	backlog  *Backlog
	observer Observer

	maxInFlight       int
	callTimeout       time.Duration
	rateLimitCooldown time.Duration
	admitWait         time.Duration
	idleInterval      time.Duration
	backoff           BackoffPolicy

	now         func() time.Time
	admitJitter func(time.Duration) time.Duration

	completions   chan completion
	inFlight      int
	stopping      bool
	lastRateLimit time.Time
	stats         Stats
}

// New creates a Dispatcher. The budget, caller and sink are required
// collaborators; zero Options fields fall back to defaults.
func New(budget *Budget, caller Caller, sink Sink, opts Options) *Dispatcher {
	if opts.MaxInFlight <= 0 {
		opts.MaxInFlight = defaultMaxInFlight
	}
	if opts.CallTimeout <= 0 {
		opts.CallTimeout = defaultCallTimeout
	}
	if opts.RateLimitCooldown < 0 {
		opts.RateLimitCooldown = 0
	} else if opts.RateLimitCooldown == 0 {
		opts.RateLimitCooldown = defaultRateLimitCooldown
	}
	if opts.AdmitWait <= 0 {
		opts.AdmitWait = defaultAdmitWait
	}
	if opts.Backoff.Base == 0 && opts.Backoff.Growth == 0 && opts.Backoff.Max == 0 {
		opts.Backoff = DefaultBackoff()
	}
	if opts.Observer == nil {
		opts.Observer = noopObserver{}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.AdmitJitter == nil {
		opts.AdmitJitter = defaultAdmitJitter
	}
	return &Dispatcher{
		budget:            budget,
		caller:            caller,
		sink:              sink,
		backlog:           NewBacklog(),
		observer:          opts.Observer,
		maxInFlight:       opts.MaxInFlight,
		callTimeout:       opts.CallTimeout,
		rateLimitCooldown: opts.RateLimitCooldown,
		admitWait:         opts.AdmitWait,
		idleInterval:      defaultIdleInterval,
		backoff:           opts.Backoff,
		now:               opts.Now,
		admitJitter:       opts.AdmitJitter,
		completions:       make(chan completion, opts.MaxInFlight),
	}
}

// Stats returns the current counters. Only safe after Run returns.
func (d *Dispatcher) Stats() Stats {
	return d.stats
}

// defaultAdmitJitter draws a uniform extra wait in [0, wait/2).
func defaultAdmitJitter(wait time.Duration) time.Duration {
	if wait <= 1 {
		return 0
	}
	return time.Duration(rand.Int63n(int64(wait) / 2))
}
