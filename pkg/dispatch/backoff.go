package dispatch

import (
	"math"
	"math/rand"
	"time"
)

const (
	defaultBackoffBase   = time.Second
	defaultBackoffGrowth = 2.0
	// defaultBackoffMax caps exponential growth so an unlucky record does
	// not sit in the backlog for minutes between late attempts.
	defaultBackoffMax = 60 * time.Second
)

// BackoffPolicy computes retry delays that grow exponentially with the
// attempt count, capped at Max, with randomized jitter on top.
type BackoffPolicy struct {
	Base   time.Duration
	Growth float64
	Max    time.Duration

	// Jitter returns an extra delay given the computed base delay.
	// Defaults to a uniform draw from [0, delay/2).
	Jitter func(time.Duration) time.Duration
}

// DefaultBackoff returns the stock policy: 1s base, doubling, 60s cap.
func DefaultBackoff() BackoffPolicy {
	return BackoffPolicy{Base: defaultBackoffBase, Growth: defaultBackoffGrowth, Max: defaultBackoffMax}
}

// Delay returns the back-off delay after the given attempt count.
// Attempt 1 (first failure) yields the base delay.
func (p BackoffPolicy) Delay(attempt int) time.Duration {
	base := p.Base
	if base <= 0 {
		base = defaultBackoffBase
	}
	growth := p.Growth
	if growth < 1 {
		growth = defaultBackoffGrowth
	}
	max := p.Max
	if max <= 0 {
		max = defaultBackoffMax
	}
	if attempt < 1 {
		attempt = 1
	}
	delay := time.Duration(float64(base) * math.Pow(growth, float64(attempt-1)))
	if delay > max || delay <= 0 {
		delay = max
	}
	return delay + p.jitter(delay)
}

// jitter applies the configured or default jitter function.
func (p BackoffPolicy) jitter(delay time.Duration) time.Duration {
	if p.Jitter != nil {
		extra := p.Jitter(delay)
		if extra < 0 {
			return 0
		}
		return extra
	}
	if delay <= 1 {
		return 0
	}
	return time.Duration(rand.Int63n(int64(delay) / 2))
}
