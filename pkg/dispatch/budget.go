package dispatch

import (
	"sync"
	"time"
)

const secondsPerMinute = 60.0

// Budget tracks two independently refilling capacities: a flat request
// count and a cost-unit (token) count, each replenishing continuously up
// to its per-minute ceiling.
type Budget struct {
	mu sync.Mutex

	requestCapacity float64
	costCapacity    float64

	maxRequests float64
	maxCost     float64

	requestRate float64
	costRate    float64

	lastRefill time.Time
}

// NewBudget creates a Budget with both capacities full at start.
func NewBudget(requestsPerMinute, costPerMinute float64, now time.Time) *Budget {
	return &Budget{
		requestCapacity: requestsPerMinute,
		costCapacity:    costPerMinute,
		maxRequests:     requestsPerMinute,
		maxCost:         costPerMinute,
		requestRate:     requestsPerMinute / secondsPerMinute,
		costRate:        costPerMinute / secondsPerMinute,
		lastRefill:      now,
	}
}

// TryReserve refreshes both capacities and, if both can cover the
// requested units, decrements them and reports a grant. A denied
// reservation leaves both capacities untouched.
func (b *Budget) TryReserve(now time.Time, requestUnits, costUnits float64) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.refresh(now)
	if b.requestCapacity < requestUnits || b.costCapacity < costUnits {
		return false
	}
	b.requestCapacity -= requestUnits
	b.costCapacity -= costUnits
	return true
}

// Refund returns unused cost units to the budget, clamped at the ceiling.
// Used when the actual cost reported by the provider is lower than the
// amount reserved at dispatch time.
func (b *Budget) Refund(costUnits float64) {
	if costUnits <= 0 {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.costCapacity += costUnits
	if b.costCapacity > b.maxCost {
		b.costCapacity = b.maxCost
	}
}

// Snapshot refreshes and returns the current capacities.
func (b *Budget) Snapshot(now time.Time) (requestCapacity, costCapacity float64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.refresh(now)
	return b.requestCapacity, b.costCapacity
}

// MaxCost returns the cost ceiling. A record whose estimate exceeds this
// can never be admitted.
func (b *Budget) MaxCost() float64 {
	return b.maxCost
}

// refresh lazily recomputes both capacities from elapsed time. Callers
// must hold the mutex.
func (b *Budget) refresh(now time.Time) {
	elapsed := now.Sub(b.lastRefill).Seconds()
	if elapsed <= 0 {
		return
	}
	b.requestCapacity = minFloat(b.requestCapacity+elapsed*b.requestRate, b.maxRequests)
	b.costCapacity = minFloat(b.costCapacity+elapsed*b.costRate, b.maxCost)
	b.lastRefill = now
}

func minFloat(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
