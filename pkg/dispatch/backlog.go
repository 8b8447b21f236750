package dispatch

import (
	"sync"
	"time"
)

// Backlog holds records waiting for dispatch. Records are considered in
// submission order; records delayed by back-off sit in a blocked list
// ordered by their not-before time and rejoin the ready list once
// eligible. Push is safe to call while the dispatcher loop pops.
type Backlog struct {
	mu      sync.Mutex
	ready   []*Record
	blocked []blockedItem
}

// blockedItem stores a record that cannot run until notBefore.
type blockedItem struct {
	record    *Record
	notBefore time.Time
}

// NewBacklog returns an empty Backlog.
func NewBacklog() *Backlog {
	return &Backlog{}
}

// Push adds a record, routing it to the blocked list when its NotBefore
// is still in the future.
func (b *Backlog) Push(rec *Record, now time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if rec.NotBefore.After(now) {
		b.insertBlocked(blockedItem{record: rec, notBefore: rec.NotBefore})
		return
	}
	b.ready = append(b.ready, rec)
}

// Peek promotes eligible blocked records and returns the head of the
// ready list without removing it.
func (b *Backlog) Peek(now time.Time) (*Record, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.promote(now)
	if len(b.ready) == 0 {
		return nil, false
	}
	return b.ready[0], true
}

// PopHead removes and returns the head of the ready list.
func (b *Backlog) PopHead() (*Record, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.ready) == 0 {
		return nil, false
	}
	rec := b.ready[0]
	b.ready = b.ready[1:]
	return rec, true
}

// NextWake returns the earliest not-before time among blocked records.
func (b *Backlog) NextWake() (time.Time, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.blocked) == 0 {
		return time.Time{}, false
	}
	return b.blocked[0].notBefore, true
}

// Empty reports whether no records remain in either list.
func (b *Backlog) Empty() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.ready) == 0 && len(b.blocked) == 0
}

// Len returns the total number of held records.
func (b *Backlog) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.ready) + len(b.blocked)
}

// promote moves blocked records whose time has come to the ready list,
// earliest first. Callers must hold the mutex.
func (b *Backlog) promote(now time.Time) {
	for len(b.blocked) > 0 && !b.blocked[0].notBefore.After(now) {
		b.ready = append(b.ready, b.blocked[0].record)
		b.blocked = b.blocked[1:]
	}
}

// insertBlocked keeps the blocked list sorted by not-before time.
// Callers must hold the mutex.
func (b *Backlog) insertBlocked(item blockedItem) {
	idx := len(b.blocked)
	for i, existing := range b.blocked {
		if existing.notBefore.After(item.notBefore) {
			idx = i
			break
		}
	}
	b.blocked = append(b.blocked, blockedItem{})
	copy(b.blocked[idx+1:], b.blocked[idx:])
	b.blocked[idx] = item
}
