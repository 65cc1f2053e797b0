package engine

import "sync/atomic"

// Clock is a monotonic logical clock for journal events.
//
// Every journal event is stamped with a strictly increasing sequence number,
// so replaying a journal never depends on wall-clock time. A Manager shares
// one Clock across its sessions; a standalone session gets its own.
//
// Thread-safety: Clock is safe for concurrent use.
type Clock struct {
	seq atomic.Int64
}

// NewClock creates a clock starting at 0.
func NewClock() *Clock {
	return &Clock{}
}

// NewClockAt creates a clock that resumes after start, used when appending
// to an existing journal.
func NewClockAt(start int64) *Clock {
	c := &Clock{}
	c.seq.Store(start)
	return c
}

// Next increments the clock and returns the new value.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the last value handed out.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}
