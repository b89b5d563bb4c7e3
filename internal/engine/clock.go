package engine

import "sync/atomic"

// Clock is the engine's logical clock.
//
// Every event record is stamped with a strictly increasing seq from this
// clock. Wall-clock timestamps are recorded too but are never used for
// ordering, so traces sort identically on replay.
//
// Thread-safety: Clock is safe for concurrent use (atomic operations).
// Concurrent dispatches interleave their seq values but each dispatch's
// own records stay strictly increasing.
type Clock struct {
	seq atomic.Int64
}

// NewClock creates a new clock starting at 0.
func NewClock() *Clock {
	return &Clock{}
}

// NewClockAt creates a clock that continues after start.
// Used when appending to an existing event log.
func NewClockAt(start int64) *Clock {
	c := &Clock{}
	c.seq.Store(start)
	return c
}

// Next returns the next sequence number and increments the clock.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the last issued sequence number without incrementing.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}
