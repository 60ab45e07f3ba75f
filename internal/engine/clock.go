package engine

import "sync/atomic"

// VersionClock issues the global replication versions. Implemented by Clock
// and by testutil.DeterministicClock.
type VersionClock interface {
	Next() int64
	Current() int64
}

// Clock is the authority's monotonic logical version counter.
//
// Every packet's To version comes from this clock, and every root entity
// flushed in the same pass shares that version. Versions are never
// wall-clock time.
//
// Thread-safety: Clock is safe for concurrent use (atomic operations).
type Clock struct {
	seq atomic.Int64
}

// NewClock creates a new clock starting at 0.
func NewClock() *Clock {
	return &Clock{}
}

// NewClockAt creates a clock whose next version is start+1.
// Used to resume an authority from a persisted packet log.
func NewClockAt(start int64) *Clock {
	c := &Clock{}
	c.seq.Store(start)
	return c
}

// Next returns the next version and advances the clock.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the last issued version without advancing.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}
