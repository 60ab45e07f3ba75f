package testutil

import "sync"

// DeterministicClock is an engine.VersionClock that can be rewound, so a
// scenario run twice stamps the same packet versions. Safe for concurrent use.
type DeterministicClock struct {
	mu      sync.Mutex
	version int64
}

func NewDeterministicClock() *DeterministicClock {
	return &DeterministicClock{}
}

// NewDeterministicClockAt resumes after start, as when replaying onto an
// existing packet log.
func NewDeterministicClockAt(start int64) *DeterministicClock {
	return &DeterministicClock{version: start}
}

func (c *DeterministicClock) Next() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.version++
	return c.version
}

// Current returns the last issued version.
func (c *DeterministicClock) Current() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.version
}

// Reset rewinds the clock to 0.
func (c *DeterministicClock) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.version = 0
}
