package testutil

import (
	"fmt"
	"sync"
)

// SequentialIDs generates numbered entity IDs: "<prefix>-1", "<prefix>-2", ...
//
// The same scenario run with a fresh SequentialIDs produces byte-identical
// packet logs, which is what golden comparison relies on.
//
// If prefix is empty, "e" is used.
//
// Thread-safety: SequentialIDs is safe for concurrent use via internal mutex.
type SequentialIDs struct {
	mu     sync.Mutex
	prefix string
	n      int
}

// NewSequentialIDs creates a new numbered ID generator.
func NewSequentialIDs(prefix string) *SequentialIDs {
	if prefix == "" {
		prefix = "e"
	}
	return &SequentialIDs{prefix: prefix}
}

// Generate returns the next ID.
//
// Implements engine.EntityIDGenerator.
func (g *SequentialIDs) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("%s-%d", g.prefix, g.n)
}

// Reset restarts numbering at 1.
func (g *SequentialIDs) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n = 0
}
