package engine

import (
	"sync"

	"github.com/roach88/repgraph/internal/ir"
)

// MutationKind distinguishes queued mutations.
type MutationKind int

const (
	// MutationSpawn creates a root entity of Class with ID Entity.
	MutationSpawn MutationKind = iota + 1
	// MutationSet writes Value at Path on Entity.
	MutationSet
	// MutationDespawn removes Entity.
	MutationDespawn
)

func (k MutationKind) String() string {
	switch k {
	case MutationSpawn:
		return "spawn"
	case MutationSet:
		return "set"
	case MutationDespawn:
		return "despawn"
	default:
		return "unknown"
	}
}

// Mutation is a change to the authoritative graph, queued for the next tick.
type Mutation struct {
	Kind   MutationKind
	Entity string
	Class  string     // spawn only
	Path   string     // set only, dotted property path
	Value  ir.IRValue // set only
}

// mutationQueue is a thread-safe FIFO queue of mutations.
//
// The queue lets host code on any goroutine submit changes, while the tick
// goroutine is the only one that touches replication nodes.
//
// The queue uses a channel for signaling to enable context-aware waiting
// in the Run loop.
type mutationQueue struct {
	mu        sync.Mutex
	mutations []Mutation
	closed    bool
	signal    chan struct{} // buffered, size 1
}

func newMutationQueue() *mutationQueue {
	return &mutationQueue{
		mutations: make([]Mutation, 0, 64),
		signal:    make(chan struct{}, 1),
	}
}

// Enqueue adds a mutation to the back of the queue.
// Returns false if the queue is closed.
func (q *mutationQueue) Enqueue(m Mutation) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}

	q.mutations = append(q.mutations, m)

	// Non-blocking: the buffer of 1 coalesces multiple signals.
	select {
	case q.signal <- struct{}{}:
	default:
	}

	return true
}

// Drain removes and returns every queued mutation in FIFO order.
func (q *mutationQueue) Drain() []Mutation {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.mutations) == 0 {
		return nil
	}
	out := q.mutations
	q.mutations = make([]Mutation, 0, cap(out))
	return out
}

// Wait returns a channel that signals when mutations may be available.
// The channel is closed when the queue is closed.
func (q *mutationQueue) Wait() <-chan struct{} {
	return q.signal
}

// Len returns the current queue length.
func (q *mutationQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.mutations)
}

// Close signals that no more mutations will be enqueued.
func (q *mutationQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}

	q.closed = true
	close(q.signal)
}
