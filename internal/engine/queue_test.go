package engine

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMutationQueue_FIFO(t *testing.T) {
	q := newMutationQueue()

	for _, id := range []string{"A", "B", "C"} {
		require.True(t, q.Enqueue(Mutation{Kind: MutationDespawn, Entity: id}))
	}
	assert.Equal(t, 3, q.Len())

	got := q.Drain()
	require.Len(t, got, 3)
	assert.Equal(t, "A", got[0].Entity)
	assert.Equal(t, "B", got[1].Entity)
	assert.Equal(t, "C", got[2].Entity)
	assert.Equal(t, 0, q.Len())
	assert.Nil(t, q.Drain())
}

func TestMutationQueue_SignalCoalesces(t *testing.T) {
	q := newMutationQueue()
	q.Enqueue(Mutation{Entity: "a"})
	q.Enqueue(Mutation{Entity: "b"})

	select {
	case <-q.Wait():
	default:
		t.Fatal("expected a pending signal")
	}
	select {
	case <-q.Wait():
		t.Fatal("signals should coalesce")
	default:
	}
}

func TestMutationQueue_Close(t *testing.T) {
	q := newMutationQueue()
	q.Enqueue(Mutation{Entity: "a"})
	q.Close()
	q.Close()

	assert.False(t, q.Enqueue(Mutation{Entity: "b"}))
	assert.Len(t, q.Drain(), 1, "queued mutations survive close")

	// Drain the buffered signal, then the closed channel reports !ok.
	<-q.Wait()
	_, ok := <-q.Wait()
	assert.False(t, ok)
}

func TestMutationQueue_ConcurrentEnqueue(t *testing.T) {
	q := newMutationQueue()
	const goroutines = 50
	const perGoroutine = 20

	var wg sync.WaitGroup
	wg.Add(goroutines)
	for i := 0; i < goroutines; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < perGoroutine; j++ {
				q.Enqueue(Mutation{Kind: MutationSet})
			}
		}()
	}
	wg.Wait()

	assert.Len(t, q.Drain(), goroutines*perGoroutine)
}
