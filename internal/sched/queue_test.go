package sched

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTaskQueue_FIFO(t *testing.T) {
	q := newTaskQueue()
	var order []int
	for i := 1; i <= 3; i++ {
		i := i
		require.True(t, q.Enqueue(func() { order = append(order, i) }))
	}
	assert.Equal(t, 3, q.Len())

	for {
		task, ok := q.TryDequeue()
		if !ok {
			break
		}
		task()
	}
	assert.Equal(t, []int{1, 2, 3}, order)
	assert.Equal(t, 0, q.Len())
}

func TestTaskQueue_EnqueueAfterClose(t *testing.T) {
	q := newTaskQueue()
	q.Close()
	assert.False(t, q.Enqueue(func() {}))
	q.Close() // idempotent
}

func TestTaskQueue_SignalCoalesces(t *testing.T) {
	q := newTaskQueue()
	q.Enqueue(func() {})
	q.Enqueue(func() {})

	select {
	case <-q.Wait():
	case <-time.After(time.Second):
		t.Fatal("expected signal")
	}

	select {
	case <-q.Wait():
		t.Fatal("signals should coalesce into one")
	default:
	}
}
