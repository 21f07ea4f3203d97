package sched

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startLoop(t *testing.T) (*LoopExecutor, context.CancelFunc) {
	t.Helper()
	e := NewLoopExecutor()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = e.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return e, cancel
}

func TestLoopExecutor_SubmitRunsOnLoop(t *testing.T) {
	e, _ := startLoop(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	want := errors.New("boom")
	err := e.Submit(func() error { return want }).Wait(ctx)
	assert.ErrorIs(t, err, want)
}

func TestLoopExecutor_TasksRunInOrder(t *testing.T) {
	e, _ := startLoop(t)

	var order []int
	for i := 0; i < 10; i++ {
		i := i
		e.Execute(func() { order = append(order, i) })
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, e.Submit(func() error { return nil }).Wait(ctx))
	assert.Equal(t, []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}, order)
}

func TestLoopExecutor_ScheduleAndCancel(t *testing.T) {
	e, _ := startLoop(t)

	fired := make(chan struct{})
	e.Schedule(10*time.Millisecond, func() { close(fired) })
	select {
	case <-fired:
	case <-time.After(5 * time.Second):
		t.Fatal("timer did not fire")
	}

	var ran atomic.Bool
	h := e.Schedule(time.Hour, func() { ran.Store(true) })
	assert.True(t, h.Cancel())
	assert.False(t, ran.Load())
}

func TestLoopExecutor_FixedRate(t *testing.T) {
	e, _ := startLoop(t)

	var count atomic.Int32
	h := e.ScheduleAtFixedRate(0, 5*time.Millisecond, func() { count.Add(1) })
	require.Eventually(t, func() bool { return count.Load() >= 3 }, 5*time.Second, time.Millisecond)
	h.Cancel()
}

func TestLoopExecutor_PanickingTaskDoesNotKillLoop(t *testing.T) {
	e, _ := startLoop(t)
	e.Execute(func() { panic("bad task") })

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	assert.NoError(t, e.Submit(func() error { return nil }).Wait(ctx))
}

func TestLoopExecutor_StopDrainsThenReturns(t *testing.T) {
	e := NewLoopExecutor()
	ran := false
	e.Execute(func() { ran = true })
	e.Stop()

	require.NoError(t, e.Run(context.Background()))
	assert.True(t, ran)

	f := e.Submit(func() error { return nil })
	assert.Error(t, f.Wait(context.Background()))
}
