package sched

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// Executor runs tasks on a single owner goroutine.
//
// Execute and Submit may be called from any goroutine. Tasks run in
// submission order; timer tasks run when their delay has elapsed on the
// executor's clock.
type Executor interface {
	// Execute queues task to run on the owner goroutine.
	Execute(task func())

	// Schedule runs task once after delay. The returned handle cancels it.
	Schedule(delay time.Duration, task func()) Cancellable

	// ScheduleAtFixedRate runs task after initial and then every period
	// until cancelled.
	ScheduleAtFixedRate(initial, period time.Duration, task func()) Cancellable

	// Submit queues task and returns a Future that completes with its error.
	Submit(task func() error) Future

	// Clock returns the clock timers are measured against.
	Clock() Clock
}

// Cancellable is a handle to a scheduled task.
type Cancellable interface {
	// Cancel prevents any further runs of the task. It reports whether the
	// task was still pending, i.e. whether this call stopped a run.
	Cancel() bool
}

// Future is the result of a submitted task.
type Future interface {
	// Done is closed when the task has run (or was dropped).
	Done() <-chan struct{}

	// Wait blocks until the task completes or ctx is cancelled.
	Wait(ctx context.Context) error
}

const (
	handlePending int32 = iota
	handleFired
	handleCancelled
)

// timerHandle is the Cancellable shared by both executors.
//
// One-shot timers move pending -> fired exactly once; periodic timers stay
// pending until cancelled. stop releases the underlying runtime timer, if
// any.
type timerHandle struct {
	state    atomic.Int32
	periodic bool

	mu   sync.Mutex
	stop func()
}

func newTimerHandle(periodic bool) *timerHandle {
	return &timerHandle{periodic: periodic}
}

// Cancel implements Cancellable.
func (h *timerHandle) Cancel() bool {
	if !h.state.CompareAndSwap(handlePending, handleCancelled) {
		return false
	}
	h.mu.Lock()
	stop := h.stop
	h.mu.Unlock()
	if stop != nil {
		stop()
	}
	return true
}

// claim is called on the owner goroutine right before the task runs.
// It returns false when the handle was cancelled in the meantime.
func (h *timerHandle) claim() bool {
	if h.periodic {
		return h.state.Load() == handlePending
	}
	return h.state.CompareAndSwap(handlePending, handleFired)
}

func (h *timerHandle) setStop(stop func()) {
	h.mu.Lock()
	h.stop = stop
	h.mu.Unlock()
}

func (h *timerHandle) cancelled() bool {
	return h.state.Load() == handleCancelled
}

// future is the Future shared by both executors.
type future struct {
	done chan struct{}
	once sync.Once
	err  error
}

func newFuture() *future {
	return &future{done: make(chan struct{})}
}

func (f *future) complete(err error) {
	f.once.Do(func() {
		f.err = err
		close(f.done)
	})
}

// Done implements Future.
func (f *future) Done() <-chan struct{} {
	return f.done
}

// Wait implements Future.
func (f *future) Wait(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-f.done:
		return f.err
	}
}
