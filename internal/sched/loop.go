package sched

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// LoopExecutor is the production Executor.
//
// The goroutine that calls Run becomes the owner goroutine; every task,
// including timer tasks, runs there. Timers use the wall clock.
//
// Thread-safety model:
//   - Execute, Schedule, ScheduleAtFixedRate, Submit: safe from any goroutine
//   - Run: must be called from exactly one goroutine
type LoopExecutor struct {
	queue  *taskQueue
	clock  Clock
	logger *slog.Logger
}

// LoopOption configures a LoopExecutor.
type LoopOption func(*LoopExecutor)

// WithLoopLogger sets the logger used for task panics and dropped tasks.
func WithLoopLogger(l *slog.Logger) LoopOption {
	return func(e *LoopExecutor) {
		e.logger = l
	}
}

// NewLoopExecutor creates an executor. Nothing runs until Run is called.
func NewLoopExecutor(opts ...LoopOption) *LoopExecutor {
	e := &LoopExecutor{
		queue:  newTaskQueue(),
		clock:  SystemClock{},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Clock implements Executor.
func (e *LoopExecutor) Clock() Clock {
	return e.clock
}

// Execute implements Executor. Tasks queued after Stop are dropped.
func (e *LoopExecutor) Execute(task func()) {
	if !e.queue.Enqueue(task) {
		e.logger.Debug("executor stopped, task dropped")
	}
}

// Schedule implements Executor.
func (e *LoopExecutor) Schedule(delay time.Duration, task func()) Cancellable {
	h := newTimerHandle(false)
	t := time.AfterFunc(delay, func() {
		e.Execute(func() {
			if h.claim() {
				task()
			}
		})
	})
	h.setStop(func() { t.Stop() })
	return h
}

// ScheduleAtFixedRate implements Executor.
func (e *LoopExecutor) ScheduleAtFixedRate(initial, period time.Duration, task func()) Cancellable {
	if period <= 0 {
		panic(fmt.Sprintf("sched: non-positive period %v", period))
	}
	h := newTimerHandle(true)
	stop := make(chan struct{})
	h.setStop(func() { close(stop) })

	go func() {
		timer := time.NewTimer(initial)
		defer timer.Stop()
		select {
		case <-stop:
			return
		case <-timer.C:
		}

		ticker := time.NewTicker(period)
		defer ticker.Stop()
		for {
			e.Execute(func() {
				if h.claim() {
					task()
				}
			})
			select {
			case <-stop:
				return
			case <-ticker.C:
			}
		}
	}()
	return h
}

// Submit implements Executor.
func (e *LoopExecutor) Submit(task func() error) Future {
	f := newFuture()
	if !e.queue.Enqueue(func() { f.complete(task()) }) {
		f.complete(fmt.Errorf("executor stopped"))
	}
	return f
}

// Run executes tasks until ctx is cancelled or Stop is called.
//
// CRITICAL: Must be called from exactly ONE goroutine. A panicking task is
// recovered and logged so that one bad task cannot kill the owner goroutine.
func (e *LoopExecutor) Run(ctx context.Context) error {
	e.logger.Debug("executor starting")

	for {
		if task, ok := e.queue.TryDequeue(); ok {
			e.runTask(task)
			continue
		}

		select {
		case <-ctx.Done():
			e.logger.Debug("executor stopping: context cancelled")
			e.queue.Close()
			return ctx.Err()

		case <-e.queue.Wait():
			// The signal channel closes when the queue is closed.
			if e.queue.Len() == 0 && e.queueClosed() {
				e.logger.Debug("executor stopping: queue closed")
				return nil
			}
		}
	}
}

// Stop closes the queue. Run returns once the queue has drained.
func (e *LoopExecutor) Stop() {
	e.queue.Close()
}

func (e *LoopExecutor) queueClosed() bool {
	e.queue.mu.Lock()
	defer e.queue.mu.Unlock()
	return e.queue.closed
}

func (e *LoopExecutor) runTask(task func()) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("executor task panicked", "panic", r)
		}
	}()
	task()
}
