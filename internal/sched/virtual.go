package sched

import (
	"container/heap"
	"context"
	"sync"
	"time"
)

// VirtualExecutor is a deterministic Executor driven by a ManualClock.
//
// Nothing runs on its own: RunPending drains queued tasks, and Advance
// moves virtual time forward, firing due timers in (due, submission)
// order and draining the queue after each one. The goroutine calling
// RunPending/Advance is the owner goroutine.
//
// Submission methods are safe from any goroutine, so device callbacks
// delivered on other goroutines can be marshalled in the same way they are
// with LoopExecutor.
type VirtualExecutor struct {
	clock *ManualClock

	mu     sync.Mutex
	tasks  []func()
	timers timerQueue
	seq    uint64
}

// NewVirtualExecutor creates an executor whose clock starts at start.
func NewVirtualExecutor(start time.Time) *VirtualExecutor {
	return &VirtualExecutor{clock: NewManualClock(start)}
}

// Clock implements Executor.
func (e *VirtualExecutor) Clock() Clock {
	return e.clock
}

// ManualClock returns the underlying clock.
func (e *VirtualExecutor) ManualClock() *ManualClock {
	return e.clock
}

// Execute implements Executor.
func (e *VirtualExecutor) Execute(task func()) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.tasks = append(e.tasks, task)
}

// Schedule implements Executor.
func (e *VirtualExecutor) Schedule(delay time.Duration, task func()) Cancellable {
	h := newTimerHandle(false)
	e.push(&virtualTimer{due: e.clock.Now().Add(delay), task: task, handle: h})
	return h
}

// ScheduleAtFixedRate implements Executor.
func (e *VirtualExecutor) ScheduleAtFixedRate(initial, period time.Duration, task func()) Cancellable {
	if period <= 0 {
		panic("sched: non-positive period")
	}
	h := newTimerHandle(true)
	e.push(&virtualTimer{due: e.clock.Now().Add(initial), period: period, task: task, handle: h})
	return h
}

// Submit implements Executor.
func (e *VirtualExecutor) Submit(task func() error) Future {
	f := newFuture()
	e.Execute(func() { f.complete(task()) })
	return f
}

// RunPending runs queued tasks until the queue is empty, including tasks
// queued by the tasks themselves. It returns the number of tasks run.
func (e *VirtualExecutor) RunPending() int {
	n := 0
	for {
		e.mu.Lock()
		if len(e.tasks) == 0 {
			e.mu.Unlock()
			return n
		}
		task := e.tasks[0]
		e.tasks[0] = nil
		e.tasks = e.tasks[1:]
		e.mu.Unlock()

		task()
		n++
	}
}

// Advance moves virtual time forward by d, firing every timer that falls
// due on the way. Queued tasks are drained before time moves and after
// each timer fires.
func (e *VirtualExecutor) Advance(d time.Duration) {
	target := e.clock.Now().Add(d)
	e.RunPending()
	for {
		t, ok := e.popDue(target)
		if !ok {
			break
		}
		e.clock.Set(t.due)
		if t.handle.claim() {
			if t.period > 0 {
				e.push(&virtualTimer{due: t.due.Add(t.period), period: t.period, task: t.task, handle: t.handle})
			}
			t.task()
		}
		e.RunPending()
	}
	e.clock.Set(target)
	e.RunPending()
}

// RunFor is Advance with a context check between timers; it is a
// convenience for tests that drive long virtual spans.
func (e *VirtualExecutor) RunFor(ctx context.Context, d, step time.Duration) error {
	for elapsed := time.Duration(0); elapsed < d; elapsed += step {
		if err := ctx.Err(); err != nil {
			return err
		}
		e.Advance(step)
	}
	return nil
}

// PendingTimers returns the number of live (not cancelled) timers.
func (e *VirtualExecutor) PendingTimers() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	n := 0
	for _, t := range e.timers {
		if !t.handle.cancelled() {
			n++
		}
	}
	return n
}

// NextTimer returns the delay until the earliest live timer.
func (e *VirtualExecutor) NextTimer() (time.Duration, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	var next time.Time
	found := false
	for _, t := range e.timers {
		if t.handle.cancelled() {
			continue
		}
		if !found || t.due.Before(next) {
			next = t.due
			found = true
		}
	}
	if !found {
		return 0, false
	}
	return next.Sub(e.clock.Now()), true
}

func (e *VirtualExecutor) push(t *virtualTimer) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.seq++
	t.seq = e.seq
	heap.Push(&e.timers, t)
}

func (e *VirtualExecutor) popDue(target time.Time) (*virtualTimer, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for len(e.timers) > 0 {
		t := e.timers[0]
		if t.due.After(target) {
			return nil, false
		}
		heap.Pop(&e.timers)
		if t.handle.cancelled() {
			continue
		}
		return t, true
	}
	return nil, false
}

type virtualTimer struct {
	due    time.Time
	seq    uint64
	period time.Duration
	task   func()
	handle *timerHandle
}

// timerQueue is a min-heap ordered by (due, seq).
type timerQueue []*virtualTimer

func (q timerQueue) Len() int { return len(q) }

func (q timerQueue) Less(i, j int) bool {
	if q[i].due.Equal(q[j].due) {
		return q[i].seq < q[j].seq
	}
	return q[i].due.Before(q[j].due)
}

func (q timerQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }

func (q *timerQueue) Push(x any) { *q = append(*q, x.(*virtualTimer)) }

func (q *timerQueue) Pop() any {
	old := *q
	n := len(old)
	t := old[n-1]
	old[n-1] = nil
	*q = old[:n-1]
	return t
}
