// Package sched provides the scheduling primitives the wave engine is
// written against: a Clock, an Executor with cancellable timers, and two
// Executor implementations.
//
// ARCHITECTURE:
//
// Single Owner Goroutine:
// Every Executor runs its tasks on exactly one goroutine. Tasks submitted
// from inside a running task are appended to the same queue rather than
// run recursively, so nested scheduling never grows the call stack.
//
//   - LoopExecutor: production implementation. The goroutine that calls
//     Run(ctx) becomes the owner. Timers use the wall clock and re-enter
//     the queue when they fire.
//   - VirtualExecutor: deterministic implementation for tests. Time only
//     moves when Advance is called on its ManualClock.
//
// Cancellation:
// A cancelled timer handle never runs its task, even if the underlying
// timer already fired and the task is sitting in the queue. The check
// happens on the owner goroutine immediately before the task would run.
package sched
