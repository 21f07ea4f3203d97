// Package server hosts a wave graph on an executor and keeps it alive.
//
// A Server builds a fresh graph from a NodeFactory, runs waves on request,
// and on any unhandled wave error (or an explicit Panic from a node) tears
// the whole graph down and rebuilds it after an exponential backoff. The
// backoff resets whenever a wave completes cleanly; a separate panic
// counter past a threshold schedules a coarse reset instead of growing
// forever.
//
// Thread-safety model:
//   - Start and Close are safe from any goroutine.
//   - Every other method, and every node callback, runs on the executor
//     goroutine.
package server
