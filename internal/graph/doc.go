// Package graph implements the wave engine: an incrementally recomputed
// dependency graph of stateful nodes.
//
// ARCHITECTURE:
//
// Arena + Index:
// The Graph owns every registered node in a single slice. A node's id is
// its position in that slice, and parent/child edges are stored as id
// lists. Nothing outside the Graph holds edge references, and the cycle
// check walks ids rather than live pointers.
//
// Waves:
// A wave is one synchronous pass over the pending set in ascending
// (rank, id) order. Ranks are topological depths (roots are 1, every child
// is 1 + max(parent rank)), so a parent always runs before its children.
// A node whose Wave reports a change makes its children pending. The scan
// cursor only moves forward: a node that becomes pending behind the cursor
// waits for the next wave, which guarantees each node runs at most once per
// wave.
//
// Single Owner Goroutine:
// All Graph and NodeContext calls must come from one goroutine. The first
// caller claims ownership; any other goroutine calling in is a programming
// error and panics with a WRONG_GOROUTINE GraphError. There is no locking.
//
// Error Handling:
//   - Structural errors (duplicate node, edge during a wave, cycle) are
//     returned synchronously and leave the graph exactly as it was.
//   - An error or panic from a node's Wave stops the wave and is handed to
//     the configured error handler; AfterWave still runs for every node
//     visited in that wave.
//   - AfterWave and Close errors are logged per node and never stop the
//     remaining nodes.
package graph
