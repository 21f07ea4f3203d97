// Package harness runs wave scenarios against a real Graph and compares
// the resulting trace with golden files.
//
// # Scenario Format
//
// Scenarios are YAML files:
//
//	name: reference_topology
//	description: "What this scenario pins down"
//	nodes:
//	  - name: a
//	  - name: b
//	    parents: [a]
//	edges:
//	  - {child: c, parent: b}
//	steps:
//	  - expect: [[a, b, c]]
//	  - trigger: [a]
//	    quiet: [b]
//	    expect: [[a, b]]
//	  - subscribe: {child: a, parent: c}
//	    expect_error: CYCLE_DETECTED
//
// Nodes are registered in the order listed; a node's parents must be
// listed before it. Edges are subscribed after every node is registered,
// in the order listed.
//
// Each step applies its actions and then runs waves until nothing is
// pending. The waves of the first step include the initial wave over every
// registered node. Actions are applied in this order: loud, quiet, fail,
// on_wave, subscribe, trigger, trigger_with_parents, close.
//
//   - quiet / loud: the named nodes report no change / a change from Wave
//   - fail: the named nodes return an error from their next Wave
//   - on_wave: the next time node runs it triggers the listed nodes
//   - subscribe: adds an edge; expect_error names the error code
//   - expect: the visit order of every wave the step ran
//
// # Deterministic Testing
//
// The graph runs on a ManualClock that never moves, and waves run on the
// calling goroutine, so traces are identical across runs. Traces render as
// text through Render and are compared with goldie:
//
//	go test ./internal/harness -update
package harness
