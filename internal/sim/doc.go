// Package sim provides a simulated switch and the demo topology that
// "wavectl run" drives: a desired-state schedule, the observed switch
// state, a mapping to the command target, a controller and a command node.
//
//	desired ──> target ──> controller ──> command
//	                           ^             ^
//	switch-state ──────────────┴─────────────┘
package sim
