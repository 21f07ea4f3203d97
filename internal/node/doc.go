// Package node provides building blocks for graph nodes that live inside a
// server: a Base that carries a name, owner-driver wiring and named timers,
// and MappingNode, which derives a value from a single source node.
//
// # Triggering from outside a wave
//
// Graph state may only be touched from the owner goroutine. Base's trigger
// helpers check where they are called from: inside a wave on the owner they
// mark the node pending directly and the running scan (or the next wave)
// picks it up. Anywhere else they queue the mutation onto the driver's
// executor and then ask the driver for a new wave.
package node
