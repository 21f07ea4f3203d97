package graph

import "time"

// Node is a unit of incrementally recomputed state.
//
// Implementations must be comparable (pointer receivers), since the Graph
// keys its registry on the Node value.
type Node interface {
	// Initialise is called once, during registration. Nodes subscribe to
	// their parents here.
	Initialise(ctx NodeContext) error

	// Wave recomputes the node's state and reports whether it changed.
	// Only a change makes the node's children pending.
	Wave() (changed bool, err error)

	// AfterWave runs once for every node visited in a wave, after the
	// whole wave has finished.
	AfterWave() error

	// Close releases the node's resources. It may be called more than once.
	Close() error
}

// NodeContext is the per-node handle returned at registration.
type NodeContext interface {
	// SubscribeTo makes this node a child of parent.
	SubscribeTo(parent Node) error

	// Trigger marks this node pending.
	Trigger()

	// TriggerWithParents marks this node and all of its ancestors pending.
	TriggerWithParents()

	// Name returns the registered name.
	Name() string

	// Graph returns the owning graph.
	Graph() *Graph
}

// StateDumper is implemented by nodes that want their state logged at
// debug level before and after each Wave.
type StateDumper interface {
	DumpState() any
}

// nodeState is the Graph-internal bookkeeping for one node.
//
// rank: 0 needs ranking, negative is a tentative lower bound being
// computed, positive is final.
type nodeState struct {
	id       int
	name     string
	node     Node
	rank     int
	parents  []int
	children []int
	closed   bool
}

type nodeContext struct {
	g  *Graph
	id int
}

func (c *nodeContext) SubscribeTo(parent Node) error {
	return c.g.SubscribeTo(c.g.states[c.id].node, parent)
}

func (c *nodeContext) Trigger() {
	c.g.owner.check()
	c.g.trigger(c.id)
}

func (c *nodeContext) TriggerWithParents() {
	c.g.owner.check()
	c.g.triggerWithParents(c.id)
}

func (c *nodeContext) Name() string {
	return c.g.states[c.id].name
}

func (c *nodeContext) Graph() *Graph {
	return c.g
}

// WaveInfo describes the most recently completed wave.
type WaveInfo struct {
	ID      int64
	Time    time.Time
	Visited []string
	Err     error
}
