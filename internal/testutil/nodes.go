// Package testutil provides shared fixtures for wave engine tests.
package testutil

import (
	"github.com/roach88/wavectl/internal/graph"
)

// Trace records the order in which nodes ran.
type Trace struct {
	Order []string
	After []string
}

// Reset clears the recorded order.
func (t *Trace) Reset() {
	t.Order = nil
	t.After = nil
}

// RecordingNode is a graph.Node that appends its name to a Trace on every
// Wave. By default every Wave reports a change.
type RecordingNode struct {
	Label   string
	Parents []graph.Node
	Trace   *Trace

	// Quiet makes Wave report no change.
	Quiet bool
	// WaveErr is returned from Wave when set.
	WaveErr error
	// WavePanic is raised from Wave when non-nil.
	WavePanic any
	// AfterErr is returned from AfterWave when set.
	AfterErr error
	// OnWave runs inside Wave, before the result is returned.
	OnWave func(ctx graph.NodeContext)

	Ctx        graph.NodeContext
	Waves      int
	AfterWaves int
	Closes     int
}

// NewRecordingNode creates a node named label that records into trace and
// subscribes to parents during Initialise.
func NewRecordingNode(label string, trace *Trace, parents ...graph.Node) *RecordingNode {
	return &RecordingNode{Label: label, Trace: trace, Parents: parents}
}

// Initialise implements graph.Node.
func (n *RecordingNode) Initialise(ctx graph.NodeContext) error {
	n.Ctx = ctx
	for _, p := range n.Parents {
		if err := ctx.SubscribeTo(p); err != nil {
			return err
		}
	}
	return nil
}

// Wave implements graph.Node.
func (n *RecordingNode) Wave() (bool, error) {
	n.Waves++
	if n.Trace != nil {
		n.Trace.Order = append(n.Trace.Order, n.Label)
	}
	if n.OnWave != nil {
		n.OnWave(n.Ctx)
	}
	if n.WavePanic != nil {
		panic(n.WavePanic)
	}
	if n.WaveErr != nil {
		return false, n.WaveErr
	}
	return !n.Quiet, nil
}

// AfterWave implements graph.Node.
func (n *RecordingNode) AfterWave() error {
	n.AfterWaves++
	if n.Trace != nil {
		n.Trace.After = append(n.Trace.After, n.Label)
	}
	return n.AfterErr
}

// Close implements graph.Node.
func (n *RecordingNode) Close() error {
	n.Closes++
	return nil
}

// DumpState implements graph.StateDumper.
func (n *RecordingNode) DumpState() any {
	return map[string]any{"waves": n.Waves, "quiet": n.Quiet}
}
