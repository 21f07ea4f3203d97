package sim

import (
	"time"

	"github.com/roach88/wavectl/internal/command"
	"github.com/roach88/wavectl/internal/node"
	"github.com/roach88/wavectl/internal/server"
)

// Options configures a Topology.
type Options struct {
	// ToggleEvery flips the desired position on a timer; zero disables it.
	ToggleEvery time.Duration
	Command     command.Config
	Sink        command.EventSink
}

// Topology builds the demo graph around one physical Switch. The switch
// outlives graph rebuilds; the nodes do not.
type Topology struct {
	Switch *Switch
	opts   Options

	Desired    *Desired
	Target     *node.MappingNode[*Desired, bool]
	State      *SwitchState
	Controller *Controller
	Command    *command.RequestNode[bool]
}

// NewTopology returns a topology driving sw.
func NewTopology(sw *Switch, opts Options) *Topology {
	return &Topology{Switch: sw, opts: opts}
}

// Factory implements server.NodeFactory.
func (t *Topology) Factory(runner server.Runner, reg server.Registrator) error {
	desired := NewDesired(runner, t.Switch.On(), t.opts.ToggleEvery)
	if t.Desired != nil {
		// Keep the schedule's position across rebuilds.
		desired.value = t.Desired.value
	}
	target := node.NewMapping(runner, desired, func(d *Desired) (bool, error) {
		return d.Value(), nil
	}, node.WithChangeDetector(node.ComparableChange[bool]))
	state := NewSwitchState(runner, t.Switch)

	controller := NewController(runner, target, state, nil)

	// The command node runs after both the observed state and the
	// controller that feeds it.
	cmdOpts := []command.Option{
		command.WithConfig(t.opts.Command),
		command.WithParents(state, controller),
	}
	if t.opts.Sink != nil {
		cmdOpts = append(cmdOpts, command.WithEventSink(t.opts.Sink))
	}
	cmd := command.NewRequestNode[bool](runner, t.Switch, cmdOpts...)
	controller.cmd = cmd

	reg.Register("desired", desired)
	reg.Register("target", target)
	reg.Register("switch-state", state)
	reg.Register("controller", controller)
	reg.Register("command", cmd)

	t.Desired, t.Target, t.State, t.Controller, t.Command = desired, target, state, controller, cmd
	return nil
}
