package sim

import (
	"fmt"
	"time"

	"github.com/roach88/wavectl/internal/command"
	"github.com/roach88/wavectl/internal/graph"
	"github.com/roach88/wavectl/internal/node"
)

// Desired holds the position the switch should be in. With a non-zero
// period it toggles on a timer.
type Desired struct {
	node.Base
	period   time.Duration
	value    bool
	reported bool
	waves    int
}

// NewDesired returns a desired-state node starting at initial.
func NewDesired(d node.Driver, initial bool, period time.Duration) *Desired {
	return &Desired{Base: node.NewBase(d), value: initial, period: period}
}

// Initialise implements graph.Node.
func (n *Desired) Initialise(ctx graph.NodeContext) error {
	if err := n.Base.Initialise(ctx); err != nil {
		return err
	}
	if n.period > 0 {
		n.ScheduleRepeating("toggle", n.period, n.period, func() {
			n.Set(!n.value)
		})
	}
	return nil
}

// Set changes the desired position and requests a wave.
func (n *Desired) Set(on bool) {
	n.value = on
	n.TriggerInNewWave(fmt.Sprintf("desired %t", on))
}

// Wave implements graph.Node.
func (n *Desired) Wave() (bool, error) {
	n.waves++
	if n.waves > 1 && n.value == n.reported {
		return false, nil
	}
	n.reported = n.value
	return true, nil
}

// Value returns the desired position as of the last wave.
func (n *Desired) Value() bool {
	return n.reported
}

// DumpState implements graph.StateDumper.
func (n *Desired) DumpState() any {
	return map[string]any{"value": n.value, "reported": n.reported}
}

// SwitchState mirrors the observed switch position into the graph.
type SwitchState struct {
	node.Base
	sw          *Switch
	on          bool
	unsubscribe func()
}

// NewSwitchState returns a node tracking sw.
func NewSwitchState(d node.Driver, sw *Switch) *SwitchState {
	return &SwitchState{Base: node.NewBase(d), sw: sw}
}

// Initialise implements graph.Node.
func (n *SwitchState) Initialise(ctx graph.NodeContext) error {
	if err := n.Base.Initialise(ctx); err != nil {
		return err
	}
	n.on = n.sw.On()
	n.unsubscribe = n.sw.Subscribe(func(on bool) {
		n.TriggerInNewWave(fmt.Sprintf("switch reported %t", on))
	})
	return nil
}

// Wave implements graph.Node.
func (n *SwitchState) Wave() (bool, error) {
	on := n.sw.On()
	if on == n.on {
		return false, nil
	}
	n.on = on
	return true, nil
}

// Close implements graph.Node.
func (n *SwitchState) Close() error {
	if n.unsubscribe != nil {
		n.unsubscribe()
		n.unsubscribe = nil
	}
	return n.Base.Close()
}

// On returns the observed position as of the last wave.
func (n *SwitchState) On() bool {
	return n.on
}

// Controller requests the target position whenever the target or the
// observed switch state changes and the two disagree.
type Controller struct {
	node.Base
	target *node.MappingNode[*Desired, bool]
	state  *SwitchState
	cmd    *command.RequestNode[bool]
}

// NewController wires target and state to cmd.
func NewController(d node.Driver, target *node.MappingNode[*Desired, bool], state *SwitchState, cmd *command.RequestNode[bool]) *Controller {
	return &Controller{Base: node.NewBase(d), target: target, state: state, cmd: cmd}
}

// Initialise implements graph.Node.
func (n *Controller) Initialise(ctx graph.NodeContext) error {
	if err := n.Base.Initialise(ctx); err != nil {
		return err
	}
	if err := ctx.SubscribeTo(n.target); err != nil {
		return err
	}
	// Out-of-band changes to the switch are corrected too.
	return ctx.SubscribeTo(n.state)
}

// Wave implements graph.Node.
func (n *Controller) Wave() (bool, error) {
	want := n.target.Value()
	if n.cmd.Current() == nil && n.state.On() == want {
		return false, nil
	}
	n.cmd.CreateRequest(fmt.Sprintf("switch-%s", onOff(want)), want)
	return true, nil
}

func onOff(on bool) string {
	if on {
		return "on"
	}
	return "off"
}
