package sim

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/wavectl/internal/command"
	"github.com/roach88/wavectl/internal/sched"
	"github.com/roach88/wavectl/internal/server"
	"github.com/roach88/wavectl/internal/testutil"
)

var epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

const latency = 100 * time.Millisecond

type rig struct {
	exec   *sched.VirtualExecutor
	sw     *Switch
	topo   *Topology
	srv    *server.Server
	events []command.Event
}

func newRig(t *testing.T, failureRate float64, opts Options) *rig {
	t.Helper()
	r := &rig{exec: sched.NewVirtualExecutor(epoch)}
	r.sw = NewSwitch(r.exec, latency, failureRate, 1)
	if opts.Command.RetryDelay == 0 {
		opts.Command = command.Config{MaxRetriesBeforeFatal: 2, RetryDelay: time.Second, PanicOnFatal: true}
	}
	opts.Sink = command.EventSinkFunc(func(ev command.Event) { r.events = append(r.events, ev) })
	r.topo = NewTopology(r.sw, opts)
	r.srv = server.New(r.exec, r.topo.Factory, server.WithTokenGenerator(testutil.NewFixedTokenGenerator("sim")))
	r.srv.Start()
	r.exec.RunPending()
	require.NotNil(t, r.srv.Graph())
	return r
}

func TestTopology_Ranks(t *testing.T) {
	r := newRig(t, 0, Options{})
	g := r.srv.Graph()

	want := map[string]int{"desired": 1, "switch-state": 1, "target": 2, "controller": 3, "command": 4}
	for name, rank := range want {
		n, ok := g.NodeByName(name)
		require.True(t, ok, name)
		got, _ := g.Rank(n)
		assert.Equal(t, rank, got, name)
	}
}

func TestTopology_QuietWhenInAgreement(t *testing.T) {
	r := newRig(t, 0, Options{})

	assert.Nil(t, r.topo.Command.Current())
	assert.Zero(t, r.sw.Sends())
	assert.Empty(t, r.events)
}

func TestTopology_DesiredChangeDrivesSwitch(t *testing.T) {
	r := newRig(t, 0, Options{})

	r.topo.Desired.Set(true)
	r.exec.RunPending()
	require.NotNil(t, r.topo.Command.Current())
	assert.Equal(t, 1, r.sw.Sends())
	assert.False(t, r.sw.On())

	r.exec.Advance(latency)
	assert.True(t, r.sw.On())
	assert.True(t, r.topo.State.On())
	assert.Nil(t, r.topo.Command.Current(), "confirmed by observed state")

	kinds := make([]command.EventKind, len(r.events))
	for i, ev := range r.events {
		kinds[i] = ev.Kind
	}
	assert.Equal(t, []command.EventKind{command.EventCreated, command.EventSent, command.EventConfirmed}, kinds)
}

func TestTopology_CorrectsOutOfBandFlip(t *testing.T) {
	r := newRig(t, 0, Options{})

	r.sw.Flip()
	r.exec.RunPending()
	assert.Equal(t, 1, r.sw.Sends())

	r.exec.Advance(latency)
	assert.False(t, r.sw.On())
	assert.Nil(t, r.topo.Command.Current())
}

func TestTopology_ToggleSchedule(t *testing.T) {
	r := newRig(t, 0, Options{ToggleEvery: 5 * time.Second})

	r.exec.Advance(5*time.Second + latency)
	assert.True(t, r.sw.On())

	r.exec.Advance(5 * time.Second)
	assert.False(t, r.sw.On())
	assert.Equal(t, 2, r.sw.Sends())
}

func TestTopology_FailuresPanicAndRebuild(t *testing.T) {
	r := newRig(t, 1, Options{})

	r.topo.Desired.Set(true)
	r.exec.RunPending()

	// First send plus two retries, one second apart, then fatal.
	r.exec.Advance(3 * time.Second)
	assert.Equal(t, 3, r.sw.Sends())
	require.True(t, r.srv.Panicking())

	r.sw.SetFailureRate(0)
	r.exec.Advance(time.Second)
	assert.Equal(t, 2, r.srv.Builds())
	assert.True(t, r.topo.Desired.Value(), "desired position survives the rebuild")

	r.exec.Advance(latency)
	assert.True(t, r.sw.On())
	assert.Nil(t, r.topo.Command.Current())
}

func TestTopology_UnreachableSwitchDefers(t *testing.T) {
	r := newRig(t, 0, Options{})
	r.sw.SetReachable(false)

	r.topo.Desired.Set(true)
	r.exec.RunPending()
	assert.Zero(t, r.sw.Sends())
	require.NotNil(t, r.topo.Command.Current())
	assert.False(t, r.topo.Command.Current().Sent())

	r.sw.SetReachable(true)
	r.topo.Command.TriggerInNewWave("reachable again")
	r.exec.RunPending()
	assert.Equal(t, 1, r.sw.Sends())
}

func TestSwitch_FailureCallback(t *testing.T) {
	exec := sched.NewVirtualExecutor(epoch)
	sw := NewSwitch(exec, latency, 1, 7)

	var reasons []string
	sw.SendCommand(0, true, func(reason string) { reasons = append(reasons, reason) })
	assert.Empty(t, reasons)

	exec.Advance(latency)
	require.Len(t, reasons, 1)
	assert.Contains(t, reasons[0], "attempt 1")
	assert.False(t, sw.On())
}

func TestSwitch_SubscribeAndUnsubscribe(t *testing.T) {
	exec := sched.NewVirtualExecutor(epoch)
	sw := NewSwitch(exec, latency, 0, 7)

	var seen []bool
	unsubscribe := sw.Subscribe(func(on bool) { seen = append(seen, on) })
	sw.Flip()
	sw.Flip()
	unsubscribe()
	sw.Flip()

	assert.Equal(t, []bool{true, false}, seen)
	assert.True(t, sw.On())
}
