package node_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/wavectl/internal/graph"
	"github.com/roach88/wavectl/internal/node"
	"github.com/roach88/wavectl/internal/testutil"
)

var epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// counter is a minimal server node holding an int.
type counter struct {
	node.Base
	parents []graph.Node
	value   int
	waves   int
	onWave  func()
}

func newCounter(d node.Driver, parents ...graph.Node) *counter {
	return &counter{Base: node.NewBase(d), parents: parents}
}

func (c *counter) Initialise(ctx graph.NodeContext) error {
	if err := c.Base.Initialise(ctx); err != nil {
		return err
	}
	for _, p := range c.parents {
		if err := ctx.SubscribeTo(p); err != nil {
			return err
		}
	}
	return nil
}

func (c *counter) Wave() (bool, error) {
	c.waves++
	if c.onWave != nil {
		c.onWave()
	}
	return true, nil
}

func newDriver(t *testing.T) *testutil.WaveDriver {
	t.Helper()
	return testutil.NewWaveDriver(epoch)
}

func TestBase_NameFromRegistration(t *testing.T) {
	d := newDriver(t)
	c := newCounter(d)
	assert.Empty(t, c.Name())

	d.Register("counter", c)
	assert.Equal(t, "counter", c.Name())
	assert.NotNil(t, c.Context())
}

func TestBase_ExplicitNameWins(t *testing.T) {
	d := newDriver(t)
	c := &counter{Base: node.NewBase(d, node.WithName("explicit"))}
	d.Register("registered", c)
	assert.Equal(t, "explicit", c.Name())
}

func TestBase_TriggerOutsideWaveQueuesOnExecutor(t *testing.T) {
	d := newDriver(t)
	c := newCounter(d)
	d.Register("c", c)
	require.NoError(t, d.Graph.RunWaves())
	require.Equal(t, 1, c.waves)

	c.TriggerInNewWave("poke")
	assert.Equal(t, 1, c.waves, "nothing runs until the executor does")
	assert.False(t, d.Graph.IsPending(c))

	d.Exec.RunPending()
	assert.Equal(t, 2, c.waves)
	assert.Equal(t, []string{"poke"}, d.Reasons)
}

func TestBase_TriggerInsideWaveMarksPendingDirectly(t *testing.T) {
	d := newDriver(t)
	first := newCounter(d)
	second := newCounter(d)
	d.Register("first", first)
	d.Register("second", second)
	require.NoError(t, d.Graph.RunWaves())

	first.onWave = func() { second.TriggerInNewWave("from first") }
	require.NoError(t, d.Graph.Trigger(first))
	ran, err := d.Graph.Wave()
	require.NoError(t, err)
	require.True(t, ran)

	assert.Equal(t, []string{"first", "second"}, d.Graph.LastWave().Visited)
	assert.Empty(t, d.Reasons, "no new wave requested from inside a wave")
	assert.Zero(t, d.Exec.RunPending())
}

func TestBase_TriggerMeAndParents(t *testing.T) {
	d := newDriver(t)
	parent := newCounter(d)
	child := newCounter(d, parent)
	d.Register("parent", parent)
	d.Register("child", child)
	require.NoError(t, d.Graph.RunWaves())

	child.TriggerMeAndParentsInNewWave("refresh")
	d.Exec.RunPending()

	assert.Equal(t, 2, parent.waves)
	assert.Equal(t, 2, child.waves)
	assert.Equal(t, []string{"parent", "child"}, d.Graph.LastWave().Visited)
}

func TestBase_TriggerAfterCloseIsDropped(t *testing.T) {
	d := newDriver(t)
	c := newCounter(d)
	d.Register("c", c)
	require.NoError(t, d.Graph.RunWaves())

	c.TriggerInNewWave("late")
	require.NoError(t, d.Graph.Close())
	d.Exec.RunPending()

	assert.Equal(t, 1, c.waves)
	assert.Empty(t, d.Reasons)
}

func TestBase_TimerFiresOnce(t *testing.T) {
	d := newDriver(t)
	c := newCounter(d)
	d.Register("c", c)

	fired := 0
	c.ScheduleTimer("retry", 5*time.Second, func() { fired++ })
	assert.True(t, c.HasTimer("retry"))

	d.Exec.Advance(4 * time.Second)
	assert.Zero(t, fired)
	d.Exec.Advance(time.Second)
	assert.Equal(t, 1, fired)
	assert.False(t, c.HasTimer("retry"))

	d.Exec.Advance(time.Minute)
	assert.Equal(t, 1, fired)
}

func TestBase_TimerReplacedUnderSameKey(t *testing.T) {
	d := newDriver(t)
	c := newCounter(d)
	d.Register("c", c)

	var got []string
	c.ScheduleTimer("k", time.Second, func() { got = append(got, "old") })
	c.ScheduleTimer("k", 2*time.Second, func() { got = append(got, "new") })

	d.Exec.Advance(3 * time.Second)
	assert.Equal(t, []string{"new"}, got)
}

func TestBase_CancelTimer(t *testing.T) {
	d := newDriver(t)
	c := newCounter(d)
	d.Register("c", c)

	fired := false
	c.ScheduleTimer("k", time.Second, func() { fired = true })
	assert.True(t, c.CancelTimer("k"))
	assert.False(t, c.CancelTimer("k"))

	d.Exec.Advance(time.Minute)
	assert.False(t, fired)
}

func TestBase_CloseCancelsTimers(t *testing.T) {
	d := newDriver(t)
	c := newCounter(d)
	d.Register("c", c)

	fired := 0
	c.ScheduleTimer("a", time.Second, func() { fired++ })
	c.ScheduleRepeating("b", time.Second, time.Second, func() { fired++ })
	assert.Equal(t, []string{"a", "b"}, c.Timers())

	require.NoError(t, c.Close())
	assert.True(t, c.Closed())
	assert.Empty(t, c.Timers())

	d.Exec.Advance(time.Minute)
	assert.Zero(t, fired)
	assert.Zero(t, d.Exec.PendingTimers())
}

func TestBase_RepeatingTimer(t *testing.T) {
	d := newDriver(t)
	c := newCounter(d)
	d.Register("c", c)

	ticks := 0
	c.ScheduleRepeating("poll", time.Second, 2*time.Second, func() { ticks++ })
	d.Exec.Advance(5 * time.Second)
	assert.Equal(t, 3, ticks)

	c.CancelTimer("poll")
	d.Exec.Advance(10 * time.Second)
	assert.Equal(t, 3, ticks)
}
