package journal

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/wavectl/internal/command"
	"github.com/roach88/wavectl/internal/sched"
	"github.com/roach88/wavectl/internal/server"
	"github.com/roach88/wavectl/internal/testutil"
)

// stuckDevice never applies anything, so every command goes fatal.
type stuckDevice struct{}

func (stuckDevice) SendCommand(int, bool, func(string))        {}
func (stuckDevice) StateValidForRequestToBeSent(bool) bool    { return true }
func (stuckDevice) StateIndicatesRequestSuccessful(bool) bool { return false }

func TestJournal_RecordsServerLifecycle(t *testing.T) {
	j := createTestJournal(t)
	exec := sched.NewVirtualExecutor(epoch)

	factory := func(r server.Runner, reg server.Registrator) error {
		cmd := command.NewRequestNode[bool](r, stuckDevice{},
			command.WithEventSink(j),
			command.WithConfig(command.Config{MaxRetriesBeforeFatal: 1, RetryDelay: time.Second, PanicOnFatal: true}),
		)
		reg.Register("cmd", cmd)
		r.Executor().Execute(func() { cmd.CreateRequest("on", true) })
		return nil
	}
	srv := server.New(exec, factory,
		server.WithRecorder(j),
		server.WithTokenGenerator(testutil.NewFixedTokenGenerator("b")),
	)
	srv.Start()
	exec.RunPending()
	exec.Advance(2 * time.Second)
	require.True(t, srv.Panicking())

	flush(t, j)
	ctx := context.Background()

	builds, err := j.Builds(ctx)
	require.NoError(t, err)
	require.Len(t, builds, 1)
	assert.Equal(t, []string{"cmd"}, builds[0].Nodes)

	panics, err := j.Panics(ctx)
	require.NoError(t, err)
	require.Len(t, panics, 1)
	assert.Contains(t, panics[0].Reason, "failed after 1 retries")

	events, err := j.CommandEvents(ctx, "b")
	require.NoError(t, err)
	kinds := make([]command.EventKind, len(events))
	for i, ev := range events {
		kinds[i] = ev.Kind
	}
	assert.Equal(t, []command.EventKind{
		command.EventCreated,
		command.EventSent,
		command.EventRetryDue,
		command.EventSent,
		command.EventRetryDue,
		command.EventFatal,
	}, kinds)

	waves, err := j.Waves(ctx, "b")
	require.NoError(t, err)
	assert.NotEmpty(t, waves)
	assert.Zero(t, j.Failures())
}
