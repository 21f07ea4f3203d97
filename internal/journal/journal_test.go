package journal

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/wavectl/internal/command"
	"github.com/roach88/wavectl/internal/graph"
	"github.com/roach88/wavectl/internal/server"
)

var epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// createTestJournal opens a journal in a temp dir and closes it on cleanup.
func createTestJournal(t *testing.T) *Journal {
	t.Helper()
	j, err := Open(filepath.Join(t.TempDir(), "journal.db"))
	require.NoError(t, err)
	t.Cleanup(func() { j.Close() })
	return j
}

func flush(t *testing.T, j *Journal) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, j.Flush(ctx))
}

func TestOpen_CreatesNewDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.db")
	j, err := Open(path)
	require.NoError(t, err)
	defer j.Close()

	_, err = os.Stat(path)
	assert.NoError(t, err)
}

func TestOpen_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.db")
	for i := 0; i < 3; i++ {
		j, err := Open(path)
		require.NoError(t, err, "iteration %d", i)
		require.NoError(t, j.Close())
	}
}

func TestOpen_Pragmas(t *testing.T) {
	j := createTestJournal(t)

	assert.NoError(t, j.verifyPragma("journal_mode", "wal"))
	assert.NoError(t, j.verifyPragma("foreign_keys", "1"))
	assert.NoError(t, j.verifyPragma("busy_timeout", "5000"))
	assert.NoError(t, j.verifyPragma("user_version", "1"))
}

func TestOpen_MigrationCreatesIndex(t *testing.T) {
	j := createTestJournal(t)

	var name string
	err := j.DB().QueryRow(`
		SELECT name FROM sqlite_master
		WHERE type = 'index' AND name = 'idx_command_events_build'
	`).Scan(&name)
	require.NoError(t, err)
	assert.Equal(t, "idx_command_events_build", name)
}

func TestJournal_RecordsRoundTrip(t *testing.T) {
	j := createTestJournal(t)

	j.RecordBuild(server.BuildRecord{Token: "b1", Seq: 1, Time: epoch, Nodes: []string{"a", "b"}})
	j.RecordWave(server.WaveRecord{
		Build:  "b1",
		Reason: "initial",
		Wave:   graph.WaveInfo{ID: 1, Time: epoch, Visited: []string{"a", "b"}},
	})
	j.RecordWave(server.WaveRecord{
		Build:  "b1",
		Reason: "poke",
		Wave:   graph.WaveInfo{ID: 2, Time: epoch.Add(time.Second), Visited: []string{"b"}, Err: errors.New("boom")},
	})
	j.RecordPanic(server.PanicRecord{Build: "b1", Time: epoch.Add(time.Second), Reason: "boom", Count: 1, Backoff: 1500 * time.Millisecond})
	j.RecordCommandEvent(command.Event{
		Time: epoch, Node: "cmd", RequestID: 7, Request: "on", Kind: command.EventSent, Retry: 2, Payload: "true",
	})
	flush(t, j)
	ctx := context.Background()

	builds, err := j.Builds(ctx)
	require.NoError(t, err)
	require.Len(t, builds, 1)
	assert.Equal(t, server.BuildRecord{Token: "b1", Seq: 1, Time: epoch, Nodes: []string{"a", "b"}}, builds[0])

	waves, err := j.Waves(ctx, "b1")
	require.NoError(t, err)
	require.Len(t, waves, 2)
	assert.Equal(t, Wave{Build: "b1", BuildSeq: 1, ID: 1, Reason: "initial", StartedAt: epoch, Visited: []string{"a", "b"}}, waves[0])
	assert.Equal(t, "boom", waves[1].Error)

	panics, err := j.Panics(ctx)
	require.NoError(t, err)
	require.Len(t, panics, 1)
	assert.Equal(t, 1500*time.Millisecond, panics[0].Backoff)
	assert.Equal(t, "boom", panics[0].Reason)

	events, err := j.CommandEvents(ctx, "b1")
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "b1", events[0].Build)
	assert.Equal(t, command.EventSent, events[0].Kind)
	assert.Equal(t, int64(7), events[0].RequestID)
	assert.Equal(t, 2, events[0].Retry)
	assert.Equal(t, epoch, events[0].Time)

	assert.Zero(t, j.Failures())
}

func TestJournal_EmptyReadsReturnEmptySlices(t *testing.T) {
	j := createTestJournal(t)
	ctx := context.Background()

	builds, err := j.Builds(ctx)
	require.NoError(t, err)
	assert.NotNil(t, builds)
	assert.Empty(t, builds)

	waves, err := j.Waves(ctx, "")
	require.NoError(t, err)
	assert.NotNil(t, waves)
	assert.Empty(t, waves)
}

func TestJournal_WaveFilterByBuild(t *testing.T) {
	j := createTestJournal(t)

	for seq, token := range []string{"b1", "b2"} {
		j.RecordBuild(server.BuildRecord{Token: token, Seq: seq + 1, Time: epoch})
		j.RecordWave(server.WaveRecord{Build: token, Reason: "initial", Wave: graph.WaveInfo{ID: 1, Time: epoch}})
	}
	flush(t, j)

	all, err := j.Waves(context.Background(), "")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	second, err := j.Waves(context.Background(), "b2")
	require.NoError(t, err)
	require.Len(t, second, 1)
	assert.Equal(t, 2, second[0].BuildSeq)
}

func TestJournal_WriteFailureIsCountedNotReturned(t *testing.T) {
	j := createTestJournal(t)

	// No build row: the foreign key rejects the wave.
	j.RecordWave(server.WaveRecord{Build: "ghost", Wave: graph.WaveInfo{ID: 1, Time: epoch}})
	flush(t, j)

	assert.Equal(t, int64(1), j.Failures())
	waves, err := j.Waves(context.Background(), "")
	require.NoError(t, err)
	assert.Empty(t, waves)
}

func TestJournal_DuplicateBuildIgnored(t *testing.T) {
	j := createTestJournal(t)
	ctx := context.Background()

	b := server.BuildRecord{Token: "b1", Seq: 1, Time: epoch}
	require.NoError(t, j.WriteBuild(ctx, b))
	require.NoError(t, j.WriteBuild(ctx, b))

	builds, err := j.Builds(ctx)
	require.NoError(t, err)
	assert.Len(t, builds, 1)
}

func TestJournal_CloseDrainsQueue(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.db")
	j, err := Open(path)
	require.NoError(t, err)

	j.RecordBuild(server.BuildRecord{Token: "b1", Seq: 1, Time: epoch})
	for i := 1; i <= 50; i++ {
		j.RecordWave(server.WaveRecord{Build: "b1", Reason: "tick", Wave: graph.WaveInfo{ID: int64(i), Time: epoch}})
	}
	require.NoError(t, j.Close())
	require.NoError(t, j.Close())

	reopened, err := Open(path)
	require.NoError(t, err)
	defer reopened.Close()

	waves, err := reopened.Waves(context.Background(), "b1")
	require.NoError(t, err)
	assert.Len(t, waves, 50)
}
