package journal

import (
	"context"
	"fmt"

	"github.com/roach88/wavectl/internal/command"
	"github.com/roach88/wavectl/internal/server"
)

// RecordBuild implements server.Recorder.
func (j *Journal) RecordBuild(b server.BuildRecord) {
	j.mu.Lock()
	j.build = b
	j.mu.Unlock()
	j.enqueue("build", func(ctx context.Context) error { return j.WriteBuild(ctx, b) })
}

// RecordWave implements server.Recorder.
func (j *Journal) RecordWave(w server.WaveRecord) {
	seq := j.currentBuild().Seq
	j.enqueue("wave", func(ctx context.Context) error { return j.WriteWave(ctx, seq, w) })
}

// RecordPanic implements server.Recorder.
func (j *Journal) RecordPanic(p server.PanicRecord) {
	j.enqueue("panic", func(ctx context.Context) error { return j.WritePanic(ctx, p) })
}

// RecordCommandEvent implements command.EventSink. Events are attributed
// to the most recently recorded build.
func (j *Journal) RecordCommandEvent(ev command.Event) {
	build := j.currentBuild().Token
	j.enqueue("command event", func(ctx context.Context) error { return j.WriteCommandEvent(ctx, build, ev) })
}

func (j *Journal) currentBuild() server.BuildRecord {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.build
}

// WriteBuild inserts a build row synchronously.
// Uses ON CONFLICT DO NOTHING for idempotency - rewriting a build is a no-op.
func (j *Journal) WriteBuild(ctx context.Context, b server.BuildRecord) error {
	nodes, err := marshalNames(b.Nodes)
	if err != nil {
		return fmt.Errorf("write build: %w", err)
	}
	_, err = j.db.ExecContext(ctx, `
		INSERT INTO builds (token, seq, started_at, nodes)
		VALUES (?, ?, ?, ?)
		ON CONFLICT DO NOTHING
	`, b.Token, b.Seq, formatTime(b.Time), nodes)
	if err != nil {
		return fmt.Errorf("write build: %w", err)
	}
	return nil
}

// WriteWave inserts a wave row synchronously. The build (token, buildSeq)
// must already be written (foreign key constraint).
func (j *Journal) WriteWave(ctx context.Context, buildSeq int, w server.WaveRecord) error {
	visited, err := marshalNames(w.Wave.Visited)
	if err != nil {
		return fmt.Errorf("write wave: %w", err)
	}
	errText := ""
	if w.Wave.Err != nil {
		errText = w.Wave.Err.Error()
	}
	_, err = j.db.ExecContext(ctx, `
		INSERT INTO waves (build, build_seq, wave_id, reason, started_at, visited, error)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, w.Build, buildSeq, w.Wave.ID, w.Reason, formatTime(w.Wave.Time), visited, errText)
	if err != nil {
		return fmt.Errorf("write wave %d: %w", w.Wave.ID, err)
	}
	return nil
}

// WritePanic inserts a panic row synchronously.
func (j *Journal) WritePanic(ctx context.Context, p server.PanicRecord) error {
	_, err := j.db.ExecContext(ctx, `
		INSERT INTO panics (build, at, reason, count, backoff_ms)
		VALUES (?, ?, ?, ?, ?)
	`, p.Build, formatTime(p.Time), p.Reason, p.Count, p.Backoff.Milliseconds())
	if err != nil {
		return fmt.Errorf("write panic: %w", err)
	}
	return nil
}

// WriteCommandEvent inserts a command event row synchronously.
func (j *Journal) WriteCommandEvent(ctx context.Context, build string, ev command.Event) error {
	_, err := j.db.ExecContext(ctx, `
		INSERT INTO command_events
		(build, at, node, request_id, request, kind, retry, payload, detail)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		build,
		formatTime(ev.Time),
		ev.Node,
		ev.RequestID,
		ev.Request,
		string(ev.Kind),
		ev.Retry,
		ev.Payload,
		ev.Detail,
	)
	if err != nil {
		return fmt.Errorf("write command event: %w", err)
	}
	return nil
}
