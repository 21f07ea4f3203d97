package journal

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/roach88/wavectl/internal/command"
	"github.com/roach88/wavectl/internal/server"
)

// Wave is a stored wave.
type Wave struct {
	Build     string
	BuildSeq  int
	ID        int64
	Reason    string
	StartedAt time.Time
	Visited   []string
	Error     string
}

// CommandEvent is a stored command event with the build it belongs to.
type CommandEvent struct {
	Build string
	command.Event
}

// Builds returns every build in the order it started.
//
// Returns an empty slice (not nil) if there are none.
func (j *Journal) Builds(ctx context.Context) ([]server.BuildRecord, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT token, seq, started_at, nodes
		FROM builds
		ORDER BY rowid ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query builds: %w", err)
	}
	defer rows.Close()

	builds := []server.BuildRecord{}
	for rows.Next() {
		var b server.BuildRecord
		var started, nodes string
		if err := rows.Scan(&b.Token, &b.Seq, &started, &nodes); err != nil {
			return nil, fmt.Errorf("scan build: %w", err)
		}
		if b.Time, err = parseTime(started); err != nil {
			return nil, err
		}
		if b.Nodes, err = unmarshalNames(nodes); err != nil {
			return nil, err
		}
		builds = append(builds, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate builds: %w", err)
	}
	return builds, nil
}

// Waves returns the waves of build, or of every build when build is "".
func (j *Journal) Waves(ctx context.Context, build string) ([]Wave, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT build, build_seq, wave_id, reason, started_at, visited, error
		FROM waves
		WHERE ? = '' OR build = ?
		ORDER BY id ASC
	`, build, build)
	if err != nil {
		return nil, fmt.Errorf("query waves: %w", err)
	}
	defer rows.Close()

	waves := []Wave{}
	for rows.Next() {
		w, err := scanWave(rows)
		if err != nil {
			return nil, err
		}
		waves = append(waves, w)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate waves: %w", err)
	}
	return waves, nil
}

func scanWave(rows *sql.Rows) (Wave, error) {
	var w Wave
	var started, visited string
	if err := rows.Scan(&w.Build, &w.BuildSeq, &w.ID, &w.Reason, &started, &visited, &w.Error); err != nil {
		return Wave{}, fmt.Errorf("scan wave: %w", err)
	}
	var err error
	if w.StartedAt, err = parseTime(started); err != nil {
		return Wave{}, err
	}
	if w.Visited, err = unmarshalNames(visited); err != nil {
		return Wave{}, err
	}
	return w, nil
}

// Panics returns every panic in order.
func (j *Journal) Panics(ctx context.Context) ([]server.PanicRecord, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT build, at, reason, count, backoff_ms
		FROM panics
		ORDER BY id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query panics: %w", err)
	}
	defer rows.Close()

	panics := []server.PanicRecord{}
	for rows.Next() {
		var p server.PanicRecord
		var at string
		var backoffMS int64
		if err := rows.Scan(&p.Build, &at, &p.Reason, &p.Count, &backoffMS); err != nil {
			return nil, fmt.Errorf("scan panic: %w", err)
		}
		if p.Time, err = parseTime(at); err != nil {
			return nil, err
		}
		p.Backoff = time.Duration(backoffMS) * time.Millisecond
		panics = append(panics, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate panics: %w", err)
	}
	return panics, nil
}

// CommandEvents returns the command events of build, or of every build
// when build is "".
func (j *Journal) CommandEvents(ctx context.Context, build string) ([]CommandEvent, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT build, at, node, request_id, request, kind, retry, payload, detail
		FROM command_events
		WHERE ? = '' OR build = ?
		ORDER BY id ASC
	`, build, build)
	if err != nil {
		return nil, fmt.Errorf("query command events: %w", err)
	}
	defer rows.Close()

	events := []CommandEvent{}
	for rows.Next() {
		var ev CommandEvent
		var at, kind string
		if err := rows.Scan(&ev.Build, &at, &ev.Node, &ev.RequestID, &ev.Request, &kind, &ev.Retry, &ev.Payload, &ev.Detail); err != nil {
			return nil, fmt.Errorf("scan command event: %w", err)
		}
		if ev.Time, err = parseTime(at); err != nil {
			return nil, err
		}
		ev.Kind = command.EventKind(kind)
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate command events: %w", err)
	}
	return events, nil
}
