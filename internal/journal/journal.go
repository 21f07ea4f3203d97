package journal

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	_ "github.com/mattn/go-sqlite3"

	"github.com/roach88/wavectl/internal/sched"
	"github.com/roach88/wavectl/internal/server"
)

//go:embed schema.sql
var schemaSQL string

// Schema version tracking:
// 0 - Initial schema (pre-migration)
// 1 - Added index on command_events.build
const currentSchemaVersion = 1

// Option configures a Journal.
type Option func(*Journal)

// WithLogger sets the logger for write failures. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(j *Journal) {
		if l != nil {
			j.logger = l
		}
	}
}

// Journal is the durable record of a server run.
//
// Thread-safety model:
//   - Record* methods: safe from any goroutine, never block on disk
//   - Read methods: safe from any goroutine
//   - Flush/Close: safe from any goroutine
type Journal struct {
	db     *sql.DB
	logger *slog.Logger

	writer     *sched.LoopExecutor
	writerDone chan error
	closeOnce  sync.Once

	mu    sync.Mutex
	build server.BuildRecord

	failures atomic.Int64
}

// Open creates or opens a journal database at path.
// Applies required pragmas and migrations automatically, then starts the
// writer goroutine.
//
// This function is idempotent - safe to call multiple times on one path.
func Open(path string, opts ...Option) (*Journal, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// SQLite only supports one writer at a time.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}
	if err := applySchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	j := &Journal{
		db:         db,
		logger:     slog.Default(),
		writerDone: make(chan error, 1),
	}
	for _, opt := range opts {
		opt(j)
	}
	j.writer = sched.NewLoopExecutor(sched.WithLoopLogger(j.logger))
	go func() {
		j.writerDone <- j.writer.Run(context.Background())
	}()
	return j, nil
}

// Flush waits until every row queued before the call is written.
func (j *Journal) Flush(ctx context.Context) error {
	return j.writer.Submit(func() error { return nil }).Wait(ctx)
}

// Close drains the write queue and closes the database.
func (j *Journal) Close() error {
	var err error
	j.closeOnce.Do(func() {
		j.writer.Stop()
		if werr := <-j.writerDone; werr != nil {
			err = fmt.Errorf("journal writer: %w", werr)
		}
		if cerr := j.db.Close(); cerr != nil && err == nil {
			err = cerr
		}
	})
	return err
}

// Failures returns how many queued writes failed.
func (j *Journal) Failures() int64 {
	return j.failures.Load()
}

// DB returns the underlying sql.DB for direct queries.
// Use with caution - prefer using Journal methods when available.
func (j *Journal) DB() *sql.DB {
	return j.db
}

// enqueue hands write to the writer goroutine. Failures are logged and
// counted; the executor goroutine never sees them.
func (j *Journal) enqueue(what string, write func(ctx context.Context) error) {
	j.writer.Execute(func() {
		if err := write(context.Background()); err != nil {
			j.failures.Add(1)
			j.logger.Error("journal write failed", "what", what, "error", err)
		}
	})
}

// applyPragmas sets required SQLite configuration.
func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}
	return nil
}

// applySchema creates tables if they don't exist and runs migrations.
func applySchema(db *sql.DB) error {
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}
	if err := runMigrations(db); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

// runMigrations applies incremental schema migrations based on user_version.
func runMigrations(db *sql.DB) error {
	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("get user_version: %w", err)
	}

	if version < 1 {
		if err := migrateToV1(db); err != nil {
			return err
		}
	}

	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
		return fmt.Errorf("set user_version: %w", err)
	}
	return nil
}

// migrateToV1 indexes command events by build for trace lookups.
func migrateToV1(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_command_events_build
		ON command_events(build)
	`)
	if err != nil {
		return fmt.Errorf("migrate to v1: %w", err)
	}
	return nil
}

// verifyPragma checks that a pragma is set to the expected value.
// Used for testing.
func (j *Journal) verifyPragma(name, expected string) error {
	var value string
	if err := j.db.QueryRow(fmt.Sprintf("PRAGMA %s", name)).Scan(&value); err != nil {
		return fmt.Errorf("failed to query %s: %w", name, err)
	}
	if value != expected {
		return fmt.Errorf("%s = %q, expected %q", name, value, expected)
	}
	return nil
}
