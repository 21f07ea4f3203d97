// Package journal provides SQLite-backed storage for what a server did:
// graph builds, waves, panics and command request events.
//
// The journal is append-only:
//   - builds: one row per graph build, with its registered node names
//   - waves: one row per wave, with the visited nodes in execution order
//   - panics: one row per server panic, with the rebuild backoff
//   - command_events: request lifecycle steps from command nodes
//
// # Writes
//
// Recorder and EventSink calls arrive on the server's executor goroutine
// and must not block it, so they only queue the row. A dedicated writer
// goroutine (a sched.LoopExecutor) drains the queue in order. Flush waits
// for everything queued so far; Close flushes and closes the database.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//
// Reads order by insertion (rowid), which is the order events happened on
// the executor.
package journal
