package server

import (
	"time"

	"github.com/roach88/wavectl/internal/graph"
)

// BuildRecord describes one graph build.
type BuildRecord struct {
	Token string
	Seq   int
	Time  time.Time
	Nodes []string
}

// WaveRecord describes one completed wave.
type WaveRecord struct {
	Build  string
	Reason string
	Wave   graph.WaveInfo
}

// PanicRecord describes one server panic.
type PanicRecord struct {
	Build   string
	Time    time.Time
	Reason  string
	Count   int
	Backoff time.Duration
}

// Recorder is told about builds, waves and panics as they happen. Calls
// arrive on the executor goroutine and must not block.
type Recorder interface {
	RecordBuild(b BuildRecord)
	RecordWave(w WaveRecord)
	RecordPanic(p PanicRecord)
}

type nopRecorder struct{}

func (nopRecorder) RecordBuild(BuildRecord) {}
func (nopRecorder) RecordWave(WaveRecord)   {}
func (nopRecorder) RecordPanic(PanicRecord) {}
