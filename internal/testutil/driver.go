package testutil

import (
	"time"

	"github.com/roach88/wavectl/internal/graph"
	"github.com/roach88/wavectl/internal/sched"
)

// WaveDriver owns a graph on a VirtualExecutor. ScheduleNewWave records
// the reason and runs waves until the graph is quiet.
type WaveDriver struct {
	Exec    *sched.VirtualExecutor
	Graph   *graph.Graph
	Reasons []string
	Errs    []error
}

// NewWaveDriver creates a driver whose graph and executor share a virtual
// clock starting at start.
func NewWaveDriver(start time.Time, opts ...graph.Option) *WaveDriver {
	exec := sched.NewVirtualExecutor(start)
	return &WaveDriver{
		Exec:  exec,
		Graph: graph.New(exec.Clock(), opts...),
	}
}

// Executor implements node.Driver.
func (d *WaveDriver) Executor() sched.Executor {
	return d.Exec
}

// ScheduleNewWave implements node.Driver.
func (d *WaveDriver) ScheduleNewWave(reason string) {
	d.Reasons = append(d.Reasons, reason)
	if d.Graph.InWave() || d.Graph.Closed() {
		return
	}
	if err := d.Graph.RunWaves(); err != nil {
		d.Errs = append(d.Errs, err)
	}
}

// Register registers n and panics on error.
func (d *WaveDriver) Register(name string, n graph.Node) graph.Node {
	if _, err := d.Graph.RegisterNode(name, n); err != nil {
		panic(err)
	}
	return n
}
