package graph

import (
	"context"
	"fmt"
	"log/slog"
)

// RunWaves runs waves until nothing is pending or a wave fails.
func (g *Graph) RunWaves() error {
	for {
		ran, err := g.Wave()
		if err != nil {
			return err
		}
		if !ran {
			return nil
		}
	}
}

// Wave runs a single wave. It reports false, without starting a wave, when
// nothing is pending.
//
// Nodes run in ascending (rank, id) order. After a node runs, the scan
// continues at the lowest pending node strictly above it, so children made
// pending by a change are picked up in the same wave while anything that
// became pending behind the cursor waits for the next one.
//
// An error from a node stops the scan; it is passed to the error handler
// and returned. AfterWave runs for every visited node either way.
func (g *Graph) Wave() (bool, error) {
	g.owner.check()
	if g.inWave.Load() {
		return false, newError(ErrCodeReentrantWave, "", "wave called from inside wave %d", g.waveID)
	}
	if g.pending.len() == 0 {
		return false, nil
	}

	g.waveID = g.waveSeq.Next()
	g.waveTime = g.clock.Now()
	g.inWave.Store(true)
	g.visited = g.visited[:0]

	err := g.scan()
	g.afterWave()

	g.lastWave = WaveInfo{
		ID:      g.waveID,
		Time:    g.waveTime,
		Visited: g.names(g.visited),
		Err:     err,
	}
	g.visited = g.visited[:0]
	g.inWave.Store(false)

	if err != nil {
		g.handleError(err)
		return true, err
	}
	return true, nil
}

func (g *Graph) scan() error {
	id, ok := g.pending.first()
	for ok {
		st := g.states[id]
		g.visited = append(g.visited, id)
		// Removed before running so a node that triggers itself lands in
		// the next wave.
		g.pending.remove(id)

		changed, err := g.runNode(st)
		if err != nil {
			return &WaveError{WaveID: g.waveID, Node: st.name, Err: err}
		}
		if changed {
			for _, c := range st.children {
				g.pending.add(c)
			}
		}

		id, ok = g.pending.higher(st.rank, st.id)
	}
	return nil
}

func (g *Graph) runNode(st *nodeState) (changed bool, err error) {
	dumper, dumps := st.node.(StateDumper)
	dumps = dumps && g.logger.Enabled(context.Background(), slog.LevelDebug)
	if dumps {
		g.logger.Debug("node wave starting", "node", st.name, "wave", g.waveID, "state", dumper.DumpState())
	}

	defer func() {
		if r := recover(); r != nil {
			changed, err = false, &PanicError{Value: r}
		}
		if dumps {
			g.logger.Debug("node wave finished", "node", st.name, "wave", g.waveID, "changed", changed, "state", dumper.DumpState())
		}
	}()

	return st.node.Wave()
}

func (g *Graph) afterWave() {
	for _, id := range g.visited {
		st := g.states[id]
		if err := g.runAfterWave(st); err != nil {
			g.logger.Error("after wave failed", "node", st.name, "wave", g.waveID, "error", err)
		}
	}
}

func (g *Graph) runAfterWave(st *nodeState) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Value: r}
		}
	}()
	return st.node.AfterWave()
}

func (g *Graph) handleError(err error) {
	if g.onError == nil {
		g.logger.Error("wave failed", "wave", g.waveID, "error", err)
		return
	}
	defer func() {
		if r := recover(); r != nil {
			g.logger.Error("wave error handler panicked", "wave", g.waveID, "error", err, "panic", fmt.Sprint(r))
		}
	}()
	g.onError(err)
}
