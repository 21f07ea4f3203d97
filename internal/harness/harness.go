package harness

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/roach88/wavectl/internal/graph"
	"github.com/roach88/wavectl/internal/sched"
	"github.com/roach88/wavectl/internal/testutil"
)

// epoch stamps every wave; the clock never moves during a scenario.
var epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// WaveTrace is one wave as observed by the harness.
type WaveTrace struct {
	ID      int64
	Visited []string
	Err     string
}

// StepTrace is the outcome of one step.
type StepTrace struct {
	Index  int
	Action string
	Err    string
	// Ranks is set after a subscribe step.
	Ranks string
	Waves []WaveTrace
}

// Result is the trace of a scenario run plus any failed expectations.
type Result struct {
	Name   string
	Ranks  string
	Steps  []StepTrace
	Errors []string
}

// Pass reports whether every expectation held.
func (r *Result) Pass() bool {
	return len(r.Errors) == 0
}

type harness struct {
	graph *graph.Graph
	order []string
	nodes map[string]*testutil.RecordingNode
	armed map[string][]string
	hook  []error
}

// Run builds the scenario's graph and runs its steps.
//
// Execution flow:
// 1. Register nodes in order, subscribing declared parents
// 2. Subscribe edges in order
// 3. Run each step: apply actions, then run waves until idle
// 4. Compare each step's waves and errors with its expectations
//
// The returned error covers only a graph that could not be built; failed
// expectations are reported in Result.Errors.
func Run(s *Scenario) (*Result, error) {
	h := &harness{
		graph: graph.New(sched.NewManualClock(epoch), graph.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))),
		nodes: make(map[string]*testutil.RecordingNode, len(s.Nodes)),
		armed: make(map[string][]string),
	}
	defer h.graph.Close()

	for _, spec := range s.Nodes {
		parents := make([]graph.Node, len(spec.Parents))
		for i, p := range spec.Parents {
			parents[i] = h.nodes[p]
		}
		n := testutil.NewRecordingNode(spec.Name, nil, parents...)
		n.Quiet = spec.Quiet
		n.OnWave = h.onWave(spec.Name)
		if _, err := h.graph.RegisterNode(spec.Name, n); err != nil {
			return nil, fmt.Errorf("register %s: %w", spec.Name, err)
		}
		h.nodes[spec.Name] = n
		h.order = append(h.order, spec.Name)
	}
	for _, e := range s.Edges {
		if err := h.graph.SubscribeTo(h.nodes[e.Child], h.nodes[e.Parent]); err != nil {
			return nil, fmt.Errorf("subscribe %s to %s: %w", e.Child, e.Parent, err)
		}
	}

	result := &Result{Name: s.Name, Ranks: h.ranks()}
	for i, st := range s.Steps {
		result.Steps = append(result.Steps, h.runStep(i+1, st, result))
	}
	return result, nil
}

func (h *harness) onWave(name string) func(graph.NodeContext) {
	return func(ctx graph.NodeContext) {
		targets, ok := h.armed[name]
		if !ok {
			return
		}
		delete(h.armed, name)
		for _, t := range targets {
			if err := ctx.Graph().Trigger(h.nodes[t]); err != nil {
				h.hook = append(h.hook, err)
			}
		}
	}
}

func (h *harness) runStep(index int, st Step, result *Result) StepTrace {
	trace := StepTrace{Index: index, Action: describe(st)}
	fail := func(format string, args ...any) {
		result.Errors = append(result.Errors, fmt.Sprintf("step %d: %s", index, fmt.Sprintf(format, args...)))
	}

	for _, n := range st.Loud {
		h.nodes[n].Quiet = false
	}
	for _, n := range st.Quiet {
		h.nodes[n].Quiet = true
	}
	for _, n := range st.Fail {
		h.nodes[n].WaveErr = fmt.Errorf("%s failed", n)
	}
	defer func() {
		for _, n := range st.Fail {
			h.nodes[n].WaveErr = nil
		}
	}()
	if st.OnWave != nil {
		h.armed[st.OnWave.Node] = st.OnWave.Trigger
	}

	var errs []error
	if e := st.Subscribe; e != nil {
		if err := h.graph.SubscribeTo(h.nodes[e.Child], h.nodes[e.Parent]); err != nil {
			errs = append(errs, err)
			trace.Err = errorLabel(err)
		}
		trace.Ranks = h.ranks()
	}
	for _, n := range st.Trigger {
		if err := h.graph.Trigger(h.nodes[n]); err != nil {
			errs = append(errs, err)
		}
	}
	for _, n := range st.TriggerWithParents {
		if err := h.graph.TriggerWithParents(h.nodes[n]); err != nil {
			errs = append(errs, err)
		}
	}
	if st.Close {
		if err := h.graph.Close(); err != nil {
			errs = append(errs, err)
		}
	}

	for {
		ran, err := h.graph.Wave()
		if !ran {
			if err != nil {
				errs = append(errs, err)
			}
			break
		}
		info := h.graph.LastWave()
		wt := WaveTrace{ID: info.ID, Visited: info.Visited}
		if err != nil {
			wt.Err = errorLabel(err)
			errs = append(errs, err)
		}
		trace.Waves = append(trace.Waves, wt)
		if err != nil {
			break
		}
	}
	errs = append(errs, h.hook...)
	h.hook = nil

	switch {
	case st.ExpectError != "":
		if !slices.ContainsFunc(errs, func(err error) bool { return matchError(err, st.ExpectError) }) {
			fail("expected error %q, got %v", st.ExpectError, errors.Join(errs...))
		}
	case len(errs) > 0:
		fail("unexpected error: %v", errors.Join(errs...))
	}

	if st.Expect != nil {
		got := make([][]string, len(trace.Waves))
		for i, w := range trace.Waves {
			got[i] = w.Visited
		}
		if !slices.EqualFunc(got, st.Expect, func(a, b []string) bool { return slices.Equal(a, b) }) {
			fail("expected waves %v, got %v", st.Expect, got)
		}
	}
	return trace
}

func (h *harness) ranks() string {
	parts := make([]string, len(h.order))
	for i, name := range h.order {
		r, _ := h.graph.Rank(h.nodes[name])
		parts[i] = fmt.Sprintf("%s:%d", name, r)
	}
	return strings.Join(parts, " ")
}

func describe(st Step) string {
	var parts []string
	add := func(verb string, names []string) {
		if len(names) > 0 {
			parts = append(parts, verb+" "+strings.Join(names, " "))
		}
	}
	add("loud", st.Loud)
	add("quiet", st.Quiet)
	add("fail", st.Fail)
	if st.OnWave != nil {
		parts = append(parts, fmt.Sprintf("on_wave %s->%s", st.OnWave.Node, strings.Join(st.OnWave.Trigger, ",")))
	}
	if st.Subscribe != nil {
		parts = append(parts, fmt.Sprintf("subscribe %s->%s", st.Subscribe.Child, st.Subscribe.Parent))
	}
	add("trigger", st.Trigger)
	add("trigger_with_parents", st.TriggerWithParents)
	if st.Close {
		parts = append(parts, "close")
	}
	if len(parts) == 0 {
		return "run"
	}
	return strings.Join(parts, "; ")
}

// errorLabel renders graph errors by code and node errors by node and
// message, keeping traces stable across message wording changes.
func errorLabel(err error) string {
	var ge *graph.GraphError
	if errors.As(err, &ge) {
		return string(ge.Code)
	}
	var we *graph.WaveError
	if errors.As(err, &we) {
		return fmt.Sprintf("node %s: %v", we.Node, we.Err)
	}
	return err.Error()
}

func matchError(err error, want string) bool {
	return graph.HasCode(err, graph.ErrorCode(want)) || strings.Contains(err.Error(), want)
}
