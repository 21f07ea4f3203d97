package graph

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/text/unicode/norm"

	"github.com/roach88/wavectl/internal/sched"
)

// ErrorHandler receives errors raised by nodes during a wave.
type ErrorHandler func(err error)

// Graph owns all nodes, their dependency edges, ranks, the pending set and
// the wave loop.
//
// Thread-safety model:
//   - Every method except InWave and OnOwner must be called from the owner
//     goroutine (the first goroutine to call in).
//   - InWave and OnOwner are safe from any goroutine.
type Graph struct {
	clock   sched.Clock
	logger  *slog.Logger
	onError ErrorHandler
	owner   ownerGuard

	states  []*nodeState
	index   map[Node]int
	pending *pendingSet
	visited []int

	inWave       atomic.Bool
	closed       bool
	initialising bool

	waveSeq  sched.Sequence
	waveID   int64
	waveTime time.Time
	lastWave WaveInfo
}

// Option configures a Graph.
type Option func(*Graph)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(g *Graph) {
		g.logger = l
	}
}

// WithErrorHandler sets the handler for errors raised during a wave.
// Without one, wave errors are logged.
func WithErrorHandler(h ErrorHandler) Option {
	return func(g *Graph) {
		g.onError = h
	}
}

// New creates an empty graph whose waves are stamped from clock.
func New(clock sched.Clock, opts ...Option) *Graph {
	g := &Graph{
		clock:  clock,
		logger: slog.Default(),
		index:  make(map[Node]int),
	}
	g.pending = newPendingSet(g)
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// RegisterNode adds node under name, calls its Initialise and marks it
// pending so its initial state is computed in the next wave.
//
// An empty name defaults to the node's type. If Initialise fails, the
// registration and any subscriptions it made are undone.
func (g *Graph) RegisterNode(name string, node Node) (Node, error) {
	g.owner.check()

	name = normalizeName(name, node)
	if g.closed {
		return nil, newError(ErrCodeClosed, name, "cannot register node on a closed graph")
	}
	if g.inWave.Load() {
		return nil, newError(ErrCodeInWave, name, "cannot register node during a wave")
	}
	if g.initialising {
		return nil, newError(ErrCodeNestedRegister, name, "cannot register node from inside Initialise")
	}
	if existing, ok := g.index[node]; ok {
		return nil, newError(ErrCodeDuplicateNode, name, "node already registered as %q", g.states[existing].name)
	}

	id := len(g.states)
	st := &nodeState{id: id, name: name, node: node, rank: 1}
	g.states = append(g.states, st)
	g.index[node] = id

	if err := g.initialise(st); err != nil {
		g.unregisterLast()
		return nil, &GraphError{
			Code:    ErrCodeInitialise,
			Node:    name,
			Message: fmt.Sprintf("initialise failed: %v", err),
		}
	}

	g.pending.add(id)
	g.logger.Debug("node registered", "node", name, "id", id, "rank", st.rank)
	return node, nil
}

func (g *Graph) initialise(st *nodeState) error {
	g.initialising = true
	defer func() { g.initialising = false }()
	return st.node.Initialise(&nodeContext{g: g, id: st.id})
}

// unregisterLast removes the most recently added node and its edges. Only
// valid from inside RegisterNode: nested registration is rejected, so the
// node being initialised is always last and has no children.
func (g *Graph) unregisterLast() {
	id := len(g.states) - 1
	st := g.states[id]
	for _, p := range st.parents {
		ps := g.states[p]
		ps.children = removeID(ps.children, id)
	}
	g.pending.remove(id)
	delete(g.index, st.node)
	g.states = g.states[:id]
}

// SubscribeTo makes child depend on parent.
//
// Fails if called during a wave, if either node is unknown, if the edge
// already exists, or if it would create a cycle. A rejected edge leaves
// edges and ranks untouched.
func (g *Graph) SubscribeTo(child, parent Node) error {
	g.owner.check()

	if g.closed {
		return newError(ErrCodeClosed, "", "cannot subscribe on a closed graph")
	}
	if g.inWave.Load() {
		return newError(ErrCodeInWave, g.nameOf(child), "cannot subscribe during a wave")
	}
	ci, ok := g.index[child]
	if !ok {
		return newError(ErrCodeUnknownNode, fmt.Sprintf("%T", child), "child is not registered")
	}
	pi, ok := g.index[parent]
	if !ok {
		return newError(ErrCodeUnknownNode, fmt.Sprintf("%T", parent), "parent is not registered")
	}

	cs, ps := g.states[ci], g.states[pi]
	if containsID(cs.parents, pi) {
		return newError(ErrCodeDuplicateEdge, cs.name, "already subscribed to %q", ps.name)
	}

	// The new edge closes a cycle iff parent is already reachable from child.
	if path := g.pathBetween(ci, pi); path != nil {
		names := make([]string, 0, len(path)+1)
		for _, id := range path {
			names = append(names, g.states[id].name)
		}
		names = append(names, cs.name)
		return &GraphError{
			Code:    ErrCodeCycleDetected,
			Node:    ps.name,
			Path:    names,
			Message: fmt.Sprintf("subscribing %q to %q would create a cycle", cs.name, ps.name),
		}
	}

	cs.parents = append(cs.parents, pi)
	ps.children = append(ps.children, ci)

	g.rerank(g.markForRanking(ci))
	g.pending.resort()

	g.logger.Debug("node subscribed", "child", cs.name, "parent", ps.name, "rank", cs.rank)
	return nil
}

// Trigger marks node pending.
func (g *Graph) Trigger(node Node) error {
	g.owner.check()
	id, ok := g.index[node]
	if !ok {
		return newError(ErrCodeUnknownNode, fmt.Sprintf("%T", node), "cannot trigger unregistered node")
	}
	g.trigger(id)
	return nil
}

// TriggerWithParents marks node and all of its ancestors pending.
func (g *Graph) TriggerWithParents(node Node) error {
	g.owner.check()
	id, ok := g.index[node]
	if !ok {
		return newError(ErrCodeUnknownNode, fmt.Sprintf("%T", node), "cannot trigger unregistered node")
	}
	g.triggerWithParents(id)
	return nil
}

func (g *Graph) trigger(id int) {
	if g.closed {
		return
	}
	g.pending.add(id)
}

func (g *Graph) triggerWithParents(id int) {
	if g.closed {
		return
	}
	seen := map[int]bool{id: true}
	stack := []int{id}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		g.pending.add(n)
		for _, p := range g.states[n].parents {
			if !seen[p] {
				seen[p] = true
				stack = append(stack, p)
			}
		}
	}
}

// Close closes every node in reverse registration order and clears all
// pending bookkeeping. Calling Close again is a no-op.
func (g *Graph) Close() error {
	g.owner.check()
	if g.inWave.Load() {
		return newError(ErrCodeInWave, "", "cannot close during a wave")
	}
	if g.closed {
		return nil
	}
	g.closed = true
	g.pending.clear()
	g.visited = nil

	var errs []error
	for i := len(g.states) - 1; i >= 0; i-- {
		if err := g.closeState(g.states[i]); err != nil {
			errs = append(errs, err)
		}
	}
	g.logger.Debug("graph closed", "nodes", len(g.states), "errors", len(errs))
	return errors.Join(errs...)
}

func (g *Graph) closeState(st *nodeState) (err error) {
	if st.closed {
		return nil
	}
	st.closed = true
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("close %s: %w", st.name, &PanicError{Value: r})
		}
		if err != nil {
			g.logger.Error("node close failed", "node", st.name, "error", err)
		}
	}()
	if cerr := st.node.Close(); cerr != nil {
		return fmt.Errorf("close %s: %w", st.name, cerr)
	}
	return nil
}

// Closed reports whether Close has been called.
func (g *Graph) Closed() bool {
	return g.closed
}

// InWave reports whether a wave is executing. Safe from any goroutine.
func (g *Graph) InWave() bool {
	return g.inWave.Load()
}

// OnOwner reports whether the caller is the owner goroutine. Safe from any
// goroutine; it never claims ownership.
func (g *Graph) OnOwner() bool {
	return g.owner.onOwner()
}

// WaveID returns the id of the current or most recent wave (0 before the
// first wave).
func (g *Graph) WaveID() int64 {
	return g.waveID
}

// WaveTime returns the instant stamped at the start of the current or most
// recent wave.
func (g *Graph) WaveTime() time.Time {
	return g.waveTime
}

// LastWave describes the most recently completed wave.
func (g *Graph) LastWave() WaveInfo {
	return g.lastWave
}

// Len returns the number of registered nodes.
func (g *Graph) Len() int {
	return len(g.states)
}

// Nodes returns every node in registration order.
func (g *Graph) Nodes() []Node {
	out := make([]Node, len(g.states))
	for i, st := range g.states {
		out[i] = st.node
	}
	return out
}

// NodeByName returns the first node registered under name.
func (g *Graph) NodeByName(name string) (Node, bool) {
	name = norm.NFC.String(strings.TrimSpace(name))
	for _, st := range g.states {
		if st.name == name {
			return st.node, true
		}
	}
	return nil, false
}

// Name returns the registered name of node.
func (g *Graph) Name(node Node) (string, bool) {
	id, ok := g.index[node]
	if !ok {
		return "", false
	}
	return g.states[id].name, true
}

// Rank returns node's rank.
func (g *Graph) Rank(node Node) (int, bool) {
	id, ok := g.index[node]
	if !ok {
		return 0, false
	}
	return g.states[id].rank, true
}

// Parents returns the names of node's parents in subscription order.
func (g *Graph) Parents(node Node) []string {
	id, ok := g.index[node]
	if !ok {
		return nil
	}
	return g.names(g.states[id].parents)
}

// Children returns the names of node's children in subscription order.
func (g *Graph) Children(node Node) []string {
	id, ok := g.index[node]
	if !ok {
		return nil
	}
	return g.names(g.states[id].children)
}

// Pending returns the names of pending nodes in execution order.
func (g *Graph) Pending() []string {
	return g.names(g.pending.snapshot())
}

// IsPending reports whether node is pending.
func (g *Graph) IsPending(node Node) bool {
	id, ok := g.index[node]
	return ok && g.pending.contains(id)
}

func (g *Graph) names(ids []int) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = g.states[id].name
	}
	return out
}

func (g *Graph) nameOf(node Node) string {
	if id, ok := g.index[node]; ok {
		return g.states[id].name
	}
	return fmt.Sprintf("%T", node)
}

func normalizeName(name string, node Node) string {
	name = norm.NFC.String(strings.TrimSpace(name))
	if name == "" {
		name = fmt.Sprintf("%T", node)
	}
	return name
}

func containsID(ids []int, id int) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

func removeID(ids []int, id int) []int {
	for i, v := range ids {
		if v == id {
			return append(ids[:i], ids[i+1:]...)
		}
	}
	return ids
}
