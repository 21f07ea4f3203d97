package node

import (
	"log/slog"
	"slices"
	"time"

	"github.com/roach88/wavectl/internal/graph"
	"github.com/roach88/wavectl/internal/sched"
)

// Driver is the owner of a graph: it runs waves on its executor.
type Driver interface {
	// Executor returns the executor whose goroutine owns the graph.
	Executor() sched.Executor

	// ScheduleNewWave asks for a wave to run. It must be called on the
	// executor goroutine.
	ScheduleNewWave(reason string)
}

// Option configures a Base.
type Option func(*Base)

// WithName sets an explicit node name. Without one the name assigned at
// registration is used.
func WithName(name string) Option {
	return func(b *Base) {
		b.name = name
	}
}

// WithLogger sets the logger. Defaults to slog.Default.
func WithLogger(l *slog.Logger) Option {
	return func(b *Base) {
		if l != nil {
			b.logger = l
		}
	}
}

// Base is embedded by server nodes. It implements every graph.Node method
// except Wave; embedders that override Initialise or Close must call
// through to Base.
type Base struct {
	name   string
	driver Driver
	logger *slog.Logger
	ctx    graph.NodeContext
	timers map[string]sched.Cancellable
	closed bool
}

// NewBase returns a Base bound to driver.
func NewBase(driver Driver, opts ...Option) Base {
	b := Base{
		driver: driver,
		logger: slog.Default(),
		timers: make(map[string]sched.Cancellable),
	}
	for _, opt := range opts {
		opt(&b)
	}
	return b
}

// Initialise implements graph.Node by binding the node context.
func (b *Base) Initialise(ctx graph.NodeContext) error {
	b.ctx = ctx
	if b.name == "" {
		b.name = ctx.Name()
	}
	return nil
}

// AfterWave implements graph.Node.
func (b *Base) AfterWave() error {
	return nil
}

// Close implements graph.Node. It cancels every outstanding timer.
func (b *Base) Close() error {
	b.closed = true
	for key, h := range b.timers {
		h.Cancel()
		delete(b.timers, key)
	}
	return nil
}

// Name returns the node name, or "" if neither set nor registered yet.
func (b *Base) Name() string {
	return b.name
}

// Context returns the node context, nil before Initialise.
func (b *Base) Context() graph.NodeContext {
	return b.ctx
}

// Driver returns the owning driver.
func (b *Base) Driver() Driver {
	return b.driver
}

// Logger returns the node's logger tagged with its name.
func (b *Base) Logger() *slog.Logger {
	return b.logger.With("node", b.name)
}

// Closed reports whether Close has been called.
func (b *Base) Closed() bool {
	return b.closed
}

// TriggerInNewWave marks this node pending and makes sure a wave runs.
func (b *Base) TriggerInNewWave(reason string) {
	b.inNewWave(reason, func() { b.ctx.Trigger() })
}

// TriggerMeAndParentsInNewWave marks this node and all its ancestors
// pending and makes sure a wave runs.
func (b *Base) TriggerMeAndParentsInNewWave(reason string) {
	b.inNewWave(reason, func() { b.ctx.TriggerWithParents() })
}

func (b *Base) inNewWave(reason string, mark func()) {
	if b.ctx == nil || b.closed {
		return
	}
	g := b.ctx.Graph()
	if g.OnOwner() && g.InWave() {
		mark()
		return
	}
	b.driver.Executor().Execute(func() {
		if b.closed || g.Closed() {
			return
		}
		mark()
		b.driver.ScheduleNewWave(reason)
	})
}

// ScheduleTimer runs task on the executor after delay, replacing any timer
// already registered under key. The timer is cancelled when the node
// closes.
func (b *Base) ScheduleTimer(key string, delay time.Duration, task func()) {
	b.CancelTimer(key)
	var h sched.Cancellable
	h = b.driver.Executor().Schedule(delay, func() {
		if b.timers[key] == h {
			delete(b.timers, key)
		}
		if b.closed {
			return
		}
		task()
	})
	b.timers[key] = h
}

// ScheduleRepeating runs task after initial and then every period until
// cancelled or the node closes.
func (b *Base) ScheduleRepeating(key string, initial, period time.Duration, task func()) {
	b.CancelTimer(key)
	b.timers[key] = b.driver.Executor().ScheduleAtFixedRate(initial, period, func() {
		if b.closed {
			return
		}
		task()
	})
}

// CancelTimer cancels the timer under key. It reports whether a pending
// run was stopped.
func (b *Base) CancelTimer(key string) bool {
	h, ok := b.timers[key]
	if !ok {
		return false
	}
	delete(b.timers, key)
	return h.Cancel()
}

// HasTimer reports whether a timer is registered under key.
func (b *Base) HasTimer(key string) bool {
	_, ok := b.timers[key]
	return ok
}

// Timers returns the registered timer keys, sorted.
func (b *Base) Timers() []string {
	keys := make([]string, 0, len(b.timers))
	for k := range b.timers {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// DumpState implements graph.StateDumper.
func (b *Base) DumpState() any {
	return map[string]any{"timers": b.Timers()}
}
