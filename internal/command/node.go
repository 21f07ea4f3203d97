package command

import (
	"fmt"
	"reflect"
	"time"

	"github.com/roach88/wavectl/internal/graph"
	"github.com/roach88/wavectl/internal/node"
)

const retryTimer = "retry"

// Config bounds the retry loop.
type Config struct {
	// MaxRetriesBeforeFatal is the number of resends allowed after the
	// first send before the failure is fatal.
	MaxRetriesBeforeFatal int
	// RetryDelay is the wait after each send before a retry is due.
	RetryDelay time.Duration
	// PanicOnFatal panics the server on an accepted fatal failure instead
	// of only logging it.
	PanicOnFatal bool
}

// DefaultConfig returns three retries ten seconds apart, panicking on
// fatal failure.
func DefaultConfig() Config {
	return Config{
		MaxRetriesBeforeFatal: 3,
		RetryDelay:            10 * time.Second,
		PanicOnFatal:          true,
	}
}

// Option configures a RequestNode.
type Option func(*options)

type options struct {
	cfg      Config
	parents  []graph.Node
	sink     EventSink
	panicker Panicker
	base     []node.Option
}

// WithConfig replaces DefaultConfig.
func WithConfig(cfg Config) Option {
	return func(o *options) { o.cfg = cfg }
}

// WithParents subscribes the node to parents, typically the nodes holding
// observed device state.
func WithParents(parents ...graph.Node) Option {
	return func(o *options) { o.parents = append(o.parents, parents...) }
}

// WithEventSink routes request events to sink.
func WithEventSink(sink EventSink) Option {
	return func(o *options) { o.sink = sink }
}

// WithPanicker overrides the panicker. By default the driver is used when
// it implements Panicker.
func WithPanicker(p Panicker) Option {
	return func(o *options) { o.panicker = p }
}

// WithNodeOptions passes options through to node.Base.
func WithNodeOptions(opts ...node.Option) Option {
	return func(o *options) { o.base = append(o.base, opts...) }
}

// RequestNode owns at most one in-flight DeviceRequest and retries it
// until device state confirms it.
//
// All methods must be called on the driver's executor goroutine.
type RequestNode[T any] struct {
	node.Base

	device   Device[T]
	cfg      Config
	parents  []graph.Node
	sink     EventSink
	panicker Panicker
	equal    func(a, b T) bool

	seq         int64
	current     *DeviceRequest[T]
	retryCount  int
	retryDue    bool
	lastFailure string
}

// NewRequestNode returns a node sending commands through device.
func NewRequestNode[T any](driver node.Driver, device Device[T], opts ...Option) *RequestNode[T] {
	o := options{cfg: DefaultConfig()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.panicker == nil {
		if p, ok := driver.(Panicker); ok {
			o.panicker = p
		}
	}
	return &RequestNode[T]{
		Base:     node.NewBase(driver, o.base...),
		device:   device,
		cfg:      o.cfg,
		parents:  o.parents,
		sink:     o.sink,
		panicker: o.panicker,
		equal:    func(a, b T) bool { return reflect.DeepEqual(a, b) },
	}
}

// SetPayloadEqual replaces the DeepEqual payload comparison used to tell an
// idempotent re-request from a superseding one.
func (n *RequestNode[T]) SetPayloadEqual(eq func(a, b T) bool) {
	n.equal = eq
}

// Initialise implements graph.Node.
func (n *RequestNode[T]) Initialise(ctx graph.NodeContext) error {
	if err := n.Base.Initialise(ctx); err != nil {
		return err
	}
	for _, p := range n.parents {
		if err := ctx.SubscribeTo(p); err != nil {
			return fmt.Errorf("subscribe %s: %w", n.Name(), err)
		}
	}
	return nil
}

// Wave implements graph.Node.
func (n *RequestNode[T]) Wave() (bool, error) {
	req := n.current
	if req == nil {
		n.resetRetry()
		return false, nil
	}

	if f, ok := n.device.(Forgetter[T]); ok && f.ShouldForgetRequest(req) {
		n.emit(req, EventForgotten, "")
		n.clear()
		return true, nil
	}

	if !req.sent {
		if !n.device.StateValidForRequestToBeSent(req.payload) {
			return false, nil
		}
		req = req.asSent()
		n.current = req
		n.doExecute(req)
		return true, nil
	}

	if n.device.StateIndicatesRequestSuccessful(req.payload) {
		n.emit(req, EventConfirmed, "")
		n.clear()
		return true, nil
	}
	if req.failed || !n.retryDue {
		return false, nil
	}

	// A deferred retry still counts against the budget.
	n.retryCount++
	switch {
	case n.retryCount == 0:
		// Manual retry: send now regardless of device state.
	case n.retryCount > n.cfg.MaxRetriesBeforeFatal:
		return n.fatal(req)
	case !n.device.StateValidForRequestToBeSent(req.payload):
		return false, nil
	}
	n.retryDue = false
	n.doExecute(req)
	return true, nil
}

func (n *RequestNode[T]) fatal(req *DeviceRequest[T]) (bool, error) {
	decision := AcceptFailure
	if h, ok := n.device.(FatalHandler[T]); ok {
		decision = h.OnCommandFailedFatally(req, n.lastFailure, n.TriggerRetry)
	}
	n.emit(req, EventFatal, decision.String())

	if decision == KeepRetrying {
		last := n.lastFailure
		n.CancelTimer(retryTimer)
		n.resetRetry()
		n.Logger().Warn("command retries exhausted, waiting for manual retry",
			"request", req.String(), "last_failure", last)
		return false, nil
	}

	reason := fmt.Sprintf("command %s failed after %d retries", req, n.cfg.MaxRetriesBeforeFatal)
	if n.lastFailure != "" {
		reason += ": " + n.lastFailure
	}
	n.current = req.asFailed(n.lastFailure)
	n.retryDue = false
	n.CancelTimer(retryTimer)

	if n.cfg.PanicOnFatal && n.panicker != nil {
		n.panicker.Panic(reason)
	} else {
		n.Logger().Error("command failed fatally", "request", n.current.String(), "reason", reason)
	}
	return true, nil
}

func (n *RequestNode[T]) doExecute(req *DeviceRequest[T]) {
	n.emit(req, EventSent, "")
	n.Logger().Debug("sending command", "request", req.String(), "retry", n.retryCount)

	exec := n.Driver().Executor()
	n.device.SendCommand(n.retryCount, req.payload, func(reason string) {
		exec.Execute(func() { n.onFailure(req, reason) })
	})

	n.ScheduleTimer(retryTimer, n.cfg.RetryDelay, func() {
		if !n.isCurrent(req) {
			return
		}
		n.retryDue = true
		n.emit(req, EventRetryDue, "")
		n.TriggerMeAndParentsInNewWave("retry due for " + n.Name())
	})
}

func (n *RequestNode[T]) onFailure(req *DeviceRequest[T], reason string) {
	if !n.isCurrent(req) {
		n.emit(req, EventStale, reason)
		n.Logger().Warn("discarding stale command failure", "request", req.String(), "reason", reason)
		return
	}
	n.lastFailure = reason
	n.emit(req, EventFailure, reason)
	n.Logger().Info("command failed", "request", req.String(), "retry", n.retryCount, "reason", reason)
}

// CreateRequest installs a request for payload unless an equal one is
// already in progress. A different payload supersedes the current request
// and resets the retry budget. It returns the request now current.
func (n *RequestNode[T]) CreateRequest(name string, payload T) *DeviceRequest[T] {
	if cur := n.current; cur != nil {
		if n.equal(cur.payload, payload) {
			return cur
		}
		n.emit(cur, EventSuperseded, "")
		n.CancelTimer(retryTimer)
	}

	n.seq++
	req := &DeviceRequest[T]{
		id:      n.seq,
		name:    name,
		payload: payload,
		created: n.now(),
	}
	n.current = req
	n.resetRetry()
	n.emit(req, EventCreated, "")
	n.TriggerInNewWave("request " + req.String())
	return req
}

// TriggerRetry resends the current request on the next wave regardless of
// device state. The resend starts a fresh retry budget.
func (n *RequestNode[T]) TriggerRetry() {
	req := n.current
	if req == nil || !req.sent || req.failed {
		return
	}
	n.retryCount = -1
	n.retryDue = true
	n.emit(req, EventRetryManual, "")
	n.TriggerMeAndParentsInNewWave("manual retry for " + n.Name())
}

// Current returns the in-progress request, or nil.
func (n *RequestNode[T]) Current() *DeviceRequest[T] {
	return n.current
}

// RetryCount returns the number of resends of the current request.
func (n *RequestNode[T]) RetryCount() int {
	return n.retryCount
}

// RetryDue reports whether a retry timer has fired and not been served.
func (n *RequestNode[T]) RetryDue() bool {
	return n.retryDue
}

// LastFailure returns the most recent failure reported for the current
// request.
func (n *RequestNode[T]) LastFailure() string {
	return n.lastFailure
}

// DumpState implements graph.StateDumper.
func (n *RequestNode[T]) DumpState() any {
	state := map[string]any{
		"retry_count": n.retryCount,
		"retry_due":   n.retryDue,
		"timers":      n.Timers(),
	}
	if n.current != nil {
		state["request"] = n.current.String()
	}
	if n.lastFailure != "" {
		state["last_failure"] = n.lastFailure
	}
	return state
}

// isCurrent reports whether req is still the live, unfailed request.
// Transitions replace the value, so identity is the request ID.
func (n *RequestNode[T]) isCurrent(req *DeviceRequest[T]) bool {
	return n.current != nil && n.current.id == req.id && !n.current.failed
}

func (n *RequestNode[T]) clear() {
	n.current = nil
	n.CancelTimer(retryTimer)
	n.resetRetry()
}

func (n *RequestNode[T]) resetRetry() {
	n.retryCount = 0
	n.retryDue = false
	n.lastFailure = ""
}

func (n *RequestNode[T]) now() time.Time {
	return n.Driver().Executor().Clock().Now()
}

func (n *RequestNode[T]) emit(req *DeviceRequest[T], kind EventKind, detail string) {
	if n.sink == nil {
		return
	}
	n.sink.RecordCommandEvent(Event{
		Time:      n.now(),
		Node:      n.Name(),
		RequestID: req.id,
		Request:   req.name,
		Kind:      kind,
		Retry:     n.retryCount,
		Payload:   fmt.Sprint(req.payload),
		Detail:    detail,
	})
}
