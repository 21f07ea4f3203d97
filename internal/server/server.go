package server

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/roach88/wavectl/internal/graph"
	"github.com/roach88/wavectl/internal/sched"
)

// Runner is what node factories see of the server: a driver for
// node.Base and a panicker for command nodes.
type Runner interface {
	Executor() sched.Executor
	ScheduleNewWave(reason string)
	Panic(reason string)
}

// Registrator collects the nodes a factory creates. Nodes are registered
// in the order given, so parents must come before their children.
type Registrator interface {
	Register(name string, n graph.Node)
}

// NodeFactory creates the nodes of one build.
type NodeFactory func(runner Runner, reg Registrator) error

// PanicHandler is called once per panic, before teardown.
type PanicHandler func(reason string)

// BackoffConfig shapes the rebuild delay.
type BackoffConfig struct {
	Initial    time.Duration
	Max        time.Duration
	Multiplier float64
}

// Config bounds the panic loop.
type Config struct {
	// PanicThreshold is the panic count above which a reset is scheduled.
	PanicThreshold int
	// PanicCountReset is how long after crossing the threshold the count
	// returns to zero.
	PanicCountReset time.Duration
	Backoff         BackoffConfig
}

// DefaultConfig returns a threshold of 10 with a one-hour reset and a
// 1s..5m doubling backoff.
func DefaultConfig() Config {
	return Config{
		PanicThreshold:  10,
		PanicCountReset: time.Hour,
		Backoff: BackoffConfig{
			Initial:    time.Second,
			Max:        5 * time.Minute,
			Multiplier: 2,
		},
	}
}

// Option configures a Server.
type Option func(*Server)

// WithConfig replaces DefaultConfig.
func WithConfig(cfg Config) Option {
	return func(s *Server) { s.cfg = cfg }
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithRecorder attaches a recorder for builds, waves and panics.
func WithRecorder(r Recorder) Option {
	return func(s *Server) {
		if r != nil {
			s.recorder = r
		}
	}
}

// WithTokenGenerator replaces the UUIDv7 build token generator.
func WithTokenGenerator(g BuildTokenGenerator) Option {
	return func(s *Server) { s.tokens = g }
}

// WithPanicHandler sets a hook called on every panic.
func WithPanicHandler(h PanicHandler) Option {
	return func(s *Server) { s.onPanic = h }
}

// Server owns one graph at a time and rebuilds it after panics.
type Server struct {
	exec     sched.Executor
	factory  NodeFactory
	cfg      Config
	logger   *slog.Logger
	recorder Recorder
	tokens   BuildTokenGenerator
	onPanic  PanicHandler

	graph   *graph.Graph
	build   BuildRecord
	builds  int
	started bool
	closed  bool

	panicking   bool
	panicReason string
	panicCount  int
	resetTimer  sched.Cancellable
	rebuild     sched.Cancellable
	backoff     *backoff.ExponentialBackOff
}

// New creates a server. Nothing runs until Start.
func New(exec sched.Executor, factory NodeFactory, opts ...Option) *Server {
	s := &Server{
		exec:     exec,
		factory:  factory,
		cfg:      DefaultConfig(),
		logger:   slog.Default(),
		recorder: nopRecorder{},
		tokens:   UUIDv7Generator{},
	}
	for _, opt := range opts {
		opt(s)
	}
	s.backoff = newBackoff(s.cfg.Backoff, exec.Clock())
	return s
}

func newBackoff(cfg BackoffConfig, clock sched.Clock) *backoff.ExponentialBackOff {
	b := &backoff.ExponentialBackOff{
		InitialInterval:     cfg.Initial,
		RandomizationFactor: 0,
		Multiplier:          cfg.Multiplier,
		MaxInterval:         cfg.Max,
		MaxElapsedTime:      0,
		Stop:                backoff.Stop,
		Clock:               clock,
	}
	b.Reset()
	return b
}

// Start queues the first build on the executor. Later calls are ignored.
func (s *Server) Start() {
	s.exec.Execute(func() {
		if s.closed || s.started {
			s.logger.Warn("server start ignored", "closed", s.closed, "started", s.started)
			return
		}
		s.started = true
		s.logger.Info("server starting")
		s.doBuild()
	})
}

// Close tears the graph down and stops all rebuilds. It waits for the
// executor to run the shutdown or for ctx to end.
func (s *Server) Close(ctx context.Context) error {
	return s.exec.Submit(s.Shutdown).Wait(ctx)
}

// Shutdown is Close for callers already on the executor goroutine.
func (s *Server) Shutdown() error {
	if s.closed {
		return nil
	}
	s.closed = true
	if s.rebuild != nil {
		s.rebuild.Cancel()
		s.rebuild = nil
	}
	if s.resetTimer != nil {
		s.resetTimer.Cancel()
		s.resetTimer = nil
	}
	s.logger.Info("server closing", "build", s.build.Token)
	return s.teardown()
}

// Executor implements Runner.
func (s *Server) Executor() sched.Executor {
	return s.exec
}

// ScheduleNewWave runs waves until the graph is quiet. It is a no-op
// inside a wave, after Close, and while panicking.
func (s *Server) ScheduleNewWave(reason string) {
	g := s.graph
	if g == nil || g.InWave() || g.Closed() || s.closed || s.panicking {
		return
	}
	s.runWaves(reason)
}

func (s *Server) runWaves(reason string) {
	for s.graph != nil && !s.panicking && !s.closed {
		ran, err := s.graph.Wave()
		if !ran {
			return
		}
		s.recorder.RecordWave(WaveRecord{Build: s.build.Token, Reason: reason, Wave: s.graph.LastWave()})
		if err != nil {
			return
		}
		if !s.panicking {
			s.backoff.Reset()
		}
	}
}

func (s *Server) doBuild() {
	if s.closed {
		return
	}
	s.builds++
	token := s.tokens.Generate()
	g := graph.New(s.exec.Clock(), graph.WithLogger(s.logger), graph.WithErrorHandler(s.handleWaveError))
	s.graph = g
	s.build = BuildRecord{Token: token, Seq: s.builds, Time: s.exec.Clock().Now()}

	reg := &registrator{}
	if err := s.factory(s, reg); err != nil {
		s.Panic(fmt.Sprintf("create nodes: %v", err))
		return
	}
	for _, e := range reg.entries {
		if _, err := g.RegisterNode(e.name, e.node); err != nil {
			s.Panic(fmt.Sprintf("register %s: %v", e.name, err))
			return
		}
	}
	for _, n := range g.Nodes() {
		name, _ := g.Name(n)
		s.build.Nodes = append(s.build.Nodes, name)
	}

	s.logger.Info("graph built", "build", token, "seq", s.builds, "nodes", g.Len())
	s.recorder.RecordBuild(s.build)
	s.runWaves("initial")
}

func (s *Server) handleWaveError(err error) {
	s.Panic(err.Error())
}

func (s *Server) teardown() error {
	g := s.graph
	if g == nil {
		return nil
	}
	if g.InWave() {
		// Closing mid-wave fails; finish the wave first.
		s.exec.Execute(func() {
			if err := s.teardown(); err != nil {
				s.logger.Error("deferred teardown failed", "error", err)
			}
		})
		return nil
	}
	s.graph = nil
	if err := g.Close(); err != nil {
		s.logger.Error("graph close failed", "build", s.build.Token, "error", err)
		return fmt.Errorf("close graph %s: %w", s.build.Token, err)
	}
	return nil
}

// Graph returns the live graph, or nil between builds.
func (s *Server) Graph() *graph.Graph {
	return s.graph
}

// Build returns the current build record.
func (s *Server) Build() BuildRecord {
	return s.build
}

// Builds returns how many builds have started.
func (s *Server) Builds() int {
	return s.builds
}

// Closed reports whether Close has run.
func (s *Server) Closed() bool {
	return s.closed
}

type registration struct {
	name string
	node graph.Node
}

type registrator struct {
	entries []registration
}

func (r *registrator) Register(name string, n graph.Node) {
	r.entries = append(r.entries, registration{name: name, node: n})
}
