package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/wavectl/internal/journal"
	"github.com/roach88/wavectl/internal/sched"
	"github.com/roach88/wavectl/internal/server"
	"github.com/roach88/wavectl/internal/sim"
)

// shutdownTimeout bounds how long run waits for the graph to tear down.
const shutdownTimeout = 5 * time.Second

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Config   string
	Database string
	Duration time.Duration

	// TokenGenerator overrides build tokens (for testing). Defaults to
	// UUIDv7Generator.
	TokenGenerator server.BuildTokenGenerator
}

// RunSummary is printed when run stops.
type RunSummary struct {
	Builds     int    `json:"builds"`
	Panics     int    `json:"panics"`
	LastBuild  string `json:"last_build"`
	Sends      int    `json:"sends"`
	SwitchOn   bool   `json:"switch_on"`
	Journal    string `json:"journal,omitempty"`
	WriteFails int64  `json:"write_failures"`
}

func (s RunSummary) String() string {
	return fmt.Sprintf("builds=%d panics=%d last_build=%s sends=%d switch_on=%t journal=%q write_failures=%d",
		s.Builds, s.Panics, s.LastBuild, s.Sends, s.SwitchOn, s.Journal, s.WriteFails)
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	return newRunCommand(&RunOptions{RootOptions: rootOpts})
}

func newRunCommand(opts *RunOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the simulated switch topology",
		Long: `Run the demo topology against a simulated switch.

A desired-state schedule toggles the switch; a command node sends each
change, retries unacknowledged commands and panics the server when the
retry budget runs out. The server then rebuilds the graph after an
exponential backoff. Builds, waves, panics and command events are written
to the SQLite journal.

Examples:
  wavectl run --duration 30s
  wavectl run --config wavectl.cue --db /tmp/wavectl.db --verbose`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Config, "config", "", "path to a .cue or .yaml config (defaults apply when empty)")
	cmd.Flags().StringVar(&opts.Database, "db", "", "journal path (overrides journal.path)")
	cmd.Flags().DurationVar(&opts.Duration, "duration", 0, "stop after this long (0 runs until interrupted)")

	return cmd
}

func runServer(opts *RunOptions, cmd *cobra.Command) error {
	cfg, err := loadConfig(opts.Config)
	if err != nil {
		return err
	}
	if opts.Database != "" {
		cfg.Journal.Path = opts.Database
	}
	logger, err := newLogger(cfg.Log, opts.Verbose, cmd.ErrOrStderr())
	if err != nil {
		return exitErrorf(ExitCommandError, "invalid log config: %w", err)
	}

	var (
		jnl      *journal.Journal
		recorder server.Recorder
		topoOpts = sim.Options{
			ToggleEvery: cfg.Sim.ToggleEvery.D(),
			Command:     cfg.CommandConfig(),
		}
	)
	if cfg.Journal.Path != "" {
		logger.Info("opening journal", "path", cfg.Journal.Path)
		jnl, err = journal.Open(cfg.Journal.Path, journal.WithLogger(logger))
		if err != nil {
			return exitErrorf(ExitCommandError, "failed to open journal: %w", err)
		}
		defer func() {
			if closeErr := jnl.Close(); closeErr != nil {
				logger.Error("error closing journal", "error", closeErr)
			}
		}()
		recorder = jnl
		topoOpts.Sink = jnl
	}

	exec := sched.NewLoopExecutor(sched.WithLoopLogger(logger))
	sw := sim.NewSwitch(exec, cfg.Sim.Latency.D(), cfg.Sim.FailureRate, cfg.Sim.Seed)
	topo := sim.NewTopology(sw, topoOpts)

	srvOpts := []server.Option{
		server.WithConfig(cfg.ServerConfig()),
		server.WithLogger(logger),
	}
	if recorder != nil {
		srvOpts = append(srvOpts, server.WithRecorder(recorder))
	}
	if opts.TokenGenerator != nil {
		srvOpts = append(srvOpts, server.WithTokenGenerator(opts.TokenGenerator))
	}
	srv := server.New(exec, topo.Factory, srvOpts...)

	ctx, cancel := runContext(cmd, opts.Duration)
	defer cancel()

	execDone := make(chan error, 1)
	go func() {
		execDone <- exec.Run(context.Background())
	}()

	logger.Info("server starting", "journal", cfg.Journal.Path, "duration", opts.Duration)
	srv.Start()
	<-ctx.Done()

	closeCtx, closeCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer closeCancel()
	if err := srv.Close(closeCtx); err != nil {
		logger.Error("server close failed", "error", err)
	}
	exec.Stop()
	if err := <-execDone; err != nil {
		logger.Error("executor stopped with error", "error", err)
	}
	logger.Info("server stopped gracefully")

	summary := RunSummary{
		Builds:    srv.Builds(),
		Panics:    srv.PanicCount(),
		LastBuild: srv.Build().Token,
		Sends:     sw.Sends(),
		SwitchOn:  sw.On(),
		Journal:   cfg.Journal.Path,
	}
	if jnl != nil {
		if err := jnl.Flush(closeCtx); err != nil {
			logger.Error("journal flush failed", "error", err)
		}
		summary.WriteFails = jnl.Failures()
	}
	return opts.printer(cmd).result(summary.String()+"\n", summary)
}

// runContext is cancelled by SIGINT/SIGTERM, by the command's own context
// and, when d > 0, after d.
func runContext(cmd *cobra.Command, d time.Duration) (context.Context, context.CancelFunc) {
	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	if d <= 0 {
		return ctx, stop
	}
	timed, cancel := context.WithTimeout(ctx, d)
	return timed, func() {
		cancel()
		stop()
	}
}
