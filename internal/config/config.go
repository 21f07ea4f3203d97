package config

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/roach88/wavectl/internal/command"
	"github.com/roach88/wavectl/internal/server"
)

// Config is the full wavectl configuration.
type Config struct {
	Log     LogConfig     `json:"log" yaml:"log"`
	Command CommandConfig `json:"command" yaml:"command"`
	Server  ServerConfig  `json:"server" yaml:"server"`
	Journal JournalConfig `json:"journal" yaml:"journal"`
	Sim     SimConfig     `json:"sim" yaml:"sim"`
}

// LogConfig selects the slog handler.
type LogConfig struct {
	Level  string `json:"level" yaml:"level"`
	Format string `json:"format" yaml:"format"`
}

// CommandConfig bounds command retries.
type CommandConfig struct {
	MaxRetriesBeforeFatal int      `json:"max_retries_before_fatal" yaml:"max_retries_before_fatal"`
	RetryDelay            Duration `json:"retry_delay" yaml:"retry_delay"`
	PanicOnFatal          bool     `json:"panic_on_fatal" yaml:"panic_on_fatal"`
}

// ServerConfig bounds the panic loop.
type ServerConfig struct {
	PanicThreshold  int           `json:"panic_threshold" yaml:"panic_threshold"`
	PanicCountReset Duration      `json:"panic_count_reset" yaml:"panic_count_reset"`
	Backoff         BackoffConfig `json:"backoff" yaml:"backoff"`
}

// BackoffConfig shapes the rebuild delay.
type BackoffConfig struct {
	Initial    Duration `json:"initial" yaml:"initial"`
	Max        Duration `json:"max" yaml:"max"`
	Multiplier float64  `json:"multiplier" yaml:"multiplier"`
}

// JournalConfig locates the SQLite journal. An empty path disables it.
type JournalConfig struct {
	Path string `json:"path" yaml:"path"`
}

// SimConfig drives the simulated switch used by "wavectl run".
type SimConfig struct {
	Latency     Duration `json:"latency" yaml:"latency"`
	FailureRate float64  `json:"failure_rate" yaml:"failure_rate"`
	Seed        int64    `json:"seed" yaml:"seed"`
	ToggleEvery Duration `json:"toggle_every" yaml:"toggle_every"`
}

// Default returns the built-in configuration.
func Default() Config {
	cmd := command.DefaultConfig()
	srv := server.DefaultConfig()
	return Config{
		Log: LogConfig{Level: "info", Format: "text"},
		Command: CommandConfig{
			MaxRetriesBeforeFatal: cmd.MaxRetriesBeforeFatal,
			RetryDelay:            Duration(cmd.RetryDelay),
			PanicOnFatal:          cmd.PanicOnFatal,
		},
		Server: ServerConfig{
			PanicThreshold:  srv.PanicThreshold,
			PanicCountReset: Duration(srv.PanicCountReset),
			Backoff: BackoffConfig{
				Initial:    Duration(srv.Backoff.Initial),
				Max:        Duration(srv.Backoff.Max),
				Multiplier: srv.Backoff.Multiplier,
			},
		},
		Journal: JournalConfig{Path: "wavectl.db"},
		Sim: SimConfig{
			Latency:     Duration(200 * time.Millisecond),
			FailureRate: 0.2,
			Seed:        1,
			ToggleEvery: Duration(5 * time.Second),
		},
	}
}

// Validate reports every invalid field.
func (c Config) Validate() error {
	var errs []error
	bad := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	if _, err := c.Log.SlogLevel(); err != nil {
		errs = append(errs, err)
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		bad("log.format: must be text or json, got %q", c.Log.Format)
	}

	if c.Command.MaxRetriesBeforeFatal < 0 {
		bad("command.max_retries_before_fatal: must be >= 0, got %d", c.Command.MaxRetriesBeforeFatal)
	}
	if c.Command.RetryDelay <= 0 {
		bad("command.retry_delay: must be positive, got %s", c.Command.RetryDelay)
	}

	if c.Server.PanicThreshold < 0 {
		bad("server.panic_threshold: must be >= 0, got %d", c.Server.PanicThreshold)
	}
	if c.Server.PanicCountReset <= 0 {
		bad("server.panic_count_reset: must be positive, got %s", c.Server.PanicCountReset)
	}
	b := c.Server.Backoff
	if b.Initial <= 0 {
		bad("server.backoff.initial: must be positive, got %s", b.Initial)
	}
	if b.Max < b.Initial {
		bad("server.backoff.max: must be >= initial (%s), got %s", b.Initial, b.Max)
	}
	if b.Multiplier < 1 {
		bad("server.backoff.multiplier: must be >= 1, got %g", b.Multiplier)
	}

	if c.Sim.Latency < 0 {
		bad("sim.latency: must be >= 0, got %s", c.Sim.Latency)
	}
	if c.Sim.FailureRate < 0 || c.Sim.FailureRate > 1 {
		bad("sim.failure_rate: must be within [0, 1], got %g", c.Sim.FailureRate)
	}
	if c.Sim.ToggleEvery <= 0 {
		bad("sim.toggle_every: must be positive, got %s", c.Sim.ToggleEvery)
	}

	return errors.Join(errs...)
}

// SlogLevel parses the log level.
func (l LogConfig) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(l.Level)); err != nil {
		return 0, fmt.Errorf("log.level: %w", err)
	}
	return level, nil
}

// CommandConfig converts to the command package's configuration.
func (c Config) CommandConfig() command.Config {
	return command.Config{
		MaxRetriesBeforeFatal: c.Command.MaxRetriesBeforeFatal,
		RetryDelay:            c.Command.RetryDelay.D(),
		PanicOnFatal:          c.Command.PanicOnFatal,
	}
}

// ServerConfig converts to the server package's configuration.
func (c Config) ServerConfig() server.Config {
	return server.Config{
		PanicThreshold:  c.Server.PanicThreshold,
		PanicCountReset: c.Server.PanicCountReset.D(),
		Backoff: server.BackoffConfig{
			Initial:    c.Server.Backoff.Initial.D(),
			Max:        c.Server.Backoff.Max.D(),
			Multiplier: c.Server.Backoff.Multiplier,
		},
	}
}
