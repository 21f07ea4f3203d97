package cli

import (
	"errors"
	"io"
	"log/slog"
	"os"

	"github.com/roach88/wavectl/internal/config"
)

// Error codes reported in CLI error output.
const (
	ErrCodeGeneric        = "E001" // Generic/unknown error
	ErrCodeNotFound       = "E002" // Path not found
	ErrCodeConfigInvalid  = "E003" // Config failed to parse or validate
	ErrCodeScenarioLoad   = "E004" // Scenario failed to parse or build
	ErrCodeJournal        = "E005" // Journal open/read failure
	ErrCodeScenarioFailed = "E006" // Scenario expectations not met
)

// loadConfig returns the defaults when path is empty and config.Load
// otherwise, mapping failures to command errors.
func loadConfig(path string) (config.Config, error) {
	if path == "" {
		return config.Default(), nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return config.Config{}, exitErrorf(ExitCommandError, "config file not found: %s", path)
	}
	cfg, err := config.Load(path)
	if err != nil {
		return config.Config{}, exitErrorf(ExitCommandError, "invalid config: %w", err)
	}
	return cfg, nil
}

// configErrorLine returns the CUE line of a config error, or 0.
func configErrorLine(err error) int {
	var le *config.LoadError
	if errors.As(err, &le) && le.Pos.IsValid() {
		return le.Pos.Line()
	}
	return 0
}

// newLogger builds the process logger from the log section. Verbose forces
// debug level.
func newLogger(cfg config.LogConfig, verbose bool, w io.Writer) (*slog.Logger, error) {
	level, err := cfg.SlogLevel()
	if err != nil {
		return nil, err
	}
	if verbose {
		level = slog.LevelDebug
	}
	hopts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, hopts)), nil
	}
	return slog.New(slog.NewTextHandler(w, hopts)), nil
}

func isLoadError(err error) bool {
	var le *config.LoadError
	return errors.As(err, &le)
}
