package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/wavectl/internal/config"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid  bool           `json:"valid"`
	Path   string         `json:"path"`
	Config *config.Config `json:"config,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <config>",
		Short: "Validate a config file",
		Long: `Validate a .cue, .yaml or .yml config file.

CUE files are unified with the built-in schema, so unknown fields and out
of range values are reported with their position. YAML files are decoded
strictly. Both are then checked against the same rules "wavectl run" uses.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, path string, cmd *cobra.Command) error {
	p := opts.printer(cmd)
	p.debugf("validating %s", path)

	cfg, err := loadConfig(path)
	if err != nil {
		code := ErrCodeConfigInvalid
		if !isLoadError(err) {
			code = ErrCodeNotFound
		}
		details := map[string]any{"path": path}
		if line := configErrorLine(err); line > 0 {
			details["line"] = line
		}
		p.fail(code, err.Error(), details)
		return exitErrorf(ExitFailure, "config invalid: %w", err)
	}

	return p.result(fmt.Sprintf("config valid: %s\n", path), ValidationResult{Valid: true, Path: path, Config: &cfg})
}
