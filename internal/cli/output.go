package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// Process exit codes.
const (
	ExitSuccess      = 0
	ExitFailure      = 1 // a scenario or config check failed
	ExitCommandError = 2 // the command could not run
)

// ExitError carries the process exit code for a failed command.
type ExitError struct {
	Code int
	err  error
}

// exitErrorf formats the message like fmt.Errorf, so %w keeps the cause.
func exitErrorf(code int, format string, args ...any) *ExitError {
	return &ExitError{Code: code, err: fmt.Errorf(format, args...)}
}

func (e *ExitError) Error() string { return e.err.Error() }

func (e *ExitError) Unwrap() error { return e.err }

// ExitCode maps the error returned by a command to a process exit code.
func ExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var ee *ExitError
	if errors.As(err, &ee) {
		return ee.Code
	}
	return ExitFailure
}

// envelope wraps every result written with --format json.
type envelope struct {
	Status string   `json:"status"`
	Data   any      `json:"data,omitempty"`
	Error  *problem `json:"error,omitempty"`
}

type problem struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// printer writes command results to stdout and diagnostics to stderr.
type printer struct {
	out     io.Writer
	diag    io.Writer
	json    bool
	verbose bool
}

// result writes text, or data inside an "ok" envelope in JSON mode.
func (p *printer) result(text string, data any) error {
	if p.json {
		return json.NewEncoder(p.out).Encode(envelope{Status: "ok", Data: data})
	}
	_, err := io.WriteString(p.out, text)
	return err
}

// fail reports a command error. In text mode details are shown only with
// --verbose.
func (p *printer) fail(code, message string, details any) {
	if p.json {
		_ = json.NewEncoder(p.out).Encode(envelope{
			Status: "error",
			Error:  &problem{Code: code, Message: message, Details: details},
		})
		return
	}
	fmt.Fprintf(p.out, "error %s: %s\n", code, message)
	if p.verbose && details != nil {
		fmt.Fprintf(p.out, "  %v\n", details)
	}
}

func (p *printer) debugf(format string, args ...any) {
	if p.verbose {
		fmt.Fprintf(p.diag, format+"\n", args...)
	}
}
