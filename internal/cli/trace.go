package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/wavectl/internal/journal"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Database string
	Build    string // optional - restrict to one build
}

// TraceBuild is one build in trace output.
type TraceBuild struct {
	Token   string    `json:"token"`
	Seq     int       `json:"seq"`
	Started time.Time `json:"started"`
	Nodes   []string  `json:"nodes"`
}

// TraceWave is one wave in trace output.
type TraceWave struct {
	Build   string    `json:"build"`
	ID      int64     `json:"id"`
	Reason  string    `json:"reason"`
	Started time.Time `json:"started"`
	Visited []string  `json:"visited"`
	Error   string    `json:"error,omitempty"`
}

// TracePanic is one server panic in trace output.
type TracePanic struct {
	Build   string        `json:"build"`
	Time    time.Time     `json:"time"`
	Reason  string        `json:"reason"`
	Count   int           `json:"count"`
	Backoff time.Duration `json:"backoff_ns"`
}

// TraceCommandEvent is one command event in trace output.
type TraceCommandEvent struct {
	Build   string    `json:"build"`
	Time    time.Time `json:"time"`
	Node    string    `json:"node"`
	Request string    `json:"request"`
	Kind    string    `json:"kind"`
	Retry   int       `json:"retry"`
	Payload string    `json:"payload"`
	Detail  string    `json:"detail,omitempty"`
}

// TraceResult holds the complete trace output.
type TraceResult struct {
	Builds []TraceBuild        `json:"builds"`
	Waves  []TraceWave         `json:"waves"`
	Panics []TracePanic        `json:"panics"`
	Events []TraceCommandEvent `json:"command_events"`
	Stats  TraceStats          `json:"stats"`
}

// TraceStats holds summary statistics for the trace.
type TraceStats struct {
	Builds     int `json:"builds"`
	Waves      int `json:"waves"`
	FailedWave int `json:"failed_waves"`
	Panics     int `json:"panics"`
	Events     int `json:"command_events"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace",
		Short: "Show what a run recorded",
		Long: `Show the builds, waves, panics and command events in a journal.

The output includes:
- Builds: every graph build with its node names
- Waves: which nodes ran in each wave, and any wave error
- Panics: reason, running count and rebuild backoff
- Command events: the life of every device command request

Examples:
  wavectl trace --db ./wavectl.db
  wavectl trace --db ./wavectl.db --build 0190a1b2-...
  wavectl trace --db ./wavectl.db --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to the journal database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.Build, "build", "", "restrict output to one build token")

	return cmd
}

func runTrace(opts *TraceOptions, cmd *cobra.Command) error {
	p := opts.printer(cmd)

	if _, err := os.Stat(opts.Database); os.IsNotExist(err) {
		msg := fmt.Sprintf("journal not found: %s", opts.Database)
		p.fail(ErrCodeNotFound, msg, nil)
		return exitErrorf(ExitCommandError, "%s", msg)
	}

	jnl, err := journal.Open(opts.Database)
	if err != nil {
		return exitErrorf(ExitCommandError, "failed to open journal: %w", err)
	}
	defer jnl.Close()

	result, err := collectTrace(cmd.Context(), jnl, opts.Build)
	if err != nil {
		p.fail(ErrCodeJournal, err.Error(), nil)
		return exitErrorf(ExitCommandError, "failed to read journal: %w", err)
	}
	if opts.Build != "" && len(result.Builds) == 0 {
		msg := fmt.Sprintf("build not found: %s", opts.Build)
		p.fail(ErrCodeNotFound, msg, nil)
		return exitErrorf(ExitFailure, "%s", msg)
	}

	var b strings.Builder
	writeTraceText(&b, result)
	return p.result(b.String(), result)
}

func collectTrace(ctx context.Context, jnl *journal.Journal, build string) (TraceResult, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	result := TraceResult{
		Builds: []TraceBuild{},
		Waves:  []TraceWave{},
		Panics: []TracePanic{},
		Events: []TraceCommandEvent{},
	}

	builds, err := jnl.Builds(ctx)
	if err != nil {
		return result, err
	}
	for _, b := range builds {
		if build != "" && b.Token != build {
			continue
		}
		result.Builds = append(result.Builds, TraceBuild{Token: b.Token, Seq: b.Seq, Started: b.Time, Nodes: b.Nodes})
	}

	waves, err := jnl.Waves(ctx, build)
	if err != nil {
		return result, err
	}
	for _, w := range waves {
		result.Waves = append(result.Waves, TraceWave{
			Build: w.Build, ID: w.ID, Reason: w.Reason, Started: w.StartedAt, Visited: w.Visited, Error: w.Error,
		})
		if w.Error != "" {
			result.Stats.FailedWave++
		}
	}

	panics, err := jnl.Panics(ctx)
	if err != nil {
		return result, err
	}
	for _, p := range panics {
		if build != "" && p.Build != build {
			continue
		}
		result.Panics = append(result.Panics, TracePanic{Build: p.Build, Time: p.Time, Reason: p.Reason, Count: p.Count, Backoff: p.Backoff})
	}

	events, err := jnl.CommandEvents(ctx, build)
	if err != nil {
		return result, err
	}
	for _, ev := range events {
		result.Events = append(result.Events, TraceCommandEvent{
			Build: ev.Build, Time: ev.Time, Node: ev.Node, Request: ev.Request,
			Kind: string(ev.Kind), Retry: ev.Retry, Payload: ev.Payload, Detail: ev.Detail,
		})
	}

	result.Stats.Builds = len(result.Builds)
	result.Stats.Waves = len(result.Waves)
	result.Stats.Panics = len(result.Panics)
	result.Stats.Events = len(result.Events)
	return result, nil
}

func writeTraceText(w io.Writer, r TraceResult) {
	const stamp = "15:04:05.000"

	fmt.Fprintf(w, "Builds (%d):\n", len(r.Builds))
	for _, b := range r.Builds {
		fmt.Fprintf(w, "  #%d %s %s nodes=%s\n", b.Seq, b.Token, b.Started.Format(stamp), strings.Join(b.Nodes, ","))
	}

	fmt.Fprintf(w, "Waves (%d, %d failed):\n", len(r.Waves), r.Stats.FailedWave)
	for _, wv := range r.Waves {
		fmt.Fprintf(w, "  %s wave %d [%s] %s", wv.Started.Format(stamp), wv.ID, wv.Reason, strings.Join(wv.Visited, " "))
		if wv.Error != "" {
			fmt.Fprintf(w, " error=%q", wv.Error)
		}
		fmt.Fprintln(w)
	}

	fmt.Fprintf(w, "Panics (%d):\n", len(r.Panics))
	for _, p := range r.Panics {
		fmt.Fprintf(w, "  %s #%d backoff=%s %s\n", p.Time.Format(stamp), p.Count, p.Backoff, p.Reason)
	}

	fmt.Fprintf(w, "Command events (%d):\n", len(r.Events))
	for _, ev := range r.Events {
		fmt.Fprintf(w, "  %s %s %s %s retry=%d payload=%s", ev.Time.Format(stamp), ev.Node, ev.Request, ev.Kind, ev.Retry, ev.Payload)
		if ev.Detail != "" {
			fmt.Fprintf(w, " detail=%q", ev.Detail)
		}
		fmt.Fprintln(w)
	}
}
