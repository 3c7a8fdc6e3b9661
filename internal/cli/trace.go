package cli

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/spf13/cobra"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/strandworks/strand/internal/engine"
	"github.com/strandworks/strand/internal/tracestore"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Database string
	RunToken string
	Kind     string // optional - filter timeline to one event kind
}

// TraceResult holds the complete trace output.
type TraceResult struct {
	RunToken string         `json:"run_token"`
	Scenario string         `json:"scenario"`
	Timeline []engine.Event `json:"timeline"`
	Stats    TraceStats     `json:"stats"`
}

// TraceStats holds summary statistics for the trace.
type TraceStats struct {
	TotalEvents int            `json:"total_events"`
	ByKind      map[string]int `json:"by_kind"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace",
		Short: "Inspect a persisted run trace",
		Long: `Inspect the event trace of a persisted run.

Shows the full timeline in logical-clock order: when each unit was
scheduled, which lanes each render pass covered, what each commit
produced, and where work was carried over to a later pass.

Examples:
  strand trace --db ./strand.db --run 01890b2e-...-8b1a
  strand trace --db ./strand.db --run 01890b2e-...-8b1a --kind commit
  strand trace --db ./strand.db --run 01890b2e-...-8b1a --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.RunToken, "run", "", "run token to inspect (required)")
	_ = cmd.MarkFlagRequired("run")
	cmd.Flags().StringVar(&opts.Kind, "kind", "", "filter timeline to one event kind")

	return cmd
}

func runTrace(opts *TraceOptions, cmd *cobra.Command) error {
	ctx := context.Background()

	st, err := tracestore.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	rec, err := st.LoadRun(ctx, opts.RunToken)
	if errors.Is(err, tracestore.ErrRunNotFound) {
		return NewExitError(ExitCommandError, fmt.Sprintf("no run found for token: %s", opts.RunToken))
	}
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load run", err)
	}

	counts, err := st.KindCounts(ctx, opts.RunToken)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to count events", err)
	}

	timeline := rec.Events
	if opts.Kind != "" {
		timeline = nil
		for _, ev := range rec.Events {
			if string(ev.Kind) == opts.Kind {
				timeline = append(timeline, ev)
			}
		}
		if timeline == nil {
			timeline = []engine.Event{}
		}
	}

	result := TraceResult{
		RunToken: rec.Token,
		Scenario: rec.Scenario,
		Timeline: timeline,
		Stats: TraceStats{
			TotalEvents: len(rec.Events),
			ByKind:      counts,
		},
	}

	if opts.Format == "json" {
		out := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
		return out.JSON(result)
	}

	outputTraceText(cmd, result)
	return nil
}

func outputTraceText(cmd *cobra.Command, result TraceResult) {
	w := cmd.OutOrStdout()
	p := message.NewPrinter(language.English)

	fmt.Fprintf(w, "Run:      %s\n", result.RunToken)
	fmt.Fprintf(w, "Scenario: %s\n", result.Scenario)
	p.Fprintf(w, "Events:   %d\n\n", result.Stats.TotalEvents)

	for _, ev := range result.Timeline {
		line := fmt.Sprintf("[%4d] %-10s", ev.Seq, ev.Kind)
		if ev.Unit != "" {
			line += fmt.Sprintf(" unit=%s", ev.Unit)
		}
		if ev.Lanes != "" {
			line += fmt.Sprintf(" lanes=%s", ev.Lanes)
		}
		if ev.Detail != "" {
			line += fmt.Sprintf(" %q", ev.Detail)
		}
		fmt.Fprintln(w, line)
	}

	kinds := make([]string, 0, len(result.Stats.ByKind))
	for kind := range result.Stats.ByKind {
		kinds = append(kinds, kind)
	}
	sort.Strings(kinds)

	fmt.Fprintln(w, "\nBy kind:")
	for _, kind := range kinds {
		p.Fprintf(w, "  %-10s %d\n", kind, result.Stats.ByKind[kind])
	}
}
