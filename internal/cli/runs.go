package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/strandworks/strand/internal/tracestore"
)

// RunsOptions holds flags for the runs command.
type RunsOptions struct {
	*RootOptions
	Database string
}

// RunsResult holds the run listing.
type RunsResult struct {
	Runs []RunEntry `json:"runs"`
}

// RunEntry is one persisted run in the listing.
type RunEntry struct {
	Token    string `json:"token"`
	Scenario string `json:"scenario"`
	Events   int    `json:"events"`
}

// NewRunsCommand creates the runs command.
func NewRunsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List persisted runs",
		Long: `List every run persisted in the trace store, ordered by token.

Examples:
  strand runs --db ./strand.db
  strand runs --db ./strand.db --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRuns(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

func runRuns(opts *RunsOptions, cmd *cobra.Command) error {
	st, err := tracestore.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	summaries, err := st.ListRuns(context.Background())
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to list runs", err)
	}

	result := RunsResult{Runs: []RunEntry{}}
	for _, sum := range summaries {
		result.Runs = append(result.Runs, RunEntry{
			Token:    sum.Token,
			Scenario: sum.Scenario,
			Events:   sum.Events,
		})
	}

	if opts.Format == "json" {
		out := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
		return out.JSON(result)
	}

	w := cmd.OutOrStdout()
	if len(result.Runs) == 0 {
		fmt.Fprintln(w, "No runs persisted.")
		return nil
	}
	for _, entry := range result.Runs {
		fmt.Fprintf(w, "%s  %-24s %d events\n", entry.Token, entry.Scenario, entry.Events)
	}
	return nil
}
