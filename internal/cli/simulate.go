package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/strandworks/strand/internal/harness"
	"github.com/strandworks/strand/internal/tracestore"
)

// SimulateOptions holds flags for the simulate command.
type SimulateOptions struct {
	*RootOptions
	Database string // optional - persist traces when set
	Filter   string // scenario name filter (glob pattern)

	// TokenGenerator allows overriding the run token generator (for testing).
	// If nil, defaults to UUIDv7Generator.
	TokenGenerator harness.RunTokenGenerator
}

// ScenarioResult holds the result of a single scenario execution.
type ScenarioResult struct {
	Name     string   `json:"name"`
	RunToken string   `json:"run_token"`
	Pass     bool     `json:"pass"`
	Errors   []string `json:"errors,omitempty"`
}

// SimulateResult holds the overall simulate outcome.
type SimulateResult struct {
	Scenarios []ScenarioResult `json:"scenarios"`
	Passed    int              `json:"passed"`
	Failed    int              `json:"failed"`
	Total     int              `json:"total"`
}

// NewSimulateCommand creates the simulate command.
func NewSimulateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SimulateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "simulate <scenarios-dir>",
		Short: "Run scenarios against built-in programs",
		Long: `Run scenario files against the engine's built-in programs.

Each scenario mounts a program, dispatches inputs at the priorities it
names, and checks its assertions against the recorded trace. When --db
is set, every completed run is persisted to the trace store under its
run token for later inspection with the trace command.

Exit codes:
  0 - All scenarios passed
  1 - One or more scenarios failed
  2 - Command error (invalid paths, etc.)

Examples:
  strand simulate ./scenarios
  strand simulate ./scenarios --filter "counter_*"
  strand simulate ./scenarios --db ./strand.db
  strand simulate ./scenarios --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSimulate(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (optional)")
	cmd.Flags().StringVar(&opts.Filter, "filter", "", "only run scenarios matching this glob")

	return cmd
}

func runSimulate(opts *SimulateOptions, scenariosDir string, cmd *cobra.Command) error {
	logLevel := slog.LevelWarn
	if opts.Verbose {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{
		Level: logLevel,
	}))

	if _, err := os.Stat(scenariosDir); os.IsNotExist(err) {
		return NewExitError(ExitCommandError, fmt.Sprintf("scenarios directory not found: %s", scenariosDir))
	}

	scenarios, err := harness.LoadScenarioDir(scenariosDir)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load scenarios", err)
	}
	scenarios, err = filterScenarios(scenarios, opts.Filter)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid filter", err)
	}

	out := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout(), Verbose: opts.Verbose}

	if len(scenarios) == 0 {
		if opts.Format == "json" {
			return out.JSON(SimulateResult{Scenarios: []ScenarioResult{}})
		}
		fmt.Fprintln(cmd.OutOrStdout(), "No scenarios found.")
		return nil
	}

	var st *tracestore.Store
	if opts.Database != "" {
		st, err = tracestore.Open(opts.Database)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to open database", err)
		}
		defer st.Close()
	}

	runnerOpts := []harness.RunnerOption{harness.WithRunnerLogger(logger)}
	if opts.TokenGenerator != nil {
		runnerOpts = append(runnerOpts, harness.WithTokenGenerator(opts.TokenGenerator))
	}
	runner := harness.NewRunner(runnerOpts...)

	result := SimulateResult{Total: len(scenarios)}
	for _, scenario := range scenarios {
		out.VerboseLog("running scenario %s (program %s)", scenario.Name, scenario.Program)

		run, err := runner.Run(scenario)
		if err != nil {
			return WrapExitError(ExitCommandError, fmt.Sprintf("scenario %s", scenario.Name), err)
		}

		if st != nil {
			if _, err := st.SaveRun(context.Background(), run); err != nil {
				return WrapExitError(ExitCommandError, fmt.Sprintf("persist scenario %s", scenario.Name), err)
			}
		}

		sr := ScenarioResult{
			Name:     scenario.Name,
			RunToken: run.RunToken,
			Pass:     run.Passed(),
			Errors:   run.Errors,
		}
		result.Scenarios = append(result.Scenarios, sr)
		if sr.Pass {
			result.Passed++
		} else {
			result.Failed++
		}
	}

	if opts.Format == "json" {
		if err := out.JSON(result); err != nil {
			return err
		}
	} else {
		outputSimulateText(cmd, result, opts.Verbose)
	}

	if result.Failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d of %d scenarios failed", result.Failed, result.Total))
	}
	return nil
}

// filterScenarios applies a glob pattern to scenario names.
// An empty pattern keeps everything.
func filterScenarios(scenarios []*harness.Scenario, pattern string) ([]*harness.Scenario, error) {
	if pattern == "" {
		return scenarios, nil
	}
	var kept []*harness.Scenario
	for _, s := range scenarios {
		ok, err := filepath.Match(pattern, s.Name)
		if err != nil {
			return nil, err
		}
		if ok {
			kept = append(kept, s)
		}
	}
	return kept, nil
}

func outputSimulateText(cmd *cobra.Command, result SimulateResult, verbose bool) {
	w := cmd.OutOrStdout()
	for _, sr := range result.Scenarios {
		status := "PASS"
		if !sr.Pass {
			status = "FAIL"
		}
		fmt.Fprintf(w, "%s  %s (run %s)\n", status, sr.Name, sr.RunToken)
		for _, msg := range sr.Errors {
			// Assertion failures are multi-line; indent for readability.
			fmt.Fprintf(w, "      %s\n", strings.ReplaceAll(msg, "\n", "\n      "))
		}
	}
	fmt.Fprintf(w, "\n%d passed, %d failed, %d total\n", result.Passed, result.Failed, result.Total)
}
