package harness

import (
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/strandworks/strand/internal/cells"
	"github.com/strandworks/strand/internal/engine"
	"github.com/strandworks/strand/internal/sched"
	"github.com/strandworks/strand/internal/testutil"
)

// Result is the outcome of one scenario run.
type Result struct {
	Scenario string
	RunToken string

	// Trace is the full recorded event sequence.
	Trace []engine.Event

	// Values holds each unit's final committed value, %v-formatted.
	Values map[string]string

	// Errors lists assertion failures and runtime faults. Empty means
	// the scenario passed.
	Errors []string
}

// Passed reports whether the run completed with no errors.
func (r *Result) Passed() bool { return len(r.Errors) == 0 }

// AddError appends a failure message.
func (r *Result) AddError(msg string) { r.Errors = append(r.Errors, msg) }

// Runner executes scenarios. The zero value is not usable; see NewRunner.
type Runner struct {
	tokens RunTokenGenerator
	logger *slog.Logger
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithTokenGenerator replaces the run-token source. Tests use
// NewFixedGenerator for reproducible tokens.
func WithTokenGenerator(g RunTokenGenerator) RunnerOption {
	return func(r *Runner) { r.tokens = g }
}

// WithRunnerLogger replaces the runner's logger.
func WithRunnerLogger(l *slog.Logger) RunnerOption {
	return func(r *Runner) { r.logger = l }
}

// NewRunner creates a runner with UUIDv7 run tokens and discarded logs.
func NewRunner(opts ...RunnerOption) *Runner {
	r := &Runner{
		tokens: UUIDv7Generator{},
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// maxFlushPerStep bounds implicit turn draining so a misbehaving program
// cannot hang the harness.
const maxFlushPerStep = 64

// Run executes one scenario on a fresh manual host and returns the
// result. Scenario errors that prevent execution (unknown program, bad
// step arguments) are returned as an error; assertion failures land in
// Result.Errors instead.
func (r *Runner) Run(scenario *Scenario) (*Result, error) {
	if err := scenario.Validate(); err != nil {
		return nil, err
	}
	prog, err := newProgram(scenario.Program)
	if err != nil {
		return nil, err
	}

	token := scenario.RunToken
	if token == "" {
		token = r.tokens.Generate()
	}

	host := testutil.NewManualHost()
	rec := engine.NewRecorder()

	result := &Result{
		Scenario: scenario.Name,
		RunToken: token,
		Values:   make(map[string]string),
	}

	eng := engine.New(host,
		engine.WithRecorder(rec),
		engine.WithLogger(r.logger),
		engine.WithEntangledTransitions(),
		engine.WithCommitHook(func(u *cells.Unit, value any) {
			result.Values[u.Name()] = fmt.Sprintf("%v", value)
		}),
		engine.WithFatalHook(func(u *cells.Unit, err error) {
			result.AddError(fmt.Sprintf("unit %s: %v", u.Name(), err))
		}),
	)

	prog.Mount(eng)
	host.FlushTurns(maxFlushPerStep)

	for i, step := range scenario.Steps {
		if err := r.runStep(eng, host, prog, step); err != nil {
			return nil, fmt.Errorf("step %d: %w", i, err)
		}
	}

	// Drain whatever the last step left queued.
	host.FlushTurns(maxFlushPerStep)

	result.Trace = rec.Events()
	for _, msg := range EvaluateAssertions(result, scenario.Assertions) {
		result.AddError(msg)
	}

	r.logger.Info("scenario finished",
		"scenario", scenario.Name,
		"events", len(result.Trace),
		"passed", result.Passed())
	return result, nil
}

// runStep executes one scripted step.
func (r *Runner) runStep(eng *engine.Engine, host *testutil.ManualHost, prog Program, step Step) error {
	switch {
	case step.Dispatch != "":
		dispatch := func() error { return prog.Dispatch(step.Dispatch, step.Value) }
		if step.Transition {
			inner := dispatch
			dispatch = func() error {
				var derr error
				eng.StartTransition(func() { derr = inner() })
				return derr
			}
		}
		if step.Priority != "" {
			p, err := parsePriority(step.Priority)
			if err != nil {
				return err
			}
			inner := dispatch
			dispatch = func() error {
				var derr error
				eng.Scheduler().RunAtPriority(p, func() { derr = inner() })
				return derr
			}
		}
		return dispatch()

	case step.Advance != 0:
		host.Advance(time.Duration(step.Advance))
		return nil

	case step.Flush != 0:
		host.FlushTurns(step.Flush)
		return nil

	default:
		return fmt.Errorf("empty step")
	}
}

// parsePriority maps a scenario priority name to the scheduler's.
func parsePriority(name string) (sched.Priority, error) {
	switch name {
	case "immediate":
		return sched.ImmediatePriority, nil
	case "user-blocking":
		return sched.UserBlockingPriority, nil
	case "normal":
		return sched.NormalPriority, nil
	case "low":
		return sched.LowPriority, nil
	case "idle":
		return sched.IdlePriority, nil
	default:
		return 0, fmt.Errorf("unknown priority %q", name)
	}
}
