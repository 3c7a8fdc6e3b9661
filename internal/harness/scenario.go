package harness

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"gopkg.in/yaml.v3"
)

// Scenario defines one deterministic engine run: a built-in program, a
// scripted step sequence, and assertions on the result.
type Scenario struct {
	// Name uniquely identifies this scenario. Also names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description,omitempty"`

	// Program selects the built-in program to run. See Programs().
	Program string `yaml:"program"`

	// RunToken is an optional fixed token for deterministic runs. If
	// empty, the runner's token generator supplies one.
	RunToken string `yaml:"run_token,omitempty"`

	// Steps drive the program.
	Steps []Step `yaml:"steps"`

	// Assertions validate the final trace and values.
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// Step is one scripted action. Exactly one of Dispatch, Advance, or
// Flush must be set.
type Step struct {
	// Dispatch names a program input to invoke.
	Dispatch string `yaml:"dispatch,omitempty"`

	// Value is the input's argument, passed through as a YAML scalar.
	Value any `yaml:"value,omitempty"`

	// Priority runs the dispatch under an explicit priority context:
	// immediate, user-blocking, normal, low, or idle.
	Priority string `yaml:"priority,omitempty"`

	// Transition routes the dispatch through StartTransition.
	Transition bool `yaml:"transition,omitempty"`

	// Advance moves the manual clock forward, firing due timers.
	Advance Duration `yaml:"advance,omitempty"`

	// Flush runs up to this many queued turns.
	Flush int `yaml:"flush,omitempty"`
}

// Duration wraps time.Duration with YAML support for strings like "10ms".
type Duration time.Duration

// UnmarshalYAML parses a Go duration string.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	dur, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(dur)
	return nil
}

// MarshalYAML renders the duration as a string.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// Assertion validates the recorded trace or final values.
type Assertion struct {
	// Type is one of the Assert* constants.
	Type string `yaml:"type"`

	// Unit scopes the assertion to one render unit where applicable.
	Unit string `yaml:"unit,omitempty"`

	// Kind is the event kind (trace_contains, trace_count).
	Kind string `yaml:"kind,omitempty"`

	// Detail is the expected event detail (trace_contains).
	Detail string `yaml:"detail,omitempty"`

	// Lanes is the expected event lane set string (trace_contains).
	Lanes string `yaml:"lanes,omitempty"`

	// Value is the expected final value (final_value).
	Value string `yaml:"value,omitempty"`

	// Count is the expected number of matches (trace_count).
	Count int `yaml:"count,omitempty"`

	// Kinds is the expected kind order (trace_order).
	Kinds []string `yaml:"kinds,omitempty"`

	// Values is the expected commit detail sequence (commit_sequence).
	Values []string `yaml:"values,omitempty"`
}

// Assertion type constants.
const (
	AssertFinalValue     = "final_value"
	AssertTraceContains  = "trace_contains"
	AssertTraceCount     = "trace_count"
	AssertTraceOrder     = "trace_order"
	AssertCommitSequence = "commit_sequence"
)

// LoadScenario reads and validates a scenario YAML file.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario: %w", err)
	}

	var s Scenario
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse scenario %s: %w", path, err)
	}
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("invalid scenario %s: %w", path, err)
	}
	return &s, nil
}

// LoadScenarioDir loads every *.yaml scenario under dir, sorted by name.
func LoadScenarioDir(dir string) ([]*Scenario, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.yaml"))
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)

	scenarios := make([]*Scenario, 0, len(paths))
	for _, p := range paths {
		s, err := LoadScenario(p)
		if err != nil {
			return nil, err
		}
		scenarios = append(scenarios, s)
	}
	return scenarios, nil
}

// Validate checks structural requirements before a run.
func (s *Scenario) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("scenario name is required")
	}
	if s.Program == "" {
		return fmt.Errorf("scenario program is required")
	}
	for i, step := range s.Steps {
		set := 0
		if step.Dispatch != "" {
			set++
		}
		if step.Advance != 0 {
			set++
		}
		if step.Flush != 0 {
			set++
		}
		if set != 1 {
			return fmt.Errorf("step %d: exactly one of dispatch, advance, flush must be set", i)
		}
		if step.Priority != "" {
			if _, err := parsePriority(step.Priority); err != nil {
				return fmt.Errorf("step %d: %w", i, err)
			}
		}
		if step.Priority != "" && step.Dispatch == "" {
			return fmt.Errorf("step %d: priority only applies to dispatch steps", i)
		}
		if step.Transition && step.Dispatch == "" {
			return fmt.Errorf("step %d: transition only applies to dispatch steps", i)
		}
	}
	for i, a := range s.Assertions {
		switch a.Type {
		case AssertFinalValue, AssertTraceContains, AssertTraceCount,
			AssertTraceOrder, AssertCommitSequence:
		default:
			return fmt.Errorf("assertion %d: unknown type %q", i, a.Type)
		}
	}
	return nil
}
