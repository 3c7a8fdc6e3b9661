package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"
)

// TraceSnapshot is the canonical-JSON shape of a completed run, stored
// in golden files and in the trace store.
type TraceSnapshot struct {
	Scenario string
	RunToken string
	Trace    []map[string]any
}

// Snapshot converts a result into its snapshot form.
func Snapshot(result *Result) *TraceSnapshot {
	trace := make([]map[string]any, len(result.Trace))
	for i, ev := range result.Trace {
		m := map[string]any{
			"seq":  ev.Seq,
			"kind": string(ev.Kind),
		}
		if ev.Unit != "" {
			m["unit"] = ev.Unit
		}
		if ev.Lanes != "" {
			m["lanes"] = ev.Lanes
		}
		if ev.Detail != "" {
			m["detail"] = ev.Detail
		}
		trace[i] = m
	}
	return &TraceSnapshot{
		Scenario: result.Scenario,
		RunToken: result.RunToken,
		Trace:    trace,
	}
}

// MarshalCanonical serializes the snapshot deterministically.
func (s *TraceSnapshot) MarshalCanonical() ([]byte, error) {
	traceList := make([]any, len(s.Trace))
	for i, m := range s.Trace {
		traceList[i] = m
	}
	return MarshalCanonical(map[string]any{
		"scenario":  s.Scenario,
		"run_token": s.RunToken,
		"trace":     traceList,
	})
}

// RunWithGolden executes the scenario and compares its canonical trace
// against testdata/golden/{scenario.Name}.golden.
//
// Regenerate golden files with:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, r *Runner, scenario *Scenario) *Result {
	t.Helper()

	result, err := r.Run(scenario)
	if err != nil {
		t.Fatalf("scenario %s: %v", scenario.Name, err)
	}
	for _, msg := range result.Errors {
		t.Errorf("scenario %s: %s", scenario.Name, msg)
	}

	data, err := Snapshot(result).MarshalCanonical()
	if err != nil {
		t.Fatalf("scenario %s: canonical marshal: %v", scenario.Name, err)
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenario.Name, data)
	return result
}
