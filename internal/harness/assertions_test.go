package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/strandworks/strand/internal/engine"
)

func sampleTrace() []engine.Event {
	return []engine.Event{
		{Seq: 1, Kind: engine.EventSchedule, Unit: "counter", Lanes: "default"},
		{Seq: 2, Kind: engine.EventPass, Unit: "counter", Lanes: "default"},
		{Seq: 3, Kind: engine.EventCommit, Unit: "counter", Lanes: "default", Detail: "0"},
		{Seq: 4, Kind: engine.EventPass, Unit: "counter", Lanes: "sync"},
		{Seq: 5, Kind: engine.EventCommit, Unit: "counter", Lanes: "sync", Detail: "3"},
	}
}

func sampleResult() *Result {
	return &Result{
		Scenario: "sample",
		Trace:    sampleTrace(),
		Values:   map[string]string{"counter": "3"},
	}
}

func TestAssertFinalValue(t *testing.T) {
	res := sampleResult()

	ok := EvaluateAssertions(res, []Assertion{
		{Type: AssertFinalValue, Unit: "counter", Value: "3"},
	})
	assert.Empty(t, ok)

	bad := EvaluateAssertions(res, []Assertion{
		{Type: AssertFinalValue, Unit: "counter", Value: "4"},
		{Type: AssertFinalValue, Unit: "ghost", Value: "1"},
	})
	require.Len(t, bad, 2)
	assert.Contains(t, bad[0], `expected: unit "counter" committed "4"`)
	assert.Contains(t, bad[1], "never committed")
}

func TestAssertTraceContains(t *testing.T) {
	res := sampleResult()

	ok := EvaluateAssertions(res, []Assertion{
		{Type: AssertTraceContains, Kind: "commit", Unit: "counter", Detail: "3"},
		{Type: AssertTraceContains, Kind: "pass", Lanes: "sync"},
	})
	assert.Empty(t, ok)

	bad := EvaluateAssertions(res, []Assertion{
		{Type: AssertTraceContains, Kind: "commit", Detail: "99"},
	})
	require.Len(t, bad, 1)
	assert.Contains(t, bad[0], "not found in trace")
}

func TestAssertTraceCount(t *testing.T) {
	res := sampleResult()

	ok := EvaluateAssertions(res, []Assertion{
		{Type: AssertTraceCount, Kind: "pass", Unit: "counter", Count: 2},
		{Type: AssertTraceCount, Kind: "schedule", Count: 1},
	})
	assert.Empty(t, ok)

	bad := EvaluateAssertions(res, []Assertion{
		{Type: AssertTraceCount, Kind: "pass", Count: 5},
	})
	require.Len(t, bad, 1)
	assert.Contains(t, bad[0], "5 events matching kind=pass")
}

func TestAssertTraceOrder(t *testing.T) {
	res := sampleResult()

	ok := EvaluateAssertions(res, []Assertion{
		{Type: AssertTraceOrder, Kinds: []string{"schedule", "pass", "commit", "pass", "commit"}},
	})
	assert.Empty(t, ok)

	// Order matters; a commit before the first pass never happened.
	bad := EvaluateAssertions(res, []Assertion{
		{Type: AssertTraceOrder, Kinds: []string{"commit", "schedule"}},
	})
	require.Len(t, bad, 1)
	assert.Contains(t, bad[0], "matched only the first 1")
}

func TestAssertCommitSequence(t *testing.T) {
	res := sampleResult()

	ok := EvaluateAssertions(res, []Assertion{
		{Type: AssertCommitSequence, Unit: "counter", Values: []string{"0", "3"}},
	})
	assert.Empty(t, ok)

	bad := EvaluateAssertions(res, []Assertion{
		{Type: AssertCommitSequence, Unit: "counter", Values: []string{"3", "0"}},
	})
	require.Len(t, bad, 1)
	assert.Contains(t, bad[0], "commit_sequence")
}

func TestAssertionError_IncludesTrace(t *testing.T) {
	err := &AssertionError{
		Type:     AssertTraceContains,
		Expected: "something",
		Actual:   "nothing",
		Trace:    sampleTrace(),
	}
	msg := err.Error()
	assert.Contains(t, msg, "assertion failed: trace_contains")
	assert.Contains(t, msg, "[1] schedule unit=counter")
	assert.Contains(t, msg, "[5] commit unit=counter lanes=sync 3")
}
