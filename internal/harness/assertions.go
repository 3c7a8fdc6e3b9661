package harness

import (
	"fmt"
	"strings"

	"github.com/strandworks/strand/internal/engine"
)

// AssertionError describes one failed assertion with enough context to
// debug it from the test log alone.
type AssertionError struct {
	Type     string
	Expected string
	Actual   string
	Trace    []engine.Event
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  actual: %s\n", e.Actual)

	fmt.Fprintf(&buf, "\nfull trace:\n")
	for _, ev := range e.Trace {
		fmt.Fprintf(&buf, "  [%d] %s unit=%s lanes=%s %s\n",
			ev.Seq, ev.Kind, ev.Unit, ev.Lanes, ev.Detail)
	}
	return buf.String()
}

// EvaluateAssertions checks every assertion against the result and
// returns the failure messages.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var failures []string
	for _, a := range assertions {
		var err error
		switch a.Type {
		case AssertFinalValue:
			err = assertFinalValue(result, a)
		case AssertTraceContains:
			err = assertTraceContains(result.Trace, a)
		case AssertTraceCount:
			err = assertTraceCount(result.Trace, a)
		case AssertTraceOrder:
			err = assertTraceOrder(result.Trace, a)
		case AssertCommitSequence:
			err = assertCommitSequence(result.Trace, a)
		default:
			err = fmt.Errorf("unknown assertion type %q", a.Type)
		}
		if err != nil {
			failures = append(failures, err.Error())
		}
	}
	return failures
}

func assertFinalValue(result *Result, a Assertion) error {
	got, ok := result.Values[a.Unit]
	if !ok {
		return &AssertionError{
			Type:     AssertFinalValue,
			Expected: fmt.Sprintf("unit %q committed %q", a.Unit, a.Value),
			Actual:   "unit never committed",
			Trace:    result.Trace,
		}
	}
	if got != a.Value {
		return &AssertionError{
			Type:     AssertFinalValue,
			Expected: fmt.Sprintf("unit %q committed %q", a.Unit, a.Value),
			Actual:   fmt.Sprintf("%q", got),
			Trace:    result.Trace,
		}
	}
	return nil
}

// matchEvent applies the assertion's kind/unit/detail/lanes filters.
// Empty filter fields match anything.
func matchEvent(ev engine.Event, a Assertion) bool {
	if a.Kind != "" && string(ev.Kind) != a.Kind {
		return false
	}
	if a.Unit != "" && ev.Unit != a.Unit {
		return false
	}
	if a.Detail != "" && ev.Detail != a.Detail {
		return false
	}
	if a.Lanes != "" && ev.Lanes != a.Lanes {
		return false
	}
	return true
}

func describeFilter(a Assertion) string {
	parts := []string{fmt.Sprintf("kind=%s", a.Kind)}
	if a.Unit != "" {
		parts = append(parts, "unit="+a.Unit)
	}
	if a.Detail != "" {
		parts = append(parts, "detail="+a.Detail)
	}
	if a.Lanes != "" {
		parts = append(parts, "lanes="+a.Lanes)
	}
	return strings.Join(parts, " ")
}

func assertTraceContains(trace []engine.Event, a Assertion) error {
	for _, ev := range trace {
		if matchEvent(ev, a) {
			return nil
		}
	}
	return &AssertionError{
		Type:     AssertTraceContains,
		Expected: "event matching " + describeFilter(a),
		Actual:   "not found in trace",
		Trace:    trace,
	}
}

func assertTraceCount(trace []engine.Event, a Assertion) error {
	count := 0
	for _, ev := range trace {
		if matchEvent(ev, a) {
			count++
		}
	}
	if count != a.Count {
		return &AssertionError{
			Type:     AssertTraceCount,
			Expected: fmt.Sprintf("%d events matching %s", a.Count, describeFilter(a)),
			Actual:   fmt.Sprintf("%d", count),
			Trace:    trace,
		}
	}
	return nil
}

// assertTraceOrder checks the kinds appear in order; intervening events
// are allowed.
func assertTraceOrder(trace []engine.Event, a Assertion) error {
	next := 0
	for _, ev := range trace {
		if next < len(a.Kinds) && string(ev.Kind) == a.Kinds[next] {
			if a.Unit == "" || ev.Unit == a.Unit {
				next++
			}
		}
	}
	if next != len(a.Kinds) {
		return &AssertionError{
			Type:     AssertTraceOrder,
			Expected: fmt.Sprintf("kinds in order %v", a.Kinds),
			Actual:   fmt.Sprintf("matched only the first %d", next),
			Trace:    trace,
		}
	}
	return nil
}

// assertCommitSequence checks the unit's commit details exactly, in
// order.
func assertCommitSequence(trace []engine.Event, a Assertion) error {
	var got []string
	for _, ev := range trace {
		if ev.Kind == engine.EventCommit && ev.Unit == a.Unit {
			got = append(got, ev.Detail)
		}
	}
	if len(got) != len(a.Values) {
		return commitSequenceError(a, got, trace)
	}
	for i := range got {
		if got[i] != a.Values[i] {
			return commitSequenceError(a, got, trace)
		}
	}
	return nil
}

func commitSequenceError(a Assertion, got []string, trace []engine.Event) error {
	return &AssertionError{
		Type:     AssertCommitSequence,
		Expected: fmt.Sprintf("unit %q commits %v", a.Unit, a.Values),
		Actual:   fmt.Sprintf("%v", got),
		Trace:    trace,
	}
}
