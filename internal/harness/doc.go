// Package harness provides scenario-driven conformance testing for the
// strand engine.
//
// The harness runs a named built-in program on a deterministic manual
// host, drives it through scripted steps, and validates the recorded
// trace and final values.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: scenario_name
//	description: "What this scenario validates"
//	program: counter
//	run_token: fixed-run-1
//	steps:
//	  - dispatch: set
//	    value: 3
//	    priority: immediate
//	  - dispatch: set
//	    value: 4
//	    transition: true
//	  - advance: 10ms
//	  - flush: 16
//	assertions:
//	  - type: final_value
//	    unit: counter
//	    value: "4"
//	  - type: trace_contains
//	    kind: commit
//	    unit: counter
//	    detail: "3"
//	  - type: trace_count
//	    kind: pass
//	    unit: counter
//	    count: 3
//	  - type: commit_sequence
//	    unit: counter
//	    values: ["0", "3", "4"]
//
// # Assertion Types
//
//   - final_value: the unit's last committed value, formatted with %v
//   - trace_contains: an event with the given kind/unit/detail exists
//   - trace_count: events matching kind/unit appear exactly N times
//   - trace_order: the given kinds appear in order (gaps allowed)
//   - commit_sequence: the unit's commit details, in order, exactly
//
// # Deterministic Execution
//
// Every scenario runs on a fresh manual host (hand-advanced clock,
// explicit turn pump) with a fixed run token, so the recorded trace is
// identical across runs and suitable for golden snapshot comparison.
package harness
