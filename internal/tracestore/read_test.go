package tracestore

import (
	"context"
	"errors"
	"testing"
)

func TestLoadRun_NotFound(t *testing.T) {
	s := createTestStore(t)

	_, err := s.LoadRun(context.Background(), "missing")
	if !errors.Is(err, ErrRunNotFound) {
		t.Errorf("LoadRun() error = %v, expected ErrRunNotFound", err)
	}
}

func TestLoadRun_EventsOrderedBySeq(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	// Insert events in reverse to prove the read ordering does not
	// depend on insert order.
	result := createTestResult("tok-1", "counter_basic")
	for i, j := 0, len(result.Trace)-1; i < j; i, j = i+1, j-1 {
		result.Trace[i], result.Trace[j] = result.Trace[j], result.Trace[i]
	}
	if _, err := s.SaveRun(ctx, result); err != nil {
		t.Fatalf("SaveRun() failed: %v", err)
	}

	rec, err := s.LoadRun(ctx, "tok-1")
	if err != nil {
		t.Fatalf("LoadRun() failed: %v", err)
	}
	for i, ev := range rec.Events {
		if ev.Seq != int64(i+1) {
			t.Errorf("event %d has seq %d, expected %d", i, ev.Seq, i+1)
		}
	}
}

func TestLoadRun_EmptyTraceGivesEmptySlice(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	result := createTestResult("tok-1", "counter_basic")
	result.Trace = nil
	if _, err := s.SaveRun(ctx, result); err != nil {
		t.Fatalf("SaveRun() failed: %v", err)
	}

	rec, err := s.LoadRun(ctx, "tok-1")
	if err != nil {
		t.Fatalf("LoadRun() failed: %v", err)
	}
	if rec.Events == nil {
		t.Error("Events is nil, expected empty slice")
	}
	if len(rec.Events) != 0 {
		t.Errorf("got %d events, expected 0", len(rec.Events))
	}
}

func TestListRuns_EmptyStore(t *testing.T) {
	s := createTestStore(t)

	runs, err := s.ListRuns(context.Background())
	if err != nil {
		t.Fatalf("ListRuns() failed: %v", err)
	}
	if runs == nil {
		t.Error("ListRuns() returned nil, expected empty slice")
	}
	if len(runs) != 0 {
		t.Errorf("got %d runs, expected 0", len(runs))
	}
}

func TestListRuns_OrderedByToken(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	for _, token := range []string{"tok-c", "tok-a", "tok-b"} {
		if _, err := s.SaveRun(ctx, createTestResult(token, "counter_basic")); err != nil {
			t.Fatalf("SaveRun(%s) failed: %v", token, err)
		}
	}

	runs, err := s.ListRuns(ctx)
	if err != nil {
		t.Fatalf("ListRuns() failed: %v", err)
	}
	if len(runs) != 3 {
		t.Fatalf("got %d runs, expected 3", len(runs))
	}

	expected := []string{"tok-a", "tok-b", "tok-c"}
	for i, sum := range runs {
		if sum.Token != expected[i] {
			t.Errorf("run %d token = %q, expected %q", i, sum.Token, expected[i])
		}
		if sum.Scenario != "counter_basic" {
			t.Errorf("run %d scenario = %q", i, sum.Scenario)
		}
		if sum.Events != 5 {
			t.Errorf("run %d events = %d, expected 5", i, sum.Events)
		}
	}
}

func TestKindCounts(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	if _, err := s.SaveRun(ctx, createTestResult("tok-1", "counter_basic")); err != nil {
		t.Fatalf("SaveRun() failed: %v", err)
	}

	counts, err := s.KindCounts(ctx, "tok-1")
	if err != nil {
		t.Fatalf("KindCounts() failed: %v", err)
	}

	expected := map[string]int{
		"schedule": 1,
		"pass":     2,
		"commit":   2,
	}
	if len(counts) != len(expected) {
		t.Errorf("got %d kinds, expected %d: %v", len(counts), len(expected), counts)
	}
	for kind, n := range expected {
		if counts[kind] != n {
			t.Errorf("counts[%q] = %d, expected %d", kind, counts[kind], n)
		}
	}
}

func TestKindCounts_NotFound(t *testing.T) {
	s := createTestStore(t)

	_, err := s.KindCounts(context.Background(), "missing")
	if !errors.Is(err, ErrRunNotFound) {
		t.Errorf("KindCounts() error = %v, expected ErrRunNotFound", err)
	}
}
