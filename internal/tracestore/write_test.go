package tracestore

import (
	"context"
	"testing"
)

func TestSaveRun_RoundTrip(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	result := createTestResult("tok-1", "counter_basic")

	inserted, err := s.SaveRun(ctx, result)
	if err != nil {
		t.Fatalf("SaveRun() failed: %v", err)
	}
	if !inserted {
		t.Error("SaveRun() inserted = false, expected true for new token")
	}

	rec, err := s.LoadRun(ctx, "tok-1")
	if err != nil {
		t.Fatalf("LoadRun() failed: %v", err)
	}
	if rec.Scenario != "counter_basic" {
		t.Errorf("Scenario = %q, expected %q", rec.Scenario, "counter_basic")
	}
	if len(rec.Events) != len(result.Trace) {
		t.Fatalf("got %d events, expected %d", len(rec.Events), len(result.Trace))
	}
	for i, ev := range rec.Events {
		if ev != result.Trace[i] {
			t.Errorf("event %d = %+v, expected %+v", i, ev, result.Trace[i])
		}
	}
}

func TestSaveRun_Idempotent(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	if _, err := s.SaveRun(ctx, createTestResult("tok-1", "counter_basic")); err != nil {
		t.Fatalf("first SaveRun() failed: %v", err)
	}

	// Saving the same token again, even with a different trace, must
	// change nothing.
	other := createTestResult("tok-1", "appender_interleave")
	other.Trace = other.Trace[:2]
	inserted, err := s.SaveRun(ctx, other)
	if err != nil {
		t.Fatalf("second SaveRun() failed: %v", err)
	}
	if inserted {
		t.Error("SaveRun() inserted = true, expected false for duplicate token")
	}

	rec, err := s.LoadRun(ctx, "tok-1")
	if err != nil {
		t.Fatalf("LoadRun() failed: %v", err)
	}
	if rec.Scenario != "counter_basic" {
		t.Errorf("Scenario = %q, first write should win", rec.Scenario)
	}
	if len(rec.Events) != 5 {
		t.Errorf("got %d events, first write should win with 5", len(rec.Events))
	}
}

func TestSaveRun_RejectsEmptyToken(t *testing.T) {
	s := createTestStore(t)

	result := createTestResult("", "counter_basic")
	if _, err := s.SaveRun(context.Background(), result); err == nil {
		t.Error("SaveRun() with empty token should fail")
	}
}

func TestSaveRun_SnapshotMatchesHarnessForm(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	result := createTestResult("tok-1", "counter_basic")

	if _, err := s.SaveRun(ctx, result); err != nil {
		t.Fatalf("SaveRun() failed: %v", err)
	}

	rec, err := s.LoadRun(ctx, "tok-1")
	if err != nil {
		t.Fatalf("LoadRun() failed: %v", err)
	}

	// The persisted snapshot is the same canonical bytes the golden
	// files use, so stored runs diff cleanly against goldens.
	var snapshot string
	if err := s.db.QueryRow(`SELECT snapshot FROM runs WHERE token = 'tok-1'`).Scan(&snapshot); err != nil {
		t.Fatalf("query snapshot: %v", err)
	}
	if string(rec.Snapshot) != snapshot {
		t.Error("LoadRun snapshot differs from stored column")
	}
	if snapshot == "" || snapshot[0] != '{' {
		t.Errorf("snapshot is not a JSON object: %q", snapshot)
	}
}

func TestDeleteRun_CascadesToEvents(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	if _, err := s.SaveRun(ctx, createTestResult("tok-1", "counter_basic")); err != nil {
		t.Fatalf("SaveRun() failed: %v", err)
	}
	if err := s.DeleteRun(ctx, "tok-1"); err != nil {
		t.Fatalf("DeleteRun() failed: %v", err)
	}

	if _, err := s.LoadRun(ctx, "tok-1"); err == nil {
		t.Error("LoadRun() after delete should fail")
	}

	var count int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM events WHERE run_token = 'tok-1'`).Scan(&count); err != nil {
		t.Fatalf("query events: %v", err)
	}
	if count != 0 {
		t.Errorf("got %d orphaned events after delete, expected 0", count)
	}
}

func TestDeleteRun_UnknownTokenIsNoOp(t *testing.T) {
	s := createTestStore(t)

	if err := s.DeleteRun(context.Background(), "missing"); err != nil {
		t.Errorf("DeleteRun() of unknown token failed: %v", err)
	}
}
