package tracestore

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/strandworks/strand/internal/engine"
	"github.com/strandworks/strand/internal/harness"
)

// createTestStore creates a store backed by a temp-dir database.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestResult builds a harness result with a small fixed trace.
func createTestResult(token, scenario string) *harness.Result {
	return &harness.Result{
		Scenario: scenario,
		RunToken: token,
		Trace: []engine.Event{
			{Seq: 1, Kind: engine.EventSchedule, Unit: "counter", Lanes: "default"},
			{Seq: 2, Kind: engine.EventPass, Unit: "counter", Lanes: "default"},
			{Seq: 3, Kind: engine.EventCommit, Unit: "counter", Lanes: "default", Detail: "0"},
			{Seq: 4, Kind: engine.EventPass, Unit: "counter", Lanes: "sync"},
			{Seq: 5, Kind: engine.EventCommit, Unit: "counter", Lanes: "sync", Detail: "3"},
		},
		Values: map[string]string{"counter": "3"},
	}
}

func TestOpen_CreatesNewDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer s.Close()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Error("database file was not created")
	}
}

func TestOpen_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	for i := 0; i < 3; i++ {
		s, err := Open(path)
		if err != nil {
			t.Fatalf("Open() iteration %d failed: %v", i, err)
		}
		s.Close()
	}

	s, err := Open(path)
	if err != nil {
		t.Fatalf("final Open() failed: %v", err)
	}
	defer s.Close()

	tables := []string{"runs", "events"}
	for _, table := range tables {
		var name string
		err := s.db.QueryRow(
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?",
			table,
		).Scan(&name)
		if err != nil {
			t.Errorf("table %q not found after idempotent opens: %v", table, err)
		}
	}
}

func TestOpen_AppliesPragmas(t *testing.T) {
	s := createTestStore(t)

	checks := map[string]string{
		"journal_mode": "wal",
		"foreign_keys": "1",
		"busy_timeout": "5000",
	}
	for name, want := range checks {
		if err := s.verifyPragma(name, want); err != nil {
			t.Errorf("pragma check failed: %v", err)
		}
	}
}

func TestOpen_SetsSchemaVersion(t *testing.T) {
	s := createTestStore(t)

	var version int
	if err := s.db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		t.Fatalf("query user_version: %v", err)
	}
	if version != currentSchemaVersion {
		t.Errorf("user_version = %d, expected %d", version, currentSchemaVersion)
	}
}

func TestOpen_SurvivesReopenWithData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	s1, err := Open(path)
	if err != nil {
		t.Fatalf("first Open() failed: %v", err)
	}
	if _, err := s1.SaveRun(context.Background(), createTestResult("tok-1", "counter_basic")); err != nil {
		t.Fatalf("SaveRun() failed: %v", err)
	}
	s1.Close()

	s2, err := Open(path)
	if err != nil {
		t.Fatalf("second Open() failed: %v", err)
	}
	defer s2.Close()

	rec, err := s2.LoadRun(context.Background(), "tok-1")
	if err != nil {
		t.Fatalf("LoadRun() after reopen failed: %v", err)
	}
	if len(rec.Events) != 5 {
		t.Errorf("got %d events after reopen, expected 5", len(rec.Events))
	}
}
