package tracestore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/strandworks/strand/internal/engine"
)

// ErrRunNotFound is returned when no run exists for a token.
var ErrRunNotFound = errors.New("run not found")

// RunRecord is a persisted run read back from the store.
type RunRecord struct {
	Token    string
	Scenario string
	// Snapshot is the RFC 8785 canonical JSON written at save time.
	Snapshot []byte
	Events   []engine.Event
}

// RunSummary is one row of a run listing.
type RunSummary struct {
	Token    string
	Scenario string
	Events   int
}

// LoadRun reads a run and its full event trace.
// Returns ErrRunNotFound if the token is unknown.
func (s *Store) LoadRun(ctx context.Context, token string) (*RunRecord, error) {
	rec := &RunRecord{Token: token}

	var snapshot string
	err := s.db.QueryRowContext(ctx, `
		SELECT scenario, snapshot FROM runs WHERE token = ?
	`, token).Scan(&rec.Scenario, &snapshot)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("load run %q: %w", token, ErrRunNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load run: %w", err)
	}
	rec.Snapshot = []byte(snapshot)

	// Deterministic ordering: seq is the logical clock.
	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, kind, unit, lanes, detail
		FROM events
		WHERE run_token = ?
		ORDER BY seq ASC
	`, token)
	if err != nil {
		return nil, fmt.Errorf("load run: query events: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var ev engine.Event
		var kind string
		if err := rows.Scan(&ev.Seq, &kind, &ev.Unit, &ev.Lanes, &ev.Detail); err != nil {
			return nil, fmt.Errorf("load run: scan event: %w", err)
		}
		ev.Kind = engine.EventKind(kind)
		rec.Events = append(rec.Events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load run: iterate events: %w", err)
	}

	if rec.Events == nil {
		rec.Events = []engine.Event{}
	}

	return rec, nil
}

// ListRuns returns a summary of every persisted run, ordered by token.
//
// Returns an empty slice (not nil) when the store is empty.
func (s *Store) ListRuns(ctx context.Context) ([]RunSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT r.token, r.scenario, COUNT(e.seq)
		FROM runs r
		LEFT JOIN events e ON e.run_token = r.token
		GROUP BY r.token, r.scenario
		ORDER BY r.token COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []RunSummary
	for rows.Next() {
		var sum RunSummary
		if err := rows.Scan(&sum.Token, &sum.Scenario, &sum.Events); err != nil {
			return nil, fmt.Errorf("list runs: scan: %w", err)
		}
		runs = append(runs, sum)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list runs: iterate: %w", err)
	}

	if runs == nil {
		runs = []RunSummary{}
	}

	return runs, nil
}

// KindCounts returns how many events of each kind a run recorded.
// Returns ErrRunNotFound if the token is unknown.
func (s *Store) KindCounts(ctx context.Context, token string) (map[string]int, error) {
	var exists int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM runs WHERE token = ?`, token,
	).Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf("kind counts: %w", err)
	}
	if exists == 0 {
		return nil, fmt.Errorf("kind counts %q: %w", token, ErrRunNotFound)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT kind, COUNT(*)
		FROM events
		WHERE run_token = ?
		GROUP BY kind
		ORDER BY kind COLLATE BINARY ASC
	`, token)
	if err != nil {
		return nil, fmt.Errorf("kind counts: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var kind string
		var n int
		if err := rows.Scan(&kind, &n); err != nil {
			return nil, fmt.Errorf("kind counts: scan: %w", err)
		}
		counts[kind] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("kind counts: iterate: %w", err)
	}

	return counts, nil
}
