package tracestore

import (
	"context"
	"fmt"

	"github.com/strandworks/strand/internal/harness"
)

// SaveRun persists a completed scenario run: one row in runs holding
// the canonical snapshot JSON plus one row per trace event.
//
// The write is atomic and idempotent per run token. If a run with the
// same token already exists, nothing is written and inserted=false is
// returned. This mirrors the token's role as the run's identity: a
// token names exactly one trace, forever.
func (s *Store) SaveRun(ctx context.Context, result *harness.Result) (inserted bool, err error) {
	if result.RunToken == "" {
		return false, fmt.Errorf("save run: empty run token")
	}

	snapshot, err := harness.Snapshot(result).MarshalCanonical()
	if err != nil {
		return false, fmt.Errorf("save run: marshal snapshot: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("save run: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	// Claim the token atomically via the primary key.
	res, err := tx.ExecContext(ctx, `
		INSERT INTO runs (token, scenario, snapshot)
		VALUES (?, ?, ?)
		ON CONFLICT(token) DO NOTHING
	`,
		result.RunToken,
		result.Scenario,
		string(snapshot),
	)
	if err != nil {
		return false, fmt.Errorf("save run: insert run: %w", err)
	}

	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("save run: rows affected: %w", err)
	}

	if rowsAffected == 0 {
		// Token already persisted. The event rows were written in the
		// same transaction as the run row, so they exist too.
		if err := tx.Commit(); err != nil {
			return false, fmt.Errorf("save run: commit (existing): %w", err)
		}
		return false, nil
	}

	for _, ev := range result.Trace {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO events (run_token, seq, kind, unit, lanes, detail)
			VALUES (?, ?, ?, ?, ?, ?)
		`,
			result.RunToken,
			ev.Seq,
			string(ev.Kind),
			ev.Unit,
			ev.Lanes,
			ev.Detail,
		)
		if err != nil {
			return false, fmt.Errorf("save run: insert event seq %d: %w", ev.Seq, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("save run: commit: %w", err)
	}

	return true, nil
}

// DeleteRun removes a run and its events. Deleting a token that does
// not exist is a no-op.
func (s *Store) DeleteRun(ctx context.Context, token string) error {
	// events rows cascade via the foreign key.
	_, err := s.db.ExecContext(ctx, `DELETE FROM runs WHERE token = ?`, token)
	if err != nil {
		return fmt.Errorf("delete run: %w", err)
	}
	return nil
}
