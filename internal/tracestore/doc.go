// Package tracestore provides SQLite-backed durable storage for
// completed scenario runs and their event traces.
//
// A run is stored twice, deliberately:
//   - runs.snapshot holds the RFC 8785 canonical JSON of the full
//     trace, byte-identical to the golden-file form, so two runs can
//     be compared with a plain string equality check
//   - events holds one row per trace event for ad-hoc querying
//     (counts by kind, filtering by unit or lane)
//
// # Critical Patterns
//
// Logical Identity and Time
//   - All ordering uses seq INTEGER (logical clock), NEVER timestamps
//   - Enables byte-identical traces regardless of wall time
//
// Deterministic Query Results
//   - Event queries MUST include: ORDER BY seq ASC
//   - Run listings order by token COLLATE BINARY ASC
//
// Run-Level Idempotency
//   - runs.token is the primary key; saving the same run token twice
//     is a silent no-op, so re-running a persisted scenario is safe
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package tracestore
