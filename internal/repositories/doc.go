// Package repositories implements SQLite persistence for the local import history.
//
// Key Implementations:
//   - [ImportRunRepository] : one row per import run with provider/state/job lookups
//   - [RunRecorder] : adapter used by the import engine to record runs as they start and finish
//
// All repositories support soft deletes via deleted_at timestamps and exclude deleted records from queries by default.
//
// Sequence numbers provide stable, human-readable ordering (e.g., run #42) independent of UUIDs and creation timestamps.
// The [NextSequence] function atomically increments per-table sequence counters in dedicated sequence tables.
package repositories
