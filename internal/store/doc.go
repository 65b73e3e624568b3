// Package store records harness runs in a SQLite ledger.
//
// Each run is one row in the runs table, keyed by a UUIDv7 id. Writes are
// idempotent on id, so recording the same run twice is harmless.
// ListRuns orders by started_at DESC, id ASC so results are stable when
// two runs share a timestamp.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
