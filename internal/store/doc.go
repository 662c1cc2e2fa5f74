// Package store provides SQLite-backed durable storage for the proof registry
// and the self-audit history.
//
// The store is append-only:
//   - Registry entries: one row per (H_RICH, H_MASTER, verifier) registration
//   - Audit runs: one row per self-audit batch, drift list stored as JSON
//
// # Critical Patterns
//
// Append-only log
//   - Rows are INSERTed, never UPDATEd or DELETEd
//   - Consensus is always recomputed from the full entry list
//
// Deterministic Query Results
//   - Registry reads use ORDER BY seq ASC (insertion order)
//   - The ledger build sorts on its own; callers never depend on SQLite row order
//
// Verifier Always Present
//   - verifier column CHECK (verifier <> '')
//   - Quorum counts distinct verifiers, so an anonymous row could not be counted
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//
// JSON columns are written with ir.MarshalCanonical (RFC 8785).
package store
