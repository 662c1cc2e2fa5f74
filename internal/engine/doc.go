// Package engine implements the deterministic step executor.
//
// A Run applies an ordered chain of pure step functions to an initial state
// and records, for every step, a content-addressed fingerprint. Finalize folds
// the fingerprints into a single master commitment; Verify recomputes it.
//
// LIFECYCLE:
//
//	NewRun  -> Initialized (P0 computed)
//	AddStep -> Running (one record per step)
//	Finalize -> Finalized (master computed, first call authoritative)
//
// A step failure moves the run to Aborted. An aborted run cannot finalize, so a
// partial chain never produces a master commitment.
//
// CRITICAL PATTERNS:
//
// Content addressing: every hash goes through ir.MarshalCanonical. Two runs with
// equal inputs produce byte-identical records and the same master, regardless of
// map construction order, host or wall clock.
//
// Single owner: a Run is not safe for concurrent use. Independent runs share
// nothing and may execute in parallel.
package engine
