// Package harness runs conformance scenarios against proof bundles.
//
// A scenario names a CUE chain definition, builds its rich proof bundle under
// a deterministic clock, and checks assertions about the result.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: demo_chain
//	description: "7 -> add(4) -> square"
//	chain: ../chains/demo.cue
//	chain_name: demo
//	env: { os: test, runtime: go }
//	audit: true
//	assertions:
//	  - type: master
//	    equals: dde71a3e...
//	  - type: step_output
//	    step: 2
//	    equals: 121
//	  - type: subproof
//	    name: DP
//	    ok: true
//
// The chain path is resolved relative to the scenario file.
//
// # Assertion Types
//
//   - master: the primary master commitment equals a hash
//   - h_rich: H_RICH equals a hash
//   - step_count: the chain recorded exactly N steps
//   - step_output: step N produced a value
//   - trace_order: steps were recorded in the given order
//   - subproof: a sub-proof reported ok (and optionally a field value)
//
// A scenario with expect_error must fail to build, with an error containing the
// given text; assertions are not evaluated.
//
// # Deterministic Testing
//
// Every run uses testutil.DeterministicClock and sequential bundle IDs, so the
// primary proof can be compared against a golden file with RunWithGolden.
package harness
