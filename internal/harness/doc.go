// Package harness provides conformance testing for weave.
//
// The harness runs YAML scenarios against the demo engine and checks the
// real outcomes and event traces, recorded through an in-memory store.
//
// # Scenario Format
//
//	name: divide_by_zero
//	description: "What this scenario validates"
//	aspects:            # optional, replaces the embedded demo aspects
//	  - aspects.cue
//	policy: suppress    # optional engine-wide failure policy
//	setup:
//	  - invoke: cd.playTrack
//	    args: [1]
//	flow:
//	  - invoke: calc.div
//	    args: [4, 0]
//	    expect:
//	      outcome: failure
//	      error: { kind: ADVICE_FAILED, message: "Validation: division by zero" }
//	assertions:
//	  - type: target_not_called
//	    step: 0
//	  - type: track_counts
//	    tracks: { 1: 1 }
//
// # Assertion Types
//
//   - phase_order: the phases recorded for one flow step, exactly
//   - trace_contains: a record matches operation, phase and advice filters
//   - trace_count: exactly N records match the filters
//   - track_counts: the demo track counter holds the listed counts
//   - target_not_called: no target.call record for a step or operation
//
// # Deterministic Testing
//
// Every scenario runs with a fresh logical clock, sequential invocation
// IDs (inv-1, inv-2, ...) and a stepping wall clock from testutil, so the
// same scenario always produces the same trace for golden comparison.
package harness
