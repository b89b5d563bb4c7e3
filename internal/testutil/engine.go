package testutil

import (
	"github.com/roach88/weave/internal/engine"
)

// InvocationPrefix prefixes IDs from DeterministicOptions: inv-1, inv-2, ...
const InvocationPrefix = "inv"

// DeterministicOptions returns engine options under which the same calls
// always produce byte-identical records: seq starts at 1, invocation IDs
// are sequential and timestamps come from clock.
//
// A nil clock uses a fresh DeterministicClock.
func DeterministicOptions(clock *DeterministicClock) []engine.EngineOption {
	if clock == nil {
		clock = NewDeterministicClock()
	}
	return []engine.EngineOption{
		engine.WithClock(engine.NewClock()),
		engine.WithIDGenerator(engine.NewSequentialGenerator(InvocationPrefix)),
		engine.WithNow(clock.Now),
	}
}
