// Package engine implements the weave interception engine.
//
// The engine routes every call of a registered operation through the
// advice of the rules that match it. It never formats text: everything it
// observes is reported as structured ir.EventRecord values to a Sink.
//
// ARCHITECTURE:
//
// Registry and RuleSet (setup phase):
// Operations and rules are registered up front. Each write publishes a new
// immutable snapshot through an atomic pointer, so lookups during dispatch
// take no locks.
//
// Dispatch (Invoke):
//  1. Resolve the operation and check argument shape; failures here are
//     reported before any advice runs
//  2. Snapshot the arguments into an Invocation
//  3. Take one rule snapshot and split matching advice by kind
//  4. Before advice, then the around chain wrapping the target, then
//     after-throwing or after-returning advice
//
// Everything runs synchronously on the calling goroutine. The engine does
// not retry, schedule or cancel anything.
//
// CRITICAL PATTERNS:
//
// Ordering:
// Rules are ordered by priority ascending, then registration order.
// Lower priority means earlier before/after advice and an outer around.
//
// Logical Clock:
// Every record carries a seq from Clock.Next(). Timestamps are
// informational; ordering always uses seq.
//
// Owned State:
// The engine shares no mutable state between dispatches. Advice that
// keeps state (counters, caches) owns it and synchronizes it itself.
package engine
