package engine

import (
	"context"
	"time"

	"github.com/roach88/weave/internal/ir"
)

// Sink receives every structured event record the engine produces.
//
// Emit is called synchronously on the dispatching goroutine, in seq order
// for any single dispatch. Implementations must not block for long and
// must not fail the dispatch: errors are theirs to report.
// See package sink for implementations.
type Sink interface {
	Emit(ctx context.Context, rec ir.EventRecord)
}

type discardSink struct{}

func (discardSink) Emit(context.Context, ir.EventRecord) {}

// Engine dispatches operation calls through the rules that match them.
//
// Thread-safety model:
//   - Register/Introduce/AddRule: setup phase; safe but serialized
//   - Invoke: safe from any goroutine, re-entrant; each call owns its own
//     Invocation and chain closures
//
// INVARIANTS:
//   - A dispatch sees exactly one rule snapshot, taken at its start
//   - Resolution and argument shape failures happen before any advice runs
//   - Each Invocation settles its outcome at most once
type Engine struct {
	registry *Registry
	rules    *RuleSet
	sink     Sink
	clock    *Clock
	ids      IDGenerator
	now      func() time.Time

	policy       ir.FailurePolicy
	maxDepth     int
	multiProceed bool
}

// EngineOption allows configuration of engine parameters.
type EngineOption func(*Engine)

// WithSink sets the event sink. Default: discard.
func WithSink(s Sink) EngineOption {
	return func(e *Engine) {
		if s != nil {
			e.sink = s
		}
	}
}

// WithClock sets the logical clock. Use NewClockAt to continue an
// existing event log.
func WithClock(c *Clock) EngineOption {
	return func(e *Engine) {
		e.clock = c
	}
}

// WithIDGenerator sets the invocation ID generator. Default: UUIDv7.
func WithIDGenerator(g IDGenerator) EngineOption {
	return func(e *Engine) {
		e.ids = g
	}
}

// WithNow sets the wall-clock source for record timestamps.
func WithNow(now func() time.Time) EngineOption {
	return func(e *Engine) {
		e.now = now
	}
}

// WithFailurePolicy sets the default failure policy.
//
// Default: ir.PolicyPropagate. With ir.PolicySuppress a failure of the call
// chain is converted into a Null result after every after-throwing advice
// has run. Rules may override the policy per dispatch.
func WithFailurePolicy(p ir.FailurePolicy) EngineOption {
	return func(e *Engine) {
		if p != "" {
			e.policy = p
		}
	}
}

// WithMaxDepth bounds nested dispatch depth. Zero disables the limit.
// Default: DefaultMaxDepth.
func WithMaxDepth(n int) EngineOption {
	return func(e *Engine) {
		e.maxDepth = n
	}
}

// WithMultiProceed lets around advice call proceed more than once.
//
// Off by default: a second proceed call fails with PROCEED_REUSED. Calling
// the rest of the chain repeatedly re-runs inner around advice and the
// target, which is rarely what an advice author means.
func WithMultiProceed(allow bool) EngineOption {
	return func(e *Engine) {
		e.multiProceed = allow
	}
}

// WithRegistry shares an existing registry.
func WithRegistry(r *Registry) EngineOption {
	return func(e *Engine) {
		e.registry = r
	}
}

// WithRuleSet shares an existing rule set.
func WithRuleSet(rs *RuleSet) EngineOption {
	return func(e *Engine) {
		e.rules = rs
	}
}

// New creates an Engine with an empty registry and rule set unless options
// provide them.
func New(opts ...EngineOption) *Engine {
	e := &Engine{
		registry: NewRegistry(),
		rules:    NewRuleSet(),
		sink:     discardSink{},
		clock:    NewClock(),
		ids:      UUIDv7Generator{},
		now:      time.Now,
		policy:   ir.PolicyPropagate,
		maxDepth: DefaultMaxDepth,
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Registry returns the engine's target registry.
func (e *Engine) Registry() *Registry { return e.registry }

// Rules returns the engine's rule set.
func (e *Engine) Rules() *RuleSet { return e.rules }

// Clock returns the engine's logical clock.
func (e *Engine) Clock() *Clock { return e.clock }

// Policy returns the default failure policy.
func (e *Engine) Policy() ir.FailurePolicy { return e.policy }

// Register adds an operation to the registry.
func (e *Engine) Register(op ir.Operation, fn Target) error {
	return e.registry.Register(op, fn)
}

// Introduce composes a capability onto a group.
func (e *Engine) Introduce(group string, c Capability) error {
	return e.registry.Introduce(group, c)
}

// AddRule adds a rule and returns its ID.
func (e *Engine) AddRule(rule Rule) string {
	return e.rules.AddRule(rule)
}

// Call is Invoke with native Go arguments converted by ir.FromGo.
func (e *Engine) Call(ctx context.Context, name string, args ...any) (ir.Value, error) {
	vals := make([]ir.Value, len(args))
	for i, a := range args {
		v, err := ir.FromGo(a)
		if err != nil {
			return nil, newArgumentShape(name, "argument %d: %v", i, err)
		}
		vals[i] = v
	}
	return e.Invoke(ctx, name, vals...)
}
