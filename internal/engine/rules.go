package engine

import (
	"cmp"
	"context"
	"fmt"
	"iter"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/roach88/weave/internal/ir"
	"github.com/roach88/weave/internal/pointcut"
)

// Proceed invokes the next link of the call chain: the next inner around
// advice, or the target itself.
type Proceed func(ctx context.Context) (ir.Value, error)

// BeforeFunc runs before the chain. Returning an error stops the dispatch.
type BeforeFunc func(ctx context.Context, inv *Invocation) error

// AfterReturningFunc observes a successful result. It receives a copy of
// the result; the caller's result cannot be changed.
type AfterReturningFunc func(ctx context.Context, inv *Invocation, result ir.Value) error

// AfterThrowingFunc observes a failure. Returning a non-nil error replaces
// the failure that propagates.
type AfterThrowingFunc func(ctx context.Context, inv *Invocation, err error) error

// AroundFunc wraps the rest of the chain.
type AroundFunc func(ctx context.Context, inv *Invocation, proceed Proceed) (ir.Value, error)

// Advice is one callback attached to a rule.
type Advice struct {
	Name string
	Kind ir.AdviceKind

	before         BeforeFunc
	afterReturning AfterReturningFunc
	afterThrowing  AfterThrowingFunc
	around         AroundFunc
}

// Before creates a before advice.
func Before(name string, fn BeforeFunc) Advice {
	return Advice{Name: name, Kind: ir.AdviceBefore, before: fn}
}

// AfterReturning creates an after-success advice.
func AfterReturning(name string, fn AfterReturningFunc) Advice {
	return Advice{Name: name, Kind: ir.AdviceAfterReturning, afterReturning: fn}
}

// AfterThrowing creates an after-failure advice.
func AfterThrowing(name string, fn AfterThrowingFunc) Advice {
	return Advice{Name: name, Kind: ir.AdviceAfterThrowing, afterThrowing: fn}
}

// Around creates an around advice.
func Around(name string, fn AroundFunc) Advice {
	return Advice{Name: name, Kind: ir.AdviceAround, around: fn}
}

// Rule is a predicate, a priority and the advice it attaches.
//
// Lower Priority runs first for before and after advice and wraps outermost
// for around advice. Rules with equal priority keep registration order.
// A nil Pointcut matches every operation.
type Rule struct {
	ID       string
	Pointcut pointcut.Predicate
	Priority int
	// Policy overrides the engine's failure policy for dispatches this rule
	// matches. Empty means inherit.
	Policy ir.FailurePolicy
	Advice []Advice
}

// Matches reports whether the rule applies to op.
func (r Rule) Matches(op ir.Operation) bool {
	if r.Pointcut == nil {
		return true
	}
	return r.Pointcut.Match(op)
}

// PointcutString renders the rule's pointcut.
func (r Rule) PointcutString() string {
	if r.Pointcut == nil {
		return pointcut.Any().String()
	}
	return r.Pointcut.String()
}

// RuleSet is the ordered collection of rules.
//
// Like Registry, every AddRule publishes a new immutable, already-sorted
// snapshot. Dispatch takes one snapshot at the start of each call, so rules
// added mid-call never affect that call.
type RuleSet struct {
	mu        sync.Mutex
	published atomic.Pointer[RuleSnapshot]
	nextID    int
}

// NewRuleSet creates an empty rule set.
func NewRuleSet() *RuleSet {
	rs := &RuleSet{}
	rs.published.Store(&RuleSnapshot{})
	return rs
}

// AddRule appends a rule and returns its ID. Always succeeds. An empty ID
// is replaced with "rule-<n>". Identical (predicate, priority) pairs are
// allowed; they run in registration order.
func (rs *RuleSet) AddRule(rule Rule) string {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	rs.nextID++
	if rule.ID == "" {
		rule.ID = fmt.Sprintf("rule-%d", rs.nextID)
	}
	rule.Advice = slices.Clone(rule.Advice)

	current := rs.published.Load().rules
	next := make([]Rule, len(current), len(current)+1)
	copy(next, current)
	next = append(next, rule)

	// Stable: equal priorities keep insertion order.
	slices.SortStableFunc(next, func(a, b Rule) int { return cmp.Compare(a.Priority, b.Priority) })
	rs.published.Store(&RuleSnapshot{rules: next})
	return rule.ID
}

// Snapshot returns the currently published rules.
func (rs *RuleSet) Snapshot() *RuleSnapshot {
	return rs.published.Load()
}

// Matching is shorthand for Snapshot().Matching(op).
func (rs *RuleSet) Matching(op ir.Operation) iter.Seq[Rule] {
	return rs.Snapshot().Matching(op)
}

// Len returns the number of rules.
func (rs *RuleSet) Len() int {
	return rs.Snapshot().Len()
}

// RuleSnapshot is an immutable, sorted view of a RuleSet.
type RuleSnapshot struct {
	rules []Rule
}

// Matching yields the rules whose predicate accepts op, ordered by priority
// then registration. The sequence is lazy and may be ranged over any number
// of times.
func (s *RuleSnapshot) Matching(op ir.Operation) iter.Seq[Rule] {
	return func(yield func(Rule) bool) {
		for _, r := range s.rules {
			if r.Matches(op) && !yield(r) {
				return
			}
		}
	}
}

// All yields every rule in order.
func (s *RuleSnapshot) All() iter.Seq[Rule] {
	return slices.Values(s.rules)
}

// Len returns the number of rules in the snapshot.
func (s *RuleSnapshot) Len() int {
	return len(s.rules)
}
