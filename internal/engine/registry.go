package engine

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/roach88/weave/internal/ir"
)

// Target is the function behind an operation. Arguments have already been
// checked against the operation's parameter kinds and are a private copy.
type Target func(ctx context.Context, args ir.Array) (ir.Value, error)

// Binding pairs an operation with its target.
type Binding struct {
	Operation ir.Operation
	Target    Target
}

// Registry maps operation names to their targets.
//
// Registration happens during setup. Every successful Register publishes a
// new immutable map through an atomic pointer, so Resolve never takes a
// lock and is safe for any number of concurrent readers.
//
// INVARIANTS:
//   - Operation names are unique; the first registration wins
//   - A published map is never mutated
type Registry struct {
	mu        sync.Mutex // serializes writers
	published atomic.Pointer[map[string]*Binding]
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	r := &Registry{}
	empty := map[string]*Binding{}
	r.published.Store(&empty)
	return r
}

// Register adds an operation. Fails with DUPLICATE_OPERATION if the name is
// taken and INVALID_OPERATION if the descriptor is malformed.
func (r *Registry) Register(op ir.Operation, fn Target) error {
	return r.RegisterAll([]Method{{Operation: op, Target: fn}})
}

// RegisterAll adds several operations atomically: either every operation
// is published or none is.
func (r *Registry) RegisterAll(methods []Method) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	current := *r.published.Load()
	seen := make(map[string]bool, len(methods))
	for _, m := range methods {
		if err := m.Operation.Validate(); err != nil {
			return &DispatchError{Code: ErrCodeInvalidOperation, Message: err.Error(), Operation: m.Operation.Name}
		}
		if m.Target == nil {
			return &DispatchError{Code: ErrCodeInvalidOperation, Message: "target function is nil", Operation: m.Operation.Name}
		}
		if _, exists := current[m.Operation.Name]; exists || seen[m.Operation.Name] {
			return newDuplicateOperation(m.Operation.Name)
		}
		seen[m.Operation.Name] = true
	}

	next := make(map[string]*Binding, len(current)+len(methods))
	for name, b := range current {
		next[name] = b
	}
	for _, m := range methods {
		next[m.Operation.Name] = &Binding{Operation: m.Operation.Clone(), Target: m.Target}
	}
	r.published.Store(&next)
	return nil
}

// Resolve looks up an operation by name.
func (r *Registry) Resolve(name string) (*Binding, error) {
	b, ok := (*r.published.Load())[name]
	if !ok {
		return nil, newUnknownOperation(name)
	}
	return b, nil
}

// Operations returns every registered operation sorted by name.
func (r *Registry) Operations() []ir.Operation {
	current := *r.published.Load()
	ops := make([]ir.Operation, 0, len(current))
	for _, b := range current {
		ops = append(ops, b.Operation.Clone())
	}
	slices.SortFunc(ops, func(a, b ir.Operation) int { return strings.Compare(a.Name, b.Name) })
	return ops
}

// Len returns the number of registered operations.
func (r *Registry) Len() int {
	return len(*r.published.Load())
}

// Method is one operation contributed by a Capability. Its operation name
// is local; Introduce qualifies it with the target group.
type Method struct {
	Operation ir.Operation
	Target    Target
}

// Capability is a bundle of operations that can be composed onto an
// existing group, the way a mixin adds an interface to a type.
type Capability interface {
	Methods() []Method
}

// Introduce composes a capability onto a group. Each method is registered
// as "<group>.<name>" with Group set to group, so pointcuts on the group
// also select the introduced operations. All-or-nothing.
func (r *Registry) Introduce(group string, c Capability) error {
	if group == "" {
		return &DispatchError{Code: ErrCodeInvalidOperation, Message: "introduce: group is empty"}
	}
	methods := c.Methods()
	qualified := make([]Method, len(methods))
	for i, m := range methods {
		op := m.Operation.Clone()
		op.Name = fmt.Sprintf("%s.%s", group, op.Name)
		op.Group = group
		qualified[i] = Method{Operation: op, Target: m.Target}
	}
	return r.RegisterAll(qualified)
}
