// Package pointcut selects operations for interception rules.
//
// Predicates are built directly (Name, Group, Tag, Args, And, Or, Not) or
// compiled from expressions with Parse.
package pointcut

import (
	"path"
	"strings"

	"github.com/roach88/weave/internal/ir"
)

// Predicate decides whether a rule applies to an operation.
//
// Match must be pure: it may only inspect the operation descriptor and
// must return the same answer every time for the same operation.
type Predicate interface {
	Match(op ir.Operation) bool
	String() string
}

// Any matches every operation.
func Any() Predicate { return anyPredicate{} }

type anyPredicate struct{}

func (anyPredicate) Match(ir.Operation) bool { return true }
func (anyPredicate) String() string          { return "any()" }

// Name matches operations whose name matches a path.Match glob.
// "*" spans dots, so "calc.*" matches every operation named calc.<x>.
func Name(pattern string) Predicate { return namePredicate{pattern: pattern} }

type namePredicate struct{ pattern string }

func (p namePredicate) Match(op ir.Operation) bool {
	ok, _ := path.Match(p.pattern, op.Name)
	return ok
}

func (p namePredicate) String() string { return "execution(" + p.pattern + ")" }

// Group matches operations whose group matches a glob. A trailing "+"
// also matches every subgroup: "calc+" matches "calc" and "calc.sci".
func Group(pattern string) Predicate {
	if base, ok := strings.CutSuffix(pattern, "+"); ok {
		return groupPredicate{pattern: base, subgroups: true}
	}
	return groupPredicate{pattern: pattern}
}

type groupPredicate struct {
	pattern   string
	subgroups bool
}

func (p groupPredicate) Match(op ir.Operation) bool {
	if ok, _ := path.Match(p.pattern, op.Group); ok {
		return true
	}
	if !p.subgroups {
		return false
	}
	for g := op.Group; ; {
		i := strings.LastIndexByte(g, '.')
		if i < 0 {
			return false
		}
		g = g[:i]
		if ok, _ := path.Match(p.pattern, g); ok {
			return true
		}
	}
}

func (p groupPredicate) String() string {
	if p.subgroups {
		return "within(" + p.pattern + "+)"
	}
	return "within(" + p.pattern + ")"
}

// Tag matches operations that carry the tag.
func Tag(tag string) Predicate { return tagPredicate{tag: tag} }

type tagPredicate struct{ tag string }

func (p tagPredicate) Match(op ir.Operation) bool { return op.HasTag(p.tag) }
func (p tagPredicate) String() string             { return "@annotation(" + p.tag + ")" }

// Args matches operations by parameter kinds. When open is true the
// operation may declare further parameters after the listed ones.
func Args(open bool, kinds ...ir.Kind) Predicate {
	return argsPredicate{kinds: kinds, open: open}
}

type argsPredicate struct {
	kinds []ir.Kind
	open  bool
}

func (p argsPredicate) Match(op ir.Operation) bool {
	if len(op.Params) < len(p.kinds) || (!p.open && len(op.Params) != len(p.kinds)) {
		return false
	}
	for i, k := range p.kinds {
		if k != ir.KindAny && op.Params[i] != k {
			return false
		}
	}
	return true
}

func (p argsPredicate) String() string {
	parts := make([]string, 0, len(p.kinds)+1)
	for _, k := range p.kinds {
		parts = append(parts, string(k))
	}
	if p.open {
		parts = append(parts, "..")
	}
	return "args(" + strings.Join(parts, ", ") + ")"
}

// And matches when every operand matches. And() matches everything.
func And(ps ...Predicate) Predicate {
	if len(ps) == 1 {
		return ps[0]
	}
	return andPredicate(ps)
}

type andPredicate []Predicate

func (ps andPredicate) Match(op ir.Operation) bool {
	for _, p := range ps {
		if !p.Match(op) {
			return false
		}
	}
	return true
}

func (ps andPredicate) String() string { return join([]Predicate(ps), " && ") }

// Or matches when any operand matches. Or() matches nothing.
func Or(ps ...Predicate) Predicate {
	if len(ps) == 1 {
		return ps[0]
	}
	return orPredicate(ps)
}

type orPredicate []Predicate

func (ps orPredicate) Match(op ir.Operation) bool {
	for _, p := range ps {
		if p.Match(op) {
			return true
		}
	}
	return false
}

func (ps orPredicate) String() string { return join([]Predicate(ps), " || ") }

// Not inverts a predicate.
func Not(p Predicate) Predicate { return notPredicate{inner: p} }

type notPredicate struct{ inner Predicate }

func (p notPredicate) Match(op ir.Operation) bool { return !p.inner.Match(op) }
func (p notPredicate) String() string             { return "!" + p.inner.String() }

// Func adapts a plain function. The label is used as its String form.
func Func(label string, fn func(ir.Operation) bool) Predicate {
	return funcPredicate{label: label, fn: fn}
}

type funcPredicate struct {
	label string
	fn    func(ir.Operation) bool
}

func (p funcPredicate) Match(op ir.Operation) bool { return p.fn(op) }
func (p funcPredicate) String() string             { return p.label }

func join(ps []Predicate, sep string) string {
	if len(ps) == 0 {
		if sep == " && " {
			return "any()"
		}
		return "!any()"
	}
	parts := make([]string, len(ps))
	for i, p := range ps {
		parts[i] = p.String()
	}
	return "(" + strings.Join(parts, sep) + ")"
}
