package ir

import (
	"fmt"
	"slices"
	"strings"
)

// Kind is the declared type of an operation parameter or return value.
type Kind string

const (
	// KindNumeric accepts Int and Float.
	KindNumeric Kind = "numeric"
	// KindInteger accepts Int only.
	KindInteger Kind = "integer"
	KindText    Kind = "text"
	KindBool    Kind = "bool"
	// KindAny accepts every value except nil.
	KindAny Kind = "any"
	// KindVoid is valid only as a return kind; the result is Null.
	KindVoid Kind = "void"
)

// ValidParam reports whether k may be used as a parameter kind.
func (k Kind) ValidParam() bool {
	switch k {
	case KindNumeric, KindInteger, KindText, KindBool, KindAny:
		return true
	}
	return false
}

// ValidReturn reports whether k may be used as a return kind.
func (k Kind) ValidReturn() bool {
	return k == KindVoid || k.ValidParam()
}

// Accepts reports whether v conforms to k.
func (k Kind) Accepts(v Value) bool {
	switch k {
	case KindNumeric:
		switch v.(type) {
		case Int, Float:
			return true
		}
	case KindInteger:
		_, ok := v.(Int)
		return ok
	case KindText:
		_, ok := v.(String)
		return ok
	case KindBool:
		_, ok := v.(Bool)
		return ok
	case KindAny:
		return v != nil
	case KindVoid:
		_, ok := v.(Null)
		return ok
	}
	return false
}

// Operation describes a named, invocable target.
//
// Name is globally unique within a registry. Group is a dotted namespace
// used by within(...) pointcuts. Tags replace annotation-driven matching:
// an operation opts into tag-based rules by listing the tag here.
type Operation struct {
	Name    string   `json:"name" yaml:"name"`
	Group   string   `json:"group" yaml:"group"`
	Params  []Kind   `json:"params" yaml:"params"`
	Returns Kind     `json:"returns" yaml:"returns"`
	Tags    []string `json:"tags,omitempty" yaml:"tags,omitempty"`
}

// Arity returns the number of declared parameters.
func (o Operation) Arity() int {
	return len(o.Params)
}

// HasTag reports whether the operation carries tag.
func (o Operation) HasTag(tag string) bool {
	return slices.Contains(o.Tags, tag)
}

// Signature renders the operation as name(kind, ...) kind.
func (o Operation) Signature() string {
	params := make([]string, len(o.Params))
	for i, p := range o.Params {
		params[i] = string(p)
	}
	return fmt.Sprintf("%s(%s) %s", o.Name, strings.Join(params, ", "), o.Returns)
}

// Clone returns a copy that shares no slices with o.
func (o Operation) Clone() Operation {
	o.Params = slices.Clone(o.Params)
	o.Tags = slices.Clone(o.Tags)
	return o
}

// Validate checks the operation's shape.
func (o Operation) Validate() error {
	if o.Name == "" {
		return fmt.Errorf("operation name is empty")
	}
	if strings.ContainsAny(o.Name, " \t\n()") {
		return fmt.Errorf("operation name %q contains whitespace or parentheses", o.Name)
	}
	for i, p := range o.Params {
		if !p.ValidParam() {
			return fmt.Errorf("operation %s: param %d has invalid kind %q", o.Name, i, p)
		}
	}
	if !o.Returns.ValidReturn() {
		return fmt.Errorf("operation %s: invalid return kind %q", o.Name, o.Returns)
	}
	return nil
}

// Failure is the classified form of a failed invocation, rendered as
// Failure(kind, message) for callers that do not inspect Go error types.
type Failure struct {
	Kind    string `json:"kind" yaml:"kind"`
	Message string `json:"message" yaml:"message"`
}

// String renders the failure as Failure(kind, message).
func (f Failure) String() string {
	return fmt.Sprintf("Failure(%s, %s)", f.Kind, f.Message)
}

// AdviceKind is the timing of an advice relative to the target call.
type AdviceKind string

const (
	AdviceBefore         AdviceKind = "before"
	AdviceAfterReturning AdviceKind = "after_returning"
	AdviceAfterThrowing  AdviceKind = "after_throwing"
	AdviceAround         AdviceKind = "around"
)

// Valid reports whether k is a known advice kind.
func (k AdviceKind) Valid() bool {
	switch k {
	case AdviceBefore, AdviceAfterReturning, AdviceAfterThrowing, AdviceAround:
		return true
	}
	return false
}

// FailurePolicy decides what a dispatch does with a chain failure after
// every after-throwing advice has run.
type FailurePolicy string

const (
	// PolicyPropagate returns the failure to the caller.
	PolicyPropagate FailurePolicy = "propagate"
	// PolicySuppress converts the failure into a void result.
	PolicySuppress FailurePolicy = "suppress"
)

// Valid reports whether p is a known policy. The empty policy is valid and
// means "inherit".
func (p FailurePolicy) Valid() bool {
	switch p {
	case "", PolicyPropagate, PolicySuppress:
		return true
	}
	return false
}

// AspectSpec is a declarative rule: a pointcut expression, a priority, and
// the names of catalogued advice functions to attach.
type AspectSpec struct {
	ID          string        `json:"id"`
	Description string        `json:"description,omitempty"`
	Pointcut    string        `json:"pointcut"`
	Priority    int           `json:"priority"`
	Policy      FailurePolicy `json:"policy,omitempty"`
	Advice      []AdviceSpec  `json:"advice"`
}

// AdviceSpec references a catalogued advice function by name.
type AdviceSpec struct {
	Kind AdviceKind `json:"kind"`
	Use  string     `json:"use"`
}
