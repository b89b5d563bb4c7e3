package compiler

import (
	"fmt"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/weave/internal/ir"
	"github.com/roach88/weave/internal/pointcut"
)

// CompileAspect parses a CUE value into an AspectSpec.
// Uses CUE SDK's Go API directly (not CLI subprocess).
//
// The CUE value should be the aspect struct itself, e.g.:
//
//	ctx := cuecontext.New()
//	v := ctx.CompileString(`aspect: "calc-logging": { ... }`)
//	spec, err := CompileAspect(v.LookupPath(cue.ParsePath(`aspect."calc-logging"`)))
//
// The pointcut expression is parsed here so a bad expression is reported
// with the position of the pointcut field.
func CompileAspect(v cue.Value) (*ir.AspectSpec, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	spec := &ir.AspectSpec{}

	// Aspect ID is the struct label; quoted labels carry their quotes.
	labels := v.Path().Selectors()
	if len(labels) > 0 {
		spec.ID = strings.Trim(labels[len(labels)-1].String(), `"`)
	}

	var err error
	if spec.Description, err = optionalString(v, "description"); err != nil {
		return nil, err
	}

	spec.Pointcut, err = parsePointcut(v)
	if err != nil {
		return nil, err
	}

	spec.Priority, err = parsePriority(v)
	if err != nil {
		return nil, err
	}

	spec.Policy, err = parsePolicy(v)
	if err != nil {
		return nil, err
	}

	spec.Advice, err = parseAdvice(v)
	if err != nil {
		return nil, err
	}

	return spec, nil
}

// CompileAspects compiles every field of the aspect struct in v, in
// declaration order. Errors are collected rather than returned on the
// first failure; a failed aspect is left out of the result.
func CompileAspects(v cue.Value) ([]ir.AspectSpec, []error) {
	aspectsVal := v.LookupPath(cue.ParsePath("aspect"))
	if !aspectsVal.Exists() {
		return nil, nil
	}

	iter, err := aspectsVal.Fields()
	if err != nil {
		return nil, []error{formatCUEError(err)}
	}

	var (
		specs []ir.AspectSpec
		errs  []error
	)
	for iter.Next() {
		spec, err := CompileAspect(iter.Value())
		if err != nil {
			errs = append(errs, err)
			continue
		}
		specs = append(specs, *spec)
	}
	return specs, errs
}

func optionalString(v cue.Value, field string) (string, error) {
	fv := v.LookupPath(cue.ParsePath(field))
	if !fv.Exists() {
		return "", nil
	}
	s, err := fv.String()
	if err != nil {
		return "", &CompileError{
			Field:   field,
			Message: fmt.Sprintf("%s must be a string", field),
			Pos:     fv.Pos(),
		}
	}
	return s, nil
}

func parsePointcut(v cue.Value) (string, error) {
	pcVal := v.LookupPath(cue.ParsePath("pointcut"))
	if !pcVal.Exists() {
		return "", &CompileError{
			Field:   "pointcut",
			Message: "pointcut is required",
			Pos:     v.Pos(),
		}
	}

	expr, err := pcVal.String()
	if err != nil {
		return "", &CompileError{
			Field:   "pointcut",
			Message: "pointcut must be a string expression",
			Pos:     pcVal.Pos(),
		}
	}

	pred, err := pointcut.Parse(expr)
	if err != nil {
		return "", &CompileError{
			Field:   "pointcut",
			Message: err.Error(),
			Pos:     pcVal.Pos(),
		}
	}

	// Store the canonical rendering so equivalent spellings compare equal.
	return pred.String(), nil
}

func parsePriority(v cue.Value) (int, error) {
	pVal := v.LookupPath(cue.ParsePath("priority"))
	if !pVal.Exists() {
		return 0, nil
	}
	if pVal.IncompleteKind() != cue.IntKind {
		return 0, &CompileError{
			Field:   "priority",
			Message: "priority must be an integer",
			Pos:     pVal.Pos(),
		}
	}
	n, err := pVal.Int64()
	if err != nil {
		return 0, formatCUEError(err)
	}
	return int(n), nil
}

func parsePolicy(v cue.Value) (ir.FailurePolicy, error) {
	s, err := optionalString(v, "policy")
	if err != nil || s == "" {
		return "", err
	}
	policy := ir.FailurePolicy(s)
	if !policy.Valid() {
		return "", &CompileError{
			Field:   "policy",
			Message: fmt.Sprintf("invalid policy %q, must be %q or %q", s, ir.PolicyPropagate, ir.PolicySuppress),
			Pos:     v.LookupPath(cue.ParsePath("policy")).Pos(),
		}
	}
	return policy, nil
}

// parseAdvice reads the advice list. Each entry is {kind, use}.
func parseAdvice(v cue.Value) ([]ir.AdviceSpec, error) {
	adviceVal := v.LookupPath(cue.ParsePath("advice"))
	if !adviceVal.Exists() {
		return nil, &CompileError{
			Field:   "advice",
			Message: "at least one advice is required",
			Pos:     v.Pos(),
		}
	}

	list, err := adviceVal.List()
	if err != nil {
		return nil, &CompileError{
			Field:   "advice",
			Message: "advice must be a list of {kind, use}",
			Pos:     adviceVal.Pos(),
		}
	}

	var advice []ir.AdviceSpec
	for i := 0; list.Next(); i++ {
		item := list.Value()

		kind, err := requiredString(item, "kind", fmt.Sprintf("advice[%d]", i))
		if err != nil {
			return nil, err
		}
		if !ir.AdviceKind(kind).Valid() {
			return nil, &CompileError{
				Field:   "advice.kind",
				Message: fmt.Sprintf("advice[%d]: invalid kind %q, must be before, around, after_returning or after_throwing", i, kind),
				Pos:     item.Pos(),
			}
		}

		use, err := requiredString(item, "use", fmt.Sprintf("advice[%d]", i))
		if err != nil {
			return nil, err
		}

		advice = append(advice, ir.AdviceSpec{Kind: ir.AdviceKind(kind), Use: use})
	}

	if len(advice) == 0 {
		return nil, &CompileError{
			Field:   "advice",
			Message: "at least one advice is required",
			Pos:     adviceVal.Pos(),
		}
	}
	return advice, nil
}

func requiredString(v cue.Value, field, where string) (string, error) {
	fv := v.LookupPath(cue.ParsePath(field))
	if !fv.Exists() {
		return "", &CompileError{
			Field:   "advice." + field,
			Message: fmt.Sprintf("%s: %s is required", where, field),
			Pos:     v.Pos(),
		}
	}
	s, err := fv.String()
	if err != nil {
		return "", &CompileError{
			Field:   "advice." + field,
			Message: fmt.Sprintf("%s: %s must be a string", where, field),
			Pos:     fv.Pos(),
		}
	}
	return s, nil
}

// CompileError represents a compilation error with source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	// CUE errors may contain multiple errors
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	firstErr := errs[0]
	positions := errors.Positions(firstErr)
	if len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: firstErr.Error(),
			Pos:     positions[0],
		}
	}

	return err
}
