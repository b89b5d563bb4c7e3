package compiler

import (
	"fmt"
	"strings"

	"github.com/roach88/weave/internal/ir"
	"github.com/roach88/weave/internal/pointcut"
)

// Validation error codes (E100-E199)
const (
	// General validation errors (E100)
	ErrUnsupportedIRType = "E100" // unsupported IR type for validation

	// AspectSpec errors (E120-E129)
	ErrAspectNoID        = "E120" // aspect ID is required
	ErrAspectNoPointcut  = "E121" // pointcut is required
	ErrInvalidPointcut   = "E122" // pointcut does not parse
	ErrAspectNoAdvice    = "E123" // at least one advice required
	ErrInvalidAdviceKind = "E124" // unknown advice kind
	ErrAdviceNoUse       = "E125" // advice must name a catalog entry
	ErrInvalidPolicy     = "E126" // unknown failure policy
	ErrDuplicateAspect   = "E127" // duplicate aspect ID
	ErrUnknownAdvice     = "E128" // advice name not in catalog

	// Operation errors (E130-E139)
	ErrInvalidOperationName = "E130" // empty or malformed operation name
	ErrInvalidParamKind     = "E131" // parameter kind not accepted
	ErrInvalidReturnKind    = "E132" // return kind not accepted
	ErrDuplicateOperation   = "E133" // duplicate operation name
)

// ValidationError represents a schema validation error.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
	Line    int    `json:"line,omitempty"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("[%s] line %d: %s: %s", e.Code, e.Line, e.Field, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// Validate validates compiled IR against schema rules.
// Returns all errors found (does not fail-fast).
// Supports AspectSpec, []AspectSpec, Operation and []Operation.
func Validate(v any) []ValidationError {
	switch val := v.(type) {
	case *ir.AspectSpec:
		return validateAspect(val)
	case ir.AspectSpec:
		return validateAspect(&val)
	case []ir.AspectSpec:
		return validateAspects(val)
	case *ir.Operation:
		return validateOperation(val)
	case ir.Operation:
		return validateOperation(&val)
	case []ir.Operation:
		return validateOperations(val)
	default:
		return []ValidationError{{
			Field:   "type",
			Message: fmt.Sprintf("unsupported IR type: %T", v),
			Code:    ErrUnsupportedIRType,
		}}
	}
}

// AdviceLookup reports whether a catalog holds advice name of the given kind.
type AdviceLookup func(kind ir.AdviceKind, name string) bool

// ValidateAdviceRefs checks that every advice an aspect uses exists in
// the catalog.
func ValidateAdviceRefs(specs []ir.AspectSpec, lookup AdviceLookup) []ValidationError {
	var errs []ValidationError
	for _, spec := range specs {
		for i, a := range spec.Advice {
			if a.Use == "" || !a.Kind.Valid() {
				continue // reported by Validate
			}
			if !lookup(a.Kind, a.Use) {
				errs = append(errs, ValidationError{
					Field:   fmt.Sprintf("aspect.%s.advice[%d].use", spec.ID, i),
					Message: fmt.Sprintf("no %s advice named %q in catalog", a.Kind, a.Use),
					Code:    ErrUnknownAdvice,
				})
			}
		}
	}
	return errs
}

func validateAspects(specs []ir.AspectSpec) []ValidationError {
	var errs []ValidationError
	seen := make(map[string]bool)
	for i := range specs {
		errs = append(errs, validateAspect(&specs[i])...)

		// E127: duplicate ID
		id := specs[i].ID
		if id != "" && seen[id] {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("aspects[%d].id", i),
				Message: fmt.Sprintf("duplicate aspect ID: %q", id),
				Code:    ErrDuplicateAspect,
			})
		}
		seen[id] = true
	}
	return errs
}

// validateAspect validates a single aspect declaration.
func validateAspect(spec *ir.AspectSpec) []ValidationError {
	var errs []ValidationError
	prefix := "aspect"
	if spec.ID != "" {
		prefix = "aspect." + spec.ID
	}

	// E120: ID is required
	if strings.TrimSpace(spec.ID) == "" {
		errs = append(errs, ValidationError{
			Field:   "id",
			Message: "aspect ID is required and must be non-empty",
			Code:    ErrAspectNoID,
		})
	}

	// E121/E122: pointcut must be present and parse
	if strings.TrimSpace(spec.Pointcut) == "" {
		errs = append(errs, ValidationError{
			Field:   prefix + ".pointcut",
			Message: "pointcut is required",
			Code:    ErrAspectNoPointcut,
		})
	} else if _, err := pointcut.Parse(spec.Pointcut); err != nil {
		errs = append(errs, ValidationError{
			Field:   prefix + ".pointcut",
			Message: err.Error(),
			Code:    ErrInvalidPointcut,
		})
	}

	// E126: policy, when set, must be known
	if spec.Policy != "" && !spec.Policy.Valid() {
		errs = append(errs, ValidationError{
			Field:   prefix + ".policy",
			Message: fmt.Sprintf("invalid policy %q, must be %q or %q", spec.Policy, ir.PolicyPropagate, ir.PolicySuppress),
			Code:    ErrInvalidPolicy,
		})
	}

	// E123: at least one advice
	if len(spec.Advice) == 0 {
		errs = append(errs, ValidationError{
			Field:   prefix + ".advice",
			Message: "at least one advice is required",
			Code:    ErrAspectNoAdvice,
		})
	}

	for i, a := range spec.Advice {
		field := fmt.Sprintf("%s.advice[%d]", prefix, i)

		// E124: kind must be known
		if !a.Kind.Valid() {
			errs = append(errs, ValidationError{
				Field:   field + ".kind",
				Message: fmt.Sprintf("invalid advice kind %q", a.Kind),
				Code:    ErrInvalidAdviceKind,
			})
		}

		// E125: use must name a catalog entry
		if strings.TrimSpace(a.Use) == "" {
			errs = append(errs, ValidationError{
				Field:   field + ".use",
				Message: "advice must name a catalog entry",
				Code:    ErrAdviceNoUse,
			})
		}
	}

	return errs
}

func validateOperations(ops []ir.Operation) []ValidationError {
	var errs []ValidationError
	seen := make(map[string]bool)
	for i := range ops {
		errs = append(errs, validateOperation(&ops[i])...)

		// E133: duplicate name
		if name := ops[i].Name; name != "" {
			if seen[name] {
				errs = append(errs, ValidationError{
					Field:   fmt.Sprintf("operations[%d].name", i),
					Message: fmt.Sprintf("duplicate operation name: %q", name),
					Code:    ErrDuplicateOperation,
				})
			}
			seen[name] = true
		}
	}
	return errs
}

// validateOperation validates an operation descriptor field by field.
func validateOperation(op *ir.Operation) []ValidationError {
	var errs []ValidationError

	// E130: name must be present and free of whitespace/parentheses
	switch {
	case op.Name == "":
		errs = append(errs, ValidationError{
			Field:   "name",
			Message: "operation name is required",
			Code:    ErrInvalidOperationName,
		})
	case strings.ContainsAny(op.Name, " \t\n()"):
		errs = append(errs, ValidationError{
			Field:   "name",
			Message: fmt.Sprintf("operation name %q contains whitespace or parentheses", op.Name),
			Code:    ErrInvalidOperationName,
		})
	}

	// E131: parameter kinds
	for i, p := range op.Params {
		if !p.ValidParam() {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("%s.params[%d]", op.Name, i),
				Message: fmt.Sprintf("invalid parameter kind %q", p),
				Code:    ErrInvalidParamKind,
			})
		}
	}

	// E132: return kind
	if !op.Returns.ValidReturn() {
		errs = append(errs, ValidationError{
			Field:   op.Name + ".returns",
			Message: fmt.Sprintf("invalid return kind %q", op.Returns),
			Code:    ErrInvalidReturnKind,
		})
	}

	return errs
}
