package engine

import (
	"errors"
	"fmt"

	"github.com/roach88/weave/internal/ir"
)

// DispatchError represents an error raised by the engine itself rather than
// by a target's own logic.
//
// DispatchError includes structured fields for diagnostics. Cause carries
// the wrapped error for ADVICE_FAILED; errors.Is/As see through it.
type DispatchError struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// Operation is the operation being dispatched or registered.
	Operation string

	// RuleID and Advice identify the advice that failed (ADVICE_FAILED only).
	RuleID string
	Advice string
	Kind   ir.AdviceKind

	// Cause is the underlying error, if any.
	Cause error
}

// ErrorCode categorizes dispatch errors.
type ErrorCode string

const (
	// ErrCodeUnknownOperation indicates the operation name is not registered.
	ErrCodeUnknownOperation ErrorCode = "UNKNOWN_OPERATION"

	// ErrCodeArgumentShape indicates arity or argument kinds do not match
	// the operation signature.
	ErrCodeArgumentShape ErrorCode = "ARGUMENT_SHAPE"

	// ErrCodeResultShape indicates a target returned a value that does not
	// match its declared return kind.
	ErrCodeResultShape ErrorCode = "RESULT_SHAPE"

	// ErrCodeDuplicateOperation indicates a second registration of a name.
	ErrCodeDuplicateOperation ErrorCode = "DUPLICATE_OPERATION"

	// ErrCodeInvalidOperation indicates a malformed operation descriptor.
	ErrCodeInvalidOperation ErrorCode = "INVALID_OPERATION"

	// ErrCodeAdviceFailed indicates an advice callback raised.
	ErrCodeAdviceFailed ErrorCode = "ADVICE_FAILED"

	// ErrCodeContextNotReady indicates the outcome was read before it was set.
	ErrCodeContextNotReady ErrorCode = "CONTEXT_NOT_READY"

	// ErrCodeProceedReused indicates an around advice called proceed twice.
	ErrCodeProceedReused ErrorCode = "PROCEED_REUSED"

	// ErrCodeDepthExceeded indicates nested dispatch exceeded the max depth.
	ErrCodeDepthExceeded ErrorCode = "DEPTH_EXCEEDED"

	// ErrCodeReentrantDispatch indicates a dispatch re-entered itself with
	// identical arguments.
	ErrCodeReentrantDispatch ErrorCode = "REENTRANT_DISPATCH"

	// KindTargetError is the failure kind reported by Classify for plain
	// errors raised by target functions.
	KindTargetError = "TARGET_ERROR"
)

// Error implements the error interface.
func (e *DispatchError) Error() string {
	switch {
	case e.Code == ErrCodeAdviceFailed && e.Cause != nil:
		return fmt.Sprintf("%s: %s advice %q (rule=%s) on %s: %v", e.Code, e.Kind, e.Advice, e.RuleID, e.Operation, e.Cause)
	case e.Operation != "":
		return fmt.Sprintf("%s: %s (operation=%s)", e.Code, e.Message, e.Operation)
	default:
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
}

// Unwrap returns the wrapped cause.
func (e *DispatchError) Unwrap() error {
	return e.Cause
}

// TargetError is a domain failure raised by a target or advice with an
// explicit kind, such as a division by zero.
type TargetError struct {
	Kind    string
	Message string
}

func (e *TargetError) Error() string {
	return e.Message
}

// Fail returns a TargetError with a formatted message.
func Fail(kind, format string, args ...any) error {
	return &TargetError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// hasCode walks every DispatchError in err's chain. errors.As alone stops
// at the outermost one, which hides e.g. CONTEXT_NOT_READY wrapped inside
// ADVICE_FAILED.
func hasCode(err error, code ErrorCode) bool {
	for err != nil {
		var de *DispatchError
		if !errors.As(err, &de) {
			return false
		}
		if de.Code == code {
			return true
		}
		err = de.Cause
	}
	return false
}

// IsUnknownOperation returns true if the error is an unknown operation error.
func IsUnknownOperation(err error) bool { return hasCode(err, ErrCodeUnknownOperation) }

// IsArgumentShape returns true if the error is an argument shape error.
func IsArgumentShape(err error) bool { return hasCode(err, ErrCodeArgumentShape) }

// IsDuplicateOperation returns true if the error is a duplicate registration.
func IsDuplicateOperation(err error) bool { return hasCode(err, ErrCodeDuplicateOperation) }

// IsAdviceError returns true if the error came from an advice callback.
func IsAdviceError(err error) bool { return hasCode(err, ErrCodeAdviceFailed) }

// IsContextNotReady returns true if the error is a premature outcome read.
func IsContextNotReady(err error) bool { return hasCode(err, ErrCodeContextNotReady) }

// IsProceedReused returns true if an around advice called proceed twice.
func IsProceedReused(err error) bool { return hasCode(err, ErrCodeProceedReused) }

// IsDepthExceeded returns true if nested dispatch went too deep.
func IsDepthExceeded(err error) bool { return hasCode(err, ErrCodeDepthExceeded) }

// IsReentrant returns true if a dispatch re-entered itself.
func IsReentrant(err error) bool { return hasCode(err, ErrCodeReentrantDispatch) }

// Classify renders an invoke error as Failure(kind, message).
//
// Engine errors use their code as the kind. ADVICE_FAILED keeps the kind
// and reports the innermost cause's message, so a validation advice that
// raised "Validation: division by zero" is reported with that text.
// TargetError keeps its own kind. Anything else is TARGET_ERROR.
func Classify(err error) ir.Failure {
	if err == nil {
		return ir.Failure{}
	}
	var de *DispatchError
	if errors.As(err, &de) {
		if de.Code == ErrCodeAdviceFailed && de.Cause != nil {
			return ir.Failure{Kind: string(de.Code), Message: causeMessage(de.Cause)}
		}
		return ir.Failure{Kind: string(de.Code), Message: de.Message}
	}
	var te *TargetError
	if errors.As(err, &te) {
		return ir.Failure{Kind: te.Kind, Message: te.Message}
	}
	return ir.Failure{Kind: KindTargetError, Message: err.Error()}
}

func causeMessage(err error) string {
	var de *DispatchError
	if errors.As(err, &de) {
		if de.Code == ErrCodeAdviceFailed && de.Cause != nil {
			return causeMessage(de.Cause)
		}
		return de.Message
	}
	return err.Error()
}

func newUnknownOperation(name string) *DispatchError {
	return &DispatchError{
		Code:      ErrCodeUnknownOperation,
		Message:   fmt.Sprintf("no operation registered as %q", name),
		Operation: name,
	}
}

func newDuplicateOperation(name string) *DispatchError {
	return &DispatchError{
		Code:      ErrCodeDuplicateOperation,
		Message:   fmt.Sprintf("operation %q is already registered", name),
		Operation: name,
	}
}

func newArgumentShape(name, format string, args ...any) *DispatchError {
	return &DispatchError{
		Code:      ErrCodeArgumentShape,
		Message:   fmt.Sprintf(format, args...),
		Operation: name,
	}
}

func newAdviceError(op string, rule Rule, a Advice, cause error) *DispatchError {
	return &DispatchError{
		Code:      ErrCodeAdviceFailed,
		Message:   cause.Error(),
		Operation: op,
		RuleID:    rule.ID,
		Advice:    a.Name,
		Kind:      a.Kind,
		Cause:     cause,
	}
}
