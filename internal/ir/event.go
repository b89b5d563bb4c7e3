package ir

import (
	"fmt"
	"time"
)

// Phase identifies where in a dispatch an event record was produced.
type Phase string

const (
	PhaseDispatchStart    Phase = "dispatch.start"
	PhaseDispatchRejected Phase = "dispatch.rejected"
	PhaseBefore           Phase = "advice.before"
	PhaseAround           Phase = "advice.around"
	PhaseTarget           Phase = "target.call"
	PhaseAfterReturning   Phase = "advice.after_returning"
	PhaseAfterThrowing    Phase = "advice.after_throwing"
	PhaseDispatchSuccess  Phase = "dispatch.success"
	PhaseDispatchFailure  Phase = "dispatch.failure"
	// PhaseDispatchSuppressed marks a failure converted to a void result
	// by the suppress policy.
	PhaseDispatchSuppressed Phase = "dispatch.suppressed"
)

// AdvicePhase maps an advice kind to the phase its records use.
func AdvicePhase(k AdviceKind) Phase {
	switch k {
	case AdviceBefore:
		return PhaseBefore
	case AdviceAround:
		return PhaseAround
	case AdviceAfterReturning:
		return PhaseAfterReturning
	case AdviceAfterThrowing:
		return PhaseAfterThrowing
	}
	return Phase("advice." + string(k))
}

// Terminal reports whether the phase ends a dispatch.
func (p Phase) Terminal() bool {
	switch p {
	case PhaseDispatchRejected, PhaseDispatchSuccess, PhaseDispatchFailure, PhaseDispatchSuppressed:
		return true
	}
	return false
}

// EventRecord is one structured record emitted to the event sink.
//
// Seq is a logical clock value, strictly increasing across the engine and
// used for ordering. Timestamp is wall-clock and informational only.
type EventRecord struct {
	Seq          int64     `json:"seq"`
	Timestamp    time.Time `json:"timestamp"`
	InvocationID string    `json:"invocation_id"`
	Operation    string    `json:"operation"`
	Group        string    `json:"group,omitempty"`
	Phase        Phase     `json:"phase"`
	Payload      Object    `json:"payload"`
}

// String renders a compact one-line form, used in assertion failures.
func (r EventRecord) String() string {
	return fmt.Sprintf("#%d %s %s %s", r.Seq, r.InvocationID, r.Operation, r.Phase)
}

// PayloadString returns the payload field key as a string, or "" when
// missing or not text.
func (r EventRecord) PayloadString(key string) string {
	if s, ok := r.Payload[key].(String); ok {
		return string(s)
	}
	return ""
}
