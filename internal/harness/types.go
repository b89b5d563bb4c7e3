package harness

import (
	"github.com/roach88/weave/internal/ir"
)

// TraceEvent is one event record as read back from the scenario's event
// log. Timestamps are left out so traces compare across runs.
type TraceEvent struct {
	Seq          int64     `json:"seq"`
	InvocationID string    `json:"invocation_id"`
	Operation    string    `json:"operation"`
	Group        string    `json:"group,omitempty"`
	Phase        ir.Phase  `json:"phase"`
	Payload      ir.Object `json:"payload"`
}

func traceEvent(rec ir.EventRecord) TraceEvent {
	return TraceEvent{
		Seq:          rec.Seq,
		InvocationID: rec.InvocationID,
		Operation:    rec.Operation,
		Group:        rec.Group,
		Phase:        rec.Phase,
		Payload:      rec.Payload,
	}
}

// object renders the event for canonical JSON.
func (e TraceEvent) object() ir.Object {
	obj := ir.Object{
		"seq":           ir.Int(e.Seq),
		"invocation_id": ir.String(e.InvocationID),
		"operation":     ir.String(e.Operation),
		"phase":         ir.String(e.Phase),
		"payload":       e.Payload,
	}
	if e.Group != "" {
		obj["group"] = ir.String(e.Group)
	}
	if e.Payload == nil {
		obj["payload"] = ir.Object{}
	}
	return obj
}

// StepResult is the outcome of one flow step.
type StepResult struct {
	Operation    string      `json:"operation"`
	InvocationID string      `json:"invocation_id"`
	Outcome      string      `json:"outcome"` // success, failure, suppressed or rejected
	Value        ir.Value    `json:"value,omitempty"`
	Failure      *ir.Failure `json:"failure,omitempty"`
}

// Outcome names, derived from the terminal phase of a dispatch.
const (
	OutcomeSuccess    = "success"
	OutcomeFailure    = "failure"
	OutcomeSuppressed = "suppressed"
	OutcomeRejected   = "rejected"
)

func outcomeName(p ir.Phase) string {
	switch p {
	case ir.PhaseDispatchSuccess:
		return OutcomeSuccess
	case ir.PhaseDispatchFailure:
		return OutcomeFailure
	case ir.PhaseDispatchSuppressed:
		return OutcomeSuppressed
	case ir.PhaseDispatchRejected:
		return OutcomeRejected
	}
	return ""
}

// Result is the outcome of a test scenario execution.
type Result struct {
	// Pass indicates overall test success.
	// True if every expect clause and assertion matched.
	Pass bool `json:"pass"`

	// Trace contains every event record of the run, in seq order.
	Trace []TraceEvent `json:"trace"`

	// Steps holds one entry per flow step.
	Steps []StepResult `json:"steps"`

	// Errors contains expectation and assertion failures.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// Tracks is the demo track counter after the run.
	Tracks map[int]int `json:"tracks,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Steps:  []StepResult{},
		Errors: []string{},
		Tracks: make(map[int]int),
	}
}

// AddError adds a failure message and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// EventsFor returns the trace events of one invocation.
func (r *Result) EventsFor(invocationID string) []TraceEvent {
	var out []TraceEvent
	for _, e := range r.Trace {
		if e.InvocationID == invocationID {
			out = append(out, e)
		}
	}
	return out
}
