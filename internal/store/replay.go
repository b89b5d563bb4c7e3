package store

import (
	"context"
	"fmt"

	"github.com/roach88/weave/internal/ir"
)

// Outcome is how a recorded dispatch ended.
type Outcome struct {
	Phase   ir.Phase // dispatch.success, .failure, .suppressed, or "" if never finished
	Result  ir.Value // set for success
	Failure ir.Failure
	Seq     int64
}

// Finished reports whether a terminal record exists.
func (o Outcome) Finished() bool {
	return o.Phase != ""
}

// Same reports whether two outcomes agree on phase, result and failure.
// Seq is ignored.
func (o Outcome) Same(other Outcome) bool {
	if o.Phase != other.Phase || o.Failure != other.Failure {
		return false
	}
	if o.Result == nil || other.Result == nil {
		return o.Result == nil && other.Result == nil
	}
	return ir.Equal(o.Result, other.Result)
}

func (o Outcome) String() string {
	switch o.Phase {
	case ir.PhaseDispatchSuccess:
		b, err := ir.MarshalCanonical(o.Result)
		if err != nil {
			return "success"
		}
		return "success " + string(b)
	case "":
		return "unfinished"
	}
	return fmt.Sprintf("%s %s", o.Phase, o.Failure)
}

// Call is a recorded invocation with its outcome.
type Call struct {
	Invocation Invocation
	Outcome    Outcome
}

// ReadCalls returns every top-level recorded invocation with its outcome,
// ordered by seq. Nested dispatches (depth > 1) are skipped because
// replaying their parent reproduces them.
func (s *Store) ReadCalls(ctx context.Context) ([]Call, error) {
	invocations, err := s.ReadInvocations(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("read calls: %w", err)
	}

	outcomes, err := s.readOutcomes(ctx)
	if err != nil {
		return nil, fmt.Errorf("read calls: %w", err)
	}

	calls := make([]Call, 0, len(invocations))
	for _, inv := range invocations {
		if inv.Depth > 1 {
			continue
		}
		calls = append(calls, Call{Invocation: inv, Outcome: outcomes[inv.ID]})
	}
	return calls, nil
}

// ReadOutcome returns the outcome of one invocation. An invocation with
// no terminal record yields an unfinished Outcome.
func (s *Store) ReadOutcome(ctx context.Context, invocationID string) (Outcome, error) {
	recs, err := s.ReadEvents(ctx, EventFilter{
		InvocationID: invocationID,
		Phases:       terminalPhases,
	})
	if err != nil {
		return Outcome{}, fmt.Errorf("read outcome: %w", err)
	}
	if len(recs) == 0 {
		return Outcome{}, nil
	}
	return outcomeOf(recs[len(recs)-1]), nil
}

// FindUnfinished returns invocations that started but have no terminal
// record, which indicates a crash or an abandoned async sink.
func (s *Store) FindUnfinished(ctx context.Context) ([]Invocation, error) {
	invocations, err := s.ReadInvocations(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("find unfinished: %w", err)
	}
	outcomes, err := s.readOutcomes(ctx)
	if err != nil {
		return nil, fmt.Errorf("find unfinished: %w", err)
	}

	out := []Invocation{}
	for _, inv := range invocations {
		if !outcomes[inv.ID].Finished() {
			out = append(out, inv)
		}
	}
	return out, nil
}

var terminalPhases = []ir.Phase{
	ir.PhaseDispatchSuccess,
	ir.PhaseDispatchFailure,
	ir.PhaseDispatchSuppressed,
}

func (s *Store) readOutcomes(ctx context.Context) (map[string]Outcome, error) {
	recs, err := s.ReadEvents(ctx, EventFilter{Phases: terminalPhases})
	if err != nil {
		return nil, err
	}
	out := make(map[string]Outcome, len(recs))
	for _, rec := range recs {
		out[rec.InvocationID] = outcomeOf(rec)
	}
	return out, nil
}

func outcomeOf(rec ir.EventRecord) Outcome {
	o := Outcome{Phase: rec.Phase, Seq: rec.Seq}
	if rec.Phase == ir.PhaseDispatchSuccess {
		o.Result = rec.Payload["result"]
		if o.Result == nil {
			o.Result = ir.Null{}
		}
		return o
	}
	o.Failure = ir.Failure{
		Kind:    rec.PayloadString("kind"),
		Message: rec.PayloadString("message"),
	}
	return o
}
