package store

import (
	"context"
	"testing"

	"github.com/roach88/weave/internal/ir"
)

func TestReadCalls(t *testing.T) {
	s := createTestStore(t)
	seedTwoCalls(t, s)

	calls, err := s.ReadCalls(context.Background())
	if err != nil {
		t.Fatalf("ReadCalls failed: %v", err)
	}
	if len(calls) != 2 {
		t.Fatalf("len(calls) = %d, want 2", len(calls))
	}

	add := calls[0]
	if add.Invocation.Operation != "calc.add" {
		t.Errorf("calls[0].Operation = %q, want calc.add", add.Invocation.Operation)
	}
	if add.Outcome.Phase != ir.PhaseDispatchSuccess || !ir.Equal(add.Outcome.Result, ir.Int(3)) {
		t.Errorf("calls[0].Outcome = %v, want success 3", add.Outcome)
	}

	div := calls[1].Outcome
	want := ir.Failure{Kind: "ADVICE_FAILED", Message: "Validation: division by zero"}
	if div.Phase != ir.PhaseDispatchFailure || div.Failure != want {
		t.Errorf("calls[1].Outcome = %v, want failure %v", div, want)
	}
}

func TestReadCalls_SkipsNested(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	nested := startRecord("inner", "calc.add", 2, ir.Int(1), ir.Int(1))
	nested.Payload["depth"] = ir.Int(2)
	if err := s.AppendEvents(ctx, []ir.EventRecord{
		startRecord("outer", "calc.sum", 1, ir.Array{ir.Int(1), ir.Int(1)}),
		nested,
	}); err != nil {
		t.Fatalf("AppendEvents failed: %v", err)
	}

	calls, err := s.ReadCalls(ctx)
	if err != nil {
		t.Fatalf("ReadCalls failed: %v", err)
	}
	if len(calls) != 1 || calls[0].Invocation.ID != "outer" {
		t.Errorf("ReadCalls = %v, want only the outer call", calls)
	}
}

func TestReadOutcome_Unfinished(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	if err := s.AppendEvent(ctx, startRecord("inv-1", "calc.add", 1, ir.Int(1), ir.Int(2))); err != nil {
		t.Fatalf("AppendEvent failed: %v", err)
	}

	o, err := s.ReadOutcome(ctx, "inv-1")
	if err != nil {
		t.Fatalf("ReadOutcome failed: %v", err)
	}
	if o.Finished() {
		t.Errorf("Outcome = %v, want unfinished", o)
	}

	unfinished, err := s.FindUnfinished(ctx)
	if err != nil {
		t.Fatalf("FindUnfinished failed: %v", err)
	}
	if len(unfinished) != 1 || unfinished[0].ID != "inv-1" {
		t.Errorf("FindUnfinished = %v, want [inv-1]", unfinished)
	}
}

func TestReadOutcome_Suppressed(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	err := s.AppendEvents(ctx, []ir.EventRecord{
		startRecord("inv-1", "calc.div", 1, ir.Int(1), ir.Int(0)),
		phaseRecord("inv-1", "calc.div", 2, ir.PhaseDispatchSuppressed, ir.Object{
			"kind":    ir.String("DIVISION_BY_ZERO"),
			"message": ir.String("division by zero"),
		}),
	})
	if err != nil {
		t.Fatalf("AppendEvents failed: %v", err)
	}

	o, err := s.ReadOutcome(ctx, "inv-1")
	if err != nil {
		t.Fatalf("ReadOutcome failed: %v", err)
	}
	if got, want := o.String(), "dispatch.suppressed Failure(DIVISION_BY_ZERO, division by zero)"; got != want {
		t.Errorf("Outcome.String() = %q, want %q", got, want)
	}
}

func TestOutcome_Same(t *testing.T) {
	ok3 := Outcome{Phase: ir.PhaseDispatchSuccess, Result: ir.Int(3), Seq: 5}
	tests := []struct {
		name string
		a, b Outcome
		want bool
	}{
		{"identical ignoring seq", ok3, Outcome{Phase: ir.PhaseDispatchSuccess, Result: ir.Int(3), Seq: 99}, true},
		{"different result", ok3, Outcome{Phase: ir.PhaseDispatchSuccess, Result: ir.Int(4)}, false},
		{"int vs float", ok3, Outcome{Phase: ir.PhaseDispatchSuccess, Result: ir.Float(3)}, false},
		{"different phase", ok3, Outcome{Phase: ir.PhaseDispatchFailure}, false},
		{
			"same failure",
			Outcome{Phase: ir.PhaseDispatchFailure, Failure: ir.Failure{Kind: "K", Message: "m"}},
			Outcome{Phase: ir.PhaseDispatchFailure, Failure: ir.Failure{Kind: "K", Message: "m"}},
			true,
		},
		{"both unfinished", Outcome{}, Outcome{}, true},
	}
	for _, tt := range tests {
		if got := tt.a.Same(tt.b); got != tt.want {
			t.Errorf("%s: Same() = %v, want %v", tt.name, got, tt.want)
		}
	}
}
