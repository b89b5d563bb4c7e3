package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/weave/internal/ir"
)

func step(i int) *int { return &i }

func sampleResult() *Result {
	r := NewResult()
	r.Trace = []TraceEvent{
		{Seq: 1, InvocationID: "inv-1", Operation: "calc.div", Phase: ir.PhaseDispatchStart},
		{Seq: 2, InvocationID: "inv-1", Operation: "calc.div", Phase: ir.PhaseBefore, Payload: ir.Object{"advice": ir.String("validate-div")}},
		{Seq: 3, InvocationID: "inv-1", Operation: "calc.div", Phase: ir.PhaseTarget},
		{Seq: 4, InvocationID: "inv-1", Operation: "calc.div", Phase: ir.PhaseDispatchSuccess},
		{Seq: 5, InvocationID: "inv-2", Operation: "calc.div", Phase: ir.PhaseDispatchStart},
		{Seq: 6, InvocationID: "inv-2", Operation: "calc.div", Phase: ir.PhaseBefore, Payload: ir.Object{"advice": ir.String("validate-div")}},
		{Seq: 7, InvocationID: "inv-2", Operation: "calc.div", Phase: ir.PhaseDispatchFailure},
	}
	r.Steps = []StepResult{
		{Operation: "calc.div", InvocationID: "inv-1", Outcome: OutcomeSuccess},
		{Operation: "calc.div", InvocationID: "inv-2", Outcome: OutcomeFailure},
	}
	r.Tracks = map[int]int{1: 2}
	return r
}

func TestPhaseOrder(t *testing.T) {
	r := sampleResult()

	pass := Assertion{Type: AssertPhaseOrder, Step: step(1), Phases: []ir.Phase{
		ir.PhaseDispatchStart, ir.PhaseBefore, ir.PhaseDispatchFailure,
	}}
	assert.Empty(t, EvaluateAssertions(r, []Assertion{pass}))

	fail := Assertion{Type: AssertPhaseOrder, Step: step(1), Phases: []ir.Phase{
		ir.PhaseDispatchStart, ir.PhaseDispatchFailure,
	}}
	errs := EvaluateAssertions(r, []Assertion{fail})
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0], "assertions[0]: Assertion failed: phase_order")
	assert.Contains(t, errs[0], "#6 inv-2 calc.div advice.before (validate-div)")
}

func TestTraceContains(t *testing.T) {
	r := sampleResult()

	assert.Empty(t, EvaluateAssertions(r, []Assertion{
		{Type: AssertTraceContains, Operation: "calc.div", Advice: "validate-div"},
		{Type: AssertTraceContains, Phase: ir.PhaseDispatchFailure},
	}))

	errs := EvaluateAssertions(r, []Assertion{
		{Type: AssertTraceContains, Operation: "calc.div", Phase: ir.PhaseAfterThrowing},
	})
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0], "operation calc.div, phase advice.after_throwing")
	assert.Contains(t, errs[0], "not found in trace")
}

func TestTraceCount(t *testing.T) {
	r := sampleResult()

	assert.Empty(t, EvaluateAssertions(r, []Assertion{
		{Type: AssertTraceCount, Advice: "validate-div", Count: 2},
		{Type: AssertTraceCount, Phase: ir.PhaseTarget, Count: 1},
		{Type: AssertTraceCount, Phase: ir.PhaseAround, Count: 0},
	}))

	errs := EvaluateAssertions(r, []Assertion{{Type: AssertTraceCount, Operation: "calc.div", Count: 3}})
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0], "7 records")
}

func TestTrackCounts(t *testing.T) {
	r := sampleResult()

	assert.Empty(t, EvaluateAssertions(r, []Assertion{
		{Type: AssertTrackCounts, Tracks: map[int]int{1: 2, 9: 0}},
	}))

	errs := EvaluateAssertions(r, []Assertion{
		{Type: AssertTrackCounts, Tracks: map[int]int{1: 1, 2: 1}},
	})
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0], "track 1: want 1, got 2; track 2: want 1, got 0")
}

func TestTargetNotCalled(t *testing.T) {
	r := sampleResult()

	assert.Empty(t, EvaluateAssertions(r, []Assertion{
		{Type: AssertTargetNotCalled, Step: step(1)},
		{Type: AssertTargetNotCalled, Operation: "calc.add"},
	}))

	errs := EvaluateAssertions(r, []Assertion{
		{Type: AssertTargetNotCalled, Step: step(0)},
		{Type: AssertTargetNotCalled, Operation: "calc.div"},
	})
	require.Len(t, errs, 2)
	assert.Contains(t, errs[0], "target called at seq 3 (inv-1)")
	assert.Contains(t, errs[1], "target called at seq 3 (inv-1)")
}

func TestEvaluateAssertions_Independent(t *testing.T) {
	r := sampleResult()

	errs := EvaluateAssertions(r, []Assertion{
		{Type: AssertTraceCount, Phase: ir.PhaseTarget, Count: 5},
		{Type: AssertTraceContains, Advice: "validate-div"},
		{Type: "bogus"},
		{Type: AssertPhaseOrder, Step: step(5), Phases: []ir.Phase{ir.PhaseDispatchStart}},
	})
	require.Len(t, errs, 3)
	assert.Contains(t, errs[0], "assertions[0]")
	assert.Contains(t, errs[1], `assertions[2]: unknown assertion type "bogus"`)
	assert.Contains(t, errs[2], "assertions[3]: phase_order: step out of range")
}

func TestValuesMatch(t *testing.T) {
	assert.True(t, valuesMatch(ir.Int(2), ir.Float(2)))
	assert.True(t, valuesMatch(ir.Float(0.5), ir.Float(0.5)))
	assert.False(t, valuesMatch(ir.Int(2), ir.String("2")))
	assert.True(t, valuesMatch(ir.String("a"), ir.String("a")))
	assert.False(t, valuesMatch(ir.Bool(true), nil))
}
