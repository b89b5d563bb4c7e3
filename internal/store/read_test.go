package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/weave/internal/ir"
)

func seedTwoCalls(t *testing.T, s *Store) {
	t.Helper()
	ctx := context.Background()
	recs := []ir.EventRecord{
		startRecord("a", "calc.add", 1, ir.Int(1), ir.Int(2)),
		startRecord("b", "calc.div", 2, ir.Int(4), ir.Int(0)),
		phaseRecord("a", "calc.add", 3, ir.PhaseTarget, ir.Object{"status": ir.String("ok"), "result": ir.Int(3)}),
		phaseRecord("b", "calc.div", 4, ir.PhaseBefore, ir.Object{"status": ir.String("error")}),
		phaseRecord("a", "calc.add", 5, ir.PhaseDispatchSuccess, ir.Object{"result": ir.Int(3)}),
		phaseRecord("b", "calc.div", 6, ir.PhaseDispatchFailure, ir.Object{
			"kind":    ir.String("ADVICE_FAILED"),
			"message": ir.String("Validation: division by zero"),
		}),
	}
	require.NoError(t, s.AppendEvents(ctx, recs))
}

func seqs(recs []ir.EventRecord) []int64 {
	out := make([]int64, len(recs))
	for i, r := range recs {
		out[i] = r.Seq
	}
	return out
}

func TestReadEvents_Filters(t *testing.T) {
	s := createTestStore(t)
	seedTwoCalls(t, s)
	ctx := context.Background()

	tests := []struct {
		name   string
		filter EventFilter
		want   []int64
	}{
		{"all", EventFilter{}, []int64{1, 2, 3, 4, 5, 6}},
		{"invocation", EventFilter{InvocationID: "b"}, []int64{2, 4, 6}},
		{"operation", EventFilter{Operation: "calc.add"}, []int64{1, 3, 5}},
		{"phases", EventFilter{Phases: []ir.Phase{ir.PhaseDispatchSuccess, ir.PhaseDispatchFailure}}, []int64{5, 6}},
		{"after seq", EventFilter{AfterSeq: 4}, []int64{5, 6}},
		{"limit", EventFilter{Limit: 2}, []int64{1, 2}},
		{"combined", EventFilter{InvocationID: "a", AfterSeq: 1, Limit: 1}, []int64{3}},
		{"no match", EventFilter{InvocationID: "zzz"}, []int64{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			recs, err := s.ReadEvents(ctx, tt.filter)
			require.NoError(t, err)
			assert.NotNil(t, recs)
			assert.Equal(t, tt.want, seqs(recs))
		})
	}
}

func TestReadInvocations(t *testing.T) {
	s := createTestStore(t)
	seedTwoCalls(t, s)
	ctx := context.Background()

	all, err := s.ReadInvocations(ctx, "")
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "a", all[0].ID)
	assert.Equal(t, "b", all[1].ID)

	divs, err := s.ReadInvocations(ctx, "calc.div")
	require.NoError(t, err)
	require.Len(t, divs, 1)
	assert.Equal(t, ir.Array{ir.Int(4), ir.Int(0)}, divs[0].Args)
}

func TestReadInvocations_Empty(t *testing.T) {
	s := createTestStore(t)

	invs, err := s.ReadInvocations(context.Background(), "")
	require.NoError(t, err)
	assert.NotNil(t, invs)
	assert.Empty(t, invs)
}

func TestMaxSeq(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	seq, err := s.MaxSeq(ctx)
	require.NoError(t, err)
	assert.Zero(t, seq)

	seedTwoCalls(t, s)
	seq, err = s.MaxSeq(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(6), seq)
}

func TestCountByPhase(t *testing.T) {
	s := createTestStore(t)
	seedTwoCalls(t, s)

	counts, err := s.CountByPhase(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[ir.Phase]int64{
		ir.PhaseDispatchStart:   2,
		ir.PhaseTarget:          1,
		ir.PhaseBefore:          1,
		ir.PhaseDispatchSuccess: 1,
		ir.PhaseDispatchFailure: 1,
	}, counts)
}
