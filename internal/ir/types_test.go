package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKind_Accepts(t *testing.T) {
	tests := []struct {
		kind   Kind
		value  Value
		accept bool
	}{
		{KindNumeric, Int(1), true},
		{KindNumeric, Float(1.5), true},
		{KindNumeric, String("1"), false},
		{KindInteger, Int(1), true},
		{KindInteger, Float(1), false},
		{KindText, String(""), true},
		{KindText, Int(0), false},
		{KindBool, Bool(false), true},
		{KindAny, Null{}, true},
		{KindAny, nil, false},
		{KindVoid, Null{}, true},
		{KindVoid, Int(0), false},
		{Kind("bogus"), Int(0), false},
	}

	for _, tt := range tests {
		t.Run(string(tt.kind)+"/"+TypeName(tt.value), func(t *testing.T) {
			assert.Equal(t, tt.accept, tt.kind.Accepts(tt.value))
		})
	}
}

func TestKind_ValidReturn(t *testing.T) {
	assert.True(t, KindVoid.ValidReturn())
	assert.False(t, KindVoid.ValidParam())
	assert.True(t, KindNumeric.ValidParam())
	assert.False(t, Kind("float").ValidReturn())
}

func TestOperation_Validate(t *testing.T) {
	valid := Operation{Name: "calc.div", Group: "calc", Params: []Kind{KindNumeric, KindNumeric}, Returns: KindNumeric}
	assert.NoError(t, valid.Validate())

	tests := []struct {
		name string
		op   Operation
		msg  string
	}{
		{"empty name", Operation{Returns: KindVoid}, "name is empty"},
		{"whitespace", Operation{Name: "calc div", Returns: KindVoid}, "whitespace"},
		{"void param", Operation{Name: "x", Params: []Kind{KindVoid}, Returns: KindVoid}, "param 0"},
		{"missing return", Operation{Name: "x"}, "invalid return kind"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorContains(t, tt.op.Validate(), tt.msg)
		})
	}
}

func TestOperation_Signature(t *testing.T) {
	op := Operation{Name: "cd.playTrack", Params: []Kind{KindInteger}, Returns: KindVoid}
	assert.Equal(t, "cd.playTrack(integer) void", op.Signature())
	assert.Equal(t, 1, op.Arity())
}

func TestOperation_CloneIsIndependent(t *testing.T) {
	op := Operation{Name: "a", Params: []Kind{KindText}, Tags: []string{"logged"}}
	c := op.Clone()
	c.Params[0] = KindBool
	c.Tags[0] = "other"

	assert.Equal(t, KindText, op.Params[0])
	assert.True(t, op.HasTag("logged"))
	assert.False(t, op.HasTag("other"))
}

func TestFailure_String(t *testing.T) {
	f := Failure{Kind: "ARGUMENT_SHAPE", Message: "expected 2 arguments, got 1"}
	assert.Equal(t, "Failure(ARGUMENT_SHAPE, expected 2 arguments, got 1)", f.String())
}

func TestAdvicePhase(t *testing.T) {
	assert.Equal(t, PhaseBefore, AdvicePhase(AdviceBefore))
	assert.Equal(t, PhaseAround, AdvicePhase(AdviceAround))
	assert.Equal(t, PhaseAfterReturning, AdvicePhase(AdviceAfterReturning))
	assert.Equal(t, PhaseAfterThrowing, AdvicePhase(AdviceAfterThrowing))
	assert.True(t, PhaseDispatchSuppressed.Terminal())
	assert.False(t, PhaseTarget.Terminal())
}

func TestFailurePolicy_Valid(t *testing.T) {
	assert.True(t, FailurePolicy("").Valid())
	assert.True(t, PolicySuppress.Valid())
	assert.False(t, FailurePolicy("swallow").Valid())
}
