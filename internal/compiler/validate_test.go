package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/weave/internal/ir"
)

func validAspect() ir.AspectSpec {
	return ir.AspectSpec{
		ID:       "calc-logging",
		Pointcut: "within(calc)",
		Priority: 10,
		Advice:   []ir.AdviceSpec{{Kind: ir.AdviceBefore, Use: "log-call"}},
	}
}

func codes(errs []ValidationError) []string {
	out := make([]string, len(errs))
	for i, e := range errs {
		out[i] = e.Code
	}
	return out
}

func TestValidateAspectValid(t *testing.T) {
	assert.Empty(t, Validate(validAspect()))
	spec := validAspect()
	assert.Empty(t, Validate(&spec))
}

func TestValidateAspectErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*ir.AspectSpec)
		want   []string
	}{
		{"no id", func(s *ir.AspectSpec) { s.ID = " " }, []string{ErrAspectNoID}},
		{"no pointcut", func(s *ir.AspectSpec) { s.Pointcut = "" }, []string{ErrAspectNoPointcut}},
		{"bad pointcut", func(s *ir.AspectSpec) { s.Pointcut = "within(" }, []string{ErrInvalidPointcut}},
		{"bad policy", func(s *ir.AspectSpec) { s.Policy = "retry" }, []string{ErrInvalidPolicy}},
		{"no advice", func(s *ir.AspectSpec) { s.Advice = nil }, []string{ErrAspectNoAdvice}},
		{"bad kind", func(s *ir.AspectSpec) { s.Advice[0].Kind = "after" }, []string{ErrInvalidAdviceKind}},
		{"no use", func(s *ir.AspectSpec) { s.Advice[0].Use = "" }, []string{ErrAdviceNoUse}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spec := validAspect()
			tt.mutate(&spec)
			assert.Equal(t, tt.want, codes(Validate(spec)))
		})
	}
}

func TestValidateCollectsAllErrors(t *testing.T) {
	spec := ir.AspectSpec{
		ID:       "broken",
		Pointcut: "nonsense(",
		Policy:   "maybe",
		Advice:   []ir.AdviceSpec{{Kind: "sometimes"}},
	}
	assert.Equal(t, []string{ErrInvalidPointcut, ErrInvalidPolicy, ErrInvalidAdviceKind, ErrAdviceNoUse}, codes(Validate(spec)))
}

func TestValidateDuplicateAspects(t *testing.T) {
	errs := Validate([]ir.AspectSpec{validAspect(), validAspect()})
	require.Len(t, errs, 1)
	assert.Equal(t, ErrDuplicateAspect, errs[0].Code)
	assert.Equal(t, "aspects[1].id", errs[0].Field)
}

func TestValidateAdviceRefs(t *testing.T) {
	catalog := map[string]ir.AdviceKind{"log-call": ir.AdviceBefore}
	lookup := func(kind ir.AdviceKind, name string) bool {
		k, ok := catalog[name]
		return ok && k == kind
	}

	spec := validAspect()
	spec.Advice = append(spec.Advice,
		ir.AdviceSpec{Kind: ir.AdviceAround, Use: "log-call"},
		ir.AdviceSpec{Kind: ir.AdviceBefore, Use: "missing"},
	)

	errs := ValidateAdviceRefs([]ir.AspectSpec{spec}, lookup)
	require.Len(t, errs, 2)
	assert.Equal(t, "aspect.calc-logging.advice[1].use", errs[0].Field)
	assert.Contains(t, errs[0].Message, `no around advice named "log-call"`)
	assert.Equal(t, ErrUnknownAdvice, errs[1].Code)
}

func TestValidateOperation(t *testing.T) {
	ok := ir.Operation{Name: "calc.div", Params: []ir.Kind{ir.KindNumeric, ir.KindNumeric}, Returns: ir.KindNumeric}
	assert.Empty(t, Validate(ok))

	bad := ir.Operation{Name: "calc div", Params: []ir.Kind{ir.KindVoid, "complex"}, Returns: "tuple"}
	assert.Equal(t, []string{ErrInvalidOperationName, ErrInvalidParamKind, ErrInvalidParamKind, ErrInvalidReturnKind}, codes(Validate(bad)))

	assert.Equal(t, []string{ErrInvalidOperationName}, codes(Validate(&ir.Operation{Returns: ir.KindVoid})))
}

func TestValidateDuplicateOperations(t *testing.T) {
	op := ir.Operation{Name: "x", Returns: ir.KindVoid}
	assert.Equal(t, []string{ErrDuplicateOperation}, codes(Validate([]ir.Operation{op, op})))
}

func TestValidateUnsupportedType(t *testing.T) {
	errs := Validate(42)
	require.Len(t, errs, 1)
	assert.Equal(t, ErrUnsupportedIRType, errs[0].Code)
}

func TestValidationErrorFormat(t *testing.T) {
	err := ValidationError{Field: "aspect.a.pointcut", Message: "pointcut is required", Code: ErrAspectNoPointcut}
	assert.Equal(t, "[E121] aspect.a.pointcut: pointcut is required", err.Error())

	err.Line = 7
	assert.Equal(t, "[E121] line 7: aspect.a.pointcut: pointcut is required", err.Error())
}
