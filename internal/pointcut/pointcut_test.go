package pointcut

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/weave/internal/ir"
)

var (
	divOp = ir.Operation{
		Name:    "calc.div",
		Group:   "calc",
		Params:  []ir.Kind{ir.KindNumeric, ir.KindNumeric},
		Returns: ir.KindNumeric,
	}
	sqrtOp = ir.Operation{
		Name:    "calc.sci.sqrt",
		Group:   "calc.sci",
		Params:  []ir.Kind{ir.KindNumeric},
		Returns: ir.KindNumeric,
		Tags:    []string{"logged"},
	}
	playOp = ir.Operation{
		Name:    "cd.playTrack",
		Group:   "cd",
		Params:  []ir.Kind{ir.KindInteger},
		Returns: ir.KindVoid,
	}
)

func TestPredicates(t *testing.T) {
	tests := []struct {
		name string
		pred Predicate
		op   ir.Operation
		want bool
	}{
		{"any", Any(), playOp, true},
		{"name exact", Name("calc.div"), divOp, true},
		{"name glob spans dots", Name("calc.*"), sqrtOp, true},
		{"name mismatch", Name("calc.*"), playOp, false},
		{"group exact", Group("calc"), divOp, true},
		{"group exact excludes subgroup", Group("calc"), sqrtOp, false},
		{"group plus includes subgroup", Group("calc+"), sqrtOp, true},
		{"group plus includes self", Group("calc+"), divOp, true},
		{"group plus excludes sibling", Group("calc+"), playOp, false},
		{"tag", Tag("logged"), sqrtOp, true},
		{"tag missing", Tag("logged"), divOp, false},
		{"args exact", Args(false, ir.KindNumeric, ir.KindNumeric), divOp, true},
		{"args arity mismatch", Args(false, ir.KindNumeric), divOp, false},
		{"args open prefix", Args(true, ir.KindNumeric), divOp, true},
		{"args any kind", Args(false, ir.KindAny), playOp, true},
		{"and", And(Group("calc"), Name("*.div")), divOp, true},
		{"and short", And(Group("calc"), Tag("logged")), divOp, false},
		{"or", Or(Tag("logged"), Name("cd.*")), playOp, true},
		{"not", Not(Group("calc+")), playOp, true},
		{"empty and", And(), playOp, true},
		{"empty or", Or(), playOp, false},
		{"func", Func("custom", func(op ir.Operation) bool { return op.Returns == ir.KindVoid }), playOp, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.pred.Match(tt.op))
		})
	}
}

func TestParse(t *testing.T) {
	tests := []struct {
		expr    string
		matches []ir.Operation
		misses  []ir.Operation
		str     string
	}{
		{
			expr:    "execution(calc.div)",
			matches: []ir.Operation{divOp},
			misses:  []ir.Operation{sqrtOp, playOp},
			str:     "execution(calc.div)",
		},
		{
			expr:    "within(calc+) && !execution(calc.div)",
			matches: []ir.Operation{sqrtOp},
			misses:  []ir.Operation{divOp, playOp},
			str:     "(within(calc+) && !execution(calc.div))",
		},
		{
			expr:    "@annotation(logged) || execution(cd.*)",
			matches: []ir.Operation{sqrtOp, playOp},
			misses:  []ir.Operation{divOp},
			str:     "(@annotation(logged) || execution(cd.*))",
		},
		{
			expr:    "args(integer)",
			matches: []ir.Operation{playOp},
			misses:  []ir.Operation{divOp},
			str:     "args(integer)",
		},
		{
			expr:    "args(numeric, ..)",
			matches: []ir.Operation{divOp, sqrtOp},
			misses:  []ir.Operation{playOp},
			str:     "args(numeric, ..)",
		},
		{
			expr:    "any()",
			matches: []ir.Operation{divOp, sqrtOp, playOp},
			str:     "any()",
		},
		{
			expr:    "(within(cd) || within(calc)) && args(numeric, numeric)",
			matches: []ir.Operation{divOp},
			misses:  []ir.Operation{playOp, sqrtOp},
			str:     "((within(cd) || within(calc)) && args(numeric, numeric))",
		},
		{
			expr:    "!!within(cd)",
			matches: []ir.Operation{playOp},
			misses:  []ir.Operation{divOp},
			str:     "!!within(cd)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			pred, err := Parse(tt.expr)
			require.NoError(t, err)
			assert.Equal(t, tt.str, pred.String())
			for _, op := range tt.matches {
				assert.True(t, pred.Match(op), "expected %s to match %s", tt.expr, op.Name)
			}
			for _, op := range tt.misses {
				assert.False(t, pred.Match(op), "expected %s not to match %s", tt.expr, op.Name)
			}
		})
	}
}

func TestParse_StringRoundTrip(t *testing.T) {
	exprs := []string{
		"within(calc+) && !execution(calc.div)",
		"@annotation(logged) || (args(text) && within(concert))",
		"any()",
	}
	for _, expr := range exprs {
		first := MustParse(expr)
		second, err := Parse(first.String())
		require.NoError(t, err, "re-parse of %q", first.String())
		assert.Equal(t, first.String(), second.String())
	}
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		expr string
		msg  string
	}{
		{"", "expected designator"},
		{"execution(calc.div", `expected "," or ")"`},
		{"execution()", "exactly one argument"},
		{"execution(a, b)", "exactly one argument"},
		{"execution(calc[)", "invalid glob"},
		{"within(x) &&", "expected designator"},
		{"within(x) within(y)", "unexpected"},
		{"bogus(x)", "unknown designator"},
		{"args(float)", "unknown kind"},
		{"args(.., numeric)", "must be the last argument"},
		{"any(x)", "takes no arguments"},
		{"within(x) & within(y)", "unexpected character"},
		{"execution", `expected "(" after execution`},
	}

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			_, err := Parse(tt.expr)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.msg)
		})
	}
}

func TestParse_ErrorCarriesOffset(t *testing.T) {
	_, err := Parse("within(x) ) ")
	require.Error(t, err)
	require.True(t, IsParseError(err))

	var pe *ParseError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, 10, pe.Offset)
}

func TestMustParsePanics(t *testing.T) {
	assert.Panics(t, func() { MustParse("nope") })
}
