package demo

import (
	"context"
	"log/slog"

	"github.com/roach88/weave/internal/engine"
	"github.com/roach88/weave/internal/ir"
)

// Operation groups.
const (
	GroupConcert = "concert"
	GroupCD      = "cd"
	GroupCalc    = "calc"
)

// TagLogged marks operations selected by @annotation(logged).
const TagLogged = "logged"

// Fully qualified operation names.
const (
	OpPerform        = GroupConcert + ".perform"
	OpShowAdmiration = GroupConcert + ".showAdmiration"
	OpPlayTrack      = GroupCD + ".playTrack"
	OpAdd            = GroupCalc + ".add"
	OpSub            = GroupCalc + ".sub"
	OpMul            = GroupCalc + ".mul"
	OpDiv            = GroupCalc + ".div"
)

// ConcertPerformance is the performance target.
type ConcertPerformance struct {
	Logger *slog.Logger
}

func (p ConcertPerformance) Methods() []engine.Method {
	return []engine.Method{{
		Operation: ir.Operation{Name: "perform", Returns: ir.KindVoid},
		Target: func(ctx context.Context, _ ir.Array) (ir.Value, error) {
			loggerOr(p.Logger).InfoContext(ctx, "performing concert performance")
			return ir.Null{}, nil
		},
	}}
}

// ConcertAdmirable is the capability introduced onto the concert group.
type ConcertAdmirable struct {
	Logger *slog.Logger
}

func (a ConcertAdmirable) Methods() []engine.Method {
	return []engine.Method{{
		Operation: ir.Operation{Name: "showAdmiration", Returns: ir.KindVoid},
		Target: func(ctx context.Context, _ ir.Array) (ir.Value, error) {
			loggerOr(a.Logger).InfoContext(ctx, "what a wonderful concert, thank you very much")
			return ir.Null{}, nil
		},
	}}
}

// ConcertCompactDisc plays numbered tracks.
type ConcertCompactDisc struct {
	Logger *slog.Logger
}

func (cd ConcertCompactDisc) Methods() []engine.Method {
	return []engine.Method{{
		Operation: ir.Operation{Name: "playTrack", Params: []ir.Kind{ir.KindInteger}, Returns: ir.KindVoid},
		Target: func(ctx context.Context, args ir.Array) (ir.Value, error) {
			loggerOr(cd.Logger).InfoContext(ctx, "playing track", "track", int64(args[0].(ir.Int)))
			return ir.Null{}, nil
		},
	}}
}

// ArithmeticCalculator implements the four calc operations. Every
// operation is tagged logged.
type ArithmeticCalculator struct{}

func (ArithmeticCalculator) Methods() []engine.Method {
	binary := func(name string, fn func(x, y float64) (float64, error)) engine.Method {
		return engine.Method{
			Operation: ir.Operation{
				Name:    name,
				Params:  []ir.Kind{ir.KindNumeric, ir.KindNumeric},
				Returns: ir.KindNumeric,
				Tags:    []string{TagLogged},
			},
			Target: func(_ context.Context, args ir.Array) (ir.Value, error) {
				x, _ := ir.AsFloat(args[0])
				y, _ := ir.AsFloat(args[1])
				z, err := fn(x, y)
				if err != nil {
					return nil, err
				}
				return ir.Float(z), nil
			},
		}
	}

	return []engine.Method{
		binary("add", func(x, y float64) (float64, error) { return x + y, nil }),
		binary("sub", func(x, y float64) (float64, error) { return x - y, nil }),
		binary("mul", func(x, y float64) (float64, error) { return x * y, nil }),
		binary("div", func(x, y float64) (float64, error) {
			if y == 0 {
				return 0, engine.Fail("DIVISION_BY_ZERO", "division by zero")
			}
			return x / y, nil
		}),
	}
}

// RegisterServices registers every demo service on e.
func RegisterServices(e *engine.Engine, logger *slog.Logger) error {
	services := []struct {
		group string
		c     engine.Capability
	}{
		{GroupConcert, ConcertPerformance{Logger: logger}},
		{GroupConcert, ConcertAdmirable{Logger: logger}},
		{GroupCD, ConcertCompactDisc{Logger: logger}},
		{GroupCalc, ArithmeticCalculator{}},
	}
	for _, s := range services {
		if err := e.Introduce(s.group, s.c); err != nil {
			return err
		}
	}
	return nil
}

func loggerOr(l *slog.Logger) *slog.Logger {
	if l == nil {
		return slog.Default()
	}
	return l
}
