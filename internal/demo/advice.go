package demo

import (
	"context"
	"log/slog"

	"github.com/pkg/errors"

	"github.com/roach88/weave/internal/engine"
	"github.com/roach88/weave/internal/ir"
)

// Advice names referenced from aspects.cue.
const (
	AdviceTakeSeats        = "take-seats"
	AdviceSilencePhones    = "silence-cell-phones"
	AdviceApplause         = "applause"
	AdviceDemandRefund     = "demand-refund"
	AdviceWatchPerformance = "watch-performance"
	AdviceCountTrack       = "count-track"
	AdviceLogCall          = "log-call"
	AdviceLogResult        = "log-result"
	AdviceLogError         = "log-error"
	AdviceValidateDiv      = "validate-div"
	AdviceLogAnnotated     = "log-annotated"
)

// ErrDivisionByZero is raised by the validate-div advice.
var ErrDivisionByZero = errors.New("Validation: division by zero")

// DefaultCatalog returns the advice used by the demo aspects. Advice logs
// to logger; count-track records into tracks.
func DefaultCatalog(logger *slog.Logger, tracks *TrackCounter) *Catalog {
	logger = loggerOr(logger)
	c := NewCatalog()

	for _, a := range []engine.Advice{
		// Audience
		engine.Before(AdviceTakeSeats, func(ctx context.Context, inv *engine.Invocation) error {
			logger.InfoContext(ctx, "taking seats", "operation", inv.Name())
			return nil
		}),
		engine.Before(AdviceSilencePhones, func(ctx context.Context, inv *engine.Invocation) error {
			logger.InfoContext(ctx, "silencing cell phones", "operation", inv.Name())
			return nil
		}),
		engine.AfterReturning(AdviceApplause, func(ctx context.Context, inv *engine.Invocation, _ ir.Value) error {
			logger.InfoContext(ctx, "applause", "operation", inv.Name())
			return nil
		}),
		engine.AfterThrowing(AdviceDemandRefund, func(ctx context.Context, inv *engine.Invocation, err error) error {
			logger.InfoContext(ctx, "demanding a refund", "operation", inv.Name(), "error", err)
			return nil
		}),
		engine.Around(AdviceWatchPerformance, func(ctx context.Context, inv *engine.Invocation, proceed engine.Proceed) (ir.Value, error) {
			logger.InfoContext(ctx, "around: taking seats and silencing cell phones", "operation", inv.Name())
			v, err := proceed(ctx)
			if err != nil {
				logger.InfoContext(ctx, "around: demanding a refund", "operation", inv.Name(), "error", err)
				return nil, err
			}
			logger.InfoContext(ctx, "around: applause", "operation", inv.Name())
			return v, nil
		}),

		// Track counter
		engine.Before(AdviceCountTrack, func(ctx context.Context, inv *engine.Invocation) error {
			track, ok := inv.Arg(0).(ir.Int)
			if !ok {
				return errors.Errorf("track number is %s, want integer", ir.TypeName(inv.Arg(0)))
			}
			count := tracks.Record(int(track))
			logger.InfoContext(ctx, "track counted", "track", int64(track), "count", count)
			return nil
		}),

		// Calculator logging and validation
		engine.Before(AdviceLogCall, func(ctx context.Context, inv *engine.Invocation) error {
			logger.InfoContext(ctx, "calling operation",
				"operation", inv.Name(),
				"group", inv.Group(),
				"args", renderValue(inv.Args()),
			)
			return nil
		}),
		engine.AfterReturning(AdviceLogResult, func(ctx context.Context, inv *engine.Invocation, result ir.Value) error {
			logger.InfoContext(ctx, "operation returned", "operation", inv.Name(), "result", renderValue(result))
			return nil
		}),
		engine.AfterThrowing(AdviceLogError, func(ctx context.Context, inv *engine.Invocation, err error) error {
			logger.ErrorContext(ctx, "operation failed", "operation", inv.Name(), "error", engine.Classify(err).String())
			return nil
		}),
		engine.Before(AdviceValidateDiv, func(ctx context.Context, inv *engine.Invocation) error {
			x, _ := ir.AsFloat(inv.Arg(0))
			y, _ := ir.AsFloat(inv.Arg(1))
			logger.InfoContext(ctx, "validating division", "operation", inv.Name(), "x", x, "y", y)
			if y == 0 {
				return ErrDivisionByZero
			}
			return nil
		}),
		engine.Before(AdviceLogAnnotated, func(ctx context.Context, inv *engine.Invocation) error {
			logger.InfoContext(ctx, "logged operation", "operation", inv.Name(), "args", renderValue(inv.Args()))
			return nil
		}),
	} {
		// Names above are distinct constants; Add cannot fail.
		_ = c.Add(a)
	}
	return c
}

func renderValue(v ir.Value) string {
	b, err := ir.MarshalCanonical(v)
	if err != nil {
		return ir.TypeName(v)
	}
	return string(b)
}
