package engine

import (
	"context"
	"fmt"

	"github.com/roach88/weave/internal/ir"
)

// DefaultMaxDepth bounds nested dispatch (a target or advice invoking
// another operation with the ctx it was given).
const DefaultMaxDepth = 64

// callFrame is one active dispatch on a context's call stack.
//
// Targets and advice receive a ctx carrying the frame of the dispatch that
// called them. A nested Invoke made with that ctx walks the stack to catch
// two failure modes:
//
//	Re-entry:  calc.div(4, 2) → advice → calc.div(4, 2)  ← REENTRANT_DISPATCH
//	Runaway:   a → b → c → ... beyond max depth         ← DEPTH_EXCEEDED
//
// Re-entry with different arguments is ordinary recursion and is allowed
// up to the depth limit.
type callFrame struct {
	operation string
	args      ir.Array
	depth     int
	parent    *callFrame
}

type frameKey struct{}

func frameFrom(ctx context.Context) *callFrame {
	f, _ := ctx.Value(frameKey{}).(*callFrame)
	return f
}

func withFrame(ctx context.Context, f *callFrame) context.Context {
	return context.WithValue(ctx, frameKey{}, f)
}

// DepthFrom returns the dispatch depth carried by ctx: 0 outside any
// dispatch, 1 inside a top-level target or advice.
func DepthFrom(ctx context.Context) int {
	if f := frameFrom(ctx); f != nil {
		return f.depth
	}
	return 0
}

// pushFrame checks the stack carried by ctx and returns a context with a
// new frame for this dispatch on top.
func pushFrame(ctx context.Context, operation string, args ir.Array, maxDepth int) (context.Context, *callFrame, error) {
	parent := frameFrom(ctx)
	depth := 1
	if parent != nil {
		depth = parent.depth + 1
	}
	if maxDepth > 0 && depth > maxDepth {
		return ctx, nil, &DispatchError{
			Code:      ErrCodeDepthExceeded,
			Message:   fmt.Sprintf("nested dispatch depth %d exceeds limit %d", depth, maxDepth),
			Operation: operation,
		}
	}
	for f := parent; f != nil; f = f.parent {
		if f.operation == operation && ir.Equal(f.args, args) {
			return ctx, nil, &DispatchError{
				Code:      ErrCodeReentrantDispatch,
				Message:   fmt.Sprintf("dispatch re-entered itself with identical arguments at depth %d", depth),
				Operation: operation,
			}
		}
	}
	frame := &callFrame{operation: operation, args: args, depth: depth, parent: parent}
	return withFrame(ctx, frame), frame, nil
}
