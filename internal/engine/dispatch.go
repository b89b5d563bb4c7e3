package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/roach88/weave/internal/ir"
)

// Invoke dispatches one call.
//
// Order of operations:
//  1. Resolve the operation (UNKNOWN_OPERATION, no advice runs)
//  2. Check arity and argument kinds (ARGUMENT_SHAPE, no advice runs)
//  3. Snapshot arguments into a fresh Invocation
//  4. Take one rule snapshot and partition matching advice by kind
//  5. Run before advice in order; the first failure stops the call
//  6. Run the chain: around advice outermost-first, then the target
//  7. On failure run after-throwing advice in order; an advice error
//     replaces the propagated error (last raised wins)
//  8. On success settle the result and run after-returning advice, which
//     observe a copy and cannot change what the caller receives
//
// A failed Invoke always returns a nil Value.
func (e *Engine) Invoke(ctx context.Context, name string, args ...ir.Value) (ir.Value, error) {
	id := e.ids.Generate()

	binding, err := e.registry.Resolve(name)
	if err != nil {
		e.reject(ctx, id, ir.Operation{Name: name}, err)
		return nil, err
	}
	op := binding.Operation

	if err := checkArgs(op, args); err != nil {
		e.reject(ctx, id, op, err)
		return nil, err
	}

	snapshot := ir.CloneArray(args)
	ctx, frame, err := pushFrame(ctx, op.Name, snapshot, e.maxDepth)
	if err != nil {
		e.reject(ctx, id, op, err)
		return nil, err
	}

	d := &dispatch{
		engine: e,
		op:     op,
		target: binding.Target,
		policy: e.policy,
	}
	d.partition(e.rules.Snapshot())

	seq := e.clock.Next()
	d.inv = newInvocation(id, op, snapshot, seq, frame.depth)
	e.sink.Emit(ctx, ir.EventRecord{
		Seq:          seq,
		Timestamp:    e.now(),
		InvocationID: id,
		Operation:    op.Name,
		Group:        op.Group,
		Phase:        ir.PhaseDispatchStart,
		Payload: ir.Object{
			"args":   snapshot,
			"depth":  ir.Int(frame.depth),
			"rules":  d.ruleIDs(),
			"policy": ir.String(d.policy),
		},
	})

	return d.run(ctx)
}

// checkArgs validates arity and kinds against the operation signature.
func checkArgs(op ir.Operation, args []ir.Value) error {
	if len(args) != len(op.Params) {
		return newArgumentShape(op.Name, "%s expects %d argument(s), got %d", op.Name, len(op.Params), len(args))
	}
	for i, kind := range op.Params {
		if !kind.Accepts(args[i]) {
			return newArgumentShape(op.Name, "argument %d of %s: expected %s, got %s", i, op.Name, kind, ir.TypeName(args[i]))
		}
		if err := ir.Validate(args[i]); err != nil {
			return newArgumentShape(op.Name, "argument %d of %s: %v", i, op.Name, err)
		}
	}
	return nil
}

func (e *Engine) reject(ctx context.Context, id string, op ir.Operation, err error) {
	f := Classify(err)
	slog.Debug("dispatch rejected",
		"invocation_id", id,
		"operation", op.Name,
		"kind", f.Kind,
		"message", f.Message,
	)
	e.emit(ctx, id, op, ir.PhaseDispatchRejected, failurePayload(err))
}

func (e *Engine) emit(ctx context.Context, id string, op ir.Operation, phase ir.Phase, payload ir.Object) {
	e.sink.Emit(ctx, ir.EventRecord{
		Seq:          e.clock.Next(),
		Timestamp:    e.now(),
		InvocationID: id,
		Operation:    op.Name,
		Group:        op.Group,
		Phase:        phase,
		Payload:      payload,
	})
}

// boundAdvice is an advice together with the rule it came from.
type boundAdvice struct {
	rule   Rule
	advice Advice
}

// dispatch holds the state of one Invoke call.
type dispatch struct {
	engine *Engine
	op     ir.Operation
	inv    *Invocation
	target Target
	policy ir.FailurePolicy

	rules          []Rule
	before         []boundAdvice
	around         []boundAdvice
	afterReturning []boundAdvice
	afterThrowing  []boundAdvice
}

// partition collects matching rules in priority order and splits their
// advice by kind. The first matching rule that sets a policy decides it.
func (d *dispatch) partition(snap *RuleSnapshot) {
	policySet := false
	for rule := range snap.Matching(d.op) {
		d.rules = append(d.rules, rule)
		if !policySet && rule.Policy != "" {
			d.policy = rule.Policy
			policySet = true
		}
		for _, a := range rule.Advice {
			b := boundAdvice{rule: rule, advice: a}
			switch a.Kind {
			case ir.AdviceBefore:
				d.before = append(d.before, b)
			case ir.AdviceAround:
				d.around = append(d.around, b)
			case ir.AdviceAfterReturning:
				d.afterReturning = append(d.afterReturning, b)
			case ir.AdviceAfterThrowing:
				d.afterThrowing = append(d.afterThrowing, b)
			}
		}
	}
}

func (d *dispatch) ruleIDs() ir.Array {
	ids := make(ir.Array, len(d.rules))
	for i, r := range d.rules {
		ids[i] = ir.String(r.ID)
	}
	return ids
}

func (d *dispatch) run(ctx context.Context) (ir.Value, error) {
	for _, b := range d.before {
		if err := d.callBefore(ctx, b); err != nil {
			d.inv.settle(Outcome{Err: err})
			return d.fail(ctx, err, false)
		}
	}

	chain := d.chain()
	result, err := chain(ctx)
	if err != nil {
		d.inv.settle(Outcome{Err: err})
		err = d.runAfterThrowing(ctx, err)
		return d.fail(ctx, err, true)
	}

	d.inv.settle(Outcome{Result: result})
	d.runAfterReturning(ctx, result)
	d.engine.emit(ctx, d.inv.id, d.op, ir.PhaseDispatchSuccess, ir.Object{"result": result})
	return result, nil
}

// fail ends a failed dispatch. Only chain failures are eligible for
// suppression; a before advice that raises is a guard and always
// propagates.
func (d *dispatch) fail(ctx context.Context, err error, suppressible bool) (ir.Value, error) {
	payload := failurePayload(err)
	if suppressible && d.policy == ir.PolicySuppress {
		d.engine.emit(ctx, d.inv.id, d.op, ir.PhaseDispatchSuppressed, payload)
		return ir.Null{}, nil
	}
	d.engine.emit(ctx, d.inv.id, d.op, ir.PhaseDispatchFailure, payload)
	return nil, err
}

// chain builds the nested call chain: the innermost link calls the target
// and each around advice wraps the next link, lowest priority outermost.
func (d *dispatch) chain() Proceed {
	link := Proceed(d.callTarget)
	for i := len(d.around) - 1; i >= 0; i-- {
		link = d.wrapAround(d.around[i], link)
	}
	return link
}

func (d *dispatch) callTarget(ctx context.Context) (ir.Value, error) {
	result, err := d.target(ctx, d.inv.Args())
	if err == nil {
		if result == nil {
			result = ir.Null{}
		}
		if !d.op.Returns.Accepts(result) {
			err = &DispatchError{
				Code:      ErrCodeResultShape,
				Message:   fmt.Sprintf("%s returned %s, declared %s", d.op.Name, ir.TypeName(result), d.op.Returns),
				Operation: d.op.Name,
			}
			result = nil
		}
	}

	payload := ir.Object{"status": ir.String("ok")}
	if err != nil {
		payload = failurePayload(err)
		payload["status"] = ir.String("error")
	} else {
		payload["result"] = result
	}
	d.engine.emit(ctx, d.inv.id, d.op, ir.PhaseTarget, payload)
	return result, err
}

func (d *dispatch) callBefore(ctx context.Context, b boundAdvice) error {
	var err error
	if b.advice.before != nil {
		err = b.advice.before(ctx, d.inv)
	}
	if misuse := d.inv.takeMisuse(); misuse != nil && err == nil {
		err = misuse
	}
	d.emitAdvice(ctx, b, "", err)
	if err != nil {
		return newAdviceError(d.op.Name, b.rule, b.advice, err)
	}
	return nil
}

func (d *dispatch) wrapAround(b boundAdvice, next Proceed) Proceed {
	return func(ctx context.Context) (ir.Value, error) {
		var calls atomic.Int32
		var passthrough atomic.Pointer[error]

		proceed := func(pctx context.Context) (ir.Value, error) {
			if calls.Add(1) > 1 && !d.engine.multiProceed {
				return nil, &DispatchError{
					Code:      ErrCodeProceedReused,
					Message:   fmt.Sprintf("around advice %q called proceed more than once", b.advice.Name),
					Operation: d.op.Name,
				}
			}
			v, err := next(pctx)
			if err != nil {
				passthrough.Store(&err)
			}
			return v, err
		}

		d.emitAdvice(ctx, b, "enter", nil)

		var (
			result ir.Value
			err    error
		)
		if b.advice.around != nil {
			result, err = b.advice.around(ctx, d.inv, proceed)
		} else {
			result, err = proceed(ctx)
		}
		if misuse := d.inv.takeMisuse(); misuse != nil && err == nil {
			result, err = nil, misuse
		}

		d.emitAdvice(ctx, b, "exit", err)
		if err != nil {
			// Errors coming up from the inner chain pass through unwrapped.
			if p := passthrough.Load(); p != nil && errors.Is(err, *p) {
				return nil, err
			}
			return nil, newAdviceError(d.op.Name, b.rule, b.advice, err)
		}
		if result == nil {
			result = ir.Null{}
		}
		return result, nil
	}
}

func (d *dispatch) runAfterThrowing(ctx context.Context, err error) error {
	current := err
	for _, b := range d.afterThrowing {
		var aerr error
		if b.advice.afterThrowing != nil {
			aerr = b.advice.afterThrowing(ctx, d.inv, current)
		}
		d.emitAdvice(ctx, b, "", aerr)
		if aerr != nil {
			current = newAdviceError(d.op.Name, b.rule, b.advice, aerr)
		}
	}
	return current
}

// runAfterReturning runs after-success advice. Their errors are recorded
// but never turn a successful result into a failure.
func (d *dispatch) runAfterReturning(ctx context.Context, result ir.Value) {
	for _, b := range d.afterReturning {
		var err error
		if b.advice.afterReturning != nil {
			err = b.advice.afterReturning(ctx, d.inv, ir.Clone(result))
		}
		d.emitAdvice(ctx, b, "", err)
		if err != nil {
			slog.Warn("after-returning advice failed",
				"invocation_id", d.inv.id,
				"operation", d.op.Name,
				"rule", b.rule.ID,
				"advice", b.advice.Name,
				"error", err,
			)
		}
	}
}

func (d *dispatch) emitAdvice(ctx context.Context, b boundAdvice, stage string, err error) {
	payload := ir.Object{
		"rule":     ir.String(b.rule.ID),
		"advice":   ir.String(b.advice.Name),
		"priority": ir.Int(b.rule.Priority),
		"status":   ir.String("ok"),
	}
	if stage != "" {
		payload["stage"] = ir.String(stage)
	}
	if err != nil {
		f := Classify(err)
		payload["status"] = ir.String("error")
		payload["kind"] = ir.String(f.Kind)
		payload["message"] = ir.String(f.Message)
	}
	d.engine.emit(ctx, d.inv.id, d.op, ir.AdvicePhase(b.advice.Kind), payload)
}

func failurePayload(err error) ir.Object {
	f := Classify(err)
	return ir.Object{
		"kind":    ir.String(f.Kind),
		"message": ir.String(f.Message),
	}
}
