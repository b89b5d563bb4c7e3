package engine

import (
	"sync"

	"github.com/roach88/weave/internal/ir"
)

// Outcome is the terminal state of an invocation: exactly one of Result or
// Err is meaningful.
type Outcome struct {
	Result ir.Value
	Err    error
}

// Failed reports whether the outcome is a failure.
func (o Outcome) Failed() bool {
	return o.Err != nil
}

// Invocation is the per-call context handed to advice.
//
// It is read-only for advice. Arguments are a snapshot taken at dispatch
// start; accessors return copies, so advice cannot interfere with the
// target or with each other through them. The outcome is settled exactly
// once by the dispatcher. Reading it earlier fails with CONTEXT_NOT_READY
// and marks the call as misused, which fails the dispatch.
type Invocation struct {
	id    string
	op    ir.Operation
	args  ir.Array
	seq   int64
	depth int

	mu      sync.Mutex
	settled bool
	outcome Outcome
	misuse  error
}

func newInvocation(id string, op ir.Operation, args ir.Array, seq int64, depth int) *Invocation {
	return &Invocation{
		id:    id,
		op:    op,
		args:  ir.CloneArray(args),
		seq:   seq,
		depth: depth,
	}
}

// ID returns the invocation ID.
func (inv *Invocation) ID() string { return inv.id }

// Name returns the operation name.
func (inv *Invocation) Name() string { return inv.op.Name }

// Group returns the operation group.
func (inv *Invocation) Group() string { return inv.op.Group }

// Operation returns a copy of the operation descriptor.
func (inv *Invocation) Operation() ir.Operation { return inv.op.Clone() }

// Seq returns the logical clock value at dispatch start.
func (inv *Invocation) Seq() int64 { return inv.seq }

// Depth returns the nesting depth; top-level calls are depth 1.
func (inv *Invocation) Depth() int { return inv.depth }

// NumArgs returns the number of arguments.
func (inv *Invocation) NumArgs() int { return len(inv.args) }

// Args returns a copy of the argument snapshot.
func (inv *Invocation) Args() ir.Array { return ir.CloneArray(inv.args) }

// Arg returns a copy of argument i, or Null when i is out of range.
func (inv *Invocation) Arg(i int) ir.Value {
	if i < 0 || i >= len(inv.args) {
		return ir.Null{}
	}
	return ir.Clone(inv.args[i])
}

// Settled reports whether the outcome has been set.
func (inv *Invocation) Settled() bool {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	return inv.settled
}

// Outcome returns the settled outcome, or CONTEXT_NOT_READY if the chain
// has not finished yet.
func (inv *Invocation) Outcome() (Outcome, error) {
	inv.mu.Lock()
	defer inv.mu.Unlock()

	if !inv.settled {
		err := &DispatchError{
			Code:      ErrCodeContextNotReady,
			Message:   "outcome read before the call chain completed",
			Operation: inv.op.Name,
		}
		if inv.misuse == nil {
			inv.misuse = err
		}
		return Outcome{}, err
	}
	return Outcome{Result: ir.Clone(inv.outcome.Result), Err: inv.outcome.Err}, nil
}

// Result returns the successful result. Fails with CONTEXT_NOT_READY
// before the outcome is settled; returns the failure error if the call
// failed.
func (inv *Invocation) Result() (ir.Value, error) {
	o, err := inv.Outcome()
	if err != nil {
		return nil, err
	}
	if o.Err != nil {
		return nil, o.Err
	}
	return o.Result, nil
}

// settle records the outcome. Returns false if it was already settled.
func (inv *Invocation) settle(o Outcome) bool {
	inv.mu.Lock()
	defer inv.mu.Unlock()

	if inv.settled {
		return false
	}
	inv.settled = true
	inv.outcome = o
	return true
}

// takeMisuse returns and clears the recorded premature read, if any.
func (inv *Invocation) takeMisuse() error {
	inv.mu.Lock()
	defer inv.mu.Unlock()

	err := inv.misuse
	inv.misuse = nil
	return err
}
