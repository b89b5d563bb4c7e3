package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/roach88/weave/internal/demo"
	"github.com/roach88/weave/internal/engine"
	"github.com/roach88/weave/internal/ir"
	"github.com/roach88/weave/internal/sink"
	"github.com/roach88/weave/internal/store"
	"github.com/roach88/weave/internal/testutil"
)

// Harness is the test execution engine.
// It runs scenarios against a demo engine with a deterministic clock and
// sequential invocation IDs, recording every event into an in-memory store.
type Harness struct {
	demo   *demo.Demo
	store  *store.Store
	mem    *sink.Memory
	logger *slog.Logger
}

// Run executes a test scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database for isolation.
// Deterministic helpers ensure reproducible results.
//
// Execution flow:
// 1. Create fresh in-memory database
// 2. Load aspect declarations and build the demo engine
// 3. Execute setup steps
// 4. Execute flow steps with expect validation
// 5. Read the trace back from the store and evaluate assertions
func Run(scenario *Scenario) (*Result, error) {
	return RunContext(context.Background(), scenario)
}

// RunContext is Run with a caller-supplied context.
func RunContext(ctx context.Context, scenario *Scenario) (*Result, error) {
	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	// Suppress service and advice output in tests
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	specs, err := loadAspects(scenario.Aspects)
	if err != nil {
		return nil, err
	}

	mem := sink.NewMemory()
	opts := append(testutil.DeterministicOptions(nil),
		engine.WithSink(sink.Fanout(mem, sink.NewStore(st, logger))),
	)
	if scenario.Policy != "" {
		opts = append(opts, engine.WithFailurePolicy(scenario.Policy))
	}
	if scenario.MaxDepth > 0 {
		opts = append(opts, engine.WithMaxDepth(scenario.MaxDepth))
	}

	d, err := demo.New(demo.Config{Logger: logger, Aspects: specs, Options: opts})
	if err != nil {
		return nil, fmt.Errorf("failed to build engine: %w", err)
	}

	h := &Harness{demo: d, store: st, mem: mem, logger: logger}
	result := NewResult()

	if err := h.executeSetup(ctx, scenario.Setup); err != nil {
		return nil, fmt.Errorf("failed to execute setup: %w", err)
	}
	if err := h.executeFlow(ctx, scenario.Flow, result); err != nil {
		return nil, fmt.Errorf("failed to execute flow: %w", err)
	}

	// The trace comes back from the store, so a scenario also checks
	// that every record survives persistence.
	recs, err := st.ReadEvents(ctx, store.EventFilter{})
	if err != nil {
		return nil, fmt.Errorf("failed to read trace: %w", err)
	}
	if len(recs) != mem.Len() {
		return nil, fmt.Errorf("store holds %d records, engine emitted %d", len(recs), mem.Len())
	}
	for _, rec := range recs {
		result.Trace = append(result.Trace, traceEvent(rec))
	}
	result.Tracks = d.Tracks.Snapshot()

	for _, msg := range EvaluateAssertions(result, scenario.Assertions) {
		result.AddError(msg)
	}
	return result, nil
}

// loadAspects compiles the scenario's aspect files. Nil means the demo
// defaults.
func loadAspects(paths []string) ([]ir.AspectSpec, error) {
	if len(paths) == 0 {
		return nil, nil
	}
	var specs []ir.AspectSpec
	for _, p := range paths {
		src, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("failed to read aspects: %w", err)
		}
		got, err := demo.CompileAspects(p, string(src))
		if err != nil {
			return nil, fmt.Errorf("failed to compile aspects: %w", err)
		}
		specs = append(specs, got...)
	}
	return specs, nil
}

// executeSetup runs setup steps. Any failure aborts the scenario.
func (h *Harness) executeSetup(ctx context.Context, setup []Step) error {
	for i, step := range setup {
		args, err := convertArgs(step.Args)
		if err != nil {
			return fmt.Errorf("setup step %d: failed to convert args: %w", i, err)
		}
		if _, err := h.demo.Engine.Invoke(ctx, step.Invoke, args...); err != nil {
			return fmt.Errorf("setup step %d (%s): %w", i, step.Invoke, err)
		}
		h.logger.Info("setup step completed", "step", i, "operation", step.Invoke)
	}
	return nil
}

// executeFlow runs flow steps through the engine and checks each expect
// clause against the real outcome.
func (h *Harness) executeFlow(ctx context.Context, flow []Step, result *Result) error {
	for i, step := range flow {
		args, err := convertArgs(step.Args)
		if err != nil {
			return fmt.Errorf("flow step %d: failed to convert args: %w", i, err)
		}

		before := h.mem.Len()
		value, invokeErr := h.demo.Engine.Invoke(ctx, step.Invoke, args...)
		recs := h.mem.Records()[before:]
		if len(recs) == 0 {
			return fmt.Errorf("flow step %d: engine emitted no records", i)
		}

		sr := StepResult{
			Operation:    step.Invoke,
			InvocationID: recs[0].InvocationID,
			Outcome:      terminalOutcome(recs, recs[0].InvocationID),
			Value:        value,
		}
		if invokeErr != nil {
			f := engine.Classify(invokeErr)
			sr.Failure = &f
		} else if sr.Outcome == OutcomeSuppressed {
			f := suppressedFailure(recs, sr.InvocationID)
			sr.Failure = &f
		}
		result.Steps = append(result.Steps, sr)

		for _, msg := range checkExpect(i, step, sr) {
			result.AddError(msg)
		}

		h.logger.Info("flow step completed",
			"step", i,
			"operation", step.Invoke,
			"invocation_id", sr.InvocationID,
			"outcome", sr.Outcome,
		)
	}
	return nil
}

// terminalOutcome finds the outcome of invocation id among recs. Nested
// dispatches interleave their own records, so the id filter matters.
func terminalOutcome(recs []ir.EventRecord, id string) string {
	for i := len(recs) - 1; i >= 0; i-- {
		if recs[i].InvocationID == id && recs[i].Phase.Terminal() {
			return outcomeName(recs[i].Phase)
		}
	}
	return ""
}

func suppressedFailure(recs []ir.EventRecord, id string) ir.Failure {
	for _, rec := range recs {
		if rec.InvocationID == id && rec.Phase == ir.PhaseDispatchSuppressed {
			return ir.Failure{Kind: rec.PayloadString("kind"), Message: rec.PayloadString("message")}
		}
	}
	return ir.Failure{}
}

// checkExpect compares a step's outcome with its expect clause. A step
// without one must succeed.
func checkExpect(index int, step Step, sr StepResult) []string {
	exp := step.Expect
	if exp == nil {
		exp = &Expect{Outcome: OutcomeSuccess}
	}

	prefix := fmt.Sprintf("flow[%d] %s", index, step.Invoke)
	if sr.Outcome != exp.Outcome {
		msg := fmt.Sprintf("%s: expected outcome %s, got %s", prefix, exp.Outcome, sr.Outcome)
		if sr.Failure != nil {
			msg += " (" + sr.Failure.String() + ")"
		}
		return []string{msg}
	}

	var errs []string
	if exp.Result != nil {
		want, err := ir.FromGo(exp.Result)
		if err != nil {
			errs = append(errs, fmt.Sprintf("%s: expected result: %v", prefix, err))
		} else if !valuesMatch(want, sr.Value) {
			errs = append(errs, fmt.Sprintf("%s: expected result %s, got %s", prefix, render(want), render(sr.Value)))
		}
	}
	if exp.Error != nil && sr.Failure != nil {
		if sr.Failure.Kind != exp.Error.Kind ||
			(exp.Error.Message != "" && sr.Failure.Message != exp.Error.Message) {
			want := ir.Failure{Kind: exp.Error.Kind, Message: exp.Error.Message}
			errs = append(errs, fmt.Sprintf("%s: expected %s, got %s", prefix, want, sr.Failure))
		}
	}
	return errs
}

// convertArgs converts YAML-parsed arguments to values.
func convertArgs(args []any) ([]ir.Value, error) {
	out := make([]ir.Value, len(args))
	for i, a := range args {
		v, err := ir.FromGo(a)
		if err != nil {
			return nil, fmt.Errorf("args[%d]: %w", i, err)
		}
		out[i] = v
	}
	return out, nil
}
