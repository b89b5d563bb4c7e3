package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/weave/internal/engine"
	"github.com/roach88/weave/internal/ir"
	"github.com/roach88/weave/internal/sink"
)

// InvokeOptions holds flags for the invoke command.
type InvokeOptions struct {
	*RootOptions
	Engine   EngineFlags
	Args     string
	Database string
	Trace    bool

	// IDGenerator overrides the invocation ID generator (for testing).
	IDGenerator engine.IDGenerator
}

// InvokeResult holds the outcome of a single invocation.
type InvokeResult struct {
	InvocationID string           `json:"invocation_id"`
	Operation    string           `json:"operation"`
	Args         ir.Array         `json:"args"`
	Outcome      ir.Phase         `json:"outcome"`
	Result       ir.Value         `json:"result,omitempty"`
	Failure      *ir.Failure      `json:"failure,omitempty"`
	Events       []ir.EventRecord `json:"events,omitempty"`
}

// NewInvokeCommand creates the invoke command.
func NewInvokeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &InvokeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "invoke <operation>",
		Short: "Invoke one operation through the demo engine",
		Long: `Invoke a single operation through the demo engine and report its outcome.

Arguments are a JSON array. Integers stay integers and numbers with a
fraction or exponent become floats, so 4 and 4.0 are different kinds.

Exit codes:
  0 - The invocation succeeded or its failure was suppressed
  1 - The invocation failed or was rejected
  2 - Command error (bad arguments, aspects, database)

Example:
  weave invoke calc.div --args '[4, 2]'
  weave invoke calc.div --args '[4, 0]' --trace
  weave invoke cd.playTrack --args '[3]' --db ./weave.db`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return invokeOperation(opts, args[0], cmd)
		},
	}

	opts.Engine.register(cmd)
	cmd.Flags().StringVar(&opts.Args, "args", "[]", "operation arguments as a JSON array")
	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite event log (created if missing)")
	cmd.Flags().BoolVar(&opts.Trace, "trace", false, "include the invocation's event records")

	return cmd
}

func invokeOperation(opts *InvokeOptions, operation string, cmd *cobra.Command) error {
	if err := opts.ensure(cmd); err != nil {
		return err
	}
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	args, err := ir.UnmarshalArgs([]byte(opts.Args))
	if err != nil {
		_ = formatter.Error(ErrCodeBadArgs, fmt.Sprintf("invalid --args: %v", err), nil)
		return WrapExitError(ExitCommandError, ErrCodeBadArgs+": invalid --args", err)
	}

	ctx := commandContext(cmd)
	rec, err := newRecorder(ctx, opts.Logger, recorderOptions{DB: resolveDB(opts.Database, opts.Config)})
	if err != nil {
		return err
	}
	defer rec.close()

	mem := sink.NewMemory()
	rec.sinks = append(rec.sinks, mem)

	extra := rec.options()
	if opts.IDGenerator != nil {
		extra = append(extra, engine.WithIDGenerator(opts.IDGenerator))
	}
	d, err := buildDemo(opts.RootOptions, &opts.Engine, extra...)
	if err != nil {
		return err
	}

	formatter.VerboseLog("Invoking %s%s", operation, renderArgs(args))
	value, invokeErr := d.Engine.Invoke(ctx, operation, args...)

	if err := rec.close(); err != nil {
		return WrapExitError(ExitCommandError, "failed to flush event log", err)
	}

	result := summarizeInvocation(operation, args, mem.Records(), value, invokeErr)
	if opts.Trace {
		result.Events = mem.ForInvocation(result.InvocationID)
	}

	if opts.Format == "json" {
		if err := formatter.Result(result.Failure == nil || result.Outcome == ir.PhaseDispatchSuppressed,
			result, ErrCodeInvoke, failureMessage(result)); err != nil {
			return err
		}
	} else {
		writeInvokeText(cmd.OutOrStdout(), result)
	}

	if invokeErr != nil {
		return WrapExitError(ExitFailure, ErrCodeInvoke+": invocation failed", invokeErr)
	}
	return nil
}

// summarizeInvocation derives the outcome from the invocation's records.
// The first record belongs to the top-level dispatch; nested dispatches
// interleave their own.
func summarizeInvocation(operation string, args ir.Array, recs []ir.EventRecord, value ir.Value, err error) InvokeResult {
	result := InvokeResult{Operation: operation, Args: args}
	if result.Args == nil {
		result.Args = ir.Array{}
	}
	if len(recs) > 0 {
		result.InvocationID = recs[0].InvocationID
	}

	for i := len(recs) - 1; i >= 0; i-- {
		r := recs[i]
		if r.InvocationID != result.InvocationID || !r.Phase.Terminal() {
			continue
		}
		result.Outcome = r.Phase
		if r.Phase == ir.PhaseDispatchSuppressed {
			result.Failure = &ir.Failure{Kind: r.PayloadString("kind"), Message: r.PayloadString("message")}
		}
		break
	}

	if err != nil {
		f := engine.Classify(err)
		result.Failure = &f
		return result
	}
	result.Result = value
	return result
}

func failureMessage(r InvokeResult) string {
	if r.Failure == nil {
		return ""
	}
	return r.Failure.String()
}

func writeInvokeText(w io.Writer, r InvokeResult) {
	call := r.Operation + renderArgs(r.Args)
	switch r.Outcome {
	case ir.PhaseDispatchSuccess:
		fmt.Fprintf(w, "✓ %s = %s\n", call, renderValue(r.Result))
	case ir.PhaseDispatchSuppressed:
		fmt.Fprintf(w, "~ %s suppressed %s\n", call, r.Failure)
	default:
		fmt.Fprintf(w, "✗ %s: %s\n", call, r.Failure)
	}
	if r.InvocationID != "" {
		fmt.Fprintf(w, "  invocation: %s\n", r.InvocationID)
	}
	for _, e := range r.Events {
		writeEventLine(w, e)
	}
}
