package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/weave/internal/demo"
	"github.com/roach88/weave/internal/engine"
	"github.com/roach88/weave/internal/ir"
	"github.com/roach88/weave/internal/sink"
	"github.com/roach88/weave/internal/store"
)

// ReplayOptions holds flags for the replay command.
type ReplayOptions struct {
	*RootOptions
	Engine    EngineFlags
	Database  string
	Operation string // optional - replay one operation only
}

// ReplayCallResult holds the replay result for a single recorded call.
type ReplayCallResult struct {
	InvocationID string   `json:"invocation_id"`
	Operation    string   `json:"operation"`
	Args         ir.Array `json:"args"`
	Recorded     string   `json:"recorded"`
	Replayed     string   `json:"replayed"`
	Match        bool     `json:"match"`
}

// ReplayResult holds the overall replay result.
type ReplayResult struct {
	Calls      []ReplayCallResult `json:"calls"`
	Total      int                `json:"total"`
	Diverged   int                `json:"diverged"`
	Unfinished int                `json:"unfinished"`
	Consistent bool               `json:"consistent"`
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Re-dispatch recorded calls and compare outcomes",
		Long: `Re-dispatch every recorded top-level call against a fresh demo engine
and compare each outcome with the recorded one.

Calls are replayed in seq order so stateful advice (the track counter)
sees the same history. Nested dispatches are not replayed on their own;
replaying their parent reproduces them. Calls that never reached an
outcome are skipped and counted.

Replaying with different --aspects or --policy shows how the change would
have altered past calls.

Exit codes:
  0 - Every replayed outcome matches the recording
  1 - At least one outcome diverged
  2 - Command error (database not found, etc.)

Examples:
  weave replay --db ./weave.db
  weave replay --db ./weave.db --operation calc.div
  weave replay --db ./weave.db --policy suppress --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(opts, cmd)
		},
	}

	opts.Engine.register(cmd)
	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite event log (required)")
	cmd.Flags().StringVar(&opts.Operation, "operation", "", "replay one operation only")

	return cmd
}

func runReplay(opts *ReplayOptions, cmd *cobra.Command) error {
	if err := opts.ensure(cmd); err != nil {
		return err
	}
	ctx := commandContext(cmd)

	st, err := openExistingStore(resolveDB(opts.Database, opts.Config))
	if err != nil {
		return err
	}
	defer st.Close()

	calls, err := st.ReadCalls(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read recorded calls", err)
	}

	mem := sink.NewMemory()
	d, err := buildDemo(opts.RootOptions, &opts.Engine, engine.WithSink(mem))
	if err != nil {
		return err
	}

	result := ReplayResult{Calls: []ReplayCallResult{}, Consistent: true}
	for _, call := range calls {
		if opts.Operation != "" && call.Invocation.Operation != opts.Operation {
			continue
		}
		if !call.Outcome.Finished() {
			result.Unfinished++
			continue
		}

		replayed := replayCall(ctx, d, mem, call.Invocation)
		match := call.Outcome.Same(replayed)

		result.Total++
		if !match {
			result.Diverged++
			result.Consistent = false
			opts.Logger.Warn("replay diverged",
				"invocation_id", call.Invocation.ID,
				"operation", call.Invocation.Operation,
				"recorded", call.Outcome.String(),
				"replayed", replayed.String(),
			)
		}
		result.Calls = append(result.Calls, ReplayCallResult{
			InvocationID: call.Invocation.ID,
			Operation:    call.Invocation.Operation,
			Args:         call.Invocation.Args,
			Recorded:     call.Outcome.String(),
			Replayed:     replayed.String(),
			Match:        match,
		})
	}

	if opts.Format == "json" {
		formatter := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
		if err := formatter.Result(result.Consistent, result, "E_REPLAY", "replay diverged from recording"); err != nil {
			return err
		}
	} else {
		writeReplayText(cmd.OutOrStdout(), result, opts.Verbose)
	}

	if !result.Consistent {
		return NewExitError(ExitFailure, fmt.Sprintf("replay diverged: %d of %d call(s)", result.Diverged, result.Total))
	}
	return nil
}

// replayCall dispatches inv again and reads the outcome back from the
// records the new dispatch emitted, the same way the store derives the
// recorded one.
func replayCall(ctx context.Context, d *demo.Demo, mem *sink.Memory, inv store.Invocation) store.Outcome {
	mem.Reset()
	// The outcome comes from the records; the returned error is the same
	// failure in Go form.
	_, _ = d.Engine.Invoke(ctx, inv.Operation, inv.Args...)

	recs := mem.Records()
	if len(recs) == 0 {
		return store.Outcome{}
	}
	id := recs[0].InvocationID

	for i := len(recs) - 1; i >= 0; i-- {
		rec := recs[i]
		if rec.InvocationID != id || !rec.Phase.Terminal() {
			continue
		}
		out := store.Outcome{Phase: rec.Phase, Seq: rec.Seq}
		if rec.Phase == ir.PhaseDispatchSuccess {
			out.Result = rec.Payload["result"]
			if out.Result == nil {
				out.Result = ir.Null{}
			}
			return out
		}
		out.Failure = ir.Failure{Kind: rec.PayloadString("kind"), Message: rec.PayloadString("message")}
		return out
	}
	return store.Outcome{}
}

func writeReplayText(w io.Writer, r ReplayResult, verbose bool) {
	fmt.Fprintf(w, "Replay Summary: %d call(s)\n", r.Total)
	fmt.Fprintln(w)

	for _, c := range r.Calls {
		if c.Match && !verbose {
			continue
		}
		status := "✓"
		if !c.Match {
			status = "✗"
		}
		fmt.Fprintf(w, "%s %s %s%s\n", status, c.InvocationID, c.Operation, renderArgs(c.Args))
		fmt.Fprintf(w, "  recorded: %s\n", c.Recorded)
		if !c.Match {
			fmt.Fprintf(w, "  replayed: %s\n", c.Replayed)
		}
	}

	if r.Unfinished > 0 {
		fmt.Fprintf(w, "Skipped %d unfinished call(s)\n", r.Unfinished)
	}

	if r.Consistent {
		fmt.Fprintln(w, "✓ All replayed outcomes match the recording")
		return
	}
	fmt.Fprintf(w, "✗ %d call(s) diverged\n", r.Diverged)
}
