package cli

import (
	"context"
	"fmt"
	"io"
	"maps"
	"os"
	"os/signal"
	"slices"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/roach88/weave/internal/demo"
	"github.com/roach88/weave/internal/engine"
	"github.com/roach88/weave/internal/ir"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Engine   EngineFlags
	Database string
	Async    bool
	Metrics  bool

	// IDGenerator overrides the invocation ID generator (for testing).
	// If nil, the engine default (UUIDv7) is used.
	IDGenerator engine.IDGenerator
}

// StepOutput is the outcome of one bootstrap call.
type StepOutput struct {
	Operation string      `json:"operation"`
	Args      ir.Array    `json:"args"`
	Result    ir.Value    `json:"result,omitempty"`
	Failure   *ir.Failure `json:"failure,omitempty"`
}

// RunResult holds the run command output.
type RunResult struct {
	Steps      []StepOutput     `json:"steps"`
	Tracks     map[int]int      `json:"tracks"`
	Records    int64            `json:"records"`
	Database   string           `json:"database,omitempty"`
	Dispatches map[string]int64 `json:"dispatches,omitempty"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the demo bootstrap sequence",
		Long: `Build the demo engine and dispatch the bootstrap sequence.

The demo registers the concert performance, the compact disc and the
calculator, introduces the admiration capability onto the performance,
applies the aspects, then calls:

  perform, showAdmiration, playTrack 1, 2, 1, 2,
  add, sub, mul, div with (1.0, 2.0)

and prints every result and the per-track play counts. Advice output is
logged to stderr.

With --db every event record is persisted to SQLite for trace and replay.

Example:
  weave run
  weave run --db ./weave.db --async
  weave run --aspects ./aspects --policy suppress --metrics`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDemo(opts, cmd)
		},
	}

	opts.Engine.register(cmd)
	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite event log (created if missing)")
	cmd.Flags().BoolVar(&opts.Async, "async", false, "persist records through a background queue")
	cmd.Flags().BoolVar(&opts.Metrics, "metrics", false, "collect dispatch metrics and print a summary")

	return cmd
}

func runDemo(opts *RunOptions, cmd *cobra.Command) error {
	if err := opts.ensure(cmd); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbPath := resolveDB(opts.Database, opts.Config)
	rec, err := newRecorder(ctx, opts.Logger, recorderOptions{DB: dbPath, Async: opts.Async, Metrics: opts.Metrics})
	if err != nil {
		return err
	}
	defer rec.close()

	extra := rec.options()
	if opts.IDGenerator != nil {
		extra = append(extra, engine.WithIDGenerator(opts.IDGenerator))
	}
	d, err := buildDemo(opts.RootOptions, &opts.Engine, extra...)
	if err != nil {
		return err
	}

	opts.Logger.Info("demo starting",
		"operations", d.Engine.Registry().Len(),
		"rules", d.Engine.Rules().Len(),
		"db", dbPath,
	)

	results := d.Run(ctx)

	if err := rec.close(); err != nil {
		return WrapExitError(ExitCommandError, "failed to flush event log", err)
	}
	if n := rec.writeFailures(); n > 0 {
		return NewExitError(ExitCommandError, fmt.Sprintf("%d event record(s) could not be persisted", n))
	}

	result := RunResult{
		Steps:    make([]StepOutput, len(results)),
		Tracks:   d.Tracks.Snapshot(),
		Records:  d.Engine.Clock().Current() - rec.startSeq,
		Database: dbPath,
	}
	for i, r := range results {
		result.Steps[i] = stepOutput(r)
	}
	if result.Dispatches, err = rec.dispatchCounts(ctx); err != nil {
		return WrapExitError(ExitCommandError, "failed to read metrics", err)
	}

	opts.Logger.Info("demo finished", "records", result.Records)

	formatter := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
	if opts.Format == "json" {
		return formatter.Success(result)
	}
	writeRunText(cmd.OutOrStdout(), result, d.Tracks)
	return nil
}

func stepOutput(r demo.Result) StepOutput {
	out := StepOutput{Operation: r.Step.Operation, Args: r.Step.Args}
	if out.Args == nil {
		out.Args = ir.Array{}
	}
	if r.Err != nil {
		f := engine.Classify(r.Err)
		out.Failure = &f
		return out
	}
	out.Result = r.Value
	return out
}

func writeRunText(w io.Writer, result RunResult, tracks *demo.TrackCounter) {
	for _, s := range result.Steps {
		call := s.Operation + renderArgs(s.Args)
		if s.Failure != nil {
			fmt.Fprintf(w, "✗ %s: %s\n", call, s.Failure)
			continue
		}
		fmt.Fprintf(w, "✓ %s = %s\n", call, renderValue(s.Result))
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "Track counts: %s\n", tracks)
	fmt.Fprintf(w, "Event records: %d\n", result.Records)
	if result.Database != "" {
		fmt.Fprintf(w, "Event log: %s\n", result.Database)
	}
	if len(result.Dispatches) > 0 {
		var parts []string
		for _, outcome := range slices.Sorted(maps.Keys(result.Dispatches)) {
			parts = append(parts, fmt.Sprintf("%s=%d", outcome, result.Dispatches[outcome]))
		}
		fmt.Fprintf(w, "Dispatches: %s\n", strings.Join(parts, " "))
	}
}

// renderArgs renders an argument list as (a, b).
func renderArgs(args ir.Array) string {
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = renderValue(a)
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

// renderValue renders v as canonical JSON, or "null" for a void result.
func renderValue(v ir.Value) string {
	if v == nil {
		return "null"
	}
	b, err := ir.MarshalCanonical(v)
	if err != nil {
		return ir.TypeName(v)
	}
	return string(b)
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
