package cli

import (
	"database/sql"
	"errors"
	"fmt"
	"io"
	"slices"

	"github.com/spf13/cobra"

	"github.com/roach88/weave/internal/ir"
	"github.com/roach88/weave/internal/store"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Database     string
	InvocationID string   // optional - one invocation only
	Operation    string   // optional - filter to one operation
	Phases       []string // optional - filter to phases
	Limit        uint
}

// TraceResult holds the complete trace output.
type TraceResult struct {
	Invocation *TraceInvocation `json:"invocation,omitempty"`
	Timeline   []ir.EventRecord `json:"timeline"`
	Stats      TraceStats       `json:"stats"`
	Unfinished []string         `json:"unfinished,omitempty"`
}

// TraceInvocation describes the invocation selected with --invocation.
type TraceInvocation struct {
	ID        string   `json:"id"`
	Operation string   `json:"operation"`
	Args      ir.Array `json:"args"`
	Depth     int      `json:"depth"`
	Outcome   string   `json:"outcome"`
}

// TraceStats holds summary statistics for the trace.
type TraceStats struct {
	TotalEvents int                `json:"total_events"`
	Invocations int                `json:"invocations"`
	ByPhase     map[ir.Phase]int64 `json:"by_phase"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace",
		Short: "Print the recorded event timeline",
		Long: `Print event records from an event log in seq order.

Records can be narrowed to one invocation, one operation or a set of
phases. With --invocation the invocation's arguments, depth and outcome
are printed too. Invocations that started but never reached an outcome
are listed at the end.

Examples:
  weave trace --db ./weave.db
  weave trace --db ./weave.db --invocation 0190f3c2-...
  weave trace --db ./weave.db --operation calc.div --phase advice.before
  weave trace --db ./weave.db --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite event log (required)")
	cmd.Flags().StringVar(&opts.InvocationID, "invocation", "", "trace one invocation")
	cmd.Flags().StringVar(&opts.Operation, "operation", "", "filter to one operation")
	cmd.Flags().StringSliceVar(&opts.Phases, "phase", nil, "filter to phases (repeatable)")
	cmd.Flags().UintVar(&opts.Limit, "limit", 0, "maximum number of records (0: no limit)")

	return cmd
}

func runTrace(opts *TraceOptions, cmd *cobra.Command) error {
	if err := opts.ensure(cmd); err != nil {
		return err
	}
	ctx := commandContext(cmd)

	st, err := openExistingStore(resolveDB(opts.Database, opts.Config))
	if err != nil {
		return err
	}
	defer st.Close()

	filter := store.EventFilter{
		InvocationID: opts.InvocationID,
		Operation:    opts.Operation,
		Limit:        opts.Limit,
	}
	for _, p := range opts.Phases {
		filter.Phases = append(filter.Phases, ir.Phase(p))
	}

	result := TraceResult{}
	if opts.InvocationID != "" {
		inv, err := traceInvocation(cmd, st, opts.InvocationID)
		if err != nil {
			return err
		}
		result.Invocation = inv
	}

	if result.Timeline, err = st.ReadEvents(ctx, filter); err != nil {
		return WrapExitError(ExitCommandError, "failed to read events", err)
	}
	if result.Stats, err = traceStats(cmd, st, filter, result.Timeline); err != nil {
		return WrapExitError(ExitCommandError, "failed to count events", err)
	}

	unfinished, err := st.FindUnfinished(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to find unfinished invocations", err)
	}
	for _, inv := range unfinished {
		if opts.InvocationID != "" && inv.ID != opts.InvocationID {
			continue
		}
		if opts.Operation != "" && inv.Operation != opts.Operation {
			continue
		}
		result.Unfinished = append(result.Unfinished, inv.ID)
	}

	if opts.Format == "json" {
		formatter := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
		return formatter.Success(result)
	}
	writeTraceText(cmd.OutOrStdout(), result)
	return nil
}

func traceInvocation(cmd *cobra.Command, st *store.Store, id string) (*TraceInvocation, error) {
	ctx := commandContext(cmd)

	inv, err := st.ReadInvocation(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, NewExitError(ExitCommandError, fmt.Sprintf("%s: invocation %s not found", ErrCodeNotFound, id))
	}
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to read invocation", err)
	}

	outcome, err := st.ReadOutcome(ctx, id)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to read outcome", err)
	}

	return &TraceInvocation{
		ID:        inv.ID,
		Operation: inv.Operation,
		Args:      inv.Args,
		Depth:     inv.Depth,
		Outcome:   outcome.String(),
	}, nil
}

// traceStats summarizes the timeline. An unfiltered trace takes its phase
// counts from the store aggregate, so a --limit does not truncate them.
func traceStats(cmd *cobra.Command, st *store.Store, f store.EventFilter, timeline []ir.EventRecord) (TraceStats, error) {
	stats := TraceStats{TotalEvents: len(timeline), ByPhase: make(map[ir.Phase]int64)}

	ids := make(map[string]bool)
	for _, rec := range timeline {
		ids[rec.InvocationID] = true
	}
	stats.Invocations = len(ids)

	if f.InvocationID == "" && f.Operation == "" && len(f.Phases) == 0 {
		counts, err := st.CountByPhase(commandContext(cmd))
		if err != nil {
			return TraceStats{}, err
		}
		stats.ByPhase = counts
		return stats, nil
	}

	for _, rec := range timeline {
		stats.ByPhase[rec.Phase]++
	}
	return stats, nil
}

func writeTraceText(w io.Writer, r TraceResult) {
	if r.Invocation != nil {
		inv := r.Invocation
		fmt.Fprintf(w, "Invocation: %s\n", inv.ID)
		fmt.Fprintf(w, "  %s%s depth %d\n", inv.Operation, renderArgs(inv.Args), inv.Depth)
		fmt.Fprintf(w, "  outcome: %s\n", inv.Outcome)
		fmt.Fprintln(w)
	}

	if len(r.Timeline) == 0 {
		fmt.Fprintln(w, "No events found.")
	} else {
		fmt.Fprintf(w, "Timeline: %d event(s), %d invocation(s)\n", r.Stats.TotalEvents, r.Stats.Invocations)
		for _, rec := range r.Timeline {
			writeEventLine(w, rec)
		}
	}

	if len(r.Stats.ByPhase) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "By phase:")
		phases := make([]ir.Phase, 0, len(r.Stats.ByPhase))
		for p := range r.Stats.ByPhase {
			phases = append(phases, p)
		}
		slices.Sort(phases)
		for _, p := range phases {
			fmt.Fprintf(w, "  %-24s %d\n", p, r.Stats.ByPhase[p])
		}
	}

	if len(r.Unfinished) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintf(w, "Unfinished: %d invocation(s)\n", len(r.Unfinished))
		for _, id := range r.Unfinished {
			fmt.Fprintf(w, "  %s\n", id)
		}
	}
}

// writeEventLine prints one record as
//
//	#seq invocation operation phase payload
func writeEventLine(w io.Writer, rec ir.EventRecord) {
	fmt.Fprintf(w, "  %s", rec)
	if len(rec.Payload) > 0 {
		fmt.Fprintf(w, " %s", renderValue(rec.Payload))
	}
	fmt.Fprintln(w)
}
