package harness

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/roach88/weave/internal/ir"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Relevant trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nTrace:\n")
		for _, event := range e.Trace {
			fmt.Fprintf(&buf, "  #%d %s %s %s", event.Seq, event.InvocationID, event.Operation, event.Phase)
			if adv := payloadString(event.Payload, "advice"); adv != "" {
				fmt.Fprintf(&buf, " (%s)", adv)
			}
			buf.WriteByte('\n')
		}
	}

	return buf.String()
}

// EvaluateAssertions runs every assertion against result and returns the
// failure messages. Assertions run independently; one failing does not
// stop the rest.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var errs []string
	for i, a := range assertions {
		var err error
		switch a.Type {
		case AssertPhaseOrder:
			err = assertPhaseOrder(result, a)
		case AssertTraceContains:
			err = assertTraceContains(result.Trace, a)
		case AssertTraceCount:
			err = assertTraceCount(result.Trace, a)
		case AssertTrackCounts:
			err = assertTrackCounts(result, a)
		case AssertTargetNotCalled:
			err = assertTargetNotCalled(result, a)
		default:
			err = fmt.Errorf("unknown assertion type %q", a.Type)
		}
		if err != nil {
			errs = append(errs, fmt.Sprintf("assertions[%d]: %v", i, err))
		}
	}
	return errs
}

// assertPhaseOrder checks that the phases of one flow step match exactly.
func assertPhaseOrder(result *Result, a Assertion) error {
	events, err := stepEvents(result, a)
	if err != nil {
		return err
	}

	got := make([]ir.Phase, len(events))
	for i, e := range events {
		got[i] = e.Phase
	}
	if slices.Equal(got, a.Phases) {
		return nil
	}

	return &AssertionError{
		Type:     AssertPhaseOrder,
		Expected: fmt.Sprintf("phases %v", a.Phases),
		Actual:   fmt.Sprintf("phases %v", got),
		Trace:    events,
	}
}

// assertTraceContains checks that at least one record matches.
func assertTraceContains(trace []TraceEvent, a Assertion) error {
	if slices.ContainsFunc(trace, a.matches) {
		return nil
	}
	return &AssertionError{
		Type:     AssertTraceContains,
		Expected: a.describe(),
		Actual:   "not found in trace",
		Trace:    trace,
	}
}

// assertTraceCount checks that exactly Count records match.
func assertTraceCount(trace []TraceEvent, a Assertion) error {
	count := 0
	for _, e := range trace {
		if a.matches(e) {
			count++
		}
	}
	if count == a.Count {
		return nil
	}
	return &AssertionError{
		Type:     AssertTraceCount,
		Expected: fmt.Sprintf("%d records with %s", a.Count, a.describe()),
		Actual:   fmt.Sprintf("%d records", count),
		Trace:    trace,
	}
}

// assertTrackCounts checks the listed tracks (subset semantics).
func assertTrackCounts(result *Result, a Assertion) error {
	var mismatches []string
	for _, track := range slices.Sorted(maps.Keys(a.Tracks)) {
		if got := result.Tracks[track]; got != a.Tracks[track] {
			mismatches = append(mismatches, fmt.Sprintf("track %d: want %d, got %d", track, a.Tracks[track], got))
		}
	}
	if len(mismatches) == 0 {
		return nil
	}
	return &AssertionError{
		Type:     AssertTrackCounts,
		Expected: fmt.Sprintf("track counts %v", a.Tracks),
		Actual:   strings.Join(mismatches, "; "),
	}
}

// assertTargetNotCalled checks that no target.call record exists for the
// step's invocation, or for any invocation of Operation.
func assertTargetNotCalled(result *Result, a Assertion) error {
	var scope []TraceEvent
	if a.Step != nil {
		events, err := stepEvents(result, a)
		if err != nil {
			return err
		}
		scope = events
	} else {
		for _, e := range result.Trace {
			if e.Operation == a.Operation {
				scope = append(scope, e)
			}
		}
	}

	for _, e := range scope {
		if e.Phase == ir.PhaseTarget {
			return &AssertionError{
				Type:     AssertTargetNotCalled,
				Expected: "no target.call record",
				Actual:   fmt.Sprintf("target called at seq %d (%s)", e.Seq, e.InvocationID),
				Trace:    scope,
			}
		}
	}
	return nil
}

func stepEvents(result *Result, a Assertion) ([]TraceEvent, error) {
	if a.Step == nil || *a.Step < 0 || *a.Step >= len(result.Steps) {
		return nil, fmt.Errorf("%s: step out of range", a.Type)
	}
	return result.EventsFor(result.Steps[*a.Step].InvocationID), nil
}

// matches applies the operation, phase and advice filters. Empty filters
// match everything.
func (a Assertion) matches(e TraceEvent) bool {
	if a.Operation != "" && e.Operation != a.Operation {
		return false
	}
	if a.Phase != "" && e.Phase != a.Phase {
		return false
	}
	if a.Advice != "" && payloadString(e.Payload, "advice") != a.Advice {
		return false
	}
	return true
}

func (a Assertion) describe() string {
	var parts []string
	if a.Operation != "" {
		parts = append(parts, "operation "+a.Operation)
	}
	if a.Phase != "" {
		parts = append(parts, "phase "+string(a.Phase))
	}
	if a.Advice != "" {
		parts = append(parts, "advice "+a.Advice)
	}
	return strings.Join(parts, ", ")
}

func payloadString(p ir.Object, key string) string {
	if s, ok := p[key].(ir.String); ok {
		return string(s)
	}
	return ""
}

// valuesMatch compares an expected value with an actual one. Numbers
// compare by value across Int and Float.
func valuesMatch(want, got ir.Value) bool {
	if wf, ok := ir.AsFloat(want); ok {
		gf, ok := ir.AsFloat(got)
		return ok && wf == gf
	}
	return ir.Equal(want, got)
}

func render(v ir.Value) string {
	if v == nil {
		return "nil"
	}
	b, err := ir.MarshalCanonical(v)
	if err != nil {
		return ir.TypeName(v)
	}
	return string(b)
}
