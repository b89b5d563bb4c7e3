package compiler

import (
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/weave/internal/ir"
	"github.com/roach88/weave/internal/pointcut"
)

// Warning is a finding from static aspect analysis.
//
// Warnings are not errors: every finding below still yields a well-defined
// dispatch order. They flag declarations whose effect is easy to misread.
type Warning struct {
	Aspects   []string `json:"aspects"`             // aspect IDs involved, in declaration order
	Operation string   `json:"operation,omitempty"` // operation the finding applies to
	Message   string   `json:"message"`             // human-readable description
	Level     string   `json:"level"`               // "warning" or "info"
}

// AnalyzeAspects checks aspect declarations against the operations they
// will be applied to.
//
// Findings:
//  1. An aspect whose pointcut matches no operation (warning)
//  2. Aspects with equal priority matching the same operation; declaration
//     order decides which runs first (info)
//  3. Aspects matching the same operation with different failure policies;
//     the lowest-priority aspect's policy wins (warning)
//
// Aspects whose pointcut does not parse are skipped; Validate reports them.
// Output is ordered by operation name, then by finding.
func AnalyzeAspects(specs []ir.AspectSpec, ops []ir.Operation) []Warning {
	if len(specs) == 0 {
		return []Warning{}
	}

	preds := make([]pointcut.Predicate, len(specs))
	for i, s := range specs {
		if p, err := pointcut.Parse(s.Pointcut); err == nil {
			preds[i] = p
		}
	}

	sorted := slices.Clone(ops)
	slices.SortFunc(sorted, func(a, b ir.Operation) int { return strings.Compare(a.Name, b.Name) })

	matchedAny := make([]bool, len(specs))
	var warnings []Warning

	for _, op := range sorted {
		var matching []int
		for i, p := range preds {
			if p != nil && p.Match(op) {
				matching = append(matching, i)
				matchedAny[i] = true
			}
		}
		warnings = append(warnings, priorityTies(specs, matching, op.Name)...)
		if w, ok := policyConflict(specs, matching, op.Name); ok {
			warnings = append(warnings, w)
		}
	}

	for i, s := range specs {
		if preds[i] != nil && !matchedAny[i] {
			warnings = append(warnings, Warning{
				Aspects: []string{s.ID},
				Message: fmt.Sprintf("aspect %q matches no registered operation (pointcut %s)", s.ID, s.Pointcut),
				Level:   "warning",
			})
		}
	}

	if warnings == nil {
		return []Warning{}
	}
	return warnings
}

// priorityTies groups matching aspects that share a priority.
func priorityTies(specs []ir.AspectSpec, matching []int, op string) []Warning {
	byPriority := make(map[int][]string)
	var priorities []int
	for _, i := range matching {
		p := specs[i].Priority
		if _, ok := byPriority[p]; !ok {
			priorities = append(priorities, p)
		}
		byPriority[p] = append(byPriority[p], specs[i].ID)
	}
	slices.Sort(priorities)

	var out []Warning
	for _, p := range priorities {
		ids := byPriority[p]
		if len(ids) < 2 {
			continue
		}
		out = append(out, Warning{
			Aspects:   ids,
			Operation: op,
			Message: fmt.Sprintf("aspects %s share priority %d on %s; they run in declaration order",
				strings.Join(ids, ", "), p, op),
			Level: "info",
		})
	}
	return out
}

// policyConflict reports matching aspects that disagree on failure policy.
func policyConflict(specs []ir.AspectSpec, matching []int, op string) (Warning, bool) {
	var (
		ids      []string
		policies = make(map[ir.FailurePolicy]bool)
		winner   = -1
	)
	for _, i := range matching {
		if specs[i].Policy == "" {
			continue
		}
		ids = append(ids, specs[i].ID)
		policies[specs[i].Policy] = true
		if winner < 0 || specs[i].Priority < specs[winner].Priority {
			winner = i
		}
	}
	if len(policies) < 2 {
		return Warning{}, false
	}
	return Warning{
		Aspects:   ids,
		Operation: op,
		Message: fmt.Sprintf("aspects %s set conflicting failure policies on %s; %q from %s applies",
			strings.Join(ids, ", "), op, specs[winner].Policy, specs[winner].ID),
		Level: "warning",
	}, true
}
