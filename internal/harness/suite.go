package harness

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

// SuiteResult summarizes a directory of scenarios.
type SuiteResult struct {
	Total    int               `json:"total"`
	Passed   int               `json:"passed"`
	Failed   int               `json:"failed"`
	Failures []ScenarioFailure `json:"failures,omitempty"`
}

// ScenarioFailure represents a scenario that failed to load, run or pass.
type ScenarioFailure struct {
	Scenario string   `json:"scenario,omitempty"`
	Path     string   `json:"path"`
	Errors   []string `json:"errors"`
}

// FindScenarios returns the .yaml and .yml files under dir, sorted.
func FindScenarios(dir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		switch strings.ToLower(filepath.Ext(path)) {
		case ".yaml", ".yml":
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", dir, err)
	}
	slices.Sort(files)
	return files, nil
}

// RunSuite loads and runs every scenario under dir.
//
// A scenario that fails to load or run counts as failed; the suite keeps
// going. The error return is reserved for an unreadable directory.
func RunSuite(ctx context.Context, dir string) (*SuiteResult, error) {
	paths, err := FindScenarios(dir)
	if err != nil {
		return nil, err
	}
	return RunFiles(ctx, paths), nil
}

// RunFiles runs the scenario files at paths, in order.
func RunFiles(ctx context.Context, paths []string) *SuiteResult {
	result := &SuiteResult{}
	for _, path := range paths {
		result.Total++

		scenario, err := LoadScenario(path)
		if err != nil {
			result.fail(ScenarioFailure{Path: path, Errors: []string{fmt.Sprintf("failed to load scenario: %v", err)}})
			continue
		}

		run, err := RunContext(ctx, scenario)
		if err != nil {
			result.fail(ScenarioFailure{Scenario: scenario.Name, Path: path, Errors: []string{fmt.Sprintf("scenario execution failed: %v", err)}})
			continue
		}

		if !run.Pass {
			result.fail(ScenarioFailure{Scenario: scenario.Name, Path: path, Errors: run.Errors})
			continue
		}

		result.Passed++
	}
	return result
}

func (r *SuiteResult) fail(f ScenarioFailure) {
	r.Failed++
	r.Failures = append(r.Failures, f)
}
