package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/roach88/weave/internal/ir"
)

// Scenario defines a conformance test scenario.
// A scenario runs a list of calls against the demo engine and asserts on
// the outcomes and on the resulting event trace.
type Scenario struct {
	// Name uniquely identifies this scenario. Used as the golden file name.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Aspects lists CUE files whose aspect declarations replace the
	// embedded defaults. Paths are relative to the scenario file.
	Aspects []string `yaml:"aspects,omitempty"`

	// Policy sets the engine-wide failure policy. Empty means propagate.
	Policy ir.FailurePolicy `yaml:"policy,omitempty"`

	// MaxDepth overrides the engine's nesting limit when positive.
	MaxDepth int `yaml:"max_depth,omitempty"`

	// Setup contains calls made before the flow. They must succeed.
	Setup []Step `yaml:"setup,omitempty"`

	// Flow contains the calls under test. Each may carry an expect clause.
	Flow []Step `yaml:"flow"`

	// Assertions validate the final trace and track counts.
	Assertions []Assertion `yaml:"assertions"`
}

// Step is one call of an operation.
type Step struct {
	// Invoke is the fully qualified operation name (e.g. "calc.div").
	Invoke string `yaml:"invoke"`

	// Args are the positional arguments. YAML integers become integer
	// values and YAML floats become floats.
	Args []any `yaml:"args,omitempty"`

	// Expect specifies the expected outcome. If nil the step must
	// succeed.
	Expect *Expect `yaml:"expect,omitempty"`
}

// Expect specifies the expected outcome of a flow step.
type Expect struct {
	// Outcome is success, failure, suppressed or rejected.
	Outcome string `yaml:"outcome"`

	// Result is compared with the returned value when set. Numbers
	// compare by value, so 2 matches 2.0.
	Result any `yaml:"result,omitempty"`

	// Error is compared with the classified failure when set.
	Error *ExpectedError `yaml:"error,omitempty"`
}

// ExpectedError is a Failure(kind, message) to match. An empty message
// matches any message.
type ExpectedError struct {
	Kind    string `yaml:"kind"`
	Message string `yaml:"message,omitempty"`
}

// Assertion validates the trace or the final track counts.
type Assertion struct {
	// Type specifies the assertion type:
	// - "phase_order": the phases of one flow step, exactly and in order
	// - "trace_contains": some record matches operation, phase and advice
	// - "trace_count": exactly N records match operation, phase and advice
	// - "track_counts": the track counter holds the given counts
	// - "target_not_called": no target.call record for the step or operation
	Type string `yaml:"type"`

	// Step is a zero-based flow step index (phase_order, target_not_called).
	Step *int `yaml:"step,omitempty"`

	// Operation filters records by operation name.
	Operation string `yaml:"operation,omitempty"`

	// Phase filters records by phase (trace_contains, trace_count).
	Phase ir.Phase `yaml:"phase,omitempty"`

	// Advice filters records by the advice name in their payload.
	Advice string `yaml:"advice,omitempty"`

	// Phases is the expected phase list (phase_order).
	Phases []ir.Phase `yaml:"phases,omitempty"`

	// Count is the expected number of matching records (trace_count).
	Count int `yaml:"count,omitempty"`

	// Tracks maps track number to expected count (track_counts).
	// Subset match - unlisted tracks are not checked.
	Tracks map[int]int `yaml:"tracks,omitempty"`
}

// Assertion type constants.
const (
	AssertPhaseOrder      = "phase_order"
	AssertTraceContains   = "trace_contains"
	AssertTraceCount      = "trace_count"
	AssertTrackCounts     = "track_counts"
	AssertTargetNotCalled = "target_not_called"
)

// LoadScenario reads and parses a scenario YAML file. Aspect paths are
// resolved relative to the file's directory.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	return LoadScenarioWithBasePath(path, filepath.Dir(path))
}

// LoadScenarioWithBasePath reads and parses a scenario YAML file,
// resolving aspect paths relative to the provided base path.
func LoadScenarioWithBasePath(path, basePath string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	scenario, err := ParseScenario(data)
	if err != nil {
		return nil, err
	}

	for i, p := range scenario.Aspects {
		if !filepath.IsAbs(p) && basePath != "" {
			scenario.Aspects[i] = filepath.Join(basePath, p)
		}
	}
	return scenario, nil
}

// ParseScenario parses and validates scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	// Strict field validation catches typos like "assertion:" vs "assertions:"
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks required fields and assertion shapes.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if len(s.Flow) == 0 {
		return fmt.Errorf("flow must contain at least one step")
	}
	if !s.Policy.Valid() {
		return fmt.Errorf("invalid policy %q", s.Policy)
	}
	if s.MaxDepth < 0 {
		return fmt.Errorf("max_depth must be non-negative")
	}

	for i, step := range s.Setup {
		if step.Invoke == "" {
			return fmt.Errorf("setup[%d]: invoke is required", i)
		}
		if step.Expect != nil {
			return fmt.Errorf("setup[%d]: setup steps cannot carry expect", i)
		}
	}
	for i, step := range s.Flow {
		if step.Invoke == "" {
			return fmt.Errorf("flow[%d]: invoke is required", i)
		}
		if err := validateExpect(step.Expect, i); err != nil {
			return err
		}
	}
	for i, a := range s.Assertions {
		if err := validateAssertion(a, i, len(s.Flow)); err != nil {
			return err
		}
	}
	return nil
}

func validateExpect(e *Expect, index int) error {
	if e == nil {
		return nil
	}
	switch e.Outcome {
	case OutcomeSuccess:
		if e.Error != nil {
			return fmt.Errorf("flow[%d]: a success expectation cannot carry error", index)
		}
	case OutcomeFailure, OutcomeSuppressed, OutcomeRejected:
		if e.Result != nil {
			return fmt.Errorf("flow[%d]: only a success expectation can carry result", index)
		}
	default:
		return fmt.Errorf("flow[%d]: unknown outcome %q", index, e.Outcome)
	}
	return nil
}

func validateAssertion(a Assertion, index, flowLen int) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}
	if a.Step != nil && (*a.Step < 0 || *a.Step >= flowLen) {
		return fmt.Errorf("assertions[%d]: step %d out of range (flow has %d steps)", index, *a.Step, flowLen)
	}

	switch a.Type {
	case AssertPhaseOrder:
		if a.Step == nil {
			return fmt.Errorf("assertions[%d]: step is required for phase_order", index)
		}
		if len(a.Phases) == 0 {
			return fmt.Errorf("assertions[%d]: phases list is required for phase_order", index)
		}
	case AssertTraceContains:
		if a.Operation == "" && a.Phase == "" && a.Advice == "" {
			return fmt.Errorf("assertions[%d]: trace_contains needs operation, phase or advice", index)
		}
	case AssertTraceCount:
		if a.Operation == "" && a.Phase == "" && a.Advice == "" {
			return fmt.Errorf("assertions[%d]: trace_count needs operation, phase or advice", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for trace_count", index)
		}
	case AssertTrackCounts:
		if len(a.Tracks) == 0 {
			return fmt.Errorf("assertions[%d]: tracks is required for track_counts", index)
		}
	case AssertTargetNotCalled:
		if a.Step == nil && a.Operation == "" {
			return fmt.Errorf("assertions[%d]: target_not_called needs step or operation", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
