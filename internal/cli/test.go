package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/weave/internal/harness"
)

// TestOptions holds flags for the test command.
type TestOptions struct {
	*RootOptions
	Filter string // scenario filter (glob pattern on the file name)
}

// NewTestCommand creates the test command.
func NewTestCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TestOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "test <scenarios-dir>",
		Short: "Run conformance scenarios",
		Long: `Run YAML conformance scenarios against the demo engine.

Each scenario runs in a fresh engine with a deterministic clock and
sequential invocation IDs, records into an in-memory event log, and checks
its expect clauses and trace assertions.

Exit codes:
  0 - All scenarios passed
  1 - One or more scenarios failed
  2 - Command error (invalid paths, etc.)

Examples:
  weave test ./testdata/scenarios
  weave test ./testdata/scenarios --filter "div*"
  weave test ./testdata/scenarios --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTests(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Filter, "filter", "", "filter scenarios by glob pattern")

	return cmd
}

func runTests(opts *TestOptions, scenariosDir string, cmd *cobra.Command) error {
	if err := opts.ensure(cmd); err != nil {
		return err
	}
	if _, err := os.Stat(scenariosDir); os.IsNotExist(err) {
		return NewExitError(ExitCommandError, fmt.Sprintf("%s: scenarios directory not found: %s", ErrCodeNotFound, scenariosDir))
	}

	paths, err := harness.FindScenarios(scenariosDir)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to find scenarios", err)
	}
	if paths, err = filterScenarios(paths, opts.Filter); err != nil {
		return WrapExitError(ExitCommandError, "invalid filter pattern", err)
	}

	result := harness.RunFiles(commandContext(cmd), paths)

	if opts.Format == "json" {
		formatter := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
		if err := formatter.Result(result.Failed == 0, result, "E_TEST", fmt.Sprintf("%d scenario(s) failed", result.Failed)); err != nil {
			return err
		}
	} else {
		writeTestText(cmd, result)
	}

	if result.Failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d of %d scenario(s) failed", result.Failed, result.Total))
	}
	return nil
}

// filterScenarios keeps paths whose file name, without extension,
// matches pattern.
func filterScenarios(paths []string, pattern string) ([]string, error) {
	if pattern == "" {
		return paths, nil
	}
	var out []string
	for _, p := range paths {
		base := filepath.Base(p)
		name := strings.TrimSuffix(base, filepath.Ext(base))
		matched, err := filepath.Match(pattern, name)
		if err != nil {
			return nil, err
		}
		if matched {
			out = append(out, p)
		}
	}
	return out, nil
}

func writeTestText(cmd *cobra.Command, result *harness.SuiteResult) {
	w := cmd.OutOrStdout()

	if result.Total == 0 {
		fmt.Fprintln(w, "No scenarios found.")
		return
	}

	for _, f := range result.Failures {
		name := f.Scenario
		if name == "" {
			name = filepath.Base(f.Path)
		}
		fmt.Fprintf(w, "✗ %s\n", name)
		for _, e := range f.Errors {
			fmt.Fprintf(w, "  %s\n", e)
		}
	}

	fmt.Fprintln(w)
	if result.Failed == 0 {
		fmt.Fprintf(w, "✓ All %d scenario(s) passed\n", result.Total)
		return
	}
	fmt.Fprintf(w, "%d passed, %d failed, %d total\n", result.Passed, result.Failed, result.Total)
}
