package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/weave/internal/demo"
	"github.com/roach88/weave/internal/engine"
	"github.com/roach88/weave/internal/ir"
	"github.com/roach88/weave/internal/store"
)

// EngineFlags are the flags shared by commands that build a demo engine.
// Unset flags fall back to the config file.
type EngineFlags struct {
	Aspects  string
	Policy   string
	MaxDepth int
}

func (f *EngineFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.Aspects, "aspects", "", "directory of CUE aspect files (default: built-in demo aspects)")
	cmd.Flags().StringVar(&f.Policy, "policy", "", "engine failure policy (propagate|suppress)")
	cmd.Flags().IntVar(&f.MaxDepth, "max-depth", 0, "nested dispatch limit (0: engine default)")
}

// resolve merges the flags over cfg.
func (f *EngineFlags) resolve(cfg *Config) (aspectsDir string, policy ir.FailurePolicy, maxDepth int, err error) {
	if cfg == nil {
		cfg = &Config{}
	}

	aspectsDir = cfg.Aspects
	if f.Aspects != "" {
		aspectsDir = f.Aspects
	}

	policy = cfg.FailurePolicy
	if f.Policy != "" {
		policy = ir.FailurePolicy(f.Policy)
	}
	if !policy.Valid() {
		return "", "", 0, fmt.Errorf("invalid policy %q: must be %q or %q", policy, ir.PolicyPropagate, ir.PolicySuppress)
	}

	maxDepth = cfg.MaxDepth
	if f.MaxDepth != 0 {
		maxDepth = f.MaxDepth
	}
	if maxDepth < 0 {
		return "", "", 0, fmt.Errorf("max-depth must be non-negative")
	}
	return aspectsDir, policy, maxDepth, nil
}

// buildDemo creates a demo engine from the resolved flags. extra options
// are applied after the policy and depth options.
func buildDemo(root *RootOptions, f *EngineFlags, extra ...engine.EngineOption) (*demo.Demo, error) {
	aspectsDir, policy, maxDepth, err := f.resolve(root.Config)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "invalid engine flags", err)
	}

	specs, err := resolveAspects(aspectsDir)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load aspects", err)
	}

	var opts []engine.EngineOption
	if policy != "" {
		opts = append(opts, engine.WithFailurePolicy(policy))
	}
	if maxDepth > 0 {
		opts = append(opts, engine.WithMaxDepth(maxDepth))
	}
	opts = append(opts, extra...)

	d, err := demo.New(demo.Config{Logger: root.Logger, Aspects: specs, Options: opts})
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to build engine", err)
	}
	return d, nil
}

// resolveDB picks the database path: the flag, then the config file.
func resolveDB(flag string, cfg *Config) string {
	if flag != "" || cfg == nil {
		return flag
	}
	return cfg.DB
}

// openExistingStore opens an event log that must already exist. Reading
// commands use it so a typo in --db does not create an empty database.
func openExistingStore(path string) (*store.Store, error) {
	if path == "" {
		return nil, NewExitError(ExitCommandError, fmt.Sprintf("%s: --db is required", ErrCodeNotFound))
	}
	if _, err := os.Stat(path); err != nil {
		return nil, WrapExitError(ExitCommandError, fmt.Sprintf("%s: database not found", ErrCodeNotFound), err)
	}
	st, err := store.Open(path)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}
	return st, nil
}
