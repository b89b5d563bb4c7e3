package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/weave/internal/compiler"
	"github.com/roach88/weave/internal/ir"
)

// CompileOptions holds flags for the compile command.
type CompileOptions struct {
	*RootOptions
	Output string // output file path
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compile <aspects-dir>",
		Short: "Compile CUE aspects to canonical JSON",
		Long: `Compile CUE aspect declarations to canonical JSON.

Pointcuts are stored in their canonical rendering, so two spellings of
the same expression compile to identical output. The output is written
to stdout, or to --output.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors - we handle our own error output
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "output file path")

	return cmd
}

func runCompile(opts *CompileOptions, aspectsDir string, cmd *cobra.Command) error {
	if err := opts.ensure(cmd); err != nil {
		return err
	}
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(), // Verbose logs go to stderr to avoid corrupting JSON
		Verbose:   opts.Verbose,
	}

	// Use shared loader with collect-all mode
	loadResult, loadErrors := LoadAspects(aspectsDir, LoadModeCollectAll)
	if loadResult == nil && len(loadErrors) > 0 {
		return outputLoadError(formatter, loadErrors[0])
	}

	formatter.VerboseLog("Found %d CUE file(s) in %s", len(loadResult.Files), aspectsDir)

	// Structural errors only; catalog references are checked by validate.
	result := ValidationResult{Aspects: len(loadResult.Aspects), Files: len(loadResult.Files)}
	for _, err := range loadErrors {
		result.Errors = append(result.Errors, compiler.ValidationError{Field: "load", Message: err.Error(), Code: ErrCodeGeneric})
	}
	result.Errors = append(result.Errors, compiler.Validate(loadResult.Aspects)...)
	if len(result.Errors) > 0 {
		return outputValidationErrors(formatter, result)
	}

	data, err := CompileCanonical(loadResult.Aspects)
	if err != nil {
		_ = formatter.Error(ErrCodeGeneric, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to encode aspects", err)
	}

	if opts.Output == "" {
		fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return nil
	}

	if err := os.WriteFile(opts.Output, append(data, '\n'), 0644); err != nil {
		_ = formatter.Error(ErrCodeWriteFailed, err.Error(), nil)
		return WrapExitError(ExitCommandError, ErrCodeWriteFailed+": failed to write output", err)
	}
	formatter.VerboseLog("Wrote %d aspect(s) to %s", len(loadResult.Aspects), opts.Output)
	if opts.Format == "json" {
		return formatter.Success(map[string]any{"output": opts.Output, "aspects": len(loadResult.Aspects)})
	}
	fmt.Fprintf(cmd.OutOrStdout(), "✓ Compiled %d aspect(s) to %s\n", len(loadResult.Aspects), opts.Output)
	return nil
}

// CompileCanonical renders aspects as canonical JSON:
// {"aspects":[{"advice":[{"kind":..,"use":..}],"id":..,...}]}.
func CompileCanonical(specs []ir.AspectSpec) ([]byte, error) {
	aspects := make(ir.Array, len(specs))
	for i, s := range specs {
		aspects[i] = aspectObject(s)
	}
	return ir.MarshalCanonical(ir.Object{"aspects": aspects})
}

func aspectObject(s ir.AspectSpec) ir.Object {
	advice := make(ir.Array, len(s.Advice))
	for i, a := range s.Advice {
		advice[i] = ir.Object{
			"kind": ir.String(a.Kind),
			"use":  ir.String(a.Use),
		}
	}

	obj := ir.Object{
		"id":       ir.String(s.ID),
		"pointcut": ir.String(s.Pointcut),
		"priority": ir.Int(s.Priority),
		"advice":   advice,
	}
	if s.Description != "" {
		obj["description"] = ir.String(s.Description)
	}
	if s.Policy != "" {
		obj["policy"] = ir.String(s.Policy)
	}
	return obj
}
