package cli

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/roach88/weave/internal/compiler"
	"github.com/roach88/weave/internal/demo"
	"github.com/roach88/weave/internal/engine"
	"github.com/roach88/weave/internal/ir"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid    bool                       `json:"valid"`
	Aspects  int                        `json:"aspects"`
	Files    int                        `json:"files"`
	Errors   []compiler.ValidationError `json:"errors,omitempty"`
	Warnings []compiler.Warning         `json:"warnings,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <aspects-dir>",
		Short: "Validate aspect declarations",
		Long: `Validate CUE aspect declarations against the demo services.

Checks syntax, required fields, pointcut expressions, advice kinds,
failure policies and duplicate IDs, and that every advice names an entry
of the demo advice catalog. Every error is reported, not just the first.

Aspects that match no operation, equal-priority ties and conflicting
failure policies are reported as warnings and do not fail validation.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, aspectsDir string, cmd *cobra.Command) error {
	if err := opts.ensure(cmd); err != nil {
		return err
	}
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(), // Verbose logs go to stderr to avoid corrupting JSON
		Verbose:   opts.Verbose,
	}

	loadResult, loadErrors := LoadAspects(aspectsDir, LoadModeCollectAll)

	// Handle load errors (directory not found, no files, etc.)
	if loadResult == nil && len(loadErrors) > 0 {
		return outputLoadError(formatter, loadErrors[0])
	}

	formatter.VerboseLog("Found %d CUE file(s) in %s", len(loadResult.Files), aspectsDir)

	result := checkAspects(loadResult, loadErrors, opts.Logger)
	if !result.Valid {
		return outputValidationErrors(formatter, result)
	}
	return outputValidateSuccess(formatter, result)
}

// checkAspects runs every check on the loaded aspects and collects the
// findings.
func checkAspects(loaded *LoadResult, loadErrors []error, logger *slog.Logger) ValidationResult {
	result := ValidationResult{
		Aspects: len(loaded.Aspects),
		Files:   len(loaded.Files),
	}

	for _, err := range loadErrors {
		var loadErr *LoadError
		if errors.As(err, &loadErr) {
			result.Errors = append(result.Errors, compiler.ValidationError{
				Field:   "load",
				Message: loadErr.Message,
				Code:    loadErr.Code,
				Line:    loadErr.Line(),
			})
			continue
		}
		result.Errors = append(result.Errors, compiler.ValidationError{
			Field:   "load",
			Message: err.Error(),
			Code:    ErrCodeGeneric,
		})
	}

	result.Errors = append(result.Errors, compiler.Validate(loaded.Aspects)...)

	catalog := demo.DefaultCatalog(logger, demo.NewTrackCounter())
	result.Errors = append(result.Errors, compiler.ValidateAdviceRefs(loaded.Aspects, catalog.Has)...)

	ops, err := demoOperations(logger)
	if err != nil {
		result.Errors = append(result.Errors, compiler.ValidationError{
			Field:   "operations",
			Message: err.Error(),
			Code:    ErrCodeGeneric,
		})
	} else {
		result.Warnings = compiler.AnalyzeAspects(loaded.Aspects, ops)
	}

	result.Valid = len(result.Errors) == 0
	return result
}

// demoOperations returns the operations the demo registers, without any
// rules applied.
func demoOperations(logger *slog.Logger) ([]ir.Operation, error) {
	e := engine.New()
	if err := demo.RegisterServices(e, logger); err != nil {
		return nil, err
	}
	ops := e.Registry().Operations()
	if errs := compiler.Validate(ops); len(errs) > 0 {
		return nil, errs[0]
	}
	return ops, nil
}

// outputValidateSuccess outputs successful validation results.
func outputValidateSuccess(formatter *OutputFormatter, result ValidationResult) error {
	if formatter.Format == "json" {
		return formatter.Success(result)
	}

	w := formatter.Writer
	fmt.Fprintf(w, "✓ All aspects valid (%d aspect(s) in %d file(s))\n", result.Aspects, result.Files)
	writeWarnings(w, result.Warnings)
	return nil
}

// outputLoadError outputs an error that prevented loading altogether.
func outputLoadError(formatter *OutputFormatter, err error) error {
	code, message := ErrCodeGeneric, err.Error()
	var loadErr *LoadError
	if errors.As(err, &loadErr) {
		code, message = loadErr.Code, loadErr.Message
	}
	_ = formatter.Error(code, message, nil)
	// Load errors are command-level errors (exit code 2)
	return NewExitError(ExitCommandError, fmt.Sprintf("%s: %s", code, message))
}

// outputValidationErrors outputs multiple validation errors.
func outputValidationErrors(formatter *OutputFormatter, result ValidationResult) error {
	errs := result.Errors
	exitErr := NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))

	if formatter.Format == "json" {
		if err := formatter.Result(false, result, errs[0].Code, errs[0].Message); err != nil {
			return err
		}
		return exitErr
	}

	w := formatter.Writer
	fmt.Fprintln(w, "✗ Validation failed")
	fmt.Fprintln(w)

	for _, err := range errs {
		if err.Line > 0 {
			fmt.Fprintf(w, "line %d\n", err.Line)
		}
		fmt.Fprintf(w, "  %s: %s: %s\n\n", err.Code, err.Field, err.Message)
	}
	writeWarnings(w, result.Warnings)

	// Validation failures = exit code 1
	return exitErr
}

func writeWarnings(w io.Writer, warnings []compiler.Warning) {
	for _, warn := range warnings {
		fmt.Fprintf(w, "%s: %s\n", warn.Level, warn.Message)
	}
}
