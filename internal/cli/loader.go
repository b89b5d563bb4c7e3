package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/token"

	"github.com/roach88/weave/internal/compiler"
	"github.com/roach88/weave/internal/demo"
	"github.com/roach88/weave/internal/ir"
)

// LoadMode controls how errors are handled during aspect loading.
type LoadMode int

const (
	// LoadModeFailFast stops on the first error encountered.
	LoadModeFailFast LoadMode = iota
	// LoadModeCollectAll collects all errors before returning.
	LoadModeCollectAll
)

// LoadResult contains the aspects loaded from a directory.
type LoadResult struct {
	Aspects []ir.AspectSpec
	Files   []string // CUE files read, sorted
}

// LoadError represents an error that occurred during aspect loading.
type LoadError struct {
	Code    string
	Message string
	Pos     token.Pos // CUE position if available
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Line returns the source line of the error, or 0.
func (e *LoadError) Line() int {
	if e.Pos.IsValid() {
		return e.Pos.Line()
	}
	return 0
}

// LoadAspects compiles every CUE file under dir. Each file is compiled on
// its own and the aspects are concatenated in file order.
// If mode is LoadModeFailFast, returns on first error.
// If mode is LoadModeCollectAll, collects all errors.
//
// A nil result means the directory itself could not be used.
func LoadAspects(dir string, mode LoadMode) (*LoadResult, []error) {
	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("aspects directory not found: %s", dir)}}
	}
	if err != nil {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("error accessing aspects directory: %v", err)}}
	}
	if !info.IsDir() {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("not a directory: %s", dir)}}
	}

	files, err := FindCUEFiles(dir)
	if err != nil {
		return nil, []error{&LoadError{Code: ErrCodeScanError, Message: fmt.Sprintf("error scanning directory: %v", err)}}
	}
	if len(files) == 0 {
		return nil, []error{&LoadError{Code: ErrCodeNoFiles, Message: fmt.Sprintf("no CUE files found in %s", dir)}}
	}

	ctx := cuecontext.New()
	result := &LoadResult{Files: files}
	var errs []error

	for _, path := range files {
		src, err := os.ReadFile(path)
		if err != nil {
			errs = append(errs, &LoadError{Code: ErrCodeLoadFailed, Message: fmt.Sprintf("reading %s: %v", path, err)})
			if mode == LoadModeFailFast {
				return result, errs
			}
			continue
		}

		value := ctx.CompileBytes(src, cue.Filename(path))
		if err := value.Err(); err != nil {
			errs = append(errs, convertCompileError(err, path))
			if mode == LoadModeFailFast {
				return result, errs
			}
			continue
		}

		specs, compileErrs := compiler.CompileAspects(value)
		for _, ce := range compileErrs {
			errs = append(errs, convertCompileError(ce, path))
			if mode == LoadModeFailFast {
				return result, errs
			}
		}
		result.Aspects = append(result.Aspects, specs...)
	}

	if len(result.Aspects) == 0 && len(errs) == 0 {
		errs = append(errs, &LoadError{Code: ErrCodeGeneric, Message: "no aspects found"})
	}
	return result, errs
}

// FindCUEFiles walks the directory and returns all .cue file paths, sorted.
func FindCUEFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && filepath.Ext(path) == ".cue" {
			files = append(files, path)
		}
		return nil
	})
	slices.Sort(files)
	return files, err
}

// resolveAspects returns the aspects a command should apply: the CUE
// files under dir, or the built-in demo aspects when dir is empty.
// Loading fails fast and the compiled aspects are validated.
func resolveAspects(dir string) ([]ir.AspectSpec, error) {
	if dir == "" {
		return demo.DefaultAspects()
	}

	result, errs := LoadAspects(dir, LoadModeFailFast)
	if len(errs) > 0 {
		return nil, errs[0]
	}
	if verrs := compiler.Validate(result.Aspects); len(verrs) > 0 {
		return nil, verrs[0]
	}
	return result.Aspects, nil
}

// convertCompileError converts a compiler error to a LoadError with position info.
func convertCompileError(err error, path string) *LoadError {
	var compileErr *compiler.CompileError
	if errors.As(err, &compileErr) {
		return &LoadError{
			Code:    MapFieldToErrorCode(compileErr.Field),
			Message: compileErr.Message,
			Pos:     compileErr.Pos,
		}
	}
	return &LoadError{
		Code:    ErrCodeBuildFailed,
		Message: fmt.Sprintf("%s: %v", path, err),
	}
}

// Error code constants - unified across all CLI commands.
const (
	ErrCodeGeneric     = "E001" // Generic/unknown error
	ErrCodeScanError   = "E002" // Directory scan error
	ErrCodeNoFiles     = "E003" // No CUE files found
	ErrCodeLoadFailed  = "E004" // CUE file could not be read
	ErrCodeNotFound    = "E005" // Path not found
	ErrCodeBuildFailed = "E006" // CUE build failed
	ErrCodeWriteFailed = "E007" // File write error
	ErrCodeBadArgs     = "E008" // Invocation arguments malformed
	ErrCodeInvoke      = "E009" // Invocation failed
)

// MapFieldToErrorCode maps a compiler error field to an error code.
func MapFieldToErrorCode(field string) string {
	switch field {
	case "pointcut":
		return compiler.ErrInvalidPointcut
	case "advice":
		return compiler.ErrAspectNoAdvice
	case "advice.kind":
		return compiler.ErrInvalidAdviceKind
	case "advice.use":
		return compiler.ErrAdviceNoUse
	case "policy":
		return compiler.ErrInvalidPolicy
	case "cue":
		return ErrCodeBuildFailed
	default:
		return ErrCodeGeneric
	}
}
