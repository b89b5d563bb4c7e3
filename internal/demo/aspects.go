package demo

import (
	_ "embed"
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"

	"github.com/roach88/weave/internal/compiler"
	"github.com/roach88/weave/internal/ir"
)

//go:embed aspects.cue
var defaultAspects string

// DefaultAspects compiles the embedded aspect declarations.
func DefaultAspects() ([]ir.AspectSpec, error) {
	return CompileAspects("aspects.cue", defaultAspects)
}

// CompileAspects compiles CUE source holding an aspect struct and checks
// the result. The first error is returned.
func CompileAspects(filename, src string) ([]ir.AspectSpec, error) {
	v := cuecontext.New().CompileString(src, cue.Filename(filename))
	if err := v.Err(); err != nil {
		return nil, fmt.Errorf("compile %s: %w", filename, err)
	}

	specs, errs := compiler.CompileAspects(v)
	if len(errs) > 0 {
		return nil, errs[0]
	}
	if verrs := compiler.Validate(specs); len(verrs) > 0 {
		return nil, verrs[0]
	}
	return specs, nil
}
