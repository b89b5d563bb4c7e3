package demo

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/roach88/weave/internal/compiler"
	"github.com/roach88/weave/internal/engine"
	"github.com/roach88/weave/internal/ir"
)

// Config configures New.
type Config struct {
	// Logger receives service and advice output. Default: slog.Default().
	Logger *slog.Logger
	// Aspects replaces the embedded declarations when non-nil.
	Aspects []ir.AspectSpec
	// Options are passed to engine.New.
	Options []engine.EngineOption
}

// Demo is an engine with the demo services registered and the aspects
// applied.
type Demo struct {
	Engine  *engine.Engine
	Tracks  *TrackCounter
	Catalog *Catalog
	Aspects []ir.AspectSpec
}

// New builds a demo engine.
func New(cfg Config) (*Demo, error) {
	logger := loggerOr(cfg.Logger)

	specs := cfg.Aspects
	if specs == nil {
		var err error
		if specs, err = DefaultAspects(); err != nil {
			return nil, fmt.Errorf("load default aspects: %w", err)
		}
	}

	tracks := NewTrackCounter()
	catalog := DefaultCatalog(logger, tracks)
	if errs := compiler.ValidateAdviceRefs(specs, catalog.Has); len(errs) > 0 {
		return nil, errs[0]
	}
	rules, err := catalog.Rules(specs)
	if err != nil {
		return nil, err
	}

	eng := engine.New(cfg.Options...)
	if err := RegisterServices(eng, logger); err != nil {
		return nil, fmt.Errorf("register services: %w", err)
	}
	for _, r := range rules {
		eng.AddRule(r)
	}

	slog.Debug("demo ready",
		"operations", eng.Registry().Len(),
		"rules", eng.Rules().Len(),
	)

	return &Demo{
		Engine:  eng,
		Tracks:  tracks,
		Catalog: catalog,
		Aspects: specs,
	}, nil
}

// Step is one call of the bootstrap sequence.
type Step struct {
	Operation string
	Args      ir.Array
}

// Sequence returns the calls `weave run` makes, in order.
func Sequence() []Step {
	return []Step{
		{Operation: OpPerform},
		{Operation: OpShowAdmiration},
		{Operation: OpPlayTrack, Args: ir.Array{ir.Int(1)}},
		{Operation: OpPlayTrack, Args: ir.Array{ir.Int(2)}},
		{Operation: OpPlayTrack, Args: ir.Array{ir.Int(1)}},
		{Operation: OpPlayTrack, Args: ir.Array{ir.Int(2)}},
		{Operation: OpAdd, Args: ir.Array{ir.Float(1), ir.Float(2)}},
		{Operation: OpSub, Args: ir.Array{ir.Float(1), ir.Float(2)}},
		{Operation: OpMul, Args: ir.Array{ir.Float(1), ir.Float(2)}},
		{Operation: OpDiv, Args: ir.Array{ir.Float(1), ir.Float(2)}},
	}
}

// Result is the outcome of one step.
type Result struct {
	Step  Step
	Value ir.Value
	Err   error
}

// Run dispatches Sequence in order. Every step runs even if an earlier
// one fails; the results report each outcome.
func (d *Demo) Run(ctx context.Context) []Result {
	steps := Sequence()
	results := make([]Result, len(steps))
	for i, s := range steps {
		v, err := d.Engine.Invoke(ctx, s.Operation, s.Args...)
		results[i] = Result{Step: s, Value: v, Err: err}
	}
	return results
}
