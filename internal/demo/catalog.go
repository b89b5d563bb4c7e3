package demo

import (
	"fmt"
	"maps"
	"slices"

	"github.com/roach88/weave/internal/engine"
	"github.com/roach88/weave/internal/ir"
	"github.com/roach88/weave/internal/pointcut"
)

// Catalog holds named advice that aspect declarations refer to with
// `use`. Names are unique across advice kinds.
type Catalog struct {
	entries map[string]engine.Advice
}

func NewCatalog() *Catalog {
	return &Catalog{entries: make(map[string]engine.Advice)}
}

// Add registers a. Returns an error if the name is empty or taken.
func (c *Catalog) Add(a engine.Advice) error {
	if a.Name == "" {
		return fmt.Errorf("catalog: advice name is empty")
	}
	if _, ok := c.entries[a.Name]; ok {
		return fmt.Errorf("catalog: advice %q already registered", a.Name)
	}
	c.entries[a.Name] = a
	return nil
}

// Lookup returns the advice registered as name if it has the given kind.
func (c *Catalog) Lookup(kind ir.AdviceKind, name string) (engine.Advice, bool) {
	a, ok := c.entries[name]
	if !ok || a.Kind != kind {
		return engine.Advice{}, false
	}
	return a, true
}

// Has reports whether name is registered with the given kind. It has the
// shape of compiler.AdviceLookup.
func (c *Catalog) Has(kind ir.AdviceKind, name string) bool {
	_, ok := c.Lookup(kind, name)
	return ok
}

// Names returns every registered advice name, sorted.
func (c *Catalog) Names() []string {
	return slices.Sorted(maps.Keys(c.entries))
}

// Rule builds an engine rule from an aspect declaration.
func (c *Catalog) Rule(spec ir.AspectSpec) (engine.Rule, error) {
	pred, err := pointcut.Parse(spec.Pointcut)
	if err != nil {
		return engine.Rule{}, fmt.Errorf("aspect %s: %w", spec.ID, err)
	}

	advice := make([]engine.Advice, 0, len(spec.Advice))
	for i, ref := range spec.Advice {
		a, ok := c.Lookup(ref.Kind, ref.Use)
		if !ok {
			return engine.Rule{}, fmt.Errorf("aspect %s: advice[%d]: no %s advice named %q", spec.ID, i, ref.Kind, ref.Use)
		}
		advice = append(advice, a)
	}

	return engine.Rule{
		ID:       spec.ID,
		Pointcut: pred,
		Priority: spec.Priority,
		Policy:   spec.Policy,
		Advice:   advice,
	}, nil
}

// Rules builds one rule per declaration, in declaration order.
func (c *Catalog) Rules(specs []ir.AspectSpec) ([]engine.Rule, error) {
	rules := make([]engine.Rule, 0, len(specs))
	for _, spec := range specs {
		r, err := c.Rule(spec)
		if err != nil {
			return nil, err
		}
		rules = append(rules, r)
	}
	return rules, nil
}
