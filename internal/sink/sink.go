package sink

import (
	"context"
	"slices"
	"sync"

	"github.com/roach88/weave/internal/engine"
	"github.com/roach88/weave/internal/ir"
)

// Sink is the engine's event sink interface.
type Sink = engine.Sink

// Func adapts a function to Sink.
type Func func(ctx context.Context, rec ir.EventRecord)

// Emit calls f.
func (f Func) Emit(ctx context.Context, rec ir.EventRecord) {
	f(ctx, rec)
}

// Discard drops every record.
var Discard Sink = Func(func(context.Context, ir.EventRecord) {})

type fanout []Sink

func (f fanout) Emit(ctx context.Context, rec ir.EventRecord) {
	for _, s := range f {
		s.Emit(ctx, rec)
	}
}

// Fanout returns a sink that forwards each record to every non-nil sink in
// order. With a single sink it returns that sink.
func Fanout(sinks ...Sink) Sink {
	out := make(fanout, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			out = append(out, s)
		}
	}
	switch len(out) {
	case 0:
		return Discard
	case 1:
		return out[0]
	}
	return out
}

// Memory keeps every record it receives. It is safe for concurrent use
// and is the sink the harness and tests assert against.
type Memory struct {
	mu      sync.Mutex
	records []ir.EventRecord
}

// NewMemory creates an empty memory sink.
func NewMemory() *Memory {
	return &Memory{}
}

// Emit appends rec.
func (m *Memory) Emit(_ context.Context, rec ir.EventRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, rec)
}

// Records returns a copy of all records in arrival order.
func (m *Memory) Records() []ir.EventRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.records)
}

// Len returns the number of records held.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.records)
}

// Reset drops every record.
func (m *Memory) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = nil
}

// ForInvocation returns the records of one invocation.
func (m *Memory) ForInvocation(id string) []ir.EventRecord {
	return m.Filter(func(rec ir.EventRecord) bool { return rec.InvocationID == id })
}

// ForPhase returns the records produced in one phase.
func (m *Memory) ForPhase(phase ir.Phase) []ir.EventRecord {
	return m.Filter(func(rec ir.EventRecord) bool { return rec.Phase == phase })
}

// Filter returns the records keep accepts, in arrival order.
func (m *Memory) Filter(keep func(ir.EventRecord) bool) []ir.EventRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []ir.EventRecord
	for _, rec := range m.records {
		if keep(rec) {
			out = append(out, rec)
		}
	}
	return out
}

// InvocationIDs returns the distinct invocation IDs in first-seen order.
func (m *Memory) InvocationIDs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	seen := make(map[string]bool)
	var ids []string
	for _, rec := range m.records {
		if !seen[rec.InvocationID] {
			seen[rec.InvocationID] = true
			ids = append(ids, rec.InvocationID)
		}
	}
	return ids
}
