package engine

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

// IDGenerator produces invocation IDs.
// Implemented by UUIDv7Generator (production), SequentialGenerator and
// FixedGenerator (tests and golden traces).
type IDGenerator interface {
	Generate() string
}

// UUIDv7Generator generates time-sortable UUIDv7 invocation IDs.
//
// UUIDv7 embeds a timestamp in the most significant bits, so IDs sort by
// creation time, which keeps event log listings readable.
//
// Thread-safety: UUIDv7Generator is stateless and safe for concurrent use.
type UUIDv7Generator struct{}

// Generate creates a new UUIDv7 as a hyphenated string.
// Panics if UUID generation fails (should never happen in practice).
func (UUIDv7Generator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}

// SequentialGenerator returns "<prefix>-1", "<prefix>-2", ...
// Safe for concurrent use.
type SequentialGenerator struct {
	prefix string
	n      atomic.Int64
}

// NewSequentialGenerator creates a generator with the given prefix.
func NewSequentialGenerator(prefix string) *SequentialGenerator {
	return &SequentialGenerator{prefix: prefix}
}

// Generate returns the next ID.
func (g *SequentialGenerator) Generate() string {
	return fmt.Sprintf("%s-%d", g.prefix, g.n.Add(1))
}

// FixedGenerator returns predetermined IDs in order.
//
// Panics once all IDs are consumed, which catches a test that dispatched
// more calls than it expected.
type FixedGenerator struct {
	mu  sync.Mutex
	ids []string
	idx int
}

// NewFixedGenerator creates a generator that returns ids in order.
func NewFixedGenerator(ids ...string) *FixedGenerator {
	return &FixedGenerator{ids: ids}
}

// Generate returns the next predetermined ID.
func (g *FixedGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.idx >= len(g.ids) {
		panic("FixedGenerator: all IDs exhausted")
	}
	id := g.ids[g.idx]
	g.idx++
	return id
}
