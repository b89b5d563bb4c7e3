package engine

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClock_Next(t *testing.T) {
	c := NewClock()
	assert.Equal(t, int64(0), c.Current())
	assert.Equal(t, int64(1), c.Next())
	assert.Equal(t, int64(2), c.Next())
	assert.Equal(t, int64(2), c.Current())

	resumed := NewClockAt(100)
	assert.Equal(t, int64(101), resumed.Next())
}

func TestClock_ConcurrentUnique(t *testing.T) {
	c := NewClock()
	const goroutines, perGoroutine = 8, 250

	var mu sync.Mutex
	seen := make(map[int64]bool)
	var wg sync.WaitGroup
	for range goroutines {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range perGoroutine {
				seq := c.Next()
				mu.Lock()
				seen[seq] = true
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Len(t, seen, goroutines*perGoroutine)
	assert.Equal(t, int64(goroutines*perGoroutine), c.Current())
}

func TestUUIDv7Generator(t *testing.T) {
	g := UUIDv7Generator{}
	a, b := g.Generate(), g.Generate()
	assert.Len(t, a, 36)
	assert.NotEqual(t, a, b)
}

func TestSequentialGenerator(t *testing.T) {
	g := NewSequentialGenerator("inv")
	assert.Equal(t, "inv-1", g.Generate())
	assert.Equal(t, "inv-2", g.Generate())
}

func TestFixedGenerator(t *testing.T) {
	g := NewFixedGenerator("a", "b")
	require.Equal(t, "a", g.Generate())
	require.Equal(t, "b", g.Generate())
	assert.PanicsWithValue(t, "FixedGenerator: all IDs exhausted", func() { g.Generate() })
}
