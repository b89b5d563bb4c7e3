package testutil

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDeterministicClock_StartsAtEpoch(t *testing.T) {
	clock := NewDeterministicClock()
	assert.Equal(t, Epoch, clock.Now())
	assert.Equal(t, int64(1), clock.Readings())
}

func TestDeterministicClock_AdvancesOneMillisecond(t *testing.T) {
	clock := NewDeterministicClock()

	first := clock.Now()
	second := clock.Now()
	third := clock.Now()

	assert.Equal(t, time.Millisecond, second.Sub(first))
	assert.Equal(t, time.Millisecond, third.Sub(second))
}

func TestDeterministicClock_Reset(t *testing.T) {
	clock := NewDeterministicClock()
	clock.Now()
	clock.Now()

	clock.Reset()

	assert.Equal(t, int64(0), clock.Readings())
	assert.Equal(t, Epoch, clock.Now())
}

func TestDeterministicClock_Concurrent(t *testing.T) {
	clock := NewDeterministicClock()

	var wg sync.WaitGroup
	seen := make(chan time.Time, 1000)
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 100 {
				seen <- clock.Now()
			}
		}()
	}
	wg.Wait()
	close(seen)

	unique := make(map[time.Time]bool)
	for ts := range seen {
		unique[ts] = true
	}
	assert.Len(t, unique, 1000, "every reading must be distinct")
	assert.Equal(t, int64(1000), clock.Readings())
}
