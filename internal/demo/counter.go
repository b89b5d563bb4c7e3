package demo

import (
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"
)

// TrackCounter counts how often each track was played.
//
// It is owned by the count-track advice; concurrent dispatches of
// cd.playTrack share it, so every access is locked.
type TrackCounter struct {
	mu     sync.Mutex
	counts map[int]int
}

func NewTrackCounter() *TrackCounter {
	return &TrackCounter{counts: make(map[int]int)}
}

// Record increments the count for track and returns the new count.
func (c *TrackCounter) Record(track int) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.counts[track]++
	return c.counts[track]
}

// Count returns how often track was played.
func (c *TrackCounter) Count(track int) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.counts[track]
}

// Snapshot returns a copy of all counts.
func (c *TrackCounter) Snapshot() map[int]int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return maps.Clone(c.counts)
}

func (c *TrackCounter) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	clear(c.counts)
}

// String renders counts in track order, e.g. "1=2 2=1".
func (c *TrackCounter) String() string {
	snap := c.Snapshot()
	tracks := slices.Sorted(maps.Keys(snap))
	parts := make([]string, len(tracks))
	for i, t := range tracks {
		parts[i] = fmt.Sprintf("%d=%d", t, snap[t])
	}
	return strings.Join(parts, " ")
}
