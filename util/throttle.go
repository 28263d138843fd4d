// Package util holds small helpers shared by commands.
package util

import (
	"sync"
	"time"
)

// SkipThrottler lets through at most one event per period and counts the events it skipped.
// It is safe for concurrent use.
type SkipThrottler struct {
	d time.Duration

	mu      sync.Mutex
	last    time.Time
	skipped int
}

func NewSkipThrottler(d time.Duration) *SkipThrottler {
	return &SkipThrottler{d: d}
}

// Ok reports whether an event may proceed now, and the number of events skipped since the last one that did.
func (tt *SkipThrottler) Ok() (bool, int) {
	tt.mu.Lock()
	defer tt.mu.Unlock()

	now := time.Now()
	if !tt.last.IsZero() && now.Before(tt.last.Add(tt.d)) {
		tt.skipped++
		return false, 0
	}
	skipped := tt.skipped
	tt.last, tt.skipped = now, 0
	return true, skipped
}
