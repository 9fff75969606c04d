// Package globaltime is the process clock. Code that stamps rows or measures
// runs reads time here so tests can pin it.
package globaltime

import (
	"sync"
	"time"
)

var clock = struct {
	sync.RWMutex
	fixed *time.Time
}{}

// Now returns the current time, or the pinned time during tests.
func Now() time.Time {
	clock.RLock()
	defer clock.RUnlock()
	if clock.fixed != nil {
		return *clock.fixed
	}
	return time.Now()
}

// UTC is Now in UTC. Persisted timestamps go through it.
func UTC() time.Time {
	return Now().UTC()
}

// Since reports elapsed time against the mockable clock.
func Since(t time.Time) time.Duration {
	return Now().Sub(t)
}

// SetMockTime pins the clock. Tests that pin it must ResetTime when done.
func SetMockTime(t time.Time) {
	clock.Lock()
	defer clock.Unlock()
	clock.fixed = &t
}

// ResetTime unpins the clock.
func ResetTime() {
	clock.Lock()
	defer clock.Unlock()
	clock.fixed = nil
}
