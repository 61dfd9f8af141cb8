// Package testutil provides deterministic stand-ins for the random
// and time-dependent collaborators used in tests.
package testutil

import (
	"sync"
	"time"
)

// Clock hands out strictly increasing timestamps for tests.
//
// Each call to Now advances the clock by a fixed step, so records
// created in sequence get distinct, ordered creation times without
// wall-clock races.
//
// Thread-safety: all methods are safe for concurrent use.
type Clock struct {
	mu   sync.Mutex
	at   time.Time
	step time.Duration
}

// NewClock creates a clock starting at base, advancing by step on
// every call to Now.
func NewClock(base time.Time, step time.Duration) *Clock {
	return &Clock{at: base, step: step}
}

// Now returns the current time and advances the clock.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.at
	c.at = c.at.Add(c.step)
	return now
}

// Peek returns the time the next Now call will report.
func (c *Clock) Peek() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.at
}
