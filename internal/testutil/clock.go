package testutil

import (
	"sync"
	"time"
)

// StepClock is a deterministic clock for tests. Every call to Now advances it
// by Step, so successive timestamps are strictly increasing.
type StepClock struct {
	mu   sync.Mutex
	now  time.Time
	Step time.Duration
}

// NewStepClock starts at base and advances one second per call.
func NewStepClock(base time.Time) *StepClock {
	return &StepClock{now: base, Step: time.Second}
}

func (c *StepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(c.Step)
	return c.now
}
