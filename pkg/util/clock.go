package util

import (
	"sync"
	"time"
)

type Clock interface {
	After(d time.Duration) <-chan time.Time
	Now() time.Time
}

type RealClock struct{}

func (RealClock) After(d time.Duration) <-chan time.Time { return time.After(d) }
func (RealClock) Now() time.Time                         { return time.Now() }

// ManualClock is a test clock whose After channels fire immediately while
// recording the requested durations. Lets backoff schedules be asserted
// without sleeping in tests.
type ManualClock struct {
	mu     sync.Mutex
	now    time.Time
	Sleeps []time.Duration
}

func NewManualClock(start time.Time) *ManualClock {
	return &ManualClock{now: start}
}

func (c *ManualClock) After(d time.Duration) <-chan time.Time {
	c.mu.Lock()
	c.Sleeps = append(c.Sleeps, d)
	c.now = c.now.Add(d)
	now := c.now
	c.mu.Unlock()

	ch := make(chan time.Time, 1)
	ch <- now
	return ch
}

func (c *ManualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}
