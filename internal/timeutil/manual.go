package timeutil

import (
	"sort"
	"sync"
	"time"
)

// ManualClock is a deterministic Clock for tests. Callbacks only run inside
// Advance, synchronously on the advancing goroutine and in firing order; a
// timer armed with a non-positive delay fires on the next Advance (including
// Advance(0)), never inside AfterFunc itself.
type ManualClock struct {
	mu      sync.Mutex
	now     time.Time
	pending []*manualTimer
}

func NewManualClock(start time.Time) *ManualClock {
	return &ManualClock{now: start}
}

func (c *ManualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *ManualClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	t := &manualTimer{clock: c, at: c.now.Add(d), f: f}
	c.pending = append(c.pending, t)
	c.mu.Unlock()
	return t
}

// Advance moves the clock forward and fires every timer due at or before the
// new time.
func (c *ManualClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
	c.runDue()
}

func (c *ManualClock) runDue() {
	for {
		c.mu.Lock()
		sort.SliceStable(c.pending, func(i, j int) bool {
			return c.pending[i].at.Before(c.pending[j].at)
		})
		var due *manualTimer
		for i, t := range c.pending {
			if !t.stopped && !t.fired && !t.at.After(c.now) {
				due = t
				t.fired = true
				c.pending = append(c.pending[:i], c.pending[i+1:]...)
				break
			}
		}
		c.mu.Unlock()
		if due == nil {
			return
		}
		due.f()
	}
}

type manualTimer struct {
	clock   *ManualClock
	at      time.Time
	f       func()
	stopped bool
	fired   bool
}

func (t *manualTimer) Stop() bool {
	c := t.clock
	c.mu.Lock()
	defer c.mu.Unlock()
	if t.fired || t.stopped {
		return false
	}
	t.stopped = true
	for i, p := range c.pending {
		if p == t {
			c.pending = append(c.pending[:i], c.pending[i+1:]...)
			break
		}
	}
	return true
}
