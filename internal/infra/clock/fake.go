package clock

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// SteppingClock advances itself by d on every After call and fires immediately. Polling loops
// driven by it run to completion without any coordination from the test, while Now still
// reflects the virtual time that would have elapsed.
type SteppingClock struct {
	mu     sync.Mutex
	fake   *clockwork.FakeClock
	sleeps []time.Duration
}

func Stepping(initial time.Time) *SteppingClock {
	return &SteppingClock{fake: clockwork.NewFakeClockAt(initial)}
}

func (c *SteppingClock) Now() time.Time { return c.fake.Now() }

func (c *SteppingClock) After(d time.Duration) <-chan time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	ch := c.fake.After(d)
	if d > 0 {
		c.sleeps = append(c.sleeps, d)
		c.fake.Advance(d)
	}
	return ch
}

// Sleeps returns the durations requested so far, in call order.
func (c *SteppingClock) Sleeps() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]time.Duration, len(c.sleeps))
	copy(out, c.sleeps)
	return out
}
