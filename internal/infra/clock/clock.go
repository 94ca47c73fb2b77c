// Package clock abstracts the two time operations the poller depends on so tests can drive
// polling without real delays.
package clock

import (
	"time"

	"github.com/jonboulle/clockwork"
)

// Clock is the subset of clockwork.Clock the poller uses.
type Clock interface {
	Now() time.Time
	// After returns a channel that receives once d has elapsed. If d <= 0 it receives
	// immediately.
	After(d time.Duration) <-chan time.Time
}

var (
	_ Clock = clockwork.NewRealClock()
	_ Clock = (*clockwork.FakeClock)(nil)
	_ Clock = (*SteppingClock)(nil)
)

// Real returns the wall clock.
func Real() Clock { return clockwork.NewRealClock() }

// Fake returns a clock that only moves on Advance.
func Fake(initial time.Time) *clockwork.FakeClock {
	return clockwork.NewFakeClockAt(initial)
}
