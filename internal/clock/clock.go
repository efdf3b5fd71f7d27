// Package clock abstracts wall time and one-shot timers so the flush
// scheduler and reconnect backoff can be driven deterministically in tests.
// Both implementations sit on github.com/jonboulle/clockwork.
package clock

import (
	"time"

	"github.com/jonboulle/clockwork"
)

// Timer is a pending one-shot callback.
type Timer interface {
	// Stop prevents the timer from firing. It reports whether the call
	// stopped the timer before it fired.
	Stop() bool
}

// Clock provides the current time and schedules callbacks.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

var wall = clockwork.NewRealClock()

// Real is the wall clock.
type Real struct{}

// Now returns the current time.
func (Real) Now() time.Time { return wall.Now() }

// AfterFunc runs f on its own goroutine after d.
func (Real) AfterFunc(d time.Duration, f func()) Timer {
	return wall.AfterFunc(d, f)
}
