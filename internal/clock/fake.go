package clock

import (
	"sort"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// fakeBackend is the part of *clockwork.FakeClock the Fake drives.
type fakeBackend interface {
	Now() time.Time
	Advance(d time.Duration)
	AfterFunc(d time.Duration, f func()) clockwork.Timer
}

// Fake is a manually advanced Clock on top of a clockwork fake clock.
//
// clockwork fires AfterFunc callbacks on fresh goroutines. Fake only lets
// clockwork signal expiry and then runs the callbacks itself, synchronously
// on the goroutine calling Advance and in deadline order, so a test observes
// every effect of Advance as soon as it returns.
type Fake struct {
	mu      sync.Mutex
	backend fakeBackend
	seq     int
	timers  []*fakeTimer
}

type fakeTimer struct {
	c     *Fake
	when  time.Time
	seq   int
	f     func()
	fired chan struct{} // closed by clockwork at expiry
	inner clockwork.Timer
}

// NewFake returns a Fake clock starting at start. A zero start uses a fixed
// reference time.
func NewFake(start time.Time) *Fake {
	if start.IsZero() {
		start = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	}
	return &Fake{backend: clockwork.NewFakeClockAt(start)}
}

// Now returns the fake current time.
func (c *Fake) Now() time.Time {
	return c.backend.Now()
}

// AfterFunc schedules f to run once the clock has advanced by d.
func (c *Fake) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.seq++
	t := &fakeTimer{
		c:     c,
		when:  c.backend.Now().Add(d),
		seq:   c.seq,
		f:     f,
		fired: make(chan struct{}),
	}
	t.inner = c.backend.AfterFunc(d, func() { close(t.fired) })
	c.timers = append(c.timers, t)
	return t
}

// Stop cancels the timer if its callback has not run yet.
func (t *fakeTimer) Stop() bool {
	t.c.mu.Lock()
	defer t.c.mu.Unlock()

	t.inner.Stop()
	return t.c.removeLocked(t)
}

// Advance moves the clock forward by d, running every callback whose deadline
// is reached. Timers scheduled by callbacks run too if they fall inside the
// window.
func (c *Fake) Advance(d time.Duration) {
	target := c.backend.Now().Add(d)

	for {
		c.mu.Lock()
		next := c.nextDueLocked(target)
		if next == nil {
			c.backend.Advance(max(target.Sub(c.backend.Now()), 0))
			c.mu.Unlock()
			return
		}
		// A zero step still expires clockwork timers due exactly now.
		c.backend.Advance(max(next.when.Sub(c.backend.Now()), 0))
		c.removeLocked(next)
		c.mu.Unlock()

		<-next.fired
		next.f()
	}
}

// Pending returns the remaining delay of every active timer, shortest first.
func (c *Fake) Pending() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.backend.Now()
	out := make([]time.Duration, 0, len(c.timers))
	for _, t := range c.timers {
		out = append(out, t.when.Sub(now))
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (c *Fake) nextDueLocked(target time.Time) *fakeTimer {
	var next *fakeTimer
	for _, t := range c.timers {
		if t.when.After(target) {
			continue
		}
		if next == nil || t.when.Before(next.when) || (t.when.Equal(next.when) && t.seq < next.seq) {
			next = t
		}
	}
	return next
}

func (c *Fake) removeLocked(t *fakeTimer) bool {
	for i, x := range c.timers {
		if x == t {
			c.timers = append(c.timers[:i], c.timers[i+1:]...)
			return true
		}
	}
	return false
}
