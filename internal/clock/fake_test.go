package clock

import (
	"testing"
	"time"
)

func TestFake_AdvanceFiresInOrder(t *testing.T) {
	c := NewFake(time.Time{})

	var fired []int
	c.AfterFunc(300*time.Millisecond, func() { fired = append(fired, 3) })
	c.AfterFunc(100*time.Millisecond, func() { fired = append(fired, 1) })
	c.AfterFunc(200*time.Millisecond, func() { fired = append(fired, 2) })

	c.Advance(250 * time.Millisecond)

	if len(fired) != 2 || fired[0] != 1 || fired[1] != 2 {
		t.Fatalf("fired = %v, want [1 2]", fired)
	}
	if got := c.Pending(); len(got) != 1 || got[0] != 50*time.Millisecond {
		t.Errorf("Pending() = %v, want [50ms]", got)
	}
}

func TestFake_StopPreventsFire(t *testing.T) {
	c := NewFake(time.Time{})

	fired := false
	timer := c.AfterFunc(time.Second, func() { fired = true })

	if !timer.Stop() {
		t.Error("Stop() = false, want true for pending timer")
	}
	if timer.Stop() {
		t.Error("second Stop() = true, want false")
	}

	c.Advance(2 * time.Second)
	if fired {
		t.Error("stopped timer fired")
	}
}

func TestFake_RearmingTimerInsideWindow(t *testing.T) {
	c := NewFake(time.Time{})
	start := c.Now()

	var ticks []time.Duration
	var tick func()
	tick = func() {
		ticks = append(ticks, c.Now().Sub(start))
		c.AfterFunc(100*time.Millisecond, tick)
	}
	c.AfterFunc(100*time.Millisecond, tick)

	c.Advance(350 * time.Millisecond)

	want := []time.Duration{100 * time.Millisecond, 200 * time.Millisecond, 300 * time.Millisecond}
	if len(ticks) != len(want) {
		t.Fatalf("ticks = %v, want %v", ticks, want)
	}
	for i := range want {
		if ticks[i] != want[i] {
			t.Errorf("ticks[%d] = %v, want %v", i, ticks[i], want[i])
		}
	}
	if got := c.Now().Sub(start); got != 350*time.Millisecond {
		t.Errorf("Now() advanced %v, want 350ms", got)
	}
}

func TestFake_ZeroDelayFiresOnNextAdvance(t *testing.T) {
	c := NewFake(time.Time{})

	fired := 0
	c.AfterFunc(0, func() { fired++ })
	if fired != 0 {
		t.Fatalf("fired before Advance = %d, want 0", fired)
	}

	c.Advance(0)
	if fired != 1 {
		t.Errorf("fired = %d, want 1", fired)
	}
}

func TestFake_SameDeadlineRunsInScheduleOrder(t *testing.T) {
	c := NewFake(time.Time{})

	var fired []int
	for i := 0; i < 5; i++ {
		c.AfterFunc(time.Second, func() { fired = append(fired, i) })
	}
	c.Advance(time.Second)

	for i, v := range fired {
		if v != i {
			t.Fatalf("fired = %v, want [0 1 2 3 4]", fired)
		}
	}
	if len(fired) != 5 {
		t.Errorf("fired = %v, want 5 callbacks", fired)
	}
}

func TestReal_AfterFunc(t *testing.T) {
	done := make(chan struct{})
	Real{}.AfterFunc(time.Millisecond, func() { close(done) })

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("real timer did not fire")
	}

	stopped := Real{}.AfterFunc(time.Hour, func() { t.Error("stopped timer fired") })
	if !stopped.Stop() {
		t.Error("Stop() = false for pending timer")
	}
}
