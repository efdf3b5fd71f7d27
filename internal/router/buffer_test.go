package router

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rickgao/wsfeed/internal/event"
)

func queued(eventType, payloadType, marker string) QueuedMessage {
	ev := event.Synthetic(payloadType, map[string]any{"marker": marker}, time.Time{})
	return QueuedMessage{EventType: eventType, Event: ev, DedupeKey: payloadType}
}

func marker(t *testing.T, ev event.Event) string {
	t.Helper()
	var body struct {
		Marker string `json:"marker"`
	}
	if err := ev.Decode(&body); err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	return body.Marker
}

func TestCoalescingBuffer_AppendDistinctKeys(t *testing.T) {
	buf := NewCoalescingBuffer(4)

	buf.Put(queued("status", "status", "a"))
	buf.Put(queued("progress", "progress", "b"))
	buf.Put(queued("message", "status", "c"))

	if buf.Len() != 3 {
		t.Errorf("Len() = %d, want 3", buf.Len())
	}

	drained := buf.Drain()
	want := []string{"a", "b", "c"}
	for i, msg := range drained {
		if got := marker(t, msg.Event); got != want[i] {
			t.Errorf("drained[%d] = %q, want %q", i, got, want[i])
		}
	}
}

func TestCoalescingBuffer_LatestWinsInPlace(t *testing.T) {
	buf := NewCoalescingBuffer(4)

	buf.Put(queued("progress", "progress", "p1"))
	buf.Put(queued("status", "status", "s1"))
	if !buf.Put(queued("progress", "progress", "p2")) {
		t.Error("Put() = false for existing key, want true")
	}

	drained := buf.Drain()
	if len(drained) != 2 {
		t.Fatalf("len(drained) = %d, want 2", len(drained))
	}
	if got := marker(t, drained[0].Event); got != "p2" {
		t.Errorf("drained[0] = %q, want %q (same slot, newest data)", got, "p2")
	}
	if got := marker(t, drained[1].Event); got != "s1" {
		t.Errorf("drained[1] = %q, want %q", got, "s1")
	}
}

func TestCoalescingBuffer_DoubleKeying(t *testing.T) {
	buf := NewCoalescingBuffer(4)

	// Same payload type under different emitted types stays separate, and
	// different payload types under "message" stay separate too.
	buf.Put(queued("status", "status", "1"))
	buf.Put(queued("message", "status", "2"))
	buf.Put(queued("message", "progress", "3"))
	buf.Put(queued("message", "status", "4"))

	if buf.Len() != 3 {
		t.Errorf("Len() = %d, want 3", buf.Len())
	}
}

func TestCoalescingBuffer_BurstOccupiesOneSlot(t *testing.T) {
	buf := NewCoalescingBuffer(1)

	for i := 0; i < 1000; i++ {
		buf.Put(queued("progress", "progress", fmt.Sprint(i)))
	}

	if buf.Len() != 1 {
		t.Errorf("Len() = %d, want 1", buf.Len())
	}
	stats := buf.Stats()
	if stats.TotalReceived != 1000 {
		t.Errorf("TotalReceived = %d, want 1000", stats.TotalReceived)
	}
	if stats.TotalCoalesced != 999 {
		t.Errorf("TotalCoalesced = %d, want 999", stats.TotalCoalesced)
	}

	drained := buf.Drain()
	if got := marker(t, drained[0].Event); got != "999" {
		t.Errorf("drained payload = %q, want %q", got, "999")
	}
}

func TestCoalescingBuffer_DrainEmpty(t *testing.T) {
	buf := NewCoalescingBuffer(4)

	if got := buf.Drain(); got != nil {
		t.Errorf("Drain() = %v, want nil", got)
	}

	buf.Put(queued("status", "status", "a"))
	buf.Drain()

	if buf.Len() != 0 {
		t.Errorf("Len() after Drain = %d, want 0", buf.Len())
	}

	// Keys are forgotten after a drain.
	if buf.Put(queued("status", "status", "b")) {
		t.Error("Put() after Drain replaced a stale entry")
	}

	stats := buf.Stats()
	if stats.DrainCount != 1 {
		t.Errorf("DrainCount = %d, want 1", stats.DrainCount)
	}
}

func TestCoalescingBuffer_Concurrent(t *testing.T) {
	buf := NewCoalescingBuffer(8)

	var wg sync.WaitGroup
	for p := 0; p < 4; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := 0; i < 500; i++ {
				buf.Put(queued("progress", fmt.Sprintf("key-%d", i%10), fmt.Sprint(p)))
			}
		}(p)
	}

	total := 0
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

loop:
	for {
		select {
		case <-done:
			break loop
		default:
			total += len(buf.Drain())
		}
	}
	total += len(buf.Drain())

	stats := buf.Stats()
	if stats.TotalReceived != 2000 {
		t.Errorf("TotalReceived = %d, want 2000", stats.TotalReceived)
	}
	if int64(total) != stats.TotalDrained {
		t.Errorf("drained %d, stats say %d", total, stats.TotalDrained)
	}
	if stats.TotalReceived != stats.TotalDrained+stats.TotalCoalesced {
		t.Errorf("received %d != drained %d + coalesced %d",
			stats.TotalReceived, stats.TotalDrained, stats.TotalCoalesced)
	}
}
