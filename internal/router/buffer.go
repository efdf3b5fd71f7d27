package router

import (
	"sync"
	"time"

	"github.com/rickgao/wsfeed/internal/event"
)

// QueuedMessage is a throttled event waiting for the next flush.
type QueuedMessage struct {
	EventType  string      // Type the event is emitted under ("status", "message", ...)
	Event      event.Event // Latest payload for this key
	DedupeKey  string      // The payload's own type
	EnqueuedAt time.Time
}

type queueKey struct {
	eventType string
	dedupeKey string
}

// CoalescingBuffer is a thread-safe FIFO in which a message whose
// (EventType, DedupeKey) is already pending replaces that entry in place.
// Its length is bounded by the number of distinct pending keys.
type CoalescingBuffer struct {
	mu    sync.Mutex
	items []QueuedMessage
	index map[queueKey]int // key -> position in items

	// Stats
	totalReceived  int64
	totalCoalesced int64
	totalDrained   int64
	drainCount     int
}

// NewCoalescingBuffer creates a buffer with room for initialCapacity keys
// before the backing slice grows.
func NewCoalescingBuffer(initialCapacity int) *CoalescingBuffer {
	if initialCapacity < 1 {
		initialCapacity = 1
	}
	return &CoalescingBuffer{
		items: make([]QueuedMessage, 0, initialCapacity),
		index: make(map[queueKey]int, initialCapacity),
	}
}

// Put appends msg, or overwrites the pending entry with the same key while
// keeping its position. Returns true if an entry was replaced.
func (b *CoalescingBuffer) Put(msg QueuedMessage) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.totalReceived++
	key := queueKey{eventType: msg.EventType, dedupeKey: msg.DedupeKey}

	if pos, ok := b.index[key]; ok {
		b.items[pos] = msg
		b.totalCoalesced++
		return true
	}

	b.index[key] = len(b.items)
	b.items = append(b.items, msg)
	return false
}

// has reports whether an entry with this key is pending.
func (b *CoalescingBuffer) has(eventType, dedupeKey string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.index[queueKey{eventType: eventType, dedupeKey: dedupeKey}]
	return ok
}

// Drain swaps out every pending message in insertion order and leaves the
// buffer empty. Returns nil if nothing is pending.
func (b *CoalescingBuffer) Drain() []QueuedMessage {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.items) == 0 {
		return nil
	}

	drained := b.items
	b.items = make([]QueuedMessage, 0, cap(drained))
	clear(b.index)

	b.totalDrained += int64(len(drained))
	b.drainCount++
	return drained
}

// Len returns the number of pending keys.
func (b *CoalescingBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.items)
}

// Stats returns buffer statistics.
func (b *CoalescingBuffer) Stats() BufferStats {
	b.mu.Lock()
	defer b.mu.Unlock()
	return BufferStats{
		Pending:        len(b.items),
		TotalReceived:  b.totalReceived,
		TotalCoalesced: b.totalCoalesced,
		TotalDrained:   b.totalDrained,
		DrainCount:     b.drainCount,
	}
}

// BufferStats contains buffer statistics.
type BufferStats struct {
	Pending        int
	TotalReceived  int64
	TotalCoalesced int64
	TotalDrained   int64
	DrainCount     int
}
