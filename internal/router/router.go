package router

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rickgao/wsfeed/internal/clock"
	"github.com/rickgao/wsfeed/internal/event"
)

// Router decides, per event, between immediate delivery and the coalescing
// buffer. It owns the per-type emission timestamps and the buffer; both are
// only touched under mu, so the inbound path and the flush tick never race.
type Router struct {
	cfg         RouterConfig
	clock       clock.Clock
	out         Emitter
	logger      *slog.Logger
	minInterval time.Duration

	mu       sync.Mutex
	queue    *CoalescingBuffer    // nil until the first normal event
	lastEmit map[string]time.Time // eventType -> last emission

	critical  atomic.Int64
	immediate atomic.Int64
	queued    atomic.Int64
	coalesced atomic.Int64
	flushed   atomic.Int64
}

// NewRouter creates a Router that emits into out.
func NewRouter(cfg RouterConfig, clk clock.Clock, out Emitter, logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	if clk == nil {
		clk = clock.Real{}
	}

	return &Router{
		cfg:         cfg,
		clock:       clk,
		out:         out,
		logger:      logger,
		minInterval: cfg.MinInterval(),
	}
}

// Route delivers ev to subscribers of eventType, or buffers it if eventType
// was emitted less than the minimum interval ago. Priority comes from the
// payload's own type, so the catch-all "message" mirror inherits it.
func (r *Router) Route(eventType string, ev event.Event) Decision {
	if Classify(ev.Type) == event.PriorityCritical {
		r.critical.Add(1)
		r.out.Emit(eventType, ev)
		return Emitted
	}

	r.mu.Lock()
	r.ensureLocked()

	now := r.clock.Now()
	last, seen := r.lastEmit[eventType]
	pending := r.queue.has(eventType, ev.Type)

	// A pending entry for the same key must absorb this one, otherwise the
	// next flush would deliver older data after newer.
	if !pending && (!seen || now.Sub(last) >= r.minInterval) {
		r.lastEmit[eventType] = now
		r.mu.Unlock()

		r.immediate.Add(1)
		r.out.Emit(eventType, ev)
		return Emitted
	}

	replaced := r.queue.Put(QueuedMessage{
		EventType:  eventType,
		Event:      ev,
		DedupeKey:  ev.Type,
		EnqueuedAt: now,
	})
	r.mu.Unlock()

	if replaced {
		r.coalesced.Add(1)
		return Coalesced
	}
	r.queued.Add(1)
	return Queued
}

// Flush drains the buffer and emits every entry in insertion order, stamping
// each event type as emitted now. Returns the number of entries flushed.
func (r *Router) Flush() int {
	r.mu.Lock()
	if r.queue == nil {
		r.mu.Unlock()
		return 0
	}
	drained := r.queue.Drain()
	if len(drained) == 0 {
		r.mu.Unlock()
		return 0
	}
	now := r.clock.Now()
	for _, msg := range drained {
		r.lastEmit[msg.EventType] = now
	}
	r.mu.Unlock()

	for _, msg := range drained {
		r.out.Emit(msg.EventType, msg.Event)
	}

	r.flushed.Add(int64(len(drained)))
	r.logger.Debug("flushed throttled events", "count", len(drained))
	return len(drained)
}

// Reset discards the buffer and the emission timestamps together.
func (r *Router) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.queue != nil && r.queue.Len() > 0 {
		r.logger.Warn("discarding throttled events", "count", r.queue.Len())
	}
	r.queue = nil
	r.lastEmit = nil
}

// Pending returns the number of buffered entries.
func (r *Router) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.queue == nil {
		return 0
	}
	return r.queue.Len()
}

// Stats returns current statistics.
func (r *Router) Stats() RouterStats {
	s := RouterStats{
		Critical:  r.critical.Load(),
		Immediate: r.immediate.Load(),
		Queued:    r.queued.Load(),
		Coalesced: r.coalesced.Load(),
		Flushed:   r.flushed.Load(),
	}

	r.mu.Lock()
	if r.queue != nil {
		s.Buffer = r.queue.Stats()
	}
	r.mu.Unlock()
	return s
}

// ensureLocked creates the buffer and the timestamp map together.
func (r *Router) ensureLocked() {
	if r.queue != nil {
		return
	}
	capacity := r.cfg.QueueCapacity
	if capacity < 1 {
		capacity = DefaultRouterConfig().QueueCapacity
	}
	r.queue = NewCoalescingBuffer(capacity)
	r.lastEmit = make(map[string]time.Time)
}
