package dispatch

import (
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/rickgao/wsfeed/internal/event"
)

// Handler receives a delivered event.
type Handler func(event.Event)

// subscription represents a registered handler.
type subscription struct {
	id        uuid.UUID
	eventType string
	handler   Handler
}

// Stats contains dispatcher counters.
type Stats struct {
	Subscriptions int
	Delivered     int64
	Panics        int64
}

// Dispatcher maps event types to handlers and delivers events synchronously
// on the caller's goroutine.
type Dispatcher struct {
	logger *slog.Logger

	mu   sync.RWMutex
	subs map[string]map[uuid.UUID]subscription // eventType -> id -> subscription

	delivered atomic.Int64
	panics    atomic.Int64
}

// New creates an empty Dispatcher.
func New(logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		logger: logger,
		subs:   make(map[string]map[uuid.UUID]subscription),
	}
}

// Subscribe registers handler for eventType and returns a function that
// removes it. The returned function is safe to call more than once.
func (d *Dispatcher) Subscribe(eventType string, handler Handler) func() {
	id := d.SubscribeID(eventType, handler)
	var once sync.Once
	return func() {
		once.Do(func() { d.Unsubscribe(id) })
	}
}

// SubscribeID registers handler and returns its subscription ID for use with
// Unsubscribe.
func (d *Dispatcher) SubscribeID(eventType string, handler Handler) uuid.UUID {
	sub := subscription{
		id:        uuid.New(),
		eventType: eventType,
		handler:   handler,
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	byID, ok := d.subs[eventType]
	if !ok {
		byID = make(map[uuid.UUID]subscription)
		d.subs[eventType] = byID
	}
	byID[sub.id] = sub
	return sub.id
}

// Unsubscribe removes a subscription by ID. Returns true if it was found.
func (d *Dispatcher) Unsubscribe(id uuid.UUID) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	for eventType, byID := range d.subs {
		if _, ok := byID[id]; !ok {
			continue
		}
		delete(byID, id)
		if len(byID) == 0 {
			delete(d.subs, eventType)
		}
		return true
	}
	return false
}

// Emit delivers ev to every handler registered for eventType and returns the
// number of handlers that completed without panicking. The handler set is
// snapshotted first, so handlers may subscribe or unsubscribe freely.
func (d *Dispatcher) Emit(eventType string, ev event.Event) int {
	d.mu.RLock()
	byID := d.subs[eventType]
	handlers := make([]subscription, 0, len(byID))
	for _, sub := range byID {
		handlers = append(handlers, sub)
	}
	d.mu.RUnlock()

	ok := 0
	for _, sub := range handlers {
		if d.safeCall(sub, ev) {
			ok++
		}
	}
	return ok
}

// Stats returns current counters.
func (d *Dispatcher) Stats() Stats {
	d.mu.RLock()
	count := 0
	for _, byID := range d.subs {
		count += len(byID)
	}
	d.mu.RUnlock()

	return Stats{
		Subscriptions: count,
		Delivered:     d.delivered.Load(),
		Panics:        d.panics.Load(),
	}
}

// safeCall invokes a handler and recovers from any panic so one misbehaving
// consumer cannot block delivery to the others.
func (d *Dispatcher) safeCall(sub subscription, ev event.Event) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			d.panics.Add(1)
			d.logger.Error("event handler panicked",
				"event", sub.eventType,
				"subscription", sub.id,
				"panic", fmt.Sprint(r),
				"stack", string(debug.Stack()),
			)
			ok = false
		}
	}()

	sub.handler(ev)
	d.delivered.Add(1)
	return true
}
