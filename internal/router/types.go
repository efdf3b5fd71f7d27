package router

import (
	"time"

	"github.com/rickgao/wsfeed/internal/event"
)

// RouterConfig holds configuration for the Router.
type RouterConfig struct {
	// MaxMessagesPerSecond caps immediate emissions per event type.
	// Zero or negative disables throttling.
	MaxMessagesPerSecond int // Default: 10

	// QueueCapacity is the initial slot count of the coalescing buffer.
	QueueCapacity int // Default: 64
}

// DefaultRouterConfig returns default configuration.
func DefaultRouterConfig() RouterConfig {
	return RouterConfig{
		MaxMessagesPerSecond: 10,
		QueueCapacity:        64,
	}
}

// MinInterval is the minimum spacing between two immediate emissions of the
// same event type.
func (c RouterConfig) MinInterval() time.Duration {
	if c.MaxMessagesPerSecond <= 0 {
		return 0
	}
	return time.Second / time.Duration(c.MaxMessagesPerSecond)
}

// Emitter delivers an event to subscribers of eventType.
type Emitter interface {
	Emit(eventType string, ev event.Event) int
}

// Decision records what Route did with an event.
type Decision int

const (
	Emitted   Decision = iota // Delivered immediately
	Queued                    // Appended to the coalescing buffer
	Coalesced                 // Replaced a pending entry
)

func (d Decision) String() string {
	switch d {
	case Emitted:
		return "emitted"
	case Queued:
		return "queued"
	case Coalesced:
		return "coalesced"
	default:
		return "unknown"
	}
}

// RouterStats contains runtime statistics.
type RouterStats struct {
	Critical  int64
	Immediate int64
	Queued    int64
	Coalesced int64
	Flushed   int64
	Buffer    BufferStats
}

// criticalTypes are the connection-lifecycle types that bypass throttling.
var criticalTypes = map[string]struct{}{
	event.TypeOpen:  {},
	event.TypeClose: {},
	event.TypeError: {},
}

// Classify maps an event type to its delivery priority.
func Classify(eventType string) event.Priority {
	if _, ok := criticalTypes[eventType]; ok {
		return event.PriorityCritical
	}
	return event.PriorityNormal
}
