package connection

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rickgao/wsfeed/internal/dispatch"
	"github.com/rickgao/wsfeed/internal/router"
)

// Errors
var (
	ErrNotConnected    = errors.New("not connected")
	ErrStaleConnection = errors.New("connection stale (no pong)")
	ErrAlreadyClosed   = errors.New("already closed")
)

// DefaultPort is the local server port used by DefaultURL.
const DefaultPort = 8765

// DefaultURL returns the push endpoint of a server on localhost.
func DefaultURL(port int) string {
	return fmt.Sprintf("ws://127.0.0.1:%d/api/ws", port)
}

// Keepalive text frames exchanged with the server.
const (
	pingFrame = "ping"
	pongFrame = "pong"
)

// TimestampedMessage wraps raw message data with receive timestamp.
type TimestampedMessage struct {
	Data       []byte    // Raw message bytes from WebSocket
	ReceivedAt time.Time // Local timestamp when ReadMessage() returned
}

// ClientConfig configures a WebSocket client.
type ClientConfig struct {
	URL              string        // WebSocket URL (e.g., ws://127.0.0.1:8765/api/ws)
	Header           http.Header   // Extra handshake headers
	HandshakeTimeout time.Duration // Dial handshake limit
	PingInterval     time.Duration // Control ping period (0 = no heartbeat)
	PingTimeout      time.Duration // Max time without pong before considering connection stale
	WriteTimeout     time.Duration // Write deadline for sends
	BufferSize       int           // Message channel buffer size
}

// DefaultClientConfig returns sensible defaults.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		URL:              DefaultURL(DefaultPort),
		HandshakeTimeout: 10 * time.Second,
		PingInterval:     30 * time.Second,
		PingTimeout:      90 * time.Second,
		WriteTimeout:     5 * time.Second,
		BufferSize:       1000,
	}
}

// DefaultReconnectMaxDelay caps the backoff when no limit is configured.
const DefaultReconnectMaxDelay = 5 * time.Minute

// ManagerConfig configures the Connection Manager.
type ManagerConfig struct {
	URL                  string        // Initial endpoint; changeable with SetURL
	MaxReconnectAttempts int           // Automatic attempts after an unexpected close
	ReconnectBaseDelay   time.Duration // First backoff delay, doubled per attempt
	ReconnectMaxDelay    time.Duration // Backoff ceiling (0 = DefaultReconnectMaxDelay)
	FlushInterval        time.Duration // Period of the throttled-event flush
	MaxMessagesPerSecond int           // Immediate emissions per event type
	Client               ClientConfig  // Template for every socket; URL is overridden
}

// DefaultManagerConfig returns sensible defaults.
func DefaultManagerConfig() ManagerConfig {
	return ManagerConfig{
		URL:                  DefaultURL(DefaultPort),
		MaxReconnectAttempts: 5,
		ReconnectBaseDelay:   1 * time.Second,
		ReconnectMaxDelay:    DefaultReconnectMaxDelay,
		FlushInterval:        100 * time.Millisecond,
		MaxMessagesPerSecond: 10,
		Client:               DefaultClientConfig(),
	}
}

// State is the lifecycle state of the managed connection.
type State int

const (
	Disconnected State = iota
	Connecting
	Connected
	Reconnecting
	ClosedIntentionally
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Reconnecting:
		return "reconnecting"
	case ClosedIntentionally:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Budget tracks automatic reconnection attempts.
type Budget struct {
	Attempts    int
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration // 0 = DefaultReconnectMaxDelay
}

// NextDelay returns the wait before the next attempt: BaseDelay * 2^Attempts,
// saturating at MaxDelay.
func (b Budget) NextDelay() time.Duration {
	limit := b.MaxDelay
	if limit <= 0 {
		limit = DefaultReconnectMaxDelay
	}

	d := b.BaseDelay
	for i := 0; i < b.Attempts; i++ {
		if d > limit/2 {
			return limit
		}
		d *= 2
	}
	return min(d, limit)
}

// Exhausted reports whether no automatic attempt is left.
func (b Budget) Exhausted() bool {
	return b.Attempts >= b.MaxAttempts
}

// ManagerStats provides statistics about the connection manager.
type ManagerStats struct {
	State      State
	URL        string
	Attempts   int
	Received   int64 // Frames read from the socket
	Malformed  int64 // Frames dropped as unparseable
	Keepalives int64 // ping/pong text frames
	Reconnects int64 // Reconnects scheduled
	Router     router.RouterStats
	Dispatcher dispatch.Stats
}
