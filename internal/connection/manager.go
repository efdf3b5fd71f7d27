package connection

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/rickgao/wsfeed/internal/clock"
	"github.com/rickgao/wsfeed/internal/dispatch"
	"github.com/rickgao/wsfeed/internal/event"
	"github.com/rickgao/wsfeed/internal/router"
)

// Option configures a Manager.
type Option func(*Manager)

// WithClock sets the clock used for backoff, throttling and flushing.
func WithClock(clk clock.Clock) Option {
	return func(m *Manager) {
		m.clock = clk
	}
}

// WithClientFactory sets how sockets are built.
func WithClientFactory(f ClientFactory) Option {
	return func(m *Manager) {
		m.newClient = f
	}
}

// WithDispatcher shares an existing subscriber registry.
func WithDispatcher(d *dispatch.Dispatcher) Option {
	return func(m *Manager) {
		m.bus = d
	}
}

// Manager owns one logical connection to the push endpoint. It reconnects
// with exponential backoff after unexpected closes, throttles bursty event
// types and fans events out to subscribers.
//
// mu guards the lifecycle fields below it. Subscriber callbacks are never
// invoked while mu is held, so they may call back into the Manager.
type Manager struct {
	cfg       ManagerConfig
	logger    *slog.Logger
	clock     clock.Clock
	newClient ClientFactory

	bus     *dispatch.Dispatcher
	router  *router.Router
	flusher *router.FlushScheduler

	mu          sync.Mutex
	url         string
	state       State
	budget      Budget
	intentional bool
	gen         uint64 // bumped on every dial and teardown; stale callbacks compare against it
	client      Client
	dialCancel  context.CancelFunc
	retryTimer  clock.Timer

	received   atomic.Int64
	malformed  atomic.Int64
	keepalives atomic.Int64
	reconnects atomic.Int64
}

// NewManager creates a Manager in the Disconnected state. Nothing is dialed
// until Connect is called.
func NewManager(cfg ManagerConfig, logger *slog.Logger, opts ...Option) *Manager {
	if logger == nil {
		logger = slog.Default()
	}

	m := &Manager{
		cfg:       cfg,
		logger:    logger,
		clock:     clock.Real{},
		newClient: NewClient,
		url:       cfg.URL,
		state:     Disconnected,
		budget: Budget{
			MaxAttempts: cfg.MaxReconnectAttempts,
			BaseDelay:   cfg.ReconnectBaseDelay,
			MaxDelay:    cfg.ReconnectMaxDelay,
		},
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.bus == nil {
		m.bus = dispatch.New(logger)
	}

	rcfg := router.DefaultRouterConfig()
	rcfg.MaxMessagesPerSecond = cfg.MaxMessagesPerSecond
	m.router = router.NewRouter(rcfg, m.clock, m.bus, logger)
	m.flusher = router.NewFlushScheduler(cfg.FlushInterval, m.clock, m.router.Flush, logger)

	return m
}

// Connect opens the connection unless one is already open or being opened.
// It clears an earlier Disconnect but does not refill the reconnect budget;
// only a successful open does that.
func (m *Manager) Connect() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.intentional = false
	m.connectLocked()
}

// Disconnect closes the connection and suppresses automatic reconnection
// until the next Connect. Pending throttled events are delivered first.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	if m.intentional && m.state == ClosedIntentionally {
		m.mu.Unlock()
		return
	}

	m.intentional = true
	wasConnected := m.state == Connected
	m.gen++
	m.state = ClosedIntentionally

	m.flusher.Stop()
	m.stopRetryLocked()
	if m.dialCancel != nil {
		m.dialCancel()
		m.dialCancel = nil
	}
	c := m.client
	m.client = nil
	m.mu.Unlock()

	// Deliver what is buffered, then drop the buffer and the rate state
	// together.
	m.router.Flush()
	m.router.Reset()

	if c != nil {
		if err := c.Close(); err != nil {
			m.logger.Debug("close socket", "error", err)
		}
	}

	if wasConnected {
		m.router.Route(event.TypeClose, event.Synthetic(event.TypeClose, nil, m.clock.Now()))
	}

	m.logger.Info("disconnected", "url", m.URL())
}

// Send encodes v as JSON and writes it as a text frame. Byte slices and
// json.RawMessage are sent verbatim. When not connected Send is a silent
// no-op.
func (m *Manager) Send(v any) error {
	m.mu.Lock()
	c := m.client
	connected := m.state == Connected
	m.mu.Unlock()

	if !connected || c == nil {
		return nil
	}

	data, err := encodePayload(v)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}

	if err := c.Send(data); err != nil {
		if errors.Is(err, ErrNotConnected) {
			return nil
		}
		return fmt.Errorf("send: %w", err)
	}
	return nil
}

// Ping sends a keepalive text frame. The server answers with "pong".
func (m *Manager) Ping() error {
	return m.Send([]byte(pingFrame))
}

// SetURL changes the endpoint. An open connection is closed and reopened
// against the new URL; otherwise the next attempt uses it.
func (m *Manager) SetURL(url string) {
	m.mu.Lock()
	if m.url == url {
		m.mu.Unlock()
		return
	}
	m.url = url
	reopen := m.state == Connected
	m.mu.Unlock()

	m.logger.Info("endpoint changed", "url", url)

	if reopen {
		m.Disconnect()
		m.Connect()
	}
}

// URL returns the current endpoint.
func (m *Manager) URL() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.url
}

// Subscribe registers h for eventType and returns its disposer.
func (m *Manager) Subscribe(eventType string, h dispatch.Handler) func() {
	return m.bus.Subscribe(eventType, h)
}

// SubscribeID registers h for eventType and returns an ID for Unsubscribe.
func (m *Manager) SubscribeID(eventType string, h dispatch.Handler) uuid.UUID {
	return m.bus.SubscribeID(eventType, h)
}

// Unsubscribe removes a subscription registered with SubscribeID.
func (m *Manager) Unsubscribe(id uuid.UUID) bool {
	return m.bus.Unsubscribe(id)
}

// State returns the current lifecycle state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// IsConnected reports whether the connection is open.
func (m *Manager) IsConnected() bool {
	return m.State() == Connected
}

// Budget returns a snapshot of the reconnect budget.
func (m *Manager) Budget() Budget {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.budget
}

// Exhausted reports whether the manager gave up reconnecting on its own.
func (m *Manager) Exhausted() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state == Disconnected && m.budget.Exhausted()
}

// Pending returns the number of throttled events waiting for a flush.
func (m *Manager) Pending() int {
	return m.router.Pending()
}

// Stats returns current statistics.
func (m *Manager) Stats() ManagerStats {
	m.mu.Lock()
	state, url, attempts := m.state, m.url, m.budget.Attempts
	m.mu.Unlock()

	return ManagerStats{
		State:      state,
		URL:        url,
		Attempts:   attempts,
		Received:   m.received.Load(),
		Malformed:  m.malformed.Load(),
		Keepalives: m.keepalives.Load(),
		Reconnects: m.reconnects.Load(),
		Router:     m.router.Stats(),
		Dispatcher: m.bus.Stats(),
	}
}

// connectLocked starts a dial in the background. Caller holds mu.
func (m *Manager) connectLocked() {
	if m.state == Connected || m.state == Connecting {
		return
	}

	m.stopRetryLocked()
	m.gen++
	gen := m.gen
	m.state = Connecting

	cfg := m.cfg.Client
	cfg.URL = m.url
	connID := uuid.NewString()[:8]
	c := m.newClient(cfg, m.logger.With("conn_id", connID))

	ctx, cancel := context.WithCancel(context.Background())
	m.dialCancel = cancel

	m.logger.Debug("dialing", "url", cfg.URL, "conn_id", connID, "attempt", m.budget.Attempts)

	go m.dial(ctx, gen, c)
}

func (m *Manager) dial(ctx context.Context, gen uint64, c Client) {
	err := c.Connect(ctx)

	m.mu.Lock()
	if gen != m.gen {
		// Disconnect or a newer dial took over.
		m.mu.Unlock()
		c.Close()
		return
	}
	if m.dialCancel != nil {
		m.dialCancel()
		m.dialCancel = nil
	}

	if err != nil {
		m.logger.Warn("connection failed", "url", m.url, "error", err)
		m.dropLocked()
		m.mu.Unlock()

		now := m.clock.Now()
		m.router.Route(event.TypeError, event.Synthetic(event.TypeError, map[string]any{
			"message": "WebSocket connection error",
		}, now))
		m.router.Route(event.TypeClose, event.Synthetic(event.TypeClose, nil, now))
		return
	}

	m.client = c
	m.state = Connected
	m.budget.Attempts = 0
	m.flusher.Start()
	url := m.url
	m.mu.Unlock()

	m.logger.Info("websocket connected", "url", url)
	m.router.Route(event.TypeOpen, event.Synthetic(event.TypeOpen, nil, m.clock.Now()))

	m.pump(gen, c)
}

// pump forwards socket traffic until the socket ends.
func (m *Manager) pump(gen uint64, c Client) {
	msgs := c.Messages()
	errs := c.Errors()

	for {
		select {
		case msg, ok := <-msgs:
			if !ok {
				m.drainErrors(gen, errs)
				m.handleClose(gen, c.Err())
				return
			}
			m.handleMessage(gen, c, msg)

		case err := <-errs:
			m.handleError(gen, err)
		}
	}
}

// drainErrors reports errors raised just before the socket closed, such as a
// stale heartbeat, which the select may not have picked up yet.
func (m *Manager) drainErrors(gen uint64, errs <-chan error) {
	for {
		select {
		case err := <-errs:
			m.handleError(gen, err)
		default:
			return
		}
	}
}

func (m *Manager) current(gen uint64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return gen == m.gen
}

func (m *Manager) handleMessage(gen uint64, c Client, msg TimestampedMessage) {
	m.received.Add(1)
	if !m.current(gen) {
		return
	}

	switch string(bytes.TrimSpace(msg.Data)) {
	case pingFrame:
		m.keepalives.Add(1)
		if err := c.Send([]byte(pongFrame)); err != nil {
			m.logger.Debug("failed to answer ping", "error", err)
		}
		return
	case pongFrame:
		m.keepalives.Add(1)
		return
	}

	ev, err := event.Parse(msg.Data, msg.ReceivedAt)
	if err != nil {
		m.malformed.Add(1)
		m.logger.Warn("dropping malformed message", "error", err, "size", len(msg.Data))
		return
	}

	m.router.Route(ev.Type, ev)
	m.router.Route(event.TypeMessage, ev)
}

func (m *Manager) handleError(gen uint64, err error) {
	if !m.current(gen) {
		return
	}
	m.logger.Warn("connection error", "error", err)
	m.router.Route(event.TypeError, event.Synthetic(event.TypeError, map[string]any{
		"message": "WebSocket connection error",
	}, m.clock.Now()))
}

func (m *Manager) handleClose(gen uint64, cause error) {
	m.mu.Lock()
	if gen != m.gen {
		m.mu.Unlock()
		return
	}
	m.logger.Warn("websocket closed", "url", m.url, "error", cause)
	m.dropLocked()
	m.mu.Unlock()

	m.router.Route(event.TypeClose, event.Synthetic(event.TypeClose, nil, m.clock.Now()))
}

// dropLocked handles the loss of the socket, or a failed dial, and decides
// whether to retry. Caller holds mu.
func (m *Manager) dropLocked() {
	m.flusher.Stop()
	m.client = nil

	if m.intentional {
		m.state = ClosedIntentionally
		return
	}

	if m.budget.Exhausted() {
		m.state = Disconnected
		m.logger.Error("giving up reconnecting",
			"url", m.url,
			"attempts", m.budget.Attempts,
		)
		return
	}

	delay := m.budget.NextDelay()
	m.budget.Attempts++
	m.state = Reconnecting
	m.reconnects.Add(1)

	gen := m.gen
	m.retryTimer = m.clock.AfterFunc(delay, func() { m.retry(gen) })

	m.logger.Info("reconnect scheduled",
		"delay", delay,
		"attempt", m.budget.Attempts,
		"max_attempts", m.budget.MaxAttempts,
	)
}

func (m *Manager) retry(gen uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if gen != m.gen || m.state != Reconnecting {
		return
	}
	m.retryTimer = nil
	m.connectLocked()
}

func (m *Manager) stopRetryLocked() {
	if m.retryTimer != nil {
		m.retryTimer.Stop()
		m.retryTimer = nil
	}
}

func encodePayload(v any) ([]byte, error) {
	switch p := v.(type) {
	case []byte:
		return p, nil
	case json.RawMessage:
		return p, nil
	default:
		return json.Marshal(v)
	}
}
