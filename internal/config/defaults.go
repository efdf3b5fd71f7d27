package config

import (
	"fmt"
	"time"
)

// Default values for optional configuration fields.
const (
	DefaultPort                 = 8765
	DefaultMaxReconnectAttempts = 5
	DefaultReconnectBaseDelay   = 1 * time.Second
	DefaultReconnectMaxDelay    = 5 * time.Minute
	MaxReconnectAttemptsLimit   = 100
	DefaultFlushInterval        = 100 * time.Millisecond
	DefaultMaxMessagesPerSecond = 10
	DefaultHandshakeTimeout     = 10 * time.Second
	DefaultWriteTimeout         = 5 * time.Second
	DefaultPingInterval         = 30 * time.Second
	DefaultPingTimeout          = 90 * time.Second
	DefaultBufferSize           = 1000
	DefaultHealthInterval       = 5 * time.Second
	DefaultHealthTimeout        = 2 * time.Second
	DefaultHealthRetries        = 2
	DefaultHealthRetryBackoff   = 250 * time.Millisecond
	DefaultLogLevel             = "info"
	DefaultLogFormat            = "text"
)

var (
	DefaultWSURL     = fmt.Sprintf("ws://127.0.0.1:%d/api/ws", DefaultPort)
	DefaultHealthURL = fmt.Sprintf("http://127.0.0.1:%d", DefaultPort)
)

func (c *Config) applyDefaults() {
	// Server defaults
	if c.Server.WSURL == "" {
		c.Server.WSURL = DefaultWSURL
	}
	if c.Server.HealthURL == "" {
		c.Server.HealthURL = DefaultHealthURL
	}

	// Client defaults
	if c.Client.MaxReconnectAttempts == 0 {
		c.Client.MaxReconnectAttempts = DefaultMaxReconnectAttempts
	}
	if c.Client.ReconnectBaseDelay == 0 {
		c.Client.ReconnectBaseDelay = DefaultReconnectBaseDelay
	}
	if c.Client.ReconnectMaxDelay == 0 {
		c.Client.ReconnectMaxDelay = DefaultReconnectMaxDelay
	}
	if c.Client.FlushInterval == 0 {
		c.Client.FlushInterval = DefaultFlushInterval
	}
	if c.Client.MaxMessagesPerSecond == 0 {
		c.Client.MaxMessagesPerSecond = DefaultMaxMessagesPerSecond
	}
	if c.Client.HandshakeTimeout == 0 {
		c.Client.HandshakeTimeout = DefaultHandshakeTimeout
	}
	if c.Client.WriteTimeout == 0 {
		c.Client.WriteTimeout = DefaultWriteTimeout
	}
	if c.Client.PingInterval == 0 {
		c.Client.PingInterval = DefaultPingInterval
	}
	if c.Client.PingTimeout == 0 {
		c.Client.PingTimeout = DefaultPingTimeout
	}
	if c.Client.BufferSize == 0 {
		c.Client.BufferSize = DefaultBufferSize
	}

	// Health defaults
	if c.Health.Interval == 0 {
		c.Health.Interval = DefaultHealthInterval
	}
	if c.Health.Timeout == 0 {
		c.Health.Timeout = DefaultHealthTimeout
	}
	if c.Health.Retries == 0 {
		c.Health.Retries = DefaultHealthRetries
	}
	if c.Health.RetryBackoff == 0 {
		c.Health.RetryBackoff = DefaultHealthRetryBackoff
	}

	// Log defaults
	if c.Log.Level == "" {
		c.Log.Level = DefaultLogLevel
	}
	if c.Log.Format == "" {
		c.Log.Format = DefaultLogFormat
	}
}
