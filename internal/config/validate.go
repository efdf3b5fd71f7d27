package config

import (
	"errors"
	"fmt"
	"net/url"
)

// Validate checks that all required fields are set and values are valid.
func (c *Config) Validate() error {
	if err := validateURL("server.ws_url", c.Server.WSURL, "ws", "wss"); err != nil {
		return err
	}
	if err := validateURL("server.health_url", c.Server.HealthURL, "http", "https"); err != nil {
		return err
	}

	if c.Client.MaxReconnectAttempts < 0 || c.Client.MaxReconnectAttempts > MaxReconnectAttemptsLimit {
		return fmt.Errorf("client.max_reconnect_attempts must be between 0 and %d, got %d",
			MaxReconnectAttemptsLimit, c.Client.MaxReconnectAttempts)
	}
	if c.Client.ReconnectBaseDelay <= 0 {
		return errors.New("client.reconnect_base_delay must be > 0")
	}
	if c.Client.ReconnectMaxDelay < c.Client.ReconnectBaseDelay {
		return fmt.Errorf("client.reconnect_max_delay (%v) must be >= client.reconnect_base_delay (%v)",
			c.Client.ReconnectMaxDelay, c.Client.ReconnectBaseDelay)
	}
	if c.Client.FlushInterval <= 0 {
		return errors.New("client.flush_interval must be > 0")
	}
	if c.Client.MaxMessagesPerSecond < 0 {
		return errors.New("client.max_messages_per_second must be >= 0")
	}
	if c.Client.BufferSize < 1 {
		return errors.New("client.buffer_size must be >= 1")
	}
	if c.Client.PingTimeout < c.Client.PingInterval {
		return fmt.Errorf("client.ping_timeout (%v) must be >= client.ping_interval (%v)",
			c.Client.PingTimeout, c.Client.PingInterval)
	}

	if c.Health.Interval <= 0 {
		return errors.New("health.interval must be > 0")
	}
	if c.Health.Retries < 0 {
		return errors.New("health.retries must be >= 0")
	}
	if c.Health.RetryBackoff < 0 {
		return errors.New("health.retry_backoff must be >= 0")
	}

	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level must be one of debug, info, warn, error, got %q", c.Log.Level)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("log.format must be text or json, got %q", c.Log.Format)
	}

	return nil
}

func validateURL(field, raw string, schemes ...string) error {
	if raw == "" {
		return fmt.Errorf("%s is required", field)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%s: %w", field, err)
	}
	for _, s := range schemes {
		if u.Scheme == s {
			if u.Host == "" {
				return fmt.Errorf("%s has no host", field)
			}
			return nil
		}
	}
	return fmt.Errorf("%s must use scheme %v, got %q", field, schemes, u.Scheme)
}
