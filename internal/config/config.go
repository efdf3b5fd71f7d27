package config

import "time"

// Config is the root configuration for a wsfeed client.
type Config struct {
	Server ServerConfig `yaml:"server"`
	Client ClientConfig `yaml:"client"`
	Health HealthConfig `yaml:"health"`
	Log    LogConfig    `yaml:"log"`
}

// ServerConfig locates the server.
type ServerConfig struct {
	WSURL     string `yaml:"ws_url"`     // Push endpoint, e.g. ws://127.0.0.1:8765/api/ws
	HealthURL string `yaml:"health_url"` // REST root, e.g. http://127.0.0.1:8765
}

// ClientConfig holds connection manager settings.
type ClientConfig struct {
	MaxReconnectAttempts int           `yaml:"max_reconnect_attempts"`
	ReconnectBaseDelay   time.Duration `yaml:"reconnect_base_delay"`
	ReconnectMaxDelay    time.Duration `yaml:"reconnect_max_delay"`
	FlushInterval        time.Duration `yaml:"flush_interval"`
	MaxMessagesPerSecond int           `yaml:"max_messages_per_second"`
	HandshakeTimeout     time.Duration `yaml:"handshake_timeout"`
	WriteTimeout         time.Duration `yaml:"write_timeout"`
	PingInterval         time.Duration `yaml:"ping_interval"`
	PingTimeout          time.Duration `yaml:"ping_timeout"`
	BufferSize           int           `yaml:"buffer_size"`
}

// HealthConfig holds health poller settings.
type HealthConfig struct {
	Enabled      *bool         `yaml:"enabled"` // Default true
	Interval     time.Duration `yaml:"interval"`
	Timeout      time.Duration `yaml:"timeout"`
	Retries      int           `yaml:"retries"`       // Report fetch retries while the server starts
	RetryBackoff time.Duration `yaml:"retry_backoff"` // First wait between report retries
	ListenAddr   string        `yaml:"listen_addr"`   // Empty disables the /health endpoint
}

// IsEnabled reports whether the health poller should run.
func (h HealthConfig) IsEnabled() bool {
	return h.Enabled == nil || *h.Enabled
}

// LogConfig controls the process logger.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text or json
}
