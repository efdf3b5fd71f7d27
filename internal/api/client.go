package api

import (
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// Client talks to the server's REST endpoints next to the push socket.
type Client struct {
	root   string
	hc     *http.Client
	logger *slog.Logger

	// GetHealth repeats a failed request up to retries times, starting at
	// backoff and doubling.
	retries int
	backoff time.Duration
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// Retry defaults suit a server on localhost that may still be starting.
const (
	DefaultRetries      = 2
	DefaultRetryBackoff = 250 * time.Millisecond
	DefaultTimeout      = 5 * time.Second
)

// NewClient returns a client for the server rooted at baseURL, e.g.
// http://127.0.0.1:8765.
func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		root:    strings.TrimRight(baseURL, "/"),
		hc:      &http.Client{Timeout: DefaultTimeout},
		logger:  slog.Default(),
		retries: DefaultRetries,
		backoff: DefaultRetryBackoff,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the server root the client talks to.
func (c *Client) BaseURL() string {
	return c.root
}

// WithTimeout bounds each HTTP round trip.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.hc.Timeout = d
	}
}

// WithRetries sets how often GetHealth repeats a retryable failure and the
// first wait between attempts.
func WithRetries(n int, backoff time.Duration) ClientOption {
	return func(c *Client) {
		c.retries = n
		c.backoff = backoff
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.hc = hc
	}
}
