package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"net"
	"net/http"
	"time"
)

// maxBody caps how much of a response is read.
const maxBody = 1 << 20

// APIError is a non-2xx response from the server.
type APIError struct {
	StatusCode int
	Message    string // FastAPI "detail" when present, else the status text
	Body       []byte
}

func (e *APIError) Error() string {
	return fmt.Sprintf("server api error %d: %s", e.StatusCode, e.Message)
}

// IsRetryable reports whether the server asked for a later retry.
func (e *APIError) IsRetryable() bool {
	return e.StatusCode >= 500 || e.StatusCode == http.StatusTooManyRequests
}

// retryable reports whether err may go away on its own: the server was
// overloaded, or not listening yet.
func retryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.IsRetryable()
	}
	var opErr *net.OpError
	return errors.As(err, &opErr)
}

// fetch performs one GET and returns the body of a 2xx response.
func (c *Client) fetch(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.root+path, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	if resp.StatusCode >= 300 {
		return nil, &APIError{
			StatusCode: resp.StatusCode,
			Message:    errorDetail(resp.StatusCode, body),
			Body:       body,
		}
	}
	return body, nil
}

// fetchRetrying repeats fetch while the failure is retryable, waiting a
// jittered, doubling backoff in between.
func (c *Client) fetchRetrying(ctx context.Context, path string) ([]byte, error) {
	wait := c.backoff
	for attempt := 1; ; attempt++ {
		body, err := c.fetch(ctx, path)
		if err == nil {
			return body, nil
		}
		if attempt > c.retries || !retryable(err) {
			if attempt > 1 {
				return nil, fmt.Errorf("giving up after %d attempts: %w", attempt, err)
			}
			return nil, err
		}

		d := jitter(wait)
		c.logger.Debug("retrying request", "path", path, "attempt", attempt+1, "wait", d, "error", err)

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(d):
		}
		wait *= 2
	}
}

// jitter spreads d over [d/2, 3d/2).
func jitter(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	return d/2 + time.Duration(rand.Int64N(int64(d)))
}

func errorDetail(code int, body []byte) string {
	var e struct {
		Detail string `json:"detail"`
	}
	if json.Unmarshal(body, &e) == nil && e.Detail != "" {
		return e.Detail
	}
	return http.StatusText(code)
}
