package api

import (
	"context"
	"encoding/json"
	"fmt"
)

const healthPath = "/api/health"

// GetHealth fetches the server health report, retrying while the server is
// unreachable or answers 5xx.
func (c *Client) GetHealth(ctx context.Context) (*HealthResponse, error) {
	body, err := c.fetchRetrying(ctx, healthPath)
	if err != nil {
		return nil, fmt.Errorf("get health: %w", err)
	}

	var h HealthResponse
	if err := json.Unmarshal(body, &h); err != nil {
		return nil, fmt.Errorf("get health: unmarshal response: %w", err)
	}
	return &h, nil
}

// Ping reports whether the health endpoint answers 2xx. It makes exactly one
// request and ignores the body.
func (c *Client) Ping(ctx context.Context) error {
	if _, err := c.fetch(ctx, healthPath); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	return nil
}
