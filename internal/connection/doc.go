// Package connection implements the Connection Manager component.
//
// The Connection Manager:
//   - Maintains one WebSocket connection to the push endpoint
//   - Reconnects with exponential backoff after unexpected closes, up to a
//     fixed number of attempts
//   - Answers text "ping" keepalives and drops malformed frames
//   - Passes every event through the rate limiter in internal/router, which
//     delivers open, close and error immediately and coalesces the rest
//   - Fans events out to subscribers by type and to the "message" catch-all
package connection
