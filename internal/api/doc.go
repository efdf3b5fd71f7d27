// Package api is a small client for the server's REST API.
//
// Only the health endpoint is used:
//   - GET /api/health reports server state, model and GPU availability
//
// Ping checks liveness with a single request. GetHealth retries with
// jittered exponential backoff while the server is unreachable or answers
// 5xx or 429.
package api
