// Package poller implements the Health Poller component.
//
// The Health Poller:
//   - Polls GET /api/health on a fixed interval
//   - Records the latest result for the /health endpoint of the tap command
//   - Calls Connect on the managed connection once the server is healthy
//     again after automatic reconnection gave up
package poller
