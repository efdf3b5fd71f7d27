package main

import (
	"encoding/json"
	"net/http"

	"github.com/rickgao/wsfeed/internal/connection"
	"github.com/rickgao/wsfeed/internal/poller"
)

// statsSource is the slice of the manager the health handler reads.
type statsSource interface {
	Stats() connection.ManagerStats
}

// statusSource is the slice of the poller the health handler reads.
type statusSource interface {
	Last() poller.Status
}

type healthReport struct {
	Status     string           `json:"status"`
	Connection connectionReport `json:"connection"`
	Server     *poller.Status   `json:"server,omitempty"`
}

type connectionReport struct {
	State      string `json:"state"`
	URL        string `json:"url"`
	Attempts   int    `json:"attempts"`
	Received   int64  `json:"received"`
	Malformed  int64  `json:"malformed"`
	Reconnects int64  `json:"reconnects"`
	Pending    int    `json:"pending"`
	Delivered  int64  `json:"delivered"`
	Panics     int64  `json:"subscriber_panics"`
}

// healthHandler serves GET /health. It answers 503 unless the connection is
// open or being re-established.
func healthHandler(mgr statsSource, hp *poller.Poller) http.Handler {
	var server statusSource
	if hp != nil {
		server = hp
	}
	return newHealthHandler(mgr, server)
}

func newHealthHandler(mgr statsSource, server statusSource) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		s := mgr.Stats()

		report := healthReport{
			Connection: connectionReport{
				State:      s.State.String(),
				URL:        s.URL,
				Attempts:   s.Attempts,
				Received:   s.Received,
				Malformed:  s.Malformed,
				Reconnects: s.Reconnects,
				Pending:    s.Router.Buffer.Pending,
				Delivered:  s.Dispatcher.Delivered,
				Panics:     s.Dispatcher.Panics,
			},
		}
		if server != nil {
			last := server.Last()
			report.Server = &last
		}

		code := http.StatusOK
		switch s.State {
		case connection.Connected:
			report.Status = "healthy"
		case connection.Connecting, connection.Reconnecting:
			report.Status = "degraded"
		default:
			report.Status = "unhealthy"
			code = http.StatusServiceUnavailable
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		json.NewEncoder(w).Encode(report)
	})

	return mux
}
