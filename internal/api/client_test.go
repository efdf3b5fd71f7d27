package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

const okHealth = `{"status":"ok","state":"idle","model_loaded":true}`

// TestNewClient tests client construction with various options.
func TestNewClient(t *testing.T) {
	t.Run("default values", func(t *testing.T) {
		c := NewClient("http://127.0.0.1:8765")

		if c.root != "http://127.0.0.1:8765" {
			t.Errorf("root = %q, want %q", c.root, "http://127.0.0.1:8765")
		}
		if c.hc.Timeout != DefaultTimeout {
			t.Errorf("Timeout = %v, want %v", c.hc.Timeout, DefaultTimeout)
		}
		if c.retries != DefaultRetries {
			t.Errorf("retries = %d, want %d", c.retries, DefaultRetries)
		}
		if c.backoff != DefaultRetryBackoff {
			t.Errorf("backoff = %v, want %v", c.backoff, DefaultRetryBackoff)
		}
		if c.logger == nil {
			t.Error("logger should not be nil")
		}
	})

	t.Run("trailing slash trimmed", func(t *testing.T) {
		c := NewClient("http://127.0.0.1:8765/")
		if c.BaseURL() != "http://127.0.0.1:8765" {
			t.Errorf("BaseURL() = %q", c.BaseURL())
		}
	})

	t.Run("options", func(t *testing.T) {
		logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
		c := NewClient("http://localhost",
			WithTimeout(time.Second),
			WithRetries(5, 2*time.Second),
			WithLogger(logger),
		)
		if c.hc.Timeout != time.Second {
			t.Errorf("Timeout = %v, want %v", c.hc.Timeout, time.Second)
		}
		if c.retries != 5 || c.backoff != 2*time.Second {
			t.Errorf("retries = %d backoff = %v", c.retries, c.backoff)
		}
		if c.logger != logger {
			t.Error("logger not set correctly")
		}
	})

	t.Run("nil logger keeps default", func(t *testing.T) {
		c := NewClient("http://localhost", WithLogger(nil))
		if c.logger == nil {
			t.Error("logger is nil")
		}
	})

	t.Run("with custom HTTP client", func(t *testing.T) {
		custom := &http.Client{Timeout: 10 * time.Second}
		c := NewClient("http://localhost", WithHTTPClient(custom))
		if c.hc != custom {
			t.Error("custom HTTP client not set")
		}
	})
}

// TestAPIError tests the APIError type.
func TestAPIError(t *testing.T) {
	t.Run("Error method", func(t *testing.T) {
		err := &APIError{StatusCode: 404, Message: "Not Found"}
		expected := "server api error 404: Not Found"
		if err.Error() != expected {
			t.Errorf("Error() = %q, want %q", err.Error(), expected)
		}
	})

	t.Run("IsRetryable", func(t *testing.T) {
		tests := []struct {
			code     int
			expected bool
		}{
			{500, true},
			{502, true},
			{503, true},
			{429, true},
			{400, false},
			{404, false},
			{499, false},
		}

		for _, tt := range tests {
			err := &APIError{StatusCode: tt.code}
			if got := err.IsRetryable(); got != tt.expected {
				t.Errorf("IsRetryable() for status %d = %v, want %v", tt.code, got, tt.expected)
			}
		}
	})
}

func TestFetch(t *testing.T) {
	t.Run("detail becomes the message", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("Accept") != "application/json" {
				t.Errorf("Accept header = %q, want %q", r.Header.Get("Accept"), "application/json")
			}
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"detail":"no such job"}`))
		}))
		defer server.Close()

		c := NewClient(server.URL)
		_, err := c.fetch(context.Background(), "/api/jobs/1")

		var apiErr *APIError
		if !errors.As(err, &apiErr) {
			t.Fatalf("expected *APIError, got %T (%v)", err, err)
		}
		if apiErr.StatusCode != http.StatusNotFound || apiErr.Message != "no such job" {
			t.Errorf("APIError = %d %q", apiErr.StatusCode, apiErr.Message)
		}
	})

	t.Run("status text without detail", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
			w.Write([]byte(`upstream down`))
		}))
		defer server.Close()

		_, err := NewClient(server.URL).fetch(context.Background(), "/")
		var apiErr *APIError
		if !errors.As(err, &apiErr) || apiErr.Message != "Bad Gateway" {
			t.Errorf("err = %v, want Bad Gateway APIError", err)
		}
	})

	t.Run("context cancellation", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		}))
		defer server.Close()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := NewClient(server.URL).fetch(ctx, "/")
		if !errors.Is(err, context.Canceled) {
			t.Errorf("err = %v, want context.Canceled", err)
		}
		if retryable(err) {
			t.Error("cancelled request reported retryable")
		}
	})
}

func TestRetryable(t *testing.T) {
	// Nothing listens on port 1, so the dial is refused.
	_, dialErr := NewClient("http://127.0.0.1:1", WithTimeout(time.Second)).fetch(context.Background(), "/")

	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"server error", &APIError{StatusCode: 503}, true},
		{"client error", &APIError{StatusCode: 400}, false},
		{"connection refused", dialErr, true},
		{"deadline", context.DeadlineExceeded, false},
		{"other", errors.New("bad json"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := retryable(tt.err); got != tt.want {
				t.Errorf("retryable(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestJitter(t *testing.T) {
	if got := jitter(0); got != 0 {
		t.Errorf("jitter(0) = %v, want 0", got)
	}
	for i := 0; i < 100; i++ {
		d := jitter(100 * time.Millisecond)
		if d < 50*time.Millisecond || d >= 150*time.Millisecond {
			t.Fatalf("jitter(100ms) = %v, want [50ms, 150ms)", d)
		}
	}
}

// TestGetHealth tests the GetHealth method.
func TestGetHealth(t *testing.T) {
	t.Run("model loaded", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/api/health" {
				t.Errorf("path = %q, want %q", r.URL.Path, "/api/health")
			}
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(`{"status":"ok","state":"idle","model_loaded":true,"model_name":"whisper-small",` +
				`"gpu_available":true,"gpu_name":"RTX 4090","gpu_vram_gb":24.0}`))
		}))
		defer server.Close()

		c := NewClient(server.URL)
		h, err := c.GetHealth(context.Background())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !h.OK() {
			t.Errorf("OK() = false for status %q", h.Status)
		}
		if !h.ModelLoaded || h.ModelName == nil || *h.ModelName != "whisper-small" {
			t.Errorf("model = %v %v", h.ModelLoaded, h.ModelName)
		}
		if h.GPUVRAMGB == nil || *h.GPUVRAMGB != 24 {
			t.Errorf("GPUVRAMGB = %v, want 24", h.GPUVRAMGB)
		}
	})

	t.Run("nulls while loading", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"status":"ok","state":"loading","model_loaded":false,"model_name":null,` +
				`"gpu_available":false,"gpu_name":null,"gpu_vram_gb":null}`))
		}))
		defer server.Close()

		h, err := NewClient(server.URL).GetHealth(context.Background())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if h.ModelName != nil || h.GPUName != nil || h.GPUVRAMGB != nil {
			t.Errorf("expected nil optional fields, got %+v", h)
		}
		if h.State != "loading" {
			t.Errorf("State = %q, want loading", h.State)
		}
	})

	t.Run("retries while starting up", func(t *testing.T) {
		var attempts atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if attempts.Add(1) < 3 {
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
			w.Write([]byte(okHealth))
		}))
		defer server.Close()

		c := NewClient(server.URL, WithRetries(3, 5*time.Millisecond))
		h, err := c.GetHealth(context.Background())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !h.OK() {
			t.Errorf("OK() = false")
		}
		if got := attempts.Load(); got != 3 {
			t.Errorf("attempts = %d, want 3", got)
		}
	})

	t.Run("gives up after retries", func(t *testing.T) {
		var attempts atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			attempts.Add(1)
			w.WriteHeader(http.StatusServiceUnavailable)
		}))
		defer server.Close()

		c := NewClient(server.URL, WithRetries(2, time.Millisecond))
		_, err := c.GetHealth(context.Background())
		if err == nil || !strings.Contains(err.Error(), "giving up after 3 attempts") {
			t.Errorf("err = %v", err)
		}
		if got := attempts.Load(); got != 3 {
			t.Errorf("attempts = %d, want 3", got)
		}
	})

	t.Run("no retry on client error", func(t *testing.T) {
		var attempts atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			attempts.Add(1)
			w.WriteHeader(http.StatusBadRequest)
		}))
		defer server.Close()

		c := NewClient(server.URL, WithRetries(3, time.Millisecond))
		if _, err := c.GetHealth(context.Background()); err == nil {
			t.Fatal("expected error, got nil")
		}
		if got := attempts.Load(); got != 1 {
			t.Errorf("attempts = %d, want 1", got)
		}
	})

	t.Run("context ends the wait", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		}))
		defer server.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()

		c := NewClient(server.URL, WithRetries(10, time.Hour))
		start := time.Now()
		if _, err := c.GetHealth(ctx); !errors.Is(err, context.DeadlineExceeded) {
			t.Errorf("err = %v, want DeadlineExceeded", err)
		}
		if time.Since(start) > 5*time.Second {
			t.Error("GetHealth ignored the context")
		}
	})

	t.Run("invalid JSON response", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`not valid json`))
		}))
		defer server.Close()

		_, err := NewClient(server.URL).GetHealth(context.Background())
		if err == nil || !strings.Contains(err.Error(), "unmarshal") {
			t.Errorf("err = %v, want unmarshal error", err)
		}
	})
}

func TestPing(t *testing.T) {
	t.Run("single request", func(t *testing.T) {
		var attempts atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			attempts.Add(1)
			w.WriteHeader(http.StatusServiceUnavailable)
		}))
		defer server.Close()

		c := NewClient(server.URL, WithRetries(5, time.Millisecond))
		if err := c.Ping(context.Background()); err == nil {
			t.Fatal("expected error, got nil")
		}
		if got := attempts.Load(); got != 1 {
			t.Errorf("attempts = %d, want 1", got)
		}
	})

	t.Run("healthy", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(okHealth))
		}))
		defer server.Close()

		if err := NewClient(server.URL).Ping(context.Background()); err != nil {
			t.Errorf("Ping() = %v", err)
		}
	})

	t.Run("unreachable", func(t *testing.T) {
		c := NewClient("http://127.0.0.1:1", WithTimeout(100*time.Millisecond))
		if err := c.Ping(context.Background()); err == nil {
			t.Error("expected error for unreachable server")
		}
	})
}
