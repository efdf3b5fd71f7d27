package poller

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rickgao/wsfeed/internal/api"
)

// HealthChecker checks the server. *api.Client implements it.
type HealthChecker interface {
	// Ping is the cheap liveness check made on every tick.
	Ping(ctx context.Context) error
	// GetHealth fetches the full report, retrying while the server starts.
	GetHealth(ctx context.Context) (*api.HealthResponse, error)
}

// Target is the connection the poller revives. It is only reconnected once
// it has given up on its own.
type Target interface {
	Exhausted() bool
	Connect()
}

// Config holds poller configuration.
type Config struct {
	Interval time.Duration // Poll interval (default: 5s)
	Timeout  time.Duration // Per-request timeout (default: 2s)
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Interval: 5 * time.Second,
		Timeout:  2 * time.Second,
	}
}

// Status is the outcome of the most recent health check.
type Status struct {
	Healthy   bool                `json:"healthy"`
	CheckedAt time.Time           `json:"checked_at"`
	Health    *api.HealthResponse `json:"health,omitempty"`
	Error     string              `json:"error,omitempty"`
	Revivals  int64               `json:"revivals"`
}

// Poller periodically checks server health and reconnects the target when
// the server is back after the reconnect budget ran out.
type Poller struct {
	cfg     Config
	checker HealthChecker
	target  Target
	logger  *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu       sync.RWMutex
	last     Status
	revivals atomic.Int64
}

// New creates a new Poller.
func New(cfg Config, checker HealthChecker, target Target, logger *slog.Logger) *Poller {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultConfig().Interval
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultConfig().Timeout
	}
	return &Poller{
		cfg:     cfg,
		checker: checker,
		target:  target,
		logger:  logger,
	}
}

// Start begins the polling loop.
func (p *Poller) Start(ctx context.Context) error {
	p.ctx, p.cancel = context.WithCancel(ctx)

	p.wg.Add(1)
	go p.run()

	p.logger.Info("health poller started", "interval", p.cfg.Interval)

	return nil
}

// Stop gracefully shuts down the poller.
func (p *Poller) Stop(ctx context.Context) error {
	if p.cancel != nil {
		p.cancel()
	}

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.logger.Info("health poller stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Last returns the result of the most recent check.
func (p *Poller) Last() Status {
	p.mu.RLock()
	defer p.mu.RUnlock()
	s := p.last
	s.Revivals = p.revivals.Load()
	return s
}

// run is the main polling loop.
func (p *Poller) run() {
	defer p.wg.Done()

	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	// Poll immediately on start.
	p.poll()

	for {
		select {
		case <-p.ctx.Done():
			return
		case <-ticker.C:
			p.poll()
		}
	}
}

// poll performs one health check and revives the target if needed.
//
// Every tick pings. The full report is fetched when the server comes back
// and before every revival.
func (p *Poller) poll() {
	ctx, cancel := context.WithTimeout(p.ctx, p.cfg.Timeout)
	defer cancel()

	p.mu.RLock()
	prev := p.last
	p.mu.RUnlock()

	status := Status{CheckedAt: time.Now()}
	exhausted := p.target.Exhausted()

	if err := p.checker.Ping(ctx); err != nil {
		status.Error = err.Error()
	} else if prev.Healthy && !exhausted {
		status.Healthy = true
		status.Health = prev.Health
	} else {
		health, err := p.checker.GetHealth(ctx)
		if err != nil {
			status.Error = err.Error()
		} else {
			status.Health = health
			status.Healthy = health.OK()
		}
	}

	p.mu.Lock()
	p.last = status
	p.mu.Unlock()

	if status.Healthy != prev.Healthy {
		p.logger.Info("server health changed", "healthy", status.Healthy, "error", status.Error)
	}

	if status.Healthy && exhausted {
		p.revivals.Add(1)
		p.logger.Info("server is healthy, reconnecting", "state", status.Health.State)
		p.target.Connect()
	}
}
