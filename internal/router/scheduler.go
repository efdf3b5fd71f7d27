package router

import (
	"log/slog"
	"sync"
	"time"

	"github.com/rickgao/wsfeed/internal/clock"
)

// DefaultFlushInterval is the flush period used when none is configured.
const DefaultFlushInterval = 100 * time.Millisecond

// FlushScheduler calls a flush function on a fixed period while running.
// It re-arms a one-shot timer after each tick; every Start begins a new
// generation so a tick that raced with Stop is discarded.
type FlushScheduler struct {
	interval time.Duration
	clock    clock.Clock
	flush    func() int
	logger   *slog.Logger

	mu      sync.Mutex
	running bool
	gen     uint64
	timer   clock.Timer
	ticks   int64
}

// NewFlushScheduler creates a stopped scheduler.
func NewFlushScheduler(interval time.Duration, clk clock.Clock, flush func() int, logger *slog.Logger) *FlushScheduler {
	if interval <= 0 {
		interval = DefaultFlushInterval
	}
	if clk == nil {
		clk = clock.Real{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &FlushScheduler{
		interval: interval,
		clock:    clk,
		flush:    flush,
		logger:   logger,
	}
}

// Start begins ticking. No-op if already running.
func (s *FlushScheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return
	}
	s.running = true
	s.gen++
	s.armLocked(s.gen)
	s.logger.Debug("flush scheduler started", "interval", s.interval)
}

// Stop cancels the pending tick. No-op if not running.
func (s *FlushScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}
	s.running = false
	s.gen++
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.logger.Debug("flush scheduler stopped")
}

// Running reports whether the scheduler is active.
func (s *FlushScheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Ticks returns the number of ticks that ran.
func (s *FlushScheduler) Ticks() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ticks
}

func (s *FlushScheduler) armLocked(gen uint64) {
	s.timer = s.clock.AfterFunc(s.interval, func() { s.tick(gen) })
}

func (s *FlushScheduler) tick(gen uint64) {
	s.mu.Lock()
	if !s.running || gen != s.gen {
		s.mu.Unlock()
		return
	}
	s.ticks++
	s.mu.Unlock()

	s.flush()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running && gen == s.gen {
		s.armLocked(gen)
	}
}
