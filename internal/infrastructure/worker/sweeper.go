package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// RunReaper stops abandoned runs and drops expired ones, reporting how many each step touched
type RunReaper interface {
	StopAbandoned(ctx context.Context) int
	EvictExpired() int
}

// RunSweeper periodically stops abandoned runs and evicts completed ones so idle servers release
// their claims and memory
type RunSweeper struct {
	target   RunReaper
	interval time.Duration
	logger   *zap.Logger

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	stopped int
	evicted int
}

// NewRunSweeper creates a sweeper ticking every interval
func NewRunSweeper(target RunReaper, interval time.Duration, logger *zap.Logger) *RunSweeper {
	if interval <= 0 {
		interval = time.Minute
	}
	return &RunSweeper{
		target:   target,
		interval: interval,
		logger:   logger,
	}
}

// Start launches the sweep loop
func (s *RunSweeper) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.done != nil {
		return fmt.Errorf("run sweeper already running")
	}

	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})
	go s.loop(ctx, s.done)
	return nil
}

// Stop ends the loop and waits for it to return
func (s *RunSweeper) Stop() error {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()

	if done == nil {
		return nil
	}
	cancel()
	<-done

	s.logger.Info("Run sweeper stopped",
		zap.Int("abandoned_total", s.Abandoned()),
		zap.Int("evicted_total", s.Evicted()))
	return nil
}

// Name returns the worker name
func (s *RunSweeper) Name() string {
	return "RunSweeper"
}

// Evicted returns how many runs the sweeper has dropped so far
func (s *RunSweeper) Evicted() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.evicted
}

// Abandoned returns how many idle runs the sweeper has stopped so far
func (s *RunSweeper) Abandoned() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopped
}

func (s *RunSweeper) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *RunSweeper) sweep(ctx context.Context) {
	stopped := s.target.StopAbandoned(ctx)
	evicted := s.target.EvictExpired()
	if stopped == 0 && evicted == 0 {
		return
	}

	s.mu.Lock()
	s.stopped += stopped
	s.evicted += evicted
	s.mu.Unlock()
	s.logger.Debug("Swept runs", zap.Int("abandoned", stopped), zap.Int("evicted", evicted))
}
