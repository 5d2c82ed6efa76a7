package compliance

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Scheduler runs compliance jobs on a fixed interval until stopped.
type Scheduler struct {
	runner   *Runner
	interval time.Duration
	opts     JobOptions
	logger   *slog.Logger

	mu     sync.Mutex
	ticker *time.Ticker
	done   chan struct{}
	wg     sync.WaitGroup

	// Called with the outcome of every run
	OnRun func(*Summary, error)
}

// NewScheduler returns a scheduler that runs opts every interval.
func NewScheduler(r *Runner, interval time.Duration, opts JobOptions, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{runner: r, interval: interval, opts: opts, logger: logger}
}

// Start begins the background ticker. Runs use ctx; cancelling it stops the
// scheduler as Stop does.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done != nil {
		return
	}
	s.done = make(chan struct{})
	s.ticker = time.NewTicker(s.interval)
	s.wg.Add(1)
	go s.run(ctx, s.ticker, s.done)
	s.logger.Info("compliance scheduler started", "interval", s.interval)
}

// Stop halts the ticker and waits for a run in progress to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.done == nil {
		s.mu.Unlock()
		return
	}
	s.ticker.Stop()
	close(s.done)
	s.done = nil
	s.mu.Unlock()
	s.wg.Wait()
	s.logger.Info("compliance scheduler stopped")
}

// Running reports whether the background ticker is active.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.done != nil
}

func (s *Scheduler) run(ctx context.Context, ticker *time.Ticker, done chan struct{}) {
	defer s.wg.Done()
	for {
		select {
		case <-done:
			return
		case <-ctx.Done():
			// leave the scheduler ready for another Start
			s.mu.Lock()
			if s.done == done {
				ticker.Stop()
				s.done = nil
			}
			s.mu.Unlock()
			s.logger.Info("compliance scheduler stopped", "reason", ctx.Err())
			return
		case <-ticker.C:
			s.runOnce(ctx)
		}
	}
}

func (s *Scheduler) runOnce(ctx context.Context) {
	sum, err := s.runner.Run(ctx, s.opts)
	if err != nil {
		s.logger.Error("scheduled compliance run failed", "error", err)
	} else {
		t := sum.Totals()
		s.logger.Info("scheduled compliance run finished",
			"checks", len(sum.Checks), "objects", t.Objects, "failed", t.Failed, "errors", t.Errors)
	}
	if s.OnRun != nil {
		s.OnRun(sum, err)
	}
}
