package scheduler

import (
	"context"
	"time"

	"marketplace_backend/platform/config"
	"marketplace_backend/platform/logger"
)

const defaultSweepInterval = time.Hour

// LifecycleSweeper periodically submits a sweep task to the worker queue so
// stale orders expire and unconfirmed bookings release their slots. Routing
// the pass through the queue keeps the worker as the single place sweeps
// execute. One task goes out immediately on start, then one per tick until
// the context is cancelled.
type LifecycleSweeper struct {
	enqueuer SweepEnqueuer
	log      *logger.Logger
	interval time.Duration
}

func NewLifecycleSweeper(enqueuer SweepEnqueuer, cfg config.SweepConfig, log *logger.Logger) *LifecycleSweeper {
	interval := cfg.GetSweepInterval()
	if interval <= 0 {
		interval = defaultSweepInterval
	}

	return &LifecycleSweeper{
		enqueuer: enqueuer,
		log:      log,
		interval: interval,
	}
}

func (s *LifecycleSweeper) Run(ctx context.Context) {
	if s == nil || s.enqueuer == nil {
		return
	}

	s.enqueue(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.enqueue(ctx)
		}
	}
}

func (s *LifecycleSweeper) enqueue(ctx context.Context) {
	if err := s.enqueuer.EnqueueLifecycleSweep(ctx); err != nil {
		s.log.Warn("failed to enqueue lifecycle sweep", "error", err)
	}
}
