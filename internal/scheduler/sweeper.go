package scheduler

import (
	"context"
	"log/slog"
	"time"
)

// Sweep expires overdue holds and bookings and reports how many moved.
type Sweep func(ctx context.Context) (holds, bookings int64, err error)

// Sweeper runs sweep every interval until its context is done. Passive
// expiry already keeps decisions correct between runs; the sweeper only
// frees slots and keeps stored statuses honest.
type Sweeper struct {
	sweep    Sweep
	interval time.Duration
	logger   *slog.Logger
}

func NewSweeper(sweep Sweep, interval time.Duration, logger *slog.Logger) *Sweeper {
	if interval <= 0 {
		interval = time.Minute
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &Sweeper{
		sweep:    sweep,
		interval: interval,
		logger:   logger,
	}
}

// Run blocks until ctx is cancelled and then returns nil.
func (s *Sweeper) Run(ctx context.Context) error {
	s.logger.Info("expiry sweeper started", "interval", s.interval)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("expiry sweeper stopped")
			return nil
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}

func (s *Sweeper) RunOnce(ctx context.Context) {
	holds, bookings, err := s.sweep(ctx)
	if err != nil {
		s.logger.Error("expiry sweep failed", "error", err)
		return
	}

	if holds > 0 || bookings > 0 {
		s.logger.Info("expired overdue entries", "holds", holds, "bookings", bookings)
	}
}
