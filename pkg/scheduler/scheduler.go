// Package scheduler runs the periodic maintenance tasks, currently just
// the TTL reaper that drops expired CIDR rows.
package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/aomanu/cidrd/internal/logger"
	"github.com/aomanu/cidrd/pkg/metrics"
)

// Store is the persistence surface the scheduler needs.
type Store interface {
	DeleteExpiredCidrs(ctx context.Context) (int64, error)
}

// Scheduler periodically removes rows whose TTL has elapsed.
type Scheduler struct {
	store    Store
	metrics  *metrics.Metrics
	interval time.Duration
	logger   *slog.Logger
}

// New builds a scheduler reaping every interval.
func New(store Store, m *metrics.Metrics, interval time.Duration) *Scheduler {
	return &Scheduler{
		store:    store,
		metrics:  m,
		interval: interval,
		logger:   logger.With("component", "scheduler"),
	}
}

// Run reaps until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	s.logger.Info("scheduler started", "interval", s.interval)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopped")
			return
		case <-ticker.C:
			if err := s.RunOnce(ctx); err != nil {
				s.logger.Error("expired cidr sweep failed", "error", err)
			}
		}
	}
}

// RunOnce performs a single sweep.
func (s *Scheduler) RunOnce(ctx context.Context) error {
	reaped, err := s.store.DeleteExpiredCidrs(ctx)
	if err != nil {
		return err
	}
	if reaped > 0 {
		s.metrics.ExpiredReaped.Add(float64(reaped))
		s.logger.Info("reaped expired cidrs", "rows", reaped)
	}
	return nil
}
