// Package worker consumes the job queue and applies CIDR mutations to the
// store. Each polling cycle drains the visible queue inside a single
// transaction; a processor failure rolls the whole batch back, leaving the
// rows claimable by the next cycle.
package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/aomanu/cidrd/internal/logger"
	"github.com/aomanu/cidrd/pkg/metrics"
	"github.com/aomanu/cidrd/pkg/models"
)

// Store is the transactional persistence surface the worker runs on.
type Store interface {
	WithTx(ctx context.Context, fn func(tx pgx.Tx) error) error
	DequeueJobsTx(ctx context.Context, tx pgx.Tx) ([]models.CidrJob, error)
	SelectEnabledCidrsByListTypeTx(ctx context.Context, tx pgx.Tx, userID uuid.UUID, listType models.ListType) ([]models.Cidr, error)
	SelectCidrsByListIDTx(ctx context.Context, tx pgx.Tx, listID string) ([]models.Cidr, error)
	SelectEnabledCidrsByListIDTx(ctx context.Context, tx pgx.Tx, listID string) ([]models.Cidr, error)
	UpsertCidrsTx(ctx context.Context, tx pgx.Tx, listID string, addrs []string, expiresAt *time.Time) error
	DeleteCidrsTx(ctx context.Context, tx pgx.Tx, listID string, addrs []string) error
}

// Worker polls the job queue and processes batches.
type Worker struct {
	store      Store
	metrics    *metrics.Metrics
	interval   time.Duration
	onlyGlobal bool
	logger     *slog.Logger

	// now is swapped out by tests.
	now func() time.Time
}

// New builds a worker polling every interval. onlyGlobal controls whether
// add jobs drop non-routable prefixes.
func New(store Store, m *metrics.Metrics, interval time.Duration, onlyGlobal bool) *Worker {
	return &Worker{
		store:      store,
		metrics:    m,
		interval:   interval,
		onlyGlobal: onlyGlobal,
		logger:     logger.With("component", "worker"),
		now:        time.Now,
	}
}

// Run polls until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) {
	w.logger.Info("worker started", "interval", w.interval)
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("worker stopped")
			return
		case <-ticker.C:
			if err := w.RunOnce(ctx); err != nil {
				w.logger.Error("job batch failed", "error", err)
			}
		}
	}
}

// RunOnce drains the currently visible queue in one transaction.
func (w *Worker) RunOnce(ctx context.Context) error {
	start := w.now()
	var processed int

	err := w.store.WithTx(ctx, func(tx pgx.Tx) error {
		jobs, err := w.store.DequeueJobsTx(ctx, tx)
		if err != nil {
			return err
		}
		for i := range jobs {
			job := &jobs[i]
			if err := w.processJob(ctx, tx, job); err != nil {
				w.metrics.JobsProcessed.WithLabelValues(string(job.Action), "error").Inc()
				w.logger.Error("job failed",
					"job_id", job.JobID,
					"action", job.Action,
					"list_id", job.ListID,
					"error", err,
				)
				return err
			}
			w.metrics.JobsProcessed.WithLabelValues(string(job.Action), "ok").Inc()
			processed++
		}
		return nil
	})

	if processed > 0 || err != nil {
		w.metrics.JobBatchDuration.Observe(w.now().Sub(start).Seconds())
	}
	if err == nil && processed > 0 {
		w.logger.Debug("job batch committed", "jobs", processed, "elapsed", w.now().Sub(start))
	}
	return err
}
