package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/jackc/pgx/v5"

	"github.com/aomanu/cidrd/pkg/models"
)

func enqueueJobTx(ctx context.Context, tx pgx.Tx, job *models.CidrJob) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to encode job payload: %w", err)
	}
	query := `INSERT INTO job_queue (job_id, payload) VALUES ($1, $2)`
	if _, err := tx.Exec(ctx, query, job.JobID, payload); err != nil {
		return fmt.Errorf("failed to enqueue job: %w", err)
	}
	return nil
}

// EnqueueJob appends a job to the queue in its own transaction.
func (s *Store) EnqueueJob(ctx context.Context, job *models.CidrJob) error {
	return s.WithTx(ctx, func(tx pgx.Tx) error {
		return enqueueJobTx(ctx, tx, job)
	})
}

// DequeueJobsTx consumes every currently visible queue row. Deletion and
// retrieval are one statement, so a rollback of tx leaves the rows
// claimable again; SKIP LOCKED keeps concurrent consumers on disjoint
// subsets. Jobs come back in ascending queue id order.
func (s *Store) DequeueJobsTx(ctx context.Context, tx pgx.Tx) ([]models.CidrJob, error) {
	query := `
		DELETE FROM job_queue USING (
			SELECT id FROM job_queue ORDER BY id FOR UPDATE SKIP LOCKED
		) q WHERE q.id = job_queue.id
		RETURNING job_queue.id, job_queue.payload
	`
	rows, err := tx.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to dequeue jobs: %w", err)
	}
	defer rows.Close()

	type queued struct {
		id  int64
		job models.CidrJob
	}
	var batch []queued
	for rows.Next() {
		var (
			q       queued
			payload []byte
		)
		if err := rows.Scan(&q.id, &payload); err != nil {
			return nil, fmt.Errorf("failed to scan job row: %w", err)
		}
		if err := json.Unmarshal(payload, &q.job); err != nil {
			return nil, fmt.Errorf("failed to decode job payload: %w", err)
		}
		batch = append(batch, q)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// RETURNING does not guarantee an order; restore FIFO here.
	sort.Slice(batch, func(i, j int) bool { return batch[i].id < batch[j].id })

	jobs := make([]models.CidrJob, len(batch))
	for i, q := range batch {
		jobs[i] = q.job
	}
	return jobs, nil
}
