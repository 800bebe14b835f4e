package jobs

import (
	"context"
	"fmt"
	"time"
)

// UpdateHeartbeat stamps the job's liveness marker. A job only carries a
// heartbeat while a worker is actively executing one of its stages.
func (s *Store) UpdateHeartbeat(ctx context.Context, jobID string) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	if err := s.execWithoutResultRetry(
		ctx,
		`UPDATE jobs SET last_heartbeat = ?, updated_at = ? WHERE id = ?`,
		now, now, jobID,
	); err != nil {
		return fmt.Errorf("update heartbeat: %w", err)
	}
	return nil
}

// ReclaimStaleProcessing rolls jobs whose heartbeat has gone silent for
// longer than timeout back to their stage start status so the dispatcher can
// pick them up again. Returns the reclaimed jobs.
func (s *Store) ReclaimStaleProcessing(ctx context.Context, timeout time.Duration) ([]*Job, error) {
	cutoff := time.Now().UTC().Add(-timeout).Format(time.RFC3339Nano)

	processing := ProcessingStatuses()
	placeholders := makePlaceholders(len(processing))
	args := make([]any, 0, len(processing)+1)
	for _, status := range processing {
		args = append(args, status)
	}
	args = append(args, cutoff)

	rows, err := s.db.QueryContext(
		ctx,
		`SELECT `+jobColumns+` FROM jobs
         WHERE status IN (`+placeholders+`)
           AND (last_heartbeat IS NULL OR last_heartbeat < ?)
         ORDER BY created_at`,
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("list stale jobs: %w", err)
	}
	stale, err := collectJobs(rows)
	rows.Close()
	if err != nil {
		return nil, err
	}

	var reclaimed []*Job
	for _, job := range stale {
		startStatus, ok := RollbackStatus(job.Status)
		if !ok {
			continue
		}
		if err := s.execWithoutResultRetry(
			ctx,
			`UPDATE jobs SET status = ?, last_heartbeat = NULL, updated_at = ?
             WHERE id = ? AND status = ?`,
			startStatus,
			time.Now().UTC().Format(time.RFC3339Nano),
			job.ID,
			job.Status,
		); err != nil {
			return nil, fmt.Errorf("reclaim job %s: %w", job.ID, err)
		}
		job.Status = startStatus
		job.LastHeartbeat = nil
		reclaimed = append(reclaimed, job)
	}
	return reclaimed, nil
}

// ResetStuckProcessing rolls every in-flight job back to its stage start
// status regardless of heartbeat age. Called once at daemon startup so work
// interrupted by a crash resumes from the stage it was in.
func (s *Store) ResetStuckProcessing(ctx context.Context) (int, error) {
	reset := 0
	for _, spec := range stageOrder {
		res, err := s.execWithRetry(
			ctx,
			`UPDATE jobs SET status = ?, last_heartbeat = NULL, updated_at = ?
             WHERE status = ?`,
			spec.start,
			time.Now().UTC().Format(time.RFC3339Nano),
			spec.processing,
		)
		if err != nil {
			return reset, fmt.Errorf("reset %s jobs: %w", spec.processing, err)
		}
		if affected, err := res.RowsAffected(); err == nil {
			reset += int(affected)
		}
	}
	return reset, nil
}

// RequestCancel flags a job for cancellation. Workers honor the flag at the
// next stage boundary; queued jobs are cancelled by the dispatcher sweep.
func (s *Store) RequestCancel(ctx context.Context, jobID string) error {
	if err := s.execWithoutResultRetry(
		ctx,
		`UPDATE jobs SET cancel_requested = 1, updated_at = ? WHERE id = ?`,
		time.Now().UTC().Format(time.RFC3339Nano), jobID,
	); err != nil {
		return fmt.Errorf("request cancel: %w", err)
	}
	return nil
}
