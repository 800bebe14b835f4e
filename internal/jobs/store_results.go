package jobs

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// SaveStageResult records the durable output of a completed stage. Re-running
// a stage replaces its prior output and bumps the attempt count.
func (s *Store) SaveStageResult(ctx context.Context, result StageResult) error {
	if result.JobID == "" || result.Stage == "" {
		return errors.New("stage result requires job id and stage")
	}
	completedAt := result.CompletedAt
	if completedAt.IsZero() {
		completedAt = time.Now().UTC()
	}
	if err := s.execWithoutResultRetry(
		ctx,
		`INSERT INTO stage_results (job_id, stage, output_json, fallback_used, attempt_count, completed_at)
         VALUES (?, ?, ?, ?, 1, ?)
         ON CONFLICT(job_id, stage) DO UPDATE SET
             output_json = excluded.output_json,
             fallback_used = excluded.fallback_used,
             attempt_count = stage_results.attempt_count + 1,
             completed_at = excluded.completed_at`,
		result.JobID,
		result.Stage,
		result.OutputJSON,
		boolToInt(result.FallbackUsed),
		completedAt.Format(time.RFC3339Nano),
	); err != nil {
		return fmt.Errorf("save stage result: %w", err)
	}
	return nil
}

// StageResults returns every recorded result for a job keyed by stage.
func (s *Store) StageResults(ctx context.Context, jobID string) (map[Stage]StageResult, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT job_id, stage, output_json, fallback_used, attempt_count, completed_at
         FROM stage_results WHERE job_id = ?`,
		jobID,
	)
	if err != nil {
		return nil, fmt.Errorf("list stage results: %w", err)
	}
	defer rows.Close()

	results := make(map[Stage]StageResult)
	for rows.Next() {
		result, err := scanStageResult(rows)
		if err != nil {
			return nil, err
		}
		results[result.Stage] = result
	}
	return results, rows.Err()
}

// StageResult fetches a single stage's result. Reports false when the stage
// has not completed yet.
func (s *Store) StageResult(ctx context.Context, jobID string, stage Stage) (StageResult, bool, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT job_id, stage, output_json, fallback_used, attempt_count, completed_at
         FROM stage_results WHERE job_id = ? AND stage = ?`,
		jobID, stage,
	)
	result, err := scanStageResult(row)
	if errors.Is(err, sql.ErrNoRows) {
		return StageResult{}, false, nil
	}
	if err != nil {
		return StageResult{}, false, fmt.Errorf("get stage result: %w", err)
	}
	return result, true, nil
}

func scanStageResult(row rowScanner) (StageResult, error) {
	var (
		result       StageResult
		fallbackUsed int
		completedAt  string
	)
	if err := row.Scan(
		&result.JobID,
		&result.Stage,
		&result.OutputJSON,
		&fallbackUsed,
		&result.AttemptCount,
		&completedAt,
	); err != nil {
		return StageResult{}, err
	}
	result.FallbackUsed = fallbackUsed != 0
	parsed, err := parseTimestamp(completedAt)
	if err != nil {
		return StageResult{}, fmt.Errorf("parse completed_at: %w", err)
	}
	result.CompletedAt = parsed
	return result, nil
}
