package jobs

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
)

func ensureContext(ctx context.Context) context.Context {
	if ctx != nil {
		return ctx
	}
	return context.Background()
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code() == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	return lastErr
}

func (s *Store) execWithRetry(ctx context.Context, query string, args ...any) (sql.Result, error) {
	ctx = ensureContext(ctx)
	var (
		res     sql.Result
		execErr error
	)
	if err := retryOnBusy(ctx, func() error {
		res, execErr = s.db.ExecContext(ctx, query, args...)
		return execErr
	}); err != nil {
		return nil, err
	}
	return res, nil
}

func (s *Store) execWithoutResultRetry(ctx context.Context, query string, args ...any) error {
	ctx = ensureContext(ctx)
	return retryOnBusy(ctx, func() error {
		_, err := s.db.ExecContext(ctx, query, args...)
		return err
	})
}

const jobColumns = `id, owner_id, status, preferences_json, selected_title,
    progress_stage, progress_percent, progress_message, error_message,
    error_kind, artifact_path, cancel_requested, created_at, updated_at,
    last_heartbeat`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (*Job, error) {
	var (
		job             Job
		prefsJSON       string
		selectedTitle   sql.NullString
		progressStage   sql.NullString
		progressMessage sql.NullString
		errorMessage    sql.NullString
		errorKind       sql.NullString
		artifactPath    sql.NullString
		cancelRequested int
		createdAt       string
		updatedAt       string
		lastHeartbeat   sql.NullString
	)
	if err := row.Scan(
		&job.ID,
		&job.OwnerID,
		&job.Status,
		&prefsJSON,
		&selectedTitle,
		&progressStage,
		&job.ProgressPercent,
		&progressMessage,
		&errorMessage,
		&errorKind,
		&artifactPath,
		&cancelRequested,
		&createdAt,
		&updatedAt,
		&lastHeartbeat,
	); err != nil {
		return nil, err
	}

	if strings.TrimSpace(prefsJSON) != "" {
		if err := json.Unmarshal([]byte(prefsJSON), &job.Preferences); err != nil {
			return nil, fmt.Errorf("decode preferences: %w", err)
		}
	}
	job.SelectedTitle = selectedTitle.String
	job.ProgressStage = progressStage.String
	job.ProgressMessage = progressMessage.String
	job.ErrorMessage = errorMessage.String
	job.ErrorKind = errorKind.String
	job.ArtifactPath = artifactPath.String
	job.CancelRequested = cancelRequested != 0

	var err error
	if job.CreatedAt, err = parseTimestamp(createdAt); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	if job.UpdatedAt, err = parseTimestamp(updatedAt); err != nil {
		return nil, fmt.Errorf("parse updated_at: %w", err)
	}
	if lastHeartbeat.Valid && strings.TrimSpace(lastHeartbeat.String) != "" {
		hb, err := parseTimestamp(lastHeartbeat.String)
		if err != nil {
			return nil, fmt.Errorf("parse last_heartbeat: %w", err)
		}
		job.LastHeartbeat = &hb
	}
	return &job, nil
}

func collectJobs(rows *sql.Rows) ([]*Job, error) {
	var out []*Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, job)
	}
	return out, rows.Err()
}

func parseTimestamp(value string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, strings.TrimSpace(value))
}

func nullableString(value string) any {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return value
}

func nullableTime(value *time.Time) any {
	if value == nil {
		return nil
	}
	return value.UTC().Format(time.RFC3339Nano)
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?, ", count), ", ")
}
