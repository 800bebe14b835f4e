package jobs

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"inkwell/internal/config"
	"inkwell/internal/services"
)

// Store manages job persistence backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the job database.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}

	dbPath := filepath.Join(cfg.Paths.DataDir, "jobs.db")
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: dbPath}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}

	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file location.
func (s *Store) Path() string {
	if s == nil {
		return ""
	}
	return s.path
}

// CreateJob validates the preferences and persists a new job in the created
// state.
func (s *Store) CreateJob(ctx context.Context, ownerID string, prefs Preferences) (*Job, error) {
	ownerID = strings.TrimSpace(ownerID)
	if ownerID == "" {
		return nil, services.Wrap(services.ErrValidation, "jobs", "create", "owner id is required", nil)
	}
	if err := prefs.Validate(); err != nil {
		return nil, err
	}

	prefsJSON, err := json.Marshal(prefs)
	if err != nil {
		return nil, fmt.Errorf("marshal preferences: %w", err)
	}

	id := uuid.NewString()
	now := time.Now().UTC()
	timestamp := now.Format(time.RFC3339Nano)

	_, err = s.execWithRetry(
		ctx,
		`INSERT INTO jobs (
            id, owner_id, status, preferences_json, progress_percent,
            created_at, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id,
		ownerID,
		StatusCreated,
		string(prefsJSON),
		0.0,
		timestamp,
		timestamp,
	)
	if err != nil {
		return nil, fmt.Errorf("insert job: %w", err)
	}

	return s.GetByID(ctx, id)
}

// GetByID fetches a job by identifier. Returns nil when the job does not exist.
func (s *Store) GetByID(ctx context.Context, id string) (*Job, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = ?`, id)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return job, nil
}

// Update persists changes to an existing job.
func (s *Store) Update(ctx context.Context, job *Job) error {
	if job == nil {
		return errors.New("job is nil")
	}
	prefsJSON, err := json.Marshal(job.Preferences)
	if err != nil {
		return fmt.Errorf("marshal preferences: %w", err)
	}
	job.UpdatedAt = time.Now().UTC()
	if err := s.execWithoutResultRetry(
		ctx,
		`UPDATE jobs
         SET owner_id = ?, status = ?, preferences_json = ?, selected_title = ?,
             progress_stage = ?, progress_percent = ?, progress_message = ?,
             error_message = ?, error_kind = ?, artifact_path = ?,
             cancel_requested = ?, updated_at = ?, last_heartbeat = ?
         WHERE id = ?`,
		job.OwnerID,
		job.Status,
		string(prefsJSON),
		nullableString(job.SelectedTitle),
		nullableString(job.ProgressStage),
		job.ProgressPercent,
		nullableString(job.ProgressMessage),
		nullableString(job.ErrorMessage),
		nullableString(job.ErrorKind),
		nullableString(job.ArtifactPath),
		boolToInt(job.CancelRequested),
		job.UpdatedAt.Format(time.RFC3339Nano),
		nullableTime(job.LastHeartbeat),
		job.ID,
	); err != nil {
		return fmt.Errorf("update job: %w", err)
	}
	return nil
}

// UpdateProgress persists only the progress triple for a job.
func (s *Store) UpdateProgress(ctx context.Context, job *Job) error {
	if job == nil {
		return errors.New("job is nil")
	}
	job.UpdatedAt = time.Now().UTC()
	if err := s.execWithoutResultRetry(
		ctx,
		`UPDATE jobs
         SET progress_stage = ?, progress_percent = ?, progress_message = ?, updated_at = ?
         WHERE id = ?`,
		nullableString(job.ProgressStage),
		job.ProgressPercent,
		nullableString(job.ProgressMessage),
		job.UpdatedAt.Format(time.RFC3339Nano),
		job.ID,
	); err != nil {
		return fmt.Errorf("update progress: %w", err)
	}
	return nil
}

// List returns jobs filtered by status set (or all jobs when no status is provided).
func (s *Store) List(ctx context.Context, statuses ...Status) ([]*Job, error) {
	var (
		rows *sql.Rows
		err  error
	)

	baseQuery := `SELECT ` + jobColumns + ` FROM jobs`
	orderClause := ` ORDER BY created_at`

	if len(statuses) == 0 {
		rows, err = s.db.QueryContext(ctx, baseQuery+orderClause)
	} else {
		placeholders := makePlaceholders(len(statuses))
		args := make([]any, len(statuses))
		for i, status := range statuses {
			args[i] = status
		}
		query := baseQuery + ` WHERE status IN (` + placeholders + `)` + orderClause
		rows, err = s.db.QueryContext(ctx, query, args...)
	}
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	return collectJobs(rows)
}

// ListByOwner returns an owner's jobs ordered by creation time.
func (s *Store) ListByOwner(ctx context.Context, ownerID string) ([]*Job, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT `+jobColumns+` FROM jobs WHERE owner_id = ? ORDER BY created_at`,
		ownerID,
	)
	if err != nil {
		return nil, fmt.Errorf("list jobs by owner: %w", err)
	}
	defer rows.Close()

	return collectJobs(rows)
}

// NextForStatuses returns the oldest job whose status is in the provided set
// and that has not been asked to cancel. Returns nil when none match.
func (s *Store) NextForStatuses(ctx context.Context, statuses ...Status) (*Job, error) {
	if len(statuses) == 0 {
		return nil, nil
	}
	placeholders := makePlaceholders(len(statuses))
	args := make([]any, len(statuses))
	for i, status := range statuses {
		args[i] = status
	}
	row := s.db.QueryRowContext(
		ctx,
		`SELECT `+jobColumns+` FROM jobs
         WHERE status IN (`+placeholders+`) AND cancel_requested = 0
         ORDER BY created_at LIMIT 1`,
		args...,
	)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("next job: %w", err)
	}
	return job, nil
}

// CancelRequestedJobs returns non-terminal jobs flagged for cancellation.
func (s *Store) CancelRequestedJobs(ctx context.Context) ([]*Job, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT `+jobColumns+` FROM jobs
         WHERE cancel_requested = 1 AND status NOT IN (?, ?, ?)
         ORDER BY created_at`,
		StatusCompleted, StatusFailed, StatusCancelled,
	)
	if err != nil {
		return nil, fmt.Errorf("list cancel-requested jobs: %w", err)
	}
	defer rows.Close()

	return collectJobs(rows)
}

// Health summarizes job counts across lifecycle buckets.
func (s *Store) Health(ctx context.Context) (HealthSummary, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(1) FROM jobs GROUP BY status`)
	if err != nil {
		return HealthSummary{}, fmt.Errorf("job health: %w", err)
	}
	defer rows.Close()

	var summary HealthSummary
	for rows.Next() {
		var (
			status Status
			count  int
		)
		if err := rows.Scan(&status, &count); err != nil {
			return HealthSummary{}, fmt.Errorf("scan health row: %w", err)
		}
		summary.Total += count
		switch {
		case status == StatusCompleted:
			summary.Completed += count
		case status == StatusFailed:
			summary.Failed += count
		case status == StatusCancelled:
			summary.Cancelled += count
		case status == StatusAwaitingDecision:
			summary.AwaitingDecision += count
		case status.IsProcessing():
			summary.Processing += count
		default:
			summary.Waiting += count
		}
	}
	return summary, rows.Err()
}

// Stats returns per-status job counts keyed by status string.
func (s *Store) Stats(ctx context.Context) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(1) FROM jobs GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("job stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[string]int)
	for rows.Next() {
		var (
			status string
			count  int
		)
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("scan stats row: %w", err)
		}
		stats[status] = count
	}
	return stats, rows.Err()
}
