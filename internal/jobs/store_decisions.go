package jobs

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"inkwell/internal/services"
)

// CreateDecision records a pending decision for a job. The options slice must
// never be empty; the pipeline always has at least one candidate to offer.
func (s *Store) CreateDecision(ctx context.Context, jobID string, stage Stage, options []string, expiresAt time.Time) (*DecisionRequest, error) {
	if len(options) == 0 {
		return nil, services.Wrap(services.ErrValidation, "jobs", "create-decision", "decision requires at least one option", nil)
	}
	optionsJSON, err := json.Marshal(options)
	if err != nil {
		return nil, fmt.Errorf("marshal options: %w", err)
	}

	id := uuid.NewString()
	now := time.Now().UTC()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin decision tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	// At most one open decision per job: a stale pending row left behind by
	// a crash between decision insert and the job's status transition would
	// otherwise race the fresh one in the sweep.
	if _, err := tx.ExecContext(
		ctx,
		`UPDATE decision_requests SET status = ? WHERE job_id = ? AND status = ?`,
		DecisionExpired, jobID, DecisionPending,
	); err != nil {
		return nil, fmt.Errorf("supersede pending decisions: %w", err)
	}

	if _, err := tx.ExecContext(
		ctx,
		`INSERT INTO decision_requests (id, job_id, stage, options_json, status, created_at, expires_at)
         VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id,
		jobID,
		stage,
		string(optionsJSON),
		DecisionPending,
		now.Format(time.RFC3339Nano),
		expiresAt.UTC().Format(time.RFC3339Nano),
	); err != nil {
		return nil, fmt.Errorf("insert decision: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit decision: %w", err)
	}
	return s.GetDecision(ctx, id)
}

// GetDecision fetches a decision by identifier. Returns nil when absent.
func (s *Store) GetDecision(ctx context.Context, id string) (*DecisionRequest, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+decisionColumns+` FROM decision_requests WHERE id = ?`, id)
	decision, err := scanDecision(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get decision: %w", err)
	}
	return decision, nil
}

// PendingDecisionForJob returns the job's open decision, or nil when the job
// is not waiting on one.
func (s *Store) PendingDecisionForJob(ctx context.Context, jobID string) (*DecisionRequest, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT `+decisionColumns+` FROM decision_requests
         WHERE job_id = ? AND status = ? ORDER BY created_at DESC LIMIT 1`,
		jobID, DecisionPending,
	)
	decision, err := scanDecision(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("pending decision: %w", err)
	}
	return decision, nil
}

// ResolveDecision marks a pending decision resolved with the chosen value.
// The transition is transactional so concurrent resolvers cannot both win.
func (s *Store) ResolveDecision(ctx context.Context, id, value string) (*DecisionRequest, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, services.Wrap(services.ErrInvalidChoice, "jobs", "resolve-decision", "choice must not be empty", nil)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin resolve tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	row := tx.QueryRowContext(ctx, `SELECT `+decisionColumns+` FROM decision_requests WHERE id = ?`, id)
	decision, err := scanDecision(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, services.Wrap(services.ErrNotFound, "jobs", "resolve-decision", "decision not found", nil)
	}
	if err != nil {
		return nil, fmt.Errorf("load decision: %w", err)
	}

	switch decision.Status {
	case DecisionResolved:
		return nil, services.Wrap(services.ErrAlreadyResolved, "jobs", "resolve-decision",
			fmt.Sprintf("decision already resolved to %q", decision.ResolvedValue), nil)
	case DecisionExpired:
		return nil, services.Wrap(services.ErrDecisionExpired, "jobs", "resolve-decision", "decision window has expired", nil)
	}
	// The sweep may not have marked it yet; a late resolution still loses.
	// The row stays pending so the sweep can apply the fallback policy.
	if time.Now().UTC().After(decision.ExpiresAt) {
		return nil, services.Wrap(services.ErrDecisionExpired, "jobs", "resolve-decision", "decision window has expired", nil)
	}
	if !decision.HasOption(value) {
		return nil, services.Wrap(services.ErrInvalidChoice, "jobs", "resolve-decision",
			fmt.Sprintf("%q is not one of the offered options", value), nil)
	}

	now := time.Now().UTC()
	if _, err := tx.ExecContext(
		ctx,
		`UPDATE decision_requests SET status = ?, resolved_value = ?, resolved_at = ? WHERE id = ?`,
		DecisionResolved, value, now.Format(time.RFC3339Nano), id,
	); err != nil {
		return nil, fmt.Errorf("resolve decision: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit resolve: %w", err)
	}

	decision.Status = DecisionResolved
	decision.ResolvedValue = value
	decision.ResolvedAt = &now
	return decision, nil
}

// ExpirePendingDecisions marks pending decisions whose deadline is at or
// before cutoff as expired and returns them for fallback handling.
func (s *Store) ExpirePendingDecisions(ctx context.Context, cutoff time.Time) ([]*DecisionRequest, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT `+decisionColumns+` FROM decision_requests
         WHERE status = ? AND expires_at <= ? ORDER BY expires_at`,
		DecisionPending, cutoff.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return nil, fmt.Errorf("list expired decisions: %w", err)
	}
	defer rows.Close()

	var expired []*DecisionRequest
	for rows.Next() {
		decision, err := scanDecision(rows)
		if err != nil {
			return nil, err
		}
		expired = append(expired, decision)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, decision := range expired {
		if err := s.execWithoutResultRetry(
			ctx,
			`UPDATE decision_requests SET status = ? WHERE id = ? AND status = ?`,
			DecisionExpired, decision.ID, DecisionPending,
		); err != nil {
			return nil, fmt.Errorf("expire decision %s: %w", decision.ID, err)
		}
		decision.Status = DecisionExpired
	}
	return expired, nil
}

const decisionColumns = `id, job_id, stage, options_json, status, resolved_value, created_at, expires_at, resolved_at`

func scanDecision(row rowScanner) (*DecisionRequest, error) {
	var (
		decision      DecisionRequest
		optionsJSON   string
		resolvedValue sql.NullString
		createdAt     string
		expiresAt     string
		resolvedAt    sql.NullString
	)
	if err := row.Scan(
		&decision.ID,
		&decision.JobID,
		&decision.Stage,
		&optionsJSON,
		&decision.Status,
		&resolvedValue,
		&createdAt,
		&expiresAt,
		&resolvedAt,
	); err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(optionsJSON), &decision.Options); err != nil {
		return nil, fmt.Errorf("decode options: %w", err)
	}
	decision.ResolvedValue = resolvedValue.String

	var err error
	if decision.CreatedAt, err = parseTimestamp(createdAt); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	if decision.ExpiresAt, err = parseTimestamp(expiresAt); err != nil {
		return nil, fmt.Errorf("parse expires_at: %w", err)
	}
	if resolvedAt.Valid && strings.TrimSpace(resolvedAt.String) != "" {
		ts, err := parseTimestamp(resolvedAt.String)
		if err != nil {
			return nil, fmt.Errorf("parse resolved_at: %w", err)
		}
		decision.ResolvedAt = &ts
	}
	return &decision, nil
}
