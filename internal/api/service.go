package api

import (
	"context"

	"inkwell/internal/jobs"
)

// JobReader abstracts job persistence interactions needed for API queries.
type JobReader interface {
	List(ctx context.Context, statuses ...jobs.Status) ([]*jobs.Job, error)
	ListByOwner(ctx context.Context, ownerID string) ([]*jobs.Job, error)
	Stats(ctx context.Context) (map[string]int, error)
	GetByID(ctx context.Context, id string) (*jobs.Job, error)
	PendingDecisionForJob(ctx context.Context, jobID string) (*jobs.DecisionRequest, error)
}

// JobService exposes read-only job operations returning API DTOs.
type JobService struct {
	store JobReader
}

// NewJobService constructs a JobService around the provided reader.
func NewJobService(store JobReader) *JobService {
	if store == nil {
		return nil
	}
	return &JobService{store: store}
}

// List returns jobs filtered by status.
func (s *JobService) List(ctx context.Context, statuses ...jobs.Status) ([]Job, error) {
	if s == nil || s.store == nil {
		return nil, nil
	}
	records, err := s.store.List(ctx, statuses...)
	if err != nil {
		return nil, err
	}
	return FromJobs(records), nil
}

// ListByOwner returns jobs submitted by a single owner.
func (s *JobService) ListByOwner(ctx context.Context, ownerID string) ([]Job, error) {
	if s == nil || s.store == nil {
		return nil, nil
	}
	records, err := s.store.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	return FromJobs(records), nil
}

// Stats returns job summary counts keyed by status string.
func (s *JobService) Stats(ctx context.Context) (map[string]int, error) {
	if s == nil || s.store == nil {
		return nil, nil
	}
	return s.store.Stats(ctx)
}

// Describe fetches a single job, embedding its pending decision when one
// exists.
func (s *JobService) Describe(ctx context.Context, id string) (*Job, error) {
	if s == nil || s.store == nil {
		return nil, nil
	}
	job, err := s.store.GetByID(ctx, id)
	if err != nil || job == nil {
		return nil, err
	}
	dto := FromJob(job)
	if job.Status == jobs.StatusAwaitingDecision {
		pending, err := s.store.PendingDecisionForJob(ctx, job.ID)
		if err != nil {
			return nil, err
		}
		if pending != nil {
			decision := FromDecision(pending)
			dto.Decision = &decision
		}
	}
	return &dto, nil
}
