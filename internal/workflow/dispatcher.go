package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"inkwell/internal/jobs"
	"inkwell/internal/logging"
	"inkwell/internal/progress"
	"inkwell/internal/services"
)

func (m *Manager) runDispatcher(ctx context.Context) {
	defer m.wg.Done()

	startStatuses := jobs.StartStatuses()
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if err := m.heartbeat.ReclaimStale(ctx); err != nil {
			m.logger.Warn("reclaim stale jobs failed; stuck jobs may remain",
				logging.Error(err),
				logging.String(logging.FieldEventType, "heartbeat_reclaim_failed"),
			)
		}
		m.sweepCancellations(ctx)

		job, err := m.store.NextForStatuses(ctx, startStatuses...)
		if err != nil {
			m.handleFetchError(ctx, err)
			continue
		}
		if job == nil {
			m.waitForJobOrShutdown(ctx)
			continue
		}

		// Claim synchronously so the next loop iteration never sees the
		// same job in a claimable status.
		claimed, err := m.claimJob(ctx, job)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			m.setLastError(err)
			m.logger.Error("failed to claim job", logging.Error(err), logging.String(logging.FieldJobID, job.ID))
			m.waitForJobOrShutdown(ctx)
			continue
		}
		if !claimed {
			continue
		}

		if err := m.active.Acquire(ctx, 1); err != nil {
			return
		}
		m.wg.Add(1)
		go func(job *jobs.Job) {
			defer m.wg.Done()
			defer m.active.Release(1)
			m.runStageForJob(ctx, job)
		}(job)
	}
}

// claimJob moves a claimable job into its stage's processing status. Reports
// false when the job turned out to be cancelled instead.
func (m *Manager) claimJob(ctx context.Context, job *jobs.Job) (bool, error) {
	if job.CancelRequested {
		m.cancelJob(ctx, job)
		return false, nil
	}
	stg, ok := jobs.StageForStartStatus(job.Status)
	if !ok {
		return false, fmt.Errorf("no stage claims status %s", job.Status)
	}

	now := time.Now().UTC()
	job.Status = jobs.ProcessingStatusFor(stg)
	job.ErrorMessage = ""
	job.ErrorKind = ""
	job.LastHeartbeat = &now
	if err := m.store.Update(ctx, job); err != nil {
		return false, fmt.Errorf("persist processing transition: %w", err)
	}
	m.setLastJob(job)
	return true, nil
}

// sweepCancellations cancels queued jobs whose owners asked for it. In-flight
// stages observe the flag at their own boundaries.
func (m *Manager) sweepCancellations(ctx context.Context) {
	flagged, err := m.store.CancelRequestedJobs(ctx)
	if err != nil {
		m.logger.Warn("failed to list cancel-requested jobs", logging.Error(err))
		return
	}
	for _, job := range flagged {
		if job.Status.IsProcessing() {
			continue
		}
		m.cancelJob(ctx, job)
	}
}

func (m *Manager) cancelJob(ctx context.Context, job *jobs.Job) {
	job.SetCancelled()
	if err := m.store.Update(ctx, job); err != nil {
		m.logger.Error("failed to persist cancellation", logging.Error(err), logging.String(logging.FieldJobID, job.ID))
		return
	}
	m.setLastJob(job)
	m.hub.Publish(progress.Event{
		JobID:   job.ID,
		Type:    progress.EventJobCancelled,
		Percent: job.ProgressPercent,
		Message: jobs.UserCancelMessage,
	})
	m.logger.Info("job cancelled",
		logging.String(logging.FieldJobID, job.ID),
		logging.String(logging.FieldEventType, "job_cancelled"),
	)
}

func (m *Manager) handleFetchError(ctx context.Context, err error) {
	m.setLastError(err)
	m.logger.Error("failed to fetch next job",
		logging.Error(err),
		logging.String(logging.FieldEventType, "queue_fetch_failed"),
	)
	retry := time.Duration(m.cfg.Workflow.ErrorRetryInterval) * time.Second
	if retry <= 0 {
		retry = 5 * time.Second
	}
	select {
	case <-ctx.Done():
	case <-time.After(retry):
	}
}

func (m *Manager) waitForJobOrShutdown(ctx context.Context) {
	poll := m.pollInterval
	if poll <= 0 {
		poll = time.Second
	}
	select {
	case <-ctx.Done():
	case <-time.After(poll):
	}
}

// stageRequestContext tags the context with identifiers the logging layer
// surfaces on every line.
func (m *Manager) stageRequestContext(ctx context.Context, job *jobs.Job, stg jobs.Stage) context.Context {
	ctx = services.WithJobID(ctx, job.ID)
	ctx = services.WithOwnerID(ctx, job.OwnerID)
	ctx = services.WithStage(ctx, string(stg))
	return services.WithRequestID(ctx, uuid.NewString())
}
