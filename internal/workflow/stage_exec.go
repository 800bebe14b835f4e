package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"inkwell/internal/jobs"
	"inkwell/internal/logging"
	"inkwell/internal/progress"
	"inkwell/internal/services"
	"inkwell/internal/stage"
)

// runStageForJob executes the claimed stage on its own worker, including the
// manager-level retry loop for recoverable failures.
func (m *Manager) runStageForJob(ctx context.Context, job *jobs.Job) {
	stg, ok := stageForProcessingStatus(job.Status)
	if !ok {
		m.logger.Warn("claimed job has no processing stage", logging.String("status", string(job.Status)))
		return
	}
	ctx = m.stageRequestContext(ctx, job, stg)
	logger := logging.WithContext(ctx, m.logger)

	handler := m.handlerFor(stg)
	results, err := m.store.StageResults(ctx, job.ID)
	if err != nil {
		m.failJob(ctx, logger, job, stg, fmt.Errorf("load stage results: %w", err))
		return
	}
	sc := &stage.Context{Job: job, Results: results}

	stageStart := time.Now()
	m.publishStageEvent(job, progress.EventStageStart, stg, fmt.Sprintf("%s started", stg))
	logger.Info("stage started", logging.String(logging.FieldEventType, "stage_start"))

	if err := handler.Prepare(ctx, sc); err != nil {
		m.failJob(ctx, logger, job, stg, err)
		return
	}
	if err := m.store.Update(ctx, job); err != nil {
		m.failJob(ctx, logger, job, stg, fmt.Errorf("persist stage preparation: %w", err))
		return
	}

	outcome, execErr := m.executeWithRetry(ctx, logger, handler, sc)
	if execErr != nil {
		if errors.Is(execErr, context.Canceled) {
			logger.Debug("stage interrupted by shutdown")
			return
		}
		m.failJob(ctx, logger, job, stg, execErr)
		return
	}

	// Cancellation observed after the stage call returns wins over the
	// stage result.
	if cancelled, err := m.cancelIfRequested(ctx, job); err != nil {
		m.failJob(ctx, logger, job, stg, err)
		return
	} else if cancelled {
		return
	}

	if err := m.completeStage(ctx, logger, job, stg, outcome); err != nil {
		m.failJob(ctx, logger, job, stg, err)
		return
	}
	logger.Info("stage completed",
		logging.String(logging.FieldEventType, "stage_complete"),
		logging.String("next_status", string(job.Status)),
		logging.Duration("stage_duration", time.Since(stageStart)),
	)
}

// executeWithRetry runs the handler with heartbeats, retrying recoverable
// failures with exponential backoff up to the configured attempt cap.
func (m *Manager) executeWithRetry(ctx context.Context, logger *slog.Logger, handler stage.Handler, sc *stage.Context) (stage.Outcome, error) {
	attempts := m.cfg.Workflow.StageRetryLimit
	if attempts <= 0 {
		attempts = 1
	}
	backoff := time.Duration(m.cfg.Workflow.RetryBackoffSeconds) * time.Second
	maxBackoff := time.Duration(m.cfg.Workflow.RetryBackoffMaxSeconds) * time.Second

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		outcome, err := m.executeWithHeartbeat(ctx, handler, sc)
		if err == nil {
			return outcome, nil
		}
		lastErr = err
		if errors.Is(err, context.Canceled) || !services.IsRetryable(err) || attempt == attempts {
			break
		}

		logger.Warn("stage attempt failed, retrying",
			logging.Error(err),
			logging.Int("attempt", attempt),
			logging.Int("attempts_allowed", attempts),
		)
		m.publishStageEvent(sc.Job, progress.EventStageProgress, handler.Stage(),
			fmt.Sprintf("Retrying after transient failure (attempt %d of %d)", attempt+1, attempts))

		if backoff > 0 {
			select {
			case <-ctx.Done():
				return stage.Outcome{}, ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
			if maxBackoff > 0 && backoff > maxBackoff {
				backoff = maxBackoff
			}
		}
	}
	return stage.Outcome{}, lastErr
}

func (m *Manager) executeWithHeartbeat(ctx context.Context, handler stage.Handler, sc *stage.Context) (stage.Outcome, error) {
	hbCtx, hbCancel := context.WithCancel(ctx)
	var hbWG sync.WaitGroup
	hbWG.Add(1)
	go m.heartbeat.StartLoop(hbCtx, &hbWG, sc.Job.ID)

	execCtx := stage.WithProgress(ctx, func(message string, percent float64) {
		sc.Job.SetProgress(sc.Job.ProgressStage, message, percent)
		if err := m.store.UpdateProgress(ctx, sc.Job); err == nil {
			m.hub.Publish(progress.Event{
				JobID:   sc.Job.ID,
				Type:    progress.EventStageProgress,
				Stage:   string(handler.Stage()),
				Percent: sc.Job.ProgressPercent,
				Message: message,
			})
		}
	})
	outcome, execErr := handler.Execute(execCtx, sc)
	hbCancel()
	hbWG.Wait()
	return outcome, execErr
}

// completeStage persists the stage result and either parks the job on a
// decision or advances it to the stage's done status.
func (m *Manager) completeStage(ctx context.Context, logger *slog.Logger, job *jobs.Job, stg jobs.Stage, outcome stage.Outcome) error {
	if outcome.Output != "" {
		if err := m.store.SaveStageResult(ctx, jobs.StageResult{
			JobID:        job.ID,
			Stage:        stg,
			OutputJSON:   outcome.Output,
			FallbackUsed: outcome.FallbackUsed,
		}); err != nil {
			return err
		}
	}

	job.Status = jobs.DoneStatusFor(stg)
	job.LastHeartbeat = nil
	job.SetProgress(job.ProgressStage, fmt.Sprintf("%s complete", stg), jobs.PercentFor(stg))

	if outcome.Decision != nil {
		decision, err := m.store.CreateDecision(ctx, job.ID, stg, outcome.Decision.Options,
			time.Now().UTC().Add(m.decisionTimeout()))
		if err != nil {
			return err
		}
		job.Status = jobs.StatusAwaitingDecision
		job.SetProgress("Awaiting decision", "Waiting for a title choice", jobs.PercentFor(stg))
		if err := m.store.Update(ctx, job); err != nil {
			return fmt.Errorf("persist decision transition: %w", err)
		}
		m.setLastJob(job)
		m.hub.Publish(progress.Event{
			JobID:   job.ID,
			Type:    progress.EventDecisionRequired,
			Stage:   string(stg),
			Percent: job.ProgressPercent,
			Message: "Decision required",
			Fields:  map[string]any{"decision_id": decision.ID, "options": decision.Options},
		})
		if err := m.notifier.NotifyDecisionRequired(ctx, job.ID, decision.Options); err != nil {
			logger.Warn("decision notification failed", logging.Error(err))
		}
		return nil
	}

	if err := m.store.Update(ctx, job); err != nil {
		return fmt.Errorf("persist stage result: %w", err)
	}
	m.setLastJob(job)
	m.publishStageEvent(job, progress.EventStageComplete, stg, fmt.Sprintf("%s complete", stg))

	if job.Status == jobs.StatusCompleted {
		m.hub.Publish(progress.Event{
			JobID:   job.ID,
			Type:    progress.EventJobComplete,
			Percent: job.ProgressPercent,
			Message: "Bundle ready",
		})
		if err := m.notifier.NotifyJobCompleted(ctx, job.SelectedTitle, job.ArtifactPath); err != nil {
			logger.Warn("completion notification failed", logging.Error(err))
		}
	}
	return nil
}

// failJob records a terminal failure with its machine-readable kind.
func (m *Manager) failJob(ctx context.Context, logger *slog.Logger, job *jobs.Job, stg jobs.Stage, stageErr error) {
	m.setLastError(stageErr)
	kind := services.Kind(stageErr)
	message := stageErr.Error()
	job.SetFailed(kind, message)
	job.ProgressStage = "Failed"

	logger.Error("stage failed",
		logging.Error(stageErr),
		logging.String(logging.FieldEventType, "stage_failure"),
		logging.String("error_kind", kind),
	)

	if err := m.store.Update(ctx, job); err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Debug("daemon shutting down, could not persist stage failure")
		} else {
			logger.Error("failed to persist stage failure", logging.Error(err))
		}
		return
	}
	m.setLastJob(job)
	m.hub.Publish(progress.Event{
		JobID:   job.ID,
		Type:    progress.EventJobError,
		Stage:   string(stg),
		Percent: job.ProgressPercent,
		Message: message,
		Fields:  map[string]any{"error_kind": kind},
	})
	if err := m.notifier.NotifyJobFailed(ctx, job.SelectedTitle, stageErr); err != nil {
		logger.Warn("failure notification failed", logging.Error(err))
	}
}

// cancelIfRequested re-reads the cancel flag and cancels the job when set.
func (m *Manager) cancelIfRequested(ctx context.Context, job *jobs.Job) (bool, error) {
	current, err := m.store.GetByID(ctx, job.ID)
	if err != nil {
		return false, err
	}
	if current == nil || !current.CancelRequested {
		return false, nil
	}
	job.CancelRequested = true
	m.cancelJob(ctx, job)
	return true, nil
}

func (m *Manager) publishStageEvent(job *jobs.Job, eventType progress.EventType, stg jobs.Stage, message string) {
	m.hub.Publish(progress.Event{
		JobID:   job.ID,
		Type:    eventType,
		Stage:   string(stg),
		Percent: job.ProgressPercent,
		Message: message,
	})
}

func (m *Manager) decisionTimeout() time.Duration {
	minutes := m.cfg.Decisions.TimeoutMinutes
	if minutes <= 0 {
		minutes = 15
	}
	return time.Duration(minutes) * time.Minute
}

func stageForProcessingStatus(status jobs.Status) (jobs.Stage, bool) {
	start, ok := jobs.RollbackStatus(status)
	if !ok {
		return "", false
	}
	return jobs.StageForStartStatus(start)
}
