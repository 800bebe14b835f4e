package decision

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"inkwell/internal/config"
	"inkwell/internal/jobs"
	"inkwell/internal/logging"
	"inkwell/internal/progress"
	"inkwell/internal/services"
)

// Resolver applies decision outcomes to jobs: explicit choices from owners
// and fallback outcomes for decisions that expire unanswered.
type Resolver struct {
	store  *jobs.Store
	hub    *progress.Hub
	cfg    *config.Config
	logger *slog.Logger
}

// NewResolver constructs a decision resolver.
func NewResolver(cfg *config.Config, store *jobs.Store, hub *progress.Hub, logger *slog.Logger) *Resolver {
	return &Resolver{
		store:  store,
		hub:    hub,
		cfg:    cfg,
		logger: logging.NewComponentLogger(logger, "decision"),
	}
}

// Timeout returns the configured decision expiry window.
func (r *Resolver) Timeout() time.Duration {
	minutes := r.cfg.Decisions.TimeoutMinutes
	if minutes <= 0 {
		minutes = 15
	}
	return time.Duration(minutes) * time.Minute
}

// Resolve applies an explicit choice to a pending decision and releases the
// job back to the pipeline.
func (r *Resolver) Resolve(ctx context.Context, decisionID, choice string) (*jobs.DecisionRequest, error) {
	logger := logging.WithContext(ctx, r.logger)

	resolved, err := r.store.ResolveDecision(ctx, decisionID, choice)
	if err != nil {
		return nil, err
	}

	job, err := r.store.GetByID(ctx, resolved.JobID)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, services.Wrap(services.ErrNotFound, "decision", "resolve", "job for decision no longer exists", nil)
	}
	if job.Status != jobs.StatusAwaitingDecision {
		return nil, services.Wrap(services.ErrFatal, "decision", "resolve",
			fmt.Sprintf("job is %s, not awaiting a decision", job.Status), nil)
	}

	if err := r.applyChoice(ctx, job, resolved, resolved.ResolvedValue, false); err != nil {
		return nil, err
	}
	logger.Info("decision resolved",
		logging.String(logging.FieldJobID, job.ID),
		logging.String("choice", resolved.ResolvedValue),
	)
	return resolved, nil
}

// ResolveForJob resolves a job's pending decision without requiring the
// decision id, for clients that only track jobs.
func (r *Resolver) ResolveForJob(ctx context.Context, jobID, choice string) (*jobs.DecisionRequest, error) {
	pending, err := r.store.PendingDecisionForJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if pending == nil {
		return nil, services.Wrap(services.ErrNotFound, "decision", "resolve", "job has no pending decision", nil)
	}
	return r.Resolve(ctx, pending.ID, choice)
}

// applyChoice records the selected title on the job and moves it to the
// decided status so the dispatcher picks it up again.
func (r *Resolver) applyChoice(ctx context.Context, job *jobs.Job, decision *jobs.DecisionRequest, choice string, fallback bool) error {
	job.SelectedTitle = choice
	job.Status = jobs.StatusDecided
	message := fmt.Sprintf("Title selected: %s", choice)
	if fallback {
		message = fmt.Sprintf("Decision expired, fallback title selected: %s", choice)
	}
	job.SetProgress("Decided", message, jobs.PercentFor(jobs.StageDiscovery))
	if err := r.store.Update(ctx, job); err != nil {
		return err
	}
	r.hub.Publish(progress.Event{
		JobID:   job.ID,
		Type:    progress.EventStageComplete,
		Stage:   string(jobs.StageDiscovery),
		Percent: job.ProgressPercent,
		Message: message,
	})
	return nil
}

// Sweep expires overdue decisions and applies the configured fallback
// policy. Returns the number of decisions it acted on.
func (r *Resolver) Sweep(ctx context.Context) (int, error) {
	logger := logging.WithContext(ctx, r.logger)

	expired, err := r.store.ExpirePendingDecisions(ctx, time.Now().UTC())
	if err != nil {
		return 0, err
	}

	handled := 0
	for _, decision := range expired {
		job, err := r.store.GetByID(ctx, decision.JobID)
		if err != nil {
			return handled, err
		}
		if job == nil || job.Status != jobs.StatusAwaitingDecision {
			continue
		}

		policy := strings.ToLower(strings.TrimSpace(r.cfg.Decisions.TitleFallback))
		switch policy {
		case config.FallbackFail:
			job.SetFailed(services.Kind(services.ErrDecisionTimeout), "Decision window expired with no choice")
			if err := r.store.Update(ctx, job); err != nil {
				return handled, err
			}
			r.hub.Publish(progress.Event{
				JobID:   job.ID,
				Type:    progress.EventJobError,
				Percent: job.ProgressPercent,
				Message: job.ErrorMessage,
			})
			logger.Warn("decision expired, job failed",
				logging.String(logging.FieldJobID, job.ID),
			)
		default:
			// first_option is the default policy.
			if len(decision.Options) == 0 {
				continue
			}
			if err := r.applyChoice(ctx, job, decision, decision.Options[0], true); err != nil {
				return handled, err
			}
			logger.Info("decision expired, first option applied",
				logging.String(logging.FieldJobID, job.ID),
				logging.String("choice", decision.Options[0]),
			)
		}
		handled++
	}
	return handled, nil
}

// Run sweeps on the configured interval until the context ends.
func (r *Resolver) Run(ctx context.Context) {
	interval := time.Duration(r.cfg.Decisions.SweepIntervalSeconds) * time.Second
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := r.Sweep(ctx); err != nil && ctx.Err() == nil {
				logging.WithContext(ctx, r.logger).Error("decision sweep failed", logging.Error(err))
			}
		}
	}
}
