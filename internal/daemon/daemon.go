package daemon

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"log/slog"

	"github.com/gofrs/flock"

	"inkwell/internal/config"
	"inkwell/internal/decision"
	"inkwell/internal/jobs"
	"inkwell/internal/logging"
	"inkwell/internal/notifications"
	"inkwell/internal/progress"
	"inkwell/internal/workflow"
)

// Daemon coordinates the background processing services and enforces
// single-instance execution.
type Daemon struct {
	cfg      *config.Config
	logger   *slog.Logger
	store    *jobs.Store
	workflow *workflow.Manager
	hub      *progress.Hub
	resolver *decision.Resolver
	notifier notifications.Service

	lockPath string
	lock     *flock.Flock
	api      *apiServer

	running atomic.Bool
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool
	PID          int
	Workflow     workflow.StatusSummary
	DBPath       string
	LockFilePath string
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, store *jobs.Store, logger *slog.Logger, wf *workflow.Manager, hub *progress.Hub, resolver *decision.Resolver) (*Daemon, error) {
	if cfg == nil || store == nil || logger == nil || wf == nil || hub == nil || resolver == nil {
		return nil, errors.New("daemon requires config, store, logger, workflow manager, hub, and resolver")
	}

	lockPath := filepath.Join(cfg.Paths.DataDir, "inkwelld.lock")
	d := &Daemon{
		cfg:      cfg,
		logger:   logger,
		store:    store,
		workflow: wf,
		hub:      hub,
		resolver: resolver,
		notifier: notifications.NewService(cfg),
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}

	api, err := newAPIServer(cfg, d, logger)
	if err != nil {
		return nil, err
	}
	d.api = api
	return d, nil
}

// Start launches background processing and acquires the daemon lock.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another inkwell daemon instance is already running")
	}

	d.ctx, d.cancel = context.WithCancel(ctx)
	if err := d.workflow.Start(d.ctx); err != nil {
		_ = d.lock.Unlock()
		d.cancel()
		d.ctx = nil
		d.cancel = nil
		return fmt.Errorf("start workflow: %w", err)
	}

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.resolver.Run(d.ctx)
	}()

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.publishHeartbeats(d.ctx)
	}()

	if d.api != nil {
		if err := d.api.start(d.ctx); err != nil {
			d.cancel()
			d.workflow.Stop()
			d.wg.Wait()
			_ = d.lock.Unlock()
			d.ctx = nil
			d.cancel = nil
			return err
		}
	}

	d.running.Store(true)
	d.logger.Info("inkwell daemon started",
		logging.String("lock", d.lockPath),
		logging.Int("pid", os.Getpid()))
	return nil
}

// Stop stops background processing and releases the daemon lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	if d.api != nil {
		d.api.stop()
	}
	d.workflow.Stop()
	d.wg.Wait()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.ctx = nil
	d.running.Store(false)
	d.logger.Info("inkwell daemon stopped")
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	if d.hub != nil {
		d.hub.Close()
	}
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// publishHeartbeats emits a periodic heartbeat event for every in-flight job
// so stream consumers can tell a slow stage apart from a dead daemon.
func (d *Daemon) publishHeartbeats(ctx context.Context) {
	interval := time.Duration(d.cfg.Progress.HeartbeatSeconds) * time.Second
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
		}
		inflight, err := d.store.List(ctx, jobs.ProcessingStatuses()...)
		if err != nil {
			if !errors.Is(err, context.Canceled) {
				d.logger.Warn("heartbeat listing failed", logging.Error(err))
			}
			continue
		}
		for _, job := range inflight {
			d.hub.Publish(progress.Event{
				JobID:   job.ID,
				Type:    progress.EventHeartbeat,
				Stage:   job.Status.StageKey(),
				Percent: job.ProgressPercent,
			})
		}
	}
}

// SubmitJob validates preferences, persists a new job, and notifies.
func (d *Daemon) SubmitJob(ctx context.Context, ownerID string, prefs jobs.Preferences) (*jobs.Job, error) {
	if d.store == nil {
		return nil, errors.New("job store unavailable")
	}
	if strings.TrimSpace(ownerID) == "" {
		return nil, errors.New("owner id is required")
	}
	job, err := d.store.CreateJob(ctx, ownerID, prefs)
	if err != nil {
		return nil, err
	}
	// Published here rather than at claim time so watchers attached right
	// after submission see the event even while the queue is busy.
	d.hub.Publish(progress.Event{
		JobID:   job.ID,
		Type:    progress.EventJobStarted,
		Percent: job.ProgressPercent,
		Message: "Job accepted",
	})
	if err := d.notifier.NotifyJobSubmitted(ctx, job.Preferences.Theme); err != nil {
		d.logger.Warn("submit notification failed", logging.Error(err))
	}
	d.logger.Info("job submitted",
		logging.String(logging.FieldJobID, job.ID),
		logging.String("theme", job.Preferences.Theme))
	return job, nil
}

// ListJobs returns jobs filtered by optional statuses.
func (d *Daemon) ListJobs(ctx context.Context, statuses []jobs.Status) ([]*jobs.Job, error) {
	if d.store == nil {
		return nil, errors.New("job store unavailable")
	}
	return d.store.List(ctx, statuses...)
}

// GetJob fetches a single job by id.
func (d *Daemon) GetJob(ctx context.Context, id string) (*jobs.Job, error) {
	if d.store == nil {
		return nil, errors.New("job store unavailable")
	}
	return d.store.GetByID(ctx, id)
}

// PendingDecision returns a job's pending decision, or nil when none exists.
func (d *Daemon) PendingDecision(ctx context.Context, jobID string) (*jobs.DecisionRequest, error) {
	if d.store == nil {
		return nil, errors.New("job store unavailable")
	}
	return d.store.PendingDecisionForJob(ctx, jobID)
}

// CancelJob flags a job for cancellation at the next stage boundary.
func (d *Daemon) CancelJob(ctx context.Context, id string) error {
	if d.store == nil {
		return errors.New("job store unavailable")
	}
	return d.store.RequestCancel(ctx, id)
}

// ResolveDecision applies an explicit title choice to a pending decision.
func (d *Daemon) ResolveDecision(ctx context.Context, decisionID, choice string) (*jobs.DecisionRequest, error) {
	return d.resolver.Resolve(ctx, decisionID, choice)
}

// ResolveDecisionForJob applies a title choice to a job's pending decision.
func (d *Daemon) ResolveDecisionForJob(ctx context.Context, jobID, choice string) (*jobs.DecisionRequest, error) {
	return d.resolver.ResolveForJob(ctx, jobID, choice)
}

// JobsHealth returns aggregate job diagnostics.
func (d *Daemon) JobsHealth(ctx context.Context) (jobs.HealthSummary, error) {
	if d.store == nil {
		return jobs.HealthSummary{}, errors.New("job store unavailable")
	}
	return d.store.Health(ctx)
}

// Events returns buffered progress events for a job starting after the given
// sequence, optionally blocking until new events arrive.
func (d *Daemon) Events(ctx context.Context, jobID string, since uint64, wait bool) ([]progress.Event, uint64, error) {
	return d.hub.Fetch(ctx, jobID, since, wait)
}

// TestNotification triggers a test notification using the current configuration.
func (d *Daemon) TestNotification(ctx context.Context) (bool, string, error) {
	if strings.TrimSpace(d.cfg.Notifications.NtfyTopic) == "" {
		return false, "ntfy topic not configured", nil
	}
	if err := d.notifier.TestNotification(ctx); err != nil {
		return false, "failed to send notification", err
	}
	return true, "test notification sent", nil
}

// Status returns the current daemon status.
func (d *Daemon) Status(ctx context.Context) Status {
	summary := d.workflow.Status(ctx)
	return Status{
		Running:      d.running.Load(),
		PID:          os.Getpid(),
		Workflow:     summary,
		DBPath:       d.store.Path(),
		LockFilePath: d.lockPath,
	}
}
