package workflow_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"inkwell/internal/config"
	"inkwell/internal/jobs"
	"inkwell/internal/logging"
	"inkwell/internal/progress"
	"inkwell/internal/services"
	"inkwell/internal/stage"
	"inkwell/internal/testsupport"
	"inkwell/internal/workflow"
)

type fakeHandler struct {
	stg     jobs.Stage
	execute func(context.Context, *stage.Context) (stage.Outcome, error)
}

func (f *fakeHandler) Stage() jobs.Stage { return f.stg }

func (f *fakeHandler) Prepare(ctx context.Context, sc *stage.Context) error { return nil }

func (f *fakeHandler) Execute(ctx context.Context, sc *stage.Context) (stage.Outcome, error) {
	if f.execute != nil {
		return f.execute(ctx, sc)
	}
	output, err := json.Marshal(map[string]string{"stage": string(f.stg)})
	if err != nil {
		return stage.Outcome{}, err
	}
	return stage.Outcome{Output: string(output)}, nil
}

func (f *fakeHandler) HealthCheck(ctx context.Context) stage.Health {
	return stage.Healthy(string(f.stg))
}

// registerDefaults wires passing handlers for every stage, with discovery
// offering a decision like the real pipeline does.
func registerDefaults(m *workflow.Manager, overrides map[jobs.Stage]*fakeHandler) {
	for _, stg := range jobs.Stages() {
		if handler, ok := overrides[stg]; ok {
			m.Register(handler)
			continue
		}
		if stg == jobs.StageDiscovery {
			m.Register(&fakeHandler{stg: stg, execute: func(ctx context.Context, sc *stage.Context) (stage.Outcome, error) {
				return stage.Outcome{
					Output:   `{"candidates":["Alpha","Beta"]}`,
					Decision: &stage.DecisionPrompt{Options: []string{"Alpha", "Beta"}},
				}, nil
			}})
			continue
		}
		m.Register(&fakeHandler{stg: stg})
	}
}

func newManager(t *testing.T, cfg *config.Config, store *jobs.Store, hub *progress.Hub) *workflow.Manager {
	t.Helper()
	m := workflow.NewManager(cfg, store, hub, logging.NewNop())
	t.Cleanup(m.Stop)
	return m
}

func waitForStatus(t *testing.T, store *jobs.Store, jobID string, want jobs.Status) *jobs.Job {
	t.Helper()
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		job, err := store.GetByID(context.Background(), jobID)
		if err != nil {
			t.Fatalf("GetByID: %v", err)
		}
		if job != nil && job.Status == want {
			return job
		}
		if job != nil && job.Status.IsTerminal() && !want.IsTerminal() {
			t.Fatalf("job reached terminal status %s (error %q) while waiting for %s",
				job.Status, job.ErrorMessage, want)
		}
		time.Sleep(10 * time.Millisecond)
	}
	job, _ := store.GetByID(context.Background(), jobID)
	t.Fatalf("timed out waiting for %s; job = %+v", want, job)
	return nil
}

func resolvePending(t *testing.T, store *jobs.Store, jobID, choice string) {
	t.Helper()
	ctx := context.Background()
	pending, err := store.PendingDecisionForJob(ctx, jobID)
	if err != nil || pending == nil {
		t.Fatalf("pending decision: %v %v", pending, err)
	}
	if _, err := store.ResolveDecision(ctx, pending.ID, choice); err != nil {
		t.Fatalf("ResolveDecision: %v", err)
	}
	job, err := store.GetByID(ctx, jobID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	job.SelectedTitle = choice
	job.Status = jobs.StatusDecided
	if err := store.Update(ctx, job); err != nil {
		t.Fatalf("Update: %v", err)
	}
}

func TestManagerRunsJobThroughPipeline(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	hub := progress.NewHub(64)
	m := newManager(t, cfg, store, hub)
	registerDefaults(m, nil)

	if err := m.Start(t.Context()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	job := testsupport.NewJob(t, store, "owner-1", testsupport.Preferences())

	waitForStatus(t, store, job.ID, jobs.StatusAwaitingDecision)
	resolvePending(t, store, job.ID, "Alpha")
	done := waitForStatus(t, store, job.ID, jobs.StatusCompleted)

	if done.ProgressPercent != 100 {
		t.Fatalf("final percent = %v, want 100", done.ProgressPercent)
	}
	if done.SelectedTitle != "Alpha" {
		t.Fatalf("selected title = %q", done.SelectedTitle)
	}

	results, err := store.StageResults(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("StageResults: %v", err)
	}
	for _, stg := range jobs.Stages() {
		if _, ok := results[stg]; !ok {
			t.Fatalf("missing stage result for %s", stg)
		}
	}

	events, _ := hub.Tail(job.ID)
	var sawComplete bool
	for _, evt := range events {
		if evt.Type == progress.EventJobComplete {
			sawComplete = true
		}
	}
	if !sawComplete {
		t.Fatalf("no job_complete event in %d events", len(events))
	}
}

func TestManagerRetriesRecoverableFailures(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Workflow.StageRetryLimit = 3
	cfg.Workflow.RetryBackoffSeconds = 0
	store := testsupport.MustOpenStore(t, cfg)
	hub := progress.NewHub(64)
	m := newManager(t, cfg, store, hub)

	var attempts atomic.Int64
	flaky := &fakeHandler{stg: jobs.StageOnboarding, execute: func(ctx context.Context, sc *stage.Context) (stage.Outcome, error) {
		if attempts.Add(1) < 3 {
			return stage.Outcome{}, services.Wrap(services.ErrRecoverable, "onboarding", "execute", "transient", nil)
		}
		return stage.Outcome{Output: `{"ok":true}`}, nil
	}}
	registerDefaults(m, map[jobs.Stage]*fakeHandler{jobs.StageOnboarding: flaky})

	if err := m.Start(t.Context()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	job := testsupport.NewJob(t, store, "owner-1", testsupport.Preferences())

	waitForStatus(t, store, job.ID, jobs.StatusAwaitingDecision)
	if got := attempts.Load(); got != 3 {
		t.Fatalf("attempts = %d, want 3", got)
	}
}

func TestManagerFailsAfterRetryExhaustion(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Workflow.StageRetryLimit = 2
	cfg.Workflow.RetryBackoffSeconds = 0
	store := testsupport.MustOpenStore(t, cfg)
	hub := progress.NewHub(64)
	m := newManager(t, cfg, store, hub)

	var attempts atomic.Int64
	broken := &fakeHandler{stg: jobs.StageOnboarding, execute: func(ctx context.Context, sc *stage.Context) (stage.Outcome, error) {
		attempts.Add(1)
		return stage.Outcome{}, services.Wrap(services.ErrRecoverable, "onboarding", "execute", "backend down", nil)
	}}
	registerDefaults(m, map[jobs.Stage]*fakeHandler{jobs.StageOnboarding: broken})

	if err := m.Start(t.Context()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	job := testsupport.NewJob(t, store, "owner-1", testsupport.Preferences())

	failed := waitForStatus(t, store, job.ID, jobs.StatusFailed)
	if attempts.Load() != 2 {
		t.Fatalf("attempts = %d, want 2", attempts.Load())
	}
	if failed.ErrorKind != "recoverable" {
		t.Fatalf("error kind = %q", failed.ErrorKind)
	}

	events, _ := hub.Tail(job.ID)
	var sawError bool
	for _, evt := range events {
		if evt.Type == progress.EventJobError {
			sawError = true
		}
	}
	if !sawError {
		t.Fatal("no job_error event published")
	}
}

func TestValidationFailureIsNotRetried(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Workflow.StageRetryLimit = 3
	cfg.Workflow.RetryBackoffSeconds = 0
	store := testsupport.MustOpenStore(t, cfg)
	m := newManager(t, cfg, store, progress.NewHub(64))

	var attempts atomic.Int64
	rejecting := &fakeHandler{stg: jobs.StageOnboarding, execute: func(ctx context.Context, sc *stage.Context) (stage.Outcome, error) {
		attempts.Add(1)
		return stage.Outcome{}, services.Wrap(services.ErrValidation, "onboarding", "execute", "bad preferences", nil)
	}}
	registerDefaults(m, map[jobs.Stage]*fakeHandler{jobs.StageOnboarding: rejecting})

	if err := m.Start(t.Context()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	job := testsupport.NewJob(t, store, "owner-1", testsupport.Preferences())

	failed := waitForStatus(t, store, job.ID, jobs.StatusFailed)
	if attempts.Load() != 1 {
		t.Fatalf("attempts = %d, want 1", attempts.Load())
	}
	if failed.ErrorKind != "validation" {
		t.Fatalf("error kind = %q", failed.ErrorKind)
	}
}

func TestStartResumesInterruptedJob(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	// Simulate a crash mid-research: processing status with completed
	// upstream results.
	job := testsupport.NewJob(t, store, "owner-1", testsupport.Preferences())
	job.Status = jobs.StatusResearching
	job.SelectedTitle = "Alpha"
	if err := store.Update(ctx, job); err != nil {
		t.Fatalf("Update: %v", err)
	}
	for _, stg := range []jobs.Stage{jobs.StageOnboarding, jobs.StageDiscovery} {
		if err := store.SaveStageResult(ctx, jobs.StageResult{
			JobID: job.ID, Stage: stg, OutputJSON: fmt.Sprintf(`{"stage":%q}`, stg),
		}); err != nil {
			t.Fatalf("SaveStageResult: %v", err)
		}
	}

	var rediscovered atomic.Bool
	m := newManager(t, cfg, store, progress.NewHub(64))
	registerDefaults(m, map[jobs.Stage]*fakeHandler{
		jobs.StageDiscovery: {stg: jobs.StageDiscovery, execute: func(ctx context.Context, sc *stage.Context) (stage.Outcome, error) {
			rediscovered.Store(true)
			return stage.Outcome{}, errors.New("discovery must not re-run")
		}},
	})
	if err := m.Start(t.Context()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	done := waitForStatus(t, store, job.ID, jobs.StatusCompleted)
	if rediscovered.Load() {
		t.Fatal("completed discovery stage was re-executed")
	}
	if done.ProgressPercent != 100 {
		t.Fatalf("final percent = %v", done.ProgressPercent)
	}
}

func TestCancelRequestedQueuedJobIsCancelled(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	hub := progress.NewHub(64)
	m := newManager(t, cfg, store, hub)
	registerDefaults(m, nil)

	job := testsupport.NewJob(t, store, "owner-1", testsupport.Preferences())
	if err := store.RequestCancel(context.Background(), job.ID); err != nil {
		t.Fatalf("RequestCancel: %v", err)
	}

	if err := m.Start(t.Context()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	cancelled := waitForStatus(t, store, job.ID, jobs.StatusCancelled)
	if cancelled.ProgressMessage != jobs.UserCancelMessage {
		t.Fatalf("progress message = %q", cancelled.ProgressMessage)
	}

	events, _ := hub.Tail(job.ID)
	var sawCancelled bool
	for _, evt := range events {
		if evt.Type == progress.EventJobCancelled {
			sawCancelled = true
		}
	}
	if !sawCancelled {
		t.Fatal("no job_cancelled event published")
	}
}

func TestCancelMidStageLeavesOtherJobsRunning(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	hub := progress.NewHub(64)
	m := newManager(t, cfg, store, hub)

	started := make(chan struct{})
	release := make(chan struct{})
	blocking := &fakeHandler{stg: jobs.StageResearch, execute: func(ctx context.Context, sc *stage.Context) (stage.Outcome, error) {
		if sc.Job.OwnerID == "owner-bob" {
			close(started)
			select {
			case <-release:
			case <-ctx.Done():
				return stage.Outcome{}, ctx.Err()
			}
		}
		return stage.Outcome{Output: `{"insights":["one"]}`}, nil
	}}
	registerDefaults(m, map[jobs.Stage]*fakeHandler{jobs.StageResearch: blocking})

	if err := m.Start(t.Context()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	alice := testsupport.NewJob(t, store, "owner-alice", testsupport.Preferences())
	bob := testsupport.NewJob(t, store, "owner-bob", testsupport.Preferences())

	waitForStatus(t, store, alice.ID, jobs.StatusAwaitingDecision)
	waitForStatus(t, store, bob.ID, jobs.StatusAwaitingDecision)
	resolvePending(t, store, alice.ID, "Alpha")
	resolvePending(t, store, bob.ID, "Beta")

	select {
	case <-started:
	case <-time.After(10 * time.Second):
		t.Fatal("timed out waiting for research to start")
	}
	if err := store.RequestCancel(context.Background(), bob.ID); err != nil {
		t.Fatalf("RequestCancel: %v", err)
	}
	close(release)

	cancelled := waitForStatus(t, store, bob.ID, jobs.StatusCancelled)
	if cancelled.ProgressMessage != jobs.UserCancelMessage {
		t.Fatalf("progress message = %q", cancelled.ProgressMessage)
	}

	done := waitForStatus(t, store, alice.ID, jobs.StatusCompleted)
	if done.ProgressPercent != 100 {
		t.Fatalf("unaffected job percent = %v, want 100", done.ProgressPercent)
	}

	bobEvents, _ := hub.Tail(bob.ID)
	var sawCancelled bool
	for _, evt := range bobEvents {
		if evt.Type == progress.EventJobCancelled {
			sawCancelled = true
		}
		if evt.Type == progress.EventJobComplete {
			t.Fatal("cancelled job published job_complete")
		}
	}
	if !sawCancelled {
		t.Fatal("no job_cancelled event for the cancelled job")
	}

	aliceEvents, _ := hub.Tail(alice.ID)
	var sawComplete bool
	for _, evt := range aliceEvents {
		if evt.Type == progress.EventJobComplete {
			sawComplete = true
		}
	}
	if !sawComplete {
		t.Fatal("no job_complete event for the unaffected job")
	}
}

func TestStatusReportsStageHealth(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	m := newManager(t, cfg, store, progress.NewHub(16))
	registerDefaults(m, nil)

	summary := m.Status(t.Context())
	if summary.Running {
		t.Fatal("manager should not report running before Start")
	}
	if len(summary.StageHealth) != len(jobs.Stages()) {
		t.Fatalf("stage health entries = %d", len(summary.StageHealth))
	}
	for name, health := range summary.StageHealth {
		if !health.Ready {
			t.Fatalf("stage %s unhealthy: %s", name, health.Detail)
		}
	}
}
