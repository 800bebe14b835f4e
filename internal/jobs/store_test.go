package jobs_test

import (
	"errors"
	"testing"
	"time"

	"inkwell/internal/jobs"
	"inkwell/internal/services"
	"inkwell/internal/testsupport"
)

func TestCreateJobValidatesInput(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := t.Context()

	if _, err := store.CreateJob(ctx, "", testsupport.Preferences()); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error for empty owner, got %v", err)
	}

	badPrefs := jobs.Preferences{Theme: "x", ResearchDepth: "medium"}
	if _, err := store.CreateJob(ctx, "owner-1", badPrefs); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error for short theme, got %v", err)
	}

	job, err := store.CreateJob(ctx, "owner-1", testsupport.Preferences())
	if err != nil {
		t.Fatalf("CreateJob: %v", err)
	}
	if job.Status != jobs.StatusCreated {
		t.Fatalf("new job status = %s, want %s", job.Status, jobs.StatusCreated)
	}
	if job.ID == "" {
		t.Fatal("new job has empty id")
	}
}

func TestGetByIDMissingReturnsNil(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))

	job, err := store.GetByID(t.Context(), "no-such-job")
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if job != nil {
		t.Fatalf("expected nil for missing job, got %+v", job)
	}
}

func TestUpdateRoundTripsFields(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := t.Context()

	job := testsupport.NewJob(t, store, "owner-1", testsupport.Preferences())
	job.Status = jobs.StatusResearching
	job.SelectedTitle = "The Abyssal Frontier"
	job.SetProgress("Researching", "gathering insights", 25)
	hb := time.Now().UTC()
	job.LastHeartbeat = &hb

	if err := store.Update(ctx, job); err != nil {
		t.Fatalf("Update: %v", err)
	}

	loaded, err := store.GetByID(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if loaded.Status != jobs.StatusResearching {
		t.Fatalf("status = %s, want %s", loaded.Status, jobs.StatusResearching)
	}
	if loaded.SelectedTitle != "The Abyssal Frontier" {
		t.Fatalf("selected title = %q", loaded.SelectedTitle)
	}
	if loaded.ProgressPercent != 25 {
		t.Fatalf("progress percent = %v, want 25", loaded.ProgressPercent)
	}
	if loaded.LastHeartbeat == nil {
		t.Fatal("heartbeat not persisted")
	}
}

func TestProgressPercentNeverRegresses(t *testing.T) {
	job := &jobs.Job{}
	job.SetProgress("Researching", "working", 40)
	job.SetProgress("Researching", "retrying", 10)
	if job.ProgressPercent != 40 {
		t.Fatalf("progress percent = %v, want 40", job.ProgressPercent)
	}
}

func TestNextForStatusesSkipsCancelRequested(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := t.Context()

	first := testsupport.NewJob(t, store, "owner-1", testsupport.Preferences())
	second := testsupport.NewJob(t, store, "owner-2", testsupport.Preferences())

	next, err := store.NextForStatuses(ctx, jobs.StatusCreated)
	if err != nil {
		t.Fatalf("NextForStatuses: %v", err)
	}
	if next == nil || next.ID != first.ID {
		t.Fatalf("expected oldest job %s, got %+v", first.ID, next)
	}

	if err := store.RequestCancel(ctx, first.ID); err != nil {
		t.Fatalf("RequestCancel: %v", err)
	}
	next, err = store.NextForStatuses(ctx, jobs.StatusCreated)
	if err != nil {
		t.Fatalf("NextForStatuses: %v", err)
	}
	if next == nil || next.ID != second.ID {
		t.Fatalf("expected %s after cancel flag, got %+v", second.ID, next)
	}
}

func TestSaveStageResultUpsertBumpsAttempts(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := t.Context()

	job := testsupport.NewJob(t, store, "owner-1", testsupport.Preferences())
	result := jobs.StageResult{
		JobID:      job.ID,
		Stage:      jobs.StageResearch,
		OutputJSON: `{"insights":["first pass"]}`,
	}
	if err := store.SaveStageResult(ctx, result); err != nil {
		t.Fatalf("SaveStageResult: %v", err)
	}
	result.OutputJSON = `{"insights":["second pass"]}`
	if err := store.SaveStageResult(ctx, result); err != nil {
		t.Fatalf("SaveStageResult (second): %v", err)
	}

	stored, ok, err := store.StageResult(ctx, job.ID, jobs.StageResearch)
	if err != nil {
		t.Fatalf("StageResult: %v", err)
	}
	if !ok {
		t.Fatal("stage result missing after save")
	}
	if stored.AttemptCount != 2 {
		t.Fatalf("attempt count = %d, want 2", stored.AttemptCount)
	}
	if stored.OutputJSON != `{"insights":["second pass"]}` {
		t.Fatalf("output not replaced: %s", stored.OutputJSON)
	}
}

func TestResolveDecisionLifecycle(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := t.Context()

	job := testsupport.NewJob(t, store, "owner-1", testsupport.Preferences())
	options := []string{"Title One", "Title Two", "Title Three"}
	decision, err := store.CreateDecision(ctx, job.ID, jobs.StageDiscovery, options, time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("CreateDecision: %v", err)
	}
	if decision.Status != jobs.DecisionPending {
		t.Fatalf("new decision status = %s", decision.Status)
	}

	if _, err := store.ResolveDecision(ctx, decision.ID, "Not Offered"); !errors.Is(err, services.ErrInvalidChoice) {
		t.Fatalf("expected invalid choice error, got %v", err)
	}

	resolved, err := store.ResolveDecision(ctx, decision.ID, "Title Two")
	if err != nil {
		t.Fatalf("ResolveDecision: %v", err)
	}
	if resolved.ResolvedValue != "Title Two" {
		t.Fatalf("resolved value = %q", resolved.ResolvedValue)
	}

	if _, err := store.ResolveDecision(ctx, decision.ID, "Title One"); !errors.Is(err, services.ErrAlreadyResolved) {
		t.Fatalf("expected already resolved error, got %v", err)
	}

	pending, err := store.PendingDecisionForJob(ctx, job.ID)
	if err != nil {
		t.Fatalf("PendingDecisionForJob: %v", err)
	}
	if pending != nil {
		t.Fatalf("expected no pending decision, got %+v", pending)
	}
}

func TestExpirePendingDecisions(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := t.Context()

	job := testsupport.NewJob(t, store, "owner-1", testsupport.Preferences())
	decision, err := store.CreateDecision(ctx, job.ID, jobs.StageDiscovery,
		[]string{"Only Option"}, time.Now().Add(-time.Minute))
	if err != nil {
		t.Fatalf("CreateDecision: %v", err)
	}

	expired, err := store.ExpirePendingDecisions(ctx, time.Now())
	if err != nil {
		t.Fatalf("ExpirePendingDecisions: %v", err)
	}
	if len(expired) != 1 || expired[0].ID != decision.ID {
		t.Fatalf("expected one expired decision, got %+v", expired)
	}

	if _, err := store.ResolveDecision(ctx, decision.ID, "Only Option"); !errors.Is(err, services.ErrDecisionExpired) {
		t.Fatalf("expected expired error, got %v", err)
	}
}

func TestResolveDecisionRejectsPastDeadline(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := t.Context()

	job := testsupport.NewJob(t, store, "owner-1", testsupport.Preferences())
	decision, err := store.CreateDecision(ctx, job.ID, jobs.StageDiscovery,
		[]string{"Title One", "Title Two"}, time.Now().Add(-time.Hour))
	if err != nil {
		t.Fatalf("CreateDecision: %v", err)
	}

	if _, err := store.ResolveDecision(ctx, decision.ID, "Title One"); !errors.Is(err, services.ErrDecisionExpired) {
		t.Fatalf("expected expired error, got %v", err)
	}

	// The row must stay pending so the sweep can apply the fallback policy.
	pending, err := store.PendingDecisionForJob(ctx, job.ID)
	if err != nil {
		t.Fatalf("PendingDecisionForJob: %v", err)
	}
	if pending == nil || pending.ID != decision.ID {
		t.Fatalf("expected decision to remain pending, got %+v", pending)
	}
}

func TestCreateDecisionSupersedesPending(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := t.Context()

	job := testsupport.NewJob(t, store, "owner-1", testsupport.Preferences())
	first, err := store.CreateDecision(ctx, job.ID, jobs.StageDiscovery,
		[]string{"Stale One", "Stale Two"}, time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("CreateDecision first: %v", err)
	}

	second, err := store.CreateDecision(ctx, job.ID, jobs.StageDiscovery,
		[]string{"Fresh One", "Fresh Two"}, time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("CreateDecision second: %v", err)
	}

	stale, err := store.GetDecision(ctx, first.ID)
	if err != nil {
		t.Fatalf("GetDecision: %v", err)
	}
	if stale.Status != jobs.DecisionExpired {
		t.Fatalf("superseded decision status = %s", stale.Status)
	}

	pending, err := store.PendingDecisionForJob(ctx, job.ID)
	if err != nil {
		t.Fatalf("PendingDecisionForJob: %v", err)
	}
	if pending == nil || pending.ID != second.ID {
		t.Fatalf("expected fresh decision to be the pending one, got %+v", pending)
	}
}

func TestReclaimStaleProcessing(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := t.Context()

	job := testsupport.NewJob(t, store, "owner-1", testsupport.Preferences())
	job.Status = jobs.StatusResearching
	stale := time.Now().UTC().Add(-10 * time.Minute)
	job.LastHeartbeat = &stale
	if err := store.Update(ctx, job); err != nil {
		t.Fatalf("Update: %v", err)
	}

	reclaimed, err := store.ReclaimStaleProcessing(ctx, time.Minute)
	if err != nil {
		t.Fatalf("ReclaimStaleProcessing: %v", err)
	}
	if len(reclaimed) != 1 {
		t.Fatalf("expected one reclaimed job, got %d", len(reclaimed))
	}
	if reclaimed[0].Status != jobs.StatusDecided {
		t.Fatalf("reclaimed status = %s, want %s", reclaimed[0].Status, jobs.StatusDecided)
	}

	loaded, err := store.GetByID(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if loaded.LastHeartbeat != nil {
		t.Fatal("heartbeat should be cleared on reclaim")
	}
}

func TestResetStuckProcessing(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := t.Context()

	job := testsupport.NewJob(t, store, "owner-1", testsupport.Preferences())
	job.Status = jobs.StatusAssembling
	if err := store.Update(ctx, job); err != nil {
		t.Fatalf("Update: %v", err)
	}

	reset, err := store.ResetStuckProcessing(ctx)
	if err != nil {
		t.Fatalf("ResetStuckProcessing: %v", err)
	}
	if reset != 1 {
		t.Fatalf("reset count = %d, want 1", reset)
	}

	loaded, err := store.GetByID(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if loaded.Status != jobs.StatusMediaReady {
		t.Fatalf("status after reset = %s, want %s", loaded.Status, jobs.StatusMediaReady)
	}
}

func TestHealthBuckets(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := t.Context()

	a := testsupport.NewJob(t, store, "owner-1", testsupport.Preferences())
	b := testsupport.NewJob(t, store, "owner-1", testsupport.Preferences())
	c := testsupport.NewJob(t, store, "owner-2", testsupport.Preferences())

	a.Status = jobs.StatusCompleted
	if err := store.Update(ctx, a); err != nil {
		t.Fatalf("Update: %v", err)
	}
	b.Status = jobs.StatusAwaitingDecision
	if err := store.Update(ctx, b); err != nil {
		t.Fatalf("Update: %v", err)
	}
	c.Status = jobs.StatusCurating
	if err := store.Update(ctx, c); err != nil {
		t.Fatalf("Update: %v", err)
	}

	health, err := store.Health(ctx)
	if err != nil {
		t.Fatalf("Health: %v", err)
	}
	if health.Total != 3 || health.Completed != 1 || health.AwaitingDecision != 1 || health.Processing != 1 {
		t.Fatalf("unexpected health summary: %+v", health)
	}
}
