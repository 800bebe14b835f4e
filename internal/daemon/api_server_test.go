package daemon

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"inkwell/internal/api"
	"inkwell/internal/decision"
	"inkwell/internal/jobs"
	"inkwell/internal/logging"
	"inkwell/internal/progress"
	"inkwell/internal/testsupport"
	"inkwell/internal/workflow"
)

func newTestDaemon(t *testing.T) *Daemon {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	hub := progress.NewHub(64)
	logger := logging.NewNop()
	wf := workflow.NewManager(cfg, store, hub, logger)
	resolver := decision.NewResolver(cfg, store, hub, logger)

	d, err := New(cfg, store, logger, wf, hub, resolver)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return d
}

func TestAPIServerSubmitAndDescribeJob(t *testing.T) {
	d := newTestDaemon(t)
	srv := d.api

	body := `{"ownerId":"owner-1","preferences":{"theme":"deep sea exploration","researchDepth":"medium"}}`
	req := httptest.NewRequest(http.MethodPost, "/api/jobs", strings.NewReader(body))
	w := httptest.NewRecorder()
	srv.handleJobs(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201 Created, got %d: %s", w.Code, w.Body.String())
	}
	var created api.JobResponse
	if err := json.Unmarshal(w.Body.Bytes(), &created); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if created.Job.Status != "created" || created.Job.Stage != "onboarding" {
		t.Fatalf("unexpected job: %+v", created.Job)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/jobs/"+created.Job.ID, nil)
	w = httptest.NewRecorder()
	srv.handleJob(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 OK, got %d", w.Code)
	}
	var described api.JobResponse
	if err := json.Unmarshal(w.Body.Bytes(), &described); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if described.Job.Preferences.Theme != "deep sea exploration" {
		t.Fatalf("unexpected theme: %q", described.Job.Preferences.Theme)
	}
}

func TestSubmitJobPublishesStartEvent(t *testing.T) {
	d := newTestDaemon(t)

	// The workflow manager is not running, so the event can only come
	// from the submission itself.
	job, err := d.SubmitJob(context.Background(), "owner-1", testsupport.Preferences())
	if err != nil {
		t.Fatalf("SubmitJob: %v", err)
	}

	events, _ := d.hub.Tail(job.ID)
	if len(events) != 1 {
		t.Fatalf("expected one event, got %d", len(events))
	}
	if events[0].Type != progress.EventJobStarted {
		t.Fatalf("event type = %s, want %s", events[0].Type, progress.EventJobStarted)
	}
}

func TestAPIServerRejectsInvalidPreferences(t *testing.T) {
	d := newTestDaemon(t)

	body := `{"ownerId":"owner-1","preferences":{"theme":"x","researchDepth":"extreme"}}`
	req := httptest.NewRequest(http.MethodPost, "/api/jobs", strings.NewReader(body))
	w := httptest.NewRecorder()
	d.api.handleJobs(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", w.Code, w.Body.String())
	}
}

func TestAPIServerDecideJob(t *testing.T) {
	d := newTestDaemon(t)
	ctx := context.Background()

	job, err := d.SubmitJob(ctx, "owner-1", testsupport.Preferences())
	if err != nil {
		t.Fatalf("SubmitJob: %v", err)
	}
	job.Status = jobs.StatusAwaitingDecision
	if err := d.store.Update(ctx, job); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if _, err := d.store.CreateDecision(ctx, job.ID, jobs.StageDiscovery,
		[]string{"Alpha", "Beta"}, time.Now().Add(time.Hour)); err != nil {
		t.Fatalf("CreateDecision: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/jobs/"+job.ID+"/decision",
		strings.NewReader(`{"choice":"Beta"}`))
	w := httptest.NewRecorder()
	d.api.handleJob(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 OK, got %d: %s", w.Code, w.Body.String())
	}

	updated, err := d.GetJob(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if updated.Status != jobs.StatusDecided || updated.SelectedTitle != "Beta" {
		t.Fatalf("decision not applied: %+v", updated)
	}

	// Second resolution conflicts.
	req = httptest.NewRequest(http.MethodPost, "/api/jobs/"+job.ID+"/decision",
		strings.NewReader(`{"choice":"Alpha"}`))
	w = httptest.NewRecorder()
	d.api.handleJob(w, req)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for resolved decision, got %d", w.Code)
	}
}

func TestAPIServerCancelJob(t *testing.T) {
	d := newTestDaemon(t)
	ctx := context.Background()

	job, err := d.SubmitJob(ctx, "owner-1", testsupport.Preferences())
	if err != nil {
		t.Fatalf("SubmitJob: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/jobs/"+job.ID+"/cancel", nil)
	w := httptest.NewRecorder()
	d.api.handleJob(w, req)
	if w.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", w.Code, w.Body.String())
	}

	updated, err := d.GetJob(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if !updated.CancelRequested {
		t.Fatal("cancel flag not set")
	}

	req = httptest.NewRequest(http.MethodPost, "/api/jobs/missing/cancel", nil)
	w = httptest.NewRecorder()
	d.api.handleJob(w, req)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown job, got %d", w.Code)
	}
}

func TestAPIServerEventReplay(t *testing.T) {
	d := newTestDaemon(t)

	d.hub.Publish(progress.Event{JobID: "job-1", Type: progress.EventStageStart, Stage: "research"})
	d.hub.Publish(progress.Event{JobID: "job-1", Type: progress.EventStageProgress, Stage: "research", Percent: 30})

	req := httptest.NewRequest(http.MethodGet, "/api/jobs/job-1/events", nil)
	w := httptest.NewRecorder()
	d.api.handleJob(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 OK, got %d", w.Code)
	}
	var resp api.EventStreamResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(resp.Events) != 2 || resp.Next != 2 {
		t.Fatalf("unexpected stream: %+v", resp)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/jobs/job-1/events?since=1", nil)
	w = httptest.NewRecorder()
	d.api.handleJob(w, req)
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(resp.Events) != 1 || resp.Events[0].Type != "stage_progress" {
		t.Fatalf("cursor replay wrong: %+v", resp)
	}
}

func TestAPIServerEventStreamSSE(t *testing.T) {
	d := newTestDaemon(t)

	d.hub.Publish(progress.Event{JobID: "job-1", Type: progress.EventStageStart, Stage: "research"})
	d.hub.Publish(progress.Event{JobID: "job-1", Type: progress.EventJobComplete, Percent: 100})

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	req := httptest.NewRequest(http.MethodGet, "/api/jobs/job-1/events", nil).WithContext(ctx)
	req.Header.Set("Accept", "text/event-stream")
	w := httptest.NewRecorder()
	d.api.handleJob(w, req)

	if ct := w.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("unexpected content type %q", ct)
	}
	body := w.Body.String()
	if !strings.Contains(body, "event: stage_start") {
		t.Fatalf("missing stage_start frame: %s", body)
	}
	if !strings.Contains(body, "event: job_complete") {
		t.Fatalf("missing job_complete frame: %s", body)
	}
	if !strings.Contains(body, `"percent":100`) {
		t.Fatalf("missing percent payload: %s", body)
	}
}

func TestAuthMiddleware(t *testing.T) {
	passed := false
	handler := authMiddleware("secret", func(w http.ResponseWriter, r *http.Request) {
		passed = true
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/api/status", nil)
	w := httptest.NewRecorder()
	handler(w, req)
	if w.Code != http.StatusUnauthorized || passed {
		t.Fatalf("expected 401 without token, got %d", w.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/status", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	w = httptest.NewRecorder()
	handler(w, req)
	if w.Code != http.StatusUnauthorized || passed {
		t.Fatalf("expected 401 with wrong token, got %d", w.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/status", nil)
	req.Header.Set("Authorization", "Bearer secret")
	w = httptest.NewRecorder()
	handler(w, req)
	if w.Code != http.StatusOK || !passed {
		t.Fatalf("expected pass with valid token, got %d", w.Code)
	}
}
