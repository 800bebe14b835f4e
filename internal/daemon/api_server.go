package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"log/slog"

	"inkwell/internal/api"
	"inkwell/internal/config"
	"inkwell/internal/jobs"
	"inkwell/internal/logging"
	"inkwell/internal/services"
)

type apiServer struct {
	bind   string
	token  string
	logger *slog.Logger
	daemon *Daemon
	jobSvc *api.JobService

	listener net.Listener
	server   *http.Server
}

func newAPIServer(cfg *config.Config, d *Daemon, logger *slog.Logger) (*apiServer, error) {
	if cfg == nil || d == nil {
		return nil, nil
	}
	bind := strings.TrimSpace(cfg.Paths.APIBind)
	if bind == "" {
		return nil, nil
	}

	srv := &apiServer{
		bind:   bind,
		token:  strings.TrimSpace(cfg.Paths.APIToken),
		logger: logger,
		daemon: d,
		jobSvc: api.NewJobService(d.store),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/status", authMiddleware(srv.token, srv.handleStatus))
	mux.HandleFunc("/api/stats", authMiddleware(srv.token, srv.handleStats))
	mux.HandleFunc("/api/jobs", authMiddleware(srv.token, srv.handleJobs))
	mux.HandleFunc("/api/jobs/", authMiddleware(srv.token, srv.handleJob))

	srv.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return srv, nil
}

func (s *apiServer) start(ctx context.Context) error {
	if s == nil {
		return nil
	}
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.listener = listener

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log().Error("api server error", logging.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()

	s.log().Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

func (s *apiServer) stop() {
	if s == nil {
		return
	}
	if s.server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}
	if s.listener != nil {
		_ = s.listener.Close()
		s.listener = nil
	}
}

// addr reports the bound listen address, used by tests with :0 binds.
func (s *apiServer) addr() string {
	if s == nil || s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *apiServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	status := s.daemon.Status(r.Context())
	payload := api.DaemonStatus{
		Running:      status.Running,
		PID:          status.PID,
		DBPath:       status.DBPath,
		LockFilePath: status.LockFilePath,
		Workflow:     api.FromStatusSummary(status.Workflow),
	}
	s.writeJSON(w, http.StatusOK, payload)
}

func (s *apiServer) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	counts, err := s.jobSvc.Stats(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, api.JobStatsResponse{Counts: counts})
}

func (s *apiServer) handleJobs(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.listJobs(w, r)
	case http.MethodPost:
		s.submitJob(w, r)
	default:
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *apiServer) listJobs(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	if owner := strings.TrimSpace(query.Get("owner")); owner != "" {
		list, err := s.jobSvc.ListByOwner(r.Context(), owner)
		if err != nil {
			s.writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		s.writeJSON(w, http.StatusOK, api.JobListResponse{Jobs: list})
		return
	}

	var statuses []jobs.Status
	for _, value := range query["status"] {
		parsed, ok := jobs.ParseStatus(value)
		if !ok {
			continue
		}
		statuses = append(statuses, parsed)
	}
	list, err := s.jobSvc.List(r.Context(), statuses...)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, api.JobListResponse{Jobs: list})
}

func (s *apiServer) submitJob(w http.ResponseWriter, r *http.Request) {
	var req api.SubmitJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	job, err := s.daemon.SubmitJob(r.Context(), req.OwnerID, jobs.Preferences{
		Theme:         req.Preferences.Theme,
		TitleStyle:    req.Preferences.TitleStyle,
		AuthorStyle:   req.Preferences.AuthorStyle,
		ResearchDepth: req.Preferences.ResearchDepth,
	})
	if err != nil {
		if errors.Is(err, services.ErrValidation) {
			s.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusCreated, api.JobResponse{Job: api.FromJob(job)})
}

// handleJob routes /api/jobs/{id} and its subresources.
func (s *apiServer) handleJob(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/jobs/")
	if rest == "" {
		s.writeError(w, http.StatusNotFound, "job not found")
		return
	}
	id, sub, _ := strings.Cut(rest, "/")
	switch {
	case sub == "" && r.Method == http.MethodGet:
		s.describeJob(w, r, id)
	case sub == "cancel" && r.Method == http.MethodPost:
		s.cancelJob(w, r, id)
	case sub == "decision" && r.Method == http.MethodPost:
		s.decideJob(w, r, id)
	case sub == "events" && r.Method == http.MethodGet:
		s.streamEvents(w, r, id)
	default:
		s.writeError(w, http.StatusNotFound, "not found")
	}
}

func (s *apiServer) describeJob(w http.ResponseWriter, r *http.Request, id string) {
	job, err := s.jobSvc.Describe(r.Context(), id)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if job == nil {
		s.writeError(w, http.StatusNotFound, "job not found")
		return
	}
	s.writeJSON(w, http.StatusOK, api.JobResponse{Job: *job})
}

func (s *apiServer) cancelJob(w http.ResponseWriter, r *http.Request, id string) {
	job, err := s.daemon.GetJob(r.Context(), id)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if job == nil {
		s.writeError(w, http.StatusNotFound, "job not found")
		return
	}
	if job.Status.IsTerminal() {
		s.writeError(w, http.StatusConflict, fmt.Sprintf("job already %s", job.Status))
		return
	}
	if err := s.daemon.CancelJob(r.Context(), id); err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusAccepted, map[string]string{"status": "cancel requested"})
}

func (s *apiServer) decideJob(w http.ResponseWriter, r *http.Request, id string) {
	var req api.DecideRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	decision, err := s.daemon.ResolveDecisionForJob(r.Context(), id, req.Choice)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrNotFound):
			s.writeError(w, http.StatusNotFound, "no pending decision")
		case errors.Is(err, services.ErrInvalidChoice):
			s.writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, services.ErrAlreadyResolved):
			s.writeError(w, http.StatusConflict, err.Error())
		case errors.Is(err, services.ErrDecisionExpired):
			s.writeError(w, http.StatusGone, err.Error())
		default:
			s.writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}
	s.writeJSON(w, http.StatusOK, api.DecisionResponse{Decision: api.FromDecision(decision)})
}

// streamEvents replays buffered progress events after the given cursor and,
// with follow=1, blocks until new events arrive or the request is cancelled.
func (s *apiServer) streamEvents(w http.ResponseWriter, r *http.Request, id string) {
	query := r.URL.Query()
	since, _ := strconv.ParseUint(query.Get("since"), 10, 64)
	follow := query.Get("follow") == "1" || strings.EqualFold(query.Get("follow"), "true")

	if strings.Contains(r.Header.Get("Accept"), "text/event-stream") {
		s.streamEventsSSE(w, r, id, since)
		return
	}

	ctx := r.Context()
	if follow {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
	}

	events, next, err := s.daemon.Events(ctx, id, since, follow)
	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, api.EventStreamResponse{
		Events: api.FromProgressEvents(events),
		Next:   next,
	})
}

// streamEventsSSE writes the replay buffer and then live events for the job
// as Server-Sent Events until the client disconnects.
func (s *apiServer) streamEventsSSE(w http.ResponseWriter, r *http.Request, id string, since uint64) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		s.writeError(w, http.StatusNotImplemented, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ctx := r.Context()
	cursor := since
	for {
		events, next, err := s.daemon.Events(ctx, id, cursor, true)
		if err != nil {
			return
		}
		cursor = next
		for _, evt := range events {
			payload, marshalErr := json.Marshal(api.FromProgressEvent(evt))
			if marshalErr != nil {
				continue
			}
			fmt.Fprintf(w, "id: %d\nevent: %s\ndata: %s\n\n", evt.Sequence, evt.Type, payload)
		}
		flusher.Flush()
		if ctx.Err() != nil {
			return
		}
	}
}

func (s *apiServer) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.log().Error("failed to encode response", logging.Error(err))
	}
}

func (s *apiServer) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}

func (s *apiServer) log() *slog.Logger {
	if s.logger != nil {
		return s.logger.With(logging.String(logging.FieldComponent, "api-server"))
	}
	return logging.NewNop()
}
