package ipc

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"os"
	"strings"
	"sync"
	"time"

	"log/slog"

	"inkwell/internal/api"
	"inkwell/internal/daemon"
	"inkwell/internal/jobs"
	"inkwell/internal/logging"
)

// Server exposes daemon control via JSON-RPC over a Unix domain socket.
type Server struct {
	path      string
	daemon    *daemon.Daemon
	logger    *slog.Logger
	listener  net.Listener
	rpcServer *rpc.Server

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewServer configures the IPC server at the given socket path.
func NewServer(ctx context.Context, path string, d *daemon.Daemon, logger *slog.Logger) (*Server, error) {
	if d == nil {
		return nil, errors.New("ipc server requires daemon")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	if err := os.RemoveAll(path); err != nil {
		return nil, fmt.Errorf("remove existing socket: %w", err)
	}

	listener, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("listen on socket: %w", err)
	}

	rpcServer := rpc.NewServer()
	srv := &service{daemon: d, logger: logger, ctx: ctx}
	if err := rpcServer.RegisterName("Inkwell", srv); err != nil {
		listener.Close()
		return nil, fmt.Errorf("register rpc service: %w", err)
	}

	serverCtx, cancel := context.WithCancel(ctx)
	return &Server{
		path:      path,
		daemon:    d,
		logger:    logger,
		listener:  listener,
		rpcServer: rpcServer,
		ctx:       serverCtx,
		cancel:    cancel,
	}, nil
}

// Serve starts accepting RPC connections until the context is canceled.
func (s *Server) Serve() {
	s.logger.Debug("IPC server listening", logging.String("socket", s.path))
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			conn, err := s.listener.Accept()
			if err != nil {
				select {
				case <-s.ctx.Done():
					return
				default:
				}
				s.logger.Warn("accept failed",
					logging.Error(err),
					logging.String(logging.FieldEventType, "ipc_accept_failed"))
				continue
			}
			s.wg.Add(1)
			go func(c net.Conn) {
				defer s.wg.Done()
				s.rpcServer.ServeCodec(jsonrpc.NewServerCodec(c))
			}(conn)
		}
	}()
}

// Close stops the server and removes the socket file.
func (s *Server) Close() {
	s.cancel()
	if s.listener != nil {
		_ = s.listener.Close()
	}
	s.wg.Wait()
	if err := os.RemoveAll(s.path); err != nil {
		s.logger.Warn("failed to remove socket",
			logging.String("socket", s.path),
			logging.Error(err))
	}
}

type service struct {
	daemon *daemon.Daemon
	logger *slog.Logger
	ctx    context.Context
}

func (s *service) log() *slog.Logger {
	if s.logger == nil {
		return logging.NewNop()
	}
	return s.logger.With(logging.String(logging.FieldComponent, "ipc"))
}

func (s *service) Ping(_ PingRequest, resp *PingResponse) error {
	resp.PID = os.Getpid()
	return nil
}

func (s *service) Start(_ StartRequest, resp *StartResponse) error {
	s.log().Debug("daemon start requested")
	if err := s.daemon.Start(s.ctx); err != nil {
		resp.Started = false
		resp.Message = err.Error()
		return nil
	}
	resp.Started = true
	resp.Message = "daemon started"
	s.log().Info("daemon started via IPC",
		logging.String(logging.FieldEventType, "daemon_start"))
	return nil
}

func (s *service) Stop(_ StopRequest, resp *StopResponse) error {
	s.log().Debug("daemon stop requested")
	s.daemon.Stop()
	resp.Stopped = true
	s.log().Info("daemon stopped via IPC",
		logging.String(logging.FieldEventType, "daemon_stop"))
	return nil
}

func (s *service) Status(_ StatusRequest, resp *StatusResponse) error {
	status := s.daemon.Status(s.ctx)
	resp.Running = status.Running
	resp.DBPath = status.DBPath
	resp.LockPath = status.LockFilePath
	resp.PID = status.PID
	resp.JobStats = status.Workflow.JobStats
	resp.LastError = status.Workflow.LastError
	if status.Workflow.LastJob != nil {
		last := api.FromJob(status.Workflow.LastJob)
		resp.LastJob = &last
	}
	resp.StageHealth = api.StageHealthSlice(status.Workflow.StageHealth)
	return nil
}

func (s *service) JobSubmit(req JobSubmitRequest, resp *JobSubmitResponse) error {
	job, err := s.daemon.SubmitJob(s.ctx, req.OwnerID, jobs.Preferences{
		Theme:         req.Theme,
		TitleStyle:    req.TitleStyle,
		AuthorStyle:   req.AuthorStyle,
		ResearchDepth: req.ResearchDepth,
	})
	if err != nil {
		return err
	}
	resp.Job = api.FromJob(job)
	s.log().Info("job submitted via IPC",
		logging.String(logging.FieldEventType, "job_submit"),
		logging.String(logging.FieldJobID, job.ID))
	return nil
}

func (s *service) JobList(req JobListRequest, resp *JobListResponse) error {
	if owner := strings.TrimSpace(req.OwnerID); owner != "" {
		records, err := s.daemon.ListJobs(s.ctx, nil)
		if err != nil {
			return err
		}
		for _, job := range records {
			if job.OwnerID == owner {
				resp.Jobs = append(resp.Jobs, api.FromJob(job))
			}
		}
		return nil
	}

	statuses := make([]jobs.Status, 0, len(req.Statuses))
	for _, status := range req.Statuses {
		parsed, ok := jobs.ParseStatus(status)
		if !ok {
			continue
		}
		statuses = append(statuses, parsed)
	}
	records, err := s.daemon.ListJobs(s.ctx, statuses)
	if err != nil {
		return err
	}
	resp.Jobs = api.FromJobs(records)
	return nil
}

func (s *service) JobDescribe(req JobDescribeRequest, resp *JobDescribeResponse) error {
	id := strings.TrimSpace(req.ID)
	if id == "" {
		return errors.New("job id is required")
	}
	job, err := s.daemon.GetJob(s.ctx, id)
	if err != nil {
		return err
	}
	if job == nil {
		return fmt.Errorf("job %s not found", id)
	}
	dto := api.FromJob(job)
	if job.Status == jobs.StatusAwaitingDecision {
		pending, err := s.daemon.PendingDecision(s.ctx, job.ID)
		if err != nil {
			return err
		}
		if pending != nil {
			decision := api.FromDecision(pending)
			dto.Decision = &decision
		}
	}
	resp.Job = dto
	return nil
}

func (s *service) JobCancel(req JobCancelRequest, resp *JobCancelResponse) error {
	id := strings.TrimSpace(req.ID)
	if id == "" {
		return errors.New("job id is required")
	}
	job, err := s.daemon.GetJob(s.ctx, id)
	if err != nil {
		return err
	}
	if job == nil {
		return fmt.Errorf("job %s not found", id)
	}
	if job.Status.IsTerminal() {
		return fmt.Errorf("job %s already %s", id, job.Status)
	}
	if err := s.daemon.CancelJob(s.ctx, id); err != nil {
		return err
	}
	resp.Requested = true
	s.log().Info("job cancel requested via IPC",
		logging.String(logging.FieldEventType, "job_cancel"),
		logging.String(logging.FieldJobID, id))
	return nil
}

func (s *service) JobDecide(req JobDecideRequest, resp *JobDecideResponse) error {
	decision, err := s.daemon.ResolveDecisionForJob(s.ctx, req.JobID, req.Choice)
	if err != nil {
		return err
	}
	resp.Decision = api.FromDecision(decision)
	s.log().Info("decision resolved via IPC",
		logging.String(logging.FieldEventType, "decision_resolved"),
		logging.String(logging.FieldJobID, req.JobID))
	return nil
}

func (s *service) JobEvents(req JobEventsRequest, resp *JobEventsResponse) error {
	if strings.TrimSpace(req.JobID) == "" {
		return errors.New("job id is required")
	}
	ctx := s.ctx
	if req.Follow {
		wait := time.Duration(req.WaitMillis) * time.Millisecond
		if wait <= 0 {
			wait = time.Second
		}
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(s.ctx, wait)
		defer cancel()
	}
	events, next, err := s.daemon.Events(ctx, req.JobID, req.Since, req.Follow)
	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	resp.Events = api.FromProgressEvents(events)
	resp.Next = next
	return nil
}

func (s *service) JobsHealth(_ JobsHealthRequest, resp *JobsHealthResponse) error {
	health, err := s.daemon.JobsHealth(s.ctx)
	if err != nil {
		return err
	}
	resp.Total = health.Total
	resp.Waiting = health.Waiting
	resp.Processing = health.Processing
	resp.AwaitingDecision = health.AwaitingDecision
	resp.Failed = health.Failed
	resp.Completed = health.Completed
	resp.Cancelled = health.Cancelled
	return nil
}

func (s *service) TestNotification(_ TestNotificationRequest, resp *TestNotificationResponse) error {
	sent, message, err := s.daemon.TestNotification(s.ctx)
	resp.Sent = sent
	resp.Message = message
	return err
}
