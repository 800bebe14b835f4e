package workflow

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"inkwell/internal/config"
	"inkwell/internal/jobs"
	"inkwell/internal/logging"
	"inkwell/internal/notifications"
	"inkwell/internal/progress"
	"inkwell/internal/stage"
)

// Manager coordinates job processing using registered stage handlers. A
// single dispatcher claims jobs at stage boundaries; each claimed stage runs
// on its own worker goroutine, bounded by the active job limit.
type Manager struct {
	cfg          *config.Config
	store        *jobs.Store
	logger       *slog.Logger
	hub          *progress.Hub
	notifier     notifications.Service
	pollInterval time.Duration

	heartbeat *HeartbeatMonitor
	handlers  map[jobs.Stage]stage.Handler
	active    *semaphore.Weighted

	mu      sync.RWMutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	lastErr error
	lastJob *jobs.Job
}

// NewManager constructs a workflow manager with default collaborators.
func NewManager(cfg *config.Config, store *jobs.Store, hub *progress.Hub, logger *slog.Logger) *Manager {
	return NewManagerWithNotifier(cfg, store, hub, logger, notifications.NewService(cfg))
}

// NewManagerWithNotifier constructs a workflow manager with a custom
// notifier (used in tests).
func NewManagerWithNotifier(cfg *config.Config, store *jobs.Store, hub *progress.Hub, logger *slog.Logger, notifier notifications.Service) *Manager {
	if logger == nil {
		logger = logging.NewNop()
	}
	maxActive := cfg.Workflow.MaxActiveJobs
	if maxActive <= 0 {
		maxActive = 4
	}
	return &Manager{
		cfg:          cfg,
		store:        store,
		logger:       logger.With(logging.String(logging.FieldComponent, "workflow-manager")),
		hub:          hub,
		notifier:     notifier,
		pollInterval: time.Duration(cfg.Workflow.QueuePollInterval) * time.Second,
		heartbeat: NewHeartbeatMonitor(
			store,
			logger,
			time.Duration(cfg.Workflow.HeartbeatInterval)*time.Second,
			time.Duration(cfg.Workflow.HeartbeatTimeout)*time.Second,
		),
		handlers: make(map[jobs.Stage]stage.Handler),
		active:   semaphore.NewWeighted(int64(maxActive)),
	}
}

// Register wires a stage handler into the pipeline. All seven stages must be
// registered before Start.
func (m *Manager) Register(handler stage.Handler) {
	if handler == nil {
		return
	}
	m.mu.Lock()
	m.handlers[handler.Stage()] = handler
	m.mu.Unlock()
}

// Start resets interrupted work and begins background processing.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return errors.New("workflow already running")
	}
	for _, stg := range jobs.Stages() {
		if m.handlers[stg] == nil {
			m.mu.Unlock()
			return errors.New("stage handler missing: " + string(stg))
		}
	}

	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.running = true
	m.wg.Add(1)
	m.mu.Unlock()

	reset, err := m.store.ResetStuckProcessing(runCtx)
	if err != nil {
		m.logger.Warn("failed to reset interrupted jobs", logging.Error(err))
	} else if reset > 0 {
		m.logger.Info("interrupted jobs returned to queue", logging.Int("count", reset))
	}

	go m.runDispatcher(runCtx)
	return nil
}

// Stop terminates background processing and waits for in-flight stages.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	cancel := m.cancel
	m.running = false
	m.cancel = nil
	m.mu.Unlock()

	cancel()
	m.wg.Wait()
}

func (m *Manager) handlerFor(stg jobs.Stage) stage.Handler {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.handlers[stg]
}

func (m *Manager) setLastError(err error) {
	m.mu.Lock()
	m.lastErr = err
	m.mu.Unlock()
}

func (m *Manager) setLastJob(job *jobs.Job) {
	m.mu.Lock()
	if job != nil {
		cp := *job
		m.lastJob = &cp
	} else {
		m.lastJob = nil
	}
	m.mu.Unlock()
}
