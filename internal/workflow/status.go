package workflow

import (
	"context"

	"inkwell/internal/jobs"
	"inkwell/internal/logging"
	"inkwell/internal/stage"
)

// StatusSummary represents lightweight workflow diagnostics.
type StatusSummary struct {
	Running     bool
	LastError   string
	LastJob     *jobs.Job
	JobStats    map[string]int
	StageHealth map[string]stage.Health
}

// Status returns the latest workflow information.
func (m *Manager) Status(ctx context.Context) StatusSummary {
	m.mu.RLock()
	running := m.running
	lastErr := m.lastErr
	lastJob := m.lastJob
	handlers := make([]stage.Handler, 0, len(m.handlers))
	for _, handler := range m.handlers {
		handlers = append(handlers, handler)
	}
	m.mu.RUnlock()

	stats, err := m.store.Stats(ctx)
	if err != nil {
		m.logger.Warn("failed to read job stats", logging.Error(err))
	}

	health := make(map[string]stage.Health, len(handlers))
	for _, handler := range handlers {
		health[string(handler.Stage())] = handler.HealthCheck(ctx)
	}

	summary := StatusSummary{Running: running, JobStats: stats, StageHealth: health}
	if lastErr != nil {
		summary.LastError = lastErr.Error()
	}
	if lastJob != nil {
		cp := *lastJob
		summary.LastJob = &cp
	}
	return summary
}
