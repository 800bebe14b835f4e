package workflow

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"inkwell/internal/jobs"
	"inkwell/internal/logging"
)

// HeartbeatMonitor manages job heartbeats and stale job reclamation.
type HeartbeatMonitor struct {
	store             *jobs.Store
	logger            *slog.Logger
	heartbeatInterval time.Duration
	heartbeatTimeout  time.Duration
}

// NewHeartbeatMonitor creates a new monitor.
func NewHeartbeatMonitor(store *jobs.Store, logger *slog.Logger, interval, timeout time.Duration) *HeartbeatMonitor {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &HeartbeatMonitor{
		store:             store,
		logger:            logger.With(logging.String(logging.FieldComponent, "workflow-heartbeat")),
		heartbeatInterval: interval,
		heartbeatTimeout:  timeout,
	}
}

// ReclaimStale rolls jobs with silent heartbeats back to their stage start
// status so they can be claimed again.
func (h *HeartbeatMonitor) ReclaimStale(ctx context.Context) error {
	if h.heartbeatTimeout <= 0 {
		return nil
	}
	reclaimed, err := h.store.ReclaimStaleProcessing(ctx, h.heartbeatTimeout)
	if err != nil {
		return err
	}
	if len(reclaimed) > 0 {
		h.logger.Info("reclaimed stale jobs", logging.Int("count", len(reclaimed)))
	}
	return nil
}

// StartLoop stamps a job's heartbeat on an interval until cancellation.
func (h *HeartbeatMonitor) StartLoop(ctx context.Context, wg *sync.WaitGroup, jobID string) {
	defer wg.Done()
	interval := h.heartbeatInterval
	if interval <= 0 {
		interval = 15 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := h.store.UpdateHeartbeat(ctx, jobID); err != nil {
				if errors.Is(err, context.Canceled) {
					return
				}
				h.logger.Warn("heartbeat update failed", logging.Error(err))
			}
		}
	}
}
