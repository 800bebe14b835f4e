package progress

import (
	"context"
	"sync"
	"time"
)

// EventType classifies a progress event on the live channel.
type EventType string

const (
	EventJobStarted       EventType = "job_started"
	EventStageStart       EventType = "stage_start"
	EventStageProgress    EventType = "stage_progress"
	EventStageComplete    EventType = "stage_complete"
	EventDecisionRequired EventType = "decision_required"
	EventJobComplete      EventType = "job_complete"
	EventJobError         EventType = "job_error"
	EventJobCancelled     EventType = "job_cancelled"
	EventHeartbeat        EventType = "heartbeat"
)

// Event is one entry on a job's progress stream.
type Event struct {
	Sequence  uint64         `json:"seq"`
	Timestamp time.Time      `json:"ts"`
	JobID     string         `json:"job_id"`
	Type      EventType      `json:"type"`
	Stage     string         `json:"stage,omitempty"`
	Percent   float64        `json:"percent"`
	Message   string         `json:"message,omitempty"`
	Fields    map[string]any `json:"fields,omitempty"`
}

// Hub stores recent progress events per job and wakes waiters when new
// events arrive. Subscribers that connect late replay the buffered history
// before receiving live events, so a reconnecting client never misses the
// terminal event.
type Hub struct {
	mu       sync.Mutex
	cond     *sync.Cond
	capacity int
	jobs     map[string]*jobStream
	closed   bool
}

type jobStream struct {
	buffer  []Event
	nextSeq uint64
}

// NewHub constructs a progress hub with a bounded per-job replay buffer.
func NewHub(capacity int) *Hub {
	if capacity <= 0 {
		capacity = 256
	}
	h := &Hub{capacity: capacity, jobs: make(map[string]*jobStream)}
	h.cond = sync.NewCond(&h.mu)
	return h
}

// Publish appends an event to the job's stream and wakes all waiters.
func (h *Hub) Publish(evt Event) {
	if h == nil || evt.JobID == "" {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	stream := h.jobs[evt.JobID]
	if stream == nil {
		stream = &jobStream{}
		h.jobs[evt.JobID] = stream
	}
	stream.nextSeq++
	evt.Sequence = stream.nextSeq
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now().UTC()
	}
	if len(stream.buffer) == h.capacity {
		copy(stream.buffer, stream.buffer[1:])
		stream.buffer = stream.buffer[:h.capacity-1]
	}
	stream.buffer = append(stream.buffer, evt)
	h.cond.Broadcast()
}

// Fetch returns the job's events with sequence greater than since. When wait
// is true and no events are pending, Fetch blocks until one arrives or the
// context ends.
func (h *Hub) Fetch(ctx context.Context, jobID string, since uint64, wait bool) ([]Event, uint64, error) {
	if h == nil {
		return nil, since, nil
	}

	cancelWait := make(chan struct{})
	if wait && ctx != nil && ctx.Done() != nil {
		go func() {
			select {
			case <-ctx.Done():
				h.cond.Broadcast()
			case <-cancelWait:
			}
		}()
	}
	defer close(cancelWait)

	h.mu.Lock()
	defer h.mu.Unlock()

	for {
		events, next := h.snapshotLocked(jobID, since)
		if len(events) > 0 || !wait || h.closed {
			return events, next, ctx.Err()
		}
		if err := ctx.Err(); err != nil {
			return nil, next, err
		}
		h.cond.Wait()
		if err := ctx.Err(); err != nil {
			return nil, next, err
		}
	}
}

// Tail returns the job's buffered events without blocking.
func (h *Hub) Tail(jobID string) ([]Event, uint64) {
	if h == nil {
		return nil, 0
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.snapshotLocked(jobID, 0)
}

// Forget drops a job's buffer. Called once a terminal event has aged out.
func (h *Hub) Forget(jobID string) {
	if h == nil {
		return
	}
	h.mu.Lock()
	delete(h.jobs, jobID)
	h.mu.Unlock()
}

// Close wakes all waiters and stops accepting events.
func (h *Hub) Close() {
	if h == nil {
		return
	}
	h.mu.Lock()
	h.closed = true
	h.cond.Broadcast()
	h.mu.Unlock()
}

func (h *Hub) snapshotLocked(jobID string, since uint64) ([]Event, uint64) {
	stream := h.jobs[jobID]
	if stream == nil || len(stream.buffer) == 0 {
		if stream == nil {
			return nil, since
		}
		return nil, stream.nextSeq
	}
	startIdx := -1
	for i, evt := range stream.buffer {
		if evt.Sequence > since {
			startIdx = i
			break
		}
	}
	if startIdx < 0 {
		return nil, stream.nextSeq
	}
	out := make([]Event, len(stream.buffer)-startIdx)
	copy(out, stream.buffer[startIdx:])
	return out, stream.nextSeq
}
