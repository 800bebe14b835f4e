package ipc

import "inkwell/internal/api"

// PingRequest probes daemon liveness.
type PingRequest struct{}

// PingResponse acknowledges a liveness probe.
type PingResponse struct {
	PID int `json:"pid"`
}

// StartRequest triggers daemon workflow startup.
type StartRequest struct{}

// StartResponse indicates whether the daemon was started.
type StartResponse struct {
	Started bool   `json:"started"`
	Message string `json:"message"`
}

// StopRequest stops daemon workflow.
type StopRequest struct{}

// StopResponse indicates stop result.
type StopResponse struct {
	Stopped bool `json:"stopped"`
}

// StatusRequest fetches daemon status.
type StatusRequest struct{}

// Job mirrors the HTTP API job DTO for internal IPC callers.
type Job = api.Job

// Decision mirrors the HTTP API decision DTO.
type Decision = api.Decision

// StageHealth describes readiness of a pipeline stage.
type StageHealth = api.StageHealth

// ProgressEvent mirrors the HTTP API progress event DTO.
type ProgressEvent = api.ProgressEvent

// StatusResponse represents combined daemon/workflow status information.
type StatusResponse struct {
	Running     bool           `json:"running"`
	JobStats    map[string]int `json:"job_stats"`
	LastError   string         `json:"last_error"`
	LastJob     *Job           `json:"last_job"`
	LockPath    string         `json:"lock_path"`
	DBPath      string         `json:"db_path"`
	StageHealth []StageHealth  `json:"stage_health"`
	PID         int            `json:"pid"`
}

// JobSubmitRequest creates a new job.
type JobSubmitRequest struct {
	OwnerID       string `json:"owner_id"`
	Theme         string `json:"theme"`
	TitleStyle    string `json:"title_style"`
	AuthorStyle   string `json:"author_style"`
	ResearchDepth string `json:"research_depth"`
}

// JobSubmitResponse contains the created job.
type JobSubmitResponse struct {
	Job Job `json:"job"`
}

// JobListRequest filters job listing by status or owner.
type JobListRequest struct {
	Statuses []string `json:"statuses"`
	OwnerID  string   `json:"owner_id"`
}

// JobListResponse contains job entries.
type JobListResponse struct {
	Jobs []Job `json:"jobs"`
}

// JobDescribeRequest fetches a single job by id.
type JobDescribeRequest struct {
	ID string `json:"id"`
}

// JobDescribeResponse contains a single job, with its pending decision when
// one exists.
type JobDescribeResponse struct {
	Job Job `json:"job"`
}

// JobCancelRequest flags a job for cancellation.
type JobCancelRequest struct {
	ID string `json:"id"`
}

// JobCancelResponse reports cancellation acceptance.
type JobCancelResponse struct {
	Requested bool `json:"requested"`
}

// JobDecideRequest resolves a job's pending title decision.
type JobDecideRequest struct {
	JobID  string `json:"job_id"`
	Choice string `json:"choice"`
}

// JobDecideResponse contains the resolved decision.
type JobDecideResponse struct {
	Decision Decision `json:"decision"`
}

// JobEventsRequest fetches progress events after a sequence cursor.
type JobEventsRequest struct {
	JobID      string `json:"job_id"`
	Since      uint64 `json:"since"`
	Follow     bool   `json:"follow"`
	WaitMillis int    `json:"wait_millis"`
}

// JobEventsResponse returns progress events and the next cursor.
type JobEventsResponse struct {
	Events []ProgressEvent `json:"events"`
	Next   uint64          `json:"next"`
}

// JobsHealthRequest fetches aggregate diagnostics.
type JobsHealthRequest struct{}

// JobsHealthResponse reports job health information.
type JobsHealthResponse struct {
	Total            int `json:"total"`
	Waiting          int `json:"waiting"`
	Processing       int `json:"processing"`
	AwaitingDecision int `json:"awaiting_decision"`
	Failed           int `json:"failed"`
	Completed        int `json:"completed"`
	Cancelled        int `json:"cancelled"`
}

// TestNotificationRequest triggers a notification test.
type TestNotificationRequest struct{}

// TestNotificationResponse reports notification test outcome.
type TestNotificationResponse struct {
	Sent    bool   `json:"sent"`
	Message string `json:"message"`
}
