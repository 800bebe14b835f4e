package api

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// Job describes a pipeline run in a transport-friendly format.
type Job struct {
	ID            string      `json:"id"`
	OwnerID       string      `json:"ownerId"`
	Status        string      `json:"status"`
	Stage         string      `json:"stage"`
	Preferences   Preferences `json:"preferences"`
	SelectedTitle string      `json:"selectedTitle,omitempty"`
	Progress      JobProgress `json:"progress"`
	ErrorMessage  string      `json:"errorMessage,omitempty"`
	ErrorKind     string      `json:"errorKind,omitempty"`
	ArtifactPath  string      `json:"artifactPath,omitempty"`
	CreatedAt     string      `json:"createdAt,omitempty"`
	UpdatedAt     string      `json:"updatedAt,omitempty"`
	Decision      *Decision   `json:"decision,omitempty"`
}

// Preferences mirrors the owner-submitted run parameters.
type Preferences struct {
	Theme         string `json:"theme"`
	TitleStyle    string `json:"titleStyle,omitempty"`
	AuthorStyle   string `json:"authorStyle,omitempty"`
	ResearchDepth string `json:"researchDepth"`
}

// JobProgress captures stage progress information for a job.
type JobProgress struct {
	Stage   string  `json:"stage"`
	Percent float64 `json:"percent"`
	Message string  `json:"message"`
}

// Decision describes a pending or resolved title decision.
type Decision struct {
	ID            string   `json:"id"`
	JobID         string   `json:"jobId"`
	Stage         string   `json:"stage"`
	Options       []string `json:"options"`
	Status        string   `json:"status"`
	ResolvedValue string   `json:"resolvedValue,omitempty"`
	CreatedAt     string   `json:"createdAt,omitempty"`
	ExpiresAt     string   `json:"expiresAt,omitempty"`
}

// WorkflowStatus summarizes workflow execution state.
type WorkflowStatus struct {
	Running     bool           `json:"running"`
	JobStats    map[string]int `json:"jobStats"`
	LastError   string         `json:"lastError,omitempty"`
	LastJob     *Job           `json:"lastJob,omitempty"`
	StageHealth []StageHealth  `json:"stageHealth"`
}

// StageHealth mirrors readiness reporting for pipeline stages.
type StageHealth struct {
	Name   string `json:"name"`
	Ready  bool   `json:"ready"`
	Detail string `json:"detail,omitempty"`
}

// DaemonStatus aggregates daemon runtime information for API consumers.
type DaemonStatus struct {
	Running      bool           `json:"running"`
	PID          int            `json:"pid"`
	DBPath       string         `json:"dbPath"`
	LockFilePath string         `json:"lockFilePath"`
	Workflow     WorkflowStatus `json:"workflow"`
}

// SubmitJobRequest is the payload accepted when creating a job.
type SubmitJobRequest struct {
	OwnerID     string      `json:"ownerId"`
	Preferences Preferences `json:"preferences"`
}

// DecideRequest carries an explicit title choice for a pending decision.
type DecideRequest struct {
	Choice string `json:"choice"`
}

// JobListResponse wraps a collection of jobs for API responses.
type JobListResponse struct {
	Jobs []Job `json:"jobs"`
}

// JobResponse wraps a single job.
type JobResponse struct {
	Job Job `json:"job"`
}

// DecisionResponse wraps a single decision.
type DecisionResponse struct {
	Decision Decision `json:"decision"`
}

// JobStatsResponse provides a normalized job stats payload.
type JobStatsResponse struct {
	Counts map[string]int `json:"counts"`
}

// ProgressEvent is the transport form of a progress hub event.
type ProgressEvent struct {
	Sequence  uint64         `json:"sequence"`
	Timestamp string         `json:"timestamp"`
	JobID     string         `json:"jobId"`
	Type      string         `json:"type"`
	Stage     string         `json:"stage,omitempty"`
	Percent   float64        `json:"percent,omitempty"`
	Message   string         `json:"message,omitempty"`
	Fields    map[string]any `json:"fields,omitempty"`
}

// EventStreamResponse carries replayed progress events plus the next cursor.
type EventStreamResponse struct {
	Events []ProgressEvent `json:"events"`
	Next   uint64          `json:"next"`
}
