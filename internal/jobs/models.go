package jobs

import (
	"strings"
	"time"
)

// Status represents the lifecycle of a job.
type Status string

const (
	StatusCreated          Status = "created"
	StatusOnboarding       Status = "onboarding"
	StatusOnboarded        Status = "onboarded"
	StatusDiscovering      Status = "discovering"
	StatusAwaitingDecision Status = "awaiting_decision"
	StatusDecided          Status = "decided"
	StatusResearching      Status = "researching"
	StatusResearched       Status = "researched"
	StatusCurating         Status = "curating"
	StatusCurated          Status = "curated"
	StatusEditing          Status = "editing"
	StatusEdited           Status = "edited"
	StatusMediaGenerating  Status = "media_generating"
	StatusMediaReady       Status = "media_ready"
	StatusAssembling       Status = "assembling"
	StatusCompleted        Status = "completed"
	StatusFailed           Status = "failed"
	StatusCancelled        Status = "cancelled"
)

// UserCancelMessage is the error message set when a user cancels a job.
const UserCancelMessage = "Cancelled by user"

// DaemonStopMessage is the progress message set when jobs are interrupted by daemon shutdown.
const DaemonStopMessage = "Daemon stopped"

var allStatuses = []Status{
	StatusCreated,
	StatusOnboarding,
	StatusOnboarded,
	StatusDiscovering,
	StatusAwaitingDecision,
	StatusDecided,
	StatusResearching,
	StatusResearched,
	StatusCurating,
	StatusCurated,
	StatusEditing,
	StatusEdited,
	StatusMediaGenerating,
	StatusMediaReady,
	StatusAssembling,
	StatusCompleted,
	StatusFailed,
	StatusCancelled,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

// Stage identifies one fixed phase of the generation pipeline.
type Stage string

const (
	StageOnboarding Stage = "onboarding"
	StageDiscovery  Stage = "discovery"
	StageResearch   Stage = "research"
	StageCuration   Stage = "curation"
	StageEditing    Stage = "editing"
	StageMedia      Stage = "media"
	StageAssembly   Stage = "assembly"
)

// stageSpec fixes the status pair and cumulative progress weight of a stage.
type stageSpec struct {
	stage      Stage
	start      Status
	processing Status
	done       Status
	percent    float64
}

// stageOrder is the authoritative pipeline order. The done status of each
// stage is the start status of the next, except for discovery which always
// parks the job awaiting a decision; resolution moves it to StatusDecided.
var stageOrder = []stageSpec{
	{StageOnboarding, StatusCreated, StatusOnboarding, StatusOnboarded, 10},
	{StageDiscovery, StatusOnboarded, StatusDiscovering, StatusAwaitingDecision, 20},
	{StageResearch, StatusDecided, StatusResearching, StatusResearched, 40},
	{StageCuration, StatusResearched, StatusCurating, StatusCurated, 55},
	{StageEditing, StatusCurated, StatusEditing, StatusEdited, 70},
	{StageMedia, StatusEdited, StatusMediaGenerating, StatusMediaReady, 85},
	{StageAssembly, StatusMediaReady, StatusAssembling, StatusCompleted, 100},
}

var (
	specByStage = func() map[Stage]stageSpec {
		m := make(map[Stage]stageSpec, len(stageOrder))
		for _, s := range stageOrder {
			m[s.stage] = s
		}
		return m
	}()
	specByStart = func() map[Status]stageSpec {
		m := make(map[Status]stageSpec, len(stageOrder))
		for _, s := range stageOrder {
			m[s.start] = s
		}
		return m
	}()
	processingStatuses = func() map[Status]struct{} {
		m := make(map[Status]struct{}, len(stageOrder))
		for _, s := range stageOrder {
			m[s.processing] = struct{}{}
		}
		return m
	}()
)

// Stages returns the pipeline stages in execution order.
func Stages() []Stage {
	out := make([]Stage, len(stageOrder))
	for i, s := range stageOrder {
		out[i] = s.stage
	}
	return out
}

// StartStatuses returns the statuses from which a stage may be claimed,
// in pipeline order.
func StartStatuses() []Status {
	out := make([]Status, len(stageOrder))
	for i, s := range stageOrder {
		out[i] = s.start
	}
	return out
}

// ProcessingStatuses returns the in-flight statuses, in pipeline order.
func ProcessingStatuses() []Status {
	out := make([]Status, len(stageOrder))
	for i, s := range stageOrder {
		out[i] = s.processing
	}
	return out
}

// StageForStartStatus maps a claimable status to the stage that handles it.
func StageForStartStatus(status Status) (Stage, bool) {
	spec, ok := specByStart[status]
	return spec.stage, ok
}

// ProcessingStatusFor returns the in-flight status of a stage.
func ProcessingStatusFor(stage Stage) Status {
	return specByStage[stage].processing
}

// DoneStatusFor returns the status a job assumes once a stage completes.
func DoneStatusFor(stage Stage) Status {
	return specByStage[stage].done
}

// PercentFor returns the cumulative progress percentage reached when a stage
// completes.
func PercentFor(stage Stage) float64 {
	return specByStage[stage].percent
}

// RollbackStatus maps an in-flight status back to its stage start status so
// interrupted work can be reclaimed. Reports false for statuses that are not
// in-flight.
func RollbackStatus(status Status) (Status, bool) {
	for _, s := range stageOrder {
		if s.processing == status {
			return s.start, true
		}
	}
	return "", false
}

// AllStatuses returns the ordered list of known statuses.
func AllStatuses() []Status {
	cp := make([]Status, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := statusSet[normalized]
	return normalized, ok
}

// IsTerminal reports whether a status ends the job lifecycle.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	default:
		return false
	}
}

// IsProcessing reports whether a status reflects an in-flight stage.
func (s Status) IsProcessing() bool {
	_, ok := processingStatuses[s]
	return ok
}

// StageKey returns the client-facing stage identifier for a status: in-between
// statuses collapse onto the stage about to run so API consumers see the
// spec'd stage vocabulary.
func (s Status) StageKey() string {
	switch s {
	case "":
		return ""
	case StatusCreated, StatusOnboarding:
		return "onboarding"
	case StatusOnboarded, StatusDiscovering:
		return "discovering"
	case StatusAwaitingDecision:
		return "awaiting_decision"
	case StatusDecided, StatusResearching:
		return "researching"
	case StatusResearched, StatusCurating:
		return "curating"
	case StatusCurated, StatusEditing:
		return "editing"
	case StatusEdited, StatusMediaGenerating:
		return "media_generating"
	case StatusMediaReady, StatusAssembling:
		return "assembling"
	case StatusCompleted, StatusFailed, StatusCancelled:
		return string(s)
	default:
		return ""
	}
}

// HealthSummary describes aggregated job counts per key lifecycle states.
type HealthSummary struct {
	Total            int
	Waiting          int
	Processing       int
	AwaitingDecision int
	Failed           int
	Completed        int
	Cancelled        int
}

// Job represents a pipeline run persisted in SQLite.
type Job struct {
	ID              string
	OwnerID         string
	Status          Status
	Preferences     Preferences
	SelectedTitle   string
	ProgressStage   string
	ProgressPercent float64
	ProgressMessage string
	ErrorMessage    string
	ErrorKind       string
	ArtifactPath    string
	CancelRequested bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
	LastHeartbeat   *time.Time
}

// SetProgress updates all three progress fields together. Percent never moves
// backwards within a run.
func (j *Job) SetProgress(stage, message string, percent float64) {
	j.ProgressStage = stage
	j.ProgressMessage = message
	if percent > j.ProgressPercent {
		j.ProgressPercent = percent
	}
}

// SetFailed marks the job as failed with the given error message and kind.
func (j *Job) SetFailed(kind, message string) {
	j.Status = StatusFailed
	j.ErrorKind = kind
	j.ErrorMessage = message
	j.ProgressMessage = message
	j.ProgressStage = "Failed"
	j.LastHeartbeat = nil
}

// SetCancelled marks the job as cancelled and clears in-flight bookkeeping.
func (j *Job) SetCancelled() {
	j.Status = StatusCancelled
	j.ProgressStage = "Cancelled"
	j.ProgressMessage = UserCancelMessage
	j.LastHeartbeat = nil
}

// StageResult captures the durable output of one completed stage.
type StageResult struct {
	JobID        string
	Stage        Stage
	OutputJSON   string
	FallbackUsed bool
	AttemptCount int
	CompletedAt  time.Time
}

// DecisionStatus tracks the lifecycle of a pending user decision.
type DecisionStatus string

const (
	DecisionPending  DecisionStatus = "pending"
	DecisionResolved DecisionStatus = "resolved"
	DecisionExpired  DecisionStatus = "expired"
)

// DecisionRequest records a pipeline juncture that needs an external choice.
type DecisionRequest struct {
	ID            string
	JobID         string
	Stage         Stage
	Options       []string
	Status        DecisionStatus
	ResolvedValue string
	CreatedAt     time.Time
	ExpiresAt     time.Time
	ResolvedAt    *time.Time
}

// HasOption reports whether value is one of the offered candidates.
func (d *DecisionRequest) HasOption(value string) bool {
	for _, opt := range d.Options {
		if opt == value {
			return true
		}
	}
	return false
}
