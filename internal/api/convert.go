package api

import (
	"slices"
	"time"

	"inkwell/internal/jobs"
	"inkwell/internal/progress"
	"inkwell/internal/stage"
	"inkwell/internal/workflow"
)

// FromJob converts a job record to its API representation.
func FromJob(job *jobs.Job) Job {
	if job == nil {
		return Job{}
	}

	dto := Job{
		ID:      job.ID,
		OwnerID: job.OwnerID,
		Status:  string(job.Status),
		Stage:   job.Status.StageKey(),
		Preferences: Preferences{
			Theme:         job.Preferences.Theme,
			TitleStyle:    job.Preferences.TitleStyle,
			AuthorStyle:   job.Preferences.AuthorStyle,
			ResearchDepth: job.Preferences.ResearchDepth,
		},
		SelectedTitle: job.SelectedTitle,
		Progress: JobProgress{
			Stage:   job.ProgressStage,
			Percent: job.ProgressPercent,
			Message: job.ProgressMessage,
		},
		ErrorMessage: job.ErrorMessage,
		ErrorKind:    job.ErrorKind,
		ArtifactPath: job.ArtifactPath,
	}
	if !job.CreatedAt.IsZero() {
		dto.CreatedAt = job.CreatedAt.UTC().Format(dateTimeFormat)
	}
	if !job.UpdatedAt.IsZero() {
		dto.UpdatedAt = job.UpdatedAt.UTC().Format(dateTimeFormat)
	}
	return dto
}

// FromJobs converts a slice of job records into API DTOs.
func FromJobs(records []*jobs.Job) []Job {
	if len(records) == 0 {
		return nil
	}
	out := make([]Job, 0, len(records))
	for _, job := range records {
		out = append(out, FromJob(job))
	}
	return out
}

// FromDecision converts a decision record to its API representation.
func FromDecision(decision *jobs.DecisionRequest) Decision {
	if decision == nil {
		return Decision{}
	}
	dto := Decision{
		ID:            decision.ID,
		JobID:         decision.JobID,
		Stage:         string(decision.Stage),
		Options:       slices.Clone(decision.Options),
		Status:        string(decision.Status),
		ResolvedValue: decision.ResolvedValue,
	}
	if !decision.CreatedAt.IsZero() {
		dto.CreatedAt = decision.CreatedAt.UTC().Format(dateTimeFormat)
	}
	if !decision.ExpiresAt.IsZero() {
		dto.ExpiresAt = decision.ExpiresAt.UTC().Format(dateTimeFormat)
	}
	return dto
}

// FromStatusSummary converts a workflow status summary to API payload.
func FromStatusSummary(summary workflow.StatusSummary) WorkflowStatus {
	wf := WorkflowStatus{
		Running:     summary.Running,
		JobStats:    summary.JobStats,
		StageHealth: StageHealthSlice(summary.StageHealth),
	}
	if summary.LastError != "" {
		wf.LastError = summary.LastError
	}
	if summary.LastJob != nil {
		last := FromJob(summary.LastJob)
		wf.LastJob = &last
	}
	return wf
}

// FromProgressEvent converts a hub event to its transport form.
func FromProgressEvent(evt progress.Event) ProgressEvent {
	return ProgressEvent{
		Sequence:  evt.Sequence,
		Timestamp: evt.Timestamp.UTC().Format(dateTimeFormat),
		JobID:     evt.JobID,
		Type:      string(evt.Type),
		Stage:     evt.Stage,
		Percent:   evt.Percent,
		Message:   evt.Message,
		Fields:    evt.Fields,
	}
}

// FromProgressEvents converts a slice of hub events into API DTOs.
func FromProgressEvents(events []progress.Event) []ProgressEvent {
	if len(events) == 0 {
		return nil
	}
	out := make([]ProgressEvent, 0, len(events))
	for _, evt := range events {
		out = append(out, FromProgressEvent(evt))
	}
	return out
}

// StageHealthSlice converts a stage health map into a deterministic slice.
func StageHealthSlice(health map[string]stage.Health) []StageHealth {
	if len(health) == 0 {
		return nil
	}
	names := make([]string, 0, len(health))
	for name := range health {
		names = append(names, name)
	}
	slices.Sort(names)

	out := make([]StageHealth, 0, len(names))
	for _, name := range names {
		h := health[name]
		out = append(out, StageHealth{Name: name, Ready: h.Ready, Detail: h.Detail})
	}
	return out
}

// FormatTime converts a time to RFC3339 or returns empty string.
func FormatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(dateTimeFormat)
}
