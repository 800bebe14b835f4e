package stage

import (
	"context"

	"inkwell/internal/jobs"
)

// Context carries the job and its accumulated stage outputs into a handler.
type Context struct {
	Job     *jobs.Job
	Results map[jobs.Stage]jobs.StageResult
}

// Output returns a prior stage's result. Reports false when the stage has
// not completed.
func (c *Context) Output(stage jobs.Stage) (jobs.StageResult, bool) {
	result, ok := c.Results[stage]
	return result, ok
}

// DecisionPrompt asks the workflow manager to park the job until an external
// choice resolves it.
type DecisionPrompt struct {
	Options []string
}

// Outcome is the result of a successful stage execution.
type Outcome struct {
	// Output is the JSON-encoded durable output recorded for the stage.
	Output string
	// FallbackUsed marks outputs produced by a degraded path.
	FallbackUsed bool
	// Decision, when non-nil, suspends the job awaiting a choice instead of
	// advancing to the next stage.
	Decision *DecisionPrompt
}

// Handler describes the contract the workflow manager needs from each
// pipeline stage.
type Handler interface {
	// Stage identifies which pipeline phase this handler executes.
	Stage() jobs.Stage
	Prepare(context.Context, *Context) error
	Execute(context.Context, *Context) (Outcome, error)
	HealthCheck(context.Context) Health
}

// ProgressFunc lets a stage report intra-stage progress. Message is
// user-facing; percent is absolute for the whole job.
type ProgressFunc func(message string, percent float64)

type progressKey struct{}

// WithProgress attaches a progress callback to the context.
func WithProgress(ctx context.Context, fn ProgressFunc) context.Context {
	return context.WithValue(ctx, progressKey{}, fn)
}

// Progress returns the attached progress callback, or a no-op.
func Progress(ctx context.Context) ProgressFunc {
	if fn, ok := ctx.Value(progressKey{}).(ProgressFunc); ok && fn != nil {
		return fn
	}
	return func(string, float64) {}
}
