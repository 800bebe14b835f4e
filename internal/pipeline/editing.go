package pipeline

import (
	"context"
	"log/slog"
	"strings"

	"inkwell/internal/config"
	"inkwell/internal/jobs"
	"inkwell/internal/logging"
	"inkwell/internal/ratelimit"
	"inkwell/internal/services"
	"inkwell/internal/services/textgen"
	"inkwell/internal/stage"
)

// Editing refines the curated artifacts against the requested author style.
type Editing struct {
	cfg    *config.Config
	gen    textgen.Generator
	gate   *ratelimit.OwnerGate
	logger *slog.Logger
}

// NewEditing constructs the editing stage handler.
func NewEditing(cfg *config.Config, gen textgen.Generator, gate *ratelimit.OwnerGate, logger *slog.Logger) *Editing {
	return &Editing{cfg: cfg, gen: gen, gate: gate, logger: logging.NewComponentLogger(logger, "editing")}
}

func (e *Editing) Stage() jobs.Stage {
	return jobs.StageEditing
}

func (e *Editing) Prepare(ctx context.Context, sc *stage.Context) error {
	sc.Job.SetProgress("Editing", "Refining document and companion", sc.Job.ProgressPercent)
	return nil
}

func (e *Editing) Execute(ctx context.Context, sc *stage.Context) (stage.Outcome, error) {
	logger := logging.WithContext(ctx, e.logger)

	var curated CurationOutput
	if err := decodeOutput(sc, jobs.StageCuration, &curated); err != nil {
		return stage.Outcome{}, err
	}

	raw, err := generateJSON(ctx, e.gate, e.gen, sc.Job.OwnerID, "editing",
		editingSystemPrompt, editingUserPrompt(sc.Job.Preferences.AuthorStyle, curated.Document, curated.Companion))
	if err != nil {
		return stage.Outcome{}, err
	}

	var payload EditingOutput
	if err := textgen.DecodeJSON(raw, &payload); err != nil {
		return stage.Outcome{}, services.Wrap(services.ErrRecoverable, "editing", "parse revision",
			"backend returned unparseable revision payload", err)
	}
	payload.Document = strings.TrimSpace(payload.Document)
	payload.Companion = strings.TrimSpace(payload.Companion)

	// An editor that drops an artifact is worse than no editor. Keep the
	// curated version for anything the revision lost.
	if payload.Document == "" {
		payload.Document = curated.Document
	}
	if payload.Companion == "" {
		payload.Companion = curated.Companion
	}
	logger.Info("revision complete", logging.Int("document_bytes", len(payload.Document)))

	output, err := encodeOutput(jobs.StageEditing, payload)
	if err != nil {
		return stage.Outcome{}, err
	}
	return stage.Outcome{Output: output}, nil
}

func (e *Editing) HealthCheck(ctx context.Context) stage.Health {
	if e.gen == nil {
		return stage.Unhealthy("editing", "text generation backend not configured")
	}
	return stage.Healthy("editing")
}
