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

// Curation produces the long-form draft and its short-form companion in a
// single backend invocation. Both artifacts are mandatory.
type Curation struct {
	cfg    *config.Config
	gen    textgen.Generator
	gate   *ratelimit.OwnerGate
	logger *slog.Logger
}

// NewCuration constructs the curation stage handler.
func NewCuration(cfg *config.Config, gen textgen.Generator, gate *ratelimit.OwnerGate, logger *slog.Logger) *Curation {
	return &Curation{cfg: cfg, gen: gen, gate: gate, logger: logging.NewComponentLogger(logger, "curation")}
}

func (c *Curation) Stage() jobs.Stage {
	return jobs.StageCuration
}

func (c *Curation) Prepare(ctx context.Context, sc *stage.Context) error {
	sc.Job.SetProgress("Curating", "Drafting document and companion", sc.Job.ProgressPercent)
	return nil
}

func (c *Curation) Execute(ctx context.Context, sc *stage.Context) (stage.Outcome, error) {
	logger := logging.WithContext(ctx, c.logger)

	var research ResearchOutput
	if err := decodeOutput(sc, jobs.StageResearch, &research); err != nil {
		return stage.Outcome{}, err
	}

	raw, err := generateJSON(ctx, c.gate, c.gen, sc.Job.OwnerID, "curation",
		curationSystemPrompt, curationUserPrompt(sc.Job.SelectedTitle, sc.Job.Preferences.Theme, research.Insights))
	if err != nil {
		return stage.Outcome{}, err
	}

	var payload CurationOutput
	if err := textgen.DecodeJSON(raw, &payload); err != nil {
		return stage.Outcome{}, services.Wrap(services.ErrRecoverable, "curation", "parse draft",
			"backend returned unparseable draft payload", err)
	}
	payload.Document = strings.TrimSpace(payload.Document)
	payload.Companion = strings.TrimSpace(payload.Companion)
	if payload.Document == "" || payload.Companion == "" {
		return stage.Outcome{}, services.Wrap(services.ErrFatal, "curation", "validate draft",
			"draft is incomplete; both document and companion are required", nil)
	}

	logger.Info("draft complete",
		logging.Int("document_bytes", len(payload.Document)),
		logging.Int("companion_bytes", len(payload.Companion)),
	)

	output, err := encodeOutput(jobs.StageCuration, payload)
	if err != nil {
		return stage.Outcome{}, err
	}
	return stage.Outcome{Output: output}, nil
}

func (c *Curation) HealthCheck(ctx context.Context) stage.Health {
	if c.gen == nil {
		return stage.Unhealthy("curation", "text generation backend not configured")
	}
	return stage.Healthy("curation")
}
