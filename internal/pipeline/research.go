package pipeline

import (
	"context"
	"fmt"
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

// Research gathers insights for the selected title, capped at the budget
// resolved during onboarding.
type Research struct {
	cfg    *config.Config
	gen    textgen.Generator
	gate   *ratelimit.OwnerGate
	logger *slog.Logger
}

// NewResearch constructs the research stage handler.
func NewResearch(cfg *config.Config, gen textgen.Generator, gate *ratelimit.OwnerGate, logger *slog.Logger) *Research {
	return &Research{cfg: cfg, gen: gen, gate: gate, logger: logging.NewComponentLogger(logger, "research")}
}

func (r *Research) Stage() jobs.Stage {
	return jobs.StageResearch
}

func (r *Research) Prepare(ctx context.Context, sc *stage.Context) error {
	if strings.TrimSpace(sc.Job.SelectedTitle) == "" {
		return services.Wrap(services.ErrFatal, "research", "validate inputs",
			"no selected title on job; discovery decision was never resolved", nil)
	}
	sc.Job.SetProgress("Researching", "Gathering insights", sc.Job.ProgressPercent)
	return nil
}

func (r *Research) Execute(ctx context.Context, sc *stage.Context) (stage.Outcome, error) {
	logger := logging.WithContext(ctx, r.logger)

	var onboarding OnboardingOutput
	if err := decodeOutput(sc, jobs.StageOnboarding, &onboarding); err != nil {
		return stage.Outcome{}, err
	}
	budget := onboarding.InsightBudget
	if budget <= 0 {
		budget = r.cfg.InsightBudget(sc.Job.Preferences.ResearchDepth)
	}

	raw, err := generateJSON(ctx, r.gate, r.gen, sc.Job.OwnerID, "research",
		researchSystemPrompt, researchUserPrompt(sc.Job.SelectedTitle, sc.Job.Preferences.Theme, budget))
	if err != nil {
		return stage.Outcome{}, err
	}

	var payload struct {
		Insights []string `json:"insights"`
	}
	if err := textgen.DecodeJSON(raw, &payload); err != nil {
		return stage.Outcome{}, services.Wrap(services.ErrRecoverable, "research", "parse insights",
			"backend returned unparseable research payload", err)
	}

	insights := make([]string, 0, budget)
	for _, insight := range payload.Insights {
		insight = strings.TrimSpace(insight)
		if insight == "" {
			continue
		}
		insights = append(insights, insight)
		if len(insights) == budget {
			break
		}
	}
	if len(insights) == 0 {
		return stage.Outcome{}, services.Wrap(services.ErrRecoverable, "research", "parse insights",
			"backend returned no usable insights", nil)
	}
	stage.Progress(ctx)(fmt.Sprintf("Collected %d insights", len(insights)),
		(sc.Job.ProgressPercent+jobs.PercentFor(jobs.StageResearch))/2)
	logger.Info("insights gathered",
		logging.Int("count", len(insights)),
		logging.Int("budget", budget),
	)

	output, err := encodeOutput(jobs.StageResearch, ResearchOutput{
		Title:    sc.Job.SelectedTitle,
		Insights: insights,
	})
	if err != nil {
		return stage.Outcome{}, err
	}
	return stage.Outcome{Output: output}, nil
}

func (r *Research) HealthCheck(ctx context.Context) stage.Health {
	if r.gen == nil {
		return stage.Unhealthy("research", "text generation backend not configured")
	}
	return stage.Healthy("research")
}
