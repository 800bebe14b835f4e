package pipeline

import (
	"context"
	"log/slog"

	"inkwell/internal/config"
	"inkwell/internal/jobs"
	"inkwell/internal/logging"
	"inkwell/internal/stage"
)

// Onboarding validates submitted preferences and resolves the research
// budget the rest of the pipeline works against.
type Onboarding struct {
	cfg    *config.Config
	logger *slog.Logger
}

// NewOnboarding constructs the onboarding stage handler.
func NewOnboarding(cfg *config.Config, logger *slog.Logger) *Onboarding {
	return &Onboarding{cfg: cfg, logger: logging.NewComponentLogger(logger, "onboarding")}
}

func (o *Onboarding) Stage() jobs.Stage {
	return jobs.StageOnboarding
}

func (o *Onboarding) Prepare(ctx context.Context, sc *stage.Context) error {
	sc.Job.SetProgress("Onboarding", "Validating preferences", sc.Job.ProgressPercent)
	return nil
}

func (o *Onboarding) Execute(ctx context.Context, sc *stage.Context) (stage.Outcome, error) {
	logger := logging.WithContext(ctx, o.logger)

	prefs := sc.Job.Preferences
	if err := prefs.Validate(); err != nil {
		return stage.Outcome{}, err
	}
	sc.Job.Preferences = prefs

	budget := o.cfg.InsightBudget(prefs.ResearchDepth)
	logger.Info("preferences accepted",
		logging.String("research_depth", prefs.ResearchDepth),
		logging.Int("insight_budget", budget),
	)

	output, err := encodeOutput(jobs.StageOnboarding, OnboardingOutput{
		Preferences:   prefs,
		InsightBudget: budget,
	})
	if err != nil {
		return stage.Outcome{}, err
	}
	return stage.Outcome{Output: output}, nil
}

func (o *Onboarding) HealthCheck(ctx context.Context) stage.Health {
	return stage.Healthy("onboarding")
}
