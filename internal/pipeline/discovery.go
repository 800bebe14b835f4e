package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"inkwell/internal/config"
	"inkwell/internal/jobs"
	"inkwell/internal/logging"
	"inkwell/internal/ratelimit"
	"inkwell/internal/services"
	"inkwell/internal/services/textgen"
	"inkwell/internal/stage"
)

// Discovery asks the text backend for title candidates and always parks the
// job on a decision: the owner (or the fallback policy) picks the title.
type Discovery struct {
	cfg    *config.Config
	gen    textgen.Generator
	gate   *ratelimit.OwnerGate
	logger *slog.Logger
	titler cases.Caser
}

// NewDiscovery constructs the discovery stage handler.
func NewDiscovery(cfg *config.Config, gen textgen.Generator, gate *ratelimit.OwnerGate, logger *slog.Logger) *Discovery {
	return &Discovery{
		cfg:    cfg,
		gen:    gen,
		gate:   gate,
		logger: logging.NewComponentLogger(logger, "discovery"),
		titler: cases.Title(language.English),
	}
}

func (d *Discovery) Stage() jobs.Stage {
	return jobs.StageDiscovery
}

func (d *Discovery) Prepare(ctx context.Context, sc *stage.Context) error {
	sc.Job.SetProgress("Discovering", "Generating title candidates", sc.Job.ProgressPercent)
	return nil
}

func (d *Discovery) Execute(ctx context.Context, sc *stage.Context) (stage.Outcome, error) {
	logger := logging.WithContext(ctx, d.logger)
	prefs := sc.Job.Preferences

	count := d.cfg.Discovery.CandidateCount
	if count <= 0 {
		count = 3
	}

	raw, err := generateJSON(ctx, d.gate, d.gen, sc.Job.OwnerID, "discovery",
		discoverySystemPrompt, discoveryUserPrompt(prefs.Theme, prefs.TitleStyle, count))
	if err != nil {
		return stage.Outcome{}, err
	}

	var payload struct {
		Titles []string `json:"titles"`
	}
	if err := textgen.DecodeJSON(raw, &payload); err != nil {
		return stage.Outcome{}, services.Wrap(services.ErrRecoverable, "discovery", "parse candidates",
			"backend returned unparseable title payload", err)
	}

	candidates := d.normalizeCandidates(payload.Titles, count)
	if len(candidates) == 0 {
		return stage.Outcome{}, services.Wrap(services.ErrRecoverable, "discovery", "parse candidates",
			"backend returned no usable titles", nil)
	}
	logger.Info("title candidates ready", logging.Int("count", len(candidates)))

	output, err := encodeOutput(jobs.StageDiscovery, DiscoveryOutput{Candidates: candidates})
	if err != nil {
		return stage.Outcome{}, err
	}
	return stage.Outcome{
		Output:   output,
		Decision: &stage.DecisionPrompt{Options: candidates},
	}, nil
}

// normalizeCandidates title-cases, dedupes, and truncates the raw titles.
func (d *Discovery) normalizeCandidates(raw []string, limit int) []string {
	seen := make(map[string]struct{}, len(raw))
	out := make([]string, 0, limit)
	for _, title := range raw {
		title = d.titler.String(strings.TrimSpace(title))
		if title == "" {
			continue
		}
		key := strings.ToLower(title)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, title)
		if len(out) == limit {
			break
		}
	}
	return out
}

func (d *Discovery) HealthCheck(ctx context.Context) stage.Health {
	if d.gen == nil {
		return stage.Unhealthy("discovery", "text generation backend not configured")
	}
	if err := d.gen.HealthCheck(ctx); err != nil {
		return stage.Unhealthy("discovery", fmt.Sprintf("text backend: %v", err))
	}
	return stage.Healthy("discovery")
}
