package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"inkwell/internal/config"
	"inkwell/internal/jobs"
	"inkwell/internal/logging"
	"inkwell/internal/services/assembler"
	"inkwell/internal/stage"
)

// Assembly writes the final bundle directory and records its path.
type Assembly struct {
	cfg    *config.Config
	asm    *assembler.Assembler
	logger *slog.Logger
}

// NewAssembly constructs the assembly stage handler.
func NewAssembly(cfg *config.Config, logger *slog.Logger) *Assembly {
	return &Assembly{
		cfg:    cfg,
		asm:    assembler.New(cfg.Paths.ArtifactDir),
		logger: logging.NewComponentLogger(logger, "assembly"),
	}
}

func (a *Assembly) Stage() jobs.Stage {
	return jobs.StageAssembly
}

func (a *Assembly) Prepare(ctx context.Context, sc *stage.Context) error {
	sc.Job.SetProgress("Assembling", "Writing final bundle", sc.Job.ProgressPercent)
	return nil
}

func (a *Assembly) Execute(ctx context.Context, sc *stage.Context) (stage.Outcome, error) {
	logger := logging.WithContext(ctx, a.logger)

	var edited EditingOutput
	if err := decodeOutput(sc, jobs.StageEditing, &edited); err != nil {
		return stage.Outcome{}, err
	}
	var media MediaOutput
	if err := decodeOutput(sc, jobs.StageMedia, &media); err != nil {
		return stage.Outcome{}, err
	}

	cover, err := os.ReadFile(media.CoverPath)
	if err != nil {
		return stage.Outcome{}, fmt.Errorf("read cover %s: %w", media.CoverPath, err)
	}

	bundlePath, err := a.asm.Write(assembler.Bundle{
		JobID:       sc.Job.ID,
		Title:       sc.Job.SelectedTitle,
		Document:    edited.Document,
		Companion:   edited.Companion,
		CoverImage:  cover,
		CoverFormat: media.CoverFormat,
		Placeholder: media.Placeholder,
		Metadata: map[string]any{
			"theme":          sc.Job.Preferences.Theme,
			"research_depth": sc.Job.Preferences.ResearchDepth,
		},
	})
	if err != nil {
		return stage.Outcome{}, err
	}
	sc.Job.ArtifactPath = bundlePath
	logger.Info("bundle written", logging.String("path", bundlePath))

	output, err := encodeOutput(jobs.StageAssembly, AssemblyOutput{BundlePath: bundlePath})
	if err != nil {
		return stage.Outcome{}, err
	}
	return stage.Outcome{Output: output, FallbackUsed: media.Placeholder}, nil
}

func (a *Assembly) HealthCheck(ctx context.Context) stage.Health {
	if err := os.MkdirAll(a.cfg.Paths.ArtifactDir, 0o755); err != nil {
		return stage.Unhealthy("assembly", fmt.Sprintf("artifact dir: %v", err))
	}
	return stage.Healthy("assembly")
}
