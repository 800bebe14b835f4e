package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"inkwell/internal/config"
	"inkwell/internal/jobs"
	"inkwell/internal/logging"
	"inkwell/internal/services/imagegen"
	"inkwell/internal/stage"
)

// Media requests a cover image from the image backend. An unavailable
// backend degrades to a deterministic placeholder rather than failing the
// job.
type Media struct {
	cfg      *config.Config
	renderer imagegen.Renderer
	logger   *slog.Logger
}

// NewMedia constructs the media stage handler.
func NewMedia(cfg *config.Config, renderer imagegen.Renderer, logger *slog.Logger) *Media {
	return &Media{cfg: cfg, renderer: renderer, logger: logging.NewComponentLogger(logger, "media")}
}

func (m *Media) Stage() jobs.Stage {
	return jobs.StageMedia
}

func (m *Media) Prepare(ctx context.Context, sc *stage.Context) error {
	sc.Job.SetProgress("Generating media", "Rendering cover image", sc.Job.ProgressPercent)
	return nil
}

func (m *Media) Execute(ctx context.Context, sc *stage.Context) (stage.Outcome, error) {
	logger := logging.WithContext(ctx, m.logger)

	var (
		image       []byte
		format      string
		placeholder bool
	)
	if m.renderer != nil && m.renderer.Enabled() {
		rendered, err := m.renderer.Render(ctx, coverPrompt(sc.Job.SelectedTitle, sc.Job.Preferences.Theme))
		switch {
		case err == nil:
			image = rendered
			format = "png"
		case errors.Is(err, imagegen.ErrUnavailable):
			logger.Warn("image backend unavailable, using placeholder cover", logging.Error(err))
		default:
			return stage.Outcome{}, err
		}
	}
	if image == nil {
		image = placeholderCover(sc.Job.SelectedTitle)
		format = "svg"
		placeholder = true
	}

	coverDir := filepath.Join(m.cfg.Paths.DataDir, "covers")
	if err := os.MkdirAll(coverDir, 0o755); err != nil {
		return stage.Outcome{}, fmt.Errorf("create cover dir: %w", err)
	}
	coverPath := filepath.Join(coverDir, sc.Job.ID+"."+format)
	if err := os.WriteFile(coverPath, image, 0o644); err != nil {
		return stage.Outcome{}, fmt.Errorf("write cover: %w", err)
	}

	logger.Info("cover ready",
		logging.String("path", coverPath),
		logging.Bool("placeholder", placeholder),
	)

	output, err := encodeOutput(jobs.StageMedia, MediaOutput{
		CoverPath:   coverPath,
		CoverFormat: format,
		Placeholder: placeholder,
	})
	if err != nil {
		return stage.Outcome{}, err
	}
	return stage.Outcome{Output: output, FallbackUsed: placeholder}, nil
}

// placeholderCover renders a deterministic SVG cover from the title so
// repeated runs produce byte-identical artifacts.
func placeholderCover(title string) []byte {
	return []byte(fmt.Sprintf(
		`<svg xmlns="http://www.w3.org/2000/svg" width="1024" height="1024">`+
			`<rect width="1024" height="1024" fill="#22333b"/>`+
			`<text x="512" y="512" text-anchor="middle" fill="#eae0d5" font-size="48" font-family="serif">%s</text>`+
			`</svg>`,
		svgEscape(title),
	))
}

var svgEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;", `"`, "&quot;")

func svgEscape(value string) string {
	return svgEscaper.Replace(value)
}

func (m *Media) HealthCheck(ctx context.Context) stage.Health {
	return stage.Healthy("media")
}
