package main

import (
	"log/slog"

	"inkwell/internal/config"
	"inkwell/internal/pipeline"
	"inkwell/internal/ratelimit"
	"inkwell/internal/services/imagegen"
	"inkwell/internal/services/textgen"
	"inkwell/internal/stage"
)

type stageRegistrar interface {
	Register(stage.Handler)
}

// registerStages wires the full pipeline. All text stages share one backend
// client and one per-owner gate so concurrent jobs from the same owner never
// race on generation calls.
func registerStages(reg stageRegistrar, cfg *config.Config, logger *slog.Logger) {
	if reg == nil || cfg == nil {
		return
	}

	gen := textgen.NewClient(cfg.TextGen)
	gate := ratelimit.NewOwnerGate()
	renderer := imagegen.NewClient(cfg.ImageGen)

	reg.Register(pipeline.NewOnboarding(cfg, logger))
	reg.Register(pipeline.NewDiscovery(cfg, gen, gate, logger))
	reg.Register(pipeline.NewResearch(cfg, gen, gate, logger))
	reg.Register(pipeline.NewCuration(cfg, gen, gate, logger))
	reg.Register(pipeline.NewEditing(cfg, gen, gate, logger))
	reg.Register(pipeline.NewMedia(cfg, renderer, logger))
	reg.Register(pipeline.NewAssembly(cfg, logger))
}
