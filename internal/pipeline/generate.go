package pipeline

import (
	"context"

	"inkwell/internal/ratelimit"
	"inkwell/internal/services"
	"inkwell/internal/services/textgen"
)

// generateJSON routes a textgen call through the per-owner gate so a single
// owner never holds more than one backend call in flight.
func generateJSON(ctx context.Context, gate *ratelimit.OwnerGate, gen textgen.Generator, ownerID, stageName, systemPrompt, userPrompt string) (string, error) {
	if gen == nil {
		return "", services.Wrap(services.ErrConfiguration, stageName, "generate", "text generation backend not configured", nil)
	}
	if gate != nil {
		release, err := gate.Acquire(ctx, ownerID)
		if err != nil {
			return "", services.Wrap(services.ErrRecoverable, stageName, "generate", "interrupted waiting for generation slot", err)
		}
		defer release()
	}
	return gen.GenerateJSON(ctx, systemPrompt, userPrompt)
}
