package pipeline

import (
	"encoding/json"
	"fmt"

	"inkwell/internal/jobs"
	"inkwell/internal/services"
	"inkwell/internal/stage"
)

// OnboardingOutput records the normalized preferences and resolved budget.
type OnboardingOutput struct {
	Preferences   jobs.Preferences `json:"preferences"`
	InsightBudget int              `json:"insight_budget"`
}

// DiscoveryOutput records the title candidates offered for decision.
type DiscoveryOutput struct {
	Candidates []string `json:"candidates"`
}

// ResearchOutput records the gathered insights for the selected title.
type ResearchOutput struct {
	Title    string   `json:"title"`
	Insights []string `json:"insights"`
}

// CurationOutput records the long-form draft and short-form companion.
type CurationOutput struct {
	Document  string `json:"document"`
	Companion string `json:"companion"`
}

// EditingOutput records the refined artifacts.
type EditingOutput struct {
	Document  string `json:"document"`
	Companion string `json:"companion"`
}

// MediaOutput records the cover image location and whether a placeholder
// stood in for the real backend.
type MediaOutput struct {
	CoverPath   string `json:"cover_path"`
	CoverFormat string `json:"cover_format"`
	Placeholder bool   `json:"placeholder"`
}

// AssemblyOutput records the final bundle location.
type AssemblyOutput struct {
	BundlePath string `json:"bundle_path"`
}

func encodeOutput(stageName jobs.Stage, payload any) (string, error) {
	encoded, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("encode %s output: %w", stageName, err)
	}
	return string(encoded), nil
}

// decodeOutput loads a prior stage's payload from the stage context. A
// missing or corrupt upstream output is fatal: the pipeline ordering
// guarantees it should exist.
func decodeOutput(sc *stage.Context, stageName jobs.Stage, target any) error {
	result, ok := sc.Output(stageName)
	if !ok {
		return services.Wrap(services.ErrFatal, string(stageName), "load upstream output",
			fmt.Sprintf("required %s output is missing", stageName), nil)
	}
	if err := json.Unmarshal([]byte(result.OutputJSON), target); err != nil {
		return services.Wrap(services.ErrFatal, string(stageName), "load upstream output",
			fmt.Sprintf("stored %s output is corrupt", stageName), err)
	}
	return nil
}
