package testsupport

import (
	"path/filepath"
	"testing"

	"inkwell/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.DataDir = filepath.Join(base, "data")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.ArtifactDir = filepath.Join(base, "artifacts")
	cfgVal.Paths.APIBind = "127.0.0.1:0"
	cfgVal.TextGen.APIKey = "test"
	cfgVal.Workflow.QueuePollInterval = 1
	cfgVal.Workflow.HeartbeatInterval = 1
	cfgVal.Workflow.HeartbeatTimeout = 2

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithTextGenKey sets the text generation API key on the test config.
func WithTextGenKey(key string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.TextGen.APIKey = key
	}
}

// WithImageGen enables the image backend against the provided base URL.
func WithImageGen(baseURL string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.ImageGen.Enabled = true
		b.cfg.ImageGen.BaseURL = baseURL
	}
}

// WithDecisionTimeout overrides the decision expiry window in minutes.
func WithDecisionTimeout(minutes int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Decisions.TimeoutMinutes = minutes
	}
}

// WithTitleFallback sets the decision fallback policy on the test config.
func WithTitleFallback(policy string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Decisions.TitleFallback = policy
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.DataDir)
}
