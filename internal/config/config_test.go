package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"inkwell/internal/config"
)

func TestLoadDefaultsAndExpandsPaths(t *testing.T) {
	t.Setenv("INKWELL_TEXTGEN_API_KEY", "test-key")
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantData := filepath.Join(tempHome, ".local", "share", "inkwell")
	if cfg.Paths.DataDir != wantData {
		t.Fatalf("unexpected data dir: got %q want %q", cfg.Paths.DataDir, wantData)
	}
	if cfg.Paths.APIBind != "127.0.0.1:7319" {
		t.Fatalf("unexpected api bind: %q", cfg.Paths.APIBind)
	}
	if cfg.TextGen.APIKey != "test-key" {
		t.Fatalf("expected textgen key from env, got %q", cfg.TextGen.APIKey)
	}
	if cfg.Workflow.StageRetryLimit != 3 {
		t.Fatalf("unexpected stage retry limit: %d", cfg.Workflow.StageRetryLimit)
	}
	if cfg.Decisions.TitleFallback != config.FallbackFirstOption {
		t.Fatalf("unexpected title fallback: %q", cfg.Decisions.TitleFallback)
	}
	if got := cfg.SocketPath(); !strings.HasPrefix(got, wantData) {
		t.Fatalf("socket path %q not under data dir", got)
	}
}

func TestLoadParsesFileAndValidates(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "inkwell.toml")
	contents := `
[paths]
data_dir = "` + dir + `/data"
log_dir = "` + dir + `/logs"
artifact_dir = "` + dir + `/artifacts"

[workflow]
stage_retry_limit = 5

[decisions]
title_fallback = "fail"

[research]
deep_budget = 12
`
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists || resolved != path {
		t.Fatalf("unexpected resolution: exists=%v resolved=%q", exists, resolved)
	}
	if cfg.Workflow.StageRetryLimit != 5 {
		t.Fatalf("unexpected retry limit: %d", cfg.Workflow.StageRetryLimit)
	}
	if cfg.Decisions.TitleFallback != config.FallbackFail {
		t.Fatalf("unexpected fallback: %q", cfg.Decisions.TitleFallback)
	}
	if cfg.InsightBudget("deep") != 12 {
		t.Fatalf("unexpected deep budget: %d", cfg.InsightBudget("deep"))
	}
	if cfg.InsightBudget("unknown") != cfg.Research.LightBudget {
		t.Fatal("unknown depth should fall back to light budget")
	}
}

func TestValidateRejectsBadFallback(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "inkwell.toml")
	contents := `
[decisions]
title_fallback = "sometimes"
`
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, _, _, err := config.Load(path); err == nil {
		t.Fatal("expected validation error for bad fallback policy")
	} else if !strings.Contains(err.Error(), "title_fallback") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidateRejectsHeartbeatTimeoutBelowInterval(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "inkwell.toml")
	contents := `
[workflow]
heartbeat_interval = 60
heartbeat_timeout = 30
`
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, _, _, err := config.Load(path); err == nil {
		t.Fatal("expected validation error for heartbeat timeout")
	}
}

func TestEnsureDirectoriesCreatesTree(t *testing.T) {
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Paths.DataDir = filepath.Join(dir, "data")
	cfg.Paths.LogDir = filepath.Join(dir, "logs")
	cfg.Paths.ArtifactDir = filepath.Join(dir, "artifacts")

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories failed: %v", err)
	}
	for _, p := range []string{cfg.Paths.DataDir, cfg.Paths.LogDir, cfg.Paths.ArtifactDir} {
		info, err := os.Stat(p)
		if err != nil || !info.IsDir() {
			t.Fatalf("expected directory %q: %v", p, err)
		}
	}
}

func TestSampleConfigMentionsEveryTable(t *testing.T) {
	sample := config.SampleConfig()
	for _, table := range []string{"[paths]", "[workflow]", "[decisions]", "[textgen]", "[imagegen]", "[discovery]", "[research]", "[progress]", "[notifications]", "[logging]"} {
		if !strings.Contains(sample, table) {
			t.Fatalf("sample config missing %s", table)
		}
	}
}
