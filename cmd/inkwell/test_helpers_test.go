package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"inkwell/internal/config"
	"inkwell/internal/daemon"
	"inkwell/internal/decision"
	"inkwell/internal/ipc"
	"inkwell/internal/jobs"
	"inkwell/internal/logging"
	"inkwell/internal/progress"
	"inkwell/internal/stage"
	"inkwell/internal/testsupport"
	"inkwell/internal/workflow"
)

type noopStage struct {
	stg jobs.Stage
}

func (s noopStage) Stage() jobs.Stage { return s.stg }

func (noopStage) Prepare(context.Context, *stage.Context) error { return nil }

func (s noopStage) Execute(context.Context, *stage.Context) (stage.Outcome, error) {
	if s.stg == jobs.StageDiscovery {
		return stage.Outcome{
			Output:   `{"candidates":["Alpha","Beta"]}`,
			Decision: &stage.DecisionPrompt{Options: []string{"Alpha", "Beta"}},
		}, nil
	}
	return stage.Outcome{Output: `{"ok":true}`}, nil
}

func (s noopStage) HealthCheck(context.Context) stage.Health {
	return stage.Healthy(string(s.stg))
}

type cliTestEnv struct {
	cfg        *config.Config
	store      *jobs.Store
	daemon     *daemon.Daemon
	server     *ipc.Server
	socketPath string
	configPath string
	cancel     context.CancelFunc
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	base := t.TempDir()
	homeDir := filepath.Join(base, "home")
	if err := os.MkdirAll(homeDir, 0o755); err != nil {
		t.Fatalf("mkdir home: %v", err)
	}
	t.Setenv("HOME", homeDir)

	cfg := testsupport.NewConfig(t)

	configPath := filepath.Join(homeDir, ".config", "inkwell", "config.toml")
	if err := os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
		t.Fatalf("mkdir config dir: %v", err)
	}
	writeTestConfig(t, configPath, cfg)

	store := testsupport.MustOpenStore(t, cfg)

	logger := logging.NewNop()
	hub := progress.NewHub(128)
	mgr := workflow.NewManager(cfg, store, hub, logger)
	for _, stg := range jobs.Stages() {
		mgr.Register(noopStage{stg: stg})
	}
	resolver := decision.NewResolver(cfg, store, hub, logger)

	d, err := daemon.New(cfg, store, logger, mgr, hub, resolver)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	socketPath := filepath.Join(cfg.Paths.DataDir, "cli.sock")
	srv, err := ipc.NewServer(ctx, socketPath, d, logger)
	if err != nil {
		cancel()
		if strings.Contains(err.Error(), "operation not permitted") {
			t.Skipf("skipping CLI test: %v", err)
		}
		t.Fatalf("ipc.NewServer: %v", err)
	}
	srv.Serve()

	env := &cliTestEnv{
		cfg:        cfg,
		store:      store,
		daemon:     d,
		server:     srv,
		socketPath: socketPath,
		configPath: configPath,
		cancel:     cancel,
	}

	t.Cleanup(func() {
		cancel()
		srv.Close()
		d.Close()
	})

	return env
}

func runCLI(t *testing.T, args []string, socket, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	flags := []string{"--socket", socket}
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	content := fmt.Sprintf(
		"[paths]\ndata_dir = %q\nlog_dir = %q\nartifact_dir = %q\napi_bind = %q\n\n[textgen]\napi_key = %q\n",
		cfg.Paths.DataDir,
		cfg.Paths.LogDir,
		cfg.Paths.ArtifactDir,
		cfg.Paths.APIBind,
		cfg.TextGen.APIKey,
	)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func waitFor(t *testing.T, duration time.Duration, fn func() bool) {
	t.Helper()
	deadline := time.Now().Add(duration)
	for time.Now().Before(deadline) {
		if fn() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("condition not met within %s", duration)
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}
