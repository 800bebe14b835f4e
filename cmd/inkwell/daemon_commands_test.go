package main

import (
	"context"
	"testing"

	"inkwell/internal/jobs"
)

func TestDaemonStartAndStatus(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"start"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	requireContains(t, out, "Daemon started")

	again, _, err := runCLI(t, []string{"start"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("start again: %v", err)
	}
	requireContains(t, again, "Daemon already running")

	if _, err := env.daemon.SubmitJob(context.Background(), "alice", jobs.Preferences{Theme: "volcanic islands", ResearchDepth: jobs.DepthMedium}); err != nil {
		t.Fatalf("SubmitJob: %v", err)
	}

	status, _, err := runCLI(t, []string{"status"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	requireContains(t, status, "Daemon")
	requireContains(t, status, "Stage Health")
	requireContains(t, status, "Job Status")
}

func TestStatusBeforeStart(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"status"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	requireContains(t, out, "not running")
	requireContains(t, out, "No jobs")
}
