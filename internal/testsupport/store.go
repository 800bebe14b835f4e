package testsupport

import (
	"context"
	"testing"

	"inkwell/internal/config"
	"inkwell/internal/jobs"
)

// MustOpenStore opens a jobs.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *jobs.Store {
	t.Helper()

	store, err := jobs.Open(cfg)
	if err != nil {
		t.Fatalf("jobs.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// NewJob creates a job for tests using the provided store.
func NewJob(t testing.TB, store *jobs.Store, ownerID string, prefs jobs.Preferences) *jobs.Job {
	t.Helper()

	job, err := store.CreateJob(context.Background(), ownerID, prefs)
	if err != nil {
		t.Fatalf("store.CreateJob: %v", err)
	}
	return job
}

// Preferences returns a valid preference set for tests.
func Preferences() jobs.Preferences {
	return jobs.Preferences{
		Theme:         "deep sea exploration",
		ResearchDepth: jobs.DepthMedium,
	}
}
