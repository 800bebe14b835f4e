package services_test

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"inkwell/internal/services"
)

func TestWrapTagsMarkerAndDetail(t *testing.T) {
	base := errors.New("connection reset")
	err := services.Wrap(services.ErrRecoverable, "research", "gather insights", "backend unreachable", base)
	if !errors.Is(err, services.ErrRecoverable) {
		t.Fatal("expected wrapped error to match ErrRecoverable")
	}
	if !errors.Is(err, base) {
		t.Fatal("expected wrapped error to preserve the cause")
	}
	for _, fragment := range []string{"research", "gather insights", "backend unreachable"} {
		if !strings.Contains(err.Error(), fragment) {
			t.Fatalf("error %q missing fragment %q", err.Error(), fragment)
		}
	}
}

func TestWrapNilMarkerDefaultsToRecoverable(t *testing.T) {
	err := services.Wrap(nil, "curation", "", "", nil)
	if !errors.Is(err, services.ErrRecoverable) {
		t.Fatal("nil marker should default to recoverable")
	}
}

func TestKindMapping(t *testing.T) {
	cases := []struct {
		err  error
		kind string
	}{
		{services.ErrValidation, "validation"},
		{services.ErrRecoverable, "recoverable"},
		{services.ErrFatal, "fatal"},
		{services.ErrConfiguration, "configuration"},
		{services.ErrNotFound, "not_found"},
		{services.ErrDecisionTimeout, "decision_timeout"},
		{services.ErrAlreadyResolved, "already_resolved"},
		{services.ErrInvalidChoice, "invalid_choice"},
		{errors.New("mystery"), "internal"},
		{nil, ""},
	}
	for _, tc := range cases {
		wrapped := tc.err
		if wrapped != nil {
			wrapped = fmt.Errorf("outer: %w", wrapped)
		}
		if got := services.Kind(wrapped); got != tc.kind {
			t.Fatalf("Kind(%v) = %q, want %q", tc.err, got, tc.kind)
		}
	}
}

func TestIsRetryable(t *testing.T) {
	if !services.IsRetryable(services.Wrap(services.ErrRecoverable, "media", "render", "timeout", nil)) {
		t.Fatal("recoverable errors should be retryable")
	}
	if services.IsRetryable(services.Wrap(services.ErrFatal, "curation", "parse", "bad shape", nil)) {
		t.Fatal("fatal errors must not be retryable")
	}
}

func TestContextHelpers(t *testing.T) {
	ctx := t.Context()
	ctx = services.WithJobID(ctx, "job-42")
	ctx = services.WithOwnerID(ctx, "owner-7")
	ctx = services.WithStage(ctx, "research")
	ctx = services.WithRequestID(ctx, "req-123")

	if id, ok := services.JobIDFromContext(ctx); !ok || id != "job-42" {
		t.Fatalf("unexpected job id: %v %v", id, ok)
	}
	if owner, ok := services.OwnerIDFromContext(ctx); !ok || owner != "owner-7" {
		t.Fatalf("unexpected owner id: %v %v", owner, ok)
	}
	if stage, ok := services.StageFromContext(ctx); !ok || stage != "research" {
		t.Fatalf("unexpected stage: %v %v", stage, ok)
	}
	if rid, ok := services.RequestIDFromContext(ctx); !ok || rid != "req-123" {
		t.Fatalf("unexpected request id: %v %v", rid, ok)
	}
}

func TestBlankContextValuesPreserveContext(t *testing.T) {
	ctx := services.WithStage(t.Context(), "")
	if _, ok := services.StageFromContext(ctx); ok {
		t.Fatal("expected no stage value")
	}
}
