package main

import (
	"testing"

	"inkwell/internal/ipc"
)

func TestBuildJobStatusRows(t *testing.T) {
	rows := buildJobStatusRows(map[string]int{
		"failed":            1,
		"awaiting_decision": 2,
		"completed":         5,
	})
	if len(rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(rows))
	}
	if rows[0][0] != "Awaiting Decision" || rows[0][1] != "2" {
		t.Fatalf("unexpected first row %v", rows[0])
	}
	if rows[1][0] != "Completed" || rows[2][0] != "Failed" {
		t.Fatalf("rows not sorted: %v", rows)
	}
}

func TestBuildJobStatusRowsEmpty(t *testing.T) {
	if rows := buildJobStatusRows(nil); rows != nil {
		t.Fatalf("expected nil rows, got %v", rows)
	}
}

func TestBuildJobListRowsOrdersNewestFirst(t *testing.T) {
	items := []ipc.Job{
		{
			ID:            "aaaaaaaa-1111",
			Status:        "completed",
			CreatedAt:     "2026-03-01T10:00:00.000Z",
			UpdatedAt:     "2026-03-01T11:00:00.000Z",
			SelectedTitle: "The Silent Reef",
		},
		{
			ID:        "bbbbbbbb-2222",
			Status:    "researching",
			CreatedAt: "2026-03-02T10:00:00.000Z",
			UpdatedAt: "2026-03-02T10:05:00.000Z",
		},
	}
	items[1].Preferences.Theme = "deep sea exploration"

	rows := buildJobListRows(items)
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	if rows[0][0] != "bbbbbbbb" {
		t.Fatalf("expected newest job first, got %v", rows[0])
	}
	if rows[0][4] != "deep sea exploration" {
		t.Fatalf("expected theme fallback title, got %q", rows[0][4])
	}
	if rows[1][4] != "The Silent Reef" {
		t.Fatalf("expected selected title, got %q", rows[1][4])
	}
}

func TestFormatStatusLabel(t *testing.T) {
	cases := map[string]string{
		"awaiting_decision":   "Awaiting Decision",
		"completed":           "Completed",
		"  media_generating ": "Media Generating",
		"":                    "",
	}
	for input, want := range cases {
		if got := formatStatusLabel(input); got != want {
			t.Fatalf("formatStatusLabel(%q) = %q, want %q", input, got, want)
		}
	}
}

func TestShortJobID(t *testing.T) {
	if got := shortJobID("0123456789abcdef"); got != "01234567" {
		t.Fatalf("unexpected short id %q", got)
	}
	if got := shortJobID("abc"); got != "abc" {
		t.Fatalf("unexpected short id %q", got)
	}
}

func TestFormatDisplayTime(t *testing.T) {
	if got := formatDisplayTime("2026-03-14T09:30:00.000Z"); got != "2026-03-14 09:30" {
		t.Fatalf("unexpected display time %q", got)
	}
	if got := formatDisplayTime("not-a-time"); got != "not-a-time" {
		t.Fatalf("expected passthrough, got %q", got)
	}
}
