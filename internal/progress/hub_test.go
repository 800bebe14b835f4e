package progress_test

import (
	"context"
	"testing"
	"time"

	"inkwell/internal/progress"
)

func TestPublishAssignsSequencePerJob(t *testing.T) {
	hub := progress.NewHub(16)
	hub.Publish(progress.Event{JobID: "a", Type: progress.EventJobStarted})
	hub.Publish(progress.Event{JobID: "b", Type: progress.EventJobStarted})
	hub.Publish(progress.Event{JobID: "a", Type: progress.EventStageStart, Stage: "onboarding"})

	events, next := hub.Tail("a")
	if len(events) != 2 {
		t.Fatalf("expected 2 events for job a, got %d", len(events))
	}
	if events[0].Sequence != 1 || events[1].Sequence != 2 {
		t.Fatalf("sequences = %d, %d", events[0].Sequence, events[1].Sequence)
	}
	if next != 2 {
		t.Fatalf("next = %d, want 2", next)
	}

	events, _ = hub.Tail("b")
	if len(events) != 1 || events[0].Sequence != 1 {
		t.Fatalf("job b stream polluted: %+v", events)
	}
}

func TestFetchReplaysThenWaits(t *testing.T) {
	hub := progress.NewHub(16)
	hub.Publish(progress.Event{JobID: "a", Type: progress.EventJobStarted})
	hub.Publish(progress.Event{JobID: "a", Type: progress.EventStageStart, Stage: "onboarding"})

	events, next, err := hub.Fetch(t.Context(), "a", 0, false)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected replay of 2 events, got %d", len(events))
	}

	done := make(chan []progress.Event, 1)
	go func() {
		live, _, _ := hub.Fetch(context.Background(), "a", next, true)
		done <- live
	}()

	time.Sleep(20 * time.Millisecond)
	hub.Publish(progress.Event{JobID: "a", Type: progress.EventJobComplete, Percent: 100})

	select {
	case live := <-done:
		if len(live) != 1 || live[0].Type != progress.EventJobComplete {
			t.Fatalf("unexpected live events: %+v", live)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("waiter never woke")
	}
}

func TestFetchHonorsContextCancellation(t *testing.T) {
	hub := progress.NewHub(16)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		_, _, err := hub.Fetch(ctx, "a", 0, true)
		done <- err
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err == nil {
			t.Fatal("expected context error")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("fetch did not unblock on cancel")
	}
}

func TestBufferEvictsOldest(t *testing.T) {
	hub := progress.NewHub(4)
	for i := 0; i < 8; i++ {
		hub.Publish(progress.Event{JobID: "a", Type: progress.EventStageProgress})
	}
	events, _ := hub.Tail("a")
	if len(events) != 4 {
		t.Fatalf("buffer len = %d, want 4", len(events))
	}
	if events[0].Sequence != 5 {
		t.Fatalf("oldest retained sequence = %d, want 5", events[0].Sequence)
	}
}

func TestForgetDropsStream(t *testing.T) {
	hub := progress.NewHub(4)
	hub.Publish(progress.Event{JobID: "a", Type: progress.EventJobStarted})
	hub.Forget("a")
	events, _ := hub.Tail("a")
	if len(events) != 0 {
		t.Fatalf("expected empty stream after forget, got %d events", len(events))
	}
}
