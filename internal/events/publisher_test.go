package events

import (
	"context"
	"encoding/json"
	"testing"
)

func TestNewEvent(t *testing.T) {
	payload := AttemptEventPayload{
		AttemptID:     7,
		QuizID:        42,
		UserID:        "u1",
		AttemptNumber: 2,
		State:         "finished",
	}

	event, err := NewEvent(EventAttemptSubmitted, payload)
	if err != nil {
		t.Fatalf("NewEvent failed: %v", err)
	}

	if event.ID == "" {
		t.Fatal("event must carry an id")
	}
	if event.Type != EventAttemptSubmitted {
		t.Fatalf("type = %q", event.Type)
	}
	if event.Source != eventSource || event.Version != "1.0" {
		t.Fatalf("envelope fields = %q / %q", event.Source, event.Version)
	}
	if event.Timestamp.IsZero() {
		t.Fatal("timestamp not set")
	}

	var decoded AttemptEventPayload
	if err := json.Unmarshal(event.Payload, &decoded); err != nil {
		t.Fatalf("payload does not decode: %v", err)
	}
	if decoded != payload {
		t.Fatalf("payload round trip mismatch: %+v", decoded)
	}
}

func TestMockEventPublisher(t *testing.T) {
	ctx := context.Background()
	pub := NewMockEventPublisher()

	started, _ := NewEvent(EventAttemptStarted, AttemptEventPayload{AttemptID: 1, QuizID: 10, UserID: "u1"})
	graded, _ := NewEvent(EventGradeUpdated, GradeUpdatedPayload{QuizID: 10, UserID: "u1", Grade: 7.5})

	if err := pub.Publish(ctx, started); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if err := pub.Publish(ctx, graded); err != nil {
		t.Fatalf("publish: %v", err)
	}

	if got := pub.GetPublishedEvents(); len(got) != 2 {
		t.Fatalf("expected 2 events, got %d", len(got))
	}
	if got := pub.GetEventsByType(EventGradeUpdated); len(got) != 1 || got[0].ID != graded.ID {
		t.Fatalf("filter by type returned %v", got)
	}
	if got := pub.GetEventsByType(EventRegradeFinished); len(got) != 0 {
		t.Fatalf("expected no regrade events, got %d", len(got))
	}

	pub.ClearEvents()
	if got := pub.GetPublishedEvents(); len(got) != 0 {
		t.Fatalf("clear left %d events", len(got))
	}
	if err := pub.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
}
