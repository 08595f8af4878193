package services

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/SAP-F-2025/quiz-attempt-service/internal/models"
)

func TestStageResponses(t *testing.T) {
	usage := &models.QuestionUsage{
		UniqueID: "u-1",
		Slots: []models.UsageSlot{
			{Slot: 1, QuestionID: 10},
			{Slot: 2, QuestionID: 11},
			{Slot: 3, QuestionID: 12},
		},
	}

	t.Run("payloads land on their slots", func(t *testing.T) {
		changed, err := stageResponses(usage, map[int]json.RawMessage{
			1: json.RawMessage(`{"answer":"a"}`),
			3: json.RawMessage(`{"answer":"c"}`),
		})
		if err != nil {
			t.Fatalf("stageResponses failed: %v", err)
		}
		if len(changed) != 2 {
			t.Fatalf("changed %d slots, want 2", len(changed))
		}
		if string(usage.Slots[0].ResponseData) != `{"answer":"a"}` {
			t.Errorf("slot 1 response = %s", usage.Slots[0].ResponseData)
		}
		if usage.Slots[1].ResponseData != nil {
			t.Errorf("slot 2 must stay untouched, got %s", usage.Slots[1].ResponseData)
		}
		if string(usage.Slots[2].ResponseData) != `{"answer":"c"}` {
			t.Errorf("slot 3 response = %s", usage.Slots[2].ResponseData)
		}
	})

	t.Run("unknown slot number is an error", func(t *testing.T) {
		_, err := stageResponses(usage, map[int]json.RawMessage{
			9: json.RawMessage(`{}`),
		})
		if !errors.Is(err, ErrSlotNotFound) {
			t.Fatalf("expected ErrSlotNotFound, got %v", err)
		}
	})
}

func TestParseGradingKey(t *testing.T) {
	if key := parseGradingKey(nil); key.Scale != nil {
		t.Errorf("empty key should have nil scale, got %v", *key.Scale)
	}
	if key := parseGradingKey([]byte(`{"scale":0.5}`)); key.Scale == nil || *key.Scale != 0.5 {
		t.Errorf("scale not parsed: %+v", key)
	}
	if key := parseGradingKey([]byte(`not json`)); key.Scale != nil {
		t.Error("unparsable key should behave like an empty one")
	}
}
