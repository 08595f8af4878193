package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-kafka/v2/pkg/kafka"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/google/uuid"
)

const eventSource = "quiz-attempt-service"

// Event types published by the service. Consumers include the grade
// book sync worker and the reporting pipeline.
const (
	EventAttemptStarted      = "attempt.started"
	EventAttemptSubmitted    = "attempt.submitted"
	EventAttemptStateChanged = "attempt.state_changed"
	EventGradeUpdated        = "quiz.grade_updated"
	EventRegradeFinished     = "quiz.regrade_finished"
)

// Event is the envelope every published message uses.
type Event struct {
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	Source    string          `json:"source"`
	Version   string          `json:"version"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload"`
}

// NewEvent builds an envelope around a payload struct.
func NewEvent(eventType string, payload interface{}) (Event, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Event{}, fmt.Errorf("failed to marshal event payload: %w", err)
	}
	return Event{
		ID:        uuid.New().String(),
		Type:      eventType,
		Source:    eventSource,
		Version:   "1.0",
		Timestamp: time.Now(),
		Payload:   data,
	}, nil
}

// ===== PAYLOADS =====

type AttemptEventPayload struct {
	AttemptID     uint    `json:"attempt_id"`
	QuizID        uint    `json:"quiz_id"`
	UserID        string  `json:"user_id"`
	AttemptNumber int     `json:"attempt_number"`
	State         string  `json:"state"`
	SumGrades     *float64 `json:"sum_grades,omitempty"`
}

type GradeUpdatedPayload struct {
	QuizID uint    `json:"quiz_id"`
	UserID string  `json:"user_id"`
	Grade  float64 `json:"grade"`
}

type RegradeFinishedPayload struct {
	QuizID           uint `json:"quiz_id"`
	AttemptsRegraded int  `json:"attempts_regraded"`
	SlotsChanged     int  `json:"slots_changed"`
	DryRun           bool `json:"dry_run"`
}

// EventPublisher pushes domain events to the message broker.
type EventPublisher interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}

// ===== KAFKA =====

type kafkaPublisher struct {
	publisher message.Publisher
	topic     string
	logger    *slog.Logger
}

// NewKafkaPublisher connects a watermill Kafka publisher for the
// given brokers and topic.
func NewKafkaPublisher(brokers []string, topic string, logger *slog.Logger) (EventPublisher, error) {
	publisher, err := kafka.NewPublisher(
		kafka.PublisherConfig{
			Brokers:   brokers,
			Marshaler: kafka.DefaultMarshaler{},
		},
		watermill.NewSlogLogger(logger),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka publisher: %w", err)
	}

	return &kafkaPublisher{
		publisher: publisher,
		topic:     topic,
		logger:    logger,
	}, nil
}

func (p *kafkaPublisher) Publish(ctx context.Context, event Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := message.NewMessage(event.ID, data)
	msg.SetContext(ctx)
	msg.Metadata.Set("event_type", event.Type)
	msg.Metadata.Set("source", event.Source)

	if err := p.publisher.Publish(p.topic, msg); err != nil {
		return fmt.Errorf("failed to publish event %s: %w", event.Type, err)
	}

	p.logger.Debug("event published", "event_id", event.ID, "event_type", event.Type)
	return nil
}

func (p *kafkaPublisher) Close() error {
	return p.publisher.Close()
}

// ===== MOCK =====

// MockEventPublisher records events in memory for tests.
type MockEventPublisher struct {
	mu     sync.Mutex
	events []Event
}

func NewMockEventPublisher() *MockEventPublisher {
	return &MockEventPublisher{}
}

func (m *MockEventPublisher) Publish(_ context.Context, event Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
	return nil
}

func (m *MockEventPublisher) Close() error {
	return nil
}

// GetPublishedEvents returns a copy of everything published so far.
func (m *MockEventPublisher) GetPublishedEvents() []Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Event, len(m.events))
	copy(out, m.events)
	return out
}

// GetEventsByType filters published events by type.
func (m *MockEventPublisher) GetEventsByType(eventType string) []Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Event
	for _, e := range m.events {
		if e.Type == eventType {
			out = append(out, e)
		}
	}
	return out
}

func (m *MockEventPublisher) ClearEvents() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = nil
}
