package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Event is the envelope published to the game's pub/sub topics.
type Event struct {
	ID        string         `json:"id"`
	EventType string         `json:"event_type"`
	Timestamp time.Time      `json:"timestamp"`
	Payload   map[string]any `json:"payload,omitempty"`
}

// Publisher broadcasts game events over Redis Pub/Sub. Publishing is
// fire-and-forget from the caller's point of view: the narrative flow
// never waits on or fails because of a subscriber.
type Publisher struct {
	client *redis.Client
	logger *slog.Logger
}

// NewPublisher creates a Redis-backed publisher.
func NewPublisher(client *redis.Client, logger *slog.Logger) *Publisher {
	return &Publisher{
		client: client,
		logger: logger,
	}
}

// Publish sends one event to a topic.
func (p *Publisher) Publish(ctx context.Context, topic string, eventType string, payload map[string]any) error {
	event := Event{
		ID:        uuid.New().String(),
		EventType: eventType,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	if err := p.client.Publish(ctx, topic, data).Err(); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	p.logger.Debug("Event published", "topic", topic, "event_type", eventType)
	return nil
}

// Nop is a publisher that drops every event. Used when no event bus
// is configured and in tests.
type Nop struct{}

func (Nop) Publish(ctx context.Context, topic string, eventType string, payload map[string]any) error {
	return nil
}
