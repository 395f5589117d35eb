// Package events publishes task-board notification events to an
// external broker. Publishing is best-effort: a broker failure is a
// caller-side logging concern, never a request failure.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/taskboard/apiserver/config"
)

// Event types emitted by the API.
const (
	TypeCardCreated  = "card.created"
	TypeCardMoved    = "card.moved"
	TypeCardAssigned = "card.assigned"
)

// Event is a notification about a card, addressed by its board so
// consumers can filter per board.
type Event struct {
	Type       string     `json:"type"`
	BoardID    uuid.UUID  `json:"board_id"`
	ListID     uuid.UUID  `json:"list_id"`
	CardID     uuid.UUID  `json:"card_id"`
	ActorID    uuid.UUID  `json:"actor_id"`
	AssigneeID *uuid.UUID `json:"assignee_id,omitempty"`
	OccurredAt time.Time  `json:"occurred_at"`
}

// Message represents a broker-agnostic payload delivered to subscribers.
type Message struct {
	ID         string
	Data       []byte
	Attributes map[string]string
}

// Handler processes a message. Return an error to signal a retry/nack.
type Handler func(ctx context.Context, msg Message) error

// Backend defines the broker-agnostic operations used by the app.
type Backend interface {
	Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error)
	Subscribe(ctx context.Context, channel string, handler Handler) error
	Close() error
}

// Publisher sends events to one channel of a backend.
type Publisher struct {
	backend Backend
	channel string
}

// NewPublisher constructs a Publisher for the backend named in cfg, or
// nil when no backend is configured. A nil Publisher drops events.
func NewPublisher(ctx context.Context, cfg config.EventsConfig) (*Publisher, error) {
	var backend Backend
	var err error
	switch cfg.Backend {
	case "rabbitmq":
		backend, err = NewRabbitMQClient(cfg.RabbitMQ)
	case "pubsub":
		backend, err = NewPubSubClient(ctx, cfg.PubSub)
	default:
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &Publisher{backend: backend, channel: cfg.Channel}, nil
}

// Publish sends one event. Safe to call on a nil Publisher.
func (p *Publisher) Publish(ctx context.Context, event Event) error {
	if p == nil {
		return nil
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now()
	}
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	attrs := map[string]string{
		"type":     event.Type,
		"board_id": event.BoardID.String(),
	}
	_, err = p.backend.Publish(ctx, p.channel, data, attrs)
	return err
}

// Close closes the underlying backend. Safe to call on a nil Publisher.
func (p *Publisher) Close() error {
	if p == nil {
		return nil
	}
	return p.backend.Close()
}

// Consumer receives events from one channel of a backend.
type Consumer struct {
	backend Backend
	channel string
}

// NewConsumer constructs a Consumer for the backend named in cfg.
// Unlike NewPublisher it requires a backend: consuming without a
// broker is meaningless.
func NewConsumer(ctx context.Context, cfg config.EventsConfig) (*Consumer, error) {
	var backend Backend
	var err error
	switch cfg.Backend {
	case "rabbitmq":
		backend, err = NewRabbitMQClient(cfg.RabbitMQ)
	case "pubsub":
		backend, err = NewPubSubClient(ctx, cfg.PubSub)
	default:
		return nil, errors.New("events backend is not configured")
	}
	if err != nil {
		return nil, err
	}
	return &Consumer{backend: backend, channel: cfg.Channel}, nil
}

// Listen delivers decoded events to fn until ctx is canceled. A decode
// or handler error nacks the message for redelivery.
func (c *Consumer) Listen(ctx context.Context, fn func(ctx context.Context, event Event) error) error {
	return c.backend.Subscribe(ctx, c.channel, func(ctx context.Context, msg Message) error {
		var event Event
		if err := json.Unmarshal(msg.Data, &event); err != nil {
			return err
		}
		return fn(ctx, event)
	})
}

// Close closes the underlying backend.
func (c *Consumer) Close() error {
	return c.backend.Close()
}
