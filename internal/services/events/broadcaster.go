package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// EventType represents the type of event being broadcast
type EventType string

const (
	EventTypeEffectFired    EventType = "effect.fired"
	EventTypeStateUpdated   EventType = "state.updated"
	EventTypeSessionStarted EventType = "session.started"
	EventTypeSessionReset   EventType = "session.reset"
)

// Event represents a generic event structure
type Event struct {
	Type      EventType      `json:"type"`
	ClientID  string         `json:"client_id,omitempty"`
	SessionID string         `json:"session_id,omitempty"`
	Data      map[string]any `json:"data,omitempty"`
}

// Channel is the pub/sub channel carrying a client's events.
func Channel(clientID uuid.UUID) string {
	return fmt.Sprintf("engine-events:%s", clientID.String())
}

// Broadcaster publishes events to Redis Pub/Sub for SSE distribution
type Broadcaster struct {
	redisClient *redis.Client
	logger      *slog.Logger
}

// NewBroadcaster creates a new event broadcaster
func NewBroadcaster(redisClient *redis.Client, logger *slog.Logger) *Broadcaster {
	if logger == nil {
		logger = slog.Default()
	}
	return &Broadcaster{
		redisClient: redisClient,
		logger:      logger,
	}
}

// PublishEffectFired publishes an effect.fired event
func (b *Broadcaster) PublishEffectFired(ctx context.Context, clientID uuid.UUID, sessionID, action, payload string, turn int) error {
	return b.publish(ctx, clientID, Event{
		Type:      EventTypeEffectFired,
		SessionID: sessionID,
		Data: map[string]any{
			"action":  action,
			"payload": payload,
			"turn":    turn,
		},
	})
}

// PublishStateUpdated publishes a state.updated event
func (b *Broadcaster) PublishStateUpdated(ctx context.Context, clientID uuid.UUID, sessionID string, turn int, current string) error {
	return b.publish(ctx, clientID, Event{
		Type:      EventTypeStateUpdated,
		SessionID: sessionID,
		Data: map[string]any{
			"turn":              turn,
			"current_combatant": current,
		},
	})
}

// PublishSessionStarted publishes a session.started event
func (b *Broadcaster) PublishSessionStarted(ctx context.Context, clientID uuid.UUID, sessionID, adventureID string) error {
	return b.publish(ctx, clientID, Event{
		Type:      EventTypeSessionStarted,
		SessionID: sessionID,
		Data: map[string]any{
			"adventure_id": adventureID,
		},
	})
}

// PublishSessionReset publishes a session.reset event
func (b *Broadcaster) PublishSessionReset(ctx context.Context, clientID uuid.UUID) error {
	return b.publish(ctx, clientID, Event{Type: EventTypeSessionReset})
}

// Subscribe opens a subscription to a client's channel. The caller closes it.
func (b *Broadcaster) Subscribe(ctx context.Context, clientID uuid.UUID) *redis.PubSub {
	return b.redisClient.Subscribe(ctx, Channel(clientID))
}

func (b *Broadcaster) publish(ctx context.Context, clientID uuid.UUID, event Event) error {
	channel := Channel(clientID)
	event.ClientID = clientID.String()

	data, err := json.Marshal(event)
	if err != nil {
		b.logger.Error("Failed to marshal event", "error", err, "event", event)
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	if err := b.redisClient.Publish(ctx, channel, data).Err(); err != nil {
		b.logger.Error("Failed to publish event", "error", err, "channel", channel)
		return fmt.Errorf("failed to publish event: %w", err)
	}

	b.logger.Debug("Event published",
		"channel", channel,
		"event_type", event.Type,
		"session_id", event.SessionID,
	)
	return nil
}
