// Package events publishes match lifecycle events on a Redis Pub/Sub channel
// for downstream consumers (analytics, activity feeds). Delivery is
// best-effort: publishing never blocks or fails gameplay.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const defaultChannel = "game:events"

// Event is the envelope written to the channel.
type Event struct {
	Type     string      `json:"type"`
	RoomCode string      `json:"room_code"`
	At       time.Time   `json:"at"`
	Data     interface{} `json:"data,omitempty"`
}

// Publisher writes events to Redis Pub/Sub. A nil Publisher drops everything.
type Publisher struct {
	redis   *redis.Client
	channel string
	logger  zerolog.Logger
}

// NewPublisher creates a publisher on the given channel ("" for the default).
func NewPublisher(client *redis.Client, channel string, logger zerolog.Logger) *Publisher {
	if channel == "" {
		channel = defaultChannel
	}
	return &Publisher{
		redis:   client,
		channel: channel,
		logger:  logger.With().Str("component", "events").Logger(),
	}
}

// Emit publishes one event. Failures are logged and swallowed.
func (p *Publisher) Emit(ctx context.Context, roomCode, eventType string, data interface{}) {
	if p == nil || p.redis == nil {
		return
	}

	payload, err := json.Marshal(Event{
		Type:     eventType,
		RoomCode: roomCode,
		At:       time.Now().UTC(),
		Data:     data,
	})
	if err != nil {
		p.logger.Warn().Err(err).Str("event", eventType).Msg("failed to marshal event")
		return
	}

	if err := p.redis.Publish(ctx, p.channel, payload).Err(); err != nil {
		p.logger.Warn().Err(err).Str("event", eventType).Msg("failed to publish event")
	}
}
