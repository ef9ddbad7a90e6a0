package distributed

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"streamgate/internal/core/domain"
	"streamgate/internal/core/ports"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// EventType represents the type of event
type EventType string

const (
	EventStreamKeysInvalidated EventType = "stream_keys.invalidated"
	EventStreamLiveChanged     EventType = "stream.live_changed"
)

// Event is the message exchanged between instances over Redis pub/sub.
type Event struct {
	Type       EventType            `json:"type"`
	InstanceID string               `json:"instance_id"`
	Timestamp  time.Time            `json:"timestamp"`
	UserID     domain.BroadcasterID `json:"user_id"`
	IsLive     *bool                `json:"is_live,omitempty"`
}

// EventBus fans state changes out to peer instances so their caches do not
// serve stale stream keys.
type EventBus struct {
	client     redis.UniversalClient
	instanceID string
	channel    string
	logger     *zap.SugaredLogger
}

func NewEventBus(client redis.UniversalClient, channel, instanceID string, logger *zap.SugaredLogger) *EventBus {
	return &EventBus{
		client:     client,
		instanceID: instanceID,
		channel:    channel,
		logger:     logger,
	}
}

// Publish publishes an event to the event bus
func (eb *EventBus) Publish(ctx context.Context, event *Event) error {
	event.InstanceID = eb.instanceID
	event.Timestamp = time.Now().UTC()

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	if err := eb.client.Publish(ctx, eb.channel, data).Err(); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	eb.logger.Debugw("published event",
		"type", event.Type,
		"user_id", event.UserID,
	)
	return nil
}

func (eb *EventBus) PublishStreamKeysInvalidated(ctx context.Context, userID domain.BroadcasterID) error {
	return eb.Publish(ctx, &Event{Type: EventStreamKeysInvalidated, UserID: userID})
}

func (eb *EventBus) PublishLiveChanged(ctx context.Context, userID domain.BroadcasterID, live bool) error {
	return eb.Publish(ctx, &Event{Type: EventStreamLiveChanged, UserID: userID, IsLive: &live})
}

// Subscribe blocks delivering events from other instances to handler until
// ctx is cancelled. ready, when non-nil, is closed once the subscription is
// confirmed by Redis.
func (eb *EventBus) Subscribe(ctx context.Context, ready chan<- struct{}, handler func(context.Context, *Event)) error {
	pubsub := eb.client.Subscribe(ctx, eb.channel)
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", eb.channel, err)
	}
	if ready != nil {
		close(ready)
	}

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return fmt.Errorf("event channel %s closed", eb.channel)
			}

			var event Event
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				eb.logger.Warnw("failed to unmarshal event",
					"error", err,
					"payload", msg.Payload,
				)
				continue
			}

			if event.InstanceID == eb.instanceID {
				continue
			}
			handler(ctx, &event)
		}
	}
}

// InvalidationHandler drops cached stream keys named by remote events.
func InvalidationHandler(invalidator ports.StreamKeysInvalidator, logger *zap.SugaredLogger) func(context.Context, *Event) {
	return func(ctx context.Context, event *Event) {
		switch event.Type {
		case EventStreamKeysInvalidated, EventStreamLiveChanged:
			if event.UserID == "" {
				return
			}
			invalidator.InvalidateStreamKeys(ctx, event.UserID)
			logger.Debugw("invalidated stream keys from remote event",
				"type", event.Type,
				"user_id", event.UserID,
				"origin", event.InstanceID,
			)
		default:
			logger.Debugw("ignoring unknown event type", "type", event.Type)
		}
	}
}
