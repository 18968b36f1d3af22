package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Reg-Kris/pyairtable-automation-service/internal/automation"
	"github.com/Reg-Kris/pyairtable-automation-service/internal/models"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// EventListener consumes domain events published by the other PyAirtable
// services and feeds them into the automation engine. A malformed message is
// logged and dropped; it never stops the listener.
type EventListener struct {
	redis    *redis.Client
	engine   *automation.Engine
	logger   *zap.Logger
	channels []string
	stopChan chan struct{}
}

// NewEventListener creates an event listener for the given channels
func NewEventListener(redis *redis.Client, engine *automation.Engine, channels []string, logger *zap.Logger) *EventListener {
	if len(channels) == 0 {
		channels = []string{"pyairtable:events:content", "pyairtable:events:user"}
	}
	return &EventListener{
		redis:    redis,
		engine:   engine,
		logger:   logger,
		channels: channels,
		stopChan: make(chan struct{}),
	}
}

// Start begins consuming events. It blocks until the context is cancelled
// or Stop is called.
func (l *EventListener) Start(ctx context.Context) error {
	l.logger.Info("Starting automation event listener", zap.Strings("channels", l.channels))

	pubsub := l.redis.Subscribe(ctx, l.channels...)
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("failed to subscribe to event channels: %w", err)
	}

	ch := pubsub.Channel()

	for {
		select {
		case <-ctx.Done():
			l.logger.Info("Event listener stopped due to context cancellation")
			return ctx.Err()
		case <-l.stopChan:
			l.logger.Info("Event listener stopped")
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			if err := l.processMessage(ctx, msg); err != nil {
				l.logger.Error("Failed to process event message",
					zap.Error(err),
					zap.String("channel", msg.Channel))
			}
		}
	}
}

// Stop stops the event listener
func (l *EventListener) Stop() {
	close(l.stopChan)
}

// processMessage decodes one message and runs it through the engine
func (l *EventListener) processMessage(ctx context.Context, msg *redis.Message) error {
	event, err := DecodeEvent([]byte(msg.Payload))
	if err != nil {
		return fmt.Errorf("failed to decode event: %w", err)
	}

	result, err := l.engine.ProcessEvent(ctx, event)
	if err != nil {
		return fmt.Errorf("failed to process event %s: %w", event.ID, err)
	}

	l.logger.Info("Event dispatched to workflows",
		zap.String("event_id", event.ID),
		zap.String("event_type", event.Type),
		zap.Int("executed", result.ExecutedCount),
		zap.Int("succeeded", result.SuccessCount))

	return nil
}

// DecodeEvent parses a published event payload. A missing type is an error;
// a missing id or timestamp is filled in.
func DecodeEvent(payload []byte) (*models.Event, error) {
	var event models.Event
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, err
	}

	if event.Type == "" {
		return nil, fmt.Errorf("event has no type")
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	if event.Data == nil {
		event.Data = models.JSONMap{}
	}

	return &event, nil
}
