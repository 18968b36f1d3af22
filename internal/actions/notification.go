package actions

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// NotificationChannel is the redis channel the notification service listens
// on for automation-originated notifications
const NotificationChannel = "pyairtable:notifications"

// NotificationAction publishes an in-app notification for a user. Delivery
// is the notification service's concern; this handler only enqueues.
type NotificationAction struct {
	redis  *redis.Client
	logger *zap.Logger
}

// NewNotificationAction creates the send_notification action handler
func NewNotificationAction(redis *redis.Client, logger *zap.Logger) *NotificationAction {
	return &NotificationAction{
		redis:  redis,
		logger: logger,
	}
}

func (a *NotificationAction) Type() string {
	return "send_notification"
}

// Execute publishes the notification payload and returns its id
func (a *NotificationAction) Execute(ctx context.Context, parameters map[string]interface{}, execContext map[string]interface{}) (map[string]interface{}, error) {
	userID, ok := parameters["user_id"].(string)
	if !ok || userID == "" {
		// fall back to the triggering user
		if ctxUser, ok := execContext["user_id"].(string); ok {
			userID = ctxUser
		}
	}
	if userID == "" {
		return nil, fmt.Errorf("send_notification requires a user_id parameter")
	}

	title, _ := parameters["title"].(string)
	message, _ := parameters["message"].(string)

	notification := map[string]interface{}{
		"id":         uuid.NewString(),
		"user_id":    userID,
		"title":      title,
		"message":    message,
		"source":     "automation",
		"created_at": time.Now().UTC().Format(time.RFC3339),
	}

	payload, err := json.Marshal(notification)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal notification: %w", err)
	}

	if err := a.redis.Publish(ctx, NotificationChannel, payload).Err(); err != nil {
		return nil, fmt.Errorf("failed to publish notification: %w", err)
	}

	a.logger.Debug("Notification published",
		zap.String("user_id", userID),
		zap.String("notification_id", notification["id"].(string)))

	return map[string]interface{}{
		"notification_id": notification["id"],
		"user_id":         userID,
	}, nil
}
