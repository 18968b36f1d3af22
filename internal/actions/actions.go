// Package actions holds the built-in ActionHandler implementations
// registered at startup. Handlers own their side effects entirely; the
// engine only sees their result maps and errors.
package actions

import (
	"github.com/Reg-Kris/pyairtable-automation-service/internal/automation"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Register adds every built-in action handler to the registry
func Register(registry *automation.Registry, redis *redis.Client, logger *zap.Logger) {
	registry.RegisterAction(NewWebhookAction(logger))
	registry.RegisterAction(NewNotificationAction(redis, logger))
	registry.RegisterAction(NewEmailAction(redis, logger))
	registry.RegisterAction(NewSentimentAction())
}
