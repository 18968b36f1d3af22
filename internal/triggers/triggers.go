// Package triggers holds the built-in TriggerHandler implementations
// registered at startup. A trigger validates the event payload and builds
// the initial execution context for the actions that follow.
package triggers

import (
	"context"

	"github.com/Reg-Kris/pyairtable-automation-service/internal/automation"
	"github.com/Reg-Kris/pyairtable-automation-service/internal/models"
)

// Register adds every built-in trigger handler to the registry
func Register(registry *automation.Registry) {
	registry.RegisterTrigger(&ContentTrigger{eventType: "content_created"})
	registry.RegisterTrigger(&ContentTrigger{eventType: "content_updated"})
	registry.RegisterTrigger(&UserRegisteredTrigger{})
	registry.RegisterTrigger(&APIEventTrigger{})
}

// baseContext carries the event envelope fields every trigger exposes
func baseContext(event *models.Event) map[string]interface{} {
	execContext := map[string]interface{}{
		"event_type": event.Type,
		"timestamp":  event.Timestamp,
	}
	if event.UserID != nil {
		execContext["user_id"] = *event.UserID
	}
	if event.OrganizationID != nil {
		execContext["organization_id"] = *event.OrganizationID
	}
	return execContext
}

// ContentTrigger fires on content lifecycle events. The payload must carry a
// content object with an id.
type ContentTrigger struct {
	eventType string
}

func (t *ContentTrigger) Type() string {
	return t.eventType
}

func (t *ContentTrigger) Process(ctx context.Context, event *models.Event, parameters map[string]interface{}) (map[string]interface{}, error) {
	content, ok := event.Data["content"].(map[string]interface{})
	if !ok {
		return nil, automation.NewValidationError(t.eventType, "event data has no content object")
	}
	if _, ok := content["id"]; !ok {
		return nil, automation.NewValidationError(t.eventType, "content object has no id")
	}

	execContext := baseContext(event)
	execContext["content"] = content
	return execContext, nil
}

// UserRegisteredTrigger fires when a new user registers. The payload must
// carry a user object with an id.
type UserRegisteredTrigger struct{}

func (t *UserRegisteredTrigger) Type() string {
	return "user_registered"
}

func (t *UserRegisteredTrigger) Process(ctx context.Context, event *models.Event, parameters map[string]interface{}) (map[string]interface{}, error) {
	user, ok := event.Data["user"].(map[string]interface{})
	if !ok {
		return nil, automation.NewValidationError(t.Type(), "event data has no user object")
	}
	if _, ok := user["id"]; !ok {
		return nil, automation.NewValidationError(t.Type(), "user object has no id")
	}

	execContext := baseContext(event)
	execContext["user"] = user
	return execContext, nil
}

// APIEventTrigger is a generic passthrough for externally published events.
// It never fails validation; the whole event data becomes the context.
type APIEventTrigger struct{}

func (t *APIEventTrigger) Type() string {
	return "api_event"
}

func (t *APIEventTrigger) Process(ctx context.Context, event *models.Event, parameters map[string]interface{}) (map[string]interface{}, error) {
	execContext := baseContext(event)
	for key, value := range event.Data {
		execContext[key] = value
	}
	return execContext, nil
}
