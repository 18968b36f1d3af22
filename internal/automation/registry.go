package automation

import (
	"context"

	"github.com/Reg-Kris/pyairtable-automation-service/internal/models"
	"go.uber.org/zap"
)

// TriggerHandler processes a matched event into the initial execution
// context. Process returns a ValidationError when the event payload lacks
// fields the trigger expects; the executor converts that into a failed
// execution record.
type TriggerHandler interface {
	Type() string
	Process(ctx context.Context, event *models.Event, parameters map[string]interface{}) (map[string]interface{}, error)
}

// ActionHandler executes one workflow action. Side effects are entirely
// handler-defined and external to the engine core.
type ActionHandler interface {
	Type() string
	Execute(ctx context.Context, parameters map[string]interface{}, execContext map[string]interface{}) (map[string]interface{}, error)
}

// Registry holds the trigger and action handler lookup tables. It is
// populated once at startup, before any event processing begins, and is
// read-only afterwards; concurrent reads need no synchronization.
type Registry struct {
	triggers map[string]TriggerHandler
	actions  map[string]ActionHandler
	logger   *zap.Logger
}

// NewRegistry creates an empty handler registry
func NewRegistry(logger *zap.Logger) *Registry {
	return &Registry{
		triggers: make(map[string]TriggerHandler),
		actions:  make(map[string]ActionHandler),
		logger:   logger,
	}
}

// RegisterTrigger registers a trigger handler under its type. Re-registering
// an existing type overwrites the previous handler.
func (r *Registry) RegisterTrigger(handler TriggerHandler) {
	if _, exists := r.triggers[handler.Type()]; exists {
		r.logger.Warn("Overwriting registered trigger handler",
			zap.String("trigger_type", handler.Type()))
	}
	r.triggers[handler.Type()] = handler
}

// RegisterAction registers an action handler under its type. Re-registering
// an existing type overwrites the previous handler.
func (r *Registry) RegisterAction(handler ActionHandler) {
	if _, exists := r.actions[handler.Type()]; exists {
		r.logger.Warn("Overwriting registered action handler",
			zap.String("action_type", handler.Type()))
	}
	r.actions[handler.Type()] = handler
}

// TriggerHandler looks up the handler for a trigger type
func (r *Registry) TriggerHandler(triggerType string) (TriggerHandler, bool) {
	handler, ok := r.triggers[triggerType]
	return handler, ok
}

// ActionHandler looks up the handler for an action type
func (r *Registry) ActionHandler(actionType string) (ActionHandler, bool) {
	handler, ok := r.actions[actionType]
	return handler, ok
}

// TriggerTypes returns the registered trigger types
func (r *Registry) TriggerTypes() []string {
	types := make([]string, 0, len(r.triggers))
	for t := range r.triggers {
		types = append(types, t)
	}
	return types
}

// ActionTypes returns the registered action types
func (r *Registry) ActionTypes() []string {
	types := make([]string, 0, len(r.actions))
	for t := range r.actions {
		types = append(types, t)
	}
	return types
}
