package automation

import "fmt"

// ValidationError signals that an event payload lacks fields a trigger
// handler expects. The executor converts it into a failed execution record
// instead of propagating it.
type ValidationError struct {
	TriggerType string
	Reason      string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("trigger %s validation failed: %s", e.TriggerType, e.Reason)
}

// NewValidationError builds a ValidationError for a trigger type
func NewValidationError(triggerType, reason string) *ValidationError {
	return &ValidationError{TriggerType: triggerType, Reason: reason}
}

// HandlerNotFoundError signals an unregistered trigger or action type. It is
// fatal for the run that needed the handler but is encoded into the
// execution record rather than returned to the event producer.
type HandlerNotFoundError struct {
	Kind string // "trigger" or "action"
	Type string
}

func (e *HandlerNotFoundError) Error() string {
	return fmt.Sprintf("no %s handler registered for type %s", e.Kind, e.Type)
}
