package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// WorkflowStatus represents the lifecycle status of a workflow definition
type WorkflowStatus string

const (
	WorkflowStatusActive   WorkflowStatus = "active"
	WorkflowStatusInactive WorkflowStatus = "inactive"
)

// ExecutionStatus represents the status of a workflow execution
type ExecutionStatus string

const (
	ExecutionStatusRunning   ExecutionStatus = "running"
	ExecutionStatusCompleted ExecutionStatus = "completed"
	ExecutionStatusFailed    ExecutionStatus = "failed"
)

// ConditionOperator enumerates the closed set of condition operators
type ConditionOperator string

const (
	OperatorEquals      ConditionOperator = "equals"
	OperatorNotEquals   ConditionOperator = "not_equals"
	OperatorContains    ConditionOperator = "contains"
	OperatorNotContains ConditionOperator = "not_contains"
	OperatorGreaterThan ConditionOperator = "greater_than"
	OperatorLessThan    ConditionOperator = "less_than"
	OperatorRegexMatch  ConditionOperator = "regex_match"
	OperatorInList      ConditionOperator = "in_list"
	OperatorNotInList   ConditionOperator = "not_in_list"
	OperatorExists      ConditionOperator = "exists"
	OperatorNotExists   ConditionOperator = "not_exists"
	OperatorBetween     ConditionOperator = "between"
)

// JSONMap represents a JSON object stored in the database
type JSONMap map[string]interface{}

// Value implements the driver.Valuer interface
func (j JSONMap) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return json.Marshal(j)
}

// Scan implements the sql.Scanner interface
func (j *JSONMap) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}

	bytes, ok := value.([]byte)
	if !ok {
		return fmt.Errorf("cannot scan %T into JSONMap", value)
	}

	return json.Unmarshal(bytes, j)
}

// Condition is a single field/operator/value/negate predicate evaluated
// against nested event or context data
type Condition struct {
	Field    string            `json:"field"`
	Operator ConditionOperator `json:"operator"`
	Value    interface{}       `json:"value,omitempty"`
	Negate   bool              `json:"negate,omitempty"`
}

// ConditionList is a JSON array of conditions stored in a single column
type ConditionList []Condition

// Value implements the driver.Valuer interface
func (c ConditionList) Value() (driver.Value, error) {
	if c == nil {
		return nil, nil
	}
	return json.Marshal(c)
}

// Scan implements the sql.Scanner interface
func (c *ConditionList) Scan(value interface{}) error {
	if value == nil {
		*c = nil
		return nil
	}

	bytes, ok := value.([]byte)
	if !ok {
		return fmt.Errorf("cannot scan %T into ConditionList", value)
	}

	return json.Unmarshal(bytes, c)
}

// Trigger binds a workflow to an event type, with optional parameters for
// the trigger handler and conditions evaluated against the event data
type Trigger struct {
	Type       string        `gorm:"column:trigger_type;size:100;not null;index" json:"type" validate:"required"`
	Parameters JSONMap       `gorm:"column:trigger_parameters;type:jsonb" json:"parameters"`
	Conditions ConditionList `gorm:"column:trigger_conditions;type:jsonb" json:"conditions"`
}

// Action is one ordered, independently-gateable workflow step. Actions are
// stored inline with the workflow as a JSON array; the order field is the
// authoritative execution order.
type Action struct {
	ID         string                 `json:"id"`
	Type       string                 `json:"type" validate:"required"`
	Order      int                    `json:"order"`
	Enabled    bool                   `json:"enabled"`
	Conditions []Condition            `json:"conditions,omitempty"`
	Parameters map[string]interface{} `json:"parameters"`
}

// ActionList is a JSON array of actions stored in a single column
type ActionList []Action

// Value implements the driver.Valuer interface
func (a ActionList) Value() (driver.Value, error) {
	if a == nil {
		return nil, nil
	}
	return json.Marshal(a)
}

// Scan implements the sql.Scanner interface
func (a *ActionList) Scan(value interface{}) error {
	if value == nil {
		*a = nil
		return nil
	}

	bytes, ok := value.([]byte)
	if !ok {
		return fmt.Errorf("cannot scan %T into ActionList", value)
	}

	return json.Unmarshal(bytes, a)
}

// Workflow is a stored automation rule: a trigger plus an ordered list of
// actions. Aggregate stats are running averages maintained by the store,
// never recomputed from execution history.
type Workflow struct {
	ID             string         `gorm:"type:uuid;primaryKey" json:"id"`
	Name           string         `gorm:"size:255;not null" json:"name" validate:"required"`
	OrganizationID *string        `gorm:"size:255;index" json:"organization_id,omitempty"`
	Enabled        bool           `gorm:"default:true" json:"enabled"`
	Status         WorkflowStatus `gorm:"size:50;not null;default:'active';index" json:"status"`
	Trigger        Trigger        `gorm:"embedded" json:"trigger"`
	Actions        ActionList     `gorm:"type:jsonb" json:"actions" validate:"dive"`
	ExecutionCount int64          `gorm:"default:0" json:"execution_count"`
	SuccessRate    float64        `gorm:"default:0" json:"success_rate"`
	LastExecutedAt *time.Time     `json:"last_executed_at,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

// TableName sets the table name for Workflow
func (Workflow) TableName() string {
	return "automation_workflows"
}

// ActionResult is the per-action outcome appended to an execution's audit
// trail. Disabled actions never produce one.
type ActionResult struct {
	ActionID  string                 `json:"action_id"`
	Success   bool                   `json:"success"`
	Timestamp time.Time              `json:"timestamp"`
	Data      map[string]interface{} `json:"data,omitempty"`
	Error     string                 `json:"error,omitempty"`
}

// ActionResultList is a JSON array of action results stored in a single column
type ActionResultList []ActionResult

// Value implements the driver.Valuer interface
func (r ActionResultList) Value() (driver.Value, error) {
	if r == nil {
		return nil, nil
	}
	return json.Marshal(r)
}

// Scan implements the sql.Scanner interface
func (r *ActionResultList) Scan(value interface{}) error {
	if value == nil {
		*r = nil
		return nil
	}

	bytes, ok := value.([]byte)
	if !ok {
		return fmt.Errorf("cannot scan %T into ActionResultList", value)
	}

	return json.Unmarshal(bytes, r)
}

// WorkflowExecution is the full audit record of one workflow run. It is
// persisted with status running before any side effect happens, then
// transitions to exactly one terminal state.
type WorkflowExecution struct {
	ID            string           `gorm:"type:uuid;primaryKey" json:"id"`
	WorkflowID    string           `gorm:"type:uuid;not null;index" json:"workflow_id"`
	WorkflowName  string           `gorm:"size:255" json:"workflow_name"`
	TriggerData   JSONMap          `gorm:"type:jsonb" json:"trigger_data"`
	Status        ExecutionStatus  `gorm:"size:50;not null;default:'running';index" json:"status"`
	ActionResults ActionResultList `gorm:"type:jsonb" json:"action_results"`
	Error         *string          `gorm:"type:text" json:"error,omitempty"`
	StartedAt     time.Time        `gorm:"not null" json:"started_at"`
	CompletedAt   *time.Time       `json:"completed_at,omitempty"`
	CreatedAt     time.Time        `json:"created_at"`
	UpdatedAt     time.Time        `json:"updated_at"`
}

// TableName sets the table name for WorkflowExecution
func (WorkflowExecution) TableName() string {
	return "automation_executions"
}

// Event is an inbound domain event consumed read-only by the engine
type Event struct {
	ID             string    `json:"id"`
	Type           string    `json:"type"`
	Data           JSONMap   `json:"data"`
	Timestamp      time.Time `json:"timestamp"`
	UserID         *string   `json:"user_id,omitempty"`
	OrganizationID *string   `json:"organization_id,omitempty"`
	Metadata       JSONMap   `json:"metadata,omitempty"`
}
