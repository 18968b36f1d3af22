package automation

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/Reg-Kris/pyairtable-automation-service/internal/models"
	"github.com/Reg-Kris/pyairtable-automation-service/pkg/metrics"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// conditionGateMessage is the error recorded when an enabled action's own
// conditions fail against the execution context. The resulting ActionResult
// is non-fatal in sequential mode but still flips the run status to failed.
const conditionGateMessage = "Action conditions not met"

// Config holds the executor knobs that are actually enforced
type Config struct {
	// ExecuteSequentially selects ordered fail-fast execution with context
	// threading; false runs all enabled actions concurrently against the
	// same initial context.
	ExecuteSequentially bool `mapstructure:"execute_sequentially"`
	// IncludeInputData records the full event payload on the execution
	// record; false records only the event type.
	IncludeInputData bool `mapstructure:"include_input_data"`
}

// DefaultConfig returns the executor defaults
func DefaultConfig() Config {
	return Config{
		ExecuteSequentially: true,
		IncludeInputData:    true,
	}
}

// Executor orchestrates one workflow run: trigger processing, ordered or
// concurrent action execution, result aggregation and stats update
type Executor struct {
	registry   *Registry
	workflows  WorkflowStore
	executions ExecutionStore
	config     Config
	metrics    *metrics.Registry
	logger     *zap.Logger
}

// NewExecutor creates a workflow executor. metrics may be nil.
func NewExecutor(registry *Registry, workflows WorkflowStore, executions ExecutionStore, config Config, m *metrics.Registry, logger *zap.Logger) *Executor {
	return &Executor{
		registry:   registry,
		workflows:  workflows,
		executions: executions,
		config:     config,
		metrics:    m,
		logger:     logger,
	}
}

// Execute runs a single workflow against an event and returns the finished
// execution record. Trigger validation errors, missing handlers and action
// failures are encoded into the record, never returned as errors; the only
// error case is failing to persist the initial running record, which means
// the run was never attempted.
func (e *Executor) Execute(ctx context.Context, workflow *models.Workflow, event *models.Event) (*models.WorkflowExecution, error) {
	execution := &models.WorkflowExecution{
		ID:           uuid.NewString(),
		WorkflowID:   workflow.ID,
		WorkflowName: workflow.Name,
		TriggerData:  e.triggerData(event),
		Status:       models.ExecutionStatusRunning,
		StartedAt:    time.Now(),
	}

	// Durability point: the running record is persisted before any side
	// effect so in-flight runs stay observable across a crash.
	if err := e.executions.Create(ctx, execution); err != nil {
		return nil, fmt.Errorf("failed to persist execution record: %w", err)
	}

	e.logger.Info("Workflow execution started",
		zap.String("execution_id", execution.ID),
		zap.String("workflow_id", workflow.ID),
		zap.String("workflow_name", workflow.Name),
		zap.String("event_type", event.Type))

	trigger, ok := e.registry.TriggerHandler(workflow.Trigger.Type)
	if !ok {
		err := &HandlerNotFoundError{Kind: "trigger", Type: workflow.Trigger.Type}
		return e.abort(ctx, execution, err), nil
	}

	execContext, err := trigger.Process(ctx, event, workflow.Trigger.Parameters)
	if err != nil {
		return e.abort(ctx, execution, err), nil
	}
	if execContext == nil {
		execContext = make(map[string]interface{})
	}

	actions := sortActions(workflow.Actions)

	var results []models.ActionResult
	if e.config.ExecuteSequentially {
		results = e.runSequential(ctx, actions, execContext)
	} else {
		results = e.runParallel(ctx, actions, execContext)
	}
	execution.ActionResults = results

	succeeded := true
	for _, result := range results {
		if !result.Success {
			succeeded = false
			break
		}
	}

	if succeeded {
		execution.Status = models.ExecutionStatusCompleted
	} else {
		execution.Status = models.ExecutionStatusFailed
	}

	// Aggregate update is independent of the execution-record write; the
	// two may diverge after a crash and the execution log wins.
	now := time.Now()
	if err := e.workflows.RecordExecution(ctx, workflow.ID, succeeded, now); err != nil {
		e.logger.Error("Failed to update workflow stats",
			zap.Error(err),
			zap.String("workflow_id", workflow.ID))
	}

	e.finish(ctx, execution, now)
	return execution, nil
}

// triggerData builds the audit payload recorded on the execution
func (e *Executor) triggerData(event *models.Event) models.JSONMap {
	if !e.config.IncludeInputData {
		return models.JSONMap{"type": event.Type}
	}

	data := models.JSONMap{
		"type":      event.Type,
		"data":      map[string]interface{}(event.Data),
		"timestamp": event.Timestamp,
	}
	if event.UserID != nil {
		data["user_id"] = *event.UserID
	}
	if event.OrganizationID != nil {
		data["organization_id"] = *event.OrganizationID
	}
	if event.Metadata != nil {
		data["metadata"] = map[string]interface{}(event.Metadata)
	}
	return data
}

// runSequential walks the sorted actions in order. Disabled actions are
// skipped without a result. A failed condition gate records a failed result
// and continues; a handler failure records a failed result and stops the
// run. Successful action output is threaded into the context under the
// action's type so later actions can read it.
func (e *Executor) runSequential(ctx context.Context, actions []models.Action, execContext map[string]interface{}) []models.ActionResult {
	results := make([]models.ActionResult, 0, len(actions))

	for _, action := range actions {
		if !action.Enabled {
			continue
		}

		if len(action.Conditions) > 0 && !EvaluateConditions(action.Conditions, execContext) {
			results = append(results, e.failedResult(action, conditionGateMessage))
			continue
		}

		result := e.runAction(ctx, action, execContext)
		results = append(results, result)

		if !result.Success {
			e.logger.Warn("Action failed, stopping sequential execution",
				zap.String("action_id", action.ID),
				zap.String("action_type", action.Type),
				zap.String("error", result.Error))
			break
		}

		execContext[action.Type] = result.Data
	}

	return results
}

// runParallel invokes every enabled action concurrently against the same
// initial context. There is no fail-fast and no context threading; results
// keep the sorted action order.
func (e *Executor) runParallel(ctx context.Context, actions []models.Action, execContext map[string]interface{}) []models.ActionResult {
	enabled := make([]models.Action, 0, len(actions))
	for _, action := range actions {
		if action.Enabled {
			enabled = append(enabled, action)
		}
	}

	results := make([]models.ActionResult, len(enabled))
	var wg sync.WaitGroup

	for i, action := range enabled {
		wg.Add(1)
		go func(i int, action models.Action) {
			defer wg.Done()

			if len(action.Conditions) > 0 && !EvaluateConditions(action.Conditions, execContext) {
				results[i] = e.failedResult(action, conditionGateMessage)
				return
			}

			results[i] = e.runAction(ctx, action, execContext)
		}(i, action)
	}

	wg.Wait()
	return results
}

// runAction resolves and invokes one action handler
func (e *Executor) runAction(ctx context.Context, action models.Action, execContext map[string]interface{}) models.ActionResult {
	handler, ok := e.registry.ActionHandler(action.Type)
	if !ok {
		err := &HandlerNotFoundError{Kind: "action", Type: action.Type}
		return e.failedResult(action, err.Error())
	}

	start := time.Now()
	data, err := handler.Execute(ctx, action.Parameters, execContext)
	if e.metrics != nil {
		e.metrics.ActionDuration.WithLabelValues(action.Type).Observe(time.Since(start).Seconds())
	}

	if err != nil {
		return e.failedResult(action, err.Error())
	}

	return models.ActionResult{
		ActionID:  action.ID,
		Success:   true,
		Timestamp: time.Now(),
		Data:      data,
	}
}

func (e *Executor) failedResult(action models.Action, message string) models.ActionResult {
	if e.metrics != nil {
		e.metrics.ActionFailures.WithLabelValues(action.Type).Inc()
	}
	return models.ActionResult{
		ActionID:  action.ID,
		Success:   false,
		Timestamp: time.Now(),
		Error:     message,
	}
}

// abort marks an execution failed before any action ran: missing trigger
// handler or trigger validation failure
func (e *Executor) abort(ctx context.Context, execution *models.WorkflowExecution, cause error) *models.WorkflowExecution {
	message := cause.Error()
	execution.Error = &message
	execution.Status = models.ExecutionStatusFailed

	e.logger.Warn("Workflow execution aborted",
		zap.String("execution_id", execution.ID),
		zap.String("workflow_id", execution.WorkflowID),
		zap.String("error", message))

	e.finish(ctx, execution, time.Now())
	return execution
}

// finish persists the terminal execution state. A persistence failure here
// is logged but never discards the in-memory result.
func (e *Executor) finish(ctx context.Context, execution *models.WorkflowExecution, completedAt time.Time) {
	execution.CompletedAt = &completedAt

	if e.metrics != nil {
		e.metrics.ExecutionsTotal.WithLabelValues(string(execution.Status)).Inc()
	}

	if err := e.executions.Update(ctx, execution); err != nil {
		e.logger.Error("Failed to persist final execution update",
			zap.Error(err),
			zap.String("execution_id", execution.ID))
		return
	}

	e.logger.Info("Workflow execution finished",
		zap.String("execution_id", execution.ID),
		zap.String("workflow_id", execution.WorkflowID),
		zap.String("status", string(execution.Status)),
		zap.Int("action_results", len(execution.ActionResults)))
}

// sortActions returns the actions sorted ascending by order. The sort is
// stable: ties preserve definition order.
func sortActions(actions []models.Action) []models.Action {
	sorted := make([]models.Action, len(actions))
	copy(sorted, actions)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Order < sorted[j].Order
	})
	return sorted
}
