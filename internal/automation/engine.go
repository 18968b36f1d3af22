package automation

import (
	"context"
	"fmt"
	"sync"

	"github.com/Reg-Kris/pyairtable-automation-service/internal/models"
	"github.com/Reg-Kris/pyairtable-automation-service/pkg/metrics"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Engine is the automation facade: event fan-out across matched workflows
// plus workflow-definition passthroughs to the store
type Engine struct {
	matcher    *Matcher
	executor   *Executor
	registry   *Registry
	workflows  WorkflowStore
	executions ExecutionStore
	validate   *validator.Validate
	metrics    *metrics.Registry
	logger     *zap.Logger
}

// NewEngine wires the matcher and executor against the given stores and
// handler registry. metrics may be nil.
func NewEngine(registry *Registry, workflows WorkflowStore, executions ExecutionStore, config Config, m *metrics.Registry, logger *zap.Logger) *Engine {
	return &Engine{
		matcher:    NewMatcher(workflows, logger),
		executor:   NewExecutor(registry, workflows, executions, config, m, logger),
		registry:   registry,
		workflows:  workflows,
		executions: executions,
		validate:   validator.New(),
		metrics:    m,
		logger:     logger,
	}
}

// ProcessResult aggregates one event's fan-out outcome
type ProcessResult struct {
	ExecutedCount int      `json:"executed_count"`
	SuccessCount  int      `json:"success_count"`
	ExecutionIDs  []string `json:"execution_ids"`
}

// ProcessEvent matches the event against stored workflows and executes every
// match concurrently, returning once all runs settle. A store or matcher
// failure returns an error and means no executions were attempted; failures
// inside individual runs are encoded in their execution records and only
// reduce SuccessCount.
func (e *Engine) ProcessEvent(ctx context.Context, event *models.Event) (*ProcessResult, error) {
	matched, err := e.matcher.FindMatchingWorkflows(ctx, event)
	if err != nil {
		return nil, err
	}

	if e.metrics != nil {
		e.metrics.EventsProcessed.WithLabelValues(event.Type).Inc()
		e.metrics.WorkflowsMatched.WithLabelValues(event.Type).Observe(float64(len(matched)))
	}

	result := &ProcessResult{ExecutionIDs: make([]string, 0, len(matched))}
	if len(matched) == 0 {
		return result, nil
	}

	var wg sync.WaitGroup
	var mu sync.Mutex

	for _, workflow := range matched {
		wg.Add(1)
		go func(workflow *models.Workflow) {
			defer wg.Done()

			execution, err := e.executor.Execute(ctx, workflow, event)

			mu.Lock()
			defer mu.Unlock()

			result.ExecutedCount++
			if err != nil {
				e.logger.Error("Workflow execution could not be recorded",
					zap.Error(err),
					zap.String("workflow_id", workflow.ID),
					zap.String("event_type", event.Type))
				return
			}

			result.ExecutionIDs = append(result.ExecutionIDs, execution.ID)
			if execution.Status == models.ExecutionStatusCompleted {
				result.SuccessCount++
			}
		}(workflow)
	}

	wg.Wait()

	e.logger.Info("Event processed",
		zap.String("event_type", event.Type),
		zap.Int("executed", result.ExecutedCount),
		zap.Int("succeeded", result.SuccessCount))

	return result, nil
}

// CreateWorkflow validates and stores a new workflow definition, assigning
// ids where absent
func (e *Engine) CreateWorkflow(ctx context.Context, workflow *models.Workflow) error {
	if workflow.ID == "" {
		workflow.ID = uuid.NewString()
	}
	if workflow.Status == "" {
		workflow.Status = models.WorkflowStatusActive
	}
	for i := range workflow.Actions {
		if workflow.Actions[i].ID == "" {
			workflow.Actions[i].ID = uuid.NewString()
		}
	}

	if err := e.validate.Struct(workflow); err != nil {
		return fmt.Errorf("invalid workflow definition: %w", err)
	}

	return e.workflows.Create(ctx, workflow)
}

// UpdateWorkflow validates and stores a changed workflow definition
func (e *Engine) UpdateWorkflow(ctx context.Context, workflow *models.Workflow) error {
	if err := e.validate.Struct(workflow); err != nil {
		return fmt.Errorf("invalid workflow definition: %w", err)
	}
	return e.workflows.Update(ctx, workflow)
}

// DeleteWorkflow removes a workflow definition
func (e *Engine) DeleteWorkflow(ctx context.Context, id string) error {
	return e.workflows.Delete(ctx, id)
}

// GetWorkflow fetches one workflow definition
func (e *Engine) GetWorkflow(ctx context.Context, id string) (*models.Workflow, error) {
	return e.workflows.GetByID(ctx, id)
}

// EnableWorkflow marks a workflow eligible for matching
func (e *Engine) EnableWorkflow(ctx context.Context, id string) error {
	return e.workflows.UpdateFields(ctx, id, map[string]interface{}{"enabled": true})
}

// DisableWorkflow removes a workflow from matching without deleting it
func (e *Engine) DisableWorkflow(ctx context.Context, id string) error {
	return e.workflows.UpdateFields(ctx, id, map[string]interface{}{"enabled": false})
}

// SetWorkflowStatus sets the workflow lifecycle status
func (e *Engine) SetWorkflowStatus(ctx context.Context, id string, status models.WorkflowStatus) error {
	return e.workflows.UpdateFields(ctx, id, map[string]interface{}{"status": status})
}

// GetExecution fetches one execution record
func (e *Engine) GetExecution(ctx context.Context, id string) (*models.WorkflowExecution, error) {
	return e.executions.GetByID(ctx, id)
}

// ListExecutions pages through a workflow's execution log
func (e *Engine) ListExecutions(ctx context.Context, workflowID string, limit, offset int) ([]*models.WorkflowExecution, int64, error) {
	return e.executions.ListByWorkflow(ctx, workflowID, limit, offset)
}

// ListWorkflows pages through an organization's workflow definitions
func (e *Engine) ListWorkflows(ctx context.Context, organizationID string, limit, offset int) ([]*models.Workflow, int64, error) {
	return e.workflows.ListByOrganization(ctx, organizationID, limit, offset)
}
