package automation

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Reg-Kris/pyairtable-automation-service/internal/models"
)

// memWorkflowStore is an in-memory WorkflowStore for tests, with per-call
// error injection
type memWorkflowStore struct {
	mu        sync.Mutex
	workflows map[string]*models.Workflow
	findErr   error
}

func newMemWorkflowStore(workflows ...*models.Workflow) *memWorkflowStore {
	store := &memWorkflowStore{workflows: make(map[string]*models.Workflow)}
	for _, workflow := range workflows {
		store.workflows[workflow.ID] = workflow
	}
	return store
}

func (s *memWorkflowStore) Create(ctx context.Context, workflow *models.Workflow) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.workflows[workflow.ID]; exists {
		return fmt.Errorf("workflow %s already exists", workflow.ID)
	}
	s.workflows[workflow.ID] = workflow
	return nil
}

func (s *memWorkflowStore) GetByID(ctx context.Context, id string) (*models.Workflow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.workflows[id], nil
}

func (s *memWorkflowStore) Update(ctx context.Context, workflow *models.Workflow) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.workflows[workflow.ID] = workflow
	return nil
}

func (s *memWorkflowStore) UpdateFields(ctx context.Context, id string, fields map[string]interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	workflow, exists := s.workflows[id]
	if !exists {
		return fmt.Errorf("workflow %s not found", id)
	}
	if enabled, ok := fields["enabled"].(bool); ok {
		workflow.Enabled = enabled
	}
	if status, ok := fields["status"].(models.WorkflowStatus); ok {
		workflow.Status = status
	}
	return nil
}

func (s *memWorkflowStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.workflows, id)
	return nil
}

func (s *memWorkflowStore) FindCandidates(ctx context.Context, triggerType string) ([]*models.Workflow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.findErr != nil {
		return nil, s.findErr
	}
	var candidates []*models.Workflow
	for _, workflow := range s.workflows {
		if workflow.Trigger.Type == triggerType && workflow.Enabled && workflow.Status == models.WorkflowStatusActive {
			candidates = append(candidates, workflow)
		}
	}
	return candidates, nil
}

func (s *memWorkflowStore) ListByOrganization(ctx context.Context, organizationID string, limit, offset int) ([]*models.Workflow, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var workflows []*models.Workflow
	for _, workflow := range s.workflows {
		if workflow.OrganizationID != nil && *workflow.OrganizationID == organizationID {
			workflows = append(workflows, workflow)
		}
	}
	return workflows, int64(len(workflows)), nil
}

func (s *memWorkflowStore) RecordExecution(ctx context.Context, id string, succeeded bool, executedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	workflow, exists := s.workflows[id]
	if !exists {
		return fmt.Errorf("workflow %s not found", id)
	}
	outcome := 0.0
	if succeeded {
		outcome = 1.0
	}
	count := float64(workflow.ExecutionCount)
	workflow.SuccessRate = (workflow.SuccessRate*count + outcome) / (count + 1)
	workflow.ExecutionCount++
	workflow.LastExecutedAt = &executedAt
	return nil
}

// memExecutionStore is an in-memory ExecutionStore for tests
type memExecutionStore struct {
	mu         sync.Mutex
	executions map[string]*models.WorkflowExecution
	order      []string
	createErr  error
	updateErr  error
}

func newMemExecutionStore() *memExecutionStore {
	return &memExecutionStore{executions: make(map[string]*models.WorkflowExecution)}
}

func (s *memExecutionStore) Create(ctx context.Context, execution *models.WorkflowExecution) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.createErr != nil {
		return s.createErr
	}
	stored := *execution
	s.executions[execution.ID] = &stored
	s.order = append(s.order, execution.ID)
	return nil
}

func (s *memExecutionStore) Update(ctx context.Context, execution *models.WorkflowExecution) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.updateErr != nil {
		return s.updateErr
	}
	stored := *execution
	s.executions[execution.ID] = &stored
	return nil
}

func (s *memExecutionStore) GetByID(ctx context.Context, id string) (*models.WorkflowExecution, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.executions[id], nil
}

func (s *memExecutionStore) ListByWorkflow(ctx context.Context, workflowID string, limit, offset int) ([]*models.WorkflowExecution, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var matched []*models.WorkflowExecution
	for _, id := range s.order {
		execution := s.executions[id]
		if execution.WorkflowID == workflowID {
			matched = append(matched, execution)
		}
	}
	total := int64(len(matched))
	if offset >= len(matched) {
		return nil, total, nil
	}
	matched = matched[offset:]
	if limit > 0 && limit < len(matched) {
		matched = matched[:limit]
	}
	return matched, total, nil
}

// stubTrigger is a canned TriggerHandler
type stubTrigger struct {
	triggerType string
	context     map[string]interface{}
	err         error
}

func (t *stubTrigger) Type() string { return t.triggerType }

func (t *stubTrigger) Process(ctx context.Context, event *models.Event, parameters map[string]interface{}) (map[string]interface{}, error) {
	if t.err != nil {
		return nil, t.err
	}
	processed := make(map[string]interface{}, len(t.context))
	for k, v := range t.context {
		processed[k] = v
	}
	return processed, nil
}

// recordingAction is an ActionHandler that records each invocation's context
// snapshot and returns canned output
type recordingAction struct {
	actionType string
	output     map[string]interface{}
	err        error

	mu       sync.Mutex
	calls    int
	contexts []map[string]interface{}
}

func (a *recordingAction) Type() string { return a.actionType }

func (a *recordingAction) Execute(ctx context.Context, parameters map[string]interface{}, execContext map[string]interface{}) (map[string]interface{}, error) {
	snapshot := make(map[string]interface{}, len(execContext))
	for k, v := range execContext {
		snapshot[k] = v
	}

	a.mu.Lock()
	a.calls++
	a.contexts = append(a.contexts, snapshot)
	a.mu.Unlock()

	if a.err != nil {
		return nil, a.err
	}
	return a.output, nil
}

func (a *recordingAction) callCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.calls
}

func (a *recordingAction) lastContext() map[string]interface{} {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.contexts) == 0 {
		return nil
	}
	return a.contexts[len(a.contexts)-1]
}
