package automation

import (
	"context"
	"errors"
	"testing"

	"github.com/Reg-Kris/pyairtable-automation-service/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testRegistry(t *testing.T, handlers ...interface{}) *Registry {
	t.Helper()
	registry := NewRegistry(zap.NewNop())
	for _, handler := range handlers {
		switch h := handler.(type) {
		case TriggerHandler:
			registry.RegisterTrigger(h)
		case ActionHandler:
			registry.RegisterAction(h)
		default:
			t.Fatalf("unexpected handler %T", handler)
		}
	}
	return registry
}

func enabledAction(id, actionType string, order int) models.Action {
	return models.Action{ID: id, Type: actionType, Order: order, Enabled: true}
}

func testEvent() *models.Event {
	return &models.Event{
		ID:   "evt-1",
		Type: "content_created",
		Data: models.JSONMap{"content": map[string]interface{}{"id": "c1"}},
	}
}

func TestExecuteSequentialFailFast(t *testing.T) {
	actionA := &recordingAction{actionType: "step_a", output: map[string]interface{}{"a": true}}
	actionB := &recordingAction{actionType: "step_b", err: errors.New("downstream unavailable")}
	actionC := &recordingAction{actionType: "step_c"}

	registry := testRegistry(t,
		&stubTrigger{triggerType: "content_created"},
		actionA, actionB, actionC)

	workflow := activeWorkflow("wf-1", "content_created")
	workflow.Actions = models.ActionList{
		enabledAction("a", "step_a", 1),
		enabledAction("b", "step_b", 2),
		enabledAction("c", "step_c", 3),
	}

	store := newMemWorkflowStore(workflow)
	executions := newMemExecutionStore()
	executor := NewExecutor(registry, store, executions, DefaultConfig(), nil, zap.NewNop())

	execution, err := executor.Execute(context.Background(), workflow, testEvent())
	require.NoError(t, err)

	assert.Equal(t, models.ExecutionStatusFailed, execution.Status)
	require.Len(t, execution.ActionResults, 2)
	assert.True(t, execution.ActionResults[0].Success)
	assert.False(t, execution.ActionResults[1].Success)
	assert.Equal(t, "downstream unavailable", execution.ActionResults[1].Error)

	// the third action is never invoked
	assert.Equal(t, 0, actionC.callCount())
	assert.NotNil(t, execution.CompletedAt)
}

func TestExecuteSequentialContextThreading(t *testing.T) {
	actionA := &recordingAction{actionType: "step_a", output: map[string]interface{}{"score": 0.9}}
	actionB := &recordingAction{actionType: "step_b", output: map[string]interface{}{}}

	registry := testRegistry(t,
		&stubTrigger{triggerType: "content_created", context: map[string]interface{}{"event_type": "content_created"}},
		actionA, actionB)

	workflow := activeWorkflow("wf-1", "content_created")
	workflow.Actions = models.ActionList{
		enabledAction("a", "step_a", 1),
		enabledAction("b", "step_b", 2),
	}

	executor := NewExecutor(registry, newMemWorkflowStore(workflow), newMemExecutionStore(),
		DefaultConfig(), nil, zap.NewNop())

	execution, err := executor.Execute(context.Background(), workflow, testEvent())
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusCompleted, execution.Status)

	// the second action sees the first one's output under its type
	seen := actionB.lastContext()
	require.NotNil(t, seen)
	assert.Equal(t, map[string]interface{}{"score": 0.9}, seen["step_a"])
	assert.Equal(t, "content_created", seen["event_type"])
}

func TestExecuteSequentialOrder(t *testing.T) {
	var invoked []string
	registry := NewRegistry(zap.NewNop())
	registry.RegisterTrigger(&stubTrigger{triggerType: "content_created"})
	for _, name := range []string{"first", "second", "third"} {
		name := name
		registry.RegisterAction(&funcAction{actionType: name, fn: func() {
			invoked = append(invoked, name)
		}})
	}

	// definition order deliberately scrambled
	workflow := activeWorkflow("wf-1", "content_created")
	workflow.Actions = models.ActionList{
		enabledAction("c", "third", 30),
		enabledAction("a", "first", 10),
		enabledAction("b", "second", 20),
	}

	executor := NewExecutor(registry, newMemWorkflowStore(workflow), newMemExecutionStore(),
		DefaultConfig(), nil, zap.NewNop())

	_, err := executor.Execute(context.Background(), workflow, testEvent())
	require.NoError(t, err)
	assert.Equal(t, []string{"first", "second", "third"}, invoked)
}

// funcAction runs a callback; sequential tests use it to observe ordering
type funcAction struct {
	actionType string
	fn         func()
}

func (a *funcAction) Type() string { return a.actionType }

func (a *funcAction) Execute(ctx context.Context, parameters map[string]interface{}, execContext map[string]interface{}) (map[string]interface{}, error) {
	a.fn()
	return map[string]interface{}{}, nil
}

func TestExecuteDisabledActionsSkipped(t *testing.T) {
	action := &recordingAction{actionType: "step_a", output: map[string]interface{}{}}
	registry := testRegistry(t, &stubTrigger{triggerType: "content_created"}, action)

	workflow := activeWorkflow("wf-1", "content_created")
	disabled := enabledAction("a", "step_a", 1)
	disabled.Enabled = false
	workflow.Actions = models.ActionList{disabled}

	executor := NewExecutor(registry, newMemWorkflowStore(workflow), newMemExecutionStore(),
		DefaultConfig(), nil, zap.NewNop())

	execution, err := executor.Execute(context.Background(), workflow, testEvent())
	require.NoError(t, err)

	// no results at all, and an empty run counts as completed
	assert.Empty(t, execution.ActionResults)
	assert.Equal(t, models.ExecutionStatusCompleted, execution.Status)
	assert.Equal(t, 0, action.callCount())
}

func TestExecuteConditionGate(t *testing.T) {
	gated := &recordingAction{actionType: "step_a", output: map[string]interface{}{}}
	after := &recordingAction{actionType: "step_b", output: map[string]interface{}{}}

	registry := testRegistry(t,
		&stubTrigger{triggerType: "content_created", context: map[string]interface{}{"priority": "low"}},
		gated, after)

	workflow := activeWorkflow("wf-1", "content_created")
	gatedAction := enabledAction("a", "step_a", 1)
	gatedAction.Conditions = []models.Condition{
		{Field: "priority", Operator: models.OperatorEquals, Value: "high"},
	}
	workflow.Actions = models.ActionList{gatedAction, enabledAction("b", "step_b", 2)}

	executor := NewExecutor(registry, newMemWorkflowStore(workflow), newMemExecutionStore(),
		DefaultConfig(), nil, zap.NewNop())

	execution, err := executor.Execute(context.Background(), workflow, testEvent())
	require.NoError(t, err)

	// the gate records one failed result but execution continues past it
	require.Len(t, execution.ActionResults, 2)
	assert.False(t, execution.ActionResults[0].Success)
	assert.Equal(t, "Action conditions not met", execution.ActionResults[0].Error)
	assert.True(t, execution.ActionResults[1].Success)
	assert.Equal(t, 0, gated.callCount())
	assert.Equal(t, 1, after.callCount())

	// any failed result still fails the run
	assert.Equal(t, models.ExecutionStatusFailed, execution.Status)
}

func TestExecuteParallelNoFailFast(t *testing.T) {
	actionA := &recordingAction{actionType: "step_a", output: map[string]interface{}{"a": true}}
	actionB := &recordingAction{actionType: "step_b", err: errors.New("boom")}
	actionC := &recordingAction{actionType: "step_c", output: map[string]interface{}{"c": true}}

	registry := testRegistry(t,
		&stubTrigger{triggerType: "content_created", context: map[string]interface{}{"event_type": "content_created"}},
		actionA, actionB, actionC)

	workflow := activeWorkflow("wf-1", "content_created")
	workflow.Actions = models.ActionList{
		enabledAction("a", "step_a", 1),
		enabledAction("b", "step_b", 2),
		enabledAction("c", "step_c", 3),
	}

	config := Config{ExecuteSequentially: false, IncludeInputData: true}
	executor := NewExecutor(registry, newMemWorkflowStore(workflow), newMemExecutionStore(),
		config, nil, zap.NewNop())

	execution, err := executor.Execute(context.Background(), workflow, testEvent())
	require.NoError(t, err)

	// every enabled action ran despite the middle failure
	require.Len(t, execution.ActionResults, 3)
	assert.Equal(t, "a", execution.ActionResults[0].ActionID)
	assert.Equal(t, "b", execution.ActionResults[1].ActionID)
	assert.Equal(t, "c", execution.ActionResults[2].ActionID)
	assert.True(t, execution.ActionResults[0].Success)
	assert.False(t, execution.ActionResults[1].Success)
	assert.True(t, execution.ActionResults[2].Success)
	assert.Equal(t, models.ExecutionStatusFailed, execution.Status)

	// no context threading in parallel mode
	assert.NotContains(t, actionC.lastContext(), "step_a")
}

func TestExecuteMissingActionHandler(t *testing.T) {
	registry := testRegistry(t, &stubTrigger{triggerType: "content_created"})

	workflow := activeWorkflow("wf-1", "content_created")
	workflow.Actions = models.ActionList{enabledAction("a", "not_registered", 1)}

	executor := NewExecutor(registry, newMemWorkflowStore(workflow), newMemExecutionStore(),
		DefaultConfig(), nil, zap.NewNop())

	execution, err := executor.Execute(context.Background(), workflow, testEvent())
	require.NoError(t, err)

	require.Len(t, execution.ActionResults, 1)
	assert.False(t, execution.ActionResults[0].Success)
	assert.Contains(t, execution.ActionResults[0].Error, "not_registered")
	assert.Equal(t, models.ExecutionStatusFailed, execution.Status)
}

func TestExecuteTriggerValidationAborts(t *testing.T) {
	action := &recordingAction{actionType: "step_a", output: map[string]interface{}{}}
	registry := testRegistry(t,
		&stubTrigger{triggerType: "content_created", err: NewValidationError("content_created", "missing content payload")},
		action)

	workflow := activeWorkflow("wf-1", "content_created")
	workflow.Actions = models.ActionList{enabledAction("a", "step_a", 1)}

	store := newMemWorkflowStore(workflow)
	executor := NewExecutor(registry, store, newMemExecutionStore(),
		DefaultConfig(), nil, zap.NewNop())

	execution, err := executor.Execute(context.Background(), workflow, testEvent())
	require.NoError(t, err)

	assert.Equal(t, models.ExecutionStatusFailed, execution.Status)
	require.NotNil(t, execution.Error)
	assert.Contains(t, *execution.Error, "missing content payload")
	assert.Empty(t, execution.ActionResults)
	assert.Equal(t, 0, action.callCount())

	// aborted before the action phase, so aggregates stay untouched
	stored, _ := store.GetByID(context.Background(), "wf-1")
	assert.EqualValues(t, 0, stored.ExecutionCount)
}

func TestExecuteMissingTriggerHandlerAborts(t *testing.T) {
	registry := testRegistry(t) // nothing registered

	workflow := activeWorkflow("wf-1", "nonexistent_trigger")

	executor := NewExecutor(registry, newMemWorkflowStore(workflow), newMemExecutionStore(),
		DefaultConfig(), nil, zap.NewNop())

	execution, err := executor.Execute(context.Background(), workflow, testEvent())
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusFailed, execution.Status)
	require.NotNil(t, execution.Error)
	assert.Contains(t, *execution.Error, "nonexistent_trigger")
}

func TestExecuteInitialPersistFailure(t *testing.T) {
	action := &recordingAction{actionType: "step_a", output: map[string]interface{}{}}
	registry := testRegistry(t, &stubTrigger{triggerType: "content_created"}, action)

	workflow := activeWorkflow("wf-1", "content_created")
	workflow.Actions = models.ActionList{enabledAction("a", "step_a", 1)}

	executions := newMemExecutionStore()
	executions.createErr = errors.New("db down")

	executor := NewExecutor(registry, newMemWorkflowStore(workflow), executions,
		DefaultConfig(), nil, zap.NewNop())

	execution, err := executor.Execute(context.Background(), workflow, testEvent())
	assert.Nil(t, execution)
	assert.ErrorContains(t, err, "db down")

	// run never started: no side effects
	assert.Equal(t, 0, action.callCount())
}

func TestExecutePersistsRunningRecordFirst(t *testing.T) {
	executions := newMemExecutionStore()

	// the action observes the persisted record mid-flight
	var statusDuringRun models.ExecutionStatus
	registry := NewRegistry(zap.NewNop())
	registry.RegisterTrigger(&stubTrigger{triggerType: "content_created"})
	registry.RegisterAction(&funcAction{actionType: "step_a", fn: func() {
		executions.mu.Lock()
		defer executions.mu.Unlock()
		for _, stored := range executions.executions {
			statusDuringRun = stored.Status
		}
	}})

	workflow := activeWorkflow("wf-1", "content_created")
	workflow.Actions = models.ActionList{enabledAction("a", "step_a", 1)}

	executor := NewExecutor(registry, newMemWorkflowStore(workflow), executions,
		DefaultConfig(), nil, zap.NewNop())

	_, err := executor.Execute(context.Background(), workflow, testEvent())
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusRunning, statusDuringRun)
}

func TestExecuteSuccessRateRunningAverage(t *testing.T) {
	failing := &recordingAction{actionType: "step_a", err: errors.New("boom")}
	registry := testRegistry(t, &stubTrigger{triggerType: "content_created"}, failing)

	workflow := activeWorkflow("wf-1", "content_created")
	workflow.Actions = models.ActionList{enabledAction("a", "step_a", 1)}

	store := newMemWorkflowStore(workflow)
	executor := NewExecutor(registry, store, newMemExecutionStore(),
		DefaultConfig(), nil, zap.NewNop())

	// two failures, then two successes
	for i := 0; i < 2; i++ {
		_, err := executor.Execute(context.Background(), workflow, testEvent())
		require.NoError(t, err)
	}
	failing.err = nil
	failing.output = map[string]interface{}{}
	for i := 0; i < 2; i++ {
		_, err := executor.Execute(context.Background(), workflow, testEvent())
		require.NoError(t, err)
	}

	stored, _ := store.GetByID(context.Background(), "wf-1")
	assert.EqualValues(t, 4, stored.ExecutionCount)
	assert.InDelta(t, 0.5, stored.SuccessRate, 1e-9)
	assert.NotNil(t, stored.LastExecutedAt)
}

func TestExecuteIncludeInputData(t *testing.T) {
	registry := testRegistry(t, &stubTrigger{triggerType: "content_created"})
	workflow := activeWorkflow("wf-1", "content_created")

	event := testEvent()
	event.UserID = strPtr("user-1")

	full := NewExecutor(registry, newMemWorkflowStore(workflow), newMemExecutionStore(),
		Config{ExecuteSequentially: true, IncludeInputData: true}, nil, zap.NewNop())
	execution, err := full.Execute(context.Background(), workflow, event)
	require.NoError(t, err)
	assert.Equal(t, "content_created", execution.TriggerData["type"])
	assert.Contains(t, execution.TriggerData, "data")
	assert.Equal(t, "user-1", execution.TriggerData["user_id"])

	lean := NewExecutor(registry, newMemWorkflowStore(workflow), newMemExecutionStore(),
		Config{ExecuteSequentially: true, IncludeInputData: false}, nil, zap.NewNop())
	execution, err = lean.Execute(context.Background(), workflow, event)
	require.NoError(t, err)
	assert.Equal(t, models.JSONMap{"type": "content_created"}, execution.TriggerData)
}
