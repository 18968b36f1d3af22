package automation

import (
	"context"
	"time"

	"github.com/Reg-Kris/pyairtable-automation-service/internal/models"
)

// WorkflowStore is the abstract workflow-definition store the engine runs
// against. Implementations only need atomic single-record reads and updates;
// the engine never relies on multi-record transactions.
type WorkflowStore interface {
	Create(ctx context.Context, workflow *models.Workflow) error
	GetByID(ctx context.Context, id string) (*models.Workflow, error)
	Update(ctx context.Context, workflow *models.Workflow) error
	UpdateFields(ctx context.Context, id string, fields map[string]interface{}) error
	Delete(ctx context.Context, id string) error

	// FindCandidates returns enabled, active workflows whose trigger type
	// matches the given event type. Organization and condition filtering
	// happens in the matcher.
	FindCandidates(ctx context.Context, triggerType string) ([]*models.Workflow, error)

	ListByOrganization(ctx context.Context, organizationID string, limit, offset int) ([]*models.Workflow, int64, error)

	// RecordExecution folds one finished run into the workflow's running
	// aggregates: execution count, running-average success rate and last
	// executed timestamp. Aggregates are best-effort telemetry; the
	// execution log remains the source of truth.
	RecordExecution(ctx context.Context, id string, succeeded bool, executedAt time.Time) error
}

// ExecutionStore persists workflow execution audit records
type ExecutionStore interface {
	Create(ctx context.Context, execution *models.WorkflowExecution) error
	Update(ctx context.Context, execution *models.WorkflowExecution) error
	GetByID(ctx context.Context, id string) (*models.WorkflowExecution, error)
	ListByWorkflow(ctx context.Context, workflowID string, limit, offset int) ([]*models.WorkflowExecution, int64, error)
}
