package repositories

import (
	"context"
	"fmt"

	"github.com/Reg-Kris/pyairtable-automation-service/internal/automation"
	"github.com/Reg-Kris/pyairtable-automation-service/internal/models"
	"gorm.io/gorm"
)

type executionRepository struct {
	db *gorm.DB
}

// NewExecutionRepository creates a gorm-backed execution store
func NewExecutionRepository(db *gorm.DB) automation.ExecutionStore {
	return &executionRepository{db: db}
}

// Create persists a new execution record
func (r *executionRepository) Create(ctx context.Context, execution *models.WorkflowExecution) error {
	if err := r.db.WithContext(ctx).Create(execution).Error; err != nil {
		return fmt.Errorf("failed to create execution record: %w", err)
	}

	return nil
}

// Update persists the terminal state of an execution record
func (r *executionRepository) Update(ctx context.Context, execution *models.WorkflowExecution) error {
	if err := r.db.WithContext(ctx).Save(execution).Error; err != nil {
		return fmt.Errorf("failed to update execution record: %w", err)
	}

	return nil
}

// GetByID retrieves an execution record by ID, nil if not found
func (r *executionRepository) GetByID(ctx context.Context, id string) (*models.WorkflowExecution, error) {
	var execution models.WorkflowExecution

	if err := r.db.WithContext(ctx).First(&execution, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get execution by ID: %w", err)
	}

	return &execution, nil
}

// ListByWorkflow retrieves a workflow's execution log with pagination,
// newest first
func (r *executionRepository) ListByWorkflow(ctx context.Context, workflowID string, limit, offset int) ([]*models.WorkflowExecution, int64, error) {
	var executions []*models.WorkflowExecution
	var total int64

	base := r.db.WithContext(ctx).
		Model(&models.WorkflowExecution{}).
		Where("workflow_id = ?", workflowID)

	if err := base.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count executions: %w", err)
	}

	query := base.Order("started_at DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}

	if err := query.Find(&executions).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list executions: %w", err)
	}

	return executions, total, nil
}
