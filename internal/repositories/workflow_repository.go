package repositories

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Reg-Kris/pyairtable-automation-service/internal/automation"
	"github.com/Reg-Kris/pyairtable-automation-service/internal/models"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

const candidateCacheTTL = 30 * time.Second

func candidateCacheKey(triggerType string) string {
	return fmt.Sprintf("automation:candidates:%s", triggerType)
}

type workflowRepository struct {
	db    *gorm.DB
	redis *redis.Client
}

// NewWorkflowRepository creates a gorm-backed workflow store
func NewWorkflowRepository(db *gorm.DB, redis *redis.Client) automation.WorkflowStore {
	return &workflowRepository{
		db:    db,
		redis: redis,
	}
}

// Create stores a new workflow definition
func (r *workflowRepository) Create(ctx context.Context, workflow *models.Workflow) error {
	if err := r.db.WithContext(ctx).Create(workflow).Error; err != nil {
		return fmt.Errorf("failed to create workflow: %w", err)
	}

	r.invalidateCandidateCache(workflow.Trigger.Type)
	return nil
}

// GetByID retrieves a workflow by ID, nil if not found
func (r *workflowRepository) GetByID(ctx context.Context, id string) (*models.Workflow, error) {
	var workflow models.Workflow

	if err := r.db.WithContext(ctx).First(&workflow, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get workflow by ID: %w", err)
	}

	return &workflow, nil
}

// Update saves a full workflow definition. The candidate cache is dropped
// for the previous trigger type as well, in case the update moved the
// workflow to a different one.
func (r *workflowRepository) Update(ctx context.Context, workflow *models.Workflow) error {
	previousType, _ := r.triggerTypeOf(ctx, workflow.ID)

	if err := r.db.WithContext(ctx).Save(workflow).Error; err != nil {
		return fmt.Errorf("failed to update workflow: %w", err)
	}

	if previousType != "" && previousType != workflow.Trigger.Type {
		r.invalidateCandidateCache(previousType)
	}
	r.invalidateCandidateCache(workflow.Trigger.Type)
	return nil
}

// UpdateFields applies a partial update to a workflow. Enable/disable and
// status flips come through here, so the candidate cache must be dropped or
// a disabled workflow keeps matching until the TTL runs out.
func (r *workflowRepository) UpdateFields(ctx context.Context, id string, fields map[string]interface{}) error {
	triggerType, err := r.triggerTypeOf(ctx, id)
	if err != nil {
		return err
	}

	if err := r.db.WithContext(ctx).
		Model(&models.Workflow{}).
		Where("id = ?", id).
		Updates(fields).Error; err != nil {
		return fmt.Errorf("failed to update workflow fields: %w", err)
	}

	if triggerType != "" {
		r.invalidateCandidateCache(triggerType)
	}
	return nil
}

// Delete removes a workflow definition and drops its cached candidate list
func (r *workflowRepository) Delete(ctx context.Context, id string) error {
	triggerType, err := r.triggerTypeOf(ctx, id)
	if err != nil {
		return err
	}

	if err := r.db.WithContext(ctx).Delete(&models.Workflow{}, "id = ?", id).Error; err != nil {
		return fmt.Errorf("failed to delete workflow: %w", err)
	}

	if triggerType != "" {
		r.invalidateCandidateCache(triggerType)
	}
	return nil
}

// triggerTypeOf reads just the trigger type of a stored workflow, "" if the
// workflow does not exist
func (r *workflowRepository) triggerTypeOf(ctx context.Context, id string) (string, error) {
	var triggerType string

	err := r.db.WithContext(ctx).
		Model(&models.Workflow{}).
		Where("id = ?", id).
		Pluck("trigger_type", &triggerType).Error
	if err != nil {
		return "", fmt.Errorf("failed to read workflow trigger type: %w", err)
	}

	return triggerType, nil
}

// FindCandidates retrieves enabled, active workflows for a trigger type,
// reading through a short-lived redis cache. Stale reads inside the TTL are
// the same staleness window the matcher already accepts.
func (r *workflowRepository) FindCandidates(ctx context.Context, triggerType string) ([]*models.Workflow, error) {
	cacheKey := candidateCacheKey(triggerType)

	if r.redis != nil {
		cached, err := r.redis.Get(ctx, cacheKey).Bytes()
		if err == nil {
			var workflows []*models.Workflow
			if err := json.Unmarshal(cached, &workflows); err == nil {
				return workflows, nil
			}
		}
	}

	var workflows []*models.Workflow
	if err := r.db.WithContext(ctx).
		Where("trigger_type = ? AND enabled = ? AND status = ?",
			triggerType, true, models.WorkflowStatusActive).
		Find(&workflows).Error; err != nil {
		return nil, fmt.Errorf("failed to query candidate workflows: %w", err)
	}

	if r.redis != nil {
		if encoded, err := json.Marshal(workflows); err == nil {
			r.redis.Set(ctx, cacheKey, encoded, candidateCacheTTL)
		}
	}

	return workflows, nil
}

// ListByOrganization retrieves an organization's workflows with pagination
func (r *workflowRepository) ListByOrganization(ctx context.Context, organizationID string, limit, offset int) ([]*models.Workflow, int64, error) {
	var workflows []*models.Workflow
	var total int64

	base := r.db.WithContext(ctx).
		Model(&models.Workflow{}).
		Where("organization_id = ?", organizationID)

	if err := base.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count workflows: %w", err)
	}

	query := base.Order("created_at DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}

	if err := query.Find(&workflows).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list workflows: %w", err)
	}

	return workflows, total, nil
}

// RecordExecution folds one finished run into the workflow aggregates. The
// running average is computed in a single UPDATE from the pre-update values,
// never from full execution history.
func (r *workflowRepository) RecordExecution(ctx context.Context, id string, succeeded bool, executedAt time.Time) error {
	outcome := 0
	if succeeded {
		outcome = 1
	}

	updates := map[string]interface{}{
		"success_rate":     gorm.Expr("(success_rate * execution_count + ?) / (execution_count + 1)", outcome),
		"execution_count":  gorm.Expr("execution_count + 1"),
		"last_executed_at": executedAt,
	}

	if err := r.db.WithContext(ctx).
		Model(&models.Workflow{}).
		Where("id = ?", id).
		Updates(updates).Error; err != nil {
		return fmt.Errorf("failed to update workflow stats: %w", err)
	}

	return nil
}

// invalidateCandidateCache drops the cached candidate list for a trigger type
func (r *workflowRepository) invalidateCandidateCache(triggerType string) {
	if r.redis == nil {
		return
	}

	r.redis.Del(context.Background(), candidateCacheKey(triggerType))
}
