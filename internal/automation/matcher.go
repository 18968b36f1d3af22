package automation

import (
	"context"
	"fmt"

	"github.com/Reg-Kris/pyairtable-automation-service/internal/models"
	"go.uber.org/zap"
)

// Matcher selects the workflows subscribed to an event. Matching is
// non-transactional: a workflow can be disabled between the store query and
// the condition check; that staleness window is accepted over locking.
type Matcher struct {
	workflows WorkflowStore
	logger    *zap.Logger
}

// NewMatcher creates a workflow matcher
func NewMatcher(workflows WorkflowStore, logger *zap.Logger) *Matcher {
	return &Matcher{
		workflows: workflows,
		logger:    logger,
	}
}

// FindMatchingWorkflows returns the enabled, active workflows whose trigger
// type matches the event, excluding workflows scoped to a different
// organization and workflows whose trigger conditions fail against the event
// data. No matches is an empty slice, not an error.
func (m *Matcher) FindMatchingWorkflows(ctx context.Context, event *models.Event) ([]*models.Workflow, error) {
	candidates, err := m.workflows.FindCandidates(ctx, event.Type)
	if err != nil {
		return nil, fmt.Errorf("failed to query candidate workflows: %w", err)
	}

	matched := make([]*models.Workflow, 0, len(candidates))
	for _, workflow := range candidates {
		if !m.organizationMatches(workflow, event) {
			m.logger.Debug("Workflow excluded by organization scope",
				zap.String("workflow_id", workflow.ID),
				zap.String("event_type", event.Type))
			continue
		}

		if !EvaluateConditions(workflow.Trigger.Conditions, event.Data) {
			m.logger.Debug("Workflow trigger conditions not met",
				zap.String("workflow_id", workflow.ID),
				zap.String("event_type", event.Type))
			continue
		}

		matched = append(matched, workflow)
	}

	m.logger.Info("Matched workflows for event",
		zap.String("event_type", event.Type),
		zap.Int("candidates", len(candidates)),
		zap.Int("matched", len(matched)))

	return matched, nil
}

// organizationMatches enforces hard organization isolation: a workflow bound
// to an organization never runs for an event from a different one. Workflows
// or events without an organization are unscoped.
func (m *Matcher) organizationMatches(workflow *models.Workflow, event *models.Event) bool {
	if workflow.OrganizationID == nil || event.OrganizationID == nil {
		return true
	}
	return *workflow.OrganizationID == *event.OrganizationID
}
