package repositories

import (
	"github.com/Reg-Kris/pyairtable-automation-service/internal/automation"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Repositories bundles the persistent store implementations the engine and
// HTTP surface run against
type Repositories struct {
	Workflow  automation.WorkflowStore
	Execution automation.ExecutionStore

	db    *gorm.DB
	redis *redis.Client
}

func New(db *gorm.DB, redis *redis.Client) *Repositories {
	return &Repositories{
		db:        db,
		redis:     redis,
		Workflow:  NewWorkflowRepository(db, redis),
		Execution: NewExecutionRepository(db),
	}
}
