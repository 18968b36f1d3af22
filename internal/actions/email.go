package actions

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// EmailQueue is the redis list the mailer worker drains
const EmailQueue = "pyairtable:email:queue"

// EmailAction enqueues an email job for the mailer worker
type EmailAction struct {
	redis  *redis.Client
	logger *zap.Logger
}

// NewEmailAction creates the send_email action handler
func NewEmailAction(redis *redis.Client, logger *zap.Logger) *EmailAction {
	return &EmailAction{
		redis:  redis,
		logger: logger,
	}
}

func (a *EmailAction) Type() string {
	return "send_email"
}

// Execute pushes an email job onto the queue and returns its id
func (a *EmailAction) Execute(ctx context.Context, parameters map[string]interface{}, execContext map[string]interface{}) (map[string]interface{}, error) {
	to, ok := parameters["to"].(string)
	if !ok || to == "" {
		return nil, fmt.Errorf("send_email requires a to parameter")
	}

	subject, _ := parameters["subject"].(string)
	body, _ := parameters["body"].(string)
	template, _ := parameters["template"].(string)

	job := map[string]interface{}{
		"id":        uuid.NewString(),
		"to":        to,
		"subject":   subject,
		"body":      body,
		"template":  template,
		"source":    "automation",
		"queued_at": time.Now().UTC().Format(time.RFC3339),
	}

	payload, err := json.Marshal(job)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal email job: %w", err)
	}

	if err := a.redis.LPush(ctx, EmailQueue, payload).Err(); err != nil {
		return nil, fmt.Errorf("failed to enqueue email: %w", err)
	}

	a.logger.Debug("Email job enqueued",
		zap.String("to", to),
		zap.String("job_id", job["id"].(string)))

	return map[string]interface{}{
		"email_id": job["id"],
		"to":       to,
		"queued":   true,
	}, nil
}
