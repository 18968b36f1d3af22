package actions

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const maxResponseBytes = 10000

// WebhookAction posts the execution context to an external endpoint given in
// the action parameters. Each target URL gets its own circuit breaker and
// rate limiter so one flapping endpoint cannot starve the others.
type WebhookAction struct {
	httpClient      *http.Client
	circuitBreakers sync.Map // map[string]*gobreaker.CircuitBreaker
	rateLimiters    sync.Map // map[string]*rate.Limiter
	logger          *zap.Logger
}

// NewWebhookAction creates the call_webhook action handler
func NewWebhookAction(logger *zap.Logger) *WebhookAction {
	return &WebhookAction{
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		logger: logger,
	}
}

func (a *WebhookAction) Type() string {
	return "call_webhook"
}

// Execute posts the execution context as JSON to parameters.url and returns
// the response status and truncated body
func (a *WebhookAction) Execute(ctx context.Context, parameters map[string]interface{}, execContext map[string]interface{}) (map[string]interface{}, error) {
	url, ok := parameters["url"].(string)
	if !ok || url == "" {
		return nil, fmt.Errorf("call_webhook requires a url parameter")
	}

	limiter := a.getRateLimiter(url, parameters)
	if !limiter.Allow() {
		return nil, fmt.Errorf("rate limit exceeded for %s", url)
	}

	payload, err := json.Marshal(execContext)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal execution context: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	if headers, ok := parameters["headers"].(map[string]interface{}); ok {
		for key, value := range headers {
			if str, ok := value.(string); ok {
				req.Header.Set(key, str)
			}
		}
	}

	cb := a.getCircuitBreaker(url)
	start := time.Now()

	res, err := cb.Execute(func() (interface{}, error) {
		resp, err := a.httpClient.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		body, readErr := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
		if readErr != nil {
			a.logger.Warn("Failed to read webhook response body", zap.Error(readErr))
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, http.StatusText(resp.StatusCode))
		}

		return map[string]interface{}{
			"status_code": resp.StatusCode,
			"response":    string(body),
		}, nil
	})

	duration := time.Since(start)
	if err != nil {
		a.logger.Warn("Webhook call failed",
			zap.String("url", url),
			zap.Duration("duration", duration),
			zap.Error(err))
		return nil, fmt.Errorf("webhook call to %s failed: %w", url, err)
	}

	result := res.(map[string]interface{})
	result["duration_ms"] = duration.Milliseconds()

	a.logger.Debug("Webhook call succeeded",
		zap.String("url", url),
		zap.Duration("duration", duration))

	return result, nil
}

// getCircuitBreaker gets or creates a circuit breaker for a target URL
func (a *WebhookAction) getCircuitBreaker(url string) *gobreaker.CircuitBreaker {
	if cb, ok := a.circuitBreakers.Load(url); ok {
		return cb.(*gobreaker.CircuitBreaker)
	}

	settings := gobreaker.Settings{
		Name:        fmt.Sprintf("webhook-%s", url),
		MaxRequests: 3,
		Interval:    60 * time.Second,
		Timeout:     60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 5 && failureRatio >= 0.6
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			a.logger.Info("Circuit breaker state change",
				zap.String("name", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	}

	cb := gobreaker.NewCircuitBreaker(settings)
	a.circuitBreakers.Store(url, cb)

	return cb
}

// getRateLimiter gets or creates a rate limiter for a target URL
func (a *WebhookAction) getRateLimiter(url string, parameters map[string]interface{}) *rate.Limiter {
	if limiter, ok := a.rateLimiters.Load(url); ok {
		return limiter.(*rate.Limiter)
	}

	rps := 10
	if v, ok := parameters["rate_limit_rps"].(float64); ok && v > 0 {
		rps = int(v)
	}

	limiter := rate.NewLimiter(rate.Limit(rps), rps*2)
	a.rateLimiters.Store(url, limiter)

	return limiter
}
