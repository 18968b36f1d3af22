package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Registry struct {
	EventsProcessed   *prometheus.CounterVec
	WorkflowsMatched  *prometheus.HistogramVec
	ExecutionsTotal   *prometheus.CounterVec
	ActionDuration    *prometheus.HistogramVec
	ActionFailures    *prometheus.CounterVec
	HTTPRequestsTotal *prometheus.CounterVec
}

func NewRegistry() *Registry {
	return &Registry{
		EventsProcessed: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "automationservice_events_processed_total",
				Help: "Total number of events run through the automation engine",
			},
			[]string{"event_type"},
		),
		WorkflowsMatched: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "automationservice_workflows_matched",
				Help:    "Number of workflows matched per processed event",
				Buckets: []float64{0, 1, 2, 5, 10, 25, 50},
			},
			[]string{"event_type"},
		),
		ExecutionsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "automationservice_executions_total",
				Help: "Total number of workflow executions by terminal status",
			},
			[]string{"status"},
		),
		ActionDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "automationservice_action_duration_seconds",
				Help:    "Duration of action handler calls in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"action_type"},
		),
		ActionFailures: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "automationservice_action_failures_total",
				Help: "Total number of failed action results",
			},
			[]string{"action_type"},
		),
		HTTPRequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "automationservice_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "endpoint", "status"},
		),
	}
}
