package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metric collectors for the dispatch service.
type Metrics struct {
	// HTTP
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge

	// Dispatch
	MessagesSentTotal   *prometheus.CounterVec
	MessagesQueuedTotal *prometheus.CounterVec
	SendDuration        prometheus.Histogram
	ClaimBatchSize      prometheus.Histogram
	RateLimitWaitSeconds prometheus.Histogram

	// Worker
	TasksProcessedTotal *prometheus.CounterVec
	TasksInFlight       prometheus.Gauge
	TaskDuration        *prometheus.HistogramVec
}

// NewMetrics creates and registers all Prometheus metrics with the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		// HTTP
		HTTPRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bulksend",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests.",
		}, []string{"method", "path", "status"}),
		HTTPRequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "bulksend",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "path"}),
		HTTPRequestsInFlight: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "bulksend",
			Subsystem: "http",
			Name:      "requests_in_flight",
			Help:      "Number of HTTP requests currently being processed.",
		}),

		// Dispatch
		MessagesSentTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bulksend",
			Subsystem: "dispatch",
			Name:      "messages_sent_total",
			Help:      "Total number of messages handed to the gateway, by outcome.",
		}, []string{"status"}),
		MessagesQueuedTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bulksend",
			Subsystem: "dispatch",
			Name:      "messages_queued_total",
			Help:      "Total number of messages offered onto the send queue, by source.",
		}, []string{"source"}),
		SendDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "bulksend",
			Subsystem: "dispatch",
			Name:      "send_duration_seconds",
			Help:      "Time to hand a message to the gateway and receive a result.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}),
		ClaimBatchSize: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "bulksend",
			Subsystem: "dispatch",
			Name:      "claim_batch_size",
			Help:      "Number of rows claimed by the scheduler per tick.",
			Buckets:   []float64{0, 1, 10, 50, 100, 250, 500, 1000},
		}),
		RateLimitWaitSeconds: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "bulksend",
			Subsystem: "dispatch",
			Name:      "rate_limit_wait_seconds",
			Help:      "Time a send spent waiting for a rate limiter token.",
			Buckets:   []float64{0, 0.01, 0.05, 0.1, 0.5, 1, 5},
		}),

		// Worker
		TasksProcessedTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bulksend",
			Subsystem: "worker",
			Name:      "tasks_processed_total",
			Help:      "Total number of asynq tasks processed.",
		}, []string{"task_type", "result"}),
		TasksInFlight: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "bulksend",
			Subsystem: "worker",
			Name:      "tasks_in_flight",
			Help:      "Number of asynq tasks currently being processed.",
		}),
		TaskDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "bulksend",
			Subsystem: "worker",
			Name:      "task_duration_seconds",
			Help:      "Task processing duration in seconds.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60},
		}, []string{"task_type"}),
	}
}
