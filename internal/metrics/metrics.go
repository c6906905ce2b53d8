package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "synapse_http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "synapse_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	PipelineRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "synapse_pipeline_requests_total",
			Help: "Total number of messages processed by the pipeline.",
		},
		[]string{"status"},
	)

	PipelineDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "synapse_pipeline_duration_seconds",
			Help:    "Synchronous pipeline duration (message in to reply out).",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
	)

	GatewayCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "synapse_gateway_calls_total",
			Help: "Total number of language model gateway calls.",
		},
		[]string{"agent", "outcome"},
	)

	FailsafeOverridesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "synapse_failsafe_overrides_total",
			Help: "Evaluations overridden by the explicit-confusion fail-safe.",
		},
	)

	EvaluationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "synapse_evaluations_total",
			Help: "Total number of background interaction evaluations.",
		},
		[]string{"outcome"},
	)

	QueueDroppedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "synapse_queue_dropped_total",
			Help: "Background tasks dropped because the queue was full.",
		},
	)

	QueueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "synapse_queue_depth",
			Help: "Current number of queued background tasks.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDuration,
		PipelineRequestsTotal,
		PipelineDuration,
		GatewayCallsTotal,
		FailsafeOverridesTotal,
		EvaluationsTotal,
		QueueDroppedTotal,
		QueueDepth,
	)
}
