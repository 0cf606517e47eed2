package metrics

import "github.com/prometheus/client_golang/prometheus"

// Capability label values.
const (
	CapabilityCompletion = "completion"
	CapabilityEmbedding  = "embedding"
)

// Model provider Prometheus metrics.
var (
	ModelRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "taskpilot",
			Name:      "model_requests_total",
			Help:      "Total number of model provider requests",
		},
		[]string{"capability", "model", "status"},
	)

	ModelRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "taskpilot",
			Name:      "model_request_duration_seconds",
			Help:      "Model provider request duration in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"capability", "model"},
	)

	ModelTokensTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "taskpilot",
			Name:      "model_tokens_total",
			Help:      "Total model tokens consumed",
		},
		[]string{"capability", "model", "type"},
	)

	ModelErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "taskpilot",
			Name:      "model_errors_total",
			Help:      "Total model provider errors",
		},
		[]string{"capability", "model", "error_type"},
	)

	EmbeddingCacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "taskpilot",
			Name:      "embedding_cache_total",
			Help:      "Embedding cache hits and misses",
		},
		[]string{"layer", "result"}, // layer: "memory" / "redis", result: "hit" / "miss"
	)
)

var modelMetricsRegistered bool

// RegisterModelMetrics registers Prometheus model provider metrics. Must be called once from main.
func RegisterModelMetrics() {
	if modelMetricsRegistered {
		return
	}
	prometheus.MustRegister(ModelRequestsTotal)
	prometheus.MustRegister(ModelRequestDuration)
	prometheus.MustRegister(ModelTokensTotal)
	prometheus.MustRegister(ModelErrorsTotal)
	prometheus.MustRegister(EmbeddingCacheTotal)
	modelMetricsRegistered = true
}
