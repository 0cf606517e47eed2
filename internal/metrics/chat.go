package metrics

import "github.com/prometheus/client_golang/prometheus"

// Delivery outcome label values.
const (
	DeliveryPushed       = "pushed"
	DeliveryQueued       = "queued"
	DeliveryDroppedBlank = "dropped_blank"
	DeliverySlowConsumer = "slow_consumer"
)

// Chat pipeline Prometheus metrics.
var (
	ClassificationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "taskpilot",
			Name:      "classifications_total",
			Help:      "Classifier outcomes by intent (\"error\" when unparseable)",
		},
		[]string{"intent"},
	)

	RetrievalDegradedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "taskpilot",
			Name:      "retrieval_degraded_total",
			Help:      "Retrievals answered without semantic ranking",
		},
		[]string{"reason"},
	)

	DeliveryTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "taskpilot",
			Name:      "delivery_total",
			Help:      "Published messages by delivery outcome",
		},
		[]string{"outcome"},
	)

	DeliveryDrainedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "taskpilot",
			Name:      "delivery_drained_total",
			Help:      "Messages handed out through polling",
		},
	)

	ActiveSubscriptions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "taskpilot",
			Name:      "active_subscriptions",
			Help:      "Currently open push subscriptions",
		},
	)
)

var chatMetricsRegistered bool

// RegisterChatMetrics registers Prometheus chat pipeline metrics. Must be called once from main.
func RegisterChatMetrics() {
	if chatMetricsRegistered {
		return
	}
	prometheus.MustRegister(ClassificationsTotal)
	prometheus.MustRegister(RetrievalDegradedTotal)
	prometheus.MustRegister(DeliveryTotal)
	prometheus.MustRegister(DeliveryDrainedTotal)
	prometheus.MustRegister(ActiveSubscriptions)
	chatMetricsRegistered = true
}
