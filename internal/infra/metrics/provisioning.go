package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		syncPushTotal,
		outboxPendingGauge,
		panelRequestDuration,
	)
}

var (
	// result: ok|error
	syncPushTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "provisioning_sync_push_total",
			Help: "Entitlement pushes to the panel by result.",
		},
		[]string{"result"},
	)

	outboxPendingGauge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "provisioning_outbox_pending",
			Help: "Number of pending sync tasks in the outbox.",
		},
	)

	panelRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "provisioning_request_duration_seconds",
			Help:    "Duration of panel API calls in seconds.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		},
		[]string{"op", "success"},
	)
)

func IncSyncPush(result string) {
	syncPushTotal.WithLabelValues(norm(result)).Inc()
}

func SetOutboxPending(n int) {
	outboxPendingGauge.Set(float64(n))
}

func ObservePanelRequest(op string, seconds float64, success bool) {
	s := "false"
	if success {
		s = "true"
	}
	panelRequestDuration.WithLabelValues(norm(op), s).Observe(seconds)
}
