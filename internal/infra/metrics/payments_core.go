package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		paymentsTotal,
		paymentsRevenueTotal,
		reconcileFailuresTotal,
		duplicateNotificationsTotal,
	)
}

var (
	paymentsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payments_total",
			Help: "Payments by status (pending/succeeded/failed/refunded).",
		},
		[]string{"status"},
	)

	paymentsRevenueTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payments_revenue_total",
			Help: "Total minor-unit value of successful payments, labeled by currency.",
		},
		[]string{"currency"},
	)

	// Notifications the state machine could not reconcile: unknown
	// external_id, amount mismatch. Each one needs a human.
	reconcileFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_reconcile_failures_total",
			Help: "Provider notifications that could not be reconciled, by provider.",
		},
		[]string{"provider"},
	)

	duplicateNotificationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_duplicate_notifications_total",
			Help: "Redelivered notifications acknowledged as no-ops, by provider.",
		},
		[]string{"provider"},
	)
)

func IncPayment(status string) {
	paymentsTotal.WithLabelValues(norm(status)).Inc()
}

func AddPaymentRevenue(currency string, amount int64) {
	paymentsRevenueTotal.WithLabelValues(norm(currency)).Add(float64(amount))
}

func IncReconcileFailure(provider string) {
	reconcileFailuresTotal.WithLabelValues(norm(provider)).Inc()
}

func IncDuplicateNotification(provider string) {
	duplicateNotificationsTotal.WithLabelValues(norm(provider)).Inc()
}
