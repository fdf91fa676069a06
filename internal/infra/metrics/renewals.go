package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(renewalAttemptsTotal) }

// status: initiated|skipped|error
var renewalAttemptsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "renewal_attempts_total",
		Help: "Auto-renewal sweep outcomes per subscription.",
	},
	[]string{"status"},
)

func IncRenewalAttempt(status string) {
	renewalAttemptsTotal.WithLabelValues(norm(status)).Inc()
}
