package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(ledgerOpsTotal) }

var ledgerOpsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "ledger_operations_total",
		Help: "Ledger entries written by operation type.",
	},
	[]string{"operation"},
)

func IncLedgerOp(operation string) {
	ledgerOpsTotal.WithLabelValues(norm(operation)).Inc()
}
