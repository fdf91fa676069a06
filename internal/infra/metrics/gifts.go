package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(giftsTotal)
}

var giftsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "gifts_total",
		Help: "Gifted subscriptions by lifecycle event.",
	},
	[]string{"event"},
)

func IncGift(event string) { giftsTotal.WithLabelValues(event).Inc() }
