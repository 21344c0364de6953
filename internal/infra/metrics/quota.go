package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(redemptionsTotal)
}

var redemptionsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "quota_redemptions_total",
		Help: "Redeem attempts by outcome (ok|empty|unknown|used|already_unlimited).",
	},
	[]string{"outcome"},
)

func IncRedemption(outcome string) {
	redemptionsTotal.WithLabelValues(outcome).Inc()
}
