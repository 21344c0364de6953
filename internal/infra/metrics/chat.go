package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	register(
		chatTurnsTotal,
		upstreamLatency,
		quotaExhaustedTotal,
	)
}

var (
	chatTurnsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_turns_total",
			Help: "Chat turns by model and outcome (ok|upstream_error|rejected).",
		},
		[]string{"model", "outcome"},
	)

	upstreamLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "chat_upstream_latency_seconds",
			Help:    "Latency of upstream model calls.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"model"},
	)

	quotaExhaustedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "chat_quota_exhausted_total",
			Help: "Chat turns rejected at admission because the quota was exhausted.",
		},
	)
)

func IncChatTurn(model, outcome string) {
	chatTurnsTotal.WithLabelValues(model, outcome).Inc()
}

func ObserveUpstreamLatency(model string, d time.Duration) {
	upstreamLatency.WithLabelValues(model).Observe(d.Seconds())
}

func IncQuotaExhausted() { quotaExhaustedTotal.Inc() }
