package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(rateLimitedTotal, sessionsMintedTotal)
}

var (
	rateLimitedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "web_rate_limited_total",
			Help: "Requests rejected by the per-session rate limiter, per command.",
		},
		[]string{"command"},
	)

	sessionsMintedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "web_sessions_minted_total",
			Help: "Fresh session identities minted on first contact.",
		},
	)
)

func IncRateLimited(command string) { rateLimitedTotal.WithLabelValues(command).Inc() }
func IncSessionMinted()             { sessionsMintedTotal.Inc() }
