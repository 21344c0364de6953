package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		recordLoadsTotal,
		recordSavesTotal,
		recordRepairsTotal,
	)
}

var (
	recordLoadsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "record_loads_total",
			Help: "Session record loads by outcome (ok|fresh|repaired|error).",
		},
		[]string{"outcome"},
	)

	recordSavesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "record_saves_total",
			Help: "Session record writes by outcome (ok|error).",
		},
		[]string{"outcome"},
	)

	recordRepairsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "record_repairs_total",
			Help: "Individual repair coercions by rule (quota|model|credential|conversations|active_pointer).",
		},
		[]string{"rule"},
	)
)

func IncRecordLoad(outcome string) { recordLoadsTotal.WithLabelValues(outcome).Inc() }
func IncRecordSave(outcome string) { recordSavesTotal.WithLabelValues(outcome).Inc() }
func IncRepair(rule string)        { recordRepairsTotal.WithLabelValues(rule).Inc() }
