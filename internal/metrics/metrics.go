package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// ParseMetrics holds the Prometheus collectors for normalization results.
type ParseMetrics struct {
	EntriesTotal  *prometheus.CounterVec
	LevelsTotal   *prometheus.CounterVec
	UnparsedTotal prometheus.Counter
	DroppedTotal  prometheus.Counter
}

// NewParseMetrics creates the collectors and registers them with reg.
func NewParseMetrics(reg prometheus.Registerer) *ParseMetrics {
	m := &ParseMetrics{
		EntriesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lognorm",
			Subsystem: "parser",
			Name:      "entries_total",
			Help:      "Total number of recognized log records by source format.",
		}, []string{"format"}),
		LevelsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lognorm",
			Subsystem: "parser",
			Name:      "levels_total",
			Help:      "Total number of recognized log records by normalized level.",
		}, []string{"level"}),
		UnparsedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "lognorm",
			Subsystem: "parser",
			Name:      "unparsed_total",
			Help:      "Total number of lines no format recognized.",
		}),
		DroppedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "lognorm",
			Subsystem: "hub",
			Name:      "dropped_total",
			Help:      "Total number of entries dropped for slow subscribers.",
		}),
	}
	reg.MustRegister(m.EntriesTotal, m.LevelsTotal, m.UnparsedTotal, m.DroppedTotal)
	return m
}
