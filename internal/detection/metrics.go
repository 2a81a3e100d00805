package detection

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	cyclesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "logsentry_detection_cycles_total",
			Help: "Total number of completed detection cycles",
		},
	)

	cycleDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "logsentry_detection_cycle_duration_seconds",
			Help:    "Wall time of one detection cycle across all rules",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
	)

	ruleFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "logsentry_detection_rule_failures_total",
			Help: "Total number of failed per-rule evaluations",
		},
		[]string{"rule"},
	)

	draftsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "logsentry_detection_drafts_total",
			Help: "Total number of alert drafts produced by rule evaluation",
		},
		[]string{"rule"},
	)

	suppressedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "logsentry_detection_suppressed_total",
			Help: "Total number of drafts suppressed by the dedup gate",
		},
		[]string{"rule"},
	)

	alertsEmittedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "logsentry_detection_alerts_emitted_total",
			Help: "Total number of alerts written to the alert store",
		},
		[]string{"rule"},
	)
)
