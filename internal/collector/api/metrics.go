package api

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ingestEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "logsentry_ingest_events_total",
			Help: "Total number of events received",
		},
		[]string{"status"}, // status: accepted, failed
	)
)
