// Package metrics exposes prometheus collectors for the gate.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// AdmissionDecisions counts admission outcomes by action and reason.
	AdmissionDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "searchgate",
			Name:      "admission_decisions_total",
			Help:      "Admission decisions by action kind and outcome.",
		},
		[]string{"action", "outcome"},
	)

	// ActiveSessions tracks the number of live search sessions.
	ActiveSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "searchgate",
			Name:      "active_sessions",
			Help:      "Live search sessions held in memory.",
		},
	)

	// StorageFailures counts durable-store errors by operation.
	StorageFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "searchgate",
			Name:      "storage_failures_total",
			Help:      "Durable store failures by operation.",
		},
		[]string{"op"},
	)

	// FlaggedSearches counts searches whose content tripped the filter.
	FlaggedSearches = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "searchgate",
			Name:      "flagged_searches_total",
			Help:      "Searches whose keyword tripped the content filter.",
		},
	)
)
