// Package services – Prometheus instrumentation for the sync engine.
//
// Label cardinality stays bounded: "service" is a closed five-value set and
// "kind" is the fixed error taxonomy (auth, network, rate_limited, error).
package services

import "github.com/prometheus/client_golang/prometheus"

var (
	// syncCyclesTotal counts started sync cycles.
	syncCyclesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sync_cycles_total",
		Help: "Total number of sync cycles started.",
	})

	// recordsMergedTotal counts records created or enriched by the merge engine.
	recordsMergedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sync_records_merged_total",
		Help: "Total number of contact records created or enriched by merges.",
	})

	// syncErrorsTotal counts contained per-service failures by error kind.
	syncErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sync_service_errors_total",
		Help: "Total number of contained per-service sync failures.",
	}, []string{"service", "kind"})

	// reconcileRemovedTotal counts duplicate records absorbed by reconciliation.
	reconcileRemovedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "reconcile_records_removed_total",
		Help: "Total number of duplicate records removed by reconciliation.",
	})
)

func init() {
	prometheus.MustRegister(syncCyclesTotal, recordsMergedTotal, syncErrorsTotal, reconcileRemovedTotal)
}
