// Package metrics defines the Prometheus instrumentation of the ingestion
// pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// OperationsIngested counts operations that passed the dedup check and
	// entered the pipeline, per source alias.
	OperationsIngested = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "alarmhub_operations_ingested_total",
		Help: "Operations accepted into the pipeline.",
	}, []string{"source"})

	// DuplicatesSuppressed counts redelivered operations stopped by the
	// dedup check, per source alias.
	DuplicatesSuppressed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "alarmhub_duplicates_suppressed_total",
		Help: "Operations dropped because their number was already stored.",
	}, []string{"source"})

	// PersistFailures counts operations lost because the store rejected them.
	PersistFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "alarmhub_persist_failures_total",
		Help: "Operations dropped because persistence failed.",
	})

	// JobFailures counts failed or panicked job executions, per job alias.
	JobFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "alarmhub_job_failures_total",
		Help: "Job executions that returned an error or panicked.",
	}, []string{"job"})
)
