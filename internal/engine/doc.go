// Package engine contains the ingestion coordinator: it owns the alarm
// source lifecycle, suppresses duplicate deliveries by operation number and
// schedules the job pipeline around persistence.
package engine
