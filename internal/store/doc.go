// Package store persists alarm operations and backs the deduplication
// check of the ingestion engine. The sqlite implementation is the production
// store; the in-memory implementation serves tests and dry runs.
package store
