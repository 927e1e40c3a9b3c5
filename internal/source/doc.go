// Package source defines the alarm source contract: long-running adapters
// that watch an external channel and emit normalized operations to the
// ingestion engine. Concrete adapters live in subpackages and register
// themselves in the source registry under their configuration alias.
package source
