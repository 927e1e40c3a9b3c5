// Package job defines the contract between the ingestion engine and the
// pluggable notification/automation jobs. Concrete jobs live in the
// subpackages and register themselves with the job registry at startup.
package job
