package job

import (
	"context"

	"github.com/dispatchworks/alarmhub/internal/domain/operation"
)

// Phase identifies the pipeline point at which a job runs.
type Phase int

const (
	// PhaseOnOperationSurfaced runs before persistence; jobs may enrich
	// the operation and their mutations become part of the stored record.
	PhaseOnOperationSurfaced Phase = iota + 1
	// PhaseAfterOperationStored runs after persistence; the operation is
	// read-only and jobs distribute it.
	PhaseAfterOperationStored
)

// String returns the phase name used in logs.
func (p Phase) String() string {
	switch p {
	case PhaseOnOperationSurfaced:
		return "on_operation_surfaced"
	case PhaseAfterOperationStored:
		return "after_operation_stored"
	default:
		return "unknown"
	}
}

// Context carries per-ingestion information into a job execution.
type Context struct {
	// Phase is the currently active pipeline phase.
	Phase Phase
	// SourceName is the alias of the alarm source that produced the record.
	SourceName string
	// Parameters is an open bag for artifacts handed from the source or
	// between the coordinator and jobs, e.g. an archived file path.
	Parameters map[string]string
}

// NewContext creates a job context for one ingestion.
func NewContext(sourceName string, parameters map[string]string) *Context {
	if parameters == nil {
		parameters = make(map[string]string)
	}

	return &Context{
		SourceName: sourceName,
		Parameters: parameters,
	}
}

// Job is a pluggable unit of work bound to one or more pipeline phases.
//
// Execute must tolerate being called from the engine's worker pool when the
// job is asynchronous; jobs holding mutable state across calls synchronize
// themselves. Returned errors are logged by the engine and never abort the
// record.
type Job interface {
	// IsAsync reports whether Execute is dispatched to the worker pool
	// (fire and forget) instead of running inline.
	IsAsync() bool
	// Phases returns the pipeline phases the job participates in.
	Phases() []Phase
	// Initialize prepares the job for use. A failing job is skipped with a
	// warning and never executed.
	Initialize(ctx context.Context) error
	// Execute runs the job for one operation.
	Execute(ctx context.Context, jobCtx *Context, op *operation.Operation) error
	// Dispose releases job resources on shutdown.
	Dispose() error
}

// RunsIn reports whether a job participates in the given phase.
func RunsIn(j Job, phase Phase) bool {
	for _, p := range j.Phases() {
		if p == phase {
			return true
		}
	}

	return false
}
