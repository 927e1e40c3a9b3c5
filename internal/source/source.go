package source

import (
	"context"

	"github.com/dispatchworks/alarmhub/internal/domain/operation"
)

// EmitFunc hands a freshly surfaced operation to the ingestion coordinator,
// together with free-form parameters describing the delivery (for example
// the archived input file path). Emit may block while the coordinator
// processes the record.
type EmitFunc func(op *operation.Operation, parameters map[string]string)

// Source is a pluggable alarm ingestion channel.
//
// The engine runs each enabled source on its own goroutine. Run must block
// until the context is canceled and return promptly afterwards; the listen
// or poll strategy is the source's own business.
type Source interface {
	// Initialize prepares the channel. A failing source is skipped with a
	// warning and never run.
	Initialize(ctx context.Context) error
	// Run is the long-lived receive loop. It emits zero or more operations
	// over its lifetime and returns once ctx is done.
	Run(ctx context.Context, emit EmitFunc) error
	// Dispose releases channel resources on shutdown.
	Dispose() error
}
