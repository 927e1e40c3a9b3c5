package engine

import (
	"context"
	"sync"
	"time"

	"github.com/dispatchworks/alarmhub/internal/domain/operation"
	"github.com/dispatchworks/alarmhub/internal/job"
	"github.com/dispatchworks/alarmhub/internal/logger"
	"github.com/dispatchworks/alarmhub/internal/metrics"
	"github.com/dispatchworks/alarmhub/internal/source"
	"github.com/dispatchworks/alarmhub/internal/store"
)

// namedSource pairs a source with its registry alias for logging.
type namedSource struct {
	alias  string
	source source.Source
}

// Engine is the ingestion coordinator: it runs the alarm sources, guards
// the pipeline against duplicate deliveries and drives the two job phases
// around persistence.
type Engine struct {
	store store.Store
	jobs  *JobManager

	sources []namedSource

	// mu makes dedup check, enrichment and persist atomic per delivery, so
	// two concurrent deliveries of the same operation number cannot both
	// pass the Exists check.
	mu sync.Mutex
}

// New creates an engine over the given store and job manager.
func New(st store.Store, jobs *JobManager) *Engine {
	return &Engine{
		store: st,
		jobs:  jobs,
	}
}

// AddSource appends an initialized alarm source to run.
func (e *Engine) AddSource(alias string, src source.Source) {
	e.sources = append(e.sources, namedSource{alias: alias, source: src})
}

// Run starts every source on its own goroutine and blocks until the context
// is canceled. Shutdown waits up to grace for sources and asynchronous jobs
// to finish, then disposes them.
func (e *Engine) Run(ctx context.Context, grace time.Duration) error {
	var wg sync.WaitGroup

	for _, ns := range e.sources {
		ns := ns

		wg.Add(1)

		go func() {
			defer wg.Done()

			e.runSource(ctx, ns)
		}()
	}

	<-ctx.Done()

	logger.Info(ctx, "Shutting down, waiting for sources to stop")

	graceCtx, cancel := context.WithTimeout(context.Background(), grace)
	defer cancel()

	done := make(chan struct{})

	go func() {
		defer close(done)

		wg.Wait()
	}()

	select {
	case <-done:
	case <-graceCtx.Done():
		logger.Warn(ctx, "Shutdown grace expired with sources still running")
	}

	for _, ns := range e.sources {
		if err := ns.source.Dispose(); err != nil {
			logger.WarnKV(ctx, "Source dispose failed", "source", ns.alias, "error", err)
		}
	}

	e.jobs.Dispose(graceCtx)

	return nil
}

// runSource drives one source's receive loop. A failing source is logged
// and skipped; it never takes the engine down.
func (e *Engine) runSource(ctx context.Context, ns namedSource) {
	ctx = logger.WithKV(ctx, "source", ns.alias)

	if err := ns.source.Initialize(ctx); err != nil {
		logger.Warnf(ctx, "Skipping alarm source: initialization failed: %v", err)

		return
	}

	logger.Info(ctx, "Alarm source started")

	emit := func(op *operation.Operation, parameters map[string]string) {
		e.HandleAlarm(ctx, ns.alias, op, parameters)
	}

	if err := ns.source.Run(ctx, emit); err != nil {
		logger.Errorf(ctx, "Alarm source stopped with error: %v", err)
	}
}

// HandleAlarm runs the full ingestion pipeline for one delivered operation:
// dedup check, enrichment phase, persistence, then the distribution phase.
// Safe for concurrent use by multiple sources.
func (e *Engine) HandleAlarm(ctx context.Context, sourceName string, op *operation.Operation, parameters map[string]string) {
	ctx = logger.WithKV(ctx, "operation_number", op.Number, "operation_guid", op.GUID)

	jobCtx := job.NewContext(sourceName, parameters)

	stored, ok := e.surface(ctx, sourceName, jobCtx, op)
	if !ok {
		return
	}

	metrics.OperationsIngested.WithLabelValues(sourceName).Inc()
	logger.InfoKV(ctx, "Operation stored", "id", stored.ID)

	// Distribution jobs see the persisted record; async ones may still be
	// running after this call returns.
	e.jobs.ExecuteJobs(ctx, jobCtx, stored, job.PhaseAfterOperationStored)
}

// surface holds the engine lock across dedup check, enrichment and persist,
// and reports whether the operation made it into the store.
func (e *Engine) surface(ctx context.Context, sourceName string, jobCtx *job.Context, op *operation.Operation) (*operation.Operation, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	exists, err := e.store.Exists(ctx, op.Number)
	if err != nil {
		metrics.PersistFailures.Inc()
		logger.Errorf(ctx, "Dedup check failed, dropping operation: %v", err)

		return nil, false
	}

	if exists {
		metrics.DuplicatesSuppressed.WithLabelValues(sourceName).Inc()
		logger.Info(ctx, "Operation already stored, ignoring redelivery")

		return nil, false
	}

	if op.AlarmAt.IsZero() {
		op.AlarmAt = time.Now()

		logger.Warn(ctx, "Operation carries no alarm time, defaulting to now")
	}

	e.jobs.ExecuteJobs(ctx, jobCtx, op, job.PhaseOnOperationSurfaced)

	stored, err := e.store.Store(ctx, op)
	if err != nil {
		metrics.PersistFailures.Inc()
		logger.Errorf(ctx, "Failed to persist operation, dropping it: %v", err)

		return nil, false
	}

	return stored, true
}
