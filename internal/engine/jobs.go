package engine

import (
	"context"
	"fmt"
	"sync"

	"github.com/dispatchworks/alarmhub/internal/domain/operation"
	"github.com/dispatchworks/alarmhub/internal/job"
	"github.com/dispatchworks/alarmhub/internal/logger"
	"github.com/dispatchworks/alarmhub/internal/metrics"
)

// managedJob pairs an initialized job with its registry alias for logging.
type managedJob struct {
	alias string
	job   job.Job
}

// JobManager runs the configured jobs for each pipeline phase.
//
// Enrichment jobs always run inline, in the order they were added, so their
// mutations are visible to later jobs and to persistence. After the
// operation is stored, jobs marked asynchronous are dispatched to a bounded
// worker pool and never joined per record.
type JobManager struct {
	jobs []managedJob

	// pool bounds concurrently running asynchronous executions.
	pool chan struct{}
	wg   sync.WaitGroup
}

// NewJobManager creates a manager with the given async worker bound.
func NewJobManager(asyncWorkers int) *JobManager {
	if asyncWorkers <= 0 {
		asyncWorkers = 1
	}

	return &JobManager{
		pool: make(chan struct{}, asyncWorkers),
	}
}

// Add appends an initialized job. Execution order follows add order.
func (m *JobManager) Add(alias string, j job.Job) {
	m.jobs = append(m.jobs, managedJob{alias: alias, job: j})
}

// ExecuteJobs runs every job participating in the phase against the
// operation. Job failures are logged and counted, never propagated.
func (m *JobManager) ExecuteJobs(ctx context.Context, jobCtx *job.Context, op *operation.Operation, phase job.Phase) {
	jobCtx.Phase = phase

	for _, managed := range m.jobs {
		if !job.RunsIn(managed.job, phase) {
			continue
		}

		if phase == job.PhaseAfterOperationStored && managed.job.IsAsync() {
			m.dispatch(ctx, managed, jobCtx, op)

			continue
		}

		m.runIsolated(ctx, managed, jobCtx, op)
	}
}

// dispatch hands an execution to the worker pool, fire and forget.
func (m *JobManager) dispatch(ctx context.Context, managed managedJob, jobCtx *job.Context, op *operation.Operation) {
	m.wg.Add(1)

	go func() {
		defer m.wg.Done()

		select {
		case m.pool <- struct{}{}:
			defer func() { <-m.pool }()
		case <-ctx.Done():
			return
		}

		m.runIsolated(ctx, managed, jobCtx, op)
	}()
}

// runIsolated is the no-throw boundary around one job execution: errors and
// panics are logged with the job's identity and counted, and never reach
// the caller.
func (m *JobManager) runIsolated(ctx context.Context, managed managedJob, jobCtx *job.Context, op *operation.Operation) {
	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("job panicked: %v", r)
			}
		}()

		return managed.job.Execute(ctx, jobCtx, op)
	}()

	if err != nil {
		metrics.JobFailures.WithLabelValues(managed.alias).Inc()
		logger.ErrorKV(ctx, "Job failed",
			"job", managed.alias,
			"phase", jobCtx.Phase.String(),
			"error", err,
		)
	}
}

// Dispose waits for in-flight asynchronous executions (bounded by the
// context) and disposes every job.
func (m *JobManager) Dispose(ctx context.Context) {
	done := make(chan struct{})

	go func() {
		defer close(done)

		m.wg.Wait()
	}()

	select {
	case <-done:
	case <-ctx.Done():
		logger.Warn(ctx, "Shutdown grace expired with asynchronous jobs still running")
	}

	for _, managed := range m.jobs {
		if err := managed.job.Dispose(); err != nil {
			logger.WarnKV(ctx, "Job dispose failed", "job", managed.alias, "error", err)
		}
	}
}
