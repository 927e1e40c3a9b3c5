package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dispatchworks/alarmhub/internal/domain/operation"
	"github.com/dispatchworks/alarmhub/internal/job"
	"github.com/dispatchworks/alarmhub/internal/source"
	"github.com/dispatchworks/alarmhub/internal/store"
)

// recordingJob counts executions and optionally mutates or fails.
type recordingJob struct {
	async   bool
	phases  []job.Phase
	execute func(op *operation.Operation) error

	mu       sync.Mutex
	runs     []*operation.Operation
	disposed bool
}

func (j *recordingJob) IsAsync() bool { return j.async }

func (j *recordingJob) Phases() []job.Phase { return j.phases }

func (j *recordingJob) Initialize(context.Context) error { return nil }

func (j *recordingJob) Execute(_ context.Context, _ *job.Context, op *operation.Operation) error {
	j.mu.Lock()
	j.runs = append(j.runs, op)
	j.mu.Unlock()

	if j.execute != nil {
		return j.execute(op)
	}

	return nil
}

func (j *recordingJob) Dispose() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.disposed = true

	return nil
}

func (j *recordingJob) runCount() int {
	j.mu.Lock()
	defer j.mu.Unlock()

	return len(j.runs)
}

func newAlarm(number string) *operation.Operation {
	op := operation.New()
	op.Number = number
	op.AlarmAt = time.Now()

	return op
}

func TestEngine_IdempotentIngestion(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	st := store.NewMemoryStore()

	enrichment := &recordingJob{phases: []job.Phase{job.PhaseOnOperationSurfaced}}
	distribution := &recordingJob{phases: []job.Phase{job.PhaseAfterOperationStored}}

	jobs := NewJobManager(1)
	jobs.Add("enrichment", enrichment)
	jobs.Add("distribution", distribution)

	eng := New(st, jobs)

	eng.HandleAlarm(ctx, "test", newAlarm("B1.0 123456"), nil)
	eng.HandleAlarm(ctx, "test", newAlarm("B1.0 123456"), nil)

	require.Equal(t, 1, enrichment.runCount())
	require.Equal(t, 1, distribution.runCount())

	ops, err := st.List(ctx, 10)
	require.NoError(t, err)
	require.Len(t, ops, 1)
}

func TestEngine_ConcurrentSameNumber(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	st := store.NewMemoryStore()

	distribution := &recordingJob{phases: []job.Phase{job.PhaseAfterOperationStored}}

	jobs := NewJobManager(1)
	jobs.Add("distribution", distribution)

	eng := New(st, jobs)

	var wg sync.WaitGroup

	for i := 0; i < 16; i++ {
		wg.Add(1)

		go func() {
			defer wg.Done()

			eng.HandleAlarm(ctx, "test", newAlarm("B1.0 123456"), nil)
		}()
	}

	wg.Wait()

	require.Equal(t, 1, distribution.runCount())

	ops, err := st.List(ctx, 100)
	require.NoError(t, err)
	require.Len(t, ops, 1)
}

// TestEngine_PhaseOrdering proves enrichment mutations reach later
// enrichment jobs, the store and the distribution phase.
func TestEngine_PhaseOrdering(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	st := store.NewMemoryStore()

	first := &recordingJob{
		phases: []job.Phase{job.PhaseOnOperationSurfaced},
		execute: func(op *operation.Operation) error {
			op.Comment = "enriched"

			return nil
		},
	}

	var secondSaw string

	second := &recordingJob{
		phases: []job.Phase{job.PhaseOnOperationSurfaced},
		execute: func(op *operation.Operation) error {
			secondSaw = op.Comment

			return nil
		},
	}

	var distributionSaw *operation.Operation

	distribution := &recordingJob{
		phases: []job.Phase{job.PhaseAfterOperationStored},
		execute: func(op *operation.Operation) error {
			distributionSaw = op

			return nil
		},
	}

	jobs := NewJobManager(1)
	jobs.Add("first", first)
	jobs.Add("second", second)
	jobs.Add("distribution", distribution)

	New(st, jobs).HandleAlarm(ctx, "test", newAlarm("EX-1"), nil)

	require.Equal(t, "enriched", secondSaw)

	require.NotNil(t, distributionSaw)
	require.Equal(t, "enriched", distributionSaw.Comment)
	require.NotZero(t, distributionSaw.ID)

	ops, err := st.List(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, "enriched", ops[0].Comment)
}

// TestEngine_FaultIsolation proves a panicking job neither aborts the
// record nor the jobs after it.
func TestEngine_FaultIsolation(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	st := store.NewMemoryStore()

	panicking := &recordingJob{
		phases: []job.Phase{job.PhaseAfterOperationStored},
		execute: func(*operation.Operation) error {
			panic("boom")
		},
	}
	failing := &recordingJob{
		phases: []job.Phase{job.PhaseAfterOperationStored},
		execute: func(*operation.Operation) error {
			return errors.New("gateway unavailable")
		},
	}
	healthy := &recordingJob{phases: []job.Phase{job.PhaseAfterOperationStored}}

	jobs := NewJobManager(1)
	jobs.Add("panicking", panicking)
	jobs.Add("failing", failing)
	jobs.Add("healthy", healthy)

	New(st, jobs).HandleAlarm(ctx, "test", newAlarm("EX-1"), nil)

	require.Equal(t, 1, healthy.runCount())

	ops, err := st.List(ctx, 1)
	require.NoError(t, err)
	require.Len(t, ops, 1)
}

// failingStore rejects every Store call.
type innerStore = store.Store

type failingStore struct {
	innerStore
}

func (failingStore) Store(context.Context, *operation.Operation) (*operation.Operation, error) {
	return nil, errors.New("disk full")
}

func TestEngine_PersistFailureSkipsDistribution(t *testing.T) {
	t.Parallel()

	enrichment := &recordingJob{phases: []job.Phase{job.PhaseOnOperationSurfaced}}
	distribution := &recordingJob{phases: []job.Phase{job.PhaseAfterOperationStored}}

	jobs := NewJobManager(1)
	jobs.Add("enrichment", enrichment)
	jobs.Add("distribution", distribution)

	eng := New(failingStore{innerStore: store.NewMemoryStore()}, jobs)
	eng.HandleAlarm(context.Background(), "test", newAlarm("EX-1"), nil)

	require.Equal(t, 1, enrichment.runCount())
	require.Zero(t, distribution.runCount())
}

func TestEngine_AsyncJobRunsOffThePipeline(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	async := &recordingJob{async: true, phases: []job.Phase{job.PhaseAfterOperationStored}}

	jobs := NewJobManager(2)
	jobs.Add("async", async)

	New(store.NewMemoryStore(), jobs).HandleAlarm(ctx, "test", newAlarm("EX-1"), nil)

	require.Eventually(t, func() bool {
		return async.runCount() == 1
	}, 5*time.Second, 10*time.Millisecond)

	disposeCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()

	jobs.Dispose(disposeCtx)
	require.True(t, async.disposed)
}

func TestEngine_DefaultsMissingAlarmTime(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	st := store.NewMemoryStore()

	op := operation.New()
	op.Number = "EX-1"
	require.True(t, op.AlarmAt.IsZero())

	New(st, NewJobManager(1)).HandleAlarm(ctx, "test", op, nil)

	ops, err := st.List(ctx, 1)
	require.NoError(t, err)
	require.False(t, ops[0].AlarmAt.IsZero())
}

// scriptedSource emits fixed operations and blocks until canceled.
type scriptedSource struct {
	ops []*operation.Operation

	initErr  error
	mu       sync.Mutex
	disposed bool
}

func (s *scriptedSource) Initialize(context.Context) error { return s.initErr }

func (s *scriptedSource) Run(ctx context.Context, emit source.EmitFunc) error {
	for _, op := range s.ops {
		emit(op, map[string]string{"origin": "scripted"})
	}

	<-ctx.Done()

	return nil
}

func (s *scriptedSource) Dispose() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.disposed = true

	return nil
}

// TestEngine_RunSourceLifecycle runs the engine end to end with a scripted
// source and a source that fails to initialize.
func TestEngine_RunSourceLifecycle(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	st := store.NewMemoryStore()
	distribution := &recordingJob{phases: []job.Phase{job.PhaseAfterOperationStored}}

	jobs := NewJobManager(1)
	jobs.Add("distribution", distribution)

	good := &scriptedSource{ops: []*operation.Operation{newAlarm("EX-1"), newAlarm("EX-2")}}
	broken := &scriptedSource{initErr: errors.New("no such directory")}

	eng := New(st, jobs)
	eng.AddSource("good", good)
	eng.AddSource("broken", broken)

	done := make(chan error, 1)

	go func() {
		done <- eng.Run(ctx, time.Second)
	}()

	require.Eventually(t, func() bool {
		return distribution.runCount() == 2
	}, 5*time.Second, 10*time.Millisecond)

	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("engine did not stop after context cancellation")
	}

	good.mu.Lock()
	require.True(t, good.disposed)
	good.mu.Unlock()

	require.True(t, distribution.disposed)
}
