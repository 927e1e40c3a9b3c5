package filedrop

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dispatchworks/alarmhub/internal/config"
	"github.com/dispatchworks/alarmhub/internal/domain/operation"
)

type emitRecorder struct {
	mu     sync.Mutex
	ops    []*operation.Operation
	params []map[string]string
}

func (r *emitRecorder) emit(op *operation.Operation, parameters map[string]string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.ops = append(r.ops, op)
	r.params = append(r.params, parameters)
}

func (r *emitRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.ops)
}

// TestSource_ConsumesExistingAndNewFiles covers the startup scan, live
// arrival, archiving and the malformed-file drop policy.
func TestSource_ConsumesExistingAndNewFiles(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	dir := t.TempDir()

	// Already waiting before the source starts.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "pending.txt"), []byte("number: EX-1\n"), 0o600))

	src := New(config.FileDrop{Directory: dir})
	require.NoError(t, src.Initialize(ctx))

	recorder := new(emitRecorder)
	done := make(chan struct{})

	go func() {
		defer close(done)

		_ = src.Run(ctx, recorder.emit)
	}()

	require.Eventually(t, func() bool {
		return recorder.count() == 1
	}, 5*time.Second, 20*time.Millisecond)

	// Dropped while running.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "incoming.txt"), []byte("number: EX-2\n"), 0o600))

	require.Eventually(t, func() bool {
		return recorder.count() == 2
	}, 5*time.Second, 20*time.Millisecond)

	// Malformed files are archived but never emitted.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "garbage.txt"), []byte("no colon here\n"), 0o600))

	require.Eventually(t, func() bool {
		_, err := os.Stat(filepath.Join(dir, "archive", "garbage.txt"))

		return err == nil
	}, 5*time.Second, 20*time.Millisecond)
	require.Equal(t, 2, recorder.count())

	cancel()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("source did not stop after context cancellation")
	}

	require.NoError(t, src.Dispose())

	recorder.mu.Lock()
	defer recorder.mu.Unlock()

	require.Equal(t, "EX-1", recorder.ops[0].Number)
	require.Equal(t, "EX-2", recorder.ops[1].Number)

	for _, params := range recorder.params {
		archived := params[ParamArchivedFile]
		require.NotEmpty(t, archived)

		_, err := os.Stat(archived)
		require.NoError(t, err)
	}

	// The drop directory only keeps the archive subdirectory.
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, "archive", entries[0].Name())
}

func TestSource_InitializeRejectsMissingDirectory(t *testing.T) {
	t.Parallel()

	src := New(config.FileDrop{Directory: filepath.Join(t.TempDir(), "missing")})
	require.Error(t, src.Initialize(context.Background()))
}
