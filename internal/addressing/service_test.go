package addressing

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dispatchworks/alarmhub/internal/config"
	"github.com/dispatchworks/alarmhub/internal/domain/operation"
)

// staticFilter accepts or rejects every entry unconditionally.
type staticFilter bool

func (f staticFilter) Accept(_ *operation.Operation, _ Entry) bool {
	return bool(f)
}

func writeBook(t *testing.T, contents string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "address-book.yaml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))

	return path
}

func newTestService(t *testing.T, contents string, filters ...NamedFilter) *Service {
	t.Helper()

	s := NewService(
		config.Addressing{BookPath: writeBook(t, contents)},
		BuiltinProviders(),
		filters,
	)
	require.NoError(t, s.Reload(context.Background()))

	return s
}

// TestService_FilterChainANDSemantics proves a single rejecting filter
// excludes an entry even when every other filter accepts it.
func TestService_FilterChainANDSemantics(t *testing.T) {
	t.Parallel()

	contents := `
entries:
  - first_name: John
    items:
      - type: mail
        data: {address: john@example.com}
`

	op := operation.New()

	s := newTestService(t, contents,
		NamedFilter{Alias: "always", Filter: staticFilter(true)},
		NamedFilter{Alias: "never", Filter: staticFilter(false)},
	)
	require.Empty(t, CustomObjectsFiltered[MailAddress](s, TypeMail, op))

	s = newTestService(t, contents,
		NamedFilter{Alias: "always", Filter: staticFilter(true)},
	)

	mails := CustomObjectsFiltered[MailAddress](s, TypeMail, op)
	require.Len(t, mails, 1)
	require.Equal(t, "john@example.com", mails[0].Data.Address)
}

// TestService_NilOperationSkipsFiltering covers the unfiltered read path
// used by jobs that address the whole book.
func TestService_NilOperationSkipsFiltering(t *testing.T) {
	t.Parallel()

	s := newTestService(t, `
entries:
  - first_name: John
    items:
      - type: mail
        data: {address: john@example.com}
      - type: mail
        enabled: false
        data: {address: john.off@example.com}
`,
		NamedFilter{Alias: "never", Filter: staticFilter(false)},
	)

	// The rejecting filter is bypassed, but disabled items stay invisible.
	mails := CustomObjects[MailAddress](s, TypeMail)
	require.Len(t, mails, 1)
	require.Equal(t, "john@example.com", mails[0].Data.Address)

	require.Len(t, s.GetAllEntries(), 1)
}

// TestService_ReloadSwapsSnapshot verifies snapshots taken before a reload
// keep serving the old book version.
func TestService_ReloadSwapsSnapshot(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	path := writeBook(t, `
entries:
  - first_name: John
`)

	s := NewService(config.Addressing{BookPath: path}, BuiltinProviders(), nil)
	require.Empty(t, s.GetAllEntries())

	require.NoError(t, s.Reload(ctx))

	before := s.Snapshot()
	require.Len(t, before.Entries, 1)

	require.NoError(t, os.WriteFile(path, []byte(`
entries:
  - first_name: John
  - first_name: Jane
`), 0o600))
	require.NoError(t, s.Reload(ctx))

	require.Len(t, before.Entries, 1)
	require.Len(t, s.Snapshot().Entries, 2)
}

// TestService_ReloadFailureKeepsPrevious leaves the active book untouched
// when the file disappears.
func TestService_ReloadFailureKeepsPrevious(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	path := writeBook(t, `
entries:
  - first_name: John
`)

	s := NewService(config.Addressing{BookPath: path}, BuiltinProviders(), nil)
	require.NoError(t, s.Reload(ctx))

	require.NoError(t, os.Remove(path))
	require.Error(t, s.Reload(ctx))
	require.Len(t, s.GetAllEntries(), 1)
}

// TestService_WatchReloadsOnChange exercises the file watcher end to end.
func TestService_WatchReloadsOnChange(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	path := writeBook(t, `
entries:
  - first_name: John
`)

	s := NewService(config.Addressing{BookPath: path}, BuiltinProviders(), nil)
	require.NoError(t, s.Reload(ctx))

	done := make(chan struct{})

	go func() {
		defer close(done)

		_ = s.Watch(ctx, 10*time.Millisecond)
	}()

	require.NoError(t, os.WriteFile(path, []byte(`
entries:
  - first_name: John
  - first_name: Jane
`), 0o600))

	require.Eventually(t, func() bool {
		return len(s.GetAllEntries()) == 2
	}, 5*time.Second, 20*time.Millisecond)

	cancel()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not stop after context cancellation")
	}
}
