package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dispatchworks/alarmhub/internal/domain/operation"
)

// newTestSQLiteStore opens a store backed by a file in a temp directory.
func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()

	s, err := NewSQLiteStore(context.Background(), filepath.Join(t.TempDir(), "operations.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	return s
}

// TestSQLiteStore_RoundTrip stores a fully populated operation and reads it back.
func TestSQLiteStore_RoundTrip(t *testing.T) {
	t.Parallel()

	s := newTestSQLiteStore(t)
	ctx := context.Background()

	lat, lon := 49.013, 12.101

	op := operation.New()
	op.Number = "B1.0 123456"
	op.AlarmAt = time.Date(2026, 8, 30, 12, 30, 0, 0, time.UTC)
	op.Messenger = "Leitstelle"
	op.Comment = "Zimmerbrand"
	op.Keywords = operation.Keywords{Keyword: "B2", B: "2"}
	op.Einsatzort = operation.Location{
		Street:      "Hauptstraße",
		HouseNumber: "12",
		City:        "Regensburg",
		Latitude:    &lat,
		Longitude:   &lon,
	}
	op.Loops.Add("123")
	op.Loops.Add("456")
	op.Resources = []string{"40.1", "40.2"}
	op.SetCustomValue("archived_file", "/var/spool/fax.txt")

	stored, err := s.Store(ctx, op)
	require.NoError(t, err)
	require.Positive(t, stored.ID)

	got, err := s.Get(ctx, stored.ID)
	require.NoError(t, err)
	require.Equal(t, op.GUID, got.GUID)
	require.Equal(t, op.Number, got.Number)
	require.True(t, op.AlarmAt.Equal(got.AlarmAt))
	require.Equal(t, op.Keywords, got.Keywords)
	require.Equal(t, op.Einsatzort, got.Einsatzort)
	require.Equal(t, operation.LoopList{"123", "456"}, got.Loops)
	require.Equal(t, op.Resources, got.Resources)

	v, ok := got.CustomValue("archived_file")
	require.True(t, ok)
	require.Equal(t, "/var/spool/fax.txt", v)
}

// TestSQLiteStore_DedupByNumber verifies Exists and the unique index, ignoring case.
func TestSQLiteStore_DedupByNumber(t *testing.T) {
	t.Parallel()

	s := newTestSQLiteStore(t)
	ctx := context.Background()

	op := operation.New()
	op.Number = "X"

	_, err := s.Store(ctx, op)
	require.NoError(t, err)

	exists, err := s.Exists(ctx, "x")
	require.NoError(t, err)
	require.True(t, exists)

	dup := operation.New()
	dup.Number = "x"

	_, err = s.Store(ctx, dup)
	require.ErrorIs(t, err, ErrDuplicateNumber)

	exists, err = s.Exists(ctx, "")
	require.NoError(t, err)
	require.False(t, exists)
}

// TestSQLiteStore_AcknowledgeAndList verifies updates and recency ordering.
func TestSQLiteStore_AcknowledgeAndList(t *testing.T) {
	t.Parallel()

	s := newTestSQLiteStore(t)
	ctx := context.Background()

	var lastID int64

	for _, number := range []string{"1", "2", "3"} {
		op := operation.New()
		op.Number = number

		stored, err := s.Store(ctx, op)
		require.NoError(t, err)

		lastID = stored.ID
	}

	require.NoError(t, s.Acknowledge(ctx, lastID))
	require.ErrorIs(t, s.Acknowledge(ctx, lastID+100), ErrNotFound)

	all, err := s.List(ctx, 10)
	require.NoError(t, err)
	require.Len(t, all, 3)
	require.Equal(t, "3", all[0].Number)
	require.True(t, all[0].Acknowledged)

	_, err = s.Get(ctx, lastID+100)
	require.ErrorIs(t, err, ErrNotFound)
}
