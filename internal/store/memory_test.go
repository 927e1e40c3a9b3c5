package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dispatchworks/alarmhub/internal/domain/operation"
)

// TestMemoryStore_StoreAssignsIDs verifies sequential ID assignment and lookups.
func TestMemoryStore_StoreAssignsIDs(t *testing.T) {
	t.Parallel()

	s := NewMemoryStore()
	ctx := context.Background()

	first := operation.New()
	first.Number = "B1.0 123456"

	stored, err := s.Store(ctx, first)
	require.NoError(t, err)
	require.EqualValues(t, 1, stored.ID)
	require.Zero(t, first.ID, "input operation must not be mutated")

	second := operation.New()
	second.Number = "B1.0 654321"

	stored, err = s.Store(ctx, second)
	require.NoError(t, err)
	require.EqualValues(t, 2, stored.ID)

	got, err := s.Get(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, "B1.0 123456", got.Number)
}

// TestMemoryStore_ExistsAndDuplicates covers the dedup contract, ignoring case.
func TestMemoryStore_ExistsAndDuplicates(t *testing.T) {
	t.Parallel()

	s := NewMemoryStore()
	ctx := context.Background()

	op := operation.New()
	op.Number = "B1.0 123456"

	_, err := s.Store(ctx, op)
	require.NoError(t, err)

	exists, err := s.Exists(ctx, "B1.0 123456")
	require.NoError(t, err)
	require.True(t, exists)

	exists, err = s.Exists(ctx, "b1.0 123456")
	require.NoError(t, err)
	require.True(t, exists)

	exists, err = s.Exists(ctx, "other")
	require.NoError(t, err)
	require.False(t, exists)

	_, err = s.Store(ctx, op)
	require.ErrorIs(t, err, ErrDuplicateNumber)
}

// TestMemoryStore_AcknowledgeAndList verifies the operator-facing helpers.
func TestMemoryStore_AcknowledgeAndList(t *testing.T) {
	t.Parallel()

	s := NewMemoryStore()
	ctx := context.Background()

	for _, number := range []string{"1", "2", "3"} {
		op := operation.New()
		op.Number = number

		_, err := s.Store(ctx, op)
		require.NoError(t, err)
	}

	require.NoError(t, s.Acknowledge(ctx, 2))
	require.ErrorIs(t, s.Acknowledge(ctx, 99), ErrNotFound)

	got, err := s.Get(ctx, 2)
	require.NoError(t, err)
	require.True(t, got.Acknowledged)

	all, err := s.List(ctx, 2)
	require.NoError(t, err)
	require.Len(t, all, 2)
	require.Equal(t, "3", all[0].Number)
	require.Equal(t, "2", all[1].Number)

	_, err = s.Get(ctx, 99)
	require.ErrorIs(t, err, ErrNotFound)
}
