package addressing

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dispatchworks/alarmhub/internal/domain/operation"
	"github.com/dispatchworks/alarmhub/internal/registry"
)

// TestByLoopFilter runs the canonical loop subscription scenario.
func TestByLoopFilter(t *testing.T) {
	t.Parallel()

	var filter ByLoopFilter

	op := operation.New()
	op.Number = "B1.0 123456"
	op.Loops.Add("123")

	entry := Entry{
		FirstName: "John",
		LastName:  "Doe",
		Data: []EntryDataItem{
			{Identifier: TypeLoop, IsEnabled: true, Data: Loop{Code: "123"}},
		},
	}

	require.True(t, filter.Accept(op, entry))

	// Disabled subscription no longer matches.
	entry.Data[0].IsEnabled = false
	require.False(t, filter.Accept(op, entry))

	// A different loop does not match either.
	entry.Data[0] = EntryDataItem{Identifier: TypeLoop, IsEnabled: true, Data: Loop{Code: "456"}}
	require.False(t, filter.Accept(op, entry))

	// Entries without loop items are rejected outright.
	entry.Data = nil
	require.False(t, filter.Accept(op, entry))
}

// TestByKeywordFilter matches keyword subscriptions case-insensitively
// against both keyword fields.
func TestByKeywordFilter(t *testing.T) {
	t.Parallel()

	var filter ByKeywordFilter

	op := operation.New()
	op.Keywords.Keyword = "BRAND 2"
	op.Keywords.EmergencyKeyword = "B2"

	entry := Entry{
		FirstName: "John",
		Data: []EntryDataItem{
			{Identifier: TypeKeyword, IsEnabled: true, Data: KeywordList{Keywords: []string{"thl 1", "brand 2"}}},
		},
	}

	require.True(t, filter.Accept(op, entry))

	entry.Data[0].Data = KeywordList{Keywords: []string{"b2"}}
	require.True(t, filter.Accept(op, entry))

	entry.Data[0].Data = KeywordList{Keywords: []string{"thl 1"}}
	require.False(t, filter.Accept(op, entry))

	entry.Data[0].IsEnabled = false
	entry.Data[0].Data = KeywordList{Keywords: []string{"brand 2"}}
	require.False(t, filter.Accept(op, entry))
}

// TestRegisterBuiltinFilters resolves the loop filter through the registry.
func TestRegisterBuiltinFilters(t *testing.T) {
	t.Parallel()

	r := registry.New[Filter]("address filter")
	require.NoError(t, RegisterBuiltinFilters(r))

	filter, err := r.Resolve("loop")
	require.NoError(t, err)
	require.IsType(t, ByLoopFilter{}, filter)

	filter, err = r.Resolve("keyword")
	require.NoError(t, err)
	require.IsType(t, ByKeywordFilter{}, filter)

	_, err = r.Resolve("unknown")
	require.ErrorIs(t, err, registry.ErrNotFound)
}
