package filedrop

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const sampleDispatch = `
# OCR output 2026-08-30
number: B1.0 123456
alarm_at: 2026-08-30T12:00:00Z
keyword: BRAND 2
emergency_keyword: B2
messenger: Leitstelle
priority: high
comment: Kitchen fire, smoke visible
street: Hauptstrasse
house_number: 12a
zip_code: 86150
city: Augsburg
loops: 123; 456 ;123
resources: LF 8;DLK 23; ;ELW 1
station: Nord
`

func TestParseOperation(t *testing.T) {
	t.Parallel()

	op, err := ParseOperation([]byte(sampleDispatch))
	require.NoError(t, err)

	require.Equal(t, "B1.0 123456", op.Number)
	require.Equal(t, time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC), op.AlarmAt)
	require.Equal(t, "BRAND 2", op.Keywords.Keyword)
	require.Equal(t, "B2", op.Keywords.EmergencyKeyword)
	require.Equal(t, "Leitstelle", op.Messenger)
	require.Equal(t, "Hauptstrasse", op.Einsatzort.Street)
	require.Equal(t, "12a", op.Einsatzort.HouseNumber)
	require.Equal(t, "Augsburg", op.Einsatzort.City)

	// Loops are trimmed and deduped, resources keep their order.
	require.Equal(t, "123;456", op.Loops.String())
	require.Equal(t, []string{"LF 8", "DLK 23", "ELW 1"}, op.Resources)

	// Unknown keys survive as custom data.
	station, ok := op.CustomValue("station")
	require.True(t, ok)
	require.Equal(t, "Nord", station)
}

func TestParseOperation_Rejections(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"missing number":   "keyword: BRAND 2\n",
		"malformed line":   "number: 1\njust some text\n",
		"invalid alarm_at": "number: 1\nalarm_at: yesterday\n",
	}

	for name, contents := range cases {
		contents := contents
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			_, err := ParseOperation([]byte(contents))
			require.Error(t, err)
		})
	}
}

// TestParseOperation_AlarmAtOptional leaves the alarm time zero so the
// engine can default it.
func TestParseOperation_AlarmAtOptional(t *testing.T) {
	t.Parallel()

	op, err := ParseOperation([]byte("number: B1.0 123456\n"))
	require.NoError(t, err)
	require.True(t, op.AlarmAt.IsZero())
	require.False(t, op.IncomeAt.IsZero())
}
