package push

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dispatchworks/alarmhub/internal/addressing"
	"github.com/dispatchworks/alarmhub/internal/config"
	"github.com/dispatchworks/alarmhub/internal/domain/operation"
	"github.com/dispatchworks/alarmhub/internal/job"
)

func newTestBook(t *testing.T, contents string) *addressing.Service {
	t.Helper()

	path := filepath.Join(t.TempDir(), "address-book.yaml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))

	s := addressing.NewService(
		config.Addressing{BookPath: path},
		addressing.BuiltinProviders(),
		nil,
	)
	require.NoError(t, s.Reload(context.Background()))

	return s
}

// TestJob_GroupsRecipientsPerConsumer verifies one request per gateway with
// the consumer's keys batched, and that unknown consumers are skipped.
func TestJob_GroupsRecipientsPerConsumer(t *testing.T) {
	t.Parallel()

	var (
		mu       sync.Mutex
		received []notification
	)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body notification
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))

		mu.Lock()
		received = append(received, body)
		mu.Unlock()
	}))
	defer server.Close()

	book := newTestBook(t, `
entries:
  - first_name: John
    items:
      - type: push
        data: {consumer: prowl, api_key: key-john}
  - first_name: Jane
    items:
      - type: push
        data: {consumer: prowl, api_key: key-jane}
  - first_name: Jim
    items:
      - type: push
        data: {consumer: unconfigured, api_key: key-jim}
`)

	j := New(config.Push{
		Gateways: map[string]string{"prowl": server.URL},
		Timeout:  config.DefaultHTTPTimeout,
	}, book)
	require.NoError(t, j.Initialize(context.Background()))

	op := operation.New()
	op.Number = "B1.0 123456"
	op.Keywords.Keyword = "BRAND 2"

	require.NoError(t, j.Execute(context.Background(), job.NewContext("test", nil), op))

	require.Len(t, received, 1)
	require.ElementsMatch(t, []string{"key-john", "key-jane"}, received[0].APIKeys)
	require.Equal(t, "B1.0 123456", received[0].Number)
}

func TestJob_GatewayErrorIsReturned(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	book := newTestBook(t, `
entries:
  - first_name: John
    items:
      - type: push
        data: {consumer: prowl, api_key: key-john}
`)

	j := New(config.Push{
		Gateways: map[string]string{"prowl": server.URL},
		Timeout:  config.DefaultHTTPTimeout,
	}, book)

	require.Error(t, j.Execute(context.Background(), job.NewContext("test", nil), operation.New()))
}

func TestJob_InitializeRequiresGateways(t *testing.T) {
	t.Parallel()

	book := newTestBook(t, "entries: []\n")
	require.Error(t, New(config.Push{}, book).Initialize(context.Background()))
}
