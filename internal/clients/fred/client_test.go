package fred

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/hydra/internal/fetch"
)

func TestAvailable(t *testing.T) {
	fetcher := fetch.New(zerolog.Nop())

	assert.False(t, NewClient(fetcher, "", zerolog.Nop()).Available())
	assert.True(t, NewClient(fetcher, "key", zerolog.Nop()).Available())
}

func TestLatestObservations_SkipsPlaceholders(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "JTSJOL", r.URL.Query().Get("series_id"))
		assert.Equal(t, "desc", r.URL.Query().Get("sort_order"))
		assert.Equal(t, "test-key", r.URL.Query().Get("api_key"))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"observations":[
			{"date":"2026-08-01","value":"."},
			{"date":"2026-07-01","value":"6800.0"},
			{"date":"2026-06-01","value":"7100.0"}
		]}`))
	}))
	defer server.Close()

	client := NewClient(fetch.New(zerolog.Nop()), "test-key", zerolog.Nop())
	client.baseURL = server.URL

	obs, ok := client.LatestObservations(context.Background(), "JTSJOL", 5)
	require.True(t, ok)
	require.Len(t, obs, 2)
	assert.Equal(t, "2026-07-01", obs[0].Date)
	assert.InDelta(t, 6800.0, obs[0].Value, 0.001)
	assert.InDelta(t, 7100.0, obs[1].Value, 0.001)
}

func TestLatestObservations_NoKey(t *testing.T) {
	client := NewClient(fetch.New(zerolog.Nop()), "", zerolog.Nop())

	_, ok := client.LatestObservations(context.Background(), "ICSA", 5)
	assert.False(t, ok)
}

func TestLatest(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"observations":[{"date":"2026-08-20","value":"215.0"}]}`))
	}))
	defer server.Close()

	client := NewClient(fetch.New(zerolog.Nop()), "test-key", zerolog.Nop())
	client.baseURL = server.URL

	ob, ok := client.Latest(context.Background(), "ICSA")
	require.True(t, ok)
	assert.Equal(t, "2026-08-20", ob.Date)
	assert.InDelta(t, 215.0, ob.Value, 0.001)
}
