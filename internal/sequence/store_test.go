package sequence

import (
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/hydra/internal/database"
)

func openSequenceStore(t *testing.T) *Store {
	t.Helper()

	db, err := database.New(database.Config{
		Path:    filepath.Join(t.TempDir(), "sequence_vectors.db"),
		Profile: database.ProfileHistory,
		Name:    "sequence",
	})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	store, err := NewStore(db, zerolog.Nop())
	require.NoError(t, err)
	return store
}

func TestStore_UpsertReplacesByDate(t *testing.T) {
	store := openSequenceStore(t)

	require.NoError(t, store.Upsert(Fingerprint{
		Date:      "2026-08-20",
		GexRegime: "POSITIVE",
		VIXLevel:  18.5,
		Embedding: []float64{0.1, 0.2},
	}))
	require.NoError(t, store.Upsert(Fingerprint{
		Date:      "2026-08-20",
		GexRegime: "NEGATIVE",
		VIXLevel:  22.0,
		Embedding: []float64{0.3, 0.4},
	}))

	rows, err := store.LoadSince("2026-08-01")
	require.NoError(t, err)
	require.Len(t, rows, 1)

	assert.Equal(t, "NEGATIVE", rows[0].GexRegime)
	assert.InDelta(t, 22.0, rows[0].VIXLevel, 0.001)
	assert.Equal(t, []float64{0.3, 0.4}, rows[0].Embedding)
	assert.Nil(t, rows[0].OutcomeNextDay)
}

func TestStore_UpdateOutcome(t *testing.T) {
	store := openSequenceStore(t)

	require.NoError(t, store.Upsert(Fingerprint{Date: "2026-08-20", GexRegime: "NEGATIVE"}))
	require.NoError(t, store.UpdateOutcome("2026-08-20", -1.35))

	rows, err := store.LoadSince("2026-08-01")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.NotNil(t, rows[0].OutcomeNextDay)
	assert.InDelta(t, -1.35, *rows[0].OutcomeNextDay, 0.001)

	// Unknown dates are a no-op, matching the upsert-by-date contract.
	require.NoError(t, store.UpdateOutcome("2026-08-21", 0.5))
}

func TestStore_LoadSinceFiltersAndOrders(t *testing.T) {
	store := openSequenceStore(t)

	require.NoError(t, store.Upsert(Fingerprint{Date: "2026-06-01", GexRegime: "POSITIVE"}))
	require.NoError(t, store.Upsert(Fingerprint{Date: "2026-08-20", GexRegime: "NEGATIVE"}))
	require.NoError(t, store.Upsert(Fingerprint{Date: "2026-07-15", GexRegime: "NEUTRAL"}))

	rows, err := store.LoadSince("2026-07-01")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "2026-08-20", rows[0].Date)
	assert.Equal(t, "2026-07-15", rows[1].Date)
}

func TestStore_FingerprintWithoutEmbeddingLoadsNilVector(t *testing.T) {
	store := openSequenceStore(t)

	require.NoError(t, store.Upsert(Fingerprint{Date: "2026-08-20", GexRegime: "NEGATIVE"}))

	rows, err := store.LoadSince("2026-08-01")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Nil(t, rows[0].Embedding)
}
