package gamma

import (
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/hydra/internal/database"
)

func openGexStore(t *testing.T) *HistoryStore {
	t.Helper()

	db, err := database.New(database.Config{
		Path:    filepath.Join(t.TempDir(), "gex_history.db"),
		Profile: database.ProfileHistory,
		Name:    "gex",
	})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	store, err := NewHistoryStore(db, zerolog.Nop())
	require.NoError(t, err)
	return store
}

func TestHistoryStore_SaveAndRecent(t *testing.T) {
	store := openGexStore(t)

	flip := 447.5
	first := &Snapshot{
		Timestamp:        "2026-08-26T15:00:00Z",
		SpotPrice:        450.0,
		TotalGEX:         1_012_500_000,
		CallGEX:          2_025_000_000,
		PutGEX:           -1_012_500_000,
		FlipPoint:        &flip,
		Regime:           RegimePositive,
		CharmFlowPerHour: -492_000,
		VannaExposure:    -15_000,
	}
	second := &Snapshot{
		Timestamp: "2026-08-26T15:05:00Z",
		Regime:    RegimeUnknown,
	}

	require.NoError(t, store.Save(first))
	require.NoError(t, store.Save(second))

	rows, err := store.Recent(10)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	// Newest first.
	assert.Equal(t, "2026-08-26T15:05:00Z", rows[0].Timestamp)
	assert.Equal(t, "UNKNOWN", rows[0].Regime)
	assert.Nil(t, rows[0].FlipPoint)

	assert.Equal(t, "2026-08-26T15:00:00Z", rows[1].Timestamp)
	assert.InDelta(t, 450.0, rows[1].SpotPrice, 0.001)
	assert.InDelta(t, 1_012_500_000, rows[1].TotalGEX, 1)
	require.NotNil(t, rows[1].FlipPoint)
	assert.InDelta(t, 447.5, *rows[1].FlipPoint, 0.001)
	assert.Equal(t, "POSITIVE", rows[1].Regime)
}

func TestHistoryStore_RecentHonorsLimit(t *testing.T) {
	store := openGexStore(t)

	for i := 0; i < 5; i++ {
		require.NoError(t, store.Save(&Snapshot{
			Timestamp: "2026-08-26T15:00:00Z",
			Regime:    RegimePositive,
		}))
	}

	rows, err := store.Recent(3)
	require.NoError(t, err)
	assert.Len(t, rows, 3)
}
