package darkpool

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_SavePrintsIsIdempotent(t *testing.T) {
	store := openDarkpoolStore(t)

	row := PrintRow{
		Timestamp: "2026-08-26T14:00:00.000000001Z",
		Price:     450.5,
		Size:      20_000,
		Notional:  9_010_000,
		Side:      SideBuy,
		Exchange:  4,
		TRFID:     201,
	}

	require.NoError(t, store.SavePrints("SPY", []PrintRow{row}))
	require.NoError(t, store.SavePrints("SPY", []PrintRow{row}))

	prints, err := store.RecentPrints("SPY", 10)
	require.NoError(t, err)
	require.Len(t, prints, 1)
	assert.Equal(t, SideBuy, prints[0].Side)
	assert.Equal(t, int64(201), prints[0].TRFID)
}

func TestStore_UpsertLevelsReplacesDayRow(t *testing.T) {
	store := openDarkpoolStore(t)

	first := LevelRow{PriceLevel: 450.5, TotalVolume: 20_000, TotalNotional: 9_010_000, TradeCount: 1, BuyVolume: 20_000, Strength: StrengthHigh}
	require.NoError(t, store.UpsertLevels("2026-08-26", "SPY", []LevelRow{first}))

	grown := first
	grown.TotalVolume = 55_000
	grown.TotalNotional = 24_760_000
	grown.TradeCount = 3
	grown.Strength = StrengthVeryHigh
	require.NoError(t, store.UpsertLevels("2026-08-26", "SPY", []LevelRow{grown}))

	levels, err := store.LevelsForDate("2026-08-26", "SPY")
	require.NoError(t, err)
	require.Len(t, levels, 1)
	assert.Equal(t, int64(55_000), levels[0].TotalVolume)
	assert.Equal(t, 3, levels[0].TradeCount)
	assert.Equal(t, StrengthVeryHigh, levels[0].Strength)
}

func TestStore_LevelsForDateFiltersByDay(t *testing.T) {
	store := openDarkpoolStore(t)

	require.NoError(t, store.UpsertLevels("2026-08-25", "SPY", []LevelRow{
		{PriceLevel: 448.0, TotalVolume: 30_000, TotalNotional: 13_440_000, TradeCount: 1, Strength: StrengthVeryHigh},
	}))
	require.NoError(t, store.UpsertLevels("2026-08-26", "SPY", []LevelRow{
		{PriceLevel: 449.5, TotalVolume: 21_000, TotalNotional: 9_438_500, TradeCount: 2, Strength: StrengthHigh},
		{PriceLevel: 452.0, TotalVolume: 12_000, TotalNotional: 5_424_000, TradeCount: 1, Strength: StrengthHigh},
	}))

	levels, err := store.LevelsForDate("2026-08-26", "SPY")
	require.NoError(t, err)
	require.Len(t, levels, 2)
	assert.InDelta(t, 449.5, levels[0].PriceLevel, 1e-9, "heaviest notional first")

	prior, err := store.LevelsForDate("2026-08-25", "SPY")
	require.NoError(t, err)
	require.Len(t, prior, 1)
	assert.InDelta(t, 448.0, prior[0].PriceLevel, 1e-9)
}
