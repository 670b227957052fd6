package darkpool

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/hydra/internal/clients/polygon"
	"github.com/aristath/hydra/internal/database"
)

type fakeFeed struct {
	trades    []polygon.Trade
	tradesOK  bool
	quote     *polygon.Quote
	quoteOK   bool
	bar       *polygon.Bar
	barOK     bool
	gotTicker string
	gotLimit  int
}

func (f *fakeFeed) Trades(_ context.Context, ticker string, limit int) ([]polygon.Trade, bool) {
	f.gotTicker = ticker
	f.gotLimit = limit
	return f.trades, f.tradesOK
}

func (f *fakeFeed) LastQuote(_ context.Context, _ string) (*polygon.Quote, bool) {
	return f.quote, f.quoteOK
}

func (f *fakeFeed) PrevDayBar(_ context.Context, _ string) (*polygon.Bar, bool) {
	return f.bar, f.barOK
}

func dpPrint(price, size float64, participant int64) polygon.Trade {
	trfID := int64(201)
	return polygon.Trade{
		Ticker:               "SPY",
		Price:                price,
		Size:                 size,
		Exchange:             4,
		TRFID:                &trfID,
		ParticipantTimestamp: participant,
	}
}

func openDarkpoolStore(t *testing.T) *Store {
	t.Helper()

	db, err := database.New(database.Config{
		Path:    filepath.Join(t.TempDir(), "dark_pool_levels.db"),
		Profile: database.ProfileHistory,
		Name:    "darkpool",
	})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	store, err := NewStore(db, zerolog.Nop())
	require.NoError(t, err)
	return store
}

func TestClusterPrice(t *testing.T) {
	cases := []struct {
		price float64
		want  float64
	}{
		{450.20, 450.0},
		{450.30, 450.5},
		{450.75, 451.0},
		{449.99, 450.0},
		{448.0, 448.0},
	}
	for _, tc := range cases {
		assert.InDelta(t, tc.want, clusterPrice(tc.price), 1e-9, "price %.2f", tc.price)
	}
}

func TestClassifySide(t *testing.T) {
	// NBBO 449.0 x 451.0: mid 450, spread 2, thresholds 450.5 / 449.5.
	assert.Equal(t, SideBuy, classifySide(450.5, 449.0, 451.0))
	assert.Equal(t, SideSell, classifySide(449.5, 449.0, 451.0))
	assert.Equal(t, SideUnknown, classifySide(450.0, 449.0, 451.0))
	assert.Equal(t, SideUnknown, classifySide(450.49, 449.0, 451.0))

	assert.Equal(t, SideUnknown, classifySide(450.0, 0, 451.0))
	assert.Equal(t, SideUnknown, classifySide(450.0, 449.0, 0))
	assert.Equal(t, SideUnknown, classifySide(450.0, 451.0, 449.0), "crossed book")
}

func TestStrengthFor(t *testing.T) {
	cases := []struct {
		notional float64
		count    int
		want     Strength
	}{
		{10_000_000, 1, StrengthVeryHigh},
		{600_000, 20, StrengthVeryHigh},
		{5_000_000, 1, StrengthHigh},
		{600_000, 10, StrengthHigh},
		{2_000_000, 1, StrengthMedium},
		{600_000, 5, StrengthMedium},
		{600_000, 1, StrengthLow},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, strengthFor(tc.notional, tc.count), "notional %.0f count %d", tc.notional, tc.count)
	}
}

func TestFilterBlocks(t *testing.T) {
	lit := polygon.Trade{Ticker: "SPY", Price: 450, Size: 50_000, Exchange: 11}
	noTRF := polygon.Trade{Ticker: "SPY", Price: 450, Size: 50_000, Exchange: 4}
	small := dpPrint(450, 5_000, 1)
	thinNotional := dpPrint(10, 20_000, 2) // $200k, under the floor
	good := dpPrint(450, 15_000, 3)

	blocks := filterBlocks([]polygon.Trade{lit, noTRF, small, thinNotional, good})
	require.Len(t, blocks, 1)

	assert.InDelta(t, 450, blocks[0].price, 1e-9)
	assert.Equal(t, int64(15_000), blocks[0].size)
	assert.InDelta(t, 6_750_000, blocks[0].notional, 1e-3)
	assert.Equal(t, int64(3), blocks[0].participant)
	assert.Equal(t, int64(201), blocks[0].trfID)
	assert.Equal(t, 4, blocks[0].exchange)
}

func TestCalculate_LevelsAndNearestWithoutNBBO(t *testing.T) {
	feed := &fakeFeed{
		trades: []polygon.Trade{
			dpPrint(448.0, 30_000, 1001), // $13.44M, VERY_HIGH
			dpPrint(449.5, 11_000, 1002), // merges with the 449.4 print below
			dpPrint(452.0, 12_000, 1003), // $5.424M, HIGH
			dpPrint(451.0, 15_000, 1004), // $6.765M, HIGH
			dpPrint(449.4, 10_000, 1005), // clusters to 449.5
		},
		tradesOK: true,
		quoteOK:  false,
		bar:      &polygon.Bar{Close: 450.0},
		barOK:    true,
	}
	store := openDarkpoolStore(t)

	m := NewMapper(feed, store, "SPY", zerolog.Nop())
	now := time.Date(2026, 8, 26, 15, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }

	snap := m.Calculate(context.Background())
	require.NotNil(t, snap)

	assert.Equal(t, "SPY", feed.gotTicker)
	assert.Equal(t, 5000, feed.gotLimit)
	assert.Equal(t, now.UTC().Format(time.RFC3339), snap.Timestamp)

	assert.InDelta(t, 450.0, snap.SpotPrice, 1e-9)
	assert.Equal(t, int64(78_000), snap.TotalDarkVolume)
	assert.InDelta(t, 35_067_500, snap.TotalDarkNotional, 0.5)
	assert.Zero(t, snap.BuyVolume)
	assert.Zero(t, snap.SellVolume)

	// Heaviest notional first, all sides UNKNOWN without a quote.
	require.Len(t, snap.Levels, 4)
	assert.InDelta(t, 448.0, snap.Levels[0].Price, 1e-9)
	assert.Equal(t, StrengthVeryHigh, snap.Levels[0].Strength)
	assert.Equal(t, SideUnknown, snap.Levels[0].Side)
	assert.InDelta(t, 449.5, snap.Levels[1].Price, 1e-9)
	assert.Equal(t, int64(21_000), snap.Levels[1].Volume)
	assert.Equal(t, 2, snap.Levels[1].TradeCount)
	assert.Equal(t, StrengthHigh, snap.Levels[1].Strength)
	assert.Equal(t, "1005", snap.Levels[1].LastSeen)

	require.NotNil(t, snap.NearestSupport)
	assert.InDelta(t, 449.5, *snap.NearestSupport, 1e-9)
	assert.Equal(t, StrengthHigh, snap.SupportStrength)
	require.NotNil(t, snap.NearestResistance)
	assert.InDelta(t, 451.0, *snap.NearestResistance, 1e-9)
	assert.Equal(t, StrengthHigh, snap.ResistanceStrength)

	assert.Same(t, snap, m.Last())

	prints, err := store.RecentPrints("SPY", 10)
	require.NoError(t, err)
	assert.Len(t, prints, 5)

	levels, err := store.LevelsForDate("2026-08-26", "SPY")
	require.NoError(t, err)
	require.Len(t, levels, 4)
	assert.InDelta(t, 448.0, levels[0].PriceLevel, 1e-9)

	// A second pass over the same tape window must not duplicate rows.
	m.Calculate(context.Background())
	prints, err = store.RecentPrints("SPY", 20)
	require.NoError(t, err)
	assert.Len(t, prints, 5)
	levels, err = store.LevelsForDate("2026-08-26", "SPY")
	require.NoError(t, err)
	assert.Len(t, levels, 4)
}

func TestCalculate_SideAttributionAndSpotFallback(t *testing.T) {
	feed := &fakeFeed{
		trades: []polygon.Trade{
			dpPrint(450.5, 20_000, 0), // at the ask, BUY
			dpPrint(450.5, 15_000, 0),
			dpPrint(449.5, 10_000, 0), // at the bid, SELL
			dpPrint(450.0, 10_000, 0), // inside the spread, UNKNOWN
		},
		tradesOK: true,
		quote:    &polygon.Quote{BidPrice: 449.5, AskPrice: 450.5},
		quoteOK:  true,
		barOK:    false,
	}

	m := NewMapper(feed, nil, "SPY", zerolog.Nop())
	snap := m.Calculate(context.Background())
	require.NotNil(t, snap)

	// No previous-day bar: spot falls back to the NBBO mid.
	assert.InDelta(t, 450.0, snap.SpotPrice, 1e-9)

	assert.Equal(t, int64(35_000), snap.BuyVolume)
	assert.Equal(t, int64(10_000), snap.SellVolume)
	assert.Equal(t, int64(55_000), snap.TotalDarkVolume)

	bySide := map[float64]Side{}
	for _, l := range snap.Levels {
		bySide[l.Price] = l.Side
	}
	assert.Equal(t, SideBuy, bySide[450.5])
	assert.Equal(t, SideSell, bySide[449.5])
	assert.Equal(t, SideUnknown, bySide[450.0])

	// BUY volume above spot and SELL volume below spot qualify for
	// neither side of the book.
	assert.Nil(t, snap.NearestSupport)
	assert.Equal(t, StrengthUnknown, snap.SupportStrength)
	assert.Nil(t, snap.NearestResistance)
	assert.Equal(t, StrengthUnknown, snap.ResistanceStrength)

	result := m.ConvictionModifier(450, 448, 455)
	assert.Equal(t, 5, result.Modifier)
	assert.Equal(t, []string{"Dark pool flow heavily buying"}, result.Reasons)
}

func TestCalculate_EmptyTapeStillCaches(t *testing.T) {
	feed := &fakeFeed{tradesOK: false, quoteOK: false, barOK: false}

	m := NewMapper(feed, nil, "SPY", zerolog.Nop())
	snap := m.Calculate(context.Background())
	require.NotNil(t, snap)

	assert.Zero(t, snap.SpotPrice)
	assert.Empty(t, snap.Levels)
	assert.NotNil(t, snap.Levels)
	assert.Nil(t, snap.NearestSupport)
	assert.Equal(t, StrengthUnknown, snap.SupportStrength)
	assert.NotNil(t, m.Last())
}

func TestLevelsNear(t *testing.T) {
	m := NewMapper(&fakeFeed{}, nil, "SPY", zerolog.Nop())
	assert.Nil(t, m.LevelsNear(450, 0.02))

	m.last = &Snapshot{Levels: []Level{
		{Price: 440.0},
		{Price: 449.5},
		{Price: 451.0},
		{Price: 465.0},
	}}

	near := m.LevelsNear(450, 0.02) // 441.0 .. 459.0
	require.Len(t, near, 2)
	assert.InDelta(t, 449.5, near[0].Price, 1e-9)
	assert.InDelta(t, 451.0, near[1].Price, 1e-9)
}

func ptr(v float64) *float64 { return &v }

func TestConvictionModifier_NoData(t *testing.T) {
	m := NewMapper(&fakeFeed{}, nil, "SPY", zerolog.Nop())

	result := m.ConvictionModifier(450, 448, 455)
	assert.Zero(t, result.Modifier)
	assert.Empty(t, result.Reasons)
}

func TestConvictionModifier_Rules(t *testing.T) {
	cases := []struct {
		name        string
		last        Snapshot
		entry       float64
		stop        float64
		target      float64
		wantMod     int
		wantReasons []string
	}{
		{
			name:        "strong support above stop",
			last:        Snapshot{NearestSupport: ptr(448.5), SupportStrength: StrengthVeryHigh},
			entry:       450, stop: 447, target: 455,
			wantMod:     10,
			wantReasons: []string{"Strong DP support at $448.50 above stop"},
		},
		{
			name:        "weak support above stop",
			last:        Snapshot{NearestSupport: ptr(448.5), SupportStrength: StrengthLow},
			entry:       450, stop: 447, target: 455,
			wantMod:     5,
			wantReasons: []string{"DP support at $448.50"},
		},
		{
			name:        "support below stop is ignored",
			last:        Snapshot{NearestSupport: ptr(448.5), SupportStrength: StrengthVeryHigh},
			entry:       450, stop: 449, target: 455,
			wantMod:     0,
			wantReasons: []string{},
		},
		{
			name:        "strong resistance before target",
			last:        Snapshot{NearestResistance: ptr(452.0), ResistanceStrength: StrengthHigh},
			entry:       450, stop: 447, target: 455,
			wantMod:     -10,
			wantReasons: []string{"Strong DP resistance at $452.00 before target"},
		},
		{
			name:        "weak resistance before target",
			last:        Snapshot{NearestResistance: ptr(452.0), ResistanceStrength: StrengthMedium},
			entry:       450, stop: 447, target: 455,
			wantMod:     -5,
			wantReasons: []string{"DP resistance at $452.00"},
		},
		{
			name:        "heavy selling flow",
			last:        Snapshot{BuyVolume: 10_000, SellVolume: 30_000},
			entry:       450, stop: 447, target: 455,
			wantMod:     -5,
			wantReasons: []string{"Dark pool flow heavily selling"},
		},
		{
			name: "support and resistance and buy flow combine",
			last: Snapshot{
				NearestSupport:     ptr(448.5),
				SupportStrength:    StrengthVeryHigh,
				NearestResistance:  ptr(452.0),
				ResistanceStrength: StrengthMedium,
				BuyVolume:          50_000,
				SellVolume:         10_000,
			},
			entry:   450, stop: 447, target: 455,
			wantMod: 10,
			wantReasons: []string{
				"Strong DP support at $448.50 above stop",
				"DP resistance at $452.00",
				"Dark pool flow heavily buying",
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			m := NewMapper(&fakeFeed{}, nil, "SPY", zerolog.Nop())
			m.last = &tc.last

			result := m.ConvictionModifier(tc.entry, tc.stop, tc.target)
			assert.Equal(t, tc.wantMod, result.Modifier)
			assert.Equal(t, tc.wantReasons, result.Reasons)
			assert.Equal(t, tc.last.NearestSupport, result.NearestSupport)
			assert.Equal(t, tc.last.NearestResistance, result.NearestResistance)
		})
	}
}
