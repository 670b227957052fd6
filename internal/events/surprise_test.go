package events

import (
	"context"
	"database/sql"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "modernc.org/sqlite"

	"github.com/aristath/hydra/internal/clients/fred"
)

type fakeReleaseSource struct {
	available bool
	values    map[string]float64
}

func (f *fakeReleaseSource) Available() bool { return f.available }

func (f *fakeReleaseSource) Latest(_ context.Context, seriesID string) (fred.Observation, bool) {
	v, ok := f.values[seriesID]
	if !ok {
		return fred.Observation{}, false
	}
	return fred.Observation{Date: "2026-08-25", Value: v}, true
}

func nfpEvent() Event {
	return Event{
		Name: "Nonfarm Payrolls", Date: "2026-03-07", Time: "13:30",
		FREDSeries: "PAYEMS", Consensus: 150, Previous: 143,
		Unit: "K", Importance: "HIGH", Category: "labor",
		AssetsAffected: []string{"SPY", "TLT"},
	}
}

func TestCheckRelease_WeakPayrolls(t *testing.T) {
	source := &fakeReleaseSource{available: true, values: map[string]float64{"PAYEMS": 80}}
	detector := NewDetector(nil, source, nil, zerolog.Nop())

	surprise, ok := detector.CheckRelease(context.Background(), nfpEvent())
	require.True(t, ok)

	// (80 - 150) / 150 = -0.4667; stdev 40 → -1.75σ
	assert.InDelta(t, -0.4667, surprise.SurprisePct, 0.001)
	assert.InDelta(t, -1.75, surprise.SurpriseStd, 0.01)
	assert.Equal(t, "WORSE_THAN_EXPECTED", surprise.Direction)
	assert.Equal(t, "MODERATE", surprise.Magnitude)
	assert.Contains(t, surprise.TradeSignals, "BUY TLT calls - rate cut expectations rise")
	assert.InDelta(t, 0.9, surprise.Confidence, 0.001)
}

func TestCheckRelease_Unavailable(t *testing.T) {
	detector := NewDetector(nil, &fakeReleaseSource{available: false}, nil, zerolog.Nop())

	_, ok := detector.CheckRelease(context.Background(), nfpEvent())
	assert.False(t, ok)

	detector = NewDetector(nil, &fakeReleaseSource{available: true}, nil, zerolog.Nop())
	noSeries := nfpEvent()
	noSeries.FREDSeries = ""
	_, ok = detector.CheckRelease(context.Background(), noSeries)
	assert.False(t, ok)
}

func TestClassifyDirection(t *testing.T) {
	inflation := Event{Name: "CPI YoY", Category: "inflation"}
	claims := Event{Name: "Initial Jobless Claims", Category: "labor"}
	labor := Event{Name: "Nonfarm Payrolls", Category: "labor"}

	// Hot inflation is bad news.
	assert.Equal(t, "WORSE_THAN_EXPECTED", classifyDirection(inflation, 3.3, 2.9))
	assert.Equal(t, "BETTER_THAN_EXPECTED", classifyDirection(inflation, 2.5, 2.9))

	// Rising claims are bad news even though the category is labor.
	assert.Equal(t, "WORSE_THAN_EXPECTED", classifyDirection(claims, 240, 215))

	// Strong payrolls are good news.
	assert.Equal(t, "BETTER_THAN_EXPECTED", classifyDirection(labor, 200, 150))
	assert.Equal(t, "WORSE_THAN_EXPECTED", classifyDirection(labor, 100, 150))

	// Within 1% of consensus is in line.
	assert.Equal(t, "IN_LINE", classifyDirection(labor, 150.5, 150))
}

func TestClassifyMagnitude(t *testing.T) {
	assert.Equal(t, "MASSIVE", classifyMagnitude(3.2))
	assert.Equal(t, "MASSIVE", classifyMagnitude(-3.0))
	assert.Equal(t, "LARGE", classifyMagnitude(2.1))
	assert.Equal(t, "MODERATE", classifyMagnitude(-1.4))
	assert.Equal(t, "SMALL", classifyMagnitude(0.6))
}

func TestSuggestTrades_MassiveSurpriseLeadsWithPriority(t *testing.T) {
	trades := suggestTrades(Event{Name: "CPI YoY", Category: "inflation"}, "WORSE_THAN_EXPECTED", "MASSIVE")

	require.NotEmpty(t, trades)
	assert.Equal(t, "PRIORITY: Trade the first 15-minute candle direction", trades[0])
	assert.Contains(t, trades, "BUY TLT puts - yields spike on hot inflation")
}

func TestStore_SaveResult(t *testing.T) {
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	defer db.Close()

	store, err := NewStore(db, zerolog.Nop())
	require.NoError(t, err)

	move := 0.85
	surprise := &Surprise{
		EventName: "CPI YoY", Timestamp: "2026-08-25T13:31:00Z",
		Actual: 3.3, Consensus: 2.9, Previous: 2.9,
		SurprisePct: 0.1379, Direction: "WORSE_THAN_EXPECTED",
	}
	require.NoError(t, store.SaveResult(surprise, "2026-08-25", &move, nil))

	n, err := store.ResultCount()
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	var direction string
	var spy15 sql.NullFloat64
	var spy30 sql.NullFloat64
	err = db.QueryRow(`SELECT direction, spy_move_15min, spy_move_30min FROM event_results`).Scan(&direction, &spy15, &spy30)
	require.NoError(t, err)
	assert.Equal(t, "WORSE_THAN_EXPECTED", direction)
	assert.True(t, spy15.Valid)
	assert.InDelta(t, 0.85, spy15.Float64, 0.001)
	assert.False(t, spy30.Valid)
}
