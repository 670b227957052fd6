package blowup

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/hydra/internal/clients/deribit"
	"github.com/aristath/hydra/internal/clients/polygon"
	"github.com/aristath/hydra/internal/events"
)

// panickyBars blows up on every bar request.
type panickyBars struct{}

func (panickyBars) Available() bool { return true }
func (panickyBars) PrevDayBar(context.Context, string) (*polygon.Bar, bool) {
	panic("polygon down")
}

// panickyCalendar blows up when asked for upcoming releases.
type panickyCalendar struct{}

func (panickyCalendar) Upcoming(float64) []events.Event { panic("calendar down") }

// quietBook returns a perpetual with nothing alarming going on.
func quietBook() *fakeFutures {
	return &fakeFutures{
		summaries: []deribit.BookSummary{
			{InstrumentName: "BTC-PERPETUAL", OpenInterest: 1_000_000, MarkPrice: 65000, Funding8H: 0.0001},
		},
		ok: true,
	}
}

// sector builds a prev-day bar that closed pct percent away from open.
func sector(open, pct float64) *polygon.Bar {
	close := open * (1 + pct/100)
	high, low := open, close
	if close > open {
		high, low = close, open
	}
	return bar(open, high, low, close, 0)
}

func flat(price, volume float64) *polygon.Bar {
	return bar(price, price, price, price, volume)
}

func newTestDetector(t *testing.T, bars barSource, book futuresBook, cal eventSource) *Detector {
	t.Helper()
	path := filepath.Join(t.TempDir(), "weights.json")
	return NewDetector(bars, book, cal, path, nil, zerolog.Nop())
}

func triggerNames(triggers []string) []string {
	names := make([]string, 0, len(triggers))
	for _, tr := range triggers {
		names = append(names, strings.SplitN(tr, ":", 2)[0])
	}
	return names
}

func TestCalculate_CalmBullishDrift(t *testing.T) {
	bars := fakeBars{
		"I:VIX": bar(13.86, 14.1, 13.8, 14.0, 0),
		"SPY":   bar(597, 601.8, 598.2, 600, 2.2*avgSPYVolume),
		"TLT":   bar(100, 100.4, 99.9, 100.3, 0),
		"GLD":   bar(200, 200.8, 199.9, 200.6, 0),
		"XLK":   sector(100, 0.5),
		"XLF":   sector(50, 0.3),
		"XLV":   sector(140, 0.2),
		"XLY":   sector(180, 0.2),
		"XLE":   sector(90, -0.3),
	}
	d := newTestDetector(t, bars, quietBook(), fakeCalendar{})

	result := d.Calculate(context.Background())

	assert.Equal(t, 25, result.BlowupProbability)
	assert.Equal(t, DirectionBullish, result.Direction)
	assert.Equal(t, RegimeRiskOn, result.Regime)
	assert.Equal(t, RecommendScalpOnly, result.Recommendation)
	assert.InDelta(t, 1.0, result.Confidence, 1e-9)

	names := triggerNames(result.Triggers)
	assert.Contains(t, names, compCrossAsset)
	assert.Contains(t, names, compBreadth)
	assert.Empty(t, result.EventsNext30Min)
	assert.Len(t, result.Components, 8)
}

func TestCalculate_StressedTape(t *testing.T) {
	now := time.Date(2026, 3, 12, 2, 0, 0, 0, time.UTC)
	bars := fakeBars{
		"I:VIX": bar(27.12, 32.4, 26.9, 32.0, 0),
		"SPY":   bar(588, 588, 572.9, 580, 2.5*avgSPYVolume),
		"TLT":   bar(100, 100.1, 99.4, 99.5, 0),
		"GLD":   bar(200, 200.2, 198.8, 199, 0),
		"XLK":   sector(100, -0.5),
		"XLF":   sector(50, -0.5),
		"XLV":   sector(140, -0.5),
		"XLY":   sector(180, -0.5),
		"XLE":   sector(90, -0.5),
	}
	cal := fakeCalendar{{Name: "FOMC Rate Decision", Date: "2026-03-12", Time: "14:00"}}
	d := newTestDetector(t, bars, quietBook(), cal)
	d.now = func() time.Time { return now }

	result := d.Calculate(context.Background())

	assert.Equal(t, 73, result.BlowupProbability)
	assert.Equal(t, DirectionBearish, result.Direction)
	assert.Equal(t, RegimeRiskOff, result.Regime)
	assert.Equal(t, RecommendDirectionalPut, result.Recommendation)
	assert.InDelta(t, 1.0, result.Confidence, 1e-9)

	names := triggerNames(result.Triggers)
	assert.Contains(t, names, compVIXInversion)
	assert.Contains(t, names, compFlowImbalance)
	assert.Contains(t, names, compCrossAsset)

	// The release is twelve hours out, so nothing lands in the live window.
	assert.Empty(t, result.EventsNext30Min)
}

func TestCalculate_QuietTapeImminentRelease(t *testing.T) {
	now := time.Date(2026, 3, 12, 13, 15, 0, 0, time.UTC)
	bars := fakeBars{
		"I:VIX": flat(16, 0),
		"SPY":   flat(600, avgSPYVolume),
		"TLT":   flat(100, 0),
		"GLD":   flat(200, 0),
		"XLK":   flat(100, 0),
		"XLF":   flat(50, 0),
		"XLV":   flat(140, 0),
		"XLY":   flat(180, 0),
		"XLE":   flat(90, 0),
	}
	cal := fakeCalendar{{Name: "CPI YoY", Date: "2026-03-12", Time: "13:30"}}
	d := newTestDetector(t, bars, quietBook(), cal)
	d.now = func() time.Time { return now }

	result := d.Calculate(context.Background())

	// Only event proximity scores: 1.0 against its 0.15 weight.
	assert.Equal(t, 15, result.BlowupProbability)
	assert.Equal(t, DirectionNeutral, result.Direction)
	assert.Equal(t, RegimeUnknown, result.Regime)
	assert.Equal(t, RecommendScalpOnly, result.Recommendation)
	assert.Equal(t, []string{"event_proximity:1.00"}, result.Triggers)

	require.Len(t, result.EventsNext30Min, 1)
	assert.Equal(t, "CPI YoY", result.EventsNext30Min[0].Name)
	assert.Equal(t, 15, result.EventsNext30Min[0].MinutesUntil)
}

func TestCalculate_AllSourcesDown(t *testing.T) {
	d := newTestDetector(t, panickyBars{}, &fakeFutures{ok: false}, panickyCalendar{})

	result := d.Calculate(context.Background())

	assert.Equal(t, 0, result.BlowupProbability)
	assert.Zero(t, result.Confidence)
	assert.Equal(t, DirectionNeutral, result.Direction)
	assert.Equal(t, RecommendNoTrade, result.Recommendation)
	assert.NotNil(t, result.Triggers)
	assert.Empty(t, result.Triggers)
	assert.Len(t, result.Components, 8)
	for _, cs := range result.Components {
		assert.False(t, cs.Healthy, cs.Name)
	}
}

func TestDetermineRecommendation_Bands(t *testing.T) {
	cases := []struct {
		name       string
		score      int
		direction  Direction
		confidence float64
		want       Recommendation
	}{
		{"low confidence overrides score", 95, DirectionBearish, 0.4, RecommendNoTrade},
		{"just under scalp ceiling", 49, DirectionBullish, 1.0, RecommendScalpOnly},
		{"straddle floor", 50, DirectionBullish, 1.0, RecommendStraddle},
		{"just under directional floor", 69, DirectionBearish, 1.0, RecommendStraddle},
		{"directional put", 70, DirectionBearish, 1.0, RecommendDirectionalPut},
		{"directional call", 70, DirectionBullish, 1.0, RecommendDirectionalCall},
		{"high score without direction", 85, DirectionNeutral, 1.0, RecommendStraddle},
		{"confidence at gate", 10, DirectionNeutral, 0.5, RecommendScalpOnly},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, determineRecommendation(tc.score, tc.direction, tc.confidence))
		})
	}
}

func TestCalculate_HistoryRing(t *testing.T) {
	bars := fakeBars{"SPY": flat(600, avgSPYVolume), "I:VIX": flat(16, 0)}
	d := newTestDetector(t, bars, quietBook(), fakeCalendar{})

	base := time.Date(2026, 3, 12, 14, 0, 0, 0, time.UTC)
	tick := 0
	d.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Second)
	}

	for i := 0; i < historyCap+5; i++ {
		d.Calculate(context.Background())
	}

	points := d.RecentScores(historyCap * 2)
	assert.Len(t, points, historyCap)

	recent := d.RecentScores(10)
	require.Len(t, recent, 10)
	assert.Equal(t, d.Last().Timestamp, recent[len(recent)-1].Timestamp)
	assert.True(t, recent[0].Timestamp < recent[9].Timestamp)
}

func TestWeightFor_Fallbacks(t *testing.T) {
	w := Weights{"mystery": 0.5}
	assert.InDelta(t, 0.5, w.weightFor("mystery"), 1e-9)
	assert.InDelta(t, 0.20, w.weightFor(compVIXInversion), 1e-9) // default backfill
	assert.InDelta(t, 0.1, Weights{}.weightFor("never_seen"), 1e-9)
}

func TestReloadWeights(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "weights.json")
	bars := fakeBars{"SPY": flat(600, avgSPYVolume), "I:VIX": flat(16, 0)}

	d := NewDetector(bars, quietBook(), fakeCalendar{}, path, nil, zerolog.Nop())
	assert.Equal(t, DefaultWeights(), d.Weights())

	custom := DefaultWeights()
	custom[compVIXInversion] = 0.35
	custom[compFlowImbalance] = 0.05
	require.NoError(t, SaveWeights(path, custom))

	d.ReloadWeights()
	assert.InDelta(t, 0.35, d.Weights()[compVIXInversion], 1e-9)

	// Weights() hands out a copy; callers cannot reach the live map.
	leaked := d.Weights()
	leaked[compVIXInversion] = 0.99
	assert.InDelta(t, 0.35, d.Weights()[compVIXInversion], 1e-9)
}

// slowBars stalls every bar fetch long enough to keep a poll in flight.
type slowBars struct {
	started chan struct{}
	once    sync.Once
	delay   time.Duration
}

func (s *slowBars) Available() bool { return true }

func (s *slowBars) PrevDayBar(context.Context, string) (*polygon.Bar, bool) {
	s.once.Do(func() { close(s.started) })
	time.Sleep(s.delay)
	return nil, false
}

func TestCalculate_DoesNotBlockReaders(t *testing.T) {
	bars := &slowBars{started: make(chan struct{}), delay: 150 * time.Millisecond}
	d := newTestDetector(t, bars, quietBook(), fakeCalendar{})

	done := make(chan *Result, 1)
	go func() { done <- d.Calculate(context.Background()) }()

	<-bars.started
	begin := time.Now()
	assert.Nil(t, d.Last())
	assert.Empty(t, d.RecentScores(10))
	d.Weights()
	assert.Less(t, time.Since(begin), 100*time.Millisecond,
		"readers must not wait on an in-flight calculation")

	select {
	case result := <-done:
		require.NotNil(t, result)
	case <-time.After(5 * time.Second):
		t.Fatal("calculation never finished")
	}
	assert.NotNil(t, d.Last())
}
