package intel

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/hydra/internal/blowup"
	"github.com/aristath/hydra/internal/darkpool"
	"github.com/aristath/hydra/internal/flow"
	"github.com/aristath/hydra/internal/gamma"
	"github.com/aristath/hydra/internal/sequence"
)

type fakeBlowup struct{ last *blowup.Result }

func (f *fakeBlowup) Last() *blowup.Result { return f.last }

type fakeGex struct {
	last       *gamma.Snapshot
	conviction gamma.ConvictionResult
	calculated int
}

func (f *fakeGex) Calculate(context.Context) *gamma.Snapshot { f.calculated++; return f.last }
func (f *fakeGex) Last() *gamma.Snapshot                     { return f.last }
func (f *fakeGex) ConvictionModifier() gamma.ConvictionResult {
	return f.conviction
}

type fakeFlow struct {
	last         *flow.Snapshot
	conviction   flow.ConvictionResult
	gotDirection string
	calculated   int
}

func (f *fakeFlow) Calculate(context.Context) *flow.Snapshot { f.calculated++; return f.last }
func (f *fakeFlow) Last() *flow.Snapshot                     { return f.last }
func (f *fakeFlow) ConvictionModifier(tradeDirection string) flow.ConvictionResult {
	f.gotDirection = tradeDirection
	return f.conviction
}

type fakeDarkPool struct {
	last                         *darkpool.Snapshot
	conviction                   darkpool.ConvictionResult
	gotEntry, gotStop, gotTarget float64
	calculated                   int
}

func (f *fakeDarkPool) Calculate(context.Context) *darkpool.Snapshot { f.calculated++; return f.last }
func (f *fakeDarkPool) Last() *darkpool.Snapshot                     { return f.last }
func (f *fakeDarkPool) ConvictionModifier(entry, stop, target float64) darkpool.ConvictionResult {
	f.gotEntry, f.gotStop, f.gotTarget = entry, stop, target
	return f.conviction
}

type fakeSequence struct {
	analysis      *sequence.Analysis
	conviction    sequence.ConvictionResult
	gotDirection  string
	gotConditions sequence.Conditions
}

func (f *fakeSequence) Analyze(_ context.Context, c sequence.Conditions) *sequence.Analysis {
	f.gotConditions = c
	return f.analysis
}

func (f *fakeSequence) ConvictionModifier(_ context.Context, tradeDirection string, c sequence.Conditions) sequence.ConvictionResult {
	f.gotDirection = tradeDirection
	f.gotConditions = c
	return f.conviction
}

func ptr(v float64) *float64 { return &v }

// 11:00 ET on a Wednesday, inside the regular session.
var sessionClock = time.Date(2026, 8, 26, 15, 0, 0, 0, time.UTC)

func testAggregator(b *fakeBlowup, g *fakeGex, fl *fakeFlow, dp *fakeDarkPool, seq *fakeSequence) *Aggregator {
	a := NewAggregator(b, g, fl, dp, seq, zerolog.Nop())
	a.now = func() time.Time { return sessionClock }
	return a
}

func emptyAggregator() (*Aggregator, *fakeGex, *fakeFlow, *fakeDarkPool, *fakeSequence) {
	g := &fakeGex{}
	fl := &fakeFlow{}
	dp := &fakeDarkPool{}
	seq := &fakeSequence{}
	return testAggregator(&fakeBlowup{}, g, fl, dp, seq), g, fl, dp, seq
}

func TestSnapshot_AllSubsystemsAbsent(t *testing.T) {
	a, _, _, _, _ := emptyAggregator()

	s := a.Snapshot()

	assert.Equal(t, "2026-08-26T15:00:00Z", s.Timestamp)

	assert.Zero(t, s.BlowupProbability)
	assert.Equal(t, "NEUTRAL", s.BlowupDirection)
	assert.Equal(t, "UNKNOWN", s.BlowupRegime)
	assert.Equal(t, "NO_TRADE", s.BlowupRecommendation)
	require.NotNil(t, s.BlowupTriggers)
	assert.Empty(t, s.BlowupTriggers)

	assert.Equal(t, "UNKNOWN", s.GexRegime)
	assert.Zero(t, s.GexTotal)
	assert.Nil(t, s.GexFlipPoint)
	assert.InDelta(t, 1.0, s.GexFlipDistancePct, 0.001)
	assert.Empty(t, s.GexKeySupport)

	assert.Equal(t, "UNKNOWN", s.FlowInstitutionalBias)
	assert.Zero(t, s.FlowConfidence)
	assert.Equal(t, "NEUTRAL", s.FlowSweepDirection)

	assert.Nil(t, s.DpNearestSupport)
	assert.Nil(t, s.DpNearestResistance)
	assert.Equal(t, "UNKNOWN", s.DpSupportStrength)
	assert.Zero(t, s.DpBuyVolume)

	assert.Zero(t, s.SequenceSimilarCount)
	assert.Equal(t, "NEUTRAL", s.SequencePredictedDirection)
	assert.InDelta(t, 0.5, s.SequenceHistoricalWinRate, 0.001)
	assert.Zero(t, s.SequenceAvgOutcome)

	assert.Equal(t, 1, s.ComponentsHealthy)
	assert.Equal(t, 4, s.ComponentsTotal)
}

func TestSnapshot_AllSubsystemsHealthy(t *testing.T) {
	b := &fakeBlowup{last: &blowup.Result{
		BlowupProbability: 72,
		Direction:         blowup.DirectionBearish,
		Regime:            blowup.RegimeRiskOff,
		Recommendation:    blowup.RecommendDirectionalPut,
		Triggers:          []string{"vix_inversion:1.00"},
	}}
	g := &fakeGex{last: &gamma.Snapshot{
		Regime:           gamma.RegimeNegative,
		TotalGEX:         -3.2e8,
		FlipPoint:        ptr(449.0),
		FlipDistancePct:  0.004,
		CharmFlowPerHour: 6.1e6,
		KeySupport:       []float64{448.0},
		KeyResistance:    []float64{452.0},
		OptionsCount:     180,
	}}
	fl := &fakeFlow{last: &flow.Snapshot{
		InstitutionalBias:   flow.BiasAggressivelyBullish,
		Confidence:          88,
		NetPremiumCalls:     1_400_000,
		NetPremiumPuts:      300_000,
		SweepCountCalls:     7,
		SweepCountPuts:      2,
		TotalTradesAnalyzed: 120,
	}}
	dp := &fakeDarkPool{last: &darkpool.Snapshot{
		NearestSupport:     ptr(449.5),
		NearestResistance:  ptr(451.0),
		SupportStrength:    darkpool.StrengthHigh,
		ResistanceStrength: darkpool.StrengthMedium,
		TotalDarkVolume:    80_000,
		BuyVolume:          50_000,
		SellVolume:         20_000,
	}}
	a := testAggregator(b, g, fl, dp, &fakeSequence{})

	s := a.Snapshot()

	assert.Equal(t, 72, s.BlowupProbability)
	assert.Equal(t, "BEARISH", s.BlowupDirection)
	assert.Equal(t, []string{"vix_inversion:1.00"}, s.BlowupTriggers)

	assert.Equal(t, "NEGATIVE", s.GexRegime)
	assert.InDelta(t, -3.2e8, s.GexTotal, 1)
	require.NotNil(t, s.GexFlipPoint)
	assert.InDelta(t, 449.0, *s.GexFlipPoint, 0.001)
	assert.Equal(t, []float64{448.0}, s.GexKeySupport)

	assert.Equal(t, "AGGRESSIVELY_BULLISH", s.FlowInstitutionalBias)
	assert.InDelta(t, 88, s.FlowConfidence, 0.001)
	assert.Equal(t, "CALL_HEAVY", s.FlowSweepDirection)

	require.NotNil(t, s.DpNearestSupport)
	assert.InDelta(t, 449.5, *s.DpNearestSupport, 0.001)
	assert.Equal(t, "HIGH", s.DpSupportStrength)
	assert.Equal(t, int64(50_000), s.DpBuyVolume)

	assert.Equal(t, 4, s.ComponentsHealthy)
}

func TestSnapshot_EmptySnapshotsAreNotHealthy(t *testing.T) {
	// Published but empty snapshots count as degraded, not healthy.
	g := &fakeGex{last: &gamma.Snapshot{Regime: gamma.RegimeUnknown, OptionsCount: 0}}
	fl := &fakeFlow{last: &flow.Snapshot{InstitutionalBias: flow.BiasNeutral, TotalTradesAnalyzed: 0}}
	dp := &fakeDarkPool{last: &darkpool.Snapshot{TotalDarkVolume: 0}}
	a := testAggregator(&fakeBlowup{}, g, fl, dp, &fakeSequence{})

	s := a.Snapshot()

	assert.Equal(t, 1, s.ComponentsHealthy)
	assert.Equal(t, "NEUTRAL", s.FlowInstitutionalBias)
}

func TestSweepDirection(t *testing.T) {
	cases := []struct {
		calls, puts int
		want        string
	}{
		{7, 2, "CALL_HEAVY"},
		{5, 2, "CALL_HEAVY"},
		{4, 2, "NEUTRAL"},
		{1, 0, "CALL_HEAVY"},
		{0, 1, "PUT_HEAVY"},
		{2, 5, "PUT_HEAVY"},
		{0, 0, "NEUTRAL"},
	}
	for _, tc := range cases {
		got := sweepDirection(&flow.Snapshot{SweepCountCalls: tc.calls, SweepCountPuts: tc.puts})
		assert.Equal(t, tc.want, got, "calls=%d puts=%d", tc.calls, tc.puts)
	}
}

func TestCurrentConditions_Defaults(t *testing.T) {
	a, _, _, _, _ := emptyAggregator()

	c := a.CurrentConditions()

	assert.Equal(t, sequence.Conditions{
		GexRegime:    "UNKNOWN",
		FlowBias:     "NEUTRAL",
		VIXLevel:     20.0,
		DarkPoolBias: "NEUTRAL",
	}, c)
}

func TestCurrentConditions_ReadsScorerComponents(t *testing.T) {
	b := &fakeBlowup{last: &blowup.Result{
		BlowupProbability: 65,
		Components: []blowup.ComponentScore{
			{Name: "vix_inversion", Details: map[string]interface{}{"vix_close": 26.5}},
			{Name: "premarket_gap", Details: map[string]interface{}{"daily_move_pct": -1.3, "daily_range_pct": 2.1}},
		},
	}}
	g := &fakeGex{last: &gamma.Snapshot{Regime: gamma.RegimeNegative}}
	fl := &fakeFlow{last: &flow.Snapshot{InstitutionalBias: flow.BiasModeratelyBearish}}
	dp := &fakeDarkPool{last: &darkpool.Snapshot{BuyVolume: 10_000, SellVolume: 30_000}}
	a := testAggregator(b, g, fl, dp, &fakeSequence{})

	c := a.CurrentConditions()

	assert.Equal(t, sequence.Conditions{
		GexRegime:    "NEGATIVE",
		FlowBias:     "MODERATELY_BEARISH",
		VIXLevel:     26.5,
		SpyChangePct: -1.3,
		SpyRangePct:  2.1,
		BlowupScore:  65,
		DarkPoolBias: "SELL",
	}, c)
}

func TestCurrentConditions_BalancedDarkPoolReadsSell(t *testing.T) {
	dp := &fakeDarkPool{last: &darkpool.Snapshot{BuyVolume: 5_000, SellVolume: 5_000}}
	a := testAggregator(&fakeBlowup{}, &fakeGex{}, &fakeFlow{}, dp, &fakeSequence{})

	assert.Equal(t, "SELL", a.CurrentConditions().DarkPoolBias)
}

func TestConviction_NoVotesNoReasons(t *testing.T) {
	a, _, _, _, _ := emptyAggregator()

	c := a.Conviction(context.Background(), "BULLISH", 548.0, 546.5, 551.0)

	assert.Zero(t, c.TotalModifier)
	assert.Empty(t, c.Reasons)
	assert.Equal(t, "BULLISH", c.TradeDirection)
}

func TestConviction_ComposesAllFourVotes(t *testing.T) {
	a, g, fl, dp, seq := emptyAggregator()
	g.conviction = gamma.ConvictionResult{
		Modifier: 10,
		Reasons:  []string{"Negative GEX favors directional trades"},
		Regime:   gamma.RegimeNegative,
	}
	fl.conviction = flow.ConvictionResult{
		Modifier: -5,
		Reasons:  []string{"Flow conflicts: MODERATELY_BEARISH"},
	}
	dp.conviction = darkpool.ConvictionResult{
		Modifier: 5,
		Reasons:  []string{"Dark pool flow heavily buying"},
	}
	seq.conviction = sequence.ConvictionResult{
		Modifier:         8,
		Reasons:          []string{"Historical win rate: 60% bullish"},
		SimilarSequences: 5,
		AvgOutcome:       0.2,
	}

	c := a.Conviction(context.Background(), "BULLISH", 548.0, 546.5, 551.0)

	assert.Equal(t, 18, c.TotalModifier)
	assert.Equal(t, "BULLISH", c.TradeDirection)
	assert.Equal(t, []string{
		"Negative GEX favors directional trades",
		"Flow conflicts: MODERATELY_BEARISH",
		"Dark pool flow heavily buying",
		"Historical win rate: 60% bullish",
	}, c.Reasons)

	assert.Equal(t, g.conviction, c.Modifiers.Gex)
	assert.Equal(t, fl.conviction, c.Modifiers.Flow)
	assert.Equal(t, dp.conviction, c.Modifiers.DarkPool)
	assert.Equal(t, seq.conviction, c.Modifiers.Sequence)

	assert.Equal(t, "BULLISH", fl.gotDirection)
	assert.Equal(t, "BULLISH", seq.gotDirection)
	assert.InDelta(t, 548.0, dp.gotEntry, 0.001)
	assert.InDelta(t, 546.5, dp.gotStop, 0.001)
	assert.InDelta(t, 551.0, dp.gotTarget, 0.001)
	assert.Equal(t, a.CurrentConditions(), seq.gotConditions)
}

func TestSequenceAnalysis_PassesLiveConditions(t *testing.T) {
	a, g, _, _, seq := emptyAggregator()
	g.last = &gamma.Snapshot{Regime: gamma.RegimeNegative}
	seq.analysis = &sequence.Analysis{PredictedDirection: "BEARISH"}

	got := a.SequenceAnalysis(context.Background())

	assert.Same(t, seq.analysis, got)
	assert.Equal(t, "NEGATIVE", seq.gotConditions.GexRegime)
}

func TestGexTick(t *testing.T) {
	a, g, _, _, _ := emptyAggregator()
	g.last = &gamma.Snapshot{RefreshSeconds: 30}

	assert.Equal(t, 30*time.Second, a.gexTick(context.Background()))
	assert.Equal(t, 1, g.calculated)

	a.now = func() time.Time { return time.Date(2026, 8, 26, 2, 0, 0, 0, time.UTC) }
	assert.Equal(t, 15*time.Minute, a.gexTick(context.Background()))
	assert.Equal(t, 1, g.calculated, "no recalculation outside the session")
}

func TestFlowTick(t *testing.T) {
	a, _, fl, _, _ := emptyAggregator()

	assert.Equal(t, 2*time.Minute, a.flowTick(context.Background()))
	assert.Equal(t, 1, fl.calculated)

	a.now = func() time.Time { return time.Date(2026, 8, 23, 15, 0, 0, 0, time.UTC) } // Sunday
	assert.Equal(t, 5*time.Minute, a.flowTick(context.Background()))
	assert.Equal(t, 1, fl.calculated)
}

func TestDarkPoolTick(t *testing.T) {
	a, _, _, dp, _ := emptyAggregator()

	assert.Equal(t, 5*time.Minute, a.darkPoolTick(context.Background()))
	assert.Equal(t, 1, dp.calculated)

	a.now = func() time.Time { return time.Date(2026, 8, 26, 2, 0, 0, 0, time.UTC) }
	assert.Equal(t, 15*time.Minute, a.darkPoolTick(context.Background()))
	assert.Equal(t, 1, dp.calculated)
}
