package sequence

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/hydra/internal/clients/bedrock"
	"github.com/aristath/hydra/internal/database"
)

type fakeModel struct {
	embeddings  map[string][]float64
	embedErr    error
	content     string
	converseErr error
	gotModel    string
	gotSystem   string
	gotPrompt   string
	embedCalls  int
}

func (f *fakeModel) Available() bool { return true }

// Embed keys vectors by date substring of the fingerprint text, so a
// test can pin what each stored day embeds to.
func (f *fakeModel) Embed(_ context.Context, text string) ([]float64, error) {
	f.embedCalls++
	if f.embedErr != nil {
		return nil, f.embedErr
	}
	for key, vec := range f.embeddings {
		if strings.Contains(text, key) {
			return vec, nil
		}
	}
	return []float64{1, 0, 0}, nil
}

func (f *fakeModel) Converse(_ context.Context, modelID, system, prompt string, _ int32, _ float32) (*bedrock.Response, error) {
	f.gotModel = modelID
	f.gotSystem = system
	f.gotPrompt = prompt
	if f.converseErr != nil {
		return nil, f.converseErr
	}
	return &bedrock.Response{Content: f.content, Model: modelID, LatencyMs: 42}, nil
}

func ptrF(v float64) *float64 { return &v }

func openMatcher(t *testing.T, llm modelAPI) *Matcher {
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

	m := NewMatcher(store, llm, zerolog.Nop())
	m.now = func() time.Time { return time.Date(2026, 8, 26, 15, 0, 0, 0, time.UTC) }
	return m
}

func TestFingerprintText(t *testing.T) {
	fp := Fingerprint{
		Date:         "2026-08-20",
		GexRegime:    "NEGATIVE",
		FlowBias:     "AGGRESSIVELY_BULLISH",
		VIXLevel:     19.5,
		SpyChangePct: 1.2,
		SpyRangePct:  1.5,
		BlowupScore:  35,
		DarkPoolBias: "BUY",
	}

	want := "Market conditions on 2026-08-20: GEX regime NEGATIVE, institutional flow AGGRESSIVELY_BULLISH, " +
		"VIX at 19.5, SPY moved +1.20% with 1.50% range, blowup score 35, dark pool bias BUY"
	assert.Equal(t, want, fp.Text())
}

func TestCosineSimilarity(t *testing.T) {
	assert.InDelta(t, 1.0, cosineSimilarity([]float64{1, 2, 3}, []float64{1, 2, 3}), 1e-9)
	assert.InDelta(t, 0.0, cosineSimilarity([]float64{1, 0}, []float64{0, 1}), 1e-9)
	assert.Zero(t, cosineSimilarity([]float64{1, 2}, []float64{1, 2, 3}))
	assert.Zero(t, cosineSimilarity([]float64{0, 0}, []float64{1, 1}))
	assert.Zero(t, cosineSimilarity(nil, nil))
}

func TestRuleSimilarity(t *testing.T) {
	current := Fingerprint{
		GexRegime: "NEGATIVE", FlowBias: "AGGRESSIVELY_BULLISH",
		VIXLevel: 20.0, SpyChangePct: 0.5, SpyRangePct: 1.0,
		BlowupScore: 30, DarkPoolBias: "BUY",
	}

	// gex 1.5 + flow 1.5 + vix 1.0 + change sign 1.0 + blowup 1.0 + dp 0.5
	closeDay := Fingerprint{
		GexRegime: "NEGATIVE", FlowBias: "AGGRESSIVELY_BULLISH",
		VIXLevel: 19.5, SpyChangePct: 1.2, SpyRangePct: 1.5,
		BlowupScore: 35, DarkPoolBias: "BUY",
	}
	assert.InDelta(t, 6.5/7.0, ruleSimilarity(current, closeDay), 1e-9)

	// vix 0.5 + change sign 1.0 + range 0.5 + blowup 0.5
	farDay := Fingerprint{
		GexRegime: "POSITIVE", FlowBias: "NEUTRAL",
		VIXLevel: 18.0, SpyChangePct: 0.3, SpyRangePct: 0.8,
		BlowupScore: 15, DarkPoolBias: "NEUTRAL",
	}
	assert.InDelta(t, 2.5/7.0, ruleSimilarity(current, farDay), 1e-9)

	assert.InDelta(t, 1.0, ruleSimilarity(current, current), 1e-9)

	// Flat days fail the strict sign check, everything else agrees.
	flat := current
	flat.SpyChangePct = 0
	assert.InDelta(t, 6.0/7.0, ruleSimilarity(flat, flat), 1e-9)

	// Partial flow credit for matching tilt at different intensity.
	tilted := closeDay
	tilted.FlowBias = "MODERATELY_BULLISH"
	assert.InDelta(t, 5.75/7.0, ruleSimilarity(current, tilted), 1e-9)
}

func TestFingerprintFromConditions(t *testing.T) {
	fp := fingerprintFromConditions(Conditions{}, "2026-08-26")
	assert.Equal(t, "2026-08-26", fp.Date)
	assert.Equal(t, "UNKNOWN", fp.GexRegime)
	assert.Equal(t, "NEUTRAL", fp.FlowBias)
	assert.InDelta(t, 20.0, fp.VIXLevel, 0.001)
	assert.Equal(t, "NEUTRAL", fp.DarkPoolBias)

	fp = fingerprintFromConditions(Conditions{
		GexRegime: "NEGATIVE", FlowBias: "MODERATELY_BEARISH",
		VIXLevel: 24.5, SpyChangePct: -0.8, SpyRangePct: 1.4,
		BlowupScore: 55, DarkPoolBias: "SELL",
	}, "2026-08-26")
	assert.Equal(t, "NEGATIVE", fp.GexRegime)
	assert.Equal(t, "MODERATELY_BEARISH", fp.FlowBias)
	assert.InDelta(t, 24.5, fp.VIXLevel, 0.001)
	assert.InDelta(t, -0.8, fp.SpyChangePct, 0.001)
	assert.Equal(t, 55, fp.BlowupScore)
	assert.Equal(t, "SELL", fp.DarkPoolBias)
}

func TestFindSimilar_EmbeddingPath(t *testing.T) {
	llm := &fakeModel{embeddings: map[string][]float64{
		"2026-08-20": {1, 0, 0},
		"2026-08-21": {0.6, 0.8, 0},
		"2026-08-24": {0, 1, 0},
	}}
	m := openMatcher(t, llm)
	ctx := context.Background()

	require.NoError(t, m.RecordDay(ctx, Fingerprint{Date: "2026-08-20", GexRegime: "NEGATIVE", OutcomeNextDay: ptrF(0.8)}))
	require.NoError(t, m.RecordDay(ctx, Fingerprint{Date: "2026-08-21", GexRegime: "POSITIVE", OutcomeNextDay: ptrF(-0.5)}))
	require.NoError(t, m.RecordDay(ctx, Fingerprint{Date: "2026-08-24", GexRegime: "NEGATIVE"}))

	matches := m.FindSimilar(ctx, Conditions{GexRegime: "NEGATIVE"}, 0)

	require.Len(t, matches, 2, "days without an outcome are excluded")
	assert.Equal(t, "2026-08-20", matches[0].Date)
	assert.InDelta(t, 1.0, matches[0].Similarity, 0.0001)
	assert.InDelta(t, 0.8, matches[0].Outcome, 0.001)
	assert.Equal(t, "2026-08-21", matches[1].Date)
	assert.InDelta(t, 0.6, matches[1].Similarity, 0.0001)

	assert.Nil(t, matches[0].Conditions.Embedding, "vectors stay out of API payloads")
	assert.Equal(t, "NEGATIVE", matches[0].Conditions.GexRegime)

	assert.Equal(t, 4, llm.embedCalls, "three recorded days plus the live conditions")
}

func TestFindSimilar_RuleFallbackWithoutModel(t *testing.T) {
	m := openMatcher(t, nil)
	ctx := context.Background()

	require.NoError(t, m.store.Upsert(Fingerprint{
		Date: "2026-08-20", GexRegime: "NEGATIVE", FlowBias: "AGGRESSIVELY_BULLISH",
		VIXLevel: 19.5, SpyChangePct: 1.2, SpyRangePct: 1.5, BlowupScore: 35,
		DarkPoolBias: "BUY", OutcomeNextDay: ptrF(0.8),
	}))
	require.NoError(t, m.store.Upsert(Fingerprint{
		Date: "2026-08-21", GexRegime: "POSITIVE", FlowBias: "NEUTRAL",
		VIXLevel: 18.0, SpyChangePct: 0.3, SpyRangePct: 0.8, BlowupScore: 15,
		DarkPoolBias: "NEUTRAL", OutcomeNextDay: ptrF(-0.2),
	}))
	require.NoError(t, m.store.Upsert(Fingerprint{
		Date: "2026-08-24", GexRegime: "NEGATIVE", OutcomeNextDay: nil,
	}))

	conditions := Conditions{
		GexRegime: "NEGATIVE", FlowBias: "AGGRESSIVELY_BULLISH",
		VIXLevel: 20.0, SpyChangePct: 0.5, SpyRangePct: 1.0,
		BlowupScore: 30, DarkPoolBias: "BUY",
	}

	matches := m.FindSimilar(ctx, conditions, 0)
	require.Len(t, matches, 2)
	assert.Equal(t, "2026-08-20", matches[0].Date)
	assert.InDelta(t, 0.9286, matches[0].Similarity, 0.0001)
	assert.Equal(t, "2026-08-21", matches[1].Date)
	assert.InDelta(t, 0.3571, matches[1].Similarity, 0.0001)

	top := m.FindSimilar(ctx, conditions, 1)
	require.Len(t, top, 1)
	assert.Equal(t, "2026-08-20", top[0].Date)
}

func TestFindSimilar_IgnoresDaysBeyondWindow(t *testing.T) {
	m := openMatcher(t, nil)

	require.NoError(t, m.store.Upsert(Fingerprint{Date: "2026-03-02", GexRegime: "NEGATIVE", OutcomeNextDay: ptrF(1.0)}))
	require.NoError(t, m.store.Upsert(Fingerprint{Date: "2026-08-20", GexRegime: "NEGATIVE", OutcomeNextDay: ptrF(0.4)}))

	matches := m.FindSimilar(context.Background(), Conditions{GexRegime: "NEGATIVE"}, 0)
	require.Len(t, matches, 1)
	assert.Equal(t, "2026-08-20", matches[0].Date)
}

func TestRecordDay_EmbedFailureStoresWithoutVector(t *testing.T) {
	llm := &fakeModel{embedErr: errors.New("timeout")}
	m := openMatcher(t, llm)

	require.NoError(t, m.RecordDay(context.Background(), Fingerprint{Date: "2026-08-20", GexRegime: "POSITIVE"}))

	rows, err := m.store.LoadSince("2026-01-01")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Nil(t, rows[0].Embedding)
	assert.Equal(t, "POSITIVE", rows[0].GexRegime)
}

func TestAnalyze_NoHistory(t *testing.T) {
	m := openMatcher(t, nil)

	a := m.Analyze(context.Background(), Conditions{GexRegime: "NEGATIVE"})

	assert.Equal(t, "2026-08-26T15:00:00Z", a.Timestamp)
	assert.Equal(t, "NEUTRAL", a.PredictedDirection)
	assert.InDelta(t, 0.5, a.HistoricalWinRate, 0.001)
	assert.Zero(t, a.AverageOutcome)
	assert.Equal(t, "No similar sequences found", a.Commentary)
	assert.Zero(t, a.Confidence)
	assert.Zero(t, a.LatencyMs)
	require.NotNil(t, a.SimilarSequences)
	assert.Empty(t, a.SimilarSequences)
}

func seedHistory(t *testing.T, m *Matcher, outcomes ...float64) {
	t.Helper()
	base := time.Date(2026, 8, 10, 0, 0, 0, 0, time.UTC)
	for i, outcome := range outcomes {
		require.NoError(t, m.store.Upsert(Fingerprint{
			Date:           base.AddDate(0, 0, i).Format("2006-01-02"),
			GexRegime:      "NEGATIVE",
			FlowBias:       "NEUTRAL",
			VIXLevel:       20.0,
			DarkPoolBias:   "NEUTRAL",
			OutcomeNextDay: ptrF(outcome),
		}))
	}
}

func TestAnalyze_StatisticalFallback(t *testing.T) {
	m := openMatcher(t, nil)
	seedHistory(t, m, 0.8, -0.2, 0.5)

	a := m.Analyze(context.Background(), Conditions{GexRegime: "NEGATIVE"})

	require.Len(t, a.SimilarSequences, 3)
	assert.Equal(t, "BULLISH", a.PredictedDirection)
	assert.InDelta(t, 53, a.Confidence, 0.001)
	assert.InDelta(t, 0.37, a.AverageOutcome, 0.001)
	assert.InDelta(t, 0.67, a.HistoricalWinRate, 0.001)
	assert.Equal(t, "Pattern match based on 3 similar days, avg outcome +0.37%", a.Commentary)
}

func TestAnalyze_ModelPath(t *testing.T) {
	llm := &fakeModel{content: `{"predicted_direction": "BEARISH", "confidence": 82, "key_pattern": "Negative gamma with bearish flow"}`}
	m := openMatcher(t, llm)
	seedHistory(t, m, 0.8, -0.2, 0.5)

	a := m.Analyze(context.Background(), Conditions{GexRegime: "NEGATIVE"})

	assert.Equal(t, "BEARISH", a.PredictedDirection)
	assert.InDelta(t, 82, a.Confidence, 0.001)
	assert.Equal(t, "Negative gamma with bearish flow", a.Commentary)

	assert.Equal(t, bedrock.ModelNovaPro, llm.gotModel)
	assert.Contains(t, llm.gotSystem, "quantitative trading analyst")
	assert.Contains(t, llm.gotPrompt, "Most similar historical sequences")
	assert.Contains(t, llm.gotPrompt, "Next day outcome: +0.80%")
}

func TestAnalyze_ModelGarbageFallsBack(t *testing.T) {
	for _, content := range []string{
		"the market looks heavy here",
		`{"predicted_direction": "SIDEWAYS", "confidence": 90, "key_pattern": "chop"}`,
	} {
		llm := &fakeModel{content: content}
		m := openMatcher(t, llm)
		seedHistory(t, m, 0.8, -0.2, 0.5)

		a := m.Analyze(context.Background(), Conditions{GexRegime: "NEGATIVE"})

		assert.Equal(t, "BULLISH", a.PredictedDirection)
		assert.InDelta(t, 53, a.Confidence, 0.001)
		assert.Equal(t, content, a.Commentary, "raw reply is kept as commentary")
	}
}

func TestAnalyze_ModelErrorUsesStats(t *testing.T) {
	llm := &fakeModel{converseErr: errors.New("throttled")}
	m := openMatcher(t, llm)
	seedHistory(t, m, 0.8, -0.2, 0.5)

	a := m.Analyze(context.Background(), Conditions{GexRegime: "NEGATIVE"})

	assert.Equal(t, "BULLISH", a.PredictedDirection)
	assert.InDelta(t, 53, a.Confidence, 0.001)
	assert.Equal(t, "Model unavailable: throttled", a.Commentary)
}

func TestConvictionModifier_NoHistory(t *testing.T) {
	m := openMatcher(t, nil)

	res := m.ConvictionModifier(context.Background(), "BULLISH", Conditions{})

	assert.Zero(t, res.Modifier)
	assert.Empty(t, res.Reasons)
	assert.Zero(t, res.SimilarSequences)
}

func TestConvictionModifier_WinRateTiers(t *testing.T) {
	cases := []struct {
		name       string
		outcomes   []float64
		direction  string
		modifier   int
		reason     string
		avgOutcome float64
	}{
		{
			name:     "strong bullish history",
			outcomes: []float64{0.5, 0.3, 0.8, -0.2}, direction: "BULLISH",
			modifier: 15, reason: "Historical win rate: 75% bullish", avgOutcome: 0.35,
		},
		{
			name:     "decent bullish history",
			outcomes: []float64{0.5, 0.3, 0.8, -0.2, -0.1}, direction: "BULLISH",
			modifier: 8, reason: "Historical win rate: 60% bullish", avgOutcome: 0.26,
		},
		{
			name:     "history against the trade",
			outcomes: []float64{-0.5, -0.3, 0.2}, direction: "BULLISH",
			modifier: -10, reason: "Historical win rate: 33% bullish (bearish history)", avgOutcome: -0.2,
		},
		{
			name:     "same history supports the short",
			outcomes: []float64{-0.5, -0.3, 0.2}, direction: "BEARISH",
			modifier: 8, reason: "Historical win rate: 67% bearish", avgOutcome: -0.2,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			m := openMatcher(t, nil)
			seedHistory(t, m, tc.outcomes...)

			res := m.ConvictionModifier(context.Background(), tc.direction, Conditions{GexRegime: "NEGATIVE"})

			assert.Equal(t, tc.modifier, res.Modifier)
			require.Len(t, res.Reasons, 1)
			assert.Equal(t, tc.reason, res.Reasons[0])
			assert.Equal(t, len(tc.outcomes), res.SimilarSequences)
			assert.InDelta(t, tc.avgOutcome, res.AvgOutcome, 0.001)
		})
	}
}

func TestConvictionModifier_MidBandIsSilent(t *testing.T) {
	m := openMatcher(t, nil)
	seedHistory(t, m, 0.5, -0.5)

	res := m.ConvictionModifier(context.Background(), "BULLISH", Conditions{GexRegime: "NEGATIVE"})

	assert.Zero(t, res.Modifier)
	require.NotNil(t, res.Reasons)
	assert.Empty(t, res.Reasons)
	assert.Equal(t, 2, res.SimilarSequences)
	assert.Zero(t, res.AvgOutcome)
}
