package sequence

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/aristath/hydra/internal/clients/bedrock"
	"github.com/aristath/hydra/internal/market"
)

const (
	// DefaultTopK candidates go to the model for analysis.
	DefaultTopK = 5

	// historyDays bounds how far back matching looks.
	historyDays = 60

	analyzeMaxTokens = 300
)

const analysisSystemPrompt = `You are a quantitative trading analyst. Analyze historical market patterns to predict likely outcomes.

Given current market conditions and similar historical sequences, determine:
1. Most likely direction (BULLISH/BEARISH/NEUTRAL)
2. Expected magnitude of move
3. Confidence level based on pattern consistency

Be concise and data-driven. Focus on pattern recurrence and outcome distribution.`

// modelAPI is the slice of the language-model client the matcher needs.
type modelAPI interface {
	Available() bool
	Embed(ctx context.Context, text string) ([]float64, error)
	Converse(ctx context.Context, modelID, system, prompt string, maxTokens int32, temperature float32) (*bedrock.Response, error)
}

// Matcher ranks historical fingerprints against live conditions.
type Matcher struct {
	store *Store
	llm   modelAPI
	log   zerolog.Logger
	now   func() time.Time
}

// NewMatcher wires a sequence matcher over a fingerprint store.
func NewMatcher(store *Store, llm modelAPI, log zerolog.Logger) *Matcher {
	return &Matcher{
		store: store,
		llm:   llm,
		log:   log.With().Str("component", "sequence").Logger(),
		now:   time.Now,
	}
}

func cosineSimilarity(a, b []float64) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	normA := floats.Norm(a, 2)
	normB := floats.Norm(b, 2)
	if normA == 0 || normB == 0 {
		return 0
	}
	return floats.Dot(a, b) / (normA * normB)
}

// ruleSimilarity scores field agreement between two fingerprints on a
// fixed 7-point scale, normalized to [0,1]. It stands in for cosine
// ranking whenever either side lacks an embedding.
func ruleSimilarity(a, b Fingerprint) float64 {
	score := 0.0
	const maxScore = 7.0

	if a.GexRegime == b.GexRegime {
		score += 1.5
	}

	if a.FlowBias == b.FlowBias {
		score += 1.5
	} else if strings.Contains(a.FlowBias, "BULLISH") && strings.Contains(b.FlowBias, "BULLISH") {
		score += 0.75
	} else if strings.Contains(a.FlowBias, "BEARISH") && strings.Contains(b.FlowBias, "BEARISH") {
		score += 0.75
	}

	switch vixDiff := math.Abs(a.VIXLevel - b.VIXLevel); {
	case vixDiff < 2:
		score += 1.0
	case vixDiff < 5:
		score += 0.5
	}

	if (a.SpyChangePct > 0 && b.SpyChangePct > 0) || (a.SpyChangePct < 0 && b.SpyChangePct < 0) {
		score += 1.0
	}

	if math.Abs(a.SpyRangePct-b.SpyRangePct) < 0.5 {
		score += 0.5
	}

	switch blowupDiff := math.Abs(float64(a.BlowupScore - b.BlowupScore)); {
	case blowupDiff < 10:
		score += 1.0
	case blowupDiff < 20:
		score += 0.5
	}

	if a.DarkPoolBias == b.DarkPoolBias {
		score += 0.5
	}

	return score / maxScore
}

// fingerprintFromConditions fills unset fields with the same neutral
// defaults the aggregator reports when a subsystem is dark.
func fingerprintFromConditions(c Conditions, date string) Fingerprint {
	fp := Fingerprint{
		Date:         date,
		GexRegime:    c.GexRegime,
		FlowBias:     c.FlowBias,
		VIXLevel:     c.VIXLevel,
		SpyChangePct: c.SpyChangePct,
		SpyRangePct:  c.SpyRangePct,
		BlowupScore:  c.BlowupScore,
		DarkPoolBias: c.DarkPoolBias,
	}
	if fp.GexRegime == "" {
		fp.GexRegime = "UNKNOWN"
	}
	if fp.FlowBias == "" {
		fp.FlowBias = "NEUTRAL"
	}
	if fp.VIXLevel == 0 {
		fp.VIXLevel = 20.0
	}
	if fp.DarkPoolBias == "" {
		fp.DarkPoolBias = "NEUTRAL"
	}
	return fp
}

// FindSimilar ranks the stored history against the live conditions and
// returns the top candidates. Only days with a known next-day outcome
// are returned. topK <= 0 means DefaultTopK.
func (m *Matcher) FindSimilar(ctx context.Context, conditions Conditions, topK int) []Match {
	if topK <= 0 {
		topK = DefaultTopK
	}

	today := m.now().In(market.Eastern()).Format("2006-01-02")
	current := fingerprintFromConditions(conditions, today)

	var currentEmbedding []float64
	if m.llm != nil && m.llm.Available() {
		embedding, err := m.llm.Embed(ctx, current.Text())
		if err != nil {
			m.log.Warn().Err(err).Msg("embedding call failed, using rule similarity")
		} else {
			currentEmbedding = embedding
		}
	}

	cutoff := m.now().AddDate(0, 0, -historyDays).In(market.Eastern()).Format("2006-01-02")
	historical, err := m.store.LoadSince(cutoff)
	if err != nil {
		m.log.Error().Err(err).Msg("failed to load fingerprints")
		return nil
	}

	matches := make([]Match, 0, len(historical))
	for _, fp := range historical {
		if fp.OutcomeNextDay == nil {
			continue
		}

		var similarity float64
		if len(fp.Embedding) > 0 && len(currentEmbedding) > 0 {
			similarity = cosineSimilarity(currentEmbedding, fp.Embedding)
		} else {
			similarity = ruleSimilarity(current, fp)
		}

		candidate := fp
		candidate.Embedding = nil
		matches = append(matches, Match{
			Date:       fp.Date,
			Similarity: round4(similarity),
			Conditions: candidate,
			Outcome:    *fp.OutcomeNextDay,
		})
	}

	sort.SliceStable(matches, func(i, j int) bool { return matches[i].Similarity > matches[j].Similarity })
	if len(matches) > topK {
		matches = matches[:topK]
	}
	return matches
}

// Analyze finds similar days and asks the model what they imply for the
// next session; without the model it reports the outcome distribution.
func (m *Matcher) Analyze(ctx context.Context, conditions Conditions) *Analysis {
	start := time.Now()
	timestamp := m.now().UTC().Format(time.RFC3339)

	similar := m.FindSimilar(ctx, conditions, DefaultTopK)
	if len(similar) == 0 {
		return &Analysis{
			Timestamp:          timestamp,
			CurrentConditions:  conditions,
			SimilarSequences:   []Match{},
			PredictedDirection: "NEUTRAL",
			HistoricalWinRate:  0.5,
			AverageOutcome:     0.0,
			Commentary:         "No similar sequences found",
			Confidence:         0,
			LatencyMs:          0,
		}
	}

	outcomes := make([]float64, 0, len(similar))
	bullish := 0
	for _, s := range similar {
		outcomes = append(outcomes, s.Outcome)
		if s.Outcome > 0.1 {
			bullish++
		}
	}
	avgOutcome := stat.Mean(outcomes, nil)
	winRate := float64(bullish) / float64(len(outcomes))

	direction, confidence, commentary := m.modelRead(ctx, conditions, similar, avgOutcome)

	analysis := &Analysis{
		Timestamp:          timestamp,
		CurrentConditions:  conditions,
		SimilarSequences:   similar,
		PredictedDirection: direction,
		HistoricalWinRate:  round2(winRate),
		AverageOutcome:     round2(avgOutcome),
		Commentary:         commentary,
		Confidence:         confidence,
		LatencyMs:          math.Round(float64(time.Since(start).Microseconds())/100) / 10,
	}

	m.log.Info().
		Int("matches", len(similar)).
		Str("direction", direction).
		Float64("confidence", confidence).
		Float64("avg_outcome", analysis.AverageOutcome).
		Msg("sequence analysis complete")

	return analysis
}

// modelRead asks the model to read the candidate set, falling back to
// the statistical summary on unavailability, errors, or junk answers.
func (m *Matcher) modelRead(ctx context.Context, conditions Conditions, similar []Match, avgOutcome float64) (string, float64, string) {
	statDirection := "NEUTRAL"
	if avgOutcome > 0.1 {
		statDirection = "BULLISH"
	} else if avgOutcome < -0.1 {
		statDirection = "BEARISH"
	}
	statConfidence := 50 + float64(int(math.Abs(avgOutcome)*10))

	if m.llm == nil || !m.llm.Available() {
		summary := fmt.Sprintf("Pattern match based on %d similar days, avg outcome %+.2f%%", len(similar), avgOutcome)
		return statDirection, statConfidence, summary
	}

	resp, err := m.llm.Converse(ctx, bedrock.ModelNovaPro, analysisSystemPrompt, buildAnalysisPrompt(conditions, similar), analyzeMaxTokens, 0)
	if err != nil {
		m.log.Warn().Err(err).Msg("sequence analysis call failed, using statistics")
		return statDirection, statConfidence, fmt.Sprintf("Model unavailable: %v", err)
	}

	var parsed struct {
		PredictedDirection string  `json:"predicted_direction"`
		Confidence         float64 `json:"confidence"`
		KeyPattern         string  `json:"key_pattern"`
	}
	validDirection := func(d string) bool {
		return d == "BULLISH" || d == "BEARISH" || d == "NEUTRAL"
	}
	if err := json.Unmarshal([]byte(resp.Content), &parsed); err != nil || !validDirection(parsed.PredictedDirection) {
		return statDirection, statConfidence, resp.Content
	}

	return parsed.PredictedDirection, parsed.Confidence, parsed.KeyPattern
}

func buildAnalysisPrompt(conditions Conditions, similar []Match) string {
	lines := make([]string, 0, len(similar))
	for _, s := range similar {
		condJSON, _ := json.Marshal(s.Conditions)
		lines = append(lines, fmt.Sprintf("- %s: Similarity %.2f, Conditions: %s, Next day outcome: %+.2f%%",
			s.Date, s.Similarity, condJSON, s.Outcome))
	}
	currentJSON, _ := json.MarshalIndent(conditions, "", "  ")

	return fmt.Sprintf(`Current market conditions:
%s

Most similar historical sequences:
%s

Based on these %d similar historical patterns:
1. What is the most likely direction for the next trading session?
2. What is your confidence level (0-100)?
3. What is the key pattern driving this prediction?

Respond with JSON:
{
  "predicted_direction": "BULLISH" | "BEARISH" | "NEUTRAL",
  "confidence": 0-100,
  "expected_magnitude": "percentage range like 0.5-1.0%%",
  "key_pattern": "one sentence description"
}`, currentJSON, strings.Join(lines, "\n"), len(similar))
}

// RecordDay fingerprints a trading day for future matching, embedding
// the conditions when the model provider is reachable.
func (m *Matcher) RecordDay(ctx context.Context, fp Fingerprint) error {
	if m.llm != nil && m.llm.Available() {
		embedding, err := m.llm.Embed(ctx, fp.Text())
		if err != nil {
			m.log.Warn().Err(err).Str("date", fp.Date).Msg("embedding failed, storing fingerprint without vector")
		} else {
			fp.Embedding = embedding
		}
	}

	if err := m.store.Upsert(fp); err != nil {
		return err
	}
	m.log.Info().Str("date", fp.Date).Msg("recorded daily fingerprint")
	return nil
}

// UpdateOutcome backfills the next-day move for a recorded date.
func (m *Matcher) UpdateOutcome(date string, outcome float64) error {
	return m.store.UpdateOutcome(date, outcome)
}

// ConvictionModifier scores how the matched history supports a trade
// direction: win rate at or above 70% adds 15, above 60% adds 8, and
// below 40% costs 10.
func (m *Matcher) ConvictionModifier(ctx context.Context, tradeDirection string, conditions Conditions) ConvictionResult {
	similar := m.FindSimilar(ctx, conditions, DefaultTopK)
	// No comparable history means a neutral modifier with no reasons.
	if len(similar) == 0 {
		return ConvictionResult{Reasons: []string{}}
	}

	var sum float64
	wins := 0
	for _, s := range similar {
		sum += s.Outcome
		switch tradeDirection {
		case "BULLISH":
			if s.Outcome > 0 {
				wins++
			}
		case "BEARISH":
			if s.Outcome < 0 {
				wins++
			}
		}
	}
	avgOutcome := sum / float64(len(similar))

	modifier := 0
	reasons := []string{}

	if tradeDirection == "BULLISH" || tradeDirection == "BEARISH" {
		winRate := float64(wins) / float64(len(similar))
		label := strings.ToLower(tradeDirection)

		switch {
		case winRate >= 0.7:
			modifier += 15
			reasons = append(reasons, fmt.Sprintf("Historical win rate: %.0f%% %s", winRate*100, label))
		case winRate >= 0.6:
			modifier += 8
			reasons = append(reasons, fmt.Sprintf("Historical win rate: %.0f%% %s", winRate*100, label))
		case winRate < 0.4:
			modifier -= 10
			opposite := "bearish"
			if tradeDirection == "BEARISH" {
				opposite = "bullish"
			}
			reasons = append(reasons, fmt.Sprintf("Historical win rate: %.0f%% %s (%s history)", winRate*100, label, opposite))
		}
	}

	return ConvictionResult{
		Modifier:         modifier,
		Reasons:          reasons,
		SimilarSequences: len(similar),
		AvgOutcome:       round2(avgOutcome),
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}
