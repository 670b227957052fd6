// Package sequence matches today's market conditions against a durable
// history of daily fingerprints. Retrieval is hybrid: Titan embeddings
// give cosine-ranked candidates when the model provider is reachable,
// and a weighted field-agreement rule produces the same ranking when it
// is not. A language model then reads the top candidates; its fallback
// is a plain outcome-distribution summary.
package sequence

import "fmt"

// Fingerprint encodes one trading day's conditions. OutcomeNextDay is
// backfilled the following session; Embedding is stored but never
// serialized into API payloads.
type Fingerprint struct {
	Date           string    `json:"date"`
	GexRegime      string    `json:"gex_regime"`
	FlowBias       string    `json:"flow_bias"`
	VIXLevel       float64   `json:"vix_level"`
	SpyChangePct   float64   `json:"spy_change_pct"`
	SpyRangePct    float64   `json:"spy_range_pct"`
	BlowupScore    int       `json:"blowup_score"`
	DarkPoolBias   string    `json:"dark_pool_bias"`
	OutcomeNextDay *float64  `json:"outcome_next_day"`
	Embedding      []float64 `json:"-"`
}

// Text renders the fingerprint as prose for embedding.
func (f Fingerprint) Text() string {
	return fmt.Sprintf(
		"Market conditions on %s: GEX regime %s, institutional flow %s, VIX at %.1f, SPY moved %+.2f%% with %.2f%% range, blowup score %d, dark pool bias %s",
		f.Date, f.GexRegime, f.FlowBias, f.VIXLevel, f.SpyChangePct, f.SpyRangePct, f.BlowupScore, f.DarkPoolBias)
}

// Conditions is the live market state handed in by the aggregator.
type Conditions struct {
	GexRegime    string  `json:"gex_regime"`
	FlowBias     string  `json:"flow_bias"`
	VIXLevel     float64 `json:"vix_level"`
	SpyChangePct float64 `json:"spy_change_pct"`
	SpyRangePct  float64 `json:"spy_range_pct"`
	BlowupScore  int     `json:"blowup_score"`
	DarkPoolBias string  `json:"dark_pool_bias"`
}

// Match is one ranked historical candidate with a known outcome.
type Match struct {
	Date       string      `json:"date"`
	Similarity float64     `json:"similarity"`
	Conditions Fingerprint `json:"conditions"`
	Outcome    float64     `json:"outcome"`
}

// Analysis is the full sequence read for one request.
type Analysis struct {
	Timestamp          string     `json:"timestamp"`
	CurrentConditions  Conditions `json:"current_conditions"`
	SimilarSequences   []Match    `json:"similar_sequences"`
	PredictedDirection string     `json:"predicted_direction"`
	HistoricalWinRate  float64    `json:"historical_win_rate"`
	AverageOutcome     float64    `json:"average_outcome"`
	Commentary         string     `json:"analysis"`
	Confidence         float64    `json:"confidence"`
	LatencyMs          float64    `json:"latency_ms"`
}

// ConvictionResult is the sequence subsystem's vote on a direction.
type ConvictionResult struct {
	Modifier         int      `json:"modifier"`
	Reasons          []string `json:"reasons"`
	SimilarSequences int      `json:"similar_sequences"`
	AvgOutcome       float64  `json:"avg_outcome"`
}
