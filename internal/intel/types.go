package intel

import (
	"github.com/aristath/hydra/internal/darkpool"
	"github.com/aristath/hydra/internal/flow"
	"github.com/aristath/hydra/internal/gamma"
	"github.com/aristath/hydra/internal/sequence"
)

// Intelligence is the flat master snapshot served to consumers. Every
// field has a defined default so the shape is answerable even when no
// subsystem has published yet.
type Intelligence struct {
	Timestamp string `json:"timestamp"`

	BlowupProbability    int      `json:"blowup_probability"`
	BlowupDirection      string   `json:"blowup_direction"`
	BlowupRegime         string   `json:"blowup_regime"`
	BlowupRecommendation string   `json:"blowup_recommendation"`
	BlowupTriggers       []string `json:"blowup_triggers"`

	GexRegime          string    `json:"gex_regime"`
	GexTotal           float64   `json:"gex_total"`
	GexFlipPoint       *float64  `json:"gex_flip_point"`
	GexFlipDistancePct float64   `json:"gex_flip_distance_pct"`
	GexCharmPerHour    float64   `json:"gex_charm_per_hour"`
	GexKeySupport      []float64 `json:"gex_key_support"`
	GexKeyResistance   []float64 `json:"gex_key_resistance"`

	FlowInstitutionalBias string  `json:"flow_institutional_bias"`
	FlowConfidence        float64 `json:"flow_confidence"`
	FlowPremiumCalls      float64 `json:"flow_premium_calls"`
	FlowPremiumPuts       float64 `json:"flow_premium_puts"`
	FlowSweepDirection    string  `json:"flow_sweep_direction"`

	DpNearestSupport     *float64 `json:"dp_nearest_support"`
	DpNearestResistance  *float64 `json:"dp_nearest_resistance"`
	DpSupportStrength    string   `json:"dp_support_strength"`
	DpResistanceStrength string   `json:"dp_resistance_strength"`
	DpBuyVolume          int64    `json:"dp_buy_volume"`
	DpSellVolume         int64    `json:"dp_sell_volume"`

	SequenceSimilarCount       int     `json:"sequence_similar_count"`
	SequencePredictedDirection string  `json:"sequence_predicted_direction"`
	SequenceHistoricalWinRate  float64 `json:"sequence_historical_win_rate"`
	SequenceAvgOutcome         float64 `json:"sequence_avg_outcome"`

	ComponentsHealthy int `json:"components_healthy"`
	ComponentsTotal   int `json:"components_total"`
}

// ConvictionBreakdown keeps each subsystem's full vote alongside the
// composed total.
type ConvictionBreakdown struct {
	Gex      gamma.ConvictionResult    `json:"gex"`
	Flow     flow.ConvictionResult     `json:"flow"`
	DarkPool darkpool.ConvictionResult `json:"dark_pool"`
	Sequence sequence.ConvictionResult `json:"sequence"`
}

// Conviction is the composed vote for one proposed trade.
type Conviction struct {
	TotalModifier  int                 `json:"total_modifier"`
	Modifiers      ConvictionBreakdown `json:"modifiers"`
	Reasons        []string            `json:"reasons"`
	TradeDirection string              `json:"trade_direction"`
}
