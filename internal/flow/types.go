// Package flow classifies institutional options-flow pressure from the
// recent option trade tape. Premium is aggregated per side with sweep
// counts, then an LLM labels the institutional bias; when the model is
// unavailable or answers garbage, a deterministic premium-ratio rule
// produces the same label set so the subsystem always yields a snapshot.
package flow

// Bias is the institutional posture read from the tape.
type Bias string

const (
	BiasAggressivelyBullish Bias = "AGGRESSIVELY_BULLISH"
	BiasModeratelyBullish   Bias = "MODERATELY_BULLISH"
	BiasNeutral             Bias = "NEUTRAL"
	BiasModeratelyBearish   Bias = "MODERATELY_BEARISH"
	BiasAggressivelyBearish Bias = "AGGRESSIVELY_BEARISH"
)

// LargestTrade is the single biggest premium print in the batch.
type LargestTrade struct {
	Type    string  `json:"type"`
	Premium float64 `json:"premium"`
	Ticker  string  `json:"ticker"`
	Size    float64 `json:"size"`
	Price   float64 `json:"price"`
}

// Snapshot is the flow state at one classification tick.
type Snapshot struct {
	Timestamp           string        `json:"timestamp"`
	Ticker              string        `json:"ticker"`
	NetPremiumCalls     float64       `json:"net_premium_calls"`
	NetPremiumPuts      float64       `json:"net_premium_puts"`
	PremiumRatio        float64       `json:"premium_ratio"`
	SweepCountCalls     int           `json:"sweep_count_calls"`
	SweepCountPuts      int           `json:"sweep_count_puts"`
	LargestTrade        *LargestTrade `json:"largest_trade"`
	InstitutionalBias   Bias          `json:"institutional_bias"`
	Confidence          float64       `json:"confidence"`
	TotalTradesAnalyzed int           `json:"total_trades_analyzed"`
	Analysis            string        `json:"analysis"`
	LatencyMs           int64         `json:"latency_ms"`
}

// ConvictionResult is the flow subsystem's vote on a directional trade.
type ConvictionResult struct {
	Modifier          int      `json:"modifier"`
	Reasons           []string `json:"reasons"`
	InstitutionalBias Bias     `json:"institutional_bias,omitempty"`
	Confidence        float64  `json:"confidence"`
}
