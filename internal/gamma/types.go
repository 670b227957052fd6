// Package gamma computes dealer gamma exposure (GEX) from the same-day
// SPY option chain. The sign of the aggregate book decides how dealer
// hedging feeds back into price: long gamma means dealers fade moves and
// volatility is suppressed, short gamma means they chase moves and trends
// extend. Alongside the dollar totals the engine derives the flip point
// where that behavior inverts, charm and vanna flows, and the high-GEX
// strikes that act as intraday support and resistance.
package gamma

// Regime describes which way dealer hedging pushes price.
type Regime string

const (
	RegimePositive Regime = "POSITIVE" // dealers fade moves, mean reversion
	RegimeNegative Regime = "NEGATIVE" // dealers chase moves, trends extend
	RegimeNeutral  Regime = "NEUTRAL"  // spot within 1% of the flip point
	RegimeUnknown  Regime = "UNKNOWN"
)

// Snapshot is the full GEX state at one calculation tick. FlipPoint is nil
// when cumulative GEX never changes sign across the chain.
type Snapshot struct {
	Timestamp        string    `json:"timestamp"`
	SpotPrice        float64   `json:"spot_price"`
	TotalGEX         float64   `json:"total_gex"`
	CallGEX          float64   `json:"call_gex"`
	PutGEX           float64   `json:"put_gex"`
	FlipPoint        *float64  `json:"flip_point"`
	FlipDistancePct  float64   `json:"flip_distance_pct"`
	Regime           Regime    `json:"regime"`
	CharmFlowPerHour float64   `json:"charm_flow_per_hour"`
	VannaExposure    float64   `json:"vanna_exposure"`
	KeySupport       []float64 `json:"key_support"`
	KeyResistance    []float64 `json:"key_resistance"`
	Magnets          []float64 `json:"magnets"`
	RefreshSeconds   int       `json:"refresh_interval_seconds"`
	OptionsCount     int       `json:"options_count"`
}

// ConvictionResult is the gamma subsystem's vote on a directional trade.
type ConvictionResult struct {
	Modifier        int      `json:"modifier"`
	Reasons         []string `json:"reasons"`
	Regime          Regime   `json:"regime"`
	FlipDistancePct float64  `json:"flip_distance_pct"`
}
