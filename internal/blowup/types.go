// Package blowup computes the probability of a violent SPY move in the next
// 30 minutes. Eight weighted components (volatility level, flow imbalance,
// crypto leverage, prior-day gap, event proximity, cross-asset alignment,
// volume surge, breadth) each contribute a normalized 0-1 score; the
// weighted sum becomes a 0-100 probability with a direction, regime and
// trade recommendation attached.
//
// Component weights start from defaults and are recalibrated nightly from
// trade feedback (see internal/calibrate).
package blowup

// Direction is the expected side of the move.
type Direction string

const (
	DirectionBullish Direction = "BULLISH"
	DirectionBearish Direction = "BEARISH"
	DirectionNeutral Direction = "NEUTRAL"
)

// Regime is the broad market state inferred from the components.
type Regime string

const (
	RegimeRiskOn     Regime = "RISK_ON"
	RegimeRiskOff    Regime = "RISK_OFF"
	RegimeTransition Regime = "TRANSITION"
	RegimeUnknown    Regime = "UNKNOWN"
)

// Recommendation is the trade posture implied by score, direction and data
// confidence.
type Recommendation string

const (
	RecommendNoTrade         Recommendation = "NO_TRADE"
	RecommendScalpOnly       Recommendation = "SCALP_ONLY"
	RecommendStraddle        Recommendation = "STRADDLE"
	RecommendDirectionalPut  Recommendation = "DIRECTIONAL_PUT"
	RecommendDirectionalCall Recommendation = "DIRECTIONAL_CALL"
)

// Component names double as weight map keys and trigger labels.
const (
	compVIXInversion   = "vix_inversion"
	compFlowImbalance  = "flow_imbalance"
	compCryptoCascade  = "crypto_cascade"
	compPremarketGap   = "premarket_gap"
	compEventProximity = "event_proximity"
	compCrossAsset     = "cross_asset"
	compVolumeSurge    = "volume_surge"
	compBreadth        = "breadth"
)

// ComponentScore is one component's contribution to the blowup score.
type ComponentScore struct {
	Name          string                 `json:"name"`
	RawValue      float64                `json:"raw_value"` // normalized 0-1
	Weight        float64                `json:"weight"`
	WeightedValue float64                `json:"weighted_value"`
	Source        string                 `json:"source"`
	Healthy       bool                   `json:"healthy"`
	Details       map[string]interface{} `json:"details"`
}

// EventSoon is an upcoming scheduled release surfaced by the event
// proximity component.
type EventSoon struct {
	Name         string `json:"name"`
	MinutesUntil int    `json:"minutes_until"`
	Datetime     string `json:"datetime"`
}

// Result is one complete blowup calculation.
type Result struct {
	BlowupProbability int              `json:"blowup_probability"` // 0-100
	Direction         Direction        `json:"direction"`
	Regime            Regime           `json:"regime"`
	Confidence        float64          `json:"confidence"` // healthy components / total
	Triggers          []string         `json:"triggers"`
	Recommendation    Recommendation   `json:"recommendation"`
	EventsNext30Min   []EventSoon      `json:"events_next_30min"`
	Timestamp         string           `json:"timestamp"`
	Components        []ComponentScore `json:"components"`
}

// ScorePoint is a compact history entry for trend displays.
type ScorePoint struct {
	Timestamp string    `json:"timestamp"`
	Score     int       `json:"score"`
	Direction Direction `json:"direction"`
}
