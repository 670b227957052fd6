// Package darkpool maps institutional block prints onto price levels.
// Off-exchange prints (TRF-reported, exchange 4) of at least 10k shares
// and $500k notional are clustered to half-dollar levels; buy and sell
// volume per level turn the clusters into support and resistance.
//
// Side attribution compares each print against the latest NBBO snapshot,
// which can lag the prints themselves by the polling interval. The
// misattribution this causes during fast moves is accepted rather than
// corrected; levels lean on volume concentration more than on side.
package darkpool

// Side is the inferred aggressor side of a print or level.
type Side string

const (
	SideBuy     Side = "BUY"
	SideSell    Side = "SELL"
	SideUnknown Side = "UNKNOWN"
)

// Strength tiers a level by dollar weight and print count.
type Strength string

const (
	StrengthLow      Strength = "LOW"
	StrengthMedium   Strength = "MEDIUM"
	StrengthHigh     Strength = "HIGH"
	StrengthVeryHigh Strength = "VERY_HIGH"
	StrengthUnknown  Strength = "UNKNOWN"
)

// Level is one half-dollar price cluster of institutional prints.
type Level struct {
	Price      float64  `json:"price"`
	Volume     int64    `json:"volume"`
	Notional   float64  `json:"notional"`
	TradeCount int      `json:"trade_count"`
	Side       Side     `json:"side"`
	Strength   Strength `json:"strength"`
	LastSeen   string   `json:"last_seen"`
}

// Snapshot is the dark-pool picture at one mapping tick.
type Snapshot struct {
	Timestamp          string   `json:"timestamp"`
	Ticker             string   `json:"ticker"`
	SpotPrice          float64  `json:"spot_price"`
	Levels             []Level  `json:"levels"`
	NearestSupport     *float64 `json:"nearest_support"`
	NearestResistance  *float64 `json:"nearest_resistance"`
	SupportStrength    Strength `json:"support_strength"`
	ResistanceStrength Strength `json:"resistance_strength"`
	TotalDarkVolume    int64    `json:"total_dark_volume"`
	TotalDarkNotional  float64  `json:"total_dark_notional"`
	BuyVolume          int64    `json:"buy_volume"`
	SellVolume         int64    `json:"sell_volume"`
}

// ConvictionResult is the dark-pool subsystem's vote on a trade plan.
type ConvictionResult struct {
	Modifier          int      `json:"modifier"`
	Reasons           []string `json:"reasons"`
	NearestSupport    *float64 `json:"nearest_support"`
	NearestResistance *float64 `json:"nearest_resistance"`
}
