// Package calibrate turns trade feedback into blowup component weights.
// Outcomes arrive from the execution side via the API; once enough BLOWUP
// trades accumulate, the nightly calibration re-derives each component's
// weight from its observed F1 and hot-swaps the weights file the detector
// reloads.
package calibrate

import "github.com/aristath/hydra/internal/blowup"

// TradeFeedback is one closed trade reported by the execution engine.
type TradeFeedback struct {
	TradeID         string   `json:"trade_id"`
	Ticker          string   `json:"ticker"`
	Direction       string   `json:"direction"` // CALL or PUT
	Mode            string   `json:"mode"`      // BLOWUP trades drive calibration
	EntryTime       string   `json:"entry_time"`
	ExitTime        string   `json:"exit_time"`
	PnLPercent      float64  `json:"pnl_percent"`
	Conviction      int      `json:"conviction"`
	BlowupScore     int      `json:"blowup_score_at_entry"`
	BlowupDirection string   `json:"blowup_direction_at_entry"`
	Triggers        []string `json:"triggers_at_entry"`
	Regime          string   `json:"regime_at_entry"`
}

// TriggerPerformance is one trigger's scorecard across the feedback corpus.
type TriggerPerformance struct {
	Precision   float64 `json:"precision"`
	Recall      float64 `json:"recall"`
	F1          float64 `json:"f1_score"`
	AvgPnL      float64 `json:"avg_pnl"`
	TotalTrades int     `json:"total_trades"`
}

// CalibrationResult is the full output of one calibration run.
type CalibrationResult struct {
	Timestamp          string                        `json:"timestamp"`
	TotalTrades        int                           `json:"total_trades"`
	BlowupTrades       int                           `json:"blowup_trades"`
	WinRate            float64                       `json:"win_rate"`
	AvgPnL             float64                       `json:"avg_pnl"`
	OldWeights         blowup.Weights                `json:"old_weights"`
	NewWeights         blowup.Weights                `json:"new_weights"`
	TriggerPerformance map[string]TriggerPerformance `json:"trigger_performance"`
	DirectionAccuracy  float64                       `json:"direction_accuracy"`
	Precision          float64                       `json:"precision"`
	Recall             float64                       `json:"recall"`
	Notes              []string                      `json:"notes"`
	WeightsUpdated     bool                          `json:"weights_updated"`
}

// TradeStats summarizes recent feedback for the stats endpoint.
type TradeStats struct {
	TotalTrades  int     `json:"total_trades"`
	Wins         int     `json:"wins"`
	WinRate      float64 `json:"win_rate"`
	AvgPnL       float64 `json:"avg_pnl"`
	BlowupTrades int     `json:"blowup_trades"`
}

// CalibrationLogEntry is one persisted calibration, weights decoded.
type CalibrationLogEntry struct {
	Date              string         `json:"date"`
	TotalTrades       int            `json:"total_trades"`
	BlowupTrades      int            `json:"blowup_trades"`
	WinRate           float64        `json:"win_rate"`
	AvgPnL            float64        `json:"avg_pnl"`
	Precision         float64        `json:"precision"`
	Recall            float64        `json:"recall"`
	DirectionAccuracy float64        `json:"direction_accuracy"`
	OldWeights        blowup.Weights `json:"old_weights"`
	NewWeights        blowup.Weights `json:"new_weights"`
	Notes             []string       `json:"notes"`
}
