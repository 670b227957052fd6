package server

import (
	"encoding/json"
	"net/http"
	"os"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/aristath/hydra/internal/blowup"
	"github.com/aristath/hydra/internal/calibrate"
)

type feedbackAPI interface {
	RecordTrade(trade calibrate.TradeFeedback) error
	TradeStats(days int) (calibrate.TradeStats, error)
}

type calibratorAPI interface {
	Calibrate() (*calibrate.CalibrationResult, error)
}

type weightsAPI interface {
	Weights() blowup.Weights
	ReloadWeights()
}

// CalibrationHandlers accepts trade feedback and serves the calibration
// loop: stats, current weights, and manual calibration runs.
type CalibrationHandlers struct {
	feedback    feedbackAPI
	calibrator  calibratorAPI
	detector    weightsAPI
	weightsPath string
	log         zerolog.Logger
}

// NewCalibrationHandlers creates the calibration handler group.
func NewCalibrationHandlers(feedback feedbackAPI, calibrator calibratorAPI, detector weightsAPI, weightsPath string, log zerolog.Logger) *CalibrationHandlers {
	return &CalibrationHandlers{
		feedback:    feedback,
		calibrator:  calibrator,
		detector:    detector,
		weightsPath: weightsPath,
		log:         log.With().Str("handler", "calibration").Logger(),
	}
}

// RegisterRoutes registers the calibration routes on the /api router.
func (h *CalibrationHandlers) RegisterRoutes(r chi.Router) {
	r.Post("/trade-result", h.HandleTradeResult)
	r.Get("/calibration/stats", h.HandleGetStats)
	r.Get("/calibration/weights", h.HandleGetWeights)
	r.Post("/calibration/run", h.HandleRunCalibration)
}

// HandleTradeResult handles POST /api/trade-result: one closed trade from
// the execution side. Duplicate trade ids overwrite in place, so retries
// are harmless.
func (h *CalibrationHandlers) HandleTradeResult(w http.ResponseWriter, r *http.Request) {
	var trade calibrate.TradeFeedback
	if err := json.NewDecoder(r.Body).Decode(&trade); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.feedback.RecordTrade(trade); err != nil {
		h.log.Error().Err(err).Str("trade_id", trade.TradeID).Msg("Trade feedback rejected")
		writeJSON(w, map[string]interface{}{
			"status": "error",
			"error":  err.Error(),
		})
		return
	}

	h.log.Info().
		Str("trade_id", trade.TradeID).
		Str("ticker", trade.Ticker).
		Float64("pnl_percent", trade.PnLPercent).
		Msg("Trade feedback recorded")

	writeJSON(w, map[string]interface{}{
		"status":   "ok",
		"trade_id": trade.TradeID,
		"recorded": true,
	})
}

// HandleGetStats handles GET /api/calibration/stats?days=
func (h *CalibrationHandlers) HandleGetStats(w http.ResponseWriter, r *http.Request) {
	days := 30
	if raw := r.URL.Query().Get("days"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 {
			days = v
		}
	}

	stats, err := h.feedback.TradeStats(days)
	if err != nil {
		h.log.Error().Err(err).Msg("Trade stats query failed")
		writeJSON(w, map[string]interface{}{"error": err.Error()})
		return
	}
	writeJSON(w, stats)
}

// HandleGetWeights handles GET /api/calibration/weights. Source reports
// whether the weights came from a calibration run or are still defaults.
func (h *CalibrationHandlers) HandleGetWeights(w http.ResponseWriter, r *http.Request) {
	source := "default"
	if _, err := os.Stat(h.weightsPath); err == nil {
		source = "calibrated"
	}

	writeJSON(w, map[string]interface{}{
		"weights": h.detector.Weights(),
		"source":  source,
	})
}

// HandleRunCalibration handles POST /api/calibration/run, the manual
// trigger for the nightly job. A successful run hot-reloads the scorer's
// weights; too few trades reports skipped rather than an error.
func (h *CalibrationHandlers) HandleRunCalibration(w http.ResponseWriter, r *http.Request) {
	result, err := h.calibrator.Calibrate()
	if err != nil {
		h.log.Error().Err(err).Msg("Calibration failed")
		writeJSON(w, map[string]interface{}{
			"status": "error",
			"error":  err.Error(),
		})
		return
	}
	if result == nil {
		writeJSON(w, map[string]interface{}{
			"status": "skipped",
			"reason": "Not enough trades for calibration",
		})
		return
	}

	h.detector.ReloadWeights()

	writeJSON(w, map[string]interface{}{
		"status": "ok",
		"calibration": map[string]interface{}{
			"total_trades": result.TotalTrades,
			"win_rate":     result.WinRate,
			"precision":    result.Precision,
			"recall":       result.Recall,
			"new_weights":  result.NewWeights,
			"notes":        result.Notes,
		},
	})
}
