package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/aristath/hydra/internal/blowup"
	"github.com/aristath/hydra/internal/darkpool"
	"github.com/aristath/hydra/internal/flow"
	"github.com/aristath/hydra/internal/gamma"
	"github.com/aristath/hydra/internal/intel"
	"github.com/aristath/hydra/internal/sequence"
)

type detectorAPI interface {
	Calculate(ctx context.Context) *blowup.Result
	Last() *blowup.Result
	RecentScores(count int) []blowup.ScorePoint
}

type intelAPI interface {
	Snapshot() *intel.Intelligence
	Conviction(ctx context.Context, tradeDirection string, entryPrice, stopPrice, targetPrice float64) *intel.Conviction
	SequenceAnalysis(ctx context.Context) *sequence.Analysis
}

type gexAPI interface {
	Calculate(ctx context.Context) *gamma.Snapshot
	Last() *gamma.Snapshot
}

type flowAPI interface {
	Calculate(ctx context.Context) *flow.Snapshot
	Last() *flow.Snapshot
}

type darkPoolAPI interface {
	Calculate(ctx context.Context) *darkpool.Snapshot
	Last() *darkpool.Snapshot
}

// IntelHandlers serves the scorer and the auxiliary intelligence layers.
type IntelHandlers struct {
	detector detectorAPI
	intel    intelAPI
	gex      gexAPI
	flow     flowAPI
	darkPool darkPoolAPI
	calendar calendarAPI
	scanner  scannerAPI
	log      zerolog.Logger
}

// NewIntelHandlers creates the intelligence handler group.
func NewIntelHandlers(detector detectorAPI, aggregator intelAPI, gex gexAPI, flowDecoder flowAPI, dpMapper darkPoolAPI, calendar calendarAPI, scanner scannerAPI, log zerolog.Logger) *IntelHandlers {
	return &IntelHandlers{
		detector: detector,
		intel:    aggregator,
		gex:      gex,
		flow:     flowDecoder,
		darkPool: dpMapper,
		calendar: calendar,
		scanner:  scanner,
		log:      log.With().Str("handler", "intel").Logger(),
	}
}

// RegisterRoutes registers the intelligence routes on the /api router.
func (h *IntelHandlers) RegisterRoutes(r chi.Router) {
	r.Get("/blowup", h.HandleGetBlowup)
	r.Get("/blowup/history", h.HandleGetBlowupHistory)
	r.Get("/intelligence", h.HandleGetIntelligence)
	r.Get("/predator", h.HandleGetPredator)
	r.Get("/gex", h.HandleGetGex)
	r.Get("/flow", h.HandleGetFlow)
	r.Get("/darkpool", h.HandleGetDarkPool)
	r.Post("/sequence/analyze", h.HandleSequenceAnalyze)
	r.Post("/conviction", h.HandleConviction)
}

// HandleGetBlowup handles GET /api/blowup. Serves the cached tick when one
// exists; computes a fresh one otherwise so the endpoint always answers.
func (h *IntelHandlers) HandleGetBlowup(w http.ResponseWriter, r *http.Request) {
	result := h.detector.Last()
	if result == nil {
		result = h.detector.Calculate(r.Context())
	}
	writeJSON(w, result)
}

// HandleGetBlowupHistory handles GET /api/blowup/history?count=
func (h *IntelHandlers) HandleGetBlowupHistory(w http.ResponseWriter, r *http.Request) {
	count := 10
	if raw := r.URL.Query().Get("count"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 {
			count = v
		}
	}

	writeJSON(w, map[string]interface{}{
		"scores": h.detector.RecentScores(count),
		"count":  count,
	})
}

// HandleGetIntelligence handles GET /api/intelligence: the single composite
// the execution side polls every minute. It must always answer; every field
// degrades to a defined default rather than an error.
func (h *IntelHandlers) HandleGetIntelligence(w http.ResponseWriter, r *http.Request) {
	result := h.detector.Last()
	if result == nil {
		result = h.detector.Calculate(r.Context())
	}

	upcoming := h.calendar.UpcomingForAPI(24)
	next30 := upcoming[:0:0]
	for _, e := range upcoming {
		if e.MinutesUntil >= -30 && e.MinutesUntil <= 30 {
			next30 = append(next30, e)
		}
	}
	if len(upcoming) > 5 {
		upcoming = upcoming[:5]
	}

	healthy := 0
	for _, c := range result.Components {
		if c.Healthy {
			healthy++
		}
	}

	summary := h.scanner.Summary()

	writeJSON(w, map[string]interface{}{
		"blowup_probability": result.BlowupProbability,
		"direction":          result.Direction,
		"regime":             result.Regime,
		"confidence":         result.Confidence,
		"triggers":           result.Triggers,
		"recommendation":     result.Recommendation,

		"events_next_30min": next30,
		"upcoming_events":   upcoming,

		"recent_scores": h.detector.RecentScores(10),

		"signals_active":   summary.TotalActive,
		"signals_critical": summary.Critical,

		"timestamp":          result.Timestamp,
		"engine":             "HYDRA v2.0 - Predictive Intelligence",
		"components_healthy": healthy,
		"components_total":   len(result.Components),
	})
}

// HandleGetPredator handles GET /api/predator: the auxiliary-layer master
// snapshot. Same always-answerable contract as /api/intelligence.
func (h *IntelHandlers) HandleGetPredator(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.intel.Snapshot())
}

// HandleGetGex handles GET /api/gex.
func (h *IntelHandlers) HandleGetGex(w http.ResponseWriter, r *http.Request) {
	snapshot := h.gex.Last()
	if snapshot == nil {
		snapshot = h.gex.Calculate(r.Context())
	}
	writeJSON(w, snapshot)
}

// HandleGetFlow handles GET /api/flow.
func (h *IntelHandlers) HandleGetFlow(w http.ResponseWriter, r *http.Request) {
	snapshot := h.flow.Last()
	if snapshot == nil {
		snapshot = h.flow.Calculate(r.Context())
	}
	writeJSON(w, snapshot)
}

// HandleGetDarkPool handles GET /api/darkpool.
func (h *IntelHandlers) HandleGetDarkPool(w http.ResponseWriter, r *http.Request) {
	snapshot := h.darkPool.Last()
	if snapshot == nil {
		snapshot = h.darkPool.Calculate(r.Context())
	}
	writeJSON(w, snapshot)
}

type sequenceRequest struct {
	TradeDirection string `json:"trade_direction"`
}

// HandleSequenceAnalyze handles POST /api/sequence/analyze. The analysis
// itself is direction-neutral; the direction in the request is logged so
// operators can correlate analyses with the trades that asked for them.
func (h *IntelHandlers) HandleSequenceAnalyze(w http.ResponseWriter, r *http.Request) {
	var req sequenceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.TradeDirection == "" {
		req.TradeDirection = "BULLISH"
	}

	h.log.Info().Str("trade_direction", req.TradeDirection).Msg("Sequence analysis requested")
	writeJSON(w, h.intel.SequenceAnalysis(r.Context()))
}

type convictionRequest struct {
	TradeDirection string  `json:"trade_direction"`
	EntryPrice     float64 `json:"entry_price"`
	StopPrice      float64 `json:"stop_price"`
	TargetPrice    float64 `json:"target_price"`
}

// HandleConviction handles POST /api/conviction: the composed subsystem
// vote the execution side reads before sizing a position.
func (h *IntelHandlers) HandleConviction(w http.ResponseWriter, r *http.Request) {
	var req convictionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.TradeDirection == "" {
		req.TradeDirection = "BULLISH"
	}

	start := time.Now()
	conviction := h.intel.Conviction(r.Context(), req.TradeDirection, req.EntryPrice, req.StopPrice, req.TargetPrice)
	h.log.Info().
		Str("trade_direction", req.TradeDirection).
		Int("total_modifier", conviction.TotalModifier).
		Dur("took", time.Since(start)).
		Msg("Conviction computed")

	writeJSON(w, conviction)
}
