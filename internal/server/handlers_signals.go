package server

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/aristath/hydra/internal/events"
	"github.com/aristath/hydra/internal/signal"
)

type scannerAPI interface {
	ScanAll(ctx context.Context) []signal.Signal
	Summary() signal.Summary
	Store() *signal.Store
}

type calendarAPI interface {
	UpcomingForAPI(hours float64) []events.APIEvent
}

type broadcaster interface {
	Broadcast(v interface{})
}

// SignalHandlers serves the signal landscape: live signals, the source
// catalog, the dashboard export, manual scans and the event calendar.
type SignalHandlers struct {
	scanner  scannerAPI
	calendar calendarAPI
	hub      broadcaster
	log      zerolog.Logger
}

// NewSignalHandlers creates the signal handler group.
func NewSignalHandlers(scanner scannerAPI, calendar calendarAPI, hub broadcaster, log zerolog.Logger) *SignalHandlers {
	return &SignalHandlers{
		scanner:  scanner,
		calendar: calendar,
		hub:      hub,
		log:      log.With().Str("handler", "signals").Logger(),
	}
}

// RegisterRoutes registers the signal routes on the /api router.
func (h *SignalHandlers) RegisterRoutes(r chi.Router) {
	r.Get("/signals", h.HandleGetSignals)
	r.Get("/signals/summary", h.HandleGetSummary)
	r.Get("/sources", h.HandleGetSources)
	r.Get("/dashboard", h.HandleGetDashboard)
	r.Post("/scan", h.HandleScan)
	r.Get("/events", h.HandleGetEvents)
}

// HandleGetSignals handles GET /api/signals?category=&priority=
func (h *SignalHandlers) HandleGetSignals(w http.ResponseWriter, r *http.Request) {
	category := signal.Category(r.URL.Query().Get("category"))
	priority := signal.Priority(r.URL.Query().Get("priority"))

	writeJSON(w, map[string]interface{}{
		"signals": h.scanner.Store().Active(category, priority),
		"summary": h.scanner.Summary(),
	})
}

// HandleGetSummary handles GET /api/signals/summary
func (h *SignalHandlers) HandleGetSummary(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.scanner.Summary())
}

// HandleGetSources handles GET /api/sources. The registry is the display
// ground truth for what HYDRA watches, shipped or planned.
func (h *SignalHandlers) HandleGetSources(w http.ResponseWriter, r *http.Request) {
	stats := signal.RegistryStats()
	writeJSON(w, map[string]interface{}{
		"sources":     signal.Registry,
		"total":       stats.Total,
		"implemented": stats.Implemented,
		"planned":     stats.Planned,
	})
}

// HandleGetDashboard handles GET /api/dashboard, the composite export the
// dashboard consumes in one call.
func (h *SignalHandlers) HandleGetDashboard(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]interface{}{
		"timestamp":    time.Now().UTC().Format(time.RFC3339),
		"summary":      h.scanner.Summary(),
		"signals":      h.scanner.Store().Active("", ""),
		"data_sources": signal.Registry,
		"source_stats": signal.RegistryStats(),
	})
}

// HandleScan handles POST /api/scan, a manually triggered sweep outside
// the worker cadence. New signals go out over the websocket exactly as a
// scheduled scan's would.
func (h *SignalHandlers) HandleScan(w http.ResponseWriter, r *http.Request) {
	admitted := h.scanner.ScanAll(r.Context())
	if len(admitted) > 0 {
		h.hub.Broadcast(map[string]interface{}{
			"type":    "signals_update",
			"signals": admitted,
			"summary": h.scanner.Summary(),
		})
	}

	writeJSON(w, map[string]interface{}{
		"new_signals":  len(admitted),
		"total_active": h.scanner.Store().Count(),
	})
}

// HandleGetEvents handles GET /api/events?hours=
func (h *SignalHandlers) HandleGetEvents(w http.ResponseWriter, r *http.Request) {
	hours := 72.0
	if raw := r.URL.Query().Get("hours"); raw != "" {
		if v, err := strconv.ParseFloat(raw, 64); err == nil && v > 0 {
			hours = v
		}
	}

	upcoming := h.calendar.UpcomingForAPI(hours)
	writeJSON(w, map[string]interface{}{
		"events": upcoming,
		"count":  len(upcoming),
	})
}
