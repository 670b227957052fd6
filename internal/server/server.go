// Package server exposes the HYDRA intelligence core over REST and a
// websocket push channel, and owns the minute-cadence workers that feed
// both.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/aristath/hydra/internal/blowup"
	"github.com/aristath/hydra/internal/calibrate"
	"github.com/aristath/hydra/internal/config"
	"github.com/aristath/hydra/internal/darkpool"
	"github.com/aristath/hydra/internal/events"
	"github.com/aristath/hydra/internal/flow"
	"github.com/aristath/hydra/internal/gamma"
	"github.com/aristath/hydra/internal/intel"
	"github.com/aristath/hydra/internal/signal"
)

// Config carries the wired subsystems the server fronts.
type Config struct {
	Log      zerolog.Logger
	Cfg      *config.Config
	Scanner  *signal.Scanner
	Detector *blowup.Detector
	Intel    *intel.Aggregator
	Gex      *gamma.Engine
	Flow     *flow.Decoder
	DarkPool *darkpool.Mapper
	Feedback *calibrate.FeedbackStore
	Calib    *calibrate.Calibrator
	Calendar *events.Calendar
}

// Server is the HTTP façade over the intelligence core.
type Server struct {
	router  *chi.Mux
	server  *http.Server
	hub     *Hub
	log     zerolog.Logger
	started time.Time
}

// New builds the router, the websocket hub and every handler group.
func New(cfg Config) *Server {
	log := cfg.Log.With().Str("component", "server").Logger()

	s := &Server{
		router:  chi.NewRouter(),
		log:     log,
		started: time.Now().UTC(),
	}

	s.hub = NewHub(log, func() interface{} {
		return map[string]interface{}{
			"type":    "init",
			"signals": cfg.Scanner.Store().Active("", ""),
			"summary": cfg.Scanner.Summary(),
		}
	})

	s.setupMiddleware(cfg.Cfg.DevMode)
	s.setupRoutes(cfg)

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Cfg.Port),
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return s
}

func (s *Server) setupMiddleware(devMode bool) {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.loggingMiddleware)
	s.router.Use(middleware.Recoverer)

	// The dashboard and the execution side poll from other origins.
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	if devMode {
		s.router.Use(middleware.NoCache)
	}
}

func (s *Server) setupRoutes(cfg Config) {
	signalHandlers := NewSignalHandlers(cfg.Scanner, cfg.Calendar, s.hub, s.log)
	intelHandlers := NewIntelHandlers(cfg.Detector, cfg.Intel, cfg.Gex, cfg.Flow, cfg.DarkPool, cfg.Calendar, cfg.Scanner, s.log)
	calibHandlers := NewCalibrationHandlers(cfg.Feedback, cfg.Calib, cfg.Detector, cfg.Cfg.WeightsPath(), s.log)
	systemHandlers := NewSystemHandlers(cfg.Scanner, cfg.Cfg.DataDir, s.started, s.log)

	s.router.Route("/api", func(r chi.Router) {
		systemHandlers.RegisterRoutes(r)
		signalHandlers.RegisterRoutes(r)
		intelHandlers.RegisterRoutes(r)
		calibHandlers.RegisterRoutes(r)
	})

	s.router.Get("/ws", s.hub.HandleWS)
}

// Hub returns the websocket hub so workers can broadcast updates.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Start blocks serving HTTP until the listener fails or Shutdown runs.
func (s *Server) Start() error {
	s.log.Info().Str("addr", s.server.Addr).Msg("HTTP server starting")
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// Shutdown stops the listener and drops all websocket clients. Pending
// websocket writes are abandoned.
func (s *Server) Shutdown(ctx context.Context) error {
	s.hub.CloseAll()
	return s.server.Shutdown(ctx)
}

// loggingMiddleware logs one line per request at debug.
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("took", time.Since(start)).
			Msg("request")
	})
}
