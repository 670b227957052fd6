package server

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const (
	scanEvery  = time.Minute
	scoreEvery = time.Minute

	// Scores at or above this broadcast an alert frame in addition to the
	// regular tick update.
	alertThreshold = 70
)

// Workers runs the two minute-cadence loops that feed the store and the
// websocket: the signal scan and the blowup tick. The auxiliary layers
// (gamma, flow, dark pool) tick inside the intel aggregator.
type Workers struct {
	scanner  scannerAPI
	detector detectorAPI
	hub      broadcaster
	log      zerolog.Logger

	scanInterval  time.Duration
	scoreInterval time.Duration
}

// NewWorkers wires the worker loops over the scanner and detector.
func NewWorkers(scanner scannerAPI, detector detectorAPI, hub broadcaster, log zerolog.Logger) *Workers {
	return &Workers{
		scanner:       scanner,
		detector:      detector,
		hub:           hub,
		log:           log.With().Str("component", "workers").Logger(),
		scanInterval:  scanEvery,
		scoreInterval: scoreEvery,
	}
}

// Run drives both loops until ctx is canceled. Each loop ticks
// immediately on start so the API has data within seconds of boot.
func (w *Workers) Run(ctx context.Context) {
	var wg sync.WaitGroup

	wg.Add(2)
	go func() {
		defer wg.Done()
		w.loop(ctx, "scanner", w.scanInterval, w.scanTick)
	}()
	go func() {
		defer wg.Done()
		w.loop(ctx, "scorer", w.scoreInterval, w.scoreTick)
	}()

	wg.Wait()
}

func (w *Workers) loop(ctx context.Context, name string, interval time.Duration, tick func(context.Context)) {
	w.log.Info().Str("worker", name).Dur("interval", interval).Msg("worker started")
	for {
		tick(ctx)
		select {
		case <-ctx.Done():
			w.log.Info().Str("worker", name).Msg("worker stopped")
			return
		case <-time.After(interval):
		}
	}
}

// scanTick sweeps every due connector and pushes newly admitted signals
// to websocket clients.
func (w *Workers) scanTick(ctx context.Context) {
	admitted := w.scanner.ScanAll(ctx)
	if len(admitted) == 0 {
		return
	}

	w.hub.Broadcast(map[string]interface{}{
		"type":    "signals_update",
		"signals": admitted,
		"summary": w.scanner.Summary(),
	})
}

// scoreTick runs one blowup calculation, pushes it to websocket clients,
// and raises an alert frame when the score clears the threshold.
func (w *Workers) scoreTick(ctx context.Context) {
	result := w.detector.Calculate(ctx)
	if result == nil {
		return
	}

	w.log.Info().
		Int("score", result.BlowupProbability).
		Str("direction", string(result.Direction)).
		Str("recommendation", string(result.Recommendation)).
		Msg("Blowup tick")

	w.hub.Broadcast(map[string]interface{}{
		"type":   "blowup_update",
		"blowup": result,
	})

	if result.BlowupProbability >= alertThreshold {
		triggers := result.Triggers
		if len(triggers) > 3 {
			triggers = triggers[:3]
		}
		w.log.Warn().
			Int("score", result.BlowupProbability).
			Str("direction", string(result.Direction)).
			Str("regime", string(result.Regime)).
			Str("triggers", strings.Join(triggers, ", ")).
			Msg("BLOWUP ALERT")

		w.hub.Broadcast(map[string]interface{}{
			"type":           "blowup_alert",
			"score":          result.BlowupProbability,
			"direction":      result.Direction,
			"regime":         result.Regime,
			"recommendation": result.Recommendation,
			"triggers":       triggers,
		})
	}
}
