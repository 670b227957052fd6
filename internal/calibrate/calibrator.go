package calibrate

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/stat"

	"github.com/aristath/hydra/internal/blowup"
)

// minTradesForCalibration gates the weight update. Below this the F1
// estimates are noise and the hand-tuned defaults stay in force.
const minTradesForCalibration = 20

// Calibrator recomputes blowup component weights from trade outcomes.
type Calibrator struct {
	store       *FeedbackStore
	weightsPath string
	log         zerolog.Logger
	now         func() time.Time
}

// NewCalibrator wires the calibrator to the feedback store and the weights
// file the detector hot-reloads.
func NewCalibrator(store *FeedbackStore, weightsPath string, log zerolog.Logger) *Calibrator {
	return &Calibrator{
		store:       store,
		weightsPath: weightsPath,
		log:         log.With().Str("component", "calibrator").Logger(),
		now:         time.Now,
	}
}

// Calibrate re-derives weights from all BLOWUP-mode feedback. It returns
// (nil, nil) when there are not yet enough trades. The computation depends
// only on the feedback corpus, so re-running on the same data yields the
// same weights and the second run is a no-op.
func (c *Calibrator) Calibrate() (*CalibrationResult, error) {
	trades, err := c.store.blowupTrades()
	if err != nil {
		return nil, err
	}
	if len(trades) < minTradesForCalibration {
		c.log.Info().Int("trades", len(trades)).Int("min", minTradesForCalibration).Msg("Calibration skipped")
		return nil, nil
	}

	perf := triggerPerformance(trades)

	oldWeights, err := blowup.LoadWeights(c.weightsPath)
	if err != nil {
		c.log.Warn().Err(err).Msg("Weights file unreadable, calibrating against defaults")
	}
	newWeights := deriveWeights(oldWeights, perf)

	dirAccuracy := directionAccuracy(trades)

	samples, err := c.store.accuracySamples()
	if err != nil {
		return nil, err
	}
	precision, recall := overallAccuracy(samples)

	pnls := make([]float64, len(trades))
	wins := 0
	for i, tr := range trades {
		pnls[i] = tr.pnl
		if tr.pnl > 0 {
			wins++
		}
	}

	result := &CalibrationResult{
		Timestamp:          c.now().UTC().Format(time.RFC3339),
		TotalTrades:        len(trades),
		BlowupTrades:       len(trades),
		WinRate:            round3(float64(wins) / float64(len(trades))),
		AvgPnL:             round2(stat.Mean(pnls, nil)),
		OldWeights:         oldWeights,
		NewWeights:         newWeights,
		TriggerPerformance: perf,
		DirectionAccuracy:  round3(dirAccuracy),
		Precision:          round3(precision),
		Recall:             round3(recall),
		Notes:              calibrationNotes(perf, dirAccuracy),
	}

	delta := 0.0
	for k, oldV := range oldWeights {
		delta += math.Abs(newWeights[k] - oldV)
	}
	if delta > 0.10 {
		if err := blowup.SaveWeights(c.weightsPath, newWeights); err != nil {
			return result, fmt.Errorf("persist calibrated weights: %w", err)
		}
		if err := c.store.logCalibration(c.now().UTC().Format("2006-01-02"), result); err != nil {
			c.log.Error().Err(err).Msg("Calibration log write failed")
		}
		result.WeightsUpdated = true

		c.log.Info().Float64("total_change", round3(delta)).Msg("Calibration updated weights")
		for _, k := range sortedKeys(oldWeights) {
			if math.Abs(newWeights[k]-oldWeights[k]) > 0.01 {
				c.log.Info().Str("component", k).
					Float64("old", oldWeights[k]).
					Float64("new", newWeights[k]).
					Msg("Weight changed")
			}
		}
	} else {
		c.log.Info().Float64("total_change", round3(delta)).Msg("Calibration left weights unchanged")
	}

	return result, nil
}

// triggerPerformance scores each trigger name seen at entry across the
// corpus: precision against the trades it fired on, recall against all
// winning trades, and the F1 the weight derivation runs on.
func triggerPerformance(trades []feedbackRow) map[string]TriggerPerformance {
	winners := 0
	for _, tr := range trades {
		if tr.pnl > 0 {
			winners++
		}
	}

	type agg struct {
		wins int
		pnls []float64
	}
	stats := map[string]*agg{}
	for _, tr := range trades {
		for _, trigger := range tr.triggers {
			name := strings.SplitN(trigger, ":", 2)[0]
			a := stats[name]
			if a == nil {
				a = &agg{}
				stats[name] = a
			}
			a.pnls = append(a.pnls, tr.pnl)
			if tr.pnl > 0 {
				a.wins++
			}
		}
	}

	perf := make(map[string]TriggerPerformance, len(stats))
	for name, a := range stats {
		total := len(a.pnls)
		precision := float64(a.wins) / float64(total)
		recall := float64(a.wins) / math.Max(1, float64(winners))
		f1 := 0.0
		if precision+recall > 0 {
			f1 = 2 * precision * recall / (precision + recall)
		}
		perf[name] = TriggerPerformance{
			Precision:   round3(precision),
			Recall:      round3(recall),
			F1:          round3(f1),
			AvgPnL:      round2(stat.Mean(a.pnls, nil)),
			TotalTrades: total,
		}
	}
	return perf
}

// deriveWeights rebuilds the weight map from per-trigger F1. Components
// without trigger data keep their default weight; the whole map is then
// renormalized to sum to exactly 1.0, with the rounding residue folded
// into the heaviest component. The base is always the default map, never
// the current file, so calibration is a pure function of the corpus and
// repeated runs cannot compound.
func deriveWeights(current blowup.Weights, perf map[string]TriggerPerformance) blowup.Weights {
	totalF1 := 0.0
	for _, p := range perf {
		totalF1 += p.F1
	}
	if len(perf) == 0 || totalF1 <= 0 {
		return current.Clone()
	}

	weights := blowup.DefaultWeights()
	for name, p := range perf {
		if _, known := weights[name]; known {
			weights[name] = round3(p.F1 / totalF1)
		}
	}

	sum := 0.0
	for _, v := range weights {
		sum += v
	}
	if sum <= 0 {
		return current.Clone()
	}

	rounded := 0.0
	heaviest := ""
	for _, k := range sortedKeys(weights) {
		weights[k] = round3(weights[k] / sum)
		rounded += weights[k]
		if heaviest == "" || weights[k] > weights[heaviest] {
			heaviest = k
		}
	}
	weights[heaviest] = round3(weights[heaviest] + (1.0 - rounded))
	return weights
}

// directionAccuracy is the fraction of directional calls confirmed by the
// option trade outcome: a BULLISH call paired with a winning CALL trade or
// a BEARISH call paired with a winning PUT.
func directionAccuracy(trades []feedbackRow) float64 {
	correct, total := 0, 0
	for _, tr := range trades {
		if tr.blowupDirection != "BULLISH" && tr.blowupDirection != "BEARISH" {
			continue
		}
		total++
		bullishWin := tr.blowupDirection == "BULLISH" && tr.direction == "CALL" && tr.pnl > 0
		bearishWin := tr.blowupDirection == "BEARISH" && tr.direction == "PUT" && tr.pnl > 0
		if bullishWin || bearishWin {
			correct++
		}
	}
	if total == 0 {
		return 0
	}
	return float64(correct) / float64(total)
}

// overallAccuracy computes score-level precision and recall from the
// prediction samples: precision over high-score predictions (did a >0.8%
// move follow a score above 60), recall over realized big moves (was the
// score above 60 when one came).
func overallAccuracy(samples []accuracySample) (precision, recall float64) {
	highTotal, highCorrect := 0, 0
	bigTotal, bigDetected := 0, 0
	for _, s := range samples {
		if s.score == 0 || s.move == 0 {
			continue
		}
		if s.score > 60 {
			highTotal++
			if math.Abs(s.move) > 0.8 {
				highCorrect++
			}
		}
		if math.Abs(s.move) > 0.8 {
			bigTotal++
			if s.score > 60 {
				bigDetected++
			}
		}
	}
	if highTotal > 0 {
		precision = float64(highCorrect) / float64(highTotal)
	}
	if bigTotal > 0 {
		recall = float64(bigDetected) / float64(bigTotal)
	}
	return precision, recall
}

func calibrationNotes(perf map[string]TriggerPerformance, directionAccuracy float64) []string {
	notes := []string{}
	names := make([]string, 0, len(perf))
	for name := range perf {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		p := perf[name]
		if p.F1 > 0.5 {
			notes = append(notes, fmt.Sprintf("%s: strong predictor (F1=%.2f)", name, p.F1))
		} else if p.F1 < 0.2 {
			notes = append(notes, fmt.Sprintf("%s: weak predictor (F1=%.2f)", name, p.F1))
		}
	}
	if directionAccuracy < 0.55 {
		notes = append(notes, "WARNING: direction accuracy below 55%, demoting direction confidence")
	}
	return notes
}

func sortedKeys(w blowup.Weights) []string {
	keys := make([]string, 0, len(w))
	for k := range w {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }
func round3(v float64) float64 { return math.Round(v*1000) / 1000 }
