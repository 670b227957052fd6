package scheduler

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/hydra/internal/blowup"
	"github.com/aristath/hydra/internal/clients/polygon"
	"github.com/aristath/hydra/internal/market"
)

type blowupSource interface {
	Last() *blowup.Result
}

type spotSource interface {
	LastQuote(ctx context.Context, ticker string) (*polygon.Quote, bool)
}

type accuracyRecorder interface {
	RecordAccuracy(score int, spyMove30Min float64, directionPredicted, directionActual string, triggers []string) error
}

// AccuracyJob samples how the scorer's predictions play out on the tape.
// Each run it captures the current score and SPY mid; the capture matures
// on the following run, when the realized move over the interval is
// written as a prediction-versus-tape row for the calibrator.
type AccuracyJob struct {
	detector blowupSource
	quotes   spotSource
	recorder accuracyRecorder
	log      zerolog.Logger
	now      func() time.Time

	pending *accuracySample
}

type accuracySample struct {
	at        time.Time
	score     int
	direction blowup.Direction
	triggers  []string
	spyMid    float64
}

// NewAccuracyJob creates the intraday accuracy sampling job.
func NewAccuracyJob(detector blowupSource, quotes spotSource, recorder accuracyRecorder, log zerolog.Logger) *AccuracyJob {
	return &AccuracyJob{
		detector: detector,
		quotes:   quotes,
		recorder: recorder,
		log:      log.With().Str("job", "accuracy").Logger(),
		now:      time.Now,
	}
}

func (j *AccuracyJob) Name() string { return "accuracy" }

// Run matures the pending capture and takes a fresh one. Outside regular
// hours the pending capture is discarded: a move realized across the
// close says nothing about a 30-minute prediction.
func (j *AccuracyJob) Run() error {
	now := j.now()
	if !market.InRegularHours(now) {
		j.pending = nil
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	quote, ok := j.quotes.LastQuote(ctx, "SPY")
	if !ok || quote.BidPrice <= 0 || quote.AskPrice <= 0 {
		j.log.Debug().Msg("No SPY quote, skipping accuracy sample")
		return nil
	}
	mid := (quote.BidPrice + quote.AskPrice) / 2

	if p := j.pending; p != nil && now.Sub(p.at) >= 25*time.Minute && p.spyMid > 0 {
		movePct := (mid - p.spyMid) / p.spyMid * 100

		actual := string(blowup.DirectionNeutral)
		switch {
		case movePct > 0.1:
			actual = string(blowup.DirectionBullish)
		case movePct < -0.1:
			actual = string(blowup.DirectionBearish)
		}

		if err := j.recorder.RecordAccuracy(p.score, movePct, string(p.direction), actual, p.triggers); err != nil {
			j.log.Error().Err(err).Msg("Accuracy row write failed")
		} else {
			j.log.Debug().
				Int("score", p.score).
				Float64("move_pct", movePct).
				Msg("Accuracy sample recorded")
		}
	}

	j.pending = nil
	if result := j.detector.Last(); result != nil {
		j.pending = &accuracySample{
			at:        now,
			score:     result.BlowupProbability,
			direction: result.Direction,
			triggers:  result.Triggers,
			spyMid:    mid,
		}
	}
	return nil
}
