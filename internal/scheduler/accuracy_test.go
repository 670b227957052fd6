package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/hydra/internal/blowup"
	"github.com/aristath/hydra/internal/clients/polygon"
	"github.com/aristath/hydra/internal/market"
)

type stubBlowup struct {
	last *blowup.Result
}

func (s *stubBlowup) Last() *blowup.Result { return s.last }

type stubQuotes struct {
	quote *polygon.Quote
	ok    bool
}

func (s *stubQuotes) LastQuote(_ context.Context, _ string) (*polygon.Quote, bool) {
	return s.quote, s.ok
}

type accuracyRow struct {
	score     int
	movePct   float64
	predicted string
	actual    string
}

type stubRecorder struct {
	rows []accuracyRow
}

func (r *stubRecorder) RecordAccuracy(score int, spyMove30Min float64, directionPredicted, directionActual string, _ []string) error {
	r.rows = append(r.rows, accuracyRow{score: score, movePct: spyMove30Min, predicted: directionPredicted, actual: directionActual})
	return nil
}

// A mid-session Tuesday on the exchange clock.
func sessionTime(hour, minute int) time.Time {
	return time.Date(2026, 3, 10, hour, minute, 0, 0, market.Eastern())
}

func TestAccuracyJob_CaptureMaturesOnNextRun(t *testing.T) {
	detector := &stubBlowup{last: &blowup.Result{
		BlowupProbability: 72,
		Direction:         blowup.DirectionBullish,
		Triggers:          []string{"flow_imbalance"},
	}}
	quotes := &stubQuotes{quote: &polygon.Quote{BidPrice: 499.9, AskPrice: 500.1}, ok: true}
	recorder := &stubRecorder{}
	job := NewAccuracyJob(detector, quotes, recorder, zerolog.Nop())

	job.now = func() time.Time { return sessionTime(10, 0) }
	require.NoError(t, job.Run())
	assert.Empty(t, recorder.rows, "first run only captures")

	// SPY rallies 1% over the half hour.
	quotes.quote = &polygon.Quote{BidPrice: 504.9, AskPrice: 505.1}
	job.now = func() time.Time { return sessionTime(10, 30) }
	require.NoError(t, job.Run())

	require.Len(t, recorder.rows, 1)
	row := recorder.rows[0]
	assert.Equal(t, 72, row.score)
	assert.InDelta(t, 1.0, row.movePct, 0.01)
	assert.Equal(t, "BULLISH", row.predicted)
	assert.Equal(t, "BULLISH", row.actual)
}

func TestAccuracyJob_SmallMoveReadsNeutral(t *testing.T) {
	detector := &stubBlowup{last: &blowup.Result{
		BlowupProbability: 40,
		Direction:         blowup.DirectionBearish,
	}}
	quotes := &stubQuotes{quote: &polygon.Quote{BidPrice: 499.9, AskPrice: 500.1}, ok: true}
	recorder := &stubRecorder{}
	job := NewAccuracyJob(detector, quotes, recorder, zerolog.Nop())

	job.now = func() time.Time { return sessionTime(11, 0) }
	require.NoError(t, job.Run())

	quotes.quote = &polygon.Quote{BidPrice: 500.0, AskPrice: 500.2}
	job.now = func() time.Time { return sessionTime(11, 30) }
	require.NoError(t, job.Run())

	require.Len(t, recorder.rows, 1)
	assert.Equal(t, "NEUTRAL", recorder.rows[0].actual)
}

func TestAccuracyJob_DiscardsPendingOutsideSession(t *testing.T) {
	detector := &stubBlowup{last: &blowup.Result{BlowupProbability: 55}}
	quotes := &stubQuotes{quote: &polygon.Quote{BidPrice: 499.9, AskPrice: 500.1}, ok: true}
	recorder := &stubRecorder{}
	job := NewAccuracyJob(detector, quotes, recorder, zerolog.Nop())

	job.now = func() time.Time { return sessionTime(15, 30) }
	require.NoError(t, job.Run())

	// The next tick lands after the close; the capture must not mature
	// against overnight prices.
	job.now = func() time.Time { return sessionTime(18, 0) }
	require.NoError(t, job.Run())
	assert.Empty(t, recorder.rows)

	job.now = func() time.Time { return sessionTime(10, 0).AddDate(0, 0, 1) }
	require.NoError(t, job.Run())
	assert.Empty(t, recorder.rows, "stale capture was discarded, nothing to mature")
}

func TestAccuracyJob_SkipsWithoutQuote(t *testing.T) {
	detector := &stubBlowup{last: &blowup.Result{BlowupProbability: 55}}
	recorder := &stubRecorder{}
	job := NewAccuracyJob(detector, &stubQuotes{ok: false}, recorder, zerolog.Nop())

	job.now = func() time.Time { return sessionTime(10, 0) }
	require.NoError(t, job.Run())
	assert.Empty(t, recorder.rows)
}
