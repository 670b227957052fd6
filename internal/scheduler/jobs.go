package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/hydra/internal/calibrate"
	"github.com/aristath/hydra/internal/market"
	"github.com/aristath/hydra/internal/sequence"
)

// Default cron schedules, all pinned to the exchange clock.
const (
	// CalibrationSchedule runs after the close, once the day's trades have
	// been reported back.
	CalibrationSchedule = "CRON_TZ=America/New_York 0 35 16 * * MON-FRI"
	// FingerprintSchedule records the day right after the close and
	// backfills the prior session's outcome.
	FingerprintSchedule = "CRON_TZ=America/New_York 0 10 16 * * MON-FRI"
	// CacheSweepSchedule evicts expired fetch-cache entries hourly.
	CacheSweepSchedule = "0 0 * * * *"
	// BackupSchedule uploads the data directory nightly.
	BackupSchedule = "CRON_TZ=America/New_York 0 30 20 * * *"
	// AccuracySchedule samples realized moves twice an hour in session.
	AccuracySchedule = "CRON_TZ=America/New_York 0 0,30 9-16 * * MON-FRI"
)

const jobTimeout = 2 * time.Minute

type calibrationRunner interface {
	Calibrate() (*calibrate.CalibrationResult, error)
}

type weightsReloader interface {
	ReloadWeights()
}

// CalibrationJob re-derives the scorer weights from trade feedback and
// hot-reloads them into the detector when the run produced a new set.
type CalibrationJob struct {
	calibrator calibrationRunner
	detector   weightsReloader
	log        zerolog.Logger
}

// NewCalibrationJob creates the nightly calibration job.
func NewCalibrationJob(calibrator calibrationRunner, detector weightsReloader, log zerolog.Logger) *CalibrationJob {
	return &CalibrationJob{
		calibrator: calibrator,
		detector:   detector,
		log:        log.With().Str("job", "calibration").Logger(),
	}
}

func (j *CalibrationJob) Name() string { return "calibration" }

func (j *CalibrationJob) Run() error {
	result, err := j.calibrator.Calibrate()
	if err != nil {
		return fmt.Errorf("calibration: %w", err)
	}
	if result == nil {
		j.log.Info().Msg("Calibration skipped, not enough trades")
		return nil
	}

	j.detector.ReloadWeights()
	j.log.Info().
		Bool("weights_updated", result.WeightsUpdated).
		Float64("win_rate", result.WinRate).
		Float64("direction_accuracy", result.DirectionAccuracy).
		Msg("Calibration complete")
	return nil
}

type conditionsSource interface {
	CurrentConditions() sequence.Conditions
}

type fingerprintStore interface {
	RecordDay(ctx context.Context, fp sequence.Fingerprint) error
	UpdateOutcome(date string, outcome float64) error
}

// FingerprintJob records the closing day's conditions for the sequence
// matcher and backfills the previous session's outcome with today's SPY
// change. Backfilling an unrecorded date is a no-op, so holidays need no
// special handling.
type FingerprintJob struct {
	conditions conditionsSource
	matcher    fingerprintStore
	log        zerolog.Logger
	now        func() time.Time
}

// NewFingerprintJob creates the end-of-day fingerprint job.
func NewFingerprintJob(conditions conditionsSource, matcher fingerprintStore, log zerolog.Logger) *FingerprintJob {
	return &FingerprintJob{
		conditions: conditions,
		matcher:    matcher,
		log:        log.With().Str("job", "fingerprint").Logger(),
		now:        time.Now,
	}
}

func (j *FingerprintJob) Name() string { return "fingerprint" }

func (j *FingerprintJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	conditions := j.conditions.CurrentConditions()
	today := j.now().In(market.Eastern())

	fp := sequence.Fingerprint{
		Date:         today.Format("2006-01-02"),
		GexRegime:    conditions.GexRegime,
		FlowBias:     conditions.FlowBias,
		VIXLevel:     conditions.VIXLevel,
		SpyChangePct: conditions.SpyChangePct,
		SpyRangePct:  conditions.SpyRangePct,
		BlowupScore:  conditions.BlowupScore,
		DarkPoolBias: conditions.DarkPoolBias,
	}
	if err := j.matcher.RecordDay(ctx, fp); err != nil {
		return fmt.Errorf("record fingerprint: %w", err)
	}

	prev := previousWeekday(today)
	if err := j.matcher.UpdateOutcome(prev.Format("2006-01-02"), conditions.SpyChangePct); err != nil {
		j.log.Warn().Err(err).Str("date", prev.Format("2006-01-02")).Msg("Outcome backfill failed")
	}
	return nil
}

// previousWeekday steps back to the prior Monday-Friday date.
func previousWeekday(t time.Time) time.Time {
	d := t.AddDate(0, 0, -1)
	for d.Weekday() == time.Saturday || d.Weekday() == time.Sunday {
		d = d.AddDate(0, 0, -1)
	}
	return d
}

type cacheSweeper interface {
	Sweep() int
}

// CacheSweepJob evicts expired entries from the shared fetch cache.
type CacheSweepJob struct {
	cache cacheSweeper
	log   zerolog.Logger
}

// NewCacheSweepJob creates the hourly cache sweep job.
func NewCacheSweepJob(cache cacheSweeper, log zerolog.Logger) *CacheSweepJob {
	return &CacheSweepJob{
		cache: cache,
		log:   log.With().Str("job", "cache_sweep").Logger(),
	}
}

func (j *CacheSweepJob) Name() string { return "cache_sweep" }

func (j *CacheSweepJob) Run() error {
	evicted := j.cache.Sweep()
	if evicted > 0 {
		j.log.Debug().Int("evicted", evicted).Msg("Cache swept")
	}
	return nil
}
