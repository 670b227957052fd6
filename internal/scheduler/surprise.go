package scheduler

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/hydra/internal/events"
)

// SurpriseSchedule polls FRED for freshly published release numbers. Most
// releases land at 08:30 or 10:00 ET, so a 15-minute cadence catches them
// while the print still matters.
const SurpriseSchedule = "CRON_TZ=America/New_York 0 */15 8-16 * * MON-FRI"

type releaseChecker interface {
	CheckRelease(ctx context.Context, event events.Event) (*events.Surprise, bool)
}

type surpriseSaver interface {
	SaveResult(surprise *events.Surprise, eventDate string, spyMove15, spyMove30 *float64) error
}

type calendarSource interface {
	All() []events.Event
}

// SurpriseJob watches the event calendar for releases that have just passed
// their scheduled time, scores the surprise against consensus, and persists
// the result. Each event is checked at most once per process lifetime.
type SurpriseJob struct {
	calendar calendarSource
	detector releaseChecker
	store    surpriseSaver
	log      zerolog.Logger
	now      func() time.Time

	checked map[string]bool
}

// NewSurpriseJob creates the release-surprise polling job. The store may be
// nil when the surprise database is unavailable; surprises are then scored
// and logged but not persisted.
func NewSurpriseJob(calendar calendarSource, detector releaseChecker, store surpriseSaver, log zerolog.Logger) *SurpriseJob {
	return &SurpriseJob{
		calendar: calendar,
		detector: detector,
		store:    store,
		log:      log.With().Str("job", "surprise").Logger(),
		now:      time.Now,
		checked:  make(map[string]bool),
	}
}

func (j *SurpriseJob) Name() string { return "surprise" }

func (j *SurpriseJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	now := j.now().UTC()
	for _, event := range j.calendar.All() {
		at, err := event.At()
		if err != nil {
			continue
		}
		phase := events.PhaseAt(at, now)
		if phase != events.PhaseLive && phase != events.PhaseRecent {
			continue
		}
		// Only look after the scheduled time; FRED has nothing before it.
		if at.After(now) {
			continue
		}

		key := event.Name + "|" + event.Date
		if j.checked[key] {
			continue
		}

		surprise, ok := j.detector.CheckRelease(ctx, event)
		if !ok {
			// Not published yet (or no API key); retry on the next tick.
			continue
		}
		j.checked[key] = true

		if j.store != nil {
			if err := j.store.SaveResult(surprise, event.Date, nil, nil); err != nil {
				j.log.Warn().Err(err).Str("event", event.Name).Msg("Surprise persist failed")
			}
		}
	}
	return nil
}
