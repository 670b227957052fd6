package monitors

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/aristath/hydra/internal/events"
	"github.com/aristath/hydra/internal/signal"
)

// CalendarMonitor turns scheduled releases from the shared calendar into
// signals whose strength ramps as the release approaches. Unlike the data
// connectors it never guesses direction — the event itself is the risk.
type CalendarMonitor struct {
	signal.Meta
	calendar *events.Calendar
}

func NewCalendarMonitor(calendar *events.Calendar) *CalendarMonitor {
	return &CalendarMonitor{
		Meta:     signal.NewMeta("Economic Calendar", signal.CategoryMacro, 6*time.Hour, 0.95),
		calendar: calendar,
	}
}

func (c *CalendarMonitor) Poll(ctx context.Context) ([]signal.Signal, error) {
	now := time.Now().UTC()
	var signals []signal.Signal

	for _, ev := range c.calendar.All() {
		at, err := ev.At()
		if err != nil {
			continue
		}

		var (
			strength float64
			priority signal.Priority
			name     string
		)
		switch events.PhaseAt(at, now) {
		case events.PhaseLive:
			strength, priority = 1.0, signal.PriorityCritical
			name = fmt.Sprintf("EVENT: %s — LIVE NOW", ev.Name)
		case events.PhaseImminent:
			strength, priority = 0.5, signal.PriorityHigh
			name = fmt.Sprintf("EVENT: %s — %.0fhr away", ev.Name, at.Sub(now).Hours())
		case events.PhasePre:
			strength, priority = 0.2, signal.PriorityMedium
			name = fmt.Sprintf("EVENT: %s — %.0fhr away", ev.Name, at.Sub(now).Hours())
		default:
			continue
		}

		hoursUntil := at.Sub(now).Hours()
		signals = append(signals, signal.Signal{
			ID:             signal.MakeID("cal", ev.Name, ev.Date),
			Name:           name,
			SourceName:     "BLS / Treasury / Fed Calendar",
			SourceAPI:      "bls.gov / treasury.gov / federalreserve.gov",
			Category:       signal.CategoryMacro,
			Priority:       priority,
			Direction:      0.0,
			Strength:       strength,
			Description:    events.ImpactDescription(ev.Category),
			AffectedAssets: ev.AssetsAffected,
			TradeImplications: []string{
				"Pre-event: Buy SPX 0DTE straddle 30min before release",
				"Post-event: Trade directional after first 15min candle closes",
				"Cross-asset: Watch TLT and GLD for confirmation",
			},
			Opportunities: []string{
				"Elevated vol around events = premium selling opportunity after",
				"Data surprises create sector rotation opportunities",
			},
			RawData:          map[string]interface{}{"event_time": at.Format(time.RFC3339), "importance": ev.Importance},
			DetectedAt:       now,
			TTLHours:         math.Max(1, hoursUntil+2),
			ReliabilityScore: c.Reliability(),
		})
	}
	return signals, nil
}
