// Package events manages the scheduled economic event calendar and detects
// data surprises once a release lands.
//
// The calendar is operator data, not code: it loads from a JSON file under
// the data directory and falls back to (and writes) a seeded set on first
// run, so updating consensus numbers never requires a deploy.
package events

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Event is one scheduled economic release with its consensus estimate.
type Event struct {
	Name           string   `json:"name"`
	Date           string   `json:"date"` // ISO date, e.g. 2026-03-12
	Time           string   `json:"time"` // HH:MM UTC
	FREDSeries     string   `json:"fred_series,omitempty"`
	Consensus      float64  `json:"consensus"`
	Previous       float64  `json:"previous"`
	Unit           string   `json:"unit"`
	Importance     string   `json:"importance"` // HIGH, MEDIUM, LOW
	Category       string   `json:"category"`   // inflation, labor, growth, rates, manufacturing
	AssetsAffected []string `json:"assets_affected"`
}

// At returns the event's scheduled instant in UTC.
func (e Event) At() (time.Time, error) {
	t, err := time.Parse("2006-01-02 15:04", e.Date+" "+e.Time)
	if err != nil {
		return time.Time{}, fmt.Errorf("event %q has unparseable schedule: %w", e.Name, err)
	}
	return t.UTC(), nil
}

// Phase describes where an event sits relative to now. The bands drive both
// the calendar connector's signal strength and the proximity component of
// the blowup score.
type Phase string

const (
	PhaseFuture   Phase = "FUTURE"   // more than 24h away
	PhasePre      Phase = "PRE"      // within 24h
	PhaseImminent Phase = "IMMINENT" // within 2h
	PhaseLive     Phase = "LIVE"     // within ±30min of release
	PhaseRecent   Phase = "RECENT"   // released within the past 2h
	PhaseGone     Phase = "GONE"     // released more than 2h ago
)

// PhaseAt classifies eventTime relative to now. The LIVE window is inclusive
// on both edges: an event exactly 30 minutes out is already LIVE.
func PhaseAt(eventTime, now time.Time) Phase {
	delta := eventTime.Sub(now)
	switch {
	case delta >= -30*time.Minute && delta <= 30*time.Minute:
		return PhaseLive
	case delta > 0 && delta <= 2*time.Hour:
		return PhaseImminent
	case delta > 0 && delta <= 24*time.Hour:
		return PhasePre
	case delta > 0:
		return PhaseFuture
	case delta >= -2*time.Hour:
		return PhaseRecent
	default:
		return PhaseGone
	}
}

// seedEvents is written to the calendar file on first run. Dates and
// consensus figures are refreshed by operators as the calendar rolls.
var seedEvents = []Event{
	{Name: "Nonfarm Payrolls", Date: "2026-03-07", Time: "13:30", FREDSeries: "PAYEMS", Consensus: 150, Previous: 143, Unit: "K", Importance: "HIGH", Category: "labor", AssetsAffected: []string{"SPY", "TLT", "GLD", "DXY", "EUR/USD"}},
	{Name: "CPI YoY", Date: "2026-03-12", Time: "13:30", FREDSeries: "CPIAUCSL", Consensus: 2.9, Previous: 2.9, Unit: "%", Importance: "HIGH", Category: "inflation", AssetsAffected: []string{"SPY", "TLT", "GLD", "TIP"}},
	{Name: "Core CPI MoM", Date: "2026-03-12", Time: "13:30", FREDSeries: "CPILFESL", Consensus: 0.3, Previous: 0.4, Unit: "%", Importance: "HIGH", Category: "inflation", AssetsAffected: []string{"SPY", "TLT", "GLD", "TIP"}},
	{Name: "Initial Jobless Claims", Date: "2026-02-27", Time: "13:30", FREDSeries: "ICSA", Consensus: 215, Previous: 219, Unit: "K", Importance: "MEDIUM", Category: "labor", AssetsAffected: []string{"SPY", "TLT"}},
	{Name: "GDP QoQ", Date: "2026-02-27", Time: "13:30", FREDSeries: "A191RL1Q225SBEA", Consensus: 2.3, Previous: 2.3, Unit: "%", Importance: "HIGH", Category: "growth", AssetsAffected: []string{"SPY", "IWM", "TLT"}},
	{Name: "PCE Price Index YoY", Date: "2026-02-28", Time: "13:30", FREDSeries: "PCEPI", Consensus: 2.6, Previous: 2.6, Unit: "%", Importance: "HIGH", Category: "inflation", AssetsAffected: []string{"SPY", "TLT", "GLD"}},
	{Name: "ISM Manufacturing PMI", Date: "2026-03-03", Time: "15:00", FREDSeries: "NAPM", Consensus: 49.5, Previous: 49.2, Unit: "", Importance: "MEDIUM", Category: "manufacturing", AssetsAffected: []string{"SPY", "XLI", "CAT"}},
	{Name: "FOMC Rate Decision", Date: "2026-03-19", Time: "19:00", FREDSeries: "DFF", Consensus: 4.50, Previous: 4.50, Unit: "%", Importance: "HIGH", Category: "rates", AssetsAffected: []string{"SPY", "TLT", "GLD", "QQQ", "IWM", "XLF"}},
}

// Calendar is the loaded event set. Reload replaces it atomically, so
// readers always see a complete calendar.
type Calendar struct {
	mu     sync.RWMutex
	path   string
	events []Event
	log    zerolog.Logger
}

// LoadCalendar reads the calendar file at path. A missing file is seeded
// with the default events; an unreadable one falls back to the seeds
// without overwriting the operator's file.
func LoadCalendar(path string, log zerolog.Logger) *Calendar {
	c := &Calendar{
		path: path,
		log:  log.With().Str("component", "event_calendar").Logger(),
	}

	if err := c.Reload(); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			c.events = append([]Event(nil), seedEvents...)
			if writeErr := c.writeSeeds(); writeErr != nil {
				c.log.Warn().Err(writeErr).Str("path", path).Msg("Could not write seed calendar")
			} else {
				c.log.Info().Str("path", path).Int("events", len(c.events)).Msg("Seeded event calendar")
			}
		} else {
			c.events = append([]Event(nil), seedEvents...)
			c.log.Warn().Err(err).Str("path", path).Msg("Calendar file unreadable, using seeded events")
		}
	}

	return c
}

// Reload re-reads the calendar file, replacing the in-memory set on success.
func (c *Calendar) Reload() error {
	data, err := os.ReadFile(c.path)
	if err != nil {
		return err
	}

	var events []Event
	if err := json.Unmarshal(data, &events); err != nil {
		return fmt.Errorf("failed to parse calendar file: %w", err)
	}

	c.mu.Lock()
	c.events = events
	c.mu.Unlock()

	c.log.Info().Int("events", len(events)).Msg("Event calendar loaded")
	return nil
}

func (c *Calendar) writeSeeds() error {
	data, err := json.MarshalIndent(c.events, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(c.path, data, 0644)
}

// All returns a copy of every calendar event.
func (c *Calendar) All() []Event {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Event, len(c.events))
	copy(out, c.events)
	return out
}

// Upcoming returns events scheduled within the next hours, soonest first.
func (c *Calendar) Upcoming(hours float64) []Event {
	now := time.Now().UTC()
	cutoff := now.Add(time.Duration(hours * float64(time.Hour)))

	c.mu.RLock()
	defer c.mu.RUnlock()

	var upcoming []Event
	for _, e := range c.events {
		at, err := e.At()
		if err != nil {
			continue
		}
		if !at.Before(now) && !at.After(cutoff) {
			upcoming = append(upcoming, e)
		}
	}
	sort.Slice(upcoming, func(i, j int) bool {
		return upcoming[i].Date+" "+upcoming[i].Time < upcoming[j].Date+" "+upcoming[j].Time
	})
	return upcoming
}

// APIEvent is the wire shape of an upcoming event.
type APIEvent struct {
	Name              string   `json:"name"`
	Datetime          string   `json:"datetime"`
	MinutesUntil      int      `json:"minutes_until"`
	HoursUntil        float64  `json:"hours_until"`
	Consensus         float64  `json:"consensus"`
	Previous          float64  `json:"previous"`
	Unit              string   `json:"unit"`
	Importance        string   `json:"importance"`
	Category          string   `json:"category"`
	AssetsAffected    []string `json:"assets_affected"`
	ImpactDescription string   `json:"impact_description"`
}

// UpcomingForAPI returns the events of the next hours in wire shape.
func (c *Calendar) UpcomingForAPI(hours float64) []APIEvent {
	now := time.Now().UTC()

	events := c.Upcoming(hours)
	out := make([]APIEvent, 0, len(events))
	for _, e := range events {
		at, err := e.At()
		if err != nil {
			continue
		}
		until := at.Sub(now)
		out = append(out, APIEvent{
			Name:              e.Name,
			Datetime:          at.Format(time.RFC3339),
			MinutesUntil:      int(until.Minutes()),
			HoursUntil:        math.Round(until.Hours()*10) / 10,
			Consensus:         e.Consensus,
			Previous:          e.Previous,
			Unit:              e.Unit,
			Importance:        e.Importance,
			Category:          e.Category,
			AssetsAffected:    e.AssetsAffected,
			ImpactDescription: ImpactDescription(e.Category),
		})
	}
	return out
}

// ImpactDescription summarizes how releases in a category usually trade.
func ImpactDescription(category string) string {
	switch category {
	case "labor":
		return "Strong data = hawkish Fed = risk off. Weak data = dovish Fed = risk on initially, then recession fears."
	case "inflation":
		return "Hot inflation = hawkish Fed = bonds down, stocks volatile. Cool inflation = rally in risk assets."
	case "growth":
		return "Strong GDP = risk on. Weak GDP = recession fears but also rate cut hopes."
	case "rates":
		return "Hawkish surprise = risk off. Dovish surprise = massive rally."
	case "manufacturing":
		return "Above 50 = expansion, bullish for industrials. Below 50 = contraction, defensive positioning."
	default:
		return "Market moving event."
	}
}
