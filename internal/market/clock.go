// Package market provides the US equity session clock. Worker cadence and
// the gamma engine's refresh schedule both key off Eastern wall time.
package market

import (
	"sync"
	"time"
)

var (
	easternOnce sync.Once
	eastern     *time.Location
)

// Eastern returns the America/New_York location. If the zone database is
// missing (stripped container images), it falls back to a fixed UTC-5
// offset, which is wrong for one hour a year around DST transitions.
func Eastern() *time.Location {
	easternOnce.Do(func() {
		loc, err := time.LoadLocation("America/New_York")
		if err != nil {
			loc = time.FixedZone("ET", -5*60*60)
		}
		eastern = loc
	})
	return eastern
}

// InRegularHours reports whether t falls inside the 9:30-16:00 ET regular
// session on a weekday. Exchange holidays are not modeled; a holiday just
// means the fast cadence runs against quiet data.
func InRegularHours(t time.Time) bool {
	et := t.In(Eastern())
	switch et.Weekday() {
	case time.Saturday, time.Sunday:
		return false
	}
	minutes := et.Hour()*60 + et.Minute()
	return minutes >= 9*60+30 && minutes < 16*60
}

// MinutesSinceOpen returns minutes elapsed since the 9:30 ET open. Negative
// before the open, and meaningless on weekends (callers gate on
// InRegularHours first).
func MinutesSinceOpen(t time.Time) int {
	et := t.In(Eastern())
	return et.Hour()*60 + et.Minute() - (9*60 + 30)
}

// InFinalHour reports whether t falls in the 15:00-16:00 ET window, when
// charm decay concentrates dealer hedging flow.
func InFinalHour(t time.Time) bool {
	if !InRegularHours(t) {
		return false
	}
	return t.In(Eastern()).Hour() == 15
}

// InOpeningHour reports whether t falls in the first half hour of the
// session, 9:30-10:00 ET.
func InOpeningHour(t time.Time) bool {
	if !InRegularHours(t) {
		return false
	}
	return MinutesSinceOpen(t) < 30
}
