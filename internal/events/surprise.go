package events

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/hydra/internal/clients/fred"
)

// Surprise is the outcome of comparing a released number to consensus.
type Surprise struct {
	EventName    string   `json:"event_name"`
	Timestamp    string   `json:"timestamp"`
	Actual       float64  `json:"actual"`
	Consensus    float64  `json:"consensus"`
	Previous     float64  `json:"previous"`
	SurprisePct  float64  `json:"surprise_pct"` // (actual - consensus) / |consensus|
	SurpriseStd  float64  `json:"surprise_std"` // standard deviations from consensus
	Direction    string   `json:"direction"`    // BETTER_THAN_EXPECTED, WORSE_THAN_EXPECTED, IN_LINE
	Magnitude    string   `json:"magnitude"`    // MASSIVE, LARGE, MODERATE, SMALL
	MarketImpact string   `json:"market_impact"`
	TradeSignals []string `json:"trade_signals"`
	Confidence   float64  `json:"confidence"`
}

// historicalStdev is the typical surprise width per event, used to express a
// release in standard deviations. Events not listed default to 1.0.
var historicalStdev = map[string]float64{
	"Nonfarm Payrolls":       40,
	"CPI YoY":                0.1,
	"Core CPI MoM":           0.1,
	"Initial Jobless Claims": 15,
	"GDP QoQ":                0.3,
	"PCE Price Index YoY":    0.1,
	"ISM Manufacturing PMI":  1.5,
	"FOMC Rate Decision":     0.25,
}

// releaseSource is the slice of the FRED client the detector needs.
type releaseSource interface {
	Available() bool
	Latest(ctx context.Context, seriesID string) (fred.Observation, bool)
}

// Detector compares released economic data to the calendar's consensus.
type Detector struct {
	calendar *Calendar
	fred     releaseSource
	store    *Store
	log      zerolog.Logger
}

// NewDetector creates a surprise detector. The store may be nil (results are
// then not persisted), which the tests use.
func NewDetector(calendar *Calendar, fredClient releaseSource, store *Store, log zerolog.Logger) *Detector {
	return &Detector{
		calendar: calendar,
		fred:     fredClient,
		store:    store,
		log:      log.With().Str("component", "surprise_detector").Logger(),
	}
}

// Calendar returns the calendar the detector watches.
func (d *Detector) Calendar() *Calendar {
	return d.calendar
}

// CheckRelease polls FRED for the event's series and, if a fresh number is
// available, scores the surprise. The second return is false when no data
// could be fetched (series missing, no API key, not yet published).
func (d *Detector) CheckRelease(ctx context.Context, event Event) (*Surprise, bool) {
	if event.FREDSeries == "" || !d.fred.Available() {
		return nil, false
	}

	obs, ok := d.fred.Latest(ctx, event.FREDSeries)
	if !ok {
		return nil, false
	}
	actual := obs.Value

	var surprisePct float64
	if event.Consensus != 0 {
		surprisePct = (actual - event.Consensus) / math.Abs(event.Consensus)
	}

	stdev, found := historicalStdev[event.Name]
	if !found || stdev <= 0 {
		stdev = 1.0
	}
	surpriseStd := (actual - event.Consensus) / stdev

	direction := classifyDirection(event, actual, event.Consensus)
	magnitude := classifyMagnitude(surpriseStd)

	surprise := &Surprise{
		EventName:    event.Name,
		Timestamp:    time.Now().UTC().Format(time.RFC3339),
		Actual:       actual,
		Consensus:    event.Consensus,
		Previous:     event.Previous,
		SurprisePct:  math.Round(surprisePct*10000) / 10000,
		SurpriseStd:  math.Round(surpriseStd*100) / 100,
		Direction:    direction,
		Magnitude:    magnitude,
		MarketImpact: describeImpact(event, direction, magnitude),
		TradeSignals: suggestTrades(event, direction, magnitude),
		Confidence:   0.9,
	}

	d.log.Info().
		Str("event", event.Name).
		Float64("actual", actual).
		Float64("consensus", event.Consensus).
		Str("direction", direction).
		Str("magnitude", magnitude).
		Msg("Release scored")

	return surprise, true
}

// classifyDirection decides better/worse than expected. For inflation prints
// and jobless claims a higher number is the bad outcome.
func classifyDirection(event Event, actual, consensus float64) string {
	diff := actual - consensus

	if math.Abs(diff) < 0.01*math.Abs(consensus) {
		return "IN_LINE"
	}

	higherIsWorse := event.Category == "inflation" || strings.Contains(event.Name, "Claims")
	if higherIsWorse {
		if diff > 0 {
			return "WORSE_THAN_EXPECTED"
		}
		return "BETTER_THAN_EXPECTED"
	}
	if diff > 0 {
		return "BETTER_THAN_EXPECTED"
	}
	return "WORSE_THAN_EXPECTED"
}

// classifyMagnitude buckets a surprise by standard deviations.
func classifyMagnitude(surpriseStd float64) string {
	abs := math.Abs(surpriseStd)
	switch {
	case abs >= 3:
		return "MASSIVE"
	case abs >= 2:
		return "LARGE"
	case abs >= 1:
		return "MODERATE"
	default:
		return "SMALL"
	}
}

func describeImpact(event Event, direction, magnitude string) string {
	if magnitude == "SMALL" || direction == "IN_LINE" {
		return fmt.Sprintf("%s came in line with expectations. Minimal market impact expected.", event.Name)
	}

	impacts := map[string]string{
		"labor|BETTER_THAN_EXPECTED":     "Strong labor data is hawkish for Fed. Expect rates higher for longer, pressure on growth stocks.",
		"labor|WORSE_THAN_EXPECTED":      "Weak labor data raises recession fears but also rate cut hopes. Watch for risk-off then risk-on pattern.",
		"inflation|BETTER_THAN_EXPECTED": "Cooler inflation = dovish Fed. Risk assets rally, bonds bid.",
		"inflation|WORSE_THAN_EXPECTED":  "Hot inflation = hawkish Fed. Bonds sell off, stocks volatile, dollar strengthens.",
		"growth|BETTER_THAN_EXPECTED":    "Strong growth = risk on. Cyclicals outperform.",
		"growth|WORSE_THAN_EXPECTED":     "Weak growth = recession fears. Defensive positioning.",
		"rates|BETTER_THAN_EXPECTED":     "Dovish Fed = massive risk rally.",
		"rates|WORSE_THAN_EXPECTED":      "Hawkish Fed = risk off, yields spike.",
	}

	base, found := impacts[event.Category+"|"+direction]
	if !found {
		base = fmt.Sprintf("%s surprise detected.", event.Name)
	}

	switch magnitude {
	case "MASSIVE":
		return fmt.Sprintf("MASSIVE SURPRISE: %s Expect 1-2%% moves in affected assets.", base)
	case "LARGE":
		return fmt.Sprintf("LARGE SURPRISE: %s Expect 0.5-1%% moves.", base)
	default:
		return fmt.Sprintf("MODERATE SURPRISE: %s", base)
	}
}

func suggestTrades(event Event, direction, magnitude string) []string {
	if magnitude == "SMALL" || direction == "IN_LINE" {
		return []string{"Data in line - fade any overreaction"}
	}

	var trades []string
	switch event.Category {
	case "labor":
		if direction == "WORSE_THAN_EXPECTED" {
			trades = append(trades,
				"BUY TLT calls - rate cut expectations rise",
				"SELL IWM - small caps most exposed to labor weakness",
				"BUY GLD calls - safe haven + lower rates",
			)
		} else {
			trades = append(trades,
				"SELL TLT - rates higher for longer",
				"BUY XLF calls - banks benefit from higher rates",
			)
		}
	case "inflation":
		if direction == "BETTER_THAN_EXPECTED" {
			trades = append(trades,
				"BUY QQQ calls - growth benefits from lower rates",
				"BUY TLT calls - bonds rally on dovish Fed",
				"BUY GLD - real rates decline",
			)
		} else {
			trades = append(trades,
				"BUY TLT puts - yields spike on hot inflation",
				"BUY DXY - dollar strengthens",
				"SELL XLY - consumer discretionary hit",
			)
		}
	case "rates":
		if direction == "BETTER_THAN_EXPECTED" { // dovish
			trades = append(trades,
				"BUY SPY calls - risk on",
				"BUY QQQ calls - growth rallies",
				"BUY IWM calls - small caps rip",
			)
		} else { // hawkish
			trades = append(trades,
				"BUY SPY puts - risk off",
				"BUY TLT puts - yields spike",
				"SELL growth stocks",
			)
		}
	}

	if magnitude == "MASSIVE" {
		trades = append([]string{"PRIORITY: Trade the first 15-minute candle direction"}, trades...)
	}
	return trades
}
