package blowup

import (
	"context"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// historyCap bounds the in-memory result ring used for trend displays.
const historyCap = 100

// Detector synthesizes the component scores into the blowup probability.
// Calculate is serialized; the scorer worker is the only caller in
// production but API handlers may force a calculation on a cold start.
type Detector struct {
	log         zerolog.Logger
	weightsPath string
	store       *HistoryStore // optional
	fetchers    []componentFetcher
	now         func() time.Time

	tickMu sync.Mutex // serializes Calculate; never held with mu

	mu      sync.Mutex // guards the published state below
	weights Weights
	history []*Result
	last    *Result
}

// NewDetector wires the eight component fetchers against the shared
// clients. store may be nil (tests); weights load from weightsPath with
// defaults as fallback.
func NewDetector(bars barSource, book futuresBook, calendar eventSource, weightsPath string, store *HistoryStore, log zerolog.Logger) *Detector {
	logger := log.With().Str("component", "blowup").Logger()

	weights, err := LoadWeights(weightsPath)
	if err != nil {
		logger.Warn().Err(err).Msg("weights file unreadable, using defaults")
	}

	d := &Detector{
		log:         logger,
		weightsPath: weightsPath,
		store:       store,
		weights:     weights,
		now:         time.Now,
	}
	d.fetchers = []componentFetcher{
		&vixComponent{bars: bars},
		&flowComponent{bars: bars},
		&cascadeComponent{book: book},
		&gapComponent{bars: bars},
		&eventComponent{calendar: calendar, now: func() time.Time { return d.now().UTC() }},
		&crossAssetComponent{bars: bars},
		&volumeComponent{bars: bars},
		&breadthComponent{bars: bars},
	}
	return d
}

// Calculate runs every component and folds the scores into one result.
// A component failure never fails the calculation; it lowers confidence.
// The component fetches run outside the snapshot lock so Last and the
// read APIs stay responsive while a poll is in flight.
func (d *Detector) Calculate(ctx context.Context) *Result {
	d.tickMu.Lock()
	defer d.tickMu.Unlock()

	timestamp := d.now().UTC().Format(time.RFC3339)
	weights := d.Weights()

	components := make([]ComponentScore, 0, len(d.fetchers))
	var triggers []string

	for _, fetcher := range d.fetchers {
		cs := safeFetch(ctx, fetcher)
		cs.Weight = weights.weightFor(cs.Name)
		cs.WeightedValue = cs.RawValue * cs.Weight
		components = append(components, cs)

		if cs.RawValue > 0.3 {
			triggers = append(triggers, fmt.Sprintf("%s:%.2f", cs.Name, cs.RawValue))
		}
	}

	totalWeighted := 0.0
	healthy := 0
	for _, cs := range components {
		totalWeighted += cs.WeightedValue
		if cs.Healthy {
			healthy++
		}
	}

	probability := int(math.Round(totalWeighted * 100))
	if probability > 100 {
		probability = 100
	} else if probability < 0 {
		probability = 0
	}
	confidence := math.Round(float64(healthy)/float64(len(components))*100) / 100

	direction := determineDirection(components)
	regime := determineRegime(components, direction)
	recommendation := determineRecommendation(probability, direction, confidence)

	if triggers == nil {
		triggers = []string{}
	}
	result := &Result{
		BlowupProbability: probability,
		Direction:         direction,
		Regime:            regime,
		Confidence:        confidence,
		Triggers:          triggers,
		Recommendation:    recommendation,
		EventsNext30Min:   eventsNext30Min(components),
		Timestamp:         timestamp,
		Components:        components,
	}

	var breakdown []string
	for _, cs := range components {
		if cs.RawValue > 0 {
			breakdown = append(breakdown, fmt.Sprintf("%s(%.2f*%.2f)", cs.Name, cs.RawValue, cs.Weight))
		}
	}
	d.log.Info().
		Int("score", probability).
		Str("direction", string(direction)).
		Str("breakdown", strings.Join(breakdown, " + ")).
		Msg("Blowup calculated")

	d.mu.Lock()
	d.history = append(d.history, result)
	if len(d.history) > historyCap {
		d.history = d.history[len(d.history)-historyCap:]
	}
	d.last = result
	d.mu.Unlock()

	if d.store != nil {
		// Previous-day bars carry no live quote; the price column stays
		// NULL and the accuracy loop tracks live moves separately.
		if err := d.store.Save(result, nil); err != nil {
			d.log.Error().Err(err).Msg("History save failed")
		}
	}
	return result
}

// safeFetch converts a panicking component into an unhealthy zero score.
func safeFetch(ctx context.Context, fetcher componentFetcher) (cs ComponentScore) {
	defer func() {
		if r := recover(); r != nil {
			cs = ComponentScore{
				Name:    fetcher.Name(),
				Source:  "error",
				Healthy: false,
				Details: map[string]interface{}{"error": fmt.Sprint(r)},
			}
		}
	}()
	return fetcher.Fetch(ctx)
}

// determineDirection tallies directional votes from the components that
// carry one. Three agreeing votes make a call; anything less is NEUTRAL.
func determineDirection(components []ComponentScore) Direction {
	bullish, bearish := 0, 0
	for _, cs := range components {
		switch cs.Name {
		case compVIXInversion:
			if cs.RawValue > 0.3 {
				bearish++
			}
		case compFlowImbalance:
			switch detailString(cs.Details, "direction_hint") {
			case "bearish":
				bearish++
			case "bullish":
				bullish++
			}
		case compCrossAsset:
			switch detailString(cs.Details, "alignment") {
			case "risk_off":
				bearish++
			case "risk_on":
				bullish++
			}
		case compBreadth:
			switch detailString(cs.Details, "collapse_direction") {
			case "down":
				bearish++
			case "up":
				bullish++
			}
		}
	}
	switch {
	case bearish >= 3:
		return DirectionBearish
	case bullish >= 3:
		return DirectionBullish
	default:
		return DirectionNeutral
	}
}

// determineRegime reads the VIX level back out of the flow component and
// combines it with direction and cross-asset alignment.
func determineRegime(components []ComponentScore, direction Direction) Regime {
	vix := 20.0
	alignment := ""
	for _, cs := range components {
		switch cs.Name {
		case compFlowImbalance:
			vix = detailFloat(cs.Details, "vix", 20)
		case compCrossAsset:
			alignment = detailString(cs.Details, "alignment")
		}
	}

	switch {
	case vix > 25 || direction == DirectionBearish:
		return RegimeRiskOff
	case vix < 18 && direction == DirectionBullish:
		return RegimeRiskOn
	case alignment != "":
		return RegimeTransition
	default:
		return RegimeUnknown
	}
}

// determineRecommendation maps score bands to trade posture. Low data
// confidence always means no trade, whatever the score says.
func determineRecommendation(score int, direction Direction, confidence float64) Recommendation {
	if confidence < 0.5 {
		return RecommendNoTrade
	}
	switch {
	case score < 50:
		return RecommendScalpOnly
	case score < 70:
		return RecommendStraddle
	case direction == DirectionBearish:
		return RecommendDirectionalPut
	case direction == DirectionBullish:
		return RecommendDirectionalCall
	default:
		return RecommendStraddle
	}
}

// eventsNext30Min pulls the releases inside the live window out of the
// proximity component.
func eventsNext30Min(components []ComponentScore) []EventSoon {
	out := []EventSoon{}
	for _, cs := range components {
		if cs.Name != compEventProximity {
			continue
		}
		soon, ok := cs.Details["events_soon"].([]EventSoon)
		if !ok {
			continue
		}
		for _, ev := range soon {
			if ev.MinutesUntil >= -30 && ev.MinutesUntil <= 30 {
				out = append(out, ev)
			}
		}
	}
	return out
}

// Last returns the most recent result, or nil before the first calculation.
func (d *Detector) Last() *Result {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.last
}

// RecentScores returns up to count points from the in-memory ring, oldest
// first, for trend displays.
func (d *Detector) RecentScores(count int) []ScorePoint {
	d.mu.Lock()
	defer d.mu.Unlock()

	start := 0
	if len(d.history) > count {
		start = len(d.history) - count
	}
	points := make([]ScorePoint, 0, len(d.history)-start)
	for _, r := range d.history[start:] {
		points = append(points, ScorePoint{
			Timestamp: r.Timestamp,
			Score:     r.BlowupProbability,
			Direction: r.Direction,
		})
	}
	return points
}

// Weights returns a copy of the active weights.
func (d *Detector) Weights() Weights {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.weights.Clone()
}

// ReloadWeights re-reads the weights file. The calibration job calls this
// after persisting a new set so the next Calculate picks it up.
func (d *Detector) ReloadWeights() {
	weights, err := LoadWeights(d.weightsPath)
	if err != nil {
		d.log.Warn().Err(err).Msg("Weights reload failed, keeping current set")
		return
	}
	d.mu.Lock()
	d.weights = weights
	d.mu.Unlock()
	d.log.Info().Interface("weights", weights).Msg("Weights reloaded")
}

// weightFor returns the component's weight, falling back to the default
// then to 0.1 for components the file has never seen.
func (w Weights) weightFor(name string) float64 {
	if v, ok := w[name]; ok {
		return v
	}
	if v, ok := DefaultWeights()[name]; ok {
		return v
	}
	return 0.1
}

func detailString(details map[string]interface{}, key string) string {
	if v, ok := details[key].(string); ok {
		return v
	}
	return ""
}

func detailFloat(details map[string]interface{}, key string, def float64) float64 {
	if v, ok := details[key].(float64); ok {
		return v
	}
	return def
}

// VIXLevel reads the VIX close out of the component details, preferring
// the volatility component and falling back to the flow component's
// copy. 20 when neither fetched.
func (r *Result) VIXLevel() float64 {
	for _, cs := range r.Components {
		if cs.Name == compVIXInversion {
			if v, ok := cs.Details["vix_close"].(float64); ok {
				return v
			}
		}
	}
	for _, cs := range r.Components {
		if cs.Name == compFlowImbalance {
			if v, ok := cs.Details["vix"].(float64); ok {
				return v
			}
		}
	}
	return 20.0
}

// SPYMove reads the prior session's percent change and range out of the
// gap component details. Zeros when the fetch failed.
func (r *Result) SPYMove() (changePct, rangePct float64) {
	for _, cs := range r.Components {
		if cs.Name != compPremarketGap {
			continue
		}
		changePct = detailFloat(cs.Details, "daily_move_pct", 0)
		rangePct = detailFloat(cs.Details, "daily_range_pct", 0)
	}
	return changePct, rangePct
}
