package gamma

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/hydra/internal/clients/polygon"
	"github.com/aristath/hydra/internal/market"
)

// GEX thresholds in dollars, tuned for SPY.
const (
	highPositiveGEX    = 500_000_000.0
	negativeGEX        = -200_000_000.0
	extremeNegativeGEX = -500_000_000.0
	highCharmPerHour   = 5_000_000.0
)

// Adaptive refresh cadence bands.
const (
	refreshRealtime = 30 * time.Second
	refreshFast     = time.Minute
	refreshNormal   = 5 * time.Minute
	refreshSlow     = 15 * time.Minute
)

// topLevels is how many strikes each key-level list keeps.
const topLevels = 5

// chainSource is the slice of the Polygon client the engine consumes.
type chainSource interface {
	OptionChain(ctx context.Context, underlying, expiration string) ([]polygon.OptionContract, bool)
}

// Engine computes dealer gamma exposure from the 0DTE option chain.
// Calculate runs on the adaptive gamma worker; Last, ShouldRefresh and
// ConvictionModifier serve API handlers and the intelligence aggregator
// concurrently.
type Engine struct {
	chain      chainSource
	store      *HistoryStore // optional
	underlying string
	log        zerolog.Logger
	now        func() time.Time

	mu           sync.Mutex
	last         *Snapshot
	lastUpdate   time.Time
	refreshEvery time.Duration
}

// NewEngine wires the engine against the option chain source. store may
// be nil (tests).
func NewEngine(chain chainSource, store *HistoryStore, underlying string, log zerolog.Logger) *Engine {
	return &Engine{
		chain:        chain,
		store:        store,
		underlying:   underlying,
		log:          log.With().Str("component", "gamma").Logger(),
		now:          time.Now,
		refreshEvery: refreshNormal,
	}
}

// Calculate fetches the same-day chain and computes a full snapshot. An
// empty or unavailable chain yields an UNKNOWN snapshot that is returned
// but neither cached nor persisted, so readers keep the last good state
// and the worker retries on the old cadence.
func (e *Engine) Calculate(ctx context.Context) *Snapshot {
	now := e.now()
	timestamp := now.UTC().Format(time.RFC3339)
	expiration := now.In(market.Eastern()).Format("2006-01-02")

	contracts, ok := e.chain.OptionChain(ctx, e.underlying, expiration)
	if !ok || len(contracts) == 0 {
		e.log.Warn().Str("expiration", expiration).Msg("option chain unavailable, gex unknown")
		return emptySnapshot(timestamp)
	}

	var spot float64
	for _, c := range contracts {
		if c.UnderlyingPrice > 0 {
			spot = c.UnderlyingPrice
			break
		}
	}

	tau := yearsToClose(now)

	var totalGEX, callGEX, putGEX, totalCharm, totalVanna float64
	gexByStrike := map[float64]float64{}

	for _, c := range contracts {
		if c.Strike <= 0 || c.OpenInterest <= 0 {
			continue
		}
		isCall := c.ContractType == "call"
		direction := 1.0
		if !isCall {
			direction = -1.0
		}
		iv := c.IV
		if iv <= 0 {
			iv = defaultIV
		}

		gex := gexPerStrike(c.Gamma, c.OpenInterest, spot, isCall)
		totalGEX += gex
		if isCall {
			callGEX += gex
		} else {
			putGEX += gex
		}
		gexByStrike[c.Strike] += gex

		totalCharm += charmRate(c.Gamma, iv, spot, c.Strike, tau) * c.OpenInterest * 100 * direction
		totalVanna += vannaRate(c.Vega, spot, c.Strike, iv, tau) * c.OpenInterest * 100 * direction
	}

	byStrike := sortedByStrike(gexByStrike)
	flip := flipPoint(byStrike, spot)

	flipDistance := 1.0
	if flip != nil && spot > 0 {
		flipDistance = math.Abs(*flip-spot) / spot
	}

	charmPerHour := totalCharm / (tau * 365.25 * 24)
	support, resistance, magnets := keyLevels(byStrike, spot, topLevels)
	refreshEvery := refreshFor(now.In(market.Eastern()), totalGEX, flipDistance)

	snapshot := &Snapshot{
		Timestamp:        timestamp,
		SpotPrice:        round2(spot),
		TotalGEX:         math.Round(totalGEX),
		CallGEX:          math.Round(callGEX),
		PutGEX:           math.Round(putGEX),
		FlipPoint:        roundPtr2(flip),
		FlipDistancePct:  round4(flipDistance),
		Regime:           classifyRegime(totalGEX, flipDistance),
		CharmFlowPerHour: math.Round(charmPerHour),
		VannaExposure:    math.Round(totalVanna),
		KeySupport:       support,
		KeyResistance:    resistance,
		Magnets:          magnets,
		RefreshSeconds:   int(refreshEvery / time.Second),
		OptionsCount:     len(contracts),
	}

	e.log.Info().
		Float64("total_gex_billions", round2(totalGEX/1e9)).
		Str("regime", string(snapshot.Regime)).
		Float64("flip_distance_pct", round2(flipDistance*100)).
		Int("options", len(contracts)).
		Msg("gex snapshot")

	if e.store != nil {
		if err := e.store.Save(snapshot); err != nil {
			e.log.Error().Err(err).Msg("gex history save failed")
		}
	}

	e.mu.Lock()
	e.last = snapshot
	e.lastUpdate = now
	e.refreshEvery = refreshEvery
	e.mu.Unlock()

	return snapshot
}

// Last returns the most recent good snapshot, or nil before the first
// successful calculation.
func (e *Engine) Last() *Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.last
}

// ShouldRefresh reports whether the adaptive interval has elapsed since
// the last good snapshot.
func (e *Engine) ShouldRefresh() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.lastUpdate.IsZero() {
		return true
	}
	return e.now().Sub(e.lastUpdate) >= e.refreshEvery
}

// RefreshInterval returns the cadence chosen by the last calculation.
func (e *Engine) RefreshInterval() time.Duration {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.refreshEvery
}

// ConvictionModifier scores how current dealer positioning treats a
// directional 0DTE trade. Gamma effects cut both ways, so the trade's
// side does not enter the rules.
func (e *Engine) ConvictionModifier() ConvictionResult {
	e.mu.Lock()
	last := e.last
	e.mu.Unlock()

	// Without a snapshot the modifier is neutral and carries no reasons.
	if last == nil {
		return ConvictionResult{
			Reasons:         []string{},
			Regime:          RegimeUnknown,
			FlipDistancePct: 1.0,
		}
	}

	modifier := 0
	reasons := []string{}

	if last.Regime == RegimeNegative {
		modifier += 10
		reasons = append(reasons, "Negative GEX favors directional trades")
	} else if last.Regime == RegimePositive && math.Abs(last.TotalGEX) > highPositiveGEX {
		modifier -= 15
		reasons = append(reasons, "High positive GEX suppresses directional moves")
	}

	if last.FlipDistancePct < 0.005 {
		modifier += 5
		reasons = append(reasons, "Near gamma flip - explosive move possible")
	}

	if market.InFinalHour(e.now()) && math.Abs(last.CharmFlowPerHour) > highCharmPerHour {
		modifier += 5
		reasons = append(reasons, "High charm flow - accelerated moves into close")
	}

	return ConvictionResult{
		Modifier:        modifier,
		Reasons:         reasons,
		Regime:          last.Regime,
		FlipDistancePct: last.FlipDistancePct,
	}
}

// classifyRegime buckets total GEX. The asymmetric bands reflect that SPY
// dealers are structurally long gamma; only a deeply negative book flips
// the market into trend-amplifying hedging.
func classifyRegime(totalGEX, flipDistance float64) Regime {
	switch {
	case totalGEX > highPositiveGEX:
		return RegimePositive
	case totalGEX < negativeGEX:
		return RegimeNegative
	case flipDistance < 0.01:
		return RegimeNeutral
	case totalGEX > 0:
		return RegimePositive
	default:
		return RegimeNegative
	}
}

// refreshFor picks the polling cadence from ET wall time, proximity to
// the flip point and how stretched the dealer book is.
func refreshFor(et time.Time, totalGEX, flipDistance float64) time.Duration {
	minutes := et.Hour()*60 + et.Minute()

	var baseline time.Duration
	switch {
	case minutes < 9*60+30:
		baseline = refreshSlow
	case minutes < 10*60:
		baseline = refreshFast
	case minutes < 14*60:
		baseline = refreshNormal
	case minutes < 15*60:
		baseline = refreshFast
	default:
		baseline = refreshRealtime
	}

	if flipDistance < 0.005 {
		return refreshRealtime
	}
	if totalGEX < extremeNegativeGEX && baseline > refreshFast {
		return refreshFast
	}
	return baseline
}

func emptySnapshot(timestamp string) *Snapshot {
	return &Snapshot{
		Timestamp:       timestamp,
		FlipDistancePct: 1.0,
		Regime:          RegimeUnknown,
		KeySupport:      []float64{},
		KeyResistance:   []float64{},
		Magnets:         []float64{},
		RefreshSeconds:  int(refreshNormal / time.Second),
	}
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }
func round4(v float64) float64 { return math.Round(v*10000) / 10000 }

func roundPtr2(v *float64) *float64 {
	if v == nil {
		return nil
	}
	r := round2(*v)
	return &r
}
