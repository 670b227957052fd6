package blowup

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/aristath/hydra/internal/clients/deribit"
	"github.com/aristath/hydra/internal/clients/polygon"
	"github.com/aristath/hydra/internal/events"
)

// barSource is the slice of the Polygon client the components consume.
type barSource interface {
	Available() bool
	PrevDayBar(ctx context.Context, ticker string) (*polygon.Bar, bool)
}

// futuresBook is the slice of the Deribit client the cascade component
// consumes.
type futuresBook interface {
	BookSummaryByCurrency(ctx context.Context, currency, kind string) ([]deribit.BookSummary, bool)
}

// eventSource yields scheduled releases inside a look-ahead window.
type eventSource interface {
	Upcoming(hours float64) []events.Event
}

// componentFetcher produces one component's normalized score. The detector
// stamps the weight on afterwards.
type componentFetcher interface {
	Name() string
	Fetch(ctx context.Context) ComponentScore
}

// avgSPYVolume approximates the 20-day average daily SPY volume. A rolling
// average would need paid history access; this constant tracks the actual
// average within ~15%.
const avgSPYVolume = 80_000_000

// vixComponent scores the volatility level itself. High VIX means the
// market is already pricing violence; a rising VIX on top of a high level
// compounds the score.
type vixComponent struct {
	bars barSource
}

func (c *vixComponent) Name() string { return compVIXInversion }

func (c *vixComponent) Fetch(ctx context.Context) ComponentScore {
	cs := ComponentScore{Name: c.Name(), Source: "polygon_prev", Healthy: true, Details: map[string]interface{}{}}
	if !c.bars.Available() {
		cs.Healthy = false
		cs.Source = "no_api_key"
		return cs
	}

	bar, ok := c.bars.PrevDayBar(ctx, "I:VIX")
	if !ok {
		cs.Healthy = false
		cs.Details["error"] = "No VIX data"
		return cs
	}

	change := 0.0
	if bar.Open > 0 {
		change = (bar.Close - bar.Open) / bar.Open
	}

	// Band edges are inclusive: a 20.0 close already scores.
	score := 0.0
	switch {
	case bar.Close >= 35:
		score = 1.0
	case bar.Close >= 30:
		score = 0.8
	case bar.Close >= 25:
		score = 0.5
	case bar.Close >= 22:
		score = 0.3
	case bar.Close >= 20:
		score = 0.15
	}
	if change > 0.10 {
		score = math.Min(1.0, score+0.3)
	} else if change > 0.05 {
		score = math.Min(1.0, score+0.15)
	}

	cs.RawValue = score
	cs.Details["vix_close"] = round2(bar.Close)
	cs.Details["vix_open"] = round2(bar.Open)
	cs.Details["vix_high"] = round2(bar.High)
	cs.Details["vix_change_pct"] = round2(change * 100)
	cs.Details["score_reason"] = fmt.Sprintf("VIX %.1f, change %+.1f%%", bar.Close, change*100)
	return cs
}

// flowComponent proxies options flow pressure from VIX level and SPY
// volume. It also emits the direction hint and VIX level the detector's
// regime logic reads back.
type flowComponent struct {
	bars barSource
}

func (c *flowComponent) Name() string { return compFlowImbalance }

func (c *flowComponent) Fetch(ctx context.Context) ComponentScore {
	cs := ComponentScore{Name: c.Name(), Source: "polygon_prev", Healthy: true, Details: map[string]interface{}{}}
	if !c.bars.Available() {
		cs.Healthy = false
		cs.Source = "no_api_key"
		return cs
	}

	spy, spyOK := c.bars.PrevDayBar(ctx, "SPY")
	volume := 0.0
	if spyOK {
		volume = spy.Volume
	}
	volRatio := volume / avgSPYVolume

	vix := 20.0
	vixBar, vixOK := c.bars.PrevDayBar(ctx, "I:VIX")
	if vixOK {
		vix = vixBar.Close
	}

	score := 0.0
	hint := "neutral"
	switch {
	case vix > 25 && volRatio > 1.5:
		score = math.Min(1.0, (vix-20)/20*volRatio/2)
		hint = "bearish"
	case vix > 30:
		score = math.Min(1.0, (vix-20)/25)
		hint = "bearish"
	case vix > 22:
		score = math.Min(0.4, (vix-18)/20)
		hint = "bearish"
	case vix < 15 && volRatio > 2:
		score = math.Min(0.6, volRatio/4)
		hint = "bullish"
	}

	cs.RawValue = score
	cs.Healthy = spyOK || vixOK
	cs.Details["spy_volume"] = volume
	cs.Details["vol_ratio"] = round2(volRatio)
	cs.Details["vix"] = round2(vix)
	cs.Details["direction_hint"] = hint
	return cs
}

// oiSample is one open-interest observation for cascade tracking.
type oiSample struct {
	at time.Time
	oi float64
}

// cascadeComponent watches BTC perpetual funding and open-interest swings.
// Extreme funding means crowded leverage; a fast OI drop means the
// liquidation cascade is already running, and crypto stress bleeds into
// equity index futures within minutes.
type cascadeComponent struct {
	book futuresBook

	mu        sync.Mutex
	oiHistory []oiSample // capped at oiHistoryCap
}

const oiHistoryCap = 20

func (c *cascadeComponent) Name() string { return compCryptoCascade }

func (c *cascadeComponent) Fetch(ctx context.Context) ComponentScore {
	cs := ComponentScore{Name: c.Name(), Source: "deribit", Healthy: true, Details: map[string]interface{}{}}

	summaries, ok := c.book.BookSummaryByCurrency(ctx, "BTC", "future")
	if !ok {
		cs.Healthy = false
		cs.Source = "deribit_failed"
		return cs
	}

	score := 0.0
	totalOI := 0.0
	for _, item := range summaries {
		if item.InstrumentName != "BTC-PERPETUAL" {
			continue
		}
		totalOI = item.OpenInterest
		cs.Details["btc_price"] = item.MarkPrice
		cs.Details["perpetual_oi"] = item.OpenInterest
		cs.Details["funding_8h"] = item.Funding8H

		// Funding past 0.05% per 8h marks crowded leverage.
		if math.Abs(item.Funding8H) > 0.0005 {
			score += math.Min(0.5, math.Abs(item.Funding8H)/0.001)
		}
		break
	}

	if totalOI > 0 {
		c.mu.Lock()
		c.oiHistory = append(c.oiHistory, oiSample{at: time.Now(), oi: totalOI})
		if len(c.oiHistory) > oiHistoryCap {
			c.oiHistory = c.oiHistory[len(c.oiHistory)-oiHistoryCap:]
		}
		if n := len(c.oiHistory); n >= 2 {
			prev := c.oiHistory[n-2].oi
			if prev > 0 {
				oiChange := (totalOI - prev) / prev
				cs.Details["oi_change_pct"] = oiChange
				if oiChange <= -0.03 {
					// OI unwinding fast: cascade in progress.
					score += math.Min(0.5, math.Abs(oiChange)*10)
				} else if oiChange > 0.05 {
					// Leverage building.
					score += math.Min(0.3, oiChange*5)
				}
			}
		}
		c.mu.Unlock()
	}

	cs.RawValue = math.Min(1.0, score)
	return cs
}

// gapComponent scores the prior session's trading range. Wide ranges
// cluster; yesterday's violence raises the odds of today's.
type gapComponent struct {
	bars barSource
}

func (c *gapComponent) Name() string { return compPremarketGap }

func (c *gapComponent) Fetch(ctx context.Context) ComponentScore {
	cs := ComponentScore{Name: c.Name(), Source: "polygon_prev", Healthy: true, Details: map[string]interface{}{}}
	if !c.bars.Available() {
		cs.Healthy = false
		cs.Source = "no_api_key"
		return cs
	}

	bar, ok := c.bars.PrevDayBar(ctx, "SPY")
	if !ok || bar.Open <= 0 || bar.Close <= 0 {
		cs.Healthy = false
		cs.Details["error"] = "No prev data"
		return cs
	}

	dailyMove := (bar.Close - bar.Open) / bar.Open
	dailyRange := (bar.High - bar.Low) / bar.Close

	score := 0.0
	switch {
	case dailyRange > 0.025:
		score = 1.0
	case dailyRange > 0.018:
		score = 0.7
	case dailyRange > 0.012:
		score = 0.4
	case dailyRange > 0.008:
		score = 0.2
	}

	direction := "up"
	if dailyMove <= 0 {
		direction = "down"
	}

	cs.RawValue = score
	cs.Details["prev_open"] = round2(bar.Open)
	cs.Details["prev_high"] = round2(bar.High)
	cs.Details["prev_low"] = round2(bar.Low)
	cs.Details["prev_close"] = round2(bar.Close)
	cs.Details["daily_move_pct"] = round2(dailyMove * 100)
	cs.Details["daily_range_pct"] = round2(dailyRange * 100)
	cs.Details["move_direction"] = direction
	cs.Details["score_reason"] = fmt.Sprintf("%.2f%% daily range", dailyRange*100)
	return cs
}

// eventComponent scores proximity to scheduled macro releases. Inside the
// release window itself the component maxes out regardless of anything else
// happening in the tape.
type eventComponent struct {
	calendar eventSource
	now      func() time.Time
}

func (c *eventComponent) Name() string { return compEventProximity }

func (c *eventComponent) Fetch(_ context.Context) ComponentScore {
	cs := ComponentScore{Name: c.Name(), Source: "calendar", Healthy: true, Details: map[string]interface{}{}}

	now := c.now()
	score := 0.0
	eventsSoon := []EventSoon{}

	for _, ev := range c.calendar.Upcoming(24) {
		at, err := ev.At()
		if err != nil {
			continue
		}
		minutesUntil := at.Sub(now).Minutes()

		switch {
		case minutesUntil >= -30 && minutesUntil <= 30:
			score = math.Max(score, 1.0)
		case minutesUntil > 30 && minutesUntil <= 120:
			score = math.Max(score, 0.5)
		case minutesUntil > 120 && minutesUntil <= 1440:
			score = math.Max(score, 0.2)
		default:
			continue
		}
		eventsSoon = append(eventsSoon, EventSoon{
			Name:         ev.Name,
			MinutesUntil: int(minutesUntil),
			Datetime:     at.Format(time.RFC3339),
		})
	}

	cs.RawValue = score
	cs.Details["events_soon"] = eventsSoon
	return cs
}

// crossAssetComponent looks for SPY, TLT, GLD and VIX all moving the same
// way. Normally equities and bonds trade against each other; alignment
// means a regime-level repricing.
type crossAssetComponent struct {
	bars barSource
}

func (c *crossAssetComponent) Name() string { return compCrossAsset }

func (c *crossAssetComponent) Fetch(ctx context.Context) ComponentScore {
	cs := ComponentScore{Name: c.Name(), Source: "polygon_prev", Healthy: true, Details: map[string]interface{}{}}
	if !c.bars.Available() {
		cs.Healthy = false
		cs.Source = "no_api_key"
		return cs
	}

	changes := map[string]float64{}
	for _, ticker := range []string{"SPY", "TLT", "GLD", "I:VIX"} {
		bar, ok := c.bars.PrevDayBar(ctx, ticker)
		if !ok || bar.Open <= 0 {
			continue
		}
		name := ticker
		if ticker == "I:VIX" {
			name = "VIX"
		}
		changes[name] = (bar.Close - bar.Open) / bar.Open
	}

	rounded := map[string]interface{}{}
	for k, v := range changes {
		rounded[k] = round2(v * 100)
	}
	cs.Details["changes"] = rounded

	if len(changes) < 3 {
		cs.Healthy = len(changes) > 0
		cs.Details["error"] = fmt.Sprintf("Only %d assets reporting", len(changes))
		return cs
	}

	positive, negative := 0, 0
	sumMagnitude := 0.0
	for _, v := range changes {
		sumMagnitude += math.Abs(v)
		if v > 0.001 {
			positive++
		} else if v < -0.001 {
			negative++
		}
	}

	maxAligned := positive
	if negative > positive {
		maxAligned = negative
	}
	if maxAligned >= 3 {
		avgMagnitude := sumMagnitude / float64(len(changes))
		cs.RawValue = math.Min(1.0, float64(maxAligned)/4*(avgMagnitude/0.01))
		alignment := "risk_on"
		if negative > positive {
			alignment = "risk_off"
		}
		cs.Details["alignment"] = alignment
	}
	cs.Details["up_count"] = positive
	cs.Details["down_count"] = negative
	return cs
}

// volumeComponent scores prior-day volume against the running average,
// with the day's range as a second volatility tell.
type volumeComponent struct {
	bars barSource
}

func (c *volumeComponent) Name() string { return compVolumeSurge }

func (c *volumeComponent) Fetch(ctx context.Context) ComponentScore {
	cs := ComponentScore{Name: c.Name(), Source: "polygon_prev", Healthy: true, Details: map[string]interface{}{}}
	if !c.bars.Available() {
		cs.Healthy = false
		cs.Source = "no_api_key"
		return cs
	}

	bar, ok := c.bars.PrevDayBar(ctx, "SPY")
	if !ok {
		cs.Healthy = false
		cs.Details["error"] = "No prev data"
		return cs
	}

	volRatio := bar.Volume / avgSPYVolume
	rangePct := 0.0
	if bar.Close > 0 {
		rangePct = (bar.High - bar.Low) / bar.Close * 100
	}

	score := 0.0
	switch {
	case volRatio > 3.0 || rangePct > 2.5:
		score = 1.0
	case volRatio > 2.0 || rangePct > 2.0:
		score = 0.6
	case volRatio > 1.5 || rangePct > 1.5:
		score = 0.3
	case volRatio > 1.2 || rangePct > 1.0:
		score = 0.15
	}

	cs.RawValue = score
	cs.Details["prev_volume"] = bar.Volume
	cs.Details["avg_volume"] = float64(avgSPYVolume)
	cs.Details["vol_ratio"] = round2(volRatio)
	cs.Details["prev_range_pct"] = round2(rangePct)
	cs.Details["prev_close"] = bar.Close
	return cs
}

// sectorETFs are the five largest sector funds by assets. Five tickers keep
// the component inside free-tier rate limits while still covering ~70% of
// S&P 500 weight.
var sectorETFs = []string{"XLK", "XLF", "XLV", "XLY", "XLE"}

// breadthComponent detects one-sided sector moves. Narrow selloffs rotate;
// everything down together is de-risking.
type breadthComponent struct {
	bars barSource
}

func (c *breadthComponent) Name() string { return compBreadth }

func (c *breadthComponent) Fetch(ctx context.Context) ComponentScore {
	cs := ComponentScore{Name: c.Name(), Source: "polygon_prev", Healthy: true, Details: map[string]interface{}{}}
	if !c.bars.Available() {
		cs.Healthy = false
		cs.Source = "no_api_key"
		return cs
	}

	upCount, downCount := 0, 0
	changes := map[string]interface{}{}
	reporting := 0

	for _, etf := range sectorETFs {
		bar, ok := c.bars.PrevDayBar(ctx, etf)
		if !ok || bar.Open <= 0 {
			continue
		}
		reporting++
		changePct := (bar.Close - bar.Open) / bar.Open * 100
		changes[etf] = round2(changePct)
		if changePct > 0.1 {
			upCount++
		} else if changePct < -0.1 {
			downCount++
		}
	}

	cs.Details["sector_changes"] = changes

	total := upCount + downCount
	if total < 3 {
		cs.Healthy = reporting > 0
		cs.Details["error"] = fmt.Sprintf("Only %d sectors showing significant moves", total)
		return cs
	}

	maxSide := upCount
	direction := "up"
	if downCount > upCount {
		maxSide = downCount
		direction = "down"
	}
	breadthRatio := float64(maxSide) / float64(len(sectorETFs))

	if breadthRatio > 0.70 {
		cs.RawValue = math.Min(1.0, (breadthRatio-0.70)/0.20)
		cs.Details["collapse_direction"] = direction
	} else if breadthRatio > 0.60 {
		cs.RawValue = 0.3
		cs.Details["collapse_direction"] = direction
	}

	cs.Details["up_count"] = upCount
	cs.Details["down_count"] = downCount
	cs.Details["total_reporting"] = reporting
	cs.Details["breadth_ratio"] = round2(breadthRatio)
	return cs
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
