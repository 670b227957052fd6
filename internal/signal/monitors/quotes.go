package monitors

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/markcheno/go-talib"

	"github.com/aristath/hydra/internal/signal"
)

// lastClose returns the most recent daily close for symbol.
func lastClose(ctx context.Context, quotes quoteSource, symbol string) (float64, bool) {
	closes, ok := quotes.DailyCloses(ctx, symbol, 5)
	if !ok || len(closes) == 0 {
		return 0, false
	}
	return closes[len(closes)-1], true
}

// VIXMonitor flags the regime switch at VIX 20: below it premium selling
// works, above it the book flips to buying premium.
type VIXMonitor struct {
	signal.Meta
	quotes quoteSource
}

func NewVIXMonitor(quotes quoteSource) *VIXMonitor {
	return &VIXMonitor{
		Meta:  signal.NewMeta("VIX Term Structure", signal.CategoryOptions, time.Hour, 0.75),
		quotes: quotes,
	}
}

func (c *VIXMonitor) Poll(ctx context.Context) ([]signal.Signal, error) {
	now := time.Now().UTC()

	vix, ok := lastClose(ctx, c.quotes, "^VIX")
	if !ok {
		return nil, fmt.Errorf("VIX quote fetch failed")
	}
	if vix <= 20 {
		return nil, nil
	}

	priority := signal.PriorityMedium
	regime := "Elevated fear — switch from selling to buying premium on 0DTE."
	firstImp := "Cautious premium selling — wider wings"
	if vix > 25 {
		priority = signal.PriorityHigh
		regime = "PANIC regime — buy premium, protect positions."
		firstImp = "Buy straddles on SPX 0DTE"
	}

	return []signal.Signal{{
		ID:             signal.MakeID("vix", int(vix), now.Format("2006-01-02")),
		Name:           fmt.Sprintf("VIX Elevated: %.1f", vix),
		SourceName:     "CBOE VIX",
		SourceAPI:      "Yahoo Finance ^VIX",
		Category:       signal.CategoryOptions,
		Priority:       priority,
		Direction:      -0.5,
		Strength:       math.Min(1.0, (vix-15)/20),
		Description:    fmt.Sprintf("VIX at %.1f — above 20 threshold. %s", vix, regime),
		AffectedAssets: []string{"SPY", "QQQ", "UVXY", "SVXY"},
		TradeImplications: []string{
			firstImp,
			"Sell UVXY call spreads 3-4 weeks out (structural decay)",
			"VIX >30 historically = bottoming signal within 2-3 weeks",
		},
		Opportunities: []string{
			"Elevated VIX = expensive options = premium selling opportunity post-spike",
			fmt.Sprintf("VIX mean-reverts: sell vol when VIX > %.0f using UVXY", vix),
		},
		RawData:          map[string]interface{}{"vix": vix},
		DetectedAt:       now,
		TTLHours:         8.0,
		ReliabilityScore: c.Reliability(),
	}}, nil
}

// SKEWMonitor reads the CBOE SKEW index. SKEW prices far-OTM puts, so an
// elevated reading means institutions are paying up for crash insurance.
type SKEWMonitor struct {
	signal.Meta
	quotes quoteSource
}

func NewSKEWMonitor(quotes quoteSource) *SKEWMonitor {
	return &SKEWMonitor{
		Meta:  signal.NewMeta("CBOE SKEW Index", signal.CategoryOptions, time.Hour, 0.70),
		quotes: quotes,
	}
}

func (c *SKEWMonitor) Poll(ctx context.Context) ([]signal.Signal, error) {
	now := time.Now().UTC()

	closes, ok := c.quotes.DailyCloses(ctx, "^SKEW", 5)
	if !ok || len(closes) == 0 {
		return nil, fmt.Errorf("SKEW quote fetch failed")
	}
	skew := closes[len(closes)-1]
	prevSkew := skew
	if len(closes) >= 2 {
		prevSkew = closes[len(closes)-2]
	}
	date := now.Format("2006-01-02")

	switch {
	case skew > 140:
		priority := signal.PriorityMedium
		if skew > 150 {
			priority = signal.PriorityHigh
		}
		return []signal.Signal{{
			ID:         signal.MakeID("skew", int(skew), date),
			Name:       fmt.Sprintf("SKEW Elevated: %.1f — Tail Risk Warning", skew),
			SourceName: "CBOE SKEW",
			SourceAPI:  "Yahoo Finance ^SKEW",
			Category:   signal.CategoryOptions,
			Priority:   priority,
			Direction:  -0.6,
			Strength:   math.Min(1.0, (skew-120)/40),
			Description: fmt.Sprintf(
				"SKEW at %.1f — well above normal range (100-130). Options traders pricing in tail risk. SKEW > 140 historically precedes major corrections within 2-4 weeks. Buy OTM puts as insurance.",
				skew),
			AffectedAssets: []string{"SPY", "QQQ", "IWM", "VIX"},
			TradeImplications: []string{
				"Buy SPY/QQQ puts 5-10% OTM, 3-4 weeks expiry",
				"Consider VIX call spreads",
				"Reduce long exposure, increase cash position",
			},
			Opportunities: []string{
				"High SKEW = smart money hedging = follow their lead",
				"Tail risk insurance is cheap relative to potential payout",
			},
			RawData:          map[string]interface{}{"skew": skew, "prev_skew": prevSkew},
			DetectedAt:       now,
			TTLHours:         12.0,
			ReliabilityScore: c.Reliability(),
		}}, nil

	case skew < 110:
		return []signal.Signal{{
			ID:         signal.MakeID("skew_low", int(skew), date),
			Name:       fmt.Sprintf("SKEW Low: %.1f — Complacency Signal", skew),
			SourceName: "CBOE SKEW",
			SourceAPI:  "Yahoo Finance ^SKEW",
			Category:   signal.CategoryOptions,
			Priority:   signal.PriorityLow,
			Direction:  0.3,
			Strength:   0.4,
			Description: fmt.Sprintf(
				"SKEW at %.1f — below normal. Markets complacent about tail risk. This can persist but watch for sudden spikes.",
				skew),
			AffectedAssets:    []string{"SPY", "VIX"},
			TradeImplications: []string{"Tail risk insurance is cheap — good time to hedge"},
			Opportunities:     []string{"Buy protection when nobody wants it"},
			RawData:           map[string]interface{}{"skew": skew},
			DetectedAt:        now,
			TTLHours:          24.0,
			ReliabilityScore:  0.50,
		}}, nil
	}
	return nil, nil
}

// CopperMonitor treats copper futures as the 24-hour leading indicator for
// equities ("Dr. Copper").
type CopperMonitor struct {
	signal.Meta
	quotes quoteSource
}

func NewCopperMonitor(quotes quoteSource) *CopperMonitor {
	return &CopperMonitor{
		Meta:  signal.NewMeta("Copper Futures", signal.CategoryMacro, time.Hour, 0.72),
		quotes: quotes,
	}
}

func (c *CopperMonitor) Poll(ctx context.Context) ([]signal.Signal, error) {
	now := time.Now().UTC()

	closes, ok := c.quotes.DailyCloses(ctx, "HG=F", 10)
	if !ok {
		return nil, fmt.Errorf("copper history fetch failed")
	}
	if len(closes) < 5 {
		return nil, nil
	}

	roc1 := talib.Roc(closes, 1)
	roc5 := talib.Roc(closes, 4)
	change1d := roc1[len(roc1)-1]
	change5d := roc5[len(roc5)-1]
	price := closes[len(closes)-1]
	date := now.Format("2006-01-02")

	switch {
	case change1d < -2:
		return []signal.Signal{{
			ID:         signal.MakeID("copper_drop", date),
			Name:       fmt.Sprintf("Copper Breakdown: %.1f%% — Equities Warning", change1d),
			SourceName: "Copper Futures",
			SourceAPI:  "Yahoo Finance HG=F",
			Category:   signal.CategoryMacro,
			Priority:   signal.PriorityHigh,
			Direction:  -0.7,
			Strength:   math.Min(1.0, math.Abs(change1d)/4),
			Description: fmt.Sprintf(
				"Copper dropped %.1f%% today (%+.1f%% 5d). Dr. Copper leads equities by 24 hours. This signals economic slowdown fears. SPY typically follows within 1-2 sessions.",
				math.Abs(change1d), change5d),
			AffectedAssets: []string{"SPY", "QQQ", "XLI", "FCX", "SCCO"},
			TradeImplications: []string{
				"Buy SPY puts — copper leads equities by 24hr",
				"Sell industrials (XLI)",
				"Copper miners (FCX, SCCO) will underperform",
			},
			Opportunities: []string{
				"Copper breakdown = economic warning = defensive positioning",
				"Wait for copper stabilization before buying cyclicals",
			},
			RawData:          map[string]interface{}{"price": price, "change_1d": change1d, "change_5d": change5d},
			DetectedAt:       now,
			TTLHours:         24.0,
			ReliabilityScore: c.Reliability(),
		}}, nil

	case change1d > 2:
		return []signal.Signal{{
			ID:         signal.MakeID("copper_rally", date),
			Name:       fmt.Sprintf("Copper Rally: +%.1f%% — Economic Optimism", change1d),
			SourceName: "Copper Futures",
			SourceAPI:  "Yahoo Finance HG=F",
			Category:   signal.CategoryMacro,
			Priority:   signal.PriorityMedium,
			Direction:  0.6,
			Strength:   math.Min(0.8, change1d/4),
			Description: fmt.Sprintf(
				"Copper up %.1f%% today. Bullish for cyclicals and equities. Economic demand signal.",
				change1d),
			AffectedAssets:    []string{"SPY", "XLI", "FCX", "SCCO"},
			TradeImplications: []string{"Buy cyclicals (XLI)", "Risk-on positioning"},
			Opportunities:     []string{"Copper rally = economic confidence = buy dips"},
			RawData:           map[string]interface{}{"price": price, "change_1d": change1d, "change_5d": change5d},
			DetectedAt:        now,
			TTLHours:          24.0,
			ReliabilityScore:  c.Reliability(),
		}}, nil
	}
	return nil, nil
}

// CreditSpread proxies high-yield spreads with the HYG/LQD ratio. Credit
// stress leads equity corrections by one to three weeks.
type CreditSpread struct {
	signal.Meta
	quotes quoteSource
}

func NewCreditSpread(quotes quoteSource) *CreditSpread {
	return &CreditSpread{
		Meta:  signal.NewMeta("Credit Spread Monitor", signal.CategoryRates, time.Hour, 0.78),
		quotes: quotes,
	}
}

func (c *CreditSpread) Poll(ctx context.Context) ([]signal.Signal, error) {
	now := time.Now().UTC()

	hyg, ok := c.quotes.DailyCloses(ctx, "HYG", 20)
	if !ok {
		return nil, fmt.Errorf("HYG history fetch failed")
	}
	lqd, ok := c.quotes.DailyCloses(ctx, "LQD", 20)
	if !ok {
		return nil, fmt.Errorf("LQD history fetch failed")
	}

	// Align on the most recent sessions when one series is shorter.
	n := len(hyg)
	if len(lqd) < n {
		n = len(lqd)
	}
	if n < 10 {
		return nil, nil
	}
	hyg, lqd = hyg[len(hyg)-n:], lqd[len(lqd)-n:]

	ratio := make([]float64, n)
	for i := range ratio {
		ratio[i] = hyg[i] / lqd[i]
	}
	roc := talib.Roc(ratio, 9)
	ratioChange := roc[len(roc)-1]
	date := now.Format("2006-01-02")

	switch {
	case ratioChange < -1:
		priority := signal.PriorityMedium
		if ratioChange < -2 {
			priority = signal.PriorityHigh
		}
		return []signal.Signal{{
			ID:         signal.MakeID("credit_widen", date),
			Name:       fmt.Sprintf("Credit Spreads Widening: HYG/LQD %.1f%%", ratioChange),
			SourceName: "Credit Spreads (HYG/LQD)",
			SourceAPI:  "Yahoo Finance HYG, LQD",
			Category:   signal.CategoryRates,
			Priority:   priority,
			Direction:  -0.6,
			Strength:   math.Min(1.0, math.Abs(ratioChange)/3),
			Description: fmt.Sprintf(
				"HYG/LQD ratio down %.1f%% over 10 days. Credit spreads widening = junk bonds underperforming = stress building. This leads equity corrections by 1-3 weeks.",
				math.Abs(ratioChange)),
			AffectedAssets: []string{"SPY", "HYG", "JNK", "IWM", "XLF"},
			TradeImplications: []string{
				"Reduce risk exposure — credit leads equities",
				"Avoid high-yield bonds (HYG, JNK)",
				"Small caps (IWM) and financials (XLF) most exposed",
				"Consider SPY puts if spread widening accelerates",
			},
			Opportunities: []string{
				"Credit stress = buy opportunity after capitulation",
				"Wide spreads eventually compress = HYG rally opportunity",
			},
			RawData: map[string]interface{}{
				"hyg": hyg[n-1], "lqd": lqd[n-1],
				"ratio": ratio[n-1], "ratio_change": ratioChange,
			},
			DetectedAt:       now,
			TTLHours:         24.0,
			ReliabilityScore: c.Reliability(),
		}}, nil

	case ratioChange > 1:
		return []signal.Signal{{
			ID:         signal.MakeID("credit_tight", date),
			Name:       fmt.Sprintf("Credit Spreads Tightening: HYG/LQD +%.1f%%", ratioChange),
			SourceName: "Credit Spreads (HYG/LQD)",
			SourceAPI:  "Yahoo Finance HYG, LQD",
			Category:   signal.CategoryRates,
			Priority:   signal.PriorityLow,
			Direction:  0.4,
			Strength:   math.Min(0.6, ratioChange/3),
			Description: fmt.Sprintf(
				"HYG/LQD ratio up %.1f%%. Credit spreads tightening = risk appetite improving. Supportive for equities.",
				ratioChange),
			AffectedAssets:    []string{"SPY", "HYG", "IWM"},
			TradeImplications: []string{"Risk-on environment", "Small caps may outperform"},
			Opportunities:     []string{"Tight spreads support equity valuations"},
			RawData:           map[string]interface{}{"ratio": ratio[n-1], "ratio_change": ratioChange},
			DetectedAt:        now,
			TTLHours:          48.0,
			ReliabilityScore:  c.Reliability(),
		}}, nil
	}
	return nil, nil
}

// DXYMonitor tracks the dollar index. A strong dollar squeezes everything
// priced in it: commodities, EM equities, crypto and gold.
type DXYMonitor struct {
	signal.Meta
	quotes quoteSource
}

func NewDXYMonitor(quotes quoteSource) *DXYMonitor {
	return &DXYMonitor{
		Meta:  signal.NewMeta("DXY Dollar Index", signal.CategoryFX, time.Hour, 0.75),
		quotes: quotes,
	}
}

func (c *DXYMonitor) Poll(ctx context.Context) ([]signal.Signal, error) {
	now := time.Now().UTC()

	closes, ok := c.quotes.DailyCloses(ctx, "DX-Y.NYB", 10)
	if !ok {
		return nil, fmt.Errorf("DXY history fetch failed")
	}
	if len(closes) == 0 {
		return nil, nil
	}
	dxy := closes[len(closes)-1]

	var change5d float64
	if len(closes) >= 5 {
		roc := talib.Roc(closes, 4)
		change5d = roc[len(roc)-1]
	}
	date := now.Format("2006-01-02")

	switch {
	case dxy > 105:
		priority := signal.PriorityMedium
		if dxy > 108 {
			priority = signal.PriorityHigh
		}
		return []signal.Signal{{
			ID:         signal.MakeID("dxy_high", int(dxy), date),
			Name:       fmt.Sprintf("DXY Strong: %.2f — Risk-Off Pressure", dxy),
			SourceName: "DXY Dollar Index",
			SourceAPI:  "Yahoo Finance DX-Y.NYB",
			Category:   signal.CategoryFX,
			Priority:   priority,
			Direction:  -0.5,
			Strength:   math.Min(1.0, (dxy-100)/10),
			Description: fmt.Sprintf(
				"DXY at %.2f (%+.1f%% 5d). Strong dollar crushes: commodities, EM equities, crypto, gold. Dollar strength = global risk-off signal. Watch for further strength above 110.",
				dxy, change5d),
			AffectedAssets: []string{"GLD", "SLV", "EEM", "BTC/USD", "GDX", "XLE"},
			TradeImplications: []string{
				"Sell gold/silver rallies — dollar headwind",
				"Avoid EM equities (EEM)",
				"Crypto faces pressure from dollar strength",
				"Consider UUP (dollar bull ETF) longs",
			},
			Opportunities: []string{
				"Dollar strength eventually reverses — set alerts for DXY < 102",
				"Strong dollar = cheap foreign assets eventually",
			},
			RawData:          map[string]interface{}{"dxy": dxy, "change_5d": change5d},
			DetectedAt:       now,
			TTLHours:         12.0,
			ReliabilityScore: c.Reliability(),
		}}, nil

	case dxy < 100 && change5d < -1:
		return []signal.Signal{{
			ID:         signal.MakeID("dxy_weak", int(dxy), date),
			Name:       fmt.Sprintf("DXY Weakening: %.2f — Risk-On Signal", dxy),
			SourceName: "DXY Dollar Index",
			SourceAPI:  "Yahoo Finance DX-Y.NYB",
			Category:   signal.CategoryFX,
			Priority:   signal.PriorityMedium,
			Direction:  0.5,
			Strength:   math.Min(0.8, math.Abs(change5d)/3),
			Description: fmt.Sprintf(
				"DXY at %.2f (%+.1f%% 5d). Weakening dollar is bullish for commodities, gold, EM, and crypto.",
				dxy, change5d),
			AffectedAssets:    []string{"GLD", "SLV", "EEM", "BTC/USD"},
			TradeImplications: []string{"Buy gold/commodity exposure", "Add EM equities"},
			Opportunities:     []string{"Weak dollar cycle historically lasts 6-18 months"},
			RawData:           map[string]interface{}{"dxy": dxy, "change_5d": change5d},
			DetectedAt:        now,
			TTLHours:          24.0,
			ReliabilityScore:  c.Reliability(),
		}}, nil
	}
	return nil, nil
}
