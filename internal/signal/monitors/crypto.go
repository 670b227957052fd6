package monitors

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/aristath/hydra/internal/fetch"
	"github.com/aristath/hydra/internal/signal"
)

// BinanceFunding flags overleveraged perpetual positioning. Funding paid by
// the crowded side has historically preceded reversals against it.
type BinanceFunding struct {
	signal.Meta
	fetcher *fetch.Client
	baseURL string
	symbols []string
}

func NewBinanceFunding(fetcher *fetch.Client) *BinanceFunding {
	return &BinanceFunding{
		Meta:    signal.NewMeta("Binance Funding Rate", signal.CategoryCrypto, 30*time.Minute, 0.80),
		fetcher: fetcher,
		baseURL: "https://fapi.binance.com",
		symbols: []string{"BTCUSDT", "ETHUSDT", "SOLUSDT"},
	}
}

type fundingEntry struct {
	FundingRate string `json:"fundingRate"`
	FundingTime int64  `json:"fundingTime"`
}

func (c *BinanceFunding) Poll(ctx context.Context) ([]signal.Signal, error) {
	now := time.Now().UTC()
	var signals []signal.Signal
	failed := 0

	for _, sym := range c.symbols {
		var entries []fundingEntry
		params := map[string]string{"symbol": sym, "limit": "3"}
		if !c.fetcher.GetJSON(ctx, c.baseURL+"/fapi/v1/fundingRate", params, nil, &entries) || len(entries) == 0 {
			failed++
			continue
		}

		latest := entries[len(entries)-1]
		rate, err := strconv.ParseFloat(latest.FundingRate, 64)
		if err != nil {
			continue
		}
		asset := strings.Replace(sym, "USDT", "/USD", 1)

		// >0.03% per 8hr is elevated, >0.05% is extreme.
		if math.Abs(rate) <= 0.0003 {
			continue
		}
		extreme := math.Abs(rate) > 0.0005

		direction := 1.0 // fade the crowd
		side, arb := "Long", "go long and collect funding"
		crowd := "Shorts paying longs — market overleveraged short, expect squeeze."
		if rate > 0 {
			direction = -1.0
			side, arb = "Short", "go short and collect funding"
			crowd = "Longs paying shorts — market overleveraged long, expect correction."
		}

		label := "Elevated"
		priority := signal.PriorityMedium
		if extreme {
			label = "Extreme"
			priority = signal.PriorityHigh
		}

		affected := []string{asset}
		if strings.Contains(sym, "ETH") {
			affected = append(affected, "BTC/USD")
		}

		signals = append(signals, signal.Signal{
			ID:         signal.MakeID("funding", sym, latest.FundingTime),
			Name:       fmt.Sprintf("%s Funding Rate: %s", label, asset),
			SourceName: "Binance Futures",
			SourceAPI:  "fapi.binance.com/fundingRate",
			Category:   signal.CategoryCrypto,
			Priority:   priority,
			Direction:  direction,
			Strength:   math.Min(1.0, math.Abs(rate)/0.001),
			Description: fmt.Sprintf(
				"%s funding rate at %.4f%% per 8hr. %s Historically, extreme funding precedes 3-8%% reversals within 24-48hr.",
				asset, rate*100, crowd),
			AffectedAssets: affected,
			TradeImplications: []string{
				fmt.Sprintf("%s %s with 2-3x leverage", side, asset),
				"Stop: 1.5% adverse from entry",
				"Target: Next liquidation cluster (3-5% move)",
				"Funding rate arbitrage: " + arb,
			},
			Opportunities: []string{
				"Funding rate arb = risk-free yield while positioned correctly",
				"Elevated funding signals retail euphoria/despair — contrarian edge",
			},
			RawData:          map[string]interface{}{"symbol": sym, "funding_rate": rate, "timestamp": latest.FundingTime},
			DetectedAt:       now,
			TTLHours:         8.0,
			ReliabilityScore: c.Reliability(),
		})
	}

	if failed == len(c.symbols) {
		return nil, fmt.Errorf("funding rate fetch failed for all %d symbols", len(c.symbols))
	}
	return signals, nil
}

// BinanceOpenInterest tracks futures open interest between polls. A rapid
// drop is a liquidation cascade in progress; a rapid build is leverage
// accumulating ahead of a move.
type BinanceOpenInterest struct {
	signal.Meta
	fetcher *fetch.Client
	baseURL string
	symbols []string

	// history is only touched from Poll, which the scanner serializes.
	history map[string][]oiPoint
}

type oiPoint struct {
	at time.Time
	oi float64
}

const oiHistoryDepth = 50

func NewBinanceOpenInterest(fetcher *fetch.Client) *BinanceOpenInterest {
	return &BinanceOpenInterest{
		Meta:    signal.NewMeta("Binance Open Interest", signal.CategoryCrypto, 15*time.Minute, 0.75),
		fetcher: fetcher,
		baseURL: "https://fapi.binance.com",
		symbols: []string{"BTCUSDT", "ETHUSDT"},
		history: map[string][]oiPoint{},
	}
}

func (c *BinanceOpenInterest) Poll(ctx context.Context) ([]signal.Signal, error) {
	now := time.Now().UTC()
	var signals []signal.Signal
	failed := 0

	for _, sym := range c.symbols {
		var resp struct {
			OpenInterest string `json:"openInterest"`
		}
		params := map[string]string{"symbol": sym}
		if !c.fetcher.GetJSON(ctx, c.baseURL+"/fapi/v1/openInterest", params, nil, &resp) {
			failed++
			continue
		}
		oi, err := strconv.ParseFloat(resp.OpenInterest, 64)
		if err != nil {
			continue
		}
		asset := strings.Replace(sym, "USDT", "/USD", 1)

		c.history[sym] = append(c.history[sym], oiPoint{at: now, oi: oi})
		if len(c.history[sym]) > oiHistoryDepth {
			c.history[sym] = c.history[sym][len(c.history[sym])-oiHistoryDepth:]
		}
		pts := c.history[sym]
		if len(pts) < 2 {
			continue
		}

		prev := pts[len(pts)-2]
		var changePct float64
		if prev.oi > 0 {
			changePct = (oi - prev.oi) / prev.oi
		}
		deltaMin := now.Sub(prev.at).Minutes()

		switch {
		case changePct < -0.03:
			priority := signal.PriorityHigh
			cascade := "Significant position unwind detected."
			if changePct < -0.08 {
				priority = signal.PriorityCritical
				cascade = "MASSIVE liquidation cascade in progress."
			}
			signals = append(signals, signal.Signal{
				ID:         signal.MakeID("oi_drop", sym, now.Unix()),
				Name:       "OI Cascade Alert: " + asset,
				SourceName: "Binance Futures OI",
				SourceAPI:  "fapi.binance.com/openInterest",
				Category:   signal.CategoryCrypto,
				Priority:   priority,
				Direction:  -1.0,
				Strength:   math.Min(1.0, math.Abs(changePct)*10),
				Description: fmt.Sprintf(
					"%s open interest dropped %.1f%% in ~%.0fmin. %s On Feb 5, BTC OI dropped 15%% as price crashed to $63K.",
					asset, changePct*100, deltaMin, cascade),
				AffectedAssets: []string{asset, "COIN", "MARA", "MSTR"},
				TradeImplications: []string{
					"If cascade is ongoing: ride momentum SHORT with tight stop",
					"If cascade appears exhausted (OI stabilizing): BUY the dip",
					"Monitor funding rate — if it flips deeply negative, bottom forming",
				},
				Opportunities: []string{
					"Post-cascade = accumulation opportunity for long-term holders",
					"Liquidation events clear leverage, creating healthier market structure",
				},
				RawData:          map[string]interface{}{"symbol": sym, "oi": oi, "oi_change_pct": changePct},
				DetectedAt:       now,
				TTLHours:         2.0,
				ReliabilityScore: c.Reliability(),
			})

		case changePct > 0.05:
			signals = append(signals, signal.Signal{
				ID:         signal.MakeID("oi_spike", sym, now.Unix()),
				Name:       "Leverage Building: " + asset,
				SourceName: "Binance Futures OI",
				SourceAPI:  "fapi.binance.com/openInterest",
				Category:   signal.CategoryCrypto,
				Priority:   signal.PriorityMedium,
				Direction:  0.0, // leverage precedes a move in either direction
				Strength:   math.Min(0.7, changePct*5),
				Description: fmt.Sprintf(
					"%s OI increasing rapidly (+%.1f%%). Leverage is building. Combined with funding rate direction, this tells you which side will get liquidated.",
					asset, changePct*100),
				AffectedAssets: []string{asset},
				TradeImplications: []string{
					"Wait for funding rate extreme, then fade the crowded side",
					"Buy straddle if expecting large move but unsure of direction",
				},
				Opportunities:    []string{"Elevated OI = elevated future volatility = options premium opportunity"},
				RawData:          map[string]interface{}{"symbol": sym, "oi": oi, "oi_change_pct": changePct},
				DetectedAt:       now,
				TTLHours:         4.0,
				ReliabilityScore: 0.60,
			})
		}
	}

	if failed == len(c.symbols) {
		return nil, fmt.Errorf("open interest fetch failed for all %d symbols", len(c.symbols))
	}
	return signals, nil
}

// CoinGlassLiquidations watches hourly BTC liquidation totals. Mass
// liquidation in one direction marks a cascade or a squeeze.
type CoinGlassLiquidations struct {
	signal.Meta
	fetcher *fetch.Client
	baseURL string
	apiKey  string
}

func NewCoinGlassLiquidations(fetcher *fetch.Client, apiKey string) *CoinGlassLiquidations {
	return &CoinGlassLiquidations{
		Meta:    signal.NewMeta("CoinGlass Liquidations", signal.CategoryCrypto, 30*time.Minute, 0.85),
		fetcher: fetcher,
		baseURL: "https://open-api.coinglass.com",
		apiKey:  apiKey,
	}
}

func (c *CoinGlassLiquidations) Poll(ctx context.Context) ([]signal.Signal, error) {
	now := time.Now().UTC()

	var resp struct {
		Success bool `json:"success"`
		Data    []struct {
			T        int64   `json:"t"`
			LongUSD  float64 `json:"longLiquidationUsd"`
			ShortUSD float64 `json:"shortLiquidationUsd"`
		} `json:"data"`
	}
	params := map[string]string{"time_type": "h1", "symbol": "BTC"}
	var headers map[string]string
	if c.apiKey != "" {
		headers = map[string]string{"coinglassSecret": c.apiKey}
	}
	if !c.fetcher.GetJSON(ctx, c.baseURL+"/public/v2/liquidation_history", params, headers, &resp) {
		return nil, fmt.Errorf("liquidation history fetch failed")
	}
	if !resp.Success || len(resp.Data) == 0 {
		return nil, nil
	}

	entries := resp.Data
	if len(entries) > 5 {
		entries = entries[len(entries)-5:]
	}

	var signals []signal.Signal
	for _, entry := range entries {
		total := entry.LongUSD + entry.ShortUSD
		if total <= 50_000_000 {
			continue
		}

		direction, dominant := 1.0, "short"
		flavor := "Short squeeze in progress."
		waitOrRide := "Ride the squeeze, buy momentum"
		if entry.LongUSD > entry.ShortUSD {
			direction, dominant = -1.0, "long"
			flavor = "Longs getting destroyed — cascade may have more room."
			waitOrRide = "Wait for exhaustion then buy dip"
		}

		priority := signal.PriorityHigh
		if total > 200_000_000 {
			priority = signal.PriorityCritical
		}

		signals = append(signals, signal.Signal{
			ID:         signal.MakeID("liq", entry.T, total),
			Name:       fmt.Sprintf("BTC Mass Liquidation: $%.0fM (%ss crushed)", total/1e6, dominant),
			SourceName: "CoinGlass",
			SourceAPI:  "open-api.coinglass.com/liquidation_history",
			Category:   signal.CategoryCrypto,
			Priority:   priority,
			Direction:  direction,
			Strength:   math.Min(1.0, total/500_000_000),
			Description: fmt.Sprintf(
				"$%.0fM in BTC positions liquidated in 1hr. $%.0fM longs, $%.0fM shorts. %s Feb 5: $2B+ liquidated when BTC hit $63K.",
				total/1e6, entry.LongUSD/1e6, entry.ShortUSD/1e6, flavor),
			AffectedAssets: []string{"BTC/USD", "ETH/USD", "COIN", "MARA"},
			TradeImplications: []string{
				waitOrRide,
				"Check if cascade is done: OI stabilizing = bottom forming",
			},
			Opportunities:    []string{"Post-liquidation = lowest leverage in weeks = cleanest setup"},
			RawData:          map[string]interface{}{"long_liq": entry.LongUSD, "short_liq": entry.ShortUSD, "total": total},
			DetectedAt:       now,
			TTLHours:         4.0,
			ReliabilityScore: c.Reliability(),
		})
	}
	return signals, nil
}

// BTCETFFlows reads the daily net flow total from Farside's public flow
// table. Flows are the cleanest institutional sentiment proxy for BTC.
type BTCETFFlows struct {
	signal.Meta
	fetcher *fetch.Client
	baseURL string
}

func NewBTCETFFlows(fetcher *fetch.Client) *BTCETFFlows {
	return &BTCETFFlows{
		Meta:    signal.NewMeta("BTC ETF Flows", signal.CategoryCrypto, 6*time.Hour, 0.75),
		fetcher: fetcher,
		baseURL: "https://farside.co.uk/bitcoin-etf-flow-all-data/",
	}
}

func (c *BTCETFFlows) Poll(ctx context.Context) ([]signal.Signal, error) {
	now := time.Now().UTC()

	html, ok := c.fetcher.GetText(ctx, c.baseURL, nil, scrapeHeaders())
	if !ok {
		return nil, fmt.Errorf("flow table fetch failed")
	}

	// The total column is the last cell of the last table row. Accounting
	// negatives arrive as "($123.4)".
	cells := tableCellPattern.FindAllStringSubmatch(html, -1)
	if len(cells) == 0 {
		return nil, nil
	}
	raw := strings.TrimSpace(stripTags(cells[len(cells)-1][1]))
	cleaned := strings.NewReplacer("(", "-", ")", "", "$", "", ",", "").Replace(raw)
	totalFlow, err := strconv.ParseFloat(cleaned, 64)
	if err != nil || math.Abs(totalFlow) <= 100 {
		return nil, nil
	}

	direction, word := 1.0, "Inflow"
	read := "Institutional buying = bullish."
	stance := "Buy BTC on pullbacks — institutions accumulating"
	if totalFlow < 0 {
		direction, word = -1.0, "Outflow"
		read = "Institutions are net sellers in 2026. Continued outflows = bearish pressure."
		stance = "Stay cautious — smart money exiting"
	}

	priority := signal.PriorityMedium
	if math.Abs(totalFlow) > 300 {
		priority = signal.PriorityHigh
	}

	return []signal.Signal{{
		ID:         signal.MakeID("etf_flow", now.Format("2006-01-02")),
		Name:       fmt.Sprintf("BTC ETF %s: $%.0fM", word, math.Abs(totalFlow)),
		SourceName: "Farside Investors",
		SourceAPI:  "farside.co.uk/bitcoin-etf-flow",
		Category:   signal.CategoryCrypto,
		Priority:   priority,
		Direction:  direction,
		Strength:   math.Min(1.0, math.Abs(totalFlow)/500),
		Description: fmt.Sprintf(
			"BTC ETFs saw $%.0fM net %s today. %s",
			math.Abs(totalFlow), strings.ToLower(word), read),
		AffectedAssets: []string{"BTC/USD", "IBIT", "FBTC", "COIN"},
		TradeImplications: []string{
			stance,
			"ETF flows predict next-day BTC direction ~65% of the time",
		},
		Opportunities:    []string{"ETF flows = institutional sentiment proxy"},
		RawData:          map[string]interface{}{"total_flow_m": totalFlow},
		DetectedAt:       now,
		TTLHours:         24.0,
		ReliabilityScore: c.Reliability(),
	}}, nil
}

// WhaleAlert sums large BTC transfers to and from exchanges over the last
// hour. Deposits front-run selling; withdrawals are accumulation.
type WhaleAlert struct {
	signal.Meta
	fetcher *fetch.Client
	baseURL string
	apiKey  string
}

func NewWhaleAlert(fetcher *fetch.Client, apiKey string) *WhaleAlert {
	return &WhaleAlert{
		Meta:    signal.NewMeta("Whale Alert", signal.CategoryCrypto, 15*time.Minute, 0.70),
		fetcher: fetcher,
		baseURL: "https://api.whale-alert.io",
		apiKey:  apiKey,
	}
}

func (c *WhaleAlert) Poll(ctx context.Context) ([]signal.Signal, error) {
	if c.apiKey == "" {
		return nil, nil
	}
	now := time.Now().UTC()

	var resp struct {
		Transactions []struct {
			AmountUSD float64 `json:"amount_usd"`
			From      struct {
				OwnerType string `json:"owner_type"`
			} `json:"from"`
			To struct {
				OwnerType string `json:"owner_type"`
			} `json:"to"`
		} `json:"transactions"`
	}
	params := map[string]string{
		"api_key":   c.apiKey,
		"min_value": "10000000",
		"start":     strconv.FormatInt(now.Add(-time.Hour).Unix(), 10),
		"currency":  "btc",
	}
	if !c.fetcher.GetJSON(ctx, c.baseURL+"/v1/transactions", params, nil, &resp) {
		return nil, fmt.Errorf("transactions fetch failed")
	}

	var deposits, withdrawals float64
	for _, tx := range resp.Transactions {
		if tx.To.OwnerType == "exchange" {
			deposits += tx.AmountUSD
		}
		if tx.From.OwnerType == "exchange" {
			withdrawals += tx.AmountUSD
		}
	}

	var signals []signal.Signal
	if deposits > 50_000_000 {
		signals = append(signals, signal.Signal{
			ID:         signal.MakeID("whale_deposit", now.Unix()),
			Name:       fmt.Sprintf("Whale Exchange Deposits: $%.0fM BTC", deposits/1e6),
			SourceName: "Whale Alert",
			SourceAPI:  "api.whale-alert.io",
			Category:   signal.CategoryCrypto,
			Priority:   signal.PriorityHigh,
			Direction:  -1.0,
			Strength:   math.Min(1.0, deposits/200_000_000),
			Description: fmt.Sprintf(
				"$%.0fM in BTC deposited to exchanges in the last hour. Large exchange deposits typically precede selling within 2-6 hours.",
				deposits/1e6),
			AffectedAssets:    []string{"BTC/USD", "ETH/USD"},
			TradeImplications: []string{"Prepare short entries", "Tighten stops on existing longs"},
			Opportunities:     []string{"If followed by drop, accumulate at lower prices"},
			RawData:           map[string]interface{}{"deposits_usd": deposits, "withdrawals_usd": withdrawals},
			DetectedAt:        now,
			TTLHours:          6.0,
			ReliabilityScore:  c.Reliability(),
		})
	}
	if withdrawals > 50_000_000 {
		signals = append(signals, signal.Signal{
			ID:         signal.MakeID("whale_withdraw", now.Unix()),
			Name:       fmt.Sprintf("Whale Exchange Withdrawals: $%.0fM BTC", withdrawals/1e6),
			SourceName: "Whale Alert",
			SourceAPI:  "api.whale-alert.io",
			Category:   signal.CategoryCrypto,
			Priority:   signal.PriorityMedium,
			Direction:  1.0,
			Strength:   math.Min(0.8, withdrawals/200_000_000),
			Description: fmt.Sprintf(
				"$%.0fM BTC withdrawn from exchanges. Accumulation signal — entities moving to cold storage.",
				withdrawals/1e6),
			AffectedAssets:    []string{"BTC/USD"},
			TradeImplications: []string{"Bullish medium-term signal", "Support for higher prices"},
			Opportunities:     []string{"Decreasing exchange supply = bullish supply dynamics"},
			RawData:           map[string]interface{}{"deposits_usd": deposits, "withdrawals_usd": withdrawals},
			DetectedAt:        now,
			TTLHours:          12.0,
			ReliabilityScore:  0.65,
		})
	}
	return signals, nil
}

// tokenUnlock is a scheduled supply unlock for a vesting token.
type tokenUnlock struct {
	Token     string
	Date      string // ISO date
	AmountUSD float64
	PctSupply float64
}

// knownUnlocks is maintained by hand from the public unlock calendars.
var knownUnlocks = []tokenUnlock{
	{Token: "APT", Date: "2026-02-11", AmountUSD: 85_000_000, PctSupply: 2.1},
	{Token: "ARB", Date: "2026-02-12", AmountUSD: 120_000_000, PctSupply: 3.5},
	{Token: "OP", Date: "2026-02-14", AmountUSD: 65_000_000, PctSupply: 2.8},
}

// TokenUnlocks emits a bearish signal for each known unlock landing within
// the next week. Unlocks add supply; early investors sell into them.
type TokenUnlocks struct {
	signal.Meta
	unlocks []tokenUnlock
}

func NewTokenUnlocks() *TokenUnlocks {
	return &TokenUnlocks{
		Meta:    signal.NewMeta("Token Unlocks", signal.CategoryCrypto, 12*time.Hour, 0.80),
		unlocks: knownUnlocks,
	}
}

func (c *TokenUnlocks) Poll(ctx context.Context) ([]signal.Signal, error) {
	now := time.Now().UTC()
	var signals []signal.Signal

	for _, unlock := range c.unlocks {
		date, err := time.Parse("2006-01-02", unlock.Date)
		if err != nil {
			continue
		}
		daysUntil := int(math.Floor(date.Sub(now).Hours() / 24))
		if daysUntil < 0 || daysUntil > 7 {
			continue
		}

		priority := signal.PriorityMedium
		if unlock.PctSupply > 3 {
			priority = signal.PriorityHigh
		}

		signals = append(signals, signal.Signal{
			ID:         signal.MakeID("unlock", unlock.Token, unlock.Date),
			Name:       fmt.Sprintf("Token Unlock: %s — $%.0fM in %dd", unlock.Token, unlock.AmountUSD/1e6, daysUntil),
			SourceName: "TokenUnlocks.app",
			SourceAPI:  "token.unlocks.app",
			Category:   signal.CategoryCrypto,
			Priority:   priority,
			Direction:  -1.0,
			Strength:   math.Min(0.8, unlock.PctSupply/5),
			Description: fmt.Sprintf(
				"%s has $%.0fM (%g%% of supply) unlocking on %s. Token unlocks historically cause 5-15%% declines as early investors and VCs sell. Current weak market amplifies this.",
				unlock.Token, unlock.AmountUSD/1e6, unlock.PctSupply, unlock.Date),
			AffectedAssets: []string{unlock.Token, "BTC/USD"},
			TradeImplications: []string{
				fmt.Sprintf("Short %s 24hr before unlock", unlock.Token),
				"Buy dip after unlock if project fundamentals are strong",
				"If >3% of supply, expect 10-20% downside",
			},
			Opportunities: []string{
				"Post-unlock = discounted entry for long-term positions",
				"Unlock selling creates temporary liquidity for patient buyers",
			},
			RawData: map[string]interface{}{
				"token": unlock.Token, "date": unlock.Date,
				"amount_usd": unlock.AmountUSD, "pct_supply": unlock.PctSupply,
			},
			DetectedAt:       now,
			TTLHours:         float64(daysUntil*24 + 24),
			ReliabilityScore: c.Reliability(),
		})
	}
	return signals, nil
}

// DeribitOptions aggregates the BTC option book into put/call ratios and an
// average implied vol, the crypto market's positioning gauges.
type DeribitOptions struct {
	signal.Meta
	book optionBook
}

func NewDeribitOptions(book optionBook) *DeribitOptions {
	return &DeribitOptions{
		Meta: signal.NewMeta("Deribit BTC Options", signal.CategoryCrypto, time.Hour, 0.70),
		book: book,
	}
}

func (c *DeribitOptions) Poll(ctx context.Context) ([]signal.Signal, error) {
	now := time.Now().UTC()

	book, ok := c.book.BookSummaryByCurrency(ctx, "BTC", "option")
	if !ok {
		return nil, fmt.Errorf("book summary fetch failed")
	}

	var putOI, callOI, putVol, callVol, ivSum float64
	ivCount := 0
	for _, opt := range book {
		switch {
		case strings.Contains(opt.InstrumentName, "-P"):
			putOI += opt.OpenInterest
			putVol += opt.Volume
		case strings.Contains(opt.InstrumentName, "-C"):
			callOI += opt.OpenInterest
			callVol += opt.Volume
		}
		if opt.MarkIV > 0 {
			ivSum += opt.MarkIV
			ivCount++
		}
	}

	var avgIV float64
	if ivCount > 0 {
		avgIV = ivSum / float64(ivCount)
	}
	pcRatioOI, pcRatioVol := 1.0, 1.0
	if callOI > 0 {
		pcRatioOI = putOI / callOI
	}
	if callVol > 0 {
		pcRatioVol = putVol / callVol
	}

	var signals []signal.Signal
	if pcRatioOI > 0.7 {
		label, read := "Above Average", "Slightly elevated put interest."
		priority, direction := signal.PriorityLow, -0.2
		if pcRatioOI > 0.8 {
			label, read = "Elevated", "Elevated put buying = hedging activity or bearish bets."
			priority, direction = signal.PriorityMedium, -0.4
		}
		signals = append(signals, signal.Signal{
			ID:         signal.MakeID("deribit_pc", int(pcRatioOI*100)),
			Name:       fmt.Sprintf("Deribit Put/Call Ratio: %.2f — %s", pcRatioOI, label),
			SourceName: "Deribit Options",
			SourceAPI:  "deribit.com/api/v2",
			Category:   signal.CategoryCrypto,
			Priority:   priority,
			Direction:  direction,
			Strength:   math.Min(0.8, pcRatioOI),
			Description: fmt.Sprintf(
				"BTC options P/C ratio (OI): %.2f, (volume): %.2f. Avg IV: %.1f%%. %s",
				pcRatioOI, pcRatioVol, avgIV, read),
			AffectedAssets: []string{"BTC/USD", "COIN", "MARA", "MSTR"},
			TradeImplications: []string{
				"Monitor for put-heavy flow = potential correction ahead",
				"Contrarian: extreme put ratios often precede rallies",
			},
			Opportunities: []string{"Options flow signals institutional positioning"},
			RawData: map[string]interface{}{
				"put_oi": putOI, "call_oi": callOI,
				"pc_ratio_oi": pcRatioOI, "avg_iv": avgIV,
			},
			DetectedAt:       now,
			TTLHours:         8.0,
			ReliabilityScore: c.Reliability(),
		})
	}

	if avgIV > 70 {
		priority := signal.PriorityMedium
		if avgIV > 90 {
			priority = signal.PriorityHigh
		}
		signals = append(signals, signal.Signal{
			ID:         signal.MakeID("deribit_iv", int(avgIV)),
			Name:       fmt.Sprintf("BTC Options IV Elevated: %.1f%%", avgIV),
			SourceName: "Deribit Options",
			SourceAPI:  "deribit.com/api/v2",
			Category:   signal.CategoryCrypto,
			Priority:   priority,
			Direction:  0.0,
			Strength:   math.Min(1.0, avgIV/100),
			Description: fmt.Sprintf(
				"BTC options IV averaging %.1f%%. Elevated IV = market expects significant move. Options are expensive — consider selling premium or waiting for IV crush.",
				avgIV),
			AffectedAssets: []string{"BTC/USD"},
			TradeImplications: []string{
				"Expensive to buy options — consider spreads",
				"Sell premium if you think move is priced in",
				"Straddles/strangles expensive but may pay off",
			},
			Opportunities:    []string{"High IV = high premium for options sellers"},
			RawData:          map[string]interface{}{"avg_iv": avgIV},
			DetectedAt:       now,
			TTLHours:         12.0,
			ReliabilityScore: c.Reliability(),
		})
	}
	return signals, nil
}
