package monitors

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/aristath/hydra/internal/fetch"
	"github.com/aristath/hydra/internal/signal"
)

// polymarketKeywords select the macro-relevant markets out of the feed.
var polymarketKeywords = []string{"fed", "bitcoin", "recession", "rate cut", "inflation"}

// Polymarket surfaces crowd-priced probabilities for macro events. The
// trade is never the market itself but its divergence from options pricing.
type Polymarket struct {
	signal.Meta
	fetcher *fetch.Client
	baseURL string
}

func NewPolymarket(fetcher *fetch.Client) *Polymarket {
	return &Polymarket{
		Meta:    signal.NewMeta("Polymarket", signal.CategoryMacro, 2*time.Hour, 0.60),
		fetcher: fetcher,
		baseURL: "https://gamma-api.polymarket.com/markets",
	}
}

// outcomePrices decodes the outcomePrices field, which the gamma API serves
// either as an array of strings or as a JSON string containing that array.
func outcomePrices(raw json.RawMessage) []float64 {
	if len(raw) == 0 {
		return nil
	}
	var strs []string
	if err := json.Unmarshal(raw, &strs); err != nil {
		var inner string
		if err := json.Unmarshal(raw, &inner); err != nil {
			return nil
		}
		if err := json.Unmarshal([]byte(inner), &strs); err != nil {
			return nil
		}
	}
	prices := make([]float64, 0, len(strs))
	for _, s := range strs {
		prices = append(prices, parseFloatDefault(s, 0))
	}
	return prices
}

func (c *Polymarket) Poll(ctx context.Context) ([]signal.Signal, error) {
	now := time.Now().UTC()

	var markets []struct {
		ID            string          `json:"id"`
		Question      string          `json:"question"`
		OutcomePrices json.RawMessage `json:"outcomePrices"`
	}
	params := map[string]string{"limit": "20", "active": "true", "closed": "false"}
	if !c.fetcher.GetJSON(ctx, c.baseURL, params, nil, &markets) {
		return nil, fmt.Errorf("gamma markets fetch failed")
	}

	var signals []signal.Signal
	for _, m := range markets {
		lower := strings.ToLower(m.Question)
		matched := false
		for _, kw := range polymarketKeywords {
			if strings.Contains(lower, kw) {
				matched = true
				break
			}
		}
		if !matched {
			continue
		}
		prices := outcomePrices(m.OutcomePrices)
		if len(prices) == 0 {
			continue
		}
		yesPrice := prices[0]

		signals = append(signals, signal.Signal{
			ID:         signal.MakeID("poly", m.ID),
			Name:       fmt.Sprintf("Polymarket: %s", truncate(m.Question, 80)),
			SourceName: "Polymarket",
			SourceAPI:  "gamma-api.polymarket.com",
			Category:   signal.CategoryMacro,
			Priority:   signal.PriorityLow,
			Direction:  0.0,
			Strength:   yesPrice,
			Description: fmt.Sprintf(
				"Prediction market pricing: %.0f%% probability. Compare to options-implied probability for arbitrage opportunities.",
				yesPrice*100),
			AffectedAssets:    []string{"SPY", "TLT", "BTC/USD"},
			TradeImplications: []string{"If prediction market diverges from options pricing = trade the gap"},
			Opportunities:     []string{"Prediction markets = crowd-sourced probability estimates"},
			RawData:           map[string]interface{}{"question": m.Question, "yes_price": yesPrice},
			DetectedAt:        now,
			TTLHours:          24.0,
			ReliabilityScore:  c.Reliability(),
		})
	}
	return signals, nil
}

var kalshiKeywords = []string{"fed", "rate", "inflation", "recession", "gdp", "unemployment", "cpi"}

// Kalshi reads the regulated US prediction market for the same macro
// divergence play.
type Kalshi struct {
	signal.Meta
	fetcher *fetch.Client
	baseURL string
}

func NewKalshi(fetcher *fetch.Client) *Kalshi {
	return &Kalshi{
		Meta:    signal.NewMeta("Kalshi Prediction Market", signal.CategoryMacro, 2*time.Hour, 0.55),
		fetcher: fetcher,
		baseURL: "https://demo-api.kalshi.co/trade-api/v2/markets",
	}
}

func (c *Kalshi) Poll(ctx context.Context) ([]signal.Signal, error) {
	now := time.Now().UTC()

	var resp struct {
		Markets []struct {
			Ticker string  `json:"ticker"`
			Title  string  `json:"title"`
			YesBid float64 `json:"yes_bid"`
		} `json:"markets"`
	}
	params := map[string]string{"limit": "50", "status": "open"}
	if !c.fetcher.GetJSON(ctx, c.baseURL, params, nil, &resp) {
		return nil, fmt.Errorf("markets fetch failed")
	}

	var signals []signal.Signal
	for _, m := range resp.Markets {
		lower := strings.ToLower(m.Title)
		matched := false
		for _, kw := range kalshiKeywords {
			if strings.Contains(lower, kw) {
				matched = true
				break
			}
		}
		if !matched {
			continue
		}

		// yes_bid arrives in cents. Normalize before it reaches any output.
		yesPrice := m.YesBid
		if yesPrice > 1 {
			yesPrice /= 100
		}
		if yesPrice <= 0 {
			continue
		}

		signals = append(signals, signal.Signal{
			ID:         signal.MakeID("kalshi", m.Ticker),
			Name:       fmt.Sprintf("Kalshi: %s", truncate(m.Title, 70)),
			SourceName: "Kalshi",
			SourceAPI:  "kalshi.co",
			Category:   signal.CategoryMacro,
			Priority:   signal.PriorityLow,
			Direction:  0.0,
			Strength:   yesPrice,
			Description: fmt.Sprintf(
				"Kalshi prediction market: %.0f%% probability. Regulated US market — compare to options pricing for arbitrage.",
				yesPrice*100),
			AffectedAssets: []string{"SPY", "TLT", "GLD"},
			TradeImplications: []string{
				"If Kalshi diverges from options pricing, trade the gap",
				"Prediction markets aggregate crowd wisdom",
			},
			Opportunities:    []string{"Regulated prediction markets = legal betting on events"},
			RawData:          map[string]interface{}{"title": m.Title, "yes_price": yesPrice},
			DetectedAt:       now,
			TTLHours:         24.0,
			ReliabilityScore: c.Reliability(),
		})
	}
	return signals, nil
}
