// Package polygon provides the subset of the Polygon.io market data API used
// by the scorer, gamma engine, flow classifier and dark pool mapper: previous
// day aggregates, option chain snapshots, trade tape and NBBO quotes.
//
// Every method degrades to an absent result when the API key is missing or
// the request fails; callers mark their component unhealthy instead of
// propagating errors.
package polygon

import (
	"context"
	"fmt"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/aristath/hydra/internal/fetch"
)

const defaultBaseURL = "https://api.polygon.io"

// Client fetches market data from Polygon.io.
type Client struct {
	baseURL string
	apiKey  string
	fetcher *fetch.Client
	log     zerolog.Logger
}

// NewClient creates a Polygon client. An empty apiKey produces a client whose
// calls always report absence.
func NewClient(fetcher *fetch.Client, apiKey string, log zerolog.Logger) *Client {
	return &Client{
		baseURL: defaultBaseURL,
		apiKey:  apiKey,
		fetcher: fetcher,
		log:     log.With().Str("client", "polygon").Logger(),
	}
}

// Available reports whether an API key is configured.
func (c *Client) Available() bool {
	return c.apiKey != ""
}

// Bar is a single OHLCV aggregate.
type Bar struct {
	Open   float64 `json:"o"`
	High   float64 `json:"h"`
	Low    float64 `json:"l"`
	Close  float64 `json:"c"`
	Volume float64 `json:"v"`
}

type aggsResponse struct {
	Results []Bar `json:"results"`
}

// PrevDayBar returns the previous trading day's aggregate for a ticker.
// Index tickers use the I: prefix (e.g. "I:VIX").
func (c *Client) PrevDayBar(ctx context.Context, ticker string) (*Bar, bool) {
	if !c.Available() {
		return nil, false
	}

	endpoint := fmt.Sprintf("%s/v2/aggs/ticker/%s/prev", c.baseURL, ticker)
	params := map[string]string{"apiKey": c.apiKey, "adjusted": "true"}

	var resp aggsResponse
	if !c.fetcher.GetJSON(ctx, endpoint, params, nil, &resp) {
		return nil, false
	}
	if len(resp.Results) == 0 {
		c.log.Debug().Str("ticker", ticker).Msg("prev day aggregate empty")
		return nil, false
	}
	bar := resp.Results[0]
	return &bar, true
}

// OptionContract is one row of an option chain snapshot with the fields the
// gamma engine consumes. IV of zero means Polygon omitted it; the engine
// substitutes its default. UnderlyingPrice rides along on every row of the
// snapshot so chain consumers get spot without a second request.
type OptionContract struct {
	Ticker          string
	Strike          float64
	ContractType    string // "call" or "put"
	Expiration      string
	OpenInterest    float64
	Gamma           float64
	Delta           float64
	Theta           float64
	Vega            float64
	IV              float64
	DayVolume       float64
	UnderlyingPrice float64
}

type chainSnapshotResponse struct {
	Results []struct {
		Details struct {
			Ticker         string  `json:"ticker"`
			StrikePrice    float64 `json:"strike_price"`
			ContractType   string  `json:"contract_type"`
			ExpirationDate string  `json:"expiration_date"`
		} `json:"details"`
		Greeks struct {
			Gamma float64 `json:"gamma"`
			Delta float64 `json:"delta"`
			Theta float64 `json:"theta"`
			Vega  float64 `json:"vega"`
		} `json:"greeks"`
		OpenInterest      float64 `json:"open_interest"`
		ImpliedVolatility float64 `json:"implied_volatility"`
		Day               struct {
			Volume float64 `json:"volume"`
		} `json:"day"`
		UnderlyingAsset struct {
			Price float64 `json:"price"`
		} `json:"underlying_asset"`
	} `json:"results"`
	NextURL string `json:"next_url"`
}

// maxChainPages bounds next_url pagination; 250 contracts per page covers the
// SPY 0DTE chain in a handful of pages.
const maxChainPages = 8

// OptionChain returns the full snapshot chain for an underlying at one
// expiration date (YYYY-MM-DD), following next_url pagination.
func (c *Client) OptionChain(ctx context.Context, underlying, expiration string) ([]OptionContract, bool) {
	if !c.Available() {
		return nil, false
	}

	endpoint := fmt.Sprintf("%s/v3/snapshot/options/%s", c.baseURL, underlying)
	params := map[string]string{
		"apiKey":          c.apiKey,
		"expiration_date": expiration,
		"limit":           "250",
	}

	var contracts []OptionContract
	for page := 0; page < maxChainPages; page++ {
		var resp chainSnapshotResponse
		if !c.fetcher.GetJSON(ctx, endpoint, params, nil, &resp) {
			// A failed later page still leaves earlier pages usable.
			break
		}
		for _, r := range resp.Results {
			contracts = append(contracts, OptionContract{
				Ticker:          r.Details.Ticker,
				Strike:          r.Details.StrikePrice,
				ContractType:    r.Details.ContractType,
				Expiration:      r.Details.ExpirationDate,
				OpenInterest:    r.OpenInterest,
				Gamma:           r.Greeks.Gamma,
				Delta:           r.Greeks.Delta,
				Theta:           r.Greeks.Theta,
				Vega:            r.Greeks.Vega,
				IV:              r.ImpliedVolatility,
				DayVolume:       r.Day.Volume,
				UnderlyingPrice: r.UnderlyingAsset.Price,
			})
		}
		if resp.NextURL == "" {
			break
		}
		// next_url is absolute and carries the cursor; only the key is added.
		endpoint = resp.NextURL
		params = map[string]string{"apiKey": c.apiKey}
	}

	if len(contracts) == 0 {
		return nil, false
	}
	return contracts, true
}

// Trade is a single print from the trade tape. TRFID is non-nil only for
// trades reported through a trade reporting facility, which combined with
// exchange 4 identifies off-exchange (dark pool) executions.
type Trade struct {
	Ticker               string  `json:"ticker"`
	Price                float64 `json:"price"`
	Size                 float64 `json:"size"`
	Conditions           []int   `json:"conditions"`
	Exchange             int     `json:"exchange"`
	TRFID                *int64  `json:"trf_id"`
	ParticipantTimestamp int64   `json:"participant_timestamp"`
}

type tradesResponse struct {
	Results []Trade `json:"results"`
}

// Trades returns the most recent prints for a ticker, newest first.
func (c *Client) Trades(ctx context.Context, ticker string, limit int) ([]Trade, bool) {
	if !c.Available() {
		return nil, false
	}

	endpoint := fmt.Sprintf("%s/v3/trades/%s", c.baseURL, ticker)
	params := map[string]string{
		"apiKey": c.apiKey,
		"limit":  strconv.Itoa(limit),
		"sort":   "timestamp",
		"order":  "desc",
	}

	var resp tradesResponse
	if !c.fetcher.GetJSON(ctx, endpoint, params, nil, &resp) {
		return nil, false
	}
	if len(resp.Results) == 0 {
		return nil, false
	}
	return resp.Results, true
}

// OptionTrades returns recent prints across an underlying's option contracts
// (the O: composite tape), newest first. Each trade's Ticker is the OCC
// option symbol, e.g. O:SPY260825C00450000.
func (c *Client) OptionTrades(ctx context.Context, underlying string, limit int) ([]Trade, bool) {
	return c.Trades(ctx, "O:"+underlying, limit)
}

// Quote is a single NBBO quote.
type Quote struct {
	BidPrice float64 `json:"bid_price"`
	AskPrice float64 `json:"ask_price"`
}

type quotesResponse struct {
	Results []Quote `json:"results"`
}

// LastQuote returns the most recent NBBO quote for a ticker.
func (c *Client) LastQuote(ctx context.Context, ticker string) (*Quote, bool) {
	if !c.Available() {
		return nil, false
	}

	endpoint := fmt.Sprintf("%s/v3/quotes/%s", c.baseURL, ticker)
	params := map[string]string{
		"apiKey": c.apiKey,
		"limit":  "1",
		"sort":   "timestamp",
		"order":  "desc",
	}

	var resp quotesResponse
	if !c.fetcher.GetJSON(ctx, endpoint, params, nil, &resp) {
		return nil, false
	}
	if len(resp.Results) == 0 {
		return nil, false
	}
	quote := resp.Results[0]
	return &quote, true
}
