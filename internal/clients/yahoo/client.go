// Package yahoo provides daily price series from the Yahoo Finance chart API.
//
// Several market monitors (VIX, SKEW, DXY, copper, credit spreads, solar ETF)
// only need a short window of daily closes, so the surface here is a single
// call. Yahoo serves index symbols (^VIX), futures (HG=F) and composite
// symbols (DX-Y.NYB) from the same endpoint.
package yahoo

import (
	"context"
	"fmt"
	neturl "net/url"

	"github.com/rs/zerolog"

	"github.com/aristath/hydra/internal/fetch"
)

const defaultBaseURL = "https://query1.finance.yahoo.com/v8/finance/chart"

// Yahoo rejects requests without a browser-ish user agent.
const userAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36"

// Client fetches daily close series for a symbol.
type Client struct {
	baseURL string
	fetcher *fetch.Client
	log     zerolog.Logger
}

// NewClient creates a Yahoo chart client on top of the shared fetcher.
func NewClient(fetcher *fetch.Client, log zerolog.Logger) *Client {
	return &Client{
		baseURL: defaultBaseURL,
		fetcher: fetcher,
		log:     log.With().Str("client", "yahoo").Logger(),
	}
}

// chartResponse mirrors the subset of the chart payload we consume.
type chartResponse struct {
	Chart struct {
		Result []struct {
			Indicators struct {
				Quote []struct {
					Close []*float64 `json:"close"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
	} `json:"chart"`
}

// DailyCloses returns up to days daily closing prices for symbol, oldest
// first. Null entries (holidays, halted sessions) are dropped. The second
// return is false when the series could not be fetched or came back empty.
func (c *Client) DailyCloses(ctx context.Context, symbol string, days int) ([]float64, bool) {
	endpoint := fmt.Sprintf("%s/%s", c.baseURL, neturl.PathEscape(symbol))
	params := map[string]string{
		"range":    fmt.Sprintf("%dd", days),
		"interval": "1d",
	}
	headers := map[string]string{"User-Agent": userAgent}

	var resp chartResponse
	if !c.fetcher.GetJSON(ctx, endpoint, params, headers, &resp) {
		return nil, false
	}
	if len(resp.Chart.Result) == 0 || len(resp.Chart.Result[0].Indicators.Quote) == 0 {
		c.log.Debug().Str("symbol", symbol).Msg("chart response missing quote data")
		return nil, false
	}

	raw := resp.Chart.Result[0].Indicators.Quote[0].Close
	closes := make([]float64, 0, len(raw))
	for _, v := range raw {
		if v != nil {
			closes = append(closes, *v)
		}
	}
	if len(closes) == 0 {
		return nil, false
	}
	return closes, true
}
