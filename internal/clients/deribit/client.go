// Package deribit provides the public book-summary endpoint of the Deribit
// derivatives exchange. No API key is required. The crypto connectors use it
// for BTC options put/call structure and perpetual funding.
package deribit

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/aristath/hydra/internal/fetch"
)

const defaultBaseURL = "https://www.deribit.com/api/v2"

// Client fetches public market summaries from Deribit.
type Client struct {
	baseURL string
	fetcher *fetch.Client
	log     zerolog.Logger
}

// NewClient creates a Deribit client on top of the shared fetcher.
func NewClient(fetcher *fetch.Client, log zerolog.Logger) *Client {
	return &Client{
		baseURL: defaultBaseURL,
		fetcher: fetcher,
		log:     log.With().Str("client", "deribit").Logger(),
	}
}

// BookSummary is one instrument row from get_book_summary_by_currency.
// Futures carry funding fields, options carry mark_iv; unused fields
// simply decode to zero.
type BookSummary struct {
	InstrumentName string  `json:"instrument_name"`
	OpenInterest   float64 `json:"open_interest"`
	Volume         float64 `json:"volume"`
	MarkPrice      float64 `json:"mark_price"`
	MarkIV         float64 `json:"mark_iv"`
	Funding8H      float64 `json:"funding_8h"`
}

type bookSummaryResponse struct {
	Result []BookSummary `json:"result"`
}

// BookSummaryByCurrency returns the book summaries for every live instrument
// of the given currency and kind ("option" or "future").
func (c *Client) BookSummaryByCurrency(ctx context.Context, currency, kind string) ([]BookSummary, bool) {
	endpoint := fmt.Sprintf("%s/public/get_book_summary_by_currency", c.baseURL)
	params := map[string]string{
		"currency": currency,
		"kind":     kind,
	}

	var resp bookSummaryResponse
	if !c.fetcher.GetJSON(ctx, endpoint, params, nil, &resp) {
		return nil, false
	}
	if len(resp.Result) == 0 {
		c.log.Debug().Str("currency", currency).Str("kind", kind).Msg("empty book summary")
		return nil, false
	}
	return resp.Result, true
}
