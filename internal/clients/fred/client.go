// Package fred provides access to FRED (Federal Reserve Economic Data)
// series observations. Used by the macro connectors and the event surprise
// detector; both degrade gracefully when no API key is configured.
package fred

import (
	"context"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/aristath/hydra/internal/fetch"
)

const defaultBaseURL = "https://api.stlouisfed.org/fred/series/observations"

// Client fetches series observations from the FRED API.
type Client struct {
	baseURL string
	apiKey  string
	fetcher *fetch.Client
	log     zerolog.Logger
}

// NewClient creates a FRED client. An empty apiKey produces a client whose
// calls always report absence; callers check Available() to skip work early.
func NewClient(fetcher *fetch.Client, apiKey string, log zerolog.Logger) *Client {
	return &Client{
		baseURL: defaultBaseURL,
		apiKey:  apiKey,
		fetcher: fetcher,
		log:     log.With().Str("client", "fred").Logger(),
	}
}

// Available reports whether an API key is configured.
func (c *Client) Available() bool {
	return c.apiKey != ""
}

// Observation is a single dated value from a FRED series.
type Observation struct {
	Date  string
	Value float64
}

type observationsResponse struct {
	Observations []struct {
		Date  string `json:"date"`
		Value string `json:"value"`
	} `json:"observations"`
}

// LatestObservations returns up to limit most-recent observations for the
// series, newest first. FRED reports missing datapoints as "." which are
// skipped, so fewer than limit observations may come back.
func (c *Client) LatestObservations(ctx context.Context, seriesID string, limit int) ([]Observation, bool) {
	if !c.Available() {
		return nil, false
	}

	params := map[string]string{
		"series_id":  seriesID,
		"api_key":    c.apiKey,
		"file_type":  "json",
		"sort_order": "desc",
		"limit":      strconv.Itoa(limit),
	}

	var resp observationsResponse
	if !c.fetcher.GetJSON(ctx, c.baseURL, params, nil, &resp) {
		return nil, false
	}

	obs := make([]Observation, 0, len(resp.Observations))
	for _, o := range resp.Observations {
		if o.Value == "." {
			continue
		}
		v, err := strconv.ParseFloat(o.Value, 64)
		if err != nil {
			c.log.Debug().Str("series", seriesID).Str("value", o.Value).Msg("unparseable observation")
			continue
		}
		obs = append(obs, Observation{Date: o.Date, Value: v})
	}
	if len(obs) == 0 {
		return nil, false
	}
	return obs, true
}

// Latest returns the single most recent observation for the series.
func (c *Client) Latest(ctx context.Context, seriesID string) (Observation, bool) {
	obs, ok := c.LatestObservations(ctx, seriesID, 1)
	if !ok || len(obs) == 0 {
		return Observation{}, false
	}
	return obs[0], true
}
