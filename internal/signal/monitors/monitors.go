// Package monitors implements the upstream data source connectors that feed
// the signal scanner: one Connector per source, grouped by market category.
//
// Connectors share a few conventions. A connector that finds nothing notable
// returns (nil, nil); it returns an error only when every upstream request
// it attempted failed, so the scanner's health accounting tracks sources
// that are actually down rather than sources that are merely quiet. Signals
// carry stable ids derived from the upstream condition, which lets the
// store deduplicate across polls.
package monitors

import (
	"context"

	"github.com/aristath/hydra/internal/clients/deribit"
	"github.com/aristath/hydra/internal/clients/fred"
	"github.com/aristath/hydra/internal/clients/yahoo"
	"github.com/aristath/hydra/internal/config"
	"github.com/aristath/hydra/internal/events"
	"github.com/aristath/hydra/internal/fetch"
	"github.com/aristath/hydra/internal/signal"
)

// Deps carries the shared clients and configuration the connectors draw on.
type Deps struct {
	Fetch    *fetch.Client
	Yahoo    *yahoo.Client
	FRED     *fred.Client
	Deribit  *deribit.Client
	Calendar *events.Calendar
	Cfg      *config.Config
}

// The quote, series and book interfaces cover the slice of each market data
// client the connectors actually consume, so tests can swap in canned data.

type quoteSource interface {
	DailyCloses(ctx context.Context, symbol string, days int) ([]float64, bool)
}

type seriesSource interface {
	Available() bool
	LatestObservations(ctx context.Context, seriesID string, limit int) ([]fred.Observation, bool)
}

type optionBook interface {
	BookSummaryByCurrency(ctx context.Context, currency, kind string) ([]deribit.BookSummary, bool)
}

// Registry assembles every connector in registry order. The scanner owns
// poll cadence; connectors keyed to an absent API key simply stay quiet.
func Registry(d Deps) []signal.Connector {
	return []signal.Connector{
		// Crypto
		NewBinanceFunding(d.Fetch),
		NewBinanceOpenInterest(d.Fetch),
		NewCoinGlassLiquidations(d.Fetch, d.Cfg.CoinGlassKey),
		NewBTCETFFlows(d.Fetch),
		NewWhaleAlert(d.Fetch, d.Cfg.WhaleAlertKey),
		NewTokenUnlocks(),
		NewDeribitOptions(d.Deribit),

		// Macro
		NewFREDMonitor(d.FRED),
		NewCalendarMonitor(d.Calendar),
		NewTreasuryAuctions(d.Fetch),
		NewClevelandFedNowcast(d.Fetch),
		NewChallengerLayoffs(d.Fetch),
		NewLayoffTracker(d.Fetch),
		NewFedFundsFutures(d.Fetch),
		NewGovShutdown(d.Fetch),

		// Metals
		NewCMEMargin(d.Fetch),
		NewShanghaiGold(d.Fetch, d.Yahoo),
		NewCOMEXInventory(d.Fetch),
		NewWorldGoldCouncil(d.Fetch),
		NewSolarETF(d.Yahoo),

		// AI disruption
		NewGitHubAI(d.Fetch, d.Cfg.GitHubToken),
		NewHackerNews(d.Fetch),
		NewProductHunt(d.Fetch),
		NewSECEdgar(d.Fetch),

		// Volatility
		NewVIXMonitor(d.Yahoo),
		NewSKEWMonitor(d.Yahoo),

		// Prediction markets
		NewPolymarket(d.Fetch),
		NewKalshi(d.Fetch),

		// Cross-asset
		NewCopperMonitor(d.Yahoo),
		NewCreditSpread(d.Yahoo),
		NewDXYMonitor(d.Yahoo),
	}
}
