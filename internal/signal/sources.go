package signal

import "strings"

// Source is one catalog entry describing an upstream data source, whether or
// not a connector for it has shipped. Served verbatim by /api/sources.
type Source struct {
	ID       int    `json:"id"`
	Name     string `json:"name"`
	API      string `json:"api"`
	Cost     string `json:"cost"`
	Status   string `json:"status"`
	Category string `json:"category"`
	Poll     string `json:"poll"`
	Signal   string `json:"signal"`
}

// Source statuses.
const (
	StatusImplemented = "IMPLEMENTED"
	StatusPlanned     = "PLANNED"
	StatusSkipped     = "SKIPPED"
)

// Registry is the complete catalog of upstream data sources with
// implementation status, cost and the market question each one answers.
var Registry = []Source{
	// Crypto
	{ID: 1, Name: "Binance Funding Rates", API: "fapi.binance.com/fundingRate", Cost: "FREE", Status: StatusImplemented, Category: "crypto", Poll: "30min", Signal: "Overleveraged positioning → fade the crowd"},
	{ID: 2, Name: "Binance Open Interest", API: "fapi.binance.com/openInterest", Cost: "FREE", Status: StatusImplemented, Category: "crypto", Poll: "15min", Signal: "OI cascade detection, leverage buildup warning"},
	{ID: 3, Name: "CoinGlass Liquidations", API: "open-api.coinglass.com", Cost: "FREE", Status: StatusImplemented, Category: "crypto", Poll: "30min", Signal: "Mass liquidation events, heatmap clusters"},
	{ID: 4, Name: "BTC ETF Flows (Farside)", API: "farside.co.uk/bitcoin-etf-flow", Cost: "FREE", Status: StatusImplemented, Category: "crypto", Poll: "6hr", Signal: "Institutional buying/selling pressure"},
	{ID: 5, Name: "Whale Alert", API: "api.whale-alert.io", Cost: "FREE", Status: StatusImplemented, Category: "crypto", Poll: "15min", Signal: "Large exchange deposits (sell) / withdrawals (accumulate)"},
	{ID: 6, Name: "Token Unlocks", API: "token.unlocks.app", Cost: "FREE", Status: StatusImplemented, Category: "crypto", Poll: "12hr", Signal: "Predictable supply floods → short before unlock"},
	{ID: 7, Name: "Deribit Options Vol Surface", API: "deribit.com/api/v2", Cost: "FREE", Status: StatusImplemented, Category: "crypto", Poll: "1hr", Signal: "Crypto options skew, IV term structure, P/C ratio"},
	{ID: 8, Name: "Glassnode On-Chain", API: "api.glassnode.com", Cost: "FREE*", Status: StatusPlanned, Category: "crypto", Poll: "1hr", Signal: "Exchange reserves, SOPR, MVRV ratio"},

	// Macro
	{ID: 9, Name: "FRED API", API: "api.stlouisfed.org/fred", Cost: "FREE", Status: StatusImplemented, Category: "macro", Poll: "6hr", Signal: "JOLTS, claims, yield curve, credit spreads, ISM, ADP"},
	{ID: 10, Name: "BLS Economic Calendar", API: "bls.gov/schedule", Cost: "FREE", Status: StatusImplemented, Category: "macro", Poll: "6hr", Signal: "NFP, CPI release countdown with pre-event alerts"},
	{ID: 11, Name: "Treasury Auction Results", API: "api.fiscaldata.treasury.gov", Cost: "FREE", Status: StatusImplemented, Category: "macro", Poll: "daily", Signal: "Weak bid-to-cover = yields spike, sell TLT"},
	{ID: 12, Name: "Cleveland Fed CPI Nowcast", API: "clevelandfed.org/indicators", Cost: "FREE", Status: StatusImplemented, Category: "macro", Poll: "daily", Signal: "Real-time CPI estimate before official release"},
	{ID: 13, Name: "ISM Manufacturing PMI", API: "FRED NAPM series", Cost: "FREE", Status: StatusImplemented, Category: "macro", Poll: "monthly", Signal: "ISM Prices Paid leads CPI by 2-3 months"},
	{ID: 14, Name: "ADP Employment", API: "FRED ADPMNUSNERSA series", Cost: "FREE", Status: StatusImplemented, Category: "macro", Poll: "monthly", Signal: "Leads NFP, showed only 22K in Jan 2026"},
	{ID: 15, Name: "Challenger Layoff Data", API: "challengergray.com", Cost: "FREE", Status: StatusImplemented, Category: "macro", Poll: "monthly", Signal: "108K cuts in Jan 2026 — highest since 2009"},
	{ID: 16, Name: "Fed Funds Futures", API: "cmegroup.com/fedwatch", Cost: "FREE", Status: StatusImplemented, Category: "macro", Poll: "1hr", Signal: "Rate cut probability for next meeting"},

	// Metals
	{ID: 17, Name: "CME Margin Advisories", API: "cmegroup.com/advisories (scrape)", Cost: "FREE", Status: StatusImplemented, Category: "metals", Poll: "2hr", Signal: "THE #1 crash predictor. Margin hike → liquidation 24-48hr later"},
	{ID: 18, Name: "Shanghai Gold Premium", API: "sge.com.cn (scrape)", Cost: "FREE", Status: StatusImplemented, Category: "metals", Poll: "4hr", Signal: "Premium = Chinese demand strong. Discount = demand collapsed"},
	{ID: 19, Name: "COMEX Inventory Data", API: "cmegroup.com/delivery", Cost: "FREE", Status: StatusImplemented, Category: "metals", Poll: "daily", Signal: "Physical inventory drawdowns = supply tightness"},
	{ID: 20, Name: "World Gold Council Flows", API: "gold.org/goldhub", Cost: "FREE", Status: StatusImplemented, Category: "metals", Poll: "weekly", Signal: "Central bank buying data, ETF flows"},
	{ID: 21, Name: "Solar ETF Silver Proxy", API: "Yahoo Finance TAN", Cost: "FREE", Status: StatusImplemented, Category: "metals", Poll: "daily", Signal: "TAN rallying = silver industrial demand rising"},

	// AI disruption
	{ID: 22, Name: "GitHub AI Lab Repos", API: "api.github.com/orgs/*/repos", Cost: "FREE", Status: StatusImplemented, Category: "ai", Poll: "2hr", Signal: "New enterprise AI releases from Anthropic/OpenAI/Google"},
	{ID: 23, Name: "Hacker News Trends", API: "hacker-news.firebaseio.com", Cost: "FREE", Status: StatusImplemented, Category: "ai", Poll: "1hr", Signal: "AI narrative velocity — trends 12-24hr before mainstream"},
	{ID: 24, Name: "Product Hunt", API: "producthunt.com (scrape)", Cost: "FREE", Status: StatusImplemented, Category: "ai", Poll: "2hr", Signal: "New AI product launches trending"},
	{ID: 25, Name: "SEC EDGAR Filings", API: "efts.sec.gov/LATEST/search-index", Cost: "FREE", Status: StatusImplemented, Category: "ai", Poll: "6hr", Signal: "Insider selling in SaaS companies post-AI launch"},
	{ID: 26, Name: "Layoffs.fyi Tracker", API: "layoffs.fyi (scrape)", Cost: "FREE", Status: StatusImplemented, Category: "ai", Poll: "6hr", Signal: "Real-time layoff signals (faster than Challenger monthly)"},

	// Volatility & options
	{ID: 27, Name: "CBOE VIX Data", API: "Yahoo Finance ^VIX", Cost: "FREE", Status: StatusImplemented, Category: "options", Poll: "1hr", Signal: "VIX level, term structure (contango vs backwardation)"},
	{ID: 28, Name: "SpotGamma GEX Levels", API: "spotgamma.com (free tier)", Cost: "FREE", Status: StatusPlanned, Category: "options", Poll: "daily", Signal: "GEX flip point — above = mean-reverting, below = trending"},
	{ID: 29, Name: "Unusual Whales Flow", API: "unusualwhales.com/api", Cost: "$20/mo", Status: StatusSkipped, Category: "options", Poll: "15min", Signal: "Unusual options activity, dark pool prints, sweep alerts"},
	{ID: 30, Name: "CBOE SKEW Index", API: "Yahoo Finance ^SKEW", Cost: "FREE", Status: StatusImplemented, Category: "options", Poll: "1hr", Signal: "Tail risk pricing — high SKEW = market fears a crash"},

	// Prediction markets
	{ID: 31, Name: "Polymarket", API: "gamma-api.polymarket.com", Cost: "FREE", Status: StatusImplemented, Category: "prediction", Poll: "2hr", Signal: "Crowd-sourced probabilities vs options-implied = arbitrage"},
	{ID: 32, Name: "Kalshi", API: "demo-api.kalshi.co", Cost: "FREE", Status: StatusImplemented, Category: "prediction", Poll: "2hr", Signal: "Regulated prediction market odds on economic events"},

	// Cross-asset
	{ID: 33, Name: "Copper Futures (HG)", API: "Yahoo Finance HG=F", Cost: "FREE", Status: StatusImplemented, Category: "cross", Poll: "1hr", Signal: "Copper leads equities by 24hr. Breakdown = buy SPY puts."},
	{ID: 34, Name: "Credit Spreads (HYG/LQD)", API: "Yahoo Finance HYG/LQD ratio", Cost: "FREE", Status: StatusImplemented, Category: "cross", Poll: "1hr", Signal: "Widening credit = risk-off approaching"},
	{ID: 35, Name: "DXY Dollar Index", API: "Yahoo Finance DX-Y.NYB", Cost: "FREE", Status: StatusImplemented, Category: "cross", Poll: "1hr", Signal: "Dollar strength kills everything: commodities, EM, crypto, gold"},

	// Structural
	{ID: 36, Name: "Gov Shutdown Tracker", API: "congress.gov + news (scrape)", Cost: "FREE", Status: StatusImplemented, Category: "structural", Poll: "6hr", Signal: "Data delays = information vacuum = vol expansion"},
}

// SourceStats summarizes the registry for the dashboard header.
type SourceStats struct {
	Total            int    `json:"total"`
	Implemented      int    `json:"implemented"`
	Planned          int    `json:"planned"`
	Free             int    `json:"free"`
	TotalMonthlyCost string `json:"total_monthly_cost"`
}

// RegistryStats counts the registry by status and cost.
func RegistryStats() SourceStats {
	stats := SourceStats{Total: len(Registry)}
	for _, src := range Registry {
		switch src.Status {
		case StatusImplemented:
			stats.Implemented++
		case StatusPlanned:
			stats.Planned++
		}
		if strings.Contains(src.Cost, "FREE") {
			stats.Free++
		}
	}
	// The only paid source in the catalog is Unusual Whales.
	stats.TotalMonthlyCost = "$20"
	return stats
}
