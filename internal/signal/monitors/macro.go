package monitors

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"strings"
	"time"

	"github.com/aristath/hydra/internal/fetch"
	"github.com/aristath/hydra/internal/signal"
)

// fredSeries are the series the FRED monitor pulls every cycle. Only some
// of them carry signal rules; the rest are fetched for their raw values.
var fredSeries = []string{
	"JTSJOL",       // JOLTS job openings
	"ICSA",         // initial jobless claims
	"CPIAUCSL",     // CPI all urban
	"DFF",          // fed funds rate
	"T10Y2Y",       // 10y-2y spread
	"BAMLH0A0HYM2", // HY credit spread
	"NAPM",         // ISM manufacturing PMI
	"ADPMNUSNERSA", // ADP employment change
}

// FREDMonitor evaluates key economic series against their stress
// thresholds: JOLTS collapse, claims spikes, curve inversion, ISM
// contraction and weak ADP prints.
type FREDMonitor struct {
	signal.Meta
	series seriesSource
}

func NewFREDMonitor(series seriesSource) *FREDMonitor {
	return &FREDMonitor{
		Meta:   signal.NewMeta("FRED API", signal.CategoryMacro, 6*time.Hour, 0.90),
		series: series,
	}
}

func (c *FREDMonitor) Poll(ctx context.Context) ([]signal.Signal, error) {
	if !c.series.Available() {
		return nil, nil
	}
	now := time.Now().UTC()
	var signals []signal.Signal

	for _, seriesID := range fredSeries {
		obs, ok := c.series.LatestObservations(ctx, seriesID, 5)
		if !ok || len(obs) < 2 {
			continue
		}
		latest, prev := obs[0].Value, obs[1].Value
		date := obs[0].Date
		change := latest - prev

		switch seriesID {
		case "JTSJOL":
			if latest < 7000 {
				signals = append(signals, signal.Signal{
					ID:         signal.MakeID("jolts", date),
					Name:       fmt.Sprintf("JOLTS Openings: %.1fM (Lowest since 2020)", latest/1000),
					SourceName: "FRED / BLS",
					SourceAPI:  "api.stlouisfed.org/JTSJOL",
					Category:   signal.CategoryMacro,
					Priority:   signal.PriorityCritical,
					Direction:  -1.0,
					Strength:   math.Min(1.0, (7000-latest)/2000),
					Description: fmt.Sprintf(
						"Job openings at %.2fM — lowest since Sept 2020. Changed %+.0fK from prior. Labor market cracking. Combined with AI disruption narrative, this amplifies 'jobs crisis' fear.",
						latest/1000, change),
					AffectedAssets: []string{"SPY", "TLT", "IWM", "XLF", "GLD", "BTC/USD"},
					TradeImplications: []string{
						"Buy TLT calls — rate cut expectations rise",
						"Buy GLD calls — safe haven + rate cut support",
						"Sell IWM — small caps most exposed to domestic labor",
						"SPX 0DTE puts on next weak data release",
					},
					Opportunities: []string{
						"Rate cut acceleration = housing/mortgage opportunity",
						"Automation/AI services demand increases",
						"Recruitment/staffing companies face headwinds",
					},
					RawData:          map[string]interface{}{"value": latest, "change": change, "date": date},
					DetectedAt:       now,
					TTLHours:         168, // weekly data, valid for a week
					ReliabilityScore: c.Reliability(),
				})
			}

		case "ICSA":
			if latest > 220 {
				priority := signal.PriorityMedium
				if latest > 240 {
					priority = signal.PriorityHigh
				}
				direction, level := -0.3, "above"
				if latest > 230 {
					direction, level = -1.0, "well above"
				}
				signals = append(signals, signal.Signal{
					ID:         signal.MakeID("claims", date),
					Name:       fmt.Sprintf("Jobless Claims: %.0fK (vs %.0fK prior)", latest, prev),
					SourceName: "FRED / DOL",
					SourceAPI:  "api.stlouisfed.org/ICSA",
					Category:   signal.CategoryMacro,
					Priority:   priority,
					Direction:  direction,
					Strength:   math.Min(1.0, (latest-210)/40),
					Description: fmt.Sprintf(
						"Initial jobless claims at %.0fK, %s expectations. Rising claims + weak JOLTS = labor deterioration signal.",
						latest, level),
					AffectedAssets: []string{"SPY", "TLT", "IWM"},
					TradeImplications: []string{
						"Buy TLT on weakness — rates coming down",
						"Sell cyclicals (XLI, XLF) if trend continues",
					},
					Opportunities:    []string{"Unemployment insurance tech/services demand rises"},
					RawData:          map[string]interface{}{"value": latest, "change": change, "date": date},
					DetectedAt:       now,
					TTLHours:         168,
					ReliabilityScore: c.Reliability(),
				})
			}

		case "T10Y2Y":
			if latest < 0 {
				signals = append(signals, signal.Signal{
					ID:                signal.MakeID("curve", date),
					Name:              fmt.Sprintf("Yield Curve Inverted: %.2f%%", latest),
					SourceName:        "FRED / Treasury",
					SourceAPI:         "api.stlouisfed.org/T10Y2Y",
					Category:          signal.CategoryRates,
					Priority:          signal.PriorityMedium,
					Direction:         -0.5,
					Strength:          math.Min(0.8, math.Abs(latest)/1.0),
					Description:       fmt.Sprintf("10Y-2Y spread at %.2f%%. Inversion historically precedes recession.", latest),
					AffectedAssets:    []string{"SPY", "TLT", "XLF", "IWM"},
					TradeImplications: []string{"Steepener trade: long TLT, short SHY", "Sell bank stocks (XLF)"},
					Opportunities:     []string{"Recession preparation: defensive sectors, cash reserves"},
					RawData:           map[string]interface{}{"value": latest, "date": date},
					DetectedAt:        now,
					TTLHours:          168,
					ReliabilityScore:  0.70,
				})
			}

		case "NAPM":
			if latest < 50 {
				priority := signal.PriorityMedium
				if latest < 48 {
					priority = signal.PriorityHigh
				}
				signals = append(signals, signal.Signal{
					ID:         signal.MakeID("ism", date),
					Name:       fmt.Sprintf("ISM Manufacturing: %.1f — Contraction", latest),
					SourceName: "FRED / ISM",
					SourceAPI:  "api.stlouisfed.org/NAPM",
					Category:   signal.CategoryMacro,
					Priority:   priority,
					Direction:  -0.6,
					Strength:   math.Min(1.0, (50-latest)/10),
					Description: fmt.Sprintf(
						"ISM Manufacturing PMI at %.1f — below 50 = contraction. Changed %+.1f from prior. Manufacturing weakness signals economic slowdown. ISM Prices Paid leads CPI by 2-3 months.",
						latest, change),
					AffectedAssets: []string{"SPY", "XLI", "CAT", "DE", "IWM"},
					TradeImplications: []string{
						"Sell industrials (XLI, CAT, DE)",
						"Small caps underperform in manufacturing downturns",
						"Buy TLT — economic weakness = rate cuts",
					},
					Opportunities: []string{
						"Manufacturing bottoms are buying opportunities",
						"ISM < 45 historically = market bottoms",
					},
					RawData:          map[string]interface{}{"value": latest, "change": change, "date": date},
					DetectedAt:       now,
					TTLHours:         720, // monthly data
					ReliabilityScore: c.Reliability(),
				})
			} else if latest > 55 {
				signals = append(signals, signal.Signal{
					ID:         signal.MakeID("ism_strong", date),
					Name:       fmt.Sprintf("ISM Manufacturing: %.1f — Strong Expansion", latest),
					SourceName: "FRED / ISM",
					SourceAPI:  "api.stlouisfed.org/NAPM",
					Category:   signal.CategoryMacro,
					Priority:   signal.PriorityMedium,
					Direction:  0.5,
					Strength:   math.Min(0.8, (latest-50)/10),
					Description: fmt.Sprintf(
						"ISM Manufacturing at %.1f. Strong expansion. Bullish for industrials and cyclicals.",
						latest),
					AffectedAssets:    []string{"XLI", "CAT", "DE"},
					TradeImplications: []string{"Buy cyclicals", "Risk-on positioning"},
					Opportunities:     []string{"Manufacturing strength = economic growth"},
					RawData:           map[string]interface{}{"value": latest, "date": date},
					DetectedAt:        now,
					TTLHours:          720,
					ReliabilityScore:  c.Reliability(),
				})
			}

		case "ADPMNUSNERSA":
			if latest < 100 {
				priority := signal.PriorityMedium
				if latest < 50 {
					priority = signal.PriorityHigh
				}
				signals = append(signals, signal.Signal{
					ID:         signal.MakeID("adp", date),
					Name:       fmt.Sprintf("ADP Employment: %.0fK — Weak", latest),
					SourceName: "FRED / ADP",
					SourceAPI:  "api.stlouisfed.org/ADPMNUSNERSA",
					Category:   signal.CategoryMacro,
					Priority:   priority,
					Direction:  -0.5,
					Strength:   math.Min(1.0, (150-latest)/150),
					Description: fmt.Sprintf(
						"ADP private payrolls at %.0fK (changed %+.0fK). Weak private sector hiring. ADP showed only 22K in Jan 2026. This leads NFP and signals labor market cooling.",
						latest, change),
					AffectedAssets: []string{"SPY", "TLT", "XLY", "IWM"},
					TradeImplications: []string{
						"Buy TLT — rate cut expectations rise on weak labor",
						"Sell consumer discretionary (XLY)",
						"Position for weak NFP print",
					},
					Opportunities: []string{
						"Weak labor = Fed pivot = risk asset rally eventually",
						"Pre-position before NFP based on ADP weakness",
					},
					RawData:          map[string]interface{}{"value": latest, "change": change, "date": date},
					DetectedAt:       now,
					TTLHours:         168,
					ReliabilityScore: 0.70,
				})
			} else if latest > 200 {
				signals = append(signals, signal.Signal{
					ID:         signal.MakeID("adp_strong", date),
					Name:       fmt.Sprintf("ADP Employment: %.0fK — Strong", latest),
					SourceName: "FRED / ADP",
					SourceAPI:  "api.stlouisfed.org/ADPMNUSNERSA",
					Category:   signal.CategoryMacro,
					Priority:   signal.PriorityMedium,
					Direction:  0.3,
					Strength:   math.Min(0.7, (latest-150)/150),
					Description: fmt.Sprintf(
						"ADP at %.0fK — strong private hiring. Healthy labor market but may delay Fed cuts.",
						latest),
					AffectedAssets:    []string{"SPY", "TLT"},
					TradeImplications: []string{"Risk-on but watch for hawkish Fed"},
					Opportunities:     []string{"Strong labor = consumer spending intact"},
					RawData:           map[string]interface{}{"value": latest, "date": date},
					DetectedAt:        now,
					TTLHours:          168,
					ReliabilityScore:  0.70,
				})
			}
		}
	}
	return signals, nil
}

// TreasuryAuctions grades recent note and bond auctions by bid-to-cover.
// Weak demand pushes yields up; strong demand is a flight-to-safety tell.
type TreasuryAuctions struct {
	signal.Meta
	fetcher *fetch.Client
	baseURL string
}

func NewTreasuryAuctions(fetcher *fetch.Client) *TreasuryAuctions {
	return &TreasuryAuctions{
		Meta:    signal.NewMeta("Treasury Auctions", signal.CategoryRates, 6*time.Hour, 0.80),
		fetcher: fetcher,
		baseURL: "https://api.fiscaldata.treasury.gov/services/api/fiscal_service/v2/accounting/od/auctions_query",
	}
}

func (c *TreasuryAuctions) Poll(ctx context.Context) ([]signal.Signal, error) {
	now := time.Now().UTC()

	var resp struct {
		Data []struct {
			SecurityType       string `json:"security_type"`
			SecurityTerm       string `json:"security_term"`
			AuctionDate        string `json:"auction_date"`
			HighInvestmentRate string `json:"high_investment_rate"`
			BidToCoverRatio    string `json:"bid_to_cover_ratio"`
		} `json:"data"`
	}
	params := map[string]string{
		"sort":       "-auction_date",
		"page[size]": "10",
		"filter":     "security_type:eq:Note,security_type:eq:Bond",
	}
	if !c.fetcher.GetJSON(ctx, c.baseURL, params, nil, &resp) {
		return nil, fmt.Errorf("auction query failed")
	}

	auctions := resp.Data
	if len(auctions) > 5 {
		auctions = auctions[:5]
	}

	var signals []signal.Signal
	for _, a := range auctions {
		auctionDate, err := time.Parse("2006-01-02", a.AuctionDate)
		if err != nil || now.Sub(auctionDate) > 3*24*time.Hour {
			continue
		}
		bidToCover := parseFloatDefault(a.BidToCoverRatio, 0)
		highYield := parseFloatDefault(a.HighInvestmentRate, 0)

		switch {
		case bidToCover > 0 && bidToCover < 2.3:
			priority := signal.PriorityMedium
			if bidToCover < 2.0 {
				priority = signal.PriorityHigh
			}
			signals = append(signals, signal.Signal{
				ID:         signal.MakeID("auction_weak", a.SecurityTerm, a.AuctionDate),
				Name:       fmt.Sprintf("Weak Treasury Auction: %s — BTC %.2fx", a.SecurityTerm, bidToCover),
				SourceName: "Treasury Auctions",
				SourceAPI:  "api.fiscaldata.treasury.gov",
				Category:   signal.CategoryRates,
				Priority:   priority,
				Direction:  -0.5,
				Strength:   math.Min(1.0, (2.5-bidToCover)/0.5),
				Description: fmt.Sprintf(
					"%s %s auction on %s: Bid-to-cover %.2fx (weak < 2.3x). High yield: %.3f%%. Weak auction = yields may spike further. Bearish TLT.",
					a.SecurityTerm, a.SecurityType, a.AuctionDate, bidToCover, highYield),
				AffectedAssets: []string{"TLT", "IEF", "SHY", "SPY"},
				TradeImplications: []string{
					"Sell TLT rallies — weak demand = higher yields",
					"Rising yields pressure growth stocks (QQQ)",
					"Watch for further auction weakness",
				},
				Opportunities: []string{
					"Weak auctions = buying opportunity for contrarians when sentiment capitulates",
					"Higher yields = better entry for bond investors eventually",
				},
				RawData: map[string]interface{}{
					"security_term": a.SecurityTerm, "bid_to_cover": bidToCover,
					"high_yield": highYield, "auction_date": a.AuctionDate,
				},
				DetectedAt:       now,
				TTLHours:         72.0,
				ReliabilityScore: c.Reliability(),
			})

		case bidToCover > 2.8:
			signals = append(signals, signal.Signal{
				ID:         signal.MakeID("auction_strong", a.SecurityTerm, a.AuctionDate),
				Name:       fmt.Sprintf("Strong Treasury Auction: %s — BTC %.2fx", a.SecurityTerm, bidToCover),
				SourceName: "Treasury Auctions",
				SourceAPI:  "api.fiscaldata.treasury.gov",
				Category:   signal.CategoryRates,
				Priority:   signal.PriorityMedium,
				Direction:  0.4,
				Strength:   math.Min(0.7, (bidToCover-2.5)/0.5),
				Description: fmt.Sprintf(
					"%s auction with strong demand: %.2fx bid-to-cover. Strong demand = yields may decline. Bullish TLT.",
					a.SecurityTerm, bidToCover),
				AffectedAssets:    []string{"TLT", "IEF"},
				TradeImplications: []string{"Consider TLT calls on pullbacks"},
				Opportunities:     []string{"Strong demand signals flight to safety"},
				RawData:           map[string]interface{}{"security_term": a.SecurityTerm, "bid_to_cover": bidToCover},
				DetectedAt:        now,
				TTLHours:          72.0,
				ReliabilityScore:  c.Reliability(),
			})
		}
	}
	return signals, nil
}

var nowcastPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)CPI[:\s]+(\d+\.\d+)%`),
	regexp.MustCompile(`(?i)nowcast[:\s]+(\d+\.\d+)%`),
	regexp.MustCompile(`(?i)inflation[:\s]+(\d+\.\d+)%`),
}

// ClevelandFedNowcast reads the daily CPI nowcast, which fronts the
// official release by weeks.
type ClevelandFedNowcast struct {
	signal.Meta
	fetcher *fetch.Client
	baseURL string
}

func NewClevelandFedNowcast(fetcher *fetch.Client) *ClevelandFedNowcast {
	return &ClevelandFedNowcast{
		Meta:    signal.NewMeta("Cleveland Fed Nowcast", signal.CategoryMacro, 12*time.Hour, 0.75),
		fetcher: fetcher,
		baseURL: "https://www.clevelandfed.org/indicators-and-data/inflation-nowcasting",
	}
}

func (c *ClevelandFedNowcast) Poll(ctx context.Context) ([]signal.Signal, error) {
	now := time.Now().UTC()

	html, ok := c.fetcher.GetText(ctx, c.baseURL, nil, scrapeHeaders())
	if !ok {
		return nil, fmt.Errorf("nowcast page fetch failed")
	}
	text := stripTags(html)

	var nowcast float64
	found := false
	for _, p := range nowcastPatterns {
		if m := p.FindStringSubmatch(text); m != nil {
			nowcast = parseFloatDefault(m[1], 0)
			found = true
			break
		}
	}
	if !found {
		return nil, nil
	}

	switch {
	case nowcast > 3.5:
		return []signal.Signal{{
			ID:         signal.MakeID("cle_nowcast", int(nowcast*10)),
			Name:       fmt.Sprintf("Cleveland Fed Nowcast: %.1f%% — Hot Inflation", nowcast),
			SourceName: "Cleveland Fed",
			SourceAPI:  "clevelandfed.org/inflation-nowcasting",
			Category:   signal.CategoryMacro,
			Priority:   signal.PriorityHigh,
			Direction:  -0.5,
			Strength:   math.Min(1.0, (nowcast-2.5)/2),
			Description: fmt.Sprintf(
				"Cleveland Fed nowcasting CPI at %.1f%%. Above Fed's 2%% target = hawkish pressure. Hot CPI reading likely at official release. Bearish for equities and bonds.",
				nowcast),
			AffectedAssets: []string{"SPY", "TLT", "QQQ", "GLD"},
			TradeImplications: []string{
				"Position for hot CPI print — sell TLT rallies",
				"Growth stocks (QQQ) vulnerable to rate pressure",
				"Gold benefits from inflation but hurt by higher rates",
			},
			Opportunities:    []string{"Pre-position before official CPI release"},
			RawData:          map[string]interface{}{"nowcast": nowcast},
			DetectedAt:       now,
			TTLHours:         48.0,
			ReliabilityScore: c.Reliability(),
		}}, nil

	case nowcast < 2.5:
		return []signal.Signal{{
			ID:         signal.MakeID("cle_nowcast_cool", int(nowcast*10)),
			Name:       fmt.Sprintf("Cleveland Fed Nowcast: %.1f%% — Cool Inflation", nowcast),
			SourceName: "Cleveland Fed",
			SourceAPI:  "clevelandfed.org/inflation-nowcasting",
			Category:   signal.CategoryMacro,
			Priority:   signal.PriorityMedium,
			Direction:  0.4,
			Strength:   0.6,
			Description: fmt.Sprintf(
				"Cleveland Fed nowcasting CPI at %.1f%%. Near Fed's target = dovish tilt possible. Bullish bonds and equities.",
				nowcast),
			AffectedAssets:    []string{"TLT", "SPY", "QQQ"},
			TradeImplications: []string{"Buy TLT calls", "Growth stocks benefit from lower rates"},
			Opportunities:     []string{"Cool inflation = Fed can ease policy"},
			RawData:           map[string]interface{}{"nowcast": nowcast},
			DetectedAt:        now,
			TTLHours:          48.0,
			ReliabilityScore:  c.Reliability(),
		}}, nil
	}
	return nil, nil
}

var jobCutsPattern = regexp.MustCompile(`(?i)(\d{2,3}[,\d]*)\s*(?:job\s*)?(?:cuts?|layoffs?)`)

// ChallengerLayoffs reads the monthly announced job cut total from the
// Challenger press page.
type ChallengerLayoffs struct {
	signal.Meta
	fetcher *fetch.Client
	baseURL string
}

func NewChallengerLayoffs(fetcher *fetch.Client) *ChallengerLayoffs {
	return &ChallengerLayoffs{
		Meta:    signal.NewMeta("Challenger Layoffs", signal.CategoryMacro, 12*time.Hour, 0.80),
		fetcher: fetcher,
		baseURL: "https://www.challengergray.com/press/press-releases",
	}
}

func (c *ChallengerLayoffs) Poll(ctx context.Context) ([]signal.Signal, error) {
	now := time.Now().UTC()

	html, ok := c.fetcher.GetText(ctx, c.baseURL, nil, scrapeHeaders())
	if !ok {
		return nil, fmt.Errorf("press page fetch failed")
	}

	m := jobCutsPattern.FindStringSubmatch(stripTags(html))
	if m == nil {
		return nil, nil
	}
	cuts := digitsIn(m[1])
	if cuts <= 50000 {
		return nil, nil
	}

	priority := signal.PriorityMedium
	if cuts > 80000 {
		priority = signal.PriorityHigh
	}
	scale := "Elevated layoff activity."
	if cuts > 100000 {
		scale = "HIGHEST since 2009 crisis!"
	}

	return []signal.Signal{{
		ID:         signal.MakeID("challenger", cuts, int(now.Month())),
		Name:       fmt.Sprintf("Challenger Report: %s Job Cuts", commas(cuts)),
		SourceName: "Challenger Gray & Christmas",
		SourceAPI:  "challengergray.com",
		Category:   signal.CategoryMacro,
		Priority:   priority,
		Direction:  -0.5,
		Strength:   math.Min(1.0, float64(cuts)/100000),
		Description: fmt.Sprintf(
			"Challenger reports %s announced job cuts. %s Labor market stress accelerating. Combined with weak JOLTS = recession signal.",
			commas(cuts), scale),
		AffectedAssets: []string{"SPY", "IWM", "XLY", "TLT"},
		TradeImplications: []string{
			"Buy TLT — rate cut expectations rise",
			"Sell consumer discretionary (XLY)",
			"Small caps (IWM) most exposed to domestic labor",
		},
		Opportunities: []string{
			"Labor weakness = Fed pivot = buy bonds",
			"Defensive sectors outperform",
		},
		RawData:          map[string]interface{}{"job_cuts": cuts},
		DetectedAt:       now,
		TTLHours:         168.0,
		ReliabilityScore: c.Reliability(),
	}}, nil
}

// LayoffTracker scrapes the community-maintained layoff table, which runs
// weeks ahead of the monthly Challenger report.
type LayoffTracker struct {
	signal.Meta
	fetcher *fetch.Client
	baseURL string
}

func NewLayoffTracker(fetcher *fetch.Client) *LayoffTracker {
	return &LayoffTracker{
		Meta:    signal.NewMeta("Layoffs.fyi Tracker", signal.CategoryMacro, 6*time.Hour, 0.60),
		fetcher: fetcher,
		baseURL: "https://layoffs.fyi",
	}
}

func (c *LayoffTracker) Poll(ctx context.Context) ([]signal.Signal, error) {
	now := time.Now().UTC()

	html, ok := c.fetcher.GetText(ctx, c.baseURL, nil, scrapeHeaders())
	if !ok {
		return nil, fmt.Errorf("tracker fetch failed")
	}

	layoffCount, totalAffected := 0, 0
	var recent []string

	rows := tableRowPattern.FindAllStringSubmatch(html, -1)
	if len(rows) > 20 {
		rows = rows[:20]
	}
	for _, row := range rows {
		cells := tableCellPattern.FindAllStringSubmatch(row[1], -1)
		if len(cells) < 3 {
			continue
		}
		company := stripTags(cells[0][1])
		count := digitsIn(stripTags(cells[1][1]))
		if count <= 0 {
			continue
		}
		layoffCount++
		totalAffected += count
		if len(recent) < 5 {
			recent = append(recent, fmt.Sprintf("%s: %d", company, count))
		}
	}

	if layoffCount < 3 || totalAffected <= 1000 {
		return nil, nil
	}

	priority := signal.PriorityMedium
	if totalAffected > 5000 {
		priority = signal.PriorityHigh
	}
	examples := recent
	if len(examples) > 3 {
		examples = examples[:3]
	}

	return []signal.Signal{{
		ID:         signal.MakeID("layoffs", layoffCount, now.Format("2006-01-02")),
		Name:       fmt.Sprintf("Tech Layoffs Surge: %s affected", commas(totalAffected)),
		SourceName: "Layoffs.fyi",
		SourceAPI:  "layoffs.fyi (scraped)",
		Category:   signal.CategoryMacro,
		Priority:   priority,
		Direction:  -0.4,
		Strength:   math.Min(0.8, float64(totalAffected)/10000),
		Description: fmt.Sprintf(
			"%d companies announced layoffs recently, %s total affected. Recent: %s. Tech sector stress accelerating. AI disruption narrative confirmed.",
			layoffCount, commas(totalAffected), strings.Join(examples, ", ")),
		AffectedAssets: []string{"IGV", "QQQ", "ARKK", "XLK"},
		TradeImplications: []string{
			"Tech sector weakness — consider puts on IGV",
			"Growth stocks under pressure",
			"AI names may benefit as companies automate",
		},
		Opportunities: []string{
			"Layoffs = cost cutting = potential margin improvement later",
			"Oversold quality names may be buying opportunities",
		},
		RawData:          map[string]interface{}{"layoff_count": layoffCount, "total_affected": totalAffected},
		DetectedAt:       now,
		TTLHours:         24.0,
		ReliabilityScore: c.Reliability(),
	}}, nil
}

var (
	cutProbPattern  = regexp.MustCompile(`(?i)cut[:\s]+(\d+(?:\.\d+)?)%`)
	hikeProbPattern = regexp.MustCompile(`(?i)hike[:\s]+(\d+(?:\.\d+)?)%`)
)

// FedFundsFutures reads meeting probabilities from the FedWatch page.
// Futures-implied cut odds against the Fed's own dots are the positioning
// gap worth trading.
type FedFundsFutures struct {
	signal.Meta
	fetcher *fetch.Client
	baseURL string
}

func NewFedFundsFutures(fetcher *fetch.Client) *FedFundsFutures {
	return &FedFundsFutures{
		Meta:    signal.NewMeta("Fed Funds Futures", signal.CategoryRates, 2*time.Hour, 0.80),
		fetcher: fetcher,
		baseURL: "https://www.cmegroup.com/markets/interest-rates/cme-fedwatch-tool.html",
	}
}

func (c *FedFundsFutures) Poll(ctx context.Context) ([]signal.Signal, error) {
	now := time.Now().UTC()

	html, ok := c.fetcher.GetText(ctx, c.baseURL, nil, scrapeHeaders())
	if !ok {
		return nil, fmt.Errorf("fedwatch fetch failed")
	}
	text := stripTags(html)

	var cutProb, hikeProb float64
	if m := cutProbPattern.FindStringSubmatch(text); m != nil {
		cutProb = parseFloatDefault(m[1], 0)
	}
	if m := hikeProbPattern.FindStringSubmatch(text); m != nil {
		hikeProb = parseFloatDefault(m[1], 0)
	}

	switch {
	case cutProb > 50:
		priority := signal.PriorityMedium
		if cutProb > 70 {
			priority = signal.PriorityHigh
		}
		return []signal.Signal{{
			ID:         signal.MakeID("fedwatch_cut", int(cutProb)),
			Name:       fmt.Sprintf("FedWatch: %.0f%% Cut Probability", cutProb),
			SourceName: "CME FedWatch",
			SourceAPI:  "cmegroup.com/fedwatch",
			Category:   signal.CategoryRates,
			Priority:   priority,
			Direction:  0.5,
			Strength:   math.Min(1.0, cutProb/100),
			Description: fmt.Sprintf(
				"Fed funds futures pricing %.0f%% probability of rate cut. Market expects easing. Bullish for TLT and risk assets if cut materializes.",
				cutProb),
			AffectedAssets: []string{"TLT", "SPY", "QQQ", "GLD", "BTC/USD"},
			TradeImplications: []string{
				"Buy TLT calls ahead of FOMC",
				"Growth stocks benefit from lower rates",
				"Gold and crypto bullish on rate cuts",
			},
			Opportunities:    []string{"Rate cut = risk-on environment"},
			RawData:          map[string]interface{}{"cut_probability": cutProb},
			DetectedAt:       now,
			TTLHours:         24.0,
			ReliabilityScore: c.Reliability(),
		}}, nil

	case hikeProb > 30:
		return []signal.Signal{{
			ID:         signal.MakeID("fedwatch_hike", int(hikeProb)),
			Name:       fmt.Sprintf("FedWatch: %.0f%% Hike Probability", hikeProb),
			SourceName: "CME FedWatch",
			SourceAPI:  "cmegroup.com/fedwatch",
			Category:   signal.CategoryRates,
			Priority:   signal.PriorityHigh,
			Direction:  -0.6,
			Strength:   math.Min(1.0, hikeProb/100),
			Description: fmt.Sprintf(
				"Fed funds futures pricing %.0f%% probability of rate HIKE. Hawkish surprise risk. Bearish for risk assets.",
				hikeProb),
			AffectedAssets:    []string{"TLT", "SPY", "QQQ", "GLD"},
			TradeImplications: []string{"Sell TLT", "Reduce equity exposure", "Strong dollar ahead"},
			Opportunities:     []string{"Hike = buy bonds after the move"},
			RawData:           map[string]interface{}{"hike_probability": hikeProb},
			DetectedAt:        now,
			TTLHours:          24.0,
			ReliabilityScore:  c.Reliability(),
		}}, nil
	}
	return nil, nil
}

// GovShutdown watches wire coverage for shutdown language. A shutdown stalls
// BLS releases, and the data vacuum expands volatility.
type GovShutdown struct {
	signal.Meta
	fetcher  *fetch.Client
	newsURLs []string
}

func NewGovShutdown(fetcher *fetch.Client) *GovShutdown {
	return &GovShutdown{
		Meta:    signal.NewMeta("Gov Shutdown Monitor", signal.CategoryStructural, 6*time.Hour, 0.70),
		fetcher: fetcher,
		newsURLs: []string{
			"https://www.reuters.com/world/us/",
			"https://apnews.com/hub/us-government",
		},
	}
}

func (c *GovShutdown) Poll(ctx context.Context) ([]signal.Signal, error) {
	now := time.Now().UTC()

	shutdownRisk, shutdownActive := false, false
	fetched := 0
	for _, u := range c.newsURLs {
		html, ok := c.fetcher.GetText(ctx, u, nil, scrapeHeaders())
		if !ok {
			continue
		}
		fetched++
		text := strings.ToLower(stripTags(html))
		if !strings.Contains(text, "shutdown") ||
			!(strings.Contains(text, "government") || strings.Contains(text, "federal")) {
			continue
		}
		for _, w := range []string{"imminent", "looming", "approaching", "risk", "threat"} {
			if strings.Contains(text, w) {
				shutdownRisk = true
				break
			}
		}
		for _, w := range []string{"begins", "started", "underway", "day 1", "enters"} {
			if strings.Contains(text, w) {
				shutdownActive = true
				break
			}
		}
	}
	if fetched == 0 {
		return nil, fmt.Errorf("all news sources unreachable")
	}

	switch {
	case shutdownActive:
		return []signal.Signal{{
			ID:         signal.MakeID("shutdown_active", now.Format("2006-01-02")),
			Name:       "GOVERNMENT SHUTDOWN ACTIVE",
			SourceName: "Congress.gov / News",
			SourceAPI:  "congress.gov + news scrapers",
			Category:   signal.CategoryStructural,
			Priority:   signal.PriorityCritical,
			Direction:  -0.3,
			Strength:   0.80,
			Description: "Federal government shutdown is active. BLS data releases (NFP, CPI) " +
				"will be delayed. Information vacuum = elevated volatility. " +
				"Market hates uncertainty — expect wider swings.",
			AffectedAssets: []string{"SPY", "VIX", "TLT", "GLD"},
			TradeImplications: []string{
				"Buy VIX calls — volatility expansion ahead",
				"Straddles on SPX for event risk",
				"Safe havens (GLD, TLT) may catch bid",
			},
			Opportunities: []string{
				"Shutdown eventually ends — buy the fear",
				"Delayed data creates tradable surprises when released",
			},
			RawData:          map[string]interface{}{"status": "active"},
			DetectedAt:       now,
			TTLHours:         24.0,
			ReliabilityScore: c.Reliability(),
		}}, nil

	case shutdownRisk:
		return []signal.Signal{{
			ID:         signal.MakeID("shutdown_risk", now.Format("2006-01-02")),
			Name:       "Government Shutdown Risk Elevated",
			SourceName: "Congress.gov / News",
			SourceAPI:  "congress.gov + news scrapers",
			Category:   signal.CategoryStructural,
			Priority:   signal.PriorityMedium,
			Direction:  -0.2,
			Strength:   0.50,
			Description: "Government shutdown risk elevated. If shutdown occurs, " +
				"BLS data releases will be delayed. Prepare for volatility.",
			AffectedAssets:    []string{"SPY", "VIX"},
			TradeImplications: []string{"Monitor for resolution", "Consider protective puts"},
			Opportunities:     []string{"Pre-position before shutdown if likely"},
			RawData:           map[string]interface{}{"status": "risk"},
			DetectedAt:        now,
			TTLHours:          48.0,
			ReliabilityScore:  c.Reliability(),
		}}, nil
	}
	return nil, nil
}
