package monitors

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"strings"
	"time"

	"github.com/markcheno/go-talib"

	"github.com/aristath/hydra/internal/fetch"
	"github.com/aristath/hydra/internal/signal"
)

// CMEMargin watches the clearing advisories page for margin changes on the
// metals complex. A margin hike forces levered longs out within 24-48 hours,
// which is the single best-documented crash precursor this system tracks.
type CMEMargin struct {
	signal.Meta
	fetcher *fetch.Client
	baseURL string
}

func NewCMEMargin(fetcher *fetch.Client) *CMEMargin {
	return &CMEMargin{
		Meta:    signal.NewMeta("CME Margin Watch", signal.CategoryMetals, 2*time.Hour, 0.92),
		fetcher: fetcher,
		baseURL: "https://www.cmegroup.com/clearing/risk-management/advisories.html",
	}
}

func (c *CMEMargin) Poll(ctx context.Context) ([]signal.Signal, error) {
	now := time.Now().UTC()

	html, ok := c.fetcher.GetText(ctx, c.baseURL, nil, scrapeHeaders())
	if !ok {
		return nil, fmt.Errorf("advisories fetch failed")
	}

	for _, m := range anchorPattern.FindAllStringSubmatch(html, -1) {
		text := stripTags(m[1])
		lower := strings.ToLower(text)
		relevant := false
		for _, kw := range []string{"margin", "performance bond", "gold", "silver", "metals"} {
			if strings.Contains(lower, kw) {
				relevant = true
				break
			}
		}
		if !relevant {
			continue
		}

		return []signal.Signal{{
			ID:         signal.MakeID("cme_margin", truncate(text, 30)),
			Name:       fmt.Sprintf("CME Margin Advisory Detected: %s", truncate(text, 80)),
			SourceName: "CME Group",
			SourceAPI:  "cmegroup.com",
			Category:   signal.CategoryMetals,
			Priority:   signal.PriorityCritical,
			Direction:  -1.0,
			Strength:   0.90,
			Description: "CME has published a margin-related advisory. When margins increase " +
				"on gold/silver, forced liquidation follows 24-48hr later. " +
				"In Jan 2026: gold margins went 6%→8%, silver 11%→15%. " +
				"Result: gold -21%, silver -41%.",
			AffectedAssets: []string{"GLD", "SLV", "GDX", "GC", "SI"},
			TradeImplications: []string{
				"BUY GLD/SLV puts immediately — 2-3 week expiry, 5-10% OTM",
				"Position BEFORE the cascade hits",
				"After cascade (3-5 days): flip to call spreads for recovery",
			},
			Opportunities: []string{
				"Physical metal buyers: wait for paper crash to buy physical at discount",
				"Mining stocks drop less than metal — pairs trade opportunity",
			},
			RawData:          map[string]interface{}{"advisory_text": text},
			DetectedAt:       now,
			TTLHours:         72.0,
			ReliabilityScore: c.Reliability(),
		}}, nil
	}
	return nil, nil
}

// Au99.99 is the SGE spot contract, quoted in CNY per gram.
var sgePricePattern = regexp.MustCompile(`(?i)Au99\.99\D{0,40}(\d{3,4}(?:\.\d+)?)`)

const gramsPerTroyOunce = 31.1035

// ShanghaiGold computes the Shanghai/London price gap. A deep SGE discount
// means Chinese physical demand has dried up; a fat premium means it is
// rebuilding, which historically marks metal bottoms.
type ShanghaiGold struct {
	signal.Meta
	fetcher *fetch.Client
	quotes  quoteSource
	baseURL string
}

func NewShanghaiGold(fetcher *fetch.Client, quotes quoteSource) *ShanghaiGold {
	return &ShanghaiGold{
		Meta:    signal.NewMeta("Shanghai Gold Premium", signal.CategoryMetals, 4*time.Hour, 0.78),
		fetcher: fetcher,
		quotes:  quotes,
		baseURL: "https://www.sge.com.cn/sjzx/quotation_daily_new",
	}
}

func (c *ShanghaiGold) Poll(ctx context.Context) ([]signal.Signal, error) {
	now := time.Now().UTC()

	html, ok := c.fetcher.GetText(ctx, c.baseURL, nil, scrapeHeaders())
	if !ok {
		return nil, fmt.Errorf("sge quotation fetch failed")
	}
	m := sgePricePattern.FindStringSubmatch(stripTags(html))
	if m == nil {
		return nil, nil
	}
	cnyPerGram := parseFloatDefault(m[1], 0)
	if cnyPerGram <= 0 {
		return nil, nil
	}

	usdcny, ok := lastClose(ctx, c.quotes, "CNY=X")
	if !ok || usdcny <= 0 {
		return nil, nil
	}
	londonSpot, ok := lastClose(ctx, c.quotes, "GC=F")
	if !ok || londonSpot <= 0 {
		return nil, nil
	}

	premium := cnyPerGram*gramsPerTroyOunce/usdcny - londonSpot
	date := now.Format("2006-01-02")

	switch {
	case premium < -5:
		return []signal.Signal{{
			ID:         signal.MakeID("sge_discount", date),
			Name:       fmt.Sprintf("SGE Gold Discount: $%.0f/oz below London", math.Abs(premium)),
			SourceName: "Shanghai Gold Exchange",
			SourceAPI:  "sge.com.cn",
			Category:   signal.CategoryMetals,
			Priority:   signal.PriorityHigh,
			Direction:  -1.0,
			Strength:   math.Min(0.9, math.Abs(premium)/20),
			Description: fmt.Sprintf(
				"Shanghai gold at $%.0f/oz discount to London. Chinese demand has evaporated. This preceded the Jan crash.",
				math.Abs(premium)),
			AffectedAssets:    []string{"GLD", "SLV", "GDX", "GOLD", "NEM"},
			TradeImplications: []string{"Metals have more downside", "Wait for premium flip to buy"},
			Opportunities:     []string{"When premium rebuilds = strongest buy signal for metals"},
			RawData:           map[string]interface{}{"sge_premium": premium},
			DetectedAt:        now,
			TTLHours:          24.0,
			ReliabilityScore:  c.Reliability(),
		}}, nil

	case premium > 10:
		return []signal.Signal{{
			ID:         signal.MakeID("sge_premium", date),
			Name:       fmt.Sprintf("SGE Gold Premium: $%.0f/oz above London — Chinese buying!", premium),
			SourceName: "Shanghai Gold Exchange",
			SourceAPI:  "sge.com.cn",
			Category:   signal.CategoryMetals,
			Priority:   signal.PriorityHigh,
			Direction:  1.0,
			Strength:   math.Min(0.9, premium/25),
			Description: fmt.Sprintf(
				"Shanghai gold at $%.0f/oz premium to London. Strong Chinese demand rebuilding. Bottom signal for metals.",
				premium),
			AffectedAssets: []string{"GLD", "SLV", "GDX"},
			TradeImplications: []string{
				"Buy GLD/SLV call spreads 30-60 days",
				"JP Morgan targets $6,300",
			},
			Opportunities:    []string{"Physical demand rebuilding = sustainable rally ahead"},
			RawData:          map[string]interface{}{"sge_premium": premium},
			DetectedAt:       now,
			TTLHours:         48.0,
			ReliabilityScore: c.Reliability(),
		}}, nil
	}
	return nil, nil
}

var (
	comexGoldPattern   = regexp.MustCompile(`gold[:\s]+(\d+)`)
	comexSilverPattern = regexp.MustCompile(`silver[:\s]+(\d+)`)
)

// COMEXInventory tracks delivery notices. Heavy deliveries drain registered
// stock, a slow-burn bullish divergence against the paper price.
type COMEXInventory struct {
	signal.Meta
	fetcher *fetch.Client
	baseURL string
}

func NewCOMEXInventory(fetcher *fetch.Client) *COMEXInventory {
	return &COMEXInventory{
		Meta:    signal.NewMeta("COMEX Inventory", signal.CategoryMetals, 12*time.Hour, 0.70),
		fetcher: fetcher,
		baseURL: "https://www.cmegroup.com/clearing/operations-and-deliveries/nymex-delivery-notices.html",
	}
}

func (c *COMEXInventory) Poll(ctx context.Context) ([]signal.Signal, error) {
	now := time.Now().UTC()

	html, ok := c.fetcher.GetText(ctx, c.baseURL, nil, scrapeHeaders())
	if !ok {
		return nil, fmt.Errorf("delivery notices fetch failed")
	}
	text := strings.ToLower(stripTags(html))

	goldDeliveries, silverDeliveries := 0, 0
	if m := comexGoldPattern.FindStringSubmatch(text); m != nil {
		goldDeliveries = digitsIn(m[1])
	}
	if m := comexSilverPattern.FindStringSubmatch(text); m != nil {
		silverDeliveries = digitsIn(m[1])
	}

	if goldDeliveries <= 1000 && silverDeliveries <= 500 {
		return nil, nil
	}

	return []signal.Signal{{
		ID:         signal.MakeID("comex_drain", goldDeliveries+silverDeliveries),
		Name:       fmt.Sprintf("COMEX Inventory Drain: Gold %d, Silver %d", goldDeliveries, silverDeliveries),
		SourceName: "COMEX/CME",
		SourceAPI:  "cmegroup.com delivery notices",
		Category:   signal.CategoryMetals,
		Priority:   signal.PriorityMedium,
		Direction:  0.5,
		Strength:   math.Min(0.7, float64(goldDeliveries+silverDeliveries)/2000),
		Description: fmt.Sprintf(
			"Elevated COMEX deliveries: Gold %d, Silver %d. Physical demand draining registered inventory. Paper price weakness creates opportunity as physical supply tightens.",
			goldDeliveries, silverDeliveries),
		AffectedAssets: []string{"GLD", "SLV", "PSLV", "GDX"},
		TradeImplications: []string{
			"Physical supply tightening = bullish medium-term",
			"Paper vs physical divergence = accumulation signal",
		},
		Opportunities:    []string{"Physical metal accumulation opportunity"},
		RawData:          map[string]interface{}{"gold": goldDeliveries, "silver": silverDeliveries},
		DetectedAt:       now,
		TTLHours:         48.0,
		ReliabilityScore: c.Reliability(),
	}}, nil
}

var (
	wgcInflowPattern  = regexp.MustCompile(`(?i)inflow[s]?[:\s]+\$?(\d+(?:\.\d+)?)\s*(billion|million|B|M)`)
	wgcOutflowPattern = regexp.MustCompile(`(?i)outflow[s]?[:\s]+\$?(\d+(?:\.\d+)?)\s*(billion|million|B|M)`)
)

// WorldGoldCouncil reads institutional ETF flow figures from the goldhub
// data page.
type WorldGoldCouncil struct {
	signal.Meta
	fetcher *fetch.Client
	baseURL string
}

func NewWorldGoldCouncil(fetcher *fetch.Client) *WorldGoldCouncil {
	return &WorldGoldCouncil{
		Meta:    signal.NewMeta("World Gold Council", signal.CategoryMetals, 12*time.Hour, 0.75),
		fetcher: fetcher,
		baseURL: "https://www.gold.org/goldhub/data/gold-etfs-holdings-and-flows",
	}
}

// flowMillions converts a matched amount to millions of dollars.
func flowMillions(m []string) float64 {
	amt := parseFloatDefault(m[1], 0)
	unit := strings.ToLower(m[2])
	if unit == "billion" || unit == "b" {
		amt *= 1000
	}
	return amt
}

func (c *WorldGoldCouncil) Poll(ctx context.Context) ([]signal.Signal, error) {
	now := time.Now().UTC()

	html, ok := c.fetcher.GetText(ctx, c.baseURL, nil, scrapeHeaders())
	if !ok {
		return nil, fmt.Errorf("goldhub fetch failed")
	}
	text := stripTags(html)

	if m := wgcInflowPattern.FindStringSubmatch(text); m != nil {
		amt := flowMillions(m)
		if amt > 500 {
			return []signal.Signal{{
				ID:         signal.MakeID("wgc_inflow", int(amt)),
				Name:       fmt.Sprintf("Gold ETF Inflows: $%.0fM", amt),
				SourceName: "World Gold Council",
				SourceAPI:  "gold.org",
				Category:   signal.CategoryMetals,
				Priority:   signal.PriorityMedium,
				Direction:  0.5,
				Strength:   math.Min(0.8, amt/1000),
				Description: fmt.Sprintf(
					"Gold ETFs seeing $%.0fM in inflows. Institutional gold demand rising. Bullish for gold.",
					amt),
				AffectedAssets:    []string{"GLD", "IAU", "GDX", "GOLD"},
				TradeImplications: []string{"Buy gold dips", "Miners benefit from flows"},
				Opportunities:     []string{"ETF flows = institutional demand signal"},
				RawData:           map[string]interface{}{"inflow_millions": amt},
				DetectedAt:        now,
				TTLHours:          72.0,
				ReliabilityScore:  c.Reliability(),
			}}, nil
		}
	} else if m := wgcOutflowPattern.FindStringSubmatch(text); m != nil {
		amt := flowMillions(m)
		if amt > 500 {
			return []signal.Signal{{
				ID:         signal.MakeID("wgc_outflow", int(amt)),
				Name:       fmt.Sprintf("Gold ETF Outflows: $%.0fM", amt),
				SourceName: "World Gold Council",
				SourceAPI:  "gold.org",
				Category:   signal.CategoryMetals,
				Priority:   signal.PriorityMedium,
				Direction:  -0.4,
				Strength:   math.Min(0.7, amt/1000),
				Description: fmt.Sprintf(
					"Gold ETFs seeing $%.0fM in outflows. Institutional selling pressure. May create buying opportunity.",
					amt),
				AffectedAssets:    []string{"GLD", "GDX"},
				TradeImplications: []string{"Wait for outflows to slow before buying"},
				Opportunities:     []string{"Heavy outflows often precede reversals"},
				RawData:           map[string]interface{}{"outflow_millions": amt},
				DetectedAt:        now,
				TTLHours:          72.0,
				ReliabilityScore:  c.Reliability(),
			}}, nil
		}
	}
	return nil, nil
}

// SolarETF uses TAN as a proxy for solar buildout, which drives industrial
// silver demand.
type SolarETF struct {
	signal.Meta
	quotes quoteSource
}

func NewSolarETF(quotes quoteSource) *SolarETF {
	return &SolarETF{
		Meta:   signal.NewMeta("Solar ETF Monitor", signal.CategoryMetals, 4*time.Hour, 0.60),
		quotes: quotes,
	}
}

func (c *SolarETF) Poll(ctx context.Context) ([]signal.Signal, error) {
	now := time.Now().UTC()

	closes, ok := c.quotes.DailyCloses(ctx, "TAN", 20)
	if !ok {
		return nil, fmt.Errorf("TAN history fetch failed")
	}
	if len(closes) < 10 {
		return nil, nil
	}

	roc := talib.Roc(closes, 9)
	change10d := roc[len(roc)-1]
	price := closes[len(closes)-1]
	date := now.Format("2006-01-02")

	switch {
	case change10d > 5:
		return []signal.Signal{{
			ID:         signal.MakeID("tan_rally", date),
			Name:       fmt.Sprintf("Solar ETF Rallying: TAN +%.1f%% — Silver Demand Signal", change10d),
			SourceName: "Solar ETF (TAN)",
			SourceAPI:  "Yahoo Finance TAN",
			Category:   signal.CategoryMetals,
			Priority:   signal.PriorityMedium,
			Direction:  0.5,
			Strength:   math.Min(0.7, change10d/10),
			Description: fmt.Sprintf(
				"TAN up %.1f%% over 10 days. Solar demand rising = silver industrial demand rising. Silver has dual use case: monetary metal + industrial demand from solar/EV.",
				change10d),
			AffectedAssets: []string{"SLV", "SI", "PSLV", "SIL"},
			TradeImplications: []string{
				"Bullish for silver medium-term",
				"Consider SLV calls on pullbacks",
				"Silver miners (SIL) benefit from industrial demand",
			},
			Opportunities: []string{
				"Solar demand = structural silver demand",
				"AI data centers need solar = more silver demand",
			},
			RawData:          map[string]interface{}{"tan_price": price, "change_10d": change10d},
			DetectedAt:       now,
			TTLHours:         48.0,
			ReliabilityScore: c.Reliability(),
		}}, nil

	case change10d < -10:
		return []signal.Signal{{
			ID:         signal.MakeID("tan_drop", date),
			Name:       fmt.Sprintf("Solar ETF Dropping: TAN %.1f%%", change10d),
			SourceName: "Solar ETF (TAN)",
			SourceAPI:  "Yahoo Finance TAN",
			Category:   signal.CategoryMetals,
			Priority:   signal.PriorityLow,
			Direction:  -0.3,
			Strength:   math.Min(0.5, math.Abs(change10d)/15),
			Description: fmt.Sprintf(
				"TAN down %.1f%%. Weak solar sector = headwind for silver industrial demand.",
				change10d),
			AffectedAssets:    []string{"SLV", "SIL"},
			TradeImplications: []string{"Silver may face headwinds from weak industrial demand"},
			Opportunities:     []string{"May present buying opportunity if fundamentals intact"},
			RawData:           map[string]interface{}{"tan_price": price, "change_10d": change10d},
			DetectedAt:       now,
			TTLHours:         48.0,
			ReliabilityScore: 0.50,
		}}, nil
	}
	return nil, nil
}
