package darkpool

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/hydra/internal/clients/polygon"
	"github.com/aristath/hydra/internal/market"
)

const (
	// minBlockSize and minNotional gate what counts as institutional.
	minBlockSize = 10_000
	minNotional  = 500_000.0

	// clusterSize buckets prints onto half-dollar levels.
	clusterSize = 0.50

	fetchLimit = 5000
	topLevels  = 20
)

// clusterPrice buckets a print onto the nearest half-dollar level.
func clusterPrice(price float64) float64 {
	return math.Round(price/clusterSize) * clusterSize
}

// classifySide reads aggressor side off the NBBO: prints in the outer
// quarter of the spread are attributed to the side they lean toward.
func classifySide(price, bid, ask float64) Side {
	if bid <= 0 || ask <= 0 {
		return SideUnknown
	}
	mid := (bid + ask) / 2
	spread := ask - bid
	if spread <= 0 {
		return SideUnknown
	}
	switch {
	case price >= mid+spread*0.25:
		return SideBuy
	case price <= mid-spread*0.25:
		return SideSell
	default:
		return SideUnknown
	}
}

func strengthFor(notional float64, tradeCount int) Strength {
	switch {
	case notional >= 10_000_000 || tradeCount >= 20:
		return StrengthVeryHigh
	case notional >= 5_000_000 || tradeCount >= 10:
		return StrengthHigh
	case notional >= 2_000_000 || tradeCount >= 5:
		return StrengthMedium
	default:
		return StrengthLow
	}
}

// block is one qualifying dark-pool print.
type block struct {
	price       float64
	size        int64
	notional    float64
	participant int64
	trfID       int64
	exchange    int
	side        Side
}

// filterBlocks keeps institutional-sized off-exchange prints. A print
// qualifies as dark pool when it reports exchange 4 with a TRF id.
func filterBlocks(trades []polygon.Trade) []block {
	var blocks []block
	for _, t := range trades {
		if t.Exchange != 4 || t.TRFID == nil {
			continue
		}
		size := int64(t.Size)
		if size < minBlockSize {
			continue
		}
		notional := float64(size) * t.Price
		if notional < minNotional {
			continue
		}
		blocks = append(blocks, block{
			price:       t.Price,
			size:        size,
			notional:    notional,
			participant: t.ParticipantTimestamp,
			trfID:       *t.TRFID,
			exchange:    t.Exchange,
		})
	}
	return blocks
}

// marketFeed is the slice of the market-data client the mapper needs.
type marketFeed interface {
	Trades(ctx context.Context, ticker string, limit int) ([]polygon.Trade, bool)
	LastQuote(ctx context.Context, ticker string) (*polygon.Quote, bool)
	PrevDayBar(ctx context.Context, ticker string) (*polygon.Bar, bool)
}

// Mapper builds institutional support/resistance levels from the tape.
type Mapper struct {
	feed       marketFeed
	store      *Store
	underlying string
	log        zerolog.Logger
	now        func() time.Time

	mu   sync.Mutex
	last *Snapshot
}

// NewMapper wires a dark-pool mapper for one underlying. The store may
// be nil when print/level persistence is not wanted.
func NewMapper(feed marketFeed, store *Store, underlying string, log zerolog.Logger) *Mapper {
	return &Mapper{
		feed:       feed,
		store:      store,
		underlying: underlying,
		log:        log.With().Str("component", "darkpool").Logger(),
		now:        time.Now,
	}
}

// Calculate maps the recent tape into clustered levels and returns the
// snapshot. Every tick replaces the cached snapshot; an empty tape is a
// valid (quiet) reading.
func (m *Mapper) Calculate(ctx context.Context) *Snapshot {
	nowUTC := m.now().UTC()
	timestamp := nowUTC.Format(time.RFC3339)

	trades, ok := m.feed.Trades(ctx, m.underlying, fetchLimit)
	if !ok {
		m.log.Warn().Str("ticker", m.underlying).Msg("trade tape unavailable")
	}

	var bid, ask float64
	if quote, ok := m.feed.LastQuote(ctx, m.underlying); ok && quote != nil {
		bid, ask = quote.BidPrice, quote.AskPrice
	}

	var spot float64
	if bar, ok := m.feed.PrevDayBar(ctx, m.underlying); ok && bar != nil {
		spot = bar.Close
	}
	if spot <= 0 && bid > 0 {
		spot = (bid + ask) / 2
	}

	blocks := filterBlocks(trades)

	type clusterAgg struct {
		volume     int64
		notional   float64
		tradeCount int
		buyVolume  int64
		sellVolume int64
		lastSeen   string
	}
	clusters := map[float64]*clusterAgg{}

	var totalVolume, buyVolume, sellVolume int64
	var totalNotional float64

	for i := range blocks {
		b := &blocks[i]
		b.side = classifySide(b.price, bid, ask)

		level := clusterPrice(b.price)
		agg := clusters[level]
		if agg == nil {
			agg = &clusterAgg{}
			clusters[level] = agg
		}
		agg.volume += b.size
		agg.notional += b.notional
		agg.tradeCount++

		switch b.side {
		case SideBuy:
			agg.buyVolume += b.size
			buyVolume += b.size
		case SideSell:
			agg.sellVolume += b.size
			sellVolume += b.size
		}

		totalVolume += b.size
		totalNotional += b.notional

		if b.participant != 0 {
			agg.lastSeen = strconv.FormatInt(b.participant, 10)
		}
	}

	// Map order is random; walk clusters by price so ties break the same
	// way on every run.
	prices := make([]float64, 0, len(clusters))
	for price := range clusters {
		prices = append(prices, price)
	}
	sort.Float64s(prices)

	levels := make([]Level, 0, len(clusters))
	levelRows := make([]LevelRow, 0, len(clusters))
	for _, price := range prices {
		agg := clusters[price]

		side := SideUnknown
		if float64(agg.buyVolume) > float64(agg.sellVolume)*1.5 {
			side = SideBuy
		} else if float64(agg.sellVolume) > float64(agg.buyVolume)*1.5 {
			side = SideSell
		}

		strength := strengthFor(agg.notional, agg.tradeCount)

		levels = append(levels, Level{
			Price:      price,
			Volume:     agg.volume,
			Notional:   agg.notional,
			TradeCount: agg.tradeCount,
			Side:       side,
			Strength:   strength,
			LastSeen:   agg.lastSeen,
		})
		levelRows = append(levelRows, LevelRow{
			PriceLevel:    price,
			TotalVolume:   agg.volume,
			TotalNotional: agg.notional,
			TradeCount:    agg.tradeCount,
			BuyVolume:     agg.buyVolume,
			SellVolume:    agg.sellVolume,
			Strength:      strength,
		})
	}

	sort.SliceStable(levels, func(i, j int) bool { return levels[i].Notional > levels[j].Notional })

	var supports, resistances []Level
	for _, l := range levels {
		if l.Price < spot && (l.Side == SideBuy || l.Side == SideUnknown) {
			supports = append(supports, l)
		} else if l.Price > spot && (l.Side == SideSell || l.Side == SideUnknown) {
			resistances = append(resistances, l)
		}
	}
	sort.SliceStable(supports, func(i, j int) bool { return supports[i].Price > supports[j].Price })
	sort.SliceStable(resistances, func(i, j int) bool { return resistances[i].Price < resistances[j].Price })

	var nearestSupport, nearestResistance *float64
	supportStrength, resistanceStrength := StrengthUnknown, StrengthUnknown
	if len(supports) > 0 {
		p := supports[0].Price
		nearestSupport = &p
		supportStrength = supports[0].Strength
	}
	if len(resistances) > 0 {
		p := resistances[0].Price
		nearestResistance = &p
		resistanceStrength = resistances[0].Strength
	}

	if len(levels) > topLevels {
		levels = levels[:topLevels]
	}

	snapshot := &Snapshot{
		Timestamp:          timestamp,
		Ticker:             m.underlying,
		SpotPrice:          round2(spot),
		Levels:             levels,
		NearestSupport:     nearestSupport,
		NearestResistance:  nearestResistance,
		SupportStrength:    supportStrength,
		ResistanceStrength: resistanceStrength,
		TotalDarkVolume:    totalVolume,
		TotalDarkNotional:  math.Round(totalNotional),
		BuyVolume:          buyVolume,
		SellVolume:         sellVolume,
	}

	evt := m.log.Info().
		Int("blocks", len(blocks)).
		Float64("notional_millions", round2(totalNotional/1e6)).
		Str("support_strength", string(supportStrength)).
		Str("resistance_strength", string(resistanceStrength))
	if nearestSupport != nil {
		evt = evt.Float64("support", *nearestSupport)
	}
	if nearestResistance != nil {
		evt = evt.Float64("resistance", *nearestResistance)
	}
	evt.Msg("dark pool levels mapped")

	if m.store != nil && len(blocks) > 0 {
		prints := make([]PrintRow, 0, len(blocks))
		for _, b := range blocks {
			ts := timestamp
			if b.participant != 0 {
				ts = time.Unix(0, b.participant).UTC().Format(time.RFC3339Nano)
			}
			prints = append(prints, PrintRow{
				Timestamp: ts,
				Price:     b.price,
				Size:      b.size,
				Notional:  b.notional,
				Side:      b.side,
				Exchange:  b.exchange,
				TRFID:     b.trfID,
			})
		}
		if err := m.store.SavePrints(m.underlying, prints); err != nil {
			m.log.Error().Err(err).Msg("failed to persist dark pool prints")
		}
		date := nowUTC.In(market.Eastern()).Format("2006-01-02")
		if err := m.store.UpsertLevels(date, m.underlying, levelRows); err != nil {
			m.log.Error().Err(err).Msg("failed to persist dark pool levels")
		}
	}

	m.mu.Lock()
	m.last = snapshot
	m.mu.Unlock()

	return snapshot
}

// Last returns the most recent snapshot, or nil before the first tick.
func (m *Mapper) Last() *Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.last
}

// LevelsNear returns cached levels within rangePct of a price.
func (m *Mapper) LevelsNear(price, rangePct float64) []Level {
	last := m.Last()
	if last == nil {
		return nil
	}
	low, high := price*(1-rangePct), price*(1+rangePct)

	out := []Level{}
	for _, l := range last.Levels {
		if l.Price >= low && l.Price <= high {
			out = append(out, l)
		}
	}
	return out
}

// ConvictionModifier scores a trade plan against the mapped levels:
// support between stop and entry helps, resistance between entry and
// target hurts, and one-sided block flow nudges the score its way.
func (m *Mapper) ConvictionModifier(entryPrice, stopPrice, targetPrice float64) ConvictionResult {
	last := m.Last()
	// Without a snapshot the modifier is neutral and carries no reasons.
	if last == nil {
		return ConvictionResult{Reasons: []string{}}
	}

	modifier := 0
	reasons := []string{}

	if last.NearestSupport != nil {
		support := *last.NearestSupport
		if stopPrice < support && support < entryPrice {
			if last.SupportStrength == StrengthHigh || last.SupportStrength == StrengthVeryHigh {
				modifier += 10
				reasons = append(reasons, fmt.Sprintf("Strong DP support at $%.2f above stop", support))
			} else {
				modifier += 5
				reasons = append(reasons, fmt.Sprintf("DP support at $%.2f", support))
			}
		}
	}

	if last.NearestResistance != nil {
		resistance := *last.NearestResistance
		if entryPrice < resistance && resistance < targetPrice {
			if last.ResistanceStrength == StrengthHigh || last.ResistanceStrength == StrengthVeryHigh {
				modifier -= 10
				reasons = append(reasons, fmt.Sprintf("Strong DP resistance at $%.2f before target", resistance))
			} else {
				modifier -= 5
				reasons = append(reasons, fmt.Sprintf("DP resistance at $%.2f", resistance))
			}
		}
	}

	if last.BuyVolume > last.SellVolume*2 {
		modifier += 5
		reasons = append(reasons, "Dark pool flow heavily buying")
	} else if last.SellVolume > last.BuyVolume*2 {
		modifier -= 5
		reasons = append(reasons, "Dark pool flow heavily selling")
	}

	return ConvictionResult{
		Modifier:          modifier,
		Reasons:           reasons,
		NearestSupport:    last.NearestSupport,
		NearestResistance: last.NearestResistance,
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
