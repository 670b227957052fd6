// Package intel fuses the scorer and the four auxiliary subsystems into
// one flat snapshot plus a composed per-trade conviction vote. The
// snapshot only reads already-published state, so it answers in O(1) and
// never errors; absent subsystems are reported with defined defaults.
package intel

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/hydra/internal/blowup"
	"github.com/aristath/hydra/internal/darkpool"
	"github.com/aristath/hydra/internal/flow"
	"github.com/aristath/hydra/internal/gamma"
	"github.com/aristath/hydra/internal/market"
	"github.com/aristath/hydra/internal/sequence"
)

const (
	gexOffHoursEvery      = 15 * time.Minute
	flowEvery             = 2 * time.Minute
	flowOffHoursEvery     = 5 * time.Minute
	darkPoolEvery         = 5 * time.Minute
	darkPoolOffHoursEvery = 15 * time.Minute
)

type blowupSource interface {
	Last() *blowup.Result
}

type gexSource interface {
	Calculate(ctx context.Context) *gamma.Snapshot
	Last() *gamma.Snapshot
	ConvictionModifier() gamma.ConvictionResult
}

type flowSource interface {
	Calculate(ctx context.Context) *flow.Snapshot
	Last() *flow.Snapshot
	ConvictionModifier(tradeDirection string) flow.ConvictionResult
}

type darkPoolSource interface {
	Calculate(ctx context.Context) *darkpool.Snapshot
	Last() *darkpool.Snapshot
	ConvictionModifier(entryPrice, stopPrice, targetPrice float64) darkpool.ConvictionResult
}

type sequenceSource interface {
	Analyze(ctx context.Context, conditions sequence.Conditions) *sequence.Analysis
	ConvictionModifier(ctx context.Context, tradeDirection string, conditions sequence.Conditions) sequence.ConvictionResult
}

// Aggregator reads the latest published state of every subsystem and
// runs the auxiliary polling loops.
type Aggregator struct {
	detector blowupSource
	gex      gexSource
	flow     flowSource
	darkPool darkPoolSource
	sequence sequenceSource
	log      zerolog.Logger
	now      func() time.Time
}

// NewAggregator wires the aggregator over the five subsystems.
func NewAggregator(detector blowupSource, gex gexSource, flowDecoder flowSource, dpMapper darkPoolSource, matcher sequenceSource, log zerolog.Logger) *Aggregator {
	return &Aggregator{
		detector: detector,
		gex:      gex,
		flow:     flowDecoder,
		darkPool: dpMapper,
		sequence: matcher,
		log:      log.With().Str("component", "intel").Logger(),
		now:      time.Now,
	}
}

// Snapshot composes the latest subsystem snapshots into the flat master
// shape. It never polls; subsystems without a published snapshot show
// their defaults and do not count as healthy. The scorer always counts:
// it degrades to a zero-score result rather than going absent.
func (a *Aggregator) Snapshot() *Intelligence {
	out := &Intelligence{
		Timestamp: a.now().UTC().Format(time.RFC3339),

		BlowupDirection:      string(blowup.DirectionNeutral),
		BlowupRegime:         string(blowup.RegimeUnknown),
		BlowupRecommendation: string(blowup.RecommendNoTrade),
		BlowupTriggers:       []string{},

		GexRegime:          string(gamma.RegimeUnknown),
		GexFlipDistancePct: 1.0,
		GexKeySupport:      []float64{},
		GexKeyResistance:   []float64{},

		FlowInstitutionalBias: "UNKNOWN",
		FlowSweepDirection:    "NEUTRAL",

		DpSupportStrength:    string(darkpool.StrengthUnknown),
		DpResistanceStrength: string(darkpool.StrengthUnknown),

		SequencePredictedDirection: "NEUTRAL",
		SequenceHistoricalWinRate:  0.5,

		ComponentsHealthy: 1,
		ComponentsTotal:   4,
	}

	if b := a.detector.Last(); b != nil {
		out.BlowupProbability = b.BlowupProbability
		out.BlowupDirection = string(b.Direction)
		out.BlowupRegime = string(b.Regime)
		out.BlowupRecommendation = string(b.Recommendation)
		out.BlowupTriggers = b.Triggers
	}

	if gex := a.gex.Last(); gex != nil {
		out.GexRegime = string(gex.Regime)
		out.GexTotal = gex.TotalGEX
		out.GexFlipPoint = gex.FlipPoint
		out.GexFlipDistancePct = gex.FlipDistancePct
		out.GexCharmPerHour = gex.CharmFlowPerHour
		out.GexKeySupport = gex.KeySupport
		out.GexKeyResistance = gex.KeyResistance
		if gex.OptionsCount > 0 {
			out.ComponentsHealthy++
		}
	}

	if fl := a.flow.Last(); fl != nil {
		out.FlowInstitutionalBias = string(fl.InstitutionalBias)
		out.FlowConfidence = fl.Confidence
		out.FlowPremiumCalls = fl.NetPremiumCalls
		out.FlowPremiumPuts = fl.NetPremiumPuts
		out.FlowSweepDirection = sweepDirection(fl)
		if fl.TotalTradesAnalyzed > 0 {
			out.ComponentsHealthy++
		}
	}

	if dp := a.darkPool.Last(); dp != nil {
		out.DpNearestSupport = dp.NearestSupport
		out.DpNearestResistance = dp.NearestResistance
		out.DpSupportStrength = string(dp.SupportStrength)
		out.DpResistanceStrength = string(dp.ResistanceStrength)
		out.DpBuyVolume = dp.BuyVolume
		out.DpSellVolume = dp.SellVolume
		if dp.TotalDarkVolume > 0 {
			out.ComponentsHealthy++
		}
	}

	return out
}

// sweepDirection calls the tape one-sided when one side's sweep count
// more than doubles the other.
func sweepDirection(s *flow.Snapshot) string {
	switch {
	case s.SweepCountCalls > s.SweepCountPuts*2:
		return "CALL_HEAVY"
	case s.SweepCountPuts > s.SweepCountCalls*2:
		return "PUT_HEAVY"
	default:
		return "NEUTRAL"
	}
}

// CurrentConditions builds the sequence-matcher input from the latest
// snapshots. VIX and the SPY move come out of the scorer's component
// details rather than a constant.
func (a *Aggregator) CurrentConditions() sequence.Conditions {
	conditions := sequence.Conditions{
		GexRegime:    "UNKNOWN",
		FlowBias:     "NEUTRAL",
		VIXLevel:     20.0,
		DarkPoolBias: "NEUTRAL",
	}

	if gex := a.gex.Last(); gex != nil {
		conditions.GexRegime = string(gex.Regime)
	}
	if fl := a.flow.Last(); fl != nil {
		conditions.FlowBias = string(fl.InstitutionalBias)
	}
	if b := a.detector.Last(); b != nil {
		conditions.BlowupScore = b.BlowupProbability
		conditions.VIXLevel = b.VIXLevel()
		conditions.SpyChangePct, conditions.SpyRangePct = b.SPYMove()
	}
	if dp := a.darkPool.Last(); dp != nil {
		if dp.BuyVolume > dp.SellVolume {
			conditions.DarkPoolBias = "BUY"
		} else {
			conditions.DarkPoolBias = "SELL"
		}
	}

	return conditions
}

// Conviction composes the four subsystem votes for a proposed trade.
func (a *Aggregator) Conviction(ctx context.Context, tradeDirection string, entryPrice, stopPrice, targetPrice float64) *Conviction {
	gexMod := a.gex.ConvictionModifier()
	flowMod := a.flow.ConvictionModifier(tradeDirection)
	dpMod := a.darkPool.ConvictionModifier(entryPrice, stopPrice, targetPrice)
	seqMod := a.sequence.ConvictionModifier(ctx, tradeDirection, a.CurrentConditions())

	reasons := []string{}
	reasons = append(reasons, gexMod.Reasons...)
	reasons = append(reasons, flowMod.Reasons...)
	reasons = append(reasons, dpMod.Reasons...)
	reasons = append(reasons, seqMod.Reasons...)

	return &Conviction{
		TotalModifier: gexMod.Modifier + flowMod.Modifier + dpMod.Modifier + seqMod.Modifier,
		Modifiers: ConvictionBreakdown{
			Gex:      gexMod,
			Flow:     flowMod,
			DarkPool: dpMod,
			Sequence: seqMod,
		},
		Reasons:        reasons,
		TradeDirection: tradeDirection,
	}
}

// SequenceAnalysis runs the full matcher read against the live
// conditions. Callers invoke it when sizing a trade, not on a cadence.
func (a *Aggregator) SequenceAnalysis(ctx context.Context) *sequence.Analysis {
	return a.sequence.Analyze(ctx, a.CurrentConditions())
}

// Run drives the auxiliary polling loops until ctx is canceled. The
// scorer and scanner tick elsewhere; this owns gamma, flow and dark
// pool.
func (a *Aggregator) Run(ctx context.Context) {
	loops := []struct {
		name string
		tick func(context.Context) time.Duration
	}{
		{"gex", a.gexTick},
		{"flow", a.flowTick},
		{"darkpool", a.darkPoolTick},
	}

	var wg sync.WaitGroup
	for _, loop := range loops {
		wg.Add(1)
		go func(name string, tick func(context.Context) time.Duration) {
			defer wg.Done()
			a.log.Info().Str("worker", name).Msg("worker started")
			for {
				interval := tick(ctx)
				select {
				case <-ctx.Done():
					a.log.Info().Str("worker", name).Msg("worker stopped")
					return
				case <-time.After(interval):
				}
			}
		}(loop.name, loop.tick)
	}
	wg.Wait()
}

// gexTick recalculates during the session and returns the adaptive
// cadence the engine chose; outside the session it just waits.
func (a *Aggregator) gexTick(ctx context.Context) time.Duration {
	if !market.InRegularHours(a.now()) {
		return gexOffHoursEvery
	}
	snapshot := a.gex.Calculate(ctx)
	return time.Duration(snapshot.RefreshSeconds) * time.Second
}

func (a *Aggregator) flowTick(ctx context.Context) time.Duration {
	if !market.InRegularHours(a.now()) {
		return flowOffHoursEvery
	}
	a.flow.Calculate(ctx)
	return flowEvery
}

func (a *Aggregator) darkPoolTick(ctx context.Context) time.Duration {
	if !market.InRegularHours(a.now()) {
		return darkPoolOffHoursEvery
	}
	a.darkPool.Calculate(ctx)
	return darkPoolEvery
}
