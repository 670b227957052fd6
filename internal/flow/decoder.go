package flow

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/hydra/internal/clients/bedrock"
	"github.com/aristath/hydra/internal/clients/polygon"
)

const (
	// fetchLimit is how many of the most recent option prints we pull per tick.
	fetchLimit = 500

	// minPremium filters retail noise; only prints worth $50k+ move the needle.
	minPremium = 50_000

	classifyMaxTokens = 200
)

// Intermarket sweep conditions on the options SIP.
var sweepConditions = map[int]bool{12: true, 37: true}

const classifySystemPrompt = `You are an institutional options flow analyst. Classify the flow as one of: AGGRESSIVELY_BULLISH, MODERATELY_BULLISH, NEUTRAL, MODERATELY_BEARISH, AGGRESSIVELY_BEARISH. Consider premium totals, sweep counts, and the largest single trade. Respond ONLY with JSON.`

const classifyPromptFormat = `Analyze this options flow for %s:

Call Premium: $%.0f
Put Premium: $%.0f
Call Sweeps: %d
Put Sweeps: %d
Largest Trade: %s
Total Trades: %d

Respond with JSON:
{
  "institutional_bias": "<one of the five labels>",
  "confidence": <0-100>,
  "reasoning": "<one sentence>"
}`

// modelAPI is the slice of the language-model client the decoder needs.
type modelAPI interface {
	Available() bool
	Converse(ctx context.Context, modelID, system, prompt string, maxTokens int32, temperature float32) (*bedrock.Response, error)
}

// tradeTape supplies recent option prints for an underlying.
type tradeTape interface {
	OptionTrades(ctx context.Context, underlying string, limit int) ([]polygon.Trade, bool)
}

// Decoder turns the raw option tape into an institutional bias reading.
type Decoder struct {
	tape       tradeTape
	llm        modelAPI
	store      *HistoryStore
	underlying string
	log        zerolog.Logger
	now        func() time.Time

	mu   sync.Mutex
	last *Snapshot
}

// NewDecoder wires a flow decoder for one underlying. The store may be nil
// when history persistence is not wanted.
func NewDecoder(tape tradeTape, llm modelAPI, store *HistoryStore, underlying string, log zerolog.Logger) *Decoder {
	return &Decoder{
		tape:       tape,
		llm:        llm,
		store:      store,
		underlying: underlying,
		log:        log.With().Str("component", "flow").Logger(),
		now:        time.Now,
	}
}

// aggregates holds the per-side totals for one batch of prints.
type aggregates struct {
	callPremium float64
	putPremium  float64
	callSweeps  int
	putSweeps   int
	largest     *LargestTrade
	totalTrades int
}

// aggregate folds the tape into premium totals. OCC option tickers carry
// the contract type at offset 10-11 (after "O:" plus root and date), so
// anything shorter than 15 characters is unparseable and skipped.
func aggregate(trades []polygon.Trade) aggregates {
	agg := aggregates{totalTrades: len(trades)}

	for _, t := range trades {
		if len(t.Ticker) < 15 {
			continue
		}
		premium := t.Price * t.Size * 100
		if premium < minPremium {
			continue
		}

		window := t.Ticker[10:12]
		isCall := strings.Contains(window, "C")
		isPut := strings.Contains(window, "P")

		isSweep := false
		for _, c := range t.Conditions {
			if sweepConditions[c] {
				isSweep = true
				break
			}
		}

		if isCall {
			agg.callPremium += premium
			if isSweep {
				agg.callSweeps++
			}
		} else if isPut {
			agg.putPremium += premium
			if isSweep {
				agg.putSweeps++
			}
		}

		if agg.largest == nil || premium > agg.largest.Premium {
			label := "PUT"
			switch {
			case isCall && isSweep:
				label = "CALL_SWEEP"
			case isCall:
				label = "CALL"
			case isSweep:
				label = "PUT_SWEEP"
			}
			agg.largest = &LargestTrade{
				Type:    label,
				Premium: premium,
				Ticker:  t.Ticker,
				Size:    t.Size,
				Price:   t.Price,
			}
		}
	}

	return agg
}

// classification is the labelled outcome of one batch.
type classification struct {
	bias       Bias
	confidence float64
	reasoning  string
	latencyMs  int64
}

func validBias(b Bias) bool {
	switch b {
	case BiasAggressivelyBullish, BiasModeratelyBullish, BiasNeutral,
		BiasModeratelyBearish, BiasAggressivelyBearish:
		return true
	}
	return false
}

// ruleClassify is the deterministic fallback: the call/put premium ratio
// maps onto the same label set the model uses. A pure-call book pins the
// ratio at 10; a pure-put book drives it to zero and the reciprocal term
// to infinity, which the confidence cap absorbs.
func ruleClassify(callPremium, putPremium float64) classification {
	if callPremium == 0 && putPremium == 0 {
		return classification{bias: BiasNeutral, confidence: 50, reasoning: "No significant flow"}
	}

	ratio := 10.0
	if putPremium > 0 {
		ratio = callPremium / putPremium
	}
	reasoning := fmt.Sprintf("Call/Put ratio: %.2f", ratio)

	switch {
	case ratio > 2.5:
		return classification{
			bias:       BiasAggressivelyBullish,
			confidence: math.Min(95, 70+(ratio-2)*10),
			reasoning:  reasoning,
		}
	case ratio > 1.5:
		return classification{bias: BiasModeratelyBullish, confidence: 70, reasoning: reasoning}
	case ratio < 0.4:
		return classification{
			bias:       BiasAggressivelyBearish,
			confidence: math.Min(95, 70+(1/ratio-2)*10),
			reasoning:  reasoning,
		}
	case ratio < 0.67:
		return classification{bias: BiasModeratelyBearish, confidence: 70, reasoning: reasoning}
	default:
		return classification{bias: BiasNeutral, confidence: 60, reasoning: reasoning}
	}
}

// classify asks the model for a bias label and falls back to the premium
// ratio when the model is unavailable, errors, or answers something that
// is not one of the five labels.
func (d *Decoder) classify(ctx context.Context, agg aggregates) classification {
	if d.llm == nil || !d.llm.Available() {
		return ruleClassify(agg.callPremium, agg.putPremium)
	}

	largest := "{}"
	if agg.largest != nil {
		if b, err := json.Marshal(agg.largest); err == nil {
			largest = string(b)
		}
	}

	prompt := fmt.Sprintf(classifyPromptFormat,
		d.underlying,
		agg.callPremium, agg.putPremium,
		agg.callSweeps, agg.putSweeps,
		largest, agg.totalTrades)

	resp, err := d.llm.Converse(ctx, bedrock.ModelHaiku, classifySystemPrompt, prompt, classifyMaxTokens, 0)
	if err != nil {
		d.log.Warn().Err(err).Msg("flow classification call failed, using ratio rules")
		return ruleClassify(agg.callPremium, agg.putPremium)
	}

	var parsed struct {
		InstitutionalBias Bias    `json:"institutional_bias"`
		Confidence        float64 `json:"confidence"`
		Reasoning         string  `json:"reasoning"`
	}
	if err := json.Unmarshal([]byte(resp.Content), &parsed); err != nil || !validBias(parsed.InstitutionalBias) {
		d.log.Warn().Str("content", resp.Content).Msg("unparseable flow classification, using ratio rules")
		return ruleClassify(agg.callPremium, agg.putPremium)
	}

	return classification{
		bias:       parsed.InstitutionalBias,
		confidence: parsed.Confidence,
		reasoning:  parsed.Reasoning,
		latencyMs:  resp.LatencyMs,
	}
}

// Calculate pulls the recent tape, classifies it, and returns the snapshot.
// Unlike the gamma engine an empty tape is still a valid (NEUTRAL) reading,
// so every tick is cached and persisted.
func (d *Decoder) Calculate(ctx context.Context) *Snapshot {
	timestamp := d.now().UTC().Format(time.RFC3339)

	trades, ok := d.tape.OptionTrades(ctx, d.underlying, fetchLimit)
	if !ok {
		d.log.Warn().Str("ticker", d.underlying).Msg("option tape unavailable")
	}

	agg := aggregate(trades)
	result := d.classify(ctx, agg)

	ratio := 10.0
	if agg.putPremium > 0 {
		ratio = agg.callPremium / agg.putPremium
	}

	snapshot := &Snapshot{
		Timestamp:           timestamp,
		Ticker:              d.underlying,
		NetPremiumCalls:     math.Round(agg.callPremium),
		NetPremiumPuts:      math.Round(agg.putPremium),
		PremiumRatio:        round2(ratio),
		SweepCountCalls:     agg.callSweeps,
		SweepCountPuts:      agg.putSweeps,
		LargestTrade:        agg.largest,
		InstitutionalBias:   result.bias,
		Confidence:          result.confidence,
		TotalTradesAnalyzed: agg.totalTrades,
		Analysis:            result.reasoning,
		LatencyMs:           result.latencyMs,
	}

	d.log.Info().
		Str("ticker", d.underlying).
		Str("bias", string(result.bias)).
		Float64("call_premium", snapshot.NetPremiumCalls).
		Float64("put_premium", snapshot.NetPremiumPuts).
		Int("trades", agg.totalTrades).
		Msg("flow classified")

	if d.store != nil {
		if err := d.store.Save(snapshot); err != nil {
			d.log.Error().Err(err).Msg("failed to persist flow snapshot")
		}
	}

	d.mu.Lock()
	d.last = snapshot
	d.mu.Unlock()

	return snapshot
}

// Last returns the most recent snapshot, or nil before the first tick.
func (d *Decoder) Last() *Snapshot {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.last
}

// ConvictionModifier scores how the current flow reading supports or
// opposes a directional trade. Aggressive bias moves the score by 10,
// moderate by 5, and sweep dominance on the trade's side adds 5 more.
func (d *Decoder) ConvictionModifier(tradeDirection string) ConvictionResult {
	last := d.Last()
	// Without a snapshot the modifier is neutral and carries no reasons.
	if last == nil {
		return ConvictionResult{Reasons: []string{}}
	}

	modifier := 0
	reasons := []string{}

	bias := last.InstitutionalBias
	step := 5
	if strings.Contains(string(bias), "AGGRESSIVELY") {
		step = 10
	}

	bullishBias := bias == BiasAggressivelyBullish || bias == BiasModeratelyBullish
	bearishBias := bias == BiasAggressivelyBearish || bias == BiasModeratelyBearish

	switch tradeDirection {
	case "BULLISH":
		if bullishBias {
			modifier += step
			reasons = append(reasons, fmt.Sprintf("Flow aligns: %s", bias))
		} else if bearishBias {
			modifier -= step
			reasons = append(reasons, fmt.Sprintf("Flow conflicts: %s", bias))
		}
		if last.SweepCountCalls > last.SweepCountPuts*2 {
			modifier += 5
			reasons = append(reasons, fmt.Sprintf("Call sweeps dominant (%d vs %d)", last.SweepCountCalls, last.SweepCountPuts))
		}
	case "BEARISH":
		if bearishBias {
			modifier += step
			reasons = append(reasons, fmt.Sprintf("Flow aligns: %s", bias))
		} else if bullishBias {
			modifier -= step
			reasons = append(reasons, fmt.Sprintf("Flow conflicts: %s", bias))
		}
		if last.SweepCountPuts > last.SweepCountCalls*2 {
			modifier += 5
			reasons = append(reasons, fmt.Sprintf("Put sweeps dominant (%d vs %d)", last.SweepCountPuts, last.SweepCountCalls))
		}
	}

	return ConvictionResult{
		Modifier:          modifier,
		Reasons:           reasons,
		InstitutionalBias: bias,
		Confidence:        last.Confidence,
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
