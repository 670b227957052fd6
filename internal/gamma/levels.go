package gamma

import (
	"math"
	"sort"
)

// strikeGEX pairs a strike with its net GEX across calls and puts.
type strikeGEX struct {
	strike float64
	gex    float64
}

// sortedByStrike flattens the per-strike map into a strike-ascending
// slice so the cumulative walk and level ranking are deterministic.
func sortedByStrike(byStrike map[float64]float64) []strikeGEX {
	out := make([]strikeGEX, 0, len(byStrike))
	for strike, gex := range byStrike {
		out = append(out, strikeGEX{strike: strike, gex: gex})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].strike < out[j].strike })
	return out
}

// flipPoint finds the price where cumulative GEX, summed from the lowest
// strike upward, crosses zero. Each adjacent sign change is linearly
// interpolated and the crossing nearest spot wins. Returns nil when the
// cumulative sum never changes sign.
func flipPoint(byStrike []strikeGEX, spot float64) *float64 {
	if len(byStrike) == 0 {
		return nil
	}

	cumulative := make([]float64, len(byStrike))
	running := 0.0
	for i, s := range byStrike {
		running += s.gex
		cumulative[i] = running
	}

	var flips []float64
	for i := 0; i < len(byStrike)-1; i++ {
		g1, g2 := cumulative[i], cumulative[i+1]
		if g1*g2 < 0 {
			s1, s2 := byStrike[i].strike, byStrike[i+1].strike
			flips = append(flips, s1+(s2-s1)*math.Abs(g1)/(math.Abs(g1)+math.Abs(g2)))
		}
	}
	if len(flips) == 0 {
		return nil
	}

	best := flips[0]
	for _, f := range flips[1:] {
		if math.Abs(f-spot) < math.Abs(best-spot) {
			best = f
		}
	}
	return &best
}

// keyLevels ranks strikes by GEX magnitude and keeps the positive-GEX
// ones among the top 2n: dealers defend those prices, so below spot they
// read as support and at or above spot as resistance. Magnets are the
// same strikes ordered by proximity to spot.
func keyLevels(byStrike []strikeGEX, spot float64, topN int) (support, resistance, magnets []float64) {
	support = []float64{}
	resistance = []float64{}
	magnets = []float64{}
	if len(byStrike) == 0 {
		return support, resistance, magnets
	}

	ranked := make([]strikeGEX, len(byStrike))
	copy(ranked, byStrike)
	sort.SliceStable(ranked, func(i, j int) bool {
		return math.Abs(ranked[i].gex) > math.Abs(ranked[j].gex)
	})

	limit := topN * 2
	if limit > len(ranked) {
		limit = len(ranked)
	}
	for _, s := range ranked[:limit] {
		if s.gex <= 0 {
			continue
		}
		magnets = append(magnets, s.strike)
		if s.strike < spot {
			support = append(support, s.strike)
		} else {
			resistance = append(resistance, s.strike)
		}
	}

	sort.Sort(sort.Reverse(sort.Float64Slice(support)))
	sort.Float64s(resistance)
	sort.SliceStable(magnets, func(i, j int) bool {
		return math.Abs(magnets[i]-spot) < math.Abs(magnets[j]-spot)
	})

	return clipLevels(support, topN), clipLevels(resistance, topN), clipLevels(magnets, topN)
}

func clipLevels(levels []float64, n int) []float64 {
	if len(levels) > n {
		return levels[:n]
	}
	return levels
}
