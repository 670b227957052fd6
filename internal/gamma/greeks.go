package gamma

import (
	"math"
	"time"

	"github.com/aristath/hydra/internal/market"
)

// riskFreeRate is the flat annual rate in the charm and vanna terms. At
// 0DTE horizons the greeks are insensitive to it.
const riskFreeRate = 0.05

// defaultIV stands in when Polygon omits implied volatility on a contract.
const defaultIV = 0.3

// gexPerStrike returns the dollar gamma exposure one contract line adds:
// gamma * OI * 100 * spot^2, positive for calls and negative for puts.
// The sign encodes the standard dealer-positioning convention (dealers
// long customer-sold calls, short customer-bought puts).
func gexPerStrike(gamma, openInterest, spot float64, isCall bool) float64 {
	if gamma <= 0 || openInterest <= 0 || spot <= 0 {
		return 0
	}
	gex := gamma * openInterest * 100 * spot * spot
	if !isCall {
		return -gex
	}
	return gex
}

func d1(spot, strike, sigma, tau float64) float64 {
	return (math.Log(spot/strike) + (riskFreeRate+sigma*sigma/2)*tau) / (sigma * math.Sqrt(tau))
}

// charmRate approximates dDelta/dTime for one contract. Near expiry the
// d1*sigma/(2*tau) term dominates, which is exactly the regime where
// charm matters for 0DTE hedging.
func charmRate(gamma, iv, spot, strike, tau float64) float64 {
	if tau <= 0 || iv <= 0 || spot <= 0 || strike <= 0 {
		return 0
	}
	d := d1(spot, strike, iv, tau)
	return -gamma * (riskFreeRate - d*iv/(2*tau))
}

// vannaRate approximates dDelta/dIV for one contract. When IV moves,
// delta moves with it and dealers re-hedge.
func vannaRate(vega, spot, strike, iv, tau float64) float64 {
	if tau <= 0 || iv <= 0 || spot <= 0 || strike <= 0 || vega == 0 {
		return 0
	}
	d := d1(spot, strike, iv, tau)
	return vega * d / (spot * iv * math.Sqrt(tau))
}

// yearsToClose converts the time remaining until the 16:00 ET close into
// years, floored at 1e-6 so same-day math stays finite after the close.
func yearsToClose(now time.Time) float64 {
	et := now.In(market.Eastern())
	closeAt := time.Date(et.Year(), et.Month(), et.Day(), 16, 0, 0, 0, market.Eastern())

	remaining := closeAt.Sub(et).Seconds()
	if remaining <= 0 {
		return 1e-6
	}
	tau := remaining / (365.25 * 24 * 3600)
	if tau < 1e-6 {
		return 1e-6
	}
	return tau
}
