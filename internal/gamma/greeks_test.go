package gamma

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/aristath/hydra/internal/market"
)

func TestGEXPerStrike_DealerConvention(t *testing.T) {
	// gamma 0.05 * OI 1200 * 100 * 450^2
	call := gexPerStrike(0.05, 1200, 450, true)
	assert.InDelta(t, 1_215_000_000, call, 0.001)

	put := gexPerStrike(0.05, 1200, 450, false)
	assert.InDelta(t, -1_215_000_000, put, 0.001)
}

func TestGEXPerStrike_DegenerateInputsScoreZero(t *testing.T) {
	assert.Zero(t, gexPerStrike(0, 1200, 450, true))
	assert.Zero(t, gexPerStrike(-0.01, 1200, 450, true))
	assert.Zero(t, gexPerStrike(0.05, 0, 450, true))
	assert.Zero(t, gexPerStrike(0.05, 1200, 0, true))
}

func TestCharmRate_ATMNearExpiry(t *testing.T) {
	// spot=strike=450, sigma=0.2, tau=1e-4:
	// d1 = 0.07*1e-4 / (0.2*0.01) = 0.0035
	// charm = -0.05 * (0.05 - 0.0035*0.2/2e-4) = 0.1725
	got := charmRate(0.05, 0.2, 450, 450, 1e-4)
	assert.InDelta(t, 0.1725, got, 1e-9)
}

func TestCharmRate_Guards(t *testing.T) {
	assert.Zero(t, charmRate(0.05, 0.2, 450, 450, 0))
	assert.Zero(t, charmRate(0.05, 0, 450, 450, 1e-4))
	assert.Zero(t, charmRate(0.05, 0.2, 0, 450, 1e-4))
	assert.Zero(t, charmRate(0.05, 0.2, 450, 0, 1e-4))
}

func TestVannaRate_ATMNearExpiry(t *testing.T) {
	// d1 = 0.0035 as above
	// vanna = 0.2*0.0035 / (450*0.2*0.01) = 0.00077778
	got := vannaRate(0.2, 450, 450, 0.2, 1e-4)
	assert.InDelta(t, 0.000777778, got, 1e-9)
}

func TestVannaRate_Guards(t *testing.T) {
	assert.Zero(t, vannaRate(0.2, 450, 450, 0.2, 0))
	assert.Zero(t, vannaRate(0.2, 450, 450, 0, 1e-4))
	assert.Zero(t, vannaRate(0.2, 0, 450, 0.2, 1e-4))
	assert.Zero(t, vannaRate(0.2, 450, 0, 0.2, 1e-4))
	assert.Zero(t, vannaRate(0, 450, 450, 0.2, 1e-4))
}

func TestYearsToClose(t *testing.T) {
	et := market.Eastern()

	oneHourOut := time.Date(2026, 8, 26, 15, 0, 0, 0, et)
	assert.InDelta(t, 1.0/(365.25*24), yearsToClose(oneHourOut), 1e-12)

	atClose := time.Date(2026, 8, 26, 16, 0, 0, 0, et)
	assert.InDelta(t, 1e-6, yearsToClose(atClose), 1e-15)

	afterClose := time.Date(2026, 8, 26, 16, 30, 0, 0, et)
	assert.InDelta(t, 1e-6, yearsToClose(afterClose), 1e-15)

	// Inside the last half minute the raw value drops below the floor.
	finalSecond := time.Date(2026, 8, 26, 15, 59, 59, 0, et)
	assert.InDelta(t, 1e-6, yearsToClose(finalSecond), 1e-15)
}
