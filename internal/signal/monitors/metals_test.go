package monitors

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/hydra/internal/signal"
)

func TestCMEMargin_AdvisoryTriggersAlert(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><body>
			<a href="/about">Contact Us</a>
			<a href="/advisory/1">Performance Bond Requirements: Metals Complex Update</a>
			<a href="/advisory/2">Gold margin schedule</a>
		</body></html>`))
	}))
	defer server.Close()

	c := NewCMEMargin(testFetcher())
	c.baseURL = server.URL

	signals, err := c.Poll(context.Background())
	require.NoError(t, err)
	require.Len(t, signals, 1, "first matching advisory wins, the rest are noise")

	s := signals[0]
	assert.Equal(t, "CME Margin Advisory Detected: Performance Bond Requirements: Metals Complex Update", s.Name)
	assert.Equal(t, signal.PriorityCritical, s.Priority)
	assert.Equal(t, -1.0, s.Direction)
	assert.Equal(t, 0.90, s.Strength)
	assert.Equal(t, "Performance Bond Requirements: Metals Complex Update", s.RawData["advisory_text"])
	assert.Equal(t, 72.0, s.TTLHours)
}

func TestCMEMargin_NoRelevantAdvisoriesStaysQuiet(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><body><a href="/about">Contact Us</a><a href="/jobs">Careers</a></body></html>`))
	}))
	defer server.Close()

	c := NewCMEMargin(testFetcher())
	c.baseURL = server.URL

	signals, err := c.Poll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, signals)
}

func sgeServer(t *testing.T, cnyPerGram string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><body><table><tr><td>Au99.99</td><td>` + cnyPerGram + `</td></tr></table></body></html>`))
	}))
	t.Cleanup(server.Close)
	return server
}

func TestShanghaiGold_DiscountWarns(t *testing.T) {
	server := sgeServer(t, "550.00")

	// 550 CNY/g * 31.1035 g/oz / 7.20 CNY/USD = $2375.96/oz vs $2400 London.
	c := NewShanghaiGold(testFetcher(), fakeQuotes{
		"CNY=X": {7.20},
		"GC=F":  {2400},
	})
	c.baseURL = server.URL

	signals, err := c.Poll(context.Background())
	require.NoError(t, err)
	require.Len(t, signals, 1)

	s := signals[0]
	assert.Equal(t, "SGE Gold Discount: $24/oz below London", s.Name)
	assert.Equal(t, signal.PriorityHigh, s.Priority)
	assert.Equal(t, -1.0, s.Direction)
	assert.Equal(t, 0.9, s.Strength, "a $24 gap maxes out the strength scale")
	assert.Equal(t, 24.0, s.TTLHours)
}

func TestShanghaiGold_PremiumSignalsChineseBuying(t *testing.T) {
	server := sgeServer(t, "580")

	c := NewShanghaiGold(testFetcher(), fakeQuotes{
		"CNY=X": {7.20},
		"GC=F":  {2450},
	})
	c.baseURL = server.URL

	signals, err := c.Poll(context.Background())
	require.NoError(t, err)
	require.Len(t, signals, 1)

	s := signals[0]
	assert.Equal(t, "SGE Gold Premium: $56/oz above London — Chinese buying!", s.Name)
	assert.Equal(t, 1.0, s.Direction)
	assert.Equal(t, 0.9, s.Strength)
	assert.Equal(t, 48.0, s.TTLHours)
}

func TestShanghaiGold_MissingSpotStaysQuiet(t *testing.T) {
	server := sgeServer(t, "550.00")

	// No GC=F series: the premium cannot be computed, which is not an error.
	c := NewShanghaiGold(testFetcher(), fakeQuotes{"CNY=X": {7.20}})
	c.baseURL = server.URL

	signals, err := c.Poll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, signals)
}

func TestCOMEXInventory_DeliveryDrain(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><body><p>Delivery notices for today. Gold: 1500 Silver: 600</p></body></html>`))
	}))
	defer server.Close()

	c := NewCOMEXInventory(testFetcher())
	c.baseURL = server.URL

	signals, err := c.Poll(context.Background())
	require.NoError(t, err)
	require.Len(t, signals, 1)

	s := signals[0]
	assert.Equal(t, "COMEX Inventory Drain: Gold 1500, Silver 600", s.Name)
	assert.Equal(t, signal.PriorityMedium, s.Priority)
	assert.Equal(t, 0.5, s.Direction)
	assert.Equal(t, 0.7, s.Strength, "2100 combined deliveries caps out")
	assert.Equal(t, 1500, s.RawData["gold"])
	assert.Equal(t, 600, s.RawData["silver"])
}

func TestCOMEXInventory_NormalDeliveriesStayQuiet(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><body><p>Gold: 800 Silver: 400</p></body></html>`))
	}))
	defer server.Close()

	c := NewCOMEXInventory(testFetcher())
	c.baseURL = server.URL

	signals, err := c.Poll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, signals)
}

func TestWorldGoldCouncil_BillionInflows(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><body><p>Weekly update: inflows: $1.2 billion into gold-backed ETFs</p></body></html>`))
	}))
	defer server.Close()

	c := NewWorldGoldCouncil(testFetcher())
	c.baseURL = server.URL

	signals, err := c.Poll(context.Background())
	require.NoError(t, err)
	require.Len(t, signals, 1)

	s := signals[0]
	assert.Equal(t, "Gold ETF Inflows: $1200M", s.Name)
	assert.Equal(t, 0.5, s.Direction)
	assert.Equal(t, 0.8, s.Strength)
	assert.Equal(t, 1200.0, s.RawData["inflow_millions"])
}

func TestWorldGoldCouncil_OutflowsWarn(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><body><p>Monthly report: outflows: 650 million from gold ETFs</p></body></html>`))
	}))
	defer server.Close()

	c := NewWorldGoldCouncil(testFetcher())
	c.baseURL = server.URL

	signals, err := c.Poll(context.Background())
	require.NoError(t, err)
	require.Len(t, signals, 1)

	s := signals[0]
	assert.Equal(t, "Gold ETF Outflows: $650M", s.Name)
	assert.Equal(t, -0.4, s.Direction)
	assert.InDelta(t, 0.65, s.Strength, 1e-9)
}

func TestSolarETF_RallySignalsSilverDemand(t *testing.T) {
	closes := make([]float64, 11)
	for i := range closes {
		closes[i] = 100
	}
	closes[10] = 108 // +8% over the ROC lookback

	c := NewSolarETF(fakeQuotes{"TAN": closes})

	signals, err := c.Poll(context.Background())
	require.NoError(t, err)
	require.Len(t, signals, 1)

	s := signals[0]
	assert.Equal(t, "Solar ETF Rallying: TAN +8.0% — Silver Demand Signal", s.Name)
	assert.Equal(t, signal.PriorityMedium, s.Priority)
	assert.Equal(t, 0.5, s.Direction)
	assert.Equal(t, 0.7, s.Strength)
	assert.Contains(t, s.AffectedAssets, "SLV")
}

func TestSolarETF_DropIsLowPriority(t *testing.T) {
	closes := make([]float64, 11)
	for i := range closes {
		closes[i] = 100
	}
	closes[10] = 88 // -12%

	c := NewSolarETF(fakeQuotes{"TAN": closes})

	signals, err := c.Poll(context.Background())
	require.NoError(t, err)
	require.Len(t, signals, 1)

	s := signals[0]
	assert.Equal(t, "Solar ETF Dropping: TAN -12.0%", s.Name)
	assert.Equal(t, signal.PriorityLow, s.Priority)
	assert.Equal(t, -0.3, s.Direction)
	assert.Equal(t, 0.5, s.Strength)
	assert.Equal(t, 0.50, s.ReliabilityScore)
}

func TestSolarETF_FlatTapeStaysQuiet(t *testing.T) {
	closes := make([]float64, 11)
	for i := range closes {
		closes[i] = 100
	}

	c := NewSolarETF(fakeQuotes{"TAN": closes})

	signals, err := c.Poll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, signals)
}
