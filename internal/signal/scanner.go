package signal

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// ConnectorHealth is one connector's scan bookkeeping as exposed over the API.
type ConnectorHealth struct {
	Errors   int        `json:"errors"`
	LastPoll *time.Time `json:"last_poll"`
}

// Summary is the aggregate view of the live signal landscape.
type Summary struct {
	TotalActive     int                        `json:"total_active"`
	Critical        int                        `json:"critical"`
	High            int                        `json:"high"`
	Medium          int                        `json:"medium"`
	Low             int                        `json:"low"`
	ByCategory      map[string]int             `json:"by_category"`
	NetDirection    map[string]float64         `json:"net_direction"`
	LastScan        *time.Time                 `json:"last_scan"`
	ConnectorHealth map[string]ConnectorHealth `json:"connector_health"`
}

// Scanner drives the connector registry. Each scan polls every connector
// whose interval has elapsed, admits the results into the store, and records
// per-connector health. A failed poll leaves LastPoll untouched so the
// connector is retried on the very next scan.
type Scanner struct {
	store      *Store
	connectors []Connector
	log        zerolog.Logger

	mu       sync.Mutex
	states   map[string]*State
	lastScan time.Time
}

// NewScanner creates a scanner over the given connector registry.
func NewScanner(store *Store, connectors []Connector, log zerolog.Logger) *Scanner {
	states := make(map[string]*State, len(connectors))
	for _, c := range connectors {
		states[c.Name()] = &State{}
	}

	logger := log.With().Str("component", "scanner").Logger()
	logger.Info().Int("connectors", len(connectors)).Msg("Signal scanner initialized")
	for _, c := range connectors {
		logger.Debug().
			Str("connector", c.Name()).
			Dur("interval", c.Interval()).
			Float64("reliability", c.Reliability()).
			Msg("Connector registered")
	}

	return &Scanner{
		store:      store,
		connectors: connectors,
		states:     states,
		log:        logger,
	}
}

// ScanAll polls every due connector and returns the newly admitted signals.
// Scans are serialized; a second caller blocks until the first finishes.
func (sc *Scanner) ScanAll(ctx context.Context) []Signal {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	var admitted []Signal
	now := time.Now().UTC()

	for _, c := range sc.connectors {
		state := sc.states[c.Name()]
		if !state.Due(now, c.Interval()) {
			continue
		}
		if ctx.Err() != nil {
			break
		}

		signals, err := sc.poll(ctx, c)
		if err != nil {
			state.ErrorCount++
			sc.log.Error().Err(err).Str("connector", c.Name()).Msg("Connector poll failed")
			continue
		}
		state.LastPoll = time.Now().UTC()
		state.ErrorCount = 0

		admitted = append(admitted, sc.store.Add(signals...)...)
	}

	sc.lastScan = time.Now().UTC()

	if len(admitted) > 0 {
		sc.log.Info().
			Int("new", len(admitted)).
			Int("active", sc.store.Count()).
			Msg("Scan complete")
	}
	return admitted
}

// poll isolates one connector call, converting panics into errors so a
// misbehaving connector cannot take down the scan loop.
func (sc *Scanner) poll(ctx context.Context, c Connector) (signals []Signal, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("connector panicked: %v", r)
		}
	}()
	return c.Poll(ctx)
}

// Summary reports the current signal landscape plus connector health.
func (sc *Scanner) Summary() Summary {
	sc.store.mu.RLock()
	byPriority, byCategory, netDirection := sc.store.countsLocked()
	total := len(sc.store.live)
	sc.store.mu.RUnlock()

	sc.mu.Lock()
	health := make(map[string]ConnectorHealth, len(sc.states))
	for name, st := range sc.states {
		h := ConnectorHealth{Errors: st.ErrorCount}
		if !st.LastPoll.IsZero() {
			t := st.LastPoll
			h.LastPoll = &t
		}
		health[name] = h
	}
	var lastScan *time.Time
	if !sc.lastScan.IsZero() {
		t := sc.lastScan
		lastScan = &t
	}
	sc.mu.Unlock()

	return Summary{
		TotalActive:     total,
		Critical:        byPriority[PriorityCritical],
		High:            byPriority[PriorityHigh],
		Medium:          byPriority[PriorityMedium],
		Low:             byPriority[PriorityLow],
		ByCategory:      byCategory,
		NetDirection:    netDirection,
		LastScan:        lastScan,
		ConnectorHealth: health,
	}
}

// Store returns the underlying signal store.
func (sc *Scanner) Store() *Store {
	return sc.store
}
