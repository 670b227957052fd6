package signal

import (
	"context"
	"time"
)

// Connector is one upstream signal source. Implementations live in the
// monitors package; the Scanner owns their poll cadence and health state.
type Connector interface {
	// Name identifies the connector in health reports and logs.
	Name() string
	// Category is the default category of this connector's signals.
	Category() Category
	// Interval is the minimum spacing between polls.
	Interval() time.Duration
	// Reliability is the default reliability score for emitted signals.
	Reliability() float64
	// Poll fetches the upstream and returns zero or more fresh signals.
	// Transport failures are errors; "nothing notable" is (nil, nil).
	Poll(ctx context.Context) ([]Signal, error)
}

// Meta carries the registry identity shared by every connector.
// Monitors embed it and implement only Poll.
type Meta struct {
	name        string
	category    Category
	interval    time.Duration
	reliability float64
}

// NewMeta builds connector identity metadata.
func NewMeta(name string, category Category, interval time.Duration, reliability float64) Meta {
	return Meta{name: name, category: category, interval: interval, reliability: reliability}
}

func (m Meta) Name() string            { return m.name }
func (m Meta) Category() Category      { return m.category }
func (m Meta) Interval() time.Duration { return m.interval }
func (m Meta) Reliability() float64    { return m.reliability }

// State is the Scanner's per-connector bookkeeping. A successful poll
// clears the error count, so only consecutive failures mark a connector
// unhealthy; LastPoll is only advanced on a successful poll so a failing
// connector retries on the next scan.
type State struct {
	LastPoll   time.Time
	ErrorCount int
}

// Due reports whether the connector should be polled at now.
func (st *State) Due(now time.Time, interval time.Duration) bool {
	return st.LastPoll.IsZero() || now.Sub(st.LastPoll) >= interval
}

// Healthy reports whether the connector has stayed under the error threshold.
func (st *State) Healthy() bool {
	return st.ErrorCount < 3
}
