package signal

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubConnector struct {
	Meta
	polls   int
	signals []Signal
	err     error
	panics  bool
}

func (c *stubConnector) Poll(_ context.Context) ([]Signal, error) {
	c.polls++
	if c.panics {
		panic("connector blew up")
	}
	return c.signals, c.err
}

func TestScanner_RespectsPollInterval(t *testing.T) {
	conn := &stubConnector{
		Meta:    NewMeta("stub", CategoryCrypto, time.Hour, 0.8),
		signals: []Signal{testSignal("s1", CategoryCrypto, PriorityHigh, 0.5)},
	}
	scanner := NewScanner(NewStore(zerolog.Nop()), []Connector{conn}, zerolog.Nop())

	first := scanner.ScanAll(context.Background())
	second := scanner.ScanAll(context.Background())

	assert.Len(t, first, 1)
	assert.Empty(t, second)
	assert.Equal(t, 1, conn.polls, "interval not elapsed, no second poll")
}

func TestScanner_FailedPollRetriesNextScan(t *testing.T) {
	conn := &stubConnector{
		Meta: NewMeta("flaky", CategoryMacro, time.Hour, 0.8),
		err:  errors.New("upstream 500"),
	}
	scanner := NewScanner(NewStore(zerolog.Nop()), []Connector{conn}, zerolog.Nop())

	scanner.ScanAll(context.Background())
	scanner.ScanAll(context.Background())

	// LastPoll never advanced, so the connector is retried every scan.
	assert.Equal(t, 2, conn.polls)

	summary := scanner.Summary()
	health := summary.ConnectorHealth["flaky"]
	assert.Equal(t, 2, health.Errors)
	assert.Nil(t, health.LastPoll)
}

func TestScanner_SuccessfulPollClearsErrorCount(t *testing.T) {
	conn := &stubConnector{
		Meta: NewMeta("flaky", CategoryMacro, time.Hour, 0.8),
		err:  errors.New("upstream 500"),
	}
	scanner := NewScanner(NewStore(zerolog.Nop()), []Connector{conn}, zerolog.Nop())

	scanner.ScanAll(context.Background())
	scanner.ScanAll(context.Background())
	require.Equal(t, 2, scanner.Summary().ConnectorHealth["flaky"].Errors)

	conn.err = nil
	scanner.ScanAll(context.Background())

	// Only consecutive failures count against health.
	health := scanner.Summary().ConnectorHealth["flaky"]
	assert.Equal(t, 0, health.Errors)
	require.NotNil(t, health.LastPoll)
}

func TestScanner_RecoversConnectorPanic(t *testing.T) {
	conn := &stubConnector{
		Meta:   NewMeta("bomb", CategoryMacro, time.Hour, 0.8),
		panics: true,
	}
	healthy := &stubConnector{
		Meta:    NewMeta("ok", CategoryCrypto, time.Hour, 0.8),
		signals: []Signal{testSignal("s1", CategoryCrypto, PriorityHigh, 0.5)},
	}
	scanner := NewScanner(NewStore(zerolog.Nop()), []Connector{conn, healthy}, zerolog.Nop())

	admitted := scanner.ScanAll(context.Background())

	require.Len(t, admitted, 1, "panic in one connector must not stop the scan")
	assert.Equal(t, 1, scanner.Summary().ConnectorHealth["bomb"].Errors)
}

func TestScanner_SummaryCountsAndNetDirection(t *testing.T) {
	crypto := testSignal("c1", CategoryCrypto, PriorityCritical, 1.0)
	crypto.Direction = -1.0
	crypto.ReliabilityScore = 0.8

	macro := testSignal("m1", CategoryMacro, PriorityMedium, 0.5)
	macro.Direction = 1.0
	macro.ReliabilityScore = 0.9

	conn := &stubConnector{
		Meta:    NewMeta("stub", CategoryCrypto, time.Minute, 0.8),
		signals: []Signal{crypto, macro},
	}
	scanner := NewScanner(NewStore(zerolog.Nop()), []Connector{conn}, zerolog.Nop())
	scanner.ScanAll(context.Background())

	summary := scanner.Summary()

	assert.Equal(t, 2, summary.TotalActive)
	assert.Equal(t, 1, summary.Critical)
	assert.Equal(t, 1, summary.Medium)
	assert.Equal(t, map[string]int{"crypto": 1, "macro": 1}, summary.ByCategory)

	// crypto: -1.0 * 1.0 * 0.8 = -0.8
	assert.InDelta(t, -0.8, summary.NetDirection["crypto"], 0.0001)
	// The equities direction reads the macro category: 1.0 * 0.5 * 0.9 = 0.45.
	assert.InDelta(t, 0.45, summary.NetDirection["equities"], 0.0001)
	assert.InDelta(t, 0.0, summary.NetDirection["metals"], 0.0001)

	require.NotNil(t, summary.LastScan)
	require.NotNil(t, summary.ConnectorHealth["stub"].LastPoll)
}

func TestScanner_State(t *testing.T) {
	st := &State{}
	now := time.Now()

	assert.True(t, st.Due(now, time.Hour), "never polled is always due")
	assert.True(t, st.Healthy())

	st.LastPoll = now.Add(-30 * time.Minute)
	assert.False(t, st.Due(now, time.Hour))
	assert.True(t, st.Due(now, 15*time.Minute))

	st.ErrorCount = 3
	assert.False(t, st.Healthy())
}
