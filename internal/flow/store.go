package flow

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/aristath/hydra/internal/database"
)

const flowSchema = `
CREATE TABLE IF NOT EXISTS flow_history (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	timestamp TEXT NOT NULL,
	ticker TEXT NOT NULL,
	net_premium_calls REAL NOT NULL,
	net_premium_puts REAL NOT NULL,
	institutional_bias TEXT NOT NULL,
	confidence REAL NOT NULL,
	analysis TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_flow_history_ts ON flow_history(timestamp);
`

// HistoryStore persists one row per flow classification tick.
type HistoryStore struct {
	db  *database.DB
	log zerolog.Logger
}

// NewHistoryStore creates the flow_history table if needed.
func NewHistoryStore(db *database.DB, log zerolog.Logger) (*HistoryStore, error) {
	if _, err := db.Exec(flowSchema); err != nil {
		return nil, fmt.Errorf("create flow_history schema: %w", err)
	}
	return &HistoryStore{
		db:  db,
		log: log.With().Str("component", "flow_history").Logger(),
	}, nil
}

// Save appends one snapshot.
func (s *HistoryStore) Save(snap *Snapshot) error {
	_, err := s.db.Exec(`
		INSERT INTO flow_history (timestamp, ticker, net_premium_calls, net_premium_puts, institutional_bias, confidence, analysis)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		snap.Timestamp,
		snap.Ticker,
		snap.NetPremiumCalls,
		snap.NetPremiumPuts,
		string(snap.InstitutionalBias),
		snap.Confidence,
		snap.Analysis,
	)
	if err != nil {
		return fmt.Errorf("insert flow snapshot: %w", err)
	}
	return nil
}

// HistoryRow is one persisted classification.
type HistoryRow struct {
	Timestamp         string  `json:"timestamp"`
	Ticker            string  `json:"ticker"`
	NetPremiumCalls   float64 `json:"net_premium_calls"`
	NetPremiumPuts    float64 `json:"net_premium_puts"`
	InstitutionalBias Bias    `json:"institutional_bias"`
	Confidence        float64 `json:"confidence"`
	Analysis          string  `json:"analysis"`
}

// Recent returns the newest rows first.
func (s *HistoryStore) Recent(limit int) ([]HistoryRow, error) {
	rows, err := s.db.Query(`
		SELECT timestamp, ticker, net_premium_calls, net_premium_puts, institutional_bias, confidence, analysis
		FROM flow_history ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query flow history: %w", err)
	}
	defer rows.Close()

	var out []HistoryRow
	for rows.Next() {
		var r HistoryRow
		var bias string
		if err := rows.Scan(&r.Timestamp, &r.Ticker, &r.NetPremiumCalls, &r.NetPremiumPuts, &bias, &r.Confidence, &r.Analysis); err != nil {
			return nil, fmt.Errorf("scan flow history row: %w", err)
		}
		r.InstitutionalBias = Bias(bias)
		out = append(out, r)
	}
	return out, rows.Err()
}
