package gamma

import (
	"database/sql"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/aristath/hydra/internal/database"
)

// gexSchema holds one row per gamma tick.
const gexSchema = `
CREATE TABLE IF NOT EXISTS gex_history (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	timestamp TEXT NOT NULL,
	spot_price REAL,
	total_gex REAL,
	call_gex REAL,
	put_gex REAL,
	flip_point REAL,
	regime TEXT,
	charm_flow REAL,
	vanna_exposure REAL
);
CREATE INDEX IF NOT EXISTS idx_gex_history_ts ON gex_history(timestamp);
`

// HistoryStore persists snapshots to gex_history.db.
type HistoryStore struct {
	db  *database.DB
	log zerolog.Logger
}

// NewHistoryStore creates the schema if needed.
func NewHistoryStore(db *database.DB, log zerolog.Logger) (*HistoryStore, error) {
	if _, err := db.Exec(gexSchema); err != nil {
		return nil, fmt.Errorf("create gex history schema: %w", err)
	}
	return &HistoryStore{
		db:  db,
		log: log.With().Str("component", "gex_history").Logger(),
	}, nil
}

// Save appends one snapshot.
func (s *HistoryStore) Save(snapshot *Snapshot) error {
	var flip sql.NullFloat64
	if snapshot.FlipPoint != nil {
		flip = sql.NullFloat64{Float64: *snapshot.FlipPoint, Valid: true}
	}

	_, err := s.db.Exec(`
		INSERT INTO gex_history
		(timestamp, spot_price, total_gex, call_gex, put_gex, flip_point, regime, charm_flow, vanna_exposure)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		snapshot.Timestamp,
		snapshot.SpotPrice,
		snapshot.TotalGEX,
		snapshot.CallGEX,
		snapshot.PutGEX,
		flip,
		string(snapshot.Regime),
		snapshot.CharmFlowPerHour,
		snapshot.VannaExposure,
	)
	if err != nil {
		return fmt.Errorf("insert gex history: %w", err)
	}
	return nil
}

// HistoryRow is one persisted tick.
type HistoryRow struct {
	Timestamp string   `json:"timestamp"`
	SpotPrice float64  `json:"spot_price"`
	TotalGEX  float64  `json:"total_gex"`
	FlipPoint *float64 `json:"flip_point,omitempty"`
	Regime    string   `json:"regime"`
}

// Recent returns the latest ticks, newest first.
func (s *HistoryStore) Recent(limit int) ([]HistoryRow, error) {
	rows, err := s.db.Query(`
		SELECT timestamp, spot_price, total_gex, flip_point, regime
		FROM gex_history
		ORDER BY id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query gex history: %w", err)
	}
	defer rows.Close()

	var out []HistoryRow
	for rows.Next() {
		var r HistoryRow
		var flip sql.NullFloat64
		if err := rows.Scan(&r.Timestamp, &r.SpotPrice, &r.TotalGEX, &flip, &r.Regime); err != nil {
			return nil, fmt.Errorf("scan gex history row: %w", err)
		}
		if flip.Valid {
			v := flip.Float64
			r.FlipPoint = &v
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
