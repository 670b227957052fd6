package blowup

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/aristath/hydra/internal/database"
)

// historySchema holds every calculation tick plus the per-day accuracy
// rollups written after the close.
const historySchema = `
CREATE TABLE IF NOT EXISTS blowup_history (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	timestamp TEXT NOT NULL,
	blowup_score INTEGER,
	direction TEXT,
	regime TEXT,
	confidence REAL,
	triggers TEXT,
	recommendation TEXT,
	components TEXT,
	spy_price REAL,
	spy_30min_move REAL
);
CREATE INDEX IF NOT EXISTS idx_blowup_history_ts ON blowup_history(timestamp);

CREATE TABLE IF NOT EXISTS signal_accuracy (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	date TEXT NOT NULL,
	max_spy_range REAL,
	blowup_score_at_max INTEGER,
	direction_correct INTEGER,
	triggers_active TEXT,
	precision REAL,
	recall REAL
);
`

// HistoryStore persists every blowup calculation to blowup_history.db.
type HistoryStore struct {
	db  *database.DB
	log zerolog.Logger
}

// NewHistoryStore creates the schema if needed.
func NewHistoryStore(db *database.DB, log zerolog.Logger) (*HistoryStore, error) {
	if _, err := db.Exec(historySchema); err != nil {
		return nil, fmt.Errorf("create blowup history schema: %w", err)
	}
	return &HistoryStore{
		db:  db,
		log: log.With().Str("component", "blowup_history").Logger(),
	}, nil
}

// Save appends one calculation. spyPrice is nil when no quote was in hand;
// the schema keeps the column nullable rather than storing a fake zero.
func (s *HistoryStore) Save(result *Result, spyPrice *float64) error {
	triggers, err := json.Marshal(result.Triggers)
	if err != nil {
		return fmt.Errorf("marshal triggers: %w", err)
	}
	components, err := json.Marshal(result.Components)
	if err != nil {
		return fmt.Errorf("marshal components: %w", err)
	}

	var price sql.NullFloat64
	if spyPrice != nil {
		price = sql.NullFloat64{Float64: *spyPrice, Valid: true}
	}

	_, err = s.db.Exec(`
		INSERT INTO blowup_history
		(timestamp, blowup_score, direction, regime, confidence, triggers, recommendation, components, spy_price)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		result.Timestamp,
		result.BlowupProbability,
		string(result.Direction),
		string(result.Regime),
		result.Confidence,
		string(triggers),
		string(result.Recommendation),
		string(components),
		price,
	)
	if err != nil {
		return fmt.Errorf("insert blowup history: %w", err)
	}
	return nil
}

// HistoryRow is one persisted calculation, without the component blob.
type HistoryRow struct {
	Timestamp      string   `json:"timestamp"`
	Score          int      `json:"score"`
	Direction      string   `json:"direction"`
	Regime         string   `json:"regime"`
	Confidence     float64  `json:"confidence"`
	Recommendation string   `json:"recommendation"`
	SPYPrice       *float64 `json:"spy_price,omitempty"`
}

// Recent returns the latest rows, newest first.
func (s *HistoryStore) Recent(limit int) ([]HistoryRow, error) {
	rows, err := s.db.Query(`
		SELECT timestamp, blowup_score, direction, regime, confidence, recommendation, spy_price
		FROM blowup_history
		ORDER BY id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query blowup history: %w", err)
	}
	defer rows.Close()

	var out []HistoryRow
	for rows.Next() {
		var r HistoryRow
		var price sql.NullFloat64
		if err := rows.Scan(&r.Timestamp, &r.Score, &r.Direction, &r.Regime, &r.Confidence, &r.Recommendation, &price); err != nil {
			return nil, fmt.Errorf("scan blowup history row: %w", err)
		}
		if price.Valid {
			v := price.Float64
			r.SPYPrice = &v
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// RecordDayAccuracy stores the end-of-day rollup the calibrator's notes
// reference: the widest SPY range seen, the score at that moment, and
// whether the predicted direction matched.
func (s *HistoryStore) RecordDayAccuracy(date string, maxRange float64, scoreAtMax int, directionCorrect bool, triggers []string, precision, recall float64) error {
	t, err := json.Marshal(triggers)
	if err != nil {
		return fmt.Errorf("marshal triggers: %w", err)
	}
	correct := 0
	if directionCorrect {
		correct = 1
	}
	_, err = s.db.Exec(`
		INSERT INTO signal_accuracy
		(date, max_spy_range, blowup_score_at_max, direction_correct, triggers_active, precision, recall)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		date, maxRange, scoreAtMax, correct, string(t), precision, recall)
	if err != nil {
		return fmt.Errorf("insert signal accuracy: %w", err)
	}
	return nil
}
