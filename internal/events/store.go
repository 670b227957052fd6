package events

import (
	"database/sql"
	"fmt"

	"github.com/rs/zerolog"
)

// resultsSchema lives in event_surprises.db. SPY/TLT move columns are filled
// in later by the outcome job once enough price history exists.
const resultsSchema = `
CREATE TABLE IF NOT EXISTS event_results (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    event_name TEXT NOT NULL,
    event_date TEXT NOT NULL,
    actual REAL,
    consensus REAL,
    previous REAL,
    surprise_pct REAL,
    direction TEXT,
    spy_move_15min REAL,
    spy_move_30min REAL,
    tlt_move_15min REAL,
    timestamp TEXT NOT NULL
);
`

// Store persists scored releases for later calibration.
type Store struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewStore creates the surprise result store and ensures its schema.
func NewStore(db *sql.DB, log zerolog.Logger) (*Store, error) {
	if _, err := db.Exec(resultsSchema); err != nil {
		return nil, fmt.Errorf("failed to init event results schema: %w", err)
	}
	return &Store{
		db:  db,
		log: log.With().Str("repo", "event_results").Logger(),
	}, nil
}

// SaveResult records a scored release. The market move arguments may be nil
// when not yet measured.
func (s *Store) SaveResult(surprise *Surprise, eventDate string, spyMove15, spyMove30 *float64) error {
	_, err := s.db.Exec(`
		INSERT INTO event_results
		(event_name, event_date, actual, consensus, previous, surprise_pct, direction, spy_move_15min, spy_move_30min, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		surprise.EventName,
		eventDate,
		surprise.Actual,
		surprise.Consensus,
		surprise.Previous,
		surprise.SurprisePct,
		surprise.Direction,
		nullFloat(spyMove15),
		nullFloat(spyMove30),
		surprise.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("failed to save event result: %w", err)
	}
	return nil
}

// ResultCount returns the number of stored release results.
func (s *Store) ResultCount() (int, error) {
	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM event_results`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count event results: %w", err)
	}
	return n, nil
}

func nullFloat(v *float64) interface{} {
	if v == nil {
		return nil
	}
	return *v
}
