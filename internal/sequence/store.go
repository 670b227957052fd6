package sequence

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/aristath/hydra/internal/database"
)

// Embeddings are stored as a JSON-encoded float array in the blob
// column, so rows stay inspectable with plain sqlite tooling.
const sequenceSchema = `
CREATE TABLE IF NOT EXISTS daily_fingerprints (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	date TEXT UNIQUE NOT NULL,
	gex_regime TEXT,
	flow_bias TEXT,
	vix_level REAL,
	spy_change_pct REAL,
	spy_range_pct REAL,
	blowup_score INTEGER,
	dark_pool_bias TEXT,
	outcome_next_day REAL,
	embedding BLOB
);
CREATE INDEX IF NOT EXISTS idx_fingerprints_date ON daily_fingerprints(date);
`

// Store persists daily fingerprints keyed by date.
type Store struct {
	db  *database.DB
	log zerolog.Logger
}

// NewStore creates the fingerprint table if needed.
func NewStore(db *database.DB, log zerolog.Logger) (*Store, error) {
	if _, err := db.Exec(sequenceSchema); err != nil {
		return nil, fmt.Errorf("create sequence schema: %w", err)
	}
	return &Store{
		db:  db,
		log: log.With().Str("component", "sequence_store").Logger(),
	}, nil
}

// Upsert writes a fingerprint, replacing any existing row for its date.
func (s *Store) Upsert(fp Fingerprint) error {
	var embedding []byte
	if len(fp.Embedding) > 0 {
		b, err := json.Marshal(fp.Embedding)
		if err != nil {
			return fmt.Errorf("encode embedding: %w", err)
		}
		embedding = b
	}

	var outcome sql.NullFloat64
	if fp.OutcomeNextDay != nil {
		outcome = sql.NullFloat64{Float64: *fp.OutcomeNextDay, Valid: true}
	}

	_, err := s.db.Exec(`
		INSERT OR REPLACE INTO daily_fingerprints
			(date, gex_regime, flow_bias, vix_level, spy_change_pct, spy_range_pct, blowup_score, dark_pool_bias, outcome_next_day, embedding)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		fp.Date, fp.GexRegime, fp.FlowBias, fp.VIXLevel, fp.SpyChangePct, fp.SpyRangePct,
		fp.BlowupScore, fp.DarkPoolBias, outcome, embedding,
	)
	if err != nil {
		return fmt.Errorf("upsert fingerprint: %w", err)
	}
	return nil
}

// UpdateOutcome backfills the next-day move for a recorded date.
func (s *Store) UpdateOutcome(date string, outcome float64) error {
	_, err := s.db.Exec(`UPDATE daily_fingerprints SET outcome_next_day = ? WHERE date = ?`, outcome, date)
	if err != nil {
		return fmt.Errorf("update fingerprint outcome: %w", err)
	}
	return nil
}

// LoadSince returns fingerprints on or after the cutoff date, newest
// first. Rows with an undecodable embedding blob keep their fields and
// lose the vector.
func (s *Store) LoadSince(cutoff string) ([]Fingerprint, error) {
	rows, err := s.db.Query(`
		SELECT date, gex_regime, flow_bias, vix_level, spy_change_pct, spy_range_pct, blowup_score, dark_pool_bias, outcome_next_day, embedding
		FROM daily_fingerprints WHERE date >= ? ORDER BY date DESC`, cutoff)
	if err != nil {
		return nil, fmt.Errorf("query fingerprints: %w", err)
	}
	defer rows.Close()

	var out []Fingerprint
	for rows.Next() {
		var fp Fingerprint
		var outcome sql.NullFloat64
		var embedding []byte
		if err := rows.Scan(&fp.Date, &fp.GexRegime, &fp.FlowBias, &fp.VIXLevel, &fp.SpyChangePct,
			&fp.SpyRangePct, &fp.BlowupScore, &fp.DarkPoolBias, &outcome, &embedding); err != nil {
			return nil, fmt.Errorf("scan fingerprint: %w", err)
		}
		if outcome.Valid {
			v := outcome.Float64
			fp.OutcomeNextDay = &v
		}
		if len(embedding) > 0 {
			if err := json.Unmarshal(embedding, &fp.Embedding); err != nil {
				s.log.Warn().Err(err).Str("date", fp.Date).Msg("dropping undecodable embedding blob")
				fp.Embedding = nil
			}
		}
		out = append(out, fp)
	}
	return out, rows.Err()
}
