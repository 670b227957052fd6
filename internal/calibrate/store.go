package calibrate

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/aristath/hydra/internal/database"
)

// feedbackSchema backs trade_feedback.db: raw trade outcomes, the daily
// calibration log, and blowup-prediction accuracy samples.
const feedbackSchema = `
CREATE TABLE IF NOT EXISTS trade_feedback (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	trade_id TEXT UNIQUE,
	ticker TEXT,
	direction TEXT,
	mode TEXT,
	entry_time TEXT,
	exit_time TEXT,
	pnl_percent REAL,
	conviction INTEGER,
	blowup_score INTEGER,
	blowup_direction TEXT,
	triggers TEXT,
	regime TEXT,
	created_at TEXT
);

CREATE TABLE IF NOT EXISTS calibration_log (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	date TEXT UNIQUE,
	total_trades INTEGER,
	blowup_trades INTEGER,
	win_rate REAL,
	avg_pnl REAL,
	precision REAL,
	recall REAL,
	direction_accuracy REAL,
	old_weights TEXT,
	new_weights TEXT,
	notes TEXT
);

CREATE TABLE IF NOT EXISTS blowup_accuracy (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	timestamp TEXT,
	blowup_score INTEGER,
	spy_move_30min REAL,
	direction_predicted TEXT,
	direction_actual TEXT,
	triggers TEXT
);
`

// FeedbackStore persists trade outcomes and accuracy samples.
type FeedbackStore struct {
	db  *database.DB
	log zerolog.Logger
	now func() time.Time
}

// NewFeedbackStore creates the schema if needed.
func NewFeedbackStore(db *database.DB, log zerolog.Logger) (*FeedbackStore, error) {
	if _, err := db.Exec(feedbackSchema); err != nil {
		return nil, fmt.Errorf("create feedback schema: %w", err)
	}
	return &FeedbackStore{
		db:  db,
		log: log.With().Str("component", "feedback").Logger(),
		now: time.Now,
	}, nil
}

// RecordTrade upserts one trade outcome. Re-sending the same trade id
// replaces the row, so execution-side retries are harmless. A trade posted
// without an id gets one assigned and inserts as a new row.
func (s *FeedbackStore) RecordTrade(trade TradeFeedback) error {
	if trade.TradeID == "" {
		trade.TradeID = uuid.NewString()
	}

	triggers, err := json.Marshal(trade.Triggers)
	if err != nil {
		return fmt.Errorf("marshal triggers: %w", err)
	}

	_, err = s.db.Exec(`
		INSERT OR REPLACE INTO trade_feedback
		(trade_id, ticker, direction, mode, entry_time, exit_time,
		 pnl_percent, conviction, blowup_score, blowup_direction,
		 triggers, regime, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		trade.TradeID,
		trade.Ticker,
		trade.Direction,
		trade.Mode,
		trade.EntryTime,
		trade.ExitTime,
		trade.PnLPercent,
		trade.Conviction,
		trade.BlowupScore,
		trade.BlowupDirection,
		string(triggers),
		trade.Regime,
		s.now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("insert trade feedback: %w", err)
	}

	s.log.Info().Str("trade_id", trade.TradeID).Float64("pnl_pct", trade.PnLPercent).Msg("Trade recorded")
	return nil
}

// RecordAccuracy stores one prediction-versus-tape sample: the score at
// prediction time and the SPY move realized over the following 30 minutes.
func (s *FeedbackStore) RecordAccuracy(score int, spyMove30Min float64, directionPredicted, directionActual string, triggers []string) error {
	t, err := json.Marshal(triggers)
	if err != nil {
		return fmt.Errorf("marshal triggers: %w", err)
	}

	_, err = s.db.Exec(`
		INSERT INTO blowup_accuracy
		(timestamp, blowup_score, spy_move_30min, direction_predicted, direction_actual, triggers)
		VALUES (?, ?, ?, ?, ?, ?)`,
		s.now().UTC().Format(time.RFC3339),
		score,
		spyMove30Min,
		directionPredicted,
		directionActual,
		string(t),
	)
	if err != nil {
		return fmt.Errorf("insert blowup accuracy: %w", err)
	}
	return nil
}

// TradeStats summarizes feedback recorded in the last N days.
func (s *FeedbackStore) TradeStats(days int) (TradeStats, error) {
	cutoff := s.now().UTC().Add(-time.Duration(days) * 24 * time.Hour).Format(time.RFC3339)

	var total, wins, blowupTrades int
	var avgPnL sql.NullFloat64
	err := s.db.QueryRow(`
		SELECT COUNT(*),
		       COALESCE(SUM(CASE WHEN pnl_percent > 0 THEN 1 ELSE 0 END), 0),
		       AVG(pnl_percent),
		       COUNT(CASE WHEN mode = 'BLOWUP' THEN 1 END)
		FROM trade_feedback
		WHERE created_at > ?`, cutoff).Scan(&total, &wins, &avgPnL, &blowupTrades)
	if err != nil {
		return TradeStats{}, fmt.Errorf("query trade stats: %w", err)
	}

	stats := TradeStats{
		TotalTrades:  total,
		Wins:         wins,
		AvgPnL:       avgPnL.Float64,
		BlowupTrades: blowupTrades,
	}
	if total > 0 {
		stats.WinRate = float64(wins) / float64(total)
	}
	return stats, nil
}

// feedbackRow is the slice of a trade_feedback row calibration reads.
type feedbackRow struct {
	direction       string
	pnl             float64
	blowupDirection string
	triggers        []string
}

func (s *FeedbackStore) blowupTrades() ([]feedbackRow, error) {
	rows, err := s.db.Query(`
		SELECT direction, pnl_percent, blowup_direction, triggers
		FROM trade_feedback
		WHERE mode = 'BLOWUP'`)
	if err != nil {
		return nil, fmt.Errorf("query blowup trades: %w", err)
	}
	defer rows.Close()

	var out []feedbackRow
	for rows.Next() {
		var r feedbackRow
		var triggers string
		if err := rows.Scan(&r.direction, &r.pnl, &r.blowupDirection, &triggers); err != nil {
			return nil, fmt.Errorf("scan trade feedback row: %w", err)
		}
		if err := json.Unmarshal([]byte(triggers), &r.triggers); err != nil {
			s.log.Warn().Str("triggers", triggers).Msg("Unparseable triggers column, skipping")
			r.triggers = nil
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// accuracySample pairs a prediction with the realized 30-minute move.
type accuracySample struct {
	score int
	move  float64
}

func (s *FeedbackStore) accuracySamples() ([]accuracySample, error) {
	rows, err := s.db.Query(`
		SELECT blowup_score, spy_move_30min
		FROM blowup_accuracy
		WHERE spy_move_30min IS NOT NULL`)
	if err != nil {
		return nil, fmt.Errorf("query blowup accuracy: %w", err)
	}
	defer rows.Close()

	var out []accuracySample
	for rows.Next() {
		var a accuracySample
		if err := rows.Scan(&a.score, &a.move); err != nil {
			return nil, fmt.Errorf("scan blowup accuracy row: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *FeedbackStore) logCalibration(date string, result *CalibrationResult) error {
	oldW, err := json.Marshal(result.OldWeights)
	if err != nil {
		return fmt.Errorf("marshal old weights: %w", err)
	}
	newW, err := json.Marshal(result.NewWeights)
	if err != nil {
		return fmt.Errorf("marshal new weights: %w", err)
	}
	notes, err := json.Marshal(result.Notes)
	if err != nil {
		return fmt.Errorf("marshal notes: %w", err)
	}

	_, err = s.db.Exec(`
		INSERT OR REPLACE INTO calibration_log
		(date, total_trades, blowup_trades, win_rate, avg_pnl,
		 precision, recall, direction_accuracy, old_weights, new_weights, notes)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		date,
		result.TotalTrades,
		result.BlowupTrades,
		result.WinRate,
		result.AvgPnL,
		result.Precision,
		result.Recall,
		result.DirectionAccuracy,
		string(oldW),
		string(newW),
		string(notes),
	)
	if err != nil {
		return fmt.Errorf("insert calibration log: %w", err)
	}
	return nil
}

// History returns calibration runs from the last N days, newest first.
func (s *FeedbackStore) History(days int) ([]CalibrationLogEntry, error) {
	cutoff := s.now().UTC().Add(-time.Duration(days) * 24 * time.Hour).Format("2006-01-02")

	rows, err := s.db.Query(`
		SELECT date, total_trades, blowup_trades, win_rate, avg_pnl,
		       precision, recall, direction_accuracy, old_weights, new_weights, notes
		FROM calibration_log
		WHERE date > ?
		ORDER BY date DESC`, cutoff)
	if err != nil {
		return nil, fmt.Errorf("query calibration log: %w", err)
	}
	defer rows.Close()

	var out []CalibrationLogEntry
	for rows.Next() {
		var e CalibrationLogEntry
		var oldW, newW, notes string
		if err := rows.Scan(&e.Date, &e.TotalTrades, &e.BlowupTrades, &e.WinRate, &e.AvgPnL,
			&e.Precision, &e.Recall, &e.DirectionAccuracy, &oldW, &newW, &notes); err != nil {
			return nil, fmt.Errorf("scan calibration log row: %w", err)
		}
		if err := json.Unmarshal([]byte(oldW), &e.OldWeights); err != nil {
			e.OldWeights = nil
		}
		if err := json.Unmarshal([]byte(newW), &e.NewWeights); err != nil {
			e.NewWeights = nil
		}
		if err := json.Unmarshal([]byte(notes), &e.Notes); err != nil {
			e.Notes = nil
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
