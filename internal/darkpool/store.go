package darkpool

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/aristath/hydra/internal/database"
)

// The unique index on prints makes re-ingesting an overlapping tape
// window idempotent; consecutive ticks see mostly the same prints.
const darkpoolSchema = `
CREATE TABLE IF NOT EXISTS dark_pool_prints (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	timestamp TEXT NOT NULL,
	ticker TEXT NOT NULL,
	price REAL NOT NULL,
	size INTEGER NOT NULL,
	notional REAL NOT NULL,
	side TEXT NOT NULL,
	exchange INTEGER NOT NULL,
	trf_id INTEGER NOT NULL
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_dp_prints_unique
	ON dark_pool_prints(ticker, timestamp, price, size);
CREATE INDEX IF NOT EXISTS idx_dp_prints_ticker_time
	ON dark_pool_prints(ticker, timestamp);

CREATE TABLE IF NOT EXISTS dark_pool_levels (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	date TEXT NOT NULL,
	ticker TEXT NOT NULL,
	price_level REAL NOT NULL,
	total_volume INTEGER NOT NULL,
	total_notional REAL NOT NULL,
	trade_count INTEGER NOT NULL,
	buy_volume INTEGER NOT NULL,
	sell_volume INTEGER NOT NULL,
	strength TEXT NOT NULL,
	UNIQUE(date, ticker, price_level)
);
`

// Store persists raw dark-pool prints and per-day aggregated levels.
type Store struct {
	db  *database.DB
	log zerolog.Logger
}

// NewStore creates the print and level tables if needed.
func NewStore(db *database.DB, log zerolog.Logger) (*Store, error) {
	if _, err := db.Exec(darkpoolSchema); err != nil {
		return nil, fmt.Errorf("create dark pool schema: %w", err)
	}
	return &Store{
		db:  db,
		log: log.With().Str("component", "darkpool_store").Logger(),
	}, nil
}

// PrintRow is one persisted dark-pool print.
type PrintRow struct {
	Timestamp string  `json:"timestamp"`
	Price     float64 `json:"price"`
	Size      int64   `json:"size"`
	Notional  float64 `json:"notional"`
	Side      Side    `json:"side"`
	Exchange  int     `json:"exchange"`
	TRFID     int64   `json:"trf_id"`
}

// SavePrints appends prints, silently skipping ones already recorded.
func (s *Store) SavePrints(ticker string, prints []PrintRow) error {
	for _, p := range prints {
		_, err := s.db.Exec(`
			INSERT OR IGNORE INTO dark_pool_prints (timestamp, ticker, price, size, notional, side, exchange, trf_id)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			p.Timestamp, ticker, p.Price, p.Size, p.Notional, string(p.Side), p.Exchange, p.TRFID,
		)
		if err != nil {
			return fmt.Errorf("insert dark pool print: %w", err)
		}
	}
	return nil
}

// RecentPrints returns the newest prints first.
func (s *Store) RecentPrints(ticker string, limit int) ([]PrintRow, error) {
	rows, err := s.db.Query(`
		SELECT timestamp, price, size, notional, side, exchange, trf_id
		FROM dark_pool_prints WHERE ticker = ? ORDER BY id DESC LIMIT ?`, ticker, limit)
	if err != nil {
		return nil, fmt.Errorf("query dark pool prints: %w", err)
	}
	defer rows.Close()

	var out []PrintRow
	for rows.Next() {
		var p PrintRow
		var side string
		if err := rows.Scan(&p.Timestamp, &p.Price, &p.Size, &p.Notional, &side, &p.Exchange, &p.TRFID); err != nil {
			return nil, fmt.Errorf("scan dark pool print: %w", err)
		}
		p.Side = Side(side)
		out = append(out, p)
	}
	return out, rows.Err()
}

// LevelRow is one per-day aggregated price level.
type LevelRow struct {
	PriceLevel    float64  `json:"price_level"`
	TotalVolume   int64    `json:"total_volume"`
	TotalNotional float64  `json:"total_notional"`
	TradeCount    int      `json:"trade_count"`
	BuyVolume     int64    `json:"buy_volume"`
	SellVolume    int64    `json:"sell_volume"`
	Strength      Strength `json:"strength"`
}

// UpsertLevels writes the day's cluster state; the latest mapping tick
// wins per (date, ticker, level).
func (s *Store) UpsertLevels(date, ticker string, levels []LevelRow) error {
	for _, l := range levels {
		_, err := s.db.Exec(`
			INSERT INTO dark_pool_levels (date, ticker, price_level, total_volume, total_notional, trade_count, buy_volume, sell_volume, strength)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(date, ticker, price_level) DO UPDATE SET
				total_volume = excluded.total_volume,
				total_notional = excluded.total_notional,
				trade_count = excluded.trade_count,
				buy_volume = excluded.buy_volume,
				sell_volume = excluded.sell_volume,
				strength = excluded.strength`,
			date, ticker, l.PriceLevel, l.TotalVolume, l.TotalNotional, l.TradeCount, l.BuyVolume, l.SellVolume, string(l.Strength),
		)
		if err != nil {
			return fmt.Errorf("upsert dark pool level: %w", err)
		}
	}
	return nil
}

// LevelsForDate returns a day's levels, heaviest notional first.
func (s *Store) LevelsForDate(date, ticker string) ([]LevelRow, error) {
	rows, err := s.db.Query(`
		SELECT price_level, total_volume, total_notional, trade_count, buy_volume, sell_volume, strength
		FROM dark_pool_levels WHERE date = ? AND ticker = ? ORDER BY total_notional DESC`, date, ticker)
	if err != nil {
		return nil, fmt.Errorf("query dark pool levels: %w", err)
	}
	defer rows.Close()

	var out []LevelRow
	for rows.Next() {
		var l LevelRow
		var strength string
		if err := rows.Scan(&l.PriceLevel, &l.TotalVolume, &l.TotalNotional, &l.TradeCount, &l.BuyVolume, &l.SellVolume, &strength); err != nil {
			return nil, fmt.Errorf("scan dark pool level: %w", err)
		}
		l.Strength = Strength(strength)
		out = append(out, l)
	}
	return out, rows.Err()
}
