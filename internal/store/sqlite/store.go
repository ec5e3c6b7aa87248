// Package sqlite persists daily bars and job execution records. One file,
// WAL mode, single writer connection; batch writes run in one transaction
// with a prepared statement.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	"stock-analyzer/internal/model"

	_ "github.com/mattn/go-sqlite3"
)

// Config configures the SQLite store.
type Config struct {
	DBPath string // path to SQLite database file, e.g. "data/analyzer.db"
}

// Store is the SQLite-backed bar store. It implements model.BarStore.
type Store struct {
	db *sql.DB
}

// DB returns the underlying sql.DB for health checks.
func (s *Store) DB() *sql.DB { return s.db }

// New opens the database, enables WAL mode, and creates the schema.
func New(cfg Config) (*Store, error) {
	db, err := sql.Open("sqlite3", cfg.DBPath+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("sqlite open: %w", err)
	}

	// Single writer; SQLite serializes writes anyway.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := createSchema(db); err != nil {
		return nil, fmt.Errorf("sqlite schema: %w", err)
	}

	log.Printf("[sqlite] opened database at %s", cfg.DBPath)
	return &Store{db: db}, nil
}

func createSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS daily_bars (
			symbol          TEXT    NOT NULL,
			date            TEXT    NOT NULL,
			open            INTEGER NOT NULL,
			high            INTEGER NOT NULL,
			low             INTEGER NOT NULL,
			close           INTEGER NOT NULL,
			volume          INTEGER NOT NULL,
			pct_change_bps  INTEGER NOT NULL DEFAULT 0,
			price_change    INTEGER NOT NULL DEFAULT 0,
			ma50            INTEGER,
			ma100           INTEGER,
			ma200           INTEGER,
			signal_50       TEXT,
			signal_100      TEXT,
			signal_200      TEXT,
			cross_signal    TEXT,
			signal_strength TEXT,
			updated_at      INTEGER NOT NULL DEFAULT 0,
			PRIMARY KEY (symbol, date)
		);

		CREATE INDEX IF NOT EXISTS idx_daily_bars_date ON daily_bars (date);
		CREATE INDEX IF NOT EXISTS idx_daily_bars_cross ON daily_bars (cross_signal, date);

		CREATE TABLE IF NOT EXISTS job_executions (
			id           INTEGER PRIMARY KEY AUTOINCREMENT,
			job_name     TEXT    NOT NULL,
			status       TEXT    NOT NULL,
			started_at   INTEGER NOT NULL,
			finished_at  INTEGER,
			records      INTEGER NOT NULL DEFAULT 0,
			error        TEXT
		);

		CREATE INDEX IF NOT EXISTS idx_job_executions_name ON job_executions (job_name, started_at);
	`)
	return err
}

const barColumns = `symbol, date, open, high, low, close, volume, pct_change_bps, price_change,
	ma50, ma100, ma200, signal_50, signal_100, signal_200, cross_signal, signal_strength, updated_at`

// UpsertBatch writes bars in a single transaction. The whole batch commits
// or none of it does.
func (s *Store) UpsertBatch(ctx context.Context, bars []*model.DailyBar) error {
	if len(bars) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite begin: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO daily_bars (`+barColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("sqlite prepare: %w", err)
	}
	defer stmt.Close()

	for _, b := range bars {
		_, err := stmt.ExecContext(ctx,
			b.Symbol, b.DateKey(), b.Open, b.High, b.Low, b.Close, b.Volume,
			b.PctChangeBps, b.PriceChangeP,
			nullableInt(b.MA50), nullableInt(b.MA100), nullableInt(b.MA200),
			nullableString(string(b.Signal50)), nullableString(string(b.Signal100)), nullableString(string(b.Signal200)),
			nullableString(string(b.CrossSignal)), nullableString(string(b.SignalStrength)),
			b.UpdatedAt.Unix())
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("sqlite upsert %s: %w", b.Key(), err)
		}
	}

	return tx.Commit()
}

// FindBySymbol returns every bar for a symbol ordered by date ascending.
func (s *Store) FindBySymbol(ctx context.Context, symbol string) ([]*model.DailyBar, error) {
	return s.queryBars(ctx, `
		SELECT `+barColumns+` FROM daily_bars
		WHERE symbol = ?
		ORDER BY date ASC
	`, symbol)
}

// FindBySymbolAndDateRange returns bars for a symbol within [from, to],
// ordered by date ascending.
func (s *Store) FindBySymbolAndDateRange(ctx context.Context, symbol string, from, to time.Time) ([]*model.DailyBar, error) {
	return s.queryBars(ctx, `
		SELECT `+barColumns+` FROM daily_bars
		WHERE symbol = ? AND date >= ? AND date <= ?
		ORDER BY date ASC
	`, symbol, from.Format("2006-01-02"), to.Format("2006-01-02"))
}

// DistinctSymbols lists every symbol with at least one bar, sorted.
func (s *Store) DistinctSymbols(ctx context.Context) ([]string, error) {
	return s.querySymbols(ctx, `SELECT DISTINCT symbol FROM daily_bars ORDER BY symbol ASC`)
}

// CountBySymbol returns the number of stored bars for a symbol.
func (s *Store) CountBySymbol(ctx context.Context, symbol string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM daily_bars WHERE symbol = ?`, symbol).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("sqlite count %s: %w", symbol, err)
	}
	return n, nil
}

// SymbolsWithBarsSince lists symbols having at least one bar dated at or
// after cutoff.
func (s *Store) SymbolsWithBarsSince(ctx context.Context, cutoff time.Time) ([]string, error) {
	return s.querySymbols(ctx, `
		SELECT DISTINCT symbol FROM daily_bars
		WHERE date >= ?
		ORDER BY symbol ASC
	`, cutoff.Format("2006-01-02"))
}

// LatestBySymbol returns the most recent bar for a symbol, or nil when the
// symbol has no bars.
func (s *Store) LatestBySymbol(ctx context.Context, symbol string) (*model.DailyBar, error) {
	bars, err := s.queryBars(ctx, `
		SELECT `+barColumns+` FROM daily_bars
		WHERE symbol = ?
		ORDER BY date DESC
		LIMIT 1
	`, symbol)
	if err != nil {
		return nil, err
	}
	if len(bars) == 0 {
		return nil, nil
	}
	return bars[0], nil
}

// LastDateBySymbol returns the date of the most recent bar for a symbol.
// The second return is false when the symbol has no bars.
func (s *Store) LastDateBySymbol(ctx context.Context, symbol string) (time.Time, bool, error) {
	var key sql.NullString
	err := s.db.QueryRowContext(ctx, `SELECT MAX(date) FROM daily_bars WHERE symbol = ?`, symbol).Scan(&key)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("sqlite last date %s: %w", symbol, err)
	}
	if !key.Valid {
		return time.Time{}, false, nil
	}
	day, err := model.ParseDay(key.String)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("sqlite last date %s: %w", symbol, err)
	}
	return day, true, nil
}

// FindByDateAndCross returns bars on a given date carrying the given
// crossover label, ordered by symbol.
func (s *Store) FindByDateAndCross(ctx context.Context, day time.Time, cross model.CrossSignal) ([]*model.DailyBar, error) {
	return s.queryBars(ctx, `
		SELECT `+barColumns+` FROM daily_bars
		WHERE date = ? AND cross_signal = ?
		ORDER BY symbol ASC
	`, day.Format("2006-01-02"), string(cross))
}

// CountAll returns total stored bars across all symbols.
func (s *Store) CountAll(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM daily_bars`).Scan(&n); err != nil {
		return 0, fmt.Errorf("sqlite count all: %w", err)
	}
	return n, nil
}

func (s *Store) queryBars(ctx context.Context, query string, args ...interface{}) ([]*model.DailyBar, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite query bars: %w", err)
	}
	defer rows.Close()

	var bars []*model.DailyBar
	for rows.Next() {
		b, err := scanBar(rows)
		if err != nil {
			return nil, err
		}
		bars = append(bars, b)
	}
	return bars, rows.Err()
}

func (s *Store) querySymbols(ctx context.Context, query string, args ...interface{}) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite query symbols: %w", err)
	}
	defer rows.Close()

	var symbols []string
	for rows.Next() {
		var sym string
		if err := rows.Scan(&sym); err != nil {
			return nil, fmt.Errorf("sqlite scan symbol: %w", err)
		}
		symbols = append(symbols, sym)
	}
	return symbols, rows.Err()
}

func scanBar(rows *sql.Rows) (*model.DailyBar, error) {
	var (
		b                              model.DailyBar
		dateKey                        string
		ma50, ma100, ma200             sql.NullInt64
		s50, s100, s200, cross, streng sql.NullString
		updatedAt                      int64
	)
	err := rows.Scan(&b.Symbol, &dateKey, &b.Open, &b.High, &b.Low, &b.Close, &b.Volume,
		&b.PctChangeBps, &b.PriceChangeP,
		&ma50, &ma100, &ma200, &s50, &s100, &s200, &cross, &streng, &updatedAt)
	if err != nil {
		return nil, fmt.Errorf("sqlite scan bar: %w", err)
	}

	b.Date, err = model.ParseDay(dateKey)
	if err != nil {
		return nil, fmt.Errorf("sqlite bar %s: %w", b.Symbol, err)
	}
	if ma50.Valid {
		b.MA50 = &ma50.Int64
	}
	if ma100.Valid {
		b.MA100 = &ma100.Int64
	}
	if ma200.Valid {
		b.MA200 = &ma200.Int64
	}
	b.Signal50 = model.Signal(s50.String)
	b.Signal100 = model.Signal(s100.String)
	b.Signal200 = model.Signal(s200.String)
	b.CrossSignal = model.CrossSignal(cross.String)
	b.SignalStrength = model.SignalStrength(streng.String)
	if updatedAt > 0 {
		b.UpdatedAt = time.Unix(updatedAt, 0).UTC()
	}
	return &b, nil
}

func nullableInt(v *int64) interface{} {
	if v == nil {
		return nil
	}
	return *v
}

func nullableString(v string) interface{} {
	if v == "" {
		return nil
	}
	return v
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}
