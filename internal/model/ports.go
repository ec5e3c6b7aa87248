package model

import (
	"context"
	"time"
)

// ── Storage Port Interfaces ──
// These interfaces decouple the loader, orchestrator, and API layer from the
// concrete time-series store (SQLite). The store is keyed by (symbol, date).

// BarReader provides read access to stored daily bars.
type BarReader interface {
	// FindBySymbol returns every bar for a symbol, unordered.
	FindBySymbol(ctx context.Context, symbol string) ([]*DailyBar, error)

	// FindBySymbolAndDateRange returns bars for a symbol with from ≤ date ≤ to,
	// ordered ascending by date.
	FindBySymbolAndDateRange(ctx context.Context, symbol string, from, to time.Time) ([]*DailyBar, error)

	// DistinctSymbols returns every symbol with at least one stored bar.
	DistinctSymbols(ctx context.Context) ([]string, error)

	// CountBySymbol returns the number of stored bars for a symbol.
	CountBySymbol(ctx context.Context, symbol string) (int, error)

	// SymbolsWithBarsSince returns symbols that have at least one bar dated
	// at or after the cutoff.
	SymbolsWithBarsSince(ctx context.Context, cutoff time.Time) ([]string, error)
}

// BarWriter provides write access to stored daily bars.
type BarWriter interface {
	// UpsertBatch inserts or replaces bars keyed by (symbol, date) in a
	// single transaction.
	UpsertBatch(ctx context.Context, bars []*DailyBar) error
}

// BarStore combines read and write access.
type BarStore interface {
	BarReader
	BarWriter

	// Close releases underlying resources.
	Close() error
}

// SymbolLocker serializes recomputation per symbol. Callers must ensure at
// most one recompute run per symbol is in flight; concurrent runs would
// interleave stale read-modify-write cycles on the same rows.
type SymbolLocker interface {
	// TryLock attempts to acquire the symbol's recompute lock without
	// blocking. Returns false if another run holds it.
	TryLock(ctx context.Context, symbol string) (bool, error)

	// Unlock releases the symbol's recompute lock.
	Unlock(ctx context.Context, symbol string) error
}

// SignalPublisher receives the latest derived state after a symbol's
// recompute so dashboards can read it without scanning the store.
type SignalPublisher interface {
	// PublishLatest caches the most recent bar's derived signals.
	PublishLatest(ctx context.Context, bar *DailyBar) error
}
