// Package ingest pulls daily OHLCV bars into the store: from the broker API
// in production, from a deterministic generator in development. Day-over-day
// change fields are computed here, at the write boundary.
package ingest

import (
	"context"
	"fmt"
	"log"
	"sort"
	"time"

	"stock-analyzer/internal/metrics"
	"stock-analyzer/internal/model"
)

// Fetcher retrieves daily bars for one instrument over a date range.
type Fetcher interface {
	FetchDaily(ctx context.Context, inst model.Instrument, from, to time.Time) ([]*model.DailyBar, error)
}

// Store is the subset of the bar store the ingestor needs.
type Store interface {
	LatestBySymbol(ctx context.Context, symbol string) (*model.DailyBar, error)
	LastDateBySymbol(ctx context.Context, symbol string) (time.Time, bool, error)
	UpsertBatch(ctx context.Context, bars []*model.DailyBar) error
}

// Config tunes the ingestor.
type Config struct {
	// BackfillDays is how far back to fetch for a symbol with no stored
	// bars. 400 calendar days comfortably covers the 200-bar window.
	BackfillDays int
}

func (c *Config) fill() {
	if c.BackfillDays <= 0 {
		c.BackfillDays = 400
	}
}

// Ingestor fetches and persists daily bars for a symbol universe.
type Ingestor struct {
	fetcher  Fetcher
	store    Store
	universe *model.Universe
	prom     *metrics.Metrics
	cfg      Config
}

// New creates an Ingestor.
func New(fetcher Fetcher, store Store, universe *model.Universe, cfg Config) *Ingestor {
	cfg.fill()
	return &Ingestor{fetcher: fetcher, store: store, universe: universe, cfg: cfg}
}

// WithMetrics sets the Prometheus metrics sink.
func (i *Ingestor) WithMetrics(m *metrics.Metrics) *Ingestor {
	i.prom = m
	return i
}

// Result summarizes one ingest run.
type Result struct {
	Symbols  int               `json:"symbols"`
	Bars     int               `json:"bars"`
	Failures map[string]string `json:"failures,omitempty"`
}

// Run fetches bars up to and including asOf for every instrument in the
// universe. Symbols already holding bars get an incremental fetch from the
// day after their newest bar; empty symbols get a full backfill. Per-symbol
// failures are collected, not fatal.
func (i *Ingestor) Run(ctx context.Context, asOf time.Time) (*Result, error) {
	// Normalize to a civil UTC date: callers pass exchange-local (IST)
	// midnights, stored bar dates are UTC midnights.
	asOf = model.Day(asOf.Year(), asOf.Month(), asOf.Day())

	start := time.Now()
	res := &Result{Failures: make(map[string]string)}
	if i.prom != nil {
		i.prom.IngestRuns.Inc()
	}

	for _, inst := range i.universe.Instruments() {
		if ctx.Err() != nil {
			return res, ctx.Err()
		}
		n, err := i.ingestSymbol(ctx, inst, asOf)
		if err != nil {
			log.Printf("[ingest] %s failed: %v", inst.Symbol, err)
			res.Failures[inst.Symbol] = err.Error()
			if i.prom != nil {
				i.prom.IngestFailures.Inc()
			}
			continue
		}
		res.Symbols++
		res.Bars += n
	}

	log.Printf("[ingest] run done in %v: %d symbols, %d bars, %d failures",
		time.Since(start).Round(time.Millisecond), res.Symbols, res.Bars, len(res.Failures))
	return res, nil
}

func (i *Ingestor) ingestSymbol(ctx context.Context, inst model.Instrument, asOf time.Time) (int, error) {
	lastDate, hasBars, err := i.store.LastDateBySymbol(ctx, inst.Symbol)
	if err != nil {
		return 0, fmt.Errorf("last date: %w", err)
	}

	from := asOf.AddDate(0, 0, -i.cfg.BackfillDays)
	var prev *model.DailyBar
	if hasBars {
		if !lastDate.Before(asOf) {
			return 0, nil // already current
		}
		from = lastDate.AddDate(0, 0, 1)
		prev, err = i.store.LatestBySymbol(ctx, inst.Symbol)
		if err != nil {
			return 0, fmt.Errorf("latest bar: %w", err)
		}
	}

	fetchStart := time.Now()
	bars, err := i.fetcher.FetchDaily(ctx, inst, from, asOf)
	if err != nil {
		return 0, fmt.Errorf("fetch: %w", err)
	}
	if i.prom != nil {
		i.prom.FetchDur.Observe(time.Since(fetchStart).Seconds())
	}
	if len(bars) == 0 {
		return 0, nil
	}

	sort.SliceStable(bars, func(a, b int) bool { return bars[a].Date.Before(bars[b].Date) })
	ApplyDayChanges(bars, prev)

	now := time.Now().UTC()
	for _, b := range bars {
		b.Symbol = inst.Symbol
		b.UpdatedAt = now
	}
	if err := i.store.UpsertBatch(ctx, bars); err != nil {
		return 0, fmt.Errorf("save: %w", err)
	}
	if i.prom != nil {
		i.prom.IngestBars.Add(float64(len(bars)))
	}
	return len(bars), nil
}

// ApplyDayChanges fills PriceChangeP and PctChangeBps on each bar from its
// predecessor's close. prev is the bar immediately before bars[0], nil when
// bars[0] is the first ever: its change fields stay zero.
func ApplyDayChanges(bars []*model.DailyBar, prev *model.DailyBar) {
	for _, b := range bars {
		if prev != nil && prev.Close > 0 {
			b.PriceChangeP = b.Close - prev.Close
			b.PctChangeBps = halfUpDiv((b.Close-prev.Close)*10000, prev.Close)
		} else {
			b.PriceChangeP = 0
			b.PctChangeBps = 0
		}
		prev = b
	}
}

// halfUpDiv divides num by den (den > 0) rounding half away from zero.
func halfUpDiv(num, den int64) int64 {
	if num >= 0 {
		return (2*num + den) / (2 * den)
	}
	return -((-2*num + den) / (2 * den))
}
