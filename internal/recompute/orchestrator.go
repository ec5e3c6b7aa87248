// Package recompute orchestrates indicator recomputation across the symbol
// universe: eligibility checks, the load → compute → classify → write
// pipeline, per-symbol fault isolation, and run statistics.
package recompute

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"stock-analyzer/internal/indicator"
	"stock-analyzer/internal/metrics"
	"stock-analyzer/internal/model"
	"stock-analyzer/internal/notification"
	"stock-analyzer/internal/series"
)

// ErrSymbolLocked is returned by RecomputeOne when another run already holds
// the symbol's advisory lock. RecomputeAll treats it as a skip, not a failure.
var ErrSymbolLocked = errors.New("symbol recompute already in flight")

// Config tunes the orchestrator.
type Config struct {
	// MinHistory is the minimum clean-series length before a symbol is
	// eligible for recomputation. Defaults to indicator.MinHistory (50).
	MinHistory int

	// Workers bounds concurrent symbol recomputes within one run. Symbols
	// share no mutable state, so the limit only protects the store.
	Workers int
}

func (c *Config) fill() {
	if c.MinHistory <= 0 {
		c.MinHistory = indicator.MinHistory
	}
	if c.Workers <= 0 {
		c.Workers = 4
	}
}

// Orchestrator drives recomputation runs. Locker, publisher, notifier, and
// metrics are optional; nil disables the corresponding behavior.
type Orchestrator struct {
	store    model.BarStore
	loader   *series.Loader
	locker   model.SymbolLocker
	publish  model.SignalPublisher
	notifier notification.Notifier
	prom     *metrics.Metrics
	cfg      Config
}

// New creates an Orchestrator over the given store.
func New(store model.BarStore, cfg Config) *Orchestrator {
	cfg.fill()
	return &Orchestrator{
		store:  store,
		loader: series.NewLoader(store),
		cfg:    cfg,
	}
}

// WithLocker sets the per-symbol advisory locker.
func (o *Orchestrator) WithLocker(l model.SymbolLocker) *Orchestrator {
	o.locker = l
	return o
}

// WithPublisher sets the latest-signal publisher.
func (o *Orchestrator) WithPublisher(p model.SignalPublisher) *Orchestrator {
	o.publish = p
	return o
}

// WithNotifier sets the alert notifier for crossover transitions.
func (o *Orchestrator) WithNotifier(n notification.Notifier) *Orchestrator {
	o.notifier = n
	return o
}

// WithMetrics sets the Prometheus metrics sink.
func (o *Orchestrator) WithMetrics(m *metrics.Metrics) *Orchestrator {
	o.prom = m
	return o
}

// SymbolResult summarizes one symbol's recompute.
type SymbolResult struct {
	Symbol          string `json:"symbol"`
	Bars            int    `json:"bars"`
	With50          int    `json:"with_ma50"`
	With100         int    `json:"with_ma100"`
	With200         int    `json:"with_ma200"`
	GoldenCrossDays int    `json:"golden_cross_days"`
	Skipped         bool   `json:"skipped,omitempty"` // insufficient history
}

// RecomputeOne runs the full pipeline for a single symbol: load the clean
// series, compute the three window averages, classify every bar, and batch
// upsert the whole series back. Always full history — simple moving
// averages need the entire series to stay correct at every index.
func (o *Orchestrator) RecomputeOne(ctx context.Context, symbol string) (*SymbolResult, error) {
	if o.locker != nil {
		ok, err := o.locker.TryLock(ctx, symbol)
		if err != nil {
			return nil, fmt.Errorf("lock %s: %w", symbol, err)
		}
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrSymbolLocked, symbol)
		}
		defer func() {
			if err := o.locker.Unlock(context.WithoutCancel(ctx), symbol); err != nil {
				log.Printf("[recompute] %s: unlock: %v", symbol, err)
			}
		}()
	}

	bars, err := o.loader.Load(ctx, symbol)
	if err != nil {
		return nil, err
	}

	if len(bars) < o.cfg.MinHistory {
		log.Printf("[recompute] %s: skipped, %d bars (need %d+)", symbol, len(bars), o.cfg.MinHistory)
		return &SymbolResult{Symbol: symbol, Bars: len(bars), Skipped: true}, nil
	}

	last := bars[len(bars)-1]
	prevCross := last.CrossSignal

	indicator.ComputeIndicators(bars)
	now := time.Now().UTC()
	for _, bar := range bars {
		indicator.Classify(bar)
		bar.UpdatedAt = now
	}

	start := time.Now()
	if err := o.store.UpsertBatch(ctx, bars); err != nil {
		return nil, fmt.Errorf("%w: save %s: %v", series.ErrStoreUnavailable, symbol, err)
	}
	if o.prom != nil {
		o.prom.UpsertDur.Observe(time.Since(start).Seconds())
		o.prom.BarsUpserted.Add(float64(len(bars)))
	}

	res := &SymbolResult{Symbol: symbol, Bars: len(bars)}
	for _, bar := range bars {
		if bar.MA50 != nil {
			res.With50++
		}
		if bar.MA100 != nil {
			res.With100++
		}
		if bar.MA200 != nil {
			res.With200++
		}
		if bar.CrossSignal == model.GoldenCross {
			res.GoldenCrossDays++
		}
	}
	log.Printf("[recompute] %s: %d bars, ma50=%d ma100=%d ma200=%d goldenCross=%d",
		symbol, res.Bars, res.With50, res.With100, res.With200, res.GoldenCrossDays)

	o.afterSymbol(ctx, symbol, last, prevCross)
	return res, nil
}

// afterSymbol publishes the latest derived state and alerts on crossover
// transitions of the most recent bar.
func (o *Orchestrator) afterSymbol(ctx context.Context, symbol string, last *model.DailyBar, prevCross model.CrossSignal) {
	if o.publish != nil {
		if err := o.publish.PublishLatest(ctx, last); err != nil {
			log.Printf("[recompute] %s: publish latest: %v", symbol, err)
		}
	}

	if o.notifier == nil || last.CrossSignal == prevCross {
		return
	}
	if last.CrossSignal != model.GoldenCross && last.CrossSignal != model.DeathCross {
		return
	}
	level := notification.AlertInfo
	if last.CrossSignal == model.DeathCross {
		level = notification.AlertWarning
	}
	alert := notification.Alert{
		Level:  level,
		Symbol: symbol,
		Title:  fmt.Sprintf("%s: %s", symbol, last.CrossSignal),
		Message: fmt.Sprintf("%s on %s: close %s, ma100 %s, ma200 %s (strength %s)",
			last.CrossSignal, last.DateKey(), model.FormatPaise(last.Close),
			maString(last.MA100), maString(last.MA200), last.SignalStrength),
	}
	if err := o.notifier.Send(ctx, alert); err != nil {
		log.Printf("[recompute] %s: notify: %v", symbol, err)
	}
}

func maString(ma *int64) string {
	if ma == nil {
		return "-"
	}
	return model.FormatPaise(*ma)
}

// RecomputeAll recomputes every symbol present in the store. Store failure
// during symbol enumeration is fatal to the run; a single symbol's failure
// is recorded in the summary and the run continues.
func (o *Orchestrator) RecomputeAll(ctx context.Context) (*Summary, error) {
	symbols, err := o.store.DistinctSymbols(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: enumerate symbols: %v", series.ErrStoreUnavailable, err)
	}
	if o.prom != nil {
		o.prom.RecomputeRuns.WithLabelValues("all").Inc()
	}
	return o.runSymbols(ctx, "all", symbols), nil
}

// RecomputeSince recomputes every symbol with at least one bar dated at or
// after cutoff. Each qualifying symbol still gets a full-history recompute:
// a tail-only pass would silently produce wrong averages at the window
// boundary.
func (o *Orchestrator) RecomputeSince(ctx context.Context, cutoff time.Time) (*Summary, error) {
	symbols, err := o.store.SymbolsWithBarsSince(ctx, cutoff)
	if err != nil {
		return nil, fmt.Errorf("%w: enumerate symbols since %s: %v",
			series.ErrStoreUnavailable, cutoff.Format("2006-01-02"), err)
	}
	if o.prom != nil {
		o.prom.RecomputeRuns.WithLabelValues("since").Inc()
	}
	return o.runSymbols(ctx, "since "+cutoff.Format("2006-01-02"), symbols), nil
}

// runSymbols drives the bounded worker pool over the symbol list and
// aggregates the run summary.
func (o *Orchestrator) runSymbols(ctx context.Context, kind string, symbols []string) *Summary {
	start := time.Now()
	summary := NewSummary()

	var wg sync.WaitGroup
	sem := make(chan struct{}, o.cfg.Workers)

	for _, symbol := range symbols {
		if ctx.Err() != nil {
			break
		}
		wg.Add(1)
		sem <- struct{}{}
		go func(symbol string) {
			defer wg.Done()
			defer func() { <-sem }()

			res, err := o.RecomputeOne(ctx, symbol)
			switch {
			case errors.Is(err, ErrSymbolLocked):
				summary.recordLocked(symbol)
				if o.prom != nil {
					o.prom.SymbolsSkipped.WithLabelValues("locked").Inc()
				}
			case err != nil:
				log.Printf("[recompute] %s failed: %v", symbol, err)
				summary.recordError(symbol, err)
				if o.prom != nil {
					o.prom.SymbolErrors.Inc()
				}
			case res.Skipped:
				summary.recordSkipped(symbol)
				if o.prom != nil {
					o.prom.SymbolsSkipped.WithLabelValues("insufficient_data").Inc()
				}
			default:
				summary.recordProcessed(res)
				if o.prom != nil {
					o.prom.SymbolsProcessed.Inc()
				}
			}
		}(symbol)
	}
	wg.Wait()

	summary.Duration = time.Since(start)
	if o.prom != nil {
		o.prom.RecomputeDur.Observe(summary.Duration.Seconds())
		o.prom.GoldenCrossDays.Set(float64(summary.GoldenCrossDays))
	}

	log.Printf("[recompute] run (%s) done in %v: %d processed, %d sufficient, %d skipped, %d errors",
		kind, summary.Duration.Round(time.Millisecond),
		summary.Processed, summary.SufficientData, summary.SkippedInsufficient, len(summary.Errors))
	return summary
}
