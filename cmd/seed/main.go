// Command seed fills the store with deterministic mock history for local
// development, then runs a full recompute so every indicator is populated.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"path/filepath"
	"time"

	"stock-analyzer/config"
	"stock-analyzer/internal/ingest"
	"stock-analyzer/internal/jobs"
	"stock-analyzer/internal/markethours"
	"stock-analyzer/internal/model"
	"stock-analyzer/internal/recompute"
	sqlitestore "stock-analyzer/internal/store/sqlite"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	var (
		days    = flag.Int("days", 400, "calendar days of history to generate")
		timeout = flag.Duration("timeout", 10*time.Minute, "overall timeout")
	)
	flag.Parse()

	cfg := config.Load()

	universe, err := model.LoadUniverse(cfg.UniverseFile)
	if err != nil {
		log.Fatalf("[seed] universe: %v", err)
	}

	os.MkdirAll(filepath.Dir(cfg.SQLitePath), 0o755)
	store, err := sqlitestore.New(sqlitestore.Config{DBPath: cfg.SQLitePath})
	if err != nil {
		log.Fatalf("[seed] sqlite init failed: %v", err)
	}
	defer store.Close()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	tracker := jobs.NewTracker(store)
	ingestor := ingest.New(ingest.NewMockFetcher(), store, universe, ingest.Config{BackfillDays: *days})
	asOf := markethours.LastCompletedTradingDay(time.Now())

	err = tracker.Run(ctx, jobs.JobSeed, func(ctx context.Context) (int, error) {
		res, err := ingestor.Run(ctx, asOf)
		if err != nil {
			return 0, err
		}
		log.Printf("[seed] generated %d bars across %d symbols", res.Bars, res.Symbols)
		return res.Bars, nil
	})
	if err != nil {
		log.Fatalf("[seed] ingest: %v", err)
	}

	orch := recompute.New(store, recompute.Config{})
	summary, err := orch.RecomputeAll(ctx)
	if err != nil {
		log.Fatalf("[seed] recompute: %v", err)
	}
	log.Printf("[seed] recompute done: %d symbols, %d with indicators, %d errors",
		summary.Processed, summary.SufficientData, len(summary.Errors))
}
