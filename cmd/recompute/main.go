// Command recompute is a one-shot CLI for indicator recomputation: the
// whole store, one symbol, or symbols touched since a cutoff date.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"os"
	"time"

	"stock-analyzer/config"
	"stock-analyzer/internal/model"
	"stock-analyzer/internal/recompute"
	redisstore "stock-analyzer/internal/store/redis"
	sqlitestore "stock-analyzer/internal/store/sqlite"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	var (
		symbol  = flag.String("symbol", "", "recompute a single symbol")
		since   = flag.String("since", "", "recompute symbols with bars since this date (YYYY-MM-DD)")
		workers = flag.Int("workers", 4, "concurrent symbol recomputes")
		noLock  = flag.Bool("no-lock", false, "skip Redis advisory locks")
		timeout = flag.Duration("timeout", 30*time.Minute, "overall run timeout")
	)
	flag.Parse()

	cfg := config.Load()

	store, err := sqlitestore.New(sqlitestore.Config{DBPath: cfg.SQLitePath})
	if err != nil {
		log.Fatalf("[recompute] sqlite init failed: %v", err)
	}
	defer store.Close()

	orch := recompute.New(store, recompute.Config{Workers: *workers})
	if !*noLock {
		cache, err := redisstore.New(redisstore.Config{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err != nil {
			log.Printf("[recompute] WARNING: redis unavailable, running unlocked: %v", err)
		} else {
			defer cache.Close()
			orch.WithLocker(cache).WithPublisher(cache)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	switch {
	case *symbol != "":
		res, err := orch.RecomputeOne(ctx, *symbol)
		if err != nil {
			log.Fatalf("[recompute] %s: %v", *symbol, err)
		}
		printJSON(res)

	case *since != "":
		cutoff, err := model.ParseDay(*since)
		if err != nil {
			log.Fatalf("[recompute] -since must be YYYY-MM-DD: %v", err)
		}
		summary, err := orch.RecomputeSince(ctx, cutoff)
		if err != nil {
			log.Fatalf("[recompute] %v", err)
		}
		printJSON(summary)
		exitOnErrors(summary)

	default:
		summary, err := orch.RecomputeAll(ctx)
		if err != nil {
			log.Fatalf("[recompute] %v", err)
		}
		printJSON(summary)
		exitOnErrors(summary)
	}
}

func printJSON(v interface{}) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.Encode(v)
}

func exitOnErrors(summary *recompute.Summary) {
	if len(summary.Errors) > 0 {
		os.Exit(1)
	}
}
