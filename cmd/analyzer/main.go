// Command analyzer is the long-running service: daily scheduled ingest and
// recompute, HTTP query API, WebSocket stream, and Prometheus metrics.
package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"stock-analyzer/config"
	"stock-analyzer/internal/api"
	"stock-analyzer/internal/ingest"
	"stock-analyzer/internal/jobs"
	"stock-analyzer/internal/logger"
	"stock-analyzer/internal/metrics"
	"stock-analyzer/internal/model"
	"stock-analyzer/internal/notification"
	"stock-analyzer/internal/recompute"
	"stock-analyzer/internal/scheduler"
	redisstore "stock-analyzer/internal/store/redis"
	sqlitestore "stock-analyzer/internal/store/sqlite"
	"stock-analyzer/pkg/kiteconnect"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds | log.Lshortfile)
	logger.Init("analyzer", slog.LevelInfo)
	slog.Info("starting")

	cfg := config.Load()

	universe, err := model.LoadUniverse(cfg.UniverseFile)
	if err != nil {
		log.Fatalf("[analyzer] universe: %v", err)
	}
	log.Printf("[analyzer] tracking %d instruments", universe.Size())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	// ---- Storage ----
	os.MkdirAll(filepath.Dir(cfg.SQLitePath), 0o755)
	store, err := sqlitestore.New(sqlitestore.Config{DBPath: cfg.SQLitePath})
	if err != nil {
		log.Fatalf("[analyzer] sqlite init failed: %v", err)
	}
	defer store.Close()

	// Redis is advisory: locks and the latest-signal cache. The service
	// runs without it.
	var cache *redisstore.Cache
	cache, err = redisstore.New(redisstore.Config{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err != nil {
		log.Printf("[analyzer] WARNING: redis init failed: %v (continuing without redis)", err)
		cache = nil
	} else {
		defer cache.Close()
	}

	// ---- Metrics ----
	prom := metrics.NewMetrics()
	go metrics.Serve(ctx, cfg.MetricsAddr)

	// ---- Notifier ----
	var notifier notification.Notifier = notification.NewLogNotifier()
	if cfg.WebhookURL != "" {
		notifier = notification.NewWebhookNotifier(cfg.WebhookURL)
	}

	// ---- Recompute orchestrator ----
	orch := recompute.New(store, recompute.Config{Workers: cfg.Workers}).
		WithNotifier(notifier).
		WithMetrics(prom)
	if cache != nil {
		orch.WithLocker(cache).WithPublisher(cache)
	}

	// ---- Ingest ----
	var fetcher ingest.Fetcher
	if cfg.UseRealData {
		kc := kiteconnect.New(kiteconnect.Config{
			APIKey:      cfg.KiteAPIKey,
			APISecret:   cfg.KiteAPISecret,
			AccessToken: cfg.KiteAccessToken,
		})
		kc.SessionExpiryHook = func() {
			log.Println("[analyzer] kite session expired; re-login required")
			if cfg.KiteTOTPSecret != "" {
				if code, err := kiteconnect.GenerateTOTP(cfg.KiteTOTPSecret); err == nil {
					log.Printf("[analyzer] current kite TOTP: %s", code)
				}
			}
		}
		fetcher = ingest.NewKiteFetcher(kc)
		log.Println("[analyzer] using Kite historical data")
	} else {
		fetcher = ingest.NewMockFetcher()
		log.Println("[analyzer] using mock data generator")
	}
	ingestor := ingest.New(fetcher, store, universe, ingest.Config{BackfillDays: cfg.BackfillDays}).
		WithMetrics(prom)

	// ---- Scheduler ----
	tracker := jobs.NewTracker(store)
	hub := api.NewHub()
	sched := scheduler.New(ingestor, orch, tracker).
		WithNotifier(notifier).
		WithReportHook(func(report scheduler.RunReport) {
			hub.Broadcast("run_report", report)
		})
	if err := sched.Start(ctx, scheduler.Config{CronSpec: cfg.CronSpec}); err != nil {
		log.Fatalf("[analyzer] scheduler: %v", err)
	}
	defer sched.Stop()

	// ---- WebSocket fan-out ----
	go hub.StartStatusBroadcast(ctx)
	if cache != nil {
		go hub.RunSignalRelay(ctx, cache)
	}

	// ---- HTTP API ----
	server := api.NewServer(store, orch, universe, hub).
		WithPipeline(sched).
		WithTracker(tracker)
	if cache != nil {
		server.WithCache(cache)
	}

	httpSrv := &http.Server{
		Addr:         cfg.APIAddr,
		Handler:      server.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
	}
	go func() {
		log.Printf("[analyzer] api listening on %s", cfg.APIAddr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("[analyzer] api server: %v", err)
		}
	}()

	<-sigCh
	log.Println("[analyzer] shutting down...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Printf("[analyzer] api shutdown: %v", err)
	}
	log.Println("[analyzer] bye")
}
