// Package metrics registers Prometheus metrics for the analyzer and serves
// them over HTTP.
package metrics

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the indicator pipeline.
type Metrics struct {
	// Recompute orchestrator
	RecomputeRuns    *prometheus.CounterVec // labels: kind=all|since|one
	RecomputeDur     prometheus.Histogram
	SymbolsProcessed prometheus.Counter
	SymbolsSkipped   *prometheus.CounterVec // labels: reason=insufficient_data|locked
	SymbolErrors     prometheus.Counter
	BarsUpserted     prometheus.Counter
	GoldenCrossDays  prometheus.Gauge // golden-cross rows across the last full run

	// Ingestion
	IngestRuns     prometheus.Counter
	IngestBars     prometheus.Counter
	IngestFailures prometheus.Counter
	FetchDur       prometheus.Histogram

	// Store
	UpsertDur prometheus.Histogram
}

// NewMetrics registers and returns all Prometheus metrics.
func NewMetrics() *Metrics {
	m := &Metrics{
		RecomputeRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "analyzer_recompute_runs_total",
			Help: "Recompute runs started (by kind)",
		}, []string{"kind"}),
		RecomputeDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "analyzer_recompute_duration_seconds",
			Help:    "Duration of full recompute runs",
			Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}),
		SymbolsProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "analyzer_symbols_processed_total",
			Help: "Symbols recomputed with sufficient data",
		}),
		SymbolsSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "analyzer_symbols_skipped_total",
			Help: "Symbols skipped during recompute (by reason)",
		}, []string{"reason"}),
		SymbolErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "analyzer_symbol_errors_total",
			Help: "Per-symbol recompute failures",
		}),
		BarsUpserted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "analyzer_bars_upserted_total",
			Help: "Daily bars written back with indicator fields",
		}),
		GoldenCrossDays: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "analyzer_golden_cross_days",
			Help: "Golden-cross rows observed in the last completed run",
		}),

		IngestRuns: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "analyzer_ingest_runs_total",
			Help: "Ingestion cycles started",
		}),
		IngestBars: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "analyzer_ingest_bars_total",
			Help: "Daily bars ingested",
		}),
		IngestFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "analyzer_ingest_failures_total",
			Help: "Per-symbol ingestion failures",
		}),
		FetchDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "analyzer_fetch_duration_seconds",
			Help:    "Broker historical-data fetch latency per symbol",
			Buckets: prometheus.DefBuckets,
		}),

		UpsertDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "analyzer_upsert_duration_seconds",
			Help:    "SQLite batch upsert latency",
			Buckets: prometheus.DefBuckets,
		}),
	}

	prometheus.MustRegister(
		m.RecomputeRuns, m.RecomputeDur, m.SymbolsProcessed, m.SymbolsSkipped,
		m.SymbolErrors, m.BarsUpserted, m.GoldenCrossDays,
		m.IngestRuns, m.IngestBars, m.IngestFailures, m.FetchDur,
		m.UpsertDur,
	)
	return m
}

// Serve exposes /metrics on addr until ctx is cancelled.
func Serve(ctx context.Context, addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		srv.Shutdown(shutCtx)
	}()

	log.Printf("[metrics] serving on %s/metrics", addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Printf("[metrics] server error: %v", err)
	}
}
