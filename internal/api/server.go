// Package api serves the HTTP query surface and the WebSocket stream:
// health, manual recompute triggers, bar and signal queries, coverage and
// job inspection.
package api

import (
	"context"
	"net/http"
	"time"

	"stock-analyzer/internal/jobs"
	"stock-analyzer/internal/model"
	"stock-analyzer/internal/recompute"
	"stock-analyzer/internal/scheduler"
)

// Store is the read surface the handlers need. *sqlite.Store satisfies it.
type Store interface {
	model.BarReader
	LatestBySymbol(ctx context.Context, symbol string) (*model.DailyBar, error)
	FindByDateAndCross(ctx context.Context, day time.Time, cross model.CrossSignal) ([]*model.DailyBar, error)
	CountAll(ctx context.Context) (int, error)
}

// LatestCache is the optional Redis-backed latest-signal cache.
type LatestCache interface {
	Latest(ctx context.Context, symbol string) ([]byte, error)
	Ping(ctx context.Context) error
}

// Pipeline triggers a full ingest-and-recompute run.
type Pipeline interface {
	RunOnce(ctx context.Context) scheduler.RunReport
}

// Server holds handler dependencies. cache, pipeline, and tracker may be
// nil; the corresponding endpoints degrade or report unavailable.
type Server struct {
	store    Store
	orch     *recompute.Orchestrator
	universe *model.Universe
	hub      *Hub

	cache    LatestCache
	pipeline Pipeline
	tracker  *jobs.Tracker

	start time.Time
}

// NewServer creates a Server.
func NewServer(store Store, orch *recompute.Orchestrator, universe *model.Universe, hub *Hub) *Server {
	return &Server{
		store:    store,
		orch:     orch,
		universe: universe,
		hub:      hub,
		start:    time.Now(),
	}
}

// WithCache sets the latest-signal cache.
func (s *Server) WithCache(c LatestCache) *Server {
	s.cache = c
	return s
}

// WithPipeline sets the manual pipeline trigger.
func (s *Server) WithPipeline(p Pipeline) *Server {
	s.pipeline = p
	return s
}

// WithTracker sets the job execution tracker.
func (s *Server) WithTracker(t *jobs.Tracker) *Server {
	s.tracker = t
	return s
}

// Router builds the HTTP mux.
func (s *Server) Router() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/v1/health", s.handleHealth)
	mux.HandleFunc("/api/v1/recompute", s.handleRecompute)
	mux.HandleFunc("/api/v1/pipeline/run", s.handlePipelineRun)
	mux.HandleFunc("/api/v1/bars", s.handleBars)
	mux.HandleFunc("/api/v1/bars/latest", s.handleLatestBar)
	mux.HandleFunc("/api/v1/symbols", s.handleSymbols)
	mux.HandleFunc("/api/v1/coverage", s.handleCoverage)
	mux.HandleFunc("/api/v1/crosses", s.handleCrosses)
	mux.HandleFunc("/api/v1/jobs", s.handleJobs)
	mux.HandleFunc("/api/v1/events/recent", s.handleRecentEvents)
	mux.HandleFunc("/api/v1/stats", s.handleStats)
	mux.HandleFunc("/api/v1/stream", s.hub.HandleWS)

	return mux
}
