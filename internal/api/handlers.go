package api

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"stock-analyzer/internal/indicator"
	"stock-analyzer/internal/jobs"
	"stock-analyzer/internal/markethours"
	"stock-analyzer/internal/model"
	"stock-analyzer/internal/recompute"
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[api] write response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// GET /api/v1/health
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	components := map[string]string{"sqlite": "ok"}
	status := http.StatusOK

	if _, err := s.store.DistinctSymbols(ctx); err != nil {
		components["sqlite"] = err.Error()
		status = http.StatusServiceUnavailable
	}
	if s.cache != nil {
		components["redis"] = "ok"
		if err := s.cache.Ping(ctx); err != nil {
			// Redis is advisory; degraded, not down.
			components["redis"] = err.Error()
		}
	}

	writeJSON(w, status, map[string]interface{}{
		"status":     statusWord(status),
		"components": components,
		"uptime":     time.Since(s.start).Round(time.Second).String(),
	})
}

func statusWord(code int) string {
	if code == http.StatusOK {
		return "ok"
	}
	return "unavailable"
}

// POST /api/v1/recompute[?symbol=X | ?since=2006-01-02]
func (s *Server) handleRecompute(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "POST required")
		return
	}

	if symbol := strings.ToUpper(r.URL.Query().Get("symbol")); symbol != "" {
		res, err := s.orch.RecomputeOne(r.Context(), symbol)
		switch {
		case errors.Is(err, recompute.ErrSymbolLocked):
			writeError(w, http.StatusConflict, err.Error())
		case err != nil:
			writeError(w, http.StatusInternalServerError, err.Error())
		default:
			writeJSON(w, http.StatusOK, res)
		}
		return
	}

	if since := r.URL.Query().Get("since"); since != "" {
		cutoff, err := model.ParseDay(since)
		if err != nil {
			writeError(w, http.StatusBadRequest, "since must be YYYY-MM-DD")
			return
		}
		summary, err := s.orch.RecomputeSince(r.Context(), cutoff)
		if err != nil {
			writeError(w, http.StatusServiceUnavailable, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, summary)
		return
	}

	summary, err := s.orch.RecomputeAll(r.Context())
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// POST /api/v1/pipeline/run — fire the daily pipeline out of schedule.
func (s *Server) handlePipelineRun(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "POST required")
		return
	}
	if s.pipeline == nil {
		writeError(w, http.StatusServiceUnavailable, "pipeline not configured")
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
		defer cancel()
		s.pipeline.RunOnce(ctx)
	}()
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "started"})
}

// GET /api/v1/bars?symbol=X[&from=...&to=...][&signal=BUY][&cross=GOLDEN_CROSS][&strength=STRONG_BUY][&min_move_bps=N]
func (s *Server) handleBars(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	symbol := strings.ToUpper(q.Get("symbol"))
	if symbol == "" {
		writeError(w, http.StatusBadRequest, "symbol is required")
		return
	}

	signal := strings.ToUpper(q.Get("signal"))
	if signal != "" && !model.ValidSignalFilter(signal) {
		writeError(w, http.StatusBadRequest, "signal must be BUY, SELL, HOLD, or INSUFFICIENT_DATA")
		return
	}

	var (
		bars []*model.DailyBar
		err  error
	)
	if q.Get("from") != "" || q.Get("to") != "" {
		from, to, perr := parseRange(q.Get("from"), q.Get("to"))
		if perr != nil {
			writeError(w, http.StatusBadRequest, perr.Error())
			return
		}
		bars, err = s.store.FindBySymbolAndDateRange(r.Context(), symbol, from, to)
	} else {
		bars, err = s.store.FindBySymbol(r.Context(), symbol)
	}
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}

	bars = filterBars(bars, signal, q.Get("cross"), q.Get("strength"), q.Get("min_move_bps"))
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"symbol": symbol,
		"count":  len(bars),
		"bars":   bars,
	})
}

func parseRange(fromStr, toStr string) (time.Time, time.Time, error) {
	from := model.Day(1990, time.January, 1)
	to := model.Day(2100, time.January, 1)
	var err error
	if fromStr != "" {
		if from, err = model.ParseDay(fromStr); err != nil {
			return from, to, errors.New("from must be YYYY-MM-DD")
		}
	}
	if toStr != "" {
		if to, err = model.ParseDay(toStr); err != nil {
			return from, to, errors.New("to must be YYYY-MM-DD")
		}
	}
	return from, to, nil
}

func filterBars(bars []*model.DailyBar, signal, cross, strength, minMove string) []*model.DailyBar {
	if signal == "" && cross == "" && strength == "" && minMove == "" {
		return bars
	}
	var minMoveBps int64
	if minMove != "" {
		minMoveBps, _ = strconv.ParseInt(minMove, 10, 64)
	}

	out := bars[:0]
	for _, b := range bars {
		if signal != "" {
			sig := model.Signal(strings.ToUpper(signal))
			if b.Signal50 != sig && b.Signal100 != sig && b.Signal200 != sig {
				continue
			}
		}
		if cross != "" && b.CrossSignal != model.CrossSignal(strings.ToUpper(cross)) {
			continue
		}
		if strength != "" && b.SignalStrength != model.SignalStrength(strings.ToUpper(strength)) {
			continue
		}
		if minMoveBps > 0 {
			move := b.PctChangeBps
			if move < 0 {
				move = -move
			}
			if move < minMoveBps {
				continue
			}
		}
		out = append(out, b)
	}
	return out
}

// GET /api/v1/bars/latest?symbol=X — Redis cache first, store fallback.
func (s *Server) handleLatestBar(w http.ResponseWriter, r *http.Request) {
	symbol := strings.ToUpper(r.URL.Query().Get("symbol"))
	if symbol == "" {
		writeError(w, http.StatusBadRequest, "symbol is required")
		return
	}

	if s.cache != nil {
		if payload, err := s.cache.Latest(r.Context(), symbol); err == nil && payload != nil {
			w.Header().Set("Content-Type", "application/json")
			w.Write(payload)
			return
		}
	}

	bar, err := s.store.LatestBySymbol(r.Context(), symbol)
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	if bar == nil {
		writeError(w, http.StatusNotFound, "no bars for "+symbol)
		return
	}
	writeJSON(w, http.StatusOK, bar)
}

// GET /api/v1/symbols — stored symbols with bar counts and eligibility.
func (s *Server) handleSymbols(w http.ResponseWriter, r *http.Request) {
	symbols, err := s.store.DistinctSymbols(r.Context())
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}

	type symbolInfo struct {
		Symbol   string `json:"symbol"`
		Bars     int    `json:"bars"`
		Eligible bool   `json:"eligible"`
		Tracked  bool   `json:"tracked"`
	}
	out := make([]symbolInfo, 0, len(symbols))
	for _, sym := range symbols {
		n, err := s.store.CountBySymbol(r.Context(), sym)
		if err != nil {
			writeError(w, http.StatusServiceUnavailable, err.Error())
			return
		}
		out = append(out, symbolInfo{
			Symbol:   sym,
			Bars:     n,
			Eligible: n >= indicator.MinHistory,
			Tracked:  s.universe.Contains(sym),
		})
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"count":   len(out),
		"symbols": out,
	})
}

// GET /api/v1/coverage?symbol=X — indicator coverage for one symbol.
func (s *Server) handleCoverage(w http.ResponseWriter, r *http.Request) {
	symbol := strings.ToUpper(r.URL.Query().Get("symbol"))
	if symbol == "" {
		writeError(w, http.StatusBadRequest, "symbol is required")
		return
	}

	bars, err := s.store.FindBySymbol(r.Context(), symbol)
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	if len(bars) == 0 {
		writeError(w, http.StatusNotFound, "no bars for "+symbol)
		return
	}

	cov := struct {
		Symbol    string `json:"symbol"`
		Bars      int    `json:"bars"`
		Clean     int    `json:"clean_bars"`
		FirstDate string `json:"first_date"`
		LastDate  string `json:"last_date"`
		With50    int    `json:"with_ma50"`
		With100   int    `json:"with_ma100"`
		With200   int    `json:"with_ma200"`
		Eligible  bool   `json:"eligible"`
	}{
		Symbol:    symbol,
		Bars:      len(bars),
		FirstDate: bars[0].DateKey(),
		LastDate:  bars[len(bars)-1].DateKey(),
	}
	for _, b := range bars {
		if b.HasValidClose() {
			cov.Clean++
		}
		if b.MA50 != nil {
			cov.With50++
		}
		if b.MA100 != nil {
			cov.With100++
		}
		if b.MA200 != nil {
			cov.With200++
		}
	}
	cov.Eligible = cov.Clean >= indicator.MinHistory
	writeJSON(w, http.StatusOK, cov)
}

// GET /api/v1/crosses?type=golden|death[&date=2006-01-02] — crossover scan.
// Defaults to the last completed trading day.
func (s *Server) handleCrosses(w http.ResponseWriter, r *http.Request) {
	cross := model.GoldenCross
	if t := strings.ToLower(r.URL.Query().Get("type")); t == "death" {
		cross = model.DeathCross
	} else if t != "" && t != "golden" {
		writeError(w, http.StatusBadRequest, "type must be golden or death")
		return
	}

	day := markethours.LastCompletedTradingDay(time.Now())
	day = model.Day(day.Year(), day.Month(), day.Day())
	if d := r.URL.Query().Get("date"); d != "" {
		parsed, err := model.ParseDay(d)
		if err != nil {
			writeError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
			return
		}
		day = parsed
	}

	bars, err := s.store.FindByDateAndCross(r.Context(), day, cross)
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"date":  day.Format("2006-01-02"),
		"cross": cross,
		"count": len(bars),
		"bars":  bars,
	})
}

// GET /api/v1/jobs?name=daily_ingest[&limit=20]
func (s *Server) handleJobs(w http.ResponseWriter, r *http.Request) {
	if s.tracker == nil {
		writeError(w, http.StatusServiceUnavailable, "job tracking not configured")
		return
	}
	name := r.URL.Query().Get("name")
	if name == "" {
		name = jobs.JobRecomputeAll
	}
	limit := 20
	if l := r.URL.Query().Get("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil && n > 0 && n <= 200 {
			limit = n
		}
	}

	executions := s.tracker.Recent(r.Context(), name, limit)
	resp := map[string]interface{}{
		"name":       name,
		"executions": executions,
	}
	if last, ok := s.tracker.LastSuccess(r.Context(), name); ok {
		resp["last_success"] = last.Format(time.RFC3339)
	}
	writeJSON(w, http.StatusOK, resp)
}

// GET /api/v1/events/recent[?limit=N] — buffered broadcast envelopes for
// clients that missed the live stream.
func (s *Server) handleRecentEvents(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if l := r.URL.Query().Get("limit"); l != "" {
		n, err := strconv.Atoi(l)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	payloads, dropped := s.hub.RecentEvents(limit)
	events := make([]json.RawMessage, len(payloads))
	for i, p := range payloads {
		events[i] = json.RawMessage(p)
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"count":   len(events),
		"dropped": dropped,
		"events":  events,
	})
}

// GET /api/v1/stats — system-level counters.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	totalBars, err := s.store.CountAll(r.Context())
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	symbols, err := s.store.DistinctSymbols(r.Context())
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}

	now := time.Now()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"total_bars":    totalBars,
		"symbols":       len(symbols),
		"universe_size": s.universe.Size(),
		"ws_clients":    s.hub.ClientCount(),
		"market_open":   markethours.IsMarketOpen(now),
		"market_status": markethours.StatusString(now),
		"trading_day":   markethours.LastCompletedTradingDay(now).Format("2006-01-02"),
		"uptime":        time.Since(s.start).Round(time.Second).String(),
	})
}
