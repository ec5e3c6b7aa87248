package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"stock-analyzer/internal/model"
	"stock-analyzer/internal/recompute"
)

// memStore backs handler tests with a fixed bar set.
type memStore struct {
	bars map[string][]*model.DailyBar
}

func (m *memStore) FindBySymbol(ctx context.Context, symbol string) ([]*model.DailyBar, error) {
	return m.bars[symbol], nil
}

func (m *memStore) FindBySymbolAndDateRange(ctx context.Context, symbol string, from, to time.Time) ([]*model.DailyBar, error) {
	var out []*model.DailyBar
	for _, b := range m.bars[symbol] {
		if !b.Date.Before(from) && !b.Date.After(to) {
			out = append(out, b)
		}
	}
	return out, nil
}

func (m *memStore) DistinctSymbols(ctx context.Context) ([]string, error) {
	var out []string
	for sym := range m.bars {
		out = append(out, sym)
	}
	return out, nil
}

func (m *memStore) CountBySymbol(ctx context.Context, symbol string) (int, error) {
	return len(m.bars[symbol]), nil
}

func (m *memStore) SymbolsWithBarsSince(ctx context.Context, cutoff time.Time) ([]string, error) {
	return m.DistinctSymbols(ctx)
}

func (m *memStore) LatestBySymbol(ctx context.Context, symbol string) (*model.DailyBar, error) {
	bars := m.bars[symbol]
	if len(bars) == 0 {
		return nil, nil
	}
	return bars[len(bars)-1], nil
}

func (m *memStore) FindByDateAndCross(ctx context.Context, day time.Time, cross model.CrossSignal) ([]*model.DailyBar, error) {
	var out []*model.DailyBar
	for _, bars := range m.bars {
		for _, b := range bars {
			if b.Date.Equal(day) && b.CrossSignal == cross {
				out = append(out, b)
			}
		}
	}
	return out, nil
}

func (m *memStore) CountAll(ctx context.Context) (int, error) {
	n := 0
	for _, bars := range m.bars {
		n += len(bars)
	}
	return n, nil
}

func (m *memStore) UpsertBatch(ctx context.Context, bars []*model.DailyBar) error {
	for _, b := range bars {
		m.bars[b.Symbol] = append(m.bars[b.Symbol], b)
	}
	return nil
}

func (m *memStore) Close() error { return nil }

func testBar(symbol, dateKey string, closeP int64, cross model.CrossSignal, pctBps int64) *model.DailyBar {
	day, _ := model.ParseDay(dateKey)
	return &model.DailyBar{
		Symbol: symbol, Date: day,
		Open: closeP, High: closeP, Low: closeP, Close: closeP, Volume: 10,
		PctChangeBps: pctBps,
		CrossSignal:  cross,
		Signal50:     model.SignalBuy,
	}
}

func newTestServer(store *memStore) *Server {
	universe := model.NewUniverse([]model.Instrument{{Symbol: "TCS", Token: "1"}})
	orch := recompute.New(store, recompute.Config{Workers: 1})
	return NewServer(store, orch, universe, NewHub())
}

func TestHandleBars_FiltersByCrossAndMove(t *testing.T) {
	store := &memStore{bars: map[string][]*model.DailyBar{
		"TCS": {
			testBar("TCS", "2024-01-01", 100000, model.CrossNone, 10),
			testBar("TCS", "2024-01-02", 101000, model.GoldenCross, 100),
			testBar("TCS", "2024-01-03", 99000, model.GoldenCross, -198),
		},
	}}
	srv := httptest.NewServer(newTestServer(store).Router())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/v1/bars?symbol=tcs&cross=golden_cross&min_move_bps=150")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()

	var body struct {
		Count int               `json:"count"`
		Bars  []*model.DailyBar `json:"bars"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Count != 1 || body.Bars[0].DateKey() != "2024-01-03" {
		t.Errorf("filtered bars = %+v", body)
	}
}

func TestHandleBars_RequiresSymbol(t *testing.T) {
	store := &memStore{bars: map[string][]*model.DailyBar{}}
	srv := httptest.NewServer(newTestServer(store).Router())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/v1/bars")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestHandleRecompute_SingleSymbol(t *testing.T) {
	bars := make([]*model.DailyBar, 0, 60)
	day := model.Day(2024, time.January, 1)
	for i := 0; i < 60; i++ {
		b := testBar("TCS", day.Format("2006-01-02"), 100000, "", 0)
		bars = append(bars, b)
		day = day.AddDate(0, 0, 1)
	}
	store := &memStore{bars: map[string][]*model.DailyBar{"TCS": bars}}
	srv := httptest.NewServer(newTestServer(store).Router())
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/api/v1/recompute?symbol=TCS", "application/json", nil)
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var res struct {
		Bars   int `json:"bars"`
		With50 int `json:"with_ma50"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if res.Bars != 60 || res.With50 != 11 {
		t.Errorf("result = %+v, want 60 bars and 11 ma50 rows", res)
	}
}

func TestHandleRecompute_RejectsGet(t *testing.T) {
	store := &memStore{bars: map[string][]*model.DailyBar{}}
	srv := httptest.NewServer(newTestServer(store).Router())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/v1/recompute")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", resp.StatusCode)
	}
}

func TestHandleCrosses_ByDate(t *testing.T) {
	store := &memStore{bars: map[string][]*model.DailyBar{
		"TCS":  {testBar("TCS", "2024-06-03", 100000, model.GoldenCross, 0)},
		"INFY": {testBar("INFY", "2024-06-03", 50000, model.DeathCross, 0)},
	}}
	srv := httptest.NewServer(newTestServer(store).Router())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/v1/crosses?type=golden&date=2024-06-03")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()

	var body struct {
		Count int               `json:"count"`
		Bars  []*model.DailyBar `json:"bars"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Count != 1 || body.Bars[0].Symbol != "TCS" {
		t.Errorf("crosses = %+v", body)
	}
}

func TestHandleLatestBar_StoreFallback(t *testing.T) {
	store := &memStore{bars: map[string][]*model.DailyBar{
		"TCS": {
			testBar("TCS", "2024-01-01", 100000, "", 0),
			testBar("TCS", "2024-01-02", 101000, "", 0),
		},
	}}
	srv := httptest.NewServer(newTestServer(store).Router())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/v1/bars/latest?symbol=TCS")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()

	var bar model.DailyBar
	if err := json.NewDecoder(resp.Body).Decode(&bar); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if bar.DateKey() != "2024-01-02" {
		t.Errorf("latest bar date = %s, want 2024-01-02", bar.DateKey())
	}
}

func TestHandleRecentEvents(t *testing.T) {
	store := &memStore{bars: map[string][]*model.DailyBar{}}
	server := newTestServer(store)
	srv := httptest.NewServer(server.Router())
	defer srv.Close()

	for i := 0; i < 3; i++ {
		server.hub.Broadcast("status", map[string]int{"seq": i})
	}

	resp, err := http.Get(srv.URL + "/api/v1/events/recent?limit=2")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()

	var body struct {
		Count  int `json:"count"`
		Events []struct {
			Type string `json:"type"`
			Data struct {
				Seq int `json:"seq"`
			} `json:"data"`
		} `json:"events"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Count != 2 {
		t.Fatalf("count = %d, want 2", body.Count)
	}
	if body.Events[0].Data.Seq != 1 || body.Events[1].Data.Seq != 2 {
		t.Errorf("events = %+v, want seq 1 then 2", body.Events)
	}
	if body.Events[0].Type != "status" {
		t.Errorf("type = %s, want status", body.Events[0].Type)
	}
}

func TestHandleRecentEvents_RejectsBadLimit(t *testing.T) {
	store := &memStore{bars: map[string][]*model.DailyBar{}}
	srv := httptest.NewServer(newTestServer(store).Router())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/v1/events/recent?limit=zero")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestHandleStats(t *testing.T) {
	store := &memStore{bars: map[string][]*model.DailyBar{
		"TCS": {testBar("TCS", "2024-01-01", 100000, "", 0)},
	}}
	srv := httptest.NewServer(newTestServer(store).Router())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/v1/stats")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()

	var body map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["total_bars"].(float64) != 1 || body["universe_size"].(float64) != 1 {
		t.Errorf("stats = %v", body)
	}
}
