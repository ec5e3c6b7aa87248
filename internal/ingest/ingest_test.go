package ingest

import (
	"context"
	"testing"
	"time"

	"stock-analyzer/internal/model"
)

func bar(symbol, dateKey string, closeP int64) *model.DailyBar {
	day, _ := model.ParseDay(dateKey)
	return &model.DailyBar{
		Symbol: symbol, Date: day,
		Open: closeP, High: closeP, Low: closeP, Close: closeP, Volume: 1,
	}
}

func TestApplyDayChanges(t *testing.T) {
	bars := []*model.DailyBar{
		bar("TCS", "2024-01-01", 100000),
		bar("TCS", "2024-01-02", 101000),
		bar("TCS", "2024-01-03", 99500),
	}
	ApplyDayChanges(bars, nil)

	// First bar has no predecessor: changes stay zero.
	if bars[0].PctChangeBps != 0 || bars[0].PriceChangeP != 0 {
		t.Errorf("first bar changes = %d bps, %d paise; want 0, 0",
			bars[0].PctChangeBps, bars[0].PriceChangeP)
	}
	// 100000 → 101000 is +1.00%.
	if bars[1].PctChangeBps != 100 {
		t.Errorf("second bar PctChangeBps = %d, want 100", bars[1].PctChangeBps)
	}
	if bars[1].PriceChangeP != 1000 {
		t.Errorf("second bar PriceChangeP = %d, want 1000", bars[1].PriceChangeP)
	}
	// 101000 → 99500 is -1.485148...% → -149 bps half-up.
	if bars[2].PctChangeBps != -149 {
		t.Errorf("third bar PctChangeBps = %d, want -149", bars[2].PctChangeBps)
	}
}

func TestApplyDayChanges_UsesStoredPredecessor(t *testing.T) {
	prev := bar("TCS", "2024-01-01", 200000)
	bars := []*model.DailyBar{bar("TCS", "2024-01-02", 201000)}
	ApplyDayChanges(bars, prev)

	if bars[0].PctChangeBps != 50 { // +0.50%
		t.Errorf("PctChangeBps = %d, want 50", bars[0].PctChangeBps)
	}
}

func TestHalfUpDiv(t *testing.T) {
	cases := []struct {
		num, den, want int64
	}{
		{100, 200, 1},   // 0.5 rounds up
		{99, 200, 0},    // 0.495 rounds down
		{-100, 200, -1}, // -0.5 rounds away from zero
		{-99, 200, 0},
		{300, 200, 2}, // 1.5 rounds up
	}
	for _, tc := range cases {
		if got := halfUpDiv(tc.num, tc.den); got != tc.want {
			t.Errorf("halfUpDiv(%d, %d) = %d, want %d", tc.num, tc.den, got, tc.want)
		}
	}
}

func TestMockFetcher_Deterministic(t *testing.T) {
	f := NewMockFetcher()
	inst := model.Instrument{Symbol: "RELIANCE", Token: "738561"}
	from := time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC)

	a, err := f.FetchDaily(context.Background(), inst, from, to)
	if err != nil {
		t.Fatalf("FetchDaily: %v", err)
	}
	b, _ := f.FetchDaily(context.Background(), inst, from, to)

	if len(a) == 0 || len(a) != len(b) {
		t.Fatalf("got %d and %d bars", len(a), len(b))
	}
	for i := range a {
		if a[i].Close != b[i].Close || !a[i].Date.Equal(b[i].Date) {
			t.Fatalf("bar %d differs between runs: %+v vs %+v", i, a[i], b[i])
		}
	}
}

func TestMockFetcher_IncrementalMatchesBackfill(t *testing.T) {
	f := NewMockFetcher()
	inst := model.Instrument{Symbol: "INFY", Token: "408065"}
	from := time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)
	mid := time.Date(2024, time.February, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC)

	full, _ := f.FetchDaily(context.Background(), inst, from, to)
	tail, _ := f.FetchDaily(context.Background(), inst, mid, to)

	if len(tail) == 0 {
		t.Fatal("no tail bars")
	}
	offset := len(full) - len(tail)
	for i := range tail {
		if full[offset+i].Close != tail[i].Close {
			t.Fatalf("tail bar %s close %d != backfill close %d",
				tail[i].DateKey(), tail[i].Close, full[offset+i].Close)
		}
	}
}

func TestMockFetcher_SkipsNonTradingDays(t *testing.T) {
	f := NewMockFetcher()
	inst := model.Instrument{Symbol: "SBIN", Token: "779521"}
	// A Saturday and Sunday only.
	from := time.Date(2024, time.January, 6, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, time.January, 7, 0, 0, 0, 0, time.UTC)

	bars, _ := f.FetchDaily(context.Background(), inst, from, to)
	if len(bars) != 0 {
		t.Errorf("got %d bars on a weekend, want 0", len(bars))
	}
}

// fetchStub returns canned bars and records the requested range.
type fetchStub struct {
	bars []*model.DailyBar
	from time.Time
}

func (f *fetchStub) FetchDaily(ctx context.Context, inst model.Instrument, from, to time.Time) ([]*model.DailyBar, error) {
	f.from = from
	var out []*model.DailyBar
	for _, b := range f.bars {
		if !b.Date.Before(from) && !b.Date.After(to) {
			copied := *b
			out = append(out, &copied)
		}
	}
	return out, nil
}

// storeStub is a minimal ingest.Store.
type storeStub struct {
	bars map[string]*model.DailyBar // dateKey → bar, single symbol
}

func newStoreStub() *storeStub { return &storeStub{bars: make(map[string]*model.DailyBar)} }

func (s *storeStub) latest() *model.DailyBar {
	var out *model.DailyBar
	for _, b := range s.bars {
		if out == nil || b.Date.After(out.Date) {
			out = b
		}
	}
	return out
}

func (s *storeStub) LatestBySymbol(ctx context.Context, symbol string) (*model.DailyBar, error) {
	return s.latest(), nil
}

func (s *storeStub) LastDateBySymbol(ctx context.Context, symbol string) (time.Time, bool, error) {
	b := s.latest()
	if b == nil {
		return time.Time{}, false, nil
	}
	return b.Date, true, nil
}

func (s *storeStub) UpsertBatch(ctx context.Context, bars []*model.DailyBar) error {
	for _, b := range bars {
		s.bars[b.DateKey()] = b
	}
	return nil
}

func TestIngestor_IncrementalFetchStartsAfterLastBar(t *testing.T) {
	store := newStoreStub()
	store.UpsertBatch(context.Background(), []*model.DailyBar{bar("TCS", "2024-01-10", 100000)})

	fetch := &fetchStub{bars: []*model.DailyBar{
		bar("TCS", "2024-01-11", 101000),
		bar("TCS", "2024-01-12", 102000),
	}}
	universe := model.NewUniverse([]model.Instrument{{Symbol: "TCS", Token: "1"}})

	ing := New(fetch, store, universe, Config{})
	asOf := time.Date(2024, time.January, 12, 0, 0, 0, 0, time.UTC)
	res, err := ing.Run(context.Background(), asOf)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if want := "2024-01-11"; fetch.from.Format("2006-01-02") != want {
		t.Errorf("fetch from = %s, want %s", fetch.from.Format("2006-01-02"), want)
	}
	if res.Bars != 2 || res.Symbols != 1 {
		t.Errorf("result = %+v", res)
	}

	// Change fields chain off the stored predecessor.
	b := store.bars["2024-01-11"]
	if b.PctChangeBps != 100 {
		t.Errorf("first new bar PctChangeBps = %d, want 100", b.PctChangeBps)
	}
}

func TestIngestor_SkipsCurrentSymbol(t *testing.T) {
	store := newStoreStub()
	store.UpsertBatch(context.Background(), []*model.DailyBar{bar("TCS", "2024-01-12", 100000)})

	fetch := &fetchStub{}
	universe := model.NewUniverse([]model.Instrument{{Symbol: "TCS", Token: "1"}})

	ing := New(fetch, store, universe, Config{})
	asOf := time.Date(2024, time.January, 12, 0, 0, 0, 0, time.UTC)
	res, err := ing.Run(context.Background(), asOf)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Bars != 0 {
		t.Errorf("bars = %d, want 0 for an already-current symbol", res.Bars)
	}
	if !fetch.from.IsZero() {
		t.Error("fetcher was called for an already-current symbol")
	}
}
