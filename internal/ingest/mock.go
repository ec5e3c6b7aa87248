package ingest

import (
	"context"
	"hash/fnv"
	"math/rand"
	"time"

	"stock-analyzer/internal/markethours"
	"stock-analyzer/internal/model"
)

// mockEpoch is where every mock walk starts. Replaying from a fixed origin
// makes the series window-independent: an incremental fetch produces the
// same bars a full backfill would.
var mockEpoch = time.Date(2020, time.January, 1, 0, 0, 0, 0, time.UTC)

// MockFetcher generates deterministic daily bars for development and
// seeding. Each symbol gets its own random walk, seeded from the symbol
// name, so repeated runs produce identical data. Weekends and exchange
// holidays yield no bars.
type MockFetcher struct{}

// NewMockFetcher creates a MockFetcher.
func NewMockFetcher() *MockFetcher {
	return &MockFetcher{}
}

// FetchDaily generates bars for every trading day in [from, to].
func (f *MockFetcher) FetchDaily(ctx context.Context, inst model.Instrument, from, to time.Time) ([]*model.DailyBar, error) {
	seed := symbolSeed(inst.Symbol)
	rng := rand.New(rand.NewSource(seed))

	// Base price between 100 and 5100 rupees, stable per symbol.
	price := 10000 + seed%500000 // paise
	if price < 10000 {
		price = 10000
	}

	var bars []*model.DailyBar
	for day := mockEpoch; !day.After(to); day = day.AddDate(0, 0, 1) {
		if !markethours.IsTradingDay(day) {
			continue
		}

		drift := int64(rng.NormFloat64() * float64(price) * 0.015)
		spread := int64(rng.Float64() * float64(price) * 0.01)
		volume := 100000 + rng.Int63n(900000)

		open := price
		close := price + drift
		if close < 100 {
			close = 100 // floor at one rupee
		}
		price = close

		if day.Before(from) {
			continue
		}

		high := maxInt64(open, close) + spread
		low := minInt64(open, close) - spread
		if low < 100 {
			low = 100
		}
		bars = append(bars, &model.DailyBar{
			Symbol: inst.Symbol,
			Date:   model.Day(day.Year(), day.Month(), day.Day()),
			Open:   open,
			High:   high,
			Low:    low,
			Close:  close,
			Volume: volume,
		})
	}
	return bars, nil
}

func symbolSeed(symbol string) int64 {
	h := fnv.New64a()
	h.Write([]byte(symbol))
	return int64(h.Sum64() & 0x7fffffffffffffff)
}

func maxInt64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}

func minInt64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}
