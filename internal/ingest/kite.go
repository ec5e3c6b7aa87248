package ingest

import (
	"context"
	"math"
	"time"

	"stock-analyzer/internal/model"
	"stock-analyzer/pkg/kiteconnect"
)

// KiteFetcher fetches daily bars from the Kite Connect historical API.
type KiteFetcher struct {
	client *kiteconnect.Client
}

// NewKiteFetcher wraps a Kite client.
func NewKiteFetcher(client *kiteconnect.Client) *KiteFetcher {
	return &KiteFetcher{client: client}
}

// FetchDaily fetches candles for the instrument and converts rupee prices
// to paise.
func (f *KiteFetcher) FetchDaily(ctx context.Context, inst model.Instrument, from, to time.Time) ([]*model.DailyBar, error) {
	candles, err := f.client.GetHistoricalData(ctx, inst.Token, from, to)
	if err != nil {
		return nil, err
	}

	bars := make([]*model.DailyBar, 0, len(candles))
	for _, c := range candles {
		bars = append(bars, &model.DailyBar{
			Symbol: inst.Symbol,
			Date:   model.Day(c.Date.Year(), c.Date.Month(), c.Date.Day()),
			Open:   toPaise(c.Open),
			High:   toPaise(c.High),
			Low:    toPaise(c.Low),
			Close:  toPaise(c.Close),
			Volume: c.Volume,
		})
	}
	return bars, nil
}

// toPaise converts a rupee price to paise, rounding half away from zero.
func toPaise(rupees float64) int64 {
	return int64(math.Round(rupees * 100))
}
