package model

import (
	"encoding/json"
	"time"
)

// DailyBar represents one symbol's OHLCV observation for a single trading day.
// All prices are in paise (int64) to avoid floating-point drift; two decimal
// places of rupees map exactly onto integer paise.
type DailyBar struct {
	Symbol string    `json:"symbol"` // uppercase NSE trading symbol
	Date   time.Time `json:"date"`   // civil date, midnight UTC, no time component

	Open   int64 `json:"open"`   // paise
	High   int64 `json:"high"`   // paise
	Low    int64 `json:"low"`    // paise
	Close  int64 `json:"close"`  // paise
	Volume int64 `json:"volume"` // shares traded

	// Day-over-day movement, set by ingestion. PctChangeBps is the close-to-close
	// change in basis points (hundredths of a percent); 0 when no prior day.
	PctChangeBps int64 `json:"pct_change_bps"`
	PriceChangeP int64 `json:"price_change_p"` // paise, derived from close × pct change

	// Indicator fields, filled by the recompute pipeline. MA pointers are nil
	// until at least N valid closes exist at or before this row.
	MA50  *int64 `json:"ma50,omitempty"`  // paise
	MA100 *int64 `json:"ma100,omitempty"` // paise
	MA200 *int64 `json:"ma200,omitempty"` // paise

	Signal50       Signal         `json:"signal50,omitempty"`
	Signal100      Signal         `json:"signal100,omitempty"`
	Signal200      Signal         `json:"signal200,omitempty"`
	CrossSignal    CrossSignal    `json:"cross_signal,omitempty"`
	SignalStrength SignalStrength `json:"signal_strength,omitempty"`

	UpdatedAt time.Time `json:"updated_at,omitempty"`
}

// Day builds a civil date (midnight UTC) for bar keys.
func Day(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// ParseDay parses a "2006-01-02" date string into a civil date.
func ParseDay(s string) (time.Time, error) {
	return time.Parse("2006-01-02", s)
}

// DateKey returns the bar's date formatted as "2006-01-02".
// Together with Symbol it forms the unique store key.
func (b *DailyBar) DateKey() string {
	return b.Date.Format("2006-01-02")
}

// Key returns "symbol:date", the unique identity of this bar.
func (b *DailyBar) Key() string {
	return b.Symbol + ":" + b.DateKey()
}

// HasValidClose reports whether the bar carries a usable closing price.
// Placeholder and corrupt rows (close ≤ 0) are excluded from series.
func (b *DailyBar) HasValidClose() bool {
	return b.Close > 0
}

// ClearIndicators resets every derived field to its uncomputed state.
func (b *DailyBar) ClearIndicators() {
	b.MA50, b.MA100, b.MA200 = nil, nil, nil
	b.Signal50, b.Signal100, b.Signal200 = "", "", ""
	b.CrossSignal = ""
	b.SignalStrength = ""
}

// JSON returns the JSON-encoded bar.
func (b *DailyBar) JSON() []byte {
	out, _ := json.Marshal(b)
	return out
}
