// Package indicator derives moving averages and trading signals from clean
// daily bar series. Pure in-memory computation; no I/O.
package indicator

import "stock-analyzer/internal/model"

// Standard trailing windows, in trading days.
const (
	Window50  = 50
	Window100 = 100
	Window200 = 200
)

// MinHistory is the minimum clean series length before any indicator can be
// computed. Below this every field is necessarily nil / INSUFFICIENT_DATA.
const MinHistory = Window50

// ComputeIndicators populates MA50/100/200 and the per-window signals on
// every bar of the series, in place. The series must be clean and ordered
// ascending by date (the loader's output). OHLCV and percentage-change
// fields are untouched. An empty series is a no-op.
//
// Recomputation is deterministic: the same close-price series always
// reproduces identical indicator fields.
func ComputeIndicators(series []*model.DailyBar) {
	if len(series) == 0 {
		return
	}

	ma50 := WindowAverages(series, Window50)
	ma100 := WindowAverages(series, Window100)
	ma200 := WindowAverages(series, Window200)

	for i, bar := range series {
		bar.MA50 = ma50[i]
		bar.MA100 = ma100[i]
		bar.MA200 = ma200[i]
		bar.Signal50 = signalFor(bar.Close, bar.MA50)
		bar.Signal100 = signalFor(bar.Close, bar.MA100)
		bar.Signal200 = signalFor(bar.Close, bar.MA200)
	}
}

// WindowAverages computes the trailing simple average of closes over the
// last window observations for every index. Entries are nil until at least
// window observations exist. A sliding running sum keeps this O(N) per
// window; full histories span years of trading days and are recomputed
// every cycle for every symbol, so the naive O(N·W) re-sum is avoided.
//
// The divisor is the count of valid (positive) closes inside the window
// rather than a fixed window constant. Under the loader's guarantee the
// count always equals window; if sparse gaps are ever tolerated upstream,
// the average degrades gracefully instead of dividing by the wrong N.
//
// window ≤ 0 returns all-nil.
func WindowAverages(series []*model.DailyBar, window int) []*int64 {
	out := make([]*int64, len(series))
	if window <= 0 {
		return out
	}

	var sum int64
	valid := 0
	for i, bar := range series {
		if bar.Close > 0 {
			sum += bar.Close
			valid++
		}
		if i >= window {
			if old := series[i-window].Close; old > 0 {
				sum -= old
				valid--
			}
		}
		if i >= window-1 && valid > 0 {
			ma := roundHalfUpDiv(sum, int64(valid))
			out[i] = &ma
		}
	}
	return out
}

// signalFor classifies a close against one moving average.
func signalFor(closeP int64, ma *int64) model.Signal {
	if ma == nil || closeP <= 0 {
		return model.SignalInsufficient
	}
	switch {
	case closeP > *ma:
		return model.SignalBuy
	case closeP < *ma:
		return model.SignalSell
	default:
		return model.SignalHold
	}
}

// roundHalfUpDiv divides sum by count with half-up rounding to integer
// paise, matching monetary two-decimal rounding. sum must be ≥ 0.
func roundHalfUpDiv(sum, count int64) int64 {
	return (2*sum + count) / (2 * count)
}
