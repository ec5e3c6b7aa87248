package indicator

import (
	"testing"
	"time"

	"stock-analyzer/internal/model"
)

func bars(closesPaise ...int64) []*model.DailyBar {
	out := make([]*model.DailyBar, len(closesPaise))
	day := model.Day(2025, time.January, 1)
	for i, c := range closesPaise {
		out[i] = &model.DailyBar{
			Symbol: "TEST",
			Date:   day,
			Open:   c, High: c + 50, Low: c - 50, Close: c,
			Volume: 1000,
		}
		day = day.AddDate(0, 0, 1)
	}
	return out
}

func constBars(n int, closePaise int64) []*model.DailyBar {
	closes := make([]int64, n)
	for i := range closes {
		closes[i] = closePaise
	}
	return bars(closes...)
}

func paise(t *testing.T, label string, got *int64, want int64) {
	t.Helper()
	if got == nil {
		t.Fatalf("%s: got nil, want %d paise", label, want)
	}
	if *got != want {
		t.Errorf("%s: got %d paise, want %d", label, *got, want)
	}
}

func TestWindowAverages_Exact(t *testing.T) {
	// Closes 10, 20, 30, 40, 50 rupees; window 5.
	// Average at the last index: (10+20+30+40+50)/5 = 30.00 exactly.
	series := bars(1000, 2000, 3000, 4000, 5000)
	avgs := WindowAverages(series, 5)

	for i := 0; i < 4; i++ {
		if avgs[i] != nil {
			t.Errorf("index %d: got %d, want nil before window fills", i, *avgs[i])
		}
	}
	paise(t, "avg[4]", avgs[4], 3000)
}

func TestWindowAverages_Sliding(t *testing.T) {
	// Closes 100, 102, 104, 103, 105 rupees; window 3.
	// avg[2] = (100+102+104)/3 = 102.00
	// avg[3] = (102+104+103)/3 = 103.00
	// avg[4] = (104+103+105)/3 = 104.00
	series := bars(10000, 10200, 10400, 10300, 10500)
	avgs := WindowAverages(series, 3)

	paise(t, "avg[2]", avgs[2], 10200)
	paise(t, "avg[3]", avgs[3], 10300)
	paise(t, "avg[4]", avgs[4], 10400)
}

func TestWindowAverages_HalfUpRounding(t *testing.T) {
	// 1.00 + 1.01 = 2.01; /2 = 1.005 → rounds half-up to 1.01 (101 paise).
	series := bars(100, 101)
	avgs := WindowAverages(series, 2)
	paise(t, "avg[1]", avgs[1], 101)

	// 1.00 + 1.01 + 1.01 = 3.02; /3 = 1.00666… → 1.01.
	series = bars(100, 101, 101)
	avgs = WindowAverages(series, 3)
	paise(t, "avg[2]", avgs[2], 101)
}

func TestWindowAverages_InvalidWindow(t *testing.T) {
	series := bars(1000, 2000, 3000)
	for _, w := range []int{0, -5} {
		avgs := WindowAverages(series, w)
		for i, a := range avgs {
			if a != nil {
				t.Errorf("window %d index %d: got %d, want nil", w, i, *a)
			}
		}
	}
}

func TestComputeIndicators_WindowBoundary(t *testing.T) {
	// 49 valid bars: no bar qualifies for the 50-day MA.
	series := constBars(49, 10000)
	ComputeIndicators(series)
	for i, bar := range series {
		if bar.MA50 != nil {
			t.Fatalf("bar %d: MA50 set with only 49 observations", i)
		}
		if bar.Signal50 != model.SignalInsufficient {
			t.Errorf("bar %d: Signal50=%s, want INSUFFICIENT_DATA", i, bar.Signal50)
		}
	}

	// Adding the 50th bar qualifies exactly the last index and no other.
	series = constBars(50, 10000)
	ComputeIndicators(series)
	for i := 0; i < 49; i++ {
		if series[i].MA50 != nil {
			t.Errorf("bar %d: MA50 set before index 49", i)
		}
	}
	paise(t, "bar 49 MA50", series[49].MA50, 10000)
	if series[49].MA100 != nil || series[49].MA200 != nil {
		t.Error("bar 49: MA100/MA200 set with only 50 observations")
	}
}

func TestComputeIndicators_Signals(t *testing.T) {
	// 50 bars at 100.00 then the 51st at 110.00: MA50 at the last index is
	// (49×100 + 110)/50 = 100.20, price above it → BUY.
	series := append(constBars(50, 10000), bars(11000)...)
	ComputeIndicators(series)

	last := series[50]
	paise(t, "last MA50", last.MA50, 10020)
	if last.Signal50 != model.SignalBuy {
		t.Errorf("Signal50=%s, want BUY", last.Signal50)
	}

	// Flat series: price equals MA → HOLD.
	flat := constBars(50, 10000)
	ComputeIndicators(flat)
	if flat[49].Signal50 != model.SignalHold {
		t.Errorf("flat Signal50=%s, want HOLD", flat[49].Signal50)
	}
}

func TestComputeIndicators_EmptySeries(t *testing.T) {
	ComputeIndicators(nil)
	ComputeIndicators([]*model.DailyBar{})
}

func TestComputeIndicators_LeavesOHLCVUntouched(t *testing.T) {
	series := constBars(60, 10000)
	series[10].Volume = 777
	series[10].PctChangeBps = 123
	ComputeIndicators(series)

	b := series[10]
	if b.Open != 10000 || b.High != 10050 || b.Low != 9950 || b.Close != 10000 {
		t.Error("OHLC mutated by indicator computation")
	}
	if b.Volume != 777 || b.PctChangeBps != 123 {
		t.Error("volume / pct change mutated by indicator computation")
	}
}
