package indicator

import (
	"math/rand"
	"testing"

	"stock-analyzer/internal/model"
)

// naiveAverage re-sums the window at one index the slow way: the reference
// the sliding running sum must agree with at every index.
func naiveAverage(series []*model.DailyBar, idx, window int) *int64 {
	if idx < window-1 {
		return nil
	}
	var sum int64
	count := int64(0)
	for i := idx - window + 1; i <= idx; i++ {
		if c := series[i].Close; c > 0 {
			sum += c
			count++
		}
	}
	if count == 0 {
		return nil
	}
	ma := (2*sum + count) / (2 * count)
	return &ma
}

func randomWalk(t *testing.T, n int, seed int64) []*model.DailyBar {
	t.Helper()
	rng := rand.New(rand.NewSource(seed))
	closes := make([]int64, n)
	price := int64(250000) // 2500.00
	for i := range closes {
		price += int64(rng.Intn(4001) - 2000) // ±20.00 per day
		if price < 100 {
			price = 100
		}
		closes[i] = price
	}
	return bars(closes...)
}

func TestWindowAverages_MatchesNaive(t *testing.T) {
	series := randomWalk(t, 520, 42) // ~2 years of trading days

	for _, window := range []int{50, 100, 200} {
		avgs := WindowAverages(series, window)
		for i := range series {
			want := naiveAverage(series, i, window)
			got := avgs[i]
			switch {
			case want == nil && got != nil:
				t.Fatalf("window %d index %d: got %d, want nil", window, i, *got)
			case want != nil && got == nil:
				t.Fatalf("window %d index %d: got nil, want %d", window, i, *want)
			case want != nil && *got != *want:
				t.Fatalf("window %d index %d: got %d, want %d", window, i, *got, *want)
			}
		}
	}
}

func TestComputeIndicators_Idempotent(t *testing.T) {
	series := randomWalk(t, 300, 7)

	ComputeIndicators(series)
	for _, bar := range series {
		Classify(bar)
	}
	first := make([]string, len(series))
	for i, bar := range series {
		first[i] = string(bar.JSON())
	}

	// Recompute over the unchanged closes: every derived field must be
	// byte-identical.
	ComputeIndicators(series)
	for _, bar := range series {
		Classify(bar)
	}
	for i, bar := range series {
		if got := string(bar.JSON()); got != first[i] {
			t.Fatalf("bar %d not idempotent:\nfirst:  %s\nsecond: %s", i, first[i], got)
		}
	}
}

func TestComputeIndicators_ToleratesCorruptClose(t *testing.T) {
	// A pre-existing violator (close ≤ 0) inside the series must degrade the
	// window average, not crash. The loader filters these; the engine still
	// has to survive one slipping through.
	series := constBars(60, 10000)
	series[55].Close = 0

	ComputeIndicators(series)

	// Window at index 59 covers indices 10..59 and contains 49 valid closes:
	// divisor follows the valid count, so the average is still 100.00.
	paise(t, "MA50 around corrupt close", series[59].MA50, 10000)
	if series[55].Signal50 != model.SignalInsufficient {
		t.Errorf("corrupt bar Signal50=%s, want INSUFFICIENT_DATA", series[55].Signal50)
	}
}
