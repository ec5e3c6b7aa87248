package indicator

import (
	"testing"

	"stock-analyzer/internal/model"
)

func p(v int64) *int64 { return &v }

func classified(ma100, ma200 *int64, sigs ...model.Signal) *model.DailyBar {
	bar := &model.DailyBar{Symbol: "TEST", Close: 10000, MA100: ma100, MA200: ma200}
	bar.Signal50, bar.Signal100, bar.Signal200 = sigs[0], sigs[1], sigs[2]
	Classify(bar)
	return bar
}

func TestClassify_CrossSignal(t *testing.T) {
	cases := []struct {
		name  string
		ma100 *int64
		ma200 *int64
		want  model.CrossSignal
	}{
		{"golden", p(10500), p(10000), model.GoldenCross},
		{"death", p(9500), p(10000), model.DeathCross},
		{"equal", p(10000), p(10000), model.CrossNone},
		{"no ma100", nil, p(10000), model.CrossInsufficient},
		{"no ma200", p(10000), nil, model.CrossInsufficient},
		{"no mas", nil, nil, model.CrossInsufficient},
	}
	for _, tc := range cases {
		bar := classified(tc.ma100, tc.ma200,
			model.SignalInsufficient, model.SignalInsufficient, model.SignalInsufficient)
		if bar.CrossSignal != tc.want {
			t.Errorf("%s: CrossSignal=%s, want %s", tc.name, bar.CrossSignal, tc.want)
		}
	}
}

func TestClassify_SignalStrength(t *testing.T) {
	buy, sell, hold, insuf := model.SignalBuy, model.SignalSell, model.SignalHold, model.SignalInsufficient

	cases := []struct {
		name  string
		ma100 *int64
		ma200 *int64
		sigs  [3]model.Signal
		want  model.SignalStrength
	}{
		{"all buy + golden cross", p(10500), p(10000), [3]model.Signal{buy, buy, buy}, model.StrengthStrongBuy},
		{"all buy, no cross", p(10000), p(10000), [3]model.Signal{buy, buy, buy}, model.StrengthBuy},
		{"all sell + death cross", p(9500), p(10000), [3]model.Signal{sell, sell, sell}, model.StrengthStrongSell},
		{"all sell, no cross", p(10000), p(10000), [3]model.Signal{sell, sell, sell}, model.StrengthSell},
		{"mixed 2 buy 1 sell", p(10500), p(10000), [3]model.Signal{buy, buy, sell}, model.StrengthHold},
		{"mixed buy and hold", p(10500), p(10000), [3]model.Signal{buy, hold, buy}, model.StrengthHold},
		{"all insufficient", nil, nil, [3]model.Signal{insuf, insuf, insuf}, model.StrengthInsufficient},
		// Only the 50-day signal available (young series): it alone decides.
		{"lone buy", nil, nil, [3]model.Signal{buy, insuf, insuf}, model.StrengthBuy},
		{"lone sell", nil, nil, [3]model.Signal{sell, insuf, insuf}, model.StrengthSell},
		{"lone hold counts bearish side", nil, nil, [3]model.Signal{hold, insuf, insuf}, model.StrengthSell},
	}
	for _, tc := range cases {
		bar := classified(tc.ma100, tc.ma200, tc.sigs[0], tc.sigs[1], tc.sigs[2])
		if bar.SignalStrength != tc.want {
			t.Errorf("%s: SignalStrength=%s, want %s", tc.name, bar.SignalStrength, tc.want)
		}
	}
}

func TestClassify_RederivesStaleLabels(t *testing.T) {
	// A bar carrying stale composite labels from an older run must be
	// overwritten from current MA state, never trusted.
	bar := &model.DailyBar{
		Symbol: "TEST", Close: 10000,
		MA100: p(9500), MA200: p(10000),
		Signal50: model.SignalSell, Signal100: model.SignalSell, Signal200: model.SignalSell,
		CrossSignal:    model.GoldenCross,
		SignalStrength: model.StrengthStrongBuy,
	}
	Classify(bar)
	if bar.CrossSignal != model.DeathCross {
		t.Errorf("CrossSignal=%s, want DEATH_CROSS", bar.CrossSignal)
	}
	if bar.SignalStrength != model.StrengthStrongSell {
		t.Errorf("SignalStrength=%s, want STRONG_SELL", bar.SignalStrength)
	}
}
