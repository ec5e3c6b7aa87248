package indicator

import "stock-analyzer/internal/model"

// Classify sets CrossSignal and SignalStrength on the bar from its own MA
// and signal fields. It is a pure function of the bar — no neighbouring
// rows — and is the only write path for the composite labels: every
// recompute pass re-derives them, so they can never drift from the MA
// state on the row.
//
// Call after ComputeIndicators has populated the MAs.
func Classify(bar *model.DailyBar) {
	bar.CrossSignal = crossSignal(bar.MA100, bar.MA200)
	bar.SignalStrength = signalStrength(bar)
}

// crossSignal relates the 100-day MA to the 200-day MA.
func crossSignal(ma100, ma200 *int64) model.CrossSignal {
	if ma100 == nil || ma200 == nil {
		return model.CrossInsufficient
	}
	switch {
	case *ma100 > *ma200:
		return model.GoldenCross
	case *ma100 < *ma200:
		return model.DeathCross
	default:
		return model.CrossNone
	}
}

// signalStrength combines the per-window signals with the crossover state.
// Unanimous bullish signals plus a golden cross upgrade to STRONG_BUY;
// unanimous non-bullish plus a death cross to STRONG_SELL. Partial
// agreement is always HOLD — the 50/100/200 windows carry equal weight.
func signalStrength(bar *model.DailyBar) model.SignalStrength {
	total := 0
	bullish := 0
	for _, sig := range []model.Signal{bar.Signal50, bar.Signal100, bar.Signal200} {
		if !sig.Known() {
			continue
		}
		total++
		if sig == model.SignalBuy {
			bullish++
		}
	}

	switch {
	case total == 0:
		return model.StrengthInsufficient
	case bullish == total && bar.CrossSignal == model.GoldenCross:
		return model.StrengthStrongBuy
	case bullish == total:
		return model.StrengthBuy
	case bullish == 0 && bar.CrossSignal == model.DeathCross:
		return model.StrengthStrongSell
	case bullish == 0:
		return model.StrengthSell
	default:
		return model.StrengthHold
	}
}
