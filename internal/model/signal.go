package model

// Signal classifies a closing price against one moving average.
type Signal string

const (
	SignalBuy          Signal = "BUY"
	SignalSell         Signal = "SELL"
	SignalHold         Signal = "HOLD"
	SignalInsufficient Signal = "INSUFFICIENT_DATA"
)

// Known reports whether the signal has been computed with enough data.
func (s Signal) Known() bool {
	return s == SignalBuy || s == SignalSell || s == SignalHold
}

// CrossSignal classifies the 100-day MA against the 200-day MA.
type CrossSignal string

const (
	GoldenCross       CrossSignal = "GOLDEN_CROSS"
	DeathCross        CrossSignal = "DEATH_CROSS"
	CrossNone         CrossSignal = "NONE"
	CrossInsufficient CrossSignal = "INSUFFICIENT_DATA"
)

// SignalStrength is the composite label combining the per-window signals
// with the crossover state.
type SignalStrength string

const (
	StrengthStrongBuy    SignalStrength = "STRONG_BUY"
	StrengthBuy          SignalStrength = "BUY"
	StrengthHold         SignalStrength = "HOLD"
	StrengthSell         SignalStrength = "SELL"
	StrengthStrongSell   SignalStrength = "STRONG_SELL"
	StrengthInsufficient SignalStrength = "INSUFFICIENT_DATA"
)

// ValidSignalFilter reports whether s is an accepted filter value for
// API queries ("ALL" is handled by the caller).
func ValidSignalFilter(s string) bool {
	switch Signal(s) {
	case SignalBuy, SignalSell, SignalHold, SignalInsufficient:
		return true
	}
	return false
}
