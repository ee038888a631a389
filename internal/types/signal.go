package types

import (
	"time"

	"github.com/moznion/go-optional"
)

// Signal is the closed set of actions a strategy can recommend for a single
// ticker-day. The engine matches exhaustively on this set so that a new
// signal kind cannot be silently ignored.
type Signal string

const (
	// SignalBuyStrong recommends opening a position at full risk size.
	SignalBuyStrong Signal = "BUY_STRONG"
	// SignalBuyWeak recommends opening a position at reduced risk size.
	SignalBuyWeak Signal = "BUY_WEAK"
	// SignalHold recommends keeping the current position unchanged.
	SignalHold Signal = "HOLD"
	// SignalSellPartial recommends reducing an open position.
	SignalSellPartial Signal = "SELL_PARTIAL"
	// SignalSellAll recommends closing an open position entirely.
	SignalSellAll Signal = "SELL_ALL"
	// SignalWait recommends no action, typically due to insufficient history
	// or a blocked setup.
	SignalWait Signal = "WAIT"
)

// AllSignals lists every valid Signal value.
var AllSignals = []Signal{
	SignalBuyStrong,
	SignalBuyWeak,
	SignalHold,
	SignalSellPartial,
	SignalSellAll,
	SignalWait,
}

// IsValid reports whether s is a member of the closed signal set.
func (s Signal) IsValid() bool {
	for _, v := range AllSignals {
		if s == v {
			return true
		}
	}

	return false
}

// Advice is the strategy oracle's output for one ticker-day. It is a pure
// function of the price history up to and including the evaluated bar.
type Advice struct {
	// Ticker is the evaluated ticker.
	Ticker string
	// Time is the timestamp of the last bar in the evaluated window.
	Time time.Time
	// Signal is the recommended action.
	Signal Signal
	// Score is the raw conviction score behind the signal; higher is more
	// bullish.
	Score float64
	// Close is the close price of the last bar in the window.
	Close float64
	// StopDistance is the ATR-derived distance between entry and stop price.
	// Zero or negative when no valid stop could be derived.
	StopDistance float64
	// TakeProfit is the recommended take-profit band, when the setup has one.
	TakeProfit optional.Option[PriceBand]
	// Reasons lists human-readable context for the signal decision.
	Reasons []string
}
