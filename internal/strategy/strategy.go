// Package strategy contains the strategy oracle consulted by the backtest
// engine. A strategy is a pure function of the bar history handed to it: it
// must not retain state between calls and must not assume anything about bars
// it has not been shown. The engine enforces temporal causality by only ever
// passing bars up to and including the evaluated day.
package strategy

import (
	"github.com/idxquant/swingbt/internal/types"
)

// Strategy produces a trading recommendation for one ticker given its price
// history. Implementations must be deterministic: the same window always
// yields the same advice.
type Strategy interface {
	// Name identifies the strategy in logs and result files.
	Name() string

	// MinBars returns the minimum window length the strategy needs before it
	// can produce a non-WAIT recommendation. Tickers with less history than
	// this are skipped by the engine.
	MinBars() int

	// Evaluate returns the recommendation for the last bar in bars. Bars are
	// ascending by time and all belong to ticker. Windows shorter than
	// MinBars yield SignalWait with no error.
	Evaluate(ticker string, bars []types.Bar) (types.Advice, error)
}
