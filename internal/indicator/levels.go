package indicator

import (
	"math"

	"github.com/idxquant/swingbt/internal/types"
)

// PivotLevels holds classic floor-trader pivot levels derived from a single
// bar's high, low and close.
type PivotLevels struct {
	Pivot float64
	R1    float64
	R2    float64
	S1    float64
	S2    float64
}

// PivotPoints computes pivot levels from the given bar, typically the bar
// preceding the one being evaluated.
func PivotPoints(bar types.Bar) PivotLevels {
	pivot := (bar.High + bar.Low + bar.Close) / 3

	return PivotLevels{
		Pivot: pivot,
		R1:    2*pivot - bar.Low,
		R2:    pivot + (bar.High - bar.Low),
		S1:    2*pivot - bar.High,
		S2:    pivot - (bar.High - bar.Low),
	}
}

// SwingLevels holds the highest high and lowest low over a lookback window,
// used as nearby resistance and support.
type SwingLevels struct {
	High float64
	Low  float64
}

// Swing returns the swing high/low over the last lookback bars ending at
// index (inclusive). It returns false when fewer than lookback bars are
// available.
func Swing(bars []types.Bar, index, lookback int) (SwingLevels, bool) {
	if lookback <= 0 || index < 0 || index >= len(bars) || index+1 < lookback {
		return SwingLevels{}, false
	}

	levels := SwingLevels{High: math.Inf(-1), Low: math.Inf(1)}
	for i := index - lookback + 1; i <= index; i++ {
		levels.High = math.Max(levels.High, bars[i].High)
		levels.Low = math.Min(levels.Low, bars[i].Low)
	}

	return levels, true
}
