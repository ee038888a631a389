package indicator

import (
	"math"

	"github.com/idxquant/swingbt/internal/types"
	"github.com/idxquant/swingbt/pkg/errors"
)

// ATR computes the Average True Range over a rolling window.
type ATR struct {
	period int
	sma    *SMA
}

// NewATR creates an ATR indicator for the given period.
func NewATR(period int) (*ATR, error) {
	if period <= 0 {
		return nil, errors.Newf(errors.ErrCodeInvalidPeriod, "atr period must be positive, got %d", period)
	}

	sma, err := NewSMA(period)
	if err != nil {
		return nil, err
	}

	return &ATR{period: period, sma: sma}, nil
}

// Period returns the configured period.
func (a *ATR) Period() int { return a.period }

// Compute returns the ATR series aligned with bars. True range uses the
// previous close; the first bar's true range falls back to high-low.
func (a *ATR) Compute(bars []types.Bar) []float64 {
	tr := make([]float64, len(bars))

	for i, bar := range bars {
		if i == 0 {
			tr[i] = bar.High - bar.Low

			continue
		}

		prevClose := bars[i-1].Close
		tr[i] = math.Max(
			math.Max(bar.High-bar.Low, math.Abs(bar.High-prevClose)),
			math.Abs(bar.Low-prevClose),
		)
	}

	return a.sma.Compute(tr)
}
