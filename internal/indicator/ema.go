package indicator

import (
	"github.com/idxquant/swingbt/pkg/errors"
)

// EMA computes an exponential moving average with smoothing factor
// 2/(period+1), seeded with the first input value.
type EMA struct {
	period int
}

// NewEMA creates an EMA indicator for the given period.
func NewEMA(period int) (*EMA, error) {
	if period <= 0 {
		return nil, errors.Newf(errors.ErrCodeInvalidPeriod, "ema period must be positive, got %d", period)
	}

	return &EMA{period: period}, nil
}

// Period returns the configured period.
func (e *EMA) Period() int { return e.period }

// Compute returns the EMA series aligned with values. The series is defined
// from index 0 since the average is seeded with the first value.
func (e *EMA) Compute(values []float64) []float64 {
	out := make([]float64, len(values))
	if len(values) == 0 {
		return out
	}

	alpha := 2.0 / (float64(e.period) + 1.0)
	out[0] = values[0]

	for i := 1; i < len(values); i++ {
		out[i] = alpha*values[i] + (1-alpha)*out[i-1]
	}

	return out
}
