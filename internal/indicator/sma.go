package indicator

import (
	"github.com/idxquant/swingbt/pkg/errors"
)

// SMA computes a simple moving average over a rolling window.
type SMA struct {
	period int
}

// NewSMA creates an SMA indicator for the given period.
func NewSMA(period int) (*SMA, error) {
	if period <= 0 {
		return nil, errors.Newf(errors.ErrCodeInvalidPeriod, "sma period must be positive, got %d", period)
	}

	return &SMA{period: period}, nil
}

// Period returns the configured period.
func (s *SMA) Period() int { return s.period }

// Compute returns the rolling mean aligned with values; indices before the
// first full window hold NaN.
func (s *SMA) Compute(values []float64) []float64 {
	out := make([]float64, len(values))
	nanPrefix(out, s.period-1)

	if len(values) < s.period {
		nanPrefix(out, len(values))

		return out
	}

	sum := 0.0
	for i := 0; i < s.period; i++ {
		sum += values[i]
	}

	out[s.period-1] = sum / float64(s.period)

	for i := s.period; i < len(values); i++ {
		sum += values[i] - values[i-s.period]
		out[i] = sum / float64(s.period)
	}

	return out
}
