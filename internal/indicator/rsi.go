package indicator

import (
	"github.com/idxquant/swingbt/pkg/errors"
)

// RSI computes the Relative Strength Index using Wilder's smoothing method.
type RSI struct {
	period int
}

// NewRSI creates an RSI indicator for the given period.
func NewRSI(period int) (*RSI, error) {
	if period <= 0 {
		return nil, errors.Newf(errors.ErrCodeInvalidPeriod, "rsi period must be positive, got %d", period)
	}

	return &RSI{period: period}, nil
}

// Period returns the configured period.
func (r *RSI) Period() int { return r.period }

// Compute returns the RSI series aligned with closes. The first `period`
// indices hold NaN. The initial averages are simple means of the first
// `period` gains/losses; subsequent values use Wilder's recursion
// avg = (prevAvg*(period-1) + current) / period.
func (r *RSI) Compute(closes []float64) []float64 {
	out := make([]float64, len(closes))
	nanPrefix(out, len(closes))

	if len(closes) <= r.period {
		return out
	}

	var gainSum, lossSum float64

	for i := 1; i <= r.period; i++ {
		delta := closes[i] - closes[i-1]
		if delta > 0 {
			gainSum += delta
		} else {
			lossSum -= delta
		}
	}

	avgGain := gainSum / float64(r.period)
	avgLoss := lossSum / float64(r.period)
	out[r.period] = rsiValue(avgGain, avgLoss)

	for i := r.period + 1; i < len(closes); i++ {
		delta := closes[i] - closes[i-1]

		gain, loss := 0.0, 0.0
		if delta > 0 {
			gain = delta
		} else {
			loss = -delta
		}

		avgGain = (avgGain*float64(r.period-1) + gain) / float64(r.period)
		avgLoss = (avgLoss*float64(r.period-1) + loss) / float64(r.period)
		out[i] = rsiValue(avgGain, avgLoss)
	}

	return out
}

func rsiValue(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		if avgGain == 0 {
			return 50
		}

		return 100
	}

	rs := avgGain / avgLoss

	return 100 - 100/(1+rs)
}
