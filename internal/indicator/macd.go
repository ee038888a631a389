package indicator

import (
	"github.com/idxquant/swingbt/pkg/errors"
)

// MACDResult holds the three MACD output series, each aligned with the input.
type MACDResult struct {
	MACD      []float64
	Signal    []float64
	Histogram []float64
}

// MACD computes the Moving Average Convergence Divergence indicator.
type MACD struct {
	fast   *EMA
	slow   *EMA
	signal *EMA
}

// NewMACD creates a MACD indicator with the given fast, slow and signal
// periods.
func NewMACD(fastPeriod, slowPeriod, signalPeriod int) (*MACD, error) {
	if fastPeriod >= slowPeriod {
		return nil, errors.Newf(errors.ErrCodeInvalidPeriod,
			"macd fast period %d must be shorter than slow period %d", fastPeriod, slowPeriod)
	}

	fast, err := NewEMA(fastPeriod)
	if err != nil {
		return nil, err
	}

	slow, err := NewEMA(slowPeriod)
	if err != nil {
		return nil, err
	}

	signal, err := NewEMA(signalPeriod)
	if err != nil {
		return nil, err
	}

	return &MACD{fast: fast, slow: slow, signal: signal}, nil
}

// Compute returns the MACD line, signal line and histogram for closes.
func (m *MACD) Compute(closes []float64) MACDResult {
	fastEMA := m.fast.Compute(closes)
	slowEMA := m.slow.Compute(closes)

	macdLine := make([]float64, len(closes))
	for i := range closes {
		macdLine[i] = fastEMA[i] - slowEMA[i]
	}

	signalLine := m.signal.Compute(macdLine)

	histogram := make([]float64, len(closes))
	for i := range closes {
		histogram[i] = macdLine[i] - signalLine[i]
	}

	return MACDResult{
		MACD:      macdLine,
		Signal:    signalLine,
		Histogram: histogram,
	}
}
