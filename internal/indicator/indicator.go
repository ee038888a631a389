// Package indicator implements the technical indicators used by the swing
// strategy. All indicators are pure functions of an input series: given the
// same window they always produce the same output, which keeps strategy
// evaluation deterministic and time-causal.
//
// Output slices are aligned with the input; positions inside an indicator's
// warm-up period hold NaN.
package indicator

import "math"

// nan fills the first n elements of out with NaN and returns out.
func nanPrefix(out []float64, n int) []float64 {
	for i := 0; i < n && i < len(out); i++ {
		out[i] = math.NaN()
	}

	return out
}

// IsWarm reports whether the value at the given index is past the indicator
// warm-up (i.e. not NaN).
func IsWarm(series []float64, index int) bool {
	if index < 0 || index >= len(series) {
		return false
	}

	return !math.IsNaN(series[index])
}
