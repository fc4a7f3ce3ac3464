package indicator

import "math"

// EMA computes the exponential moving average of values with the given
// period. The seed is the simple average of the first period defined
// values; positions before the seed window hold NaN. Leading NaNs in the
// input (e.g. a DIF column with its own warm-up) are skipped, so the
// output warm-up stacks on top of the input's.
func EMA(values []float64, period int) []float64 {
	out := nanSlice(len(values))
	if period <= 0 || len(values) == 0 {
		return out
	}

	start := 0
	for start < len(values) && math.IsNaN(values[start]) {
		start++
	}
	if len(values)-start < period {
		return out
	}

	seed := 0.0
	for i := start; i < start+period; i++ {
		seed += values[i]
	}
	seed /= float64(period)

	alpha := 2.0 / (float64(period) + 1.0)
	out[start+period-1] = seed
	prev := seed
	for i := start + period; i < len(values); i++ {
		prev = alpha*values[i] + (1-alpha)*prev
		out[i] = prev
	}
	return out
}

func nanSlice(n int) []float64 {
	s := make([]float64, n)
	for i := range s {
		s[i] = math.NaN()
	}
	return s
}
