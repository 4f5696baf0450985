package distribution

import (
	"math"
	"sort"
)

// Quantile returns the p-quantile of sample using linear interpolation
// between order statistics (h = (n-1)p, the pandas/R "type 7" default).
// The sample is not modified.
func Quantile(sample []float64, p float64) float64 {
	if len(sample) == 0 {
		return math.NaN()
	}
	sorted := make([]float64, len(sample))
	copy(sorted, sample)
	sort.Float64s(sorted)
	return quantileSorted(sorted, p)
}

// quantileSorted expects an ascending sample. The result is clamped to the
// bracketing order statistics so quantiles stay monotone in p under rounding.
func quantileSorted(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 1 || p <= 0 {
		return sorted[0]
	}
	if p >= 1 {
		return sorted[n-1]
	}

	h := float64(n-1) * p
	lo := math.Floor(h)
	i := int(lo)
	if i >= n-1 {
		return sorted[n-1]
	}

	a, b := sorted[i], sorted[i+1]
	q := a + (h-lo)*(b-a)
	return math.Min(math.Max(q, a), b)
}
