package distribution

import (
	"math"

	"gonum.org/v1/gonum/stat/distuv"
)

// SignTestResult holds the outcome of a two-sided sign test against zero.
type SignTestResult struct {
	Positive int
	Negative int
	M        float64 // (pos - neg) / 2
	PValue   float64
}

// N is the number of non-zero observations the test was computed on.
func (r SignTestResult) N() int {
	return r.Positive + r.Negative
}

// SignTest counts values above and below zero (zeros are discarded) and
// computes the two-sided binomial p-value at min(pos, neg) with p = 0.5.
// With no non-zero values the test has no power and the p-value is 1.
func SignTest(sample []float64) SignTestResult {
	var res SignTestResult
	for _, v := range sample {
		switch {
		case v > 0:
			res.Positive++
		case v < 0:
			res.Negative++
		}
	}
	res.M = float64(res.Positive-res.Negative) / 2

	n := res.N()
	if n == 0 {
		res.PValue = 1
		return res
	}

	k := res.Positive
	if res.Negative < k {
		k = res.Negative
	}

	// Symmetric null: both tails are equally likely, so double the lower tail.
	binom := distuv.Binomial{N: float64(n), P: 0.5}
	res.PValue = math.Min(1, 2*binom.CDF(float64(k)))
	return res
}
