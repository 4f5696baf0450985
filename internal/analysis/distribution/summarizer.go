package distribution

import (
	"fmt"
	"math"
	"sort"

	"quotebias/domain/core"
	"quotebias/domain/discrimination"

	"github.com/montanaflynn/stats"
)

// Summarizer turns a paired-difference sample into a DistributionSummary.
type Summarizer struct{}

// NewSummarizer creates a new summarizer
func NewSummarizer() *Summarizer {
	return &Summarizer{}
}

// Summarize computes tie-rate, type-7 quantiles, mean and the sign test for
// sample. An empty sample fails with core.ErrEmptyDistribution.
func (s *Summarizer) Summarize(sample []float64, attribute, pairs string, includeQuartiles bool) (discrimination.DistributionSummary, error) {
	summary := discrimination.DistributionSummary{
		Attribute:    attribute,
		Pairs:        pairs,
		N:            len(sample),
		HasQuartiles: includeQuartiles,
	}

	if len(sample) == 0 {
		return summary, fmt.Errorf("%w: %s (%s)", core.ErrEmptyDistribution, attribute, pairs)
	}
	for _, v := range sample {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return summary, core.NewConfigError("sample", fmt.Sprintf("non-finite difference in %s (%s)", attribute, pairs))
		}
	}

	sorted := make([]float64, len(sample))
	copy(sorted, sample)
	sort.Float64s(sorted)

	mean, err := stats.Mean(sorted)
	if err != nil {
		return summary, fmt.Errorf("mean: %w", err)
	}
	summary.Mean = mean
	summary.Median = quantileSorted(sorted, 0.5)
	summary.Q05 = quantileSorted(sorted, 0.05)
	summary.Q95 = quantileSorted(sorted, 0.95)
	if includeQuartiles {
		summary.Q25 = quantileSorted(sorted, 0.25)
		summary.Q75 = quantileSorted(sorted, 0.75)
	}
	summary.TieRate = TieRate(sorted)

	sign := SignTest(sorted)
	summary.M = sign.M
	summary.SignTestN = sign.N()
	summary.PValue = sign.PValue
	summary.Significant = sign.PValue < discrimination.Alpha

	return summary, nil
}

// TieRate is the percentage of values within [-TieBand, TieBand].
func TieRate(sample []float64) float64 {
	if len(sample) == 0 {
		return math.NaN()
	}
	ties := 0
	for _, v := range sample {
		if v >= -discrimination.TieBand && v <= discrimination.TieBand {
			ties++
		}
	}
	return 100 * float64(ties) / float64(len(sample))
}
