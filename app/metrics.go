package app

import (
	"quotebias/domain/core"
	"quotebias/domain/discrimination"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	metricsNamespace  = "quotebias"
	analysisSubsystem = "analysis"
)

// Comparison kinds used as the "kind" label
const (
	kindComparison = "comparison"
	kindControl    = "control"
)

// Metrics holds the Prometheus metrics of the comparison service
type Metrics struct {
	// ComparisonsTotal counts comparisons by kind and status.
	// Labels: kind (comparison, control), status (ok, empty, invalid, error)
	ComparisonsTotal *prometheus.CounterVec

	// MatchedPairs measures the sample size of successful comparisons.
	// Labels: kind
	MatchedPairs *prometheus.HistogramVec

	// RunDurationSeconds measures plan runs end to end.
	RunDurationSeconds prometheus.Histogram
}

// NewMetrics creates the service metrics and registers them with reg. A nil
// reg leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		ComparisonsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: analysisSubsystem,
				Name:      "comparisons_total",
				Help:      "Comparisons by kind and status",
			},
			[]string{"kind", "status"},
		),
		MatchedPairs: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: analysisSubsystem,
				Name:      "matched_pairs",
				Help:      "Matched pairs per comparison",
				Buckets:   prometheus.ExponentialBuckets(1, 4, 8),
			},
			[]string{"kind"},
		),
		RunDurationSeconds: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: analysisSubsystem,
				Name:      "run_duration_seconds",
				Help:      "Plan run duration in seconds",
				Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30},
			},
		),
	}
}

func (m *Metrics) observe(kind string, row discrimination.DistributionSummary, err error) {
	m.ComparisonsTotal.WithLabelValues(kind, status(err)).Inc()
	if err == nil {
		m.MatchedPairs.WithLabelValues(kind).Observe(float64(row.N))
	}
}

func status(err error) string {
	switch {
	case err == nil:
		return "ok"
	case core.IsEmptyError(err):
		return "empty"
	case core.IsConfigError(err):
		return "invalid"
	}
	return "error"
}
