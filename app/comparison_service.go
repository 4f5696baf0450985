package app

import (
	"context"
	"fmt"
	"sort"
	"time"

	"quotebias/domain/core"
	"quotebias/domain/discrimination"
	"quotebias/domain/quotes"
	"quotebias/internal"
	"quotebias/internal/analysis/distribution"
	"quotebias/internal/analysis/matching"
	"quotebias/ports"

	"golang.org/x/sync/errgroup"
)

// ComparisonService runs matched-pairs discrimination comparisons
type ComparisonService struct {
	matcher    *matching.Matcher
	summarizer *distribution.Summarizer
	sink       ports.DiagnosticSink
	metrics    *Metrics
	logger     *internal.Logger
	outcome    string
	workers    int
}

// ComparisonServiceConfig configures a ComparisonService
type ComparisonServiceConfig struct {
	Dedup   discrimination.DedupPolicy
	Outcome string
	Workers int
	// Sink receives matched pairs of every comparison; nil disables dumps
	Sink ports.DiagnosticSink
	// Metrics defaults to an unregistered set
	Metrics *Metrics
	Logger  *internal.Logger
}

// NewComparisonService creates a comparison service
func NewComparisonService(cfg ComparisonServiceConfig) *ComparisonService {
	logger := cfg.Logger
	if logger == nil {
		logger = internal.DefaultLogger
	}
	outcome := cfg.Outcome
	if outcome == "" {
		outcome = "top1"
	}
	workers := cfg.Workers
	if workers < 1 {
		workers = 1
	}
	metrics := cfg.Metrics
	if metrics == nil {
		metrics = NewMetrics(nil)
	}
	return &ComparisonService{
		matcher:    matching.NewMatcher(cfg.Dedup, logger),
		summarizer: distribution.NewSummarizer(),
		sink:       cfg.Sink,
		metrics:    metrics,
		logger:     logger.With("Comparison"),
		outcome:    outcome,
		workers:    workers,
	}
}

// Compare matches test against baseline records of c.Attribute and
// summarizes the paired differences. The comparison's own outcome overrides
// the service default.
func (s *ComparisonService) Compare(ctx context.Context, ds *quotes.Dataset, c discrimination.Comparison, covariates []string, opts discrimination.Options) (discrimination.DistributionSummary, error) {
	return s.compare(ctx, s.matcher, ds, c, covariates, s.outcome, opts)
}

func (s *ComparisonService) compare(ctx context.Context, m *matching.Matcher, ds *quotes.Dataset, c discrimination.Comparison, covariates []string, outcome string, opts discrimination.Options) (discrimination.DistributionSummary, error) {
	row, err := s.summarizeComparison(ctx, m, ds, c, covariates, outcome, opts)
	s.metrics.observe(kindComparison, row, err)
	return row, err
}

func (s *ComparisonService) summarizeComparison(ctx context.Context, m *matching.Matcher, ds *quotes.Dataset, c discrimination.Comparison, covariates []string, outcome string, opts discrimination.Options) (discrimination.DistributionSummary, error) {
	if err := ctx.Err(); err != nil {
		return discrimination.DistributionSummary{}, err
	}

	req := matching.RequestFor(c, covariates, outcome)
	ds, err := withOutcome(ds, req.Outcome)
	if err != nil {
		return discrimination.DistributionSummary{}, err
	}
	pairs, err := m.Match(ds, req)
	if err != nil {
		return discrimination.DistributionSummary{}, err
	}
	s.dump(ctx, c, pairs)

	return s.summarizer.Summarize(discrimination.Diffs(pairs), c.Attribute, c.PairsLabel(), opts.IncludeQuartiles)
}

// Baseline summarizes the control pairs: differences between repeat queries
// of one profile. With a control dataset the pairs join ds to control on the
// covariates; with a nil control the repeats inside ds are used.
func (s *ComparisonService) Baseline(ctx context.Context, ds, control *quotes.Dataset, covariates []string, outcome string, opts discrimination.Options) (discrimination.DistributionSummary, error) {
	return s.baseline(ctx, s.matcher, ds, control, covariates, outcome, opts)
}

func (s *ComparisonService) baseline(ctx context.Context, m *matching.Matcher, ds, control *quotes.Dataset, covariates []string, outcome string, opts discrimination.Options) (discrimination.DistributionSummary, error) {
	row, err := s.summarizeBaseline(ctx, m, ds, control, covariates, outcome, opts)
	s.metrics.observe(kindControl, row, err)
	return row, err
}

func (s *ComparisonService) summarizeBaseline(ctx context.Context, m *matching.Matcher, ds, control *quotes.Dataset, covariates []string, outcome string, opts discrimination.Options) (discrimination.DistributionSummary, error) {
	if err := ctx.Err(); err != nil {
		return discrimination.DistributionSummary{}, err
	}
	if outcome == "" {
		outcome = s.outcome
	}

	ds, err := withOutcome(ds, outcome)
	if err != nil {
		return discrimination.DistributionSummary{}, err
	}
	if control, err = withOutcome(control, outcome); err != nil {
		return discrimination.DistributionSummary{}, err
	}

	var pairs []discrimination.MatchedPair
	if control != nil {
		pairs, err = m.MatchControl(ds, control, covariates, outcome)
	} else {
		pairs, err = m.MatchRepeats(ds, covariates, outcome)
	}
	if err != nil {
		return discrimination.DistributionSummary{}, err
	}

	label := discrimination.Comparison{Attribute: discrimination.ControlAttribute, TestValue: "control", BaselineValue: "survey"}
	s.dump(ctx, label, pairs)

	return s.summarizer.Summarize(discrimination.Diffs(pairs),
		discrimination.ControlAttribute, discrimination.ControlPairs, opts.IncludeQuartiles)
}

// Run executes every comparison of plan over ds and returns the rows in plan
// order, preceded by the control-pair row when plan.Control is set. Rows with
// no pairs fail the run unless plan.SkipEmpty is set. Without plan
// covariates a comparison matches on every other schema column.
func (s *ComparisonService) Run(ctx context.Context, ds, control *quotes.Dataset, plan *discrimination.Plan) (*discrimination.ComparisonTable, error) {
	if plan == nil {
		return nil, core.NewConfigError("plan", "cannot be nil")
	}
	policy, err := discrimination.ParseDedupPolicy(string(plan.Dedup))
	if err != nil {
		return nil, err
	}
	m := s.matcher
	if plan.Dedup != "" && policy != m.Policy() {
		m = matching.NewMatcher(policy, s.logger)
	}
	outcome := plan.Outcome
	if outcome == "" {
		outcome = s.outcome
	}

	start := time.Now()
	table := discrimination.NewComparisonTable(plan.Name, plan.Options)
	s.logger.Info("run %s: %d comparisons over %d records (control=%t, workers=%d)",
		table.RunID, len(plan.Comparisons), ds.Len(), plan.Control, s.workers)

	if plan.Control {
		row, err := s.baseline(ctx, m, ds, control, controlCovariates(plan), outcome, plan.Options)
		switch {
		case err == nil:
			table.Add(row)
		case plan.SkipEmpty && core.IsEmptyError(err):
			s.logger.Warn("run %s: control baseline skipped: %v", table.RunID, err)
		default:
			return nil, fmt.Errorf("control baseline: %w", err)
		}
	}

	rows := make([]discrimination.DistributionSummary, len(plan.Comparisons))
	ok := make([]bool, len(plan.Comparisons))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for i, c := range plan.Comparisons {
		covariates := plan.Covariates
		if len(covariates) == 0 {
			covariates = quotes.CovariatesExcept(c.Attribute)
		}
		g.Go(func() error {
			row, err := s.compare(gctx, m, ds, c, covariates, outcome, plan.Options)
			if err != nil {
				if plan.SkipEmpty && core.IsEmptyError(err) {
					s.logger.Warn("run %s: %s (%s) skipped: %v", table.RunID, c.Attribute, c.PairsLabel(), err)
					return nil
				}
				return fmt.Errorf("%s (%s): %w", c.Attribute, c.PairsLabel(), err)
			}
			rows[i], ok[i] = row, true
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	s.metrics.RunDurationSeconds.Observe(time.Since(start).Seconds())

	for i, row := range rows {
		if ok[i] {
			table.Add(row)
		}
	}

	s.logger.Info("run %s: %d rows in %s (fingerprint %s)",
		table.RunID, len(table.Rows), time.Since(start).Round(time.Millisecond), table.Fingerprint().Short())
	return table, nil
}

// controlCovariates identifies a repeated profile: the plan covariates plus
// every tested attribute, or the full schema when the plan names none.
func controlCovariates(plan *discrimination.Plan) []string {
	if len(plan.Covariates) == 0 {
		return quotes.DefaultCovariates()
	}
	out := append([]string(nil), plan.Covariates...)
	seen := make(map[string]bool, len(out))
	for _, c := range out {
		seen[c] = true
	}
	for _, c := range plan.Comparisons {
		if !seen[c.Attribute] {
			seen[c.Attribute] = true
			out = append(out, c.Attribute)
		}
	}
	return out
}

// dump hands the pairs, sorted by diff, to the diagnostic sink. Sink failures
// are logged and never fail the comparison.
func (s *ComparisonService) dump(ctx context.Context, c discrimination.Comparison, pairs []discrimination.MatchedPair) {
	if s.sink == nil {
		return
	}
	sorted := make([]discrimination.MatchedPair, len(pairs))
	copy(sorted, pairs)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Diff < sorted[j].Diff })

	if err := s.sink.RecordPairs(ctx, c, sorted); err != nil {
		s.logger.Warn("diagnostic dump for %s (%s) failed: %v", c.Attribute, c.PairsLabel(), err)
	}
}
