package discrimination

import (
	"fmt"
	"strconv"
	"time"

	"quotebias/domain/core"
)

const (
	// TieBand is the half-width of the "practically equal price" band, in
	// the currency unit of the outcome.
	TieBand = 5.0

	// Alpha is the significance level of the sign test.
	Alpha = 0.05

	// ControlAttribute and ControlPairs label control-pair baseline rows.
	ControlAttribute = "control"
	ControlPairs     = "control pairs"
)

// MatchedPair is a baseline/test record pair that differ only in the
// attribute under test. Indices refer to the source dataset(s).
type MatchedPair struct {
	BaselineIndex   int     `json:"baseline_index"`
	TestIndex       int     `json:"test_index"`
	BaselineOutcome float64 `json:"baseline_outcome"`
	TestOutcome     float64 `json:"test_outcome"`
	Diff            float64 `json:"diff"`
}

// NewMatchedPair builds a pair with Diff = test - baseline.
func NewMatchedPair(baselineIdx, testIdx int, baseline, test float64) MatchedPair {
	return MatchedPair{
		BaselineIndex:   baselineIdx,
		TestIndex:       testIdx,
		BaselineOutcome: baseline,
		TestOutcome:     test,
		Diff:            test - baseline,
	}
}

// Diffs extracts the paired-difference sample.
func Diffs(pairs []MatchedPair) []float64 {
	out := make([]float64, len(pairs))
	for i, p := range pairs {
		out[i] = p.Diff
	}
	return out
}

// DistributionSummary is one row of the comparison table. Q25/Q75 are only
// meaningful when HasQuartiles is set.
type DistributionSummary struct {
	Attribute    string  `json:"attribute"`
	Pairs        string  `json:"pairs"`
	N            int     `json:"n"`
	TieRate      float64 `json:"tie_rate"`
	Q05          float64 `json:"q05"`
	Q25          float64 `json:"q25,omitempty"`
	Median       float64 `json:"median"`
	Q75          float64 `json:"q75,omitempty"`
	Q95          float64 `json:"q95"`
	Mean         float64 `json:"mean"`
	M            float64 `json:"m"`
	SignTestN    int     `json:"sign_test_n"`
	PValue       float64 `json:"p_value"`
	Significant  bool    `json:"significant"`
	HasQuartiles bool    `json:"has_quartiles"`
}

// Quantiles returns the reported quantiles in ascending probability order.
func (s DistributionSummary) Quantiles() []float64 {
	if s.HasQuartiles {
		return []float64{s.Q05, s.Q25, s.Median, s.Q75, s.Q95}
	}
	return []float64{s.Q05, s.Median, s.Q95}
}

// Options configure a comparison. There are no other recognized options.
type Options struct {
	IncludeQuartiles bool `json:"include_quartiles" yaml:"include_quartiles"`
	NumericOutput    bool `json:"numeric_output" yaml:"numeric_output"`
}

// DedupPolicy controls repeated identical submissions before matching.
type DedupPolicy string

const (
	// DedupKeepAll keeps every row; duplicate covariate combinations multiply pairs.
	DedupKeepAll DedupPolicy = "keep_all"
	// DedupFirst keeps the first row of each covariates+attribute combination.
	DedupFirst DedupPolicy = "first"
)

// ParseDedupPolicy validates a policy name; empty means DedupKeepAll.
func ParseDedupPolicy(s string) (DedupPolicy, error) {
	switch DedupPolicy(s) {
	case "", DedupKeepAll:
		return DedupKeepAll, nil
	case DedupFirst:
		return DedupFirst, nil
	}
	return "", core.NewConfigError("dedup", fmt.Sprintf("unknown policy %q", s))
}

// Comparison names one attribute/value-pair test.
type Comparison struct {
	Attribute     string `json:"attribute" yaml:"attribute"`
	TestValue     string `json:"test" yaml:"test"`
	BaselineValue string `json:"baseline" yaml:"baseline"`
	Outcome       string `json:"outcome,omitempty" yaml:"outcome,omitempty"`
}

// PairsLabel is the human-readable pair description.
func (c Comparison) PairsLabel() string {
	return fmt.Sprintf("%s vs %s", c.TestValue, c.BaselineValue)
}

// Swapped returns the comparison with test and baseline exchanged.
func (c Comparison) Swapped() Comparison {
	c.TestValue, c.BaselineValue = c.BaselineValue, c.TestValue
	return c
}

// Validate checks the comparison in isolation (no dataset).
func (c Comparison) Validate(covariates []string) error {
	if c.Attribute == "" {
		return core.NewConfigError("attribute", "cannot be empty")
	}
	for _, cov := range covariates {
		if cov == c.Attribute {
			return core.NewConfigError("attribute", fmt.Sprintf("%q must not be a matching covariate", c.Attribute))
		}
	}
	if c.TestValue == c.BaselineValue {
		return core.NewConfigError("values", fmt.Sprintf("test and baseline are both %q", c.TestValue))
	}
	return nil
}

// Plan is a batch of comparisons over one dataset, plus an optional
// control-pair baseline row.
type Plan struct {
	Name        string       `json:"name" yaml:"name"`
	Outcome     string       `json:"outcome" yaml:"outcome"`
	Covariates  []string     `json:"covariates,omitempty" yaml:"covariates,omitempty"`
	Dedup       DedupPolicy  `json:"dedup,omitempty" yaml:"dedup,omitempty"`
	Options     Options      `json:"options" yaml:"options"`
	Comparisons []Comparison `json:"comparisons" yaml:"comparisons"`
	Control     bool         `json:"control" yaml:"control"`
	SkipEmpty   bool         `json:"skip_empty" yaml:"skip_empty"`
}

// ComparisonTable is the ordered result of a plan run.
type ComparisonTable struct {
	RunID            core.RunID            `json:"run_id"`
	Name             string                `json:"name"`
	IncludeQuartiles bool                  `json:"include_quartiles"`
	NumericOutput    bool                  `json:"numeric_output"`
	Rows             []DistributionSummary `json:"rows"`
	CreatedAt        core.Timestamp        `json:"created_at"`
}

// NewComparisonTable creates an empty table for a run
func NewComparisonTable(name string, opts Options) *ComparisonTable {
	return &ComparisonTable{
		RunID:            core.NewRunID(),
		Name:             name,
		IncludeQuartiles: opts.IncludeQuartiles,
		NumericOutput:    opts.NumericOutput,
		CreatedAt:        core.Now(),
	}
}

// Add appends a row
func (t *ComparisonTable) Add(rows ...DistributionSummary) {
	t.Rows = append(t.Rows, rows...)
}

// Columns returns the report header for the table.
func (t *ComparisonTable) Columns() []string {
	cols := []string{"Attribute", "Pairs", "Ties5", ".05()"}
	if t.IncludeQuartiles {
		cols = append(cols, ".25()")
	}
	cols = append(cols, ".50()")
	if t.IncludeQuartiles {
		cols = append(cols, ".75()")
	}
	return append(cols, ".95()", "m()", "p-value")
}

// Fingerprint hashes the numeric content of the table; identical inputs give
// identical fingerprints regardless of run id.
func (t *ComparisonTable) Fingerprint() core.Hash {
	lines := make([]string, 0, len(t.Rows)+1)
	lines = append(lines, strconv.FormatBool(t.IncludeQuartiles))
	for _, r := range t.Rows {
		line := fmt.Sprintf("%s|%s|%d|%s|%s|%s|%s|%s",
			r.Attribute, r.Pairs, r.N,
			ftoa(r.TieRate), joinFloats(r.Quantiles()), ftoa(r.Mean), ftoa(r.M), ftoa(r.PValue))
		lines = append(lines, line)
	}
	return core.HashLines(lines)
}

func ftoa(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}

func joinFloats(fs []float64) string {
	s := ""
	for i, f := range fs {
		if i > 0 {
			s += ","
		}
		s += ftoa(f)
	}
	return s
}

// RunSummary describes a stored run without its rows
type RunSummary struct {
	RunID       core.RunID `json:"run_id" db:"run_id"`
	Name        string     `json:"name" db:"name"`
	Fingerprint core.Hash  `json:"fingerprint" db:"fingerprint"`
	Rows        int        `json:"rows" db:"row_count"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
}
