// Package matching pairs survey records that differ only in the attribute
// under test, and pairs known duplicate submissions for the control baseline.
package matching

import (
	"fmt"
	"strings"

	"quotebias/domain/core"
	"quotebias/domain/discrimination"
	"quotebias/domain/quotes"
	"quotebias/internal"
)

// keySep joins covariate values into a join key; it cannot occur in CSV cells.
const keySep = "\x1f"

// MatchRequest describes one attribute/value-pair to match.
type MatchRequest struct {
	Attribute     string
	TestValue     string
	BaselineValue string
	Covariates    []string
	Outcome       string
}

// RequestFor builds a MatchRequest from a plan comparison.
func RequestFor(c discrimination.Comparison, covariates []string, outcome string) MatchRequest {
	if c.Outcome != "" {
		outcome = c.Outcome
	}
	return MatchRequest{
		Attribute:     c.Attribute,
		TestValue:     c.TestValue,
		BaselineValue: c.BaselineValue,
		Covariates:    covariates,
		Outcome:       outcome,
	}
}

func (r MatchRequest) comparison() discrimination.Comparison {
	return discrimination.Comparison{Attribute: r.Attribute, TestValue: r.TestValue, BaselineValue: r.BaselineValue}
}

// Matcher performs exact covariate equi-joins. It holds only configuration.
type Matcher struct {
	policy discrimination.DedupPolicy
	logger *internal.Logger
}

// NewMatcher creates a matcher applying policy before every join
func NewMatcher(policy discrimination.DedupPolicy, logger *internal.Logger) *Matcher {
	if policy == "" {
		policy = discrimination.DedupKeepAll
	}
	if logger == nil {
		logger = internal.DefaultLogger
	}
	return &Matcher{policy: policy, logger: logger.With("Matcher")}
}

// Policy returns the dedup policy in force
func (m *Matcher) Policy() discrimination.DedupPolicy {
	return m.policy
}

// Match returns every (baseline, test) record pair that agrees on all
// covariates, with Diff = outcome(test) - outcome(baseline). Records with an
// empty covariate or a missing outcome take no part. No pairs is
// core.ErrEmptyResult.
func (m *Matcher) Match(ds *quotes.Dataset, req MatchRequest) ([]discrimination.MatchedPair, error) {
	if err := m.validate(ds, req); err != nil {
		return nil, err
	}

	keyCols := append(append([]string(nil), req.Covariates...), req.Attribute)
	rows := eligibleRows(ds, keyCols, req.Outcome)
	dropped := ds.Len() - len(rows)
	if m.policy == discrimination.DedupFirst {
		rows = dedupFirst(ds, rows, keyCols)
	}

	var baselineRows []int
	testIndex := make(map[string][]int)
	testCount := 0
	for _, i := range rows {
		rec := ds.Records[i]
		switch rec.Value(req.Attribute) {
		case req.BaselineValue:
			baselineRows = append(baselineRows, i)
		case req.TestValue:
			key := joinKey(rec, req.Covariates)
			testIndex[key] = append(testIndex[key], i)
			testCount++
		}
	}

	var pairs []discrimination.MatchedPair
	for _, bi := range baselineRows {
		base := ds.Records[bi]
		for _, ti := range testIndex[joinKey(base, req.Covariates)] {
			bv, _ := base.Outcome(req.Outcome)
			tv, _ := ds.Records[ti].Outcome(req.Outcome)
			pairs = append(pairs, discrimination.NewMatchedPair(bi, ti, bv, tv))
		}
	}

	label := req.comparison().PairsLabel()
	m.logger.Debug("%s / %s: %d baseline, %d test, %d dropped incomplete, %d pairs (dedup=%s)",
		req.Attribute, label, len(baselineRows), testCount, dropped, len(pairs), m.policy)

	if len(pairs) == 0 {
		return nil, core.NewEmptyResultError(req.Attribute, label)
	}
	return pairs, nil
}

func (m *Matcher) validate(ds *quotes.Dataset, req MatchRequest) error {
	if ds == nil {
		return core.NewConfigError("dataset", "cannot be nil")
	}
	if err := req.comparison().Validate(req.Covariates); err != nil {
		return err
	}
	if !ds.HasCategorical(req.Attribute) {
		return core.NewMissingColumnError("attribute", req.Attribute)
	}
	if err := checkSchema(ds, req.Covariates, req.Outcome); err != nil {
		return err
	}
	for _, v := range []string{req.TestValue, req.BaselineValue} {
		if !ds.Observed(req.Attribute, v) {
			return core.NewUnobservedValueError(req.Attribute, v)
		}
	}
	return nil
}

func checkSchema(ds *quotes.Dataset, covariates []string, outcome string) error {
	if len(covariates) == 0 {
		return core.NewConfigError("covariates", "at least one matching covariate is required")
	}
	for _, c := range covariates {
		if !ds.HasCategorical(c) {
			return core.NewMissingColumnError("covariate", c)
		}
	}
	if !ds.HasNumeric(outcome) {
		return core.NewMissingColumnError("outcome", outcome)
	}
	return nil
}

// eligibleRows returns indices of records with every key column populated and
// the outcome present, in dataset order.
func eligibleRows(ds *quotes.Dataset, keyCols []string, outcome string) []int {
	rows := make([]int, 0, ds.Len())
	for i, rec := range ds.Records {
		if _, ok := rec.Outcome(outcome); !ok {
			continue
		}
		complete := true
		for _, c := range keyCols {
			if rec.Value(c) == "" {
				complete = false
				break
			}
		}
		if complete {
			rows = append(rows, i)
		}
	}
	return rows
}

func dedupFirst(ds *quotes.Dataset, rows []int, keyCols []string) []int {
	seen := make(map[string]bool, len(rows))
	out := rows[:0:0]
	for _, i := range rows {
		key := joinKey(ds.Records[i], keyCols)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, i)
	}
	return out
}

func joinKey(rec quotes.Record, cols []string) string {
	parts := make([]string, len(cols))
	for i, c := range cols {
		parts[i] = rec.Value(c)
	}
	return strings.Join(parts, keySep)
}

func describe(ds *quotes.Dataset) string {
	if ds.Name != "" {
		return ds.Name
	}
	return fmt.Sprintf("dataset(%d rows)", ds.Len())
}
