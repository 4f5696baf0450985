package matching

import (
	"quotebias/domain/core"
	"quotebias/domain/discrimination"
	"quotebias/domain/quotes"
)

// MatchControl joins ds with a control dataset of known repeat submissions on
// covariates. Diff = outcome(control) - outcome(ds); BaselineIndex indexes ds
// and TestIndex indexes control.
func (m *Matcher) MatchControl(ds, control *quotes.Dataset, covariates []string, outcome string) ([]discrimination.MatchedPair, error) {
	if ds == nil || control == nil {
		return nil, core.NewConfigError("dataset", "both dataset and control dataset are required")
	}
	if err := checkSchema(ds, covariates, outcome); err != nil {
		return nil, err
	}
	if err := checkSchema(control, covariates, outcome); err != nil {
		return nil, err
	}

	rows := eligibleRows(ds, covariates, outcome)
	controlRows := eligibleRows(control, covariates, outcome)
	if m.policy == discrimination.DedupFirst {
		rows = dedupFirst(ds, rows, covariates)
		controlRows = dedupFirst(control, controlRows, covariates)
	}

	controlIndex := make(map[string][]int, len(controlRows))
	for _, ci := range controlRows {
		key := joinKey(control.Records[ci], covariates)
		controlIndex[key] = append(controlIndex[key], ci)
	}

	var pairs []discrimination.MatchedPair
	for _, di := range rows {
		rec := ds.Records[di]
		for _, ci := range controlIndex[joinKey(rec, covariates)] {
			dv, _ := rec.Outcome(outcome)
			cv, _ := control.Records[ci].Outcome(outcome)
			pairs = append(pairs, discrimination.NewMatchedPair(di, ci, dv, cv))
		}
	}

	m.logger.Debug("control join %s x %s: %d x %d eligible rows, %d pairs",
		describe(ds), describe(control), len(rows), len(controlRows), len(pairs))

	if len(pairs) == 0 {
		return nil, core.NewEmptyResultError(discrimination.ControlAttribute, discrimination.ControlPairs)
	}
	return pairs, nil
}

// MatchRepeats finds repeat submissions inside ds: rows sharing every
// covariate are grouped in dataset order and consecutive occurrences are
// paired, Diff = outcome(later) - outcome(earlier). The dedup policy does not
// apply since it would remove exactly these rows.
func (m *Matcher) MatchRepeats(ds *quotes.Dataset, covariates []string, outcome string) ([]discrimination.MatchedPair, error) {
	if ds == nil {
		return nil, core.NewConfigError("dataset", "cannot be nil")
	}
	if err := checkSchema(ds, covariates, outcome); err != nil {
		return nil, err
	}

	var order []string
	groups := make(map[string][]int)
	for _, i := range eligibleRows(ds, covariates, outcome) {
		key := joinKey(ds.Records[i], covariates)
		if _, ok := groups[key]; !ok {
			order = append(order, key)
		}
		groups[key] = append(groups[key], i)
	}

	var pairs []discrimination.MatchedPair
	for _, key := range order {
		members := groups[key]
		for j := 1; j < len(members); j++ {
			prev, next := members[j-1], members[j]
			pv, _ := ds.Records[prev].Outcome(outcome)
			nv, _ := ds.Records[next].Outcome(outcome)
			pairs = append(pairs, discrimination.NewMatchedPair(prev, next, pv, nv))
		}
	}

	m.logger.Debug("repeat detection %s: %d profiles, %d pairs", describe(ds), len(order), len(pairs))

	if len(pairs) == 0 {
		return nil, core.NewEmptyResultError(discrimination.ControlAttribute, discrimination.ControlPairs)
	}
	return pairs, nil
}
