// Package frequency measures how often each provider quotes respondents,
// broken down by feature value.
package frequency

import (
	"fmt"

	"quotebias/domain/core"
	"quotebias/domain/quotes"
	"quotebias/internal/preprocess"

	"github.com/montanaflynn/stats"
)

// Aggregation selects how provider columns are counted
type Aggregation string

const (
	// AggregateCount counts records with a value in the column.
	AggregateCount Aggregation = "count"
	// AggregateSum sums the column values, e.g. 0/1 presence flags.
	AggregateSum Aggregation = "sum"
)

// ParseAggregation validates an aggregation name
func ParseAggregation(s string) (Aggregation, error) {
	switch Aggregation(s) {
	case AggregateCount, AggregateSum:
		return Aggregation(s), nil
	}
	return "", core.NewConfigError("aggregation", fmt.Sprintf("unknown aggregation %q", s))
}

// Row is the quote frequency of every provider column for one feature value.
type Row struct {
	Feature string             `json:"feature"`
	Value   string             `json:"value"`
	Size    int                `json:"size"`
	Percent map[string]float64 `json:"percent"`
}

// Table is the frequency breakdown of one feature
type Table struct {
	Feature     string      `json:"feature"`
	Columns     []string    `json:"columns"`
	Aggregation Aggregation `json:"aggregation"`
	Rows        []Row       `json:"rows"`
}

// Mean returns the average percentage of column across feature values.
func (t *Table) Mean(column string) float64 {
	values := make([]float64, 0, len(t.Rows))
	for _, r := range t.Rows {
		values = append(values, r.Percent[column])
	}
	mean, err := stats.Mean(values)
	if err != nil {
		return 0
	}
	return mean
}

// Compute groups ds by feature and reports, per value, 100 x aggregate /
// group size for every column. Records with an empty feature value are not
// grouped. Values are ordered by preprocess.OrderValues.
func Compute(ds *quotes.Dataset, feature string, columns []string, agg Aggregation) (*Table, error) {
	if _, err := ParseAggregation(string(agg)); err != nil {
		return nil, err
	}
	if !ds.HasCategorical(feature) {
		return nil, core.NewMissingColumnError("feature", feature)
	}
	for _, c := range columns {
		if !ds.HasNumeric(c) {
			return nil, core.NewMissingColumnError("provider", c)
		}
	}

	sizes := make(map[string]int)
	totals := make(map[string]map[string]float64)
	for _, rec := range ds.Records {
		value := rec.Value(feature)
		if value == "" {
			continue
		}
		sizes[value]++
		if totals[value] == nil {
			totals[value] = make(map[string]float64, len(columns))
		}
		for _, c := range columns {
			v, ok := rec.Outcome(c)
			if !ok {
				continue
			}
			if agg == AggregateCount {
				totals[value][c]++
			} else {
				totals[value][c] += v
			}
		}
	}

	values := make([]string, 0, len(sizes))
	for v := range sizes {
		values = append(values, v)
	}

	table := &Table{Feature: feature, Columns: append([]string(nil), columns...), Aggregation: agg}
	for _, v := range preprocess.OrderValues(feature, values) {
		row := Row{Feature: feature, Value: v, Size: sizes[v], Percent: make(map[string]float64, len(columns))}
		for _, c := range columns {
			row.Percent[c] = 100 * totals[v][c] / float64(sizes[v])
		}
		table.Rows = append(table.Rows, row)
	}
	return table, nil
}

// ComputeAll runs Compute for every feature present in ds, in features order.
func ComputeAll(ds *quotes.Dataset, features, columns []string, agg Aggregation) ([]*Table, error) {
	var out []*Table
	for _, f := range features {
		if !ds.HasCategorical(f) {
			continue
		}
		t, err := Compute(ds, f, columns, agg)
		if err != nil {
			return nil, fmt.Errorf("frequency of %s: %w", f, err)
		}
		out = append(out, t)
	}
	return out, nil
}
