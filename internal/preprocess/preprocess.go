// Package preprocess turns raw survey tables into canonical quote datasets:
// typed columns, provider presence flags, abbreviated labels and the
// k-th-cheapest-quote outcomes.
package preprocess

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"quotebias/domain/core"
	"quotebias/domain/quotes"
	"quotebias/internal"
)

// Options select the transformations Apply performs
type Options struct {
	Abbreviate    bool
	ProviderFlags bool
	TopK          bool
}

// DefaultOptions enables every transformation
func DefaultOptions() Options {
	return Options{Abbreviate: true, ProviderFlags: true, TopK: true}
}

// Preprocessor builds and enriches quote datasets
type Preprocessor struct {
	opts   Options
	logger *internal.Logger
}

// NewPreprocessor creates a preprocessor
func NewPreprocessor(opts Options, logger *internal.Logger) *Preprocessor {
	if logger == nil {
		logger = internal.DefaultLogger
	}
	return &Preprocessor{opts: opts, logger: logger.With("Preprocess")}
}

// FromRows builds a dataset from header/row string cells. Covariates are
// categorical and kept as opaque strings even when they look numeric. Any
// other column is numeric when every non-empty cell parses as a price, and
// categorical otherwise. Every covariate must be a header.
func FromRows(name string, headers []string, rows []map[string]string, covariates []string) (*quotes.Dataset, error) {
	present := make(map[string]bool, len(headers))
	for _, h := range headers {
		present[h] = true
	}
	for _, c := range covariates {
		if !present[c] {
			return nil, core.NewMissingColumnError("covariate", c)
		}
	}

	isCovariate := make(map[string]bool, len(covariates))
	for _, c := range covariates {
		isCovariate[c] = true
	}

	var categorical, numeric []string
	for _, h := range headers {
		if h == "" {
			continue
		}
		if !isCovariate[h] && numericColumn(h, rows) {
			numeric = append(numeric, h)
		} else {
			categorical = append(categorical, h)
		}
	}

	ds := quotes.NewDataset(name, categorical, numeric)
	ds.Records = make([]quotes.Record, 0, len(rows))
	for _, row := range rows {
		rec := quotes.NewRecord()
		for _, c := range categorical {
			if v := strings.TrimSpace(row[c]); v != "" {
				rec.Values[c] = v
			}
		}
		for _, c := range numeric {
			if v, ok := ParsePrice(row[c]); ok {
				rec.Outcomes[c] = v
			}
		}
		ds.Append(rec)
	}
	return ds, nil
}

// numericColumn reports whether the column has at least one value and all of
// its non-empty values are prices. Provider quote columns are numeric even
// when the sample left them empty.
func numericColumn(column string, rows []map[string]string) bool {
	seen := 0
	for _, row := range rows {
		v := strings.TrimSpace(row[column])
		if v == "" {
			continue
		}
		if _, ok := ParsePrice(v); !ok {
			return false
		}
		seen++
	}
	if seen == 0 {
		return isPriceColumn(column)
	}
	return true
}

func isPriceColumn(column string) bool {
	for _, cols := range ProviderColumns {
		for _, c := range cols {
			if c == column {
				return true
			}
		}
	}
	return false
}

// Apply returns an enriched copy of ds. The input is not modified.
func (p *Preprocessor) Apply(ds *quotes.Dataset) (*quotes.Dataset, error) {
	if ds == nil {
		return nil, core.NewConfigError("dataset", "cannot be nil")
	}
	out := ds.Clone()

	if p.opts.Abbreviate {
		replaced := Abbreviate(out)
		p.logger.Debug("%s: %d labels abbreviated", out.Name, replaced)
	}

	prices := availablePriceColumns(out)
	if p.opts.ProviderFlags {
		AddProviderFlags(out)
	}
	if p.opts.TopK {
		if len(prices) == 0 {
			return nil, core.NewMissingColumnError("price", strings.Join(PriceColumns(), ","))
		}
		AddTopK(out, prices, MaxTopK)
	}

	p.logger.Info("%s: %d records preprocessed (%d price columns)", out.Name, out.Len(), len(prices))
	return out, nil
}

func availablePriceColumns(ds *quotes.Dataset) []string {
	var out []string
	for _, c := range PriceColumns() {
		if ds.HasNumeric(c) {
			out = append(out, c)
		}
	}
	return out
}

// Abbreviate replaces survey labels in place and returns the number of cells changed.
func Abbreviate(ds *quotes.Dataset) int {
	replaced := 0
	for column, labels := range Abbreviations {
		if !ds.HasCategorical(column) {
			continue
		}
		for _, rec := range ds.Records {
			if short, ok := labels[rec.Values[column]]; ok {
				rec.Values[column] = short
				replaced++
			}
		}
	}
	return replaced
}

// AddProviderFlags adds the C1..C6 outcomes: 1 when any quote column of the
// provider holds a quote, 0 otherwise.
func AddProviderFlags(ds *quotes.Dataset) {
	for _, provider := range Providers {
		ds.AddNumericColumn(provider)
		for _, rec := range ds.Records {
			flag := 0.0
			for _, c := range ProviderColumns[provider] {
				if _, ok := rec.Outcome(c); ok {
					flag = 1
					break
				}
			}
			rec.Outcomes[provider] = flag
		}
	}
}

// AddTopK adds top1..topK: the k-th cheapest quote among prices. A record
// with fewer than k quotes gets its most expensive one; a record with no
// quotes gets no top-k outcomes.
func AddTopK(ds *quotes.Dataset, prices []string, k int) {
	for i := 1; i <= k; i++ {
		ds.AddNumericColumn(TopKColumn(i))
	}
	for _, rec := range ds.Records {
		var quoted []float64
		for _, c := range prices {
			if v, ok := rec.Outcome(c); ok {
				quoted = append(quoted, v)
			}
		}
		if len(quoted) == 0 {
			continue
		}
		sort.Float64s(quoted)
		for i := 1; i <= k; i++ {
			rec.Outcomes[TopKColumn(i)] = quoted[min(i, len(quoted))-1]
		}
	}
}

// Explode returns a dataset with one record per available top1..topK value
// of each input record, under the outcome column name. Records without any
// top-k value are kept once with the outcome missing.
func Explode(ds *quotes.Dataset, k int, name string) (*quotes.Dataset, error) {
	if k < 1 || k > MaxTopK {
		return nil, core.NewConfigError("k", fmt.Sprintf("must be between 1 and %d", MaxTopK))
	}
	for i := 1; i <= k; i++ {
		if !ds.HasNumeric(TopKColumn(i)) {
			return nil, core.NewMissingColumnError("outcome", TopKColumn(i))
		}
	}

	out := quotes.NewDataset(ds.Name, ds.Categorical, ds.Numeric)
	out.AddNumericColumn(name)
	for _, rec := range ds.Records {
		exploded := 0
		for i := 1; i <= k; i++ {
			v, ok := rec.Outcome(TopKColumn(i))
			if !ok {
				continue
			}
			clone := rec.Clone()
			clone.Outcomes[name] = v
			out.Append(clone)
			exploded++
		}
		if exploded == 0 {
			clone := rec.Clone()
			clone.Outcomes[name] = math.NaN()
			out.Append(clone)
		}
	}
	return out, nil
}

// ExplodeColumn maps an exploded column name to its depth
func ExplodeColumn(name string) (int, bool) {
	switch name {
	case Top123:
		return 3, true
	case Top12345:
		return 5, true
	}
	return 0, false
}
