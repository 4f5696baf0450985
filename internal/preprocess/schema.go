package preprocess

import (
	"sort"

	"quotebias/domain/quotes"
)

// Providers lists the insurance providers of the survey in report order.
var Providers = []string{"C1", "C2", "C3", "C4", "C5", "C6"}

// ProviderColumns maps each provider to its quote columns (one per offered
// product).
var ProviderColumns = map[string][]string{
	"C1": {"C1/a", "C1/b", "C1/c"},
	"C2": {"C2/a", "C2/b", "C2/c"},
	"C3": {"C3/a", "C3/b", "C3/c", "C3/d"},
	"C4": {"C4/a"},
	"C5": {"C5/a", "C5/b"},
	"C6": {"C6/a"},
}

// PriceColumns returns every provider quote column in survey order.
func PriceColumns() []string {
	var out []string
	for _, p := range Providers {
		out = append(out, ProviderColumns[p]...)
	}
	return out
}

// ServiceColumns returns the first ("/a") quote column of every provider.
func ServiceColumns() []string {
	out := make([]string, len(Providers))
	for i, p := range Providers {
		out[i] = ProviderColumns[p][0]
	}
	return out
}

// MaxTopK is the deepest top-k outcome derived from the quotes.
const MaxTopK = 5

// TopKColumn names the k-th cheapest quote outcome.
func TopKColumn(k int) string {
	return "top" + string(rune('0'+k))
}

// Exploded outcome columns.
const (
	Top123   = "top123"
	Top12345 = "top12345"
)

// Abbreviations shortens survey labels for tables.
var Abbreviations = map[string]map[string]string{
	quotes.ColBirthplace:    {"Milan": "MI", "Rome": "RO", "Naples": "NA", "China": "CN", "Morocco": "MA"},
	quotes.ColCity:          {"Milan": "MI", "Naples": "NA"},
	quotes.ColEducation:     {"Master": "MSc", "Without a qualification": "WaQ"},
	quotes.ColProfession:    {"Employee": "Emp", "Looking for a job": "LfaJ"},
	quotes.ColMaritalStatus: {"Married": "Mar", "Single": "Sin", "Widow": "Wid"},
}

// ClassOrder is the category order of the bonus/malus class.
var ClassOrder = []string{"1", "4", "9", "18"}

// OrderValues sorts the distinct values of column for display. Class values
// follow ClassOrder, with unknown classes after the known ones; every other
// column sorts lexically.
func OrderValues(column string, values []string) []string {
	out := append([]string(nil), values...)
	if column != quotes.ColClass {
		sort.Strings(out)
		return out
	}
	rank := make(map[string]int, len(ClassOrder))
	for i, c := range ClassOrder {
		rank[c] = i
	}
	sort.SliceStable(out, func(i, j int) bool {
		ri, iok := rank[out[i]]
		rj, jok := rank[out[j]]
		switch {
		case iok && jok:
			return ri < rj
		case iok != jok:
			return iok
		}
		return out[i] < out[j]
	})
	return out
}
