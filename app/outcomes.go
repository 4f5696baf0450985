package app

import (
	"quotebias/domain/quotes"
	"quotebias/internal/preprocess"
)

// withOutcome returns ds unchanged, or its exploded form when outcome names
// an exploded top-k column (top123, top12345) the dataset does not carry.
func withOutcome(ds *quotes.Dataset, outcome string) (*quotes.Dataset, error) {
	if ds == nil || ds.HasNumeric(outcome) {
		return ds, nil
	}
	k, ok := preprocess.ExplodeColumn(outcome)
	if !ok {
		return ds, nil
	}
	return preprocess.Explode(ds, k, outcome)
}
