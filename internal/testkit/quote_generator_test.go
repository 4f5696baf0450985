package testkit

import (
	"context"
	"testing"

	"quotebias/domain/discrimination"
	"quotebias/domain/quotes"
	"quotebias/internal/analysis/distribution"
	"quotebias/internal/analysis/matching"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func smallConfig() QuoteGeneratorConfig {
	cfg := DefaultQuoteConfig()
	cfg.Profiles = 30
	cfg.NoiseSD = 0
	cfg.QuoteRate = 1
	return cfg
}

func TestQuoteGenerator_Shape(t *testing.T) {
	cfg := smallConfig()
	survey, err := NewQuoteGenerator(cfg).Generate()
	require.NoError(t, err)

	// base + 1 gender + 4 birthplace + 3 age variants per profile
	assert.Len(t, survey.Rows, cfg.Profiles*9)
	assert.Len(t, survey.Control, cfg.Profiles)
	assert.Len(t, survey.Headers, 10+14)
}

func TestQuoteGenerator_Deterministic(t *testing.T) {
	a, err := NewQuoteGenerator(DefaultQuoteConfig()).Generate()
	require.NoError(t, err)
	b, err := NewQuoteGenerator(DefaultQuoteConfig()).Generate()
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestQuoteGenerator_InvalidConfig(t *testing.T) {
	cfg := smallConfig()
	cfg.Profiles = 0
	_, err := NewQuoteGenerator(cfg).Generate()
	assert.Error(t, err)

	cfg = smallConfig()
	cfg.Vary = []string{"shoe_size"}
	_, err = NewQuoteGenerator(cfg).Generate()
	assert.Error(t, err)
}

func TestQuoteGenerator_PlantedSurchargeIsRecovered(t *testing.T) {
	survey, err := NewQuoteGenerator(smallConfig()).Generate()
	require.NoError(t, err)
	ds, control, err := survey.Datasets(context.Background())
	require.NoError(t, err)
	require.NotNil(t, control)

	m := matching.NewMatcher(discrimination.DedupKeepAll, nil)
	pairs, err := m.Match(ds, matching.MatchRequest{
		Attribute:     quotes.ColBirthplace,
		TestValue:     "MA", // Morocco, abbreviated
		BaselineValue: "MI",
		Covariates:    withoutColumn(quotes.DefaultCovariates(), quotes.ColBirthplace),
		Outcome:       "top1",
	})
	require.NoError(t, err)

	// Pairs from one base profile differ by exactly the surcharge; distinct
	// profiles rarely share every covariate, so check the bulk.
	summary, err := distribution.NewSummarizer().Summarize(discrimination.Diffs(pairs), "birthplace", "MA vs MI", false)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, summary.N, 30)
	assert.InDelta(t, 60.0, summary.Median, 0.011)
	assert.True(t, summary.Significant)
	assert.Greater(t, summary.M, 0.0)
}

func TestGeneratedSource(t *testing.T) {
	cfg := smallConfig()

	survey, err := NewGeneratedSource(cfg, false).Load(context.Background())
	require.NoError(t, err)
	control, err := NewGeneratedSource(cfg, true).Load(context.Background())
	require.NoError(t, err)

	assert.Equal(t, cfg.Profiles*9, survey.Len())
	assert.Equal(t, cfg.Profiles, control.Len())
	assert.Contains(t, NewGeneratedSource(cfg, true).Describe(), "control")

	// without noise a control repeat prices exactly like its base row
	pairs, err := matching.NewMatcher(discrimination.DedupFirst, nil).
		MatchControl(survey, control, quotes.DefaultCovariates(), "top1")
	require.NoError(t, err)
	zeros := 0
	for _, p := range pairs {
		if p.Diff == 0 {
			zeros++
		}
	}
	assert.GreaterOrEqual(t, float64(zeros), 0.9*float64(len(pairs)))
}

func withoutColumn(cols []string, drop string) []string {
	var out []string
	for _, c := range cols {
		if c != drop {
			out = append(out, c)
		}
	}
	return out
}
