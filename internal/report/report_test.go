package report

import (
	"bytes"
	"strings"
	"testing"

	"quotebias/domain/discrimination"
	"quotebias/internal/analysis/frequency"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func referenceSummary() discrimination.DistributionSummary {
	return discrimination.DistributionSummary{
		Attribute: "gender", Pairs: "F vs M", N: 6,
		TieRate: 100.0 / 3, Q05: -9.5, Q25: -6.5, Median: -0.5, Q75: 7, Q95: 10.5,
		Mean: 1.0 / 6, M: 0, SignTestN: 6, PValue: 1, HasQuartiles: true,
	}
}

func significantSummary() discrimination.DistributionSummary {
	return discrimination.DistributionSummary{
		Attribute: "birthplace", Pairs: "CN vs MI", N: 6,
		TieRate: 0, Q05: 20, Median: 40, Q95: 61.4, Mean: 40.2,
		M: 3, SignTestN: 6, PValue: 0.03125, Significant: true,
	}
}

func TestRender_DisplayRow(t *testing.T) {
	row := NewRenderer("€").Render(referenceSummary())

	assert.Equal(t, "33%", row.Ties5)
	// -9.5 and 10.5 round half to even; -0.5 prints as 0
	assert.Equal(t, []string{"-10 €", "-6 €", "0 €", "7 €", "10 €"}, row.Quantiles)
	assert.Equal(t, "0 €", row.Mean)
	assert.Equal(t, "1.00", row.PValue)
	assert.False(t, row.Significant)
	assert.Len(t, row.Cells(), 10)
}

func TestRender_Significant(t *testing.T) {
	row := NewRenderer("").Render(significantSummary())

	assert.Equal(t, "0%", row.Ties5)
	assert.Equal(t, []string{"20", "40", "61"}, row.Quantiles)
	assert.Equal(t, "<0.05", row.PValue)
	assert.True(t, row.Significant)
}

func table(numeric bool) *discrimination.ComparisonTable {
	t := discrimination.NewComparisonTable("Gender and birthplace", discrimination.Options{NumericOutput: numeric})
	ref := referenceSummary()
	ref.HasQuartiles = false
	t.Add(ref, significantSummary())
	return t
}

func TestWriteLaTeX(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewRenderer("€").WriteLaTeX(&buf, table(false)))
	out := buf.String()

	assert.True(t, strings.HasPrefix(out, "\\begin{tabular}{llrrrrrr}\n\\toprule\n"))
	assert.Contains(t, out, "Attribute & Pairs & Ties5 & .05() & .50() & .95() & m() & p-value \\\\\n")
	assert.Contains(t, out, "gender & F vs M & 33\\% & -10 € & 0 € & 10 € & 0 € & 1.00 \\\\\n")
	assert.Contains(t, out, "& \\textbf{<0.05} \\\\\n")
	assert.True(t, strings.HasSuffix(out, "\\bottomrule\n\\end{tabular}\n"))
}

func TestWriteMarkdown(t *testing.T) {
	var buf bytes.Buffer
	tbl := table(false)
	require.NoError(t, NewRenderer("€").WriteMarkdown(&buf, tbl))
	out := buf.String()

	assert.Contains(t, out, "## Gender and birthplace\n")
	assert.Contains(t, out, "| gender | F vs M | 33% | -10 € | 0 € | 10 € | 0 € | 1.00 |\n")
	assert.Contains(t, out, "| **<0.05** |\n")
	assert.Contains(t, out, tbl.RunID.String())
}

func TestWriteMarkdown_Numeric(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewRenderer("€").WriteMarkdown(&buf, table(true)))
	out := buf.String()

	assert.Contains(t, out, "| Attribute | Pairs | Ties5 | .05() | .50() | .95() | m() | p-value | n | M |\n")
	assert.Contains(t, out, "| birthplace | CN vs MI | 0 | 20 | 40 | 61.4 | 40.2 | 0.03125 | 6 | 3 |\n")
	assert.NotContains(t, out, "**")
}

func TestHTML(t *testing.T) {
	page, err := NewRenderer("€").HTML(table(false))
	require.NoError(t, err)
	out := string(page)

	assert.Contains(t, out, "<title>Gender and birthplace</title>")
	assert.Contains(t, out, "<table>")
	assert.Contains(t, out, "<strong>&lt;0.05</strong>")
}

func TestHTML_EscapesLabels(t *testing.T) {
	tbl := discrimination.NewComparisonTable("<script>alert(1)</script>", discrimination.Options{})
	s := significantSummary()
	s.Attribute = "<b>gender</b>"
	s.Pairs = "F & M"
	link := referenceSummary()
	link.Attribute = "[x](javascript:alert(1))"
	tbl.Add(s, link)

	page, err := NewRenderer("").HTML(tbl)
	require.NoError(t, err)
	out := string(page)

	assert.NotContains(t, out, "<b>")
	assert.NotContains(t, out, "<script>")
	assert.Contains(t, out, "<td>&lt;b&gt;gender&lt;/b&gt;</td>")
	assert.Contains(t, out, "<td>F &amp; M</td>")
	assert.Contains(t, out, "<td>[x](javascript:alert(1))</td>")
	assert.NotContains(t, out, "<a href")
	assert.Contains(t, out, "<title>&lt;script&gt;alert(1)&lt;/script&gt;</title>")
	assert.Contains(t, out, "<h2>&lt;script&gt;alert(1)&lt;/script&gt;</h2>")
	assert.Contains(t, out, "<strong>&lt;0.05</strong>")

	// the Markdown report keeps the labels as written
	var md bytes.Buffer
	require.NoError(t, NewRenderer("").WriteMarkdown(&md, tbl))
	assert.Contains(t, md.String(), "| <b>gender</b> | F & M |")
}

func TestWriteFrequencyMarkdown(t *testing.T) {
	tables := []*frequency.Table{{
		Feature:     "class",
		Columns:     []string{"C1"},
		Aggregation: frequency.AggregateSum,
		Rows: []frequency.Row{
			{Feature: "class", Value: "1", Size: 4, Percent: map[string]float64{"C1": 75}},
			{Feature: "class", Value: "2", Size: 2, Percent: map[string]float64{"C1": 25}},
		},
	}}

	var buf bytes.Buffer
	require.NoError(t, WriteFrequencyMarkdown(&buf, tables))
	assert.Contains(t, buf.String(), "### class (sum)\n")
	assert.Contains(t, buf.String(), "| 1 | 4 | 75% |\n")
	assert.Contains(t, buf.String(), "| *mean* | 6 | 50% |\n")
}

func TestWriteFrequencyMarkdown_EmptyTable(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteFrequencyMarkdown(&buf, []*frequency.Table{{Feature: "class", Aggregation: frequency.AggregateCount}}))
	assert.NotContains(t, buf.String(), "mean")
}

func TestNumericCells_RoundTripPrecision(t *testing.T) {
	s := referenceSummary()
	cells := NumericCells(s)
	assert.Equal(t, "33.333333333333336", cells[2])
	assert.Equal(t, []string{"6", "0"}, cells[len(cells)-2:])
}
