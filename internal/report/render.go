// Package report renders comparison tables for publication: display rows
// with rounded values and currency, as LaTeX, Markdown or HTML.
package report

import (
	"fmt"
	"strconv"
	"strings"

	"quotebias/domain/discrimination"
)

// DisplayRow is a DistributionSummary formatted for humans. Cells are plain
// text; writers add their own emphasis and escaping.
type DisplayRow struct {
	Attribute   string   `json:"attribute"`
	Pairs       string   `json:"pairs"`
	Ties5       string   `json:"ties5"`
	Quantiles   []string `json:"quantiles"`
	Mean        string   `json:"mean"`
	PValue      string   `json:"p_value"`
	Significant bool     `json:"significant"`
}

// Cells returns the row in table column order
func (r DisplayRow) Cells() []string {
	cells := []string{r.Attribute, r.Pairs, r.Ties5}
	cells = append(cells, r.Quantiles...)
	return append(cells, r.Mean, r.PValue)
}

// Renderer formats summaries
type Renderer struct {
	Currency string
}

// NewRenderer creates a renderer using currency as the amount suffix
func NewRenderer(currency string) *Renderer {
	return &Renderer{Currency: currency}
}

// Render formats one summary: zero-decimal tie-rate with a percent sign,
// zero-decimal amounts with the currency, and the p-value as "<0.05" when
// significant or with two decimals otherwise.
func (r *Renderer) Render(s discrimination.DistributionSummary) DisplayRow {
	row := DisplayRow{
		Attribute:   s.Attribute,
		Pairs:       s.Pairs,
		Ties5:       round(s.TieRate) + "%",
		Mean:        r.amount(s.Mean),
		Significant: s.Significant,
	}
	for _, q := range s.Quantiles() {
		row.Quantiles = append(row.Quantiles, r.amount(q))
	}
	if s.Significant {
		row.PValue = fmt.Sprintf("<%.2f", discrimination.Alpha)
	} else {
		row.PValue = fmt.Sprintf("%.2f", s.PValue)
	}
	return row
}

// RenderTable formats every row of the table
func (r *Renderer) RenderTable(t *discrimination.ComparisonTable) []DisplayRow {
	rows := make([]DisplayRow, len(t.Rows))
	for i, s := range t.Rows {
		rows[i] = r.Render(s)
	}
	return rows
}

func (r *Renderer) amount(v float64) string {
	if r.Currency == "" {
		return round(v)
	}
	return round(v) + " " + r.Currency
}

// round formats v with no decimals; negative zero prints as "0".
func round(v float64) string {
	s := strconv.FormatFloat(v, 'f', 0, 64)
	if s == "-0" {
		return "0"
	}
	return s
}

// NumericColumns is the header of numeric exports: the display columns
// followed by sample size and sign statistic.
func NumericColumns(t *discrimination.ComparisonTable) []string {
	return append(t.Columns(), "n", "M")
}

// NumericCells returns the full-precision cells of a summary in
// NumericColumns order.
func NumericCells(s discrimination.DistributionSummary) []string {
	cells := []string{s.Attribute, s.Pairs, FormatFloat(s.TieRate)}
	for _, q := range s.Quantiles() {
		cells = append(cells, FormatFloat(q))
	}
	return append(cells,
		FormatFloat(s.Mean), FormatFloat(s.PValue), strconv.Itoa(s.N), FormatFloat(s.M))
}

// FormatFloat prints the shortest representation that parses back exactly.
func FormatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// cells picks display or numeric cells according to the table flag.
func (r *Renderer) cells(t *discrimination.ComparisonTable) (header []string, rows [][]string, display []DisplayRow) {
	if t.NumericOutput {
		header = NumericColumns(t)
		for _, s := range t.Rows {
			rows = append(rows, NumericCells(s))
		}
		return header, rows, nil
	}
	header = t.Columns()
	display = r.RenderTable(t)
	for _, d := range display {
		rows = append(rows, d.Cells())
	}
	return header, rows, display
}

func title(t *discrimination.ComparisonTable) string {
	if strings.TrimSpace(t.Name) != "" {
		return t.Name
	}
	return "Price discrimination"
}
