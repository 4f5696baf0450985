package report

import (
	"fmt"
	"io"
	"strings"

	"quotebias/domain/discrimination"
	"quotebias/internal/analysis/frequency"
)

// WriteMarkdown writes the table as a GitHub-style pipe table under a heading.
func (r *Renderer) WriteMarkdown(w io.Writer, t *discrimination.ComparisonTable) error {
	return r.writeMarkdown(w, t, pipeEscaper)
}

// writeMarkdown escapes every label and cell with esc. The HTML page passes
// htmlEscaper so dataset labels never reach the page as markup.
func (r *Renderer) writeMarkdown(w io.Writer, t *discrimination.ComparisonTable, esc *strings.Replacer) error {
	header, rows, display := r.cells(t)

	var b strings.Builder
	fmt.Fprintf(&b, "## %s\n\n", esc.Replace(title(t)))
	b.WriteString(markdownLine(esc, header))
	b.WriteString(markdownRule(len(header)))
	for i, row := range rows {
		cells := make([]string, len(row))
		for j, c := range row {
			cells[j] = esc.Replace(c)
		}
		if display != nil && display[i].Significant {
			last := len(cells) - 1
			cells[last] = "**" + cells[last] + "**"
		}
		b.WriteString(rawLine(cells))
	}
	fmt.Fprintf(&b, "\nRun `%s`, %d rows.\n", t.RunID, len(t.Rows))

	_, err := io.WriteString(w, b.String())
	return err
}

// WriteFrequencyMarkdown writes one pipe table per feature with the quote
// frequency of every provider column, closed by the average over values.
func WriteFrequencyMarkdown(w io.Writer, tables []*frequency.Table) error {
	var b strings.Builder
	for _, t := range tables {
		fmt.Fprintf(&b, "### %s (%s)\n\n", t.Feature, t.Aggregation)
		header := append([]string{t.Feature, "n"}, t.Columns...)
		b.WriteString(markdownLine(pipeEscaper, header))
		b.WriteString(markdownRule(len(header)))
		size := 0
		for _, row := range t.Rows {
			cells := []string{row.Value, fmt.Sprintf("%d", row.Size)}
			for _, c := range t.Columns {
				cells = append(cells, round(row.Percent[c])+"%")
			}
			b.WriteString(markdownLine(pipeEscaper, cells))
			size += row.Size
		}
		if len(t.Rows) > 0 {
			cells := []string{"*mean*", fmt.Sprintf("%d", size)}
			for _, c := range t.Columns {
				cells = append(cells, round(t.Mean(c))+"%")
			}
			b.WriteString(rawLine(cells))
		}
		b.WriteString("\n")
	}
	_, err := io.WriteString(w, b.String())
	return err
}

var (
	pipeEscaper = strings.NewReplacer("|", `\|`)
	htmlEscaper = strings.NewReplacer(
		"|", `\|`, `\`, `\\`, "<", `\<`, ">", `\>`, "&", `\&`,
		"*", `\*`, "_", `\_`, "`", "\\`", "~", `\~`, "$", `\$`,
		"[", `\[`, "]", `\]`, "{", `\{`, "}", `\}`,
	)
)

func markdownLine(esc *strings.Replacer, cells []string) string {
	escaped := make([]string, len(cells))
	for i, c := range cells {
		escaped[i] = esc.Replace(c)
	}
	return rawLine(escaped)
}

func rawLine(cells []string) string {
	return "| " + strings.Join(cells, " | ") + " |\n"
}

func markdownRule(n int) string {
	return "|" + strings.Repeat(" --- |", n) + "\n"
}
