package report

import (
	"fmt"
	"io"
	"strings"

	"quotebias/domain/discrimination"
)

var latexEscaper = strings.NewReplacer(
	`\`, `\textbackslash{}`,
	`%`, `\%`,
	`&`, `\&`,
	`_`, `\_`,
	`#`, `\#`,
	`$`, `\$`,
	`{`, `\{`,
	`}`, `\}`,
)

// WriteLaTeX writes the table as a booktabs tabular. Significant p-values
// are set in bold.
func (r *Renderer) WriteLaTeX(w io.Writer, t *discrimination.ComparisonTable) error {
	header, rows, display := r.cells(t)

	var b strings.Builder
	fmt.Fprintf(&b, "\\begin{tabular}{ll%s}\n", strings.Repeat("r", len(header)-2))
	b.WriteString("\\toprule\n")
	b.WriteString(latexLine(escapeAll(header)))
	b.WriteString("\\midrule\n")
	for i, row := range rows {
		cells := escapeAll(row)
		if display != nil && display[i].Significant {
			last := len(cells) - 1
			cells[last] = `\textbf{` + cells[last] + `}`
		}
		b.WriteString(latexLine(cells))
	}
	b.WriteString("\\bottomrule\n\\end{tabular}\n")

	_, err := io.WriteString(w, b.String())
	return err
}

func latexLine(cells []string) string {
	return strings.Join(cells, " & ") + " \\\\\n"
}

func escapeAll(cells []string) []string {
	out := make([]string, len(cells))
	for i, c := range cells {
		out[i] = latexEscaper.Replace(c)
	}
	return out
}
