package report

import (
	"bytes"

	"quotebias/domain/discrimination"

	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"
)

// HTML renders the Markdown report of the table as a complete HTML page.
// Labels and cells are escaped, so the page carries no markup from the data.
func (r *Renderer) HTML(t *discrimination.ComparisonTable) ([]byte, error) {
	var md bytes.Buffer
	if err := r.writeMarkdown(&md, t, htmlEscaper); err != nil {
		return nil, err
	}
	return MarkdownToHTML(md.Bytes(), title(t)), nil
}

// MarkdownToHTML converts Markdown (with tables) to a standalone HTML page.
// Inline HTML in md is dropped. Smartypants stays off: it writes the page
// title unescaped.
func MarkdownToHTML(md []byte, pageTitle string) []byte {
	p := parser.NewWithExtensions(parser.CommonExtensions)
	renderer := html.NewRenderer(html.RendererOptions{
		Title: pageTitle,
		Flags: html.CompletePage | html.SkipHTML,
	})
	return markdown.ToHTML(md, p, renderer)
}
