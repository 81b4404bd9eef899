package report

import (
	"fmt"
	"html/template"
	"io"
	"strings"
)

const pageTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<style>
body { font-family: Helvetica, Arial, sans-serif; color: #1f2937; }
section.page { page-break-after: always; padding: 2em 0; border-bottom: 1px solid #f3f4f6; }
section.cover h1 { font-size: 2em; text-align: center; }
table { border-collapse: collapse; margin: 1em 0; }
th { background: #10b981; color: #fff; padding: 6px 10px; }
td { border: 1px solid #f3f4f6; padding: 4px 10px; }
td.num { text-align: right; }
ol.toc { list-style: none; padding: 0; }
ol.toc li.level-2 { padding-left: 1.5em; }
ol.toc li.level-3 { padding-left: 3em; }
footer { font-size: 0.75em; color: #9ca3af; margin-top: 2em; }
</style>
</head>
<body>
{{range .Pages}}<section class="page {{.Kind}}" id="page-{{.Number}}">
{{blocks .Blocks}}<footer>{{.Footer.String}}</footer>
</section>
{{end}}</body>
</html>
`

// WriteHTML writes doc as a standalone HTML page with one section element per page.
// Text is escaped, so markup outside the supported subset shows literally.
func WriteHTML(w io.Writer, doc *Document) error {
	tmpl, err := template.New("report").Funcs(template.FuncMap{"blocks": HTMLBlocks}).Parse(pageTemplate)
	if err != nil {
		return fmt.Errorf("parsing report template: %w", err)
	}
	if err := tmpl.Execute(w, doc); err != nil {
		return fmt.Errorf("writing html report: %w", err)
	}
	return nil
}

// HTMLBlocks renders page content as an HTML fragment that is also
// well-formed XML.
func HTMLBlocks(blocks []Block) template.HTML {
	var b strings.Builder
	inTOC := false
	for _, blk := range blocks {
		if blk.Kind == BlockTOCEntry && !inTOC {
			b.WriteString(`<ol class="toc">` + "\n")
			inTOC = true
		}
		if blk.Kind != BlockTOCEntry && inTOC {
			b.WriteString("</ol>\n")
			inTOC = false
		}
		switch blk.Kind {
		case BlockHeading:
			fmt.Fprintf(&b, "<h%d>", blk.Level)
			if blk.Number != "" {
				fmt.Fprintf(&b, `<span class="num">%s</span> `, template.HTMLEscapeString(blk.Number))
			}
			b.WriteString(htmlSpans(blk.Spans))
			fmt.Fprintf(&b, "</h%d>\n", blk.Level)
		case BlockParagraph:
			b.WriteString("<p>" + htmlSpans(blk.Spans) + "</p>\n")
		case BlockList:
			b.WriteString("<ul>\n")
			for _, item := range blk.Items {
				b.WriteString("<li>" + htmlSpans(item) + "</li>\n")
			}
			b.WriteString("</ul>\n")
		case BlockTable:
			htmlTable(&b, blk.Table)
		case BlockTOCEntry:
			title, page := tocParts(blk)
			fmt.Fprintf(&b, `<li class="level-%d"><a href="#page-%s">%s %s</a> <span class="page">%s</span></li>`+"\n",
				blk.Level, page, template.HTMLEscapeString(blk.Number), template.HTMLEscapeString(title), page)
		}
	}
	if inTOC {
		b.WriteString("</ol>\n")
	}
	//nolint:gosec // Every text fragment above is escaped.
	return template.HTML(b.String())
}

func htmlSpans(spans []Span) string {
	var b strings.Builder
	for _, s := range spans {
		text := template.HTMLEscapeString(s.Text)
		if s.Bold {
			text = "<strong>" + text + "</strong>"
		}
		b.WriteString(text)
	}
	return b.String()
}

func htmlTable(b *strings.Builder, t *Table) {
	b.WriteString("<table>\n")
	if t.Caption != "" {
		b.WriteString("<caption>" + template.HTMLEscapeString(t.Caption) + "</caption>\n")
	}
	b.WriteString("<tr>")
	for _, h := range t.Headers {
		b.WriteString("<th>" + template.HTMLEscapeString(h) + "</th>")
	}
	b.WriteString("</tr>\n")
	for _, row := range t.Rows {
		b.WriteString("<tr>")
		for i, cell := range row {
			if i >= t.NumericFrom && t.NumericFrom > 0 {
				b.WriteString(`<td class="num">` + template.HTMLEscapeString(cell) + "</td>")
				continue
			}
			b.WriteString("<td>" + template.HTMLEscapeString(cell) + "</td>")
		}
		b.WriteString("</tr>\n")
	}
	b.WriteString("</table>\n")
}

func tocParts(b Block) (title, page string) {
	if len(b.Spans) > 0 {
		title = b.Spans[0].Text
	}
	if len(b.Spans) > 1 {
		page = b.Spans[1].Text
	}
	return title, page
}
