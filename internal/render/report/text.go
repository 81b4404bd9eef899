package report

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
)

// tabwriterPadding is the minimum gap between table columns.
const tabwriterPadding = 2

// WriteText writes doc as plain text. Pages are separated by a form feed and
// end with their footer. Bold text is wrapped in asterisks.
func WriteText(w io.Writer, doc *Document) error {
	bw := bufio.NewWriter(w)
	for i, p := range doc.Pages {
		if i > 0 {
			bw.WriteString("\f\n")
		}
		for _, b := range p.Blocks {
			if err := writeTextBlock(bw, b); err != nil {
				return err
			}
		}
		footer := p.Footer.String()
		fmt.Fprintf(bw, "\n%s\n%s\n", strings.Repeat("-", len(footer)), footer)
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("writing text report: %w", err)
	}
	return nil
}

func writeTextBlock(w *bufio.Writer, b Block) error {
	switch b.Kind {
	case BlockHeading:
		title := textSpans(b.Spans)
		if b.Number != "" {
			title = b.Number + " " + title
		}
		underline := "="
		if b.Level > 1 {
			underline = "-"
		}
		fmt.Fprintf(w, "%s\n%s\n\n", title, strings.Repeat(underline, len(title)))
	case BlockParagraph:
		fmt.Fprintf(w, "%s\n\n", textSpans(b.Spans))
	case BlockList:
		for _, item := range b.Items {
			fmt.Fprintf(w, "  - %s\n", textSpans(item))
		}
		w.WriteString("\n")
	case BlockTOCEntry:
		title, page := tocParts(b)
		indent := strings.Repeat("  ", b.Level-1)
		line := indent + b.Number + " " + title
		dots := max(2, lineWidth-len(line)-len(page))
		fmt.Fprintf(w, "%s %s %s\n", line, strings.Repeat(".", dots-2), page)
	case BlockTable:
		return writeTextTable(w, b.Table)
	}
	return nil
}

func writeTextTable(w io.Writer, t *Table) error {
	if t.Caption != "" {
		fmt.Fprintf(w, "%s\n", t.Caption)
	}
	tw := tabwriter.NewWriter(w, 0, 0, tabwriterPadding, ' ', 0)
	writeRow := func(cells []string) {
		fmt.Fprintln(tw, strings.Join(cells, "\t")+"\t")
	}
	writeRow(t.Headers)
	rule := make([]string, len(t.Headers))
	for i, h := range t.Headers {
		rule[i] = strings.Repeat("-", len(h))
	}
	writeRow(rule)
	for _, row := range t.Rows {
		writeRow(row)
	}
	if err := tw.Flush(); err != nil {
		return fmt.Errorf("writing table: %w", err)
	}
	_, err := fmt.Fprintln(w)
	return err
}

func textSpans(spans []Span) string {
	var b strings.Builder
	for _, s := range spans {
		if s.Bold {
			b.WriteString("*" + s.Text + "*")
			continue
		}
		b.WriteString(s.Text)
	}
	return b.String()
}
