package tags

import (
	"bufio"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/rshade/ghgfocus/internal/ghg"
	"github.com/rshade/ghgfocus/internal/render/report"
)

// Inline pairs a tag document with the report whose narrative it carries.
type Inline struct {
	Tags   *Document
	Report *report.Document
}

// ReportFramework is the report framework matching a tag framework.
func ReportFramework(f Framework) report.Framework {
	switch f {
	case FrameworkESRS:
		return report.FrameworkCSRD
	case FrameworkSB253:
		return report.FrameworkSB253
	default:
		return report.FrameworkGHGProtocol
	}
}

// RenderInline renders the tag document and the narrative sections of inv for
// one combined human-readable and machine-readable document.
func RenderInline(ctx context.Context, sections []report.Section, inv *ghg.AggregatedInventory, opts Options) (*Inline, error) {
	doc, err := Render(ctx, inv, opts)
	if err != nil {
		return nil, err
	}
	rep, err := report.Render(ctx, sections, inv, report.Options{Framework: ReportFramework(doc.Taxonomy.Framework)})
	if err != nil {
		return nil, err
	}
	return &Inline{Tags: doc, Report: rep}, nil
}

//nolint:gochecknoglobals // Read-only lookup table.
var metricLabels = map[Metric]string{
	MetricScope1:         "Scope 1: Direct emissions",
	MetricScope2Location: "Scope 2: Location-based",
	MetricScope2Market:   "Scope 2: Market-based",
	MetricScope2Reported: "Scope 2: Reported",
	MetricScope3:         "Scope 3: Value chain",
	MetricTotal:          "Total",
	MetricCompleteness:   "Scope 3 completeness (ratio)",
	MetricEntityName:     "Reporting entity",
	MetricScope2Method:   "Scope 2 method",
	MetricMethodology:    "Methodology",
}

// WriteInline writes in as XHTML with every fact tagged in place. Contexts
// and units go in a hidden header; the narrative sections follow the tagged
// disclosures. The tag document is reconciled first.
func WriteInline(w io.Writer, in *Inline) error {
	doc := in.Tags
	if err := Reconcile(doc); err != nil {
		return err
	}

	bw := bufio.NewWriter(w)
	bw.WriteString(xml.Header)
	bw.WriteString("<html")
	for _, a := range namespaceAttrs(doc, true) {
		fmt.Fprintf(bw, ` %s="%s"`, a.Name.Local, escape(a.Value))
	}
	bw.WriteString(">\n<head>\n")
	bw.WriteString(`<meta http-equiv="Content-Type" content="text/html; charset=utf-8"/>` + "\n")
	fmt.Fprintf(bw, "<title>%s</title>\n</head>\n<body>\n", escape(doc.Title))

	if err := writeInlineHeader(bw, doc); err != nil {
		return err
	}

	fmt.Fprintf(bw, "<h1>%s</h1>\n", escape(doc.Title))
	writeInlineTable(bw, doc)

	for _, m := range []Metric{MetricEntityName, MetricScope2Method, MetricMethodology} {
		f, ok := doc.Fact(ContextCurrent, m)
		if !ok {
			continue
		}
		fmt.Fprintf(bw, "<p><strong>%s:</strong> %s</p>\n", escape(metricLabels[m]), tagged(f))
	}

	for _, p := range in.Report.Pages {
		if p.Kind != report.PageSection {
			continue
		}
		fmt.Fprintf(bw, "<section class=\"page\" id=\"page-%d\">\n%s</section>\n", p.Number, report.HTMLBlocks(p.Blocks))
	}

	bw.WriteString("</body>\n</html>\n")
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("writing inline document: %w", err)
	}
	return nil
}

func writeInlineHeader(bw *bufio.Writer, doc *Document) error {
	bw.WriteString("<div style=\"display:none\">\n<ix:header>\n<ix:references>\n")
	enc := xml.NewEncoder(bw)
	if err := enc.EncodeElement(schemaRef(doc), xml.StartElement{Name: xml.Name{Local: "link:schemaRef"}}); err != nil {
		return fmt.Errorf("encoding schema reference: %w", err)
	}
	if err := enc.Flush(); err != nil {
		return fmt.Errorf("encoding schema reference: %w", err)
	}
	bw.WriteString("\n</ix:references>\n<ix:resources>\n")
	for _, c := range xmlContexts(doc) {
		if err := enc.EncodeElement(c, xml.StartElement{Name: xml.Name{Local: "xbrli:context"}}); err != nil {
			return fmt.Errorf("encoding context %s: %w", c.ID, err)
		}
	}
	for _, u := range xmlUnits(doc) {
		if err := enc.EncodeElement(u, xml.StartElement{Name: xml.Name{Local: "xbrli:unit"}}); err != nil {
			return fmt.Errorf("encoding unit %s: %w", u.ID, err)
		}
	}
	if err := enc.Flush(); err != nil {
		return fmt.Errorf("encoding resources: %w", err)
	}
	bw.WriteString("\n</ix:resources>\n</ix:header>\n</div>\n")
	return nil
}

func writeInlineTable(bw *bufio.Writer, doc *Document) {
	_, hasPrevious := doc.Fact(ContextPrevious, MetricTotal)
	cell := func(contextRef string, m Metric) string {
		if f, ok := doc.Fact(contextRef, m); ok {
			return tagged(f)
		}
		return ""
	}

	bw.WriteString("<table>\n<caption>Greenhouse gas emissions (tCO2e)</caption>\n<tr><th>Disclosure</th>")
	for _, c := range doc.Contexts {
		fmt.Fprintf(bw, "<th>%d</th>", c.End.Year())
	}
	bw.WriteString("</tr>\n")

	for _, m := range []Metric{
		MetricScope1, MetricScope2Location, MetricScope2Market, MetricScope2Reported, MetricScope3, MetricTotal,
	} {
		fmt.Fprintf(bw, "<tr><td>%s</td><td class=\"num\">%s</td>", escape(metricLabels[m]), cell(ContextCurrent, m))
		if hasPrevious {
			fmt.Fprintf(bw, "<td class=\"num\">%s</td>", cell(ContextPrevious, m))
		}
		bw.WriteString("</tr>\n")
	}
	for _, f := range doc.CategoryFacts(ContextCurrent) {
		label := "Scope 3 category " + strconv.Itoa(f.Category.Number()) + ": " + f.Category.Name()
		fmt.Fprintf(bw, "<tr><td>%s</td><td class=\"num\">%s</td>", escape(label), tagged(f))
		if hasPrevious {
			bw.WriteString("<td></td>")
		}
		bw.WriteString("</tr>\n")
	}
	fmt.Fprintf(bw, "<tr><td>%s</td><td class=\"num\">%s</td>",
		escape(metricLabels[MetricCompleteness]), cell(ContextCurrent, MetricCompleteness))
	if hasPrevious {
		bw.WriteString("<td></td>")
	}
	bw.WriteString("</tr>\n</table>\n")
}

// tagged wraps the fact's value in its inline element.
func tagged(f Fact) string {
	if f.Numeric() {
		return fmt.Sprintf(`<ix:nonFraction name="%s" contextRef="%s" unitRef="%s" decimals="%d">%s</ix:nonFraction>`,
			escape(f.Name), escape(f.ContextRef), escape(f.UnitRef), f.Decimals, f.Value())
	}
	return fmt.Sprintf(`<ix:nonNumeric name="%s" contextRef="%s">%s</ix:nonNumeric>`,
		escape(f.Name), escape(f.ContextRef), escape(f.Text))
}

func escape(s string) string {
	var b strings.Builder
	_ = xml.EscapeText(&b, []byte(s))
	return b.String()
}
