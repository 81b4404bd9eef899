// Package report renders an aggregated inventory and narrative sections into
// a paginated report document.
//
// Render builds a format-neutral Document: a cover page, the executive
// summary, a generated table of contents and the numbered sections, with the
// same footer on every page. WriteHTML and WriteText serialize a Document;
// WriteWorkbook exports the inventory tables as a spreadsheet.
package report

import (
	"fmt"
	"strings"
)

type constError string

func (e constError) Error() string { return string(e) }

// ErrInvalidOptions is returned for unusable render options.
const ErrInvalidOptions = constError("invalid report options")

// Framework is the disclosure regime a report is prepared under.
type Framework string

// Supported frameworks.
const (
	FrameworkGHGProtocol Framework = "ghg_protocol"
	FrameworkSB253       Framework = "sb253"
	FrameworkCSRD        Framework = "csrd"
)

// ParseFramework accepts a framework id, case-insensitively.
func ParseFramework(s string) (Framework, error) {
	f := Framework(strings.ToLower(strings.TrimSpace(s)))
	switch f {
	case FrameworkGHGProtocol, FrameworkSB253, FrameworkCSRD:
		return f, nil
	default:
		return "", fmt.Errorf("%w: unknown framework %q", ErrInvalidOptions, s)
	}
}

// Name is the framework's display name used on the cover and in footers.
func (f Framework) Name() string {
	switch f {
	case FrameworkGHGProtocol:
		return "GHG Protocol Corporate Standard"
	case FrameworkSB253:
		return "California SB 253"
	case FrameworkCSRD:
		return "CSRD ESRS E1"
	default:
		return string(f)
	}
}

// Title is the report title for the framework.
func (f Framework) Title() string {
	switch f {
	case FrameworkSB253:
		return "California SB 253 Climate Disclosure Report"
	case FrameworkCSRD:
		return "ESRS E1 Climate Change Disclosure"
	default:
		return "GHG Emissions Inventory Report"
	}
}

// Statement is the compliance sentence opening the executive summary.
func (f Framework) Statement() string {
	switch f {
	case FrameworkSB253:
		return "This disclosure of Scope 1, Scope 2 and Scope 3 emissions is prepared for the " +
			"California Air Resources Board under the Climate Corporate Data Accountability Act (SB 253)."
	case FrameworkCSRD:
		return "This disclosure covers the gross Scope 1, 2 and 3 GHG emissions datapoints of " +
			"ESRS E1-6 under the Corporate Sustainability Reporting Directive."
	default:
		return "This inventory has been prepared in accordance with the GHG Protocol Corporate " +
			"Accounting and Reporting Standard."
	}
}

// Options controls report rendering.
type Options struct {
	Framework       Framework
	Confidentiality string
	// LinesPerPage bounds the estimated height of a page's content.
	LinesPerPage int
}

// DefaultLinesPerPage is used when Options.LinesPerPage is zero.
const DefaultLinesPerPage = 48

// minLinesPerPage is the smallest page that still fits a heading and a table.
const minLinesPerPage = 10

func (o *Options) normalize() error {
	if o.Framework == "" {
		o.Framework = FrameworkGHGProtocol
	}
	if _, err := ParseFramework(string(o.Framework)); err != nil {
		return err
	}
	if o.LinesPerPage == 0 {
		o.LinesPerPage = DefaultLinesPerPage
	}
	if o.LinesPerPage < minLinesPerPage {
		return fmt.Errorf("%w: lines per page %d below %d", ErrInvalidOptions, o.LinesPerPage, minLinesPerPage)
	}
	return nil
}

// Section is narrative input: a title, markup content and nested subsections.
type Section struct {
	Title       string    `yaml:"title"`
	Content     string    `yaml:"content"`
	Subsections []Section `yaml:"subsections,omitempty"`
}

// PageKind says which part of the report a page belongs to.
type PageKind string

// Page kinds in document order.
const (
	PageCover   PageKind = "cover"
	PageSummary PageKind = "summary"
	PageTOC     PageKind = "toc"
	PageSection PageKind = "section"
)

// BlockKind discriminates Block.
type BlockKind int

// Block kinds.
const (
	BlockHeading BlockKind = iota
	BlockParagraph
	BlockList
	BlockTable
	// BlockTOCEntry holds a contents line: Spans are the title and the page number.
	BlockTOCEntry
)

// Span is a run of inline text.
type Span struct {
	Text string
	Bold bool
}

// Block is one unit of page content.
type Block struct {
	Kind BlockKind
	// Level is the heading level, 1 to 3.
	Level int
	// Number is the section number of a numbered heading, such as "2." or "2.1".
	// Headings written in section markup have none.
	Number string
	Spans  []Span
	Items  [][]Span
	Table  *Table
}

// Text returns the block's spans as plain text.
func (b Block) Text() string {
	return plain(b.Spans)
}

// Table is a simple grid with a header row.
type Table struct {
	Caption string
	Headers []string
	Rows    [][]string
	// NumericFrom is the first column holding numbers, right-aligned by writers.
	NumericFrom int
}

// Footer repeats on every page.
type Footer struct {
	Organization    string
	Framework       string
	Year            int
	Confidentiality string
	Page            int
	Pages           int
}

// String renders the footer as one line.
func (f Footer) String() string {
	parts := []string{f.Organization, f.Framework, fmt.Sprint(f.Year)}
	if f.Confidentiality != "" {
		parts = append(parts, f.Confidentiality)
	}
	parts = append(parts, fmt.Sprintf("Page %d of %d", f.Page, f.Pages))
	return strings.Join(parts, " | ")
}

// Page is one page of the document. Numbers start at 1.
type Page struct {
	Number int
	Kind   PageKind
	Blocks []Block
	Footer Footer
}

// TOCEntry is one line of the table of contents.
type TOCEntry struct {
	Number string
	Title  string
	Level  int
	Page   int
}

// Document is a rendered report.
type Document struct {
	Title string
	Pages []Page
	TOC   []TOCEntry
}

// Headings returns every numbered heading in page order with its page number.
func (d *Document) Headings() []TOCEntry {
	var out []TOCEntry
	for _, p := range d.Pages {
		for _, b := range p.Blocks {
			if b.Kind == BlockHeading && b.Number != "" {
				out = append(out, TOCEntry{Number: b.Number, Title: b.Text(), Level: b.Level, Page: p.Number})
			}
		}
	}
	return out
}

func plain(spans []Span) string {
	var b strings.Builder
	for _, s := range spans {
		b.WriteString(s.Text)
	}
	return b.String()
}
