package report

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/rshade/ghgfocus/internal/engine"
	"github.com/rshade/ghgfocus/internal/ghg"
	"github.com/rshade/ghgfocus/internal/greenops"
	"github.com/rshade/ghgfocus/internal/logging"
)

// lineWidth is the character count assumed per rendered line when
// estimating paragraph height.
const lineWidth = 90

//nolint:gochecknoglobals // Constant decimal.
var hundred = decimal.NewFromInt(100)

// Render builds the report document for inv.
//
// Pages come in a fixed order: cover, executive summary, table of contents,
// then one run of pages per top-level section. Section numbers are
// sequential from 1 ("1.", "1.1", "1.1.1") and the table of contents lists
// every numbered heading with the page it lands on. The inventory is
// reconciled first; an inconsistent inventory renders nothing.
func Render(ctx context.Context, sections []Section, inv *ghg.AggregatedInventory, opts Options) (*Document, error) {
	logger := logging.FromContext(ctx).With().
		Str("component", "report").
		Str("operation", "render").
		Logger()

	if err := opts.normalize(); err != nil {
		return nil, err
	}
	if err := engine.Reconcile(inv); err != nil {
		return nil, err
	}

	cover := paginate(coverBlocks(inv, opts), opts.LinesPerPage)
	summary := paginate(summaryBlocks(inv, opts), opts.LinesPerPage)

	var entries []TOCEntry
	var bodies [][][]Block
	for i, s := range sections {
		blocks := sectionBlocks(s, strconv.Itoa(i+1), 1, &entries)
		bodies = append(bodies, paginate(blocks, opts.LinesPerPage))
	}

	// The TOC page count depends only on the number of entries, so it can
	// be laid out before the entries know their pages.
	tocPages := len(paginate(tocBlocks(entries), opts.LinesPerPage))

	doc := &Document{Title: opts.Framework.Title()}
	addPages := func(kind PageKind, pages [][]Block) {
		for _, blocks := range pages {
			doc.Pages = append(doc.Pages, Page{Number: len(doc.Pages) + 1, Kind: kind, Blocks: blocks})
		}
	}
	addPages(PageCover, cover)
	addPages(PageSummary, summary)
	tocStart := len(doc.Pages)
	for range tocPages {
		doc.Pages = append(doc.Pages, Page{Number: len(doc.Pages) + 1, Kind: PageTOC})
	}
	for _, body := range bodies {
		addPages(PageSection, body)
	}

	doc.TOC = doc.Headings()
	toc := paginate(tocBlocks(doc.TOC), opts.LinesPerPage)
	for i := range tocPages {
		doc.Pages[tocStart+i].Blocks = toc[i]
	}

	footer := Footer{
		Organization:    inv.Organization.Name,
		Framework:       opts.Framework.Name(),
		Year:            inv.Period.Year(),
		Confidentiality: opts.Confidentiality,
		Pages:           len(doc.Pages),
	}
	for i := range doc.Pages {
		footer.Page = doc.Pages[i].Number
		doc.Pages[i].Footer = footer
	}

	logger.Debug().
		Int("pages", len(doc.Pages)).
		Int("sections", len(sections)).
		Int("toc_entries", len(doc.TOC)).
		Msg("report rendered")
	return doc, nil
}

// sectionBlocks numbers s and its subsections depth-first.
func sectionBlocks(s Section, number string, depth int, entries *[]TOCEntry) []Block {
	label := number
	if depth == 1 {
		label += "."
	}
	blocks := []Block{{
		Kind:   BlockHeading,
		Level:  min(depth, maxHeadingLevel),
		Number: label,
		Spans:  []Span{{Text: s.Title}},
	}}
	*entries = append(*entries, TOCEntry{Number: label, Title: s.Title, Level: min(depth, maxHeadingLevel)})
	blocks = append(blocks, parseMarkup(s.Content)...)
	for i, sub := range s.Subsections {
		blocks = append(blocks, sectionBlocks(sub, number+"."+strconv.Itoa(i+1), depth+1, entries)...)
	}
	return blocks
}

func coverBlocks(inv *ghg.AggregatedInventory, opts Options) []Block {
	org := inv.Organization
	blocks := []Block{
		{Kind: BlockHeading, Level: 1, Spans: []Span{{Text: opts.Framework.Title()}}},
		{Kind: BlockParagraph, Spans: []Span{{Text: org.Name, Bold: true}}},
		{Kind: BlockParagraph, Spans: []Span{{Text: "Framework: " + opts.Framework.Name()}}},
		{Kind: BlockParagraph, Spans: []Span{{Text: "Reporting period: " + inv.Period.String()}}},
	}
	if org.RegistrationID != "" {
		reg := org.RegistrationID
		if org.RegistrationScheme != "" {
			reg = org.RegistrationScheme + " " + reg
		}
		blocks = append(blocks, Block{Kind: BlockParagraph, Spans: []Span{{Text: "Registration: " + reg}}})
	}
	if opts.Confidentiality != "" {
		blocks = append(blocks, Block{Kind: BlockParagraph, Spans: []Span{{Text: opts.Confidentiality, Bold: true}}})
	}
	return blocks
}

func summaryBlocks(inv *ghg.AggregatedInventory, opts Options) []Block {
	total := inv.GrandTotal()
	blocks := []Block{
		{Kind: BlockHeading, Level: 1, Spans: []Span{{Text: "Executive Summary"}}},
		{Kind: BlockParagraph, Spans: []Span{{Text: fmt.Sprintf(
			"This report presents the greenhouse gas emissions of %s for the reporting period %s. ",
			inv.Organization.Name, inv.Period.String()) + opts.Framework.Statement()}}},
		{Kind: BlockTable, Table: scopeTable(inv)},
	}

	if eq, err := greenops.Calculate(total); err == nil && !eq.IsEmpty {
		blocks = append(blocks, Block{Kind: BlockParagraph, Spans: []Span{
			{Text: "Total emissions of " + greenops.FormatTonnes(total) + ". "},
			{Text: eq.DisplayText + "."},
		}})
	}

	completeness := decimal.NewFromFloat(inv.Completeness).Mul(hundred)
	items := [][]Span{
		{{Text: "Grand total: ", Bold: true}, {Text: greenops.FormatTonnes(total)}},
		{{Text: "Scope 3 completeness: ", Bold: true}, {Text: fmt.Sprintf("%d of %d categories (%s%%)",
			inv.CategoriesWithData(), ghg.Scope3CategoryCount, greenops.FormatDecimal(completeness, 1))}},
		{{Text: "Data quality score: ", Bold: true}, {Text: strconv.FormatFloat(inv.DataQualityScore, 'f', 2, 64)}},
		{{Text: "Records included: ", Bold: true}, {Text: greenops.FormatNumber(int64(inv.RecordCount))}},
	}
	if inv.PendingCount > 0 {
		items = append(items, []Span{
			{Text: "Awaiting emission factors: ", Bold: true},
			{Text: greenops.FormatNumber(int64(inv.PendingCount)) + " records excluded from totals"},
		})
	}
	blocks = append(blocks, Block{Kind: BlockList, Items: items})

	if inv.YearOverYear != nil {
		blocks = append(blocks,
			Block{Kind: BlockHeading, Level: 2, Spans: []Span{{Text: "Year-over-Year Comparison"}}},
			Block{Kind: BlockTable, Table: yearOverYearTable(inv)},
		)
	}

	blocks = append(blocks,
		Block{Kind: BlockHeading, Level: 2, Spans: []Span{{Text: "Scope 3 by Category"}}},
		Block{Kind: BlockTable, Table: scope3Table(inv)},
		Block{Kind: BlockHeading, Level: 2, Spans: []Span{{Text: "Methodology"}}},
	)
	blocks = append(blocks, parseMarkup(methodologyNote(inv))...)
	return blocks
}

func scopeTable(inv *ghg.AggregatedInventory) *Table {
	total := inv.GrandTotal()
	share := func(v decimal.Decimal) string {
		if total.IsZero() {
			return "0.0%"
		}
		return greenops.FormatDecimal(v.Div(total).Mul(hundred), 1) + "%"
	}
	method := methodLabel(inv.Scope2Method)
	return &Table{
		Caption:     "Emissions by scope (tCO2e)",
		Headers:     []string{"Scope", "tCO2e", "Share of total"},
		NumericFrom: 1,
		Rows: [][]string{
			{"Scope 1: Direct emissions", greenops.FormatDecimal(inv.TotalScope1, 2), share(inv.TotalScope1)},
			{"Scope 2: Location-based", greenops.FormatDecimal(inv.TotalScope2LocationBased, 2), ""},
			{"Scope 2: Market-based", greenops.FormatDecimal(inv.TotalScope2MarketBased, 2), ""},
			{"Scope 2: Reported (" + method + ")", greenops.FormatDecimal(inv.PreferredScope2(), 2), share(inv.PreferredScope2())},
			{"Scope 3: Value chain", greenops.FormatDecimal(inv.TotalScope3, 2), share(inv.TotalScope3)},
			{"Total", greenops.FormatDecimal(total, 2), share(total)},
		},
	}
}

func yearOverYearTable(inv *ghg.AggregatedInventory) *Table {
	yoy := inv.YearOverYear
	prev := yoy.Previous
	row := func(label string, previous, current decimal.Decimal, change ghg.PercentChange) []string {
		return []string{label, greenops.FormatDecimal(previous, 2), greenops.FormatDecimal(current, 2), change.String()}
	}
	return &Table{
		Caption: "Compared with " + yoy.PreviousPeriod.String(),
		Headers: []string{
			"Scope",
			strconv.Itoa(yoy.PreviousPeriod.Year()) + " tCO2e",
			strconv.Itoa(inv.Period.Year()) + " tCO2e",
			"Change",
		},
		NumericFrom: 1,
		Rows: [][]string{
			row("Scope 1", prev.Scope1, inv.TotalScope1, yoy.Scope1Change),
			row("Scope 2", prev.Scope2Preferred, inv.PreferredScope2(), yoy.Scope2Change),
			row("Scope 3", prev.Scope3, inv.TotalScope3, yoy.Scope3Change),
			row("Total", prev.Total, inv.GrandTotal(), yoy.TotalChange),
		},
	}
}

// scope3Table lists all 15 categories, including those without data.
func scope3Table(inv *ghg.AggregatedInventory) *Table {
	t := &Table{
		Caption:     "Scope 3 emissions by GHG Protocol category (tCO2e)",
		Headers:     []string{"#", "Category", "tCO2e", "Records"},
		NumericFrom: 2,
	}
	for _, cat := range ghg.AllScope3Categories() {
		ct := inv.Category(cat)
		t.Rows = append(t.Rows, []string{
			strconv.Itoa(cat.Number()),
			cat.Name(),
			greenops.FormatDecimal(ct.Total, 2),
			strconv.Itoa(ct.RecordCount),
		})
	}
	t.Rows = append(t.Rows, []string{"", "Total Scope 3", greenops.FormatDecimal(inv.TotalScope3, 2), ""})
	return t
}

func methodologyNote(inv *ghg.AggregatedInventory) string {
	var b strings.Builder
	methodology := inv.Methodology
	if methodology == "" {
		methodology = engine.DefaultMethodology
	}
	b.WriteString(methodology)
	b.WriteString("\n\n")
	if inv.Scope2Method == ghg.MethodMarketBased {
		b.WriteString("Scope 2 is reported using the **market-based** method because supplier-specific " +
			"data was available for the period. The location-based total is disclosed alongside it.")
	} else {
		b.WriteString("Scope 2 is reported using the **location-based** method because no market-based " +
			"data was available for the period.")
	}
	b.WriteString("\n\nFigures are rounded to two decimals for presentation. Totals are summed from unrounded values.")
	return b.String()
}

func methodLabel(m ghg.CalculationMethod) string {
	if m == ghg.MethodMarketBased {
		return "market-based"
	}
	return "location-based"
}

func tocBlocks(entries []TOCEntry) []Block {
	blocks := []Block{{Kind: BlockHeading, Level: 1, Spans: []Span{{Text: "Table of Contents"}}}}
	for _, e := range entries {
		blocks = append(blocks, Block{Kind: BlockTOCEntry, Level: e.Level, Number: e.Number, Spans: []Span{
			{Text: e.Title},
			{Text: strconv.Itoa(e.Page)},
		}})
	}
	return blocks
}

// paginate splits blocks into pages of at most limit estimated lines.
// A block taller than a page gets a page of its own. A heading always shares
// its page with the block after it.
func paginate(blocks []Block, limit int) [][]Block {
	var (
		pages   [][]Block
		current []Block
		used    int
	)
	for i, b := range blocks {
		h := blockLines(b)
		need := h
		if b.Kind == BlockHeading && i+1 < len(blocks) {
			need += blockLines(blocks[i+1])
		}
		glued := len(current) > 0 && current[len(current)-1].Kind == BlockHeading
		if len(current) > 0 && !glued && used+need > limit {
			pages = append(pages, current)
			current, used = nil, 0
		}
		current = append(current, b)
		used += h
	}
	if len(current) > 0 || len(pages) == 0 {
		pages = append(pages, current)
	}
	return pages
}

func blockLines(b Block) int {
	switch b.Kind {
	case BlockHeading:
		return 2
	case BlockTOCEntry:
		return 1
	case BlockParagraph:
		return wrappedLines(plain(b.Spans)) + 1
	case BlockList:
		n := 1
		for _, item := range b.Items {
			n += wrappedLines(plain(item))
		}
		return n
	case BlockTable:
		n := len(b.Table.Rows) + 2
		if b.Table.Caption != "" {
			n++
		}
		return n
	default:
		return 1
	}
}

func wrappedLines(s string) int {
	return max(1, (len(s)+lineWidth-1)/lineWidth)
}
