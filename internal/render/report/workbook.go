package report

import (
	"fmt"
	"io"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/rshade/ghgfocus/internal/engine"
	"github.com/rshade/ghgfocus/internal/ghg"
)

// Workbook sheet names.
const (
	SheetSummary      = "Summary"
	SheetScope3       = "Scope 3"
	SheetYearOverYear = "Year over Year"
)

// sheet writes rows into one worksheet and keeps the first error.
type sheet struct {
	f      *excelize.File
	name   string
	row    int
	bold   int
	number int
	err    error
}

func (s *sheet) set(col int, value any, style int) {
	if s.err != nil {
		return
	}
	cell, err := excelize.CoordinatesToCellName(col, s.row)
	if err != nil {
		s.err = err
		return
	}
	if s.err = s.f.SetCellValue(s.name, cell, value); s.err != nil {
		return
	}
	if style != 0 {
		s.err = s.f.SetCellStyle(s.name, cell, cell, style)
	}
}

// line writes one row. Decimal cells get the number style, the rest are plain
// unless the whole row is a header.
func (s *sheet) line(header bool, values ...any) {
	s.row++
	for i, v := range values {
		style := 0
		if header {
			style = s.bold
		}
		if d, ok := v.(decimal.Decimal); ok {
			v = d.Round(2).InexactFloat64()
			style = s.number
		}
		s.set(i+1, v, style)
	}
}

// WriteWorkbook writes the inventory as a spreadsheet: a Summary sheet with
// the scope totals and key figures, a Scope 3 sheet listing all 15
// categories and, when comparison data exists, a Year over Year sheet.
func WriteWorkbook(w io.Writer, inv *ghg.AggregatedInventory, opts Options) error {
	if err := opts.normalize(); err != nil {
		return err
	}
	if err := engine.Reconcile(inv); err != nil {
		return err
	}

	f := excelize.NewFile()
	defer f.Close()

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("creating header style: %w", err)
	}
	numFmt := "#,##0.00"
	number, err := f.NewStyle(&excelize.Style{CustomNumFmt: &numFmt})
	if err != nil {
		return fmt.Errorf("creating number style: %w", err)
	}

	if err := f.SetSheetName("Sheet1", SheetSummary); err != nil {
		return fmt.Errorf("naming summary sheet: %w", err)
	}
	summary := &sheet{f: f, name: SheetSummary, bold: bold, number: number}
	summary.line(true, opts.Framework.Title())
	summary.line(false, "Organization", inv.Organization.Name)
	summary.line(false, "Framework", opts.Framework.Name())
	summary.line(false, "Reporting period", inv.Period.String())
	if opts.Confidentiality != "" {
		summary.line(false, "Confidentiality", opts.Confidentiality)
	}
	summary.row++
	summary.line(true, "Metric", "tCO2e")
	summary.line(false, "Scope 1", inv.TotalScope1)
	summary.line(false, "Scope 2 location-based", inv.TotalScope2LocationBased)
	summary.line(false, "Scope 2 market-based", inv.TotalScope2MarketBased)
	summary.line(false, "Scope 2 reported ("+methodLabel(inv.Scope2Method)+")", inv.PreferredScope2())
	summary.line(false, "Scope 3", inv.TotalScope3)
	summary.line(true, "Total", inv.GrandTotal())
	summary.row++
	summary.line(false, "Scope 3 completeness", inv.Completeness)
	summary.line(false, "Data quality score", inv.DataQualityScore)
	summary.line(false, "Records", inv.RecordCount)
	summary.line(false, "Pending factor", inv.PendingCount)
	if summary.err != nil {
		return fmt.Errorf("writing summary sheet: %w", summary.err)
	}

	if _, err := f.NewSheet(SheetScope3); err != nil {
		return fmt.Errorf("adding scope 3 sheet: %w", err)
	}
	scope3 := &sheet{f: f, name: SheetScope3, bold: bold, number: number}
	scope3.line(true, "#", "Category", "ID", "tCO2e", "Records")
	for _, cat := range ghg.AllScope3Categories() {
		ct := inv.Category(cat)
		scope3.line(false, cat.Number(), cat.Name(), cat.ID(), ct.Total, ct.RecordCount)
	}
	scope3.line(true, "", "Total Scope 3", "", inv.TotalScope3, "")
	if scope3.err != nil {
		return fmt.Errorf("writing scope 3 sheet: %w", scope3.err)
	}

	if yoy := inv.YearOverYear; yoy != nil {
		if _, err := f.NewSheet(SheetYearOverYear); err != nil {
			return fmt.Errorf("adding year over year sheet: %w", err)
		}
		cmp := &sheet{f: f, name: SheetYearOverYear, bold: bold, number: number}
		cmp.line(true, "Scope", yoy.PreviousPeriod.String(), inv.Period.String(), "Change")
		cmp.line(false, "Scope 1", yoy.Previous.Scope1, inv.TotalScope1, yoy.Scope1Change.String())
		cmp.line(false, "Scope 2", yoy.Previous.Scope2Preferred, inv.PreferredScope2(), yoy.Scope2Change.String())
		cmp.line(false, "Scope 3", yoy.Previous.Scope3, inv.TotalScope3, yoy.Scope3Change.String())
		cmp.line(false, "Total", yoy.Previous.Total, inv.GrandTotal(), yoy.TotalChange.String())
		if cmp.err != nil {
			return fmt.Errorf("writing year over year sheet: %w", cmp.err)
		}
	}

	for _, name := range []string{SheetSummary, SheetScope3} {
		if err := f.SetColWidth(name, "A", "B", 40); err != nil {
			return fmt.Errorf("sizing %s columns: %w", name, err)
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("writing workbook: %w", err)
	}
	return nil
}
