package report

import (
	"bytes"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/rshade/ghgfocus/internal/ghg"
)

func TestWriteWorkbook(t *testing.T) {
	tests := []struct {
		name   string
		prev   bool
		sheets []string
	}{
		{name: "current period only", sheets: []string{SheetSummary, SheetScope3}},
		{name: "with comparison", prev: true, sheets: []string{SheetSummary, SheetScope3, SheetYearOverYear}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, WriteWorkbook(&buf, inventory(t, tt.prev), Options{Framework: FrameworkSB253}))

			f, err := excelize.OpenReader(&buf)
			require.NoError(t, err)
			t.Cleanup(func() { _ = f.Close() })
			assert.Equal(t, tt.sheets, f.GetSheetList())

			raw := excelize.Options{RawCellValue: true}
			cell := func(sheet, ref string) string {
				v, cellErr := f.GetCellValue(sheet, ref, raw)
				require.NoError(t, cellErr)
				return v
			}

			assert.Equal(t, "California SB 253 Climate Disclosure Report", cell(SheetSummary, "A1"))
			assert.Equal(t, testOrg.Name, cell(SheetSummary, "B2"))

			rows, err := f.GetRows(SheetScope3, raw)
			require.NoError(t, err)
			require.Len(t, rows, ghg.Scope3CategoryCount+2)
			assert.Equal(t, []string{"#", "Category", "ID", "tCO2e", "Records"}, rows[0])
			assert.Equal(t, []string{"6", "Business travel", "business_travel", "12.5", "1"}, rows[6])
			assert.Equal(t, "Investments", rows[15][1])
			assert.Equal(t, "19.75", rows[16][3])

			if tt.prev {
				assert.Equal(t, "-20.00%", cell(SheetYearOverYear, "D2"))
			}
		})
	}
}

func TestWriteWorkbook_Errors(t *testing.T) {
	inv := inventory(t, false)
	inv.Scope3ByCategory[0].Total = decimal.NewFromInt(3)

	var buf bytes.Buffer
	require.ErrorIs(t, WriteWorkbook(&buf, inv, Options{}), ghg.ErrRenderInconsistency)
	assert.Zero(t, buf.Len())

	require.ErrorIs(t, WriteWorkbook(&buf, inventory(t, false), Options{Framework: "gri"}), ErrInvalidOptions)
}
