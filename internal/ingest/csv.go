package ingest

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/rshade/ghgfocus/internal/ghg"
	"github.com/rshade/ghgfocus/internal/logging"
)

// csvField is a canonical column of an ERP export.
type csvField string

const (
	colType        csvField = "type"
	colDate        csvField = "date"
	colEndDate     csvField = "end_date"
	colAmount      csvField = "amount"
	colUnit        csvField = "unit"
	colSpend       csvField = "spend"
	colCurrency    csvField = "currency"
	colGLAccount   csvField = "gl_account"
	colExpenseCat  csvField = "expense_category"
	colVendor      csvField = "vendor"
	colCostCenter  csvField = "cost_center"
	colReference   csvField = "reference"
	colDescription csvField = "description"
	colFacility    csvField = "facility"
	colScope       csvField = "scope"
	colCategory    csvField = "category"
	colSubcategory csvField = "subcategory"
	colFactor      csvField = "emission_factor"
	colFactorUnit  csvField = "emission_factor_unit"
	colFactorSrc   csvField = "emission_factor_source"
	colMethod      csvField = "calculation_method"
)

// headerAliases maps normalized header spellings used by common ERP exports
// to canonical columns.
//
//nolint:gochecknoglobals // Read-only lookup table.
var headerAliases = map[string]csvField{
	"type": colType, "record_type": colType, "data_type": colType, "activity_type": colType,
	"date": colDate, "transaction_date": colDate, "posting_date": colDate, "period_start": colDate, "start_date": colDate,
	"end_date": colEndDate, "period_end": colEndDate,
	"amount": colAmount, "quantity": colAmount, "qty": colAmount,
	"unit": colUnit, "uom": colUnit, "quantity_unit": colUnit,
	"spend": colSpend, "cost": colSpend, "net_amount": colSpend, "amount_in_company_code_currency": colSpend,
	"currency": colCurrency, "document_currency": colCurrency, "company_code_currency": colCurrency,
	"gl_account": colGLAccount, "glaccount": colGLAccount, "account": colGLAccount, "gl": colGLAccount,
	"expense_category": colExpenseCat, "expense_type": colExpenseCat, "material_group": colExpenseCat,
	"vendor": colVendor, "supplier": colVendor, "vendor_name": colVendor,
	"cost_center": colCostCenter, "costcenter": colCostCenter, "cost_centre": colCostCenter,
	"reference": colReference, "transaction_id": colReference, "journal_entry": colReference,
	"id": colReference, "document_number": colReference,
	"description": colDescription, "item_text": colDescription, "memo": colDescription,
	"facility": colFacility, "plant": colFacility, "site": colFacility,
	"scope": colScope, "category": colCategory, "subcategory": colSubcategory,
	"emission_factor": colFactor, "factor": colFactor,
	"emission_factor_unit": colFactorUnit, "factor_unit": colFactorUnit,
	"emission_factor_source": colFactorSrc, "factor_source": colFactorSrc,
	"calculation_method": colMethod, "method": colMethod,
}

// csvDateLayouts are tried in order when parsing date cells.
//
//nolint:gochecknoglobals // Read-only lookup table.
var csvDateLayouts = []string{time.DateOnly, "20060102", "01/02/2006", "02.01.2006", time.RFC3339}

func normalizeHeader(h string) string {
	h = strings.ToLower(strings.TrimSpace(h))
	h = strings.NewReplacer(" ", "_", "-", "_", ".", "_").Replace(h)
	return h
}

// CSVAdapter reads activity records from an ERP CSV export at Credentials.Path.
type CSVAdapter struct {
	// Open returns the export contents. Defaults to reading the file at path.
	Open func(path string) (io.ReadCloser, error)
}

// FetchActivityRecords parses the export and returns rows inside the range
// whose type passes the filter. A file that cannot be opened makes the
// integration unavailable; malformed rows are returned with Problems set.
func (a CSVAdapter) FetchActivityRecords(
	ctx context.Context,
	creds Credentials,
	dateRange DateRange,
	dataTypes []DataType,
) ([]RawRecord, error) {
	open := a.Open
	if open == nil {
		open = func(path string) (io.ReadCloser, error) { return os.Open(path) }
	}

	rc, err := open(creds.Path)
	if err != nil {
		return nil, &ghg.IntegrationUnavailableError{IntegrationID: creds.IntegrationID, Err: err}
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, &ghg.IntegrationUnavailableError{IntegrationID: creds.IntegrationID, Err: err}
	}

	records, err := ParseCSV(ctx, data)
	if err != nil {
		return nil, err
	}

	out := records[:0]
	for _, r := range records {
		if !wantType(dataTypes, r.Type) {
			continue
		}
		// Rows without a parseable date cannot be range-filtered; keep them so
		// the normalizer reports them.
		if !r.Date.IsZero() && !dateRange.Contains(r.Date) {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

// DecodeText converts CSV bytes to UTF-8. A byte order mark selects UTF-8 or
// UTF-16; BOM-less input that is not valid UTF-8 is read as Latin-1. The
// detected encoding name is returned with the decoded bytes.
func DecodeText(data []byte) ([]byte, string, error) {
	switch {
	case bytes.HasPrefix(data, []byte{0xEF, 0xBB, 0xBF}):
		return data[3:], "utf-8-bom", nil
	case bytes.HasPrefix(data, []byte{0xFF, 0xFE}), bytes.HasPrefix(data, []byte{0xFE, 0xFF}):
		dec := unicode.BOMOverride(unicode.UTF8.NewDecoder())
		out, _, err := transform.Bytes(dec, data)
		if err != nil {
			return nil, "", fmt.Errorf("decoding UTF-16: %w", err)
		}
		return out, "utf-16", nil
	case utf8.Valid(data):
		return data, "utf-8", nil
	default:
		out, _, err := transform.Bytes(charmap.ISO8859_1.NewDecoder(), data)
		if err != nil {
			return nil, "", fmt.Errorf("decoding Latin-1: %w", err)
		}
		return out, "latin-1", nil
	}
}

// ParseCSV parses an ERP export into raw records. Unknown columns are ignored.
// Cells that fail to parse are reported in the row's Problems rather than
// dropping the row.
func ParseCSV(ctx context.Context, data []byte) ([]RawRecord, error) {
	log := logging.FromContext(ctx)

	decoded, encoding, err := DecodeText(data)
	if err != nil {
		return nil, err
	}

	reader := csv.NewReader(bytes.NewReader(decoded))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("empty CSV export: no header row")
		}
		return nil, fmt.Errorf("reading CSV header: %w", err)
	}

	columns := make(map[csvField]int, len(header))
	for i, h := range header {
		if f, ok := headerAliases[normalizeHeader(h)]; ok {
			if _, dup := columns[f]; !dup {
				columns[f] = i
			}
		}
	}
	if _, ok := columns[colDate]; !ok {
		return nil, errors.New("CSV export has no date column")
	}

	log.Debug().
		Str("component", "ingest").
		Str("operation", "parse_csv").
		Str("encoding", encoding).
		Int("columns", len(columns)).
		Msg("parsing CSV export")

	var records []RawRecord
	line := 1
	for {
		row, readErr := reader.Read()
		if errors.Is(readErr, io.EOF) {
			break
		}
		line++
		if readErr != nil {
			records = append(records, RawRecord{
				SourceReference: fmt.Sprintf("line %d", line),
				Problems:        []string{readErr.Error()},
			})
			continue
		}
		if blankRow(row) {
			continue
		}
		records = append(records, parseRow(row, columns, line))
	}
	return records, nil
}

func blankRow(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

func parseRow(row []string, columns map[csvField]int, line int) RawRecord {
	cell := func(f csvField) string {
		i, ok := columns[f]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	var problems []string
	addProblem := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	rec := RawRecord{
		CategoryHint:    cell(colCategory),
		Subcategory:     cell(colSubcategory),
		Unit:            cell(colUnit),
		Currency:        strings.ToUpper(cell(colCurrency)),
		Description:     cell(colDescription),
		SourceReference: cell(colReference),
		Facility:        cell(colFacility),
		Keys: SourceKeys{
			GLAccount:       cell(colGLAccount),
			ExpenseCategory: cell(colExpenseCat),
			Vendor:          cell(colVendor),
			CostCenter:      cell(colCostCenter),
		},
		CalculationMethod: ghg.CalculationMethod(strings.ToLower(cell(colMethod))),
	}
	if rec.SourceReference == "" {
		rec.SourceReference = fmt.Sprintf("line %d", line)
	}

	if v := cell(colType); v != "" {
		t, err := ParseDataType(v)
		if err != nil {
			addProblem("%v", err)
		}
		rec.Type = t
	}
	if v := cell(colScope); v != "" {
		s, err := ghg.ParseScope(v)
		if err != nil {
			addProblem("%v", err)
		}
		rec.ScopeHint = s
	}

	date, err := parseDate(cell(colDate))
	if err != nil {
		addProblem("date: %v", err)
	}
	rec.Date = date
	if v := cell(colEndDate); v != "" {
		end, endErr := parseDate(v)
		if endErr != nil {
			addProblem("end date: %v", endErr)
		}
		rec.PeriodEnd = end
	}

	if v := cell(colAmount); v != "" {
		amt, amtErr := ParseAmount(v)
		if amtErr != nil {
			addProblem("amount: %v", amtErr)
		}
		rec.Amount = amt
	}
	if v := cell(colSpend); v != "" {
		spend, spendErr := ParseAmount(v)
		if spendErr != nil {
			addProblem("spend: %v", spendErr)
		}
		rec.SpendAmount = spend
	}

	if v := cell(colFactor); v != "" {
		f, fErr := ParseAmount(v)
		if fErr != nil {
			addProblem("emission factor: %v", fErr)
		} else {
			rec.EmissionFactor = &ghg.Factor{Value: f, Unit: cell(colFactorUnit), Source: cell(colFactorSrc)}
		}
	}

	rec.Problems = problems
	return rec
}

func parseDate(v string) (time.Time, error) {
	if v == "" {
		return time.Time{}, errors.New("empty")
	}
	for _, layout := range csvDateLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", v)
}

// ParseAmount parses user-formatted numbers such as "20,000", "USD 1,250.50"
// or "(300)" for negatives. Only digits, one decimal point and a sign survive.
func ParseAmount(v string) (decimal.Decimal, error) {
	s := strings.TrimSpace(v)
	neg := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		neg = true
		s = strings.TrimSuffix(strings.TrimPrefix(s, "("), ")")
	}

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9', r == '.':
			b.WriteRune(r)
		case r == '-' && b.Len() == 0:
			neg = !neg
		}
	}
	clean := b.String()
	if clean == "" {
		return decimal.Zero, fmt.Errorf("invalid number %q", v)
	}
	d, err := decimal.NewFromString(clean)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid number %q: %w", v, err)
	}
	if neg {
		d = d.Neg()
	}
	return d, nil
}
