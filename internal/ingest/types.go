// Package ingest turns raw activity records from external systems into
// canonical emission records.
//
// Adapters fetch RawRecords from one kind of system (CSV exports, REST APIs,
// manual entry). The Normalizer resolves each record's source key against the
// mapping registry and emits canonical records, routing records it cannot map
// or convert to separate lists so nothing is dropped.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rshade/ghgfocus/internal/ghg"
	"github.com/rshade/ghgfocus/internal/mapping"
)

// DataType is the kind of activity a raw record describes.
type DataType string

// Supported data types.
const (
	DataFuel        DataType = "fuel"
	DataElectricity DataType = "electricity"
	DataTravel      DataType = "travel"
	DataProcurement DataType = "procurement"
	DataWaste       DataType = "waste"
)

// AllDataTypes lists every data type in report order.
func AllDataTypes() []DataType {
	return []DataType{DataFuel, DataElectricity, DataTravel, DataProcurement, DataWaste}
}

// Valid reports whether t is a known data type.
func (t DataType) Valid() bool {
	switch t {
	case DataFuel, DataElectricity, DataTravel, DataProcurement, DataWaste:
		return true
	default:
		return false
	}
}

// ParseDataType accepts the canonical names plus "utility" for electricity.
func ParseDataType(raw string) (DataType, error) {
	s := strings.ToLower(strings.TrimSpace(raw))
	if s == "utility" || s == "utilities" {
		return DataElectricity, nil
	}
	t := DataType(s)
	if !t.Valid() {
		names := make([]string, 0, len(AllDataTypes()))
		for _, d := range AllDataTypes() {
			names = append(names, string(d))
		}
		return "", fmt.Errorf("unknown data type %q (want %s)", raw, strings.Join(names, ", "))
	}
	return t, nil
}

// SourceKeys are the identifiers a raw record can be mapped by.
type SourceKeys struct {
	GLAccount       string `json:"gl_account,omitempty"`
	ExpenseCategory string `json:"expense_category,omitempty"`
	Vendor          string `json:"vendor,omitempty"`
	CostCenter      string `json:"cost_center,omitempty"`
}

// Get returns the key of the given field type.
func (k SourceKeys) Get(t mapping.FieldType) string {
	switch t {
	case mapping.FieldGLAccount:
		return k.GLAccount
	case mapping.FieldExpenseCategory:
		return k.ExpenseCategory
	case mapping.FieldVendor:
		return k.Vendor
	case mapping.FieldCostCenter:
		return k.CostCenter
	default:
		return ""
	}
}

// RawRecord is one activity record as delivered by an adapter.
type RawRecord struct {
	Type         DataType  `json:"type"`
	ScopeHint    ghg.Scope `json:"scope_hint,omitempty"`
	CategoryHint string    `json:"category_hint,omitempty"`
	Subcategory  string    `json:"subcategory,omitempty"`

	// Amount is the activity quantity in Unit. For spend-only records Unit is
	// a currency and Amount the money spent.
	Amount decimal.Decimal `json:"amount"`
	Unit   string          `json:"unit"`
	// SpendAmount is the money paid for the activity, when known.
	SpendAmount decimal.Decimal `json:"spend_amount"`
	Currency    string          `json:"currency,omitempty"`

	Date time.Time `json:"date"`
	// PeriodEnd is set for records covering a range, such as utility bills.
	PeriodEnd time.Time `json:"period_end,omitempty"`

	Description     string     `json:"description,omitempty"`
	SourceReference string     `json:"source_reference"`
	Facility        string     `json:"facility,omitempty"`
	Keys            SourceKeys `json:"keys"`

	// EmissionFactor is a supplier-provided factor, if the source has one.
	EmissionFactor    *ghg.Factor           `json:"emission_factor,omitempty"`
	CalculationMethod ghg.CalculationMethod `json:"calculation_method,omitempty"`
	DataQuality       ghg.DataQuality       `json:"data_quality,omitempty"`

	// Problems lists issues the adapter found while reading the record.
	// The normalizer fails records that carry any.
	Problems []string `json:"problems,omitempty"`
}

// DateRange is an inclusive range of days.
type DateRange struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// Validate rejects missing or inverted ranges.
func (r DateRange) Validate() error {
	if r.From.IsZero() || r.To.IsZero() {
		return errors.New("date range needs both from and to")
	}
	if r.To.Before(r.From) {
		return fmt.Errorf("date range ends %s before it starts %s",
			r.To.Format(time.DateOnly), r.From.Format(time.DateOnly))
	}
	return nil
}

// Contains reports whether t falls on a day inside the range.
func (r DateRange) Contains(t time.Time) bool {
	day := truncateDay(t)
	return !day.Before(truncateDay(r.From)) && !day.After(truncateDay(r.To))
}

// Empty reports whether the range covers no days.
func (r DateRange) Empty() bool {
	return truncateDay(r.To).Before(truncateDay(r.From))
}

func (r DateRange) String() string {
	return r.From.Format(time.DateOnly) + ".." + r.To.Format(time.DateOnly)
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Credentials carries what an adapter needs to reach one integration.
type Credentials struct {
	IntegrationID string
	CompanyID     string
	SystemType    string
	BaseURL       string
	Path          string
	Token         string
	// RateLimit is the maximum requests per second, 0 for unlimited.
	RateLimit float64
}

// Adapter fetches raw activity records from one kind of external system.
//
// Implementations return an error when the system cannot be reached; they do
// not retry. An empty dataTypes slice means every type.
type Adapter interface {
	FetchActivityRecords(ctx context.Context, creds Credentials, dateRange DateRange, dataTypes []DataType) ([]RawRecord, error)
}

// AdapterRegistry maps system types to adapters.
type AdapterRegistry struct {
	mu       sync.RWMutex
	adapters map[string]Adapter
}

// NewAdapterRegistry returns an empty registry.
func NewAdapterRegistry() *AdapterRegistry {
	return &AdapterRegistry{adapters: make(map[string]Adapter)}
}

// Register adds or replaces the adapter for a system type.
func (r *AdapterRegistry) Register(systemType string, a Adapter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.adapters[strings.ToLower(systemType)] = a
}

// Get returns the adapter for a system type.
func (r *AdapterRegistry) Get(systemType string) (Adapter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.adapters[strings.ToLower(systemType)]
	if !ok {
		return nil, fmt.Errorf("no adapter registered for system type %q", systemType)
	}
	return a, nil
}

// SystemTypes lists registered system types in sorted order.
func (r *AdapterRegistry) SystemTypes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.adapters))
	for k := range r.adapters {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// wantType reports whether t passes a data type filter. An empty filter passes all.
func wantType(filter []DataType, t DataType) bool {
	return len(filter) == 0 || slices.Contains(filter, t)
}
