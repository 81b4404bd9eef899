package ghg

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Period is an inclusive reporting date range.
type Period struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Validate rejects zero or inverted periods.
func (p Period) Validate() error {
	if p.Start.IsZero() || p.End.IsZero() {
		return fmt.Errorf("%w: reporting period needs start and end", ErrInvalidRecord)
	}
	if p.End.Before(p.Start) {
		return fmt.Errorf("%w: reporting period ends before it starts", ErrInvalidRecord)
	}
	return nil
}

// Attributes reports whether a record starting at start belongs to the
// period. A record is attributed to the one period holding its start date, so
// a bill that runs across the period end is counted once, in the period it
// starts in.
func (p Period) Attributes(start time.Time) bool {
	return !start.Before(p.Start) && !start.After(p.End)
}

// Overlaps reports whether [start, end] shares at least one day with the period.
func (p Period) Overlaps(start, end time.Time) bool {
	return !end.Before(p.Start) && !start.After(p.End)
}

// Year returns the year the period ends in, used as the fiscal year label.
func (p Period) Year() int {
	return p.End.Year()
}

// String renders "2024-01-01 to 2024-12-31".
func (p Period) String() string {
	return p.Start.Format(time.DateOnly) + " to " + p.End.Format(time.DateOnly)
}

// OrganizationInfo identifies the reporting entity.
type OrganizationInfo struct {
	Name               string `json:"name" yaml:"name"`
	RegistrationID     string `json:"registration_id" yaml:"registration_id"`
	RegistrationScheme string `json:"registration_scheme" yaml:"registration_scheme"`
	Country            string `json:"country,omitempty" yaml:"country"`
	Industry           string `json:"industry,omitempty" yaml:"industry"`
}

// CategoryTotal is one scope 3 category subtotal.
type CategoryTotal struct {
	Category    Scope3Category  `json:"category"`
	Total       decimal.Decimal `json:"total"`
	RecordCount int             `json:"record_count"`
}

// HasData reports whether at least one record fell into the category.
func (c CategoryTotal) HasData() bool { return c.RecordCount > 0 }

// ScopeTotals is the per-scope slice of an inventory used for comparisons.
type ScopeTotals struct {
	Scope1          decimal.Decimal `json:"scope1"`
	Scope2Location  decimal.Decimal `json:"scope2_location_based"`
	Scope2Market    decimal.Decimal `json:"scope2_market_based"`
	Scope2Preferred decimal.Decimal `json:"scope2_preferred"`
	Scope3          decimal.Decimal `json:"scope3"`
	Total           decimal.Decimal `json:"total"`
}

// PercentChange is a year-over-year delta. Undefined is set when the previous
// value was zero, which has no meaningful percentage.
type PercentChange struct {
	Value     decimal.Decimal
	Undefined bool
}

// String renders the change as "+12.50%" or "undefined".
func (c PercentChange) String() string {
	if c.Undefined {
		return "undefined"
	}
	s := c.Value.StringFixed(2) + "%"
	if c.Value.Round(2).IsPositive() {
		s = "+" + s
	}
	return s
}

// MarshalJSON encodes defined changes as numbers and undefined ones as the string "undefined".
func (c PercentChange) MarshalJSON() ([]byte, error) {
	if c.Undefined {
		return json.Marshal("undefined")
	}
	return []byte(c.Value.String()), nil
}

// UnmarshalJSON reverses MarshalJSON.
func (c *PercentChange) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		if s != "undefined" {
			return fmt.Errorf("invalid percent change %q", s)
		}
		*c = PercentChange{Undefined: true}
		return nil
	}
	var d decimal.Decimal
	if err := d.UnmarshalJSON(data); err != nil {
		return err
	}
	*c = PercentChange{Value: d}
	return nil
}

// YearOverYear compares the inventory with a prior period.
type YearOverYear struct {
	PreviousPeriod Period        `json:"previous_period"`
	Previous       ScopeTotals   `json:"previous"`
	Scope1Change   PercentChange `json:"scope1_change"`
	Scope2Change   PercentChange `json:"scope2_change"`
	Scope3Change   PercentChange `json:"scope3_change"`
	TotalChange    PercentChange `json:"total_change"`
}

// AggregatedInventory is the reduced view every renderer consumes.
//
// Totals are unrounded; rounding happens only at presentation. GrandTotal is a
// method so it can never drift from its components.
type AggregatedInventory struct {
	Organization             OrganizationInfo `json:"organization"`
	Period                   Period           `json:"reporting_period"`
	TotalScope1              decimal.Decimal  `json:"total_scope1"`
	TotalScope2LocationBased decimal.Decimal  `json:"total_scope2_location_based"`
	TotalScope2MarketBased   decimal.Decimal  `json:"total_scope2_market_based"`
	// Scope2Method is the method whose total is preferred in the grand total.
	Scope2Method     CalculationMethod   `json:"scope2_method"`
	TotalScope3      decimal.Decimal     `json:"total_scope3"`
	Scope3ByCategory []CategoryTotal     `json:"scope3_by_category"`
	YearOverYear     *YearOverYear       `json:"year_over_year,omitempty"`
	Methodology      string              `json:"methodology,omitempty"`
	DataQualityScore float64             `json:"data_quality_score"`
	DataQuality      map[DataQuality]int `json:"data_quality_breakdown,omitempty"`
	Completeness     float64             `json:"completeness"`
	RecordCount      int                 `json:"record_count"`
	// PendingCount is the number of records left out because they still await a factor.
	PendingCount int `json:"pending_count"`
	// CrossPeriodCount is the number of counted records whose activity runs past the period end.
	CrossPeriodCount int           `json:"cross_period_count,omitempty"`
	ScopeRecordCount map[Scope]int `json:"scope_record_count,omitempty"`
}

// PreferredScope2 returns the market-based total when market-based data was
// selected, else the location-based total.
func (inv *AggregatedInventory) PreferredScope2() decimal.Decimal {
	if inv.Scope2Method == MethodMarketBased {
		return inv.TotalScope2MarketBased
	}
	return inv.TotalScope2LocationBased
}

// GrandTotal is scope 1 + preferred scope 2 + scope 3.
func (inv *AggregatedInventory) GrandTotal() decimal.Decimal {
	return inv.TotalScope1.Add(inv.PreferredScope2()).Add(inv.TotalScope3)
}

// Totals snapshots the per-scope totals.
func (inv *AggregatedInventory) Totals() ScopeTotals {
	return ScopeTotals{
		Scope1:          inv.TotalScope1,
		Scope2Location:  inv.TotalScope2LocationBased,
		Scope2Market:    inv.TotalScope2MarketBased,
		Scope2Preferred: inv.PreferredScope2(),
		Scope3:          inv.TotalScope3,
		Total:           inv.GrandTotal(),
	}
}

// Category returns the subtotal for one scope 3 category.
func (inv *AggregatedInventory) Category(c Scope3Category) CategoryTotal {
	if c.Valid() && len(inv.Scope3ByCategory) == Scope3CategoryCount {
		return inv.Scope3ByCategory[c-1]
	}
	return CategoryTotal{Category: c, Total: decimal.Zero}
}

// CategoriesWithData counts scope 3 categories holding at least one record.
func (inv *AggregatedInventory) CategoriesWithData() int {
	n := 0
	for _, c := range inv.Scope3ByCategory {
		if c.HasData() {
			n++
		}
	}
	return n
}
