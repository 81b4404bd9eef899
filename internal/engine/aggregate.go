package engine

import (
	"context"
	"fmt"
	"math"

	"github.com/shopspring/decimal"

	"github.com/rshade/ghgfocus/internal/ghg"
	"github.com/rshade/ghgfocus/internal/logging"
)

// AggregateOptions carries the inventory fields that do not come from records.
type AggregateOptions struct {
	Organization ghg.OrganizationInfo
	Methodology  string
	// Previous enables the year-over-year comparison when set.
	Previous *ghg.AggregatedInventory
}

// DefaultMethodology describes how totals are derived.
const DefaultMethodology = "Emissions are calculated as activity data multiplied by emission factors " +
	"following the GHG Protocol Corporate Standard. Scope 2 is reported under both the location-based " +
	"and market-based methods; the market-based total is used in the grand total whenever " +
	"supplier-specific data exists for the period."

//nolint:gochecknoglobals // Constant multiplier.
var hundred = decimal.NewFromInt(100)

// Aggregate reduces calculated records into an inventory for period.
//
// A record belongs to the period holding its start date; records starting
// outside the period are skipped and records running past its end are counted
// in CrossPeriodCount. Scope 2 location-based and
// market-based sums are kept apart and the market-based total is preferred
// once any market-based record exists. Every scope 3 record must resolve to
// one of the 15 categories; the first that does not fails the whole call with
// a *ghg.CategoryResolutionError. Sums are never rounded.
func Aggregate(
	ctx context.Context,
	records []ghg.CalculatedRecord,
	period ghg.Period,
	opts AggregateOptions,
) (*ghg.AggregatedInventory, error) {
	logger := logging.FromContext(ctx).With().
		Str("component", "engine").
		Str("operation", "aggregate").
		Str("period", period.String()).
		Logger()

	if err := period.Validate(); err != nil {
		return nil, err
	}

	inv := &ghg.AggregatedInventory{
		Organization:             opts.Organization,
		Period:                   period,
		TotalScope1:              decimal.Zero,
		TotalScope2LocationBased: decimal.Zero,
		TotalScope2MarketBased:   decimal.Zero,
		TotalScope3:              decimal.Zero,
		Scope2Method:             ghg.MethodLocationBased,
		Scope3ByCategory:         emptyCategories(),
		Methodology:              opts.Methodology,
		DataQuality:              make(map[ghg.DataQuality]int),
		ScopeRecordCount:         make(map[ghg.Scope]int),
	}
	if inv.Methodology == "" {
		inv.Methodology = DefaultMethodology
	}

	skipped := 0
	qualityWeight := 0.0
	for _, r := range records {
		if !period.Attributes(r.PeriodStart()) {
			skipped++
			continue
		}
		if r.PeriodEnd().After(period.End) {
			inv.CrossPeriodCount++
		}
		total := r.TotalCO2e()

		switch r.Scope() {
		case ghg.Scope1:
			inv.TotalScope1 = inv.TotalScope1.Add(total)
		case ghg.Scope2:
			if r.Method() == ghg.MethodMarketBased {
				inv.TotalScope2MarketBased = inv.TotalScope2MarketBased.Add(total)
				inv.Scope2Method = ghg.MethodMarketBased
			} else {
				inv.TotalScope2LocationBased = inv.TotalScope2LocationBased.Add(total)
			}
		case ghg.Scope3:
			cat, err := ghg.ResolveScope3Category(r.Category())
			if err != nil {
				logger.Error().
					Str("category", r.Category()).
					Str("source_reference", r.SourceReference()).
					Msg("unresolvable scope 3 category")
				return nil, &ghg.CategoryResolutionError{Category: r.Category(), SourceReference: r.SourceReference()}
			}
			ct := &inv.Scope3ByCategory[cat-1]
			ct.Total = ct.Total.Add(total)
			ct.RecordCount++
			inv.TotalScope3 = inv.TotalScope3.Add(total)
		default:
			return nil, fmt.Errorf("%w: record %s has scope %d", ghg.ErrInvalidRecord, r.ID(), int(r.Scope()))
		}

		inv.RecordCount++
		inv.ScopeRecordCount[r.Scope()]++
		inv.DataQuality[r.DataQuality()]++
		qualityWeight += r.DataQuality().Weight()
	}

	if inv.RecordCount > 0 {
		inv.DataQualityScore = round2(qualityWeight / float64(inv.RecordCount))
	}
	inv.Completeness = float64(inv.CategoriesWithData()) / float64(ghg.Scope3CategoryCount)
	if opts.Previous != nil {
		inv.YearOverYear = CompareYearOverYear(inv, opts.Previous)
	}

	if inv.CrossPeriodCount > 0 {
		logger.Warn().
			Int("records", inv.CrossPeriodCount).
			Msg("records extend past the period end; counted in the period they start in")
	}
	logger.Debug().
		Int("records", inv.RecordCount).
		Int("skipped_outside_period", skipped).
		Str("scope2_method", string(inv.Scope2Method)).
		Str("grand_total", inv.GrandTotal().String()).
		Msg("inventory aggregated")
	return inv, nil
}

// AggregateRecords splits records by status, aggregates the calculated ones
// and reports how many were left out because they still await a factor.
func AggregateRecords(
	ctx context.Context,
	records []ghg.Record,
	period ghg.Period,
	opts AggregateOptions,
) (*ghg.AggregatedInventory, []ghg.Record, error) {
	calculated, pending := ghg.SplitCalculated(records)
	inv, err := Aggregate(ctx, calculated, period, opts)
	if err != nil {
		return nil, nil, err
	}
	for i := range pending {
		if period.Attributes(pending[i].PeriodStart) {
			inv.PendingCount++
		}
	}
	return inv, pending, nil
}

// CompareYearOverYear computes per-scope and total percentage changes of
// current against previous. A zero previous value gives an undefined change.
func CompareYearOverYear(current, previous *ghg.AggregatedInventory) *ghg.YearOverYear {
	prev := previous.Totals()
	return &ghg.YearOverYear{
		PreviousPeriod: previous.Period,
		Previous:       prev,
		Scope1Change:   PercentChange(current.TotalScope1, prev.Scope1),
		Scope2Change:   PercentChange(current.PreferredScope2(), prev.Scope2Preferred),
		Scope3Change:   PercentChange(current.TotalScope3, prev.Scope3),
		TotalChange:    PercentChange(current.GrandTotal(), prev.Total),
	}
}

// PercentChange returns (current - previous) / previous × 100.
func PercentChange(current, previous decimal.Decimal) ghg.PercentChange {
	if previous.IsZero() {
		return ghg.PercentChange{Undefined: true}
	}
	return ghg.PercentChange{Value: current.Sub(previous).Div(previous).Mul(hundred)}
}

func emptyCategories() []ghg.CategoryTotal {
	out := make([]ghg.CategoryTotal, 0, ghg.Scope3CategoryCount)
	for _, c := range ghg.AllScope3Categories() {
		out = append(out, ghg.CategoryTotal{Category: c, Total: decimal.Zero})
	}
	return out
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
