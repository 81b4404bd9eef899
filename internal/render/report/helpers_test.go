package report

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/rshade/ghgfocus/internal/engine"
	"github.com/rshade/ghgfocus/internal/ghg"
)

func day(s string) time.Time {
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		panic(err)
	}
	return t
}

func period(year string) ghg.Period {
	return ghg.Period{Start: day(year + "-01-01"), End: day(year + "-12-31")}
}

// record builds a calculated record whose total is tonnes.
func record(tb testing.TB, scope ghg.Scope, category string, tonnes, on string) ghg.CalculatedRecord {
	tb.Helper()
	rec := ghg.Record{
		ID:             ghg.NewID(),
		Scope:          scope,
		Category:       category,
		ActivityAmount: decimal.RequireFromString(tonnes),
		ActivityUnit:   "kwh",
		PeriodStart:    day(on),
		PeriodEnd:      day(on),
		DataQuality:    ghg.QualityMeasured,
		Provenance:     ghg.ProvenanceManual,
		Status:         ghg.StatusPendingFactor,
	}
	if scope == ghg.Scope2 {
		rec.CalculationMethod = ghg.MethodLocationBased
	}
	require.NoError(tb, rec.AttachFactor(ghg.Factor{Value: decimal.NewFromInt(1), Unit: "t_co2e_per_kwh", Source: "test"}))
	c, err := rec.Calculated()
	require.NoError(tb, err)
	return c
}

var testOrg = ghg.OrganizationInfo{
	Name:               "Acme <Industrial> & Co",
	RegistrationID:     "529900T8BM49AURSDO55",
	RegistrationScheme: "LEI",
}

// inventory aggregates a small 2024 inventory, optionally with a 2023 comparison.
func inventory(tb testing.TB, withPrevious bool) *ghg.AggregatedInventory {
	tb.Helper()
	ctx := context.Background()
	opts := engine.AggregateOptions{Organization: testOrg}
	if withPrevious {
		prev, err := engine.Aggregate(ctx, []ghg.CalculatedRecord{
			record(tb, ghg.Scope1, ghg.CategoryStationaryCombustion, "50", "2023-02-01"),
			record(tb, ghg.Scope3, "business_travel", "10", "2023-05-01"),
		}, period("2023"), engine.AggregateOptions{Organization: testOrg})
		require.NoError(tb, err)
		opts.Previous = prev
	}
	inv, err := engine.Aggregate(ctx, []ghg.CalculatedRecord{
		record(tb, ghg.Scope1, ghg.CategoryStationaryCombustion, "40", "2024-02-01"),
		record(tb, ghg.Scope2, ghg.CategoryPurchasedElectricity, "10", "2024-03-01"),
		record(tb, ghg.Scope3, "business_travel", "12.5", "2024-03-01"),
		record(tb, ghg.Scope3, "purchased_goods_services", "7.25", "2024-04-01"),
	}, period("2024"), opts)
	require.NoError(tb, err)
	return inv
}

func nestedSections() []Section {
	return []Section{
		{
			Title:   "Organizational Boundary",
			Content: "We use the **operational control** approach.\n\n- Plants\n- Offices",
			Subsections: []Section{
				{Title: "Facilities", Content: "Three plants.", Subsections: []Section{
					{Title: "Leased sites", Subsections: []Section{{Title: "Warehouses", Content: "Two."}}},
				}},
				{Title: "Exclusions", Content: "None."},
			},
		},
		{Title: "Targets", Content: "# Near term\n\nReduce scope 1 by 40%."},
		{Title: "Assurance", Content: "Limited assurance was obtained."},
	}
}

// findTable returns the first table whose caption starts with prefix.
func findTable(doc *Document, prefix string) *Table {
	for _, p := range doc.Pages {
		for _, b := range p.Blocks {
			if b.Kind == BlockTable && len(b.Table.Caption) >= len(prefix) && b.Table.Caption[:len(prefix)] == prefix {
				return b.Table
			}
		}
	}
	return nil
}

func emptyInventory() (*ghg.AggregatedInventory, error) {
	return engine.Aggregate(context.Background(), nil, period("2024"), engine.AggregateOptions{Organization: testOrg})
}
