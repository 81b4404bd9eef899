package tags

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

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

// record builds a calculated record whose total is tonnes.
func record(tb testing.TB, scope ghg.Scope, category string, method ghg.CalculationMethod, tonnes, on string) ghg.CalculatedRecord {
	tb.Helper()
	rec := ghg.Record{
		ID:                ghg.NewID(),
		Scope:             scope,
		Category:          category,
		CalculationMethod: method,
		ActivityAmount:    dec(tonnes),
		ActivityUnit:      "kwh",
		PeriodStart:       day(on),
		PeriodEnd:         day(on),
		DataQuality:       ghg.QualityMeasured,
		Provenance:        ghg.ProvenanceERPSync,
		Status:            ghg.StatusPendingFactor,
	}
	require.NoError(tb, rec.AttachFactor(ghg.Factor{Value: decimal.NewFromInt(1), Unit: "t_co2e_per_kwh", Source: "test"}))
	c, err := rec.Calculated()
	require.NoError(tb, err)
	return c
}

var testOrg = ghg.OrganizationInfo{
	Name:               "Acme & Co",
	RegistrationID:     "529900T8BM49AURSDO55",
	RegistrationScheme: "LEI",
}

// inventory aggregates 2024 with a market-based scope 2 and two scope 3
// categories, one of them split over two records.
func inventory(tb testing.TB, withPrevious bool) *ghg.AggregatedInventory {
	tb.Helper()
	ctx := context.Background()
	opts := engine.AggregateOptions{Organization: testOrg}
	if withPrevious {
		prev, err := engine.Aggregate(ctx, []ghg.CalculatedRecord{
			record(tb, ghg.Scope1, ghg.CategoryStationaryCombustion, "", "50", "2023-02-01"),
			record(tb, ghg.Scope3, "business_travel", "", "10", "2023-05-01"),
		}, period("2023"), engine.AggregateOptions{Organization: testOrg})
		require.NoError(tb, err)
		opts.Previous = prev
	}
	inv, err := engine.Aggregate(ctx, []ghg.CalculatedRecord{
		record(tb, ghg.Scope1, ghg.CategoryStationaryCombustion, "", "40", "2024-02-01"),
		record(tb, ghg.Scope2, ghg.CategoryPurchasedElectricity, ghg.MethodLocationBased, "100", "2024-03-01"),
		record(tb, ghg.Scope2, ghg.CategoryPurchasedElectricity, ghg.MethodMarketBased, "60", "2024-03-01"),
		record(tb, ghg.Scope3, "business_travel", "", "9.5", "2024-03-01"),
		record(tb, ghg.Scope3, "cat6_business_travel", "", "3", "2024-06-01"),
		record(tb, ghg.Scope3, "purchased_goods_services", "", "7.255", "2024-04-01"),
	}, period("2024"), opts)
	require.NoError(tb, err)
	return inv
}

func render(tb testing.TB, withPrevious bool, opts Options) *Document {
	tb.Helper()
	doc, err := Render(context.Background(), inventory(tb, withPrevious), opts)
	require.NoError(tb, err)
	return doc
}
