package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rshade/ghgfocus/internal/ghg"
)

func TestAggregate_MarketBasedPrecedence(t *testing.T) {
	records := []ghg.CalculatedRecord{
		calculated(t, ghg.Scope2, ghg.CategoryPurchasedElectricity, ghg.MethodLocationBased, "100", "2024-03-01"),
		calculated(t, ghg.Scope2, ghg.CategoryPurchasedElectricity, ghg.MethodMarketBased, "60", "2024-03-01"),
		calculated(t, ghg.Scope1, ghg.CategoryStationaryCombustion, "", "40", "2024-03-01"),
	}

	inv, err := Aggregate(context.Background(), records, year2024(), AggregateOptions{})
	require.NoError(t, err)

	assert.True(t, dec("100").Equal(inv.TotalScope2LocationBased))
	assert.True(t, dec("60").Equal(inv.TotalScope2MarketBased))
	assert.Equal(t, ghg.MethodMarketBased, inv.Scope2Method)
	assert.True(t, dec("60").Equal(inv.PreferredScope2()))
	assert.True(t, dec("100").Equal(inv.GrandTotal()), "got %s", inv.GrandTotal())
	assert.Equal(t, 3, inv.RecordCount)
}

func TestAggregate_LocationFallback(t *testing.T) {
	records := []ghg.CalculatedRecord{
		calculated(t, ghg.Scope2, ghg.CategoryPurchasedElectricity, ghg.MethodLocationBased, "100", "2024-03-01"),
		calculated(t, ghg.Scope1, ghg.CategoryMobileCombustion, "", "40", "2024-03-01"),
	}
	inv, err := Aggregate(context.Background(), records, year2024(), AggregateOptions{})
	require.NoError(t, err)

	assert.Equal(t, ghg.MethodLocationBased, inv.Scope2Method)
	assert.True(t, dec("140").Equal(inv.GrandTotal()))
	assert.True(t, inv.TotalScope2MarketBased.IsZero())
}

func TestAggregate_Scope3Categories(t *testing.T) {
	records := []ghg.CalculatedRecord{
		calculated(t, ghg.Scope3, "cat1_purchased_goods_services", "", "10.005", "2024-02-01"),
		calculated(t, ghg.Scope3, "Purchased goods and services", "", "0.005", "2024-02-02"),
		calculated(t, ghg.Scope3, "business-travel", "", "3", "2024-05-01"),
		calculated(t, ghg.Scope3, "15", "", "1", "2024-05-01"),
	}
	inv, err := Aggregate(context.Background(), records, year2024(), AggregateOptions{})
	require.NoError(t, err)

	require.Len(t, inv.Scope3ByCategory, ghg.Scope3CategoryCount)
	for i, ct := range inv.Scope3ByCategory {
		assert.Equal(t, ghg.Scope3Category(i+1), ct.Category, "categories are in number order")
	}
	assert.True(t, dec("10.01").Equal(inv.Category(1).Total), "sums stay unrounded: %s", inv.Category(1).Total)
	assert.Equal(t, 2, inv.Category(1).RecordCount)
	assert.Equal(t, 1, inv.Category(6).RecordCount)
	assert.Equal(t, 0, inv.Category(2).RecordCount)
	assert.True(t, inv.Category(2).Total.IsZero())
	assert.True(t, dec("14.01").Equal(inv.TotalScope3))

	assert.Equal(t, 3, inv.CategoriesWithData())
	assert.InDelta(t, 3.0/15.0, inv.Completeness, 1e-9)
}

func TestAggregate_UnknownCategoryIsFatal(t *testing.T) {
	records := []ghg.CalculatedRecord{
		calculated(t, ghg.Scope3, "business_travel", "", "1", "2024-02-01"),
	}
	bad := pending(ghg.Scope3, "office_snacks", "1", "kwh", "2024-02-01")
	bad.SourceReference = "JE-77"
	require.NoError(t, bad.AttachFactor(ghg.Factor{Value: dec("1"), Unit: "t_co2e_per_kwh"}))
	c, err := bad.Calculated()
	require.NoError(t, err)
	records = append(records, c)

	inv, err := Aggregate(context.Background(), records, year2024(), AggregateOptions{})
	require.ErrorIs(t, err, ghg.ErrCategoryResolution)
	assert.Nil(t, inv)

	var catErr *ghg.CategoryResolutionError
	require.ErrorAs(t, err, &catErr)
	assert.Equal(t, "office_snacks", catErr.Category)
	assert.Equal(t, "JE-77", catErr.SourceReference)
}

func TestAggregate_EmptyInput(t *testing.T) {
	inv, err := Aggregate(context.Background(), nil, year2024(), AggregateOptions{
		Organization: ghg.OrganizationInfo{Name: "Acme"},
	})
	require.NoError(t, err)
	assert.Len(t, inv.Scope3ByCategory, ghg.Scope3CategoryCount)
	assert.True(t, inv.GrandTotal().IsZero())
	assert.Zero(t, inv.Completeness)
	assert.Zero(t, inv.DataQualityScore)
	assert.Equal(t, "Acme", inv.Organization.Name)
	assert.Equal(t, DefaultMethodology, inv.Methodology)
}

func TestAggregate_PeriodBounds(t *testing.T) {
	records := []ghg.CalculatedRecord{
		calculated(t, ghg.Scope1, ghg.CategoryStationaryCombustion, "", "1", "2023-12-31"),
		calculated(t, ghg.Scope1, ghg.CategoryStationaryCombustion, "", "2", "2024-01-01"),
		calculated(t, ghg.Scope1, ghg.CategoryStationaryCombustion, "", "4", "2024-12-31"),
		calculated(t, ghg.Scope1, ghg.CategoryStationaryCombustion, "", "8", "2025-01-01"),
	}
	inv, err := Aggregate(context.Background(), records, year2024(), AggregateOptions{})
	require.NoError(t, err)
	assert.True(t, dec("6").Equal(inv.TotalScope1))
	assert.Equal(t, 2, inv.RecordCount)

	_, err = Aggregate(context.Background(), records, ghg.Period{Start: date("2024-02-01"), End: date("2024-01-01")}, AggregateOptions{})
	require.ErrorIs(t, err, ghg.ErrInvalidRecord)
}

func TestAggregate_CrossPeriodRecord(t *testing.T) {
	bill := pending(ghg.Scope1, ghg.CategoryStationaryCombustion, "10", "kwh", "2023-12-15")
	bill.PeriodEnd = date("2024-01-14")
	require.NoError(t, bill.AttachFactor(ghg.Factor{Value: dec("1"), Unit: "t_co2e_per_kwh"}))
	calc, _ := ghg.SplitCalculated([]ghg.Record{bill})

	year2023 := ghg.Period{Start: date("2023-01-01"), End: date("2023-12-31")}
	prev, err := Aggregate(context.Background(), calc, year2023, AggregateOptions{})
	require.NoError(t, err)
	assert.True(t, dec("10").Equal(prev.TotalScope1))
	assert.Equal(t, 1, prev.RecordCount)
	assert.Equal(t, 1, prev.CrossPeriodCount)

	cur, err := Aggregate(context.Background(), calc, year2024(), AggregateOptions{})
	require.NoError(t, err)
	assert.True(t, cur.TotalScope1.IsZero(), "a record is counted in one period only")
	assert.Equal(t, 0, cur.RecordCount)
	assert.Equal(t, 0, cur.CrossPeriodCount)
}

func TestAggregate_DataQuality(t *testing.T) {
	a := pending(ghg.Scope1, ghg.CategoryStationaryCombustion, "1", "kwh", "2024-01-01")
	b := pending(ghg.Scope1, ghg.CategoryStationaryCombustion, "1", "kwh", "2024-01-01")
	b.DataQuality = ghg.QualityEstimated
	for _, r := range []*ghg.Record{&a, &b} {
		require.NoError(t, r.AttachFactor(ghg.Factor{Value: dec("1"), Unit: "t_co2e_per_kwh"}))
	}
	calc, stillPending := ghg.SplitCalculated([]ghg.Record{a, b})
	require.Empty(t, stillPending)

	inv, err := Aggregate(context.Background(), calc, year2024(), AggregateOptions{})
	require.NoError(t, err)
	assert.InDelta(t, 0.63, inv.DataQualityScore, 1e-9)
	assert.Equal(t, 1, inv.DataQuality[ghg.QualityMeasured])
	assert.Equal(t, 1, inv.DataQuality[ghg.QualityEstimated])
	assert.Equal(t, 2, inv.ScopeRecordCount[ghg.Scope1])
}

func TestAggregateRecords_ExcludesPending(t *testing.T) {
	spend := pending(ghg.Scope1, ghg.CategoryStationaryCombustion, "5000", "USD", "2024-04-01")
	burnt := pending(ghg.Scope1, ghg.CategoryStationaryCombustion, "40", "kwh", "2024-04-01")
	require.NoError(t, burnt.AttachFactor(ghg.Factor{Value: dec("1"), Unit: "t_co2e_per_kwh"}))

	inv, left, err := AggregateRecords(context.Background(), []ghg.Record{spend, burnt}, year2024(), AggregateOptions{})
	require.NoError(t, err)
	assert.True(t, dec("40").Equal(inv.TotalScope1), "pending spend record must not count")
	assert.Equal(t, 1, inv.PendingCount)
	require.Len(t, left, 1)
	assert.Equal(t, spend.ID, left[0].ID)
}

func TestYearOverYear(t *testing.T) {
	prevRecords := []ghg.CalculatedRecord{
		calculated(t, ghg.Scope1, ghg.CategoryStationaryCombustion, "", "50", "2023-06-01"),
		calculated(t, ghg.Scope2, ghg.CategoryPurchasedElectricity, ghg.MethodLocationBased, "100", "2023-06-01"),
	}
	prevPeriod := ghg.Period{Start: date("2023-01-01"), End: date("2023-12-31")}
	prev, err := Aggregate(context.Background(), prevRecords, prevPeriod, AggregateOptions{})
	require.NoError(t, err)

	curRecords := []ghg.CalculatedRecord{
		calculated(t, ghg.Scope1, ghg.CategoryStationaryCombustion, "", "40", "2024-06-01"),
		calculated(t, ghg.Scope2, ghg.CategoryPurchasedElectricity, ghg.MethodLocationBased, "125", "2024-06-01"),
		calculated(t, ghg.Scope3, "business_travel", "", "10", "2024-06-01"),
	}
	cur, err := Aggregate(context.Background(), curRecords, year2024(), AggregateOptions{Previous: prev})
	require.NoError(t, err)
	require.NotNil(t, cur.YearOverYear)

	yoy := cur.YearOverYear
	assert.Equal(t, prevPeriod, yoy.PreviousPeriod)
	assert.Equal(t, "-20.00%", yoy.Scope1Change.String())
	assert.Equal(t, "+25.00%", yoy.Scope2Change.String())
	assert.True(t, yoy.Scope3Change.Undefined, "zero previous value is undefined, not zero")
	assert.Equal(t, "+16.67%", yoy.TotalChange.String())
	assert.True(t, dec("150").Equal(yoy.Previous.Total))
}

func TestPercentChange(t *testing.T) {
	tests := []struct {
		name      string
		cur, prev string
		want      string
		undefined bool
	}{
		{name: "increase", cur: "150", prev: "100", want: "50"},
		{name: "decrease", cur: "75", prev: "100", want: "-25"},
		{name: "flat", cur: "100", prev: "100", want: "0"},
		{name: "zero previous", cur: "10", prev: "0", undefined: true},
		{name: "both zero", cur: "0", prev: "0", undefined: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := PercentChange(dec(tt.cur), dec(tt.prev))
			assert.Equal(t, tt.undefined, got.Undefined)
			if !tt.undefined {
				assert.True(t, dec(tt.want).Equal(got.Value), "got %s", got.Value)
			}
		})
	}
}

func BenchmarkAggregate(b *testing.B) {
	records := make([]ghg.CalculatedRecord, 0, 3000)
	for range 1000 {
		records = append(records,
			calculated(b, ghg.Scope1, ghg.CategoryStationaryCombustion, "", "1.5", "2024-03-01"),
			calculated(b, ghg.Scope2, ghg.CategoryPurchasedElectricity, ghg.MethodMarketBased, "2.25", "2024-03-01"),
			calculated(b, ghg.Scope3, "cat6_business_travel", "", "0.75", "2024-03-01"),
		)
	}
	for b.Loop() {
		_, _ = Aggregate(context.Background(), records, year2024(), AggregateOptions{})
	}
}
