package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rshade/ghgfocus/internal/ghg"
)

func TestGranularity(t *testing.T) {
	tests := []struct {
		in      string
		want    Granularity
		wantErr bool
	}{
		{in: "monthly", want: GranularityMonthly},
		{in: " Quarterly", want: GranularityQuarterly},
		{in: "YEARLY", want: GranularityYearly},
		{in: "weekly", wantErr: true},
		{in: "", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseGranularity(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.True(t, got.IsValid())
			assert.Equal(t, string(tt.want), got.String())
		})
	}
}

func TestSummaryByScope(t *testing.T) {
	records := []ghg.CalculatedRecord{
		calculated(t, ghg.Scope1, ghg.CategoryStationaryCombustion, "", "40", "2024-03-01"),
		calculated(t, ghg.Scope2, ghg.CategoryPurchasedElectricity, ghg.MethodLocationBased, "100", "2024-03-01"),
		calculated(t, ghg.Scope2, ghg.CategoryPurchasedElectricity, ghg.MethodMarketBased, "60", "2024-03-01"),
		calculated(t, ghg.Scope3, "waste", "", "5", "2024-03-01"),
	}
	inv, err := Aggregate(context.Background(), records, year2024(), AggregateOptions{})
	require.NoError(t, err)

	s := SummaryByScope(inv)
	assert.True(t, dec("40").Equal(s.Scope1))
	assert.True(t, dec("100").Equal(s.Scope2Location))
	assert.True(t, dec("60").Equal(s.Scope2Market))
	assert.True(t, dec("60").Equal(s.Scope2Preferred))
	assert.True(t, dec("5").Equal(s.Scope3))
	assert.True(t, inv.GrandTotal().Equal(s.Total))
	assert.Equal(t, ghg.MethodMarketBased, s.Scope2Method)
	assert.Equal(t, 4, s.RecordCount)
}

func TestTrend_Quarterly(t *testing.T) {
	records := []ghg.CalculatedRecord{
		calculated(t, ghg.Scope1, ghg.CategoryStationaryCombustion, "", "1", "2024-01-15"),
		calculated(t, ghg.Scope1, ghg.CategoryStationaryCombustion, "", "2", "2024-03-31"),
		calculated(t, ghg.Scope2, ghg.CategoryPurchasedElectricity, ghg.MethodMarketBased, "4", "2024-07-01"),
		calculated(t, ghg.Scope3, "business_travel", "", "8", "2024-12-31"),
		calculated(t, ghg.Scope1, ghg.CategoryStationaryCombustion, "", "100", "2025-01-01"),
	}

	points, err := Trend(context.Background(), records, year2024(), GranularityQuarterly)
	require.NoError(t, err)
	require.Len(t, points, 4)

	labels := make([]string, 0, len(points))
	for _, p := range points {
		labels = append(labels, p.Label)
	}
	assert.Equal(t, []string{"2024-Q1", "2024-Q2", "2024-Q3", "2024-Q4"}, labels)

	assert.True(t, dec("3").Equal(points[0].Totals.Total))
	assert.Equal(t, 2, points[0].RecordCount)
	assert.True(t, points[1].Totals.Total.IsZero())
	assert.True(t, dec("4").Equal(points[2].Totals.Scope2Market))
	assert.True(t, dec("8").Equal(points[3].Totals.Scope3))
	assert.Equal(t, date("2024-10-01"), points[3].Period.Start)
	assert.Equal(t, date("2024-12-31"), points[3].Period.End)

	// Bucket totals add up to the full-period inventory.
	inv, err := Aggregate(context.Background(), records, year2024(), AggregateOptions{})
	require.NoError(t, err)
	sum := dec("0")
	for _, p := range points {
		sum = sum.Add(p.Totals.Total)
	}
	assert.True(t, inv.GrandTotal().Equal(sum))
}

func TestTrend_MonthlyClipsPartialPeriod(t *testing.T) {
	period := ghg.Period{Start: date("2024-01-15"), End: date("2024-03-10")}
	points, err := Trend(context.Background(), nil, period, GranularityMonthly)
	require.NoError(t, err)
	require.Len(t, points, 3)
	assert.Equal(t, "2024-01", points[0].Label)
	assert.Equal(t, date("2024-01-15"), points[0].Period.Start)
	assert.Equal(t, date("2024-01-31"), points[0].Period.End)
	assert.Equal(t, date("2024-02-29"), points[1].Period.End)
	assert.Equal(t, date("2024-03-10"), points[2].Period.End)
}

func TestTrend_SpanningRecordStaysInStartBucket(t *testing.T) {
	rec := pending(ghg.Scope2, ghg.CategoryPurchasedElectricity, "3", "kwh", "2024-01-20")
	rec.PeriodEnd = date("2024-02-19")
	require.NoError(t, rec.AttachFactor(ghg.Factor{Value: dec("1"), Unit: "t_co2e_per_kwh"}))
	c, err := rec.Calculated()
	require.NoError(t, err)

	points, err := Trend(context.Background(), []ghg.CalculatedRecord{c}, year2024(), GranularityMonthly)
	require.NoError(t, err)
	require.Len(t, points, 12)
	assert.True(t, dec("3").Equal(points[0].Totals.Total))
	assert.True(t, points[1].Totals.Total.IsZero())
}

func TestTrend_Errors(t *testing.T) {
	_, err := Trend(context.Background(), nil, year2024(), "weekly")
	require.Error(t, err)

	bad := pending(ghg.Scope3, "not_a_category", "1", "kwh", "2024-05-05")
	require.NoError(t, bad.AttachFactor(ghg.Factor{Value: dec("1"), Unit: "t_co2e_per_kwh"}))
	c, cErr := bad.Calculated()
	require.NoError(t, cErr)
	_, err = Trend(context.Background(), []ghg.CalculatedRecord{c}, year2024(), GranularityYearly)
	require.ErrorIs(t, err, ghg.ErrCategoryResolution)
	assert.Contains(t, err.Error(), "2024")
}

func TestSources(t *testing.T) {
	a := calculated(t, ghg.Scope3, "cat6_business_travel", "", "1", "2024-05-01")
	b := calculated(t, ghg.Scope3, "Business travel", "", "2", "2024-02-01")
	c := calculated(t, ghg.Scope3, "waste", "", "3", "2024-03-01")
	d := calculated(t, ghg.Scope2, ghg.CategoryPurchasedElectricity, ghg.MethodMarketBased, "4", "2024-01-01")
	all := []ghg.CalculatedRecord{a, b, c, d}

	tests := []struct {
		name   string
		filter SourceFilter
		want   []ghg.CalculatedRecord
	}{
		{name: "no filter sorts by start", want: []ghg.CalculatedRecord{d, b, c, a}},
		{name: "scope", filter: SourceFilter{Scope: ghg.Scope3}, want: []ghg.CalculatedRecord{b, c, a}},
		{name: "category spellings", filter: SourceFilter{Scope: ghg.Scope3, Category: "business_travel"}, want: []ghg.CalculatedRecord{b, a}},
		{name: "method", filter: SourceFilter{Method: ghg.MethodMarketBased}, want: []ghg.CalculatedRecord{d}},
		{name: "date window", filter: SourceFilter{From: date("2024-02-01"), To: date("2024-03-31")}, want: []ghg.CalculatedRecord{b, c}},
		{name: "nothing", filter: SourceFilter{Scope: ghg.Scope1}, want: nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Sources(all, tt.filter)
			require.Len(t, got, len(tt.want))
			for i := range tt.want {
				assert.Equal(t, tt.want[i].ID(), got[i].ID())
			}
		})
	}
}

func TestTopSources(t *testing.T) {
	small := calculated(t, ghg.Scope1, ghg.CategoryMobileCombustion, "", "1", "2024-01-01")
	big := calculated(t, ghg.Scope1, ghg.CategoryMobileCombustion, "", "10", "2024-01-01")
	mid := calculated(t, ghg.Scope1, ghg.CategoryMobileCombustion, "", "5", "2024-01-01")

	top := TopSources([]ghg.CalculatedRecord{small, big, mid}, 2)
	require.Len(t, top, 2)
	assert.Equal(t, big.ID(), top[0].ID())
	assert.Equal(t, mid.ID(), top[1].ID())

	assert.Len(t, TopSources([]ghg.CalculatedRecord{small}, 5), 1)
}

func TestByFacility(t *testing.T) {
	mk := func(facility, tonnes string) ghg.CalculatedRecord {
		rec := pending(ghg.Scope1, ghg.CategoryStationaryCombustion, tonnes, "kwh", "2024-06-01")
		rec.Facility = facility
		require.NoError(t, rec.AttachFactor(ghg.Factor{Value: dec("1"), Unit: "t_co2e_per_kwh"}))
		c, err := rec.Calculated()
		require.NoError(t, err)
		return c
	}
	records := []ghg.CalculatedRecord{mk("Hamburg", "2"), mk("Austin", "5"), mk("", "1"), mk("Hamburg", "4")}

	got, err := ByFacility(context.Background(), records, year2024())
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "Hamburg", got[0].Facility)
	assert.True(t, dec("6").Equal(got[0].Totals.Total))
	assert.Equal(t, 2, got[0].RecordCount)
	assert.Equal(t, "Austin", got[1].Facility)
	assert.Equal(t, "unassigned", got[2].Facility)
}

func TestDataQualityBreakdown(t *testing.T) {
	inv := &ghg.AggregatedInventory{
		RecordCount: 4,
		DataQuality: map[ghg.DataQuality]int{ghg.QualityMeasured: 3, ghg.QualityEstimated: 1},
	}
	shares := DataQualityBreakdown(inv)
	require.Len(t, shares, len(ghg.AllDataQualities))
	assert.Equal(t, ghg.QualityMeasured, shares[0].Quality)
	assert.True(t, dec("75").Equal(shares[0].Percent))
	assert.True(t, dec("25").Equal(shares[3].Percent))
	assert.True(t, shares[1].Percent.IsZero())

	empty := DataQualityBreakdown(&ghg.AggregatedInventory{})
	assert.True(t, empty[0].Percent.IsZero())
}
