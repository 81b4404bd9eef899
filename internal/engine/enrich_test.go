package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rshade/ghgfocus/internal/factors"
	"github.com/rshade/ghgfocus/internal/ghg"
)

func TestEnrich(t *testing.T) {
	spend := pending(ghg.Scope1, ghg.CategoryStationaryCombustion, "5000", "USD", "2024-04-01")
	spend.SourceReference = "JE-1"
	diesel := pending(ghg.Scope1, ghg.CategoryMobileCombustion, "1000", "l", "2024-04-01")
	unknown := pending(ghg.Scope3, "franchises", "10", "USD", "2024-04-01")
	unknown.SourceReference = "JE-3"
	done := calculated(t, ghg.Scope1, ghg.CategoryMobileCombustion, "", "7", "2024-04-01").Record()

	input := []ghg.Record{spend, diesel, unknown, done}
	res := Enrich(context.Background(), input, factors.Default())

	require.Len(t, res.Records, 4)
	assert.Equal(t, 2, res.Enriched)

	assert.Equal(t, ghg.StatusCalculated, res.Records[0].Status)
	assert.True(t, dec("1.5").Equal(res.Records[0].TotalCO2e()), "5000 USD × 0.30 kg/USD, got %s", res.Records[0].TotalCO2e())
	assert.Equal(t, ghg.StatusCalculated, res.Records[1].Status)
	assert.True(t, dec("2.68787").Equal(res.Records[1].TotalCO2e()))
	assert.Equal(t, ghg.StatusPendingFactor, res.Records[2].Status)
	assert.True(t, dec("7").Equal(res.Records[3].TotalCO2e()), "calculated records pass through")

	require.Len(t, res.Issues, 1)
	assert.ErrorIs(t, res.Issues[0], ghg.ErrPendingFactor)
	assert.Contains(t, res.Issues[0].Error(), "JE-3")

	assert.Equal(t, ghg.StatusPendingFactor, input[0].Status, "input is not modified")
	assert.Nil(t, input[0].Calculation)

	for i := range res.Records {
		require.NoError(t, res.Records[i].Validate())
	}
}

type badUnitSource struct{}

func (badUnitSource) Lookup(*ghg.Record) (ghg.Factor, bool) {
	return ghg.Factor{Value: dec("1"), Unit: "kg_co2e_per_km", Source: "wrong"}, true
}

func TestEnrich_IncompatibleFactorStaysPending(t *testing.T) {
	rec := pending(ghg.Scope1, ghg.CategoryMobileCombustion, "10", "l", "2024-04-01")
	res := Enrich(context.Background(), []ghg.Record{rec}, badUnitSource{})

	assert.Zero(t, res.Enriched)
	require.Len(t, res.Issues, 1)
	assert.ErrorIs(t, res.Issues[0], ghg.ErrUnitConversion)
	assert.Equal(t, ghg.StatusPendingFactor, res.Records[0].Status)
}

func TestEnrich_ThenAggregate(t *testing.T) {
	spend := pending(ghg.Scope1, ghg.CategoryStationaryCombustion, "5000", "USD", "2024-04-01")

	before, _, err := AggregateRecords(context.Background(), []ghg.Record{spend}, year2024(), AggregateOptions{})
	require.NoError(t, err)
	assert.True(t, before.TotalScope1.IsZero())
	assert.Equal(t, 1, before.PendingCount)

	res := Enrich(context.Background(), []ghg.Record{spend}, factors.Default())
	after, left, err := AggregateRecords(context.Background(), res.Records, year2024(), AggregateOptions{})
	require.NoError(t, err)
	assert.Empty(t, left)
	assert.True(t, dec("1.5").Equal(after.TotalScope1))
	assert.Zero(t, after.PendingCount)
}
