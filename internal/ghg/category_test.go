package ghg

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveScope3Category(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    Scope3Category
		wantErr bool
	}{
		{name: "canonical id", raw: "business_travel", want: CatBusinessTravel},
		{name: "display name", raw: "Business travel", want: CatBusinessTravel},
		{name: "cat prefix", raw: "cat6_business_travel", want: CatBusinessTravel},
		{name: "category prefix with separator", raw: "Category_1_Purchased goods and services", want: CatPurchasedGoods},
		{name: "labelled form", raw: "Category 6: Business travel", want: CatBusinessTravel},
		{name: "hyphenated", raw: "end-of-life-treatment", want: CatEndOfLifeTreatment},
		{name: "ampersand name", raw: "Purchased Goods & Services", want: CatPurchasedGoods},
		{name: "punctuated name", raw: "Fuel- and energy-related activities", want: CatFuelEnergyRelated},
		{name: "bare number", raw: "15", want: CatInvestments},
		{name: "bare prefix", raw: "cat4", want: CatUpstreamTransportation},
		{name: "alias", raw: "upstream_transport", want: CatUpstreamTransportation},
		{name: "uppercase id", raw: "EMPLOYEE_COMMUTING", want: CatEmployeeCommuting},
		{name: "unknown id", raw: "office_snacks", wantErr: true},
		{name: "other bucket is not a category", raw: "other", wantErr: true},
		{name: "number out of range", raw: "16", wantErr: true},
		{name: "prefix out of range", raw: "cat0_franchises", wantErr: true},
		{name: "prefix disagrees with name", raw: "cat3_business_travel", wantErr: true},
		{name: "empty", raw: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ResolveScope3Category(tt.raw)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrCategoryResolution)
				var cre *CategoryResolutionError
				require.True(t, errors.As(err, &cre))
				assert.Equal(t, tt.raw, cre.Category)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestScope3Category_Table(t *testing.T) {
	all := AllScope3Categories()
	require.Len(t, all, Scope3CategoryCount)

	seen := make(map[string]bool)
	for i, c := range all {
		assert.Equal(t, i+1, c.Number())
		assert.NotEmpty(t, c.ID())
		assert.False(t, seen[c.ID()], "duplicate id %s", c.ID())
		seen[c.ID()] = true

		// Every canonical id and name resolves back to itself.
		fromID, err := ResolveScope3Category(c.ID())
		require.NoError(t, err)
		assert.Equal(t, c, fromID)
		fromName, err := ResolveScope3Category(c.Name())
		require.NoError(t, err)
		assert.Equal(t, c, fromName)
	}

	assert.Equal(t, "Category 6: Business travel", CatBusinessTravel.String())
	assert.Equal(t, "Category 99", Scope3Category(99).Name())
	assert.Empty(t, Scope3Category(0).ID())
}
