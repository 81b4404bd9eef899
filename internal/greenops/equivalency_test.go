package greenops

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalculate(t *testing.T) {
	tests := []struct {
		name           string
		tonnes         string
		wantMiles      float64
		wantHomes      float64
		wantIsEmpty    bool
		wantErr        error
		displayContain string
	}{
		{
			name:           "150kg reference value",
			tonnes:         "0.15",
			wantMiles:      781.25, // 150 / 0.192
			wantHomes:      0.02005,
			displayContain: "driving ~781 miles",
		},
		{
			name:           "one thousand tonnes",
			tonnes:         "1000",
			wantMiles:      5208333.33,
			wantHomes:      133.69,
			displayContain: "~5.2 million miles",
		},
		{
			name:        "below threshold is empty",
			tonnes:      "0.0005",
			wantIsEmpty: true,
		},
		{
			name:        "zero is empty",
			tonnes:      "0",
			wantIsEmpty: true,
		},
		{
			name:        "negative rejected",
			tonnes:      "-1",
			wantIsEmpty: true,
			wantErr:     ErrNegativeValue,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := Calculate(decimal.RequireFromString(tt.tonnes))
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				assert.True(t, out.IsEmpty)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantIsEmpty, out.IsEmpty)
			if tt.wantIsEmpty {
				assert.Empty(t, out.Results)
				return
			}

			require.Len(t, out.Results, 3)
			assert.InEpsilon(t, tt.wantMiles, out.Results[0].Value, 0.01)
			assert.InEpsilon(t, tt.wantHomes, out.Results[1].Value, 0.01)
			assert.Equal(t, EquivalencyMilesDriven, out.Results[0].Type)
			assert.Contains(t, out.DisplayText, tt.displayContain)
		})
	}
}

func TestEquivalencyType_String(t *testing.T) {
	assert.Equal(t, "MilesDriven", EquivalencyMilesDriven.String())
	assert.Equal(t, "HomesPowered", EquivalencyHomesPowered.String())
	assert.Equal(t, "TreeSeedlings", EquivalencyTreeSeedlings.String())
	assert.Equal(t, "EquivalencyType(99)", EquivalencyType(99).String())
}

func BenchmarkCalculate(b *testing.B) {
	d := decimal.RequireFromString("1234.5")
	for b.Loop() {
		_, _ = Calculate(d)
	}
}
