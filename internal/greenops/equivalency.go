package greenops

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"
)

// EquivalencyType represents a category of carbon emission equivalency.
type EquivalencyType int

const (
	// EquivalencyMilesDriven converts CO2e to miles driven in an average passenger vehicle.
	EquivalencyMilesDriven EquivalencyType = iota

	// EquivalencyHomesPowered converts CO2e to years of average US home energy use.
	EquivalencyHomesPowered

	// EquivalencyTreeSeedlings converts CO2e to tree seedlings grown for 10 years.
	EquivalencyTreeSeedlings
)

// String returns a human-readable representation of the EquivalencyType.
func (e EquivalencyType) String() string {
	switch e {
	case EquivalencyMilesDriven:
		return "MilesDriven"
	case EquivalencyHomesPowered:
		return "HomesPowered"
	case EquivalencyTreeSeedlings:
		return "TreeSeedlings"
	default:
		return fmt.Sprintf("EquivalencyType(%d)", e)
	}
}

// EquivalencyResult represents a single calculated equivalency.
type EquivalencyResult struct {
	Type           EquivalencyType `json:"type"`
	Value          float64         `json:"value"`
	FormattedValue string          `json:"formatted_value"`
	Label          string          `json:"label"`
}

// EquivalencyOutput contains all equivalency results for display.
type EquivalencyOutput struct {
	// InputKg is the normalized input value in kilograms CO2e.
	InputKg float64 `json:"input_kg"`

	// Results contains calculated equivalencies in priority order.
	Results []EquivalencyResult `json:"results"`

	// DisplayText is the prose sentence used in report summaries.
	// Example: "Equivalent to driving ~781 miles or powering ~1 homes for a year"
	DisplayText string `json:"display_text"`

	// IsEmpty is true if no equivalencies were calculated.
	IsEmpty bool `json:"is_empty"`
}

// Calculate converts a metric-ton CO2e total into EPA-based equivalencies.
//
// Totals below MinEquivalencyThresholdKg produce an empty output with no error.
// Negative totals return ErrNegativeValue and non-finite intermediate values
// return ErrCalculationOverflow.
func Calculate(tonnes decimal.Decimal) (EquivalencyOutput, error) {
	kgDec, err := NormalizeToKg(tonnes, "t")
	if err != nil {
		return EquivalencyOutput{IsEmpty: true}, err
	}
	kg := kgDec.InexactFloat64()

	if kg < MinEquivalencyThresholdKg {
		return EquivalencyOutput{InputKg: kg, IsEmpty: true}, nil
	}

	miles := kg / EPAMilesDrivenFactor
	homes := kg / EPAHomeYearFactor
	trees := kg / EPATreeSeedlingFactor
	for _, v := range []float64{miles, homes, trees} {
		if math.IsInf(v, 0) || math.IsNaN(v) {
			return EquivalencyOutput{IsEmpty: true}, ErrCalculationOverflow
		}
	}

	results := []EquivalencyResult{
		{Type: EquivalencyMilesDriven, Value: miles, FormattedValue: formatEquivalencyValue(miles), Label: "miles driven"},
		{Type: EquivalencyHomesPowered, Value: homes, FormattedValue: formatEquivalencyValue(homes), Label: "homes powered for a year"},
		{Type: EquivalencyTreeSeedlings, Value: trees, FormattedValue: formatEquivalencyValue(trees), Label: "tree seedlings grown for 10 years"},
	}

	return EquivalencyOutput{
		InputKg: kg,
		Results: results,
		DisplayText: fmt.Sprintf("Equivalent to driving ~%s miles or powering ~%s homes for a year",
			results[0].FormattedValue, results[1].FormattedValue),
		IsEmpty: false,
	}, nil
}

// formatEquivalencyValue uses large number scaling for million/billion values,
// otherwise a comma-separated integer.
func formatEquivalencyValue(v float64) string {
	if v >= LargeNumberThreshold {
		return FormatLarge(v)
	}
	return FormatNumber(int64(math.Round(v)))
}
