package greenops

import "github.com/shopspring/decimal"

// EPA Formula Constants (2024 Edition)
// Source: https://www.epa.gov/energy/greenhouse-gas-equivalencies-calculator
//
// These constants represent the kg CO2e equivalent for each activity.
// To calculate the equivalency, divide the carbon value by the factor:
//
//	equivalency = kg_CO2e / factor
const (
	// EPAMilesDrivenFactor is kg CO2e per mile for average passenger vehicle.
	EPAMilesDrivenFactor = 0.192

	// EPAHomeYearFactor is kg CO2e per year of average US home energy use.
	EPAHomeYearFactor = 7480.0

	// EPATreeSeedlingFactor is kg CO2e absorbed per tree seedling over 10 years.
	EPATreeSeedlingFactor = 60.0
)

// Activity conversion factors. Each dimension has one base unit
// (kg for mass, kWh for energy, liters for volume, km for distance).
//
//nolint:gochecknoglobals // Decimal constants cannot be declared const.
var (
	GramsToKg       = decimal.RequireFromString("0.001")
	TonnesToKg      = decimal.NewFromInt(1000)
	PoundsToKg      = decimal.RequireFromString("0.453592")
	KgToTonnes      = decimal.RequireFromString("0.001")
	WhToKWh         = decimal.RequireFromString("0.001")
	MWhToKWh        = decimal.NewFromInt(1000)
	GWhToKWh        = decimal.NewFromInt(1_000_000)
	BtuToKWh        = decimal.RequireFromString("0.000293071")
	MMBtuToKWh      = decimal.RequireFromString("293.071")
	ThermToKWh      = decimal.RequireFromString("29.3071")
	GJToKWh         = decimal.RequireFromString("277.778")
	MJToKWh         = decimal.RequireFromString("0.277778")
	GallonsToLiters = decimal.RequireFromString("3.78541")
	CubicMToLiters  = decimal.NewFromInt(1000)
	MilesToKm       = decimal.RequireFromString("1.60934")
	MetersToKm      = decimal.RequireFromString("0.001")
)

// Display Threshold Constants control when equivalencies are shown.
const (
	// MinEquivalencyThresholdKg is the minimum kg CO2e for showing equivalencies.
	// Below this threshold the equivalencies become meaninglessly small.
	MinEquivalencyThresholdKg = 1.0

	// LargeNumberThreshold is the threshold for using abbreviated display.
	// Values at or above this threshold use "~X.X million" format.
	LargeNumberThreshold = 1_000_000

	// BillionThreshold is the threshold for billion-scale display.
	BillionThreshold = 1_000_000_000
)
