// Package greenops holds the unit arithmetic behind emission calculations.
//
// It converts activity quantities (energy, fuel volume, distance, mass) between
// units of the same dimension, normalizes carbon masses to kilograms and metric
// tons, parses emission factor units such as "kg_co2e_per_kwh", and turns totals
// into relatable EPA equivalencies for report prose.
package greenops

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Dimension is the physical quantity a unit measures.
type Dimension int

const (
	// DimensionUnknown is returned for units not in the unit table.
	DimensionUnknown Dimension = iota
	// DimensionMass is measured in kilograms.
	DimensionMass
	// DimensionEnergy is measured in kilowatt hours.
	DimensionEnergy
	// DimensionVolume is measured in liters.
	DimensionVolume
	// DimensionDistance is measured in kilometers.
	DimensionDistance
	// DimensionCurrency marks monetary amounts. Currencies never convert into each other.
	DimensionCurrency
)

// String returns a human-readable representation of the Dimension.
func (d Dimension) String() string {
	switch d {
	case DimensionMass:
		return "mass"
	case DimensionEnergy:
		return "energy"
	case DimensionVolume:
		return "volume"
	case DimensionDistance:
		return "distance"
	case DimensionCurrency:
		return "currency"
	case DimensionUnknown:
		return "unknown"
	default:
		return fmt.Sprintf("Dimension(%d)", d)
	}
}

type unitDef struct {
	dimension Dimension
	toBase    decimal.Decimal
}

// unitTable maps normalized unit spellings to their dimension and base-unit factor.
//
//nolint:gochecknoglobals // Read-only lookup table.
var unitTable = map[string]unitDef{
	"g":       {DimensionMass, GramsToKg},
	"kg":      {DimensionMass, decimal.NewFromInt(1)},
	"t":       {DimensionMass, TonnesToKg},
	"tonne":   {DimensionMass, TonnesToKg},
	"tonnes":  {DimensionMass, TonnesToKg},
	"mt":      {DimensionMass, TonnesToKg},
	"ton":     {DimensionMass, TonnesToKg},
	"tons":    {DimensionMass, TonnesToKg},
	"lb":      {DimensionMass, PoundsToKg},
	"lbs":     {DimensionMass, PoundsToKg},
	"wh":      {DimensionEnergy, WhToKWh},
	"kwh":     {DimensionEnergy, decimal.NewFromInt(1)},
	"mwh":     {DimensionEnergy, MWhToKWh},
	"gwh":     {DimensionEnergy, GWhToKWh},
	"btu":     {DimensionEnergy, BtuToKWh},
	"mmbtu":   {DimensionEnergy, MMBtuToKWh},
	"therm":   {DimensionEnergy, ThermToKWh},
	"therms":  {DimensionEnergy, ThermToKWh},
	"gj":      {DimensionEnergy, GJToKWh},
	"mj":      {DimensionEnergy, MJToKWh},
	"l":       {DimensionVolume, decimal.NewFromInt(1)},
	"liter":   {DimensionVolume, decimal.NewFromInt(1)},
	"liters":  {DimensionVolume, decimal.NewFromInt(1)},
	"litre":   {DimensionVolume, decimal.NewFromInt(1)},
	"litres":  {DimensionVolume, decimal.NewFromInt(1)},
	"gal":     {DimensionVolume, GallonsToLiters},
	"gallon":  {DimensionVolume, GallonsToLiters},
	"gallons": {DimensionVolume, GallonsToLiters},
	"m3":      {DimensionVolume, CubicMToLiters},
	"km":      {DimensionDistance, decimal.NewFromInt(1)},
	"m":       {DimensionDistance, MetersToKm},
	"mi":      {DimensionDistance, MilesToKm},
	"mile":    {DimensionDistance, MilesToKm},
	"miles":   {DimensionDistance, MilesToKm},
	"usd":     {DimensionCurrency, decimal.NewFromInt(1)},
	"eur":     {DimensionCurrency, decimal.NewFromInt(1)},
	"gbp":     {DimensionCurrency, decimal.NewFromInt(1)},
	"jpy":     {DimensionCurrency, decimal.NewFromInt(1)},
	"cad":     {DimensionCurrency, decimal.NewFromInt(1)},
	"aud":     {DimensionCurrency, decimal.NewFromInt(1)},
	"chf":     {DimensionCurrency, decimal.NewFromInt(1)},
	"cny":     {DimensionCurrency, decimal.NewFromInt(1)},
	"inr":     {DimensionCurrency, decimal.NewFromInt(1)},
	"sgd":     {DimensionCurrency, decimal.NewFromInt(1)},
}

// NormalizeUnit lowercases a unit and strips whitespace and a trailing CO2e
// marker so that "kWh", " KWH " and "kgCO2e" resolve to table keys.
func NormalizeUnit(unit string) string {
	u := strings.ToLower(strings.TrimSpace(unit))
	u = strings.ReplaceAll(u, " ", "")
	u = strings.TrimSuffix(u, "co2e")
	u = strings.TrimSuffix(u, "_")
	return u
}

func lookupUnit(unit string) (unitDef, bool) {
	def, ok := unitTable[NormalizeUnit(unit)]
	return def, ok
}

// DimensionOf returns the dimension of a unit, or DimensionUnknown.
func DimensionOf(unit string) Dimension {
	def, ok := lookupUnit(unit)
	if !ok {
		return DimensionUnknown
	}
	return def.dimension
}

// IsCurrency reports whether the unit is a monetary unit.
// Records measured in currency are spend-based and need a factor lookup.
func IsCurrency(unit string) bool {
	return DimensionOf(unit) == DimensionCurrency
}

// SameUnit reports whether two unit spellings name the same unit.
func SameUnit(a, b string) bool {
	return NormalizeUnit(a) == NormalizeUnit(b)
}

// Convert converts value from one unit to another of the same dimension.
//
// Identical spellings short-circuit, so unknown-but-equal units pass through.
// Returns ErrNegativeValue for negative values, ErrInvalidUnit for units
// missing from the table and ErrIncompatibleUnits across dimensions or
// between two different currencies.
func Convert(value decimal.Decimal, from, to string) (decimal.Decimal, error) {
	if value.IsNegative() {
		return decimal.Zero, ErrNegativeValue
	}
	if SameUnit(from, to) {
		return value, nil
	}

	fromDef, ok := lookupUnit(from)
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrInvalidUnit, from)
	}
	toDef, ok := lookupUnit(to)
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrInvalidUnit, to)
	}
	if fromDef.dimension != toDef.dimension || fromDef.dimension == DimensionCurrency {
		return decimal.Zero, fmt.Errorf("%w: %s (%s) to %s (%s)",
			ErrIncompatibleUnits, from, fromDef.dimension, to, toDef.dimension)
	}

	return value.Mul(fromDef.toBase).Div(toDef.toBase), nil
}

// NormalizeToKg converts a carbon mass in any recognized mass unit to kilograms.
// Unit matching is case-insensitive and ignores a CO2e suffix.
func NormalizeToKg(value decimal.Decimal, unit string) (decimal.Decimal, error) {
	if value.IsNegative() {
		return decimal.Zero, ErrNegativeValue
	}
	def, ok := lookupUnit(unit)
	if !ok || def.dimension != DimensionMass {
		return decimal.Zero, fmt.Errorf("%w: %q is not a mass unit", ErrInvalidUnit, unit)
	}
	return value.Mul(def.toBase), nil
}

// NormalizeToTonnes converts a carbon mass to metric tons.
func NormalizeToTonnes(value decimal.Decimal, unit string) (decimal.Decimal, error) {
	kg, err := NormalizeToKg(value, unit)
	if err != nil {
		return decimal.Zero, err
	}
	return kg.Mul(KgToTonnes), nil
}

// FactorUnit is a parsed emission factor unit: a CO2e mass per activity unit.
type FactorUnit struct {
	// MassUnit is the numerator, e.g. "kg".
	MassUnit string
	// ActivityUnit is the denominator, e.g. "kwh".
	ActivityUnit string
}

// String renders the unit in the canonical "kg_co2e_per_kwh" form.
func (f FactorUnit) String() string {
	return f.MassUnit + "_co2e_per_" + f.ActivityUnit
}

// ParseFactorUnit parses emission factor units written as "kg_co2e_per_kwh",
// "kgCO2e/kWh" or "kg CO2e per kWh".
func ParseFactorUnit(unit string) (FactorUnit, error) {
	u := strings.ToLower(strings.TrimSpace(unit))
	var num, den string
	switch {
	case strings.Contains(u, "/"):
		num, den, _ = strings.Cut(u, "/")
	case strings.Contains(u, "_per_"):
		num, den, _ = strings.Cut(u, "_per_")
	case strings.Contains(u, " per "):
		num, den, _ = strings.Cut(u, " per ")
	default:
		return FactorUnit{}, fmt.Errorf("%w: factor unit %q has no denominator", ErrInvalidUnit, unit)
	}

	mass := NormalizeUnit(num)
	if DimensionOf(mass) != DimensionMass {
		return FactorUnit{}, fmt.Errorf("%w: factor unit %q has non-mass numerator", ErrInvalidUnit, unit)
	}
	activity := NormalizeUnit(den)
	if activity == "" {
		return FactorUnit{}, fmt.Errorf("%w: factor unit %q has empty denominator", ErrInvalidUnit, unit)
	}
	return FactorUnit{MassUnit: mass, ActivityUnit: activity}, nil
}

// EmissionsTonnes computes amount × factor in metric tons of CO2e.
//
// The activity amount is first converted into the factor's denominator unit,
// then the product is scaled from the factor's mass unit to tonnes.
func EmissionsTonnes(amount decimal.Decimal, activityUnit string, factor decimal.Decimal, factorUnit string) (decimal.Decimal, error) {
	if factor.IsNegative() {
		return decimal.Zero, ErrNegativeValue
	}
	fu, err := ParseFactorUnit(factorUnit)
	if err != nil {
		return decimal.Zero, err
	}
	converted, err := Convert(amount, activityUnit, fu.ActivityUnit)
	if err != nil {
		return decimal.Zero, err
	}
	return NormalizeToTonnes(converted.Mul(factor), fu.MassUnit)
}
