// Package ghg defines the canonical greenhouse-gas emissions model.
//
// A Record is the unit of truth for one measured or estimated activity. Records
// enter the system pending a factor lookup when only a monetary amount is known
// and become calculated once an emission factor is attached; only calculated
// records can be aggregated into an AggregatedInventory.
package ghg

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Scope is a GHG Protocol emission scope.
type Scope int

const (
	// Scope1 covers direct emissions from owned or controlled sources.
	Scope1 Scope = 1
	// Scope2 covers indirect emissions from purchased energy.
	Scope2 Scope = 2
	// Scope3 covers all other value-chain emissions.
	Scope3 Scope = 3
)

// AllScopes lists the scopes in reporting order.
//
//nolint:gochecknoglobals // Read-only enumeration.
var AllScopes = []Scope{Scope1, Scope2, Scope3}

// Valid reports whether s is 1, 2 or 3.
func (s Scope) Valid() bool {
	return s >= Scope1 && s <= Scope3
}

// String returns "scope1", "scope2" or "scope3".
func (s Scope) String() string {
	if !s.Valid() {
		return fmt.Sprintf("Scope(%d)", int(s))
	}
	return "scope" + strconv.Itoa(int(s))
}

// Label returns the display label, e.g. "Scope 2".
func (s Scope) Label() string {
	return "Scope " + strconv.Itoa(int(s))
}

// ParseScope accepts "1", "scope1", "scope_1", "Scope 1" and "scope-1".
func ParseScope(raw string) (Scope, error) {
	v := strings.ToLower(strings.TrimSpace(raw))
	v = strings.TrimPrefix(v, "scope")
	v = strings.TrimLeft(v, " _-")
	n, err := strconv.Atoi(v)
	if err != nil || !Scope(n).Valid() {
		return 0, fmt.Errorf("%w: invalid scope %q", ErrInvalidRecord, raw)
	}
	return Scope(n), nil
}

// UnmarshalJSON accepts the integer form and the string forms ParseScope understands.
func (s *Scope) UnmarshalJSON(data []byte) error {
	var n int
	if err := json.Unmarshal(data, &n); err == nil {
		*s = Scope(n)
		return nil
	}
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return fmt.Errorf("scope must be a number or string: %w", err)
	}
	parsed, err := ParseScope(str)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// CalculationMethod values for scope 2 dual reporting.
type CalculationMethod string

const (
	// MethodLocationBased values purchased energy at grid-average factors.
	MethodLocationBased CalculationMethod = "location_based"
	// MethodMarketBased values purchased energy at supplier-specific factors.
	MethodMarketBased CalculationMethod = "market_based"
)

// Valid reports whether m is one of the two scope 2 methods.
func (m CalculationMethod) Valid() bool {
	return m == MethodLocationBased || m == MethodMarketBased
}

// DataQuality grades how an activity value was obtained.
type DataQuality string

const (
	QualityMeasured         DataQuality = "measured"
	QualityCalculated       DataQuality = "calculated"
	QualityEstimated        DataQuality = "estimated"
	QualitySupplierProvided DataQuality = "supplier_provided"
)

// AllDataQualities lists quality tiers from best to worst.
//
//nolint:gochecknoglobals // Read-only enumeration.
var AllDataQualities = []DataQuality{QualityMeasured, QualitySupplierProvided, QualityCalculated, QualityEstimated}

// Valid reports whether q is a known tier.
func (q DataQuality) Valid() bool {
	switch q {
	case QualityMeasured, QualityCalculated, QualityEstimated, QualitySupplierProvided:
		return true
	default:
		return false
	}
}

// Weight scores a tier for the inventory data quality score (1 best, 0.25 worst).
func (q DataQuality) Weight() float64 {
	switch q {
	case QualityMeasured:
		return 1.0
	case QualitySupplierProvided:
		return 0.75
	case QualityCalculated:
		return 0.5
	case QualityEstimated:
		return 0.25
	default:
		return 0
	}
}

// Provenance says where a record came from.
type Provenance string

const (
	ProvenanceManual   Provenance = "manual"
	ProvenanceERPSync  Provenance = "erp_sync"
	ProvenanceSupplier Provenance = "supplier"
)

// Valid reports whether p is a known provenance.
func (p Provenance) Valid() bool {
	return p == ProvenanceManual || p == ProvenanceERPSync || p == ProvenanceSupplier
}

// Scope 1 categories.
const (
	CategoryStationaryCombustion = "stationary_combustion"
	CategoryMobileCombustion     = "mobile_combustion"
	CategoryProcessEmissions     = "process_emissions"
	CategoryFugitiveEmissions    = "fugitive_emissions"
)

// Scope 2 categories.
const (
	CategoryPurchasedElectricity = "purchased_electricity"
	CategoryPurchasedHeat        = "purchased_heat"
	CategoryPurchasedSteam       = "purchased_steam"
	CategoryPurchasedCooling     = "purchased_cooling"
)

//nolint:gochecknoglobals // Read-only controlled vocabularies.
var (
	scope1Categories = map[string]bool{
		CategoryStationaryCombustion: true,
		CategoryMobileCombustion:     true,
		CategoryProcessEmissions:     true,
		CategoryFugitiveEmissions:    true,
	}
	scope2Categories = map[string]bool{
		CategoryPurchasedElectricity: true,
		CategoryPurchasedHeat:        true,
		CategoryPurchasedSteam:       true,
		CategoryPurchasedCooling:     true,
	}
)

// ValidateCategory checks category against the scope's controlled vocabulary.
// Scope 3 categories go through ResolveScope3Category and may use any accepted spelling.
func ValidateCategory(scope Scope, category string) error {
	switch scope {
	case Scope1:
		if !scope1Categories[category] {
			return fmt.Errorf("%w: %q is not a scope 1 category", ErrInvalidRecord, category)
		}
	case Scope2:
		if !scope2Categories[category] {
			return fmt.Errorf("%w: %q is not a scope 2 category", ErrInvalidRecord, category)
		}
	case Scope3:
		if _, err := ResolveScope3Category(category); err != nil {
			return err
		}
	default:
		return fmt.Errorf("%w: invalid scope %d", ErrInvalidRecord, scope)
	}
	return nil
}
