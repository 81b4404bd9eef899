package ghg

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Scope3Category is one of the 15 fixed GHG Protocol value-chain categories, numbered 1..15.
type Scope3Category int

// Scope3CategoryCount is the number of fixed scope 3 categories.
const Scope3CategoryCount = 15

// Scope3 categories in GHG Protocol order.
const (
	CatPurchasedGoods Scope3Category = iota + 1
	CatCapitalGoods
	CatFuelEnergyRelated
	CatUpstreamTransportation
	CatWasteGenerated
	CatBusinessTravel
	CatEmployeeCommuting
	CatUpstreamLeasedAssets
	CatDownstreamTransportation
	CatProcessingSoldProducts
	CatUseOfSoldProducts
	CatEndOfLifeTreatment
	CatDownstreamLeasedAssets
	CatFranchises
	CatInvestments
)

type scope3Info struct {
	id   string
	name string
}

//nolint:gochecknoglobals // Fixed GHG Protocol table, indexed by category number - 1.
var scope3Table = [Scope3CategoryCount]scope3Info{
	{"purchased_goods_services", "Purchased goods and services"},
	{"capital_goods", "Capital goods"},
	{"fuel_energy_related", "Fuel- and energy-related activities"},
	{"upstream_transportation", "Upstream transportation and distribution"},
	{"waste_generated", "Waste generated in operations"},
	{"business_travel", "Business travel"},
	{"employee_commuting", "Employee commuting"},
	{"upstream_leased_assets", "Upstream leased assets"},
	{"downstream_transportation", "Downstream transportation and distribution"},
	{"processing_sold_products", "Processing of sold products"},
	{"use_of_sold_products", "Use of sold products"},
	{"end_of_life_treatment", "End-of-life treatment of sold products"},
	{"downstream_leased_assets", "Downstream leased assets"},
	{"franchises", "Franchises"},
	{"investments", "Investments"},
}

// scope3Index maps every accepted normalized spelling to its category.
//
//nolint:gochecknoglobals // Built once from scope3Table.
var scope3Index = buildScope3Index()

// aliases cover spellings seen in ERP exports that differ from both id and name.
//
//nolint:gochecknoglobals // Read-only alias table.
var scope3Aliases = map[string]Scope3Category{
	"purchased_goods":              CatPurchasedGoods,
	"purchased_goods_and_services": CatPurchasedGoods,
	"fuel_and_energy_related":      CatFuelEnergyRelated,
	"upstream_transport":           CatUpstreamTransportation,
	"downstream_transport":         CatDownstreamTransportation,
	"waste":                        CatWasteGenerated,
	"travel":                       CatBusinessTravel,
	"commuting":                    CatEmployeeCommuting,
	"end_of_life":                  CatEndOfLifeTreatment,
}

func buildScope3Index() map[string]Scope3Category {
	idx := make(map[string]Scope3Category, Scope3CategoryCount*3)
	for i, info := range scope3Table {
		cat := Scope3Category(i + 1)
		idx[info.id] = cat
		idx[normalizeCategoryID(info.name)] = cat
	}
	for alias, cat := range scope3Aliases {
		idx[alias] = cat
	}
	return idx
}

// AllScope3Categories returns the 15 categories in number order.
func AllScope3Categories() []Scope3Category {
	out := make([]Scope3Category, Scope3CategoryCount)
	for i := range out {
		out[i] = Scope3Category(i + 1)
	}
	return out
}

// Valid reports whether c is in 1..15.
func (c Scope3Category) Valid() bool {
	return c >= CatPurchasedGoods && c <= CatInvestments
}

// Number returns the GHG Protocol category number.
func (c Scope3Category) Number() int { return int(c) }

// ID returns the canonical snake_case id, e.g. "business_travel".
func (c Scope3Category) ID() string {
	if !c.Valid() {
		return ""
	}
	return scope3Table[c-1].id
}

// Name returns the GHG Protocol display name.
func (c Scope3Category) Name() string {
	if !c.Valid() {
		return fmt.Sprintf("Category %d", int(c))
	}
	return scope3Table[c-1].name
}

// String returns "Category N: Name".
func (c Scope3Category) String() string {
	return fmt.Sprintf("Category %d: %s", int(c), c.Name())
}

//nolint:gochecknoglobals // Compiled once.
var (
	categoryPrefix   = regexp.MustCompile(`^(?:cat|category)_?(\d{1,2})(?:_|$)`)
	categorySepRun   = regexp.MustCompile(`_+`)
	categoryStripped = strings.NewReplacer("-", "_", " ", "_", "&", "and", ".", "", ",", "", ":", "_")
)

// normalizeCategoryID lowercases and folds separators to single underscores.
func normalizeCategoryID(raw string) string {
	v := strings.ToLower(strings.TrimSpace(raw))
	v = categoryStripped.Replace(v)
	v = categorySepRun.ReplaceAllString(v, "_")
	return strings.Trim(v, "_")
}

// ResolveScope3Category maps a category identifier onto one of the 15 categories.
//
// Accepted forms, after case and separator folding:
//   - the canonical id ("business_travel") or display name ("Business travel")
//   - either of those behind a "cat<N>_" or "category<N>_" prefix
//   - the bare number ("6") or a bare prefix ("cat6", "category_6")
//
// A prefix number that disagrees with the name that follows it is rejected,
// as is anything else. Failures are *CategoryResolutionError.
func ResolveScope3Category(raw string) (Scope3Category, error) {
	v := normalizeCategoryID(raw)
	fail := &CategoryResolutionError{Category: raw}

	if n, err := strconv.Atoi(v); err == nil {
		if Scope3Category(n).Valid() {
			return Scope3Category(n), nil
		}
		return 0, fail
	}

	prefixed := Scope3Category(0)
	if m := categoryPrefix.FindStringSubmatch(v); m != nil {
		n, _ := strconv.Atoi(m[1])
		prefixed = Scope3Category(n)
		if !prefixed.Valid() {
			return 0, fail
		}
		v = strings.TrimPrefix(v, m[0])
		if v == "" {
			return prefixed, nil
		}
	}

	cat, ok := scope3Index[v]
	if !ok {
		return 0, fail
	}
	if prefixed != 0 && prefixed != cat {
		return 0, fail
	}
	return cat, nil
}
