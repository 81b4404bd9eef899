package tags

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/rshade/ghgfocus/internal/ghg"
)

//nolint:gochecknoglobals // Constant decimals.
var (
	// halfUnit is the rounding error of one fact published at MassDecimals.
	halfUnit      = decimal.New(5, -(MassDecimals + 1))
	categoryCount = decimal.NewFromInt(ghg.Scope3CategoryCount)
)

// Reconcile recomputes every subtotal of doc from the facts it declares and
// returns a *ghg.RenderInconsistencyError listing each one that disagrees.
//
// Per context the grand total must equal scope 1 plus the reported scope 2
// plus scope 3, and the reported scope 2 must equal the location-based or
// market-based fact, the one named by the scope 2 method when present. Where category facts exist,
// scope 3 must equal their sum and completeness their share of the 15
// categories. Each published value may be off by half a unit in its last
// decimal, so sums are compared with that allowance per addend.
func Reconcile(doc *Document) error {
	var mismatches []ghg.Mismatch
	add := func(contextRef, metric string, declared, computed decimal.Decimal) {
		mismatches = append(mismatches, ghg.Mismatch{
			Metric:   contextRef + " " + metric,
			Declared: declared,
			Computed: computed,
		})
	}
	amount := func(contextRef string, m Metric) decimal.Decimal {
		f, _ := doc.Fact(contextRef, m)
		return f.Amount
	}

	for _, c := range doc.Contexts {
		scope1 := amount(c.ID, MetricScope1)
		scope2 := amount(c.ID, MetricScope2Reported)
		scope3 := amount(c.ID, MetricScope3)

		computed := scope1.Add(scope2).Add(scope3)
		if !within(amount(c.ID, MetricTotal), computed, 3) {
			add(c.ID, string(MetricTotal), amount(c.ID, MetricTotal), computed)
		}

		location, market := amount(c.ID, MetricScope2Location), amount(c.ID, MetricScope2Market)
		method, hasMethod := doc.Fact(c.ID, MetricScope2Method)
		switch {
		case hasMethod && strings.HasPrefix(method.Text, "market"):
			if !scope2.Equal(market) {
				add(c.ID, string(MetricScope2Reported), scope2, market)
			}
		case hasMethod:
			if !scope2.Equal(location) {
				add(c.ID, string(MetricScope2Reported), scope2, location)
			}
		case !scope2.Equal(location) && !scope2.Equal(market):
			add(c.ID, string(MetricScope2Reported), scope2, location)
		}

		completeness, hasCompleteness := doc.Fact(c.ID, MetricCompleteness)
		categories := doc.CategoryFacts(c.ID)
		if !hasCompleteness && len(categories) == 0 {
			continue
		}
		sum := decimal.Zero
		for _, f := range categories {
			sum = sum.Add(f.Amount)
		}
		if !within(scope3, sum, len(categories)) {
			add(c.ID, string(MetricScope3), scope3, sum)
		}
		if hasCompleteness {
			share := decimal.NewFromInt(int64(len(categories))).Div(categoryCount).Round(RatioDecimals)
			if !completeness.Amount.Equal(share) {
				add(c.ID, string(MetricCompleteness), completeness.Amount, share)
			}
		}
	}

	if len(mismatches) > 0 {
		return &ghg.RenderInconsistencyError{Mismatches: mismatches}
	}
	return nil
}

// within reports whether declared matches a sum of addends rounded values.
func within(declared, computed decimal.Decimal, addends int) bool {
	return declared.Sub(computed).Abs().LessThanOrEqual(halfUnit.Mul(decimal.NewFromInt(int64(addends + 1))))
}
