package engine

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/rshade/ghgfocus/internal/ghg"
)

// Reconcile checks that every subtotal an inventory declares is reproducible
// from its components. It reports all mismatches in one
// *ghg.RenderInconsistencyError and never corrects the inventory.
func Reconcile(inv *ghg.AggregatedInventory) error {
	var mismatches []ghg.Mismatch

	if n := len(inv.Scope3ByCategory); n != ghg.Scope3CategoryCount {
		mismatches = append(mismatches, ghg.Mismatch{
			Metric:   "scope3_by_category entries",
			Declared: decimal.NewFromInt(int64(n)),
			Computed: decimal.NewFromInt(ghg.Scope3CategoryCount),
		})
	}

	sum := decimal.Zero
	for i, c := range inv.Scope3ByCategory {
		if int(c.Category) != i+1 {
			mismatches = append(mismatches, ghg.Mismatch{
				Metric:   fmt.Sprintf("scope3_by_category[%d] category", i),
				Declared: decimal.NewFromInt(int64(c.Category)),
				Computed: decimal.NewFromInt(int64(i + 1)),
			})
		}
		if c.RecordCount == 0 && !c.Total.IsZero() {
			mismatches = append(mismatches, ghg.Mismatch{
				Metric:   c.Category.ID() + " without records",
				Declared: c.Total,
				Computed: decimal.Zero,
			})
		}
		sum = sum.Add(c.Total)
	}
	if !sum.Equal(inv.TotalScope3) {
		mismatches = append(mismatches, ghg.Mismatch{Metric: "total_scope3", Declared: inv.TotalScope3, Computed: sum})
	}

	if yoy := inv.YearOverYear; yoy != nil {
		p := yoy.Previous
		computed := p.Scope1.Add(p.Scope2Preferred).Add(p.Scope3)
		if !computed.Equal(p.Total) {
			mismatches = append(mismatches, ghg.Mismatch{Metric: "previous total", Declared: p.Total, Computed: computed})
		}
	}

	if len(mismatches) > 0 {
		return &ghg.RenderInconsistencyError{Mismatches: mismatches}
	}
	return nil
}
