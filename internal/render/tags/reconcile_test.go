package tags

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rshade/ghgfocus/internal/ghg"
)

func setAmount(doc *Document, contextRef string, m Metric, value string) {
	for i := range doc.Facts {
		if doc.Facts[i].ContextRef == contextRef && doc.Facts[i].Metric == m {
			doc.Facts[i].Amount = dec(value)
			return
		}
	}
	panic("no fact " + string(m))
}

func TestReconcile(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Document)
		metrics []string
	}{
		{name: "rendered document", mutate: func(*Document) {}},
		{
			name:    "grand total off",
			mutate:  func(d *Document) { setAmount(d, ContextCurrent, MetricTotal, "120.00") },
			metrics: []string{"current total"},
		},
		{
			name:    "previous total off",
			mutate:  func(d *Document) { setAmount(d, ContextPrevious, MetricTotal, "61.00") },
			metrics: []string{"previous total"},
		},
		{
			name: "scope 3 disagrees with categories",
			mutate: func(d *Document) {
				setAmount(d, ContextCurrent, MetricScope3, "25.00")
				setAmount(d, ContextCurrent, MetricTotal, "125.00")
			},
			metrics: []string{"current scope3"},
		},
		{
			name:    "reported scope 2 is not the market-based figure",
			mutate:  func(d *Document) { setAmount(d, ContextCurrent, MetricScope2Market, "50.00") },
			metrics: []string{"current scope2_reported"},
		},
		{
			name: "previous reported scope 2 matches neither method",
			mutate: func(d *Document) {
				setAmount(d, ContextPrevious, MetricScope2Reported, "5.00")
				setAmount(d, ContextPrevious, MetricTotal, "65.00")
			},
			metrics: []string{"previous scope2_reported"},
		},
		{
			name: "dropped category fact",
			mutate: func(d *Document) {
				for i, f := range d.Facts {
					if f.Category == ghg.CatPurchasedGoods {
						d.Facts = append(d.Facts[:i], d.Facts[i+1:]...)
						return
					}
				}
			},
			metrics: []string{"current scope3", "current scope3_completeness"},
		},
		{
			name: "rounded addends within half a unit each",
			mutate: func(d *Document) {
				setAmount(d, ContextPrevious, MetricScope1, "1.01")
				setAmount(d, ContextPrevious, MetricScope3, "1.01")
				setAmount(d, ContextPrevious, MetricTotal, "2.01")
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := render(t, true, Options{})
			tt.mutate(doc)

			err := Reconcile(doc)
			if len(tt.metrics) == 0 {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, ghg.ErrRenderInconsistency)
			var rie *ghg.RenderInconsistencyError
			require.True(t, errors.As(err, &rie))
			got := make([]string, 0, len(rie.Mismatches))
			for _, m := range rie.Mismatches {
				got = append(got, m.Metric)
			}
			assert.Equal(t, tt.metrics, got)
		})
	}
}
