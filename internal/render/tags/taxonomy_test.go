package tags

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rshade/ghgfocus/internal/ghg"
)

func TestLookupTaxonomy(t *testing.T) {
	tests := []struct {
		name      string
		framework Framework
		version   string
		namespace string
		wantErr   bool
	}{
		{name: "ifrs current", framework: FrameworkIFRSS2, version: "2024.0.0", namespace: "https://xbrl.ifrs.org/taxonomy/2024-03-27/ifrs-full"},
		{name: "ifrs later minor", framework: FrameworkIFRSS2, version: "2025.1.0", namespace: "https://xbrl.ifrs.org/taxonomy/2024-03-27/ifrs-full"},
		{name: "ifrs previous", framework: FrameworkIFRSS2, version: "2023.2.0", namespace: "https://xbrl.ifrs.org/taxonomy/2023-03-23/ifrs-full"},
		{name: "ifrs too old", framework: FrameworkIFRSS2, version: "2022.0.0", wantErr: true},
		{name: "esrs", framework: FrameworkESRS, version: "2024.0.0", namespace: "https://xbrl.efrag.org/taxonomy/esrs/2023-12-22"},
		{name: "sb253", framework: FrameworkSB253, version: "2024.0.0", namespace: "https://ww2.arb.ca.gov/taxonomy/sb253/2024"},
		{name: "sb253 before enactment", framework: FrameworkSB253, version: "2023.0.0", wantErr: true},
		{name: "not a version", framework: FrameworkESRS, version: "latest", wantErr: true},
		{name: "unknown framework", framework: "gri", version: "2024.0.0", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tax, err := LookupTaxonomy(tt.framework, tt.version)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrUnsupportedTaxonomy)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.framework, tax.Framework)
			assert.Equal(t, tt.namespace, tax.Namespace)
		})
	}
}

func TestTaxonomiesAreComplete(t *testing.T) {
	metrics := []Metric{
		MetricScope1, MetricScope2Location, MetricScope2Market, MetricScope2Reported, MetricScope3,
		MetricTotal, MetricCompleteness, MetricScope2Method, MetricEntityName, MetricMethodology,
	}
	for framework, tables := range taxonomies {
		for _, tax := range tables {
			t.Run(string(framework)+" "+tax.Constraint, func(t *testing.T) {
				seen := map[string]bool{}
				for _, m := range metrics {
					el := tax.Element(m)
					require.NotEmpty(t, el, "no element for %s", m)
					assert.False(t, seen[el], "element %s used twice", el)
					seen[el] = true
				}
				for _, c := range ghg.AllScope3Categories() {
					el := tax.CategoryElement(c)
					require.NotEmpty(t, el)
					assert.False(t, seen[el], "element %s used twice", el)
					seen[el] = true
				}
			})
		}
	}
	assert.Equal(t, "GrossScope3GreenhouseGasEmissionsCategory6BusinessTravel",
		taxonomies[FrameworkIFRSS2][0].CategoryElement(ghg.CatBusinessTravel))
}

func TestParseFramework(t *testing.T) {
	f, err := ParseFramework("ESRS")
	require.NoError(t, err)
	assert.Equal(t, FrameworkESRS, f)

	_, err = ParseFramework("csrd")
	require.ErrorIs(t, err, ErrUnsupportedTaxonomy)
}
