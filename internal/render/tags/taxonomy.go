package tags

import (
	"fmt"
	"strings"

	"github.com/Masterminds/semver/v3"

	"github.com/rshade/ghgfocus/internal/ghg"
)

// Framework is a filing regime with its own taxonomy.
type Framework string

// Supported frameworks.
const (
	FrameworkIFRSS2 Framework = "ifrs-s2"
	FrameworkESRS   Framework = "esrs"
	FrameworkSB253  Framework = "sb253"
)

// ParseFramework accepts a framework id, case-insensitively.
func ParseFramework(s string) (Framework, error) {
	f := Framework(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := taxonomies[f]; !ok {
		return "", fmt.Errorf("%w: unknown framework %q", ErrUnsupportedTaxonomy, s)
	}
	return f, nil
}

// Metric identifies one disclosed quantity independent of framework naming.
type Metric string

// Disclosed metrics.
const (
	MetricScope1         Metric = "scope1"
	MetricScope2Location Metric = "scope2_location_based"
	MetricScope2Market   Metric = "scope2_market_based"
	// MetricScope2Reported is the scope 2 total carried into the grand total.
	MetricScope2Reported Metric = "scope2_reported"
	MetricScope3         Metric = "scope3"
	// MetricScope3Category facts carry their category and use the category element table.
	MetricScope3Category Metric = "scope3_category"
	MetricTotal          Metric = "total"
	MetricCompleteness   Metric = "scope3_completeness"
	MetricScope2Method   Metric = "scope2_method"
	MetricEntityName     Metric = "entity_name"
	MetricMethodology    Metric = "methodology"
)

// Taxonomy is one version range of a framework's element vocabulary.
type Taxonomy struct {
	Framework Framework
	// Constraint selects the taxonomy versions this table applies to.
	Constraint string
	Prefix     string
	Namespace  string
	Elements   map[Metric]string
	// Categories maps scope 3 category number - 1 to its element.
	Categories [ghg.Scope3CategoryCount]string
}

// Element returns the element name for m.
func (t *Taxonomy) Element(m Metric) string { return t.Elements[m] }

// CategoryElement returns the element name for a scope 3 category.
func (t *Taxonomy) CategoryElement(c ghg.Scope3Category) string {
	return t.Categories[c.Number()-1]
}

// categorySuffixes is the camel-case form of each category name, by number - 1.
//
//nolint:gochecknoglobals // Fixed GHG Protocol table.
var categorySuffixes = [ghg.Scope3CategoryCount]string{
	"PurchasedGoodsAndServices",
	"CapitalGoods",
	"FuelAndEnergyRelatedActivities",
	"UpstreamTransportationAndDistribution",
	"WasteGeneratedInOperations",
	"BusinessTravel",
	"EmployeeCommuting",
	"UpstreamLeasedAssets",
	"DownstreamTransportationAndDistribution",
	"ProcessingOfSoldProducts",
	"UseOfSoldProducts",
	"EndOfLifeTreatmentOfSoldProducts",
	"DownstreamLeasedAssets",
	"Franchises",
	"Investments",
}

func categoryElements(format string, numbered bool) [ghg.Scope3CategoryCount]string {
	var out [ghg.Scope3CategoryCount]string
	for i, suffix := range categorySuffixes {
		if numbered {
			out[i] = fmt.Sprintf(format, i+1, suffix)
			continue
		}
		out[i] = fmt.Sprintf(format, suffix)
	}
	return out
}

// taxonomies lists each framework's tables, newest first.
//
//nolint:gochecknoglobals // Read-only lookup table.
var taxonomies = map[Framework][]Taxonomy{
	FrameworkIFRSS2: {
		{
			Framework:  FrameworkIFRSS2,
			Constraint: ">= 2024.0.0",
			Prefix:     "ifrs-full",
			Namespace:  "https://xbrl.ifrs.org/taxonomy/2024-03-27/ifrs-full",
			Elements: map[Metric]string{
				MetricScope1:         "GrossScope1GreenhouseGasEmissions",
				MetricScope2Location: "GrossLocationbasedScope2GreenhouseGasEmissions",
				MetricScope2Market:   "GrossMarketbasedScope2GreenhouseGasEmissions",
				MetricScope2Reported: "GrossScope2GreenhouseGasEmissions",
				MetricScope3:         "GrossScope3GreenhouseGasEmissions",
				MetricTotal:          "GrossGreenhouseGasEmissions",
				MetricCompleteness:   "ProportionOfScope3CategoriesMeasured",
				MetricScope2Method:   "DescriptionOfApproachUsedToMeasureScope2GreenhouseGasEmissions",
				MetricEntityName:     "NameOfReportingEntityOrOtherMeansOfIdentification",
				MetricMethodology:    "DescriptionOfMeasurementApproachInputsAndAssumptionsUsedToMeasureGreenhouseGasEmissions",
			},
			Categories: categoryElements("GrossScope3GreenhouseGasEmissionsCategory%d%s", true),
		},
		{
			Framework:  FrameworkIFRSS2,
			Constraint: ">= 2023.0.0, < 2024.0.0",
			Prefix:     "ifrs-full",
			Namespace:  "https://xbrl.ifrs.org/taxonomy/2023-03-23/ifrs-full",
			Elements: map[Metric]string{
				MetricScope1:         "Scope1GreenhouseGasEmissions",
				MetricScope2Location: "LocationbasedScope2GreenhouseGasEmissions",
				MetricScope2Market:   "MarketbasedScope2GreenhouseGasEmissions",
				MetricScope2Reported: "Scope2GreenhouseGasEmissions",
				MetricScope3:         "Scope3GreenhouseGasEmissions",
				MetricTotal:          "GreenhouseGasEmissions",
				MetricCompleteness:   "ProportionOfScope3CategoriesMeasured",
				MetricScope2Method:   "DescriptionOfScope2MeasurementApproach",
				MetricEntityName:     "NameOfReportingEntityOrOtherMeansOfIdentification",
				MetricMethodology:    "DescriptionOfGreenhouseGasMeasurementApproach",
			},
			Categories: categoryElements("Scope3GreenhouseGasEmissionsCategory%d%s", true),
		},
	},
	FrameworkESRS: {
		{
			Framework:  FrameworkESRS,
			Constraint: ">= 2023.0.0",
			Prefix:     "esrs",
			Namespace:  "https://xbrl.efrag.org/taxonomy/esrs/2023-12-22",
			Elements: map[Metric]string{
				MetricScope1:         "GrossScope1GreenhouseGasEmissions",
				MetricScope2Location: "GrossLocationBasedScope2GreenhouseGasEmissions",
				MetricScope2Market:   "GrossMarketBasedScope2GreenhouseGasEmissions",
				MetricScope2Reported: "GrossScope2GreenhouseGasEmissions",
				MetricScope3:         "GrossScope3GreenhouseGasEmissions",
				MetricTotal:          "TotalGHGEmissions",
				MetricCompleteness:   "PercentageOfScope3CategoriesCalculated",
				MetricScope2Method:   "DisclosureOfScope2MeasurementMethod",
				MetricEntityName:     "NameOfReportingUndertaking",
				MetricMethodology:    "DisclosureOfMethodologiesSignificantAssumptionsAndEmissionsFactorsUsed",
			},
			Categories: categoryElements("GrossScope3GreenhouseGasEmissions%s", false),
		},
	},
	FrameworkSB253: {
		{
			Framework:  FrameworkSB253,
			Constraint: ">= 2024.0.0",
			Prefix:     "ca-sb253",
			Namespace:  "https://ww2.arb.ca.gov/taxonomy/sb253/2024",
			Elements: map[Metric]string{
				MetricScope1:         "Scope1Emissions",
				MetricScope2Location: "Scope2LocationBasedEmissions",
				MetricScope2Market:   "Scope2MarketBasedEmissions",
				MetricScope2Reported: "Scope2Emissions",
				MetricScope3:         "Scope3Emissions",
				MetricTotal:          "TotalReportedEmissions",
				MetricCompleteness:   "Scope3CategoryCoverage",
				MetricScope2Method:   "Scope2AccountingMethod",
				MetricEntityName:     "ReportingEntityName",
				MetricMethodology:    "EmissionsMethodologyDescription",
			},
			Categories: categoryElements("Scope3Category%d%sEmissions", true),
		},
	},
}

// LookupTaxonomy returns the element table of framework for a taxonomy version.
func LookupTaxonomy(framework Framework, version string) (*Taxonomy, error) {
	tables, ok := taxonomies[framework]
	if !ok {
		return nil, fmt.Errorf("%w: unknown framework %q", ErrUnsupportedTaxonomy, framework)
	}
	v, err := semver.NewVersion(version)
	if err != nil {
		return nil, fmt.Errorf("%w: taxonomy version %q: %w", ErrUnsupportedTaxonomy, version, err)
	}
	for i := range tables {
		c, cErr := semver.NewConstraint(tables[i].Constraint)
		if cErr != nil {
			return nil, fmt.Errorf("taxonomy constraint %q: %w", tables[i].Constraint, cErr)
		}
		if c.Check(v) {
			return &tables[i], nil
		}
	}
	return nil, fmt.Errorf("%w: %s has no taxonomy for version %s", ErrUnsupportedTaxonomy, framework, v)
}
