// Package tags renders an aggregated inventory as a structured-tag document:
// entity-scoped period contexts, units and one namespaced fact per disclosed
// metric, written as an XML instance or as inline-tagged XHTML.
package tags

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rshade/ghgfocus/internal/engine"
	"github.com/rshade/ghgfocus/internal/ghg"
	"github.com/rshade/ghgfocus/internal/logging"
)

type constError string

func (e constError) Error() string { return string(e) }

// Sentinel errors.
const (
	ErrUnsupportedTaxonomy = constError("unsupported taxonomy")
	ErrMissingEntity       = constError("organization has no registration identifier")
)

// DefaultTaxonomyVersion is used when Options.TaxonomyVersion is empty.
const DefaultTaxonomyVersion = "2024.0.0"

// Context ids.
const (
	ContextCurrent  = "current"
	ContextPrevious = "previous"
)

// Unit ids.
const (
	UnitTonnesCO2e = "tCO2e"
	UnitPure       = "pure"
)

// Decimal precision of mass facts and of ratio facts.
const (
	MassDecimals  = 2
	RatioDecimals = 4
)

// Options selects the framework and taxonomy version.
type Options struct {
	Framework       Framework
	TaxonomyVersion string
}

func (o *Options) normalize() error {
	if o.Framework == "" {
		o.Framework = FrameworkIFRSS2
	}
	f, err := ParseFramework(string(o.Framework))
	if err != nil {
		return err
	}
	o.Framework = f
	if o.TaxonomyVersion == "" {
		o.TaxonomyVersion = DefaultTaxonomyVersion
	}
	return nil
}

// Entity identifies the reporting organization.
type Entity struct {
	Scheme     string
	Identifier string
}

// Context is a reporting period scoped to the entity.
type Context struct {
	ID     string
	Entity Entity
	Start  time.Time
	End    time.Time
}

// Unit is a measure referenced by numeric facts.
type Unit struct {
	ID      string
	Measure string
}

// Fact is one tagged value.
type Fact struct {
	Metric Metric
	// Category is set on scope 3 category facts only.
	Category ghg.Scope3Category
	// Name is the prefixed element name.
	Name       string
	ContextRef string
	// UnitRef and Decimals are empty for text facts.
	UnitRef  string
	Decimals int
	Amount   decimal.Decimal
	Text     string
}

// Numeric reports whether the fact carries a quantity.
func (f Fact) Numeric() bool { return f.UnitRef != "" }

// Value is the fact's serialized value.
func (f Fact) Value() string {
	if f.Numeric() {
		return f.Amount.StringFixed(int32(f.Decimals))
	}
	return f.Text
}

// Document is a rendered tag document.
type Document struct {
	Taxonomy *Taxonomy
	Version  string
	Title    string
	Entity   Entity
	Contexts []Context
	Units    []Unit
	Facts    []Fact
}

// Fact returns the first fact for metric in the context.
func (d *Document) Fact(contextRef string, m Metric) (Fact, bool) {
	for _, f := range d.Facts {
		if f.ContextRef == contextRef && f.Metric == m {
			return f, true
		}
	}
	return Fact{}, false
}

// CategoryFacts returns the scope 3 category facts of a context in category order.
func (d *Document) CategoryFacts(contextRef string) []Fact {
	var out []Fact
	for _, f := range d.Facts {
		if f.ContextRef == contextRef && f.Category.Valid() {
			out = append(out, f)
		}
	}
	return out
}

// Render builds the tag document for inv.
//
// The current period always gets a context; the previous period gets one
// only when inv carries a year-over-year comparison. Scope 3 categories
// without records get no fact. The inventory is reconciled before anything
// is built and the document is reconciled against its own facts afterwards.
func Render(ctx context.Context, inv *ghg.AggregatedInventory, opts Options) (*Document, error) {
	logger := logging.FromContext(ctx).With().
		Str("component", "tags").
		Str("operation", "render").
		Logger()

	if err := opts.normalize(); err != nil {
		return nil, err
	}
	if err := engine.Reconcile(inv); err != nil {
		return nil, err
	}
	tax, err := LookupTaxonomy(opts.Framework, opts.TaxonomyVersion)
	if err != nil {
		return nil, err
	}
	entity, err := entityOf(inv.Organization)
	if err != nil {
		return nil, err
	}

	doc := &Document{
		Taxonomy: tax,
		Version:  opts.TaxonomyVersion,
		Title:    fmt.Sprintf("%s GHG emissions %d", inv.Organization.Name, inv.Period.Year()),
		Entity:   entity,
		Contexts: []Context{{ID: ContextCurrent, Entity: entity, Start: inv.Period.Start, End: inv.Period.End}},
		Units: []Unit{
			{ID: UnitTonnesCO2e, Measure: "utr:tCO2e"},
			{ID: UnitPure, Measure: "xbrli:pure"},
		},
	}
	b := factBuilder{doc: doc, tax: tax}

	b.text(ContextCurrent, MetricEntityName, inv.Organization.Name)
	methodology := inv.Methodology
	if methodology == "" {
		methodology = engine.DefaultMethodology
	}
	b.text(ContextCurrent, MetricMethodology, methodology)
	b.text(ContextCurrent, MetricScope2Method, methodText(inv.Scope2Method))
	b.totals(ContextCurrent, inv.Totals())
	for _, ct := range inv.Scope3ByCategory {
		if !ct.HasData() {
			continue
		}
		b.doc.Facts = append(b.doc.Facts, Fact{
			Metric:     MetricScope3Category,
			Category:   ct.Category,
			Name:       tax.Prefix + ":" + tax.CategoryElement(ct.Category),
			ContextRef: ContextCurrent,
			UnitRef:    UnitTonnesCO2e,
			Decimals:   MassDecimals,
			Amount:     ct.Total.Round(MassDecimals),
		})
	}
	completeness := decimal.NewFromInt(int64(inv.CategoriesWithData())).
		Div(decimal.NewFromInt(ghg.Scope3CategoryCount)).Round(RatioDecimals)
	b.number(ContextCurrent, MetricCompleteness, UnitPure, RatioDecimals, completeness)

	if yoy := inv.YearOverYear; yoy != nil {
		doc.Contexts = append(doc.Contexts, Context{
			ID: ContextPrevious, Entity: entity, Start: yoy.PreviousPeriod.Start, End: yoy.PreviousPeriod.End,
		})
		b.totals(ContextPrevious, yoy.Previous)
	}

	if err := Reconcile(doc); err != nil {
		return nil, err
	}

	logger.Debug().
		Str("framework", string(tax.Framework)).
		Str("taxonomy_version", opts.TaxonomyVersion).
		Int("contexts", len(doc.Contexts)).
		Int("facts", len(doc.Facts)).
		Msg("tag document rendered")
	return doc, nil
}

type factBuilder struct {
	doc *Document
	tax *Taxonomy
}

func (b *factBuilder) name(m Metric) string {
	return b.tax.Prefix + ":" + b.tax.Element(m)
}

func (b *factBuilder) text(contextRef string, m Metric, text string) {
	b.doc.Facts = append(b.doc.Facts, Fact{Metric: m, Name: b.name(m), ContextRef: contextRef, Text: text})
}

func (b *factBuilder) number(contextRef string, m Metric, unit string, decimals int, v decimal.Decimal) {
	b.doc.Facts = append(b.doc.Facts, Fact{
		Metric:     m,
		Name:       b.name(m),
		ContextRef: contextRef,
		UnitRef:    unit,
		Decimals:   decimals,
		Amount:     v.Round(int32(decimals)),
	})
}

func (b *factBuilder) totals(contextRef string, t ghg.ScopeTotals) {
	b.number(contextRef, MetricScope1, UnitTonnesCO2e, MassDecimals, t.Scope1)
	b.number(contextRef, MetricScope2Location, UnitTonnesCO2e, MassDecimals, t.Scope2Location)
	b.number(contextRef, MetricScope2Market, UnitTonnesCO2e, MassDecimals, t.Scope2Market)
	b.number(contextRef, MetricScope2Reported, UnitTonnesCO2e, MassDecimals, t.Scope2Preferred)
	b.number(contextRef, MetricScope3, UnitTonnesCO2e, MassDecimals, t.Scope3)
	b.number(contextRef, MetricTotal, UnitTonnesCO2e, MassDecimals, t.Total)
}

func methodText(m ghg.CalculationMethod) string {
	if m == ghg.MethodMarketBased {
		return "market-based"
	}
	return "location-based"
}

// schemeURIs maps well-known registration schemes to identifier scheme URIs.
//
//nolint:gochecknoglobals // Read-only lookup table.
var schemeURIs = map[string]string{
	"lei": "http://standards.iso.org/iso/17442",
	"cik": "http://www.sec.gov/CIK",
}

func entityOf(org ghg.OrganizationInfo) (Entity, error) {
	id := strings.TrimSpace(org.RegistrationID)
	if id == "" {
		return Entity{}, fmt.Errorf("%w: %s", ErrMissingEntity, org.Name)
	}
	scheme := strings.TrimSpace(org.RegistrationScheme)
	lower := strings.ToLower(scheme)
	uri, known := schemeURIs[lower]
	switch {
	case known:
		scheme = uri
	case scheme == "":
		scheme = "urn:registration:unspecified"
	case !strings.Contains(scheme, ":"):
		scheme = "urn:registration:" + lower
	}
	return Entity{Scheme: scheme, Identifier: id}, nil
}
