package engine

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rshade/ghgfocus/internal/ghg"
)

// Granularity is the bucket size of a trend.
type Granularity string

// Supported trend granularities.
const (
	GranularityMonthly   Granularity = "monthly"
	GranularityQuarterly Granularity = "quarterly"
	GranularityYearly    Granularity = "yearly"
)

// IsValid reports whether g is a supported granularity.
func (g Granularity) IsValid() bool {
	switch g {
	case GranularityMonthly, GranularityQuarterly, GranularityYearly:
		return true
	default:
		return false
	}
}

func (g Granularity) String() string { return string(g) }

// ParseGranularity parses "monthly", "quarterly" or "yearly", case-insensitively.
func ParseGranularity(s string) (Granularity, error) {
	g := Granularity(strings.ToLower(strings.TrimSpace(s)))
	if !g.IsValid() {
		return "", fmt.Errorf("unknown granularity %q (want monthly, quarterly or yearly)", s)
	}
	return g, nil
}

// ScopeSummary is the dashboard view of an inventory.
type ScopeSummary struct {
	ghg.ScopeTotals
	Scope2Method ghg.CalculationMethod `json:"scope2_method"`
	RecordCount  int                   `json:"record_count"`
	PendingCount int                   `json:"pending_count"`
}

// SummaryByScope projects an inventory onto per-scope and per-method totals.
func SummaryByScope(inv *ghg.AggregatedInventory) ScopeSummary {
	return ScopeSummary{
		ScopeTotals:  inv.Totals(),
		Scope2Method: inv.Scope2Method,
		RecordCount:  inv.RecordCount,
		PendingCount: inv.PendingCount,
	}
}

// TrendPoint is one bucket of a trend.
type TrendPoint struct {
	Label       string          `json:"label"`
	Period      ghg.Period      `json:"period"`
	Totals      ghg.ScopeTotals `json:"totals"`
	RecordCount int             `json:"record_count"`
}

// Trend buckets the records of period by start date and aggregates each
// bucket on its own. Every bucket in the period is returned, empty ones with
// zero totals. A record belongs to the bucket its period starts in even when
// it ends in a later one.
func Trend(
	ctx context.Context,
	records []ghg.CalculatedRecord,
	period ghg.Period,
	granularity Granularity,
) ([]TrendPoint, error) {
	if !granularity.IsValid() {
		return nil, fmt.Errorf("unknown granularity %q", granularity)
	}
	if err := period.Validate(); err != nil {
		return nil, err
	}

	buckets := bucketPeriods(period, granularity)
	groups := make([][]ghg.CalculatedRecord, len(buckets))
	for _, r := range records {
		if !period.Attributes(r.PeriodStart()) {
			continue
		}
		for i, b := range buckets {
			if !r.PeriodStart().Before(b.Start) && !r.PeriodStart().After(b.End) {
				groups[i] = append(groups[i], r)
				break
			}
		}
	}

	points := make([]TrendPoint, 0, len(buckets))
	for i, b := range buckets {
		span := b
		for _, r := range groups[i] {
			if r.PeriodEnd().After(span.End) {
				span.End = r.PeriodEnd()
			}
		}
		inv, err := Aggregate(ctx, groups[i], span, AggregateOptions{})
		if err != nil {
			return nil, fmt.Errorf("trend bucket %s: %w", bucketLabel(b.Start, granularity), err)
		}
		points = append(points, TrendPoint{
			Label:       bucketLabel(b.Start, granularity),
			Period:      b,
			Totals:      inv.Totals(),
			RecordCount: inv.RecordCount,
		})
	}
	return points, nil
}

// bucketPeriods splits period into calendar buckets clipped to its bounds.
func bucketPeriods(period ghg.Period, g Granularity) []ghg.Period {
	var out []ghg.Period
	start := period.Start
	for !start.After(period.End) {
		next := bucketStart(start, g)
		switch g {
		case GranularityMonthly:
			next = next.AddDate(0, 1, 0)
		case GranularityQuarterly:
			next = next.AddDate(0, 3, 0)
		case GranularityYearly:
			next = next.AddDate(1, 0, 0)
		}
		end := next.AddDate(0, 0, -1)
		if end.After(period.End) {
			end = period.End
		}
		out = append(out, ghg.Period{Start: start, End: end})
		start = next
	}
	return out
}

func bucketStart(t time.Time, g Granularity) time.Time {
	y, m, _ := t.Date()
	switch g {
	case GranularityQuarterly:
		m = time.Month((int(m)-1)/3*3 + 1)
	case GranularityYearly:
		m = time.January
	case GranularityMonthly:
	}
	return time.Date(y, m, 1, 0, 0, 0, 0, t.Location())
}

func bucketLabel(t time.Time, g Granularity) string {
	switch g {
	case GranularityQuarterly:
		return fmt.Sprintf("%d-Q%d", t.Year(), (int(t.Month())-1)/3+1)
	case GranularityYearly:
		return fmt.Sprintf("%d", t.Year())
	default:
		return t.Format("2006-01")
	}
}

// SourceFilter narrows a source listing. Zero fields match everything.
type SourceFilter struct {
	Scope    ghg.Scope
	Category string
	Method   ghg.CalculationMethod
	From     time.Time
	To       time.Time
}

func (f SourceFilter) match(r ghg.CalculatedRecord) bool {
	if f.Scope != 0 && r.Scope() != f.Scope {
		return false
	}
	if f.Method != "" && r.Method() != f.Method {
		return false
	}
	if f.Category != "" && !sameCategory(r.Scope(), r.Category(), f.Category) {
		return false
	}
	if !f.From.IsZero() && r.PeriodStart().Before(f.From) {
		return false
	}
	if !f.To.IsZero() && r.PeriodStart().After(f.To) {
		return false
	}
	return true
}

func sameCategory(scope ghg.Scope, category, want string) bool {
	if scope != ghg.Scope3 {
		return category == want
	}
	a, errA := ghg.ResolveScope3Category(category)
	b, errB := ghg.ResolveScope3Category(want)
	return errA == nil && errB == nil && a == b
}

// Sources lists the records passing filter, ordered by period start then id.
func Sources(records []ghg.CalculatedRecord, filter SourceFilter) []ghg.CalculatedRecord {
	var out []ghg.CalculatedRecord
	for _, r := range records {
		if filter.match(r) {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].PeriodStart().Equal(out[j].PeriodStart()) {
			return out[i].PeriodStart().Before(out[j].PeriodStart())
		}
		return out[i].ID() < out[j].ID()
	})
	return out
}

// TopSources returns the n records with the largest totals, largest first.
func TopSources(records []ghg.CalculatedRecord, n int) []ghg.CalculatedRecord {
	out := make([]ghg.CalculatedRecord, len(records))
	copy(out, records)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].TotalCO2e().GreaterThan(out[j].TotalCO2e())
	})
	if n >= 0 && n < len(out) {
		out = out[:n]
	}
	return out
}

// FacilityTotal is the inventory slice of one facility.
type FacilityTotal struct {
	Facility    string          `json:"facility"`
	Totals      ghg.ScopeTotals `json:"totals"`
	RecordCount int             `json:"record_count"`
}

// ByFacility aggregates each facility's records separately, largest total
// first. Records without a facility are grouped under "unassigned".
func ByFacility(ctx context.Context, records []ghg.CalculatedRecord, period ghg.Period) ([]FacilityTotal, error) {
	groups := make(map[string][]ghg.CalculatedRecord)
	for _, r := range records {
		name := r.Facility()
		if name == "" {
			name = "unassigned"
		}
		groups[name] = append(groups[name], r)
	}

	out := make([]FacilityTotal, 0, len(groups))
	for name, group := range groups {
		inv, err := Aggregate(ctx, group, period, AggregateOptions{})
		if err != nil {
			return nil, fmt.Errorf("facility %s: %w", name, err)
		}
		if inv.RecordCount == 0 {
			continue
		}
		out = append(out, FacilityTotal{Facility: name, Totals: inv.Totals(), RecordCount: inv.RecordCount})
	}
	sort.Slice(out, func(i, j int) bool {
		if c := out[i].Totals.Total.Cmp(out[j].Totals.Total); c != 0 {
			return c > 0
		}
		return out[i].Facility < out[j].Facility
	})
	return out, nil
}

// QualityShare is the fraction of records in one data quality tier.
type QualityShare struct {
	Quality ghg.DataQuality `json:"quality"`
	Count   int             `json:"count"`
	Percent decimal.Decimal `json:"percent"`
}

// DataQualityBreakdown projects an inventory's quality counts onto
// percentages, best tier first.
func DataQualityBreakdown(inv *ghg.AggregatedInventory) []QualityShare {
	out := make([]QualityShare, 0, len(ghg.AllDataQualities))
	for _, q := range ghg.AllDataQualities {
		share := QualityShare{Quality: q, Count: inv.DataQuality[q], Percent: decimal.Zero}
		if inv.RecordCount > 0 {
			share.Percent = decimal.NewFromInt(int64(share.Count)).
				Div(decimal.NewFromInt(int64(inv.RecordCount))).Mul(hundred)
		}
		out = append(out, share)
	}
	return out
}
