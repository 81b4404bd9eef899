package ingest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rshade/ghgfocus/internal/engine/batch"
	"github.com/rshade/ghgfocus/internal/ghg"
	"github.com/rshade/ghgfocus/internal/greenops"
	"github.com/rshade/ghgfocus/internal/logging"
	"github.com/rshade/ghgfocus/internal/mapping"
)

// Resolver looks up the active mapping rule for a source key.
// A miss must wrap ghg.ErrMappingNotFound; any other error aborts normalization.
type Resolver interface {
	Resolve(ctx context.Context, fieldType mapping.FieldType, value, integrationID string) (mapping.Rule, error)
}

// Unmapped is a raw record whose keys matched no active rule, kept for triage.
type Unmapped struct {
	// Key is the first non-empty source key of the record. Its Value is empty
	// when the record carried no keys at all.
	Key    mapping.Key
	Record RawRecord
}

// Failed is a raw record that matched a rule but could not be converted.
type Failed struct {
	Record RawRecord
	Err    error
}

// Result is the partial-success outcome of a normalization. Every input
// record lands in exactly one of Canonical, Unmapped or Failed.
type Result struct {
	Canonical []ghg.Record
	Unmapped  []Unmapped
	Failed    []Failed
	// Counts is the number of canonical records per data type.
	Counts map[DataType]int
}

// Errors returns the per-record errors of unmapped and failed records.
func (r *Result) Errors() []error {
	errs := make([]error, 0, len(r.Unmapped)+len(r.Failed))
	for _, u := range r.Unmapped {
		errs = append(errs, &ghg.RecordError{
			Kind:            ghg.ErrMappingNotFound,
			SourceReference: u.Record.SourceReference,
			Key:             string(u.Key.FieldType) + "=" + u.Key.Value,
		})
	}
	for _, f := range r.Failed {
		errs = append(errs, f.Err)
	}
	return errs
}

// Pending returns the canonical records still awaiting an emission factor.
func (r *Result) Pending() int {
	n := 0
	for i := range r.Canonical {
		if r.Canonical[i].Status == ghg.StatusPendingFactor {
			n++
		}
	}
	return n
}

// Options tags the records a normalization produces.
type Options struct {
	OwnerID   string
	SyncRunID string
	// Provenance defaults to erp_sync.
	Provenance ghg.Provenance
}

// Normalizer converts raw records into canonical records.
type Normalizer struct {
	resolver  Resolver
	batchSize int
	now       func() time.Time
}

// NewNormalizer returns a Normalizer resolving keys through resolver.
// batchSize bounds how many records are handled between cancellation checks;
// values outside the batch package's limits use its default.
func NewNormalizer(resolver Resolver, batchSize int) *Normalizer {
	if batchSize < batch.MinSize || batchSize > batch.MaxSize {
		batchSize = batch.DefaultSize
	}
	return &Normalizer{resolver: resolver, batchSize: batchSize, now: time.Now}
}

// Normalize maps every raw record of one integration.
//
// Records whose keys have no active rule go to Unmapped; records whose unit
// cannot be converted or whose fields are invalid go to Failed. Spend-only
// records become canonical records pending factor calculation. The returned
// error is reserved for cancellation and resolver failures.
func (n *Normalizer) Normalize(ctx context.Context, raws []RawRecord, integrationID string, opts Options) (*Result, error) {
	logger := logging.FromContext(ctx).With().
		Str("component", "ingest").
		Str("operation", "normalize").
		Str("integration_id", integrationID).
		Logger()

	if opts.Provenance == "" {
		opts.Provenance = ghg.ProvenanceERPSync
	}

	result := &Result{Counts: make(map[DataType]int)}
	proc, err := batch.New[RawRecord](n.batchSize)
	if err != nil {
		return nil, err
	}
	proc.OnProgress(func(s batch.Snapshot) {
		if s.Complete() {
			return
		}
		logger.Debug().
			Int("processed", s.ProcessedItems).
			Int("total", s.TotalItems).
			Float64("items_per_second", s.ItemsPerSecond()).
			Dur("remaining", s.Remaining()).
			Msg("normalized chunk")
	})

	err = proc.Run(ctx, raws, func(ctx context.Context, chunk []RawRecord, _ int) error {
		for i := range chunk {
			if normErr := n.normalizeOne(ctx, chunk[i], integrationID, opts, result); normErr != nil {
				return normErr
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("normalizing records for %s: %w", integrationID, err)
	}

	logger.Info().
		Int("input", len(raws)).
		Int("canonical", len(result.Canonical)).
		Int("pending", result.Pending()).
		Int("unmapped", len(result.Unmapped)).
		Int("failed", len(result.Failed)).
		Msg("normalization finished")
	return result, nil
}

func (n *Normalizer) normalizeOne(ctx context.Context, raw RawRecord, integrationID string, opts Options, result *Result) error {
	logger := logging.FromContext(ctx)

	rule, first, found, err := n.resolve(ctx, raw, integrationID)
	if err != nil {
		return err
	}
	if !found {
		logger.Debug().
			Str("component", "ingest").
			Str("source_reference", raw.SourceReference).
			Str("key", first.String()).
			Msg("no mapping rule for record")
		result.Unmapped = append(result.Unmapped, Unmapped{Key: first, Record: raw})
		return nil
	}

	rec, buildErr := n.build(raw, rule, integrationID, opts)
	if buildErr != nil {
		logger.Warn().
			Str("component", "ingest").
			Str("source_reference", raw.SourceReference).
			Err(buildErr).
			Msg("record failed normalization")
		result.Failed = append(result.Failed, Failed{Record: raw, Err: buildErr})
		return nil
	}

	result.Canonical = append(result.Canonical, rec)
	result.Counts[raw.Type]++
	return nil
}

// resolve tries the record's keys in mapping.KeyOrder. It returns the first
// rule found, or the first non-empty key when none resolve.
func (n *Normalizer) resolve(ctx context.Context, raw RawRecord, integrationID string) (mapping.Rule, mapping.Key, bool, error) {
	first := mapping.Key{IntegrationID: integrationID}
	for _, ft := range mapping.KeyOrder {
		value := strings.TrimSpace(raw.Keys.Get(ft))
		if value == "" {
			continue
		}
		if first.Value == "" {
			first.FieldType, first.Value = ft, value
		}
		rule, err := n.resolver.Resolve(ctx, ft, value, integrationID)
		if err == nil {
			return rule, first, true, nil
		}
		if !errors.Is(err, ghg.ErrMappingNotFound) {
			return mapping.Rule{}, first, false, err
		}
	}
	return mapping.Rule{}, first, false, nil
}

// build assembles the canonical record for a raw record and its rule.
func (n *Normalizer) build(raw RawRecord, rule mapping.Rule, integrationID string, opts Options) (ghg.Record, error) {
	recErr := func(kind error, cause error) error {
		return &ghg.RecordError{
			Kind:            kind,
			SourceReference: raw.SourceReference,
			Key:             string(rule.SourceFieldType) + "=" + rule.SourceFieldValue,
			Err:             cause,
		}
	}

	if len(raw.Problems) > 0 {
		return ghg.Record{}, recErr(ghg.ErrInvalidRecord, errors.New(strings.Join(raw.Problems, "; ")))
	}
	if raw.Date.IsZero() {
		return ghg.Record{}, recErr(ghg.ErrInvalidRecord, errors.New("missing activity date"))
	}
	if raw.Amount.IsNegative() || raw.SpendAmount.IsNegative() {
		return ghg.Record{}, recErr(ghg.ErrInvalidRecord, errors.New("negative amount"))
	}

	end := raw.PeriodEnd
	if end.IsZero() {
		end = raw.Date
	}
	if end.Before(raw.Date) {
		return ghg.Record{}, recErr(ghg.ErrInvalidRecord, errors.New("period ends before it starts"))
	}

	rec := ghg.Record{
		ID:              ghg.NewID(),
		OwnerID:         opts.OwnerID,
		Scope:           rule.TargetScope,
		Category:        rule.TargetCategory,
		Subcategory:     firstNonEmpty(rule.TargetSubcategory, raw.Subcategory),
		PeriodStart:     raw.Date,
		PeriodEnd:       end,
		Provenance:      opts.Provenance,
		Status:          ghg.StatusPendingFactor,
		Facility:        raw.Facility,
		Description:     raw.Description,
		SourceReference: raw.SourceReference,
		IntegrationID:   integrationID,
		SyncRunID:       opts.SyncRunID,
		CreatedAt:       n.now().UTC(),
	}
	if rule.TargetScope == ghg.Scope2 {
		rec.CalculationMethod = rule.CalculationMethod
		if raw.CalculationMethod.Valid() {
			rec.CalculationMethod = raw.CalculationMethod
		}
		if rec.CalculationMethod == "" {
			rec.CalculationMethod = ghg.MethodLocationBased
		}
	}
	if !raw.SpendAmount.IsZero() && raw.Currency != "" {
		rec.Spend = &ghg.Spend{Amount: raw.SpendAmount, Currency: strings.ToUpper(raw.Currency)}
	}

	if spendOnly(raw) {
		rec.ActivityAmount, rec.ActivityUnit = spendActivity(raw)
		rec.DataQuality = firstQuality(raw.DataQuality, ghg.QualityEstimated)
	} else {
		amount, unit, err := convertAmount(rule.UnitConversion, raw.Amount, raw.Unit)
		if err != nil {
			return ghg.Record{}, recErr(ghg.ErrUnitConversion, err)
		}
		rec.ActivityAmount, rec.ActivityUnit = amount, unit
		rec.DataQuality = firstQuality(raw.DataQuality, ghg.QualityMeasured)
	}

	if raw.EmissionFactor != nil {
		if err := rec.AttachFactor(*raw.EmissionFactor); err != nil {
			return ghg.Record{}, recErr(ghg.ErrUnitConversion, err)
		}
		rec.DataQuality = firstQuality(raw.DataQuality, ghg.QualitySupplierProvided)
	}
	if err := rec.Validate(); err != nil {
		return ghg.Record{}, recErr(ghg.ErrInvalidRecord, err)
	}
	return rec, nil
}

// spendOnly reports whether the record carries money but no physical quantity.
func spendOnly(raw RawRecord) bool {
	if greenops.IsCurrency(raw.Unit) {
		return true
	}
	return raw.Amount.IsZero() && !raw.SpendAmount.IsZero()
}

func spendActivity(raw RawRecord) (decimal.Decimal, string) {
	if greenops.IsCurrency(raw.Unit) {
		return raw.Amount, strings.ToUpper(raw.Unit)
	}
	return raw.SpendAmount, strings.ToUpper(raw.Currency)
}

// convertAmount applies a rule's unit conversion to a raw quantity.
//
// With no conversion the raw amount and unit pass through. Otherwise a raw
// unit that is empty or equals SourceUnit is scaled by Factor; a raw unit
// already in DefaultUnit passes through; a raw unit of the same dimension is
// converted; anything else is an error.
func convertAmount(uc *mapping.UnitConversion, amount decimal.Decimal, unit string) (decimal.Decimal, string, error) {
	unit = strings.TrimSpace(unit)
	if uc == nil {
		if unit == "" {
			return decimal.Zero, "", errors.New("record has no unit and its rule declares none")
		}
		return amount, unit, nil
	}

	factor := uc.Factor
	if factor.IsZero() {
		factor = decimal.NewFromInt(1)
	}

	switch {
	case unit == "" || (uc.SourceUnit != "" && greenops.SameUnit(unit, uc.SourceUnit)):
		return amount.Mul(factor), uc.DefaultUnit, nil
	case greenops.SameUnit(unit, uc.DefaultUnit):
		return amount, uc.DefaultUnit, nil
	default:
		converted, err := greenops.Convert(amount, unit, uc.DefaultUnit)
		if err != nil {
			return decimal.Zero, "", fmt.Errorf("%s is not convertible to %s: %w", unit, uc.DefaultUnit, err)
		}
		return converted, uc.DefaultUnit, nil
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func firstQuality(q, fallback ghg.DataQuality) ghg.DataQuality {
	if q.Valid() {
		return q
	}
	return fallback
}
