package ghg

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/shopspring/decimal"

	"github.com/rshade/ghgfocus/internal/greenops"
)

//nolint:gochecknoglobals // Fixed tolerance for the total invariant.
var (
	// TotalTolerance is the largest allowed gap, in metric tons, between a record's
	// stored total and amount × factor recomputed from its units.
	TotalTolerance = decimal.RequireFromString("0.000001")
)

// Status is the record's position in the ingest-then-enrich state machine.
type Status int

const (
	// StatusPendingFactor records carry an activity amount but no emission factor yet.
	StatusPendingFactor Status = iota
	// StatusCalculated records carry a factor and a derived total.
	StatusCalculated
)

// String returns the wire form of the status.
func (s Status) String() string {
	switch s {
	case StatusPendingFactor:
		return "pending_factor_calculation"
	case StatusCalculated:
		return "calculated"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// MarshalJSON encodes the status as its string form.
func (s Status) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// UnmarshalJSON decodes the string form.
func (s *Status) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}
	parsed, err := ParseStatus(str)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// ParseStatus parses the wire form of a status.
func ParseStatus(str string) (Status, error) {
	switch str {
	case "pending_factor_calculation":
		return StatusPendingFactor, nil
	case "calculated":
		return StatusCalculated, nil
	default:
		return 0, fmt.Errorf("%w: unknown status %q", ErrInvalidRecord, str)
	}
}

// Factor is an emission factor with its unit and publishing body.
type Factor struct {
	Value  decimal.Decimal `json:"value" yaml:"value"`
	Unit   string          `json:"unit" yaml:"unit"`
	Source string          `json:"source" yaml:"source"`
}

// Calculation is present only on calculated records.
type Calculation struct {
	EmissionFactor       decimal.Decimal `json:"emission_factor"`
	EmissionFactorUnit   string          `json:"emission_factor_unit"`
	EmissionFactorSource string          `json:"emission_factor_source"`
	// TotalCO2e is in metric tons.
	TotalCO2e decimal.Decimal `json:"total_co2e"`
}

// Spend is the monetary amount behind a spend-based record.
type Spend struct {
	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency"`
}

// Record is a canonical emission record.
type Record struct {
	ID                string            `json:"id"`
	OwnerID           string            `json:"owner_id"`
	Scope             Scope             `json:"scope"`
	Category          string            `json:"category"`
	Subcategory       string            `json:"subcategory,omitempty"`
	ActivityAmount    decimal.Decimal   `json:"activity_amount"`
	ActivityUnit      string            `json:"activity_unit"`
	CalculationMethod CalculationMethod `json:"calculation_method,omitempty"`
	PeriodStart       time.Time         `json:"period_start"`
	PeriodEnd         time.Time         `json:"period_end"`
	DataQuality       DataQuality       `json:"data_quality"`
	Provenance        Provenance        `json:"provenance"`
	Status            Status            `json:"status"`
	Calculation       *Calculation      `json:"calculation,omitempty"`
	Spend             *Spend            `json:"spend,omitempty"`

	Facility        string    `json:"facility,omitempty"`
	Description     string    `json:"description,omitempty"`
	SourceReference string    `json:"source_reference,omitempty"`
	IntegrationID   string    `json:"integration_id,omitempty"`
	SyncRunID       string    `json:"sync_run_id,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

// NewID returns a new sortable record identifier.
func NewID() string {
	return ulid.Make().String()
}

// AttachFactor moves a pending record to calculated by attaching f and
// deriving TotalCO2e in metric tons.
//
// Unit mismatches surface as ErrUnitConversion. Calling AttachFactor on a
// calculated record returns ErrAlreadyCalculated and leaves it unchanged.
func (r *Record) AttachFactor(f Factor) error {
	if r.Status == StatusCalculated {
		return ErrAlreadyCalculated
	}
	total, err := greenops.EmissionsTonnes(r.ActivityAmount, r.ActivityUnit, f.Value, f.Unit)
	if err != nil {
		return &RecordError{Kind: ErrUnitConversion, SourceReference: r.SourceReference, Err: err}
	}
	r.Calculation = &Calculation{
		EmissionFactor:       f.Value,
		EmissionFactorUnit:   f.Unit,
		EmissionFactorSource: f.Source,
		TotalCO2e:            total,
	}
	r.Status = StatusCalculated
	return nil
}

// TotalCO2e returns the derived total, or zero for pending records.
func (r *Record) TotalCO2e() decimal.Decimal {
	if r.Calculation == nil {
		return decimal.Zero
	}
	return r.Calculation.TotalCO2e
}

// Validate checks every model invariant and reports all violations joined.
func (r *Record) Validate() error {
	var errs []error
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: %s", ErrInvalidRecord, fmt.Sprintf(format, args...)))
	}

	if r.ID == "" {
		add("missing id")
	}
	if !r.Scope.Valid() {
		add("invalid scope %d", int(r.Scope))
	} else if err := ValidateCategory(r.Scope, r.Category); err != nil {
		errs = append(errs, err)
	}
	if r.ActivityAmount.IsNegative() {
		add("negative activity amount %s", r.ActivityAmount)
	}
	if strings.TrimSpace(r.ActivityUnit) == "" {
		add("missing activity unit")
	}
	switch {
	case r.Scope == Scope2 && !r.CalculationMethod.Valid():
		add("scope 2 record needs location_based or market_based method, got %q", r.CalculationMethod)
	case r.Scope != Scope2 && r.CalculationMethod != "":
		add("scope %d record must not carry a calculation method", int(r.Scope))
	}
	if r.PeriodEnd.Before(r.PeriodStart) {
		add("period end %s before start %s", r.PeriodEnd.Format(time.DateOnly), r.PeriodStart.Format(time.DateOnly))
	}
	if r.DataQuality != "" && !r.DataQuality.Valid() {
		add("unknown data quality %q", r.DataQuality)
	}
	if r.Provenance != "" && !r.Provenance.Valid() {
		add("unknown provenance %q", r.Provenance)
	}

	switch r.Status {
	case StatusPendingFactor:
		if r.Calculation != nil {
			add("pending record carries a calculation")
		}
	case StatusCalculated:
		if r.Calculation == nil {
			add("calculated record has no calculation")
			break
		}
		if err := r.checkTotal(); err != nil {
			errs = append(errs, err)
		}
	default:
		add("unknown status %d", int(r.Status))
	}

	return errors.Join(errs...)
}

// checkTotal recomputes amount × factor and compares it to the stored total.
func (r *Record) checkTotal() error {
	c := r.Calculation
	want, err := greenops.EmissionsTonnes(r.ActivityAmount, r.ActivityUnit, c.EmissionFactor, c.EmissionFactorUnit)
	if err != nil {
		return &RecordError{Kind: ErrUnitConversion, SourceReference: r.SourceReference, Err: err}
	}
	if c.TotalCO2e.Sub(want).Abs().GreaterThan(TotalTolerance) {
		return fmt.Errorf("%w: total %s differs from amount × factor %s", ErrInvalidRecord, c.TotalCO2e, want)
	}
	return nil
}

// Calculated returns the aggregatable view of a calculated record.
// Pending records return ErrPendingFactor.
func (r Record) Calculated() (CalculatedRecord, error) {
	if r.Status != StatusCalculated || r.Calculation == nil {
		return CalculatedRecord{}, &RecordError{Kind: ErrPendingFactor, SourceReference: r.SourceReference}
	}
	calc := *r.Calculation
	r.Calculation = &calc
	return CalculatedRecord{rec: r}, nil
}

// CalculatedRecord is a record known to carry a factor and total.
// The only way to build one is Record.Calculated, so anything holding a
// CalculatedRecord cannot be summing a pending record.
type CalculatedRecord struct {
	rec Record
}

// Record returns a copy of the underlying record.
func (c CalculatedRecord) Record() Record {
	r := c.rec
	if r.Calculation != nil {
		calc := *r.Calculation
		r.Calculation = &calc
	}
	return r
}

func (c CalculatedRecord) ID() string                { return c.rec.ID }
func (c CalculatedRecord) Scope() Scope              { return c.rec.Scope }
func (c CalculatedRecord) Category() string          { return c.rec.Category }
func (c CalculatedRecord) Method() CalculationMethod { return c.rec.CalculationMethod }
func (c CalculatedRecord) PeriodStart() time.Time    { return c.rec.PeriodStart }
func (c CalculatedRecord) PeriodEnd() time.Time      { return c.rec.PeriodEnd }
func (c CalculatedRecord) DataQuality() DataQuality  { return c.rec.DataQuality }
func (c CalculatedRecord) SourceReference() string   { return c.rec.SourceReference }
func (c CalculatedRecord) Facility() string          { return c.rec.Facility }

// TotalCO2e returns the record's total in tonnes. The zero value reports zero.
func (c CalculatedRecord) TotalCO2e() decimal.Decimal {
	if c.rec.Calculation == nil {
		return decimal.Zero
	}
	return c.rec.Calculation.TotalCO2e
}

// SplitCalculated partitions records into calculated views and still-pending records.
func SplitCalculated(records []Record) ([]CalculatedRecord, []Record) {
	calculated := make([]CalculatedRecord, 0, len(records))
	var pending []Record
	for _, r := range records {
		c, err := r.Calculated()
		if err != nil {
			pending = append(pending, r)
			continue
		}
		calculated = append(calculated, c)
	}
	return calculated, pending
}
