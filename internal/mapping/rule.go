// Package mapping holds the field mapping registry: declarative rules that
// translate an external system's account, category, vendor or cost center
// identifiers into a canonical scope, category and unit.
//
// Rules are keyed by (integration, source field type, source field value) and
// are never physically deleted. Deactivating a rule clears Active and appends
// to its history so past ingestions that relied on it stay auditable.
package mapping

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rshade/ghgfocus/internal/ghg"
)

// FieldType names which source field a rule matches on.
type FieldType string

// Source field types, in the order the normalizer tries them.
const (
	FieldGLAccount       FieldType = "gl_account"
	FieldExpenseCategory FieldType = "expense_category"
	FieldVendor          FieldType = "vendor"
	FieldCostCenter      FieldType = "cost_center"
)

// KeyOrder is the lookup precedence used when deriving a raw record's key.
//
//nolint:gochecknoglobals // Fixed lookup order.
var KeyOrder = []FieldType{FieldGLAccount, FieldExpenseCategory, FieldVendor, FieldCostCenter}

// Valid reports whether t is a known field type.
func (t FieldType) Valid() bool {
	switch t {
	case FieldGLAccount, FieldExpenseCategory, FieldVendor, FieldCostCenter:
		return true
	default:
		return false
	}
}

// Key identifies a rule.
type Key struct {
	IntegrationID string    `json:"integration_id"`
	FieldType     FieldType `json:"source_field_type"`
	Value         string    `json:"source_field_value"`
}

// String renders "integration/field_type=value".
func (k Key) String() string {
	return fmt.Sprintf("%s/%s=%s", k.IntegrationID, k.FieldType, k.Value)
}

// UnitConversion rescales raw amounts into the rule's default unit.
type UnitConversion struct {
	// SourceUnit is the raw unit Factor applies to. Raw records with no unit
	// are treated as being in SourceUnit.
	SourceUnit  string          `json:"source_unit,omitempty" yaml:"source_unit"`
	DefaultUnit string          `json:"default_unit" yaml:"default_unit" validate:"required"`
	Factor      decimal.Decimal `json:"conversion_factor" yaml:"conversion_factor"`
}

// Action is a lifecycle event kind.
type Action string

const (
	// ActionCreated is recorded on the first upsert of a key.
	ActionCreated Action = "created"
	// ActionUpdated is recorded when an upsert changes an existing rule.
	ActionUpdated Action = "updated"
	// ActionDeactivated is recorded on soft delete.
	ActionDeactivated Action = "deactivated"
	// ActionReactivated is recorded when an upsert revives a deactivated rule.
	ActionReactivated Action = "reactivated"
)

// Event is one timestamped change in a rule's history.
type Event struct {
	Action    Action    `json:"action"`
	Actor     string    `json:"actor,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Rule maps one source key to a canonical scope and category.
type Rule struct {
	IntegrationID     string                `json:"integration_id" yaml:"integration_id" validate:"required"`
	SourceFieldType   FieldType             `json:"source_field_type" yaml:"source_field_type" validate:"required,oneof=gl_account expense_category vendor cost_center"`
	SourceFieldValue  string                `json:"source_field_value" yaml:"source_field_value" validate:"required"`
	TargetScope       ghg.Scope             `json:"target_scope" yaml:"target_scope" validate:"required,gte=1,lte=3"`
	TargetCategory    string                `json:"target_category" yaml:"target_category" validate:"required"`
	TargetSubcategory string                `json:"target_subcategory,omitempty" yaml:"target_subcategory"`
	CalculationMethod ghg.CalculationMethod `json:"calculation_method,omitempty" yaml:"calculation_method" validate:"omitempty,oneof=location_based market_based"`
	UnitConversion    *UnitConversion       `json:"unit_conversion,omitempty" yaml:"unit_conversion"`
	Active            bool                  `json:"active" yaml:"active"`

	CreatedAt time.Time `json:"created_at" yaml:"-"`
	UpdatedAt time.Time `json:"updated_at" yaml:"-"`
	History   []Event   `json:"history" yaml:"-"`
}

// Key returns the rule's lookup key.
func (r Rule) Key() Key {
	return Key{IntegrationID: r.IntegrationID, FieldType: r.SourceFieldType, Value: r.SourceFieldValue}
}

// sameTarget reports whether two rules map to the same canonical target.
func (r *Rule) sameTarget(o *Rule) bool {
	if r.TargetScope != o.TargetScope || r.TargetCategory != o.TargetCategory ||
		r.TargetSubcategory != o.TargetSubcategory || r.CalculationMethod != o.CalculationMethod {
		return false
	}
	switch {
	case r.UnitConversion == nil && o.UnitConversion == nil:
		return true
	case r.UnitConversion == nil || o.UnitConversion == nil:
		return false
	default:
		a, b := r.UnitConversion, o.UnitConversion
		return a.SourceUnit == b.SourceUnit && a.DefaultUnit == b.DefaultUnit && a.Factor.Equal(b.Factor)
	}
}

// clone returns a deep copy so callers cannot mutate stored state.
func (r *Rule) clone() Rule {
	c := *r
	if r.UnitConversion != nil {
		uc := *r.UnitConversion
		c.UnitConversion = &uc
	}
	c.History = append([]Event(nil), r.History...)
	return c
}
