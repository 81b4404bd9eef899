package ghg

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// constError is an immutable error type for sentinel errors.
type constError string

func (e constError) Error() string { return string(e) }

// Error taxonomy shared by ingestion, aggregation and rendering.
// Compare with errors.Is; the structured types below unwrap to these.
var (
	// ErrMappingNotFound means a raw record's source key has no active mapping rule.
	// Recoverable: the record is routed to the unmapped list.
	ErrMappingNotFound = constError("mapping not found")

	// ErrUnitConversion means a record's unit is incompatible with the expected unit.
	// Fails that single record only.
	ErrUnitConversion = constError("unit conversion error")

	// ErrCategoryResolution means a scope 3 category id matched none of the 15 categories.
	// Fatal to the aggregation call.
	ErrCategoryResolution = constError("category resolution error")

	// ErrIntegrationUnavailable means the external system is unreachable or not connected.
	// Aborts the sync run with no partial commit.
	ErrIntegrationUnavailable = constError("integration unavailable")

	// ErrRenderInconsistency means a declared total does not reconcile with its components.
	ErrRenderInconsistency = constError("render inconsistency")

	// ErrInvalidRecord means a canonical record violates a model invariant.
	ErrInvalidRecord = constError("invalid emission record")

	// ErrPendingFactor means an operation needed a calculated record but got a pending one.
	ErrPendingFactor = constError("record is pending factor calculation")

	// ErrAlreadyCalculated means a factor was attached to a record that already has one.
	ErrAlreadyCalculated = constError("record already calculated")
)

// RecordError is a per-record failure carrying the offending record's source reference.
type RecordError struct {
	// Kind is one of the taxonomy sentinels.
	Kind error
	// SourceReference identifies the record in the external system.
	SourceReference string
	// Key is the source field key the record was resolved by, when known.
	Key string
	// Err is the underlying cause, if any.
	Err error
}

func (e *RecordError) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind.Error())
	if e.SourceReference != "" {
		fmt.Fprintf(&b, " (source %s)", e.SourceReference)
	}
	if e.Key != "" {
		fmt.Fprintf(&b, " [%s]", e.Key)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Unwrap exposes both the taxonomy kind and the cause to errors.Is.
func (e *RecordError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// CategoryResolutionError reports a scope 3 category id that could not be matched.
type CategoryResolutionError struct {
	Category        string
	SourceReference string
}

func (e *CategoryResolutionError) Error() string {
	msg := fmt.Sprintf("%s: unknown scope 3 category %q", ErrCategoryResolution, e.Category)
	if e.SourceReference != "" {
		msg += fmt.Sprintf(" (source %s)", e.SourceReference)
	}
	return msg
}

func (e *CategoryResolutionError) Unwrap() error { return ErrCategoryResolution }

// IntegrationUnavailableError reports an unreachable or disconnected integration.
type IntegrationUnavailableError struct {
	IntegrationID string
	Err           error
}

func (e *IntegrationUnavailableError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", ErrIntegrationUnavailable, e.IntegrationID)
	}
	return fmt.Sprintf("%s: %s: %v", ErrIntegrationUnavailable, e.IntegrationID, e.Err)
}

func (e *IntegrationUnavailableError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrIntegrationUnavailable}
	}
	return []error{ErrIntegrationUnavailable, e.Err}
}

// Mismatch is one total that failed to reconcile.
type Mismatch struct {
	Metric   string
	Declared decimal.Decimal
	Computed decimal.Decimal
}

// RenderInconsistencyError lists every total that failed to reconcile.
type RenderInconsistencyError struct {
	Mismatches []Mismatch
}

func (e *RenderInconsistencyError) Error() string {
	parts := make([]string, 0, len(e.Mismatches))
	for _, m := range e.Mismatches {
		parts = append(parts, fmt.Sprintf("%s declared %s, components sum to %s",
			m.Metric, m.Declared.String(), m.Computed.String()))
	}
	return fmt.Sprintf("%s: %s", ErrRenderInconsistency, strings.Join(parts, "; "))
}

func (e *RenderInconsistencyError) Unwrap() error { return ErrRenderInconsistency }
