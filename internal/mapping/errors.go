package mapping

// constError is an immutable error type for sentinel errors.
type constError string

func (e constError) Error() string { return string(e) }

var (
	// ErrInvalidRule means a rule is missing a required field or has an invalid value.
	ErrInvalidRule = constError("invalid mapping rule")

	// ErrUnknownIntegration means a rule references an integration that does not exist.
	ErrUnknownIntegration = constError("unknown integration")

	// ErrUnauthorized means the integration belongs to another organization.
	ErrUnauthorized = constError("integration not authorized for organization")

	// ErrStoreCorrupted indicates the rules file exists but contains invalid data.
	// Callers should abort rather than start from an empty rule set.
	ErrStoreCorrupted = constError("mapping rules file corrupted")
)

// RuleError is the failure of one rule in an Upsert batch.
type RuleError struct {
	// Index is the rule's position in the input slice.
	Index int
	Key   Key
	Err   error
}

func (e *RuleError) Error() string {
	return "rule " + e.Key.String() + ": " + e.Err.Error()
}

func (e *RuleError) Unwrap() error { return e.Err }
