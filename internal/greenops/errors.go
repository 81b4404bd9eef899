package greenops

// constError is an immutable error type for sentinel errors.
// It implements the error interface and provides compile-time safety.
type constError string

func (e constError) Error() string { return string(e) }

// Error types for unit conversion and equivalency calculations.
// These are sentinel errors that can be compared with errors.Is().
var (
	// ErrInvalidUnit indicates a unit string that is not in the unit table.
	ErrInvalidUnit = constError("invalid unit")

	// ErrIncompatibleUnits indicates a conversion between two units of different dimensions
	// (for example kWh to liters, or USD to EUR).
	ErrIncompatibleUnits = constError("incompatible units")

	// ErrNegativeValue indicates a negative quantity.
	// Activity amounts and emission totals cannot be negative.
	ErrNegativeValue = constError("negative value")

	// ErrCalculationOverflow indicates a value too large to calculate safely.
	ErrCalculationOverflow = constError("calculation overflow")
)
