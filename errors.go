package bloomfilter

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidErrorRate is returned when the target error rate is not in (0, 1).
	ErrInvalidErrorRate = errors.New("bloomfilter: error rate must be in (0, 1)")

	// ErrInvalidCapacity is returned when the expected element count is not positive.
	ErrInvalidCapacity = errors.New("bloomfilter: capacity must be positive")

	// ErrParameterInvariant is returned when derived or explicit parameters
	// violate the filter's invariants.
	ErrParameterInvariant = errors.New("bloomfilter: parameter invariant violated")

	// ErrParameterOverflow is returned when the derived bit count does not fit
	// the 32-bit wire format.
	ErrParameterOverflow = errors.New("bloomfilter: bit count overflows int32")

	// ErrNilHashFunction is returned when a constructor gets a nil hash function.
	ErrNilHashFunction = errors.New("bloomfilter: hash function is nil")

	// ErrIncompatibleFilters is returned when combining filters with different
	// bit counts or hash function counts.
	ErrIncompatibleFilters = errors.New("bloomfilter: incompatible filters")
)

// ParameterError reports the offending parameter set.
//
// It unwraps to ErrParameterInvariant.
type ParameterError struct {
	BitCount          int
	HashFunctionCount int
	Capacity          int
	Reason            string
}

func (e *ParameterError) Error() string {
	return fmt.Sprintf("bloomfilter: invalid parameters m=%d k=%d n=%d: %s",
		e.BitCount, e.HashFunctionCount, e.Capacity, e.Reason)
}

func (e *ParameterError) Unwrap() error { return ErrParameterInvariant }
