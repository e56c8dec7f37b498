package bloomfilter

import (
	"fmt"
	"math"
)

// maxHashFunctions bounds the parameter search: k is tried from 1 to 19.
const maxHashFunctions = 19

const (
	// DefaultErrorRate is the target false-positive rate used by NewString
	// callers that have no better estimate.
	DefaultErrorRate = 0.001
	// DefaultCapacity is the expected element count paired with DefaultErrorRate.
	DefaultCapacity = 1_000_000
)

// Parameters describes the size of a filter.
//
// ErrorRate and Capacity record the design target. They are zero for filters
// built from explicit parameters or loaded from a stream with a different
// shape.
type Parameters struct {
	BitCount          int     `json:"bit_count"`
	HashFunctionCount int     `json:"hash_function_count"`
	ErrorRate         float64 `json:"error_rate,omitempty"`
	Capacity          int     `json:"capacity,omitempty"`
}

// OptimalParameters returns the smallest bit count, and its hash function
// count, that keeps the false-positive rate at errorRate for capacity
// elements.
//
// For every k in [1, 19] the candidate size is ceil(k*n / -ln(1 - ε^(1/k))).
// The smallest candidate wins; ties keep the lower k. The result must satisfy
// m > n and k > 1, otherwise a *ParameterError is returned. In practice this
// rejects error rates above roughly 0.39, where a single hash function would
// be optimal.
func OptimalParameters(errorRate float64, capacity int) (Parameters, error) {
	if !(errorRate > 0 && errorRate < 1) {
		return Parameters{}, fmt.Errorf("%w: %v", ErrInvalidErrorRate, errorRate)
	}
	if capacity <= 0 {
		return Parameters{}, fmt.Errorf("%w: %d", ErrInvalidCapacity, capacity)
	}

	bestM := math.Inf(1)
	bestK := 0
	n := float64(capacity)
	for k := 1; k <= maxHashFunctions; k++ {
		m := math.Ceil(float64(k) * n / -math.Log(1-math.Pow(errorRate, 1/float64(k))))
		if m < bestM {
			bestM, bestK = m, k
		}
	}

	p := Parameters{ErrorRate: errorRate, Capacity: capacity, HashFunctionCount: bestK}
	if bestK == 0 || bestM > math.MaxInt32 {
		return p, fmt.Errorf("%w: ε=%v n=%d needs %v bits", ErrParameterOverflow, errorRate, capacity, bestM)
	}
	p.BitCount = int(bestM)

	if p.BitCount <= capacity {
		return p, &ParameterError{BitCount: p.BitCount, HashFunctionCount: bestK, Capacity: capacity, Reason: "bit count must exceed capacity"}
	}
	if bestK <= 1 {
		return p, &ParameterError{BitCount: p.BitCount, HashFunctionCount: bestK, Capacity: capacity, Reason: "more than one hash function required"}
	}
	return p, nil
}

// validateExplicit checks parameters supplied directly by the caller.
func validateExplicit(m, k int) error {
	if m < 1 || m > math.MaxInt32 {
		return &ParameterError{BitCount: m, HashFunctionCount: k, Reason: "bit count must be in [1, 2^31-1]"}
	}
	if k < 1 || k > math.MaxInt32 {
		return &ParameterError{BitCount: m, HashFunctionCount: k, Reason: "hash function count must be positive"}
	}
	return nil
}
