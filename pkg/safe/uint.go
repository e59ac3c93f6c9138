// Package safe provides overflow-checked numeric helpers for state amounts and wire indices.
package safe

import (
	"errors"
	"fmt"
	"math"
)

// ErrOverflow is returned when an arithmetic result does not fit into the target type.
var ErrOverflow = errors.New("arithmetic overflow")

type integer interface {
	~int | ~int32 | ~int64 | ~uint | ~uint16 | ~uint32 | ~uint64
}

// Uint16 converts an integer to uint16 with range validation.
func Uint16[T integer](v T) (uint16, error) {
	if !inRange(v, math.MaxUint16) {
		return 0, fmt.Errorf("value %d out of uint16 range", v)
	}
	return uint16(v), nil
}

// Uint32 converts an integer to uint32 with range validation.
func Uint32[T integer](v T) (uint32, error) {
	if !inRange(v, math.MaxUint32) {
		return 0, fmt.Errorf("value %d out of uint32 range", v)
	}
	return uint32(v), nil
}

// Uint64 converts an integer to uint64 while guarding against negatives.
func Uint64[T integer](v T) (uint64, error) {
	if v < 0 {
		return 0, fmt.Errorf("value %d out of uint64 range", v)
	}
	return uint64(v), nil
}

// Add64 returns a+b or ErrOverflow.
func Add64(a, b uint64) (uint64, error) {
	sum := a + b
	if sum < a {
		return 0, fmt.Errorf("%d + %d: %w", a, b, ErrOverflow)
	}
	return sum, nil
}

// Sum64 adds all values, failing on the first overflow.
func Sum64(values ...uint64) (uint64, error) {
	var total uint64
	for _, v := range values {
		next, err := Add64(total, v)
		if err != nil {
			return 0, err
		}
		total = next
	}
	return total, nil
}

func inRange[T integer](v T, limit uint64) bool {
	if v < 0 {
		return false
	}
	return uint64(v) <= limit
}
