// Package compare provides the strict-weak ordering the sorted containers
// key by. The comparator is a zero-size functor in the source layouts, so
// it contributes no bytes to any control block; only the Go side orders.
package compare

import (
	"github.com/memscape/eastl/errors"
)

// Less reports whether a orders before b. Both values must be the same
// ordered type: an integral, a float or a string.
func Less(a, b any) (bool, error) {
	switch x := a.(type) {
	case uint8:
		if y, ok := b.(uint8); ok {
			return x < y, nil
		}
	case uint16:
		if y, ok := b.(uint16); ok {
			return x < y, nil
		}
	case uint32:
		if y, ok := b.(uint32); ok {
			return x < y, nil
		}
	case uint64:
		if y, ok := b.(uint64); ok {
			return x < y, nil
		}
	case int8:
		if y, ok := b.(int8); ok {
			return x < y, nil
		}
	case int16:
		if y, ok := b.(int16); ok {
			return x < y, nil
		}
	case int32:
		if y, ok := b.(int32); ok {
			return x < y, nil
		}
	case int64:
		if y, ok := b.(int64); ok {
			return x < y, nil
		}
	case float32:
		if y, ok := b.(float32); ok {
			return x < y, nil
		}
	case float64:
		if y, ok := b.(float64); ok {
			return x < y, nil
		}
	case string:
		if y, ok := b.(string); ok {
			return x < y, nil
		}
	}
	return false, errors.New(errors.PhaseTraverse, errors.KindTypeMismatch).
		Value(a).
		Detail("values %T and %T are not comparable", a, b).
		Build()
}

// Equal reports whether a and b hold the same ordered value: neither
// orders before the other.
func Equal(a, b any) (bool, error) {
	ab, err := Less(a, b)
	if err != nil {
		return false, err
	}
	ba, err := Less(b, a)
	if err != nil {
		return false, err
	}
	return !ab && !ba, nil
}
