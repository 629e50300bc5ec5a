package cond

import (
	"cmp"
	"fmt"
	"math"
	"reflect"
	"strings"
	"time"
)

// compareValues orders two non-nil values. Integers of any width compare as
// int64, mixed numerics as float64, string and []byte as strings.
func compareValues(a, b any) (int, error) {
	if ai, ok := toInt64(a); ok {
		if bi, ok := toInt64(b); ok {
			return cmp.Compare(ai, bi), nil
		}
	}
	if af, ok := toFloat64(a); ok {
		if bf, ok := toFloat64(b); ok {
			return cmp.Compare(af, bf), nil
		}
	}
	if as, ok := toString(a); ok {
		if bs, ok := toString(b); ok {
			return strings.Compare(as, bs), nil
		}
	}
	if at, ok := a.(time.Time); ok {
		if bt, ok := b.(time.Time); ok {
			return at.Compare(bt), nil
		}
	}
	if ab, ok := a.(bool); ok {
		if bb, ok := b.(bool); ok {
			switch {
			case ab == bb:
				return 0, nil
			case !ab:
				return -1, nil
			default:
				return 1, nil
			}
		}
	}
	return 0, fmt.Errorf("cannot compare %T with %T", a, b)
}

// valuesEqual reports equality with the same widening as compareValues.
// Two nils are equal; nil never equals a non-nil value.
func valuesEqual(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if c, err := compareValues(a, b); err == nil {
		return c == 0
	}
	return reflect.DeepEqual(a, b)
}

func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int8:
		return int64(n), true
	case int16:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case uint:
		if uint64(n) > math.MaxInt64 {
			return 0, false
		}
		return int64(n), true
	case uint8:
		return int64(n), true
	case uint16:
		return int64(n), true
	case uint32:
		return int64(n), true
	case uint64:
		if n > math.MaxInt64 {
			return 0, false
		}
		return int64(n), true
	default:
		return 0, false
	}
}

func toFloat64(v any) (float64, bool) {
	switch n := v.(type) {
	case float32:
		return float64(n), true
	case float64:
		return n, true
	case uint:
		return float64(n), true
	case uint64:
		return float64(n), true
	}
	if i, ok := toInt64(v); ok {
		return float64(i), true
	}
	return 0, false
}

func toString(v any) (string, bool) {
	switch s := v.(type) {
	case string:
		return s, true
	case []byte:
		return string(s), true
	default:
		return "", false
	}
}
