package utils

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// ToFloat64 converts decoded JSON and other numeric values to float64.
// Returns the converted value and true if successful, or 0 and false if conversion fails.
// Supports: all Go numeric types, json.Number and numeric strings
func ToFloat64(v interface{}) (float64, bool) {
	if v == nil {
		return 0, false
	}

	switch val := v.(type) {
	case float64:
		return val, true
	case float32:
		return float64(val), true
	case int:
		return float64(val), true
	case int8:
		return float64(val), true
	case int16:
		return float64(val), true
	case int32:
		return float64(val), true
	case int64:
		return float64(val), true
	case uint:
		return float64(val), true
	case uint8:
		return float64(val), true
	case uint16:
		return float64(val), true
	case uint32:
		return float64(val), true
	case uint64:
		return float64(val), true
	case json.Number:
		f, err := val.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

// ToNullableFloat64 converts a value to float64, mapping nil and unconvertible
// values to NaN (a missing cell)
func ToNullableFloat64(v interface{}) float64 {
	f, ok := ToFloat64(v)
	if !ok {
		return math.NaN()
	}
	return f
}

// FiniteOrNil returns a pointer to v, or nil when v is NaN or infinite.
// encoding/json cannot represent non-finite floats.
func FiniteOrNil(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}
