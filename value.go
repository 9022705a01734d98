package doe

import (
	"fmt"
	"math"
	"strconv"
)

//////
// Cell values.
//////

// Value is a single cell of a Table. Exactly two concrete types flow through
// the package: float64 for numerical parameters and string for label-like
// parameters (categorical, task, substance, custom). Anything else is a
// programming error and is rejected by the table builders.
type Value = any

// IsNumericValue reports whether v carries a numerical payload.
func IsNumericValue(v Value) bool {
	_, ok := v.(float64)
	return ok
}

// AsFloat extracts the numerical payload of v.
//
// Returns:
// - float64: The payload, if v is numeric
// - bool: Whether the extraction succeeded
func AsFloat(v Value) (float64, bool) {
	f, ok := v.(float64)
	return f, ok
}

// valueString renders a cell for label comparisons. Floats use the shortest
// representation that round-trips, so 25 and 25.0 collapse to the same label.
func valueString(v Value) string {
	switch c := v.(type) {
	case float64:
		return strconv.FormatFloat(c, 'g', -1, 64)
	case string:
		return c
	default:
		return fmt.Sprintf("%v", c)
	}
}

// valueKey produces a collision-free map key for a cell. The type prefix
// keeps the string "25" distinct from the number 25.
func valueKey(v Value) string {
	switch c := v.(type) {
	case float64:
		return "f:" + strconv.FormatFloat(c, 'g', -1, 64)
	case string:
		return "s:" + c
	default:
		return "x:" + fmt.Sprintf("%v", c)
	}
}

// valuesEqual compares two cells. Cells of different concrete types are
// never equal; numeric cells compare exactly (fuzzy matching is a parameter
// concern, not a cell concern).
func valuesEqual(a, b Value) bool {
	switch ca := a.(type) {
	case float64:
		cb, ok := b.(float64)
		return ok && ca == cb
	case string:
		cb, ok := b.(string)
		return ok && ca == cb
	default:
		return false
	}
}

// floatsToValues converts a slice of float64 into generic cells. Used when
// feeding numerical parameter values into table columns.
func floatsToValues(floats []float64) []Value {
	values := make([]Value, len(floats))
	for i, f := range floats {
		values[i] = f
	}

	return values
}

// stringsToValues converts a slice of labels into generic cells.
func stringsToValues(labels []string) []Value {
	values := make([]Value, len(labels))
	for i, s := range labels {
		values[i] = s
	}

	return values
}

// isFinite reports whether f is a usable grid value (finite, non-NaN).
func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
