package doe

import (
	"fmt"
	"math"
)

//////
// Const, vars, types.
//////

// Operator names a threshold comparison.
type Operator string

// The supported threshold operators. Equality and inequality are evaluated
// within the condition's tolerance, never as exact float comparison.
const (
	OpLess         Operator = "<"
	OpLessEqual    Operator = "<="
	OpGreater      Operator = ">"
	OpGreaterEqual Operator = ">="
	OpEqual        Operator = "="
	OpNotEqual     Operator = "!="
)

// Combiner names a logic combination of per-column condition masks.
type Combiner string

// The supported logic combiners.
const (
	CombinerAnd Combiner = "AND"
	CombinerOr  Combiner = "OR"
	CombinerXor Combiner = "XOR"
)

// ThresholdCondition compares numerical cells against a threshold.
type ThresholdCondition struct {
	// Operator selects the comparison.
	Operator Operator

	// Threshold is the value compared against.
	Threshold float64

	// Tolerance is the numerical slack used by OpEqual and OpNotEqual:
	// a cell within Tolerance of Threshold counts as equal.
	Tolerance float64
}

// Evaluate returns one boolean per cell. Non-numeric cells are a data
// error: threshold conditions only make sense on numerical columns.
func (c ThresholdCondition) Evaluate(values []Value) ([]bool, error) {
	mask := make([]bool, len(values))

	for i, v := range values {
		f, ok := AsFloat(v)
		if !ok {
			return nil, fmt.Errorf("%w: threshold condition on non-numeric value %v", ErrData, v)
		}

		switch c.Operator {
		case OpLess:
			mask[i] = f < c.Threshold
		case OpLessEqual:
			mask[i] = f <= c.Threshold
		case OpGreater:
			mask[i] = f > c.Threshold
		case OpGreaterEqual:
			mask[i] = f >= c.Threshold
		case OpEqual:
			mask[i] = math.Abs(f-c.Threshold) <= c.Tolerance
		case OpNotEqual:
			mask[i] = math.Abs(f-c.Threshold) > c.Tolerance
		default:
			return nil, fmt.Errorf("%w: unknown threshold operator %q", ErrConfiguration, c.Operator)
		}
	}

	return mask, nil
}

// SubSelectionCondition restricts cells to a fixed set of allowed values.
type SubSelectionCondition struct {
	// Selection holds the allowed values.
	Selection []Value
}

// Evaluate returns true for cells contained in the selection.
func (c SubSelectionCondition) Evaluate(values []Value) ([]bool, error) {
	allowed := make(map[string]struct{}, len(c.Selection))
	for _, s := range c.Selection {
		allowed[valueKey(s)] = struct{}{}
	}

	mask := make([]bool, len(values))

	for i, v := range values {
		_, mask[i] = allowed[valueKey(v)]
	}

	return mask, nil
}

//////
// Helper functions.
//////

// combineMasks folds per-column condition masks into one row mask with the
// given combiner. All masks must have equal length.
func combineMasks(combiner Combiner, masks ...[]bool) ([]bool, error) {
	if len(masks) == 0 {
		return nil, fmt.Errorf("%w: no condition masks to combine", ErrConfiguration)
	}

	out := make([]bool, len(masks[0]))
	copy(out, masks[0])

	for _, m := range masks[1:] {
		if len(m) != len(out) {
			return nil, fmt.Errorf("%w: condition mask length mismatch", ErrData)
		}

		for i, b := range m {
			switch combiner {
			case CombinerAnd:
				out[i] = out[i] && b
			case CombinerOr:
				out[i] = out[i] || b
			case CombinerXor:
				out[i] = out[i] != b
			default:
				return nil, fmt.Errorf("%w: unknown combiner %q", ErrConfiguration, combiner)
			}
		}
	}

	return out, nil
}
