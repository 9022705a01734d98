package doe

import (
	"fmt"
	"math"
	"sync"

	"golang.org/x/exp/slices"
)

//////
// Numerical parameters.
//////

// defaultToleranceFraction is the fraction of the smallest adjacent-value
// gap used as the default matching tolerance of a numerical discrete
// parameter. Kept at 10% for compatibility with existing campaigns; note
// that on irregular grids the resulting band can feel generous near dense
// regions and stingy near sparse ones.
const defaultToleranceFraction = 0.1

// NumericalDiscreteParameter is a discrete parameter over a sorted grid of
// numerical setpoints. A query value matches a grid value when their
// distance is at most the tolerance; because the tolerance is required to
// stay strictly below half the smallest gap, a query can match at most one
// grid point, and the closest one wins.
type NumericalDiscreteParameter struct {
	name      string
	values    []float64
	tolerance float64

	compOnce sync.Once
	comp     *Table
}

// NewNumericalDiscreteParameter creates a numerical discrete parameter with
// the default tolerance of 10% of the smallest gap between adjacent sorted
// values.
//
// Parameters:
// - name: Unique identifier within a space
// - values: The legal setpoints; at least two, finite, free of duplicates
//
// The values are sorted ascending internally; input order does not matter.
func NewNumericalDiscreteParameter(name string, values []float64) (*NumericalDiscreteParameter, error) {
	sorted, err := validateGrid(name, values)
	if err != nil {
		return nil, err
	}

	return &NumericalDiscreteParameter{
		name:      name,
		values:    sorted,
		tolerance: defaultToleranceFraction * minAdjacentGap(sorted),
	}, nil
}

// NewNumericalDiscreteParameterWithTolerance creates a numerical discrete
// parameter with an explicit matching tolerance.
//
// The tolerance must be non-negative and strictly less than half the
// smallest gap between adjacent values; otherwise a query value could match
// two grid points at once, which is rejected as a configuration error
// rather than resolved silently.
func NewNumericalDiscreteParameterWithTolerance(name string, values []float64, tolerance float64) (*NumericalDiscreteParameter, error) {
	sorted, err := validateGrid(name, values)
	if err != nil {
		return nil, err
	}

	if tolerance < 0 {
		return nil, fmt.Errorf(
			"%w: parameter %q has negative tolerance %v", ErrConfiguration, name, tolerance,
		)
	}

	if gap := minAdjacentGap(sorted); tolerance >= gap/2 {
		return nil, fmt.Errorf(
			"%w: parameter %q tolerance %v must be strictly below half the smallest value gap (%v)",
			ErrConfiguration, name, tolerance, gap/2,
		)
	}

	return &NumericalDiscreteParameter{name: name, values: sorted, tolerance: tolerance}, nil
}

// Name returns the parameter name.
func (p *NumericalDiscreteParameter) Name() string { return p.name }

// IsDiscrete always reports true.
func (p *NumericalDiscreteParameter) IsDiscrete() bool { return true }

// IsNumeric always reports true.
func (p *NumericalDiscreteParameter) IsNumeric() bool { return true }

// Tolerance returns the absolute matching tolerance.
func (p *NumericalDiscreteParameter) Tolerance() float64 { return p.tolerance }

// FloatValues returns the sorted setpoints as plain floats.
func (p *NumericalDiscreteParameter) FloatValues() []float64 {
	return slices.Clone(p.values)
}

// Values returns the sorted setpoints as generic cells.
func (p *NumericalDiscreteParameter) Values() []Value {
	return floatsToValues(p.values)
}

// InRange reports whether item matches any setpoint within the tolerance.
func (p *NumericalDiscreteParameter) InRange(item Value) bool {
	f, ok := AsFloat(item)
	if !ok {
		return false
	}

	_, matched := p.MatchValue(f)

	return matched
}

// MatchValue resolves a query value to the closest setpoint within the
// tolerance.
//
// Returns:
// - float64: The matched setpoint (zero if unmatched)
// - bool: Whether a setpoint is within tolerance
func (p *NumericalDiscreteParameter) MatchValue(f float64) (float64, bool) {
	best, dist := 0.0, math.Inf(1)

	for _, v := range p.values {
		if d := math.Abs(v - f); d < dist {
			best, dist = v, d
		}
	}

	if dist <= p.tolerance {
		return best, true
	}

	return 0, false
}

// CompDF returns the identity encoding: one numerical column named after
// the parameter, one row per setpoint. Computed once and cached.
func (p *NumericalDiscreteParameter) CompDF() *Table {
	p.compOnce.Do(func() {
		t, err := NewFloatTable([]string{p.name}, p.values)
		if err != nil {
			// The grid was validated at construction; this cannot fail.
			panic(err)
		}

		p.comp = t
	})

	return p.comp
}

// Transform encodes a column of experimental data. Identity for numerical
// parameters: every cell must be numeric.
func (p *NumericalDiscreteParameter) Transform(values []Value) (*Table, error) {
	floats := make([]float64, len(values))

	for i, v := range values {
		f, ok := AsFloat(v)
		if !ok {
			return nil, fmt.Errorf(
				"%w: parameter %q cannot encode non-numeric value %v", ErrData, p.name, v,
			)
		}

		floats[i] = f
	}

	return NewFloatTable([]string{p.name}, floats)
}

//////
// Continuous parameters.
//////

// NumericalContinuousParameter is a parameter over a closed finite
// interval. It contributes no rows or columns to a discrete subspace; it
// exists so mixed spaces can be described with one parameter list.
type NumericalContinuousParameter struct {
	name   string
	bounds Interval
}

// NewNumericalContinuousParameter creates a continuous parameter.
// Unbounded intervals are rejected at construction.
func NewNumericalContinuousParameter(name string, lower, upper float64) (*NumericalContinuousParameter, error) {
	bounds, err := NewInterval(lower, upper)
	if err != nil {
		return nil, fmt.Errorf("parameter %q: %w", name, err)
	}

	return &NumericalContinuousParameter{name: name, bounds: bounds}, nil
}

// Name returns the parameter name.
func (p *NumericalContinuousParameter) Name() string { return p.name }

// IsDiscrete always reports false.
func (p *NumericalContinuousParameter) IsDiscrete() bool { return false }

// IsNumeric always reports true.
func (p *NumericalContinuousParameter) IsNumeric() bool { return true }

// Bounds returns the closed interval of legal values.
func (p *NumericalContinuousParameter) Bounds() Interval { return p.bounds }

// InRange reports whether item lies inside the bounds.
func (p *NumericalContinuousParameter) InRange(item Value) bool {
	f, ok := AsFloat(item)
	return ok && p.bounds.Contains(f)
}

//////
// Helper functions.
//////

// validateGrid sorts and validates the setpoints of a numerical discrete
// parameter: at least two values, all finite, no duplicates.
func validateGrid(name string, values []float64) ([]float64, error) {
	if len(values) < 2 {
		return nil, fmt.Errorf(
			"%w: parameter %q needs at least two values, got %d", ErrConfiguration, name, len(values),
		)
	}

	sorted := slices.Clone(values)
	slices.Sort(sorted)

	for i, v := range sorted {
		if !isFinite(v) {
			return nil, fmt.Errorf("%w: parameter %q has non-finite value %v", ErrConfiguration, name, v)
		}

		if i > 0 && sorted[i-1] == v {
			return nil, fmt.Errorf("%w: parameter %q has duplicate value %v", ErrConfiguration, name, v)
		}
	}

	return sorted, nil
}

// minAdjacentGap returns the smallest difference between neighboring sorted
// values.
func minAdjacentGap(sorted []float64) float64 {
	gap := math.Inf(1)

	for i := 1; i < len(sorted); i++ {
		if d := sorted[i] - sorted[i-1]; d < gap {
			gap = d
		}
	}

	return gap
}
