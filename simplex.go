package doe

import (
	"fmt"
	"math"
)

//////
// Simplex construction.
//////

// FromSimplex efficiently builds the discrete subspace of configurations
// whose parameter values sum (approximately) to a given total, i.e. a
// mixture space.
//
// The same result could be had from FromProduct plus a sum constraint, but
// the Cartesian product grows exponentially while almost all of it violates
// the sum condition. This constructor instead joins one parameter at a
// time and discards partial configurations as soon as they can no longer
// reach a valid total: after joining parameter k, any partial row whose sum
// already exceeds the total minus the minimum contribution still to come
// from the remaining parameters is dropped. Intermediate steps only ever
// apply this upper-bound filter (partial sums legitimately fall short of
// the total before all parameters are joined) and the equality check runs
// once at the end.
//
// Parameters:
// - parameters: The mixture components; all numerical-discrete with
//   non-negative values only (violations are configuration errors)
// - total: The desired sum defining the simplex size
// - boundaryOnly: Keep only configurations summing exactly to total
//   (within tolerance); otherwise configurations below the total survive
// - tolerance: Numerical slack for the sum comparison; "sum equals total"
//   always means |sum - total| <= tolerance, never exact float equality
//
// A simplex pruned down to zero rows is a valid space, not an error.
func FromSimplex(parameters []*NumericalDiscreteParameter, total float64, boundaryOnly bool, tolerance float64) (*SubspaceDiscrete, error) {
	discrete := make([]DiscreteParameter, len(parameters))

	minValues := make([]float64, len(parameters))

	for i, p := range parameters {
		if p == nil {
			return nil, fmt.Errorf("%w: simplex construction requires numerical discrete parameters", ErrConfiguration)
		}

		values := p.FloatValues()
		if values[0] < 0 {
			return nil, fmt.Errorf(
				"%w: simplex parameter %q has negative values", ErrConfiguration, p.Name(),
			)
		}

		discrete[i] = p
		minValues[i] = values[0] // Sorted ascending, so the head is the minimum.
	}

	if err := validateParameterNames(discrete); err != nil {
		return nil, err
	}

	if tolerance < 0 {
		return nil, fmt.Errorf("%w: simplex tolerance must be non-negative, got %v", ErrConfiguration, tolerance)
	}

	// Suffix cumulative minima: minToCome[i] is the smallest possible sum
	// contributed by the parameters after position i.
	minToCome := make([]float64, len(parameters))

	for i := len(parameters) - 2; i >= 0; i-- {
		minToCome[i] = minToCome[i+1] + minValues[i+1]
	}

	exp := NewTable()

	for i, p := range parameters {
		column, err := NewFloatTable([]string{p.Name()}, p.FloatValues())
		if err != nil {
			return nil, err
		}

		if i == 0 {
			exp = column
		} else {
			exp, err = exp.CrossJoin(column)
			if err != nil {
				return nil, err
			}
		}

		if err := dropOverBudget(exp, discrete[:i+1], total-minToCome[i], tolerance); err != nil {
			return nil, err
		}
	}

	if boundaryOnly {
		if err := dropOffBoundary(exp, discrete, total, tolerance); err != nil {
			return nil, err
		}
	}

	exp.ResetIndex()

	return NewSubspaceDiscrete(SubspaceConfig{
		Parameters: discrete,
		ExpRep:     exp,
	})
}

//////
// Helper functions.
//////

// dropOverBudget removes partial configurations whose sum exceeds the
// remaining budget beyond tolerance.
func dropOverBudget(t *Table, joined []DiscreteParameter, budget, tolerance float64) error {
	sums, err := partialSums(t, joined)
	if err != nil {
		return err
	}

	keep := make([]bool, len(sums))
	for i, sum := range sums {
		keep[i] = sum <= budget+tolerance
	}

	return t.KeepMask(keep)
}

// dropOffBoundary removes configurations whose sum is not equal to the
// total within tolerance.
func dropOffBoundary(t *Table, joined []DiscreteParameter, total, tolerance float64) error {
	sums, err := partialSums(t, joined)
	if err != nil {
		return err
	}

	keep := make([]bool, len(sums))
	for i, sum := range sums {
		keep[i] = math.Abs(sum-total) <= tolerance
	}

	return t.KeepMask(keep)
}

// partialSums sums the already-joined parameter columns per row.
func partialSums(t *Table, joined []DiscreteParameter) ([]float64, error) {
	names := make([]string, len(joined))
	for i, p := range joined {
		names[i] = p.Name()
	}

	return t.RowSums(names)
}
