package doe

import (
	"fmt"
	"math"

	"golang.org/x/exp/slices"
)

//////
// Fuzzy row matching.
//////

// FuzzyRowMatch locates, for every row of the right table, the matching
// rows of the left table, and returns the union of their index labels.
//
// Matching is column-wise per parameter: non-numeric parameters must match
// exactly (by label), numeric parameters match within the parameter's
// tolerance when withinTolerance is set, and by closest grid value
// otherwise. A right row matching several left rows contributes all of
// them; a right row matching nothing contributes none. Both are policy
// outcomes for the caller, not errors; only a missing parameter column in
// the right table is a data error.
//
// Parameters:
// - left: The table searched in (typically the experimental
//   representation); must carry all parameter columns
// - right: The externally supplied rows to locate (e.g. measurements)
// - parameters: The parameters describing the shared columns
// - withinTolerance: Whether numeric values must fall inside each
//   parameter's tolerance band to count as a match
//
// Returns:
// - []int: Sorted, de-duplicated index labels of the matched left rows.
func FuzzyRowMatch(left, right *Table, parameters []DiscreteParameter, withinTolerance bool) ([]int, error) {
	type column struct {
		param DiscreteParameter
		left  []Value
		right []Value
	}

	columns := make([]column, 0, len(parameters))

	for _, p := range parameters {
		lcol, err := left.Column(p.Name())
		if err != nil {
			return nil, err
		}

		rcol, err := right.Column(p.Name())
		if err != nil {
			return nil, fmt.Errorf("measurements are missing a parameter column: %w", err)
		}

		columns = append(columns, column{param: p, left: lcol, right: rcol})
	}

	index := left.Index()
	matched := make(map[int]struct{})

	for r := 0; r < right.NumRows(); r++ {
		candidates := make([]int, len(index))
		for i := range candidates {
			candidates[i] = i
		}

		for _, col := range columns {
			if len(candidates) == 0 {
				break
			}

			if col.param.IsNumeric() {
				candidates = matchNumeric(col.param, col.left, col.right[r], candidates, withinTolerance)
			} else {
				candidates = matchExact(col.left, col.right[r], candidates)
			}
		}

		for _, pos := range candidates {
			matched[pos] = struct{}{}
		}
	}

	labels := make([]int, 0, len(matched))
	for pos := range matched {
		labels = append(labels, index[pos])
	}

	slices.Sort(labels)

	return labels, nil
}

//////
// Helper functions.
//////

// matchExact keeps the candidate positions whose cell matches the query by
// label.
func matchExact(col []Value, query Value, candidates []int) []int {
	target := valueString(query)

	kept := candidates[:0:0]

	for _, pos := range candidates {
		if valueString(col[pos]) == target {
			kept = append(kept, pos)
		}
	}

	return kept
}

// matchNumeric keeps the candidate positions whose numeric cell matches
// the query: within the parameter tolerance when required, the closest
// value among the candidates otherwise.
func matchNumeric(p DiscreteParameter, col []Value, query Value, candidates []int, withinTolerance bool) []int {
	target, ok := AsFloat(query)
	if !ok {
		return nil
	}

	if withinTolerance {
		tolerance := 0.0
		if ndp, ok := p.(*NumericalDiscreteParameter); ok {
			tolerance = ndp.Tolerance()
		}

		kept := candidates[:0:0]

		for _, pos := range candidates {
			if f, ok := AsFloat(col[pos]); ok && math.Abs(f-target) <= tolerance {
				kept = append(kept, pos)
			}
		}

		return kept
	}

	// Closest-value policy: keep the candidates carrying the grid value
	// nearest to the query.
	best := math.Inf(1)

	for _, pos := range candidates {
		if f, ok := AsFloat(col[pos]); ok {
			if d := math.Abs(f - target); d < best {
				best = d
			}
		}
	}

	kept := candidates[:0:0]

	for _, pos := range candidates {
		if f, ok := AsFloat(col[pos]); ok && math.Abs(f-target) == best {
			kept = append(kept, pos)
		}
	}

	return kept
}
