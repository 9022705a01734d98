package doe

import (
	"fmt"

	"golang.org/x/exp/slices"
)

//////
// Const, vars, types.
//////

// ConstraintKind identifies a constraint type for canonical-order sorting.
type ConstraintKind string

// The discrete constraint kinds.
const (
	KindDependencies          ConstraintKind = "dependencies"
	KindPermutationInvariance ConstraintKind = "permutation_invariance"
	KindExclude               ConstraintKind = "exclude"
	KindNoLabelDuplicates     ConstraintKind = "no_label_duplicates"
	KindLinkedParameters      ConstraintKind = "linked_parameters"
	KindSum                   ConstraintKind = "sum"
	KindProduct               ConstraintKind = "product"
	KindCustom                ConstraintKind = "custom"
)

// FilteringOrder maps constraint kinds to their filter priority (lower runs
// first). Later kinds assume earlier ones already ran: permutation-
// invariance merging must precede duplicate-label removal, and dependency
// resolution must precede excludes over the same parameters. Running out of
// order silently produces a wrong (but non-crashing) space, which is why
// the pipeline sorts automatically and never trusts attachment order.
type FilteringOrder map[ConstraintKind]int

// DefaultFilteringOrder returns the canonical filter priorities.
func DefaultFilteringOrder() FilteringOrder {
	return FilteringOrder{
		KindDependencies:          0,
		KindPermutationInvariance: 1,
		KindExclude:               2,
		KindNoLabelDuplicates:     3,
		KindLinkedParameters:      4,
		KindSum:                   5,
		KindProduct:               6,
		KindCustom:                7,
	}
}

//////
// Exported functionalities.
//////

// SortConstraints stable-sorts constraints by their kind's priority in the
// given order, preserving the relative order of same-kind constraints.
// Unknown kinds are a configuration error.
func SortConstraints(constraints []Constraint, order FilteringOrder) ([]Constraint, error) {
	for _, c := range constraints {
		if _, ok := order[c.Kind()]; !ok {
			return nil, fmt.Errorf("%w: no filter priority for constraint kind %q", ErrConfiguration, c.Kind())
		}
	}

	sorted := slices.Clone(constraints)

	slices.SortStableFunc(sorted, func(a, b Constraint) int {
		return order[a.Kind()] - order[b.Kind()]
	})

	return sorted, nil
}

//////
// Sum and product constraints.
//////

// SumConstraint restricts the sum of a set of numerical parameters with a
// threshold condition, e.g. "Frac1 + Frac2 + Frac3 = 100 within 1.0".
type SumConstraint struct {
	params    []string
	condition ThresholdCondition
}

// NewSumConstraint creates a sum constraint over the named parameters.
func NewSumConstraint(parameters []string, condition ThresholdCondition) *SumConstraint {
	return &SumConstraint{params: slices.Clone(parameters), condition: condition}
}

// Kind returns KindSum.
func (c *SumConstraint) Kind() ConstraintKind { return KindSum }

// Parameters returns the governed parameter names.
func (c *SumConstraint) Parameters() []string { return slices.Clone(c.params) }

// Condition returns the threshold condition applied to the row sums.
func (c *SumConstraint) Condition() ThresholdCondition { return c.condition }

// EvalDuringCreation always reports true: the rule is a pure function of
// the named columns.
func (c *SumConstraint) EvalDuringCreation() bool { return true }

// GetInvalid returns the labels of rows whose parameter sum fails the
// condition.
func (c *SumConstraint) GetInvalid(t *Table) ([]int, error) {
	sums, err := t.RowSums(c.params)
	if err != nil {
		return nil, err
	}

	return invalidByAggregate(t, sums, c.condition)
}

// ProductConstraint restricts the product of a set of numerical parameters
// with a threshold condition.
type ProductConstraint struct {
	params    []string
	condition ThresholdCondition
}

// NewProductConstraint creates a product constraint over the named
// parameters.
func NewProductConstraint(parameters []string, condition ThresholdCondition) *ProductConstraint {
	return &ProductConstraint{params: slices.Clone(parameters), condition: condition}
}

// Kind returns KindProduct.
func (c *ProductConstraint) Kind() ConstraintKind { return KindProduct }

// Parameters returns the governed parameter names.
func (c *ProductConstraint) Parameters() []string { return slices.Clone(c.params) }

// Condition returns the threshold condition applied to the row products.
func (c *ProductConstraint) Condition() ThresholdCondition { return c.condition }

// EvalDuringCreation always reports true.
func (c *ProductConstraint) EvalDuringCreation() bool { return true }

// GetInvalid returns the labels of rows whose parameter product fails the
// condition.
func (c *ProductConstraint) GetInvalid(t *Table) ([]int, error) {
	products, err := t.RowProducts(c.params)
	if err != nil {
		return nil, err
	}

	return invalidByAggregate(t, products, c.condition)
}

//////
// Exclude constraints.
//////

// ExcludeConstraint removes configurations matching a combination of
// per-parameter conditions: condition i is evaluated against the column of
// parameter i, and the masks are folded with the combiner. Rows where the
// combined mask is true are excluded.
type ExcludeConstraint struct {
	params     []string
	conditions []Condition
	combiner   Combiner
}

// NewExcludeConstraint creates an exclude constraint. The conditions list
// must be aligned 1:1 with the parameter names.
func NewExcludeConstraint(parameters []string, conditions []Condition, combiner Combiner) (*ExcludeConstraint, error) {
	if len(parameters) != len(conditions) {
		return nil, fmt.Errorf(
			"%w: exclude constraint has %d conditions for %d parameters",
			ErrConfiguration, len(conditions), len(parameters),
		)
	}

	return &ExcludeConstraint{
		params:     slices.Clone(parameters),
		conditions: slices.Clone(conditions),
		combiner:   combiner,
	}, nil
}

// Kind returns KindExclude.
func (c *ExcludeConstraint) Kind() ConstraintKind { return KindExclude }

// Parameters returns the governed parameter names.
func (c *ExcludeConstraint) Parameters() []string { return slices.Clone(c.params) }

// Conditions returns the per-parameter conditions.
func (c *ExcludeConstraint) Conditions() []Condition { return slices.Clone(c.conditions) }

// LogicCombiner returns the mask combiner.
func (c *ExcludeConstraint) LogicCombiner() Combiner { return c.combiner }

// EvalDuringCreation always reports true.
func (c *ExcludeConstraint) EvalDuringCreation() bool { return true }

// GetInvalid returns the labels of rows matching the combined exclusion
// conditions.
func (c *ExcludeConstraint) GetInvalid(t *Table) ([]int, error) {
	masks := make([][]bool, len(c.params))

	for i, name := range c.params {
		col, err := t.Column(name)
		if err != nil {
			return nil, err
		}

		mask, err := c.conditions[i].Evaluate(col)
		if err != nil {
			return nil, err
		}

		masks[i] = mask
	}

	combined, err := combineMasks(c.combiner, masks...)
	if err != nil {
		return nil, err
	}

	return labelsWhere(t, combined), nil
}

//////
// Label constraints.
//////

// NoLabelDuplicatesConstraint removes configurations where the same label
// appears in more than one of the governed columns, e.g. the same solvent
// picked twice in a mixture.
type NoLabelDuplicatesConstraint struct {
	params []string
}

// NewNoLabelDuplicatesConstraint creates a no-duplicate-labels constraint.
func NewNoLabelDuplicatesConstraint(parameters []string) *NoLabelDuplicatesConstraint {
	return &NoLabelDuplicatesConstraint{params: slices.Clone(parameters)}
}

// Kind returns KindNoLabelDuplicates.
func (c *NoLabelDuplicatesConstraint) Kind() ConstraintKind { return KindNoLabelDuplicates }

// Parameters returns the governed parameter names.
func (c *NoLabelDuplicatesConstraint) Parameters() []string { return slices.Clone(c.params) }

// EvalDuringCreation always reports true.
func (c *NoLabelDuplicatesConstraint) EvalDuringCreation() bool { return true }

// GetInvalid returns the labels of rows carrying a repeated value across
// the governed columns.
func (c *NoLabelDuplicatesConstraint) GetInvalid(t *Table) ([]int, error) {
	cols, err := governedColumns(t, c.params)
	if err != nil {
		return nil, err
	}

	var invalid []int

	for i, label := range t.Index() {
		seen := make(map[string]struct{}, len(cols))

		for _, col := range cols {
			key := valueKey(col[i])
			if _, dup := seen[key]; dup {
				invalid = append(invalid, label)
				break
			}

			seen[key] = struct{}{}
		}
	}

	return invalid, nil
}

// LinkedParametersConstraint keeps only configurations where all governed
// columns carry the same value, effectively linking the parameters into
// one.
type LinkedParametersConstraint struct {
	params []string
}

// NewLinkedParametersConstraint creates a linked-parameters constraint.
func NewLinkedParametersConstraint(parameters []string) *LinkedParametersConstraint {
	return &LinkedParametersConstraint{params: slices.Clone(parameters)}
}

// Kind returns KindLinkedParameters.
func (c *LinkedParametersConstraint) Kind() ConstraintKind { return KindLinkedParameters }

// Parameters returns the governed parameter names.
func (c *LinkedParametersConstraint) Parameters() []string { return slices.Clone(c.params) }

// EvalDuringCreation always reports true.
func (c *LinkedParametersConstraint) EvalDuringCreation() bool { return true }

// GetInvalid returns the labels of rows where the governed columns
// disagree.
func (c *LinkedParametersConstraint) GetInvalid(t *Table) ([]int, error) {
	cols, err := governedColumns(t, c.params)
	if err != nil {
		return nil, err
	}

	var invalid []int

	for i, label := range t.Index() {
		for _, col := range cols[1:] {
			if !valuesEqual(col[i], cols[0][i]) {
				invalid = append(invalid, label)
				break
			}
		}
	}

	return invalid, nil
}

//////
// Helper functions.
//////

// invalidByAggregate applies a threshold condition to per-row aggregates
// and returns the labels of the failing rows.
func invalidByAggregate(t *Table, aggregates []float64, condition ThresholdCondition) ([]int, error) {
	mask, err := condition.Evaluate(floatsToValues(aggregates))
	if err != nil {
		return nil, err
	}

	// Invalid rows are the ones NOT satisfying the condition.
	for i, ok := range mask {
		mask[i] = !ok
	}

	return labelsWhere(t, mask), nil
}

// labelsWhere returns the index labels at true positions of the mask.
func labelsWhere(t *Table, mask []bool) []int {
	index := t.Index()

	var labels []int

	for i, hit := range mask {
		if hit {
			labels = append(labels, index[i])
		}
	}

	return labels
}

// governedColumns fetches the columns of the governed parameters, failing
// loudly on the first unknown name.
func governedColumns(t *Table, params []string) ([][]Value, error) {
	cols := make([][]Value, len(params))

	for i, name := range params {
		col, err := t.Column(name)
		if err != nil {
			return nil, err
		}

		cols[i] = col
	}

	return cols, nil
}
