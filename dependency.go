package doe

import (
	"fmt"
	"sort"

	"golang.org/x/exp/slices"
)

//////
// Const, vars, types.
//////

// neutralValue replaces cells that are irrelevant for a given
// configuration (an affected parameter whose governing dependency is
// inactive) before duplicate detection. The marker cannot collide with
// real cells because valueKey prefixes cells by type.
const neutralValue = "\x00irrelevant"

// DependenciesConstraint declares that some parameters only matter when
// other parameters are "active". Each governed parameter i carries a
// condition deciding its activity; when the condition fails for a row, the
// values of the affected parameters are irrelevant, and configurations that
// only differ in irrelevant values collapse into one (the first occurrence
// survives).
//
// Example: a solvent choice Solv1 is only meaningful while its fraction
// Frac1 is positive; all rows with Frac1 = 0 and differing Solv1 describe
// the same experiment.
type DependenciesConstraint struct {
	params     []string
	conditions []Condition
	affected   [][]string
}

// NewDependenciesConstraint creates a dependencies constraint.
//
// Parameters:
// - parameters: The activity-deciding parameter names
// - conditions: One activity condition per parameter, aligned by position
// - affected: Per parameter, the names of the parameters it governs
func NewDependenciesConstraint(parameters []string, conditions []Condition, affected [][]string) (*DependenciesConstraint, error) {
	if len(parameters) != len(conditions) || len(parameters) != len(affected) {
		return nil, fmt.Errorf(
			"%w: dependencies constraint needs aligned parameters/conditions/affected lists (%d/%d/%d)",
			ErrConfiguration, len(parameters), len(conditions), len(affected),
		)
	}

	aff := make([][]string, len(affected))
	for i, a := range affected {
		aff[i] = slices.Clone(a)
	}

	return &DependenciesConstraint{
		params:     slices.Clone(parameters),
		conditions: slices.Clone(conditions),
		affected:   aff,
	}, nil
}

// Kind returns KindDependencies.
func (c *DependenciesConstraint) Kind() ConstraintKind { return KindDependencies }

// Parameters returns the activity-deciding parameter names.
func (c *DependenciesConstraint) Parameters() []string { return slices.Clone(c.params) }

// Conditions returns the per-parameter activity conditions.
func (c *DependenciesConstraint) Conditions() []Condition { return slices.Clone(c.conditions) }

// Affected returns, per governed parameter, the names of the parameters it
// governs.
func (c *DependenciesConstraint) Affected() [][]string {
	aff := make([][]string, len(c.affected))
	for i, a := range c.affected {
		aff[i] = slices.Clone(a)
	}

	return aff
}

// EvalDuringCreation always reports true.
func (c *DependenciesConstraint) EvalDuringCreation() bool { return true }

// GetInvalid returns the labels of rows that duplicate an earlier row once
// irrelevant cells are neutralized.
func (c *DependenciesConstraint) GetInvalid(t *Table) ([]int, error) {
	cells, err := neutralizedCells(t, c)
	if err != nil {
		return nil, err
	}

	return duplicateLabels(t, cells, nil)
}

//////
// Permutation invariance.
//////

// PermutationInvarianceConstraint declares that the governed parameters are
// interchangeable: two configurations that only differ by a permutation of
// the governed values describe the same experiment, and only the first one
// survives.
//
// When parameters travel in coupled groups (solvent plus its fraction), the
// coupling is expressed by a nested dependencies constraint: each governed
// parameter is permuted together with the dependency parameters that affect
// it, and irrelevant cells are neutralized before canonicalization.
type PermutationInvarianceConstraint struct {
	params       []string
	dependencies *DependenciesConstraint
}

// NewPermutationInvarianceConstraint creates a permutation-invariance
// constraint. The dependencies argument is optional (nil for plain
// permutation invariance).
func NewPermutationInvarianceConstraint(parameters []string, dependencies *DependenciesConstraint) *PermutationInvarianceConstraint {
	return &PermutationInvarianceConstraint{
		params:       slices.Clone(parameters),
		dependencies: dependencies,
	}
}

// Kind returns KindPermutationInvariance.
func (c *PermutationInvarianceConstraint) Kind() ConstraintKind { return KindPermutationInvariance }

// Parameters returns the permutable parameter names.
func (c *PermutationInvarianceConstraint) Parameters() []string { return slices.Clone(c.params) }

// Dependencies returns the nested dependencies constraint, or nil.
func (c *PermutationInvarianceConstraint) Dependencies() *DependenciesConstraint {
	return c.dependencies
}

// EvalDuringCreation always reports true.
func (c *PermutationInvarianceConstraint) EvalDuringCreation() bool { return true }

// GetInvalid returns the labels of rows that are permutation-duplicates of
// an earlier row.
func (c *PermutationInvarianceConstraint) GetInvalid(t *Table) ([]int, error) {
	cells := make(map[string][]Value, t.NumColumns())

	for _, name := range t.Columns() {
		col, err := t.Column(name)
		if err != nil {
			return nil, err
		}

		cells[name] = col
	}

	if c.dependencies != nil {
		neutralized, err := neutralizedCells(t, c.dependencies)
		if err != nil {
			return nil, err
		}

		cells = neutralized
	}

	// Coupled dependency parameters per permutable parameter: dependency
	// parameter j travels with permutable parameter p iff p is affected by
	// j. The permutation canonicalizes whole groups, not lone columns.
	coupled := make([][]string, len(c.params))

	if c.dependencies != nil {
		for j, depName := range c.dependencies.params {
			for _, affectedName := range c.dependencies.affected[j] {
				if i := slices.Index(c.params, affectedName); i >= 0 {
					coupled[i] = append(coupled[i], depName)
				}
			}
		}
	}

	grouped := make(map[string]struct{}, len(c.params))
	for _, p := range c.params {
		grouped[p] = struct{}{}
	}

	for _, deps := range coupled {
		for _, d := range deps {
			grouped[d] = struct{}{}
		}
	}

	canonical := func(row int) (string, error) {
		groups := make([]string, len(c.params))

		for i, p := range c.params {
			col, ok := cells[p]
			if !ok {
				return "", fmt.Errorf("%w: missing column %q", ErrData, p)
			}

			key := valueKey(col[row])
			for _, d := range coupled[i] {
				key += "\x1e" + valueKey(cells[d][row])
			}

			groups[i] = key
		}

		sort.Strings(groups)

		// Ungrouped columns keep configurations apart that agree on the
		// permutable part but differ elsewhere.
		rest := ""

		for _, name := range t.Columns() {
			if _, inGroup := grouped[name]; !inGroup {
				rest += "\x1f" + valueKey(cells[name][row])
			}
		}

		return fmt.Sprintf("%v\x1d%s", groups, rest), nil
	}

	index := t.Index()
	seen := make(map[string]struct{}, len(index))

	var invalid []int

	for row, label := range index {
		key, err := canonical(row)
		if err != nil {
			return nil, err
		}

		if _, dup := seen[key]; dup {
			invalid = append(invalid, label)
			continue
		}

		seen[key] = struct{}{}
	}

	return invalid, nil
}

//////
// Custom constraints.
//////

// ValidatorFunc decides row validity for a custom constraint. It receives
// the governed columns of the table and returns one boolean per row, true
// where the configuration is valid. Must be a pure function.
type ValidatorFunc func(t *Table) ([]bool, error)

// CustomConstraint filters configurations with caller-supplied logic. It is
// the only constraint kind that can opt out of construction-time
// evaluation, leaving the rule to be applied post hoc by a consumer (e.g. a
// recommender excluding rows at recommendation time).
//
// Custom constraints do not survive serialization: the validator is
// arbitrary code.
type CustomConstraint struct {
	params             []string
	validator          ValidatorFunc
	evalDuringCreation bool
}

// NewCustomConstraint creates a custom constraint over the named
// parameters.
func NewCustomConstraint(parameters []string, validator ValidatorFunc, evalDuringCreation bool) (*CustomConstraint, error) {
	if validator == nil {
		return nil, fmt.Errorf("%w: custom constraint needs a validator", ErrConfiguration)
	}

	return &CustomConstraint{
		params:             slices.Clone(parameters),
		validator:          validator,
		evalDuringCreation: evalDuringCreation,
	}, nil
}

// Kind returns KindCustom.
func (c *CustomConstraint) Kind() ConstraintKind { return KindCustom }

// Parameters returns the governed parameter names.
func (c *CustomConstraint) Parameters() []string { return slices.Clone(c.params) }

// EvalDuringCreation reports the configured evaluation stage.
func (c *CustomConstraint) EvalDuringCreation() bool { return c.evalDuringCreation }

// GetInvalid returns the labels of rows the validator rejects.
func (c *CustomConstraint) GetInvalid(t *Table) ([]int, error) {
	governed, err := t.Select(c.params...)
	if err != nil {
		return nil, err
	}

	valid, err := c.validator(governed)
	if err != nil {
		return nil, err
	}

	if len(valid) != t.NumRows() {
		return nil, fmt.Errorf(
			"%w: custom validator returned %d results for %d rows", ErrData, len(valid), t.NumRows(),
		)
	}

	invalid := make([]bool, len(valid))
	for i, ok := range valid {
		invalid[i] = !ok
	}

	return labelsWhere(t, invalid), nil
}

//////
// Helper functions.
//////

// neutralizedCells copies the table cells and replaces every affected cell
// whose governing dependency condition fails with the neutral marker.
func neutralizedCells(t *Table, c *DependenciesConstraint) (map[string][]Value, error) {
	cells := make(map[string][]Value, t.NumColumns())

	for _, name := range t.Columns() {
		col, err := t.Column(name)
		if err != nil {
			return nil, err
		}

		cells[name] = col
	}

	for i, name := range c.params {
		col, ok := cells[name]
		if !ok {
			return nil, fmt.Errorf("%w: missing column %q", ErrData, name)
		}

		active, err := c.conditions[i].Evaluate(col)
		if err != nil {
			return nil, err
		}

		for _, affectedName := range c.affected[i] {
			affectedCol, ok := cells[affectedName]
			if !ok {
				return nil, fmt.Errorf("%w: missing column %q", ErrData, affectedName)
			}

			for row, isActive := range active {
				if !isActive {
					affectedCol[row] = neutralValue
				}
			}
		}
	}

	return cells, nil
}

// duplicateLabels returns the labels of rows whose cells duplicate an
// earlier row over all columns (first occurrence survives). The optional
// keyFn overrides per-row key computation.
func duplicateLabels(t *Table, cells map[string][]Value, keyFn func(row int) string) ([]int, error) {
	names := t.Columns()
	index := t.Index()

	if keyFn == nil {
		keyFn = func(row int) string {
			key := ""
			for _, n := range names {
				key += valueKey(cells[n][row]) + "\x1f"
			}

			return key
		}
	}

	seen := make(map[string]struct{}, len(index))

	var invalid []int

	for row, label := range index {
		key := keyFn(row)

		if _, dup := seen[key]; dup {
			invalid = append(invalid, label)
			continue
		}

		seen[key] = struct{}{}
	}

	return invalid, nil
}
