package doe

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

//////
// Test fixtures.
//////

func mustNumerical(t *testing.T, name string, values ...float64) *NumericalDiscreteParameter {
	t.Helper()

	p, err := NewNumericalDiscreteParameter(name, values)
	require.NoError(t, err)

	return p
}

func mustCategorical(t *testing.T, name string, labels ...string) *CategoricalParameter {
	t.Helper()

	p, err := NewCategoricalParameter(name, labels, EncodingOneHot)
	require.NoError(t, err)

	return p
}

//////
// Construction.
//////

func TestParameterCartesianProduct(t *testing.T) {
	temp := mustNumerical(t, "Temperature", 10, 20, 30)
	solvent := mustCategorical(t, "Solvent", "water", "oil")

	product := ParameterCartesianProduct([]Parameter{temp, solvent})

	require.Equal(t, 6, product.NumRows())
	assert.Equal(t, []string{"Temperature", "Solvent"}, product.Columns())
	assert.Equal(t, []int{0, 1, 2, 3, 4, 5}, product.Index())

	// First parameter varies slowest.
	temps, err := product.FloatColumn("Temperature")
	require.NoError(t, err)
	assert.Equal(t, []float64{10, 10, 20, 20, 30, 30}, temps)

	solvents, err := product.Column("Solvent")
	require.NoError(t, err)
	assert.Equal(t, []Value{"water", "oil", "water", "oil", "water", "oil"}, solvents)
}

func TestParameterCartesianProductSkipsContinuous(t *testing.T) {
	temp := mustNumerical(t, "Temperature", 10, 20)

	flow, err := NewNumericalContinuousParameter("Flow", 0, 1)
	require.NoError(t, err)

	product := ParameterCartesianProduct([]Parameter{temp, flow})
	assert.Equal(t, []string{"Temperature"}, product.Columns())
	assert.Equal(t, 2, product.NumRows())

	// No discrete parameters at all yields an empty table.
	empty := ParameterCartesianProduct([]Parameter{flow})
	assert.Equal(t, 0, empty.NumRows())
	assert.Equal(t, 0, empty.NumColumns())
}

func TestFromProductUnconstrained(t *testing.T) {
	space, err := FromProduct([]DiscreteParameter{
		mustNumerical(t, "Temperature", 10, 20, 30),
		mustCategorical(t, "Solvent", "water", "oil"),
	}, nil, false)
	require.NoError(t, err)

	exp := space.ExpRep()
	assert.Equal(t, 6, exp.NumRows())
	assert.False(t, space.IsEmpty())

	// Every combination appears exactly once.
	seen := make(map[string]int, exp.NumRows())
	for row := 0; row < exp.NumRows(); row++ {
		temp, err := exp.Cell(row, "Temperature")
		require.NoError(t, err)

		solvent, err := exp.Cell(row, "Solvent")
		require.NoError(t, err)

		seen[valueKey(temp)+"|"+valueKey(solvent)]++
	}

	require.Len(t, seen, 6)
	for _, count := range seen {
		assert.Equal(t, 1, count)
	}

	// The computational representation shares the experimental index.
	assert.Equal(t, space.ExpRep().Index(), space.CompRep().Index())
	assert.Equal(t,
		[]string{"Temperature", "Solvent_water", "Solvent_oil"},
		space.CompRep().Columns(),
	)
}

func TestFromProductMixtureScenario(t *testing.T) {
	fractions := []DiscreteParameter{
		mustNumerical(t, "Frac1", 0, 25, 50, 75, 100),
		mustNumerical(t, "Frac2", 0, 25, 50, 75, 100),
		mustNumerical(t, "Frac3", 0, 25, 50, 75, 100),
	}

	sum := NewSumConstraint(
		[]string{"Frac1", "Frac2", "Frac3"},
		ThresholdCondition{Operator: OpEqual, Threshold: 100, Tolerance: 1.0},
	)

	space, err := FromProduct(fractions, []Constraint{sum}, false)
	require.NoError(t, err)

	// Exactly the 15 combinations summing to 100 survive, nothing else.
	exp := space.ExpRep()
	require.Equal(t, 15, exp.NumRows())

	want := map[[3]float64]bool{
		{0, 0, 100}: true, {0, 25, 75}: true, {0, 50, 50}: true,
		{0, 75, 25}: true, {0, 100, 0}: true, {25, 0, 75}: true,
		{25, 25, 50}: true, {25, 50, 25}: true, {25, 75, 0}: true,
		{50, 0, 50}: true, {50, 25, 25}: true, {50, 50, 0}: true,
		{75, 0, 25}: true, {75, 25, 0}: true, {100, 0, 0}: true,
	}

	got := make(map[[3]float64]bool, exp.NumRows())

	columns := make([][]float64, 3)
	for i, name := range []string{"Frac1", "Frac2", "Frac3"} {
		columns[i], err = exp.FloatColumn(name)
		require.NoError(t, err)
	}

	for row := 0; row < exp.NumRows(); row++ {
		got[[3]float64{columns[0][row], columns[1][row], columns[2][row]}] = true
	}

	assert.Equal(t, want, got)

	// Surviving rows are renumbered densely.
	assert.Equal(t, denseIndex(15), exp.Index())
}

func TestFromProductFilteringOrderInsensitive(t *testing.T) {
	parameters := func() []DiscreteParameter {
		return []DiscreteParameter{
			mustNumerical(t, "Frac1", 0, 50),
			mustCategorical(t, "Solv1", "water", "oil"),
		}
	}

	deps, err := NewDependenciesConstraint(
		[]string{"Frac1"},
		[]Condition{ThresholdCondition{Operator: OpGreater, Threshold: 0}},
		[][]string{{"Solv1"}},
	)
	require.NoError(t, err)

	exclude, err := NewExcludeConstraint(
		[]string{"Solv1"},
		[]Condition{SubSelectionCondition{Selection: []Value{"water"}}},
		CombinerAnd,
	)
	require.NoError(t, err)

	first, err := FromProduct(parameters(), []Constraint{deps, exclude}, false)
	require.NoError(t, err)

	second, err := FromProduct(parameters(), []Constraint{exclude, deps}, false)
	require.NoError(t, err)

	// Dependency collapsing runs before the exclude either way, so both
	// declaration orders leave the single row (50, oil).
	assert.True(t, first.ExpRep().Equal(second.ExpRep()))
	require.Equal(t, 1, first.ExpRep().NumRows())

	frac, err := first.ExpRep().FloatColumn("Frac1")
	require.NoError(t, err)
	assert.Equal(t, []float64{50}, frac)

	solv, err := first.ExpRep().Column("Solv1")
	require.NoError(t, err)
	assert.Equal(t, []Value{"oil"}, solv)
}

func TestPermutationAndDuplicateOrderInsensitive(t *testing.T) {
	parameters := func() []DiscreteParameter {
		return []DiscreteParameter{
			mustCategorical(t, "Solv1", "A", "B"),
			mustCategorical(t, "Solv2", "A", "B"),
		}
	}

	perm := NewPermutationInvarianceConstraint([]string{"Solv1", "Solv2"}, nil)
	noDup := NewNoLabelDuplicatesConstraint([]string{"Solv1", "Solv2"})

	first, err := FromProduct(parameters(), []Constraint{perm, noDup}, false)
	require.NoError(t, err)

	second, err := FromProduct(parameters(), []Constraint{noDup, perm}, false)
	require.NoError(t, err)

	// Permutation merging runs before duplicate-label removal regardless
	// of declaration order, leaving only the mixed row (A, B).
	assert.True(t, first.ExpRep().Equal(second.ExpRep()))
	assert.Equal(t, 1, first.ExpRep().NumRows())
}

func TestFromProductPermutationInvariance(t *testing.T) {
	space, err := FromProduct([]DiscreteParameter{
		mustCategorical(t, "Solv1", "A", "B"),
		mustCategorical(t, "Solv2", "A", "B"),
	}, []Constraint{
		NewPermutationInvarianceConstraint([]string{"Solv1", "Solv2"}, nil),
	}, false)
	require.NoError(t, err)

	// (B, A) collapses into (A, B); (A, A) and (B, B) survive.
	assert.Equal(t, 3, space.ExpRep().NumRows())
}

func TestFromProductRejectsUnknownConstraintParameter(t *testing.T) {
	_, err := FromProduct([]DiscreteParameter{
		mustNumerical(t, "a", 1, 2),
	}, []Constraint{
		NewSumConstraint([]string{"a", "nope"}, ThresholdCondition{Operator: OpLess, Threshold: 3}),
	}, false)
	assert.ErrorIs(t, err, ErrConfiguration)
}

func TestFromProductRejectsDuplicateParameterNames(t *testing.T) {
	_, err := FromProduct([]DiscreteParameter{
		mustNumerical(t, "a", 1, 2),
		mustNumerical(t, "a", 3, 4),
	}, nil, false)
	assert.ErrorIs(t, err, ErrConfiguration)
}

func TestFromProductRetainsPostHocConstraints(t *testing.T) {
	custom, err := NewCustomConstraint([]string{"a"}, func(t *Table) ([]bool, error) {
		valid := make([]bool, t.NumRows())
		return valid, nil
	}, false)
	require.NoError(t, err)

	space, err := FromProduct([]DiscreteParameter{
		mustNumerical(t, "a", 1, 2),
	}, []Constraint{custom}, false)
	require.NoError(t, err)

	// The validator rejects everything, but it is not evaluated during
	// creation: all rows survive and the constraint stays attached.
	assert.Equal(t, 2, space.ExpRep().NumRows())
	require.Len(t, space.Constraints(), 1)
	assert.Equal(t, KindCustom, space.Constraints()[0].Kind())
}

func TestFromTableInfersParameters(t *testing.T) {
	table, err := NewTableFromColumns(
		[]string{"x", "s"},
		[]Value{1.5, 2.5, 1.5},
		[]Value{"a", "b", "a"},
	)
	require.NoError(t, err)

	space, err := FromTable(table, nil, false)
	require.NoError(t, err)

	parameters := space.Parameters()
	require.Len(t, parameters, 2)

	x, ok := parameters[0].(*NumericalDiscreteParameter)
	require.True(t, ok)
	assert.Equal(t, []float64{1.5, 2.5}, x.FloatValues())

	s, ok := parameters[1].(*CategoricalParameter)
	require.True(t, ok)
	assert.Equal(t, []string{"a", "b"}, s.Labels())

	// The table is taken as-is, duplicates included.
	assert.Equal(t, 3, space.ExpRep().NumRows())
}

func TestFromTableRejectsOrphanParameter(t *testing.T) {
	table, err := NewFloatTable([]string{"x"}, []float64{1, 2})
	require.NoError(t, err)

	_, err = FromTable(table, []DiscreteParameter{
		mustNumerical(t, "y", 1, 2),
	}, false)
	assert.ErrorIs(t, err, ErrConfiguration)
}

func TestEmptySubspace(t *testing.T) {
	space := Empty()

	assert.True(t, space.IsEmpty())
	assert.Equal(t, 0, space.ExpRep().NumRows())
	assert.Equal(t, 0, space.CompRep().NumRows())

	exp, comp, err := space.GetCandidates(false, false)
	require.NoError(t, err)
	assert.Equal(t, 0, exp.NumRows())
	assert.Equal(t, 0, comp.NumRows())
}

//////
// Task parameters and metadata.
//////

func TestTaskParameterBarsInactiveRows(t *testing.T) {
	batch, err := NewTaskParameter("Batch", []string{"A", "B"}, []string{"A"})
	require.NoError(t, err)

	space, err := FromProduct([]DiscreteParameter{
		mustNumerical(t, "Temperature", 10, 20),
		batch,
	}, nil, false)
	require.NoError(t, err)

	// Rows 1 and 3 carry the inactive task B.
	metadata := space.Metadata()
	assert.False(t, metadata.DontRecommend(0))
	assert.True(t, metadata.DontRecommend(1))
	assert.False(t, metadata.DontRecommend(2))
	assert.True(t, metadata.DontRecommend(3))

	exp, _, err := space.GetCandidates(false, false)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 2}, exp.Index())

	// The Batch column carries both task values, so it is retained.
	assert.Contains(t, space.CompRep().Columns(), "Batch")
}

func TestConstantTaskColumnIsDropped(t *testing.T) {
	batch, err := NewTaskParameter("Batch", []string{"A"}, nil)
	require.NoError(t, err)

	space, err := FromProduct([]DiscreteParameter{
		mustNumerical(t, "Temperature", 10, 20),
		batch,
	}, nil, false)
	require.NoError(t, err)

	// A single task value carries no covariate information.
	assert.Equal(t, []string{"Temperature"}, space.CompRep().Columns())

	bounds, err := space.ParamBoundsComp()
	require.NoError(t, err)
	assert.Equal(t, []string{"Temperature"}, bounds.Columns)
	assert.Equal(t, []float64{10}, bounds.Lower)
	assert.Equal(t, []float64{20}, bounds.Upper)
}

func TestProvidedMetadataMustHonorInactiveTasks(t *testing.T) {
	batch, err := NewTaskParameter("Batch", []string{"A", "B"}, []string{"A"})
	require.NoError(t, err)

	exp, err := NewTableFromColumns(
		[]string{"Temperature", "Batch"},
		[]Value{10.0, 10.0},
		[]Value{"A", "B"},
	)
	require.NoError(t, err)

	temp := mustNumerical(t, "Temperature", 10, 20)

	// All-false metadata claims row 1 (task B) is recommendable.
	_, err = NewSubspaceDiscrete(SubspaceConfig{
		Parameters: []DiscreteParameter{temp, batch},
		ExpRep:     exp,
		Metadata:   NewMetadata([]int{0, 1}),
	})
	assert.ErrorIs(t, err, ErrConfiguration)

	// Metadata barring the inactive row is accepted.
	metadata := NewMetadata([]int{0, 1})
	metadata.dontRecommend[1] = true

	space, err := NewSubspaceDiscrete(SubspaceConfig{
		Parameters: []DiscreteParameter{temp, batch},
		ExpRep:     exp,
		Metadata:   metadata,
	})
	require.NoError(t, err)
	assert.True(t, space.Metadata().DontRecommend(1))
}

func TestNewSubspaceDiscreteRejectsDuplicateIndex(t *testing.T) {
	exp, err := NewFloatTable([]string{"a"}, []float64{1, 2})
	require.NoError(t, err)
	require.NoError(t, exp.SetIndex([]int{0, 0}))

	_, err = NewSubspaceDiscrete(SubspaceConfig{
		Parameters: []DiscreteParameter{mustNumerical(t, "a", 1, 2)},
		ExpRep:     exp,
	})
	assert.ErrorIs(t, err, ErrConfiguration)
}

//////
// Campaign loop.
//////

func TestGetCandidatesRespectsMetadataFlags(t *testing.T) {
	space, err := FromProduct([]DiscreteParameter{
		mustNumerical(t, "Temperature", 10, 20),
		mustCategorical(t, "Solvent", "water", "oil"),
	}, nil, false)
	require.NoError(t, err)

	require.NoError(t, space.MarkAsRecommended([]int{0}))

	exp, comp, err := space.GetCandidates(false, false)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3}, exp.Index())
	assert.Equal(t, []int{1, 2, 3}, comp.Index())

	// Repeated recommendations can be allowed explicitly.
	exp, _, err = space.GetCandidates(true, false)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 2, 3}, exp.Index())

	// GetCandidates never mutates metadata.
	exp, _, err = space.GetCandidates(false, false)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3}, exp.Index())
}

func TestMarkAsRecommendedRejectsUnknownLabels(t *testing.T) {
	space, err := FromProduct([]DiscreteParameter{
		mustNumerical(t, "Temperature", 10, 20),
	}, nil, false)
	require.NoError(t, err)

	assert.ErrorIs(t, space.MarkAsRecommended([]int{42}), ErrData)
}

func TestMarkAsMeasured(t *testing.T) {
	space, err := FromProduct([]DiscreteParameter{
		mustNumerical(t, "Temperature", 10, 20),
		mustCategorical(t, "Solvent", "water", "oil"),
	}, nil, false)
	require.NoError(t, err)

	// A measurement slightly off the grid still matches within tolerance
	// (default tolerance is 1.0 for the 10/20 grid).
	measurements, err := NewTableFromColumns(
		[]string{"Temperature", "Solvent"},
		[]Value{10.5, 19.8},
		[]Value{"water", "oil"},
	)
	require.NoError(t, err)

	require.NoError(t, space.MarkAsMeasured(measurements, true))

	metadata := space.Metadata()
	assert.True(t, metadata.WasMeasured(0))  // (10, water)
	assert.True(t, metadata.WasMeasured(3))  // (20, oil)
	assert.False(t, metadata.WasMeasured(1)) // (10, oil)
	assert.False(t, metadata.WasMeasured(2)) // (20, water)

	exp, _, err := space.GetCandidates(false, false)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, exp.Index())

	exp, _, err = space.GetCandidates(false, true)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 2, 3}, exp.Index())
}

//////
// Transform.
//////

func TestTransformReconcilesToEstablishedColumns(t *testing.T) {
	space, err := FromProduct([]DiscreteParameter{
		mustNumerical(t, "Temperature", 10, 20),
		mustCategorical(t, "Solvent", "water", "oil"),
	}, nil, false)
	require.NoError(t, err)

	// Input columns in a different order, plus an unrelated extra column.
	data, err := NewTableFromColumns(
		[]string{"Solvent", "Temperature", "Yield"},
		[]Value{"oil", "water"},
		[]Value{20.0, 10.0},
		[]Value{0.8, 0.3},
	)
	require.NoError(t, err)
	require.NoError(t, data.SetIndex([]int{5, 7}))

	comp, err := space.Transform(data)
	require.NoError(t, err)

	// Output columns follow the space's computational representation, and
	// the input index is preserved.
	assert.Equal(t, space.CompRep().Columns(), comp.Columns())
	assert.Equal(t, []int{5, 7}, comp.Index())

	temps, err := comp.FloatColumn("Temperature")
	require.NoError(t, err)
	assert.Equal(t, []float64{20, 10}, temps)
}

func TestTransformRequiresParameterColumns(t *testing.T) {
	space, err := FromProduct([]DiscreteParameter{
		mustNumerical(t, "Temperature", 10, 20),
		mustCategorical(t, "Solvent", "water", "oil"),
	}, nil, false)
	require.NoError(t, err)

	data, err := NewFloatTable([]string{"Temperature"}, []float64{10})
	require.NoError(t, err)

	_, err = space.Transform(data)
	assert.ErrorIs(t, err, ErrData)
}

func TestTransformZeroRowsKeepsIndex(t *testing.T) {
	space, err := FromProduct([]DiscreteParameter{
		mustNumerical(t, "Temperature", 10, 20),
	}, nil, false)
	require.NoError(t, err)

	data := NewTable("Temperature")

	comp, err := space.Transform(data)
	require.NoError(t, err)
	assert.Equal(t, 0, comp.NumRows())
}

func TestEmptyEncodingSpace(t *testing.T) {
	space, err := FromProduct([]DiscreteParameter{
		mustNumerical(t, "Temperature", 10, 20),
	}, nil, true)
	require.NoError(t, err)

	assert.True(t, space.EmptyEncoding())
	assert.Equal(t, 0, space.CompRep().NumColumns())

	// The empty computational representation still aligns with the
	// experimental index.
	assert.Equal(t, space.ExpRep().Index(), space.CompRep().Index())

	data, err := NewFloatTable([]string{"Temperature"}, []float64{10, 20})
	require.NoError(t, err)

	comp, err := space.Transform(data)
	require.NoError(t, err)
	assert.Equal(t, 0, comp.NumColumns())
	assert.Equal(t, data.Index(), comp.Index())
}
