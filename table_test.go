package doe

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTableFromColumns(t *testing.T) {
	table, err := NewTableFromColumns(
		[]string{"a", "b"},
		[]Value{1.0, 2.0},
		[]Value{"x", "y"},
	)
	require.NoError(t, err)

	assert.Equal(t, 2, table.NumRows())
	assert.Equal(t, 2, table.NumColumns())
	assert.Equal(t, []string{"a", "b"}, table.Columns())
	assert.Equal(t, []int{0, 1}, table.Index())

	col, err := table.Column("b")
	require.NoError(t, err)
	assert.Equal(t, []Value{"x", "y"}, col)
}

func TestNewTableFromColumnsRejectsMisalignment(t *testing.T) {
	_, err := NewTableFromColumns(
		[]string{"a", "b"},
		[]Value{1.0, 2.0},
		[]Value{"x"},
	)
	assert.ErrorIs(t, err, ErrData)

	_, err = NewTableFromColumns(
		[]string{"a", "a"},
		[]Value{1.0},
		[]Value{2.0},
	)
	assert.ErrorIs(t, err, ErrData)
}

func TestTableDropLabelsKeepsSurvivorLabels(t *testing.T) {
	table, err := NewFloatTable([]string{"a"}, []float64{10, 20, 30, 40})
	require.NoError(t, err)

	// Dropping by label keeps the remaining labels intact, so later drops
	// can still refer to the original rows.
	table.DropLabels([]int{1, 3})

	assert.Equal(t, []int{0, 2}, table.Index())

	col, err := table.FloatColumn("a")
	require.NoError(t, err)
	assert.Equal(t, []float64{10, 30}, col)

	// Unknown labels are ignored: an earlier filter may already have
	// removed them.
	table.DropLabels([]int{1, 99})
	assert.Equal(t, []int{0, 2}, table.Index())

	table.ResetIndex()
	assert.Equal(t, []int{0, 1}, table.Index())
}

func TestTableLoc(t *testing.T) {
	table, err := NewFloatTable([]string{"a"}, []float64{10, 20, 30})
	require.NoError(t, err)

	sub, err := table.Loc([]int{2, 0})
	require.NoError(t, err)

	assert.Equal(t, []int{2, 0}, sub.Index())

	col, err := sub.FloatColumn("a")
	require.NoError(t, err)
	assert.Equal(t, []float64{30, 10}, col)

	_, err = table.Loc([]int{5})
	assert.ErrorIs(t, err, ErrData)
}

func TestTableCrossJoin(t *testing.T) {
	left, err := NewFloatTable([]string{"a"}, []float64{1, 2})
	require.NoError(t, err)

	right, err := NewTableFromColumns([]string{"b"}, []Value{"x", "y"})
	require.NoError(t, err)

	joined, err := left.CrossJoin(right)
	require.NoError(t, err)

	require.Equal(t, 4, joined.NumRows())

	// Left rows vary slowest.
	a, err := joined.FloatColumn("a")
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 1, 2, 2}, a)

	b, err := joined.Column("b")
	require.NoError(t, err)
	assert.Equal(t, []Value{"x", "y", "x", "y"}, b)

	// Overlapping columns are rejected.
	_, err = left.CrossJoin(left)
	assert.ErrorIs(t, err, ErrData)
}

func TestTableConcatColumns(t *testing.T) {
	table := NewTable()

	first, err := NewFloatTable([]string{"a"}, []float64{1, 2})
	require.NoError(t, err)
	require.NoError(t, table.ConcatColumns(first))

	second, err := NewFloatTable([]string{"b"}, []float64{3, 4})
	require.NoError(t, err)
	require.NoError(t, table.ConcatColumns(second))

	assert.Equal(t, []string{"a", "b"}, table.Columns())
	assert.Equal(t, 2, table.NumRows())

	// Row count mismatches are rejected.
	third, err := NewFloatTable([]string{"c"}, []float64{5})
	require.NoError(t, err)
	assert.ErrorIs(t, table.ConcatColumns(third), ErrData)
}

func TestTableRowAggregates(t *testing.T) {
	table, err := NewFloatTable(
		[]string{"a", "b"},
		[]float64{1, 2, 3},
		[]float64{10, 20, 30},
	)
	require.NoError(t, err)

	sums, err := table.RowSums([]string{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, []float64{11, 22, 33}, sums)

	products, err := table.RowProducts([]string{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, []float64{10, 40, 90}, products)
}

func TestTableIsConstant(t *testing.T) {
	table, err := NewTableFromColumns(
		[]string{"a", "b"},
		[]Value{1.0, 1.0},
		[]Value{"x", "y"},
	)
	require.NoError(t, err)

	constant, err := table.IsConstant("a")
	require.NoError(t, err)
	assert.True(t, constant)

	constant, err = table.IsConstant("b")
	require.NoError(t, err)
	assert.False(t, constant)
}

func TestTableEqual(t *testing.T) {
	a, err := NewFloatTable([]string{"x"}, []float64{1, 2})
	require.NoError(t, err)

	b, err := NewFloatTable([]string{"x"}, []float64{1, 2})
	require.NoError(t, err)

	assert.True(t, a.Equal(b))

	b.DropLabels([]int{1})
	assert.False(t, a.Equal(b))
}

func TestTableCopyIsIndependent(t *testing.T) {
	table, err := NewFloatTable([]string{"a"}, []float64{1, 2})
	require.NoError(t, err)

	clone := table.Copy()
	clone.DropLabels([]int{0})

	assert.Equal(t, 2, table.NumRows())
	assert.Equal(t, 1, clone.NumRows())
}
