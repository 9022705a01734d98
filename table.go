package doe

import (
	"fmt"

	"golang.org/x/exp/slices"
)

//////
// Const, vars, types.
//////

// Table is a column-major configuration table with a labelled integer row
// index. It is the in-memory currency of the package: the experimental
// representation, the computational representation, and every intermediate
// of the construction pipeline are Tables.
//
// Index labels survive row drops, so constraint filtering can refer to rows
// by label while the table shrinks underneath; a final ResetIndex renumbers
// the survivors densely.
//
// A Table is not safe for concurrent mutation. The package only mutates
// tables it owns during construction; everything handed to callers is a
// copy.
type Table struct {
	// names holds the column order.
	names []string

	// cols maps column name to its cells. All columns have equal length.
	cols map[string][]Value

	// index holds the row labels, aligned with the column cells.
	index []int
}

//////
// Factory.
//////

// NewTable creates an empty table (zero rows) with the given column order.
func NewTable(names ...string) *Table {
	t := &Table{
		names: slices.Clone(names),
		cols:  make(map[string][]Value, len(names)),
	}

	for _, n := range names {
		t.cols[n] = nil
	}

	return t
}

// NewTableFromColumns creates a table from name/cells pairs with a dense
// 0-based index.
//
// Returns an error wrapping ErrData if names repeat or column lengths
// disagree.
func NewTableFromColumns(names []string, columns ...[]Value) (*Table, error) {
	if len(names) != len(columns) {
		return nil, fmt.Errorf("%w: %d column names for %d columns", ErrData, len(names), len(columns))
	}

	t := NewTable(names...)

	rows := -1
	seen := make(map[string]struct{}, len(names))

	for i, n := range names {
		if _, dup := seen[n]; dup {
			return nil, fmt.Errorf("%w: duplicate column %q", ErrData, n)
		}

		seen[n] = struct{}{}

		if rows >= 0 && len(columns[i]) != rows {
			return nil, fmt.Errorf("%w: column %q has %d rows, want %d", ErrData, n, len(columns[i]), rows)
		}

		rows = len(columns[i])
		t.cols[n] = slices.Clone(columns[i])
	}

	if rows < 0 {
		rows = 0
	}

	t.index = denseIndex(rows)

	return t, nil
}

// NewFloatTable is a convenience wrapper over NewTableFromColumns for purely
// numerical tables.
func NewFloatTable(names []string, columns ...[]float64) (*Table, error) {
	values := make([][]Value, len(columns))
	for i, c := range columns {
		values[i] = floatsToValues(c)
	}

	return NewTableFromColumns(names, values...)
}

//////
// Exported functionalities.
//////

// NumRows returns the number of rows.
func (t *Table) NumRows() int {
	return len(t.index)
}

// NumColumns returns the number of columns.
func (t *Table) NumColumns() int {
	return len(t.names)
}

// Columns returns the column names in order.
func (t *Table) Columns() []string {
	return slices.Clone(t.names)
}

// HasColumn reports whether the table carries the named column.
func (t *Table) HasColumn(name string) bool {
	_, ok := t.cols[name]
	return ok
}

// Index returns the row labels in order.
func (t *Table) Index() []int {
	return slices.Clone(t.index)
}

// Column returns the cells of the named column, aligned with Index.
func (t *Table) Column(name string) ([]Value, error) {
	col, ok := t.cols[name]
	if !ok {
		return nil, fmt.Errorf("%w: missing column %q", ErrData, name)
	}

	return slices.Clone(col), nil
}

// FloatColumn returns the named column as float64 cells. Fails if any cell
// is non-numeric.
func (t *Table) FloatColumn(name string) ([]float64, error) {
	col, ok := t.cols[name]
	if !ok {
		return nil, fmt.Errorf("%w: missing column %q", ErrData, name)
	}

	floats := make([]float64, len(col))

	for i, v := range col {
		f, ok := AsFloat(v)
		if !ok {
			return nil, fmt.Errorf("%w: column %q row %d is not numeric", ErrData, name, t.index[i])
		}

		floats[i] = f
	}

	return floats, nil
}

// Cell returns the value at (row position, column name).
func (t *Table) Cell(pos int, name string) (Value, error) {
	col, ok := t.cols[name]
	if !ok {
		return nil, fmt.Errorf("%w: missing column %q", ErrData, name)
	}

	if pos < 0 || pos >= len(col) {
		return nil, fmt.Errorf("%w: row position %d out of range", ErrData, pos)
	}

	return col[pos], nil
}

// Select returns a copy containing only the given columns, preserving the
// index.
func (t *Table) Select(names ...string) (*Table, error) {
	sub := NewTable(names...)
	sub.index = slices.Clone(t.index)

	for _, n := range names {
		col, ok := t.cols[n]
		if !ok {
			return nil, fmt.Errorf("%w: missing column %q", ErrData, n)
		}

		sub.cols[n] = slices.Clone(col)
	}

	return sub, nil
}

// Copy returns a deep copy.
func (t *Table) Copy() *Table {
	c := NewTable(t.names...)
	c.index = slices.Clone(t.index)

	for n, col := range t.cols {
		c.cols[n] = slices.Clone(col)
	}

	return c
}

// DropLabels removes the rows whose index label appears in drop. Labels not
// present in the table are ignored; filtering pipelines legitimately hand in
// labels of rows an earlier constraint already removed.
func (t *Table) DropLabels(drop []int) {
	if len(drop) == 0 {
		return
	}

	set := make(map[int]struct{}, len(drop))
	for _, l := range drop {
		set[l] = struct{}{}
	}

	keep := make([]bool, len(t.index))
	for i, l := range t.index {
		_, gone := set[l]
		keep[i] = !gone
	}

	t.keepMask(keep)
}

// KeepMask removes the rows whose positional mask entry is false.
func (t *Table) KeepMask(keep []bool) error {
	if len(keep) != len(t.index) {
		return fmt.Errorf("%w: mask length %d for %d rows", ErrData, len(keep), len(t.index))
	}

	t.keepMask(keep)

	return nil
}

func (t *Table) keepMask(keep []bool) {
	kept := 0
	for _, k := range keep {
		if k {
			kept++
		}
	}

	index := make([]int, 0, kept)

	for i, k := range keep {
		if k {
			index = append(index, t.index[i])
		}
	}

	for n, col := range t.cols {
		next := make([]Value, 0, kept)

		for i, k := range keep {
			if k {
				next = append(next, col[i])
			}
		}

		t.cols[n] = next
	}

	t.index = index
}

// Loc returns a copy containing the rows with the given index labels, in
// the given order. Unknown labels are an error.
func (t *Table) Loc(labels []int) (*Table, error) {
	pos := make(map[int]int, len(t.index))
	for i, l := range t.index {
		pos[l] = i
	}

	sub := NewTable(t.names...)
	sub.index = slices.Clone(labels)

	for _, n := range t.names {
		sub.cols[n] = make([]Value, 0, len(labels))
	}

	for _, l := range labels {
		i, ok := pos[l]
		if !ok {
			return nil, fmt.Errorf("%w: unknown row label %d", ErrData, l)
		}

		for _, n := range t.names {
			sub.cols[n] = append(sub.cols[n], t.cols[n][i])
		}
	}

	return sub, nil
}

// ResetIndex renumbers the rows densely from zero, discarding the old
// labels.
func (t *Table) ResetIndex() {
	t.index = denseIndex(len(t.index))
}

// SetIndex replaces the row labels. The length must match.
func (t *Table) SetIndex(index []int) error {
	if len(index) != len(t.index) {
		return fmt.Errorf("%w: index length %d for %d rows", ErrData, len(index), len(t.index))
	}

	t.index = slices.Clone(index)

	return nil
}

// CrossJoin returns the Cartesian product of the receiver's rows with the
// other table's rows, left rows varying slowest. Column sets must be
// disjoint. The result carries a dense index.
func (t *Table) CrossJoin(other *Table) (*Table, error) {
	for _, n := range other.names {
		if t.HasColumn(n) {
			return nil, fmt.Errorf("%w: cross join duplicates column %q", ErrData, n)
		}
	}

	names := append(slices.Clone(t.names), other.names...)
	joined := NewTable(names...)

	rows := t.NumRows() * other.NumRows()

	for _, n := range names {
		joined.cols[n] = make([]Value, 0, rows)
	}

	for i := 0; i < t.NumRows(); i++ {
		for j := 0; j < other.NumRows(); j++ {
			for _, n := range t.names {
				joined.cols[n] = append(joined.cols[n], t.cols[n][i])
			}

			for _, n := range other.names {
				joined.cols[n] = append(joined.cols[n], other.cols[n][j])
			}
		}
	}

	joined.index = denseIndex(rows)

	return joined, nil
}

// ConcatColumns appends the other table's columns to the receiver. Row
// counts must match; the receiver keeps its own index. Used to assemble the
// computational representation from per-parameter encodings.
func (t *Table) ConcatColumns(other *Table) error {
	if other.NumRows() != t.NumRows() && t.NumColumns() > 0 {
		return fmt.Errorf("%w: concat of %d rows onto %d rows", ErrData, other.NumRows(), t.NumRows())
	}

	for _, n := range other.names {
		if t.HasColumn(n) {
			return fmt.Errorf("%w: concat duplicates column %q", ErrData, n)
		}
	}

	if t.NumColumns() == 0 && t.NumRows() == 0 {
		t.index = denseIndex(other.NumRows())
	}

	for _, n := range other.names {
		t.names = append(t.names, n)
		t.cols[n] = slices.Clone(other.cols[n])
	}

	return nil
}

// ReorderColumns returns a copy restricted to exactly the given columns, in
// the given order, preserving the index. Reconciles a freshly transformed
// table to an established computational column set.
func (t *Table) ReorderColumns(names []string) (*Table, error) {
	return t.Select(names...)
}

// DropColumn removes the named column in place.
func (t *Table) DropColumn(name string) {
	delete(t.cols, name)

	t.names = slices.DeleteFunc(t.names, func(n string) bool { return n == name })
}

// RowSums sums the given numerical columns per row.
func (t *Table) RowSums(names []string) ([]float64, error) {
	return t.rowFold(names, 0, func(acc, v float64) float64 { return acc + v })
}

// RowProducts multiplies the given numerical columns per row.
func (t *Table) RowProducts(names []string) ([]float64, error) {
	return t.rowFold(names, 1, func(acc, v float64) float64 { return acc * v })
}

func (t *Table) rowFold(names []string, init float64, fold func(acc, v float64) float64) ([]float64, error) {
	out := make([]float64, t.NumRows())
	for i := range out {
		out[i] = init
	}

	for _, n := range names {
		col, err := t.FloatColumn(n)
		if err != nil {
			return nil, err
		}

		for i, v := range col {
			out[i] = fold(out[i], v)
		}
	}

	return out, nil
}

// IsConstant reports whether the named column holds a single repeated value.
// Zero-row columns count as constant.
func (t *Table) IsConstant(name string) (bool, error) {
	col, ok := t.cols[name]
	if !ok {
		return false, fmt.Errorf("%w: missing column %q", ErrData, name)
	}

	for i := 1; i < len(col); i++ {
		if !valuesEqual(col[i], col[0]) {
			return false, nil
		}
	}

	return true, nil
}

// HasDuplicateIndex reports whether any row label repeats.
func (t *Table) HasDuplicateIndex() bool {
	seen := make(map[int]struct{}, len(t.index))

	for _, l := range t.index {
		if _, dup := seen[l]; dup {
			return true
		}

		seen[l] = struct{}{}
	}

	return false
}

// Equal reports whether two tables agree on column order, index, and every
// cell. Numeric cells compare exactly; the JSON round-trip preserves
// float64 bit-for-bit, so this is the equality the round-trip property
// needs.
func (t *Table) Equal(other *Table) bool {
	if other == nil {
		return t == nil
	}

	if !slices.Equal(t.names, other.names) || !slices.Equal(t.index, other.index) {
		return false
	}

	for _, n := range t.names {
		a, b := t.cols[n], other.cols[n]
		if len(a) != len(b) {
			return false
		}

		for i := range a {
			if !valuesEqual(a[i], b[i]) {
				return false
			}
		}
	}

	return true
}

//////
// Helper functions.
//////

// denseIndex builds the canonical 0-based row labelling.
func denseIndex(n int) []int {
	index := make([]int, n)
	for i := range index {
		index[i] = i
	}

	return index
}
