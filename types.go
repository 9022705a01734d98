package doe

import (
	"errors"

	"golang.org/x/exp/slices"
)

//////
// Const, vars, types.
//////

// Sentinel errors. Every failure surfaced by this package wraps one of
// these, so callers can discriminate with errors.Is without parsing
// messages.
var (
	// ErrConfiguration marks programmer/configuration mistakes: duplicate
	// parameter names, malformed constraints, metadata violating the
	// inactive-task invariant, simplex preconditions, unbounded intervals.
	// Never retried; surfaced synchronously at construction time.
	ErrConfiguration = errors.New("doe: invalid configuration")

	// ErrData marks malformed data handed to an otherwise valid space, for
	// example a transform input missing a required parameter column.
	ErrData = errors.New("doe: invalid data")
)

// Parameter describes one controllable variable of an experiment: its name,
// its legal values or bounds, and how to encode it numerically.
//
// Parameters are immutable once constructed. Their derived encoding table
// (CompDF on the discrete variants) is computed lazily and cached for the
// lifetime of the object, so read-only concurrent access is safe.
type Parameter interface {
	// Name returns the unique identifier of the parameter within a space.
	Name() string

	// IsDiscrete reports whether the parameter takes values from a finite
	// set (true) or from a continuous interval (false).
	IsDiscrete() bool

	// IsNumeric reports whether the parameter's native domain is numerical.
	IsNumeric() bool

	// InRange reports whether a value lies in the parameter's legal domain.
	// Numerical-discrete parameters match within their tolerance.
	InRange(v Value) bool
}

// DiscreteParameter is a Parameter with a finite, ordered value set and an
// experimental-to-computational encoding.
type DiscreteParameter interface {
	Parameter

	// Values returns the ordered legal values. The sequence is free of
	// duplicates; numerical variants keep it sorted ascending.
	Values() []Value

	// CompDF returns the encoding table: one row per legal value, one or
	// more numerical columns. Computed once, cached, never mutated.
	CompDF() *Table

	// Transform encodes one column of experimental data. It is a pure
	// function; the returned table has one row per input cell, in input
	// order, with a dense index (the caller realigns indices).
	Transform(values []Value) (*Table, error)
}

// Condition is a stateless predicate over a single column of a
// configuration table. Same inputs always yield the same mask.
type Condition interface {
	// Evaluate returns one boolean per input cell, true where the cell
	// satisfies the condition. Never mutates the input.
	Evaluate(values []Value) ([]bool, error)
}

// Constraint is a named, ordered rule over a subset of parameters of a
// discrete subspace.
//
// Parameter names are validated against the owning space when the
// constraint is attached, not at construction.
type Constraint interface {
	// Kind identifies the constraint type for canonical-order sorting.
	Kind() ConstraintKind

	// Parameters returns the names of the governed parameters, in order.
	Parameters() []string

	// EvalDuringCreation reports whether the constraint can prune the raw
	// Cartesian product at construction time (true) or must be applied
	// post hoc by a consumer (false).
	EvalDuringCreation() bool

	// GetInvalid returns the index labels of the rows violating the
	// constraint. The input table contains at least the governed columns
	// and is never mutated.
	GetInvalid(t *Table) ([]int, error)
}

//////
// Metadata.
//////

// Metadata tracks the recommendation state of every row of a discrete
// subspace, aligned 1:1 with the experimental representation's index.
type Metadata struct {
	index []int
	pos   map[int]int

	wasRecommended []bool
	wasMeasured    []bool
	dontRecommend  []bool
}

// NewMetadata creates all-false metadata for the given row labels.
func NewMetadata(index []int) *Metadata {
	m := &Metadata{
		index:          slices.Clone(index),
		pos:            make(map[int]int, len(index)),
		wasRecommended: make([]bool, len(index)),
		wasMeasured:    make([]bool, len(index)),
		dontRecommend:  make([]bool, len(index)),
	}

	for i, l := range index {
		m.pos[l] = i
	}

	return m
}

// Index returns the row labels the metadata is aligned with.
func (m *Metadata) Index() []int {
	return slices.Clone(m.index)
}

// NumRows returns the number of tracked rows.
func (m *Metadata) NumRows() int {
	return len(m.index)
}

// WasRecommended reports whether the labelled row was already recommended.
func (m *Metadata) WasRecommended(label int) bool {
	i, ok := m.pos[label]
	return ok && m.wasRecommended[i]
}

// WasMeasured reports whether the labelled row has a measurement.
func (m *Metadata) WasMeasured(label int) bool {
	i, ok := m.pos[label]
	return ok && m.wasMeasured[i]
}

// DontRecommend reports whether the labelled row is barred from
// recommendation.
func (m *Metadata) DontRecommend(label int) bool {
	i, ok := m.pos[label]
	return ok && m.dontRecommend[i]
}

// Copy returns a deep copy.
func (m *Metadata) Copy() *Metadata {
	c := NewMetadata(m.index)
	copy(c.wasRecommended, m.wasRecommended)
	copy(c.wasMeasured, m.wasMeasured)
	copy(c.dontRecommend, m.dontRecommend)

	return c
}

// Equal reports value equality of two metadata tables.
func (m *Metadata) Equal(other *Metadata) bool {
	if other == nil {
		return m == nil
	}

	return slices.Equal(m.index, other.index) &&
		slices.Equal(m.wasRecommended, other.wasRecommended) &&
		slices.Equal(m.dontRecommend, other.dontRecommend) &&
		slices.Equal(m.wasMeasured, other.wasMeasured)
}

func (m *Metadata) setRecommended(label int) bool {
	i, ok := m.pos[label]
	if ok {
		m.wasRecommended[i] = true
	}

	return ok
}

func (m *Metadata) setMeasured(label int) bool {
	i, ok := m.pos[label]
	if ok {
		m.wasMeasured[i] = true
	}

	return ok
}
