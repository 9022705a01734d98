package doe

import (
	"fmt"

	"golang.org/x/exp/slices"
)

//////
// Const, vars, types.
//////

// SubspaceDiscrete owns the discrete part of a search space: the parameter
// definitions, the table of all valid configurations in their native domain
// (experimental representation), the derived numerical encoding
// (computational representation), and per-row recommendation metadata.
//
// A SubspaceDiscrete is built once through one of the factory paths
// (FromProduct, FromTable, FromSimplex, Empty, or the validated
// NewSubspaceDiscrete) and afterwards only mutated through metadata updates;
// parameters and both representations are immutable after construction.
// The instance is owned by exactly one enclosing search space/campaign and
// provides no internal synchronization.
type SubspaceDiscrete struct {
	parameters  []DiscreteParameter
	constraints []Constraint

	expRep  *Table
	compRep *Table

	metadata *Metadata

	emptyEncoding bool
}

// SubspaceConfig carries the raw ingredients of a SubspaceDiscrete. All
// invariant checks run inside NewSubspaceDiscrete before the instance is
// considered valid; there is no post-construction fixup.
type SubspaceConfig struct {
	// Parameters is the ordered list of discrete parameters. Names must be
	// unique.
	Parameters []DiscreteParameter

	// ExpRep is the experimental representation: one row per valid
	// configuration, one column per parameter. Nil means an empty table.
	// The row index must be free of duplicates.
	ExpRep *Table

	// Metadata optionally supplies pre-existing recommendation metadata
	// (e.g. from deserialization). It must be aligned with ExpRep's index
	// and must not contradict the inactive-task invariant. Nil means
	// all-false defaults with inactive-task rows barred.
	Metadata *Metadata

	// EmptyEncoding forces an empty computational representation,
	// regardless of parameters.
	EmptyEncoding bool

	// Constraints lists the constraints of the space in any order; they
	// are stored in canonical filtering order.
	Constraints []Constraint

	// CompRep optionally supplies a pre-built computational
	// representation (e.g. from deserialization) to skip re-deriving it.
	// Must share ExpRep's index.
	CompRep *Table

	// Order overrides the canonical filtering order. Nil means
	// DefaultFilteringOrder.
	Order FilteringOrder
}

// Bounds holds per-column box bounds of the computational representation,
// for use as optimizer constraints.
type Bounds struct {
	// Columns names the computational columns, aligned with Lower/Upper.
	Columns []string

	// Lower holds the per-column minima.
	Lower []float64

	// Upper holds the per-column maxima.
	Upper []float64
}

//////
// Factory.
//////

// NewSubspaceDiscrete builds a validated discrete subspace from raw
// ingredients. This is the single construction path every factory (and the
// deserializer) funnels through, so the invariants hold for any live
// instance:
//
//   - parameter names are unique;
//   - the experimental representation's index is free of duplicates;
//   - constraints are stored in canonical filtering order and reference
//     only known parameters;
//   - the computational representation shares the experimental index, with
//     constant task-derived columns dropped;
//   - metadata is aligned 1:1 with the index and bars every inactive-task
//     row from recommendation.
func NewSubspaceDiscrete(cfg SubspaceConfig) (*SubspaceDiscrete, error) {
	if err := validateParameterNames(cfg.Parameters); err != nil {
		return nil, err
	}

	expRep := cfg.ExpRep
	if expRep == nil {
		names := make([]string, len(cfg.Parameters))
		for i, p := range cfg.Parameters {
			names[i] = p.Name()
		}

		expRep = NewTable(names...)
	} else {
		expRep = expRep.Copy()
	}

	if expRep.HasDuplicateIndex() {
		return nil, fmt.Errorf(
			"%w: the index of this search space contains duplicates", ErrConfiguration,
		)
	}

	order := cfg.Order
	if order == nil {
		order = DefaultFilteringOrder()
	}

	constraints, err := attachConstraints(cfg.Constraints, cfg.Parameters, order)
	if err != nil {
		return nil, err
	}

	s := &SubspaceDiscrete{
		parameters:    slices.Clone(cfg.Parameters),
		constraints:   constraints,
		expRep:        expRep,
		emptyEncoding: cfg.EmptyEncoding,
	}

	if cfg.CompRep != nil {
		if !slices.Equal(cfg.CompRep.Index(), expRep.Index()) {
			return nil, fmt.Errorf(
				"%w: computational representation index differs from experimental index", ErrConfiguration,
			)
		}

		s.compRep = cfg.CompRep.Copy()
	} else {
		comp, err := s.buildCompRep()
		if err != nil {
			return nil, err
		}

		s.compRep = comp
	}

	onTask, err := s.onTaskMask()
	if err != nil {
		return nil, err
	}

	if cfg.Metadata != nil {
		if !slices.Equal(cfg.Metadata.Index(), expRep.Index()) {
			return nil, fmt.Errorf(
				"%w: metadata index differs from experimental index", ErrConfiguration,
			)
		}

		for i, label := range expRep.Index() {
			if !onTask[i] && !cfg.Metadata.DontRecommend(label) {
				return nil, fmt.Errorf(
					"%w: the provided metadata allows recommending configurations of inactive tasks (row %d)",
					ErrConfiguration, label,
				)
			}
		}

		s.metadata = cfg.Metadata.Copy()
	} else {
		s.metadata = NewMetadata(expRep.Index())

		for i := range onTask {
			if !onTask[i] {
				s.metadata.dontRecommend[i] = true
			}
		}
	}

	return s, nil
}

// Empty creates a subspace with no parameters and no rows. Stand-in for
// the discrete part of a purely continuous space.
func Empty() *SubspaceDiscrete {
	s, err := NewSubspaceDiscrete(SubspaceConfig{})
	if err != nil {
		// No ingredients, no invariants to violate.
		panic(err)
	}

	return s
}

// FromProduct builds the subspace holding the full Cartesian product of the
// parameters' value sets, pruned by the constraints.
//
// Constraints are first brought into canonical filtering order. Those with
// EvalDuringCreation are then applied one at a time, each dropping its
// invalid rows before the next one runs, so later constraints see an
// already-pruned table; the ordering is load-bearing, not an optimization.
// Constraints that do not evaluate during creation are retained on the
// space for post-hoc use but prune nothing here.
//
// A product pruned down to zero rows is a valid (if useless) space, not an
// error.
func FromProduct(parameters []DiscreteParameter, constraints []Constraint, emptyEncoding bool) (*SubspaceDiscrete, error) {
	if err := validateParameterNames(parameters); err != nil {
		return nil, err
	}

	order := DefaultFilteringOrder()

	attached, err := attachConstraints(constraints, parameters, order)
	if err != nil {
		return nil, err
	}

	params := make([]Parameter, len(parameters))
	for i, p := range parameters {
		params[i] = p
	}

	expRep := ParameterCartesianProduct(params)

	for _, c := range attached {
		if !c.EvalDuringCreation() {
			continue
		}

		invalid, err := c.GetInvalid(expRep)
		if err != nil {
			return nil, err
		}

		expRep.DropLabels(invalid)
	}

	expRep.ResetIndex()

	return NewSubspaceDiscrete(SubspaceConfig{
		Parameters:    parameters,
		ExpRep:        expRep,
		EmptyEncoding: emptyEncoding,
		Constraints:   attached,
		Order:         order,
	})
}

// FromTable builds a subspace from an explicit table of allowed
// configurations.
//
// The parameters list may cover only part of the table's columns: columns
// with a matching parameter name use that parameter, all remaining columns
// get an auto-inferred parameter: numerical-discrete when every cell is
// numeric and at least two distinct values exist, categorical otherwise.
func FromTable(df *Table, parameters []DiscreteParameter, emptyEncoding bool) (*SubspaceDiscrete, error) {
	byName := make(map[string]DiscreteParameter, len(parameters))
	for _, p := range parameters {
		byName[p.Name()] = p
	}

	for name := range byName {
		if !df.HasColumn(name) {
			return nil, fmt.Errorf(
				"%w: parameter %q has no matching column in the table", ErrConfiguration, name,
			)
		}
	}

	full := make([]DiscreteParameter, 0, df.NumColumns())

	for _, name := range df.Columns() {
		if p, ok := byName[name]; ok {
			full = append(full, p)
			continue
		}

		col, err := df.Column(name)
		if err != nil {
			return nil, err
		}

		inferred, err := inferParameter(name, col)
		if err != nil {
			return nil, err
		}

		full = append(full, inferred)
	}

	return NewSubspaceDiscrete(SubspaceConfig{
		Parameters:    full,
		ExpRep:        df,
		EmptyEncoding: emptyEncoding,
	})
}

// ParameterCartesianProduct creates the Cartesian product of all discrete
// parameter value sets: one row per combination, one column per parameter,
// in parameter order, first parameter varying slowest, dense index.
//
// Continuous parameters contribute no rows or columns. With no discrete
// parameters at all the result is an empty table (zero rows, zero
// columns), a valid stand-in for a purely continuous space.
func ParameterCartesianProduct(parameters []Parameter) *Table {
	var names []string

	var valueSets [][]Value

	for _, p := range parameters {
		dp, ok := p.(DiscreteParameter)
		if !ok || !p.IsDiscrete() {
			continue
		}

		names = append(names, dp.Name())
		valueSets = append(valueSets, dp.Values())
	}

	if len(names) == 0 {
		return NewTable()
	}

	rows := 1
	for _, vs := range valueSets {
		rows *= len(vs)
	}

	columns := make([][]Value, len(names))

	// Odometer enumeration: repeat each value in blocks so the first
	// parameter varies slowest, matching the nesting order of the input.
	block := rows

	for j, vs := range valueSets {
		block /= len(vs)
		columns[j] = make([]Value, 0, rows)

		for len(columns[j]) < rows {
			for _, v := range vs {
				for b := 0; b < block; b++ {
					columns[j] = append(columns[j], v)
				}
			}
		}
	}

	t, _ := NewTableFromColumns(names, columns...)

	return t
}

//////
// Exported functionalities.
//////

// Parameters returns the ordered parameter list.
func (s *SubspaceDiscrete) Parameters() []DiscreteParameter {
	return slices.Clone(s.parameters)
}

// Constraints returns the constraints in canonical filtering order.
func (s *SubspaceDiscrete) Constraints() []Constraint {
	return slices.Clone(s.constraints)
}

// ExpRep returns a copy of the experimental representation.
func (s *SubspaceDiscrete) ExpRep() *Table {
	return s.expRep.Copy()
}

// CompRep returns a copy of the computational representation. Its index
// equals the experimental index after any construction path.
func (s *SubspaceDiscrete) CompRep() *Table {
	return s.compRep.Copy()
}

// Metadata returns a copy of the recommendation metadata.
func (s *SubspaceDiscrete) Metadata() *Metadata {
	return s.metadata.Copy()
}

// EmptyEncoding reports whether the space uses an empty encoding.
func (s *SubspaceDiscrete) EmptyEncoding() bool {
	return s.emptyEncoding
}

// IsEmpty reports whether the subspace holds no parameters.
func (s *SubspaceDiscrete) IsEmpty() bool {
	return len(s.parameters) == 0
}

// ParamBoundsComp returns min/max bounds per retained computational column,
// for use as optimizer box constraints. Columns dropped from the
// computational representation (constant task columns) are excluded.
func (s *SubspaceDiscrete) ParamBoundsComp() (*Bounds, error) {
	bounds := &Bounds{}

	for _, p := range s.parameters {
		comp := p.CompDF()

		for _, col := range comp.Columns() {
			if !s.compRep.HasColumn(col) {
				continue
			}

			values, err := comp.FloatColumn(col)
			if err != nil {
				return nil, err
			}

			bounds.Columns = append(bounds.Columns, col)
			bounds.Lower = append(bounds.Lower, slices.Min(values))
			bounds.Upper = append(bounds.Upper, slices.Max(values))
		}
	}

	return bounds, nil
}

// GetCandidates returns the configurations eligible for recommendation, in
// both representations, sharing one filtered index.
//
// Rows flagged dont_recommend are excluded unconditionally. Rows already
// recommended are excluded unless allowRepeated; rows already measured are
// excluded unless allowMeasured.
//
// Pure read: never mutates metadata. An exhausted space yields zero-row
// tables, not an error.
func (s *SubspaceDiscrete) GetCandidates(allowRepeated, allowMeasured bool) (*Table, *Table, error) {
	var labels []int

	for i, label := range s.metadata.index {
		switch {
		case s.metadata.dontRecommend[i]:
		case s.metadata.wasRecommended[i] && !allowRepeated:
		case s.metadata.wasMeasured[i] && !allowMeasured:
		default:
			labels = append(labels, label)
		}
	}

	if labels == nil {
		labels = []int{}
	}

	exp, err := s.expRep.Loc(labels)
	if err != nil {
		return nil, nil, err
	}

	comp, err := s.compRep.Loc(labels)
	if err != nil {
		return nil, nil, err
	}

	return exp, comp, nil
}

// Transform encodes experimental data into the computational
// representation.
//
// The input must contain all parameter columns; extra columns are ignored.
// The result shares the input's index. With an empty encoding, or zero
// input rows, an empty table with the input's index is returned so
// downstream code can rely on index alignment even in degenerate cases.
//
// Once the space's own computational representation exists, every
// transform is reconciled to exactly its column set, keeping model inputs
// dimensionally consistent over the life of a campaign.
func (s *SubspaceDiscrete) Transform(data *Table) (*Table, error) {
	established := []string(nil)
	if s.compRep != nil {
		established = s.compRep.Columns()
	}

	return transformColumns(s.parameters, data, s.emptyEncoding, established)
}

// MarkAsMeasured marks every configuration matching a measurement row as
// measured.
//
// Matching is fuzzy: non-numeric columns match exactly, numeric columns
// match within each parameter's tolerance when withinTolerance is set and
// by closest grid value otherwise. Ambiguous matches mark all matched
// rows; measurement rows matching nothing are skipped (both are policy
// calls of the matcher, not errors).
func (s *SubspaceDiscrete) MarkAsMeasured(measurements *Table, withinTolerance bool) error {
	matched, err := FuzzyRowMatch(s.expRep, measurements, s.parameters, withinTolerance)
	if err != nil {
		return err
	}

	for _, label := range matched {
		s.metadata.setMeasured(label)
	}

	return nil
}

// MarkAsRecommended marks the labelled configurations as recommended.
// Labels not present in the space are a data error.
func (s *SubspaceDiscrete) MarkAsRecommended(labels []int) error {
	for _, label := range labels {
		if !s.metadata.setRecommended(label) {
			return fmt.Errorf("%w: unknown row label %d", ErrData, label)
		}
	}

	return nil
}

//////
// Internal construction.
//////

// buildCompRep derives the computational representation from the
// experimental one: the defining transform, followed by dropping constant
// columns that stem from task parameters (a single active task carries no
// covariate information).
func (s *SubspaceDiscrete) buildCompRep() (*Table, error) {
	comp, err := transformColumns(s.parameters, s.expRep, s.emptyEncoding, nil)
	if err != nil {
		return nil, err
	}

	for _, p := range s.parameters {
		if _, isTask := p.(*TaskParameter); !isTask {
			continue
		}

		for _, col := range p.CompDF().Columns() {
			if !comp.HasColumn(col) {
				continue
			}

			constant, err := comp.IsConstant(col)
			if err != nil {
				return nil, err
			}

			if constant {
				comp.DropColumn(col)
			}
		}
	}

	return comp, nil
}

// onTaskMask returns one boolean per experimental row, true where the row
// belongs to an active task. Spaces without a task parameter are fully
// active. Only the first task parameter is consulted; multi-task spaces
// declare a single task dimension.
func (s *SubspaceDiscrete) onTaskMask() ([]bool, error) {
	mask := make([]bool, s.expRep.NumRows())
	for i := range mask {
		mask[i] = true
	}

	for _, p := range s.parameters {
		task, ok := p.(*TaskParameter)
		if !ok {
			continue
		}

		col, err := s.expRep.Column(task.Name())
		if err != nil {
			return nil, err
		}

		for i, v := range col {
			mask[i] = task.IsActive(v)
		}

		break
	}

	return mask, nil
}

//////
// Helper functions.
//////

// validateParameterNames rejects duplicate parameter names.
func validateParameterNames[P Parameter](parameters []P) error {
	seen := make(map[string]struct{}, len(parameters))

	for _, p := range parameters {
		if _, dup := seen[p.Name()]; dup {
			return fmt.Errorf("%w: duplicate parameter name %q", ErrConfiguration, p.Name())
		}

		seen[p.Name()] = struct{}{}
	}

	return nil
}

// attachConstraints validates constraint parameter references against the
// space's parameters and brings the constraints into canonical filtering
// order.
func attachConstraints(constraints []Constraint, parameters []DiscreteParameter, order FilteringOrder) ([]Constraint, error) {
	known := make(map[string]struct{}, len(parameters))
	for _, p := range parameters {
		known[p.Name()] = struct{}{}
	}

	for _, c := range constraints {
		for _, name := range constraintReferences(c) {
			if _, ok := known[name]; !ok {
				return nil, fmt.Errorf(
					"%w: constraint %q references unknown parameter %q", ErrConfiguration, c.Kind(), name,
				)
			}
		}
	}

	return SortConstraints(constraints, order)
}

// constraintReferences collects every parameter name a constraint touches,
// including nested dependency references.
func constraintReferences(c Constraint) []string {
	names := c.Parameters()

	collect := func(d *DependenciesConstraint) {
		names = append(names, d.Parameters()...)
		for _, aff := range d.Affected() {
			names = append(names, aff...)
		}
	}

	switch cc := c.(type) {
	case *DependenciesConstraint:
		for _, aff := range cc.Affected() {
			names = append(names, aff...)
		}
	case *PermutationInvarianceConstraint:
		if cc.Dependencies() != nil {
			collect(cc.Dependencies())
		}
	}

	return names
}

// transformColumns is the shared exp-to-comp transform: per-parameter
// encodings concatenated column-wise, index carried over from the input,
// optionally reconciled to an established column set.
func transformColumns(parameters []DiscreteParameter, data *Table, emptyEncoding bool, established []string) (*Table, error) {
	if emptyEncoding || data.NumRows() == 0 {
		empty := NewTable()
		empty.index = data.Index()

		return empty, nil
	}

	comp := NewTable()

	for _, p := range parameters {
		col, err := data.Column(p.Name())
		if err != nil {
			return nil, err
		}

		encoded, err := p.Transform(col)
		if err != nil {
			return nil, err
		}

		if err := comp.ConcatColumns(encoded); err != nil {
			return nil, err
		}
	}

	if comp.NumColumns() == 0 {
		comp.index = data.Index()
	} else if err := comp.SetIndex(data.Index()); err != nil {
		return nil, err
	}

	if established != nil {
		reconciled, err := comp.ReorderColumns(established)
		if err != nil {
			return nil, fmt.Errorf("transform does not conform to the established computational columns: %w", err)
		}

		return reconciled, nil
	}

	return comp, nil
}

// inferParameter builds a parameter for a table column without an explicit
// definition: numerical-discrete when possible, categorical as fallback.
func inferParameter(name string, col []Value) (DiscreteParameter, error) {
	unique := make([]Value, 0, len(col))
	seen := make(map[string]struct{}, len(col))

	for _, v := range col {
		key := valueKey(v)
		if _, dup := seen[key]; dup {
			continue
		}

		seen[key] = struct{}{}
		unique = append(unique, v)
	}

	allNumeric := true

	floats := make([]float64, 0, len(unique))

	for _, v := range unique {
		f, ok := AsFloat(v)
		if !ok {
			allNumeric = false
			break
		}

		floats = append(floats, f)
	}

	if allNumeric {
		if p, err := NewNumericalDiscreteParameter(name, floats); err == nil {
			return p, nil
		}
	}

	labels := make([]string, len(unique))
	for i, v := range unique {
		labels[i] = valueString(v)
	}

	return NewCategoricalParameter(name, labels, EncodingOneHot)
}
