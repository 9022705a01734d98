package doe

import (
	"fmt"
	"sync"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

//////
// Const, vars, types.
//////

// CategoricalEncoding selects how a label-valued parameter is represented
// numerically.
type CategoricalEncoding string

const (
	// EncodingOneHot encodes each label as its own indicator column.
	EncodingOneHot CategoricalEncoding = "OHE"

	// EncodingInteger encodes each label as its position in the value list.
	EncodingInteger CategoricalEncoding = "INT"
)

// CategoricalParameter is a discrete parameter over a fixed set of labels.
type CategoricalParameter struct {
	name     string
	values   []string
	encoding CategoricalEncoding

	compOnce sync.Once
	comp     *Table
}

// NewCategoricalParameter creates a categorical parameter.
//
// Parameters:
// - name: Unique identifier within a space
// - values: The legal labels, at least one, free of duplicates
// - encoding: EncodingOneHot or EncodingInteger
func NewCategoricalParameter(name string, values []string, encoding CategoricalEncoding) (*CategoricalParameter, error) {
	if err := validateLabels(name, values); err != nil {
		return nil, err
	}

	switch encoding {
	case EncodingOneHot, EncodingInteger:
	case "":
		encoding = EncodingOneHot
	default:
		return nil, fmt.Errorf("%w: parameter %q has unknown encoding %q", ErrConfiguration, name, encoding)
	}

	return &CategoricalParameter{name: name, values: slices.Clone(values), encoding: encoding}, nil
}

// Name returns the parameter name.
func (p *CategoricalParameter) Name() string { return p.name }

// IsDiscrete always reports true.
func (p *CategoricalParameter) IsDiscrete() bool { return true }

// IsNumeric always reports false.
func (p *CategoricalParameter) IsNumeric() bool { return false }

// Encoding returns the configured encoding.
func (p *CategoricalParameter) Encoding() CategoricalEncoding { return p.encoding }

// Labels returns the legal labels in order.
func (p *CategoricalParameter) Labels() []string { return slices.Clone(p.values) }

// Values returns the legal labels as generic cells.
func (p *CategoricalParameter) Values() []Value { return stringsToValues(p.values) }

// InRange reports whether item is one of the legal labels. Non-string
// cells are compared by their label rendering, so a numeric 25 matches the
// label "25".
func (p *CategoricalParameter) InRange(item Value) bool {
	return slices.Contains(p.values, valueString(item))
}

// CompDF returns the label encoding table, one row per label.
func (p *CategoricalParameter) CompDF() *Table {
	p.compOnce.Do(func() {
		p.comp = encodeLabels(p.name, p.values, p.values, p.encoding)
	})

	return p.comp
}

// Transform encodes a column of labels. Unknown labels are a data error.
func (p *CategoricalParameter) Transform(values []Value) (*Table, error) {
	labels, err := resolveLabels(p.name, p.values, values)
	if err != nil {
		return nil, err
	}

	return encodeLabels(p.name, p.values, labels, p.encoding), nil
}

//////
// Task parameters.
//////

// TaskParameter is a categorical parameter that tags which experimental
// context a configuration belongs to. Only rows carrying one of the active
// values are eligible for recommendation; the owning subspace forces
// dont_recommend on every other row.
type TaskParameter struct {
	name         string
	values       []string
	activeValues []string

	compOnce sync.Once
	comp     *Table
}

// NewTaskParameter creates a task parameter. An empty activeValues list
// means all values are active. Active values must be a subset of values.
func NewTaskParameter(name string, values, activeValues []string) (*TaskParameter, error) {
	if err := validateLabels(name, values); err != nil {
		return nil, err
	}

	if len(activeValues) == 0 {
		activeValues = values
	}

	for _, a := range activeValues {
		if !slices.Contains(values, a) {
			return nil, fmt.Errorf(
				"%w: task parameter %q declares unknown active value %q", ErrConfiguration, name, a,
			)
		}
	}

	return &TaskParameter{
		name:         name,
		values:       slices.Clone(values),
		activeValues: slices.Clone(activeValues),
	}, nil
}

// Name returns the parameter name.
func (p *TaskParameter) Name() string { return p.name }

// IsDiscrete always reports true.
func (p *TaskParameter) IsDiscrete() bool { return true }

// IsNumeric always reports false.
func (p *TaskParameter) IsNumeric() bool { return false }

// Labels returns the legal labels in order.
func (p *TaskParameter) Labels() []string { return slices.Clone(p.values) }

// ActiveValues returns the labels whose rows may be recommended.
func (p *TaskParameter) ActiveValues() []string { return slices.Clone(p.activeValues) }

// IsActive reports whether the given cell names an active task.
func (p *TaskParameter) IsActive(item Value) bool {
	return slices.Contains(p.activeValues, valueString(item))
}

// Values returns the legal labels as generic cells.
func (p *TaskParameter) Values() []Value { return stringsToValues(p.values) }

// InRange reports whether item is one of the legal labels.
func (p *TaskParameter) InRange(item Value) bool {
	return slices.Contains(p.values, valueString(item))
}

// CompDF returns the integer encoding of the task labels. Task columns that
// end up constant in a space (single active task) are dropped from the
// computational representation by the owning subspace.
func (p *TaskParameter) CompDF() *Table {
	p.compOnce.Do(func() {
		p.comp = encodeLabels(p.name, p.values, p.values, EncodingInteger)
	})

	return p.comp
}

// Transform encodes a column of task labels.
func (p *TaskParameter) Transform(values []Value) (*Table, error) {
	labels, err := resolveLabels(p.name, p.values, values)
	if err != nil {
		return nil, err
	}

	return encodeLabels(p.name, p.values, labels, EncodingInteger), nil
}

//////
// Substance parameters.
//////

// SubstanceParameter is a discrete parameter whose labels name chemical
// substances, each associated with a structure string (e.g. SMILES).
//
// Numerical descriptors for the substances can be supplied by the caller as
// a table with one row per label, in label order; descriptor computation
// itself (cheminformatics) is an external concern. Without descriptors the
// parameter falls back to a one-hot encoding of the labels.
type SubstanceParameter struct {
	name        string
	labels      []string
	structures  map[string]string
	descriptors *Table

	compOnce sync.Once
	comp     *Table
}

// NewSubstanceParameter creates a substance parameter from a label-to-
// structure map. Labels are ordered alphabetically for determinism.
//
// If descriptors is non-nil it must contain exactly one row per label (in
// alphabetical label order) and only numerical columns; its columns are
// prefixed with the parameter name in the encoding.
func NewSubstanceParameter(name string, data map[string]string, descriptors *Table) (*SubstanceParameter, error) {
	labels := maps.Keys(data)
	slices.Sort(labels)

	if err := validateLabels(name, labels); err != nil {
		return nil, err
	}

	if descriptors != nil {
		if err := validateDescriptors(name, descriptors, len(labels)); err != nil {
			return nil, err
		}

		descriptors = descriptors.Copy()
	}

	return &SubstanceParameter{
		name:        name,
		labels:      labels,
		structures:  maps.Clone(data),
		descriptors: descriptors,
	}, nil
}

// Name returns the parameter name.
func (p *SubstanceParameter) Name() string { return p.name }

// IsDiscrete always reports true.
func (p *SubstanceParameter) IsDiscrete() bool { return true }

// IsNumeric always reports false.
func (p *SubstanceParameter) IsNumeric() bool { return false }

// Labels returns the substance labels in order.
func (p *SubstanceParameter) Labels() []string { return slices.Clone(p.labels) }

// Structure returns the structure string registered for a label.
func (p *SubstanceParameter) Structure(label string) (string, bool) {
	s, ok := p.structures[label]
	return s, ok
}

// Values returns the substance labels as generic cells.
func (p *SubstanceParameter) Values() []Value { return stringsToValues(p.labels) }

// InRange reports whether item is one of the registered labels.
func (p *SubstanceParameter) InRange(item Value) bool {
	return slices.Contains(p.labels, valueString(item))
}

// CompDF returns the descriptor encoding if descriptors were supplied, a
// one-hot encoding of the labels otherwise.
func (p *SubstanceParameter) CompDF() *Table {
	p.compOnce.Do(func() {
		if p.descriptors == nil {
			p.comp = encodeLabels(p.name, p.labels, p.labels, EncodingOneHot)
			return
		}

		p.comp = prefixColumns(p.name, p.descriptors)
	})

	return p.comp
}

// Transform encodes a column of substance labels via the descriptor rows.
func (p *SubstanceParameter) Transform(values []Value) (*Table, error) {
	labels, err := resolveLabels(p.name, p.labels, values)
	if err != nil {
		return nil, err
	}

	return encodeByRow(p.CompDF(), p.labels, labels)
}

//////
// Custom-encoded parameters.
//////

// CustomDiscreteParameter is a discrete parameter with a caller-supplied
// numerical encoding: one descriptor row per legal label.
type CustomDiscreteParameter struct {
	name        string
	labels      []string
	descriptors *Table

	compOnce sync.Once
	comp     *Table
}

// NewCustomDiscreteParameter creates a custom-encoded parameter. The
// descriptor table is mandatory and must have one row per label, in label
// order, with only numerical columns.
func NewCustomDiscreteParameter(name string, labels []string, descriptors *Table) (*CustomDiscreteParameter, error) {
	if err := validateLabels(name, labels); err != nil {
		return nil, err
	}

	if descriptors == nil {
		return nil, fmt.Errorf("%w: parameter %q needs a descriptor table", ErrConfiguration, name)
	}

	if err := validateDescriptors(name, descriptors, len(labels)); err != nil {
		return nil, err
	}

	return &CustomDiscreteParameter{
		name:        name,
		labels:      slices.Clone(labels),
		descriptors: descriptors.Copy(),
	}, nil
}

// Name returns the parameter name.
func (p *CustomDiscreteParameter) Name() string { return p.name }

// IsDiscrete always reports true.
func (p *CustomDiscreteParameter) IsDiscrete() bool { return true }

// IsNumeric always reports false.
func (p *CustomDiscreteParameter) IsNumeric() bool { return false }

// Labels returns the legal labels in order.
func (p *CustomDiscreteParameter) Labels() []string { return slices.Clone(p.labels) }

// Descriptors returns a copy of the raw descriptor table.
func (p *CustomDiscreteParameter) Descriptors() *Table { return p.descriptors.Copy() }

// Values returns the legal labels as generic cells.
func (p *CustomDiscreteParameter) Values() []Value { return stringsToValues(p.labels) }

// InRange reports whether item is one of the legal labels.
func (p *CustomDiscreteParameter) InRange(item Value) bool {
	return slices.Contains(p.labels, valueString(item))
}

// CompDF returns the descriptor encoding with name-prefixed columns.
func (p *CustomDiscreteParameter) CompDF() *Table {
	p.compOnce.Do(func() {
		p.comp = prefixColumns(p.name, p.descriptors)
	})

	return p.comp
}

// Transform encodes a column of labels via the descriptor rows.
func (p *CustomDiscreteParameter) Transform(values []Value) (*Table, error) {
	labels, err := resolveLabels(p.name, p.labels, values)
	if err != nil {
		return nil, err
	}

	return encodeByRow(p.CompDF(), p.labels, labels)
}

//////
// Helper functions.
//////

// validateLabels checks a label set for emptiness and duplicates.
func validateLabels(name string, labels []string) error {
	if len(labels) == 0 {
		return fmt.Errorf("%w: parameter %q has no values", ErrConfiguration, name)
	}

	seen := make(map[string]struct{}, len(labels))

	for _, l := range labels {
		if _, dup := seen[l]; dup {
			return fmt.Errorf("%w: parameter %q has duplicate value %q", ErrConfiguration, name, l)
		}

		seen[l] = struct{}{}
	}

	return nil
}

// validateDescriptors checks a caller-supplied descriptor table: row count
// matching the label count, all cells numerical.
func validateDescriptors(name string, descriptors *Table, labels int) error {
	if descriptors.NumRows() != labels {
		return fmt.Errorf(
			"%w: parameter %q has %d descriptor rows for %d values",
			ErrConfiguration, name, descriptors.NumRows(), labels,
		)
	}

	for _, col := range descriptors.Columns() {
		if _, err := descriptors.FloatColumn(col); err != nil {
			return fmt.Errorf("%w: parameter %q descriptor column %q is not numeric", ErrConfiguration, name, col)
		}
	}

	return nil
}

// resolveLabels renders a column of cells to labels and checks each against
// the legal set.
func resolveLabels(name string, legal []string, values []Value) ([]string, error) {
	labels := make([]string, len(values))

	for i, v := range values {
		l := valueString(v)
		if !slices.Contains(legal, l) {
			return nil, fmt.Errorf("%w: parameter %q cannot encode unknown value %q", ErrData, name, l)
		}

		labels[i] = l
	}

	return labels, nil
}

// encodeLabels builds the numerical encoding of a label column. For
// one-hot, one indicator column per legal label named "<name>_<label>"; for
// integer, a single column named after the parameter holding the label's
// position in the legal list.
func encodeLabels(name string, legal, labels []string, encoding CategoricalEncoding) *Table {
	if encoding == EncodingInteger {
		ints := make([]float64, len(labels))

		for i, l := range labels {
			ints[i] = float64(slices.Index(legal, l))
		}

		t, _ := NewFloatTable([]string{name}, ints)

		return t
	}

	names := make([]string, len(legal))
	columns := make([][]float64, len(legal))

	for j, lv := range legal {
		names[j] = name + "_" + lv
		columns[j] = make([]float64, len(labels))

		for i, l := range labels {
			if l == lv {
				columns[j][i] = 1
			}
		}
	}

	t, _ := NewFloatTable(names, columns...)

	return t
}

// encodeByRow maps each label to its row of the encoding table.
func encodeByRow(comp *Table, legal, labels []string) (*Table, error) {
	rows := make([]int, len(labels))
	for i, l := range labels {
		rows[i] = slices.Index(legal, l)
	}

	return comp.Loc(rows)
}

// prefixColumns copies a descriptor table, prefixing every column with the
// parameter name, and indexes it densely.
func prefixColumns(name string, descriptors *Table) *Table {
	prefixed := NewTable()

	for _, col := range descriptors.Columns() {
		cells, _ := descriptors.Column(col)
		sub, _ := NewTableFromColumns([]string{name + "_" + col}, cells)
		_ = prefixed.ConcatColumns(sub)
	}

	return prefixed
}
