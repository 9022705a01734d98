package doe

import (
	"encoding/json"
	"fmt"
	"reflect"
)

//////
// Serialization.
//
// The space round-trips through a plain JSON document: field-for-field
// serialization of parameters, experimental representation, metadata,
// empty-encoding flag, constraints, and computational representation.
// Deserialization funnels through NewSubspaceDiscrete, so the same
// invariant checks run as for fresh construction: tampered metadata that
// would allow recommending inactive-task rows fails to load.
//////

type tableJSON struct {
	Columns []string           `json:"columns"`
	Index   []int              `json:"index"`
	Data    map[string][]Value `json:"data"`
}

// MarshalJSON serializes the table column-wise.
func (t *Table) MarshalJSON() ([]byte, error) {
	dto := tableJSON{
		Columns: t.Columns(),
		Index:   t.Index(),
		Data:    make(map[string][]Value, t.NumColumns()),
	}

	for _, n := range dto.Columns {
		col, err := t.Column(n)
		if err != nil {
			return nil, err
		}

		dto.Data[n] = col
	}

	return json.Marshal(dto)
}

// UnmarshalJSON deserializes a table. Numeric cells decode to float64,
// labels to string; any other cell type is rejected.
func (t *Table) UnmarshalJSON(data []byte) error {
	var dto tableJSON
	if err := json.Unmarshal(data, &dto); err != nil {
		return err
	}

	rebuilt := NewTable(dto.Columns...)

	rows := len(dto.Index)

	for _, n := range dto.Columns {
		col, ok := dto.Data[n]
		if !ok {
			return fmt.Errorf("%w: serialized table misses data for column %q", ErrData, n)
		}

		if len(col) != rows {
			return fmt.Errorf("%w: serialized column %q has %d cells for %d rows", ErrData, n, len(col), rows)
		}

		for _, v := range col {
			switch v.(type) {
			case float64, string:
			default:
				return fmt.Errorf("%w: serialized cell %v has unsupported type %T", ErrData, v, v)
			}
		}

		rebuilt.cols[n] = col
	}

	rebuilt.index = dto.Index

	*t = *rebuilt

	return nil
}

type metadataJSON struct {
	Index          []int  `json:"index"`
	WasRecommended []bool `json:"was_recommended"`
	WasMeasured    []bool `json:"was_measured"`
	DontRecommend  []bool `json:"dont_recommend"`
}

// MarshalJSON serializes the metadata column-wise.
func (m *Metadata) MarshalJSON() ([]byte, error) {
	return json.Marshal(metadataJSON{
		Index:          m.Index(),
		WasRecommended: append([]bool(nil), m.wasRecommended...),
		WasMeasured:    append([]bool(nil), m.wasMeasured...),
		DontRecommend:  append([]bool(nil), m.dontRecommend...),
	})
}

// UnmarshalJSON deserializes metadata.
func (m *Metadata) UnmarshalJSON(data []byte) error {
	var dto metadataJSON
	if err := json.Unmarshal(data, &dto); err != nil {
		return err
	}

	n := len(dto.Index)
	if len(dto.WasRecommended) != n || len(dto.WasMeasured) != n || len(dto.DontRecommend) != n {
		return fmt.Errorf("%w: serialized metadata columns are not aligned with the index", ErrData)
	}

	rebuilt := NewMetadata(dto.Index)
	copy(rebuilt.wasRecommended, dto.WasRecommended)
	copy(rebuilt.wasMeasured, dto.WasMeasured)
	copy(rebuilt.dontRecommend, dto.DontRecommend)

	*m = *rebuilt

	return nil
}

//////
// Parameter serialization.
//////

type parameterJSON struct {
	Type string `json:"type"`
	Name string `json:"name"`

	// Numerical discrete.
	Values    []float64 `json:"values,omitempty"`
	Tolerance *float64  `json:"tolerance,omitempty"`

	// Label-valued variants.
	Labels   []string `json:"labels,omitempty"`
	Encoding string   `json:"encoding,omitempty"`

	// Task.
	ActiveValues []string `json:"active_values,omitempty"`

	// Substance.
	Data map[string]string `json:"data,omitempty"`

	// Substance/custom descriptors.
	Descriptors *Table `json:"descriptors,omitempty"`
}

const (
	typeNumericalDiscrete = "numerical_discrete"
	typeCategorical       = "categorical"
	typeTask              = "task"
	typeSubstance         = "substance"
	typeCustom            = "custom"
)

func parameterToJSON(p DiscreteParameter) (parameterJSON, error) {
	switch c := p.(type) {
	case *NumericalDiscreteParameter:
		tolerance := c.Tolerance()

		return parameterJSON{
			Type:      typeNumericalDiscrete,
			Name:      c.Name(),
			Values:    c.FloatValues(),
			Tolerance: &tolerance,
		}, nil
	case *CategoricalParameter:
		return parameterJSON{
			Type:     typeCategorical,
			Name:     c.Name(),
			Labels:   c.Labels(),
			Encoding: string(c.Encoding()),
		}, nil
	case *TaskParameter:
		return parameterJSON{
			Type:         typeTask,
			Name:         c.Name(),
			Labels:       c.Labels(),
			ActiveValues: c.ActiveValues(),
		}, nil
	case *SubstanceParameter:
		dto := parameterJSON{
			Type: typeSubstance,
			Name: c.Name(),
			Data: c.structures,
		}

		if c.descriptors != nil {
			dto.Descriptors = c.descriptors.Copy()
		}

		return dto, nil
	case *CustomDiscreteParameter:
		return parameterJSON{
			Type:        typeCustom,
			Name:        c.Name(),
			Labels:      c.Labels(),
			Descriptors: c.Descriptors(),
		}, nil
	default:
		return parameterJSON{}, fmt.Errorf("%w: parameter %q has unserializable type %T", ErrConfiguration, p.Name(), p)
	}
}

func parameterFromJSON(dto parameterJSON) (DiscreteParameter, error) {
	switch dto.Type {
	case typeNumericalDiscrete:
		if dto.Tolerance == nil {
			return NewNumericalDiscreteParameter(dto.Name, dto.Values)
		}

		return NewNumericalDiscreteParameterWithTolerance(dto.Name, dto.Values, *dto.Tolerance)
	case typeCategorical:
		return NewCategoricalParameter(dto.Name, dto.Labels, CategoricalEncoding(dto.Encoding))
	case typeTask:
		return NewTaskParameter(dto.Name, dto.Labels, dto.ActiveValues)
	case typeSubstance:
		return NewSubstanceParameter(dto.Name, dto.Data, dto.Descriptors)
	case typeCustom:
		return NewCustomDiscreteParameter(dto.Name, dto.Labels, dto.Descriptors)
	default:
		return nil, fmt.Errorf("%w: unknown parameter type %q", ErrData, dto.Type)
	}
}

//////
// Condition and constraint serialization.
//////

type conditionJSON struct {
	Type string `json:"type"`

	// Threshold.
	Operator  string  `json:"operator,omitempty"`
	Threshold float64 `json:"threshold,omitempty"`
	Tolerance float64 `json:"tolerance,omitempty"`

	// Sub-selection.
	Selection []Value `json:"selection,omitempty"`
}

const (
	typeThreshold    = "threshold"
	typeSubSelection = "sub_selection"
)

func conditionToJSON(c Condition) (conditionJSON, error) {
	switch cc := c.(type) {
	case ThresholdCondition:
		return conditionJSON{
			Type:      typeThreshold,
			Operator:  string(cc.Operator),
			Threshold: cc.Threshold,
			Tolerance: cc.Tolerance,
		}, nil
	case SubSelectionCondition:
		return conditionJSON{Type: typeSubSelection, Selection: cc.Selection}, nil
	default:
		return conditionJSON{}, fmt.Errorf("%w: condition type %T is not serializable", ErrConfiguration, c)
	}
}

func conditionFromJSON(dto conditionJSON) (Condition, error) {
	switch dto.Type {
	case typeThreshold:
		return ThresholdCondition{
			Operator:  Operator(dto.Operator),
			Threshold: dto.Threshold,
			Tolerance: dto.Tolerance,
		}, nil
	case typeSubSelection:
		return SubSelectionCondition{Selection: dto.Selection}, nil
	default:
		return nil, fmt.Errorf("%w: unknown condition type %q", ErrData, dto.Type)
	}
}

type constraintJSON struct {
	Kind       string          `json:"kind"`
	Parameters []string        `json:"parameters"`
	Condition  *conditionJSON  `json:"condition,omitempty"`
	Conditions []conditionJSON `json:"conditions,omitempty"`
	Combiner   string          `json:"combiner,omitempty"`
	Affected   [][]string      `json:"affected,omitempty"`
	Depends    *constraintJSON `json:"dependencies,omitempty"`
}

func constraintToJSON(c Constraint) (constraintJSON, error) {
	switch cc := c.(type) {
	case *SumConstraint:
		cond, err := conditionToJSON(cc.Condition())
		if err != nil {
			return constraintJSON{}, err
		}

		return constraintJSON{Kind: string(KindSum), Parameters: cc.Parameters(), Condition: &cond}, nil
	case *ProductConstraint:
		cond, err := conditionToJSON(cc.Condition())
		if err != nil {
			return constraintJSON{}, err
		}

		return constraintJSON{Kind: string(KindProduct), Parameters: cc.Parameters(), Condition: &cond}, nil
	case *ExcludeConstraint:
		dto := constraintJSON{
			Kind:       string(KindExclude),
			Parameters: cc.Parameters(),
			Combiner:   string(cc.LogicCombiner()),
		}

		for _, cond := range cc.Conditions() {
			cj, err := conditionToJSON(cond)
			if err != nil {
				return constraintJSON{}, err
			}

			dto.Conditions = append(dto.Conditions, cj)
		}

		return dto, nil
	case *NoLabelDuplicatesConstraint:
		return constraintJSON{Kind: string(KindNoLabelDuplicates), Parameters: cc.Parameters()}, nil
	case *LinkedParametersConstraint:
		return constraintJSON{Kind: string(KindLinkedParameters), Parameters: cc.Parameters()}, nil
	case *DependenciesConstraint:
		dto := constraintJSON{
			Kind:       string(KindDependencies),
			Parameters: cc.Parameters(),
			Affected:   cc.Affected(),
		}

		for _, cond := range cc.Conditions() {
			cj, err := conditionToJSON(cond)
			if err != nil {
				return constraintJSON{}, err
			}

			dto.Conditions = append(dto.Conditions, cj)
		}

		return dto, nil
	case *PermutationInvarianceConstraint:
		dto := constraintJSON{Kind: string(KindPermutationInvariance), Parameters: cc.Parameters()}

		if cc.Dependencies() != nil {
			nested, err := constraintToJSON(cc.Dependencies())
			if err != nil {
				return constraintJSON{}, err
			}

			dto.Depends = &nested
		}

		return dto, nil
	default:
		// Custom constraints carry arbitrary code and cannot round-trip.
		return constraintJSON{}, fmt.Errorf("%w: constraint kind %q is not serializable", ErrConfiguration, c.Kind())
	}
}

func constraintFromJSON(dto constraintJSON) (Constraint, error) {
	switch ConstraintKind(dto.Kind) {
	case KindSum, KindProduct:
		if dto.Condition == nil || dto.Condition.Type != typeThreshold {
			return nil, fmt.Errorf("%w: %s constraint needs a threshold condition", ErrData, dto.Kind)
		}

		cond, err := conditionFromJSON(*dto.Condition)
		if err != nil {
			return nil, err
		}

		threshold := cond.(ThresholdCondition)

		if ConstraintKind(dto.Kind) == KindSum {
			return NewSumConstraint(dto.Parameters, threshold), nil
		}

		return NewProductConstraint(dto.Parameters, threshold), nil
	case KindExclude:
		conditions, err := conditionsFromJSON(dto.Conditions)
		if err != nil {
			return nil, err
		}

		return NewExcludeConstraint(dto.Parameters, conditions, Combiner(dto.Combiner))
	case KindNoLabelDuplicates:
		return NewNoLabelDuplicatesConstraint(dto.Parameters), nil
	case KindLinkedParameters:
		return NewLinkedParametersConstraint(dto.Parameters), nil
	case KindDependencies:
		conditions, err := conditionsFromJSON(dto.Conditions)
		if err != nil {
			return nil, err
		}

		return NewDependenciesConstraint(dto.Parameters, conditions, dto.Affected)
	case KindPermutationInvariance:
		var dependencies *DependenciesConstraint

		if dto.Depends != nil {
			nested, err := constraintFromJSON(*dto.Depends)
			if err != nil {
				return nil, err
			}

			deps, ok := nested.(*DependenciesConstraint)
			if !ok {
				return nil, fmt.Errorf("%w: permutation invariance nests a non-dependencies constraint", ErrData)
			}

			dependencies = deps
		}

		return NewPermutationInvarianceConstraint(dto.Parameters, dependencies), nil
	default:
		return nil, fmt.Errorf("%w: unknown constraint kind %q", ErrData, dto.Kind)
	}
}

func conditionsFromJSON(dtos []conditionJSON) ([]Condition, error) {
	conditions := make([]Condition, len(dtos))

	for i, dto := range dtos {
		c, err := conditionFromJSON(dto)
		if err != nil {
			return nil, err
		}

		conditions[i] = c
	}

	return conditions, nil
}

//////
// Subspace serialization.
//////

type subspaceJSON struct {
	Parameters    []parameterJSON  `json:"parameters"`
	ExpRep        *Table           `json:"exp_rep"`
	Metadata      *Metadata        `json:"metadata"`
	EmptyEncoding bool             `json:"empty_encoding"`
	Constraints   []constraintJSON `json:"constraints,omitempty"`
	CompRep       *Table           `json:"comp_rep"`
}

// MarshalJSON serializes the subspace field-for-field. Spaces carrying
// custom constraints are not serializable.
func (s *SubspaceDiscrete) MarshalJSON() ([]byte, error) {
	dto := subspaceJSON{
		ExpRep:        s.expRep,
		Metadata:      s.metadata,
		EmptyEncoding: s.emptyEncoding,
		CompRep:       s.compRep,
	}

	for _, p := range s.parameters {
		pj, err := parameterToJSON(p)
		if err != nil {
			return nil, err
		}

		dto.Parameters = append(dto.Parameters, pj)
	}

	for _, c := range s.constraints {
		cj, err := constraintToJSON(c)
		if err != nil {
			return nil, err
		}

		dto.Constraints = append(dto.Constraints, cj)
	}

	return json.Marshal(dto)
}

// UnmarshalJSON deserializes a subspace through the validated constructor,
// re-triggering the same invariant checks as fresh construction.
func (s *SubspaceDiscrete) UnmarshalJSON(data []byte) error {
	var dto subspaceJSON
	if err := json.Unmarshal(data, &dto); err != nil {
		return err
	}

	parameters := make([]DiscreteParameter, len(dto.Parameters))

	for i, pj := range dto.Parameters {
		p, err := parameterFromJSON(pj)
		if err != nil {
			return err
		}

		parameters[i] = p
	}

	constraints := make([]Constraint, len(dto.Constraints))

	for i, cj := range dto.Constraints {
		c, err := constraintFromJSON(cj)
		if err != nil {
			return err
		}

		constraints[i] = c
	}

	rebuilt, err := NewSubspaceDiscrete(SubspaceConfig{
		Parameters:    parameters,
		ExpRep:        dto.ExpRep,
		Metadata:      dto.Metadata,
		EmptyEncoding: dto.EmptyEncoding,
		Constraints:   constraints,
		CompRep:       dto.CompRep,
	})
	if err != nil {
		return err
	}

	*s = *rebuilt

	return nil
}

//////
// Equality.
//////

// Equal reports value equality of two subspaces: parameters, constraints,
// both representations, metadata, and the empty-encoding flag. Custom
// constraints compare by identity (they carry arbitrary code).
func (s *SubspaceDiscrete) Equal(other *SubspaceDiscrete) bool {
	if other == nil {
		return s == nil
	}

	if s.emptyEncoding != other.emptyEncoding ||
		len(s.parameters) != len(other.parameters) ||
		len(s.constraints) != len(other.constraints) {
		return false
	}

	for i := range s.parameters {
		a, errA := parameterToJSON(s.parameters[i])
		b, errB := parameterToJSON(other.parameters[i])

		if errA != nil || errB != nil || !reflect.DeepEqual(a, b) {
			return false
		}
	}

	for i := range s.constraints {
		a, errA := constraintToJSON(s.constraints[i])
		b, errB := constraintToJSON(other.constraints[i])

		if errA != nil || errB != nil {
			if s.constraints[i] != other.constraints[i] {
				return false
			}

			continue
		}

		if !reflect.DeepEqual(a, b) {
			return false
		}
	}

	return s.expRep.Equal(other.expRep) &&
		s.compRep.Equal(other.compRep) &&
		s.metadata.Equal(other.metadata)
}
