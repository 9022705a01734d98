package doe

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//////
// YAML space definitions.
//
// Spaces can be declared in a YAML document instead of Go code, so a
// campaign definition can live next to the experiment data it describes.
// The loader parses into raw structs first and then funnels everything
// through the validated constructors, so a YAML document can never produce
// a space that code could not.
//////

// SpaceConfig is the YAML shape of a space definition.
type SpaceConfig struct {
	// Mode selects the construction strategy: "product" (default) or
	// "simplex".
	Mode string `yaml:"mode"`

	// Simplex settings, ignored in product mode.
	Total        float64 `yaml:"total"`
	BoundaryOnly bool    `yaml:"boundary_only"`
	Tolerance    float64 `yaml:"tolerance"`

	// EmptyEncoding replaces the computational representation with an
	// empty table (placeholder parameters only).
	EmptyEncoding bool `yaml:"empty_encoding"`

	Parameters  []ParameterConfig  `yaml:"parameters"`
	Constraints []ConstraintConfig `yaml:"constraints"`
}

// ParameterConfig is the YAML shape of a single parameter.
type ParameterConfig struct {
	Type string `yaml:"type"`
	Name string `yaml:"name"`

	Values    []float64 `yaml:"values"`
	Tolerance *float64  `yaml:"tolerance"`

	Labels   []string `yaml:"labels"`
	Encoding string   `yaml:"encoding"`

	ActiveValues []string `yaml:"active_values"`

	Data map[string]string `yaml:"data"`

	Descriptors *TableConfig `yaml:"descriptors"`
}

// TableConfig is the YAML shape of a small inline table (descriptor data).
type TableConfig struct {
	Columns []string    `yaml:"columns"`
	Rows    [][]float64 `yaml:"rows"`
}

// ConditionConfig is the YAML shape of a condition.
type ConditionConfig struct {
	Type string `yaml:"type"`

	Operator  string  `yaml:"operator"`
	Threshold float64 `yaml:"threshold"`
	Tolerance float64 `yaml:"tolerance"`

	Selection []Value `yaml:"selection"`
}

// ConstraintConfig is the YAML shape of a constraint. Custom constraints
// carry code and cannot be declared in YAML.
type ConstraintConfig struct {
	Kind       string            `yaml:"kind"`
	Parameters []string          `yaml:"parameters"`
	Condition  *ConditionConfig  `yaml:"condition"`
	Conditions []ConditionConfig `yaml:"conditions"`
	Combiner   string            `yaml:"combiner"`
	Affected   [][]string        `yaml:"affected"`
	Depends    *ConstraintConfig `yaml:"dependencies"`
}

//////
// Exported functionalities.
//////

// LoadSpace reads a YAML space definition from a file and builds the
// space. See ParseSpace.
func LoadSpace(path string) (*SubspaceDiscrete, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: reading space definition: %v", ErrConfiguration, err)
	}

	return ParseSpace(data)
}

// ParseSpace parses a YAML space definition and builds the space through
// the regular constructors (FromProduct or FromSimplex).
func ParseSpace(data []byte) (*SubspaceDiscrete, error) {
	var cfg SpaceConfig

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("%w: parsing space definition: %v", ErrConfiguration, err)
	}

	return BuildSpace(cfg)
}

// BuildSpace builds a space from an already-parsed configuration.
func BuildSpace(cfg SpaceConfig) (*SubspaceDiscrete, error) {
	parameters := make([]DiscreteParameter, len(cfg.Parameters))

	for i, pc := range cfg.Parameters {
		p, err := buildParameter(pc)
		if err != nil {
			return nil, err
		}

		parameters[i] = p
	}

	constraints := make([]Constraint, len(cfg.Constraints))

	for i, cc := range cfg.Constraints {
		c, err := buildConstraint(cc)
		if err != nil {
			return nil, err
		}

		constraints[i] = c
	}

	switch cfg.Mode {
	case "", "product":
		return FromProduct(parameters, constraints, cfg.EmptyEncoding)
	case "simplex":
		if len(constraints) > 0 {
			return nil, fmt.Errorf("%w: simplex mode does not take constraints", ErrConfiguration)
		}

		numeric := make([]*NumericalDiscreteParameter, len(parameters))

		for i, p := range parameters {
			ndp, ok := p.(*NumericalDiscreteParameter)
			if !ok {
				return nil, fmt.Errorf(
					"%w: simplex mode requires numerical discrete parameters, %q is not one",
					ErrConfiguration, p.Name(),
				)
			}

			numeric[i] = ndp
		}

		return FromSimplex(numeric, cfg.Total, cfg.BoundaryOnly, cfg.Tolerance)
	default:
		return nil, fmt.Errorf("%w: unknown space mode %q", ErrConfiguration, cfg.Mode)
	}
}

//////
// Helper functions.
//////

func buildParameter(pc ParameterConfig) (DiscreteParameter, error) {
	switch pc.Type {
	case typeNumericalDiscrete:
		if pc.Tolerance == nil {
			return NewNumericalDiscreteParameter(pc.Name, pc.Values)
		}

		return NewNumericalDiscreteParameterWithTolerance(pc.Name, pc.Values, *pc.Tolerance)
	case typeCategorical:
		return NewCategoricalParameter(pc.Name, pc.Labels, CategoricalEncoding(pc.Encoding))
	case typeTask:
		return NewTaskParameter(pc.Name, pc.Labels, pc.ActiveValues)
	case typeSubstance:
		descriptors, err := buildDescriptorTable(pc.Descriptors)
		if err != nil {
			return nil, err
		}

		return NewSubstanceParameter(pc.Name, pc.Data, descriptors)
	case typeCustom:
		descriptors, err := buildDescriptorTable(pc.Descriptors)
		if err != nil {
			return nil, err
		}

		return NewCustomDiscreteParameter(pc.Name, pc.Labels, descriptors)
	default:
		return nil, fmt.Errorf("%w: unknown parameter type %q", ErrConfiguration, pc.Type)
	}
}

func buildDescriptorTable(tc *TableConfig) (*Table, error) {
	if tc == nil {
		return nil, nil
	}

	columns := make([][]Value, len(tc.Columns))

	for j := range tc.Columns {
		col := make([]Value, len(tc.Rows))

		for i, row := range tc.Rows {
			if len(row) != len(tc.Columns) {
				return nil, fmt.Errorf(
					"%w: descriptor row %d has %d cells for %d columns",
					ErrConfiguration, i, len(row), len(tc.Columns),
				)
			}

			col[i] = row[j]
		}

		columns[j] = col
	}

	return NewTableFromColumns(tc.Columns, columns...)
}

func buildCondition(cc ConditionConfig) (Condition, error) {
	switch cc.Type {
	case typeThreshold:
		return ThresholdCondition{
			Operator:  Operator(cc.Operator),
			Threshold: cc.Threshold,
			Tolerance: cc.Tolerance,
		}, nil
	case typeSubSelection:
		selection := make([]Value, len(cc.Selection))

		for i, v := range cc.Selection {
			normalized, err := normalizeYAMLValue(v)
			if err != nil {
				return nil, err
			}

			selection[i] = normalized
		}

		return SubSelectionCondition{Selection: selection}, nil
	default:
		return nil, fmt.Errorf("%w: unknown condition type %q", ErrConfiguration, cc.Type)
	}
}

func buildConditions(ccs []ConditionConfig) ([]Condition, error) {
	conditions := make([]Condition, len(ccs))

	for i, cc := range ccs {
		c, err := buildCondition(cc)
		if err != nil {
			return nil, err
		}

		conditions[i] = c
	}

	return conditions, nil
}

func buildConstraint(cc ConstraintConfig) (Constraint, error) {
	switch ConstraintKind(cc.Kind) {
	case KindSum, KindProduct:
		if cc.Condition == nil || cc.Condition.Type != typeThreshold {
			return nil, fmt.Errorf("%w: %s constraint needs a threshold condition", ErrConfiguration, cc.Kind)
		}

		cond, err := buildCondition(*cc.Condition)
		if err != nil {
			return nil, err
		}

		threshold := cond.(ThresholdCondition)

		if ConstraintKind(cc.Kind) == KindSum {
			return NewSumConstraint(cc.Parameters, threshold), nil
		}

		return NewProductConstraint(cc.Parameters, threshold), nil
	case KindExclude:
		conditions, err := buildConditions(cc.Conditions)
		if err != nil {
			return nil, err
		}

		return NewExcludeConstraint(cc.Parameters, conditions, Combiner(cc.Combiner))
	case KindNoLabelDuplicates:
		return NewNoLabelDuplicatesConstraint(cc.Parameters), nil
	case KindLinkedParameters:
		return NewLinkedParametersConstraint(cc.Parameters), nil
	case KindDependencies:
		conditions, err := buildConditions(cc.Conditions)
		if err != nil {
			return nil, err
		}

		return NewDependenciesConstraint(cc.Parameters, conditions, cc.Affected)
	case KindPermutationInvariance:
		var dependencies *DependenciesConstraint

		if cc.Depends != nil {
			nested, err := buildConstraint(*cc.Depends)
			if err != nil {
				return nil, err
			}

			deps, ok := nested.(*DependenciesConstraint)
			if !ok {
				return nil, fmt.Errorf(
					"%w: permutation invariance nests a non-dependencies constraint", ErrConfiguration,
				)
			}

			dependencies = deps
		}

		return NewPermutationInvarianceConstraint(cc.Parameters, dependencies), nil
	default:
		return nil, fmt.Errorf("%w: unknown constraint kind %q", ErrConfiguration, cc.Kind)
	}
}

// normalizeYAMLValue maps the scalar types the YAML decoder produces onto
// the two cell types tables carry.
func normalizeYAMLValue(v Value) (Value, error) {
	switch c := v.(type) {
	case float64:
		return c, nil
	case int:
		return float64(c), nil
	case int64:
		return float64(c), nil
	case string:
		return c, nil
	default:
		return nil, fmt.Errorf("%w: unsupported selection value %v of type %T", ErrConfiguration, v, v)
	}
}
