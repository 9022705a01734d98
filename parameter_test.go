package doe

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNumericalDiscreteParameterDefaults(t *testing.T) {
	p, err := NewNumericalDiscreteParameter("Temperature", []float64{50, 10, 30})
	require.NoError(t, err)

	// Values are sorted ascending regardless of input order.
	assert.Equal(t, []float64{10, 30, 50}, p.FloatValues())

	// Default tolerance is 10% of the smallest adjacent gap (20 here).
	assert.InDelta(t, 2.0, p.Tolerance(), 1e-12)

	assert.True(t, p.InRange(31.5))
	assert.False(t, p.InRange(35.0))
	assert.False(t, p.InRange("30"))
}

func TestNumericalDiscreteParameterGridValidation(t *testing.T) {
	_, err := NewNumericalDiscreteParameter("p", []float64{1})
	assert.ErrorIs(t, err, ErrConfiguration)

	_, err = NewNumericalDiscreteParameter("p", []float64{1, 1, 2})
	assert.ErrorIs(t, err, ErrConfiguration)
}

func TestNumericalDiscreteParameterToleranceBounds(t *testing.T) {
	// The smallest gap is 10, so any tolerance below 5 is fine...
	p, err := NewNumericalDiscreteParameterWithTolerance("p", []float64{10, 20, 40}, 4.9)
	require.NoError(t, err)
	assert.Equal(t, 4.9, p.Tolerance())

	// ...while half the gap (or more) would let a value match two grid
	// points at once.
	_, err = NewNumericalDiscreteParameterWithTolerance("p", []float64{10, 20, 40}, 5.0)
	assert.ErrorIs(t, err, ErrConfiguration)

	_, err = NewNumericalDiscreteParameterWithTolerance("p", []float64{10, 20, 40}, -1.0)
	assert.ErrorIs(t, err, ErrConfiguration)
}

func TestNumericalDiscreteParameterMatchValue(t *testing.T) {
	p, err := NewNumericalDiscreteParameterWithTolerance("p", []float64{10, 20, 30}, 2.0)
	require.NoError(t, err)

	matched, ok := p.MatchValue(19.5)
	assert.True(t, ok)
	assert.Equal(t, 20.0, matched)

	_, ok = p.MatchValue(15.0)
	assert.False(t, ok)
}

func TestNumericalDiscreteParameterTransform(t *testing.T) {
	p, err := NewNumericalDiscreteParameter("p", []float64{1, 2})
	require.NoError(t, err)

	encoded, err := p.Transform([]Value{2.0, 1.0, 2.0})
	require.NoError(t, err)

	col, err := encoded.FloatColumn("p")
	require.NoError(t, err)
	assert.Equal(t, []float64{2, 1, 2}, col)

	_, err = p.Transform([]Value{"oops"})
	assert.ErrorIs(t, err, ErrData)
}

func TestNumericalContinuousParameter(t *testing.T) {
	p, err := NewNumericalContinuousParameter("flow", 0, 10)
	require.NoError(t, err)

	assert.False(t, p.IsDiscrete())
	assert.True(t, p.InRange(10.0))
	assert.False(t, p.InRange(10.5))

	_, err = NewNumericalContinuousParameter("flow", 10, 0)
	assert.ErrorIs(t, err, ErrConfiguration)
}

func TestCategoricalParameterOneHot(t *testing.T) {
	p, err := NewCategoricalParameter("Solvent", []string{"water", "oil"}, EncodingOneHot)
	require.NoError(t, err)

	comp := p.CompDF()
	assert.Equal(t, []string{"Solvent_water", "Solvent_oil"}, comp.Columns())

	encoded, err := p.Transform([]Value{"oil", "water"})
	require.NoError(t, err)

	oil, err := encoded.FloatColumn("Solvent_oil")
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 0}, oil)

	_, err = p.Transform([]Value{"acetone"})
	assert.ErrorIs(t, err, ErrData)
}

func TestCategoricalParameterInteger(t *testing.T) {
	p, err := NewCategoricalParameter("Solvent", []string{"water", "oil"}, EncodingInteger)
	require.NoError(t, err)

	encoded, err := p.Transform([]Value{"oil", "water", "oil"})
	require.NoError(t, err)

	col, err := encoded.FloatColumn("Solvent")
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 0, 1}, col)
}

func TestCategoricalParameterNumericLabels(t *testing.T) {
	p, err := NewCategoricalParameter("Pressure", []string{"1", "10"}, EncodingOneHot)
	require.NoError(t, err)

	// A numeric cell matches its label rendering.
	assert.True(t, p.InRange(10.0))
	assert.False(t, p.InRange(5.0))
}

func TestTaskParameter(t *testing.T) {
	p, err := NewTaskParameter("Batch", []string{"A", "B"}, []string{"A"})
	require.NoError(t, err)

	assert.True(t, p.IsActive("A"))
	assert.False(t, p.IsActive("B"))

	// An empty active list means all values are active.
	all, err := NewTaskParameter("Batch", []string{"A", "B"}, nil)
	require.NoError(t, err)
	assert.True(t, all.IsActive("B"))

	// Active values outside the value set are rejected.
	_, err = NewTaskParameter("Batch", []string{"A"}, []string{"C"})
	assert.ErrorIs(t, err, ErrConfiguration)
}

func TestSubstanceParameterWithoutDescriptors(t *testing.T) {
	p, err := NewSubstanceParameter("Mol", map[string]string{
		"water": "O",
		"thf":   "C1CCOC1",
	}, nil)
	require.NoError(t, err)

	// Labels are ordered alphabetically for determinism.
	assert.Equal(t, []string{"thf", "water"}, p.Labels())

	structure, ok := p.Structure("water")
	assert.True(t, ok)
	assert.Equal(t, "O", structure)

	// Without descriptors the encoding falls back to one-hot.
	assert.Equal(t, []string{"Mol_thf", "Mol_water"}, p.CompDF().Columns())
}

func TestSubstanceParameterWithDescriptors(t *testing.T) {
	descriptors, err := NewFloatTable(
		[]string{"weight", "logp"},
		[]float64{72.1, 18.0},
		[]float64{0.46, -1.38},
	)
	require.NoError(t, err)

	p, err := NewSubstanceParameter("Mol", map[string]string{
		"thf":   "C1CCOC1",
		"water": "O",
	}, descriptors)
	require.NoError(t, err)

	comp := p.CompDF()
	assert.Equal(t, []string{"Mol_weight", "Mol_logp"}, comp.Columns())

	encoded, err := p.Transform([]Value{"water", "thf"})
	require.NoError(t, err)

	weights, err := encoded.FloatColumn("Mol_weight")
	require.NoError(t, err)
	assert.Equal(t, []float64{18.0, 72.1}, weights)
}

func TestCustomDiscreteParameter(t *testing.T) {
	descriptors, err := NewFloatTable([]string{"d1"}, []float64{0.1, 0.2})
	require.NoError(t, err)

	p, err := NewCustomDiscreteParameter("Catalyst", []string{"c1", "c2"}, descriptors)
	require.NoError(t, err)

	encoded, err := p.Transform([]Value{"c2", "c2", "c1"})
	require.NoError(t, err)

	col, err := encoded.FloatColumn("Catalyst_d1")
	require.NoError(t, err)
	assert.Equal(t, []float64{0.2, 0.2, 0.1}, col)

	// The descriptor table is mandatory and must align with the labels.
	_, err = NewCustomDiscreteParameter("Catalyst", []string{"c1", "c2"}, nil)
	assert.ErrorIs(t, err, ErrConfiguration)

	short, err := NewFloatTable([]string{"d1"}, []float64{0.1})
	require.NoError(t, err)

	_, err = NewCustomDiscreteParameter("Catalyst", []string{"c1", "c2"}, short)
	assert.ErrorIs(t, err, ErrConfiguration)
}

func TestDescriptorsMustBeNumeric(t *testing.T) {
	bad, err := NewTableFromColumns([]string{"d1"}, []Value{"not a number", 1.0})
	require.NoError(t, err)

	_, err = NewCustomDiscreteParameter("Catalyst", []string{"c1", "c2"}, bad)
	assert.ErrorIs(t, err, ErrConfiguration)
}
