// Package doe builds and filters discrete search spaces for design of
// experiments and Bayesian optimization campaigns. It constructs the full
// space of candidate experiment configurations from parameter definitions,
// removes configurations that violate declared constraints, and maintains
// both an experimental (native-domain) and a computational (numeric)
// representation of every surviving configuration.
//
// # Features
//
// The package includes the following key features:
//
//   - Parameter Types: Numerical discrete grids, categorical labels
//     (one-hot or integer encoded), task parameters with active subsets,
//     substance parameters with optional descriptor encodings, and fully
//     custom descriptor parameters
//   - Constraint Filtering: Sum, product, exclusion, linked-parameters,
//     label-duplicate, dependency, permutation-invariance, and custom
//     constraints, applied in a canonical order so the surviving rows do
//     not depend on declaration order
//   - Efficient Simplex Construction: Mixture spaces (values summing to a
//     total) are built incrementally with early pruning instead of
//     filtering the full Cartesian product
//   - Dual Representations: An experimental table in native values next to
//     a computational table in numeric encodings, row-aligned by a shared
//     index
//   - Campaign Metadata: Per-configuration recommended/measured/blocked
//     flags with fuzzy matching of external measurements back onto the
//     grid
//   - Serialization: JSON round-trips of whole spaces and YAML space
//     definitions, both funneled through the validating constructors
//
// # Installation
//
// To install the package, use:
//
//	go get github.com/thalesfsp/doe
//
// # Building Spaces
//
// Spaces are built from parameters and constraints:
//
//	solvent, _ := doe.NewCategoricalParameter("Solvent", []string{"THF", "Toluene", "DMF"}, doe.EncodingOneHot)
//	temp, _ := doe.NewNumericalDiscreteParameter("Temperature", []float64{25, 50, 75})
//
//	space, err := doe.FromProduct([]doe.DiscreteParameter{solvent, temp}, nil, false)
//
// Mixture spaces with a fixed total use the dedicated constructor:
//
//	space, err := doe.FromSimplex(fractions, 100, false, 0.5)
//
// Existing data can be wrapped directly:
//
//	space, err := doe.FromTable(measurements, nil, false)
//
// # Campaign Loop
//
// During a campaign, candidates are drawn and results fed back:
//
//	exp, comp, _ := space.GetCandidates(false, false)
//	_ = space.MarkAsRecommended(exp.Index())
//	_ = space.MarkAsMeasured(results, true)
//
// # Thread Safety
//
// A constructed space is immutable except for its campaign metadata.
// Concurrent reads are safe; interleaving metadata updates with reads
// requires external synchronization.
package doe
