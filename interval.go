package doe

import "fmt"

//////
// Intervals.
//////

// Interval is a closed numerical interval used as the domain of continuous
// parameters.
type Interval struct {
	// Lower is the inclusive lower bound.
	Lower float64

	// Upper is the inclusive upper bound.
	Upper float64
}

// NewInterval creates a closed interval.
//
// Returns an error wrapping ErrConfiguration if the bounds are inverted,
// non-finite, or NaN: parameters with infinite ranges are not supported.
func NewInterval(lower, upper float64) (Interval, error) {
	iv := Interval{Lower: lower, Upper: upper}

	if !iv.IsBounded() {
		return Interval{}, fmt.Errorf(
			"%w: infinite interval [%v, %v] is not supported for parameters",
			ErrConfiguration, lower, upper,
		)
	}

	if lower > upper {
		return Interval{}, fmt.Errorf(
			"%w: interval bounds inverted [%v, %v]", ErrConfiguration, lower, upper,
		)
	}

	return iv, nil
}

// IsBounded reports whether both endpoints are finite.
func (iv Interval) IsBounded() bool {
	return isFinite(iv.Lower) && isFinite(iv.Upper)
}

// Contains reports whether v lies inside the closed interval.
func (iv Interval) Contains(v float64) bool {
	return v >= iv.Lower && v <= iv.Upper
}
