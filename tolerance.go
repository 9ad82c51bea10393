// Package hydra tolerance-based verification for floating-point comparisons
package hydra

import (
	"math"
)

// ToleranceConfig defines tolerance parameters for floating-point comparison
type ToleranceConfig struct {
	// AbsTol is the absolute tolerance for values near zero
	AbsTol float64

	// RelTol is the relative tolerance as a fraction of the larger value
	RelTol float64

	// ULPTol is the maximum allowed difference in ULPs (Units in Last Place)
	ULPTol int
}

// DefaultTolerance returns the default tolerance configuration
func DefaultTolerance() ToleranceConfig {
	return ToleranceConfig{
		AbsTol: 1e-7,
		RelTol: 1e-5,
		ULPTol: 4,
	}
}

// ReductionTolerance returns the tolerance for cross-engine comparison of
// float64-accumulated reductions over ~1000 elements
func ReductionTolerance() ToleranceConfig {
	return ToleranceConfig{
		AbsTol: 1e-5,
		RelTol: 1e-4,
		ULPTol: 64,
	}
}

// Equal reports whether a and b match within the configured tolerance.
// NaN equals NaN so that DIVIDE-by-zero outputs compare stable.
func (tc ToleranceConfig) Equal(a, b float32) bool {
	if math.IsNaN(float64(a)) || math.IsNaN(float64(b)) {
		return math.IsNaN(float64(a)) && math.IsNaN(float64(b))
	}
	if a == b {
		return true
	}
	diff := math.Abs(float64(a) - float64(b))
	if diff <= tc.AbsTol {
		return true
	}
	larger := math.Max(math.Abs(float64(a)), math.Abs(float64(b)))
	if diff <= larger*tc.RelTol {
		return true
	}
	return ulpDiff32(a, b) <= tc.ULPTol
}

// EqualSlice reports whether two slices match elementwise, returning the
// first mismatching index or -1
func (tc ToleranceConfig) EqualSlice(a, b []float32) (bool, int) {
	if len(a) != len(b) {
		return false, -1
	}
	for i := range a {
		if !tc.Equal(a[i], b[i]) {
			return false, i
		}
	}
	return true, -1
}

// ulpDiff32 returns the distance between a and b in float32 ULPs
func ulpDiff32(a, b float32) int {
	ia := int32(math.Float32bits(a))
	ib := int32(math.Float32bits(b))
	// Map negative floats onto a monotonic integer line
	if ia < 0 {
		ia = math.MinInt32 - ia
	}
	if ib < 0 {
		ib = math.MinInt32 - ib
	}
	d := int64(ia) - int64(ib)
	if d < 0 {
		d = -d
	}
	if d > math.MaxInt32 {
		return math.MaxInt32
	}
	return int(d)
}
