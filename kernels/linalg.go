package kernels

import (
	"errors"
	"math"
)

// ErrSingularMatrix is returned when elimination meets a pivot too small
// to divide by. The system has no stable solution; the caller must not
// retry without correcting the input.
var ErrSingularMatrix = errors.New("kernels: matrix is singular or nearly singular")

// ErrBadShape is returned for empty or ragged matrix operands
var ErrBadShape = errors.New("kernels: bad matrix shape")

const (
	// matVecBlock is the column block width for the blocked multiply,
	// sized so a block of the vector stays resident in L1
	matVecBlock = 64

	// matVecBlockThreshold is the element count above which blocking pays
	// for its loop overhead
	matVecBlockThreshold = 64 * 1024

	// singularEpsilon is the pivot magnitude below which elimination
	// reports singularity
	singularEpsilon = 1e-12
)

// MatVecMul computes m × v. For small problems it runs the plain row-major
// loops; past matVecBlockThreshold elements it walks the columns in blocks
// so the touched slice of v stays cache-resident across rows.
func MatVecMul(m [][]float64, v []float64) ([]float64, error) {
	if len(m) == 0 {
		return nil, ErrBadShape
	}
	cols := len(v)
	for _, row := range m {
		if len(row) != cols {
			return nil, ErrLengthMismatch
		}
	}
	out := make([]float64, len(m))

	if len(m)*cols <= matVecBlockThreshold {
		for i, row := range m {
			var sum float64
			for j, x := range row {
				sum += x * v[j]
			}
			out[i] = sum
		}
		return out, nil
	}

	for jb := 0; jb < cols; jb += matVecBlock {
		je := jb + matVecBlock
		if je > cols {
			je = cols
		}
		for i, row := range m {
			sum := out[i]
			for j := jb; j < je; j++ {
				sum += row[j] * v[j]
			}
			out[i] = sum
		}
	}
	return out, nil
}

// SolveLinearSystem solves a·x = b by Gaussian elimination with partial
// pivoting. The inputs are copied; the caller's matrix is not clobbered.
func SolveLinearSystem(a [][]float64, b []float64) ([]float64, error) {
	n := len(a)
	if n == 0 || n != len(b) {
		return nil, ErrBadShape
	}
	for _, row := range a {
		if len(row) != n {
			return nil, ErrBadShape
		}
	}

	// Working copy: augmented [a | b]
	aug := make([][]float64, n)
	for i := range aug {
		aug[i] = make([]float64, n+1)
		copy(aug[i], a[i])
		aug[i][n] = b[i]
	}

	for col := 0; col < n; col++ {
		// Partial pivoting: swap in the row with the largest magnitude
		pivot := col
		maxVal := math.Abs(aug[col][col])
		for r := col + 1; r < n; r++ {
			if mag := math.Abs(aug[r][col]); mag > maxVal {
				maxVal = mag
				pivot = r
			}
		}
		if maxVal < singularEpsilon {
			return nil, ErrSingularMatrix
		}
		if pivot != col {
			aug[col], aug[pivot] = aug[pivot], aug[col]
		}

		for r := col + 1; r < n; r++ {
			factor := aug[r][col] / aug[col][col]
			if factor == 0 {
				continue
			}
			for c := col; c <= n; c++ {
				aug[r][c] -= factor * aug[col][c]
			}
		}
	}

	// Back substitution
	x := make([]float64, n)
	for i := n - 1; i >= 0; i-- {
		sum := aug[i][n]
		for j := i + 1; j < n; j++ {
			sum -= aug[i][j] * x[j]
		}
		x[i] = sum / aug[i][i]
	}
	return x, nil
}
