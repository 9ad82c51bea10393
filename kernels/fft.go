// Package kernels provides standalone, stateless numeric routines used by
// the compute engines and directly by callers: a radix-2 FFT, dense linear
// algebra with cache blocking, and numerically stable statistics.
//
// Everything here is float64; the engines convert at their boundary and
// document the resulting tolerance.
package kernels

import (
	"errors"
	"math"
)

// ErrLengthNotPowerOfTwo is returned for transform lengths the radix-2
// algorithm cannot handle. The caller must correct the input; retrying is
// pointless.
var ErrLengthNotPowerOfTwo = errors.New("kernels: transform length must be a power of two")

// ErrLengthMismatch is returned when paired operand lengths differ
var ErrLengthMismatch = errors.New("kernels: operand lengths differ")

// FFT computes the in-place radix-2 Cooley-Tukey transform of the signal
// held in re/im. The forward transform uses e^(-2πi/n) twiddles; the
// inverse uses the conjugate and divides every element by n, so a
// forward/inverse round trip recovers the input.
//
// Twiddle factors are computed once per stage, outside the butterfly loop,
// so the innermost loop does no trigonometry.
func FFT(re, im []float64, inverse bool) error {
	n := len(re)
	if n != len(im) {
		return ErrLengthMismatch
	}
	if n == 0 || n&(n-1) != 0 {
		return ErrLengthNotPowerOfTwo
	}
	if n == 1 {
		return nil
	}

	bitReverse(re, im)

	sign := -1.0
	if inverse {
		sign = 1.0
	}

	for size := 2; size <= n; size <<= 1 {
		half := size >> 1
		ang := sign * 2 * math.Pi / float64(size)
		wr := make([]float64, half)
		wi := make([]float64, half)
		for j := 0; j < half; j++ {
			wr[j] = math.Cos(ang * float64(j))
			wi[j] = math.Sin(ang * float64(j))
		}
		for start := 0; start < n; start += size {
			for j := 0; j < half; j++ {
				i1 := start + j
				i2 := i1 + half
				tr := re[i2]*wr[j] - im[i2]*wi[j]
				ti := re[i2]*wi[j] + im[i2]*wr[j]
				re[i2] = re[i1] - tr
				im[i2] = im[i1] - ti
				re[i1] += tr
				im[i1] += ti
			}
		}
	}

	if inverse {
		inv := 1 / float64(n)
		for i := range re {
			re[i] *= inv
			im[i] *= inv
		}
	}
	return nil
}

// bitReverse permutes the signal into bit-reversed index order
func bitReverse(re, im []float64) {
	n := len(re)
	for i, j := 1, 0; i < n; i++ {
		bit := n >> 1
		for ; j&bit != 0; bit >>= 1 {
			j ^= bit
		}
		j |= bit
		if i < j {
			re[i], re[j] = re[j], re[i]
			im[i], im[j] = im[j], im[i]
		}
	}
}
