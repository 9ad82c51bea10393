package kernels

import (
	"errors"
	"math"
	"math/rand"
	"testing"
)

func TestFFTRejectsBadLengths(t *testing.T) {
	for _, n := range []int{0, 3, 6, 12, 1000} {
		re := make([]float64, n)
		im := make([]float64, n)
		if err := FFT(re, im, false); !errors.Is(err, ErrLengthNotPowerOfTwo) {
			t.Errorf("n=%d: got %v", n, err)
		}
	}
	if err := FFT(make([]float64, 8), make([]float64, 4), false); !errors.Is(err, ErrLengthMismatch) {
		t.Errorf("mismatched planes: got %v", err)
	}
}

func TestFFTImpulse(t *testing.T) {
	// A unit impulse transforms to a flat spectrum of ones
	re := make([]float64, 8)
	im := make([]float64, 8)
	re[0] = 1
	if err := FFT(re, im, false); err != nil {
		t.Fatal(err)
	}
	for i := range re {
		if math.Abs(re[i]-1) > 1e-12 || math.Abs(im[i]) > 1e-12 {
			t.Errorf("bin %d = (%g, %g), want (1, 0)", i, re[i], im[i])
		}
	}
}

func TestFFTSingleTone(t *testing.T) {
	// cos(2πk/n) concentrates in bins k and n-k with magnitude n/2
	const n = 16
	const k = 3
	re := make([]float64, n)
	im := make([]float64, n)
	for i := range re {
		re[i] = math.Cos(2 * math.Pi * k * float64(i) / n)
	}
	if err := FFT(re, im, false); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < n; i++ {
		mag := math.Hypot(re[i], im[i])
		want := 0.0
		if i == k || i == n-k {
			want = n / 2
		}
		if math.Abs(mag-want) > 1e-9 {
			t.Errorf("bin %d magnitude = %g, want %g", i, mag, want)
		}
	}
}

func TestFFTRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for _, n := range []int{1, 2, 8, 64, 1024} {
		re := make([]float64, n)
		im := make([]float64, n)
		origRe := make([]float64, n)
		origIm := make([]float64, n)
		for i := 0; i < n; i++ {
			re[i] = rng.Float64()*2 - 1
			im[i] = rng.Float64()*2 - 1
			origRe[i], origIm[i] = re[i], im[i]
		}

		if err := FFT(re, im, false); err != nil {
			t.Fatalf("n=%d forward: %v", n, err)
		}
		if err := FFT(re, im, true); err != nil {
			t.Fatalf("n=%d inverse: %v", n, err)
		}
		for i := 0; i < n; i++ {
			if math.Abs(re[i]-origRe[i]) > 1e-9 || math.Abs(im[i]-origIm[i]) > 1e-9 {
				t.Fatalf("n=%d: round trip diverged at %d: (%g, %g) vs (%g, %g)",
					n, i, re[i], im[i], origRe[i], origIm[i])
			}
		}
	}
}

func TestFFTLinearity(t *testing.T) {
	const n = 32
	rng := rand.New(rand.NewSource(7))
	a := make([]float64, n)
	b := make([]float64, n)
	sum := make([]float64, n)
	for i := 0; i < n; i++ {
		a[i] = rng.Float64()
		b[i] = rng.Float64()
		sum[i] = a[i] + b[i]
	}
	aIm := make([]float64, n)
	bIm := make([]float64, n)
	sumIm := make([]float64, n)

	if err := FFT(a, aIm, false); err != nil {
		t.Fatal(err)
	}
	if err := FFT(b, bIm, false); err != nil {
		t.Fatal(err)
	}
	if err := FFT(sum, sumIm, false); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < n; i++ {
		if math.Abs(sum[i]-(a[i]+b[i])) > 1e-9 || math.Abs(sumIm[i]-(aIm[i]+bIm[i])) > 1e-9 {
			t.Fatalf("linearity broken at bin %d", i)
		}
	}
}
