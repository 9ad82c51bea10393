package hydra

import (
	"math"
	"testing"
)

func TestToleranceEqual(t *testing.T) {
	tc := DefaultTolerance()
	nan := float32(math.NaN())

	cases := []struct {
		name string
		a, b float32
		want bool
	}{
		{"identical", 1.5, 1.5, true},
		{"near zero within abs", 1e-8, -1e-8, true},
		{"adjacent floats", 1.0, math.Nextafter32(1.0, 2.0), true},
		{"relative match", 1000.0, 1000.001, true},
		{"clear mismatch", 1.0, 1.1, false},
		{"sign mismatch", 1.0, -1.0, false},
		{"nan equals nan", nan, nan, true},
		{"nan vs number", nan, 0, false},
		{"zero vs negative zero", 0, float32(math.Copysign(0, -1)), true},
	}
	for _, c := range cases {
		if got := tc.Equal(c.a, c.b); got != c.want {
			t.Errorf("%s: Equal(%g, %g) = %v, want %v", c.name, c.a, c.b, got, c.want)
		}
	}
}

func TestToleranceEqualSlice(t *testing.T) {
	tc := DefaultTolerance()

	ok, idx := tc.EqualSlice([]float32{1, 2, 3}, []float32{1, 2, 3})
	if !ok || idx != -1 {
		t.Errorf("matching slices: ok=%v idx=%d", ok, idx)
	}

	ok, idx = tc.EqualSlice([]float32{1, 2, 3}, []float32{1, 9, 3})
	if ok || idx != 1 {
		t.Errorf("mismatch not located: ok=%v idx=%d", ok, idx)
	}

	if ok, _ := tc.EqualSlice([]float32{1}, []float32{1, 2}); ok {
		t.Error("length mismatch reported equal")
	}
}

func TestReductionToleranceLooserThanDefault(t *testing.T) {
	def := DefaultTolerance()
	red := ReductionTolerance()
	// Accumulation-order noise on a 1000-element reduction
	a, b := float32(523.1234), float32(523.155)
	if def.Equal(a, b) {
		t.Fatal("case too loose to discriminate the configs")
	}
	if !red.Equal(a, b) {
		t.Error("reduction tolerance rejects accumulation-order noise")
	}
}
