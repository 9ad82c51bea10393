package kernels

// Statistics use one-pass compensated algorithms rather than naive
// summation so error stays bounded on large inputs.

// Mean computes the arithmetic mean with Kahan compensated summation
func Mean(x []float64) float64 {
	if len(x) == 0 {
		return 0
	}
	var sum, comp float64
	for _, v := range x {
		y := v - comp
		t := sum + y
		comp = (t - sum) - y
		sum = t
	}
	return sum / float64(len(x))
}

// Variance computes the sample variance with Welford's online algorithm
func Variance(x []float64) float64 {
	if len(x) < 2 {
		return 0
	}
	var mean, m2 float64
	for i, v := range x {
		delta := v - mean
		mean += delta / float64(i+1)
		m2 += delta * (v - mean)
	}
	return m2 / float64(len(x)-1)
}

// MeanVariance computes both moments in a single Welford pass
func MeanVariance(x []float64) (mean, variance float64) {
	if len(x) == 0 {
		return 0, 0
	}
	var m2 float64
	for i, v := range x {
		delta := v - mean
		mean += delta / float64(i+1)
		m2 += delta * (v - mean)
	}
	if len(x) < 2 {
		return mean, 0
	}
	return mean, m2 / float64(len(x)-1)
}

// Covariance computes the sample covariance of x and y with a one-pass
// co-moment update
func Covariance(x, y []float64) (float64, error) {
	if len(x) != len(y) {
		return 0, ErrLengthMismatch
	}
	if len(x) < 2 {
		return 0, nil
	}
	var meanX, meanY, comoment float64
	for i := range x {
		n := float64(i + 1)
		dx := x[i] - meanX
		meanX += dx / n
		meanY += (y[i] - meanY) / n
		comoment += dx * (y[i] - meanY)
	}
	return comoment / float64(len(x)-1), nil
}
