package hydra

import (
	"sync"

	"github.com/sirupsen/logrus"
)

// SIMDEngine is the lane-vectorized CPU engine. Hot loops strip-mine the
// index space in lanes of the platform's preferred width (8 for AVX2, 16
// for AVX-512, 4 for NEON) with a scalar tail for the remainder. Large
// reductions use fork/join divide and conquer: above a size threshold the
// range splits in half, one half runs concurrently and the other inline.
type SIMDEngine struct {
	caps *Capabilities
	log  *logrus.Logger
	lane int

	ops       *spawnExecutor
	counters  opCounters
	closeOnce sync.Once
}

func newSIMDEngine(cfg engineConfig) *SIMDEngine {
	lane := cfg.caps.LaneWidth
	if lane < 2 {
		lane = ScalarLaneWidth
	}
	return &SIMDEngine{
		caps: cfg.caps,
		log:  cfg.log,
		lane: lane,
		ops:  newSpawnExecutor(),
	}
}

// Backend returns CPUVectorized
func (e *SIMDEngine) Backend() Backend { return CPUVectorized }

// GPUAvailable always reports false
func (e *SIMDEngine) GPUAvailable() bool { return false }

// PerformanceStats returns engine counters
func (e *SIMDEngine) PerformanceStats() Stats {
	return Stats{
		Operations: e.counters.ops.Load(),
		Fallbacks:  e.counters.fallbacks.Load(),
		Backend:    CPUVectorized.String(),
	}
}

// Close drains the executor. Idempotent.
func (e *SIMDEngine) Close() error {
	e.closeOnce.Do(func() {
		e.ops.Close()
	})
	return nil
}

// DotProduct computes a · b with fork/join above DotSplitThreshold
func (e *SIMDEngine) DotProduct(a, b []float32) *Future[float32] {
	if err := checkEqualLen("DotProduct", a, b); err != nil {
		return completedFuture(float32(0), err)
	}
	return submit(e.ops, func() (float32, error) {
		e.counters.op()
		return float32(e.dotSplit(a, b)), nil
	})
}

// MatVecMul computes m × v with fork/join above MatVecSplitThreshold rows
func (e *SIMDEngine) MatVecMul(m [][]float32, v []float32) *Future[[]float32] {
	if err := checkMatVec("MatVecMul", m, v); err != nil {
		return completedFuture[[]float32](nil, err)
	}
	return submit(e.ops, func() ([]float32, error) {
		e.counters.op()
		out := make([]float32, len(m))
		e.matVecSplit(m, v, out)
		return out, nil
	})
}

// Elementwise applies op lane-wise; transcendentals (sigmoid, tanh) run as
// plain scalar loops, lanes are arithmetic only
func (e *SIMDEngine) Elementwise(a, b []float32, op Op) *Future[[]float32] {
	if !op.Unary() {
		if err := checkEqualLen("Elementwise", a, b); err != nil {
			return completedFuture[[]float32](nil, err)
		}
	}
	return submit(e.ops, func() ([]float32, error) {
		e.counters.op()
		out := make([]float32, len(a))
		switch op {
		case OpSigmoid, OpTanh:
			applyOpRange(out, a, b, op, 0, len(a))
		default:
			e.applyLanes(out, a, b, op)
		}
		return out, nil
	})
}

// BatchProcess applies kernel to every vector independently
func (e *SIMDEngine) BatchProcess(batch [][]float32, kernel func([]float32) []float32) *Future[[][]float32] {
	if kernel == nil {
		return completedFuture[[][]float32](nil, NewInvalidArgError("BatchProcess", "nil kernel"))
	}
	return submit(e.ops, func() ([][]float32, error) {
		e.counters.op()
		out := make([][]float32, len(batch))
		for i, in := range batch {
			res := kernel(in)
			if len(res) != len(in) {
				return nil, NewExecutionError("BatchProcess",
					"kernel changed vector length", nil)
			}
			out[i] = res
		}
		return out, nil
	})
}

// Inference passes the input through; no model runtime on this backend
func (e *SIMDEngine) Inference(input []float32, modelPath string) *Future[[]float32] {
	return submit(e.ops, func() ([]float32, error) {
		e.counters.op()
		e.log.WithField("model", modelPath).
			Debug("no model runtime on vectorized backend, passing input through")
		out := make([]float32, len(input))
		copy(out, input)
		return out, nil
	})
}

// Convolution2D computes the valid cross-correlation of input with kernel
func (e *SIMDEngine) Convolution2D(input, kernel [][]float32) *Future[[][]float32] {
	if err := checkConv("Convolution2D", input, kernel); err != nil {
		return completedFuture[[][]float32](nil, err)
	}
	return submit(e.ops, func() ([][]float32, error) {
		e.counters.op()
		outRows := len(input) - len(kernel) + 1
		out := make([][]float32, outRows)
		for i := range out {
			out[i] = make([]float32, len(input[0])-len(kernel[0])+1)
		}
		conv2DRows(input, kernel, out, 0, outRows)
		return out, nil
	})
}

// CosineSimilarity computes dot/(‖a‖·‖b‖), 0 when either norm is 0
func (e *SIMDEngine) CosineSimilarity(a, b []float32) *Future[float32] {
	if err := checkEqualLen("CosineSimilarity", a, b); err != nil {
		return completedFuture(float32(0), err)
	}
	return submit(e.ops, func() (float32, error) {
		e.counters.op()
		dot := e.dotSplit(a, b)
		na := norm2(a)
		nb := norm2(b)
		if na == 0 || nb == 0 {
			return 0, nil
		}
		return float32(dot / (na * nb)), nil
	})
}

// dotSplit is the fork/join reduction: below the threshold compute
// directly, above it split in half, run one half concurrently and the
// other inline, then combine. The threshold bounds goroutine overhead
// against useful work per split.
func (e *SIMDEngine) dotSplit(a, b []float32) float64 {
	if len(a) <= DotSplitThreshold {
		return e.dotLanes(a, b)
	}
	mid := len(a) / 2
	ch := make(chan float64, 1)
	go func() {
		ch <- e.dotSplit(a[mid:], b[mid:])
	}()
	left := e.dotSplit(a[:mid], b[:mid])
	return left + <-ch
}

// matVecSplit splits the row range; halves write disjoint output ranges,
// so the combine step is concatenation by construction.
func (e *SIMDEngine) matVecSplit(m [][]float32, v []float32, out []float32) {
	if len(m) <= MatVecSplitThreshold {
		for i, row := range m {
			out[i] = float32(e.dotLanes(row, v))
		}
		return
	}
	mid := len(m) / 2
	done := make(chan struct{})
	go func() {
		e.matVecSplit(m[mid:], v, out[mid:])
		close(done)
	}()
	e.matVecSplit(m[:mid], v, out[:mid])
	<-done
}

// dotLanes is the strip-mined hot loop: one multiply-accumulate per lane
// slot per step, scalar tail below one lane width, horizontal reduction in
// float64 at the end.
func (e *SIMDEngine) dotLanes(a, b []float32) float64 {
	lane := e.lane
	acc := make([]float32, lane)
	n := len(a)
	i := 0
	for ; i+lane <= n; i += lane {
		for l := 0; l < lane; l++ {
			acc[l] += a[i+l] * b[i+l]
		}
	}
	var sum float64
	for l := 0; l < lane; l++ {
		sum += float64(acc[l])
	}
	for ; i < n; i++ {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

// applyLanes strip-mines a lane-wise arithmetic op with a scalar tail
func (e *SIMDEngine) applyLanes(dst, a, b []float32, op Op) {
	lane := e.lane
	n := len(a)
	i := 0
	for ; i+lane <= n; i += lane {
		applyOpRange(dst, a, b, op, i, i+lane)
	}
	if i < n {
		applyOpRange(dst, a, b, op, i, n)
	}
}
