package hydra

import (
	"context"
	"math"
	"sync"

	"github.com/sirupsen/logrus"
)

// CPUEngine executes on the host CPU, either as a plain scalar engine
// (CPUSingleThread) or partitioned across 2 × logical-core contiguous
// chunks (CPUMultiThread). Partitioned results are always reassembled by
// chunk order, never completion order, so repeated calls are deterministic
// regardless of scheduling.
type CPUEngine struct {
	backend   Backend
	parallel  bool
	substrate Substrate
	parts     int
	caps      *Capabilities
	log       *logrus.Logger

	// façade executor: resolves futures without blocking submission
	ops *spawnExecutor
	// partition substrate for PoolSubstrate engines
	pool *poolExecutor

	counters  opCounters
	closeOnce sync.Once
}

func newCPUEngine(b Backend, cfg engineConfig) *CPUEngine {
	e := &CPUEngine{
		backend:   b,
		parallel:  b == CPUMultiThread,
		substrate: cfg.substrate,
		caps:      cfg.caps,
		log:       cfg.log,
		ops:       newSpawnExecutor(),
	}
	e.parts = cfg.workers
	if e.parts <= 0 {
		e.parts = PartitionFactor * cfg.caps.LogicalCores
	}
	if e.parallel && e.substrate == PoolSubstrate {
		e.pool = newPoolExecutor(e.parts)
	}
	return e
}

// Backend returns the bound backend tag
func (e *CPUEngine) Backend() Backend { return e.backend }

// GPUAvailable always reports false for CPU engines
func (e *CPUEngine) GPUAvailable() bool { return false }

// PerformanceStats returns engine counters
func (e *CPUEngine) PerformanceStats() Stats {
	return Stats{
		GPUAvailable:  false,
		ActiveDevices: 0,
		Operations:    e.counters.ops.Load(),
		Fallbacks:     e.counters.fallbacks.Load(),
		Backend:       e.backend.String(),
	}
}

// Close drains the executor. Idempotent.
func (e *CPUEngine) Close() error {
	e.closeOnce.Do(func() {
		e.ops.Close()
		if e.pool != nil {
			e.pool.Close()
		}
	})
	return nil
}

// DotProduct computes a · b with float64 accumulation
func (e *CPUEngine) DotProduct(a, b []float32) *Future[float32] {
	if err := checkEqualLen("DotProduct", a, b); err != nil {
		return completedFuture(float32(0), err)
	}
	return submit(e.ops, func() (float32, error) {
		e.counters.op()
		return e.dotSync(a, b), nil
	})
}

// MatVecMul computes m × v, one output element per matrix row
func (e *CPUEngine) MatVecMul(m [][]float32, v []float32) *Future[[]float32] {
	if err := checkMatVec("MatVecMul", m, v); err != nil {
		return completedFuture[[]float32](nil, err)
	}
	return submit(e.ops, func() ([]float32, error) {
		e.counters.op()
		return e.matVecSync(m, v), nil
	})
}

// Elementwise applies op; binary ops require equal dimensions
func (e *CPUEngine) Elementwise(a, b []float32, op Op) *Future[[]float32] {
	if !op.Unary() {
		if err := checkEqualLen("Elementwise", a, b); err != nil {
			return completedFuture[[]float32](nil, err)
		}
	}
	return submit(e.ops, func() ([]float32, error) {
		e.counters.op()
		return e.elementwiseSync(a, b, op), nil
	})
}

// BatchProcess applies kernel to every vector independently
func (e *CPUEngine) BatchProcess(batch [][]float32, kernel func([]float32) []float32) *Future[[][]float32] {
	if kernel == nil {
		return completedFuture[[][]float32](nil, NewInvalidArgError("BatchProcess", "nil kernel"))
	}
	return submit(e.ops, func() ([][]float32, error) {
		e.counters.op()
		return e.batchSync(batch, kernel)
	})
}

// Inference passes the input through: the CPU backend carries no model
// runtime, and a live worker loop beats a hard failure.
func (e *CPUEngine) Inference(input []float32, modelPath string) *Future[[]float32] {
	return submit(e.ops, func() ([]float32, error) {
		e.counters.op()
		e.log.WithFields(logrus.Fields{
			"backend": e.backend.String(),
			"model":   modelPath,
		}).Debug("no model runtime on CPU backend, passing input through")
		out := make([]float32, len(input))
		copy(out, input)
		return out, nil
	})
}

// Convolution2D computes the valid cross-correlation of input with kernel
func (e *CPUEngine) Convolution2D(input, kernel [][]float32) *Future[[][]float32] {
	if err := checkConv("Convolution2D", input, kernel); err != nil {
		return completedFuture[[][]float32](nil, err)
	}
	return submit(e.ops, func() ([][]float32, error) {
		e.counters.op()
		return e.convSync(input, kernel), nil
	})
}

// CosineSimilarity computes dot/(‖a‖·‖b‖), 0 when either norm is 0
func (e *CPUEngine) CosineSimilarity(a, b []float32) *Future[float32] {
	if err := checkEqualLen("CosineSimilarity", a, b); err != nil {
		return completedFuture(float32(0), err)
	}
	return submit(e.ops, func() (float32, error) {
		e.counters.op()
		return e.cosineSync(a, b), nil
	})
}

// Synchronous bodies. These are also the GPU engine's fallback path, so
// they must stay semantically identical to the device kernels they shadow.

func (e *CPUEngine) dotSync(a, b []float32) float32 {
	if !e.parallel || len(a) < 2*MinPartitionSize {
		return float32(dotRange(a, b, 0, len(a)))
	}
	spans := partitionRange(len(a), e.parts)
	partials := make([]float64, len(spans))
	e.forEachSpan(spans, func(i int, s span) {
		partials[i] = dotRange(a, b, s.lo, s.hi)
	})
	var sum float64
	for _, p := range partials {
		sum += p
	}
	return float32(sum)
}

func (e *CPUEngine) matVecSync(m [][]float32, v []float32) []float32 {
	out := make([]float32, len(m))
	if !e.parallel || len(m) < 2 {
		matVecRows(m, v, out, 0, len(m))
		return out
	}
	spans := partitionRange(len(m), e.parts)
	e.forEachSpan(spans, func(_ int, s span) {
		matVecRows(m, v, out, s.lo, s.hi)
	})
	return out
}

func (e *CPUEngine) elementwiseSync(a, b []float32, op Op) []float32 {
	out := make([]float32, len(a))
	if !e.parallel || len(a) < 2*MinPartitionSize {
		applyOpRange(out, a, b, op, 0, len(a))
		return out
	}
	spans := partitionRange(len(a), e.parts)
	e.forEachSpan(spans, func(_ int, s span) {
		applyOpRange(out, a, b, op, s.lo, s.hi)
	})
	return out
}

func (e *CPUEngine) batchSync(batch [][]float32, kernel func([]float32) []float32) ([][]float32, error) {
	out := make([][]float32, len(batch))
	if len(batch) == 0 {
		return out, nil
	}
	var firstErr error
	var errMu sync.Mutex
	apply := func(i int) {
		res := kernel(batch[i])
		if len(res) != len(batch[i]) {
			errMu.Lock()
			if firstErr == nil {
				firstErr = NewExecutionError("BatchProcess",
					"kernel changed vector length", nil)
			}
			errMu.Unlock()
			return
		}
		out[i] = res
	}
	if !e.parallel {
		for i := range batch {
			apply(i)
		}
	} else {
		spans := partitionRange(len(batch), e.parts)
		e.forEachSpan(spans, func(_ int, s span) {
			for i := s.lo; i < s.hi; i++ {
				apply(i)
			}
		})
	}
	if firstErr != nil {
		return nil, firstErr
	}
	return out, nil
}

func (e *CPUEngine) convSync(input, kernel [][]float32) [][]float32 {
	outRows := len(input) - len(kernel) + 1
	outCols := len(input[0]) - len(kernel[0]) + 1
	out := make([][]float32, outRows)
	for i := range out {
		out[i] = make([]float32, outCols)
	}
	if !e.parallel || outRows < 2 {
		conv2DRows(input, kernel, out, 0, outRows)
		return out
	}
	spans := partitionRange(outRows, e.parts)
	e.forEachSpan(spans, func(_ int, s span) {
		conv2DRows(input, kernel, out, s.lo, s.hi)
	})
	return out
}

func (e *CPUEngine) cosineSync(a, b []float32) float32 {
	dot := float64(e.dotSync(a, b))
	na := norm2(a)
	nb := norm2(b)
	if na == 0 || nb == 0 {
		return 0
	}
	return float32(dot / (na * nb))
}

// forEachSpan runs fn over every partition and waits. SpawnSubstrate uses
// the fan-out primitive (one goroutine per partition); PoolSubstrate uses
// the engine's fixed worker pool. Output ordering does not depend on the
// substrate: every fn writes to its own partition's indices.
func (e *CPUEngine) forEachSpan(spans []span, fn func(i int, s span)) {
	if len(spans) == 1 {
		fn(0, spans[0])
		return
	}
	if e.substrate == PoolSubstrate && e.pool != nil {
		var wg sync.WaitGroup
		for i, s := range spans {
			i, s := i, s
			wg.Add(1)
			e.pool.Submit(func() {
				defer wg.Done()
				fn(i, s)
			})
		}
		wg.Wait()
		return
	}
	units := make([]Unit[struct{}], len(spans))
	for i, s := range spans {
		i, s := i, s
		units[i] = func(context.Context) (struct{}, error) {
			fn(i, s)
			return struct{}{}, nil
		}
	}
	// Units never fail here, so the error path is unreachable.
	_, _ = FanOut(context.Background(), units, FanOutOptions{})
}

// Scalar kernel bodies, shared with the GPU fallback path. Reductions
// accumulate in float64 and cast once at the end; see DESIGN.md for the
// resulting cross-engine tolerance.

func dotRange(a, b []float32, lo, hi int) float64 {
	var sum float64
	for i := lo; i < hi; i++ {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

func matVecRows(m [][]float32, v []float32, out []float32, lo, hi int) {
	for i := lo; i < hi; i++ {
		row := m[i]
		var sum float64
		for j := range row {
			sum += float64(row[j]) * float64(v[j])
		}
		out[i] = float32(sum)
	}
}

func applyOpRange(dst, a, b []float32, op Op, lo, hi int) {
	switch op {
	case OpAdd:
		for i := lo; i < hi; i++ {
			dst[i] = a[i] + b[i]
		}
	case OpSubtract:
		for i := lo; i < hi; i++ {
			dst[i] = a[i] - b[i]
		}
	case OpMultiply:
		for i := lo; i < hi; i++ {
			dst[i] = a[i] * b[i]
		}
	case OpDivide:
		for i := lo; i < hi; i++ {
			if b[i] == 0 {
				dst[i] = float32(math.NaN())
			} else {
				dst[i] = a[i] / b[i]
			}
		}
	case OpReLU:
		for i := lo; i < hi; i++ {
			if a[i] > 0 {
				dst[i] = a[i]
			} else {
				dst[i] = 0
			}
		}
	case OpSigmoid:
		for i := lo; i < hi; i++ {
			dst[i] = sigmoid32(a[i])
		}
	case OpTanh:
		for i := lo; i < hi; i++ {
			dst[i] = tanh32(a[i])
		}
	}
}

// sigmoid32 computes 1/(1+e^-x), saturating outside the useful range
func sigmoid32(x float32) float32 {
	if x < -DefaultActivationSaturation {
		return 0
	}
	if x > DefaultActivationSaturation {
		return 1
	}
	return float32(1.0 / (1.0 + math.Exp(-float64(x))))
}

// tanh32 computes tanh(x), saturating outside the useful range
func tanh32(x float32) float32 {
	if x > DefaultActivationSaturation {
		return 1
	}
	if x < -DefaultActivationSaturation {
		return -1
	}
	return float32(math.Tanh(float64(x)))
}

func norm2(a []float32) float64 {
	var sum float64
	for _, x := range a {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}

func conv2DRows(input, kernel [][]float32, out [][]float32, lo, hi int) {
	kRows := len(kernel)
	kCols := len(kernel[0])
	outCols := len(out[0])
	for i := lo; i < hi; i++ {
		for j := 0; j < outCols; j++ {
			var sum float64
			for ki := 0; ki < kRows; ki++ {
				inRow := input[i+ki]
				kRow := kernel[ki]
				for kj := 0; kj < kCols; kj++ {
					sum += float64(inRow[j+kj]) * float64(kRow[kj])
				}
			}
			out[i][j] = float32(sum)
		}
	}
}
