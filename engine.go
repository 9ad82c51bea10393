package hydra

import (
	"sync/atomic"

	"github.com/sirupsen/logrus"
)

// Engine is the capability contract every backend implements. All compute
// operations are asynchronous: they validate operands synchronously, then
// return a Future resolved on the engine's executor. An engine is bound to
// one physical backend for its lifetime and owns exactly one executor.
type Engine interface {
	// MatVecMul computes m × v. Precondition: len(m[i]) == len(v) for all
	// rows; the result has len(m) elements.
	MatVecMul(m [][]float32, v []float32) *Future[[]float32]

	// DotProduct computes a · b. Precondition: equal dimensions.
	DotProduct(a, b []float32) *Future[float32]

	// Elementwise applies op lane-by-lane. Binary ops require equal
	// dimensions; unary ops (ReLU, sigmoid, tanh) read only a.
	Elementwise(a, b []float32, op Op) *Future[[]float32]

	// BatchProcess applies kernel to every vector in batch independently.
	// The kernel receives a flattened vector and returns one of equal
	// length; there is no cross-vector interaction.
	BatchProcess(batch [][]float32, kernel func([]float32) []float32) *Future[[][]float32]

	// Inference runs a best-effort neural inference pass. Backends without
	// a model runtime pass the input through unchanged.
	Inference(input []float32, modelPath string) *Future[[]float32]

	// Convolution2D computes the valid cross-correlation of input with
	// kernel. Output dims: (rows-krows+1) × (cols-kcols+1).
	Convolution2D(input, kernel [][]float32) *Future[[][]float32]

	// CosineSimilarity computes dot/(‖a‖·‖b‖), 0 when either norm is 0.
	CosineSimilarity(a, b []float32) *Future[float32]

	// GPUAvailable reports whether this engine has a usable device
	GPUAvailable() bool

	// PerformanceStats returns engine counters and device availability
	PerformanceStats() Stats

	// Backend returns the tag this engine is bound to
	Backend() Backend

	// Close releases the executor and any device resources. Idempotent.
	Close() error
}

// Stats is the performance snapshot exposed by every engine
type Stats struct {
	GPUAvailable  bool
	ActiveDevices int
	Operations    uint64
	Fallbacks     uint64
	Backend       string
}

// opCounters tracks per-engine operation and fallback counts
type opCounters struct {
	ops       atomic.Uint64
	fallbacks atomic.Uint64
}

func (c *opCounters) op()       { c.ops.Add(1) }
func (c *opCounters) fallback() { c.fallbacks.Add(1) }

// Substrate selects the multithreaded engine's execution model. The choice
// is made once at construction, never per call; both substrates are
// functionally equivalent.
type Substrate int

const (
	// SpawnSubstrate runs one goroutine per partition
	SpawnSubstrate Substrate = iota
	// PoolSubstrate runs partitions on a fixed worker pool
	PoolSubstrate
)

type engineConfig struct {
	log       *logrus.Logger
	caps      *Capabilities
	substrate Substrate
	ml        MLAvailability
	workers   int
}

// Option configures an engine at construction
type Option func(*engineConfig)

// WithLogger sets the engine logger; nil selects the standard logger
func WithLogger(log *logrus.Logger) Option {
	return func(c *engineConfig) { c.log = log }
}

// WithCapabilities injects a capability report, overriding process-wide
// detection. Used by tests and by callers that probe at startup.
func WithCapabilities(caps *Capabilities) Option {
	return func(c *engineConfig) { c.caps = caps }
}

// WithSubstrate selects the multithreaded execution substrate
func WithSubstrate(s Substrate) Option {
	return func(c *engineConfig) { c.substrate = s }
}

// WithMLAvailability injects the ML framework flag, decided once at startup
func WithMLAvailability(a MLAvailability) Option {
	return func(c *engineConfig) { c.ml = a }
}

// WithWorkers overrides the engine executor size
func WithWorkers(n int) Option {
	return func(c *engineConfig) { c.workers = n }
}

func buildConfig(opts []Option) engineConfig {
	cfg := engineConfig{
		log: logrus.StandardLogger(),
		ml:  MLUnavailable,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.log == nil {
		cfg.log = logrus.StandardLogger()
	}
	if cfg.caps == nil {
		cfg.caps = DetectCapabilities()
	}
	return cfg
}

// New constructs the engine bound to the given backend tag. The set of
// backends is closed; anything else returns ErrUnknownBackend. GPU backends
// are always constructible; device init failure downgrades to the CPU
// fallback path instead of failing construction.
func New(b Backend, opts ...Option) (Engine, error) {
	cfg := buildConfig(opts)
	switch b {
	case CPUSingleThread, CPUMultiThread:
		return newCPUEngine(b, cfg), nil
	case CPUVectorized:
		return newSIMDEngine(cfg), nil
	case GPUCUDA, GPUOpenCL, GPUROCm:
		return newGPUEngine(b, cfg), nil
	case TPUCoral:
		return newMLEngine(cfg), nil
	default:
		return nil, ErrUnknownBackend
	}
}

// OptimalBackend is the advisory routing heuristic: GPU for large operands
// when a device exists, multithreaded CPU for CPU-intensive tasks on wide
// machines, scalar CPU otherwise. Concrete engines are bound to one backend
// and are free to ignore the advice.
func OptimalBackend(t *Task, caps *Capabilities) Backend {
	if caps == nil {
		caps = DetectCapabilities()
	}
	if t.RequiresGPU() && caps.HasGPU() {
		return gpuBackendFor(caps)
	}
	if t.OperandSize() > GPULargeSizeThreshold && caps.HasGPU() {
		return gpuBackendFor(caps)
	}
	if t.CPUIntensive() && caps.LogicalCores > MultiThreadCoreThreshold {
		return CPUMultiThread
	}
	return CPUSingleThread
}

func gpuBackendFor(caps *Capabilities) Backend {
	switch {
	case caps.CUDADriver:
		return GPUCUDA
	case caps.ROCmDriver:
		return GPUROCm
	default:
		return GPUOpenCL
	}
}

// Synchronous operand validation, shared by every backend. These run before
// any work is scheduled so mismatches never consume executor time.

func checkEqualLen(op string, a, b []float32) error {
	if len(a) != len(b) {
		return NewDimensionError(op, len(a), len(b))
	}
	return nil
}

func checkMatVec(op string, m [][]float32, v []float32) error {
	if len(m) == 0 {
		return NewInvalidArgError(op, "empty matrix")
	}
	for _, row := range m {
		if len(row) != len(v) {
			return NewDimensionError(op, len(v), len(row))
		}
	}
	return nil
}

func checkConv(op string, input, kernel [][]float32) error {
	if len(input) == 0 || len(input[0]) == 0 {
		return NewInvalidArgError(op, "empty input")
	}
	if len(kernel) == 0 || len(kernel[0]) == 0 {
		return NewInvalidArgError(op, "empty kernel")
	}
	if len(kernel) > len(input) || len(kernel[0]) > len(input[0]) {
		return NewDimensionError(op, len(input), len(kernel))
	}
	return nil
}
