package hydra

// Backend identifies a concrete execution target. The set is closed:
// New dispatches on the tag and returns the engine bound to it.
type Backend int

const (
	CPUSingleThread Backend = iota // Scalar CPU execution
	CPUMultiThread                 // Partitioned multithreaded CPU execution
	CPUVectorized                  // Lane-vectorized CPU execution
	GPUCUDA                        // NVIDIA CUDA device
	GPUOpenCL                      // OpenCL device
	GPUROCm                        // AMD ROCm device
	TPUCoral                       // Coral edge TPU (ML shim)
)

// String returns the backend identifier used in Result.DeviceInfo
func (b Backend) String() string {
	switch b {
	case CPUSingleThread:
		return "cpu-single"
	case CPUMultiThread:
		return "cpu-multi"
	case CPUVectorized:
		return "cpu-simd"
	case GPUCUDA:
		return "gpu-cuda"
	case GPUOpenCL:
		return "gpu-opencl"
	case GPUROCm:
		return "gpu-rocm"
	case TPUCoral:
		return "tpu-coral"
	default:
		return "unknown"
	}
}

// IsGPU reports whether the backend is a GPU device
func (b Backend) IsGPU() bool {
	return b == GPUCUDA || b == GPUOpenCL || b == GPUROCm
}

// Op selects an elementwise transform
type Op int

const (
	OpAdd      Op = iota // a + b
	OpSubtract           // a - b
	OpMultiply           // a * b
	OpDivide             // a / b, NaN when b is exactly zero
	OpReLU               // max(0, a), unary
	OpSigmoid            // 1/(1+e^-a), unary
	OpTanh               // tanh(a), unary
)

// String returns the operation tag
func (op Op) String() string {
	switch op {
	case OpAdd:
		return "add"
	case OpSubtract:
		return "subtract"
	case OpMultiply:
		return "multiply"
	case OpDivide:
		return "divide"
	case OpReLU:
		return "relu"
	case OpSigmoid:
		return "sigmoid"
	case OpTanh:
		return "tanh"
	default:
		return "unknown"
	}
}

// Unary reports whether the operation reads only its first operand.
// Unary operations skip the second-operand dimension check.
func (op Op) Unary() bool {
	switch op {
	case OpReLU, OpSigmoid, OpTanh:
		return true
	}
	return false
}

// MLAvailability is the injected ML framework capability flag. It is decided
// once at startup (build tag, config, or deployment knowledge) rather than
// re-probed per engine construction.
type MLAvailability int

const (
	MLUnavailable MLAvailability = iota
	MLAvailable
)

// String returns the availability tag
func (a MLAvailability) String() string {
	if a == MLAvailable {
		return "available"
	}
	return "unavailable"
}
