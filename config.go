// Package hydra configuration constants
package hydra

// Partitioning parameters
const (
	// Partitions per logical core for multithreaded range splitting
	PartitionFactor = 2

	// Minimum elements per partition; smaller problems run inline
	MinPartitionSize = 256
)

// Divide-and-conquer split thresholds for the vectorized engine
const (
	// Below this length a dot product is computed directly (lane loop + tail)
	DotSplitThreshold = 1000

	// Below this row count a matrix-vector multiply is computed directly
	MatVecSplitThreshold = 100
)

// SIMD lane widths in float32 elements
const (
	// AVX2 vector width
	AVX2LaneWidth = 8

	// AVX-512 vector width
	AVX512LaneWidth = 16

	// NEON vector width
	NEONLaneWidth = 4

	// Fallback lane width when no vector extension is detected
	ScalarLaneWidth = 4
)

// Cache geometry defaults, used when probing fails
const (
	// L1 cache size per core (typical for modern CPUs)
	L1CacheSize = 32 * 1024 // 32KB

	// L2 cache size per core (typical for modern CPUs)
	L2CacheSize = 256 * 1024 // 256KB

	// Cache line size in bytes
	CacheLineSize = 64
)

// Backend selection heuristics
const (
	// Operand element count above which a GPU backend is preferred
	GPULargeSizeThreshold = 10000

	// Logical core count above which CPU-intensive tasks go multithreaded
	MultiThreadCoreThreshold = 4
)

// Kernel tuning parameters
const (
	// Block size for cache-blocked matrix-vector multiply
	MatVecBlockSize = 64

	// Element count above which matrix-vector multiply uses blocking
	MatVecBlockThreshold = 64 * 1024

	// Pivot magnitude below which Gaussian elimination reports singularity
	SingularPivotEpsilon = 1e-12
)

// Device memory parameters
const (
	// Alignment for device-style buffer allocations
	DeviceAlignment = 64

	// Divisor applied to the core count when sizing a GPU engine's executor;
	// device transfers serialize, so fewer workers than cores
	GPUPoolDivisor = 2
)

// Activation saturation bound: sigmoid/tanh are clipped outside ±this value
const DefaultActivationSaturation = 15.0
