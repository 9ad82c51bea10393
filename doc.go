// Package hydra is a heterogeneous numeric compute engine: one contract,
// many execution backends.
//
// Vector and matrix kernels (dot product, elementwise transforms,
// matrix-vector multiply, batched kernels, convolution, cosine similarity)
// run on whichever backend an engine instance is bound to: scalar CPU,
// partitioned multithreaded CPU, lane-vectorized CPU, or GPU with a CPU
// fallback chain. Accelerators degrade gracefully: a GPU engine built on a
// machine without a driver still works, it just computes on the CPU.
//
// Example usage:
//
//	eng, err := hydra.New(hydra.CPUMultiThread)
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer eng.Close()
//
//	fut := eng.DotProduct(a, b)
//	sum, err := fut.Wait(ctx) // submission never blocks; Wait does
//
// Engines return a Future for every operation. Internally large operations
// fan out across index-range partitions and are reassembled in partition
// order, so results are deterministic regardless of scheduling.
package hydra
