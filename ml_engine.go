package hydra

import (
	"os"
	"sync"

	"github.com/sirupsen/logrus"
)

// MLEngine is the capability-probe shim for ML accelerators. Whether a
// framework runtime exists is an injected flag decided once at startup, not
// re-probed per construction; without one, inference passes the input
// through and every numeric operation delegates to a CPU engine.
type MLEngine struct {
	availability MLAvailability
	log          *logrus.Logger
	delegate     *CPUEngine

	counters  opCounters
	closeOnce sync.Once
}

func newMLEngine(cfg engineConfig) *MLEngine {
	return &MLEngine{
		availability: cfg.ml,
		log:          cfg.log,
		delegate:     newCPUEngine(CPUMultiThread, cfg),
	}
}

// Backend returns TPUCoral
func (e *MLEngine) Backend() Backend { return TPUCoral }

// GPUAvailable always reports false; the shim is not a GPU
func (e *MLEngine) GPUAvailable() bool { return false }

// Available reports the injected framework availability
func (e *MLEngine) Available() bool { return e.availability == MLAvailable }

// PerformanceStats returns engine counters
func (e *MLEngine) PerformanceStats() Stats {
	return Stats{
		Operations: e.counters.ops.Load(),
		Fallbacks:  e.counters.fallbacks.Load(),
		Backend:    TPUCoral.String(),
	}
}

// Close drains the delegate. Idempotent.
func (e *MLEngine) Close() error {
	e.closeOnce.Do(func() {
		_ = e.delegate.Close()
	})
	return nil
}

// Inference follows the try-native, log-and-passthrough policy: with the
// framework flagged available it would hand the input to the runtime; the
// runtime binding is an integration point, so both paths pass through.
func (e *MLEngine) Inference(input []float32, modelPath string) *Future[[]float32] {
	return submit(e.delegate.ops, func() ([]float32, error) {
		e.counters.op()
		if e.availability == MLAvailable {
			if _, err := os.Stat(modelPath); err != nil {
				e.log.WithFields(logrus.Fields{
					"model": modelPath,
					"error": err,
				}).Warn("model artifact unreadable, passing input through")
			} else {
				e.log.WithField("model", modelPath).
					Debug("no runtime binding for model, passing input through")
			}
		}
		e.counters.fallback()
		out := make([]float32, len(input))
		copy(out, input)
		return out, nil
	})
}

// Numeric operations delegate to the CPU engine unchanged.

func (e *MLEngine) MatVecMul(m [][]float32, v []float32) *Future[[]float32] {
	e.counters.op()
	return e.delegate.MatVecMul(m, v)
}

func (e *MLEngine) DotProduct(a, b []float32) *Future[float32] {
	e.counters.op()
	return e.delegate.DotProduct(a, b)
}

func (e *MLEngine) Elementwise(a, b []float32, op Op) *Future[[]float32] {
	e.counters.op()
	return e.delegate.Elementwise(a, b, op)
}

func (e *MLEngine) BatchProcess(batch [][]float32, kernel func([]float32) []float32) *Future[[][]float32] {
	e.counters.op()
	return e.delegate.BatchProcess(batch, kernel)
}

func (e *MLEngine) Convolution2D(input, kernel [][]float32) *Future[[][]float32] {
	e.counters.op()
	return e.delegate.Convolution2D(input, kernel)
}

func (e *MLEngine) CosineSimilarity(a, b []float32) *Future[float32] {
	e.counters.op()
	return e.delegate.CosineSimilarity(a, b)
}
