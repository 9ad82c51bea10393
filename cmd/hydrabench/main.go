// Command hydrabench probes the local hardware and times the compute
// engines against each other.
package main

import (
	"fmt"
	"math/rand"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/hydra-compute/hydra"
	"github.com/hydra-compute/hydra/kernels"
)

var log = logrus.New()

func main() {
	root := &cobra.Command{
		Use:   "hydrabench",
		Short: "Hardware probe and benchmark harness for the hydra engines",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level, err := logrus.ParseLevel(viper.GetString("log-level"))
			if err != nil {
				return err
			}
			log.SetLevel(level)
			return nil
		},
	}

	root.PersistentFlags().String("log-level", "info", "logrus level")
	_ = viper.BindPFlag("log-level", root.PersistentFlags().Lookup("log-level"))
	viper.SetEnvPrefix("HYDRA")
	viper.AutomaticEnv()

	root.AddCommand(infoCmd(), benchCmd())
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func infoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "Print the detected hardware capability report",
		RunE: func(cmd *cobra.Command, args []string) error {
			caps := hydra.DetectCapabilities()
			fmt.Println(caps.Summary())
			if caps.CPUBrand != "" {
				fmt.Printf("cpu: %s\n", caps.CPUBrand)
			}
			for _, b := range []hydra.Backend{hydra.GPUCUDA, hydra.GPUOpenCL, hydra.GPUROCm} {
				fmt.Printf("%-10s driver=%v\n", b, caps.DriverFor(b))
			}
			return nil
		},
	}
}

func benchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Time dot product, matrix-vector multiply and FFT per backend",
		RunE: func(cmd *cobra.Command, args []string) error {
			size := viper.GetInt("size")
			iters := viper.GetInt("iters")
			backends, err := parseBackends(viper.GetString("backends"))
			if err != nil {
				return err
			}

			rng := rand.New(rand.NewSource(1))
			a := randomVector(rng, size)
			b := randomVector(rng, size)
			m := randomMatrix(rng, 512, size)

			for _, backend := range backends {
				eng, err := hydra.New(backend, hydra.WithLogger(log))
				if err != nil {
					return err
				}
				benchEngine(eng, m, a, b, iters)
				_ = eng.Close()
			}

			benchFFT(size, iters)
			return nil
		},
	}
	cmd.Flags().Int("size", 4096, "vector length")
	cmd.Flags().Int("iters", 50, "iterations per measurement")
	cmd.Flags().String("backends", "cpu-single,cpu-multi,cpu-simd", "comma-separated backend tags")
	_ = viper.BindPFlags(cmd.Flags())
	return cmd
}

func benchEngine(eng hydra.Engine, m [][]float32, a, b []float32, iters int) {
	start := time.Now()
	for i := 0; i < iters; i++ {
		if _, err := eng.DotProduct(a, b).MustWait(); err != nil {
			log.WithError(err).Error("dot product failed")
			return
		}
	}
	dot := time.Since(start) / time.Duration(iters)

	start = time.Now()
	for i := 0; i < iters; i++ {
		if _, err := eng.MatVecMul(m, a).MustWait(); err != nil {
			log.WithError(err).Error("matvec failed")
			return
		}
	}
	matvec := time.Since(start) / time.Duration(iters)

	stats := eng.PerformanceStats()
	fmt.Printf("%-12s dot=%-12s matvec=%-12s ops=%d fallbacks=%d\n",
		stats.Backend, dot, matvec, stats.Operations, stats.Fallbacks)
}

func benchFFT(size, iters int) {
	// Round down to a power of two
	n := 1
	for n*2 <= size {
		n *= 2
	}
	rng := rand.New(rand.NewSource(2))
	re := make([]float64, n)
	im := make([]float64, n)
	for i := range re {
		re[i] = rng.Float64()
	}
	start := time.Now()
	for i := 0; i < iters; i++ {
		if err := kernels.FFT(re, im, false); err != nil {
			log.WithError(err).Error("fft failed")
			return
		}
	}
	fmt.Printf("%-12s n=%d per-call=%s\n", "fft", n, time.Since(start)/time.Duration(iters))
}

func parseBackends(csv string) ([]hydra.Backend, error) {
	tags := map[string]hydra.Backend{
		"cpu-single": hydra.CPUSingleThread,
		"cpu-multi":  hydra.CPUMultiThread,
		"cpu-simd":   hydra.CPUVectorized,
		"gpu-cuda":   hydra.GPUCUDA,
		"gpu-opencl": hydra.GPUOpenCL,
		"gpu-rocm":   hydra.GPUROCm,
	}
	var out []hydra.Backend
	for _, part := range strings.Split(csv, ",") {
		b, ok := tags[strings.TrimSpace(part)]
		if !ok {
			return nil, fmt.Errorf("unknown backend tag %q", part)
		}
		out = append(out, b)
	}
	return out, nil
}

func randomVector(rng *rand.Rand, n int) []float32 {
	v := make([]float32, n)
	for i := range v {
		v[i] = rng.Float32()*2 - 1
	}
	return v
}

func randomMatrix(rng *rand.Rand, rows, cols int) [][]float32 {
	m := make([][]float32, rows)
	for i := range m {
		m[i] = randomVector(rng, cols)
	}
	return m
}
