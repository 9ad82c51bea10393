package hydra

import (
	"fmt"
	"os"
	"runtime"
	"sync"

	"github.com/klauspost/cpuid/v2"
	"golang.org/x/sys/cpu"
)

// Capabilities describes the hardware an engine can bind to. It is probed
// once per process; engines receive a pointer and never re-probe.
type Capabilities struct {
	// CPU
	LogicalCores int
	LaneWidth    int // float32 elements per vector op
	CacheLine    int
	L1Size       int
	L2Size       int
	HasAVX2      bool
	HasAVX512    bool
	HasFMA       bool
	HasNEON      bool
	CPUBrand     string

	// GPU driver artifacts found on this host
	CUDADriver   bool
	OpenCLDriver bool
	ROCmDriver   bool
	GPUDevices   int
}

var (
	defaultCaps *Capabilities
	capsOnce    sync.Once
)

// DetectCapabilities returns the process-wide capability report,
// probing the hardware on first call.
func DetectCapabilities() *Capabilities {
	capsOnce.Do(func() {
		defaultCaps = probeCapabilities()
	})
	return defaultCaps
}

func probeCapabilities() *Capabilities {
	c := &Capabilities{
		LogicalCores: runtime.NumCPU(),
		LaneWidth:    ScalarLaneWidth,
		CacheLine:    CacheLineSize,
		L1Size:       L1CacheSize,
		L2Size:       L2CacheSize,
		HasAVX2:      cpu.X86.HasAVX2,
		HasAVX512:    cpu.X86.HasAVX512F,
		HasFMA:       cpu.X86.HasFMA,
		HasNEON:      cpu.ARM64.HasASIMD,
		CPUBrand:     cpuid.CPU.BrandName,
	}

	switch {
	case c.HasAVX512:
		c.LaneWidth = AVX512LaneWidth
	case c.HasAVX2:
		c.LaneWidth = AVX2LaneWidth
	case c.HasNEON:
		c.LaneWidth = NEONLaneWidth
	}

	if n := cpuid.CPU.LogicalCores; n > 0 {
		c.LogicalCores = n
	}
	if line := cpuid.CPU.CacheLine; line > 0 {
		c.CacheLine = line
	}
	if l1 := cpuid.CPU.Cache.L1D; l1 > 0 {
		c.L1Size = l1
	}
	if l2 := cpuid.CPU.Cache.L2; l2 > 0 {
		c.L2Size = l2
	}

	c.probeGPUDrivers()
	return c
}

// probeGPUDrivers looks for driver artifacts the way vendor tooling does:
// presence of the kernel driver's proc/sys entries or an installed ICD.
// This never opens a device; engines do their own init handshake.
func (c *Capabilities) probeGPUDrivers() {
	if entries, err := os.ReadDir("/proc/driver/nvidia/gpus"); err == nil && len(entries) > 0 {
		c.CUDADriver = true
		c.GPUDevices += len(entries)
	}
	if entries, err := os.ReadDir("/etc/OpenCL/vendors"); err == nil && len(entries) > 0 {
		c.OpenCLDriver = true
		if c.GPUDevices == 0 {
			c.GPUDevices = 1
		}
	}
	if _, err := os.Stat("/opt/rocm"); err == nil {
		c.ROCmDriver = true
		if c.GPUDevices == 0 {
			c.GPUDevices = 1
		}
	}
}

// HasGPU reports whether any GPU driver was found
func (c *Capabilities) HasGPU() bool {
	return c.CUDADriver || c.OpenCLDriver || c.ROCmDriver
}

// DriverFor reports whether the driver for a specific GPU backend is present
func (c *Capabilities) DriverFor(b Backend) bool {
	switch b {
	case GPUCUDA:
		return c.CUDADriver
	case GPUOpenCL:
		return c.OpenCLDriver
	case GPUROCm:
		return c.ROCmDriver
	}
	return false
}

// Summary returns a one-line human-readable capability report
func (c *Capabilities) Summary() string {
	simd := "scalar"
	switch {
	case c.HasAVX512:
		simd = "avx512"
	case c.HasAVX2:
		simd = "avx2"
	case c.HasNEON:
		simd = "neon"
	}
	return fmt.Sprintf("%d cores, %s lanes=%d, cacheline=%dB L2=%dKB, gpus=%d",
		c.LogicalCores, simd, c.LaneWidth, c.CacheLine, c.L2Size/1024, c.GPUDevices)
}
