package hydra

import (
	"sync"
	"unsafe"

	"github.com/sirupsen/logrus"
)

// DeviceBuffer is a device-style off-heap buffer. On hosts without a real
// device it is pinned, cache-aligned CPU memory accessed through typed
// views, matching the transfer discipline a device buffer would need.
type DeviceBuffer struct {
	ptr  unsafe.Pointer
	size int
	off  int
}

// IsNil reports whether the buffer is the zero value
func (b DeviceBuffer) IsNil() bool { return b.ptr == nil }

// Size returns the size in bytes of the buffer region
func (b DeviceBuffer) Size() int { return b.size }

// Float32 returns a float32 slice view of the buffer
func (b DeviceBuffer) Float32() []float32 {
	if b.ptr == nil {
		return nil
	}
	return (*[1 << 28]float32)(b.ptr)[: b.size/4 : b.size/4]
}

// Bytes returns a byte slice view of the buffer
func (b DeviceBuffer) Bytes() []byte {
	if b.ptr == nil {
		return nil
	}
	return (*[1 << 30]byte)(b.ptr)[:b.size:b.size]
}

func (b DeviceBuffer) key() uintptr {
	return uintptr(b.ptr)
}

// deviceAlloc is one releasable unit: a backing region, the set of live
// references (owner plus views) that alias it, and its release action.
type deviceAlloc struct {
	backing  []byte
	refs     map[uintptr]struct{}
	release  func()
	released bool
}

// DeviceAllocator tracks device-style allocations by every reference the
// caller may hold. Freeing through any alias releases the allocation
// exactly once and forgets all aliases; freeing an unknown reference is a
// warned no-op. Shutdown releases every distinct outstanding allocation
// once and clears the registry.
type DeviceAllocator struct {
	mu         sync.Mutex
	log        *logrus.Logger
	refs       map[uintptr]*deviceAlloc
	bytesInUse int64
	peakBytes  int64
}

// NewDeviceAllocator creates an empty allocation registry
func NewDeviceAllocator(log *logrus.Logger) *DeviceAllocator {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &DeviceAllocator{
		log:  log,
		refs: make(map[uintptr]*deviceAlloc),
	}
}

// Alloc allocates a buffer of the given byte size, aligned for lane loads
func (a *DeviceAllocator) Alloc(size int) (DeviceBuffer, error) {
	if size <= 0 {
		return DeviceBuffer{}, ErrInvalidSize
	}
	aligned := (size + DeviceAlignment - 1) &^ (DeviceAlignment - 1)
	backing := make([]byte, aligned)
	ptr := unsafe.Pointer(&backing[0])

	a.mu.Lock()
	defer a.mu.Unlock()

	alloc := &deviceAlloc{
		backing: backing,
		refs:    make(map[uintptr]struct{}),
	}
	alloc.release = func() {
		alloc.backing = nil
		a.bytesInUse -= int64(aligned)
	}
	alloc.refs[uintptr(ptr)] = struct{}{}
	a.refs[uintptr(ptr)] = alloc

	a.bytesInUse += int64(aligned)
	if a.bytesInUse > a.peakBytes {
		a.peakBytes = a.bytesInUse
	}

	return DeviceBuffer{ptr: ptr, size: size}, nil
}

// AllocFloats allocates a buffer holding n float32 elements
func (a *DeviceAllocator) AllocFloats(n int) (DeviceBuffer, error) {
	return a.Alloc(n * 4)
}

// View derives a zero-copy view over part of buf and registers it as an
// alias of buf's allocation: freeing either one releases both.
func (a *DeviceAllocator) View(buf DeviceBuffer, offBytes, size int) (DeviceBuffer, error) {
	if offBytes < 0 || size <= 0 || offBytes+size > buf.size {
		return DeviceBuffer{}, NewInvalidArgError("View", "view out of bounds")
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	alloc, ok := a.refs[buf.key()]
	if !ok {
		return DeviceBuffer{}, NewMemoryError("View", "unknown parent buffer", nil)
	}
	view := DeviceBuffer{
		ptr:  unsafe.Pointer(uintptr(buf.ptr) + uintptr(offBytes)),
		size: size,
		off:  buf.off + offBytes,
	}
	alloc.refs[view.key()] = struct{}{}
	a.refs[view.key()] = alloc
	return view, nil
}

// Free releases the allocation buf belongs to, through any alias. All
// aliases of the allocation are forgotten and the release action runs
// exactly once. An unknown buffer is a no-op with a warning, never an
// error: double frees through stale views must not kill a worker loop.
func (a *DeviceAllocator) Free(buf DeviceBuffer) {
	a.mu.Lock()
	defer a.mu.Unlock()

	alloc, ok := a.refs[buf.key()]
	if !ok {
		a.log.WithField("size", buf.size).
			Warn("free of untracked device buffer ignored")
		return
	}
	a.releaseLocked(alloc)
}

func (a *DeviceAllocator) releaseLocked(alloc *deviceAlloc) {
	for ref := range alloc.refs {
		delete(a.refs, ref)
	}
	alloc.refs = make(map[uintptr]struct{})
	if !alloc.released {
		alloc.released = true
		alloc.release()
	}
}

// Shutdown releases every distinct outstanding allocation exactly once,
// deduplicated by identity, then clears the registry.
func (a *DeviceAllocator) Shutdown() {
	a.mu.Lock()
	defer a.mu.Unlock()

	distinct := make(map[*deviceAlloc]struct{})
	for _, alloc := range a.refs {
		distinct[alloc] = struct{}{}
	}
	for alloc := range distinct {
		if !alloc.released {
			alloc.released = true
			alloc.release()
		}
	}
	a.refs = make(map[uintptr]*deviceAlloc)
	if len(distinct) > 0 {
		a.log.WithField("allocations", len(distinct)).
			Debug("device allocator shutdown swept outstanding buffers")
	}
}

// Stats returns current and peak tracked bytes plus the live reference count
func (a *DeviceAllocator) Stats() (inUse, peak int64, refs int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.bytesInUse, a.peakBytes, len(a.refs)
}
