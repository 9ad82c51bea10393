package hydra

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
)

// WorkerHandle holds one registered worker's lifecycle state. Start/stop
// transitions serialize on the handle's lock so concurrent calls on the
// same worker cannot race; capacity is a lock-free hint.
type WorkerHandle struct {
	id          string
	mu          sync.Mutex
	running     bool
	capacity    atomic.Int64
	lastStarted time.Time
	start       func() error
	stop        func() error
}

// ID returns the worker id
func (h *WorkerHandle) ID() string { return h.id }

// Running reports the current lifecycle state
func (h *WorkerHandle) Running() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.running
}

// Capacity returns the current capacity hint
func (h *WorkerHandle) Capacity() int {
	return int(h.capacity.Load())
}

// LastStarted returns when the worker last transitioned to running
func (h *WorkerHandle) LastStarted() time.Time {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.lastStarted
}

// WorkerRegistry maps worker ids to lifecycle handles. It is explicit
// state owned by whatever orchestrates workers: constructed once and
// passed around, never process-global. The registry map and the per-handle
// locks are independent: registry operations never hold a handle lock and
// lifecycle transitions never hold the registry lock.
type WorkerRegistry struct {
	mu      sync.RWMutex
	workers map[string]*WorkerHandle
	log     *logrus.Logger
}

// NewWorkerRegistry creates an empty registry
func NewWorkerRegistry(log *logrus.Logger) *WorkerRegistry {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &WorkerRegistry{
		workers: make(map[string]*WorkerHandle),
		log:     log,
	}
}

// Register adds a worker. It fails if the id already exists, a callback is
// nil, or capacity is negative. The worker starts in the stopped state.
func (r *WorkerRegistry) Register(id string, start, stop func() error, capacity int) error {
	if id == "" {
		return NewInvalidArgError("Register", "empty worker id")
	}
	if start == nil || stop == nil {
		return NewInvalidArgError("Register", "nil lifecycle callback")
	}
	if capacity < 0 {
		return NewInvalidArgError("Register", "negative capacity")
	}

	h := &WorkerHandle{id: id, start: start, stop: stop}
	h.capacity.Store(int64(capacity))

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.workers[id]; exists {
		return NewInvalidArgError("Register", "worker id already registered: "+id)
	}
	r.workers[id] = h
	r.log.WithFields(logrus.Fields{
		"worker":   id,
		"capacity": capacity,
	}).Debug("worker registered")
	return nil
}

func (r *WorkerRegistry) handle(id string) (*WorkerHandle, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.workers[id]
	return h, ok
}

// Start transitions the worker to running. Starting an already-running
// worker is a no-op success and does not invoke the callback again.
// Callback failures are logged and returned; they never panic outward.
func (r *WorkerRegistry) Start(id string) error {
	h, ok := r.handle(id)
	if !ok {
		return NewInvalidArgError("Start", "unknown worker: "+id)
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.running {
		return nil
	}
	if err := h.start(); err != nil {
		r.log.WithFields(logrus.Fields{
			"worker": id,
			"error":  err,
		}).Warn("worker start callback failed")
		return NewExecutionError("Start", "start callback failed for "+id, err)
	}
	h.running = true
	h.lastStarted = time.Now()
	r.log.WithField("worker", id).Info("worker started")
	return nil
}

// Stop transitions the worker to stopped. Stopping an already-stopped
// worker is a no-op success.
func (r *WorkerRegistry) Stop(id string) error {
	h, ok := r.handle(id)
	if !ok {
		return NewInvalidArgError("Stop", "unknown worker: "+id)
	}
	return r.stopHandle(h)
}

func (r *WorkerRegistry) stopHandle(h *WorkerHandle) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.running {
		return nil
	}
	if err := h.stop(); err != nil {
		r.log.WithFields(logrus.Fields{
			"worker": h.id,
			"error":  err,
		}).Warn("worker stop callback failed")
		return NewExecutionError("Stop", "stop callback failed for "+h.id, err)
	}
	h.running = false
	r.log.WithField("worker", h.id).Info("worker stopped")
	return nil
}

// Scale updates the capacity hint atomically without touching run state
func (r *WorkerRegistry) Scale(id string, capacity int) error {
	if capacity < 0 {
		return NewInvalidArgError("Scale", "negative capacity")
	}
	h, ok := r.handle(id)
	if !ok {
		return NewInvalidArgError("Scale", "unknown worker: "+id)
	}
	h.capacity.Store(int64(capacity))
	return nil
}

// Unregister force-stops the worker (best effort, stop failures swallowed)
// and removes its handle. The worker is always left stopped.
func (r *WorkerRegistry) Unregister(id string) error {
	h, ok := r.handle(id)
	if !ok {
		return NewInvalidArgError("Unregister", "unknown worker: "+id)
	}
	if err := r.stopHandle(h); err != nil {
		// Logged by stopHandle; unregistration proceeds regardless.
		h.mu.Lock()
		h.running = false
		h.mu.Unlock()
	}
	r.mu.Lock()
	delete(r.workers, id)
	r.mu.Unlock()
	r.log.WithField("worker", id).Debug("worker unregistered")
	return nil
}

// Shutdown stops every worker, logging but not propagating individual stop
// failures, then clears the registry.
func (r *WorkerRegistry) Shutdown() {
	r.mu.Lock()
	handles := make([]*WorkerHandle, 0, len(r.workers))
	for _, h := range r.workers {
		handles = append(handles, h)
	}
	r.workers = make(map[string]*WorkerHandle)
	r.mu.Unlock()

	for _, h := range handles {
		if err := r.stopHandle(h); err != nil {
			h.mu.Lock()
			h.running = false
			h.mu.Unlock()
		}
	}
	r.log.WithField("workers", len(handles)).Debug("worker registry shut down")
}

// Count returns the number of registered workers
func (r *WorkerRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.workers)
}

// Handle returns the handle for a worker id
func (r *WorkerRegistry) Handle(id string) (*WorkerHandle, bool) {
	return r.handle(id)
}
