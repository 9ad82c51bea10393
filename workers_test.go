package hydra

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
)

func TestRegistryRegisterValidation(t *testing.T) {
	r := NewWorkerRegistry(testLogger())
	ok := func() error { return nil }

	cases := []struct {
		name     string
		id       string
		start    func() error
		stop     func() error
		capacity int
	}{
		{"empty id", "", ok, ok, 1},
		{"nil start", "w", nil, ok, 1},
		{"nil stop", "w", ok, nil, 1},
		{"negative capacity", "w", ok, ok, -1},
	}
	for _, tc := range cases {
		if err := r.Register(tc.id, tc.start, tc.stop, tc.capacity); !IsInvalidArgError(err) {
			t.Errorf("%s: got %v", tc.name, err)
		}
	}

	if err := r.Register("w", ok, ok, 4); err != nil {
		t.Fatal(err)
	}
	if err := r.Register("w", ok, ok, 4); !IsInvalidArgError(err) {
		t.Errorf("duplicate register: got %v", err)
	}
	if r.Count() != 1 {
		t.Errorf("count = %d", r.Count())
	}
}

func TestRegistryIdempotentStartStop(t *testing.T) {
	r := NewWorkerRegistry(testLogger())
	var starts, stops atomic.Int32
	if err := r.Register("w", func() error {
		starts.Add(1)
		return nil
	}, func() error {
		stops.Add(1)
		return nil
	}, 2); err != nil {
		t.Fatal(err)
	}

	// Stop before any start is a no-op success
	if err := r.Stop("w"); err != nil {
		t.Fatalf("stop of stopped worker: %v", err)
	}
	if stops.Load() != 0 {
		t.Error("stop callback invoked on a stopped worker")
	}

	for i := 0; i < 3; i++ {
		if err := r.Start("w"); err != nil {
			t.Fatal(err)
		}
	}
	if starts.Load() != 1 {
		t.Errorf("start callback ran %d times", starts.Load())
	}
	h, _ := r.Handle("w")
	if !h.Running() || h.LastStarted().IsZero() {
		t.Error("handle state not updated by start")
	}

	for i := 0; i < 3; i++ {
		if err := r.Stop("w"); err != nil {
			t.Fatal(err)
		}
	}
	if stops.Load() != 1 {
		t.Errorf("stop callback ran %d times", stops.Load())
	}
	if h.Running() {
		t.Error("worker still running after stop")
	}
}

func TestRegistryCallbackFailure(t *testing.T) {
	r := NewWorkerRegistry(testLogger())
	startErr := errors.New("no device")
	if err := r.Register("flaky", func() error { return startErr }, func() error { return nil }, 1); err != nil {
		t.Fatal(err)
	}

	err := r.Start("flaky")
	if !IsExecutionError(err) || !errors.Is(err, startErr) {
		t.Fatalf("start failure not wrapped: %v", err)
	}
	h, _ := r.Handle("flaky")
	if h.Running() {
		t.Error("failed start left worker marked running")
	}
}

func TestRegistryConcurrentStartStop(t *testing.T) {
	r := NewWorkerRegistry(testLogger())
	var starts, stops atomic.Int32
	if err := r.Register("w", func() error {
		starts.Add(1)
		return nil
	}, func() error {
		stops.Add(1)
		return nil
	}, 1); err != nil {
		t.Fatal(err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = r.Start("w")
		}()
	}
	wg.Wait()
	if starts.Load() != 1 {
		t.Errorf("concurrent starts invoked callback %d times", starts.Load())
	}

	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = r.Stop("w")
		}()
	}
	wg.Wait()
	if stops.Load() != 1 {
		t.Errorf("concurrent stops invoked callback %d times", stops.Load())
	}
}

func TestRegistryScale(t *testing.T) {
	r := NewWorkerRegistry(testLogger())
	if err := r.Register("w", func() error { return nil }, func() error { return nil }, 2); err != nil {
		t.Fatal(err)
	}
	if err := r.Scale("w", 8); err != nil {
		t.Fatal(err)
	}
	h, _ := r.Handle("w")
	if h.Capacity() != 8 {
		t.Errorf("capacity = %d", h.Capacity())
	}
	if err := r.Scale("w", -1); !IsInvalidArgError(err) {
		t.Errorf("negative scale: got %v", err)
	}
	if err := r.Scale("missing", 1); !IsInvalidArgError(err) {
		t.Errorf("unknown worker scale: got %v", err)
	}
}

func TestRegistryUnregisterForcesStop(t *testing.T) {
	r := NewWorkerRegistry(testLogger())
	var stops atomic.Int32
	stopErr := errors.New("hang")

	if err := r.Register("good", func() error { return nil }, func() error {
		stops.Add(1)
		return nil
	}, 1); err != nil {
		t.Fatal(err)
	}
	if err := r.Register("bad", func() error { return nil }, func() error { return stopErr }, 1); err != nil {
		t.Fatal(err)
	}
	if err := r.Start("good"); err != nil {
		t.Fatal(err)
	}
	if err := r.Start("bad"); err != nil {
		t.Fatal(err)
	}

	badHandle, _ := r.Handle("bad")
	if err := r.Unregister("good"); err != nil {
		t.Fatal(err)
	}
	if stops.Load() != 1 {
		t.Error("unregister did not stop a running worker")
	}
	// A failing stop callback must not block unregistration, and the
	// handle is still left in the stopped state.
	if err := r.Unregister("bad"); err != nil {
		t.Fatalf("unregister propagated stop failure: %v", err)
	}
	if badHandle.Running() {
		t.Error("unregistered worker left marked running")
	}
	if r.Count() != 0 {
		t.Errorf("count = %d after unregistering all", r.Count())
	}
	if err := r.Unregister("good"); !IsInvalidArgError(err) {
		t.Errorf("unregister of unknown id: got %v", err)
	}
}

func TestRegistryShutdownSwallowsFailures(t *testing.T) {
	r := NewWorkerRegistry(testLogger())
	var stops atomic.Int32
	for _, tc := range []struct {
		id   string
		stop func() error
	}{
		{"a", func() error { stops.Add(1); return nil }},
		{"b", func() error { return errors.New("stuck") }},
		{"c", func() error { stops.Add(1); return nil }},
	} {
		if err := r.Register(tc.id, func() error { return nil }, tc.stop, 1); err != nil {
			t.Fatal(err)
		}
		if err := r.Start(tc.id); err != nil {
			t.Fatal(err)
		}
	}

	r.Shutdown()
	if stops.Load() != 2 {
		t.Errorf("healthy stop callbacks ran %d times, want 2", stops.Load())
	}
	if r.Count() != 0 {
		t.Errorf("registry not cleared: %d workers", r.Count())
	}
}
